// Package app is the application handle: session state, user lookup, and the
// presence, edit and import calls an editor session makes.
package app

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/Vasu1712/scenyx-editor/internal/editor"
	"github.com/Vasu1712/scenyx-editor/internal/logging"
	"github.com/Vasu1712/scenyx-editor/internal/metrics"
	"github.com/Vasu1712/scenyx-editor/internal/models"
	"github.com/Vasu1712/scenyx-editor/internal/state"
	"github.com/Vasu1712/scenyx-editor/internal/storage"
)

const defaultOpTimeout = 5 * time.Second

// ErrNotAuthenticated is returned by operations that need a signed-in user.
var ErrNotAuthenticated = errors.New("not authenticated")

// UserStore loads users and persists their presence and edits.
type UserStore interface {
	GetUser(ctx context.Context, userID string) (*models.User, error)
	EnterFile(ctx context.Context, userID string, fileID models.FileID) error
	ExitFile(ctx context.Context, userID string, fileID models.FileID) error
	RecordEdit(ctx context.Context, rec models.EditRecord) error
}

// PresenceStore, when configured, is the source of truth for presence sets
// instead of UserStore.
type PresenceStore interface {
	EnterFile(ctx context.Context, userID string, fileID models.FileID) error
	ExitFile(ctx context.Context, userID string, fileID models.FileID) error
	FileIDs(ctx context.Context, userID string) ([]models.FileID, error)
}

// FileStore creates files from imported snapshots.
type FileStore interface {
	CreateFiles(ctx context.Context, ownerID string, snapshots []models.FileSnapshot) ([]models.FileID, error)
}

type Options struct {
	Users    UserStore
	Presence PresenceStore
	Files    FileStore
	Auth     *models.Auth
	Theme    models.Theme
	Clock    clockwork.Clock
	Logger   *zap.Logger
	Metrics  *metrics.Metrics
	// OpTimeout bounds each storage call. Defaults to 5s.
	OpTimeout time.Duration
}

// App is safe for concurrent use.
type App struct {
	users     UserStore
	presence  PresenceStore
	files     FileStore
	clock     clockwork.Clock
	log       *zap.Logger
	metrics   *metrics.Metrics
	opTimeout time.Duration

	session *state.Store[models.SessionState]

	mu     sync.RWMutex
	editor editor.Handle
}

// New creates an application handle with a fresh session.
func New(opts Options) *App {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Logger == nil {
		opts.Logger = logging.L()
	}
	if opts.OpTimeout <= 0 {
		opts.OpTimeout = defaultOpTimeout
	}
	if opts.Theme == "" {
		opts.Theme = models.ThemeLight
	}

	return &App{
		users:     opts.Users,
		presence:  opts.Presence,
		files:     opts.Files,
		clock:     opts.Clock,
		log:       opts.Logger.Named("app"),
		metrics:   opts.Metrics,
		opTimeout: opts.OpTimeout,
		session: state.NewStore(models.SessionState{
			ID:        uuid.NewString(),
			Auth:      opts.Auth,
			Theme:     opts.Theme,
			CreatedAt: opts.Clock.Now(),
		}),
	}
}

func (a *App) opContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), a.opTimeout)
}

// SessionState returns the current session state.
func (a *App) SessionState() models.SessionState { return a.session.Get() }

// SetSessionState replaces the whole session state.
func (a *App) SetSessionState(s models.SessionState) { a.session.Set(s) }

// SubscribeSessionState calls fn after every session state replacement.
func (a *App) SubscribeSessionState(fn func(models.SessionState)) (unsubscribe func()) {
	return a.session.Subscribe(fn)
}

// User loads a user record. The second result is false when the user does
// not exist or cannot be loaded.
func (a *App) User(userID string) (*models.User, bool) {
	ctx, cancel := a.opContext()
	defer cancel()

	user, err := a.users.GetUser(ctx, userID)
	if err != nil {
		if !errors.Is(err, storage.ErrUserNotFound) {
			a.log.Error("failed to load user", logging.User(userID), zap.Error(err))
		}
		return nil, false
	}

	if a.presence != nil {
		ids, err := a.presence.FileIDs(ctx, userID)
		if err != nil {
			a.log.Warn("failed to load presence", logging.User(userID), zap.Error(err))
		} else {
			user.Presence.FileIDs = ids
		}
	}
	return user, true
}

func (a *App) SetCurrentEditor(e editor.Handle) {
	a.mu.Lock()
	a.editor = e
	a.mu.Unlock()
}

func (a *App) CurrentEditor() editor.Handle {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.editor
}

// OnFileEnter records that userID is viewing fileID.
func (a *App) OnFileEnter(userID string, fileID models.FileID) {
	ctx, cancel := a.opContext()
	defer cancel()

	if err := a.presenceStore().EnterFile(ctx, userID, fileID); err != nil {
		a.log.Error("failed to record file enter", logging.User(userID), logging.File(fileID.String()), zap.Error(err))
		return
	}
	a.log.Debug("file entered", logging.User(userID), logging.File(fileID.String()))
}

// OnFileExit records that userID stopped viewing fileID.
func (a *App) OnFileExit(userID string, fileID models.FileID) {
	ctx, cancel := a.opContext()
	defer cancel()

	if err := a.presenceStore().ExitFile(ctx, userID, fileID); err != nil {
		a.log.Error("failed to record file exit", logging.User(userID), logging.File(fileID.String()), zap.Error(err))
		return
	}
	a.log.Debug("file exited", logging.User(userID), logging.File(fileID.String()))
}

func (a *App) presenceStore() interface {
	EnterFile(ctx context.Context, userID string, fileID models.FileID) error
	ExitFile(ctx context.Context, userID string, fileID models.FileID) error
} {
	if a.presence != nil {
		return a.presence
	}
	return a.users
}

// OnFileEdit records that userID edited fileID now.
func (a *App) OnFileEdit(userID string, fileID models.FileID, sessionCreatedAt, fileOpenedAt time.Time) {
	ctx, cancel := a.opContext()
	defer cancel()

	rec := models.EditRecord{
		UserID:           userID,
		FileID:           fileID,
		SessionStartedAt: sessionCreatedAt,
		FileOpenedAt:     fileOpenedAt,
		EditedAt:         a.clock.Now(),
	}
	if err := a.users.RecordEdit(ctx, rec); err != nil {
		a.log.Error("failed to record file edit", logging.User(userID), logging.File(fileID.String()), zap.Error(err))
		return
	}
	a.metrics.FileEdited()
}

// CreateFilesFromSnapshots creates one file per snapshot, owned by the
// signed-in user.
func (a *App) CreateFilesFromSnapshots(ctx context.Context, snapshots []models.FileSnapshot) ([]models.FileID, error) {
	auth := a.SessionState().Auth
	if auth == nil {
		return nil, ErrNotAuthenticated
	}
	if a.files == nil {
		return nil, errors.New("no file store configured")
	}

	ids, err := a.files.CreateFiles(ctx, auth.UserID, snapshots)
	if err != nil {
		return nil, err
	}
	a.metrics.FilesCreated(len(ids))
	a.log.Info("created files from snapshots", logging.User(auth.UserID), zap.Int("count", len(ids)))
	return ids, nil
}
