// Package session coordinates an editor mounted inside the application:
// presence on the open file, edit records, theme sync, readiness of the
// initial overlay, and the remote store connection.
package session

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/Vasu1712/scenyx-editor/internal/editor"
	"github.com/Vasu1712/scenyx-editor/internal/logging"
	"github.com/Vasu1712/scenyx-editor/internal/metrics"
	"github.com/Vasu1712/scenyx-editor/internal/models"
	"github.com/Vasu1712/scenyx-editor/internal/multiplayer"
)

// DefaultReadyDelay is how long after mount the overlay stays up.
const DefaultReadyDelay = 200 * time.Millisecond

// StoreConn is an open remote store connection.
type StoreConn interface {
	Status() multiplayer.Status
	Close() error
}

// Connector opens remote store connections.
type Connector interface {
	Connect(ctx context.Context, resolve multiplayer.URIResolver, assets multiplayer.AssetStore) (StoreConn, error)
}

// DialerConnector adapts a multiplayer dialer to Connector.
func DialerConnector(d *multiplayer.Dialer) Connector { return dialerConnector{d} }

type dialerConnector struct{ d *multiplayer.Dialer }

func (c dialerConnector) Connect(ctx context.Context, resolve multiplayer.URIResolver, assets multiplayer.AssetStore) (StoreConn, error) {
	conn, err := c.d.Connect(ctx, resolve, assets)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// Migrator upgrades locally stored documents once the editor is mounted.
type Migrator interface {
	Migrate(ctx context.Context, e editor.Handle) error
}

// Config holds what stays fixed for the life of a session.
type Config struct {
	App       App // nil when there is no application context
	Editor    editor.Handle
	Connector Connector // nil keeps the session local
	Assets    multiplayer.AssetStore

	AssetHandler editor.AssetHandler // registered for "url" assets
	Snapshots    SnapshotReader
	Migrator     Migrator
	ThemeSink    ThemeSink
	Debug        *DebugRegistry

	MultiplayerServer string
	QuietPeriod       time.Duration
	ReadyDelay        time.Duration

	Clock   clockwork.Clock
	Logger  *zap.Logger
	Metrics *metrics.Metrics
	OnFatal FatalHandler
}

// Props are the inputs a host may change while the session is mounted.
type Props struct {
	FileSlug         string
	Temporary        bool
	User             User   // nil when signed out
	OnDocumentChange func() // optional
}

// Session owns one mounted editor. All methods are safe for concurrent use.
type Session struct {
	cfg Config
	log *zap.Logger

	// onChange mirrors props.OnDocumentChange. Listeners read it without mu
	// because edits can be applied while mu is held, e.g. by a migrator.
	onChange atomic.Pointer[func()]

	mu       sync.Mutex
	props    Props
	fileID   models.FileID
	mounted  bool
	ready    bool
	readyGen int
	readyTmr clockwork.Timer
	unlisten func()
	recorder *EditRecorder
	presence *PresenceTracker
	children []func()

	conn       StoreConn
	connKey    connKey
	connGen    int
	connCancel context.CancelFunc
	status     multiplayer.Status
	storeErr   error
}

// New prepares a session. Nothing is started until Mount.
func New(cfg Config, props Props) *Session {
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.L()
	}
	if cfg.OnFatal == nil {
		cfg.OnFatal = PanicOnFatal
	}
	if cfg.QuietPeriod <= 0 {
		cfg.QuietPeriod = DefaultQuietPeriod
	}
	if cfg.ReadyDelay <= 0 {
		cfg.ReadyDelay = DefaultReadyDelay
	}
	if cfg.Snapshots == nil {
		cfg.Snapshots = JSONSnapshotReader{Log: cfg.Logger}
	}

	s := &Session{
		cfg:    cfg,
		log:    cfg.Logger.Named("session"),
		props:  props,
		fileID: models.NewFileID(props.FileSlug),
		status: multiplayer.StatusLoading,
	}
	s.onChange.Store(&props.OnDocumentChange)
	return s
}

// Mount starts the store connection, runs the mount handler, installs the
// mount-scoped children and activates presence. An InvariantError means the
// application handle has no authenticated, resolvable user.
func (s *Session) Mount(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.mounted {
		return nil
	}
	s.mounted = true

	s.connectLocked()
	s.handleMountLocked()
	s.installChildrenLocked(ctx)

	s.log.Info("editor mounted", logging.File(s.fileID.String()))
	return s.activatePresenceLocked()
}

// handleMountLocked is the editor mount handler. It runs again whenever the
// file identifier changes.
func (s *Session) handleMountLocked() {
	e := s.cfg.Editor

	s.cfg.Debug.Set("editor", e)
	if s.cfg.App != nil {
		s.cfg.Debug.Set("app", s.cfg.App)
	}
	if s.cfg.AssetHandler != nil {
		e.RegisterExternalAssetHandler("url", s.cfg.AssetHandler)
	}
	if s.cfg.App != nil {
		s.cfg.App.SetCurrentEditor(e)
	}

	s.armReadyLocked()

	if s.unlisten != nil {
		s.unlisten()
	}
	s.recorder = NewEditRecorder(s.cfg.App, s.fileID, s.cfg.Clock.Now(), s.documentChanged, s.cfg.OnFatal,
		s.log.With(logging.File(s.fileID.String())))
	s.unlisten = s.recorder.Install(e)
}

func (s *Session) installChildrenLocked(ctx context.Context) {
	e := s.cfg.Editor

	if s.cfg.Migrator != nil {
		if err := s.cfg.Migrator.Migrate(ctx, e); err != nil {
			s.log.Warn("local migration failed", zap.Error(err))
		}
	}
	if s.cfg.ThemeSink != nil {
		s.children = append(s.children, startThemeUpdater(e, s.cfg.ThemeSink))
	}
	s.children = append(s.children, NewThemeReconciler(s.cfg.App, e, s.log, s.cfg.Metrics).Start())
	if s.cfg.App != nil {
		s.children = append(s.children, installDropHandler(s.cfg.App, e, s.cfg.Snapshots, s.log))
	}
}

func (s *Session) activatePresenceLocked() error {
	if s.cfg.App == nil {
		return nil
	}
	p, err := ActivatePresence(s.cfg.App, s.fileID, s.cfg.Clock, s.cfg.QuietPeriod, s.log, s.cfg.Metrics)
	if err != nil {
		s.log.Error("presence activation failed", logging.File(s.fileID.String()), zap.Error(err))
		return err
	}
	s.presence = p
	return nil
}

// documentChanged forwards to the current OnDocumentChange prop.
func (s *Session) documentChanged() {
	if fn := *s.onChange.Load(); fn != nil {
		fn()
	}
}

// armReadyLocked clears readiness and schedules it for the current file.
// Earlier schedules are invalidated.
func (s *Session) armReadyLocked() {
	s.stopReadyLocked()
	gen := s.readyGen
	s.readyTmr = s.cfg.Clock.AfterFunc(s.cfg.ReadyDelay, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if gen != s.readyGen || !s.mounted {
			return
		}
		s.ready = true
		s.log.Debug("editor ready", logging.File(s.fileID.String()))
	})
}

func (s *Session) stopReadyLocked() {
	s.ready = false
	s.readyGen++
	if s.readyTmr != nil {
		s.readyTmr.Stop()
		s.readyTmr = nil
	}
}

// Update applies new props. A new file slug resets readiness, ends the
// presence activation of the old file and starts one for the new file,
// reusing the mounted editor. A new (user, slug, temporary) triple
// reconnects the store; anything else leaves the connection alone.
func (s *Session) Update(props Props) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	fileID := models.NewFileID(props.FileSlug)
	fileChanged := fileID != s.fileID
	s.props = props
	s.onChange.Store(&props.OnDocumentChange)
	s.fileID = fileID

	if !s.mounted {
		return nil
	}

	s.connectLocked()

	if !fileChanged {
		return nil
	}

	s.log.Info("file changed", logging.File(fileID.String()))
	s.presence.Teardown()
	s.presence = nil
	s.handleMountLocked()
	return s.activatePresenceLocked()
}

// Unmount tears down everything Mount started.
func (s *Session) Unmount() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.mounted {
		return
	}
	s.mounted = false

	s.presence.Teardown()
	s.presence = nil
	s.stopReadyLocked()
	if s.unlisten != nil {
		s.unlisten()
		s.unlisten = nil
	}
	for i := len(s.children) - 1; i >= 0; i-- {
		s.children[i]()
	}
	s.children = nil
	s.closeConnLocked()

	s.log.Info("editor unmounted", logging.File(s.fileID.String()))
}

// connectLocked opens a store connection for the current props unless one
// for the same key is open or in flight.
func (s *Session) connectLocked() {
	if s.cfg.Connector == nil {
		return
	}
	key := keyFor(s.props)
	if key == s.connKey && (s.conn != nil || s.connCancel != nil || s.status == multiplayer.StatusError) {
		return
	}

	s.closeConnLocked()
	s.connKey = key
	gen := s.connGen
	ctx, cancel := context.WithCancel(context.Background())
	s.connCancel = cancel
	s.status = multiplayer.StatusLoading
	s.storeErr = nil

	resolve := NewURIResolver(s.cfg.MultiplayerServer, s.props.FileSlug, s.props.User, s.props.Temporary)
	go s.connect(ctx, gen, resolve)
}

func (s *Session) connect(ctx context.Context, gen int, resolve multiplayer.URIResolver) {
	conn, err := s.cfg.Connector.Connect(ctx, resolve, s.cfg.Assets)

	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.connGen {
		if conn != nil {
			conn.Close()
		}
		return
	}
	s.connCancel = nil

	if err != nil {
		s.status = multiplayer.StatusError
		s.storeErr = err
		s.log.Error("store connection failed", logging.File(s.fileID.String()), zap.Error(err))
		return
	}

	s.conn = conn
	s.bindLocked(conn)
	s.log.Info("store connected", logging.File(s.fileID.String()))
}

// bindLocked wires the connection to the editor in both directions when both
// sides support it.
func (s *Session) bindLocked(conn StoreConn) {
	if remote, ok := conn.(editor.Remote); ok {
		if a, ok := s.cfg.Editor.(interface{ Attach(editor.Remote) }); ok {
			a.Attach(remote)
		}
	}
	if b, ok := conn.(interface{ Bind(multiplayer.Applier) }); ok {
		if applier, ok := s.cfg.Editor.(multiplayer.Applier); ok {
			b.Bind(applier)
		}
	}
}

func (s *Session) closeConnLocked() {
	s.connGen++
	if s.connCancel != nil {
		s.connCancel()
		s.connCancel = nil
	}
	if s.conn != nil {
		if a, ok := s.cfg.Editor.(interface{ Attach(editor.Remote) }); ok {
			a.Attach(nil)
		}
		if err := s.conn.Close(); err != nil {
			s.log.Debug("store close", zap.Error(err))
		}
		s.conn = nil
	}
	s.status = multiplayer.StatusLoading
}

// Ready reports whether the initial overlay can be removed.
func (s *Session) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ready
}

// Overlay returns the key of the loading overlay and whether it is shown.
// The key changes with the file so a switch shows a fresh overlay.
func (s *Session) Overlay() (key string, visible bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fileID.String() + "overlay", !s.ready
}

func (s *Session) FileID() models.FileID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fileID
}

// Presence returns the current presence activation, or nil.
func (s *Session) Presence() *PresenceTracker {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.presence
}

// Status reports the store connection state.
func (s *Session) Status() multiplayer.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != nil {
		return s.conn.Status()
	}
	return s.status
}

// StoreErr returns the error of the last failed connection attempt.
func (s *Session) StoreErr() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.storeErr
}
