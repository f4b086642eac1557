package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Vasu1712/scenyx-editor/internal/editor"
	"github.com/Vasu1712/scenyx-editor/internal/models"
	"github.com/Vasu1712/scenyx-editor/internal/multiplayer"
	"github.com/Vasu1712/scenyx-editor/internal/state"
)

type editCall struct {
	userID           string
	fileID           models.FileID
	sessionCreatedAt time.Time
	fileOpenedAt     time.Time
}

type presenceCall struct {
	kind   string // "enter" or "exit"
	fileID models.FileID
}

// fakeApp records every call made by a session.
type fakeApp struct {
	session *state.Store[models.SessionState]

	mu        sync.Mutex
	users     map[string]*models.User
	calls     []presenceCall
	edits     []editCall
	snapshots []models.FileSnapshot
	editor    editor.Handle
	sets      int
}

func newFakeApp(userID string, createdAt time.Time) *fakeApp {
	a := &fakeApp{
		session: state.NewStore(models.SessionState{
			ID:        "session-1",
			Auth:      &models.Auth{UserID: userID},
			Theme:     models.ThemeLight,
			CreatedAt: createdAt,
		}),
		users: map[string]*models.User{},
	}
	if userID != "" {
		a.users[userID] = &models.User{ID: userID, Name: "ada"}
	}
	return a
}

func (a *fakeApp) SessionState() models.SessionState { return a.session.Get() }

func (a *fakeApp) SetSessionState(s models.SessionState) {
	a.mu.Lock()
	a.sets++
	a.mu.Unlock()
	a.session.Set(s)
}

func (a *fakeApp) SubscribeSessionState(fn func(models.SessionState)) func() {
	return a.session.Subscribe(fn)
}

func (a *fakeApp) User(userID string) (*models.User, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	u, ok := a.users[userID]
	return u.Clone(), ok
}

func (a *fakeApp) SetCurrentEditor(e editor.Handle) {
	a.mu.Lock()
	a.editor = e
	a.mu.Unlock()
}

func (a *fakeApp) OnFileEdit(userID string, fileID models.FileID, sessionCreatedAt, fileOpenedAt time.Time) {
	a.mu.Lock()
	a.edits = append(a.edits, editCall{userID, fileID, sessionCreatedAt, fileOpenedAt})
	a.mu.Unlock()
}

func (a *fakeApp) OnFileEnter(_ string, fileID models.FileID) {
	a.mu.Lock()
	a.calls = append(a.calls, presenceCall{"enter", fileID})
	a.mu.Unlock()
}

func (a *fakeApp) OnFileExit(_ string, fileID models.FileID) {
	a.mu.Lock()
	a.calls = append(a.calls, presenceCall{"exit", fileID})
	a.mu.Unlock()
}

func (a *fakeApp) CreateFilesFromSnapshots(_ context.Context, snapshots []models.FileSnapshot) ([]models.FileID, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.snapshots = append(a.snapshots, snapshots...)
	ids := make([]models.FileID, len(snapshots))
	for i, s := range snapshots {
		ids[i] = models.NewFileID(s.Name)
	}
	return ids, nil
}

func (a *fakeApp) presenceCalls() []presenceCall {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]presenceCall(nil), a.calls...)
}

func (a *fakeApp) editCalls() []editCall {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]editCall(nil), a.edits...)
}

func (a *fakeApp) sessionWrites() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.sets
}

func (a *fakeApp) setPresent(userID string, fileIDs ...models.FileID) {
	a.mu.Lock()
	a.users[userID].Presence.FileIDs = fileIDs
	a.mu.Unlock()
}

func (a *fakeApp) removeUser(userID string) {
	a.mu.Lock()
	delete(a.users, userID)
	a.mu.Unlock()
}

type fakeUser struct {
	id    string
	token string
	err   error
}

func (u fakeUser) ID() string { return u.id }

func (u fakeUser) Token(context.Context) (string, error) { return u.token, u.err }

type fakeConn struct {
	mu     sync.Mutex
	closed bool
}

func (c *fakeConn) Status() multiplayer.Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return multiplayer.StatusOffline
	}
	return multiplayer.StatusOnline
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return nil
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// fakeConnector resolves the URI and hands out fakeConns.
type fakeConnector struct {
	mu       sync.Mutex
	attempts int
	uris     []string
	conns    []*fakeConn
}

func (c *fakeConnector) Connect(ctx context.Context, resolve multiplayer.URIResolver, _ multiplayer.AssetStore) (StoreConn, error) {
	c.mu.Lock()
	c.attempts++
	c.mu.Unlock()

	uri, err := resolve(ctx)
	if err != nil {
		return nil, errors.Join(errors.New("resolve store uri"), err)
	}
	conn := &fakeConn{}
	c.mu.Lock()
	c.uris = append(c.uris, uri)
	c.conns = append(c.conns, conn)
	c.mu.Unlock()
	return conn, nil
}

func (c *fakeConnector) attempted() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attempts
}

func (c *fakeConnector) connects() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.conns)
}

func (c *fakeConnector) conn(i int) *fakeConn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conns[i]
}

func (c *fakeConnector) uri(i int) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.uris[i]
}

type recordingSink struct {
	mu     sync.Mutex
	themes []models.Theme
}

func (s *recordingSink) ApplyTheme(t models.Theme) {
	s.mu.Lock()
	s.themes = append(s.themes, t)
	s.mu.Unlock()
}

func (s *recordingSink) last() models.Theme {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.themes) == 0 {
		return ""
	}
	return s.themes[len(s.themes)-1]
}
