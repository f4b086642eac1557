package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Vasu1712/scenyx-editor/internal/editor"
	"github.com/Vasu1712/scenyx-editor/internal/models"
	"github.com/Vasu1712/scenyx-editor/internal/multiplayer"
)

type testSession struct {
	*Session
	app       *fakeApp
	editor    *editor.Editor
	clock     clockwork.FakeClock
	connector *fakeConnector
	debug     *DebugRegistry
	sink      *recordingSink
}

func newTestSession(t *testing.T, props Props) *testSession {
	t.Helper()
	clock := clockwork.NewFakeClockAt(time.Unix(1000, 0))
	ts := &testSession{
		app:       newFakeApp("u1", clock.Now()),
		editor:    editor.New(false),
		clock:     clock,
		connector: &fakeConnector{},
		debug:     NewDebugRegistry(true),
		sink:      &recordingSink{},
	}
	ts.Session = New(Config{
		App:               ts.app,
		Editor:            ts.editor,
		Connector:         ts.connector,
		AssetHandler:      multiplayer.NewURLAssetHandler(),
		ThemeSink:         ts.sink,
		Debug:             ts.debug,
		MultiplayerServer: "ws://127.0.0.1:8080",
		Clock:             clock,
		Logger:            zap.NewNop(),
	}, props)
	return ts
}

func TestSession_MountLifecycle(t *testing.T) {
	ts := newTestSession(t, Props{FileSlug: "abc", User: fakeUser{id: "u1", token: "tok"}})

	require.NoError(t, ts.Mount(context.Background()))
	t.Cleanup(ts.Unmount)

	key, visible := ts.Overlay()
	assert.Equal(t, "file:abcoverlay", key)
	assert.True(t, visible)
	assert.False(t, ts.Ready())

	got, ok := ts.debug.Get("editor")
	assert.True(t, ok)
	assert.Same(t, ts.editor, got)
	assert.Same(t, ts.editor, ts.app.editor)

	asset, err := ts.editor.CreateAsset(context.Background(), "url", "https://example.com/cat.png")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/cat.png", asset.URL)

	assert.Equal(t, models.ThemeLight, ts.sink.last())

	require.Eventually(t, func() bool { return ts.connector.connects() == 1 }, waitFor, time.Millisecond)
	assert.Equal(t, "ws://127.0.0.1:8080/app/file/abc?accessToken=tok", ts.connector.uri(0))
	assert.Eventually(t, func() bool { return ts.Status() == multiplayer.StatusOnline }, waitFor, time.Millisecond)

	ts.clock.Advance(DefaultReadyDelay)
	assert.Eventually(t, ts.Ready, waitFor, time.Millisecond)
	_, visible = ts.Overlay()
	assert.False(t, visible)
}

func TestSession_FileSwitchResetsReadiness(t *testing.T) {
	ts := newTestSession(t, Props{FileSlug: "abc"})
	require.NoError(t, ts.Mount(context.Background()))
	t.Cleanup(ts.Unmount)

	ts.clock.Advance(DefaultReadyDelay)
	require.Eventually(t, ts.Ready, waitFor, time.Millisecond)

	require.NoError(t, ts.Update(Props{FileSlug: "def"}))
	assert.False(t, ts.Ready())
	key, visible := ts.Overlay()
	assert.Equal(t, "file:defoverlay", key)
	assert.True(t, visible)
	assert.Equal(t, models.NewFileID("def"), ts.FileID())

	ts.clock.Advance(DefaultReadyDelay)
	assert.Eventually(t, ts.Ready, waitFor, time.Millisecond)
}

func TestSession_StaleReadyTimerIgnored(t *testing.T) {
	ts := newTestSession(t, Props{FileSlug: "abc"})
	require.NoError(t, ts.Mount(context.Background()))
	t.Cleanup(ts.Unmount)

	ts.clock.Advance(100 * time.Millisecond)
	require.NoError(t, ts.Update(Props{FileSlug: "def"}))

	// The first file's timer would have fired here.
	ts.clock.Advance(100 * time.Millisecond)
	assert.Never(t, ts.Ready, 50*time.Millisecond, time.Millisecond)

	ts.clock.Advance(100 * time.Millisecond)
	assert.Eventually(t, ts.Ready, waitFor, time.Millisecond)
}

func TestSession_PresenceAcrossFileSwitch(t *testing.T) {
	ts := newTestSession(t, Props{FileSlug: "abc"})
	require.NoError(t, ts.Mount(context.Background()))

	ts.clock.Advance(1500 * time.Millisecond)
	require.Eventually(t, func() bool { return len(ts.app.presenceCalls()) == 1 }, waitFor, time.Millisecond)

	require.NoError(t, ts.Update(Props{FileSlug: "def"}))
	ts.clock.Advance(500 * time.Millisecond)
	ts.Unmount()
	ts.clock.Advance(time.Second)

	assert.Equal(t, []presenceCall{
		{"enter", models.NewFileID("abc")},
		{"exit", models.NewFileID("abc")},
	}, ts.app.presenceCalls())
}

func TestSession_AlreadyPresentNoEnter(t *testing.T) {
	ts := newTestSession(t, Props{FileSlug: "abc"})
	ts.app.setPresent("u1", models.NewFileID("abc"))

	require.NoError(t, ts.Mount(context.Background()))
	ts.clock.Advance(2 * time.Second)
	ts.Unmount()

	assert.Empty(t, ts.app.presenceCalls())
	assert.Nil(t, ts.Presence())
}

func TestSession_EditsShareMountAnchor(t *testing.T) {
	var changes int
	ts := newTestSession(t, Props{FileSlug: "abc", OnDocumentChange: func() { changes++ }})
	mountedAt := ts.clock.Now()
	require.NoError(t, ts.Mount(context.Background()))
	t.Cleanup(ts.Unmount)

	ts.clock.Advance(time.Minute)
	require.NoError(t, ts.editor.Apply(editor.SourceUser, shape("shape:1")))
	ts.clock.Advance(time.Minute)
	require.NoError(t, ts.editor.Apply(editor.SourceUser, shape("shape:2")))

	edits := ts.app.editCalls()
	require.Len(t, edits, 2)
	assert.Equal(t, edits[0].fileOpenedAt, edits[1].fileOpenedAt)
	assert.Equal(t, mountedAt, edits[0].fileOpenedAt)
	assert.Equal(t, time.Unix(1000, 0), edits[1].sessionCreatedAt)
	assert.Equal(t, 2, changes)
}

func TestSession_FileSwitchReplacesEditListener(t *testing.T) {
	ts := newTestSession(t, Props{FileSlug: "abc"})
	require.NoError(t, ts.Mount(context.Background()))
	t.Cleanup(ts.Unmount)

	require.NoError(t, ts.Update(Props{FileSlug: "def"}))
	require.NoError(t, ts.editor.Apply(editor.SourceUser, shape("shape:1")))

	edits := ts.app.editCalls()
	require.Len(t, edits, 1)
	assert.Equal(t, models.NewFileID("def"), edits[0].fileID)
}

func TestSession_OnDocumentChangeFollowsProps(t *testing.T) {
	var first, second int
	ts := newTestSession(t, Props{FileSlug: "abc", OnDocumentChange: func() { first++ }})
	require.NoError(t, ts.Mount(context.Background()))
	t.Cleanup(ts.Unmount)

	require.NoError(t, ts.Update(Props{FileSlug: "abc", OnDocumentChange: func() { second++ }}))
	require.NoError(t, ts.editor.Apply(editor.SourceUser, shape("shape:1")))

	assert.Zero(t, first)
	assert.Equal(t, 1, second)
}

func TestSession_ConnectionKeyedByUserSlugTemporary(t *testing.T) {
	user := fakeUser{id: "u1", token: "tok"}
	ts := newTestSession(t, Props{FileSlug: "abc", User: user})
	require.NoError(t, ts.Mount(context.Background()))
	t.Cleanup(ts.Unmount)
	require.Eventually(t, func() bool { return ts.connector.connects() == 1 }, waitFor, time.Millisecond)

	require.NoError(t, ts.Update(Props{FileSlug: "abc", User: user, OnDocumentChange: func() {}}))
	assert.Never(t, func() bool { return ts.connector.connects() > 1 }, 50*time.Millisecond, time.Millisecond)

	require.NoError(t, ts.Update(Props{FileSlug: "abc", User: user, Temporary: true}))
	require.Eventually(t, func() bool { return ts.connector.connects() == 2 }, waitFor, time.Millisecond)
	assert.True(t, ts.connector.conn(0).isClosed())
	assert.Equal(t, "ws://127.0.0.1:8080/app/file/abc?accessToken=tok&temporary=true", ts.connector.uri(1))
}

func TestSession_TokenFailureSurfacesAsStoreError(t *testing.T) {
	tokenErr := errors.New("refresh failed")
	ts := newTestSession(t, Props{FileSlug: "abc", User: fakeUser{id: "u1", err: tokenErr}})
	require.NoError(t, ts.Mount(context.Background()))
	t.Cleanup(ts.Unmount)

	require.Eventually(t, func() bool { return ts.Status() == multiplayer.StatusError }, waitFor, time.Millisecond)
	assert.ErrorIs(t, ts.StoreErr(), tokenErr)

	// Same (user, slug, temporary): no second attempt.
	require.NoError(t, ts.Update(Props{FileSlug: "abc", User: fakeUser{id: "u1", err: tokenErr}, OnDocumentChange: func() {}}))
	assert.Never(t, func() bool { return ts.connector.attempted() > 1 }, 50*time.Millisecond, time.Millisecond)
	assert.Equal(t, multiplayer.StatusError, ts.Status())

	require.NoError(t, ts.Update(Props{FileSlug: "abc", User: fakeUser{id: "u2", token: "tok2"}}))
	assert.Eventually(t, func() bool { return ts.connector.connects() == 1 }, waitFor, time.Millisecond)
	assert.Equal(t, 2, ts.connector.attempted())
}

type editingMigrator struct{}

func (editingMigrator) Migrate(_ context.Context, e editor.Handle) error {
	return e.(*editor.Editor).Apply(editor.SourceUser, shape("shape:migrated"))
}

func TestSession_MigratorEditsDuringMount(t *testing.T) {
	changed := make(chan struct{}, 1)
	ts := newTestSession(t, Props{FileSlug: "abc", OnDocumentChange: func() { changed <- struct{}{} }})
	ts.cfg.Migrator = editingMigrator{}

	mounted := make(chan error, 1)
	go func() { mounted <- ts.Mount(context.Background()) }()

	select {
	case err := <-mounted:
		require.NoError(t, err)
	case <-time.After(waitFor):
		t.Fatal("mount blocked while the migrator edited the document")
	}
	t.Cleanup(ts.Unmount)

	select {
	case <-changed:
	default:
		t.Fatal("document change callback not called")
	}
	assert.Len(t, ts.app.editCalls(), 1)
}

func TestSession_UnmountClosesConnection(t *testing.T) {
	ts := newTestSession(t, Props{FileSlug: "abc"})
	require.NoError(t, ts.Mount(context.Background()))
	require.Eventually(t, func() bool { return ts.connector.connects() == 1 }, waitFor, time.Millisecond)

	ts.Unmount()

	assert.True(t, ts.connector.conn(0).isClosed())
	assert.False(t, ts.Ready())
}

func TestSession_ThemeFollowsEditorWhileMounted(t *testing.T) {
	ts := newTestSession(t, Props{FileSlug: "abc"})
	require.NoError(t, ts.Mount(context.Background()))

	ts.editor.SetDarkMode(true)
	assert.Equal(t, models.ThemeDark, ts.app.SessionState().Theme)
	assert.Equal(t, models.ThemeDark, ts.sink.last())

	ts.Unmount()
	ts.editor.SetDarkMode(false)
	assert.Equal(t, models.ThemeDark, ts.app.SessionState().Theme)
}

func TestSession_MissingAuthIsInvariant(t *testing.T) {
	ts := newTestSession(t, Props{FileSlug: "abc"})
	ts.app.session.Set(models.SessionState{ID: "s"})

	err := ts.Mount(context.Background())
	t.Cleanup(ts.Unmount)

	assert.True(t, IsInvariant(err))
	assert.ErrorIs(t, err, ErrAuthNotFound)
}

func TestSession_WithoutApp(t *testing.T) {
	e := editor.New(true)
	s := New(Config{Editor: e, Clock: clockwork.NewFakeClock(), Logger: zap.NewNop()}, Props{FileSlug: "abc"})

	require.NoError(t, s.Mount(context.Background()))
	require.NoError(t, e.Apply(editor.SourceUser, shape("shape:1")))
	assert.Nil(t, s.Presence())
	assert.Equal(t, multiplayer.StatusLoading, s.Status())
	s.Unmount()
}
