package multiplayer

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Vasu1712/scenyx-editor/internal/editor"
	"github.com/Vasu1712/scenyx-editor/internal/metrics"
)

// echoServer upgrades every request and sends back each changes frame it
// receives as if it came from another participant.
func echoServer(t *testing.T, received chan<- Message) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		conn.WriteJSON(Message{Type: TypePresence, Users: []string{"u2"}})
		for {
			var msg Message
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			received <- msg
			if err := conn.WriteJSON(msg); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func staticURI(uri string) URIResolver {
	return func(context.Context) (string, error) { return uri, nil }
}

func TestConnect_PushAndApply(t *testing.T) {
	received := make(chan Message, 4)
	srv := echoServer(t, received)
	m := metrics.New(prometheus.NewRegistry())

	conn, err := NewDialer(zap.NewNop(), m).Connect(context.Background(),
		staticURI("ws"+strings.TrimPrefix(srv.URL, "http")), nil)
	require.NoError(t, err)
	defer conn.Close()
	assert.Equal(t, StatusOnline, conn.Status())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StoreConnections.WithLabelValues("ok")))

	local := editor.New(false)
	local.Attach(conn)
	remote := editor.New(false)
	conn.Bind(remote)

	require.NoError(t, local.Apply(editor.SourceUser,
		editor.Change{Scope: editor.ScopeDocument, ID: "shape:1", Record: json.RawMessage(`{"x":1}`)},
		editor.Change{Scope: editor.ScopeSession, ID: "camera"},
	))

	select {
	case msg := <-received:
		assert.Equal(t, TypeChanges, msg.Type)
		require.Len(t, msg.Changes, 1)
		assert.Equal(t, "shape:1", msg.Changes[0].ID)
	case <-time.After(time.Second):
		t.Fatal("server received nothing")
	}

	assert.Eventually(t, func() bool {
		_, ok := remote.Record("shape:1")
		return ok
	}, time.Second, 5*time.Millisecond)
}

func TestConnect_RemoteChangesAreNotPushedBack(t *testing.T) {
	received := make(chan Message, 4)
	srv := echoServer(t, received)

	conn, err := NewDialer(zap.NewNop(), nil).Connect(context.Background(),
		staticURI("ws"+strings.TrimPrefix(srv.URL, "http")), nil)
	require.NoError(t, err)
	defer conn.Close()

	e := editor.New(false)
	e.Attach(conn)
	conn.Bind(e)

	require.NoError(t, e.Apply(editor.SourceUser, editor.Change{Scope: editor.ScopeDocument, ID: "shape:1"}))
	<-received

	// The echo is applied as a remote change and must not loop.
	assert.Never(t, func() bool { return len(received) > 0 }, 100*time.Millisecond, 5*time.Millisecond)
}

func TestConnect_ResolveError(t *testing.T) {
	tokenErr := errors.New("token refresh failed")
	m := metrics.New(prometheus.NewRegistry())

	_, err := NewDialer(zap.NewNop(), m).Connect(context.Background(),
		func(context.Context) (string, error) { return "", tokenErr }, nil)

	assert.ErrorIs(t, err, tokenErr)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StoreConnections.WithLabelValues("error")))
}

func TestConn_StatusOfflineWhenServerCloses(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		conn.Close()
	}))
	defer srv.Close()

	conn, err := NewDialer(zap.NewNop(), nil).Connect(context.Background(),
		staticURI("ws"+strings.TrimPrefix(srv.URL, "http")), nil)
	require.NoError(t, err)

	select {
	case <-conn.Done():
	case <-time.After(time.Second):
		t.Fatal("read loop did not exit")
	}
	assert.Equal(t, StatusOffline, conn.Status())
}

func TestHTTPAssetStore_Upload(t *testing.T) {
	var gotPath string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	store := NewHTTPAssetStore(srv.URL)
	u, err := store.Upload(context.Background(), "dir/cat.png", []byte("png"))
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(gotPath, "/uploads/"))
	assert.True(t, strings.HasSuffix(gotPath, "-cat.png"))
	assert.Equal(t, []byte("png"), gotBody)
	assert.Equal(t, srv.URL+gotPath, u)
	assert.Equal(t, u, store.Resolve(u))
}

func TestHTTPAssetStore_UploadFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := NewHTTPAssetStore(srv.URL).Upload(context.Background(), "cat.png", nil)
	assert.Error(t, err)
}

func TestURLAssetHandler(t *testing.T) {
	h := NewURLAssetHandler()

	asset, err := h(context.Background(), "https://example.com/a.png")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(asset.ID, "asset:"))
	assert.Equal(t, "https://example.com/a.png", asset.URL)

	_, err = h(context.Background(), "file:///etc/passwd")
	assert.Error(t, err)
}
