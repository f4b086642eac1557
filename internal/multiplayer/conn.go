package multiplayer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Vasu1712/scenyx-editor/internal/editor"
	"github.com/Vasu1712/scenyx-editor/internal/logging"
	"github.com/Vasu1712/scenyx-editor/internal/metrics"
)

const writeWait = 10 * time.Second

// Applier receives changes that arrived from other participants.
type Applier interface {
	Apply(source editor.Source, changes ...editor.Change) error
}

// Dialer opens store connections.
type Dialer struct {
	ws      *websocket.Dialer
	log     *zap.Logger
	metrics *metrics.Metrics
}

func NewDialer(log *zap.Logger, m *metrics.Metrics) *Dialer {
	if log == nil {
		log = logging.L()
	}
	return &Dialer{
		ws:      &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		log:     log.Named("multiplayer"),
		metrics: m,
	}
}

// Connect resolves the URI and dials it. Errors from resolve, such as a
// failed token fetch, are returned unchanged in the chain.
func (d *Dialer) Connect(ctx context.Context, resolve URIResolver, assets AssetStore) (*Conn, error) {
	uri, err := resolve(ctx)
	if err != nil {
		d.metrics.StoreConnected("error")
		return nil, fmt.Errorf("resolve store uri: %w", err)
	}

	ws, _, err := d.ws.DialContext(ctx, uri, nil)
	if err != nil {
		d.metrics.StoreConnected("error")
		return nil, fmt.Errorf("dial store: %w", err)
	}
	d.metrics.StoreConnected("ok")

	c := &Conn{
		ws:     ws,
		assets: assets,
		log:    d.log,
		status: StatusOnline,
		done:   make(chan struct{}),
	}
	go c.readPump()
	return c, nil
}

// Conn is an open store connection.
type Conn struct {
	ws     *websocket.Conn
	assets AssetStore
	log    *zap.Logger

	writeMu sync.Mutex

	mu      sync.RWMutex
	status  Status
	applier Applier
	onMsg   func(Message)

	closeOnce sync.Once
	done      chan struct{}
}

// Bind routes incoming changes to a.
func (c *Conn) Bind(a Applier) {
	c.mu.Lock()
	c.applier = a
	c.mu.Unlock()
}

// OnMessage registers a callback for every non-change message, such as
// presence broadcasts.
func (c *Conn) OnMessage(fn func(Message)) {
	c.mu.Lock()
	c.onMsg = fn
	c.mu.Unlock()
}

// Push sends local document changes to the store.
func (c *Conn) Push(changes []editor.Change) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.ws.WriteJSON(Message{Type: TypeChanges, Changes: changes}); err != nil {
		return fmt.Errorf("write changes: %w", err)
	}
	return nil
}

func (c *Conn) readPump() {
	defer func() {
		c.mu.Lock()
		if c.status == StatusOnline {
			c.status = StatusOffline
		}
		c.mu.Unlock()
		c.closeOnce.Do(func() { close(c.done) })
	}()

	for {
		var msg Message
		if err := c.ws.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Warn("store connection read error", zap.Error(err))
			}
			return
		}

		c.mu.RLock()
		applier, onMsg := c.applier, c.onMsg
		c.mu.RUnlock()

		switch msg.Type {
		case TypeChanges:
			if applier == nil {
				continue
			}
			if err := applier.Apply(editor.SourceRemote, msg.Changes...); err != nil {
				c.log.Warn("failed to apply remote changes", zap.Error(err))
			}
		default:
			if onMsg != nil {
				onMsg(msg)
			}
		}
	}
}

// Status reports whether the connection is still open.
func (c *Conn) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status
}

// Assets returns the asset store the connection was opened with.
func (c *Conn) Assets() AssetStore { return c.assets }

// Done is closed when the read loop exits.
func (c *Conn) Done() <-chan struct{} { return c.done }

// Close sends a close frame and closes the socket.
func (c *Conn) Close() error {
	c.writeMu.Lock()
	c.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	c.writeMu.Unlock()

	c.mu.Lock()
	c.status = StatusOffline
	c.mu.Unlock()
	return c.ws.Close()
}
