// Package ws fans store messages out to every connection open on a file and
// keeps each file's live participant list.
package ws

import (
	"context"
	"encoding/json"
	"slices"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Vasu1712/scenyx-editor/internal/editor"
	"github.com/Vasu1712/scenyx-editor/internal/logging"
	"github.com/Vasu1712/scenyx-editor/internal/metrics"
	"github.com/Vasu1712/scenyx-editor/internal/models"
	"github.com/Vasu1712/scenyx-editor/internal/multiplayer"
)

const sendBuffer = 256

// Client is one websocket connection to a file.
type Client struct {
	UserID    string
	FileID    models.FileID
	Temporary bool // excluded from the presence list
	Send      chan []byte
	Conn      *websocket.Conn
}

// NewClient returns a client with a buffered send queue.
func NewClient(userID string, fileID models.FileID, temporary bool, conn *websocket.Conn) *Client {
	return &Client{
		UserID:    userID,
		FileID:    fileID,
		Temporary: temporary,
		Send:      make(chan []byte, sendBuffer),
		Conn:      conn,
	}
}

// BroadcastMessage is delivered to every client on FileID except Sender.
type BroadcastMessage struct {
	FileID  models.FileID
	Sender  *Client
	Message multiplayer.Message
}

// room holds the clients of one file and the file's current records, which
// are replayed to late joiners.
type room struct {
	clients map[*Client]bool
	records map[string]editor.Change
}

// Hub serializes registration and broadcast through Run.
type Hub struct {
	Register   chan *Client
	Unregister chan *Client
	Broadcast  chan BroadcastMessage

	mu    sync.RWMutex
	rooms map[models.FileID]*room

	log     *zap.Logger
	metrics *metrics.Metrics
}

func NewHub(log *zap.Logger, m *metrics.Metrics) *Hub {
	if log == nil {
		log = logging.L()
	}
	return &Hub{
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		Broadcast:  make(chan BroadcastMessage),
		rooms:      make(map[models.FileID]*room),
		log:        log.Named("hub"),
		metrics:    m,
	}
}

// Run processes hub events until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case client := <-h.Register:
			h.register(client)
		case client := <-h.Unregister:
			h.unregister(client)
		case msg := <-h.Broadcast:
			h.broadcast(msg)
		}
	}
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	r := h.rooms[c.FileID]
	if r == nil {
		r = &room{clients: make(map[*Client]bool), records: make(map[string]editor.Change)}
		h.rooms[c.FileID] = r
	}
	r.clients[c] = true
	snapshot := make([]editor.Change, 0, len(r.records))
	for _, rec := range r.records {
		snapshot = append(snapshot, rec)
	}
	h.mu.Unlock()

	h.metrics.ConnectionOpened()
	h.log.Debug("client registered", logging.User(c.UserID), logging.File(c.FileID.String()))

	if len(snapshot) > 0 {
		slices.SortFunc(snapshot, func(a, b editor.Change) int { return strings.Compare(a.ID, b.ID) })
		h.sendTo(c, multiplayer.Message{Type: multiplayer.TypeChanges, FileID: c.FileID.String(), Changes: snapshot})
	}
	h.publishPresence(c.FileID)
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	r, ok := h.rooms[c.FileID]
	if !ok || !r.clients[c] {
		h.mu.Unlock()
		return
	}
	delete(r.clients, c)
	close(c.Send)
	h.mu.Unlock()

	h.metrics.ConnectionClosed()
	h.log.Debug("client unregistered", logging.User(c.UserID), logging.File(c.FileID.String()))
	h.publishPresence(c.FileID)
}

func (h *Hub) broadcast(msg BroadcastMessage) {
	msg.Message.FileID = msg.FileID.String()
	data, err := json.Marshal(msg.Message)
	if err != nil {
		h.log.Error("failed to encode broadcast", zap.Error(err))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	r := h.rooms[msg.FileID]
	if r == nil {
		return
	}
	if msg.Message.Type == multiplayer.TypeChanges {
		for _, c := range msg.Message.Changes {
			if c.Deleted {
				delete(r.records, c.ID)
			} else {
				r.records[c.ID] = c
			}
		}
	}
	for client := range r.clients {
		if client == msg.Sender {
			continue
		}
		select {
		case client.Send <- data:
		default:
			h.log.Warn("dropping slow client", logging.User(client.UserID), logging.File(msg.FileID.String()))
			close(client.Send)
			delete(r.clients, client)
			h.metrics.ConnectionClosed()
		}
	}
}

// publishPresence sends the current participant list to everyone on fileID.
func (h *Hub) publishPresence(fileID models.FileID) {
	h.broadcast(BroadcastMessage{
		FileID:  fileID,
		Message: multiplayer.Message{Type: multiplayer.TypePresence, Users: h.Users(fileID)},
	})
}

// PublishPresence announces presence recorded outside the socket, merged
// with the users connected to fileID. Rooms without clients are skipped.
func (h *Hub) PublishPresence(fileID models.FileID, recorded []string) {
	users := append(h.Users(fileID), recorded...)
	slices.Sort(users)
	h.broadcast(BroadcastMessage{
		FileID:  fileID,
		Message: multiplayer.Message{Type: multiplayer.TypePresence, Users: slices.Compact(users)},
	})
}

func (h *Hub) sendTo(c *Client, msg multiplayer.Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.log.Error("failed to encode message", zap.Error(err))
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	if r := h.rooms[c.FileID]; r == nil || !r.clients[c] {
		return
	}
	select {
	case c.Send <- data:
	default:
	}
}

// Users returns the sorted, distinct non-temporary users connected to fileID.
func (h *Hub) Users(fileID models.FileID) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	users := []string{}
	if r := h.rooms[fileID]; r != nil {
		for c := range r.clients {
			if !c.Temporary && c.UserID != "" {
				users = append(users, c.UserID)
			}
		}
	}
	slices.Sort(users)
	return slices.Compact(users)
}

// Connections returns the number of clients open on fileID.
func (h *Hub) Connections(fileID models.FileID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if r := h.rooms[fileID]; r != nil {
		return len(r.clients)
	}
	return 0
}
