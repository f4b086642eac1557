package files

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Vasu1712/scenyx-editor/internal/logging"
	"github.com/Vasu1712/scenyx-editor/internal/models"
	"github.com/Vasu1712/scenyx-editor/internal/multiplayer"
	"github.com/Vasu1712/scenyx-editor/internal/ws"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 1 << 20
)

func (h *Handler) upgrader() *websocket.Upgrader {
	return &websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || origin == h.AllowedOrigin || origin == "http://"+r.Host || origin == "https://"+r.Host
		},
	}
}

// ServeWS opens the store socket of a file. The access token, when given,
// must be valid; its user is listed in the file's presence unless the
// session is temporary.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	slug := mux.Vars(r)["slug"]
	fileID := models.NewFileID(slug)
	q := r.URL.Query()
	temporary := q.Get("temporary") == "true"

	var userID string
	if token := q.Get("accessToken"); token != "" {
		if h.Verifier == nil {
			http.Error(w, "Access tokens are not accepted", http.StatusUnauthorized)
			return
		}
		claims, err := h.Verifier.Verify(token)
		if err != nil {
			http.Error(w, "Invalid access token", http.StatusUnauthorized)
			h.Log.Debug("rejected socket token", logging.File(fileID.String()), zap.Error(err))
			return
		}
		userID = claims.UserID
	}

	conn, err := h.upgrader().Upgrade(w, r, nil)
	if err != nil {
		h.Log.Warn("websocket upgrade failed", logging.File(fileID.String()), zap.Error(err))
		return
	}
	h.Log.Info("store socket opened", logging.File(fileID.String()), logging.User(userID), zap.Bool("temporary", temporary))

	client := ws.NewClient(userID, fileID, temporary, conn)
	h.Hub.Register <- client

	go h.writePump(client)
	go h.readPump(client)
}

func (h *Handler) readPump(c *ws.Client) {
	defer func() {
		h.Hub.Unregister <- c
		c.Conn.Close()
		h.Log.Debug("read pump closed", logging.File(c.FileID.String()), logging.User(c.UserID))
	}()
	c.Conn.SetReadLimit(maxMessageSize)

	for {
		var msg multiplayer.Message
		if err := c.Conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.Log.Warn("socket read error", logging.File(c.FileID.String()), zap.Error(err))
			}
			return
		}
		if msg.Type != multiplayer.TypeChanges || len(msg.Changes) == 0 {
			continue
		}
		msg.UserID = c.UserID
		h.Hub.Broadcast <- ws.BroadcastMessage{FileID: c.FileID, Sender: c, Message: msg}
	}
}

func (h *Handler) writePump(c *ws.Client) {
	defer c.Conn.Close()
	for message := range c.Send {
		c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
			h.Log.Debug("socket write error", logging.File(c.FileID.String()), zap.Error(err))
			return
		}
	}
	c.Conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}
