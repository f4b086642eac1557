// Package multiplayer connects an editor to the remote synchronized store
// over a websocket, and defines the messages exchanged on that socket.
package multiplayer

import (
	"context"

	"github.com/Vasu1712/scenyx-editor/internal/editor"
)

// URIResolver produces the socket URI at connect time. It may block, e.g. on
// fetching an access token.
type URIResolver func(ctx context.Context) (string, error)

// Status of a store connection.
type Status string

const (
	StatusLoading Status = "loading"
	StatusOnline  Status = "online"
	StatusOffline Status = "offline"
	StatusError   Status = "error"
)

// Message types.
const (
	TypeChanges  = "changes"
	TypePresence = "presence"
)

// Message is the JSON frame sent in both directions.
type Message struct {
	Type    string          `json:"type"`
	FileID  string          `json:"fileId,omitempty"`
	UserID  string          `json:"userId,omitempty"`
	Changes []editor.Change `json:"changes,omitempty"`
	Users   []string        `json:"users,omitempty"` // presence: users present in FileID
}
