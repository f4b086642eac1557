// Package files serves the multiplayer server's HTTP API: presence and edit
// records per file, user lookup, file import, and the per-file store socket.
package files

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/Vasu1712/scenyx-editor/internal/app"
	"github.com/Vasu1712/scenyx-editor/internal/auth"
	"github.com/Vasu1712/scenyx-editor/internal/logging"
	"github.com/Vasu1712/scenyx-editor/internal/metrics"
	"github.com/Vasu1712/scenyx-editor/internal/models"
	"github.com/Vasu1712/scenyx-editor/internal/storage"
	"github.com/Vasu1712/scenyx-editor/internal/ws"
)

// PresenceLister lists the users recorded present on a file.
type PresenceLister interface {
	PresentUsers(ctx context.Context, fileID models.FileID) ([]string, error)
}

// UserCreator registers new users.
type UserCreator interface {
	CreateUser(ctx context.Context, name string) (*models.User, error)
}

// Handler holds the dependencies of the file API.
type Handler struct {
	Users    app.UserStore
	Accounts UserCreator // optional, enables user registration
	Presence app.PresenceStore // optional, overrides Users for presence
	Files    app.FileStore
	Hub      *ws.Hub
	Verifier *auth.Verifier // nil disables token checks
	Log      *zap.Logger
	Metrics  *metrics.Metrics

	// AllowedOrigin is accepted for browser websocket upgrades in addition to
	// same-origin and non-browser clients.
	AllowedOrigin string
}

type enterRequest struct {
	UserID string `json:"userId"`
}

type editRequest struct {
	UserID           string    `json:"userId"`
	SessionStartedAt time.Time `json:"sessionStartedAt"`
	FileOpenedAt     time.Time `json:"fileOpenedAt"`
	EditedAt         time.Time `json:"editedAt"`
}

type createUserRequest struct {
	Name string `json:"name"`
}

type createFilesRequest struct {
	OwnerID   string                `json:"ownerId"`
	Snapshots []models.FileSnapshot `json:"snapshots"`
}

func (h *Handler) presence() interface {
	EnterFile(ctx context.Context, userID string, fileID models.FileID) error
	ExitFile(ctx context.Context, userID string, fileID models.FileID) error
} {
	if h.Presence != nil {
		return h.Presence
	}
	return h.Users
}

// EnterFile records that the caller is viewing the file.
func (h *Handler) EnterFile(w http.ResponseWriter, r *http.Request) {
	fileID, req, ok := h.decodePresence(w, r)
	if !ok {
		return
	}
	if err := h.presence().EnterFile(r.Context(), req.UserID, fileID); err != nil {
		h.storeError(w, "enter file", err)
		return
	}
	h.Log.Info("file entered", logging.User(req.UserID), logging.File(fileID.String()))
	h.announce(r.Context(), fileID)
	w.WriteHeader(http.StatusNoContent)
}

// ExitFile records that the caller stopped viewing the file.
func (h *Handler) ExitFile(w http.ResponseWriter, r *http.Request) {
	fileID, req, ok := h.decodePresence(w, r)
	if !ok {
		return
	}
	if err := h.presence().ExitFile(r.Context(), req.UserID, fileID); err != nil {
		h.storeError(w, "exit file", err)
		return
	}
	h.Log.Info("file exited", logging.User(req.UserID), logging.File(fileID.String()))
	h.announce(r.Context(), fileID)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) decodePresence(w http.ResponseWriter, r *http.Request) (models.FileID, enterRequest, bool) {
	var req enterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return "", req, false
	}
	fileID := models.FileID(mux.Vars(r)["fileId"])
	if req.UserID == "" || fileID.Slug() == "" {
		http.Error(w, "File ID and user ID cannot be empty", http.StatusBadRequest)
		return "", req, false
	}
	if !h.authorize(w, r, req.UserID) {
		return "", req, false
	}
	return fileID, req, true
}

// RecordEdit stores the caller's latest edit of the file.
func (h *Handler) RecordEdit(w http.ResponseWriter, r *http.Request) {
	var req editRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	fileID := models.FileID(mux.Vars(r)["fileId"])
	if req.UserID == "" || fileID.Slug() == "" {
		http.Error(w, "File ID and user ID cannot be empty", http.StatusBadRequest)
		return
	}
	if !h.authorize(w, r, req.UserID) {
		return
	}

	rec := models.EditRecord{
		UserID:           req.UserID,
		FileID:           fileID,
		SessionStartedAt: req.SessionStartedAt,
		FileOpenedAt:     req.FileOpenedAt,
		EditedAt:         req.EditedAt,
	}
	if rec.EditedAt.IsZero() {
		rec.EditedAt = time.Now()
	}
	if err := h.Users.RecordEdit(r.Context(), rec); err != nil {
		h.storeError(w, "record edit", err)
		return
	}
	h.Metrics.FileEdited()
	w.WriteHeader(http.StatusNoContent)
}

// GetUser returns a user record including its presence set.
func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userId"]
	if !h.authorize(w, r, userID) {
		return
	}

	user, err := h.Users.GetUser(r.Context(), userID)
	if err != nil {
		h.storeError(w, "get user", err)
		return
	}
	if h.Presence != nil {
		ids, err := h.Presence.FileIDs(r.Context(), userID)
		if err != nil {
			h.storeError(w, "get presence", err)
			return
		}
		user.Presence.FileIDs = ids
	}
	if user.Presence.FileIDs == nil {
		user.Presence.FileIDs = []models.FileID{}
	}
	writeJSON(w, http.StatusOK, user)
}

// CreateUser registers a user. Registration needs no token.
func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	if h.Accounts == nil {
		http.Error(w, "Registration is disabled", http.StatusNotImplemented)
		return
	}
	var req createUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		http.Error(w, "Name cannot be empty", http.StatusBadRequest)
		return
	}

	user, err := h.Accounts.CreateUser(r.Context(), req.Name)
	if err != nil {
		h.storeError(w, "create user", err)
		return
	}
	h.Log.Info("user registered", logging.User(user.ID))
	writeJSON(w, http.StatusCreated, user)
}

func (h *Handler) lister() PresenceLister {
	if l, ok := h.Presence.(PresenceLister); ok {
		return l
	}
	if l, ok := h.Users.(PresenceLister); ok {
		return l
	}
	return nil
}

// announce broadcasts the file's stored presence to its hub room.
func (h *Handler) announce(ctx context.Context, fileID models.FileID) {
	if h.Hub == nil {
		return
	}
	var recorded []string
	if lister := h.lister(); lister != nil {
		users, err := lister.PresentUsers(ctx, fileID)
		if err != nil {
			h.Log.Warn("failed to list present users", logging.File(fileID.String()), zap.Error(err))
			return
		}
		recorded = users
	}
	h.Hub.PublishPresence(fileID, recorded)
}

// PresentUsers lists the users recorded present on the file and the users
// connected to it right now.
func (h *Handler) PresentUsers(w http.ResponseWriter, r *http.Request) {
	fileID := models.FileID(mux.Vars(r)["fileId"])

	var recorded []string
	if lister := h.lister(); lister != nil {
		users, err := lister.PresentUsers(r.Context(), fileID)
		if err != nil {
			h.storeError(w, "list present users", err)
			return
		}
		recorded = users
	}
	if recorded == nil {
		recorded = []string{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"fileId":    fileID,
		"present":   recorded,
		"connected": h.Hub.Users(fileID),
	})
}

// CreateFiles imports snapshots as new files of the owner.
func (h *Handler) CreateFiles(w http.ResponseWriter, r *http.Request) {
	var req createFilesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.OwnerID == "" || len(req.Snapshots) == 0 {
		http.Error(w, "Owner ID and snapshots cannot be empty", http.StatusBadRequest)
		return
	}
	if !h.authorize(w, r, req.OwnerID) {
		return
	}

	ids, err := h.Files.CreateFiles(r.Context(), req.OwnerID, req.Snapshots)
	if err != nil {
		h.storeError(w, "create files", err)
		return
	}
	h.Metrics.FilesCreated(len(ids))
	h.Log.Info("files imported", logging.User(req.OwnerID), zap.Int("count", len(ids)))
	writeJSON(w, http.StatusCreated, map[string]interface{}{"fileIds": ids})
}

// authorize checks the bearer token belongs to userID. Without a verifier
// every request is accepted.
func (h *Handler) authorize(w http.ResponseWriter, r *http.Request, userID string) bool {
	if h.Verifier == nil {
		return true
	}
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	if token == "" {
		http.Error(w, "Missing access token", http.StatusUnauthorized)
		return false
	}
	claims, err := h.Verifier.Verify(token)
	if err != nil {
		http.Error(w, "Invalid access token", http.StatusUnauthorized)
		h.Log.Debug("rejected access token", zap.Error(err))
		return false
	}
	if claims.UserID != userID {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return false
	}
	return true
}

func (h *Handler) storeError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, storage.ErrUserNotFound):
		http.Error(w, "User not found", http.StatusNotFound)
	case errors.Is(err, storage.ErrFileNotFound):
		http.Error(w, "File not found", http.StatusNotFound)
	default:
		h.Log.Error("storage failure", zap.String("op", op), zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
