package session

import (
	"context"
	"time"

	"github.com/Vasu1712/scenyx-editor/internal/editor"
	"github.com/Vasu1712/scenyx-editor/internal/models"
)

// App is the application handle a session coordinates with.
type App interface {
	SessionState() models.SessionState
	SetSessionState(models.SessionState)
	SubscribeSessionState(fn func(models.SessionState)) (unsubscribe func())
	User(userID string) (*models.User, bool)
	SetCurrentEditor(editor.Handle)
	OnFileEdit(userID string, fileID models.FileID, sessionCreatedAt, fileOpenedAt time.Time)
	OnFileEnter(userID string, fileID models.FileID)
	OnFileExit(userID string, fileID models.FileID)
	CreateFilesFromSnapshots(ctx context.Context, snapshots []models.FileSnapshot) ([]models.FileID, error)
}

// currentUser resolves the authenticated user of app's session. Both lookups
// must succeed once an application handle exists.
func currentUser(app App, op string) (models.SessionState, *models.User, error) {
	state := app.SessionState()
	if state.Auth == nil {
		return state, nil, &InvariantError{Op: op, Err: ErrAuthNotFound}
	}
	user, ok := app.User(state.Auth.UserID)
	if !ok || user == nil {
		return state, nil, &InvariantError{Op: op, Err: ErrUserNotFound}
	}
	return state, user, nil
}
