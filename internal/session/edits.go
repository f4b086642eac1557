package session

import (
	"time"

	"go.uber.org/zap"

	"github.com/Vasu1712/scenyx-editor/internal/editor"
	"github.com/Vasu1712/scenyx-editor/internal/models"
)

// EditRecorder reports every user-sourced document change as an edit of the
// open file. openedAt is fixed for the life of the recorder so every record
// of one mount shares the same anchor.
type EditRecorder struct {
	app      App // nil without an application context
	fileID   models.FileID
	openedAt time.Time
	onChange func()
	fatal    FatalHandler
	log      *zap.Logger
}

func NewEditRecorder(app App, fileID models.FileID, openedAt time.Time, onChange func(), fatal FatalHandler, log *zap.Logger) *EditRecorder {
	if fatal == nil {
		fatal = PanicOnFatal
	}
	return &EditRecorder{
		app:      app,
		fileID:   fileID,
		openedAt: openedAt,
		onChange: onChange,
		fatal:    fatal,
		log:      log,
	}
}

// Install subscribes the recorder to user-sourced document changes of e.
func (r *EditRecorder) Install(e editor.Handle) (unsubscribe func()) {
	return e.Listen(r.HandleChange, editor.ListenOptions{
		Scope:  editor.ScopeDocument,
		Source: editor.SourceUser,
	})
}

// HandleChange records one qualifying change. The change callback runs even
// when recording fails.
func (r *EditRecorder) HandleChange() {
	if r.onChange != nil {
		defer r.onChange()
	}
	if r.app == nil {
		return
	}

	state, user, err := currentUser(r.app, "edit recorder")
	if err != nil {
		r.log.Error("cannot record edit", zap.Error(err))
		r.fatal(err)
		return
	}
	r.app.OnFileEdit(user.ID, r.fileID, state.CreatedAt, r.openedAt)
}

// OpenedAt returns the file-opened anchor reported with every edit.
func (r *EditRecorder) OpenedAt() time.Time { return r.openedAt }
