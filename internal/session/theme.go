package session

import (
	"go.uber.org/zap"

	"github.com/Vasu1712/scenyx-editor/internal/editor"
	"github.com/Vasu1712/scenyx-editor/internal/metrics"
	"github.com/Vasu1712/scenyx-editor/internal/models"
)

// ThemeReconciler mirrors the editor's dark-mode preference into the
// application session state. It never writes to the editor.
type ThemeReconciler struct {
	app     App
	editor  editor.Handle
	log     *zap.Logger
	metrics *metrics.Metrics
}

func NewThemeReconciler(app App, e editor.Handle, log *zap.Logger, m *metrics.Metrics) *ThemeReconciler {
	return &ThemeReconciler{app: app, editor: e, log: log, metrics: m}
}

// Reconcile compares both preferences once and writes the session state only
// when they differ. It reports whether a write happened.
func (r *ThemeReconciler) Reconcile() bool {
	if r.app == nil {
		return false
	}

	state := r.app.SessionState()
	appIsDark := state.Theme.IsDark()
	editorIsDark := r.editor.IsDarkMode()

	var theme models.Theme
	switch {
	case appIsDark && !editorIsDark:
		theme = models.ThemeLight
	case !appIsDark && editorIsDark:
		theme = models.ThemeDark
	default:
		return false
	}

	r.app.SetSessionState(state.WithTheme(theme))
	r.metrics.ThemeSynced()
	r.log.Debug("session theme synced from editor", zap.String("theme", string(theme)))
	return true
}

// Start reconciles now and again after every change to either preference.
// The session write triggers one more evaluation, which finds the two in
// agreement and stops.
func (r *ThemeReconciler) Start() (stop func()) {
	if r.app == nil {
		return func() {}
	}
	unsubEditor := r.editor.SubscribeDarkMode(func(bool) { r.Reconcile() })
	unsubApp := r.app.SubscribeSessionState(func(models.SessionState) { r.Reconcile() })
	r.Reconcile()
	return func() {
		unsubEditor()
		unsubApp()
	}
}

// ThemeSink applies the editor theme to the host surface, e.g. a CSS class on
// the document body.
type ThemeSink interface {
	ApplyTheme(theme models.Theme)
}

// startThemeUpdater pushes the editor's theme to sink now and on every change.
func startThemeUpdater(e editor.Handle, sink ThemeSink) (stop func()) {
	apply := func(dark bool) {
		if dark {
			sink.ApplyTheme(models.ThemeDark)
		} else {
			sink.ApplyTheme(models.ThemeLight)
		}
	}
	unsubscribe := e.SubscribeDarkMode(apply)
	apply(e.IsDarkMode())
	return unsubscribe
}
