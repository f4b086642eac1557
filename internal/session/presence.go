package session

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/Vasu1712/scenyx-editor/internal/logging"
	"github.com/Vasu1712/scenyx-editor/internal/metrics"
	"github.com/Vasu1712/scenyx-editor/internal/models"
)

// DefaultQuietPeriod is how long a user must stay on a file before an enter
// signal is sent.
const DefaultQuietPeriod = time.Second

// PresencePhase is the state of one presence activation.
type PresencePhase int

const (
	PresenceIdle PresencePhase = iota
	PresencePending
	PresenceEntered
	PresenceExited
)

func (p PresencePhase) String() string {
	switch p {
	case PresenceIdle:
		return "idle"
	case PresencePending:
		return "pending_enter"
	case PresenceEntered:
		return "entered"
	case PresenceExited:
		return "exited"
	default:
		return "unknown"
	}
}

// PresenceTracker signals, after a quiet period, that a user is viewing a
// file, and signals departure on teardown only if the enter was sent.
// A tracker covers exactly one activation.
type PresenceTracker struct {
	app     App
	userID  string
	fileID  models.FileID
	log     *zap.Logger
	metrics *metrics.Metrics

	mu     sync.Mutex
	phase  PresencePhase
	timer  clockwork.Timer
	closed bool
}

// ActivatePresence starts a presence activation for the session's user on
// fileID. If the user is already recorded present the tracker stays idle and
// nothing is scheduled.
func ActivatePresence(app App, fileID models.FileID, clock clockwork.Clock, quiet time.Duration, log *zap.Logger, m *metrics.Metrics) (*PresenceTracker, error) {
	state, user, err := currentUser(app, "presence")
	if err != nil {
		return nil, err
	}

	p := &PresenceTracker{
		app:     app,
		userID:  state.Auth.UserID,
		fileID:  fileID,
		log:     log.With(logging.User(state.Auth.UserID), logging.File(fileID.String())),
		metrics: m,
	}

	if user.Presence.Has(fileID) {
		p.log.Debug("user already present, enter suppressed")
		return p, nil
	}

	p.mu.Lock()
	p.phase = PresencePending
	p.timer = clock.AfterFunc(quiet, p.fire)
	p.mu.Unlock()

	p.log.Debug("presence pending", zap.Duration("quiet_period", quiet))
	return p, nil
}

// fire runs when the quiet period elapses. The lock is held across the enter
// call so a concurrent Teardown observes Entered only after it was sent.
func (p *PresenceTracker) fire() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.phase != PresencePending {
		return
	}
	p.phase = PresenceEntered
	p.app.OnFileEnter(p.userID, p.fileID)
	p.metrics.PresenceEntered()
	p.log.Debug("presence entered")
}

// Teardown ends the activation: a pending enter is canceled silently, a sent
// enter is matched by exactly one exit. Further calls do nothing.
func (p *PresenceTracker) Teardown() {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}
	p.closed = true

	switch p.phase {
	case PresencePending:
		p.timer.Stop()
		p.phase = PresenceIdle
		p.metrics.PresenceCanceled()
		p.log.Debug("presence canceled before quiet period")
	case PresenceEntered:
		p.phase = PresenceExited
		p.app.OnFileExit(p.userID, p.fileID)
		p.metrics.PresenceExited()
		p.log.Debug("presence exited")
	}
}

// Phase returns the current state of the activation.
func (p *PresenceTracker) Phase() PresencePhase {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.phase
}
