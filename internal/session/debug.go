package session

import "sync"

// DebugRegistry exposes live handles by name for debugging tools. A disabled
// registry ignores writes.
type DebugRegistry struct {
	enabled bool

	mu      sync.RWMutex
	handles map[string]any
}

func NewDebugRegistry(enabled bool) *DebugRegistry {
	return &DebugRegistry{enabled: enabled, handles: make(map[string]any)}
}

func (r *DebugRegistry) Set(name string, handle any) {
	if r == nil || !r.enabled {
		return
	}
	r.mu.Lock()
	r.handles[name] = handle
	r.mu.Unlock()
}

func (r *DebugRegistry) Get(name string) (any, bool) {
	if r == nil {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handles[name]
	return h, ok
}
