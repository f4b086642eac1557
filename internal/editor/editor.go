// Package editor is an in-process document editor handle: a record store with
// filtered change listeners, external asset and content handler registries,
// and the user's dark-mode preference.
package editor

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/Vasu1712/scenyx-editor/internal/models"
	"github.com/Vasu1712/scenyx-editor/internal/state"
)

// Source says who produced a change.
type Source string

const (
	SourceUser   Source = "user"
	SourceRemote Source = "remote"
)

// Scope classifies records. Only document records are synchronized.
type Scope string

const (
	ScopeDocument Scope = "document"
	ScopeSession  Scope = "session"
)

// Change puts or removes one record.
type Change struct {
	Scope   Scope           `json:"scope"`
	ID      string          `json:"id"`
	Record  json.RawMessage `json:"record,omitempty"`
	Deleted bool            `json:"deleted,omitempty"`
}

// ListenOptions filters the changes a listener sees. Zero values match all.
type ListenOptions struct {
	Scope  Scope
	Source Source
}

func (o ListenOptions) matches(scope Scope, source Source) bool {
	return (o.Scope == "" || o.Scope == scope) && (o.Source == "" || o.Source == source)
}

// Asset is an external asset created from a URL.
type Asset struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// AssetHandler turns an external reference into an asset.
type AssetHandler func(ctx context.Context, url string) (*Asset, error)

// ExternalContent is content dropped or pasted onto the editor.
type ExternalContent struct {
	Kind  string
	Files []models.DroppedFile
	Text  string
}

// ContentHandler consumes external content of one kind.
type ContentHandler func(ctx context.Context, content ExternalContent) error

// Remote receives user-sourced document changes for synchronization.
type Remote interface {
	Push(changes []Change) error
}

type listener struct {
	fn   func()
	opts ListenOptions
}

// Editor is safe for concurrent use. Apply calls are serialized, and every
// matching listener has returned before the next Apply begins.
type Editor struct {
	applyMu sync.Mutex

	mu              sync.RWMutex
	records         map[string]Change
	listeners       map[int]listener
	nextListener    int
	assetHandlers   map[string]AssetHandler
	contentHandlers map[string]ContentHandler
	remote          Remote

	darkMode *state.Store[bool]
}

// New creates an empty editor with the given initial dark-mode preference.
func New(dark bool) *Editor {
	return &Editor{
		records:         make(map[string]Change),
		listeners:       make(map[int]listener),
		assetHandlers:   make(map[string]AssetHandler),
		contentHandlers: make(map[string]ContentHandler),
		darkMode:        state.NewStore(dark),
	}
}

// Apply commits changes from source and then notifies matching listeners
// once per affected scope. User-sourced document changes are pushed to the
// attached remote.
func (e *Editor) Apply(source Source, changes ...Change) error {
	if len(changes) == 0 {
		return nil
	}
	e.applyMu.Lock()
	defer e.applyMu.Unlock()

	scopes := make(map[Scope]bool)
	var synced []Change
	e.mu.Lock()
	for _, c := range changes {
		if c.Deleted {
			delete(e.records, c.ID)
		} else {
			e.records[c.ID] = c
		}
		scopes[c.Scope] = true
		if c.Scope == ScopeDocument {
			synced = append(synced, c)
		}
	}
	var fns []func()
	for _, l := range e.listeners {
		for scope := range scopes {
			if l.opts.matches(scope, source) {
				fns = append(fns, l.fn)
				break
			}
		}
	}
	remote := e.remote
	e.mu.Unlock()

	for _, fn := range fns {
		fn()
	}

	if remote != nil && source == SourceUser && len(synced) > 0 {
		if err := remote.Push(synced); err != nil {
			return fmt.Errorf("push changes: %w", err)
		}
	}
	return nil
}

// Record returns the record stored under id.
func (e *Editor) Record(id string) (Change, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	c, ok := e.records[id]
	return c, ok
}

// Listen registers fn for changes matching opts.
func (e *Editor) Listen(fn func(), opts ListenOptions) (unsubscribe func()) {
	e.mu.Lock()
	id := e.nextListener
	e.nextListener++
	e.listeners[id] = listener{fn: fn, opts: opts}
	e.mu.Unlock()

	return func() {
		e.mu.Lock()
		delete(e.listeners, id)
		e.mu.Unlock()
	}
}

// Attach sets the remote that receives user-sourced document changes. A nil
// remote detaches.
func (e *Editor) Attach(remote Remote) {
	e.mu.Lock()
	e.remote = remote
	e.mu.Unlock()
}

func (e *Editor) RegisterExternalAssetHandler(kind string, h AssetHandler) {
	e.mu.Lock()
	e.assetHandlers[kind] = h
	e.mu.Unlock()
}

// CreateAsset resolves url with the asset handler registered for kind.
func (e *Editor) CreateAsset(ctx context.Context, kind, url string) (*Asset, error) {
	e.mu.RLock()
	h := e.assetHandlers[kind]
	e.mu.RUnlock()
	if h == nil {
		return nil, fmt.Errorf("no asset handler for %q", kind)
	}
	return h(ctx, url)
}

func (e *Editor) RegisterExternalContentHandler(kind string, h ContentHandler) {
	e.mu.Lock()
	e.contentHandlers[kind] = h
	e.mu.Unlock()
}

// ExternalContentHandler returns the handler currently registered for kind,
// or nil.
func (e *Editor) ExternalContentHandler(kind string) ContentHandler {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.contentHandlers[kind]
}

// PutExternalContent dispatches content to the handler for its kind. Content
// without a handler is ignored.
func (e *Editor) PutExternalContent(ctx context.Context, content ExternalContent) error {
	h := e.ExternalContentHandler(content.Kind)
	if h == nil {
		return nil
	}
	return h(ctx, content)
}

func (e *Editor) IsDarkMode() bool { return e.darkMode.Get() }

// SetDarkMode changes the user's dark-mode preference. Setting the current
// value does not notify.
func (e *Editor) SetDarkMode(dark bool) {
	if e.darkMode.Get() == dark {
		return
	}
	e.darkMode.Set(dark)
}

func (e *Editor) SubscribeDarkMode(fn func(bool)) (unsubscribe func()) {
	return e.darkMode.Subscribe(fn)
}

// Handle is the surface of an editor that session coordination relies on.
type Handle interface {
	Listen(fn func(), opts ListenOptions) (unsubscribe func())
	RegisterExternalAssetHandler(kind string, h AssetHandler)
	RegisterExternalContentHandler(kind string, h ContentHandler)
	ExternalContentHandler(kind string) ContentHandler
	IsDarkMode() bool
	SubscribeDarkMode(fn func(bool)) (unsubscribe func())
}

var _ Handle = (*Editor)(nil)
