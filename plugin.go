package warsync

import (
	"encoding/json"
	"sort"
	"sync"
)

// Plugin is a self-contained game module resolved by path. Plugins are
// stateless factories: each room owns its own game-state value, and the
// plugin only ever sees the value it previously returned. Plugins never
// receive transport access; outbound moves go through the host's
// SendGameIntent.
type Plugin interface {
	// Path is the unique game identifier the lobby is configured with.
	Path() string

	// InitialState returns the game-state value for a fresh room.
	InitialState() any

	// HandleMessage folds one game-envelope message into the state and
	// returns the replacement value. Called single-threaded; no concurrent
	// invocations for the same room.
	HandleMessage(state any, msg json.RawMessage) any
}

// MessageFilter is optionally implemented by plugins that want to claim
// top-level message types as game messages in addition to the game envelope.
type MessageFilter interface {
	IsGameMessage(msgType string) bool
}

// StateHydrator is optionally implemented by plugins that support
// reconnection: the host calls ApplyGameState when the server replays a full
// game state after a redial.
type StateHydrator interface {
	ApplyGameState(state any, full json.RawMessage) any
}

// Renderer is optionally implemented by plugins that can draw themselves in
// a terminal host.
type Renderer interface {
	Render(state any, width int) string
}

// Registry maps game paths to plugins. Registration happens once at
// startup; resolution happens once per room when the lobby's configured
// game path is known.
type Registry struct {
	mu      sync.RWMutex
	plugins map[string]Plugin
}

func NewRegistry() *Registry {
	return &Registry{plugins: make(map[string]Plugin)}
}

// Register adds a plugin under its path. Returns ErrDuplicatePlugin if the
// path is already taken.
func (r *Registry) Register(p Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.plugins[p.Path()]; ok {
		return ErrDuplicatePlugin
	}
	r.plugins[p.Path()] = p
	return nil
}

// Resolve returns the plugin registered under path, or ErrPluginNotFound.
func (r *Registry) Resolve(path string) (Plugin, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.plugins[path]
	if !ok {
		return nil, ErrPluginNotFound
	}
	return p, nil
}

// Paths returns the registered game paths in sorted order.
func (r *Registry) Paths() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	paths := make([]string, 0, len(r.plugins))
	for p := range r.plugins {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}
