package warsync

import (
	"context"
	"time"
)

// RoomStore is the single source of truth for one live room. It owns one
// WebSocket connection, folds every server push into a RoomSnapshot, and
// forwards caller intents back over the wire. Multiple UI consumers (lobby
// panel, game panel, chat, modals) read the same store; none of them reopen
// a connection.
//
// Example usage:
//
//	room, _ := client.NewRoom(client.RoomConfig{URL: url, GamePath: "word-duel", Registry: reg})
//	defer room.Stop()
//
//	unsub := room.Subscribe(func(snap warsync.RoomSnapshot) { render(snap) })
//	defer unsub()
//
//	if err := room.Start(ctx); err != nil { ... }
type RoomStore interface {
	// Start dials the room channel and begins folding inbound messages.
	// It returns once the initial handshake succeeds or fails; reconnection
	// after that point is automatic. Calling Start on a started store
	// returns ErrAlreadyStarted.
	Start(ctx context.Context) error

	// Stop tears the store down: it unhooks all observers, cancels any
	// scheduled reconnect, and closes the owned connection. Safe to call
	// more than once.
	Stop()

	// Snapshot returns a copy of the current reconciled room state.
	Snapshot() RoomSnapshot

	// Subscribe registers fn to be called with a snapshot copy after every
	// fold. Subscribers fire synchronously in registration order. The
	// returned function removes the subscription.
	Subscribe(fn func(RoomSnapshot)) (unsubscribe func())

	// SendLobbyIntent sends a lobby-scoped {type, payload} intent.
	// Returns ErrNotConnected while the connection is not open; the caller
	// decides whether to retry or queue.
	SendLobbyIntent(ctx context.Context, msgType string, payload any) error

	// SendGameIntent sends a game-scoped intent, nested under the game
	// envelope key on the wire. Same connectivity contract as
	// SendLobbyIntent.
	SendGameIntent(ctx context.Context, msgType string, payload any) error

	// SetPanelOverride pins the visible panel regardless of the derived
	// signal. The override is cleared automatically when the lobby
	// transitions into inProgress, or explicitly via ClearPanelOverride.
	SetPanelOverride(p Panel)

	// ClearPanelOverride removes any manual panel selection.
	ClearPanelOverride()

	// Plugin returns the resolved game plugin for this room, or
	// ErrPluginNotFound when the lobby's game path has no registered
	// plugin (the UI renders a fallback in that case).
	Plugin() (Plugin, error)

	// ConnState reports the transport lifecycle state.
	ConnState() ConnState

	// Latency reports the most recent heartbeat round-trip time, or zero
	// before the first sample.
	Latency() time.Duration

	// ForceReconnect resets the reconnect attempt budget and redials
	// immediately. Intended for a user-triggered "reconnect" affordance
	// after the store reached StateDisconnected.
	ForceReconnect()
}

// LobbyBrowser is the reconciliation store behind the lobby list: a
// paginated, status-filtered window over all lobbies, kept live by
// created/updated/removed pushes.
type LobbyBrowser interface {
	// Start dials the lobby-list channel and issues the initial subscribe
	// intent for the configured filter.
	Start(ctx context.Context) error

	// Stop tears the store down. Safe to call more than once.
	Stop()

	// Snapshot returns a copy of the current list state.
	Snapshot() LobbyListSnapshot

	// Subscribe registers fn to run after every fold, in registration
	// order. The returned function removes the subscription.
	Subscribe(fn func(LobbyListSnapshot)) (unsubscribe func())

	// SetFilter re-issues the subscription with a new status filter and
	// page size. Pagination resets to offset 0; the next authoritative
	// lobbyList message replaces the snapshot wholesale.
	SetFilter(ctx context.Context, statuses []LobbyStatus, limit int) error

	// LoadMore requests the page at the given offset without changing the
	// active filter.
	LoadMore(ctx context.Context, offset int) error

	// ConnState reports the transport lifecycle state.
	ConnState() ConnState

	// Latency reports the most recent heartbeat round-trip time.
	Latency() time.Duration

	// ForceReconnect resets the attempt budget and redials immediately.
	ForceReconnect()
}
