// Package room implements the reconciliation store for one live room: it
// owns the room-channel connection, folds every server push into a
// consistent RoomSnapshot, and forwards caller intents over the wire.
package room

import (
	"context"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/stackswars/warsync"
	"github.com/stackswars/warsync/internal/protocol"
	"github.com/stackswars/warsync/internal/transport"
)

// Conn is the transport surface the store depends on. *transport.Client
// satisfies it; tests substitute a scripted fake.
type Conn interface {
	Dial(ctx context.Context) error
	Send(ctx context.Context, data []byte) error
	Close()
	ForceReconnect()
	State() warsync.ConnState
	Latency() time.Duration
	OnMessage(fn func(data []byte)) func()
	OnError(fn func(err error)) func()
	OnClose(fn func(err error)) func()
	OnStateChange(fn func(s warsync.ConnState)) func()
}

// Config configures a room store.
type Config struct {
	URL    string
	Header http.Header

	// GamePath selects the plugin up front. Empty means resolve lazily
	// from the first authoritative lobby snapshot.
	GamePath string
	Registry *warsync.Registry

	// ChatHistoryLimit bounds the chat history; oldest entries are dropped
	// first. Zero means unbounded.
	ChatHistoryLimit int

	Logger    *zap.Logger
	Backoff   transport.BackoffConfig
	Heartbeat time.Duration

	// SendLimit optionally throttles outbound intents.
	SendLimit *rate.Limiter

	// Conn overrides the transport (tests). Nil builds a real one from the
	// fields above.
	Conn Conn
}

type subscriber struct {
	id uint64
	fn func(warsync.RoomSnapshot)
}

// Store is the single source of truth for one room.
type Store struct {
	log  *zap.Logger
	conn Conn
	reg  *warsync.Registry

	chatLimit int
	gamePath  string

	mu            sync.Mutex
	snap          warsync.RoomSnapshot
	plugin        warsync.Plugin
	pluginMissing bool
	override      *warsync.Panel
	started       bool
	stopped       bool
	unhooks       []func()

	subMu   sync.Mutex
	nextSub uint64
	subs    []subscriber
}

// New builds a room store. It does not connect; call Start.
func New(cfg Config) *Store {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	conn := cfg.Conn
	if conn == nil {
		conn = transport.New(transport.Config{
			URL:               cfg.URL,
			Header:            cfg.Header,
			Backoff:           cfg.Backoff,
			HeartbeatInterval: cfg.Heartbeat,
			SendLimit:         cfg.SendLimit,
			Logger:            log,
		})
	}
	s := &Store{
		log:       log.Named("room"),
		conn:      conn,
		reg:       cfg.Registry,
		chatLimit: cfg.ChatHistoryLimit,
		gamePath:  cfg.GamePath,
	}
	s.snap.Panel = warsync.PanelLobby
	if cfg.GamePath != "" {
		s.resolvePlugin(cfg.GamePath)
	}
	return s
}

// Start hooks the transport observers and dials the room channel.
func (s *Store) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return warsync.ErrAlreadyStarted
	}
	s.started = true
	s.unhooks = []func(){
		s.conn.OnMessage(s.handleFrame),
		s.conn.OnStateChange(func(warsync.ConnState) { s.notify(s.Snapshot()) }),
		s.conn.OnError(func(err error) {
			s.log.Debug("transport error", zap.Error(err))
		}),
	}
	s.mu.Unlock()

	return s.conn.Dial(ctx)
}

// Stop unhooks all observers and closes the owned connection. In-flight
// reconnect timers die with the transport. Safe to call more than once.
func (s *Store) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	unhooks := s.unhooks
	s.unhooks = nil
	s.mu.Unlock()

	for _, u := range unhooks {
		u()
	}
	s.conn.Close()
}

// Snapshot returns a copy of the current reconciled state.
func (s *Store) Snapshot() warsync.RoomSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copySnapshot(s.snap)
}

// Subscribe registers fn to run after every fold, in registration order.
func (s *Store) Subscribe(fn func(warsync.RoomSnapshot)) func() {
	s.subMu.Lock()
	s.nextSub++
	id := s.nextSub
	s.subs = append(s.subs, subscriber{id: id, fn: fn})
	s.subMu.Unlock()

	return func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		for i, sub := range s.subs {
			if sub.id == id {
				s.subs = append(s.subs[:i], s.subs[i+1:]...)
				return
			}
		}
	}
}

// SendLobbyIntent sends a lobby-scoped {type, payload} intent.
func (s *Store) SendLobbyIntent(ctx context.Context, msgType string, payload any) error {
	data, err := protocol.EncodeLobbyIntent(msgType, payload)
	if err != nil {
		return err
	}
	return s.conn.Send(ctx, data)
}

// SendGameIntent sends a game-scoped intent nested under the game envelope.
func (s *Store) SendGameIntent(ctx context.Context, msgType string, payload any) error {
	data, err := protocol.EncodeGameIntent(msgType, payload)
	if err != nil {
		return err
	}
	return s.conn.Send(ctx, data)
}

// Plugin returns the resolved game plugin, or ErrPluginNotFound when the
// configured game path has no registration (or no path is known yet).
func (s *Store) Plugin() (warsync.Plugin, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.plugin == nil {
		return nil, warsync.ErrPluginNotFound
	}
	return s.plugin, nil
}

// ConnState reports the transport lifecycle state.
func (s *Store) ConnState() warsync.ConnState { return s.conn.State() }

// Latency reports the most recent heartbeat round-trip time.
func (s *Store) Latency() time.Duration { return s.conn.Latency() }

// ForceReconnect resets the reconnect budget and redials immediately.
func (s *Store) ForceReconnect() { s.conn.ForceReconnect() }

// handleFrame decodes and folds one inbound frame. Folds are serialized:
// the transport delivers frames one at a time and the store mutex keeps any
// stragglers from a superseded socket generation out of the critical
// section.
func (s *Store) handleFrame(data []byte) {
	msg, err := protocol.DecodeServerMessage(data)
	if err != nil {
		s.log.Warn("dropping malformed frame", zap.Error(err))
		return
	}

	s.mu.Lock()
	changed := s.fold(msg, data)
	snap := copySnapshot(s.snap)
	s.mu.Unlock()

	if changed {
		s.notify(snap)
	}
}

// fold applies one typed message to the working snapshot. Caller holds mu.
// raw is the undecoded frame, needed when a plugin claims a top-level
// message type as game-scoped.
func (s *Store) fold(msg protocol.ServerMessage, raw []byte) bool {
	switch m := msg.(type) {
	case protocol.LobbyState:
		prev := s.snap.Lobby
		lobby := m.Lobby
		s.snap.Lobby = &lobby
		s.snap.Players = dedupePlayers(m.Players)
		if s.plugin == nil && !s.pluginMissing && lobby.GamePath != "" {
			s.resolvePlugin(lobby.GamePath)
		}
		s.reconcilePanel(prev)
		return true

	case protocol.PlayerJoined:
		s.snap.Players = upsertPlayer(s.snap.Players, m.Player)
		return true

	case protocol.PlayerLeft:
		s.snap.Players = removePlayer(s.snap.Players, m.PlayerID)
		return true

	case protocol.PlayerUpdated:
		// Unknown target ids are no-ops, not errors.
		s.snap.Players = replacePlayer(s.snap.Players, m.Player)
		return true

	case protocol.JoinRequestCreated:
		s.snap.JoinRequests = upsertRequest(s.snap.JoinRequests, m.Request)
		return true

	case protocol.JoinRequestResolved:
		s.snap.JoinRequests = removeRequest(s.snap.JoinRequests, m.PlayerID)
		return true

	case protocol.ChatAppend:
		s.snap.Chat = append(s.snap.Chat, m.Entry)
		if s.chatLimit > 0 && len(s.snap.Chat) > s.chatLimit {
			s.snap.Chat = s.snap.Chat[len(s.snap.Chat)-s.chatLimit:]
		}
		return true

	case protocol.ChatHistory:
		s.snap.Chat = append([]warsync.ChatEntry(nil), m.Entries...)
		if s.chatLimit > 0 && len(s.snap.Chat) > s.chatLimit {
			s.snap.Chat = s.snap.Chat[len(s.snap.Chat)-s.chatLimit:]
		}
		return true

	case protocol.GameStateFull:
		if s.plugin == nil {
			s.logMissingPlugin()
			return false
		}
		if h, ok := s.plugin.(warsync.StateHydrator); ok {
			s.snap.GameState = h.ApplyGameState(s.snap.GameState, m.Raw)
		} else {
			s.snap.GameState = s.plugin.HandleMessage(s.snap.GameState, m.Raw)
		}
		return true

	case protocol.GameEnvelope:
		if s.plugin == nil {
			s.logMissingPlugin()
			return false
		}
		s.snap.GameState = s.plugin.HandleMessage(s.snap.GameState, m.Raw)
		return true

	case protocol.ServerFault:
		err := m.Err
		s.snap.LastError = &err
		return true

	case protocol.Pong:
		// Latency is measured at the transport level.
		return false

	case protocol.Unknown:
		// A plugin may claim top-level types as game messages.
		if s.plugin != nil {
			if f, ok := s.plugin.(warsync.MessageFilter); ok && f.IsGameMessage(m.Type) {
				s.snap.GameState = s.plugin.HandleMessage(s.snap.GameState, raw)
				return true
			}
		}
		s.log.Debug("ignoring unknown message type", zap.String("type", m.Type))
		return false

	default:
		// Lobby-list messages have no meaning on the room channel.
		s.log.Debug("ignoring out-of-channel message")
		return false
	}
}

// resolvePlugin looks the game path up once and seeds the initial game
// state. Caller holds mu (or the store is not yet shared).
func (s *Store) resolvePlugin(path string) {
	if s.reg == nil {
		s.pluginMissing = true
		return
	}
	p, err := s.reg.Resolve(path)
	if err != nil {
		s.pluginMissing = true
		s.log.Warn("game plugin not registered", zap.String("gamePath", path))
		return
	}
	s.plugin = p
	s.snap.GameState = p.InitialState()
}

func (s *Store) logMissingPlugin() {
	s.log.Debug("dropping game message, no plugin resolved", zap.String("gamePath", s.gamePath))
}

func (s *Store) notify(snap warsync.RoomSnapshot) {
	s.subMu.Lock()
	fns := make([]func(warsync.RoomSnapshot), len(s.subs))
	for i, sub := range s.subs {
		fns[i] = sub.fn
	}
	s.subMu.Unlock()

	for _, fn := range fns {
		fn(snap)
	}
}

func copySnapshot(in warsync.RoomSnapshot) warsync.RoomSnapshot {
	out := in
	if in.Lobby != nil {
		lobby := *in.Lobby
		out.Lobby = &lobby
	}
	out.Players = append([]warsync.PlayerState(nil), in.Players...)
	out.JoinRequests = append([]warsync.JoinRequest(nil), in.JoinRequests...)
	out.Chat = append([]warsync.ChatEntry(nil), in.Chat...)
	if in.LastError != nil {
		e := *in.LastError
		out.LastError = &e
	}
	return out
}

func dedupePlayers(in []warsync.PlayerState) []warsync.PlayerState {
	out := make([]warsync.PlayerState, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, p := range in {
		if _, ok := seen[p.ID]; ok {
			continue
		}
		seen[p.ID] = struct{}{}
		out = append(out, p)
	}
	return out
}

func upsertPlayer(players []warsync.PlayerState, p warsync.PlayerState) []warsync.PlayerState {
	for i, existing := range players {
		if existing.ID == p.ID {
			players[i] = p
			return players
		}
	}
	return append(players, p)
}

func replacePlayer(players []warsync.PlayerState, p warsync.PlayerState) []warsync.PlayerState {
	for i, existing := range players {
		if existing.ID == p.ID {
			players[i] = p
			return players
		}
	}
	return players
}

func removePlayer(players []warsync.PlayerState, id string) []warsync.PlayerState {
	out := players[:0]
	for _, p := range players {
		if p.ID != id {
			out = append(out, p)
		}
	}
	return out
}

func upsertRequest(reqs []warsync.JoinRequest, r warsync.JoinRequest) []warsync.JoinRequest {
	for i, existing := range reqs {
		if existing.PlayerID == r.PlayerID {
			reqs[i] = r
			return reqs
		}
	}
	return append(reqs, r)
}

func removeRequest(reqs []warsync.JoinRequest, id string) []warsync.JoinRequest {
	out := reqs[:0]
	for _, r := range reqs {
		if r.PlayerID != id {
			out = append(out, r)
		}
	}
	return out
}
