// Package lobbylist implements the reconciliation store behind the lobby
// browser: a paginated, status-filtered window over all lobbies kept live
// via created/updated/removed pushes on the lobby-list channel.
package lobbylist

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/stackswars/warsync"
	"github.com/stackswars/warsync/internal/protocol"
	"github.com/stackswars/warsync/internal/room"
	"github.com/stackswars/warsync/internal/transport"
)

const defaultLimit = 12

// Config configures a lobby browser store.
type Config struct {
	URL    string
	Header http.Header

	// Statuses is the initial status filter. Empty means all statuses.
	Statuses []warsync.LobbyStatus
	// Limit is the page size. Zero means the default of 12.
	Limit int

	Logger  *zap.Logger
	Backoff transport.BackoffConfig

	// SendLimit optionally throttles outbound intents.
	SendLimit *rate.Limiter

	// Conn overrides the transport (tests).
	Conn room.Conn
}

type subscriber struct {
	id uint64
	fn func(warsync.LobbyListSnapshot)
}

// Store is the lobby browser reconciliation engine.
type Store struct {
	log  *zap.Logger
	conn room.Conn

	mu      sync.Mutex
	snap    warsync.LobbyListSnapshot
	started bool
	stopped bool
	unhooks []func()

	subMu   sync.Mutex
	nextSub uint64
	subs    []subscriber
}

// New builds a lobby browser store. It does not connect; call Start.
func New(cfg Config) *Store {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.Limit <= 0 {
		cfg.Limit = defaultLimit
	}
	conn := cfg.Conn
	if conn == nil {
		conn = transport.New(transport.Config{
			URL:       filterURL(cfg.URL, cfg.Statuses),
			Header:    cfg.Header,
			Backoff:   cfg.Backoff,
			SendLimit: cfg.SendLimit,
			Logger:    log,
		})
	}
	s := &Store{
		log:  log.Named("lobbylist"),
		conn: conn,
	}
	s.snap.StatusFilter = append([]warsync.LobbyStatus(nil), cfg.Statuses...)
	s.snap.Limit = cfg.Limit
	return s
}

// filterURL appends the comma-separated status filter as a query parameter.
func filterURL(raw string, statuses []warsync.LobbyStatus) string {
	if len(statuses) == 0 {
		return raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	parts := make([]string, len(statuses))
	for i, st := range statuses {
		parts[i] = string(st)
	}
	q := u.Query()
	q.Set("status", strings.Join(parts, ","))
	u.RawQuery = q.Encode()
	return u.String()
}

// Start dials the lobby-list channel and issues the initial subscribe
// intent. The subscription is re-issued automatically after a reconnect so
// the next authoritative list replaces any stale window.
func (s *Store) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return warsync.ErrAlreadyStarted
	}
	s.started = true
	s.unhooks = []func(){
		s.conn.OnMessage(s.handleFrame),
		s.conn.OnStateChange(s.handleStateChange),
	}
	s.mu.Unlock()

	// The subscribe intent is issued by the Open state observer, so the
	// first connect and every reconnect share one path.
	return s.conn.Dial(ctx)
}

// Stop unhooks observers and closes the owned connection.
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

// Snapshot returns a copy of the current list state.
func (s *Store) Snapshot() warsync.LobbyListSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copySnapshot(s.snap)
}

// Subscribe registers fn to run after every fold, in registration order.
func (s *Store) Subscribe(fn func(warsync.LobbyListSnapshot)) func() {
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

// SetFilter re-issues the subscription with a new status filter and page
// size, resetting pagination to offset 0. The next authoritative lobbyList
// message replaces the snapshot wholesale.
func (s *Store) SetFilter(ctx context.Context, statuses []warsync.LobbyStatus, limit int) error {
	if limit <= 0 {
		limit = defaultLimit
	}
	s.mu.Lock()
	s.snap.StatusFilter = append([]warsync.LobbyStatus(nil), statuses...)
	s.snap.Limit = limit
	s.snap.Offset = 0
	s.mu.Unlock()
	return s.sendSubscribe(ctx)
}

// LoadMore requests the page at the given offset without changing the
// active filter. The response replaces only the visible window. The
// snapshot's offset moves only once the request is on the wire; a rejected
// send leaves the pagination cursor where it was.
func (s *Store) LoadMore(ctx context.Context, offset int) error {
	s.mu.Lock()
	limit := s.snap.Limit
	s.mu.Unlock()

	data, err := protocol.EncodeLoadMore(offset, limit)
	if err != nil {
		return err
	}
	if err := s.conn.Send(ctx, data); err != nil {
		return err
	}

	s.mu.Lock()
	s.snap.Offset = offset
	s.mu.Unlock()
	return nil
}

// ConnState reports the transport lifecycle state.
func (s *Store) ConnState() warsync.ConnState { return s.conn.State() }

// Latency reports the most recent heartbeat round-trip time.
func (s *Store) Latency() time.Duration { return s.conn.Latency() }

// ForceReconnect resets the reconnect budget and redials immediately.
func (s *Store) ForceReconnect() { s.conn.ForceReconnect() }

func (s *Store) sendSubscribe(ctx context.Context) error {
	s.mu.Lock()
	statuses := append([]warsync.LobbyStatus(nil), s.snap.StatusFilter...)
	limit := s.snap.Limit
	s.mu.Unlock()

	data, err := protocol.EncodeSubscribe(statuses, limit)
	if err != nil {
		return err
	}
	return s.conn.Send(ctx, data)
}

func (s *Store) handleStateChange(state warsync.ConnState) {
	if state == warsync.StateOpen {
		s.mu.Lock()
		started := s.started && !s.stopped
		s.mu.Unlock()
		if started {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := s.sendSubscribe(ctx); err != nil {
				s.log.Warn("resubscribe after reconnect failed", zap.Error(err))
			}
		}
	}
	s.notify(s.Snapshot())
}

func (s *Store) handleFrame(data []byte) {
	msg, err := protocol.DecodeServerMessage(data)
	if err != nil {
		s.log.Warn("dropping malformed frame", zap.Error(err))
		return
	}

	s.mu.Lock()
	changed := s.fold(msg)
	snap := copySnapshot(s.snap)
	s.mu.Unlock()

	if changed {
		s.notify(snap)
	}
}

// fold applies one typed message to the working snapshot. Caller holds mu.
//
// Deltas apply regardless of the current pagination window, so the visible
// window can transiently exceed the page size by one until the next full
// refresh.
func (s *Store) fold(msg protocol.ServerMessage) bool {
	switch m := msg.(type) {
	case protocol.LobbyList:
		s.snap.Lobbies = append([]warsync.LobbyInfo(nil), m.Lobbies...)
		s.snap.Total = m.Total
		return true

	case protocol.LobbyCreated:
		s.snap.Lobbies = append([]warsync.LobbyInfo{m.Info}, s.snap.Lobbies...)
		s.snap.Total++
		return true

	case protocol.LobbyUpdated:
		for i, info := range s.snap.Lobbies {
			if info.ID == m.Info.ID {
				s.snap.Lobbies[i] = m.Info
				return true
			}
		}
		// Not in the visible window: nothing to replace.
		return false

	case protocol.LobbyRemoved:
		for i, info := range s.snap.Lobbies {
			if info.ID == m.LobbyID {
				s.snap.Lobbies = append(s.snap.Lobbies[:i], s.snap.Lobbies[i+1:]...)
				if s.snap.Total > 0 {
					s.snap.Total--
				}
				return true
			}
		}
		// Unknown id: no change, and no decrement underflow.
		return false

	case protocol.ServerFault:
		err := m.Err
		s.snap.LastError = &err
		return true

	case protocol.Pong:
		return false

	case protocol.Unknown:
		s.log.Debug("ignoring unknown message type", zap.String("type", m.Type))
		return false

	default:
		s.log.Debug("ignoring out-of-channel message")
		return false
	}
}

func (s *Store) notify(snap warsync.LobbyListSnapshot) {
	s.subMu.Lock()
	fns := make([]func(warsync.LobbyListSnapshot), len(s.subs))
	for i, sub := range s.subs {
		fns[i] = sub.fn
	}
	s.subMu.Unlock()

	for _, fn := range fns {
		fn(snap)
	}
}

func copySnapshot(in warsync.LobbyListSnapshot) warsync.LobbyListSnapshot {
	out := in
	out.Lobbies = append([]warsync.LobbyInfo(nil), in.Lobbies...)
	out.StatusFilter = append([]warsync.LobbyStatus(nil), in.StatusFilter...)
	if in.LastError != nil {
		e := *in.LastError
		out.LastError = &e
	}
	return out
}
