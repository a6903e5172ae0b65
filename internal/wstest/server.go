// Package wstest provides a scripted fake Stacks Wars server for tests:
// WebSocket channels that the test pushes frames through, a drop helper to
// exercise reconnection, and canned REST fixtures.
package wstest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/stackswars/warsync/internal/rest"
)

// Server is the fake platform. Zero-value fixtures serve empty JSON.
type Server struct {
	httpSrv  *httptest.Server
	upgrader websocket.Upgrader

	// REST fixtures, set before the client calls.
	Games    []rest.Game
	Season   rest.Season
	Me       rest.Session
	MeStatus int // 0 means 200

	mu        sync.Mutex
	cur       *websocket.Conn
	writeMu   sync.Mutex
	connCount int
	connCh    chan struct{}
	inbound   chan []byte
}

// NewServer starts the fake server. Callers must Close it.
func NewServer() *Server {
	s := &Server{
		connCh:  make(chan struct{}, 16),
		inbound: make(chan []byte, 64),
	}
	r := chi.NewRouter()
	r.Get("/ws/lobbies", s.handleWS)
	r.Get("/ws/rooms/{roomID}", s.handleWS)
	r.Get("/api/games", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, s.Games)
	})
	r.Get("/api/season", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, s.Season)
	})
	r.Get("/api/me", func(w http.ResponseWriter, _ *http.Request) {
		status := s.MeStatus
		if status == 0 {
			status = http.StatusOK
		}
		if status != http.StatusOK {
			writeJSON(w, status, map[string]string{"code": "unauthorized", "message": "no session"})
			return
		}
		writeJSON(w, status, s.Me)
	})
	s.httpSrv = httptest.NewServer(r)
	return s
}

// Close shuts the server down, dropping any live connection.
func (s *Server) Close() {
	s.mu.Lock()
	if s.cur != nil {
		s.cur.Close()
		s.cur = nil
	}
	s.mu.Unlock()
	s.httpSrv.Close()
}

// BaseURL is the http:// base for REST calls.
func (s *Server) BaseURL() string { return s.httpSrv.URL }

// WSURL converts the server base to a ws:// URL for the given path.
func (s *Server) WSURL(path string) string {
	return "ws" + strings.TrimPrefix(s.httpSrv.URL, "http") + path
}

// Push marshals v and writes it to the live connection as one text frame.
func (s *Server) Push(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.PushRaw(data)
}

// PushRaw writes one raw text frame to the live connection.
func (s *Server) PushRaw(data []byte) error {
	s.mu.Lock()
	conn := s.cur
	s.mu.Unlock()
	if conn == nil {
		return websocket.ErrCloseSent
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return conn.WriteMessage(websocket.TextMessage, data)
}

// Drop force-closes the live connection without a close handshake, as a
// crashed or partitioned server would.
func (s *Server) Drop() {
	s.mu.Lock()
	conn := s.cur
	s.cur = nil
	s.mu.Unlock()
	if conn != nil {
		conn.Close()
	}
}

// ConnCount reports how many WebSocket connections were accepted in total.
func (s *Server) ConnCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connCount
}

// WaitConn blocks until the next connection is accepted or the timeout
// elapses. Returns false on timeout.
func (s *Server) WaitConn(timeout time.Duration) bool {
	select {
	case <-s.connCh:
		return true
	case <-time.After(timeout):
		return false
	}
}

// NextInbound returns the next client frame, or false on timeout.
func (s *Server) NextInbound(timeout time.Duration) ([]byte, bool) {
	select {
	case data := <-s.inbound:
		return data, true
	case <-time.After(timeout):
		return nil, false
	}
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	s.mu.Lock()
	s.cur = conn
	s.connCount++
	s.mu.Unlock()
	select {
	case s.connCh <- struct{}{}:
	default:
	}

	// Gorilla's default ping handler answers control pings, so client
	// heartbeats get pongs without any work here.
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		select {
		case s.inbound <- data:
		default:
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
