// Package transport owns one WebSocket connection to a Stacks Wars realtime
// channel: connect, send, receive, reconnect with backoff, heartbeat and
// teardown. It knows nothing about message semantics; raw frames are fanned
// out to registered observers.
package transport

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/stackswars/warsync"
)

const (
	defaultHandshakeTimeout  = 10 * time.Second
	defaultHeartbeatInterval = 15 * time.Second
	defaultWriteTimeout      = 10 * time.Second
	defaultPongWait          = 45 * time.Second
	defaultMaxFrameSize      = 1 * 1024 * 1024
	defaultSendBuffer        = 256
)

// Config configures a Client. Zero values fall back to defaults.
type Config struct {
	URL    string
	Header http.Header

	HandshakeTimeout  time.Duration
	HeartbeatInterval time.Duration
	WriteTimeout      time.Duration
	PongWait          time.Duration
	MaxFrameSize      int64
	SendBuffer        int

	Backoff BackoffConfig

	// SendLimit optionally throttles outbound frames.
	SendLimit *rate.Limiter

	Logger *zap.Logger
}

func (cfg Config) withDefaults() Config {
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = defaultHandshakeTimeout
	}
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = defaultHeartbeatInterval
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = defaultWriteTimeout
	}
	if cfg.PongWait <= 0 {
		cfg.PongWait = defaultPongWait
	}
	if cfg.MaxFrameSize <= 0 {
		cfg.MaxFrameSize = defaultMaxFrameSize
	}
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = defaultSendBuffer
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	cfg.Backoff = cfg.Backoff.withDefaults()
	return cfg
}

// wsConn is one live socket generation. Reconnection replaces the whole
// value, so pumps of a superseded socket can detect they are stale.
type wsConn struct {
	conn   *websocket.Conn
	sendCh chan []byte
	done   chan struct{}
}

type observer[T any] struct {
	id uint64
	fn T
}

// Client is a reconnecting WebSocket connection with observer fan-out.
// All exported methods are safe for concurrent use.
type Client struct {
	cfg Config
	log *zap.Logger
	id  string

	mu       sync.Mutex
	cur      *wsConn
	state    warsync.ConnState
	attempts int
	timer    *time.Timer
	closed   bool

	latencyNanos atomic.Int64

	obsMu     sync.Mutex
	nextObsID uint64
	msgObs    []observer[func([]byte)]
	errObs    []observer[func(error)]
	closeObs  []observer[func(error)]
	stateObs  []observer[func(warsync.ConnState)]
}

// New creates a Client for the given URL. No connection is made until Dial.
func New(cfg Config) *Client {
	cfg = cfg.withDefaults()
	return &Client{
		cfg:   cfg,
		log:   cfg.Logger.With(zap.String("url", cfg.URL)),
		id:    uuid.New().String(),
		state: warsync.StateIdle,
	}
}

// ID returns the unique identifier of this connection manager.
func (c *Client) ID() string { return c.id }

// State reports the current lifecycle state.
func (c *Client) State() warsync.ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// IsOpen reports whether frames can currently be sent.
func (c *Client) IsOpen() bool { return c.State() == warsync.StateOpen }

// Latency returns the most recent heartbeat round-trip time, or zero before
// the first pong.
func (c *Client) Latency() time.Duration {
	return time.Duration(c.latencyNanos.Load())
}

// Dial performs the initial connect. It fails if the handshake errors or
// times out; automatic reconnection only applies after a successful open.
func (c *Client) Dial(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return warsync.ErrClosed
	}
	switch c.state {
	case warsync.StateIdle, warsync.StateClosed, warsync.StateDisconnected:
	default:
		c.mu.Unlock()
		return warsync.ErrAlreadyStarted
	}
	c.state = warsync.StateConnecting
	c.mu.Unlock()
	c.notifyState(warsync.StateConnecting)

	conn, err := c.dialSocket(ctx)
	if err != nil {
		c.mu.Lock()
		if !c.closed {
			c.state = warsync.StateIdle
		}
		c.mu.Unlock()
		c.notifyState(warsync.StateIdle)
		return err
	}

	c.adopt(conn)
	return nil
}

// Send transmits one frame. It returns ErrNotConnected unless the state is
// open; intents are never silently dropped.
func (c *Client) Send(ctx context.Context, data []byte) error {
	if c.cfg.SendLimit != nil {
		if err := c.cfg.SendLimit.Wait(ctx); err != nil {
			return err
		}
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return warsync.ErrClosed
	}
	if c.state != warsync.StateOpen || c.cur == nil {
		c.mu.Unlock()
		return warsync.ErrNotConnected
	}
	w := c.cur
	c.mu.Unlock()

	select {
	case w.sendCh <- data:
		return nil
	case <-w.done:
		return warsync.ErrNotConnected
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close tears the connection down. No reconnect is scheduled; close
// observers fire once with a nil error.
func (c *Client) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	w := c.cur
	c.cur = nil
	c.state = warsync.StateClosed
	c.mu.Unlock()

	if w != nil {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = w.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		close(w.done)
		w.conn.Close()
	}
	c.notifyState(warsync.StateClosed)
	c.notifyClose(nil)
}

// ForceReconnect drops the current socket (if any), resets the attempt
// budget and redials immediately. It is the manual escape hatch from the
// terminal disconnected state.
func (c *Client) ForceReconnect() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.attempts = 0
	w := c.cur
	c.cur = nil
	c.state = warsync.StateReconnecting
	c.mu.Unlock()

	if w != nil {
		close(w.done)
		w.conn.Close()
	}
	c.notifyState(warsync.StateReconnecting)
	go c.redial()
}

// OnMessage registers an observer for raw inbound frames. Observers fire
// synchronously in registration order, one frame at a time.
func (c *Client) OnMessage(fn func(data []byte)) (unsubscribe func()) {
	return addObserver(c, &c.msgObs, fn)
}

// OnError registers an observer for transport errors (read failures, failed
// reconnect attempts, budget exhaustion).
func (c *Client) OnError(fn func(err error)) (unsubscribe func()) {
	return addObserver(c, &c.errObs, fn)
}

// OnClose registers an observer fired when the socket closes. The error is
// nil for caller-initiated closes.
func (c *Client) OnClose(fn func(err error)) (unsubscribe func()) {
	return addObserver(c, &c.closeObs, fn)
}

// OnStateChange registers an observer for lifecycle transitions.
func (c *Client) OnStateChange(fn func(s warsync.ConnState)) (unsubscribe func()) {
	return addObserver(c, &c.stateObs, fn)
}

func addObserver[T any](c *Client, list *[]observer[T], fn T) func() {
	c.obsMu.Lock()
	c.nextObsID++
	id := c.nextObsID
	*list = append(*list, observer[T]{id: id, fn: fn})
	c.obsMu.Unlock()

	return func() {
		c.obsMu.Lock()
		defer c.obsMu.Unlock()
		for i, o := range *list {
			if o.id == id {
				*list = append((*list)[:i], (*list)[i+1:]...)
				return
			}
		}
	}
}

func snapshotObservers[T any](c *Client, list *[]observer[T]) []T {
	c.obsMu.Lock()
	defer c.obsMu.Unlock()
	fns := make([]T, len(*list))
	for i, o := range *list {
		fns[i] = o.fn
	}
	return fns
}

func (c *Client) notifyMessage(data []byte) {
	for _, fn := range snapshotObservers(c, &c.msgObs) {
		fn(data)
	}
}

func (c *Client) notifyError(err error) {
	for _, fn := range snapshotObservers(c, &c.errObs) {
		fn(err)
	}
}

func (c *Client) notifyClose(err error) {
	for _, fn := range snapshotObservers(c, &c.closeObs) {
		fn(err)
	}
}

func (c *Client) notifyState(s warsync.ConnState) {
	for _, fn := range snapshotObservers(c, &c.stateObs) {
		fn(s)
	}
}

func (c *Client) dialSocket(ctx context.Context) (*websocket.Conn, error) {
	dialer := &websocket.Dialer{HandshakeTimeout: c.cfg.HandshakeTimeout}
	conn, resp, err := dialer.DialContext(ctx, c.cfg.URL, c.cfg.Header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		c.log.Debug("dial failed", zap.Error(err))
		return nil, err
	}

	conn.SetReadLimit(c.cfg.MaxFrameSize)
	conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	conn.SetPongHandler(func(appData string) error {
		conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
		if millis, perr := strconv.ParseInt(appData, 10, 64); perr == nil {
			rtt := time.Since(time.UnixMilli(millis))
			if rtt > 0 {
				c.latencyNanos.Store(int64(rtt))
			}
		}
		return nil
	})
	return conn, nil
}

// adopt installs a freshly dialed socket as the current generation and
// starts its pumps. Resets the attempt counter. A socket whose dial attempt
// was superseded while the handshake was in flight (teardown, a
// ForceReconnect, or another attempt winning the race) is discarded; only
// one generation is ever live.
func (c *Client) adopt(conn *websocket.Conn) {
	w := &wsConn{
		conn:   conn,
		sendCh: make(chan []byte, c.cfg.SendBuffer),
		done:   make(chan struct{}),
	}

	c.mu.Lock()
	if c.closed || c.state != warsync.StateConnecting || c.cur != nil {
		c.mu.Unlock()
		conn.Close()
		return
	}
	c.cur = w
	c.attempts = 0
	c.state = warsync.StateOpen
	c.mu.Unlock()

	c.log.Debug("connection open", zap.String("conn_id", c.id))
	go c.writePump(w)
	go c.readPump(w)
	c.notifyState(warsync.StateOpen)
}

// readPump delivers inbound frames to message observers until the socket
// errors, then hands off to connLost.
func (c *Client) readPump(w *wsConn) {
	for {
		_, data, err := w.conn.ReadMessage()
		if err != nil {
			c.connLost(w, err)
			return
		}
		w.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
		c.notifyMessage(data)
	}
}

// writePump drains the send channel and emits heartbeats. The heartbeat is
// a control ping carrying the client clock in Unix milliseconds; the pong
// handler turns the echo into a latency sample.
func (c *Client) writePump(w *wsConn) {
	ticker := time.NewTicker(c.cfg.HeartbeatInterval)
	defer func() {
		ticker.Stop()
		w.conn.Close()
	}()

	for {
		select {
		case msg := <-w.sendCh:
			w.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
			if err := w.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			payload := strconv.FormatInt(time.Now().UnixMilli(), 10)
			w.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
			if err := w.conn.WriteMessage(websocket.PingMessage, []byte(payload)); err != nil {
				return
			}
		case <-w.done:
			return
		}
	}
}

// connLost handles an unexpected read failure on socket generation w. Stale
// generations (already replaced by reconnect or teardown) are ignored.
func (c *Client) connLost(w *wsConn, err error) {
	c.mu.Lock()
	if c.cur != w {
		c.mu.Unlock()
		return
	}
	c.cur = nil
	close(w.done)
	w.conn.Close()

	if c.closed {
		c.mu.Unlock()
		return
	}

	attempt := c.attempts
	if c.cfg.Backoff.exhausted(attempt) {
		c.state = warsync.StateDisconnected
		c.mu.Unlock()
		c.log.Warn("connection lost, attempt budget exhausted", zap.Error(err))
		c.notifyError(err)
		c.notifyClose(err)
		c.notifyState(warsync.StateDisconnected)
		return
	}

	c.attempts++
	c.state = warsync.StateReconnecting
	delay := c.cfg.Backoff.delayWithJitter(attempt)
	c.timer = time.AfterFunc(delay, c.redial)
	c.mu.Unlock()

	c.log.Info("connection lost, reconnect scheduled",
		zap.Error(err), zap.Int("attempt", attempt+1), zap.Duration("delay", delay))

	if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		c.notifyError(err)
	}
	c.notifyClose(err)
	c.notifyState(warsync.StateReconnecting)
}

// redial is driven by the backoff timer (and ForceReconnect).
func (c *Client) redial() {
	c.mu.Lock()
	if c.closed || c.state != warsync.StateReconnecting {
		c.mu.Unlock()
		return
	}
	c.state = warsync.StateConnecting
	c.mu.Unlock()
	c.notifyState(warsync.StateConnecting)

	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.HandshakeTimeout)
	conn, err := c.dialSocket(ctx)
	cancel()
	if err == nil {
		c.adopt(conn)
		return
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	attempt := c.attempts
	if c.cfg.Backoff.exhausted(attempt) {
		c.state = warsync.StateDisconnected
		c.mu.Unlock()
		c.log.Warn("reconnect attempts exhausted", zap.Error(err))
		c.notifyError(err)
		c.notifyState(warsync.StateDisconnected)
		return
	}
	c.attempts++
	c.state = warsync.StateReconnecting
	delay := c.cfg.Backoff.delayWithJitter(attempt)
	c.timer = time.AfterFunc(delay, c.redial)
	c.mu.Unlock()

	c.log.Info("reconnect failed, retrying",
		zap.Error(err), zap.Int("attempt", attempt+1), zap.Duration("delay", delay))
	c.notifyError(err)
	c.notifyState(warsync.StateReconnecting)
}
