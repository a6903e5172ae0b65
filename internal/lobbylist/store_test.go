package lobbylist

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stackswars/warsync"
)

type fakeConn struct {
	mu       sync.Mutex
	state    warsync.ConnState
	sent     [][]byte
	msgObs   []func([]byte)
	stateObs []func(warsync.ConnState)
}

func newFakeConn() *fakeConn {
	return &fakeConn{state: warsync.StateIdle}
}

func (f *fakeConn) Dial(context.Context) error {
	f.setState(warsync.StateOpen)
	return nil
}

func (f *fakeConn) Send(_ context.Context, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state != warsync.StateOpen {
		return warsync.ErrNotConnected
	}
	f.sent = append(f.sent, data)
	return nil
}

func (f *fakeConn) Close() { f.setState(warsync.StateClosed) }

func (f *fakeConn) ForceReconnect() {}

func (f *fakeConn) State() warsync.ConnState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *fakeConn) Latency() time.Duration { return 0 }

func (f *fakeConn) OnError(func(error)) func() { return func() {} }

func (f *fakeConn) OnClose(func(error)) func() { return func() {} }

func (f *fakeConn) OnMessage(fn func([]byte)) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgObs = append(f.msgObs, fn)
	return func() {}
}

func (f *fakeConn) OnStateChange(fn func(warsync.ConnState)) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stateObs = append(f.stateObs, fn)
	return func() {}
}

func (f *fakeConn) setState(s warsync.ConnState) {
	f.mu.Lock()
	f.state = s
	obs := append(([]func(warsync.ConnState))(nil), f.stateObs...)
	f.mu.Unlock()
	for _, fn := range obs {
		fn(s)
	}
}

func (f *fakeConn) deliver(t *testing.T, frame string) {
	t.Helper()
	f.mu.Lock()
	obs := append(([]func([]byte))(nil), f.msgObs...)
	f.mu.Unlock()
	for _, fn := range obs {
		fn([]byte(frame))
	}
}

func (f *fakeConn) sentFrames() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.sent))
	for i, d := range f.sent {
		out[i] = string(d)
	}
	return out
}

func newTestStore(t *testing.T) (*Store, *fakeConn) {
	t.Helper()
	conn := newFakeConn()
	s := New(Config{
		Statuses: []warsync.LobbyStatus{warsync.StatusWaiting},
		Limit:    12,
		Conn:     conn,
	})
	require.NoError(t, s.Start(context.Background()))
	t.Cleanup(s.Stop)
	return s, conn
}

func TestStartIssuesSubscribeIntent(t *testing.T) {
	t.Parallel()

	_, conn := newTestStore(t)
	frames := conn.sentFrames()
	require.Len(t, frames, 1)
	assert.JSONEq(t, `{"type":"subscribe","status":["waiting"],"limit":12}`, frames[0])
}

func TestAuthoritativeListReplacesSnapshot(t *testing.T) {
	t.Parallel()

	s, conn := newTestStore(t)
	conn.deliver(t, `{"type":"lobbyList","lobbyInfo":[{"id":"l1","name":"one","status":"waiting"}],"total":1}`)

	snap := s.Snapshot()
	require.Len(t, snap.Lobbies, 1)
	assert.Equal(t, "l1", snap.Lobbies[0].ID)
	assert.Equal(t, 1, snap.Total)

	// A later list supersedes everything, including earlier deltas.
	conn.deliver(t, `{"type":"lobbyCreated","lobbyInfo":{"id":"lx","status":"waiting"}}`)
	conn.deliver(t, `{"type":"lobbyList","lobbyInfo":[{"id":"l9","status":"waiting"}],"total":1}`)
	snap = s.Snapshot()
	require.Len(t, snap.Lobbies, 1)
	assert.Equal(t, "l9", snap.Lobbies[0].ID)
	assert.Equal(t, 1, snap.Total)
}

func TestCreatedPrependsAndIncrementsTotal(t *testing.T) {
	t.Parallel()

	s, conn := newTestStore(t)
	conn.deliver(t, `{"type":"lobbyList","lobbyInfo":[{"id":"l1","status":"waiting"}],"total":1}`)
	conn.deliver(t, `{"type":"lobbyCreated","lobby":{"id":"l2","name":"fresh","status":"waiting"}}`)

	snap := s.Snapshot()
	require.Len(t, snap.Lobbies, 2)
	assert.Equal(t, "l2", snap.Lobbies[0].ID, "created entries are prepended")
	assert.Equal(t, "l1", snap.Lobbies[1].ID)
	assert.Equal(t, 2, snap.Total)
}

func TestUpdatedIsIdempotent(t *testing.T) {
	t.Parallel()

	s, conn := newTestStore(t)
	conn.deliver(t, `{"type":"lobbyList","lobbyInfo":[{"id":"l1","name":"old","status":"waiting"},{"id":"l2","status":"waiting"}],"total":2}`)

	update := `{"type":"lobbyUpdated","lobbyInfo":{"id":"l1","name":"new","status":"starting"}}`
	conn.deliver(t, update)
	once := s.Snapshot()
	conn.deliver(t, update)
	twice := s.Snapshot()

	assert.Equal(t, once, twice, "applying the same update twice changes nothing")
	assert.Equal(t, "new", once.Lobbies[0].Name)
	assert.Equal(t, warsync.StatusStarting, once.Lobbies[0].Status)
}

func TestUpdatedOutsideWindowIsNoOp(t *testing.T) {
	t.Parallel()

	s, conn := newTestStore(t)
	conn.deliver(t, `{"type":"lobbyList","lobbyInfo":[{"id":"l1","status":"waiting"}],"total":5}`)
	before := s.Snapshot()

	conn.deliver(t, `{"type":"lobbyUpdated","lobbyInfo":{"id":"l99","status":"waiting"}}`)
	assert.Equal(t, before, s.Snapshot())
}

func TestRemovedClampsTotalAtZero(t *testing.T) {
	t.Parallel()

	s, conn := newTestStore(t)
	conn.deliver(t, `{"type":"lobbyList","lobbyInfo":[{"id":"l1","status":"waiting"}],"total":1}`)

	// Removing an id not in the window changes nothing.
	before := s.Snapshot()
	conn.deliver(t, `{"type":"lobbyRemoved","lobbyId":"l99"}`)
	assert.Equal(t, before, s.Snapshot())

	conn.deliver(t, `{"type":"lobbyRemoved","lobbyId":"l1"}`)
	snap := s.Snapshot()
	assert.Empty(t, snap.Lobbies)
	assert.Equal(t, 0, snap.Total)

	// Total never goes negative even if the server re-sends the removal
	// with the entry somehow back in the window.
	conn.deliver(t, `{"type":"lobbyList","lobbyInfo":[{"id":"l1","status":"waiting"}],"total":0}`)
	conn.deliver(t, `{"type":"lobbyRemoved","lobbyId":"l1"}`)
	assert.Equal(t, 0, s.Snapshot().Total)
}

func TestWindowMayTransientlyExceedLimit(t *testing.T) {
	t.Parallel()

	conn := newFakeConn()
	s := New(Config{Statuses: []warsync.LobbyStatus{warsync.StatusWaiting}, Limit: 2, Conn: conn})
	require.NoError(t, s.Start(context.Background()))
	t.Cleanup(s.Stop)

	conn.deliver(t, `{"type":"lobbyList","lobbyInfo":[{"id":"l1","status":"waiting"},{"id":"l2","status":"waiting"}],"total":2}`)
	conn.deliver(t, `{"type":"lobbyCreated","lobbyInfo":{"id":"l3","status":"waiting"}}`)

	// Deltas apply regardless of the pagination window; the next full
	// refresh restores the bound.
	snap := s.Snapshot()
	assert.Len(t, snap.Lobbies, 3)
	assert.Equal(t, 3, snap.Total)

	conn.deliver(t, `{"type":"lobbyList","lobbyInfo":[{"id":"l3","status":"waiting"},{"id":"l1","status":"waiting"}],"total":3}`)
	assert.Len(t, s.Snapshot().Lobbies, 2)
}

func TestLoadMore(t *testing.T) {
	t.Parallel()

	s, conn := newTestStore(t)
	conn.deliver(t, `{"type":"lobbyList","lobbyInfo":[{"id":"l1","status":"waiting"}],"total":20}`)

	require.NoError(t, s.LoadMore(context.Background(), 12))
	frames := conn.sentFrames()
	require.Len(t, frames, 2) // subscribe + loadMore
	assert.JSONEq(t, `{"type":"loadMore","offset":12,"limit":12}`, frames[1])

	conn.deliver(t, `{"type":"lobbyList","lobbyInfo":[{"id":"l13","status":"waiting"}],"total":20}`)
	snap := s.Snapshot()
	assert.Equal(t, 12, snap.Offset)
	require.Len(t, snap.Lobbies, 1)
	assert.Equal(t, "l13", snap.Lobbies[0].ID)
	assert.Equal(t, 20, snap.Total)
	assert.LessOrEqual(t, len(snap.Lobbies), snap.Limit)
}

func TestLoadMoreWhileDisconnectedKeepsOffset(t *testing.T) {
	t.Parallel()

	s, conn := newTestStore(t)
	conn.setState(warsync.StateReconnecting)

	err := s.LoadMore(context.Background(), 12)
	assert.ErrorIs(t, err, warsync.ErrNotConnected)
	assert.Equal(t, 0, s.Snapshot().Offset, "a rejected request must not move the cursor")
}

func TestSetFilterResetsPagination(t *testing.T) {
	t.Parallel()

	s, conn := newTestStore(t)
	require.NoError(t, s.LoadMore(context.Background(), 24))
	require.NoError(t, s.SetFilter(context.Background(), []warsync.LobbyStatus{warsync.StatusInProgress}, 6))

	snap := s.Snapshot()
	assert.Equal(t, 0, snap.Offset)
	assert.Equal(t, 6, snap.Limit)
	assert.Equal(t, []warsync.LobbyStatus{warsync.StatusInProgress}, snap.StatusFilter)

	frames := conn.sentFrames()
	assert.JSONEq(t, `{"type":"subscribe","status":["inProgress"],"limit":6}`, frames[len(frames)-1])
}

func TestResubscribesAfterReconnect(t *testing.T) {
	t.Parallel()

	_, conn := newTestStore(t)
	require.Len(t, conn.sentFrames(), 1)

	conn.setState(warsync.StateReconnecting)
	conn.setState(warsync.StateOpen)

	frames := conn.sentFrames()
	require.Len(t, frames, 2, "reconnect re-issues the subscription")
	assert.JSONEq(t, frames[0], frames[1])
}

func TestServerErrorSurfaces(t *testing.T) {
	t.Parallel()

	s, conn := newTestStore(t)
	conn.deliver(t, `{"type":"error","code":"bad_filter","message":"unknown status"}`)

	snap := s.Snapshot()
	require.NotNil(t, snap.LastError)
	assert.Equal(t, "bad_filter", snap.LastError.Code)
}

func TestFilterURL(t *testing.T) {
	t.Parallel()

	url := filterURL("wss://api.example.com/ws/lobbies",
		[]warsync.LobbyStatus{warsync.StatusWaiting, warsync.StatusStarting})
	assert.Equal(t, "wss://api.example.com/ws/lobbies?status=waiting%2Cstarting", url)

	assert.Equal(t, "wss://x/ws", filterURL("wss://x/ws", nil))
}
