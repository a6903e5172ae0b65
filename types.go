package warsync

import "time"

// LobbyStatus is the server-side lifecycle phase of a lobby.
type LobbyStatus string

const (
	StatusWaiting    LobbyStatus = "waiting"
	StatusStarting   LobbyStatus = "starting"
	StatusInProgress LobbyStatus = "inProgress"
	StatusFinished   LobbyStatus = "finished"
)

// Lobby is the full metadata for one room, as pushed by the room channel.
type Lobby struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	Status      LobbyStatus `json:"status"`
	GamePath    string      `json:"gamePath"`
	CreatorID   string      `json:"creatorId"`
	EntryFee    float64     `json:"entryFee"`
	MaxPlayers  int         `json:"maxPlayers"`
	CreatedAt   time.Time   `json:"createdAt"`
}

// LobbyInfo is the browser-facing summary of a lobby on the lobby-list
// channel. It carries less than Lobby; the full record arrives only after
// joining the room.
type LobbyInfo struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Status      LobbyStatus `json:"status"`
	GamePath    string      `json:"gamePath"`
	Creator     string      `json:"creator"`
	PlayerCount int         `json:"playerCount"`
	MaxPlayers  int         `json:"maxPlayers"`
	EntryFee    float64     `json:"entryFee"`
}

// PlayerState is one entry in a room's roster, ordered by join sequence.
type PlayerState struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Address  string `json:"address"`
	Ready    bool   `json:"ready"`
	Creator  bool   `json:"creator"`
}

// JoinRequest is a pending request to enter a lobby, unique by requester id.
type JoinRequest struct {
	PlayerID    string    `json:"playerId"`
	Username    string    `json:"username"`
	Address     string    `json:"address"`
	RequestedAt time.Time `json:"requestedAt"`
}

// ChatEntry is one message in a room's append-only chat history.
type ChatEntry struct {
	ID       string    `json:"id"`
	SenderID string    `json:"senderId"`
	Sender   string    `json:"sender"`
	Text     string    `json:"text"`
	SentAt   time.Time `json:"sentAt"`
}

// ServerError is a protocol-level error pushed by the server. It never
// terminates the connection; it is surfaced on the snapshot.
type ServerError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *ServerError) Error() string {
	return e.Code + ": " + e.Message
}

// Panel is the coarse "which view to show" signal derived from lobby status.
type Panel int

const (
	PanelLobby Panel = iota
	PanelGame
)

func (p Panel) String() string {
	if p == PanelGame {
		return "game"
	}
	return "lobby"
}

// RoomSnapshot is the reconciled view of one room at a point in time.
// Lobby is nil until the first authoritative snapshot arrives from the
// server; consumers must treat nil as "not yet loaded", never as "empty".
type RoomSnapshot struct {
	Lobby        *Lobby
	Players      []PlayerState
	JoinRequests []JoinRequest
	Chat         []ChatEntry

	// GameState is owned by the resolved game plugin. It is the value last
	// returned by the plugin's HandleMessage (or InitialState before any
	// game message arrived).
	GameState any

	// Panel is the derived view signal, with any manual override applied.
	Panel Panel

	// LastError holds the most recent server-pushed protocol error, if any.
	LastError *ServerError
}

// LobbyListSnapshot is the reconciled view of the lobby browser.
type LobbyListSnapshot struct {
	Lobbies      []LobbyInfo
	Total        int
	StatusFilter []LobbyStatus
	Offset       int
	Limit        int
	LastError    *ServerError
}

// ConnState is the transport connection lifecycle state.
type ConnState int32

const (
	StateIdle ConnState = iota
	StateConnecting
	StateOpen
	StateReconnecting
	StateClosing
	StateClosed

	// StateDisconnected is terminal: the reconnect attempt budget is spent
	// and only ForceReconnect (or a fresh Start) will dial again.
	StateDisconnected
)

func (s ConnState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateReconnecting:
		return "reconnecting"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	case StateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}
