package protocol

import (
	"encoding/json"

	"github.com/stackswars/warsync"
)

// MessageType is the "type" discriminant carried by every frame.
type MessageType string

// Server -> client, room channel.
const (
	MsgLobbyState          MessageType = "lobbyState"
	MsgPlayerJoined        MessageType = "playerJoined"
	MsgPlayerLeft          MessageType = "playerLeft"
	MsgPlayerUpdated       MessageType = "playerUpdated"
	MsgJoinRequest         MessageType = "joinRequest"
	MsgJoinRequestResolved MessageType = "joinRequestResolved"
	MsgChat                MessageType = "chat"
	MsgChatHistory         MessageType = "chatHistory"
	MsgGameState           MessageType = "gameState"
	MsgGame                MessageType = "game"
)

// Server -> client, lobby-list channel.
const (
	MsgLobbyList    MessageType = "lobbyList"
	MsgLobbyCreated MessageType = "lobbyCreated"
	MsgLobbyUpdated MessageType = "lobbyUpdated"
	MsgLobbyRemoved MessageType = "lobbyRemoved"
)

// Both channels.
const (
	MsgError MessageType = "error"
	MsgPong  MessageType = "pong"
)

// Client -> server.
const (
	MsgSubscribe MessageType = "subscribe"
	MsgLoadMore  MessageType = "loadMore"
	MsgPing      MessageType = "ping"
)

// ServerMessage is the closed set of parsed inbound frames. The zero value
// of each variant is never produced; DecodeServerMessage is the only
// constructor.
type ServerMessage interface{ isServerMessage() }

// LobbyState is the authoritative full snapshot of a room's lobby and
// roster. It supersedes all earlier deltas.
type LobbyState struct {
	Lobby   warsync.Lobby
	Players []warsync.PlayerState
}

// PlayerJoined appends a player to the roster.
type PlayerJoined struct{ Player warsync.PlayerState }

// PlayerLeft removes a player by id.
type PlayerLeft struct{ PlayerID string }

// PlayerUpdated replaces a roster entry by id.
type PlayerUpdated struct{ Player warsync.PlayerState }

// JoinRequestCreated adds a pending join request.
type JoinRequestCreated struct{ Request warsync.JoinRequest }

// JoinRequestResolved removes a pending join request. Accepted reports how
// it was resolved.
type JoinRequestResolved struct {
	PlayerID string
	Accepted bool
}

// ChatAppend appends one entry to the chat history.
type ChatAppend struct{ Entry warsync.ChatEntry }

// ChatHistory replaces the chat history wholesale (sent on join/rejoin).
type ChatHistory struct{ Entries []warsync.ChatEntry }

// GameStateFull carries a full opaque game state for reconnection
// hydration. The payload is not parsed by this layer.
type GameStateFull struct{ Raw json.RawMessage }

// GameEnvelope carries one opaque game-scoped message for the active
// plugin. The payload is not parsed by this layer.
type GameEnvelope struct{ Raw json.RawMessage }

// LobbyList is the authoritative window of the lobby browser.
type LobbyList struct {
	Lobbies []warsync.LobbyInfo
	Total   int
}

// LobbyCreated prepends a lobby to the browser window.
type LobbyCreated struct{ Info warsync.LobbyInfo }

// LobbyUpdated replaces a browser entry by id.
type LobbyUpdated struct{ Info warsync.LobbyInfo }

// LobbyRemoved drops a browser entry by id.
type LobbyRemoved struct{ LobbyID string }

// ServerFault is a protocol-level error push. The connection stays open.
type ServerFault struct{ Err warsync.ServerError }

// Pong echoes the client timestamp from the matching ping, in Unix
// milliseconds.
type Pong struct{ SentAtMillis int64 }

// Unknown is produced for any unrecognized type discriminant. Callers log
// and drop it; it is never an error.
type Unknown struct{ Type string }

func (LobbyState) isServerMessage()          {}
func (PlayerJoined) isServerMessage()        {}
func (PlayerLeft) isServerMessage()          {}
func (PlayerUpdated) isServerMessage()       {}
func (JoinRequestCreated) isServerMessage()  {}
func (JoinRequestResolved) isServerMessage() {}
func (ChatAppend) isServerMessage()          {}
func (ChatHistory) isServerMessage()         {}
func (GameStateFull) isServerMessage()       {}
func (GameEnvelope) isServerMessage()        {}
func (LobbyList) isServerMessage()           {}
func (LobbyCreated) isServerMessage()        {}
func (LobbyUpdated) isServerMessage()        {}
func (LobbyRemoved) isServerMessage()        {}
func (ServerFault) isServerMessage()         {}
func (Pong) isServerMessage()                {}
func (Unknown) isServerMessage()             {}
