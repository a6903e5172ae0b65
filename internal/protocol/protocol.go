// Package protocol parses inbound Stacks Wars frames into a closed set of
// typed server messages and serializes outbound client intents. Frames
// nested under the "game" envelope key are never parsed here; they are
// forwarded opaquely to the active game plugin.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/stackswars/warsync"
)

const maxFrameSize = 1 * 1024 * 1024 // 1MB max frame size

var errEmptyFrame = errors.New("empty frame")

// frame is the superset of top-level keys across all server messages. One
// unmarshal, then a switch on the discriminant.
type frame struct {
	Type MessageType `json:"type"`

	Lobby     *warsync.Lobby        `json:"lobby,omitempty"`
	Players   []warsync.PlayerState `json:"players,omitempty"`
	Player    *warsync.PlayerState  `json:"player,omitempty"`
	PlayerID  string                `json:"playerId,omitempty"`
	Accepted  bool                  `json:"accepted,omitempty"`
	Request   *warsync.JoinRequest  `json:"request,omitempty"`
	Entry     *warsync.ChatEntry    `json:"entry,omitempty"`
	Entries   []warsync.ChatEntry   `json:"entries,omitempty"`
	Game      json.RawMessage       `json:"game,omitempty"`
	LobbyInfo json.RawMessage       `json:"lobbyInfo,omitempty"` // array on lobbyList, object on deltas
	Total     int                   `json:"total,omitempty"`
	LobbyID   string                `json:"lobbyId,omitempty"`
	Code      string                `json:"code,omitempty"`
	Message   string                `json:"message,omitempty"`
	TS        int64                 `json:"ts,omitempty"`
}

// DecodeServerMessage parses one inbound frame. Malformed JSON and
// oversized frames return an error; an unrecognized type discriminant
// returns Unknown with a nil error so the read loop keeps going.
func DecodeServerMessage(data []byte) (ServerMessage, error) {
	if len(data) == 0 {
		return nil, errEmptyFrame
	}
	if len(data) > maxFrameSize {
		return nil, fmt.Errorf("frame size %d exceeds maximum %d bytes", len(data), maxFrameSize)
	}

	var f frame
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}

	switch f.Type {
	case MsgLobbyState:
		msg := LobbyState{Players: f.Players}
		if f.Lobby != nil {
			msg.Lobby = *f.Lobby
		}
		return msg, nil

	case MsgPlayerJoined:
		if f.Player == nil {
			return nil, fmt.Errorf("%s: missing player", f.Type)
		}
		return PlayerJoined{Player: *f.Player}, nil

	case MsgPlayerLeft:
		return PlayerLeft{PlayerID: f.PlayerID}, nil

	case MsgPlayerUpdated:
		if f.Player == nil {
			return nil, fmt.Errorf("%s: missing player", f.Type)
		}
		return PlayerUpdated{Player: *f.Player}, nil

	case MsgJoinRequest:
		if f.Request == nil {
			return nil, fmt.Errorf("%s: missing request", f.Type)
		}
		return JoinRequestCreated{Request: *f.Request}, nil

	case MsgJoinRequestResolved:
		return JoinRequestResolved{PlayerID: f.PlayerID, Accepted: f.Accepted}, nil

	case MsgChat:
		if f.Entry == nil {
			return nil, fmt.Errorf("%s: missing entry", f.Type)
		}
		return ChatAppend{Entry: *f.Entry}, nil

	case MsgChatHistory:
		return ChatHistory{Entries: f.Entries}, nil

	case MsgGameState:
		return GameStateFull{Raw: f.Game}, nil

	case MsgGame:
		return GameEnvelope{Raw: f.Game}, nil

	case MsgLobbyList:
		var infos []warsync.LobbyInfo
		if len(f.LobbyInfo) > 0 {
			if err := json.Unmarshal(f.LobbyInfo, &infos); err != nil {
				return nil, fmt.Errorf("%s: decode lobbyInfo: %w", f.Type, err)
			}
		}
		return LobbyList{Lobbies: infos, Total: f.Total}, nil

	case MsgLobbyCreated:
		info, err := decodeSingleLobbyInfo(f)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", f.Type, err)
		}
		return LobbyCreated{Info: info}, nil

	case MsgLobbyUpdated:
		info, err := decodeSingleLobbyInfo(f)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", f.Type, err)
		}
		return LobbyUpdated{Info: info}, nil

	case MsgLobbyRemoved:
		return LobbyRemoved{LobbyID: f.LobbyID}, nil

	case MsgError:
		return ServerFault{Err: warsync.ServerError{Code: f.Code, Message: f.Message}}, nil

	case MsgPong:
		return Pong{SentAtMillis: f.TS}, nil

	default:
		return Unknown{Type: string(f.Type)}, nil
	}
}

// decodeSingleLobbyInfo handles the two shapes lobby deltas arrive in: a
// summary under "lobbyInfo" or a full record under "lobby".
func decodeSingleLobbyInfo(f frame) (warsync.LobbyInfo, error) {
	if len(f.LobbyInfo) > 0 {
		var info warsync.LobbyInfo
		if err := json.Unmarshal(f.LobbyInfo, &info); err != nil {
			return warsync.LobbyInfo{}, err
		}
		return info, nil
	}
	if f.Lobby != nil {
		return warsync.LobbyInfo{
			ID:         f.Lobby.ID,
			Name:       f.Lobby.Name,
			Status:     f.Lobby.Status,
			GamePath:   f.Lobby.GamePath,
			Creator:    f.Lobby.CreatorID,
			MaxPlayers: f.Lobby.MaxPlayers,
			EntryFee:   f.Lobby.EntryFee,
		}, nil
	}
	return warsync.LobbyInfo{}, errors.New("missing lobbyInfo and lobby")
}

// EncodeLobbyIntent serializes a lobby-scoped client intent.
func EncodeLobbyIntent(msgType string, payload any) ([]byte, error) {
	return json.Marshal(struct {
		Type    string `json:"type"`
		Payload any    `json:"payload,omitempty"`
	}{Type: msgType, Payload: payload})
}

// EncodeGameIntent serializes a game-scoped client intent, nesting the
// payload under the game envelope key.
func EncodeGameIntent(msgType string, payload any) ([]byte, error) {
	return json.Marshal(struct {
		Type string `json:"type"`
		Game any    `json:"game,omitempty"`
	}{Type: msgType, Game: payload})
}

// EncodeSubscribe serializes the lobby-list subscription intent.
func EncodeSubscribe(statuses []warsync.LobbyStatus, limit int) ([]byte, error) {
	return json.Marshal(struct {
		Type   string                `json:"type"`
		Status []warsync.LobbyStatus `json:"status,omitempty"`
		Limit  int                   `json:"limit,omitempty"`
	}{Type: string(MsgSubscribe), Status: statuses, Limit: limit})
}

// EncodeLoadMore serializes a pagination request at the given offset.
func EncodeLoadMore(offset, limit int) ([]byte, error) {
	return json.Marshal(struct {
		Type   string `json:"type"`
		Offset int    `json:"offset"`
		Limit  int    `json:"limit,omitempty"`
	}{Type: string(MsgLoadMore), Offset: offset, Limit: limit})
}

// EncodePing serializes a heartbeat carrying the client clock in Unix
// milliseconds; the server echoes it back in the matching pong.
func EncodePing(at time.Time) ([]byte, error) {
	return json.Marshal(struct {
		Type string `json:"type"`
		TS   int64  `json:"ts"`
	}{Type: string(MsgPing), TS: at.UnixMilli()})
}
