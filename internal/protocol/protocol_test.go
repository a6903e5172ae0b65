package protocol

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stackswars/warsync"
)

func TestDecodeServerMessage(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		frame string
		want  ServerMessage
	}{
		{
			name:  "lobby state",
			frame: `{"type":"lobbyState","lobby":{"id":"l1","name":"High Rollers","status":"waiting","gamePath":"word-duel","maxPlayers":4},"players":[{"id":"p1","username":"alice"}]}`,
			want: LobbyState{
				Lobby: warsync.Lobby{ID: "l1", Name: "High Rollers", Status: warsync.StatusWaiting, GamePath: "word-duel", MaxPlayers: 4},
				Players: []warsync.PlayerState{
					{ID: "p1", Username: "alice"},
				},
			},
		},
		{
			name:  "player joined",
			frame: `{"type":"playerJoined","player":{"id":"p2","username":"bob","ready":true}}`,
			want:  PlayerJoined{Player: warsync.PlayerState{ID: "p2", Username: "bob", Ready: true}},
		},
		{
			name:  "player left",
			frame: `{"type":"playerLeft","playerId":"p2"}`,
			want:  PlayerLeft{PlayerID: "p2"},
		},
		{
			name:  "join request resolved",
			frame: `{"type":"joinRequestResolved","playerId":"p3","accepted":true}`,
			want:  JoinRequestResolved{PlayerID: "p3", Accepted: true},
		},
		{
			name:  "chat append",
			frame: `{"type":"chat","entry":{"id":"c1","senderId":"p1","sender":"alice","text":"glhf"}}`,
			want:  ChatAppend{Entry: warsync.ChatEntry{ID: "c1", SenderID: "p1", Sender: "alice", Text: "glhf"}},
		},
		{
			name:  "lobby list",
			frame: `{"type":"lobbyList","lobbyInfo":[{"id":"l1","name":"one","status":"waiting"}],"total":7}`,
			want: LobbyList{
				Lobbies: []warsync.LobbyInfo{{ID: "l1", Name: "one", Status: warsync.StatusWaiting}},
				Total:   7,
			},
		},
		{
			name:  "lobby created with lobbyInfo key",
			frame: `{"type":"lobbyCreated","lobbyInfo":{"id":"l2","name":"two","status":"waiting"}}`,
			want:  LobbyCreated{Info: warsync.LobbyInfo{ID: "l2", Name: "two", Status: warsync.StatusWaiting}},
		},
		{
			name:  "lobby created with full lobby key",
			frame: `{"type":"lobbyCreated","lobby":{"id":"l3","name":"three","status":"waiting","gamePath":"word-duel","creatorId":"p9","maxPlayers":6,"entryFee":5}}`,
			want: LobbyCreated{Info: warsync.LobbyInfo{
				ID: "l3", Name: "three", Status: warsync.StatusWaiting,
				GamePath: "word-duel", Creator: "p9", MaxPlayers: 6, EntryFee: 5,
			}},
		},
		{
			name:  "lobby removed",
			frame: `{"type":"lobbyRemoved","lobbyId":"l1"}`,
			want:  LobbyRemoved{LobbyID: "l1"},
		},
		{
			name:  "server error",
			frame: `{"type":"error","code":"lobby_full","message":"lobby is full"}`,
			want:  ServerFault{Err: warsync.ServerError{Code: "lobby_full", Message: "lobby is full"}},
		},
		{
			name:  "pong",
			frame: `{"type":"pong","ts":1712345678901}`,
			want:  Pong{SentAtMillis: 1712345678901},
		},
		{
			name:  "unknown type is not fatal",
			frame: `{"type":"somethingNew","data":42}`,
			want:  Unknown{Type: "somethingNew"},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := DecodeServerMessage([]byte(tt.frame))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecodeGameEnvelopeIsOpaque(t *testing.T) {
	t.Parallel()

	frame := `{"type":"game","game":{"kind":"turn","word":"quartz","nested":{"deep":true}}}`
	got, err := DecodeServerMessage([]byte(frame))
	require.NoError(t, err)

	env, ok := got.(GameEnvelope)
	require.True(t, ok)
	// The payload must round-trip untouched; this layer never parses it.
	assert.JSONEq(t, `{"kind":"turn","word":"quartz","nested":{"deep":true}}`, string(env.Raw))
}

func TestDecodeMalformed(t *testing.T) {
	t.Parallel()

	for _, frame := range []string{"", "{", `{"type":"playerJoined"}`, `{"type":"chat"}`} {
		_, err := DecodeServerMessage([]byte(frame))
		assert.Error(t, err, "frame %q", frame)
	}
}

func TestEncodeLobbyIntent(t *testing.T) {
	t.Parallel()

	data, err := EncodeLobbyIntent("chat", map[string]string{"text": "hello"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"chat","payload":{"text":"hello"}}`, string(data))
}

func TestEncodeGameIntentNestsUnderGameKey(t *testing.T) {
	t.Parallel()

	data, err := EncodeGameIntent("submitWord", map[string]string{"word": "quartz"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"submitWord","game":{"word":"quartz"}}`, string(data))

	var probe map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &probe))
	_, hasPayload := probe["payload"]
	assert.False(t, hasPayload, "game intents must not use the payload key")
}

func TestEncodeSubscribe(t *testing.T) {
	t.Parallel()

	data, err := EncodeSubscribe([]warsync.LobbyStatus{warsync.StatusWaiting, warsync.StatusStarting}, 12)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"subscribe","status":["waiting","starting"],"limit":12}`, string(data))
}

func TestEncodeLoadMore(t *testing.T) {
	t.Parallel()

	data, err := EncodeLoadMore(12, 12)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"loadMore","offset":12,"limit":12}`, string(data))

	// Offset zero still serializes: the server must see an explicit cursor.
	data, err = EncodeLoadMore(0, 0)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"loadMore","offset":0}`, string(data))
}

func TestEncodePing(t *testing.T) {
	t.Parallel()

	at := time.UnixMilli(1712345678901)
	data, err := EncodePing(at)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"ping","ts":1712345678901}`, string(data))
}
