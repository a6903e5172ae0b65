// Package warsync provides the realtime client layer for the Stacks Wars
// multiplayer gaming platform: WebSocket transport with automatic
// reconnection, a typed message codec, and reconciliation stores that fold
// server-pushed events into consistent snapshots.
//
// # Architecture
//
// The platform pushes state over two independent WebSocket channels. The
// lobby-list channel drives the lobby browser (a paginated, filterable list of
// open lobbies kept live via created/updated/removed deltas). The room channel
// drives one live session: lobby metadata, the player roster, join requests,
// chat, and opaque game-scoped messages forwarded to a registered game plugin.
//
// Each store owns exactly one connection. UI code never touches the socket;
// it reads snapshots and issues intents:
//
//	registry := warsync.NewRegistry()
//	registry.Register(myGamePlugin)
//
//	room, err := client.NewRoom(client.RoomConfig{
//	    URL:      "wss://api.stackswars.com/ws/rooms/" + lobbyID,
//	    GamePath: "word-duel",
//	    Registry: registry,
//	})
//	if err != nil { ... }
//
//	unsub := room.Subscribe(func(snap warsync.RoomSnapshot) {
//	    // re-render from snap; snap.Lobby is nil until the first
//	    // authoritative snapshot arrives
//	})
//	defer unsub()
//
//	if err := room.Start(ctx); err != nil { ... }
//	defer room.Stop()
//
//	room.SendLobbyIntent(ctx, "chat", map[string]string{"text": "glhf"})
//
// # Wire format
//
// Every frame is a JSON object with a "type" discriminant. Game-scoped
// messages are nested under a "game" envelope key and are never parsed by
// this layer; they are handed to the resolved plugin's HandleMessage as raw
// bytes, so each game is free to define its own shapes.
//
// Unknown message types are logged and skipped, never fatal. Server errors
// ({"type":"error","code":...,"message":...}) land in the snapshot's
// LastError field and leave the connection open.
//
// # Reconnection
//
// An unexpected close schedules a redial with exponential backoff and jitter,
// capped at a maximum delay. After the attempt limit the connection enters the
// terminal Disconnected state and stays there until ForceReconnect. A
// successful open resets the attempt counter. Caller-initiated Stop never
// triggers a redial.
//
// # Concurrency
//
// Message handling is serialized: one inbound frame is fully folded into a
// store before the next is processed. Only the store mutates its snapshot;
// subscribers receive copies. Stores are safe for concurrent reads.
//
// # Sends while disconnected
//
// Send-side calls fail fast with ErrNotConnected rather than queueing or
// silently dropping. Callers that want queueing implement it on top, where
// the retry policy belongs.
package warsync
