// Package client exposes the public constructors for the warsync stores.
//
// The implementations live under internal/; this package re-exports their
// configuration types and returns the root-package interfaces, so callers
// depend only on github.com/stackswars/warsync and this package.
package client

import (
	"github.com/stackswars/warsync"
	"github.com/stackswars/warsync/internal/lobbylist"
	"github.com/stackswars/warsync/internal/room"
	"github.com/stackswars/warsync/internal/transport"
)

type RoomConfig = room.Config
type LobbyBrowserConfig = lobbylist.Config
type BackoffConfig = transport.BackoffConfig

// NewRoom creates the store for one live room.
//
// Example:
//
//	reg := warsync.NewRegistry()
//	reg.Register(wordduel.New())
//
//	store, err := client.NewRoom(client.RoomConfig{
//	    URL:      "wss://api.stackswars.com/ws/rooms/" + lobbyID,
//	    GamePath: "word-duel",
//	    Registry: reg,
//	})
func NewRoom(cfg RoomConfig) (warsync.RoomStore, error) {
	if cfg.URL == "" && cfg.Conn == nil {
		return nil, errEmptyURL
	}
	return room.New(cfg), nil
}

// NewLobbyBrowser creates the store behind the lobby list view.
func NewLobbyBrowser(cfg LobbyBrowserConfig) (warsync.LobbyBrowser, error) {
	if cfg.URL == "" && cfg.Conn == nil {
		return nil, errEmptyURL
	}
	return lobbylist.New(cfg), nil
}
