// Package tui is the terminal demo client: a lobby browser screen and a
// room screen driven by warsync store subscriptions.
package tui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/stackswars/warsync"
	"github.com/stackswars/warsync/client"
	"github.com/stackswars/warsync/internal/config"
	"github.com/stackswars/warsync/internal/pulse"
	"github.com/stackswars/warsync/internal/rest"
	"github.com/stackswars/warsync/internal/transport"
)

// --- Custom tea.Msg types ---

type TickMsg time.Time

type BrowserSnapshotMsg warsync.LobbyListSnapshot

type RoomSnapshotMsg warsync.RoomSnapshot

type CatalogMsg struct {
	Games  []rest.Game
	Season *rest.Season
}

type RoomJoinedMsg struct {
	Lobby string
	Store warsync.RoomStore
	Unsub func()
	Ch    chan warsync.RoomSnapshot
}

type ErrMsg struct{ Err error }

// --- Screens ---

type Screen int

const (
	ScreenBrowser Screen = iota
	ScreenRoom
)

// --- Model ---

type Model struct {
	cfg      config.Config
	registry *warsync.Registry
	api      *rest.Client

	screen Screen
	width  int
	height int

	// Lobby browser
	browser   warsync.LobbyBrowser
	browserCh chan warsync.LobbyListSnapshot
	lobbies   warsync.LobbyListSnapshot
	cursor    int
	games     map[string]rest.Game // by path
	season    *rest.Season

	// Active room
	room      warsync.RoomStore
	roomCh    chan warsync.RoomSnapshot
	roomUnsub func()
	roomSnap  warsync.RoomSnapshot
	roomLobby string
	chatInput string

	err error
}

// NewModel wires the lobby browser and starts with the browser screen. The
// room store is created on demand when the user joins a lobby.
func NewModel(cfg config.Config, registry *warsync.Registry, api *rest.Client, browser warsync.LobbyBrowser) Model {
	return Model{
		cfg:       cfg,
		registry:  registry,
		api:       api,
		browser:   browser,
		browserCh: make(chan warsync.LobbyListSnapshot, 8),
		games:     make(map[string]rest.Game),
	}
}

func (m Model) Init() tea.Cmd {
	ch := m.browserCh
	m.browser.Subscribe(func(snap warsync.LobbyListSnapshot) {
		select {
		case ch <- snap:
		default:
		}
	})
	return tea.Batch(
		tickCmd(),
		waitBrowser(ch),
		m.fetchCatalog(),
	)
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

func waitBrowser(ch chan warsync.LobbyListSnapshot) tea.Cmd {
	return func() tea.Msg {
		return BrowserSnapshotMsg(<-ch)
	}
}

func waitRoom(ch chan warsync.RoomSnapshot) tea.Cmd {
	return func() tea.Msg {
		return RoomSnapshotMsg(<-ch)
	}
}

func (m Model) fetchCatalog() tea.Cmd {
	api := m.api
	return func() tea.Msg {
		if api == nil {
			return nil
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		games, err := api.Games(ctx)
		if err != nil {
			return ErrMsg{Err: err}
		}
		season, err := api.Season(ctx)
		if err != nil {
			season = nil
		}
		return CatalogMsg{Games: games, Season: season}
	}
}

// --- Update ---

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyPress(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil
	case TickMsg:
		// Re-render so the latency indicator stays fresh.
		return m, tickCmd()

	case BrowserSnapshotMsg:
		m.lobbies = warsync.LobbyListSnapshot(msg)
		if m.cursor >= len(m.lobbies.Lobbies) {
			m.cursor = max(0, len(m.lobbies.Lobbies)-1)
		}
		return m, waitBrowser(m.browserCh)

	case RoomSnapshotMsg:
		m.roomSnap = warsync.RoomSnapshot(msg)
		if m.roomCh == nil {
			return m, nil
		}
		return m, waitRoom(m.roomCh)

	case CatalogMsg:
		for _, g := range msg.Games {
			m.games[g.Path] = g
		}
		m.season = msg.Season
		return m, nil

	case RoomJoinedMsg:
		m.screen = ScreenRoom
		m.room = msg.Store
		m.roomCh = msg.Ch
		m.roomUnsub = msg.Unsub
		m.roomLobby = msg.Lobby
		m.roomSnap = msg.Store.Snapshot()
		m.chatInput = ""
		return m, waitRoom(msg.Ch)

	case ErrMsg:
		m.err = msg.Err
		return m, nil
	}
	return m, nil
}

// --- Key handlers ---

func (m Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return m.quit()
	}

	switch m.screen {
	case ScreenBrowser:
		return m.handleBrowserKeys(msg)
	case ScreenRoom:
		return m.handleRoomKeys(msg)
	}
	return m, nil
}

func (m Model) quit() (tea.Model, tea.Cmd) {
	m.leaveRoom()
	m.browser.Stop()
	return m, tea.Quit
}

func (m Model) handleBrowserKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q":
		return m.quit()
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.lobbies.Lobbies)-1 {
			m.cursor++
		}
	case "n":
		if len(m.lobbies.Lobbies) < m.lobbies.Total {
			return m, m.loadMore()
		}
	case "r":
		m.browser.ForceReconnect()
	case "enter":
		if m.cursor < len(m.lobbies.Lobbies) {
			return m, m.joinLobby(m.lobbies.Lobbies[m.cursor])
		}
	}
	return m, nil
}

func (m Model) handleRoomKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.leaveRoom()
		m.screen = ScreenBrowser
		m.room = nil
		m.roomCh = nil
		m.roomSnap = warsync.RoomSnapshot{}
		return m, nil
	case "ctrl+r":
		if m.room != nil {
			m.room.ForceReconnect()
		}
		return m, nil
	case "ctrl+g":
		return m, m.togglePanel()
	case "ctrl+t":
		return m, m.sendTap()
	case "enter":
		return m.sendChat()
	case "backspace":
		if len(m.chatInput) > 0 {
			m.chatInput = m.chatInput[:len(m.chatInput)-1]
		}
		return m, nil
	}
	if msg.Type == tea.KeyRunes {
		m.chatInput += string(msg.Runes)
	}
	if msg.Type == tea.KeySpace {
		m.chatInput += " "
	}
	return m, nil
}

// --- Commands ---

func (m Model) loadMore() tea.Cmd {
	browser := m.browser
	offset := len(m.lobbies.Lobbies) + m.lobbies.Offset
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := browser.LoadMore(ctx, offset); err != nil {
			return ErrMsg{Err: err}
		}
		return nil
	}
}

func (m Model) joinLobby(info warsync.LobbyInfo) tea.Cmd {
	cfg := m.cfg
	registry := m.registry
	return func() tea.Msg {
		store, err := client.NewRoom(client.RoomConfig{
			URL:              cfg.WSURL + "/ws/rooms/" + info.ID,
			GamePath:         info.GamePath,
			Registry:         registry,
			ChatHistoryLimit: cfg.ChatHistoryLimit,
			Backoff: transport.BackoffConfig{
				Base:        cfg.ReconnectBase,
				Max:         cfg.ReconnectMax,
				MaxAttempts: cfg.ReconnectAttempts,
			},
			SendLimit: cfg.SendLimiter(),
		})
		if err != nil {
			return ErrMsg{Err: err}
		}

		ch := make(chan warsync.RoomSnapshot, 8)
		unsub := store.Subscribe(func(snap warsync.RoomSnapshot) {
			select {
			case ch <- snap:
			default:
			}
		})

		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := store.Start(ctx); err != nil {
			unsub()
			store.Stop()
			return ErrMsg{Err: err}
		}
		return RoomJoinedMsg{Lobby: info.ID, Store: store, Unsub: unsub, Ch: ch}
	}
}

func (m *Model) leaveRoom() {
	if m.roomUnsub != nil {
		m.roomUnsub()
		m.roomUnsub = nil
	}
	if m.room != nil {
		m.room.Stop()
	}
}

func (m Model) togglePanel() tea.Cmd {
	room := m.room
	panel := m.roomSnap.Panel
	return func() tea.Msg {
		if room == nil {
			return nil
		}
		if panel == warsync.PanelGame {
			room.SetPanelOverride(warsync.PanelLobby)
		} else {
			room.SetPanelOverride(warsync.PanelGame)
		}
		return nil
	}
}

func (m Model) sendTap() tea.Cmd {
	room := m.room
	return func() tea.Msg {
		if room == nil {
			return nil
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		msgType, payload := pulse.EncodeTap(0)
		if err := room.SendGameIntent(ctx, msgType, payload); err != nil {
			return ErrMsg{Err: err}
		}
		return nil
	}
}

func (m Model) sendChat() (tea.Model, tea.Cmd) {
	text := m.chatInput
	if text == "" || m.room == nil {
		return m, nil
	}
	m.chatInput = ""
	room := m.room
	return m, func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err := room.SendLobbyIntent(ctx, "chat", map[string]string{"text": text})
		if err != nil {
			return ErrMsg{Err: err}
		}
		return nil
	}
}
