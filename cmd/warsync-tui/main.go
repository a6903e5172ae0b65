package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/stackswars/warsync"
	"github.com/stackswars/warsync/client"
	"github.com/stackswars/warsync/internal/config"
	"github.com/stackswars/warsync/internal/pulse"
	"github.com/stackswars/warsync/internal/rest"
	"github.com/stackswars/warsync/internal/transport"
	"github.com/stackswars/warsync/internal/tui"
)

func main() {
	cfg := config.Load()

	registry := warsync.NewRegistry()
	if err := registry.Register(pulse.New()); err != nil {
		fmt.Fprintf(os.Stderr, "register plugin: %v\n", err)
		os.Exit(1)
	}

	api, err := rest.New(rest.Config{BaseURL: cfg.APIURL, Token: cfg.AuthToken})
	if err != nil {
		fmt.Fprintf(os.Stderr, "rest client: %v\n", err)
		os.Exit(1)
	}

	var header http.Header
	if cfg.AuthToken != "" {
		header = http.Header{"Authorization": {"Bearer " + cfg.AuthToken}}
	}

	browser, err := client.NewLobbyBrowser(client.LobbyBrowserConfig{
		URL:      cfg.WSURL + "/ws/lobbies",
		Header:   header,
		Statuses: []warsync.LobbyStatus{warsync.StatusWaiting, warsync.StatusStarting},
		Limit:    cfg.LobbyPageSize,
		Backoff: transport.BackoffConfig{
			Base:        cfg.ReconnectBase,
			Max:         cfg.ReconnectMax,
			MaxAttempts: cfg.ReconnectAttempts,
		},
		SendLimit: cfg.SendLimiter(),
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "lobby browser: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	err = browser.Start(ctx)
	cancel()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to connect to %s: %v\n", cfg.WSURL, err)
		os.Exit(1)
	}
	defer browser.Stop()

	model := tui.NewModel(cfg, registry, api, browser)
	p := tea.NewProgram(model, tea.WithAltScreen())

	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
