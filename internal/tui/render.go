package tui

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/stackswars/warsync"
)

var (
	headerStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	selectedStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("14"))
	errStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	readyMark     = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Render("[✓]")
	notReadyMark  = dimStyle.Render("[ ]")
	panelStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	helpStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).MarginTop(1)
)

const chatTail = 8

// --- View ---

func (m Model) View() string {
	var body string
	switch m.screen {
	case ScreenBrowser:
		body = m.renderBrowser()
	case ScreenRoom:
		body = m.renderRoom()
	}

	out := m.renderHeader() + "\n" + body
	if m.err != nil {
		out += "\n" + errStyle.Render("error: "+m.err.Error())
	}
	if m.width > 0 {
		return lipgloss.NewStyle().MaxWidth(m.width).Render(out)
	}
	return out
}

func (m Model) renderHeader() string {
	title := "STACKS WARS"
	if m.season != nil {
		title += " · " + m.season.Name
	}

	var state warsync.ConnState
	var latency time.Duration
	if m.screen == ScreenRoom && m.room != nil {
		state = m.room.ConnState()
		latency = m.room.Latency()
	} else {
		state = m.browser.ConnState()
		latency = m.browser.Latency()
	}

	status := state.String()
	if state == warsync.StateOpen && latency > 0 {
		status = fmt.Sprintf("%s · %dms", status, latency.Milliseconds())
	}
	return headerStyle.Render(title) + "  " + dimStyle.Render(status)
}

// --- Browser screen ---

func (m Model) renderBrowser() string {
	var b strings.Builder

	if len(m.lobbies.Lobbies) == 0 {
		b.WriteString(dimStyle.Render("no open lobbies"))
		b.WriteString("\n")
	}
	for i, lobby := range m.lobbies.Lobbies {
		line := formatLobbyLine(lobby, m.games[lobby.GamePath].Name)
		if i == m.cursor {
			line = selectedStyle.Render("> " + line)
		} else {
			line = "  " + line
		}
		b.WriteString(line)
		b.WriteString("\n")
	}

	b.WriteString(dimStyle.Render(fmt.Sprintf("\nshowing %d of %d", len(m.lobbies.Lobbies), m.lobbies.Total)))
	if m.lobbies.LastError != nil {
		b.WriteString("\n" + errStyle.Render(m.lobbies.LastError.Error()))
	}
	b.WriteString(helpStyle.Render("\n↑/↓ select · enter join · n more · r reconnect · q quit"))
	return b.String()
}

func formatLobbyLine(lobby warsync.LobbyInfo, gameName string) string {
	if gameName == "" {
		gameName = lobby.GamePath
	}
	fee := ""
	if lobby.EntryFee > 0 {
		fee = fmt.Sprintf(" · %.0f STX", lobby.EntryFee)
	}
	return fmt.Sprintf("%-24s %-12s %d/%d · %s%s",
		lobby.Name, lobby.Status, lobby.PlayerCount, lobby.MaxPlayers, gameName, fee)
}

// --- Room screen ---

func (m Model) renderRoom() string {
	var body string
	if m.roomSnap.Panel == warsync.PanelGame {
		body = m.renderGamePanel()
	} else {
		body = m.renderLobbyPanel()
	}

	if m.roomSnap.LastError != nil {
		body += "\n" + errStyle.Render(m.roomSnap.LastError.Error())
	}
	body += helpStyle.Render("\nesc leave · ctrl+g flip panel · ctrl+t tap · ctrl+r reconnect")
	return body
}

func (m Model) renderLobbyPanel() string {
	var b strings.Builder

	if lobby := m.roomSnap.Lobby; lobby != nil {
		b.WriteString(headerStyle.Render(lobby.Name))
		b.WriteString(dimStyle.Render(fmt.Sprintf("  %s · %s\n\n", lobby.Status, lobby.GamePath)))
	} else {
		b.WriteString(dimStyle.Render("joining...\n\n"))
	}

	for _, p := range m.roomSnap.Players {
		mark := notReadyMark
		if p.Ready {
			mark = readyMark
		}
		name := p.Username
		if p.Creator {
			name += " (host)"
		}
		b.WriteString(fmt.Sprintf("%s %s\n", mark, name))
	}

	if len(m.roomSnap.JoinRequests) > 0 {
		b.WriteString(dimStyle.Render("\npending join requests\n"))
		for _, jr := range m.roomSnap.JoinRequests {
			b.WriteString(dimStyle.Render(fmt.Sprintf("  %s\n", jr.Username)))
		}
	}

	b.WriteString("\n" + m.renderChat())
	return panelStyle.Render(b.String())
}

func (m Model) renderGamePanel() string {
	content := m.renderGameState()
	return panelStyle.Render(content + "\n\n" + m.renderChat())
}

// renderGameState asks the resolved plugin to draw itself when it can;
// otherwise it falls back to the raw state.
func (m Model) renderGameState() string {
	if m.room == nil {
		return dimStyle.Render("no game")
	}
	plugin, err := m.room.Plugin()
	if err != nil {
		return dimStyle.Render("no plugin for this game: " + err.Error())
	}
	if r, ok := plugin.(warsync.Renderer); ok {
		return r.Render(m.roomSnap.GameState, m.width-4)
	}
	data, err := json.MarshalIndent(m.roomSnap.GameState, "", "  ")
	if err != nil {
		return dimStyle.Render("unrenderable game state")
	}
	return string(data)
}

func (m Model) renderChat() string {
	var b strings.Builder
	entries := m.roomSnap.Chat
	if len(entries) > chatTail {
		entries = entries[len(entries)-chatTail:]
	}
	for _, c := range entries {
		b.WriteString(fmt.Sprintf("%s %s\n", dimStyle.Render(c.Sender+":"), c.Text))
	}
	b.WriteString(selectedStyle.Render("> ") + m.chatInput)
	return b.String()
}
