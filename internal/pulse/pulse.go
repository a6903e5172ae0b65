// Package pulse is a small built-in reaction game: each round the server
// fires a pulse and the fastest tap wins the round. It exists to exercise
// game dispatch end to end, but it is a complete plugin in its own right.
package pulse

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/stackswars/warsync"
)

const gamePath = "pulse"

const (
	phaseIdle    = "idle"
	phaseArmed   = "armed"
	phaseFired   = "fired"
	phaseScoring = "scoring"
	phaseOver    = "over"
)

// State is the room-local view of one pulse match. Values are immutable
// snapshots: every fold returns a fresh copy.
type State struct {
	Round    int
	Phase    string
	Scores   map[string]int
	Names    map[string]string
	Results  []TapResult
	WinnerID string
}

// TapResult is one player's reaction in the current round.
type TapResult struct {
	PlayerID   string
	Username   string
	ReactionMs int
}

type message struct {
	Type       string            `json:"type"`
	Round      int               `json:"round,omitempty"`
	PlayerID   string            `json:"playerId,omitempty"`
	Username   string            `json:"username,omitempty"`
	ReactionMs int               `json:"reactionMs,omitempty"`
	WinnerID   string            `json:"winnerId,omitempty"`
	Scores     map[string]int    `json:"scores,omitempty"`
	Names      map[string]string `json:"names,omitempty"`
}

// Plugin implements the pulse game.
type Plugin struct{}

var (
	_ warsync.Plugin        = Plugin{}
	_ warsync.StateHydrator = Plugin{}
	_ warsync.Renderer      = Plugin{}
)

func New() Plugin { return Plugin{} }

func (Plugin) Path() string { return gamePath }

func (Plugin) InitialState() any {
	return State{Phase: phaseIdle, Scores: map[string]int{}, Names: map[string]string{}}
}

// HandleMessage folds one game message into the state. Unknown message
// types and messages for stale rounds leave the state untouched.
func (p Plugin) HandleMessage(state any, raw json.RawMessage) any {
	st, ok := state.(State)
	if !ok {
		st = p.InitialState().(State)
	}

	var msg message
	if err := json.Unmarshal(raw, &msg); err != nil {
		return st
	}

	switch msg.Type {
	case "roundStart":
		st.Round = msg.Round
		st.Phase = phaseArmed
		st.Results = nil

	case "pulse":
		if msg.Round == st.Round {
			st.Phase = phaseFired
		}

	case "tap":
		if msg.Round != st.Round || msg.PlayerID == "" {
			return st
		}
		results := append([]TapResult(nil), st.Results...)
		for i, r := range results {
			if r.PlayerID == msg.PlayerID {
				results[i].ReactionMs = msg.ReactionMs
				st.Results = results
				return st
			}
		}
		st.Results = append(results, TapResult{
			PlayerID:   msg.PlayerID,
			Username:   msg.Username,
			ReactionMs: msg.ReactionMs,
		})

	case "roundEnd":
		st.Phase = phaseScoring
		st.Scores = copyScores(msg.Scores)
		if len(msg.Names) > 0 {
			st.Names = copyNames(msg.Names)
		}

	case "gameOver":
		st.Phase = phaseOver
		st.WinnerID = msg.WinnerID
		if len(msg.Scores) > 0 {
			st.Scores = copyScores(msg.Scores)
		}
	}
	return st
}

// ApplyGameState replaces the state from a full server snapshot, as replayed
// after a reconnect.
func (p Plugin) ApplyGameState(state any, full json.RawMessage) any {
	var snap struct {
		Round    int               `json:"round"`
		Phase    string            `json:"phase"`
		Scores   map[string]int    `json:"scores"`
		Names    map[string]string `json:"names"`
		WinnerID string            `json:"winnerId"`
	}
	if err := json.Unmarshal(full, &snap); err != nil {
		return state
	}
	st := State{
		Round:    snap.Round,
		Phase:    snap.Phase,
		Scores:   copyScores(snap.Scores),
		Names:    copyNames(snap.Names),
		WinnerID: snap.WinnerID,
	}
	if st.Phase == "" {
		st.Phase = phaseIdle
	}
	return st
}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true)
	firedStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	scoreStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	winnerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
)

// Render draws the match for a terminal host.
func (p Plugin) Render(state any, width int) string {
	st, ok := state.(State)
	if !ok {
		return mutedStyle.Render("waiting for game state...")
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("PULSE — round %d", st.Round)))
	b.WriteString("\n\n")

	switch st.Phase {
	case phaseIdle:
		b.WriteString(mutedStyle.Render("waiting for the first round"))
	case phaseArmed:
		b.WriteString("steady... tap only after the pulse fires")
	case phaseFired:
		b.WriteString(firedStyle.Render("NOW — press t"))
	case phaseScoring:
		b.WriteString("round over")
	case phaseOver:
		name := st.WinnerID
		if n, ok := st.Names[st.WinnerID]; ok {
			name = n
		}
		b.WriteString(winnerStyle.Render(fmt.Sprintf("winner: %s", name)))
	}
	b.WriteString("\n")

	if len(st.Results) > 0 {
		b.WriteString("\n")
		for _, r := range st.Results {
			b.WriteString(fmt.Sprintf("  %-16s %4d ms\n", r.Username, r.ReactionMs))
		}
	}

	if len(st.Scores) > 0 {
		b.WriteString("\n" + scoreStyle.Render("scores") + "\n")
		for _, id := range sortedIDs(st.Scores) {
			name := id
			if n, ok := st.Names[id]; ok {
				name = n
			}
			b.WriteString(fmt.Sprintf("  %-16s %3d\n", name, st.Scores[id]))
		}
	}

	out := b.String()
	if width > 0 {
		return lipgloss.NewStyle().MaxWidth(width).Render(out)
	}
	return out
}

// EncodeTap builds the outbound tap intent for SendGameIntent.
func EncodeTap(reactionMs int) (string, any) {
	return "tap", struct {
		ReactionMs int `json:"reactionMs"`
	}{ReactionMs: reactionMs}
}

func copyScores(in map[string]int) map[string]int {
	out := make(map[string]int, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func copyNames(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func sortedIDs(scores map[string]int) []string {
	ids := make([]string, 0, len(scores))
	for id := range scores {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		if scores[ids[i]] != scores[ids[j]] {
			return scores[ids[i]] > scores[ids[j]]
		}
		return ids[i] < ids[j]
	})
	return ids
}
