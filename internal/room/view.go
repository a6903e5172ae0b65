package room

import "github.com/stackswars/warsync"

// derivePanel maps lobby status to the coarse view signal: waiting and
// starting show the lobby panel, inProgress and finished show the game
// panel. A room with no lobby loaded yet shows the lobby panel.
func derivePanel(lobby *warsync.Lobby) warsync.Panel {
	if lobby == nil {
		return warsync.PanelLobby
	}
	switch lobby.Status {
	case warsync.StatusInProgress, warsync.StatusFinished:
		return warsync.PanelGame
	default:
		return warsync.PanelLobby
	}
}

// reconcilePanel recomputes the visible panel after a lobby change. A
// manual override persists except across the transition into inProgress,
// which always pulls the user to the game panel. Caller holds mu.
func (s *Store) reconcilePanel(prev *warsync.Lobby) {
	cur := s.snap.Lobby
	enteredGame := cur != nil && cur.Status == warsync.StatusInProgress &&
		(prev == nil || prev.Status != warsync.StatusInProgress)
	if enteredGame {
		s.override = nil
	}
	if s.override != nil {
		s.snap.Panel = *s.override
		return
	}
	s.snap.Panel = derivePanel(cur)
}

// SetPanelOverride pins the visible panel until the lobby transitions into
// inProgress or ClearPanelOverride is called.
func (s *Store) SetPanelOverride(p warsync.Panel) {
	s.mu.Lock()
	s.override = &p
	s.snap.Panel = p
	snap := copySnapshot(s.snap)
	s.mu.Unlock()
	s.notify(snap)
}

// ClearPanelOverride removes the manual selection and restores the derived
// signal.
func (s *Store) ClearPanelOverride() {
	s.mu.Lock()
	s.override = nil
	s.snap.Panel = derivePanel(s.snap.Lobby)
	snap := copySnapshot(s.snap)
	s.mu.Unlock()
	s.notify(snap)
}
