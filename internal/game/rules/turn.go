package rules

import (
	"fmt"
)

// Phase represents the broad phases of a Merchant's Caravan game.
type Phase int

const (
	PhaseWaiting Phase = iota
	PhaseVault
	PhaseTurn
	PhaseEnded
)

var phaseNames = map[Phase]string{
	PhaseWaiting: "waiting",
	PhaseVault:   "vault",
	PhaseTurn:    "turn",
	PhaseEnded:   "ended",
}

func (p Phase) String() string {
	if name, ok := phaseNames[p]; ok {
		return name
	}
	return fmt.Sprintf("phase_%d", int(p))
}

// MarshalText encodes the phase by name.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText decodes a phase name.
func (p *Phase) UnmarshalText(text []byte) error {
	for phase, name := range phaseNames {
		if name == string(text) {
			*p = phase
			return nil
		}
	}
	return fmt.Errorf("unknown phase %q", text)
}

// InProgress reports whether cards are in play.
func (p Phase) InProgress() bool {
	return p == PhaseVault || p == PhaseTurn
}

// TurnOrder tracks the current player index and the round counter.
// A round is one full pass of turn opportunities across all players.
type TurnOrder struct {
	current int
	round   int
}

// NewTurnOrder creates a turn order at index 0, round 1.
func NewTurnOrder() *TurnOrder {
	return &TurnOrder{round: 1}
}

// Reset starts a new game at the given index and round 1.
func (t *TurnOrder) Reset(start int) {
	t.current = start
	t.round = 1
}

// Current returns the index of the player whose turn it is.
func (t *TurnOrder) Current() int {
	return t.current
}

// Round returns the current round number (1-based).
func (t *TurnOrder) Round() int {
	return t.round
}

// Advance moves to the next player modulo playerCount. When the index wraps
// to 0 the round number is incremented and true is returned.
func (t *TurnOrder) Advance(playerCount int) bool {
	if playerCount <= 0 {
		t.current = 0
		return false
	}
	t.current = (t.current + 1) % playerCount
	if t.current == 0 {
		t.round++
		return true
	}
	return false
}

// PlayerRemoved re-normalizes the index after the player at removed left and
// remaining players are still seated. Players after the removed seat shift
// down by one, so the same player keeps the turn unless the turn holder
// itself left; then the next player in order inherits it. It reports true
// when the turn holder left from the last seat and the turn wrapped to the
// first seat; the caller decides whether that starts a new round.
func (t *TurnOrder) PlayerRemoved(removed, remaining int) bool {
	if remaining <= 0 {
		t.current = 0
		return false
	}
	held := removed == t.current
	if removed < t.current {
		t.current--
	}
	if t.current >= remaining {
		t.current = 0
		return held
	}
	return false
}

// BeginRound moves to the first seat and increments the round, for a wrap
// that did not come from Advance.
func (t *TurnOrder) BeginRound() {
	t.current = 0
	t.round++
}
