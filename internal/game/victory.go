package game

import (
	"github.com/merchantscaravan/caravan-server/internal/game/cards"
	"github.com/merchantscaravan/caravan-server/internal/game/rules"
	"github.com/merchantscaravan/caravan-server/internal/game/scoring"
)

// VictoryResult is the outcome of a victory declaration.
type VictoryResult struct {
	PlayerID   string         `json:"playerId"`
	Success    bool           `json:"success"`
	Value      int            `json:"value"`
	Category   cards.Category `json:"caravanType,omitempty"`
	Eliminated bool           `json:"eliminated"`
}

// DeclareVictory checks the player's vault against the win threshold. A
// successful claim ends the game. A failed claim returns the rules error
// together with Eliminated=true; removing the player is left to the caller.
func (g *Game) DeclareVictory(playerID string) (VictoryResult, error) {
	if err := g.requirePhase(rules.PhaseVault, rules.PhaseTurn); err != nil {
		return VictoryResult{}, err
	}
	if g.sub != nil {
		return VictoryResult{}, ErrSubPhaseActive
	}
	p, err := g.player(playerID)
	if err != nil {
		return VictoryResult{}, err
	}

	score, err := scoring.Evaluate(p.Vault, p.VaultCategory, g.opts.WinThreshold)
	result := VictoryResult{
		PlayerID: playerID,
		Value:    score.Value,
		Category: score.Category,
	}
	if err != nil {
		result.Eliminated = true
		return result, err
	}

	result.Success = true
	g.winner = playerID
	g.ready.Reset()
	g.phase = rules.PhaseEnded
	return result, nil
}
