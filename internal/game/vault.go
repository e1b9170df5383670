package game

import (
	"fmt"

	"github.com/merchantscaravan/caravan-server/internal/game/cards"
	"github.com/merchantscaravan/caravan-server/internal/game/ledger"
	"github.com/merchantscaravan/caravan-server/internal/game/rules"
)

// AddToVault moves cards from hand to vault. Every commodity in the
// selection must share one category, and that category must match the
// declared one; the first commodity ever vaulted declares it. Action cards
// may be vaulted freely and never score.
func (g *Game) AddToVault(playerID string, cardIDs []int) error {
	if err := g.requirePhase(rules.PhaseVault); err != nil {
		return err
	}
	p, err := g.player(playerID)
	if err != nil {
		return err
	}
	if len(cardIDs) == 0 {
		return fmt.Errorf("%w: no cards selected", ErrInvalidSelection)
	}
	if err := checkSelection(p.Hand, cardIDs, ErrCardNotInHand); err != nil {
		return err
	}

	remaining, taken := cards.Take(p.Hand, cardIDs)
	declared, err := vaultCategory(p.VaultCategory, taken)
	if err != nil {
		return err
	}

	p.Hand = remaining
	p.Vault = append(p.Vault, taken...)
	if declared != nil && p.VaultCategory == nil {
		p.Declare(*declared)
	}
	return nil
}

// RemoveFromVault moves cards back from vault to hand. Emptying the vault
// clears the declared category.
func (g *Game) RemoveFromVault(playerID string, cardIDs []int) error {
	if err := g.requirePhase(rules.PhaseVault); err != nil {
		return err
	}
	p, err := g.player(playerID)
	if err != nil {
		return err
	}
	if len(cardIDs) == 0 {
		return fmt.Errorf("%w: no cards selected", ErrInvalidSelection)
	}
	if err := checkSelection(p.Vault, cardIDs, ErrCardNotInVault); err != nil {
		return err
	}

	remaining, taken := cards.Take(p.Vault, cardIDs)
	p.Vault = remaining
	p.Hand = append(p.Hand, taken...)
	resetEmptyVault(p)
	return nil
}

// CompleteVaultPhase marks a player ready. When every seated player is ready
// the game moves to the turn phase and true is returned. Marking ready twice
// is harmless.
func (g *Game) CompleteVaultPhase(playerID string) (bool, error) {
	if err := g.requirePhase(rules.PhaseVault); err != nil {
		return false, err
	}
	if _, err := g.player(playerID); err != nil {
		return false, err
	}
	if !g.ready.Has(playerID) {
		if err := g.ready.Submit(playerID, struct{}{}); err != nil {
			return false, err
		}
	}
	if !g.ready.Complete(g.players.IDs()) {
		return false, nil
	}
	g.enterTurnPhase()
	return true, nil
}

// IsReady reports whether a player has completed the current vault phase.
func (g *Game) IsReady(playerID string) bool {
	return g.ready.Has(playerID)
}

// vaultCategory returns the category the vault will be declared as once the
// incoming cards are added, or an error if they do not fit.
func vaultCategory(declared *cards.Category, incoming []cards.Card) (*cards.Category, error) {
	current := declared
	for _, c := range incoming {
		if !c.IsCommodity() {
			continue
		}
		if current == nil {
			category := c.Category
			current = &category
			continue
		}
		if c.Category != *current {
			return nil, fmt.Errorf("%w: %s is %s, vault is %s", ErrCategoryMismatch, c.Name, c.Category, *current)
		}
	}
	return current, nil
}

func resetEmptyVault(p *ledger.Player) {
	if len(p.Vault) == 0 {
		p.ResetVault()
	}
}
