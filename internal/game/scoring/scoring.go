// Package scoring evaluates victory claims against a player's vault.
package scoring

import (
	"errors"
	"fmt"

	"github.com/merchantscaravan/caravan-server/internal/game/cards"
)

var (
	ErrNoCategory        = errors.New("no caravan type declared")
	ErrMixedVault        = errors.New("vault contains mixed caravan types")
	ErrInsufficientValue = errors.New("vault value below win threshold")
)

// Score is the outcome of evaluating a vault.
type Score struct {
	Category cards.Category
	Value    int
	Cards    int
}

// Evaluate sums the commodity cards in vault and checks them against the
// declared category and threshold. Action cards in the vault are ignored.
// On a rules failure the partial score is returned with the error so callers
// can report the value that fell short.
func Evaluate(vault []cards.Card, declared *cards.Category, threshold int) (Score, error) {
	if declared == nil {
		return Score{}, ErrNoCategory
	}
	score := Score{Category: *declared}
	for _, c := range vault {
		if !c.IsCommodity() {
			continue
		}
		if c.Category != *declared {
			return score, fmt.Errorf("%w: %s in a %s vault", ErrMixedVault, c.Name, *declared)
		}
		score.Value += c.Value
		score.Cards++
	}
	if score.Value < threshold {
		return score, fmt.Errorf("%w: %d < %d", ErrInsufficientValue, score.Value, threshold)
	}
	return score, nil
}

// Value returns the total value of the commodity cards in vault regardless of
// category.
func Value(vault []cards.Card) int {
	total := 0
	for _, c := range vault {
		if c.IsCommodity() {
			total += c.Value
		}
	}
	return total
}
