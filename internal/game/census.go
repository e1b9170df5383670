package game

import (
	"fmt"
	"sort"
)

// Census counts every card id across the deck, the discard pile, every hand
// and vault, and cards held by an open sub-phase.
func (g *Game) Census() map[int]int {
	counts := make(map[int]int, len(g.minted))
	for _, c := range g.deck {
		counts[c.ID]++
	}
	for _, c := range g.discard {
		counts[c.ID]++
	}
	for _, p := range g.players.Players() {
		for _, c := range p.Hand {
			counts[c.ID]++
		}
		for _, c := range p.Vault {
			counts[c.ID]++
		}
	}
	if g.sub != nil {
		for _, c := range g.sub.held() {
			counts[c.ID]++
		}
	}
	return counts
}

// VerifyConservation checks that every minted card exists exactly once and
// nothing else does.
func (g *Game) VerifyConservation() error {
	counts := g.Census()
	var problems []string
	for _, c := range g.minted {
		if n := counts[c.ID]; n != 1 {
			problems = append(problems, fmt.Sprintf("card %d seen %d times", c.ID, n))
		}
		delete(counts, c.ID)
	}
	for id, n := range counts {
		problems = append(problems, fmt.Sprintf("unknown card %d seen %d times", id, n))
	}
	if len(problems) == 0 {
		return nil
	}
	sort.Strings(problems)
	return fmt.Errorf("card conservation violated: %v", problems)
}

// MintedCount returns the number of cards minted for the current game.
func (g *Game) MintedCount() int {
	return len(g.minted)
}
