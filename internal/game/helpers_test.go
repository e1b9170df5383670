package game

import (
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/merchantscaravan/caravan-server/internal/game/cards"
)

func newTestGame(t *testing.T, opts Options, ids ...string) *Game {
	t.Helper()
	g := New("room-1", opts, rand.New(rand.NewSource(42)))
	for _, id := range ids {
		require.NoError(t, g.AddPlayer(id, strings.ToUpper(id)))
	}
	return g
}

func startedGame(t *testing.T, ids ...string) *Game {
	t.Helper()
	g := newTestGame(t, DefaultOptions(), ids...)
	require.NoError(t, g.StartGame())
	return g
}

// turnPhaseGame returns a started game in the turn phase with the first seat
// to act.
func turnPhaseGame(t *testing.T, ids ...string) *Game {
	t.Helper()
	g := startedGame(t, ids...)
	for _, id := range ids {
		_, err := g.CompleteVaultPhase(id)
		require.NoError(t, err)
	}
	require.Equal(t, "turn", g.Phase().String())
	g.turn.Reset(0)
	return g
}

// pull takes the card with the given id out of whichever container holds it.
func pull(t *testing.T, g *Game, id int) cards.Card {
	t.Helper()
	take := func(cs []cards.Card) ([]cards.Card, *cards.Card) {
		if i := cards.IndexOf(cs, id); i != -1 {
			c := cs[i]
			return cards.RemoveAt(cs, i), &c
		}
		return cs, nil
	}
	var c *cards.Card
	if g.deck, c = take(g.deck); c != nil {
		return *c
	}
	if g.discard, c = take(g.discard); c != nil {
		return *c
	}
	for _, p := range g.players.Players() {
		if p.Hand, c = take(p.Hand); c != nil {
			return *c
		}
		if p.Vault, c = take(p.Vault); c != nil {
			return *c
		}
	}
	t.Fatalf("card %d not found", id)
	return cards.Card{}
}

// give moves the named cards into a player's hand.
func give(t *testing.T, g *Game, playerID string, ids ...int) {
	t.Helper()
	p, ok := g.players.Get(playerID)
	require.True(t, ok)
	for _, id := range ids {
		p.Hand = append(p.Hand, pull(t, g, id))
	}
}

// clearHand moves a player's whole hand to the discard pile.
func clearHand(t *testing.T, g *Game, playerID string) {
	t.Helper()
	p, ok := g.players.Get(playerID)
	require.True(t, ok)
	g.discard = append(g.discard, p.Hand...)
	p.Hand = nil
}

// named returns the ids of the first n minted cards called name.
func named(t *testing.T, g *Game, name string, n int) []int {
	t.Helper()
	var ids []int
	for _, c := range g.minted {
		if c.Name == name && len(ids) < n {
			ids = append(ids, c.ID)
		}
	}
	require.Len(t, ids, n, "not enough %s cards", name)
	return ids
}

func handIDs(t *testing.T, g *Game, playerID string) []int {
	t.Helper()
	hand, ok := g.Hand(playerID)
	require.True(t, ok)
	ids := make([]int, len(hand))
	for i, c := range hand {
		ids[i] = c.ID
	}
	return ids
}
