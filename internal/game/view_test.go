package game

import (
	"encoding/json"
	"math/rand"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/merchantscaravan/caravan-server/internal/game/cards"
)

const goldenCatalog = `
commodities:
  - category: SPICES
    goods:
      - { name: Pepper, value: 3, count: 3 }
      - { name: Saffron, value: 50, count: 1 }
actions:
  - name: Thief
    count: 1
    description: Steal a card.
`

// goldenGame builds a small game whose state does not depend on the shuffle:
// alice holds Pepper #0 and the Thief, has Saffron vaulted and is ready; bob
// holds Pepper #1; Pepper #2 is on the discard pile.
func goldenGame(t *testing.T) *Game {
	t.Helper()
	catalog, err := cards.LoadCatalog(strings.NewReader(goldenCatalog))
	require.NoError(t, err)

	opts := DefaultOptions()
	opts.Catalog = catalog
	opts.HandSize = 0
	g := New("golden", opts, rand.New(rand.NewSource(1)))
	require.NoError(t, g.AddPlayer("alice", "Alice"))
	require.NoError(t, g.AddPlayer("bob", "Bob"))
	require.NoError(t, g.StartGame())
	g.turn.Reset(0)

	give(t, g, "alice", 0, 4, 3)
	give(t, g, "bob", 1)
	g.discard = append(g.discard, pull(t, g, 2))
	require.Empty(t, g.deck)

	require.NoError(t, g.AddToVault("alice", []int{3}))
	_, err = g.CompleteVaultPhase("alice")
	require.NoError(t, err)
	require.NoError(t, g.VerifyConservation())
	return g
}

func TestExportStateGolden(t *testing.T) {
	g := goldenGame(t)

	gold := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	for _, viewer := range []string{"alice", "bob"} {
		data, err := json.MarshalIndent(g.ExportState(viewer), "", "  ")
		require.NoError(t, err)
		gold.Assert(t, "view_"+viewer, append(data, '\n'))
	}
}

func TestExportStateHidesOtherPlayers(t *testing.T) {
	g := turnPhaseGame(t, "a", "b", "c")
	require.NoError(t, g.OpenMassDiscard())

	for _, viewer := range []string{"a", "b", "c", ""} {
		v := g.ExportState(viewer)
		require.Len(t, v.Players, 3)
		for _, pv := range v.Players {
			assert.Equal(t, 10, pv.HandSize)
			if pv.ID == viewer {
				assert.Len(t, pv.Hand, 10)
				continue
			}
			assert.Nil(t, pv.Hand, "viewer %q sees %s's hand", viewer, pv.ID)
			assert.Nil(t, pv.Vault)
			assert.Nil(t, pv.VaultCategory)
		}
		require.NotNil(t, v.SubPhase)
		assert.Equal(t, SubPhaseMassDiscard, v.SubPhase.Kind)
	}

	v := g.ExportState("a")
	assert.Equal(t, "a", v.CurrentPlayerID)
	assert.True(t, v.Players[0].Current)
	assert.Equal(t, 350, v.WinThreshold)
}
