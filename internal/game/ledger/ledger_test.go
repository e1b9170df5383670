package ledger

import (
	"testing"

	"github.com/merchantscaravan/caravan-server/internal/game/cards"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddRejectsDuplicatesAndCapacity(t *testing.T) {
	l := New(2)

	_, err := l.Add("alice", "Alice")
	require.NoError(t, err)
	_, err = l.Add("alice", "Alice again")
	assert.ErrorIs(t, err, ErrDuplicatePlayer)

	_, err = l.Add("bob", "Bob")
	require.NoError(t, err)
	_, err = l.Add("carol", "Carol")
	assert.ErrorIs(t, err, ErrRoomFull)

	assert.Equal(t, []string{"alice", "bob"}, l.IDs())
}

func TestRemoveReportsIndex(t *testing.T) {
	l := New(5)
	for _, id := range []string{"a", "b", "c"} {
		_, err := l.Add(id, id)
		require.NoError(t, err)
	}

	p, idx, ok := l.Remove("b")
	require.True(t, ok)
	assert.Equal(t, "b", p.ID)
	assert.Equal(t, 1, idx)
	assert.Equal(t, []string{"a", "c"}, l.IDs())

	_, _, ok = l.Remove("b")
	assert.False(t, ok)
}

func TestGetMissingIsNotAnError(t *testing.T) {
	l := New(5)
	p, ok := l.Get("ghost")
	assert.False(t, ok)
	assert.Nil(t, p)
	assert.Equal(t, -1, l.IndexOf("ghost"))
}

func TestDeclareAndResetVault(t *testing.T) {
	p := &Player{ID: "a"}
	_, ok := p.DeclaredCategory()
	assert.False(t, ok)

	p.Declare(cards.CategorySpices)
	p.Vault = []cards.Card{{ID: 1}}
	c, ok := p.DeclaredCategory()
	require.True(t, ok)
	assert.Equal(t, cards.CategorySpices, c)

	p.ResetVault()
	assert.Empty(t, p.Vault)
	assert.Nil(t, p.VaultCategory)
}
