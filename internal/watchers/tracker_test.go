package watchers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/merchantscaravan/caravan-server/internal/game"
	"github.com/merchantscaravan/caravan-server/internal/room"
)

func TestTrackerFollowsRoomLifecycle(t *testing.T) {
	m := room.NewManager(zaptest.NewLogger(t), game.DefaultOptions())
	tracker := NewTracker(zaptest.NewLogger(t))
	tracker.Attach(m)
	defer tracker.Detach()

	r, err := m.CreateRoom(room.RoomOptions{})
	require.NoError(t, err)
	require.NoError(t, r.Join("a", "Alice", ""))
	require.NoError(t, r.Join("b", "Bob", ""))

	_, ok := tracker.Stats(r.ID())
	assert.False(t, ok, "no stats before the first deal")

	require.NoError(t, r.Start("a"))
	for _, id := range []string{"a", "b"} {
		_, err := r.CompleteVault(id)
		require.NoError(t, err)
	}
	current := r.State("").CurrentPlayerID
	drawn, err := r.Draw(current)
	require.NoError(t, err)

	stats, ok := tracker.Stats(r.ID())
	require.True(t, ok)
	assert.Equal(t, r.ID(), stats.RoomID)
	assert.Equal(t, len(drawn), stats.CardsDrawn[current])
	assert.Positive(t, stats.Events)
	assert.Empty(t, stats.Eliminated)

	tracker.Handle(room.NewEvent(room.EventGameStarted, r.ID(), "a"))
	stats, ok = tracker.Stats(r.ID())
	require.True(t, ok)
	assert.Zero(t, stats.CardsDrawn[current], "a new deal resets the counters")
	assert.Equal(t, 1, stats.Events)

	require.True(t, m.RemoveRoom(r.ID()))
	_, ok = tracker.Stats(r.ID())
	assert.False(t, ok)
}

func TestTrackerDetachStopsWatching(t *testing.T) {
	m := room.NewManager(zaptest.NewLogger(t), game.DefaultOptions())
	tracker := NewTracker(nil)
	tracker.Attach(m)
	tracker.Detach()
	tracker.Detach()

	r, err := m.CreateRoom(room.RoomOptions{})
	require.NoError(t, err)
	require.NoError(t, r.Join("a", "Alice", ""))
	require.NoError(t, r.Join("b", "Bob", ""))
	require.NoError(t, r.Start("a"))

	_, ok := tracker.Stats(r.ID())
	assert.False(t, ok)
}
