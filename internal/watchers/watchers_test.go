package watchers

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/merchantscaravan/caravan-server/internal/game/cards"
	"github.com/merchantscaravan/caravan-server/internal/room"
)

func actionEvent(playerID string, action cards.ActionKind) room.Event {
	e := room.NewEvent(room.EventActionPlayed, "r1", playerID)
	e.Payload = map[string]any{"action": action}
	return e
}

func TestActionsPlayedWatcher(t *testing.T) {
	w := NewActionsPlayedWatcher()
	w.Watch(actionEvent("a", cards.ActionThief))
	w.Watch(actionEvent("a", cards.ActionThief))
	w.Watch(actionEvent("a", cards.ActionFire))
	w.Watch(actionEvent("b", cards.ActionAudit))
	w.Watch(room.NewEvent(room.EventCardsSwapped, "r1", "a"))

	assert.Equal(t, 2, w.GetCount("a", cards.ActionThief))
	assert.Equal(t, 3, w.GetTotal("a"))
	assert.Equal(t, 1, w.GetTotal("b"))
	assert.Zero(t, w.GetTotal("c"))

	w.Reset()
	assert.Zero(t, w.GetTotal("a"))
}

func TestCardsDrawnWatcherIgnoresPrivateEvents(t *testing.T) {
	w := NewCardsDrawnWatcher()

	public := room.NewEvent(room.EventCardsDrawn, "r1", "a")
	public.Payload = map[string]any{"count": 2}
	private := room.NewEvent(room.EventCardsDrawn, "r1", "a")
	private.Payload = map[string]any{"count": 3}
	private.Recipients = []string{"a"}

	w.Watch(public)
	w.Watch(private)
	w.Watch(public)
	assert.Equal(t, 4, w.GetCount("a"))
}

func TestTradesWatcherCountsBothParties(t *testing.T) {
	w := NewTradesWatcher()
	e := room.NewEvent(room.EventTradeCompleted, "r1", "a")
	e.TargetID = "b"
	w.Watch(e)
	w.Watch(room.NewEvent(room.EventTradeDeclined, "r1", "a"))

	assert.Equal(t, 1, w.GetTotal())
	assert.Equal(t, 1, w.GetCount("a"))
	assert.Equal(t, 1, w.GetCount("b"))
}

func TestEliminationsWatcherKeepsOrder(t *testing.T) {
	w := NewEliminationsWatcher()
	w.Watch(room.NewEvent(room.EventPlayerEliminated, "r1", "c"))
	w.Watch(room.NewEvent(room.EventPlayerLeft, "r1", "b"))
	w.Watch(room.NewEvent(room.EventPlayerEliminated, "r1", "a"))

	got := w.GetEliminated()
	assert.Equal(t, []string{"c", "a"}, got)
	got[0] = "mutated"
	assert.Equal(t, "c", w.GetEliminated()[0])
}

func TestWatcherKeysAreDistinct(t *testing.T) {
	seen := map[string]bool{}
	for _, w := range newGameWatchers().all() {
		assert.False(t, seen[w.Key()], w.Key())
		seen[w.Key()] = true
	}
}
