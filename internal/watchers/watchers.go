// Package watchers keeps per-game statistics by observing room events.
package watchers

import (
	"maps"
	"slices"

	"github.com/merchantscaravan/caravan-server/internal/game/cards"
	"github.com/merchantscaravan/caravan-server/internal/room"
)

// Watcher accumulates one statistic of a game from its events.
type Watcher interface {
	Key() string
	Watch(event room.Event)
	Reset()
}

// ActionsPlayedWatcher counts action cards played, per player and action.
type ActionsPlayedWatcher struct {
	played map[string]map[cards.ActionKind]int
}

func NewActionsPlayedWatcher() *ActionsPlayedWatcher {
	return &ActionsPlayedWatcher{played: make(map[string]map[cards.ActionKind]int)}
}

func (w *ActionsPlayedWatcher) Key() string { return "ActionsPlayedWatcher" }

// Watch implements the Watcher interface.
func (w *ActionsPlayedWatcher) Watch(event room.Event) {
	if event.Type != room.EventActionPlayed || event.PlayerID == "" {
		return
	}
	payload, ok := event.Payload.(map[string]any)
	if !ok {
		return
	}
	action, ok := payload["action"].(cards.ActionKind)
	if !ok {
		return
	}
	if w.played[event.PlayerID] == nil {
		w.played[event.PlayerID] = make(map[cards.ActionKind]int)
	}
	w.played[event.PlayerID][action]++
}

func (w *ActionsPlayedWatcher) Reset() {
	w.played = make(map[string]map[cards.ActionKind]int)
}

// GetCount returns how often a player played the given action.
func (w *ActionsPlayedWatcher) GetCount(playerID string, action cards.ActionKind) int {
	return w.played[playerID][action]
}

// GetTotal returns the number of action cards a player played.
func (w *ActionsPlayedWatcher) GetTotal(playerID string) int {
	total := 0
	for _, n := range w.played[playerID] {
		total += n
	}
	return total
}

func (w *ActionsPlayedWatcher) counts() map[string]map[cards.ActionKind]int {
	out := make(map[string]map[cards.ActionKind]int, len(w.played))
	for id, byAction := range w.played {
		out[id] = maps.Clone(byAction)
	}
	return out
}

// CardsDrawnWatcher counts cards drawn on the public record. Smuggler draws
// are only announced privately and are not included.
type CardsDrawnWatcher struct {
	drawn map[string]int
}

func NewCardsDrawnWatcher() *CardsDrawnWatcher {
	return &CardsDrawnWatcher{drawn: make(map[string]int)}
}

func (w *CardsDrawnWatcher) Key() string { return "CardsDrawnWatcher" }

// Watch implements the Watcher interface.
func (w *CardsDrawnWatcher) Watch(event room.Event) {
	if event.Type != room.EventCardsDrawn || event.Private() {
		return
	}
	payload, ok := event.Payload.(map[string]any)
	if !ok {
		return
	}
	if n, ok := payload["count"].(int); ok {
		w.drawn[event.PlayerID] += n
	}
}

func (w *CardsDrawnWatcher) Reset() {
	w.drawn = make(map[string]int)
}

func (w *CardsDrawnWatcher) GetCount(playerID string) int {
	return w.drawn[playerID]
}

// TradesWatcher counts completed trades for both parties.
type TradesWatcher struct {
	trades map[string]int
	total  int
}

func NewTradesWatcher() *TradesWatcher {
	return &TradesWatcher{trades: make(map[string]int)}
}

func (w *TradesWatcher) Key() string { return "TradesWatcher" }

// Watch implements the Watcher interface.
func (w *TradesWatcher) Watch(event room.Event) {
	if event.Type != room.EventTradeCompleted {
		return
	}
	w.total++
	if event.PlayerID != "" {
		w.trades[event.PlayerID]++
	}
	if event.TargetID != "" {
		w.trades[event.TargetID]++
	}
}

func (w *TradesWatcher) Reset() {
	w.trades = make(map[string]int)
	w.total = 0
}

func (w *TradesWatcher) GetCount(playerID string) int { return w.trades[playerID] }
func (w *TradesWatcher) GetTotal() int                { return w.total }

// EliminationsWatcher records eliminated players in order.
type EliminationsWatcher struct {
	eliminated []string
}

func NewEliminationsWatcher() *EliminationsWatcher {
	return &EliminationsWatcher{}
}

func (w *EliminationsWatcher) Key() string { return "EliminationsWatcher" }

// Watch implements the Watcher interface.
func (w *EliminationsWatcher) Watch(event room.Event) {
	if event.Type == room.EventPlayerEliminated {
		w.eliminated = append(w.eliminated, event.PlayerID)
	}
}

func (w *EliminationsWatcher) Reset() {
	w.eliminated = nil
}

func (w *EliminationsWatcher) GetEliminated() []string {
	return slices.Clone(w.eliminated)
}
