package watchers

import (
	"maps"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/merchantscaravan/caravan-server/internal/game/cards"
	"github.com/merchantscaravan/caravan-server/internal/room"
)

// Stats is the summary of one game as seen by the watchers.
type Stats struct {
	RoomID        string                              `json:"roomId"`
	StartedAt     time.Time                           `json:"startedAt"`
	Events        int                                 `json:"events"`
	ActionsPlayed map[string]map[cards.ActionKind]int `json:"actionsPlayed"`
	CardsDrawn    map[string]int                      `json:"cardsDrawn"`
	Trades        map[string]int                      `json:"trades"`
	Eliminated    []string                            `json:"eliminated"`
}

type gameWatchers struct {
	startedAt    time.Time
	events       int
	actions      *ActionsPlayedWatcher
	drawn        *CardsDrawnWatcher
	trades       *TradesWatcher
	eliminations *EliminationsWatcher
}

func newGameWatchers() *gameWatchers {
	return &gameWatchers{
		startedAt:    time.Now(),
		actions:      NewActionsPlayedWatcher(),
		drawn:        NewCardsDrawnWatcher(),
		trades:       NewTradesWatcher(),
		eliminations: NewEliminationsWatcher(),
	}
}

func (g *gameWatchers) all() []Watcher {
	return []Watcher{g.actions, g.drawn, g.trades, g.eliminations}
}

// Tracker runs a set of watchers for every room with a game in progress or
// finished. A new deal resets them; a closed room drops them.
type Tracker struct {
	mu      sync.RWMutex
	games   map[string]*gameWatchers
	logger  *zap.Logger
	manager *room.Manager
	handle  int
}

func NewTracker(logger *zap.Logger) *Tracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tracker{
		games:  make(map[string]*gameWatchers),
		logger: logger,
		handle: -1,
	}
}

// Attach subscribes the tracker to every room of m.
func (t *Tracker) Attach(m *room.Manager) {
	t.manager = m
	t.handle = m.Subscribe(t.Handle)
}

// Detach stops observing the manager given to Attach.
func (t *Tracker) Detach() {
	if t.manager != nil && t.handle >= 0 {
		t.manager.Unsubscribe(t.handle)
		t.handle = -1
	}
}

// Handle feeds one event to the watchers of its room.
func (t *Tracker) Handle(event room.Event) {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch event.Type {
	case room.EventRoomClosed:
		delete(t.games, event.RoomID)
		return
	case room.EventGameStarted:
		t.games[event.RoomID] = newGameWatchers()
		t.logger.Debug("watching new game", zap.String("room_id", event.RoomID))
	}

	g, ok := t.games[event.RoomID]
	if !ok {
		return
	}
	g.events++
	for _, w := range g.all() {
		w.Watch(event)
	}
}

// Stats returns the statistics of the room's current or last game.
func (t *Tracker) Stats(roomID string) (Stats, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	g, ok := t.games[roomID]
	if !ok {
		return Stats{}, false
	}
	return Stats{
		RoomID:        roomID,
		StartedAt:     g.startedAt,
		Events:        g.events,
		ActionsPlayed: g.actions.counts(),
		CardsDrawn:    maps.Clone(g.drawn.drawn),
		Trades:        maps.Clone(g.trades.trades),
		Eliminated:    g.eliminations.GetEliminated(),
	}, true
}
