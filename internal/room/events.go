package room

import (
	"sync"
	"time"
)

// EventType identifies what happened in a room.
type EventType string

const (
	EventRoomCreated EventType = "ROOM_CREATED"
	EventRoomClosed  EventType = "ROOM_CLOSED"

	EventPlayerJoined     EventType = "PLAYER_JOINED"
	EventPlayerLeft       EventType = "PLAYER_LEFT"
	EventPlayerEliminated EventType = "PLAYER_ELIMINATED"

	EventGameStarted      EventType = "GAME_STARTED"
	EventVaultUpdated     EventType = "VAULT_UPDATED"
	EventPlayerReady      EventType = "PLAYER_READY"
	EventTurnPhaseStarted EventType = "TURN_PHASE_STARTED"
	EventTurnEnded        EventType = "TURN_ENDED"
	EventNewRound         EventType = "NEW_ROUND"

	EventCardsDrawn      EventType = "CARDS_DRAWN"
	EventCardsDiscarded  EventType = "CARDS_DISCARDED"
	EventDiscardRequired EventType = "DISCARD_REQUIRED"

	EventActionPlayed EventType = "ACTION_PLAYED"
	EventCardStolen   EventType = "CARD_STOLEN"
	EventAuditResult  EventType = "AUDIT_RESULT"
	EventCardsSwapped EventType = "CARDS_SWAPPED"

	EventSubPhaseOpened       EventType = "SUB_PHASE_OPENED"
	EventMassDiscardSubmitted EventType = "MASS_DISCARD_SUBMITTED"
	EventMassDiscardResolved  EventType = "MASS_DISCARD_RESOLVED"
	EventRevealSubmitted      EventType = "REVEAL_SUBMITTED"
	EventRevealResolved       EventType = "REVEAL_RESOLVED"

	EventTradeProposed  EventType = "TRADE_PROPOSED"
	EventTradeCompleted EventType = "TRADE_COMPLETED"
	EventTradeDeclined  EventType = "TRADE_DECLINED"

	EventVictory       EventType = "VICTORY"
	EventVictoryFailed EventType = "VICTORY_FAILED"
)

// Event is a state change in a room. Events with Recipients are private to
// those players; all others are public.
type Event struct {
	Type       EventType `json:"type"`
	RoomID     string    `json:"roomId"`
	PlayerID   string    `json:"playerId,omitempty"`
	TargetID   string    `json:"targetId,omitempty"`
	Recipients []string  `json:"recipients,omitempty"`
	Payload    any       `json:"payload,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// NewEvent creates an event stamped with the current time.
func NewEvent(eventType EventType, roomID, playerID string) Event {
	return Event{
		Type:      eventType,
		RoomID:    roomID,
		PlayerID:  playerID,
		Timestamp: time.Now(),
	}
}

// Private reports whether the event is addressed to specific players.
func (e Event) Private() bool {
	return len(e.Recipients) > 0
}

// VisibleTo reports whether playerID may see the event.
func (e Event) VisibleTo(playerID string) bool {
	if !e.Private() {
		return true
	}
	for _, r := range e.Recipients {
		if r == playerID {
			return true
		}
	}
	return false
}

// Listener reacts to events.
type Listener func(Event)

type typedListener struct {
	handle   int
	callback Listener
}

// EventBus is a synchronous publish/subscribe hub with optional filtering by
// event type.
type EventBus struct {
	mu             sync.RWMutex
	listeners      map[int]Listener
	typedListeners map[EventType][]typedListener
	nextHandle     int
}

// NewEventBus constructs an empty bus.
func NewEventBus() *EventBus {
	return &EventBus{
		listeners:      make(map[int]Listener),
		typedListeners: make(map[EventType][]typedListener),
	}
}

// Subscribe registers a listener for every event and returns its handle.
func (bus *EventBus) Subscribe(listener Listener) int {
	if listener == nil {
		return -1
	}
	bus.mu.Lock()
	defer bus.mu.Unlock()
	handle := bus.nextHandle
	bus.nextHandle++
	bus.listeners[handle] = listener
	return handle
}

// SubscribeTyped registers a listener for one event type.
func (bus *EventBus) SubscribeTyped(eventType EventType, listener Listener) int {
	if listener == nil {
		return -1
	}
	bus.mu.Lock()
	defer bus.mu.Unlock()
	handle := bus.nextHandle
	bus.nextHandle++
	bus.typedListeners[eventType] = append(bus.typedListeners[eventType], typedListener{
		handle:   handle,
		callback: listener,
	})
	return handle
}

// Unsubscribe removes the listener identified by handle.
func (bus *EventBus) Unsubscribe(handle int) {
	bus.mu.Lock()
	defer bus.mu.Unlock()
	delete(bus.listeners, handle)
	for eventType, listeners := range bus.typedListeners {
		for i := len(listeners) - 1; i >= 0; i-- {
			if listeners[i].handle == handle {
				bus.typedListeners[eventType] = append(listeners[:i], listeners[i+1:]...)
				break
			}
		}
	}
}

// Publish delivers the event to every matching listener before returning.
func (bus *EventBus) Publish(event Event) {
	bus.mu.RLock()
	defer bus.mu.RUnlock()

	for _, listener := range bus.listeners {
		listener(event)
	}
	for _, listener := range bus.typedListeners[event.Type] {
		listener.callback(event)
	}
}
