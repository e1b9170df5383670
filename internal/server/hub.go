package server

import (
	"context"
	"encoding/json"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/merchantscaravan/caravan-server/internal/room"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 8192
	sendBuffer     = 256
	eventBuffer    = 1024
)

// Message is the websocket envelope in both directions.
type Message struct {
	Type     string `json:"type"`
	RoomID   string `json:"room_id,omitempty"`
	PlayerID string `json:"player_id,omitempty"`
	Data     any    `json:"data,omitempty"`
}

// Hub fans room events out to websocket clients. Each client bound to a room
// receives the events visible to its player followed by a fresh private
// projection of the game.
type Hub struct {
	manager  *room.Manager
	logger   *zap.Logger
	upgrader websocket.Upgrader

	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	events     chan room.Event
	done       chan struct{}
	handle     int

	countMu sync.RWMutex
	count   int
}

// NewHub creates a hub for the rooms of manager. Run must be called for
// clients to be served.
func NewHub(manager *room.Manager, allowedOrigins []string, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Hub{
		manager:    manager,
		logger:     logger,
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		events:     make(chan room.Event, eventBuffer),
		done:       make(chan struct{}),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(allowedOrigins),
	}
	h.handle = manager.Subscribe(h.enqueue)
	return h
}

func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 || slices.Contains(allowed, "*") {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || slices.Contains(allowed, origin)
	}
}

// Run serves registrations and events until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	defer h.manager.Unsubscribe(h.handle)
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			for client := range h.clients {
				h.drop(client)
			}
			return

		case client := <-h.register:
			h.clients[client] = true
			h.setCount(len(h.clients))
			h.logger.Debug("client registered", zap.String("client_id", client.id))

		case client := <-h.unregister:
			if h.clients[client] {
				h.drop(client)
				h.logger.Debug("client unregistered", zap.String("client_id", client.id))
			}

		case e := <-h.events:
			h.dispatch(e)
		}
	}
}

// enqueue is the room listener. It never touches a room.
func (h *Hub) enqueue(e room.Event) {
	select {
	case h.events <- e:
	case <-h.done:
	}
}

func (h *Hub) dispatch(e room.Event) {
	var payload []byte
	for client := range h.clients {
		roomID, playerID := client.binding()
		if roomID == "" || roomID != e.RoomID {
			continue
		}
		if e.Type == room.EventRoomClosed {
			client.unbind()
		} else if !e.VisibleTo(playerID) {
			continue
		}
		if payload == nil {
			var err error
			payload, err = json.Marshal(Message{Type: "event", RoomID: e.RoomID, Data: e})
			if err != nil {
				h.logger.Error("failed to encode event", zap.String("type", string(e.Type)), zap.Error(err))
				return
			}
		}
		if !client.queue(payload) {
			h.logger.Warn("dropping slow client", zap.String("client_id", client.id), zap.String("player_id", playerID))
			h.drop(client)
			continue
		}
		client.markStale()
	}
}

func (h *Hub) drop(client *Client) {
	delete(h.clients, client)
	h.setCount(len(h.clients))
	client.close()
}

func (h *Hub) setCount(n int) {
	h.countMu.Lock()
	h.count = n
	h.countMu.Unlock()
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.countMu.RLock()
	defer h.countMu.RUnlock()
	return h.count
}

func (h *Hub) add(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) remove(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// ServeWS upgrades the request and starts the client's pumps.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := newClient(h, conn)
	if !h.add(client) {
		_ = conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}
