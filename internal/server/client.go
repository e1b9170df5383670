package server

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Client is one websocket connection. It is bound to at most one room seat
// at a time.
type Client struct {
	id   string
	hub  *Hub
	conn *websocket.Conn

	send   chan []byte
	stale  chan struct{}
	closed chan struct{}
	once   sync.Once

	mu       sync.RWMutex
	roomID   string
	playerID string
}

func newClient(h *Hub, conn *websocket.Conn) *Client {
	return &Client{
		id:     uuid.NewString(),
		hub:    h,
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
		stale:  make(chan struct{}, 1),
		closed: make(chan struct{}),
	}
}

func (c *Client) binding() (string, string) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.roomID, c.playerID
}

func (c *Client) bind(roomID, playerID string) {
	c.mu.Lock()
	c.roomID, c.playerID = roomID, playerID
	c.mu.Unlock()
}

func (c *Client) unbind() {
	c.bind("", "")
}

// queue hands a frame to the write pump. It reports false when the client
// is closed or its buffer is full.
func (c *Client) queue(payload []byte) bool {
	select {
	case <-c.closed:
		return false
	default:
	}
	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

// markStale asks the write pump to push a fresh projection. Requests
// coalesce.
func (c *Client) markStale() {
	select {
	case c.stale <- struct{}{}:
	default:
	}
}

func (c *Client) close() {
	c.once.Do(func() { close(c.closed) })
}

func (c *Client) reply(msg Message) {
	payload, err := json.Marshal(msg)
	if err != nil {
		c.hub.logger.Error("failed to encode reply", zap.String("type", msg.Type), zap.Error(err))
		return
	}
	if !c.queue(payload) {
		c.hub.logger.Warn("reply dropped", zap.String("client_id", c.id), zap.String("type", msg.Type))
	}
}

func (c *Client) readPump() {
	defer func() {
		c.leave()
		c.hub.remove(c)
		c.close()
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("websocket read failed", zap.String("client_id", c.id), zap.Error(err))
			}
			return
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			c.replyError("", errMalformedMessage)
			continue
		}
		c.handle(msg)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case <-c.closed:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return

		case payload := <-c.send:
			if err := c.write(websocket.TextMessage, payload); err != nil {
				return
			}

		case <-c.stale:
			if err := c.pushState(); err != nil {
				return
			}

		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) write(messageType int, payload []byte) error {
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(messageType, payload)
}

// pushState writes the bound player's projection. It runs on the write
// pump, outside any room publish path.
func (c *Client) pushState() error {
	roomID, playerID := c.binding()
	if roomID == "" {
		return nil
	}
	r, ok := c.hub.manager.GetRoom(roomID)
	if !ok {
		return nil
	}
	payload, err := json.Marshal(Message{
		Type:     "state",
		RoomID:   roomID,
		PlayerID: playerID,
		Data:     r.State(playerID),
	})
	if err != nil {
		c.hub.logger.Error("failed to encode state", zap.String("room_id", roomID), zap.Error(err))
		return nil
	}
	return c.write(websocket.TextMessage, payload)
}

// leave removes the bound player from its room.
func (c *Client) leave() {
	roomID, playerID := c.binding()
	if roomID == "" {
		return
	}
	c.unbind()
	if r, ok := c.hub.manager.GetRoom(roomID); ok {
		r.Leave(playerID)
	}
}
