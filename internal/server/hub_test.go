package server

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/merchantscaravan/caravan-server/internal/game"
	"github.com/merchantscaravan/caravan-server/internal/room"
)

type wireMessage struct {
	Type     string          `json:"type"`
	RoomID   string          `json:"room_id"`
	PlayerID string          `json:"player_id"`
	Data     json.RawMessage `json:"data"`
}

type wsFixture struct {
	manager *room.Manager
	hub     *Hub
	url     string
}

func newWSFixture(t *testing.T) *wsFixture {
	t.Helper()
	logger := zaptest.NewLogger(t)
	m := room.NewManager(logger, game.DefaultOptions())
	hub := NewHub(m, nil, logger)

	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	srv := httptest.NewServer(NewRouter(m, hub, RouterConfig{}, logger))
	t.Cleanup(func() {
		srv.Close()
		cancel()
	})
	return &wsFixture{
		manager: m,
		hub:     hub,
		url:     "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws",
	}
}

func (f *wsFixture) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(f.url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, msg Message) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(msg))
}

// readUntil returns the first message accepted by match.
func readUntil(t *testing.T, conn *websocket.Conn, match func(wireMessage) bool) wireMessage {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		require.NoError(t, conn.SetReadDeadline(deadline))
		var msg wireMessage
		require.NoError(t, conn.ReadJSON(&msg))
		if match(msg) {
			return msg
		}
	}
}

func ofType(msgType string) func(wireMessage) bool {
	return func(m wireMessage) bool { return m.Type == msgType }
}

func stateInPhase(phase string) func(wireMessage) bool {
	return func(m wireMessage) bool {
		if m.Type != "state" {
			return false
		}
		var view game.View
		return json.Unmarshal(m.Data, &view) == nil && view.Phase.String() == phase
	}
}

func TestWebSocketGameFlow(t *testing.T) {
	f := newWSFixture(t)
	r, err := f.manager.CreateRoom(room.RoomOptions{})
	require.NoError(t, err)

	alice := f.dial(t)
	bob := f.dial(t)

	send(t, alice, Message{Type: "join_room", RoomID: r.ID(), PlayerID: "alice", Data: map[string]any{"name": "Alice"}})
	joined := readUntil(t, alice, ofType("joined"))
	assert.Equal(t, "alice", joined.PlayerID)
	assert.Equal(t, r.ID(), joined.RoomID)

	send(t, bob, Message{Type: "join_room", RoomID: r.ID(), PlayerID: "bob", Data: map[string]any{"name": "Bob"}})
	readUntil(t, bob, ofType("joined"))

	send(t, alice, Message{Type: "start_game"})

	for _, tc := range []struct {
		conn *websocket.Conn
		self string
	}{{alice, "alice"}, {bob, "bob"}} {
		msg := readUntil(t, tc.conn, stateInPhase("vault"))
		var view game.View
		require.NoError(t, json.Unmarshal(msg.Data, &view))
		for _, p := range view.Players {
			if p.ID == tc.self {
				assert.Len(t, p.Hand, 10, "own hand is visible")
			} else {
				assert.Nil(t, p.Hand, "other hands stay hidden")
				assert.Equal(t, 10, p.HandSize)
			}
		}
	}

	hand, ok := func() ([]int, bool) {
		for _, p := range r.State("alice").Players {
			if p.ID == "alice" {
				ids := make([]int, 0, len(p.Hand))
				for _, c := range p.Hand {
					ids = append(ids, c.ID)
				}
				return ids, true
			}
		}
		return nil, false
	}()
	require.True(t, ok)

	send(t, alice, Message{Type: "discard", Data: map[string]any{"cardIds": []int{hand[0]}}})
	result := readUntil(t, alice, ofType("result"))
	assert.Contains(t, string(result.Data), `"command":"discard"`)

	send(t, alice, Message{Type: "end_turn"})
	failure := readUntil(t, alice, ofType("error"))
	var body errorBody
	require.NoError(t, json.Unmarshal(failure.Data, &body))
	assert.Equal(t, "end_turn", body.Command)
	assert.Equal(t, "FailedPrecondition", body.Code)
}

func TestWebSocketErrors(t *testing.T) {
	f := newWSFixture(t)
	conn := f.dial(t)

	send(t, conn, Message{Type: "draw"})
	msg := readUntil(t, conn, ofType("error"))
	var body errorBody
	require.NoError(t, json.Unmarshal(msg.Data, &body))
	assert.Equal(t, "PermissionDenied", body.Code)

	send(t, conn, Message{Type: "join_room", RoomID: "nowhere"})
	msg = readUntil(t, conn, ofType("error"))
	require.NoError(t, json.Unmarshal(msg.Data, &body))
	assert.Equal(t, "NotFound", body.Code)

	send(t, conn, Message{Type: "juggle"})
	msg = readUntil(t, conn, ofType("error"))
	require.NoError(t, json.Unmarshal(msg.Data, &body))
	assert.Equal(t, "Unimplemented", body.Code)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	msg = readUntil(t, conn, ofType("error"))
	require.NoError(t, json.Unmarshal(msg.Data, &body))
	assert.Equal(t, "InvalidArgument", body.Code)
}

func TestWebSocketDisconnectLeavesRoom(t *testing.T) {
	f := newWSFixture(t)
	r, err := f.manager.CreateRoom(room.RoomOptions{})
	require.NoError(t, err)

	alice := f.dial(t)
	bob := f.dial(t)
	send(t, alice, Message{Type: "join_room", RoomID: r.ID(), PlayerID: "alice"})
	readUntil(t, alice, ofType("joined"))
	send(t, bob, Message{Type: "join_room", RoomID: r.ID(), PlayerID: "bob"})
	readUntil(t, bob, ofType("joined"))

	require.NoError(t, alice.Close())

	left := readUntil(t, bob, func(m wireMessage) bool {
		return m.Type == "event" && strings.Contains(string(m.Data), string(room.EventPlayerLeft))
	})
	assert.Contains(t, string(left.Data), `"playerId":"alice"`)
	assert.Equal(t, []string{"bob"}, r.PlayerIDs())
	assert.Eventually(t, func() bool { return f.hub.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestDecodeUsesJSONTags(t *testing.T) {
	var play game.ActionPlay
	require.NoError(t, decode(map[string]any{
		"cardId":   float64(12),
		"targetId": "bob",
		"swap":     map[string]any{"handCardId": float64(3), "vaultCardId": "4"},
	}, &play))
	assert.Equal(t, 12, play.CardID)
	assert.Equal(t, "bob", play.TargetID)
	require.NotNil(t, play.Swap)
	assert.Equal(t, 4, play.Swap.VaultCardID)

	var req cardsRequest
	assert.Error(t, decode(map[string]any{"cardIds": "many"}, &req))
}
