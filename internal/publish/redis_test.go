package publish

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/merchantscaravan/caravan-server/internal/game"
	"github.com/merchantscaravan/caravan-server/internal/room"
)

type published struct {
	channel string
	message []byte
}

type fakeClient struct {
	mu       sync.Mutex
	messages []published
	err      error
	release  chan struct{}
}

func (f *fakeClient) Publish(_ context.Context, channel string, message interface{}) *redis.IntCmd {
	if f.release != nil {
		<-f.release
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return redis.NewIntResult(0, f.err)
	}
	f.messages = append(f.messages, published{channel: channel, message: message.([]byte)})
	return redis.NewIntResult(1, nil)
}

func (f *fakeClient) published() []published {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]published(nil), f.messages...)
}

// runPublisher starts p and returns a func that stops it and waits for the
// queue to drain.
func runPublisher(p *RedisPublisher) func() {
	ctx, cancel := context.WithCancel(context.Background())
	go p.Run(ctx)
	return func() {
		cancel()
		p.Wait()
	}
}

func TestChannel(t *testing.T) {
	assert.Equal(t, "caravan:room:ab12cd34:events", Channel("ab12cd34"))
}

func TestHandleSkipsPrivateEvents(t *testing.T) {
	client := &fakeClient{}
	p := NewRedisPublisher(client, zaptest.NewLogger(t))
	stop := runPublisher(p)

	public := room.NewEvent(room.EventActionPlayed, "r1", "a")
	private := room.NewEvent(room.EventAuditResult, "r1", "a")
	private.Recipients = []string{"a"}

	p.Handle(public)
	p.Handle(private)
	stop()

	messages := client.published()
	require.Len(t, messages, 1)
	assert.Equal(t, "caravan:room:r1:events", messages[0].channel)

	var decoded room.Event
	require.NoError(t, json.Unmarshal(messages[0].message, &decoded))
	assert.Equal(t, room.EventActionPlayed, decoded.Type)
	assert.Equal(t, "a", decoded.PlayerID)
}

func TestHandleSwallowsPublishErrors(t *testing.T) {
	client := &fakeClient{err: errors.New("connection refused")}
	p := NewRedisPublisher(client, zaptest.NewLogger(t))
	stop := runPublisher(p)

	assert.NotPanics(t, func() {
		p.Handle(room.NewEvent(room.EventRoomCreated, "r1", ""))
		stop()
	})
	assert.Empty(t, client.published())
}

func TestRunFlushesQueueOnShutdown(t *testing.T) {
	client := &fakeClient{}
	p := NewRedisPublisher(client, zaptest.NewLogger(t))

	p.Handle(room.NewEvent(room.EventRoomCreated, "r1", ""))
	p.Handle(room.NewEvent(room.EventPlayerJoined, "r1", "a"))
	p.Handle(room.NewEvent(room.EventPlayerJoined, "r1", "b"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p.Run(ctx)

	assert.Len(t, client.published(), 3)

	p.Handle(room.NewEvent(room.EventPlayerLeft, "r1", "a"))
	assert.Len(t, client.published(), 3, "nothing is queued once Run has returned")
}

func TestHandleDoesNotWaitForRedis(t *testing.T) {
	client := &fakeClient{release: make(chan struct{})}
	p := NewRedisPublisher(client, zaptest.NewLogger(t))
	stop := runPublisher(p)

	handled := make(chan struct{})
	go func() {
		defer close(handled)
		for i := 0; i < queueSize+10; i++ {
			p.Handle(room.NewEvent(room.EventActionPlayed, "r1", "a"))
		}
	}()

	select {
	case <-handled:
	case <-time.After(5 * time.Second):
		t.Fatal("Handle blocked on a stalled redis")
	}

	close(client.release)
	stop()

	n := len(client.published())
	assert.GreaterOrEqual(t, n, queueSize)
	assert.LessOrEqual(t, n, queueSize+1, "overflow beyond the queue is dropped")
}

func TestAttachForwardsRoomEvents(t *testing.T) {
	client := &fakeClient{}
	p := NewRedisPublisher(client, zaptest.NewLogger(t))
	stop := runPublisher(p)
	m := room.NewManager(zaptest.NewLogger(t), game.DefaultOptions())
	p.Attach(m)

	r, err := m.CreateRoom(room.RoomOptions{})
	require.NoError(t, err)
	require.NoError(t, r.Join("a", "Alice", ""))
	assert.Eventually(t, func() bool {
		return len(client.published()) == 2
	}, time.Second, 10*time.Millisecond)
	for _, msg := range client.published() {
		assert.Equal(t, Channel(r.ID()), msg.channel)
	}

	p.Detach()
	require.NoError(t, r.Join("b", "Bob", ""))
	stop()
	assert.Len(t, client.published(), 2)
}
