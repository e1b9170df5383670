// Package publish mirrors public room events onto Redis pub/sub so that
// processes outside the server can follow games.
package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/merchantscaravan/caravan-server/internal/config"
	"github.com/merchantscaravan/caravan-server/internal/room"
)

const (
	publishTimeout = 2 * time.Second
	queueSize      = 1024
)

// Client is the subset of *redis.Client the publisher needs.
type Client interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// Channel is the pub/sub channel carrying the events of one room.
func Channel(roomID string) string {
	return fmt.Sprintf("caravan:room:%s:events", roomID)
}

// Dial connects to Redis and checks the connection.
func Dial(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Address, err)
	}
	return client, nil
}

// RedisPublisher forwards public events. Events with recipients are never
// published. The room listener only queues; Run does the network work.
type RedisPublisher struct {
	client Client
	logger *zap.Logger
	events chan room.Event
	done   chan struct{}

	mu      sync.Mutex
	manager *room.Manager
	handle  int
}

func NewRedisPublisher(client Client, logger *zap.Logger) *RedisPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisPublisher{
		client: client,
		logger: logger,
		events: make(chan room.Event, queueSize),
		done:   make(chan struct{}),
		handle: -1,
	}
}

// Attach subscribes the publisher to every room of m.
func (p *RedisPublisher) Attach(m *room.Manager) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.manager != nil {
		p.manager.Unsubscribe(p.handle)
	}
	p.manager = m
	p.handle = m.Subscribe(p.Handle)
}

// Detach stops forwarding.
func (p *RedisPublisher) Detach() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.manager != nil {
		p.manager.Unsubscribe(p.handle)
		p.manager = nil
		p.handle = -1
	}
}

// Run publishes queued events until ctx is done, then flushes what is
// still queued.
func (p *RedisPublisher) Run(ctx context.Context) {
	defer close(p.done)
	for {
		select {
		case <-ctx.Done():
			for {
				select {
				case e := <-p.events:
					p.publish(e)
				default:
					return
				}
			}
		case e := <-p.events:
			p.publish(e)
		}
	}
}

// Wait blocks until Run has returned.
func (p *RedisPublisher) Wait() {
	<-p.done
}

// Handle queues a public event. It never blocks: listeners run inside the
// room's publish path, so a full queue drops the event.
func (p *RedisPublisher) Handle(e room.Event) {
	if e.Private() {
		return
	}
	select {
	case <-p.done:
		return
	default:
	}
	select {
	case p.events <- e:
	default:
		p.logger.Warn("publish queue full, dropping event",
			zap.String("room_id", e.RoomID),
			zap.String("type", string(e.Type)),
		)
	}
}

func (p *RedisPublisher) publish(e room.Event) {
	payload, err := json.Marshal(e)
	if err != nil {
		p.logger.Warn("failed to encode event", zap.String("type", string(e.Type)), zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := p.client.Publish(ctx, Channel(e.RoomID), payload).Err(); err != nil {
		p.logger.Warn("failed to publish event",
			zap.String("room_id", e.RoomID),
			zap.String("type", string(e.Type)),
			zap.Error(err),
		)
	}
}
