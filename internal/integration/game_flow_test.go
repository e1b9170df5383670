package integration

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/merchantscaravan/caravan-server/internal/game"
	"github.com/merchantscaravan/caravan-server/internal/game/cards"
	"github.com/merchantscaravan/caravan-server/internal/publish"
	"github.com/merchantscaravan/caravan-server/internal/room"
	"github.com/merchantscaravan/caravan-server/internal/server"
	"github.com/merchantscaravan/caravan-server/internal/watchers"
)

const saffronCatalog = `
commodities:
  - category: SPICES
    goods:
      - { name: Saffron, value: 50, count: 40 }
`

// memoryResults stores results in process and serves them back.
type memoryResults struct {
	mu      sync.Mutex
	results []room.GameResult
}

func (m *memoryResults) RecordResult(_ context.Context, result room.GameResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results = append(m.results, result)
	return nil
}

func (m *memoryResults) RecentResults(_ context.Context, limit int) ([]room.GameResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.results) < limit {
		limit = len(m.results)
	}
	return append([]room.GameResult(nil), m.results[:limit]...), nil
}

// channelRecorder stands in for a redis client.
type channelRecorder struct {
	mu       sync.Mutex
	channels []string
	messages [][]byte
}

func (c *channelRecorder) Publish(_ context.Context, channel string, message interface{}) *redis.IntCmd {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.channels = append(c.channels, channel)
	c.messages = append(c.messages, message.([]byte))
	return redis.NewIntResult(1, nil)
}

type serverEnv struct {
	roomMgr   *room.Manager
	publisher *publish.RedisPublisher
	cancel    context.CancelFunc
	results   *memoryResults
	redis     *channelRecorder
	tracker   *watchers.Tracker
	http      *httptest.Server
	replayDir string
	logger    *zap.Logger
}

func newServerEnv(t testing.TB) *serverEnv {
	logger := zaptest.NewLogger(t)

	catalog, err := cards.LoadCatalog(strings.NewReader(saffronCatalog))
	if err != nil {
		t.Fatalf("failed to load catalog: %v", err)
	}
	opts := game.DefaultOptions()
	opts.Catalog = catalog
	opts.WinThreshold = 100

	results := &memoryResults{}
	replayDir := t.TempDir()
	roomMgr := room.NewManager(logger, opts,
		room.WithResultRecorder(results),
		room.WithReplayDir(replayDir),
	)

	redisClient := &channelRecorder{}
	publisher := publish.NewRedisPublisher(redisClient, logger)
	publisher.Attach(roomMgr)
	t.Cleanup(publisher.Detach)

	tracker := watchers.NewTracker(logger)
	tracker.Attach(roomMgr)
	t.Cleanup(tracker.Detach)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go publisher.Run(ctx)
	hub := server.NewHub(roomMgr, nil, logger)
	go hub.Run(ctx)

	srv := httptest.NewServer(server.NewRouter(roomMgr, hub, server.RouterConfig{
		Results: results,
		Stats:   tracker,
	}, logger))
	t.Cleanup(srv.Close)

	return &serverEnv{
		roomMgr:   roomMgr,
		publisher: publisher,
		cancel:    cancel,
		results:   results,
		redis:     redisClient,
		tracker:   tracker,
		http:      srv,
		replayDir: replayDir,
		logger:    logger,
	}
}

// flushPublisher stops the background services and waits until every queued
// event has reached the redis recorder.
func (e *serverEnv) flushPublisher() {
	e.cancel()
	e.publisher.Wait()
}

func (e *serverEnv) getJSON(t *testing.T, path string, out any) int {
	t.Helper()
	resp, err := http.Get(e.http.URL + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	defer resp.Body.Close()
	if out != nil && resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("failed to decode %s: %v", path, err)
		}
	}
	return resp.StatusCode
}

// TestWonGameReachesEveryBackend plays a short game to victory and checks
// that the result, replay, statistics and published events all agree.
func TestWonGameReachesEveryBackend(t *testing.T) {
	env := newServerEnv(t)

	resp, err := http.Post(env.http.URL+"/rooms", "application/json", strings.NewReader(`{"name":"Spice Road"}`))
	if err != nil {
		t.Fatalf("failed to create room: %v", err)
	}
	var created struct {
		Room room.RoomSummary `json:"room"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatalf("failed to decode room: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}

	r, ok := env.roomMgr.GetRoom(created.Room.ID)
	if !ok {
		t.Fatalf("room %s not registered", created.Room.ID)
	}
	for _, id := range []string{"alice", "bob"} {
		if err := r.Join(id, strings.ToUpper(id), ""); err != nil {
			t.Fatalf("join %s: %v", id, err)
		}
	}
	if err := r.Start("alice"); err != nil {
		t.Fatalf("failed to start: %v", err)
	}

	var hand []cards.Card
	for _, pv := range r.State("alice").Players {
		if pv.ID == "alice" {
			hand = pv.Hand
		}
	}
	if len(hand) < 2 {
		t.Fatalf("expected a dealt hand, got %d cards", len(hand))
	}
	if err := r.AddToVault("alice", []int{hand[0].ID, hand[1].ID}); err != nil {
		t.Fatalf("failed to vault: %v", err)
	}
	result, err := r.DeclareVictory(context.Background(), "alice")
	if err != nil {
		t.Fatalf("victory rejected: %v", err)
	}
	if !result.Success || result.Value != 100 {
		t.Fatalf("unexpected victory result: %+v", result)
	}

	var listed struct {
		Results []room.GameResult `json:"results"`
	}
	if code := env.getJSON(t, "/results", &listed); code != http.StatusOK {
		t.Fatalf("expected 200 from /results, got %d", code)
	}
	if len(listed.Results) != 1 || listed.Results[0].WinnerID != "alice" {
		t.Fatalf("unexpected results: %+v", listed.Results)
	}

	entries, err := os.ReadDir(env.replayDir)
	if err != nil {
		t.Fatalf("failed to list replays: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected one saved replay, got %d", len(entries))
	}

	var replay struct {
		Size int `json:"size"`
	}
	if code := env.getJSON(t, "/rooms/"+r.ID()+"/replay", &replay); code != http.StatusOK {
		t.Fatalf("expected 200 from replay, got %d", code)
	}
	if replay.Size != 3 {
		t.Fatalf("expected 3 snapshots, got %d", replay.Size)
	}

	var stats struct {
		Stats watchers.Stats `json:"stats"`
	}
	if code := env.getJSON(t, "/rooms/"+r.ID()+"/stats", &stats); code != http.StatusOK {
		t.Fatalf("expected 200 from stats, got %d", code)
	}
	if stats.Stats.Events != 3 {
		t.Fatalf("expected 3 watched events, got %d", stats.Stats.Events)
	}

	env.flushPublisher()
	env.redis.mu.Lock()
	defer env.redis.mu.Unlock()
	var sawVictory bool
	for i, msg := range env.redis.messages {
		if env.redis.channels[i] != publish.Channel(r.ID()) {
			t.Fatalf("event published on %s", env.redis.channels[i])
		}
		var e room.Event
		if err := json.Unmarshal(msg, &e); err != nil {
			t.Fatalf("published message is not an event: %v", err)
		}
		if len(e.Recipients) > 0 {
			t.Fatalf("private event %s reached redis", e.Type)
		}
		if e.Type == room.EventVictory {
			sawVictory = true
		}
	}
	if !sawVictory {
		t.Fatal("expected the victory to be published")
	}
}

// TestClosedRoomDropsEveryView checks that removing a room clears the views
// that hang off it.
func TestClosedRoomDropsEveryView(t *testing.T) {
	env := newServerEnv(t)

	r, err := env.roomMgr.CreateRoom(room.RoomOptions{})
	if err != nil {
		t.Fatalf("failed to create room: %v", err)
	}
	for _, id := range []string{"alice", "bob"} {
		if err := r.Join(id, id, ""); err != nil {
			t.Fatalf("join %s: %v", id, err)
		}
	}
	if err := r.Start("bob"); err != nil {
		t.Fatalf("failed to start: %v", err)
	}
	if _, ok := env.tracker.Stats(r.ID()); !ok {
		t.Fatal("expected stats for a started game")
	}

	req, _ := http.NewRequest(http.MethodDelete, env.http.URL+"/rooms/"+r.ID(), nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.StatusCode)
	}

	if _, ok := env.tracker.Stats(r.ID()); ok {
		t.Fatal("stats survived the room")
	}
	if code := env.getJSON(t, "/rooms/"+r.ID(), nil); code != http.StatusNotFound {
		t.Fatalf("expected 404 for a closed room, got %d", code)
	}
}
