package room

import (
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/merchantscaravan/caravan-server/internal/game"
	"github.com/merchantscaravan/caravan-server/internal/game/shuffle"
)

// RoomOptions configures a new room. Zero values fall back to the manager's
// defaults.
type RoomOptions struct {
	Name         string `json:"name" mapstructure:"name"`
	Password     string `json:"password,omitempty" mapstructure:"password"`
	WinThreshold int    `json:"winThreshold,omitempty" mapstructure:"winThreshold"`
	MinPlayers   int    `json:"minPlayers,omitempty" mapstructure:"minPlayers"`
	MaxPlayers   int    `json:"maxPlayers,omitempty" mapstructure:"maxPlayers"`
}

// ManagerOption customizes a Manager.
type ManagerOption func(*Manager)

// WithResultRecorder stores finished games with rec.
func WithResultRecorder(rec ResultRecorder) ManagerOption {
	return func(m *Manager) { m.recorder = rec }
}

// WithRandSource sets the generator factory used for new rooms.
func WithRandSource(source func() *rand.Rand) ManagerOption {
	return func(m *Manager) { m.newRand = source }
}

// WithReplayDir saves the replay of every won game under dir.
func WithReplayDir(dir string) ManagerOption {
	return func(m *Manager) { m.replayDir = dir }
}

// Manager owns every room of the process.
type Manager struct {
	rooms    map[string]*Room
	mu       sync.RWMutex
	logger   *zap.Logger
	defaults game.Options
	bus      *EventBus
	recorder ResultRecorder
	newRand  func() *rand.Rand

	replayDir string
}

// NewManager creates an empty room registry.
func NewManager(logger *zap.Logger, defaults game.Options, opts ...ManagerOption) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Manager{
		rooms:    make(map[string]*Room),
		logger:   logger,
		defaults: defaults,
		bus:      NewEventBus(),
		newRand:  shuffle.NewSource,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Subscribe registers a listener for the events of every room. Listeners run
// on the publishing goroutine while the room's publish lock is held; they
// must not call back into a Room.
func (m *Manager) Subscribe(listener Listener) int {
	return m.bus.Subscribe(listener)
}

// Unsubscribe removes a listener registered with Subscribe.
func (m *Manager) Unsubscribe(handle int) {
	m.bus.Unsubscribe(handle)
}

// CreateRoom registers a new room with a short random id.
func (m *Manager) CreateRoom(opts RoomOptions) (*Room, error) {
	gameOpts := m.defaults
	if opts.WinThreshold > 0 {
		gameOpts.WinThreshold = opts.WinThreshold
	}
	if opts.MinPlayers > 0 {
		gameOpts.MinPlayers = opts.MinPlayers
	}
	if opts.MaxPlayers > 0 {
		gameOpts.MaxPlayers = opts.MaxPlayers
	}
	if err := gameOpts.Validate(); err != nil {
		return nil, fmt.Errorf("invalid room options: %w", err)
	}

	var hash []byte
	if opts.Password != "" {
		var err error
		hash, err = bcrypt.GenerateFromPassword([]byte(opts.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("failed to hash room password: %w", err)
		}
	}

	m.mu.Lock()
	id := m.newRoomIDLocked()
	name := opts.Name
	if name == "" {
		name = "Room " + id
	}
	r := newRoom(id, name, hash, gameOpts, m.newRand(), m.bus, m.recorder, m.logger)
	r.onEmpty = m.closeRoom
	r.replayDir = m.replayDir
	m.rooms[id] = r
	m.mu.Unlock()

	m.logger.Info("room created",
		zap.String("room_id", id),
		zap.String("name", name),
		zap.Int("win_threshold", gameOpts.WinThreshold),
		zap.Int("max_players", gameOpts.MaxPlayers),
	)
	m.bus.Publish(NewEvent(EventRoomCreated, id, ""))
	return r, nil
}

// newRoomIDLocked returns an unused 8-character id.
func (m *Manager) newRoomIDLocked() string {
	for {
		id := strings.ReplaceAll(uuid.New().String(), "-", "")[:8]
		if _, exists := m.rooms[id]; !exists {
			return id
		}
	}
}

// GetRoom retrieves a room by id.
func (m *Manager) GetRoom(roomID string) (*Room, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.rooms[roomID]
	return r, ok
}

// RemoveRoom deletes a room. It reports whether the room existed.
func (m *Manager) RemoveRoom(roomID string) bool {
	m.mu.Lock()
	_, ok := m.rooms[roomID]
	delete(m.rooms, roomID)
	m.mu.Unlock()

	if ok {
		m.logger.Info("room removed", zap.String("room_id", roomID))
		m.bus.Publish(NewEvent(EventRoomClosed, roomID, ""))
	}
	return ok
}

func (m *Manager) closeRoom(roomID string) {
	m.RemoveRoom(roomID)
}

// ListRooms returns summaries of every room, oldest first.
func (m *Manager) ListRooms() []RoomSummary {
	m.mu.RLock()
	rooms := make([]*Room, 0, len(m.rooms))
	for _, r := range m.rooms {
		rooms = append(rooms, r)
	}
	m.mu.RUnlock()

	summaries := make([]RoomSummary, 0, len(rooms))
	for _, r := range rooms {
		summaries = append(summaries, r.Summary())
	}
	sort.Slice(summaries, func(i, j int) bool {
		if summaries[i].CreatedAt.Equal(summaries[j].CreatedAt) {
			return summaries[i].ID < summaries[j].ID
		}
		return summaries[i].CreatedAt.Before(summaries[j].CreatedAt)
	})
	return summaries
}

// RoomCount returns the number of open rooms.
func (m *Manager) RoomCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rooms)
}
