package game

import (
	"compress/gzip"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const replayVersion = 1

// Snapshot is the public view of a game after one state change.
type Snapshot struct {
	Seq        int       `json:"seq"`
	Checksum   string    `json:"checksum"`
	View       View      `json:"view"`
	RecordedAt time.Time `json:"recordedAt"`
}

// Replay is the ordered list of public snapshots of one game, with a cursor
// for playback. Hands never appear in a replay.
type Replay struct {
	RoomID       string
	StartedAt    time.Time
	States       []Snapshot
	CurrentIndex int
	mu           sync.RWMutex
}

func NewReplay(roomID string) *Replay {
	return &Replay{
		RoomID:    roomID,
		StartedAt: time.Now(),
		States:    make([]Snapshot, 0),
	}
}

// Record appends the current public state of g.
func (r *Replay) Record(g *Game) {
	snap := Snapshot{
		Checksum:   g.Checksum(),
		View:       g.ExportState(""),
		RecordedAt: time.Now(),
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	snap.Seq = len(r.States)
	r.States = append(r.States, snap)
}

// Start resets the cursor to the beginning.
func (r *Replay) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.CurrentIndex = 0
}

// Next returns the snapshot under the cursor and advances it.
func (r *Replay) Next() (Snapshot, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.CurrentIndex < len(r.States) {
		s := r.States[r.CurrentIndex]
		r.CurrentIndex++
		return s, true
	}
	return Snapshot{}, false
}

// Previous moves the cursor back and returns the snapshot there.
func (r *Replay) Previous() (Snapshot, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.CurrentIndex > 0 {
		r.CurrentIndex--
		return r.States[r.CurrentIndex], true
	}
	return Snapshot{}, false
}

// Skip moves the cursor by count, clamped to the recorded range.
func (r *Replay) Skip(count int) (Snapshot, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.States) == 0 {
		return Snapshot{}, false
	}
	idx := min(max(r.CurrentIndex+count, 0), len(r.States)-1)
	r.CurrentIndex = idx
	return r.States[idx], true
}

func (r *Replay) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.States)
}

// At returns the snapshot at index.
func (r *Replay) At(index int) (Snapshot, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if index >= 0 && index < len(r.States) {
		return r.States[index], true
	}
	return Snapshot{}, false
}

type replayMetadata struct {
	RoomID     string
	StartedAt  time.Time
	SavedAt    time.Time
	Version    int
	StateCount int
}

// FileName is the name SaveToFile writes under its directory.
func (r *Replay) FileName() string {
	return fmt.Sprintf("%s-%d.replay", r.RoomID, r.StartedAt.UnixNano())
}

// SaveToFile writes the replay as gzipped gob into directory and returns the
// file path.
func (r *Replay) SaveToFile(directory string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if err := os.MkdirAll(directory, 0o755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}

	path := filepath.Join(directory, r.FileName())
	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	gz := gzip.NewWriter(file)
	enc := gob.NewEncoder(gz)

	meta := replayMetadata{
		RoomID:     r.RoomID,
		StartedAt:  r.StartedAt,
		SavedAt:    time.Now(),
		Version:    replayVersion,
		StateCount: len(r.States),
	}
	if err := enc.Encode(&meta); err != nil {
		return "", fmt.Errorf("failed to encode metadata: %w", err)
	}
	for i := range r.States {
		if err := enc.Encode(&r.States[i]); err != nil {
			return "", fmt.Errorf("failed to encode state %d: %w", i, err)
		}
	}
	if err := gz.Close(); err != nil {
		return "", fmt.Errorf("failed to flush replay: %w", err)
	}
	return path, nil
}

// LoadReplayFromFile reads a replay written by SaveToFile.
func LoadReplayFromFile(path string) (*Replay, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	gz, err := gzip.NewReader(file)
	if err != nil {
		return nil, fmt.Errorf("failed to create gzip reader: %w", err)
	}
	defer gz.Close()

	dec := gob.NewDecoder(gz)
	var meta replayMetadata
	if err := dec.Decode(&meta); err != nil {
		return nil, fmt.Errorf("failed to decode metadata: %w", err)
	}
	if meta.Version != replayVersion {
		return nil, fmt.Errorf("unsupported replay version: %d", meta.Version)
	}

	replay := &Replay{
		RoomID:    meta.RoomID,
		StartedAt: meta.StartedAt,
		States:    make([]Snapshot, 0, meta.StateCount),
	}
	for i := 0; i < meta.StateCount; i++ {
		var s Snapshot
		if err := dec.Decode(&s); err != nil {
			return nil, fmt.Errorf("failed to decode state %d: %w", i, err)
		}
		replay.States = append(replay.States, s)
	}
	return replay, nil
}
