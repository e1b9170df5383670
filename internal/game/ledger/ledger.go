// Package ledger keeps the per-player state of a room in turn order.
package ledger

import (
	"errors"
	"fmt"

	"github.com/merchantscaravan/caravan-server/internal/game/cards"
)

var (
	ErrRoomFull        = errors.New("room is full")
	ErrDuplicatePlayer = errors.New("player already in game")
)

// Player holds the mutable state of one participant.
type Player struct {
	ID    string
	Name  string
	Hand  []cards.Card
	Vault []cards.Card
	// VaultCategory is nil until the first commodity enters the vault.
	VaultCategory *cards.Category
}

// DeclaredCategory returns the declared vault category and whether one is set.
func (p *Player) DeclaredCategory() (cards.Category, bool) {
	if p.VaultCategory == nil {
		return "", false
	}
	return *p.VaultCategory, true
}

// Declare sets the vault category.
func (p *Player) Declare(c cards.Category) {
	p.VaultCategory = &c
}

// ResetVault empties the vault and clears the declaration.
func (p *Player) ResetVault() {
	p.Vault = nil
	p.VaultCategory = nil
}

// Ledger is the ordered set of players in a room. Join order is turn order.
type Ledger struct {
	max     int
	players []*Player
}

// New creates a ledger capped at max players.
func New(max int) *Ledger {
	return &Ledger{max: max}
}

// Add appends a new player.
func (l *Ledger) Add(id, name string) (*Player, error) {
	if _, ok := l.Get(id); ok {
		return nil, fmt.Errorf("%w: %s", ErrDuplicatePlayer, id)
	}
	if len(l.players) >= l.max {
		return nil, fmt.Errorf("%w: %d players", ErrRoomFull, l.max)
	}
	p := &Player{ID: id, Name: name}
	l.players = append(l.players, p)
	return p, nil
}

// Remove deletes the player and returns it with the index it occupied.
func (l *Ledger) Remove(id string) (*Player, int, bool) {
	idx := l.IndexOf(id)
	if idx == -1 {
		return nil, -1, false
	}
	p := l.players[idx]
	l.players = append(l.players[:idx], l.players[idx+1:]...)
	return p, idx, true
}

// Get looks a player up by id. Absence is a normal result, not an error.
func (l *Ledger) Get(id string) (*Player, bool) {
	idx := l.IndexOf(id)
	if idx == -1 {
		return nil, false
	}
	return l.players[idx], true
}

// IndexOf returns the turn-order index of id, or -1.
func (l *Ledger) IndexOf(id string) int {
	for i, p := range l.players {
		if p.ID == id {
			return i
		}
	}
	return -1
}

// At returns the player at turn-order index i.
func (l *Ledger) At(i int) *Player {
	return l.players[i]
}

// Len returns the number of players.
func (l *Ledger) Len() int {
	return len(l.players)
}

// Max returns the configured capacity.
func (l *Ledger) Max() int {
	return l.max
}

// IDs returns player ids in turn order.
func (l *Ledger) IDs() []string {
	ids := make([]string, len(l.players))
	for i, p := range l.players {
		ids[i] = p.ID
	}
	return ids
}

// Players returns the players in turn order. The slice is a copy; the
// players are shared.
func (l *Ledger) Players() []*Player {
	return append([]*Player(nil), l.players...)
}
