package game

import (
	"fmt"

	"github.com/merchantscaravan/caravan-server/internal/game/cards"
)

// Options configures a game at room creation.
type Options struct {
	WinThreshold  int            `mapstructure:"win_threshold" json:"winThreshold"`
	MinPlayers    int            `mapstructure:"min_players" json:"minPlayers"`
	MaxPlayers    int            `mapstructure:"max_players" json:"maxPlayers"`
	HandSize      int            `mapstructure:"hand_size" json:"handSize"`
	TurnDrawCount int            `mapstructure:"turn_draw_count" json:"turnDrawCount"`
	Catalog       *cards.Catalog `mapstructure:"-" json:"-"`
}

// DefaultOptions returns the standard rules: 350 gold to win, 2 to 5 players,
// 10-card hands and a 2-card draw each turn.
func DefaultOptions() Options {
	return Options{
		WinThreshold:  350,
		MinPlayers:    2,
		MaxPlayers:    5,
		HandSize:      10,
		TurnDrawCount: 2,
	}
}

// Validate rejects inconsistent options.
func (o Options) Validate() error {
	if o.WinThreshold <= 0 {
		return fmt.Errorf("win threshold must be positive, got %d", o.WinThreshold)
	}
	if o.MinPlayers < 2 {
		return fmt.Errorf("min players must be at least 2, got %d", o.MinPlayers)
	}
	if o.MaxPlayers < o.MinPlayers {
		return fmt.Errorf("max players %d is below min players %d", o.MaxPlayers, o.MinPlayers)
	}
	if o.HandSize < 0 {
		return fmt.Errorf("hand size must not be negative, got %d", o.HandSize)
	}
	if o.TurnDrawCount < 0 {
		return fmt.Errorf("turn draw count must not be negative, got %d", o.TurnDrawCount)
	}
	if o.Catalog != nil {
		if err := o.Catalog.Validate(); err != nil {
			return fmt.Errorf("invalid catalog: %w", err)
		}
	}
	return nil
}

func (o Options) catalog() *cards.Catalog {
	if o.Catalog != nil {
		return o.Catalog
	}
	return cards.DefaultCatalog()
}
