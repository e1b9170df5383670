package game

import (
	"github.com/merchantscaravan/caravan-server/internal/game/cards"
	"github.com/merchantscaravan/caravan-server/internal/game/rules"
)

// View is the projection of a game sent to one player. Hands, vaults and
// vault declarations are only filled in for the requesting player.
type View struct {
	RoomID          string        `json:"roomId"`
	Phase           rules.Phase   `json:"phase"`
	Round           int           `json:"round"`
	CurrentPlayerID string        `json:"currentPlayerId,omitempty"`
	WinThreshold    int           `json:"winThreshold"`
	Winner          string        `json:"winner,omitempty"`
	DeckSize        int           `json:"deckSize"`
	DiscardPileSize int           `json:"discardPileSize"`
	DiscardPileTop  *cards.Card   `json:"discardPileTop,omitempty"`
	SubPhase        *SubPhaseView `json:"subPhase,omitempty"`
	Players         []PlayerView  `json:"players"`
}

// SubPhaseView shows which sub-phase is open and who has submitted.
type SubPhaseView struct {
	Kind      SubPhaseKind `json:"kind"`
	Submitted []string     `json:"submitted"`
}

// PlayerView is one seat as seen by the requesting player.
type PlayerView struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	HandSize      int             `json:"handSize"`
	VaultSize     int             `json:"vaultSize"`
	Ready         bool            `json:"ready"`
	Current       bool            `json:"current"`
	Hand          []cards.Card    `json:"hand,omitempty"`
	Vault         []cards.Card    `json:"vault,omitempty"`
	VaultCategory *cards.Category `json:"vaultCaravanType,omitempty"`
}

// ExportState returns the view of the game for forPlayerID. An empty or
// unknown id yields the public view with no private contents at all.
func (g *Game) ExportState(forPlayerID string) View {
	v := View{
		RoomID:          g.id,
		Phase:           g.phase,
		Round:           g.turn.Round(),
		CurrentPlayerID: g.CurrentPlayerID(),
		WinThreshold:    g.opts.WinThreshold,
		Winner:          g.winner,
		DeckSize:        len(g.deck),
		DiscardPileSize: len(g.discard),
		Players:         make([]PlayerView, 0, g.players.Len()),
	}
	if n := len(g.discard); n > 0 {
		top := g.discard[n-1]
		v.DiscardPileTop = &top
	}
	if g.sub != nil {
		v.SubPhase = &SubPhaseView{Kind: g.sub.Kind(), Submitted: g.sub.Submitted()}
	}

	current := v.CurrentPlayerID
	for _, p := range g.players.Players() {
		pv := PlayerView{
			ID:        p.ID,
			Name:      p.Name,
			HandSize:  len(p.Hand),
			VaultSize: len(p.Vault),
			Ready:     g.ready.Has(p.ID),
			Current:   g.phase == rules.PhaseTurn && p.ID == current,
		}
		if forPlayerID != "" && p.ID == forPlayerID {
			pv.Hand = cards.Clone(p.Hand)
			pv.Vault = cards.Clone(p.Vault)
			if c, ok := p.DeclaredCategory(); ok {
				pv.VaultCategory = &c
			}
		}
		v.Players = append(v.Players, pv)
	}
	return v
}
