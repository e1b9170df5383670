package game

import (
	"fmt"

	"github.com/merchantscaravan/caravan-server/internal/game/cards"
	"github.com/merchantscaravan/caravan-server/internal/game/ledger"
	"github.com/merchantscaravan/caravan-server/internal/game/rules"
	"github.com/merchantscaravan/caravan-server/internal/game/shuffle"
)

const (
	fireDiscardCount   = 2
	smugglerDrawCount  = 3
	smugglerDiscardOwe = 1
)

// Swap selects the two cards exchanged by a Fence.
type Swap struct {
	HandCardID  int `json:"handCardId" mapstructure:"handCardId"`
	VaultCardID int `json:"vaultCardId" mapstructure:"vaultCardId"`
}

// ActionPlay is an action card played by the current player.
type ActionPlay struct {
	CardID   int    `json:"cardId" mapstructure:"cardId"`
	TargetID string `json:"targetId,omitempty" mapstructure:"targetId"`
	Swap     *Swap  `json:"swap,omitempty" mapstructure:"swap"`
}

// ForcedDiscard tells the caller that a player owes discards.
type ForcedDiscard struct {
	PlayerID string `json:"playerId"`
	Count    int    `json:"count"`
}

// ActionOutcome describes what an action card did. Only the fields of the
// played action are set.
type ActionOutcome struct {
	Action   cards.ActionKind `json:"action"`
	Card     cards.Card       `json:"card"`
	ActorID  string           `json:"actorId"`
	TargetID string           `json:"targetId,omitempty"`

	Stolen        *cards.Card    `json:"stolen,omitempty"`
	ForcedDiscard *ForcedDiscard `json:"forcedDiscard,omitempty"`
	Drawn         []cards.Card   `json:"drawn,omitempty"`
	AuditedHand   []cards.Card   `json:"auditedHand,omitempty"`
	SubPhase      SubPhaseKind   `json:"subPhase,omitempty"`
	Swapped       *Swap          `json:"swapped,omitempty"`
}

// ExchangeResult lists the cards that actually moved in a trade.
type ExchangeResult struct {
	FromA []cards.Card `json:"fromA"`
	FromB []cards.Card `json:"fromB"`
}

// PlayAction plays an action card from the current player's hand. The card
// goes to the discard pile and its effect applies immediately. Target and
// card selections are checked before the card leaves the hand.
func (g *Game) PlayAction(actorID string, play ActionPlay) (ActionOutcome, error) {
	actor, err := g.currentTurnPlayer(actorID)
	if err != nil {
		return ActionOutcome{}, err
	}
	idx := cards.IndexOf(actor.Hand, play.CardID)
	if idx == -1 {
		return ActionOutcome{}, fmt.Errorf("%w: %d", ErrCardNotInHand, play.CardID)
	}
	card := actor.Hand[idx]
	if !card.IsAction() {
		return ActionOutcome{}, fmt.Errorf("%w: %s", ErrNotActionCard, card.Name)
	}

	var target *ledger.Player
	if card.Action.Targeted() {
		if target, err = g.target(actorID, play.TargetID); err != nil {
			return ActionOutcome{}, err
		}
	}
	if card.Action == cards.ActionFence {
		if play.Swap == nil {
			return ActionOutcome{}, fmt.Errorf("%w: fence needs a hand card and a vault card", ErrInvalidSelection)
		}
		if play.Swap.HandCardID == card.ID {
			return ActionOutcome{}, fmt.Errorf("%w: cannot vault the fence being played", ErrInvalidSelection)
		}
		if _, err := checkSwap(actor, play.Swap.HandCardID, play.Swap.VaultCardID); err != nil {
			return ActionOutcome{}, err
		}
	}

	actor.Hand = cards.RemoveAt(actor.Hand, idx)
	g.discard = append(g.discard, card)

	outcome := ActionOutcome{Action: card.Action, Card: card, ActorID: actorID}
	if target != nil {
		outcome.TargetID = target.ID
	}

	switch card.Action {
	case cards.ActionThief:
		outcome.Stolen = g.steal(actor, target)
	case cards.ActionFire:
		outcome.ForcedDiscard = &ForcedDiscard{PlayerID: target.ID, Count: min(fireDiscardCount, len(target.Hand))}
	case cards.ActionSmuggler:
		drawn := g.draw(smugglerDrawCount)
		actor.Hand = append(actor.Hand, drawn...)
		outcome.Drawn = drawn
		outcome.ForcedDiscard = &ForcedDiscard{PlayerID: actorID, Count: min(smugglerDiscardOwe, len(actor.Hand))}
	case cards.ActionAudit:
		outcome.AuditedHand = cards.Clone(target.Hand)
	case cards.ActionMarketDay:
		g.sub = newSimultaneousReveal()
		outcome.SubPhase = SubPhaseSimultaneousReveal
	case cards.ActionTaxDay:
		g.sub = newMassDiscard()
		outcome.SubPhase = SubPhaseMassDiscard
	case cards.ActionFence:
		swap := *play.Swap
		g.swap(actor, swap.HandCardID, swap.VaultCardID)
		outcome.Swapped = &swap
	}
	return outcome, nil
}

// StealRandomCard moves one uniformly chosen card from the target's hand to
// the actor's hand. It returns nil when the target's hand is empty.
func (g *Game) StealRandomCard(actorID, targetID string) (*cards.Card, error) {
	actor, target, err := g.pairInPlay(actorID, targetID)
	if err != nil {
		return nil, err
	}
	return g.steal(actor, target), nil
}

// SwapHandAndVault exchanges one hand card with one vault card. The card
// entering the vault follows the AddToVault category rules, judged after the
// outgoing card has left.
func (g *Game) SwapHandAndVault(playerID string, handCardID, vaultCardID int) error {
	if err := g.requirePhase(rules.PhaseVault, rules.PhaseTurn); err != nil {
		return err
	}
	if g.sub != nil {
		return ErrSubPhaseActive
	}
	p, err := g.player(playerID)
	if err != nil {
		return err
	}
	if _, err := checkSwap(p, handCardID, vaultCardID); err != nil {
		return err
	}
	g.swap(p, handCardID, vaultCardID)
	return nil
}

// ExchangeCards trades cards between two players' hands in one step. Ids no
// longer held by their side are skipped rather than failing the trade.
func (g *Game) ExchangeCards(aID string, aCardIDs []int, bID string, bCardIDs []int) (ExchangeResult, error) {
	a, b, err := g.pairInPlay(aID, bID)
	if err != nil {
		return ExchangeResult{}, err
	}
	aRemaining, fromA := cards.Take(a.Hand, aCardIDs)
	bRemaining, fromB := cards.Take(b.Hand, bCardIDs)
	a.Hand = append(aRemaining, fromB...)
	b.Hand = append(bRemaining, fromA...)
	return ExchangeResult{FromA: cards.Clone(fromA), FromB: cards.Clone(fromB)}, nil
}

func (g *Game) steal(actor, target *ledger.Player) *cards.Card {
	if len(target.Hand) == 0 {
		return nil
	}
	idx := shuffle.Pick(g.rng, len(target.Hand))
	stolen := target.Hand[idx]
	target.Hand = cards.RemoveAt(target.Hand, idx)
	actor.Hand = append(actor.Hand, stolen)
	return &stolen
}

// checkSwap validates a hand/vault swap and returns the category the vault
// will carry afterwards.
func checkSwap(p *ledger.Player, handCardID, vaultCardID int) (*cards.Category, error) {
	handIdx := cards.IndexOf(p.Hand, handCardID)
	if handIdx == -1 {
		return nil, fmt.Errorf("%w: %d", ErrCardNotInHand, handCardID)
	}
	vaultIdx := cards.IndexOf(p.Vault, vaultCardID)
	if vaultIdx == -1 {
		return nil, fmt.Errorf("%w: %d", ErrCardNotInVault, vaultCardID)
	}
	// The category holds while a commodity stays behind.
	var declared *cards.Category
	for i, c := range p.Vault {
		if i != vaultIdx && c.IsCommodity() {
			declared = p.VaultCategory
			break
		}
	}
	return vaultCategory(declared, []cards.Card{p.Hand[handIdx]})
}

func (g *Game) swap(p *ledger.Player, handCardID, vaultCardID int) {
	declared, _ := checkSwap(p, handCardID, vaultCardID)
	handIdx := cards.IndexOf(p.Hand, handCardID)
	vaultIdx := cards.IndexOf(p.Vault, vaultCardID)
	incoming, outgoing := p.Hand[handIdx], p.Vault[vaultIdx]

	p.Hand = append(cards.RemoveAt(p.Hand, handIdx), outgoing)
	p.Vault = append(cards.RemoveAt(p.Vault, vaultIdx), incoming)
	p.VaultCategory = nil
	if declared != nil {
		p.Declare(*declared)
	}
}

func (g *Game) target(actorID, targetID string) (*ledger.Player, error) {
	if targetID == "" || targetID == actorID {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTarget, targetID)
	}
	return g.player(targetID)
}

// pairInPlay checks the preconditions shared by two-player effects.
func (g *Game) pairInPlay(aID, bID string) (*ledger.Player, *ledger.Player, error) {
	if err := g.requirePhase(rules.PhaseVault, rules.PhaseTurn); err != nil {
		return nil, nil, err
	}
	if g.sub != nil {
		return nil, nil, ErrSubPhaseActive
	}
	a, err := g.player(aID)
	if err != nil {
		return nil, nil, err
	}
	b, err := g.target(aID, bID)
	if err != nil {
		return nil, nil, err
	}
	return a, b, nil
}
