// Package game implements the authoritative rules engine for one Merchant's
// Caravan room. A Game is a synchronous state machine: every exported method
// validates its input completely before it mutates anything, so a rejected
// command leaves the game exactly as it was. Game is not safe for concurrent
// use; callers serialize commands per room.
package game

import (
	"fmt"
	"math/rand"

	"github.com/merchantscaravan/caravan-server/internal/game/barrier"
	"github.com/merchantscaravan/caravan-server/internal/game/cards"
	"github.com/merchantscaravan/caravan-server/internal/game/ledger"
	"github.com/merchantscaravan/caravan-server/internal/game/rules"
	"github.com/merchantscaravan/caravan-server/internal/game/shuffle"
)

// Game is the state of a single room.
type Game struct {
	id   string
	opts Options
	rng  *rand.Rand

	phase   rules.Phase
	turn    *rules.TurnOrder
	players *ledger.Ledger
	deck    []cards.Card
	discard []cards.Card
	minted  []cards.Card
	winner  string

	ready *barrier.Barrier[struct{}]
	sub   SubPhase
	drew  bool
	// roundDue is set when the turn wrapped through a removal while a
	// sub-phase was still open; the round starts once it resolves.
	roundDue bool
}

// RemovalResult describes the consequences of RemovePlayer.
type RemovalResult struct {
	Removed       bool
	PlayerID      string
	Index         int
	ReturnedCards int
	// PhaseReset is set when the room emptied and went back to waiting.
	PhaseReset bool
	// VaultComplete is set when the departure tripped the readiness barrier.
	VaultComplete bool
	// NewRound is set when the turn holder left from the last seat and the
	// game went back to the vault phase for a new round.
	NewRound    bool
	MassDiscard *MassDiscardResult
	Reveal      *RevealResult
}

// New creates a game in the waiting phase. A nil rng gets a time-seeded one.
func New(roomID string, opts Options, rng *rand.Rand) *Game {
	if rng == nil {
		rng = shuffle.NewSource()
	}
	return &Game{
		id:      roomID,
		opts:    opts,
		rng:     rng,
		phase:   rules.PhaseWaiting,
		turn:    rules.NewTurnOrder(),
		players: ledger.New(opts.MaxPlayers),
		ready:   barrier.New[struct{}](),
	}
}

func (g *Game) ID() string             { return g.id }
func (g *Game) Options() Options       { return g.opts }
func (g *Game) Phase() rules.Phase     { return g.phase }
func (g *Game) Round() int             { return g.turn.Round() }
func (g *Game) Winner() string         { return g.winner }
func (g *Game) PlayerCount() int       { return g.players.Len() }
func (g *Game) PlayerIDs() []string    { return g.players.IDs() }
func (g *Game) DeckSize() int          { return len(g.deck) }
func (g *Game) DiscardPileSize() int   { return len(g.discard) }
func (g *Game) HasDrawnThisTurn() bool { return g.drew }

// SubPhase returns the active sub-phase or nil.
func (g *Game) SubPhase() SubPhase {
	return g.sub
}

// CurrentPlayerID returns the id of the player whose turn it is. It is empty
// when the room has no players.
func (g *Game) CurrentPlayerID() string {
	if g.players.Len() == 0 {
		return ""
	}
	return g.players.At(g.turn.Current()).ID
}

// PlayerName returns the display name of a player.
func (g *Game) PlayerName(id string) (string, bool) {
	p, ok := g.players.Get(id)
	if !ok {
		return "", false
	}
	return p.Name, true
}

// Hand returns a copy of a player's hand.
func (g *Game) Hand(id string) ([]cards.Card, bool) {
	p, ok := g.players.Get(id)
	if !ok {
		return nil, false
	}
	return cards.Clone(p.Hand), true
}

// Vault returns a copy of a player's vault and its declared category.
func (g *Game) Vault(id string) ([]cards.Card, *cards.Category, bool) {
	p, ok := g.players.Get(id)
	if !ok {
		return nil, nil, false
	}
	var declared *cards.Category
	if c, ok := p.DeclaredCategory(); ok {
		declared = &c
	}
	return cards.Clone(p.Vault), declared, true
}

// AddPlayer seats a new player at the end of the turn order. Players cannot
// join while cards are in play.
func (g *Game) AddPlayer(id, name string) error {
	if g.phase.InProgress() {
		return fmt.Errorf("%w: cannot join during the %s phase", ErrGameInProgress, g.phase)
	}
	if _, err := g.players.Add(id, name); err != nil {
		return err
	}
	return nil
}

// RemovePlayer takes a player out of the game. It never fails; an unknown id
// is reported as Removed=false. The player's cards go to the discard pile,
// readiness and reveal submissions are withdrawn, a mass-discard submission
// stays in the pool, and any barrier that the smaller player set now
// satisfies is resolved before returning.
func (g *Game) RemovePlayer(id string) RemovalResult {
	p, idx, ok := g.players.Remove(id)
	if !ok {
		return RemovalResult{PlayerID: id, Index: -1}
	}

	result := RemovalResult{Removed: true, PlayerID: id, Index: idx}
	result.ReturnedCards = len(p.Hand) + len(p.Vault)
	g.discard = append(g.discard, p.Hand...)
	g.discard = append(g.discard, p.Vault...)
	p.Hand = nil
	p.ResetVault()

	g.ready.Withdraw(id)
	if reveal, ok := g.sub.(*SimultaneousReveal); ok {
		if c, ok := reveal.reveals.Withdraw(id); ok && c != nil {
			g.discard = append(g.discard, *c)
		}
	}

	inTurn := g.phase == rules.PhaseTurn
	wasCurrent := inTurn && idx == g.turn.Current()
	wrapped := g.turn.PlayerRemoved(idx, g.players.Len())
	if wasCurrent {
		g.drew = false
	}

	if g.players.Len() == 0 {
		g.abandonSubPhase()
		g.ready.Reset()
		g.turn.Reset(0)
		g.drew = false
		g.roundDue = false
		g.winner = ""
		g.phase = rules.PhaseWaiting
		result.PhaseReset = true
		return result
	}

	if g.phase == rules.PhaseVault && g.ready.Complete(g.players.IDs()) {
		g.enterTurnPhase()
		result.VaultComplete = true
	}
	result.MassDiscard, result.Reveal = g.resolveSubPhase()
	if inTurn && wrapped {
		g.roundDue = true
	}
	result.NewRound = g.beginDueRound()
	return result
}

// StartGame deals a fresh game. It is allowed from waiting and, for a
// rematch, from ended.
func (g *Game) StartGame() error {
	if g.phase.InProgress() {
		return ErrGameInProgress
	}
	if g.players.Len() < g.opts.MinPlayers {
		return fmt.Errorf("%w: need %d, have %d", ErrNotEnoughPlayers, g.opts.MinPlayers, g.players.Len())
	}

	g.minted = cards.BuildDeck(g.opts.catalog())
	g.deck = shuffle.Shuffle(g.rng, g.minted)
	g.discard = nil
	g.winner = ""
	g.sub = nil
	g.ready.Reset()
	g.drew = false
	g.roundDue = false

	for _, p := range g.players.Players() {
		p.Hand = nil
		p.ResetVault()
	}
	for _, p := range g.players.Players() {
		p.Hand = append(p.Hand, g.draw(g.opts.HandSize)...)
	}

	g.turn.Reset(shuffle.Pick(g.rng, g.players.Len()))
	g.phase = rules.PhaseVault
	return nil
}

// DrawCards moves up to n cards from the deck into the player's hand and
// returns them. An empty deck is refilled from the shuffled discard pile;
// when both are empty fewer than n cards are returned without error.
func (g *Game) DrawCards(playerID string, n int) ([]cards.Card, error) {
	if err := g.requirePhase(rules.PhaseVault, rules.PhaseTurn); err != nil {
		return nil, err
	}
	p, err := g.player(playerID)
	if err != nil {
		return nil, err
	}
	if n < 0 {
		return nil, fmt.Errorf("%w: cannot draw %d cards", ErrInvalidSelection, n)
	}
	drawn := g.draw(n)
	p.Hand = append(p.Hand, drawn...)
	return cards.Clone(drawn), nil
}

// TakeTurnDraw is the once-per-turn draw of the current player.
func (g *Game) TakeTurnDraw(playerID string) ([]cards.Card, error) {
	p, err := g.currentTurnPlayer(playerID)
	if err != nil {
		return nil, err
	}
	if g.drew {
		return nil, ErrAlreadyDrew
	}
	drawn := g.draw(g.opts.TurnDrawCount)
	p.Hand = append(p.Hand, drawn...)
	g.drew = true
	return cards.Clone(drawn), nil
}

// DiscardCards moves the named cards from hand to the discard pile. Either
// every card moves or none does.
func (g *Game) DiscardCards(playerID string, cardIDs []int) error {
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
	if err := checkSelection(p.Hand, cardIDs, ErrCardNotInHand); err != nil {
		return err
	}
	remaining, taken := cards.Take(p.Hand, cardIDs)
	p.Hand = remaining
	g.discard = append(g.discard, taken...)
	return nil
}

// NextTurn passes the turn to the next player. Wrapping back to the first
// seat starts a new round, which reopens the vault phase.
func (g *Game) NextTurn() (bool, error) {
	if err := g.requirePhase(rules.PhaseTurn); err != nil {
		return false, err
	}
	if g.sub != nil {
		return false, ErrSubPhaseActive
	}
	newRound := g.turn.Advance(g.players.Len())
	g.drew = false
	if newRound {
		g.phase = rules.PhaseVault
	}
	return newRound, nil
}

// EndTurn is NextTurn issued by the current player.
func (g *Game) EndTurn(playerID string) (bool, error) {
	if _, err := g.currentTurnPlayer(playerID); err != nil {
		return false, err
	}
	return g.NextTurn()
}

func (g *Game) draw(n int) []cards.Card {
	drawn := make([]cards.Card, 0, n)
	for i := 0; i < n; i++ {
		if len(g.deck) == 0 {
			if len(g.discard) == 0 {
				break
			}
			g.deck = shuffle.Shuffle(g.rng, g.discard)
			g.discard = nil
		}
		last := len(g.deck) - 1
		drawn = append(drawn, g.deck[last])
		g.deck = g.deck[:last]
	}
	return drawn
}

// beginDueRound starts the round owed by a wrap on removal once no
// sub-phase is open.
func (g *Game) beginDueRound() bool {
	if !g.roundDue || g.sub != nil || g.phase != rules.PhaseTurn {
		return false
	}
	g.roundDue = false
	g.turn.BeginRound()
	g.drew = false
	g.phase = rules.PhaseVault
	return true
}

func (g *Game) enterTurnPhase() {
	g.ready.Reset()
	g.drew = false
	g.phase = rules.PhaseTurn
}

func (g *Game) player(id string) (*ledger.Player, error) {
	p, ok := g.players.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPlayerNotFound, id)
	}
	return p, nil
}

// currentTurnPlayer checks the common preconditions of per-turn actions.
func (g *Game) currentTurnPlayer(id string) (*ledger.Player, error) {
	if err := g.requirePhase(rules.PhaseTurn); err != nil {
		return nil, err
	}
	if g.sub != nil {
		return nil, ErrSubPhaseActive
	}
	p, err := g.player(id)
	if err != nil {
		return nil, err
	}
	if g.CurrentPlayerID() != id {
		return nil, ErrNotYourTurn
	}
	return p, nil
}

func (g *Game) requirePhase(allowed ...rules.Phase) error {
	for _, phase := range allowed {
		if g.phase == phase {
			return nil
		}
	}
	if g.phase == rules.PhaseEnded {
		return ErrGameEnded
	}
	return fmt.Errorf("%w: game is in the %s phase", ErrWrongPhase, g.phase)
}

// checkSelection verifies that ids are distinct and all present in have.
func checkSelection(have []cards.Card, ids []int, missing error) error {
	seen := make(map[int]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			return fmt.Errorf("%w: %d", ErrDuplicateCard, id)
		}
		seen[id] = true
		if cards.IndexOf(have, id) == -1 {
			return fmt.Errorf("%w: %d", missing, id)
		}
	}
	return nil
}
