package game

import (
	"fmt"

	"github.com/merchantscaravan/caravan-server/internal/game/barrier"
	"github.com/merchantscaravan/caravan-server/internal/game/cards"
	"github.com/merchantscaravan/caravan-server/internal/game/rules"
	"github.com/merchantscaravan/caravan-server/internal/game/shuffle"
)

// SubPhaseKind names a global sub-phase.
type SubPhaseKind string

const (
	SubPhaseMassDiscard        SubPhaseKind = "mass_discard"
	SubPhaseSimultaneousReveal SubPhaseKind = "simultaneous_reveal"
)

// SubPhase is a global phase that every player must submit to before it
// resolves. The only implementations are *MassDiscard and
// *SimultaneousReveal; a game holds at most one.
type SubPhase interface {
	Kind() SubPhaseKind
	// Submitted returns the ids that have submitted, in submission order.
	Submitted() []string
	held() []cards.Card
}

// MassDiscard pools cards from every player and deals them back out.
type MassDiscard struct {
	submissions *barrier.Barrier[[]cards.Card]
}

func newMassDiscard() *MassDiscard {
	return &MassDiscard{submissions: barrier.New[[]cards.Card]()}
}

func (m *MassDiscard) Kind() SubPhaseKind  { return SubPhaseMassDiscard }
func (m *MassDiscard) Submitted() []string { return m.submissions.Submitted() }

func (m *MassDiscard) held() []cards.Card {
	var pool []cards.Card
	for _, id := range m.submissions.Submitted() {
		submitted, _ := m.submissions.Value(id)
		pool = append(pool, submitted...)
	}
	return pool
}

// SimultaneousReveal collects one face-down card per player, then shows them
// all and returns each to its owner. A nil card is a pass from a player with
// an empty hand.
type SimultaneousReveal struct {
	reveals *barrier.Barrier[*cards.Card]
}

func newSimultaneousReveal() *SimultaneousReveal {
	return &SimultaneousReveal{reveals: barrier.New[*cards.Card]()}
}

func (s *SimultaneousReveal) Kind() SubPhaseKind  { return SubPhaseSimultaneousReveal }
func (s *SimultaneousReveal) Submitted() []string { return s.reveals.Submitted() }

func (s *SimultaneousReveal) held() []cards.Card {
	var out []cards.Card
	for _, id := range s.reveals.Submitted() {
		if c, _ := s.reveals.Value(id); c != nil {
			out = append(out, *c)
		}
	}
	return out
}

// MassDiscardResult reports the state of the mass-discard barrier after a
// submission. Received is only set once the barrier resolved.
type MassDiscardResult struct {
	AllSubmitted bool           `json:"allSubmitted"`
	Submitted    []string       `json:"submitted"`
	Pending      []string       `json:"pending,omitempty"`
	PoolSize     int            `json:"poolSize,omitempty"`
	Received     map[string]int `json:"received,omitempty"`
	// NewRound is set when resolving released a round held back by a
	// departure.
	NewRound bool `json:"newRound,omitempty"`
}

// Reveal is one card shown during a simultaneous reveal.
type Reveal struct {
	PlayerID   string      `json:"playerId"`
	PlayerName string      `json:"playerName"`
	Card       *cards.Card `json:"card"`
}

// RevealResult reports the state of the reveal barrier after a submission.
// Reveals is only set once the barrier resolved.
type RevealResult struct {
	AllSubmitted bool     `json:"allSubmitted"`
	Submitted    []string `json:"submitted"`
	Pending      []string `json:"pending,omitempty"`
	Reveals      []Reveal `json:"reveals,omitempty"`
	NewRound     bool     `json:"newRound,omitempty"`
}

// OpenMassDiscard starts a mass discard.
func (g *Game) OpenMassDiscard() error {
	if err := g.canOpenSubPhase(); err != nil {
		return err
	}
	g.sub = newMassDiscard()
	return nil
}

// OpenSimultaneousReveal starts a simultaneous reveal.
func (g *Game) OpenSimultaneousReveal() error {
	if err := g.canOpenSubPhase(); err != nil {
		return err
	}
	g.sub = newSimultaneousReveal()
	return nil
}

// SubmitMassDiscard gives up the named cards to the pool. An empty selection
// is a valid submission. The last submission resolves the sub-phase: the
// pool is shuffled and dealt evenly, with the remainder going one card each
// to the earliest seats in turn order.
func (g *Game) SubmitMassDiscard(playerID string, cardIDs []int) (MassDiscardResult, error) {
	md, ok := g.sub.(*MassDiscard)
	if !ok {
		return MassDiscardResult{}, fmt.Errorf("%w: no mass discard open", ErrSubPhaseInactive)
	}
	p, err := g.player(playerID)
	if err != nil {
		return MassDiscardResult{}, err
	}
	if md.submissions.Has(playerID) {
		return MassDiscardResult{}, fmt.Errorf("%w: %s", ErrAlreadySubmitted, playerID)
	}
	if err := checkSelection(p.Hand, cardIDs, ErrCardNotInHand); err != nil {
		return MassDiscardResult{}, err
	}

	remaining, taken := cards.Take(p.Hand, cardIDs)
	if err := md.submissions.Submit(playerID, taken); err != nil {
		return MassDiscardResult{}, err
	}
	p.Hand = remaining

	if resolved, _ := g.resolveSubPhase(); resolved != nil {
		resolved.NewRound = g.beginDueRound()
		return *resolved, nil
	}
	return MassDiscardResult{
		Submitted: md.submissions.Submitted(),
		Pending:   g.pending(md),
	}, nil
}

// SubmitReveal places one card from hand face down. A player with an empty
// hand passes and cardID is ignored. The last submission resolves the
// sub-phase and returns every card to its owner.
func (g *Game) SubmitReveal(playerID string, cardID int) (RevealResult, error) {
	sr, ok := g.sub.(*SimultaneousReveal)
	if !ok {
		return RevealResult{}, fmt.Errorf("%w: no reveal open", ErrSubPhaseInactive)
	}
	p, err := g.player(playerID)
	if err != nil {
		return RevealResult{}, err
	}
	if sr.reveals.Has(playerID) {
		return RevealResult{}, fmt.Errorf("%w: %s", ErrAlreadySubmitted, playerID)
	}

	var revealed *cards.Card
	remaining := p.Hand
	if len(p.Hand) > 0 {
		idx := cards.IndexOf(p.Hand, cardID)
		if idx == -1 {
			return RevealResult{}, fmt.Errorf("%w: %d", ErrCardNotInHand, cardID)
		}
		c := p.Hand[idx]
		revealed = &c
		remaining = cards.RemoveAt(p.Hand, idx)
	}
	if err := sr.reveals.Submit(playerID, revealed); err != nil {
		return RevealResult{}, err
	}
	p.Hand = remaining

	if _, resolved := g.resolveSubPhase(); resolved != nil {
		resolved.NewRound = g.beginDueRound()
		return *resolved, nil
	}
	return RevealResult{
		Submitted: sr.reveals.Submitted(),
		Pending:   g.pending(sr),
	}, nil
}

func (g *Game) canOpenSubPhase() error {
	if err := g.requirePhase(rules.PhaseTurn); err != nil {
		return err
	}
	if g.sub != nil {
		return fmt.Errorf("%w: %s", ErrSubPhaseActive, g.sub.Kind())
	}
	return nil
}

// pending lists the seated players that have not submitted yet.
func (g *Game) pending(sub SubPhase) []string {
	submitted := make(map[string]bool)
	for _, id := range sub.Submitted() {
		submitted[id] = true
	}
	var out []string
	for _, id := range g.players.IDs() {
		if !submitted[id] {
			out = append(out, id)
		}
	}
	return out
}

// resolveSubPhase resolves the active sub-phase if every seated player has
// submitted. It is the only place a sub-phase resolves, and it is reached
// from the submit paths and from RemovePlayer.
func (g *Game) resolveSubPhase() (*MassDiscardResult, *RevealResult) {
	ids := g.players.IDs()
	switch sub := g.sub.(type) {
	case *MassDiscard:
		if !sub.submissions.Complete(ids) {
			return nil, nil
		}
		submitted := sub.submissions.Submitted()
		pool := shuffle.Shuffle(g.rng, sub.held())
		g.sub = nil
		return &MassDiscardResult{
			AllSubmitted: true,
			Submitted:    submitted,
			PoolSize:     len(pool),
			Received:     g.redistribute(pool),
		}, nil
	case *SimultaneousReveal:
		if !sub.reveals.Complete(ids) {
			return nil, nil
		}
		result := &RevealResult{AllSubmitted: true, Submitted: sub.reveals.Submitted()}
		for _, p := range g.players.Players() {
			c, _ := sub.reveals.Value(p.ID)
			if c != nil {
				p.Hand = append(p.Hand, *c)
			}
			result.Reveals = append(result.Reveals, Reveal{PlayerID: p.ID, PlayerName: p.Name, Card: c})
		}
		g.sub = nil
		return nil, result
	}
	return nil, nil
}

// redistribute deals pool out in turn order: everyone gets len/n cards and
// the first len%n seats get one more.
func (g *Game) redistribute(pool []cards.Card) map[string]int {
	players := g.players.Players()
	received := make(map[string]int, len(players))
	base, extra := len(pool)/len(players), len(pool)%len(players)
	offset := 0
	for i, p := range players {
		n := base
		if i < extra {
			n++
		}
		p.Hand = append(p.Hand, pool[offset:offset+n]...)
		received[p.ID] = n
		offset += n
	}
	return received
}

// abandonSubPhase closes the sub-phase without resolving it; held cards go to
// the discard pile.
func (g *Game) abandonSubPhase() {
	if g.sub == nil {
		return
	}
	g.discard = append(g.discard, g.sub.held()...)
	g.sub = nil
}
