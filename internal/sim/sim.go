// Package sim plays randomized headless games through the room layer and
// checks the card conservation invariant after every command.
package sim

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"slices"

	"go.uber.org/zap"

	"github.com/merchantscaravan/caravan-server/internal/game"
	"github.com/merchantscaravan/caravan-server/internal/game/cards"
	"github.com/merchantscaravan/caravan-server/internal/game/rules"
	"github.com/merchantscaravan/caravan-server/internal/game/scoring"
	"github.com/merchantscaravan/caravan-server/internal/room"
)

// Config controls a simulation run.
type Config struct {
	Games       int
	Players     int
	MaxCommands int
	Seed        int64
	// ChaosRate is the probability that a step sends a random, usually
	// illegal, command instead of a sensible one.
	ChaosRate float64
	Options   game.Options
}

func DefaultConfig() Config {
	return Config{
		Games:       10,
		Players:     3,
		MaxCommands: 3000,
		Seed:        1,
		ChaosRate:   0.05,
		Options:     game.DefaultOptions(),
	}
}

func (c Config) Validate() error {
	if c.Games <= 0 {
		return errors.New("games must be positive")
	}
	if c.MaxCommands <= 0 {
		return errors.New("max commands must be positive")
	}
	if c.ChaosRate < 0 || c.ChaosRate > 1 {
		return fmt.Errorf("chaos rate %v outside [0, 1]", c.ChaosRate)
	}
	if err := c.Options.Validate(); err != nil {
		return err
	}
	if c.Players < c.Options.MinPlayers || c.Players > c.Options.MaxPlayers {
		return fmt.Errorf("players must be between %d and %d, got %d", c.Options.MinPlayers, c.Options.MaxPlayers, c.Players)
	}
	return nil
}

// Summary aggregates every game of a run.
type Summary struct {
	Games        int                    `json:"games"`
	Finished     int                    `json:"finished"`
	Commands     int                    `json:"commands"`
	Rejected     int                    `json:"rejected"`
	Rounds       int                    `json:"rounds"`
	Eliminations int                    `json:"eliminations"`
	SubPhases    int                    `json:"subPhases"`
	Wins         map[cards.Category]int `json:"wins"`
}

// Run plays cfg.Games games. It fails on the first conservation violation.
func Run(ctx context.Context, cfg Config, logger *zap.Logger) (Summary, error) {
	if err := cfg.Validate(); err != nil {
		return Summary{}, fmt.Errorf("invalid simulation config: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	manager := room.NewManager(logger, cfg.Options, room.WithRandSource(func() *rand.Rand {
		return rand.New(rand.NewSource(rng.Int63()))
	}))

	summary := Summary{Wins: make(map[cards.Category]int)}
	manager.Subscribe(func(e room.Event) {
		switch e.Type {
		case room.EventSubPhaseOpened:
			summary.SubPhases++
		case room.EventPlayerEliminated:
			summary.Eliminations++
		}
	})

	for i := 0; i < cfg.Games; i++ {
		r, err := manager.CreateRoom(room.RoomOptions{Name: fmt.Sprintf("sim-%d", i)})
		if err != nil {
			return summary, err
		}
		p := &player{cfg: cfg, rng: rng, room: r, summary: &summary, logger: logger.With(zap.String("room_id", r.ID()))}
		if err := p.play(ctx); err != nil {
			return summary, fmt.Errorf("game %d (room %s): %w", i, r.ID(), err)
		}
		manager.RemoveRoom(r.ID())
		summary.Games++
	}

	logger.Info("simulation complete",
		zap.Int("games", summary.Games),
		zap.Int("finished", summary.Finished),
		zap.Int("commands", summary.Commands),
		zap.Int("rejected", summary.Rejected),
	)
	return summary, nil
}

// player drives every seat of one room.
type player struct {
	cfg     Config
	rng     *rand.Rand
	room    *room.Room
	summary *Summary
	logger  *zap.Logger

	turns    int
	drewTurn int
}

func (p *player) play(ctx context.Context) error {
	for i := 0; i < p.cfg.Players; i++ {
		id := fmt.Sprintf("p%d", i+1)
		if err := p.do(func() error { return p.room.Join(id, fmt.Sprintf("Merchant %d", i+1), "") }); err != nil {
			return err
		}
	}
	if err := p.do(func() error { return p.room.Start("p1") }); err != nil {
		return err
	}
	p.drewTurn = -1

	for step := 0; step < p.cfg.MaxCommands; step++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		view := p.room.State("")
		if view.Phase == rules.PhaseEnded || len(view.Players) == 0 {
			break
		}
		if err := p.step(view); err != nil {
			return err
		}
	}

	view := p.room.State("")
	p.summary.Rounds += view.Round
	if view.Phase == rules.PhaseEnded {
		p.summary.Finished++
	}
	return nil
}

// do runs one command and checks conservation afterwards. Rejections are
// expected and only counted.
func (p *player) do(cmd func() error) error {
	p.summary.Commands++
	if err := cmd(); err != nil {
		p.summary.Rejected++
		p.logger.Debug("command rejected", zap.Error(err))
	}
	return p.room.VerifyConservation()
}

func (p *player) step(view game.View) error {
	if p.rng.Float64() < p.cfg.ChaosRate {
		return p.chaos(view)
	}
	if view.SubPhase != nil {
		return p.submit(view)
	}
	for _, pv := range view.Players {
		if owed := p.room.Obligation(pv.ID); owed > 0 {
			return p.payDebt(pv.ID, owed)
		}
	}
	switch view.Phase {
	case rules.PhaseVault:
		return p.vaultStep(view)
	case rules.PhaseTurn:
		return p.turnStep(view)
	}
	return nil
}

func (p *player) self(id string) game.PlayerView {
	for _, pv := range p.room.State(id).Players {
		if pv.ID == id {
			return pv
		}
	}
	return game.PlayerView{}
}

func (p *player) randomCards(hand []cards.Card, n int) []int {
	ids := make([]int, 0, n)
	for _, i := range p.rng.Perm(len(hand))[:min(n, len(hand))] {
		ids = append(ids, hand[i].ID)
	}
	return ids
}

func (p *player) submit(view game.View) error {
	for _, pv := range view.Players {
		if slices.Contains(view.SubPhase.Submitted, pv.ID) {
			continue
		}
		hand := p.self(pv.ID).Hand
		switch view.SubPhase.Kind {
		case game.SubPhaseMassDiscard:
			ids := p.randomCards(hand, 2)
			return p.do(func() error {
				_, err := p.room.SubmitMassDiscard(pv.ID, ids)
				return err
			})
		case game.SubPhaseSimultaneousReveal:
			cardID := -1
			if len(hand) > 0 {
				cardID = hand[p.rng.Intn(len(hand))].ID
			}
			return p.do(func() error {
				_, err := p.room.SubmitReveal(pv.ID, cardID)
				return err
			})
		}
	}
	return nil
}

func (p *player) payDebt(id string, owed int) error {
	ids := p.randomCards(p.self(id).Hand, owed)
	return p.do(func() error { return p.room.Discard(id, ids) })
}

// bestCategory picks the category worth the most in hand.
func bestCategory(hand []cards.Card) (cards.Category, bool) {
	totals := make(map[cards.Category]int)
	for _, c := range hand {
		if c.IsCommodity() {
			totals[c.Category] += c.Value
		}
	}
	var (
		best  cards.Category
		value int
	)
	for _, cat := range cards.Categories {
		if totals[cat] > value {
			best, value = cat, totals[cat]
		}
	}
	return best, value > 0
}

func (p *player) canWin(pv game.PlayerView) bool {
	_, err := scoring.Evaluate(pv.Vault, pv.VaultCategory, p.cfg.Options.WinThreshold)
	return err == nil
}

func (p *player) vaultStep(view game.View) error {
	for _, pv := range view.Players {
		if pv.Ready {
			continue
		}
		me := p.self(pv.ID)

		target, ok := bestCategory(me.Hand)
		if me.VaultCategory != nil {
			target, ok = *me.VaultCategory, true
		}
		if ok {
			var ids []int
			for _, c := range me.Hand {
				if c.IsCommodity() && c.Category == target {
					ids = append(ids, c.ID)
				}
			}
			if len(ids) > 0 {
				if err := p.do(func() error { return p.room.AddToVault(pv.ID, ids) }); err != nil {
					return err
				}
				me = p.self(pv.ID)
			}
		}

		if p.canWin(me) {
			return p.declare(pv.ID)
		}
		return p.do(func() error {
			_, err := p.room.CompleteVault(pv.ID)
			return err
		})
	}
	return nil
}

func (p *player) turnStep(view game.View) error {
	current := view.CurrentPlayerID
	me := p.self(current)

	if p.drewTurn != p.turns {
		p.drewTurn = p.turns
		return p.do(func() error {
			_, err := p.room.Draw(current)
			return err
		})
	}
	if p.canWin(me) {
		return p.declare(current)
	}

	if play, ok := p.pickAction(view, me); ok && p.rng.Intn(2) == 0 {
		return p.do(func() error {
			_, err := p.room.PlayAction(current, play)
			return err
		})
	}

	return p.do(func() error {
		_, err := p.room.EndTurn(current)
		if err == nil {
			p.turns++
		}
		return err
	})
}

func (p *player) pickAction(view game.View, me game.PlayerView) (game.ActionPlay, bool) {
	var actions []cards.Card
	for _, c := range me.Hand {
		if c.IsAction() {
			actions = append(actions, c)
		}
	}
	if len(actions) == 0 {
		return game.ActionPlay{}, false
	}
	card := actions[p.rng.Intn(len(actions))]
	play := game.ActionPlay{CardID: card.ID}

	if card.Action.Targeted() {
		var others []string
		for _, pv := range view.Players {
			if pv.ID != me.ID {
				others = append(others, pv.ID)
			}
		}
		if len(others) == 0 {
			return game.ActionPlay{}, false
		}
		play.TargetID = others[p.rng.Intn(len(others))]
	}

	if card.Action == cards.ActionFence {
		if len(me.Vault) == 0 {
			return game.ActionPlay{}, false
		}
		vaultCard := me.Vault[p.rng.Intn(len(me.Vault))]
		for _, c := range me.Hand {
			if c.IsCommodity() && c.Category == vaultCard.Category && c.Value > vaultCard.Value {
				play.Swap = &game.Swap{HandCardID: c.ID, VaultCardID: vaultCard.ID}
				return play, true
			}
		}
		return game.ActionPlay{}, false
	}
	return play, true
}

func (p *player) declare(id string) error {
	var result game.VictoryResult
	err := p.do(func() error {
		var err error
		result, err = p.room.DeclareVictory(context.Background(), id)
		return err
	})
	if err == nil && result.Success {
		p.summary.Wins[result.Category]++
	}
	return err
}

// chaos sends a random command from a random seat, legal or not.
func (p *player) chaos(view game.View) error {
	if len(view.Players) == 0 {
		return nil
	}
	id := view.Players[p.rng.Intn(len(view.Players))].ID
	hand := p.self(id).Hand

	switch p.rng.Intn(7) {
	case 0:
		return p.do(func() error {
			_, err := p.room.EndTurn(id)
			return err
		})
	case 1:
		return p.do(func() error {
			_, err := p.room.Draw(id)
			return err
		})
	case 2:
		ids := p.randomCards(hand, 1+p.rng.Intn(3))
		return p.do(func() error { return p.room.AddToVault(id, ids) })
	case 3:
		ids := p.randomCards(hand, 1)
		return p.do(func() error { return p.room.Discard(id, ids) })
	case 4:
		ids := p.randomCards(hand, 2)
		return p.do(func() error {
			_, err := p.room.SubmitMassDiscard(id, ids)
			return err
		})
	case 5:
		if len(view.Players) < 2 {
			return nil
		}
		to := view.Players[p.rng.Intn(len(view.Players))].ID
		offered := p.randomCards(hand, 1)
		return p.do(func() error {
			offer, err := p.room.ProposeTrade(id, to, offered, nil)
			if err != nil {
				return err
			}
			_, err = p.room.AcceptTrade(to, offer.ID)
			return err
		})
	default:
		if p.rng.Intn(10) == 0 {
			return p.declare(id)
		}
		return p.do(func() error { return p.room.RemoveFromVault(id, p.randomCards(p.self(id).Vault, 1)) })
	}
}
