package room

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/merchantscaravan/caravan-server/internal/game"
	"github.com/merchantscaravan/caravan-server/internal/game/cards"
)

// GameResult describes a finished game.
type GameResult struct {
	RoomID     string         `json:"roomId"`
	WinnerID   string         `json:"winnerId"`
	WinnerName string         `json:"winnerName"`
	Category   cards.Category `json:"caravanType"`
	Value      int            `json:"value"`
	Round      int            `json:"round"`
	Players    []string       `json:"players"`
	FinishedAt time.Time      `json:"finishedAt"`
}

// ResultRecorder stores finished games.
type ResultRecorder interface {
	RecordResult(ctx context.Context, result GameResult) error
}

// RoomSummary is the public listing entry of a room.
type RoomSummary struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Phase       string    `json:"phase"`
	Players     int       `json:"players"`
	MaxPlayers  int       `json:"maxPlayers"`
	Round       int       `json:"round"`
	HasPassword bool      `json:"hasPassword"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Room wraps one game with the caller-side rules: a single writer, discard
// obligations, trade offers, elimination and event fan-out.
type Room struct {
	id           string
	name         string
	createdAt    time.Time
	passwordHash []byte

	// mu serializes commands. pubMu is taken before mu is released so that
	// events leave the room in command order without holding mu while
	// listeners run.
	mu     sync.Mutex
	pubMu  sync.Mutex
	game   *game.Game
	owes   map[string]int
	trades map[string]*TradeOffer

	bus      *EventBus
	recorder ResultRecorder
	logger   *zap.Logger
	onEmpty  func(roomID string)

	// replay holds the public snapshots of the current game, if one started.
	replay    *game.Replay
	replayDir string
}

func newRoom(id, name string, passwordHash []byte, opts game.Options, rng *rand.Rand, bus *EventBus, recorder ResultRecorder, logger *zap.Logger) *Room {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Room{
		id:           id,
		name:         name,
		createdAt:    time.Now(),
		passwordHash: passwordHash,
		game:         game.New(id, opts, rng),
		owes:         make(map[string]int),
		trades:       make(map[string]*TradeOffer),
		bus:          bus,
		recorder:     recorder,
		logger:       logger.With(zap.String("room_id", id)),
	}
}

func (r *Room) ID() string   { return r.id }
func (r *Room) Name() string { return r.name }

// Replay returns the snapshots of the current or last game, or nil before
// the first start.
func (r *Room) Replay() *game.Replay {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.replay
}

// run applies fn under the room lock and publishes the events it returns,
// even when fn also returns an error.
func (r *Room) run(fn func() ([]Event, error)) error {
	r.mu.Lock()
	events, err := fn()
	if r.replay != nil && len(events) > 0 {
		r.replay.Record(r.game)
	}
	r.pubMu.Lock()
	r.mu.Unlock()
	defer r.pubMu.Unlock()

	if r.bus != nil {
		for _, e := range events {
			r.bus.Publish(e)
		}
	}
	return err
}

func (r *Room) event(eventType EventType, playerID string, payload any) Event {
	e := NewEvent(eventType, r.id, playerID)
	e.Payload = payload
	return e
}

func (r *Room) private(eventType EventType, playerID string, payload any, recipients ...string) Event {
	e := r.event(eventType, playerID, payload)
	e.Recipients = recipients
	return e
}

// CheckPassword reports ErrWrongPassword unless password opens the room.
// Rooms created without a password accept anything.
func (r *Room) CheckPassword(password string) error {
	if len(r.passwordHash) == 0 {
		return nil
	}
	if err := bcrypt.CompareHashAndPassword(r.passwordHash, []byte(password)); err != nil {
		return ErrWrongPassword
	}
	return nil
}

// Join seats a player. Rooms created with a password require it.
func (r *Room) Join(playerID, name, password string) error {
	if err := r.CheckPassword(password); err != nil {
		return err
	}
	return r.run(func() ([]Event, error) {
		if err := r.game.AddPlayer(playerID, name); err != nil {
			return nil, err
		}
		r.logger.Info("player joined room",
			zap.String("player_id", playerID),
			zap.String("name", name),
			zap.Int("players", r.game.PlayerCount()),
		)
		return []Event{r.event(EventPlayerJoined, playerID, map[string]any{
			"name":    name,
			"players": r.game.PlayerCount(),
		})}, nil
	})
}

// Leave removes a player. An emptied room is handed to the owner for
// teardown.
func (r *Room) Leave(playerID string) game.RemovalResult {
	var (
		result  game.RemovalResult
		emptied bool
	)
	_ = r.run(func() ([]Event, error) {
		result = r.removeLocked(playerID)
		if !result.Removed {
			return nil, nil
		}
		emptied = r.game.PlayerCount() == 0
		r.logger.Info("player left room", zap.String("player_id", playerID), zap.Bool("emptied", emptied))
		events := []Event{r.event(EventPlayerLeft, playerID, map[string]any{
			"returnedCards": result.ReturnedCards,
			"players":       r.game.PlayerCount(),
		})}
		return append(events, r.removalEvents(result)...), nil
	})
	if emptied && r.onEmpty != nil {
		r.onEmpty(r.id)
	}
	return result
}

// Start deals a new game. Any seated player may start it.
func (r *Room) Start(playerID string) error {
	return r.run(func() ([]Event, error) {
		if _, ok := r.game.PlayerName(playerID); !ok {
			return nil, ErrNotInRoom
		}
		if err := r.game.StartGame(); err != nil {
			return nil, err
		}
		r.owes = make(map[string]int)
		r.trades = make(map[string]*TradeOffer)
		r.replay = game.NewReplay(r.id)
		r.logger.Info("game started",
			zap.String("started_by", playerID),
			zap.Strings("players", r.game.PlayerIDs()),
		)
		return []Event{r.event(EventGameStarted, playerID, map[string]any{
			"round":           r.game.Round(),
			"currentPlayerId": r.game.CurrentPlayerID(),
			"players":         r.game.PlayerIDs(),
		})}, nil
	})
}

// AddToVault moves cards from hand to vault.
func (r *Room) AddToVault(playerID string, cardIDs []int) error {
	return r.run(func() ([]Event, error) {
		if err := r.requireNoDebt(playerID); err != nil {
			return nil, err
		}
		if err := r.game.AddToVault(playerID, cardIDs); err != nil {
			return nil, err
		}
		return []Event{r.vaultEvent(playerID)}, nil
	})
}

// RemoveFromVault moves cards from vault back to hand.
func (r *Room) RemoveFromVault(playerID string, cardIDs []int) error {
	return r.run(func() ([]Event, error) {
		if err := r.requireNoDebt(playerID); err != nil {
			return nil, err
		}
		if err := r.game.RemoveFromVault(playerID, cardIDs); err != nil {
			return nil, err
		}
		return []Event{r.vaultEvent(playerID)}, nil
	})
}

func (r *Room) vaultEvent(playerID string) Event {
	vault, _, _ := r.game.Vault(playerID)
	return r.event(EventVaultUpdated, playerID, map[string]any{"vaultSize": len(vault)})
}

// CompleteVault marks a player done with the vault phase.
func (r *Room) CompleteVault(playerID string) (bool, error) {
	var allComplete bool
	err := r.run(func() ([]Event, error) {
		if err := r.requireNoDebt(playerID); err != nil {
			return nil, err
		}
		var err error
		if allComplete, err = r.game.CompleteVaultPhase(playerID); err != nil {
			return nil, err
		}
		events := []Event{r.event(EventPlayerReady, playerID, nil)}
		if allComplete {
			events = append(events, r.turnPhaseEvent())
		}
		return events, nil
	})
	return allComplete, err
}

func (r *Room) turnPhaseEvent() Event {
	return r.event(EventTurnPhaseStarted, "", map[string]any{
		"round":           r.game.Round(),
		"currentPlayerId": r.game.CurrentPlayerID(),
	})
}

// DeclareVictory checks a victory claim. A failed claim eliminates the
// player: the rules error is returned and the player is removed from the
// game in the same command.
func (r *Room) DeclareVictory(ctx context.Context, playerID string) (game.VictoryResult, error) {
	var (
		result   game.VictoryResult
		record   *GameResult
		finished *game.Replay
		emptied  bool
	)
	err := r.run(func() ([]Event, error) {
		if err := r.requireNoDebt(playerID); err != nil {
			return nil, err
		}
		name, _ := r.game.PlayerName(playerID)
		players := r.game.PlayerIDs()

		var err error
		result, err = r.game.DeclareVictory(playerID)
		if err != nil {
			if !result.Eliminated {
				return nil, err
			}
			r.logger.Info("failed victory declaration, eliminating player",
				zap.String("player_id", playerID),
				zap.Int("value", result.Value),
				zap.Error(err),
			)
			events := []Event{r.event(EventVictoryFailed, playerID, map[string]any{
				"value":  result.Value,
				"reason": err.Error(),
			})}
			removal := r.removeLocked(playerID)
			emptied = r.game.PlayerCount() == 0
			events = append(events, r.event(EventPlayerEliminated, playerID, map[string]any{
				"returnedCards": removal.ReturnedCards,
			}))
			return append(events, r.removalEvents(removal)...), err
		}

		r.owes = make(map[string]int)
		r.trades = make(map[string]*TradeOffer)
		record = &GameResult{
			RoomID:     r.id,
			WinnerID:   playerID,
			WinnerName: name,
			Category:   result.Category,
			Value:      result.Value,
			Round:      r.game.Round(),
			Players:    players,
			FinishedAt: time.Now(),
		}
		finished = r.replay
		r.logger.Info("game won",
			zap.String("player_id", playerID),
			zap.String("caravan_type", string(result.Category)),
			zap.Int("value", result.Value),
		)
		return []Event{r.event(EventVictory, playerID, result)}, nil
	})

	if record != nil && r.recorder != nil {
		if recErr := r.recorder.RecordResult(ctx, *record); recErr != nil {
			r.logger.Warn("failed to record game result", zap.Error(recErr))
		}
	}
	if finished != nil && r.replayDir != "" {
		path, saveErr := finished.SaveToFile(r.replayDir)
		if saveErr != nil {
			r.logger.Warn("failed to save replay", zap.Error(saveErr))
		} else {
			r.logger.Info("replay saved", zap.String("path", path), zap.Int("snapshots", finished.Size()))
		}
	}
	if emptied && r.onEmpty != nil {
		r.onEmpty(r.id)
	}
	return result, err
}

// Discard moves cards from hand to the discard pile and pays down any
// discard obligation.
func (r *Room) Discard(playerID string, cardIDs []int) error {
	return r.run(func() ([]Event, error) {
		if err := r.game.DiscardCards(playerID, cardIDs); err != nil {
			return nil, err
		}
		if owed := r.owes[playerID]; owed > 0 {
			r.owes[playerID] = max(owed-len(cardIDs), 0)
		}
		remaining := r.outstanding(playerID)
		if remaining == 0 {
			delete(r.owes, playerID)
		}
		return []Event{r.event(EventCardsDiscarded, playerID, map[string]any{
			"count": len(cardIDs),
			"owed":  remaining,
		})}, nil
	})
}

// Draw is the current player's once-per-turn draw.
func (r *Room) Draw(playerID string) ([]cards.Card, error) {
	var drawn []cards.Card
	err := r.run(func() ([]Event, error) {
		if err := r.requireNoDebt(playerID); err != nil {
			return nil, err
		}
		var err error
		if drawn, err = r.game.TakeTurnDraw(playerID); err != nil {
			return nil, err
		}
		return []Event{
			r.event(EventCardsDrawn, playerID, map[string]any{"count": len(drawn)}),
			r.private(EventCardsDrawn, playerID, map[string]any{"cards": drawn}, playerID),
		}, nil
	})
	return drawn, err
}

// PlayAction plays an action card. No action may be played while any player
// still owes discards.
func (r *Room) PlayAction(playerID string, play game.ActionPlay) (game.ActionOutcome, error) {
	var outcome game.ActionOutcome
	err := r.run(func() ([]Event, error) {
		if err := r.requireNoOutstanding(); err != nil {
			return nil, err
		}
		var err error
		if outcome, err = r.game.PlayAction(playerID, play); err != nil {
			return nil, err
		}
		r.logger.Debug("action played",
			zap.String("player_id", playerID),
			zap.String("action", string(outcome.Action)),
			zap.String("target_id", outcome.TargetID),
		)
		return r.actionEvents(outcome), nil
	})
	return outcome, err
}

func (r *Room) actionEvents(o game.ActionOutcome) []Event {
	played := r.event(EventActionPlayed, o.ActorID, map[string]any{
		"action": o.Action,
		"card":   o.Card,
	})
	played.TargetID = o.TargetID
	events := []Event{played}

	switch o.Action {
	case cards.ActionThief:
		stolen := r.private(EventCardStolen, o.ActorID, map[string]any{"card": o.Stolen}, o.ActorID, o.TargetID)
		stolen.TargetID = o.TargetID
		events = append(events, stolen)
	case cards.ActionSmuggler:
		events = append(events, r.private(EventCardsDrawn, o.ActorID, map[string]any{"cards": o.Drawn}, o.ActorID))
	case cards.ActionAudit:
		audit := r.private(EventAuditResult, o.ActorID, map[string]any{"hand": o.AuditedHand}, o.ActorID)
		audit.TargetID = o.TargetID
		events = append(events, audit)
	case cards.ActionMarketDay, cards.ActionTaxDay:
		events = append(events, r.event(EventSubPhaseOpened, o.ActorID, map[string]any{"kind": o.SubPhase}))
	case cards.ActionFence:
		events = append(events, r.event(EventCardsSwapped, o.ActorID, nil))
	}

	if fd := o.ForcedDiscard; fd != nil && fd.Count > 0 {
		r.owes[fd.PlayerID] += fd.Count
		events = append(events, r.event(EventDiscardRequired, fd.PlayerID, map[string]any{"count": fd.Count}))
	}
	return events
}

// SubmitMassDiscard submits cards to an open mass discard.
func (r *Room) SubmitMassDiscard(playerID string, cardIDs []int) (game.MassDiscardResult, error) {
	var result game.MassDiscardResult
	err := r.run(func() ([]Event, error) {
		var err error
		if result, err = r.game.SubmitMassDiscard(playerID, cardIDs); err != nil {
			return nil, err
		}
		events := []Event{r.event(EventMassDiscardSubmitted, playerID, map[string]any{
			"submitted": result.Submitted,
			"pending":   result.Pending,
		})}
		if result.AllSubmitted {
			events = append(events, r.massDiscardResolved(&result))
		}
		if result.NewRound {
			events = append(events, r.newRoundEvent())
		}
		return events, nil
	})
	return result, err
}

// SubmitReveal submits a card to an open simultaneous reveal.
func (r *Room) SubmitReveal(playerID string, cardID int) (game.RevealResult, error) {
	var result game.RevealResult
	err := r.run(func() ([]Event, error) {
		var err error
		if result, err = r.game.SubmitReveal(playerID, cardID); err != nil {
			return nil, err
		}
		events := []Event{r.event(EventRevealSubmitted, playerID, map[string]any{
			"submitted": result.Submitted,
			"pending":   result.Pending,
		})}
		if result.AllSubmitted {
			events = append(events, r.revealResolved(&result))
		}
		if result.NewRound {
			events = append(events, r.newRoundEvent())
		}
		return events, nil
	})
	return result, err
}

func (r *Room) massDiscardResolved(result *game.MassDiscardResult) Event {
	return r.event(EventMassDiscardResolved, "", map[string]any{
		"poolSize": result.PoolSize,
		"received": result.Received,
	})
}

func (r *Room) revealResolved(result *game.RevealResult) Event {
	return r.event(EventRevealResolved, "", map[string]any{"reveals": result.Reveals})
}

func (r *Room) newRoundEvent() Event {
	return r.event(EventNewRound, "", map[string]any{"round": r.game.Round()})
}

// EndTurn passes the turn. It is refused while any player owes discards.
func (r *Room) EndTurn(playerID string) (bool, error) {
	var newRound bool
	err := r.run(func() ([]Event, error) {
		if err := r.requireNoOutstanding(); err != nil {
			return nil, err
		}
		var err error
		if newRound, err = r.game.EndTurn(playerID); err != nil {
			return nil, err
		}
		events := []Event{r.event(EventTurnEnded, playerID, map[string]any{
			"currentPlayerId": r.game.CurrentPlayerID(),
		})}
		if newRound {
			events = append(events, r.newRoundEvent())
		}
		return events, nil
	})
	return newRound, err
}

// State returns the game as seen by playerID.
func (r *Room) State(playerID string) game.View {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.game.ExportState(playerID)
}

// Obligation returns how many cards a player still has to discard.
func (r *Room) Obligation(playerID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.outstanding(playerID)
}

// PlayerIDs returns the seated players in turn order.
func (r *Room) PlayerIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.game.PlayerIDs()
}

// VerifyConservation checks the card conservation invariant.
func (r *Room) VerifyConservation() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.game.VerifyConservation()
}

// Summary returns the public listing entry of the room.
func (r *Room) Summary() RoomSummary {
	r.mu.Lock()
	defer r.mu.Unlock()
	return RoomSummary{
		ID:          r.id,
		Name:        r.name,
		Phase:       r.game.Phase().String(),
		Players:     r.game.PlayerCount(),
		MaxPlayers:  r.game.Options().MaxPlayers,
		Round:       r.game.Round(),
		HasPassword: len(r.passwordHash) > 0,
		CreatedAt:   r.createdAt,
	}
}

// removeLocked removes a player from the game and from every room-level
// record. Callers hold mu.
func (r *Room) removeLocked(playerID string) game.RemovalResult {
	result := r.game.RemovePlayer(playerID)
	if !result.Removed {
		return result
	}
	delete(r.owes, playerID)
	for id, offer := range r.trades {
		if offer.FromID == playerID || offer.ToID == playerID {
			delete(r.trades, id)
		}
	}
	return result
}

func (r *Room) removalEvents(result game.RemovalResult) []Event {
	var events []Event
	if result.VaultComplete {
		events = append(events, r.turnPhaseEvent())
	}
	if result.MassDiscard != nil {
		events = append(events, r.massDiscardResolved(result.MassDiscard))
	}
	if result.Reveal != nil {
		events = append(events, r.revealResolved(result.Reveal))
	}
	if result.NewRound {
		events = append(events, r.newRoundEvent())
	}
	return events
}

// outstanding is the discard obligation of a player, capped at hand size.
func (r *Room) outstanding(playerID string) int {
	owed := r.owes[playerID]
	if owed == 0 {
		return 0
	}
	hand, ok := r.game.Hand(playerID)
	if !ok {
		return 0
	}
	return min(owed, len(hand))
}

func (r *Room) requireNoDebt(playerID string) error {
	if n := r.outstanding(playerID); n > 0 {
		return fmt.Errorf("%w: %s must discard %d", ErrDiscardPending, playerID, n)
	}
	return nil
}

func (r *Room) requireNoOutstanding() error {
	for id := range r.owes {
		if err := r.requireNoDebt(id); err != nil {
			return err
		}
	}
	return nil
}
