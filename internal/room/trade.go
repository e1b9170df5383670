package room

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/merchantscaravan/caravan-server/internal/game"
	"github.com/merchantscaravan/caravan-server/internal/game/cards"
)

// TradeOffer is a pending hand-for-hand exchange proposed by FromID.
type TradeOffer struct {
	ID        string    `json:"id"`
	FromID    string    `json:"fromId"`
	ToID      string    `json:"toId"`
	Offered   []int     `json:"offered"`
	Requested []int     `json:"requested"`
	CreatedAt time.Time `json:"createdAt"`
}

// ProposeTrade records an offer from fromID to toID. The offered cards must
// be in the proposer's hand now; whatever is still held on either side when
// the offer is accepted is exchanged.
func (r *Room) ProposeTrade(fromID, toID string, offered, requested []int) (TradeOffer, error) {
	var offer TradeOffer
	err := r.run(func() ([]Event, error) {
		if !r.game.Phase().InProgress() {
			return nil, fmt.Errorf("%w: no game in progress", game.ErrWrongPhase)
		}
		hand, ok := r.game.Hand(fromID)
		if !ok {
			return nil, fmt.Errorf("%w: %s", game.ErrPlayerNotFound, fromID)
		}
		if fromID == toID {
			return nil, fmt.Errorf("%w: cannot trade with yourself", game.ErrInvalidTarget)
		}
		if _, ok := r.game.PlayerName(toID); !ok {
			return nil, fmt.Errorf("%w: %s", game.ErrPlayerNotFound, toID)
		}
		if err := r.requireNoDebt(fromID); err != nil {
			return nil, err
		}
		for _, id := range offered {
			if cards.IndexOf(hand, id) == -1 {
				return nil, fmt.Errorf("%w: %d", game.ErrCardNotInHand, id)
			}
		}

		offer = TradeOffer{
			ID:        uuid.New().String(),
			FromID:    fromID,
			ToID:      toID,
			Offered:   append([]int(nil), offered...),
			Requested: append([]int(nil), requested...),
			CreatedAt: time.Now(),
		}
		stored := offer
		r.trades[offer.ID] = &stored

		e := r.private(EventTradeProposed, fromID, offer, fromID, toID)
		e.TargetID = toID
		return []Event{e}, nil
	})
	return offer, err
}

// AcceptTrade executes an offer addressed to playerID.
func (r *Room) AcceptTrade(playerID, tradeID string) (game.ExchangeResult, error) {
	var result game.ExchangeResult
	err := r.run(func() ([]Event, error) {
		offer, ok := r.trades[tradeID]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrTradeNotFound, tradeID)
		}
		if offer.ToID != playerID {
			return nil, ErrNotTradeTarget
		}
		if err := r.requireNoDebt(playerID); err != nil {
			return nil, err
		}
		var err error
		if result, err = r.game.ExchangeCards(offer.FromID, offer.Offered, offer.ToID, offer.Requested); err != nil {
			return nil, err
		}
		delete(r.trades, tradeID)

		e := r.private(EventTradeCompleted, offer.FromID, map[string]any{
			"tradeId": tradeID,
			"given":   result.FromA,
			"taken":   result.FromB,
		}, offer.FromID, offer.ToID)
		e.TargetID = offer.ToID
		return []Event{e}, nil
	})
	return result, err
}

// DeclineTrade drops an offer. Either party may decline it.
func (r *Room) DeclineTrade(playerID, tradeID string) error {
	return r.run(func() ([]Event, error) {
		offer, ok := r.trades[tradeID]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrTradeNotFound, tradeID)
		}
		if offer.ToID != playerID && offer.FromID != playerID {
			return nil, ErrNotTradeTarget
		}
		delete(r.trades, tradeID)

		e := r.private(EventTradeDeclined, playerID, map[string]any{"tradeId": tradeID}, offer.FromID, offer.ToID)
		e.TargetID = offer.ToID
		return []Event{e}, nil
	})
}

// Trades returns the open offers involving playerID.
func (r *Room) Trades(playerID string) []TradeOffer {
	r.mu.Lock()
	defer r.mu.Unlock()

	offers := make([]TradeOffer, 0)
	for _, offer := range r.trades {
		if offer.FromID == playerID || offer.ToID == playerID {
			offers = append(offers, *offer)
		}
	}
	return offers
}
