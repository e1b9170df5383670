package cards

import "fmt"

// Kind distinguishes scored commodities from one-off action cards.
type Kind string

const (
	KindCommodity Kind = "commodity"
	KindAction    Kind = "action"
)

// Category is the caravan type of a commodity card.
type Category string

const (
	CategoryTextiles     Category = "TEXTILES"
	CategoryMetals       Category = "METALS"
	CategorySpices       Category = "SPICES"
	CategoryJewelry      Category = "JEWELRY"
	CategoryMonsterParts Category = "MONSTER_PARTS"
)

// Categories lists every commodity category in catalog order.
var Categories = []Category{
	CategoryTextiles,
	CategoryMetals,
	CategorySpices,
	CategoryJewelry,
	CategoryMonsterParts,
}

// Valid reports whether c is one of the five known categories.
func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// ActionKind names the effect of an action card.
type ActionKind string

const (
	ActionThief     ActionKind = "Thief"
	ActionFire      ActionKind = "Fire"
	ActionSmuggler  ActionKind = "Smuggler"
	ActionAudit     ActionKind = "Audit"
	ActionMarketDay ActionKind = "Market Day"
	ActionTaxDay    ActionKind = "Tax Day"
	ActionFence     ActionKind = "Fence"
)

var actionKinds = map[ActionKind]bool{
	ActionThief:     true,
	ActionFire:      true,
	ActionSmuggler:  true,
	ActionAudit:     true,
	ActionMarketDay: true,
	ActionTaxDay:    true,
	ActionFence:     true,
}

// Valid reports whether a is a known action.
func (a ActionKind) Valid() bool {
	return actionKinds[a]
}

// Targeted reports whether the action needs a target player.
func (a ActionKind) Targeted() bool {
	switch a {
	case ActionThief, ActionFire, ActionAudit:
		return true
	default:
		return false
	}
}

// Card is an immutable card value. Commodity cards carry Category and Value,
// action cards carry Action and Description.
type Card struct {
	ID          int        `json:"id"`
	Kind        Kind       `json:"type"`
	Name        string     `json:"name"`
	Category    Category   `json:"caravanType,omitempty"`
	Value       int        `json:"value,omitempty"`
	Action      ActionKind `json:"action,omitempty"`
	Description string     `json:"description,omitempty"`
}

// IsCommodity reports whether the card scores.
func (c Card) IsCommodity() bool {
	return c.Kind == KindCommodity
}

// IsAction reports whether the card is an action card.
func (c Card) IsAction() bool {
	return c.Kind == KindAction
}

func (c Card) String() string {
	if c.IsCommodity() {
		return fmt.Sprintf("#%d %s (%s %dg)", c.ID, c.Name, c.Category, c.Value)
	}
	return fmt.Sprintf("#%d %s", c.ID, c.Name)
}

// IndexOf returns the position of the card with the given id, or -1.
func IndexOf(cards []Card, id int) int {
	for i, c := range cards {
		if c.ID == id {
			return i
		}
	}
	return -1
}

// RemoveAt returns cards without the element at i. The input is not modified.
func RemoveAt(cards []Card, i int) []Card {
	out := make([]Card, 0, len(cards)-1)
	out = append(out, cards[:i]...)
	return append(out, cards[i+1:]...)
}

// Take removes every card whose id is in ids and returns (remaining, taken).
// Taken preserves the order of ids; ids that are absent are ignored.
func Take(cards []Card, ids []int) (remaining []Card, taken []Card) {
	remaining = append([]Card(nil), cards...)
	for _, id := range ids {
		idx := IndexOf(remaining, id)
		if idx == -1 {
			continue
		}
		taken = append(taken, remaining[idx])
		remaining = RemoveAt(remaining, idx)
	}
	return remaining, taken
}

// Clone returns a copy of cards that never aliases the input.
func Clone(cards []Card) []Card {
	if cards == nil {
		return nil
	}
	return append(make([]Card, 0, len(cards)), cards...)
}
