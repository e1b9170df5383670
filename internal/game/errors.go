package game

import (
	"errors"

	"github.com/merchantscaravan/caravan-server/internal/game/barrier"
	"github.com/merchantscaravan/caravan-server/internal/game/ledger"
	"github.com/merchantscaravan/caravan-server/internal/game/scoring"
)

var (
	ErrRoomFull        = ledger.ErrRoomFull
	ErrDuplicatePlayer = ledger.ErrDuplicatePlayer
	ErrPlayerNotFound  = errors.New("player not found")
	ErrCardNotInHand   = errors.New("card not in hand")
	ErrCardNotInVault  = errors.New("card not in vault")
	ErrDuplicateCard   = errors.New("card selected more than once")

	ErrNotEnoughPlayers = errors.New("not enough players")
	ErrGameInProgress   = errors.New("game already in progress")
	ErrWrongPhase       = errors.New("operation not allowed in this phase")
	ErrGameEnded        = errors.New("game has ended")
	ErrNotYourTurn      = errors.New("not your turn")
	ErrAlreadyDrew      = errors.New("already drew this turn")
	ErrSubPhaseActive   = errors.New("a sub-phase is already active")
	ErrSubPhaseInactive = errors.New("sub-phase not active")
	ErrAlreadySubmitted = barrier.ErrAlreadySubmitted

	ErrCategoryMismatch  = errors.New("caravan type mismatch")
	ErrNotActionCard     = errors.New("card is not an action card")
	ErrInvalidTarget     = errors.New("invalid target player")
	ErrInvalidSelection  = errors.New("invalid card selection")
	ErrNoCategory        = scoring.ErrNoCategory
	ErrMixedVault        = scoring.ErrMixedVault
	ErrInsufficientValue = scoring.ErrInsufficientValue
)

// ErrorClass groups engine errors by what went wrong.
type ErrorClass int

const (
	ClassUnknown ErrorClass = iota
	ClassCapacity
	ClassIdentity
	ClassState
	ClassRules
)

var errorClassNames = map[ErrorClass]string{
	ClassUnknown:  "unknown",
	ClassCapacity: "capacity",
	ClassIdentity: "identity",
	ClassState:    "state",
	ClassRules:    "rules",
}

func (c ErrorClass) String() string {
	if name, ok := errorClassNames[c]; ok {
		return name
	}
	return "unknown"
}

var errorClasses = []struct {
	err   error
	class ErrorClass
}{
	{ErrRoomFull, ClassCapacity},

	{ErrDuplicatePlayer, ClassIdentity},
	{ErrPlayerNotFound, ClassIdentity},
	{ErrCardNotInHand, ClassIdentity},
	{ErrCardNotInVault, ClassIdentity},
	{ErrDuplicateCard, ClassIdentity},

	{ErrNotEnoughPlayers, ClassState},
	{ErrGameInProgress, ClassState},
	{ErrWrongPhase, ClassState},
	{ErrGameEnded, ClassState},
	{ErrNotYourTurn, ClassState},
	{ErrAlreadyDrew, ClassState},
	{ErrSubPhaseActive, ClassState},
	{ErrSubPhaseInactive, ClassState},
	{ErrAlreadySubmitted, ClassState},

	{ErrCategoryMismatch, ClassRules},
	{ErrNotActionCard, ClassRules},
	{ErrInvalidTarget, ClassRules},
	{ErrInvalidSelection, ClassRules},
	{ErrNoCategory, ClassRules},
	{ErrMixedVault, ClassRules},
	{ErrInsufficientValue, ClassRules},
}

// Classify returns the class of an engine error. Errors that did not come from
// the engine, including nil, are ClassUnknown.
func Classify(err error) ErrorClass {
	if err == nil {
		return ClassUnknown
	}
	for _, entry := range errorClasses {
		if errors.Is(err, entry.err) {
			return entry.class
		}
	}
	return ClassUnknown
}
