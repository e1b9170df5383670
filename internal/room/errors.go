package room

import "errors"

var (
	ErrRoomNotFound   = errors.New("room not found")
	ErrWrongPassword  = errors.New("wrong room password")
	ErrNotInRoom      = errors.New("player is not in this room")
	ErrDiscardPending = errors.New("discard pending")
	ErrTradeNotFound  = errors.New("trade offer not found")
	ErrNotTradeTarget = errors.New("trade offer is addressed to another player")
)
