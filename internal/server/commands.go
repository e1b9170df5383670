package server

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/merchantscaravan/caravan-server/internal/game"
	"github.com/merchantscaravan/caravan-server/internal/room"
)

const commandTimeout = 5 * time.Second

var (
	errMalformedMessage = status.Error(codes.InvalidArgument, "malformed message")
	errAlreadyJoined    = status.Error(codes.FailedPrecondition, "connection already holds a seat")
	errUnknownCommand   = status.Error(codes.Unimplemented, "unknown command")
)

type joinRequest struct {
	Name     string `json:"name"`
	Password string `json:"password"`
}

type cardsRequest struct {
	CardIDs []int `json:"cardIds"`
}

type revealRequest struct {
	CardID *int `json:"cardId"`
}

type tradeRequest struct {
	ToID      string `json:"toId"`
	Offered   []int  `json:"offered"`
	Requested []int  `json:"requested"`
}

type tradeIDRequest struct {
	TradeID string `json:"tradeId"`
}

type commandResult struct {
	Command string `json:"command"`
	Result  any    `json:"result,omitempty"`
}

type errorBody struct {
	Command string `json:"command,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// command runs one client request against the client's room seat.
type command func(c *Client, r *room.Room, playerID string, data any) (any, error)

var commands = map[string]command{
	"leave_room": func(c *Client, r *room.Room, playerID string, _ any) (any, error) {
		c.unbind()
		return r.Leave(playerID), nil
	},
	"start_game": func(_ *Client, r *room.Room, playerID string, _ any) (any, error) {
		return nil, r.Start(playerID)
	},
	"add_to_vault": func(_ *Client, r *room.Room, playerID string, data any) (any, error) {
		var req cardsRequest
		if err := decode(data, &req); err != nil {
			return nil, err
		}
		return nil, r.AddToVault(playerID, req.CardIDs)
	},
	"remove_from_vault": func(_ *Client, r *room.Room, playerID string, data any) (any, error) {
		var req cardsRequest
		if err := decode(data, &req); err != nil {
			return nil, err
		}
		return nil, r.RemoveFromVault(playerID, req.CardIDs)
	},
	"complete_vault": func(_ *Client, r *room.Room, playerID string, _ any) (any, error) {
		done, err := r.CompleteVault(playerID)
		return map[string]bool{"allComplete": done}, err
	},
	"declare_victory": func(c *Client, r *room.Room, playerID string, _ any) (any, error) {
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()
		result, err := r.DeclareVictory(ctx, playerID)
		if result.Eliminated {
			c.unbind()
		}
		return result, err
	},
	"discard": func(_ *Client, r *room.Room, playerID string, data any) (any, error) {
		var req cardsRequest
		if err := decode(data, &req); err != nil {
			return nil, err
		}
		return nil, r.Discard(playerID, req.CardIDs)
	},
	"draw": func(_ *Client, r *room.Room, playerID string, _ any) (any, error) {
		drawn, err := r.Draw(playerID)
		return map[string]any{"cards": drawn}, err
	},
	"play_action": func(_ *Client, r *room.Room, playerID string, data any) (any, error) {
		var play game.ActionPlay
		if err := decode(data, &play); err != nil {
			return nil, err
		}
		return r.PlayAction(playerID, play)
	},
	"submit_mass_discard": func(_ *Client, r *room.Room, playerID string, data any) (any, error) {
		var req cardsRequest
		if err := decode(data, &req); err != nil {
			return nil, err
		}
		return r.SubmitMassDiscard(playerID, req.CardIDs)
	},
	"submit_reveal": func(_ *Client, r *room.Room, playerID string, data any) (any, error) {
		var req revealRequest
		if err := decode(data, &req); err != nil {
			return nil, err
		}
		if req.CardID == nil {
			return nil, status.Error(codes.InvalidArgument, "cardId is required")
		}
		return r.SubmitReveal(playerID, *req.CardID)
	},
	"propose_trade": func(_ *Client, r *room.Room, playerID string, data any) (any, error) {
		var req tradeRequest
		if err := decode(data, &req); err != nil {
			return nil, err
		}
		return r.ProposeTrade(playerID, req.ToID, req.Offered, req.Requested)
	},
	"accept_trade": func(_ *Client, r *room.Room, playerID string, data any) (any, error) {
		var req tradeIDRequest
		if err := decode(data, &req); err != nil {
			return nil, err
		}
		return r.AcceptTrade(playerID, req.TradeID)
	},
	"decline_trade": func(_ *Client, r *room.Room, playerID string, data any) (any, error) {
		var req tradeIDRequest
		if err := decode(data, &req); err != nil {
			return nil, err
		}
		return nil, r.DeclineTrade(playerID, req.TradeID)
	},
	"list_trades": func(_ *Client, r *room.Room, playerID string, _ any) (any, error) {
		return r.Trades(playerID), nil
	},
	"end_turn": func(_ *Client, r *room.Room, playerID string, _ any) (any, error) {
		newRound, err := r.EndTurn(playerID)
		return map[string]bool{"newRound": newRound}, err
	},
	"get_state": func(_ *Client, r *room.Room, playerID string, _ any) (any, error) {
		return r.State(playerID), nil
	},
}

// decode copies a loosely typed JSON payload into out using its json tags.
func decode(data any, out any) error {
	if data == nil {
		return nil
	}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		TagName:          "json",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	if err := decoder.Decode(data); err != nil {
		return status.Errorf(codes.InvalidArgument, "invalid payload: %v", err)
	}
	return nil
}

func (c *Client) handle(msg Message) {
	if msg.Type == "join_room" {
		c.join(msg)
		return
	}

	cmd, ok := commands[msg.Type]
	if !ok {
		c.replyError(msg.Type, errUnknownCommand)
		return
	}
	roomID, playerID := c.binding()
	if roomID == "" {
		c.replyError(msg.Type, room.ErrNotInRoom)
		return
	}
	r, ok := c.hub.manager.GetRoom(roomID)
	if !ok {
		c.unbind()
		c.replyError(msg.Type, room.ErrRoomNotFound)
		return
	}

	result, err := cmd(c, r, playerID, msg.Data)
	if err != nil {
		c.hub.logger.Debug("command rejected",
			zap.String("room_id", roomID),
			zap.String("player_id", playerID),
			zap.String("command", msg.Type),
			zap.Error(err),
		)
		c.replyError(msg.Type, err)
		return
	}
	c.reply(Message{Type: "result", RoomID: roomID, PlayerID: playerID, Data: commandResult{Command: msg.Type, Result: result}})
}

// join seats the connection in msg.RoomID. The joining client gets the
// "joined" reply and a state push instead of its own PLAYER_JOINED event.
func (c *Client) join(msg Message) {
	if roomID, _ := c.binding(); roomID != "" {
		c.replyError(msg.Type, errAlreadyJoined)
		return
	}
	r, ok := c.hub.manager.GetRoom(msg.RoomID)
	if !ok {
		c.replyError(msg.Type, room.ErrRoomNotFound)
		return
	}
	var req joinRequest
	if err := decode(msg.Data, &req); err != nil {
		c.replyError(msg.Type, err)
		return
	}
	playerID := msg.PlayerID
	if playerID == "" {
		playerID = uuid.NewString()
	}
	if req.Name == "" {
		req.Name = playerID
	}

	if err := r.Join(playerID, req.Name, req.Password); err != nil {
		c.replyError(msg.Type, err)
		return
	}
	c.bind(r.ID(), playerID)
	c.hub.logger.Info("client joined room",
		zap.String("client_id", c.id),
		zap.String("room_id", r.ID()),
		zap.String("player_id", playerID),
	)
	c.reply(Message{Type: "joined", RoomID: r.ID(), PlayerID: playerID})
	c.markStale()
}

func (c *Client) replyError(command string, err error) {
	st := StatusFromError(err)
	c.reply(Message{Type: "error", Data: errorBody{
		Command: command,
		Code:    st.Code().String(),
		Message: st.Message(),
	}})
}
