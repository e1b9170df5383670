package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/merchantscaravan/caravan-server/internal/game"
	"github.com/merchantscaravan/caravan-server/internal/room"
)

func TestStatusFromError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code codes.Code
		http int
	}{
		{"nil", nil, codes.OK, http.StatusOK},
		{"room not found", room.ErrRoomNotFound, codes.NotFound, http.StatusNotFound},
		{"wrong password", room.ErrWrongPassword, codes.PermissionDenied, http.StatusForbidden},
		{"discard pending", fmt.Errorf("%w: b must discard 2", room.ErrDiscardPending), codes.FailedPrecondition, http.StatusConflict},
		{"room full", fmt.Errorf("%w: 5 seats", game.ErrRoomFull), codes.ResourceExhausted, http.StatusConflict},
		{"duplicate player", game.ErrDuplicatePlayer, codes.AlreadyExists, http.StatusConflict},
		{"unknown card", fmt.Errorf("%w: 17", game.ErrCardNotInHand), codes.NotFound, http.StatusNotFound},
		{"wrong phase", game.ErrWrongPhase, codes.FailedPrecondition, http.StatusConflict},
		{"mixed vault", game.ErrCategoryMismatch, codes.InvalidArgument, http.StatusUnprocessableEntity},
		{"canceled", context.Canceled, codes.Canceled, http.StatusRequestTimeout},
		{"foreign", errors.New("boom"), codes.Internal, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, StatusFromError(tt.err).Code())
			assert.Equal(t, tt.http, HTTPStatus(tt.err))
		})
	}
}

func TestStatusFromErrorKeepsExistingStatus(t *testing.T) {
	err := status.Error(codes.Unavailable, "draining")
	st := StatusFromError(err)
	assert.Equal(t, codes.Unavailable, st.Code())
	assert.Equal(t, "draining", st.Message())
}
