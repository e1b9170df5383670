package server

import (
	"context"
	"errors"
	"net/http"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/merchantscaravan/caravan-server/internal/game"
	"github.com/merchantscaravan/caravan-server/internal/room"
)

var roomErrorCodes = []struct {
	err  error
	code codes.Code
}{
	{room.ErrRoomNotFound, codes.NotFound},
	{room.ErrTradeNotFound, codes.NotFound},
	{room.ErrWrongPassword, codes.PermissionDenied},
	{room.ErrNotInRoom, codes.PermissionDenied},
	{room.ErrNotTradeTarget, codes.PermissionDenied},
	{room.ErrDiscardPending, codes.FailedPrecondition},
	{game.ErrDuplicatePlayer, codes.AlreadyExists},
	{context.Canceled, codes.Canceled},
	{context.DeadlineExceeded, codes.DeadlineExceeded},
}

// StatusFromError converts a room or engine error into a gRPC status. Errors
// that already carry a status are returned unchanged.
func StatusFromError(err error) *status.Status {
	if err == nil {
		return status.New(codes.OK, "")
	}
	if st, ok := status.FromError(err); ok {
		return st
	}
	for _, entry := range roomErrorCodes {
		if errors.Is(err, entry.err) {
			return status.New(entry.code, err.Error())
		}
	}

	switch game.Classify(err) {
	case game.ClassCapacity:
		return status.New(codes.ResourceExhausted, err.Error())
	case game.ClassIdentity:
		return status.New(codes.NotFound, err.Error())
	case game.ClassState:
		return status.New(codes.FailedPrecondition, err.Error())
	case game.ClassRules:
		return status.New(codes.InvalidArgument, err.Error())
	default:
		return status.New(codes.Internal, err.Error())
	}
}

// HTTPStatus maps an error to the HTTP status code of the REST API.
func HTTPStatus(err error) int {
	switch StatusFromError(err).Code() {
	case codes.OK:
		return http.StatusOK
	case codes.NotFound:
		return http.StatusNotFound
	case codes.PermissionDenied:
		return http.StatusForbidden
	case codes.AlreadyExists, codes.ResourceExhausted, codes.FailedPrecondition:
		return http.StatusConflict
	case codes.InvalidArgument:
		return http.StatusUnprocessableEntity
	case codes.Canceled, codes.DeadlineExceeded:
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}
