package grpcserver

import (
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/and161185/notekeeper/internal/errs"
)

// toStatus maps service errors to gRPC status. Storage and key details stay in the server log.
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	var ve *errs.ValidationError
	switch {
	case errors.As(err, &ve):
		return status.Error(codes.InvalidArgument, ve.Error())
	case errors.Is(err, errs.ErrValidation):
		return status.Error(codes.InvalidArgument, "invalid argument")
	case errors.Is(err, errs.ErrNotFound):
		return status.Error(codes.NotFound, "not found")
	case errors.Is(err, errs.ErrAlreadyExists):
		return status.Error(codes.AlreadyExists, "username already taken")
	case errors.Is(err, errs.ErrUnauthorized):
		return status.Error(codes.Unauthenticated, "unauthenticated")
	case errors.Is(err, errs.ErrRateLimited):
		return status.Error(codes.ResourceExhausted, "too many failed attempts, try later")
	default:
		return status.Error(codes.Internal, "internal error")
	}
}
