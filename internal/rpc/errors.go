package rpc

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/matheus3301/imv/internal/store"
	"github.com/matheus3301/imv/internal/thumbcache"
)

// ErrInvalidArgument marks a request rejected before reaching the store.
var ErrInvalidArgument = errors.New("invalid argument")

// ToStatus converts a service error into a gRPC status error.
func ToStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	switch {
	case errors.Is(err, store.ErrStoreUnavailable):
		return status.Error(codes.Unavailable, err.Error())
	case errors.Is(err, thumbcache.ErrInvalidPath), errors.Is(err, ErrInvalidArgument):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

// FromStatus converts a gRPC status error back into an error that matches
// the typed errors the daemon started from.
func FromStatus(err error) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	switch st.Code() {
	case codes.Unavailable:
		return &store.UnavailableError{Op: "rpc", Err: errors.New(st.Message())}
	case codes.InvalidArgument:
		if strings.Contains(st.Message(), thumbcache.ErrInvalidPath.Error()) {
			return fmt.Errorf("%w: %s", thumbcache.ErrInvalidPath, st.Message())
		}
		return fmt.Errorf("%w: %s", ErrInvalidArgument, st.Message())
	case codes.Canceled:
		return context.Canceled
	case codes.DeadlineExceeded:
		return context.DeadlineExceeded
	default:
		return err
	}
}
