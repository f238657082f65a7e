package store

import (
	"context"
	"errors"
	"fmt"
)

// ErrStoreUnavailable matches every failure to read chat.db.
var ErrStoreUnavailable = errors.New("message store unavailable")

// UnavailableError reports which operation could not reach chat.db.
type UnavailableError struct {
	Op  string
	Err error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("%s: %v: %v", e.Op, ErrStoreUnavailable, e.Err)
}

func (e *UnavailableError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrStoreUnavailable) hold.
func (e *UnavailableError) Is(target error) bool {
	return target == ErrStoreUnavailable
}

func unavailable(op string, err error) error {
	return &UnavailableError{Op: op, Err: err}
}

// fail classifies a query error. Cancellation is reported as is.
func (db *DB) fail(ctx context.Context, op string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return unavailable(op, err)
}
