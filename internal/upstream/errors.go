package upstream

import (
	"errors"
	"fmt"

	"github.com/mirrorapp/mirror-server/internal/domain"
)

// Sentinel errors for upstream catalog operations.
var (
	ErrNotFound    = errors.New("upstream: not found")
	ErrRateLimited = errors.New("upstream: rate limited by server")
	ErrBadRequest  = errors.New("upstream: bad request")
	ErrServer      = errors.New("upstream: server error")
	ErrUnauthorized = errors.New("upstream: unauthorized")
)

// Error wraps an underlying error with operation context.
type Error struct {
	Op         string // Operation: "fetchAll", "fetchChangedSince"
	EntityType domain.EntityType
	Err        error
}

func (e *Error) Error() string {
	return fmt.Sprintf("upstream %s [%s]: %v", e.Op, e.EntityType, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// wrapError creates an Error with context.
func wrapError(op string, t domain.EntityType, err error) error {
	return &Error{Op: op, EntityType: t, Err: err}
}
