package service

import (
	"errors"
	"fmt"

	"github.com/foursigma/foursigma/internal/adapters/mq/queue"
	"github.com/foursigma/foursigma/internal/adapters/repository"
	"github.com/foursigma/foursigma/internal/adapters/storage/sqlstore"
)

// Error kinds returned by the service. Callers match them with errors.Is.
var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrConflict     = errors.New("conflict")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	// ErrBackpressure is returned while the event queue is full.
	ErrBackpressure = errors.New("too many pending events")
)

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// translate maps storage and leaderboard errors onto service kinds.
func translate(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sqlstore.ErrNotFound), errors.Is(err, repository.ErrNotFound):
		return fmt.Errorf("%s: %w: %w", op, ErrNotFound, err)
	case errors.Is(err, sqlstore.ErrDuplicate), errors.Is(err, sqlstore.ErrSessionClosed):
		return fmt.Errorf("%s: %w: %w", op, ErrConflict, err)
	case errors.Is(err, repository.ErrInvalidLimit):
		return fmt.Errorf("%s: %w: %w", op, ErrInvalidInput, err)
	case errors.Is(err, queue.ErrQueueFull):
		return fmt.Errorf("%s: %w: %w", op, ErrBackpressure, err)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}
