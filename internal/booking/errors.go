package booking

import (
	"errors"
	"fmt"
)

var ErrNotFound = errors.New("booking not found")

type ValidationError struct {
	Field string
	Msg   string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Msg)
}

// ConflictError signals a lost optimistic-version race: the caller holds a
// stale copy of the booking and must refetch before retrying.
type ConflictError struct {
	BookingID string
	Version   int
}

func (e ConflictError) Error() string {
	return fmt.Sprintf("booking %s modified concurrently (version %d is stale)", e.BookingID, e.Version)
}

type TransitionError struct {
	BookingID string
	Kind      Kind
	From, To  Status
}

func (e TransitionError) Error() string {
	return fmt.Sprintf("booking %s (%s): illegal transition %s -> %s", e.BookingID, e.Kind, e.From, e.To)
}
