package storage

import (
	"errors"

	"cypher-activity/internal/domain"
)

// Storage errors.
var (
	// ErrInvalidInput is returned when an event fails the persistence
	// invariants (unknown event type or empty addressInvolved).
	ErrInvalidInput = errors.New("invalid input")
)

// ValidateEvent checks the invariants every persisted event must satisfy.
// Backends call it before writing so a bad record never reaches the store.
func ValidateEvent(ev *domain.ActivityEvent) error {
	if ev == nil || !ev.EventType.Valid() || len(ev.AddressInvolved) == 0 {
		return ErrInvalidInput
	}
	return nil
}
