package store

import "fmt"

// ErrNotFound is returned by any lookup that fails to find Entity keyed by
// Key — callers type-assert this to produce a 404.
type ErrNotFound struct {
	Entity string
	Key    string
}

func (e ErrNotFound) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Entity, e.Key)
}

// ErrConflict is returned when a write violates a uniqueness invariant the
// caller should treat as a 409 (an IngestRun idempotency key that is
// already recorded, a duplicate source listing mapping).
type ErrConflict struct {
	Entity string
	Key    string
}

func (e ErrConflict) Error() string {
	return fmt.Sprintf("%s conflict: %s", e.Entity, e.Key)
}

// ErrLeaseLost is returned by a conditional update (WHERE id=? AND
// lease_id=?) that touched zero rows — someone else reclaimed the row.
type ErrLeaseLost struct {
	Entity string
	ID     string
}

func (e ErrLeaseLost) Error() string {
	return fmt.Sprintf("%s lease lost: %s", e.Entity, e.ID)
}
