package enrollment

import (
	"errors"
	"fmt"
)

var (
	// ErrPersistence matches every *PersistenceError via errors.Is.
	ErrPersistence = errors.New("persistence error")

	// ErrInvalidSubject is returned for empty subject IDs.
	ErrInvalidSubject = errors.New("subject ID is required")

	// ErrUnknownModel is returned when enrolling for a model with no known dimensionality.
	ErrUnknownModel = errors.New("unknown model")
)

// PersistenceError wraps a failure of the embedding store.
// The index is never modified when one is returned.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence error during %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrPersistence) work for wrapped values.
func (e *PersistenceError) Is(target error) bool {
	return target == ErrPersistence
}
