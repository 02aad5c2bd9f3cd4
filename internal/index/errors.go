package index

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrDimensionMismatch matches every *DimensionMismatchError via errors.Is.
	ErrDimensionMismatch = errors.New("dimension mismatch")

	// ErrInvalidVector is returned for empty vectors, non-finite values and empty subject IDs.
	ErrInvalidVector = errors.New("invalid vector")
)

// DimensionMismatchError reports a vector whose length disagrees with the index dimensionality.
type DimensionMismatchError struct {
	Expected int
	Actual   int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

// Is makes errors.Is(err, ErrDimensionMismatch) work for wrapped values.
func (e *DimensionMismatchError) Is(target error) bool {
	return target == ErrDimensionMismatch
}

// ValidateVector checks that a vector is non-empty and holds only finite values.
func ValidateVector(vector []float32) error {
	if len(vector) == 0 {
		return fmt.Errorf("%w: empty vector", ErrInvalidVector)
	}
	for i, v := range vector {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Errorf("%w: non-finite value at position %d", ErrInvalidVector, i)
		}
	}
	return nil
}

// CheckDim returns a *DimensionMismatchError when expected is set and differs from the vector length.
// An expected dimension of 0 accepts any length.
func CheckDim(expected int, vector []float32) error {
	if expected > 0 && len(vector) != expected {
		return &DimensionMismatchError{Expected: expected, Actual: len(vector)}
	}
	return nil
}
