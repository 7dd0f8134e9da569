package types

import (
	"errors"
	"fmt"
)

// ErrBoundExceeded is returned when a byte field is longer than its
// configured maximum.
var ErrBoundExceeded = errors.New("types: length bound exceeded")

// BoundedBytes is a byte buffer whose length was checked against a maximum
// when it was constructed.
type BoundedBytes []byte

// NewBoundedBytes copies b into a BoundedBytes, failing when len(b) > max.
func NewBoundedBytes(b []byte, max int) (BoundedBytes, error) {
	if err := CheckBound("bytes", b, max); err != nil {
		return nil, err
	}
	out := make(BoundedBytes, len(b))
	copy(out, b)
	return out, nil
}

// CheckBound reports ErrBoundExceeded, naming field, when len(b) > max.
func CheckBound(field string, b []byte, max int) error {
	if len(b) > max {
		return fmt.Errorf("%w: %s has %d bytes, max %d", ErrBoundExceeded, field, len(b), max)
	}
	return nil
}
