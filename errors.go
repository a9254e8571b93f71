package boundcache

import (
	"errors"
	"fmt"
)

// ErrInvalidCapacity is matched (errors.Is) by every *CapacityError.
var ErrInvalidCapacity = errors.New("boundcache: invalid capacity")

// CapacityError reports a capacity outside 1..2^31-1.
type CapacityError struct {
	Capacity int
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("boundcache: invalid capacity %d: must be between 1 and %d", e.Capacity, maxCapacity)
}

func (e *CapacityError) Unwrap() error { return ErrInvalidCapacity }
