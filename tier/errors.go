package tier

import (
	"errors"
	"fmt"
)

// SpillError lists evicted entries that could not be written to the provider.
// Those entries are gone from both tiers.
type SpillError struct {
	Keys []string
	Errs []error
}

func (e *SpillError) Error() string {
	if len(e.Keys) == 1 {
		return fmt.Sprintf("tier: spill %q failed: %v", e.Keys[0], e.Errs[0])
	}
	return fmt.Sprintf("tier: %d spills failed: %v", len(e.Keys), errors.Join(e.Errs...))
}

func (e *SpillError) Unwrap() []error { return e.Errs }
