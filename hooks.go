package boundcache

// Hooks lightweight callbacks for high-signal events.
// Implementations MUST be cheap and non-blocking.
// The cache calls them on hot paths, some while holding its lock.
type Hooks interface {
	// An entry was evicted to make room.
	// reason ∈ {"capacity", "resize"}
	Evicted(reason string, capacity int)

	// The backing store returned ok=false for a spilled entry (backpressure/admission).
	SpillRejected(storageKey string)

	// Encoding or writing a spilled entry failed.
	SpillError(storageKey string, err error)

	// A backing-store entry was deleted on read.
	// reason ∈ {"corrupt", "value_decode"}
	SelfHeal(storageKey, reason string)

	// A snapshot entry could not be decoded and was skipped.
	SnapshotEntryDropped(index int, err error)
}

// NopHooks is the default no-op
type NopHooks struct{}

func (NopHooks) Evicted(string, int)             {}
func (NopHooks) SpillRejected(string)            {}
func (NopHooks) SpillError(string, error)        {}
func (NopHooks) SelfHeal(string, string)         {}
func (NopHooks) SnapshotEntryDropped(int, error) {}
