package metrics

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrInvalidArgument is returned for calls that violate the recording
// contract: an empty operation name or a negative duration.
var ErrInvalidArgument = errors.New("invalid argument")

// Registry maps operation names to their accumulators.
//
// The first Record for a name creates its accumulator. Concurrent first
// touches all end up on the same instance: creation goes through
// sync.Map.LoadOrStore, so only the stored accumulator is ever returned.
type Registry struct {
	accumulators sync.Map // string -> *Accumulator
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Record adds one execution of durationNanos to the named operation.
//
// Invalid calls are rejected with ErrInvalidArgument and leave the
// registry untouched.
func (r *Registry) Record(name string, durationNanos int64) error {
	if name == "" {
		return fmt.Errorf("%w: empty operation name", ErrInvalidArgument)
	}
	if durationNanos < 0 {
		return fmt.Errorf("%w: negative duration %d for %q", ErrInvalidArgument, durationNanos, name)
	}

	r.Accumulator(name).Record(durationNanos)
	return nil
}

// Accumulator returns the accumulator for name, creating it if needed.
func (r *Registry) Accumulator(name string) *Accumulator {
	// Fast path: no allocation once the name is known.
	if acc, ok := r.accumulators.Load(name); ok {
		return acc.(*Accumulator)
	}

	acc, _ := r.accumulators.LoadOrStore(name, NewAccumulator(name))
	return acc.(*Accumulator)
}

// Get returns a snapshot for name, or false if nothing was recorded for it.
func (r *Registry) Get(name string) (Snapshot, bool) {
	acc, ok := r.accumulators.Load(name)
	if !ok {
		return Snapshot{}, false
	}
	return acc.(*Accumulator).Snapshot(), true
}

// All returns snapshots of every accumulator. The map is a copy and is safe
// to iterate while writers keep recording.
func (r *Registry) All() map[string]Snapshot {
	result := make(map[string]Snapshot)
	r.accumulators.Range(func(key, value any) bool {
		result[key.(string)] = value.(*Accumulator).Snapshot()
		return true
	})
	return result
}

// Names returns the known operation names in sorted order.
func (r *Registry) Names() []string {
	var names []string
	r.accumulators.Range(func(key, _ any) bool {
		names = append(names, key.(string))
		return true
	})
	sort.Strings(names)
	return names
}

// Len returns the number of known operations.
func (r *Registry) Len() int {
	n := 0
	r.accumulators.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}
