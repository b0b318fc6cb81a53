package metrics

import (
	"math"
	"sync/atomic"
)

// Sentinels held by an accumulator before its first recording. Any real
// duration improves on them.
const (
	noMax int64 = math.MinInt64
	noMin int64 = math.MaxInt64
)

// Accumulator keeps running statistics for a single named operation.
//
// All updates are lock-free. Count and total are plain atomic adds; the
// extrema use compare-and-swap retry loops so that concurrent writers never
// lose an improvement.
type Accumulator struct {
	name string

	count atomic.Uint64
	total atomic.Uint64
	max   atomic.Int64
	min   atomic.Int64
}

// NewAccumulator creates an accumulator for the named operation.
func NewAccumulator(name string) *Accumulator {
	a := &Accumulator{name: name}
	a.max.Store(noMax)
	a.min.Store(noMin)
	return a
}

// Name returns the operation name.
func (a *Accumulator) Name() string {
	return a.name
}

// Record adds one execution of durationNanos.
//
// durationNanos must be non-negative; the registry rejects negative values
// before they reach here.
func (a *Accumulator) Record(durationNanos int64) {
	a.count.Add(1)
	a.total.Add(uint64(durationNanos))
	storeMax(&a.max, durationNanos)
	storeMin(&a.min, durationNanos)
}

// storeMax raises v to at least value. Each failed CAS means another writer
// raised the maximum, so the loop ends once value no longer improves on it.
func storeMax(v *atomic.Int64, value int64) {
	for {
		current := v.Load()
		if value <= current {
			return
		}
		if v.CompareAndSwap(current, value) {
			return
		}
	}
}

// storeMin lowers v to at most value.
func storeMin(v *atomic.Int64, value int64) {
	for {
		current := v.Load()
		if value >= current {
			return
		}
		if v.CompareAndSwap(current, value) {
			return
		}
	}
}

// Snapshot returns the current statistics.
//
// Fields are read one by one, so a snapshot taken during concurrent writes
// is not guaranteed to be consistent across fields. Average is always
// derived from the count and total read here.
func (a *Accumulator) Snapshot() Snapshot {
	count := a.count.Load()
	total := a.total.Load()

	s := Snapshot{
		Name:  a.name,
		Count: count,
		Total: total,
	}
	if count > 0 {
		s.Average = total / count
	}
	if v := a.max.Load(); v != noMax {
		s.Max = v
	}
	if v := a.min.Load(); v != noMin {
		s.Min = v
	}
	return s
}

// Snapshot is a point-in-time copy of an accumulator. Durations are in
// nanoseconds. Min and Max are zero until the first execution is observed.
type Snapshot struct {
	Name    string `json:"name"`
	Count   uint64 `json:"count"`
	Total   uint64 `json:"total"`
	Max     int64  `json:"max"`
	Min     int64  `json:"min"`
	Average uint64 `json:"average"`
}
