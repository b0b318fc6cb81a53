package profiler

import (
	"time"

	"github.com/wesleyorama2/perfcore/internal/profiler/metrics"
)

// Timer measures one execution of an operation.
type Timer struct {
	acc   *metrics.Accumulator
	start time.Time
}

// Start begins timing name. An empty name yields a Timer whose Stop does
// nothing.
func (p *Profiler) Start(name string) Timer {
	if name == "" {
		return Timer{}
	}
	return Timer{acc: p.registry.Accumulator(name), start: time.Now()}
}

// Stop records the elapsed time and returns it. Each call records a new
// event, so call it once per Start.
func (t Timer) Stop() time.Duration {
	if t.acc == nil {
		return 0
	}
	elapsed := time.Since(t.start)
	t.acc.Record(int64(elapsed))
	return elapsed
}
