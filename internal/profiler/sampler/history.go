package sampler

import (
	"sync"
	"sync/atomic"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// Series identifies a sampled value tracked by History.
type Series string

const (
	SeriesHeapUsed   Series = "heapUsed"
	SeriesProcessCPU Series = "processCpuLoad"
	SeriesGoroutines Series = "goroutines"
)

// cpuScale stores a [0,1] load as basis points so the histogram can hold it
// as an integer.
const cpuScale = 10000

// History keeps the distribution of sampled values across ticks.
//
// Each series has a single writer (the sampling tick for its family). After
// every observation the writer exports a copy of its histogram and publishes
// it atomically; readers only ever touch published copies.
type History struct {
	series map[Series]*series
}

type series struct {
	mu        sync.Mutex
	hist      *hdrhistogram.Histogram
	scale     float64
	published atomic.Pointer[hdrhistogram.Snapshot]
}

// NewHistory creates an empty history.
func NewHistory() *History {
	return &History{
		series: map[Series]*series{
			// 1 byte .. 1 TiB
			SeriesHeapUsed: newSeries(1, 1<<40, 2, 1),
			// basis points, 0 .. 100%
			SeriesProcessCPU: newSeries(1, cpuScale, 3, cpuScale),
			SeriesGoroutines: newSeries(1, 10_000_000, 3, 1),
		},
	}
}

func newSeries(lowest, highest int64, sigFigs int, scale float64) *series {
	return &series{
		hist:  hdrhistogram.New(lowest, highest, sigFigs),
		scale: scale,
	}
}

// ObserveMemory records a memory sample.
func (h *History) ObserveMemory(m MemorySnapshot) {
	h.series[SeriesHeapUsed].record(int64(m.HeapUsed))
}

// ObserveCPU records a CPU sample. Unavailable process loads are skipped.
func (h *History) ObserveCPU(c CPUSnapshot) {
	if c.ProcessCPULoad < 0 {
		return
	}
	h.series[SeriesProcessCPU].record(int64(c.ProcessCPULoad * cpuScale))
}

// ObserveThreads records a goroutine count sample.
func (h *History) ObserveThreads(t ThreadSnapshot) {
	h.series[SeriesGoroutines].record(int64(t.CurrentCount))
}

func (s *series) record(value int64) {
	if value < 0 {
		value = 0
	}
	if highest := s.hist.HighestTrackableValue(); value > highest {
		value = highest
	}

	s.mu.Lock()
	_ = s.hist.RecordValue(value)
	s.published.Store(s.hist.Export())
	s.mu.Unlock()
}

// Summary describes the distribution of one series in its natural unit
// (bytes, load fraction, goroutines).
type Summary struct {
	Count int64   `json:"count"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Mean  float64 `json:"mean"`
	P50   float64 `json:"p50"`
	P90   float64 `json:"p90"`
	P99   float64 `json:"p99"`
}

// Summary returns the distribution of one series, or false if nothing was
// observed for it yet.
func (h *History) Summary(name Series) (Summary, bool) {
	s, ok := h.series[name]
	if !ok {
		return Summary{}, false
	}

	snap := s.published.Load()
	if snap == nil {
		return Summary{}, false
	}

	hist := hdrhistogram.Import(snap)
	if hist.TotalCount() == 0 {
		return Summary{}, false
	}

	return Summary{
		Count: hist.TotalCount(),
		Min:   float64(hist.Min()) / s.scale,
		Max:   float64(hist.Max()) / s.scale,
		Mean:  hist.Mean() / s.scale,
		P50:   float64(hist.ValueAtQuantile(50)) / s.scale,
		P90:   float64(hist.ValueAtQuantile(90)) / s.scale,
		P99:   float64(hist.ValueAtQuantile(99)) / s.scale,
	}, true
}

// Summaries returns every series that has at least one observation.
func (h *History) Summaries() map[Series]Summary {
	result := make(map[Series]Summary, len(h.series))
	for name := range h.series {
		if sum, ok := h.Summary(name); ok {
			result[name] = sum
		}
	}
	return result
}
