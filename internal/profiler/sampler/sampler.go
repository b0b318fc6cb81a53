// Package sampler reads process-wide resource usage: memory, CPU load and
// goroutine/thread counts.
//
// The scheduler only depends on the Sampler interface, so the host
// implementation can be replaced by a FuncSampler in tests.
package sampler

import (
	"context"
	"errors"
	"time"
)

// ErrUnavailable reports that the host could not supply a reading for a
// metric family. Callers keep the previous snapshot and carry on.
var ErrUnavailable = errors.New("resource metric unavailable")

// LoadUnavailable marks a CPU load reading the platform does not expose.
const LoadUnavailable = -1.0

// Sampler captures one snapshot per metric family.
type Sampler interface {
	SampleMemory(ctx context.Context) (MemorySnapshot, error)
	SampleCPU(ctx context.Context) (CPUSnapshot, error)
	SampleThreads(ctx context.Context) (ThreadSnapshot, error)
}

// MemorySnapshot describes Go heap and runtime-internal memory in bytes.
type MemorySnapshot struct {
	HeapUsed    uint64    `json:"heapUsed"`
	HeapMax     uint64    `json:"heapMax"`
	NonHeapUsed uint64    `json:"nonHeapUsed"`
	NonHeapMax  uint64    `json:"nonHeapMax"`
	SampledAt   time.Time `json:"sampledAt"`
}

// HeapUtilization returns HeapUsed/HeapMax, or 0 when HeapMax is unknown.
func (m MemorySnapshot) HeapUtilization() float64 {
	if m.HeapMax == 0 {
		return 0
	}
	return float64(m.HeapUsed) / float64(m.HeapMax)
}

// CPUSnapshot describes system and process CPU load. Either load may be
// LoadUnavailable.
type CPUSnapshot struct {
	SystemLoadAverage   float64   `json:"systemLoadAverage"`
	ProcessCPULoad      float64   `json:"processCpuLoad"`
	AvailableProcessors int       `json:"availableProcessors"`
	SampledAt           time.Time `json:"sampledAt"`
}

// NormalizedLoad returns the system load average per available processor.
func (c CPUSnapshot) NormalizedLoad() float64 {
	if c.AvailableProcessors <= 0 {
		return 0
	}
	return c.SystemLoadAverage / float64(c.AvailableProcessors)
}

// ThreadSnapshot describes goroutine and OS thread counts.
//
// CurrentCount, PeakCount and DaemonCount count goroutines; DaemonCount
// excludes the main goroutine, the only one that keeps the process alive.
// TotalStartedCount is the number of OS threads the runtime has created,
// since the runtime does not expose a goroutine creation total. OSThreads
// is zero when the platform does not report it.
type ThreadSnapshot struct {
	CurrentCount      int       `json:"currentCount"`
	PeakCount         int       `json:"peakCount"`
	DaemonCount       int       `json:"daemonCount"`
	TotalStartedCount uint64    `json:"totalStartedCount"`
	OSThreads         int       `json:"osThreads"`
	SampledAt         time.Time `json:"sampledAt"`
}

// FuncSampler adapts plain functions to the Sampler interface. A nil
// function reports ErrUnavailable for its family.
type FuncSampler struct {
	Memory  func(ctx context.Context) (MemorySnapshot, error)
	CPU     func(ctx context.Context) (CPUSnapshot, error)
	Threads func(ctx context.Context) (ThreadSnapshot, error)
}

// SampleMemory implements Sampler.
func (f FuncSampler) SampleMemory(ctx context.Context) (MemorySnapshot, error) {
	if f.Memory == nil {
		return MemorySnapshot{}, ErrUnavailable
	}
	return f.Memory(ctx)
}

// SampleCPU implements Sampler.
func (f FuncSampler) SampleCPU(ctx context.Context) (CPUSnapshot, error) {
	if f.CPU == nil {
		return CPUSnapshot{}, ErrUnavailable
	}
	return f.CPU(ctx)
}

// SampleThreads implements Sampler.
func (f FuncSampler) SampleThreads(ctx context.Context) (ThreadSnapshot, error) {
	if f.Threads == nil {
		return ThreadSnapshot{}, ErrUnavailable
	}
	return f.Threads(ctx)
}
