package sampler

import (
	"context"
	"fmt"
	"math"
	"os"
	"runtime"
	"runtime/debug"
	"runtime/pprof"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pbnjay/memory"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/process"
)

// RuntimeSampler reads resource usage of the current process from the Go
// runtime and the host OS.
type RuntimeSampler struct {
	// gopsutil keeps the previous CPU times inside the Process handle, so
	// percent readings must not interleave.
	procMu sync.Mutex
	proc   *process.Process

	peakGoroutines atomic.Int64
	threadCreate   *pprof.Profile
	totalMemory    uint64
	now            func() time.Time
}

// NewRuntimeSampler creates a sampler for the current process.
//
// A missing process handle is not an error: process CPU load and OS thread
// counts are then reported as unavailable.
func NewRuntimeSampler() *RuntimeSampler {
	s := &RuntimeSampler{
		threadCreate: pprof.Lookup("threadcreate"),
		totalMemory:  memory.TotalMemory(),
		now:          time.Now,
	}

	if proc, err := process.NewProcess(int32(os.Getpid())); err == nil {
		s.proc = proc
		// Prime the CPU counters; the first percent reading is always zero.
		_, _ = proc.Percent(0)
	}

	return s
}

// SampleMemory implements Sampler.
func (s *RuntimeSampler) SampleMemory(ctx context.Context) (MemorySnapshot, error) {
	if err := ctx.Err(); err != nil {
		return MemorySnapshot{}, err
	}

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	nonHeapUsed := ms.StackInuse + ms.MSpanInuse + ms.MCacheInuse +
		ms.BuckHashSys + ms.GCSys + ms.OtherSys

	return MemorySnapshot{
		HeapUsed:    ms.HeapAlloc,
		HeapMax:     s.heapMax(ms.HeapSys),
		NonHeapUsed: nonHeapUsed,
		NonHeapMax:  ms.Sys - ms.HeapSys,
		SampledAt:   s.now(),
	}, nil
}

// heapMax prefers the configured soft memory limit, then physical memory,
// then whatever the heap has reserved so far.
func (s *RuntimeSampler) heapMax(heapSys uint64) uint64 {
	if limit := debug.SetMemoryLimit(-1); limit > 0 && limit != math.MaxInt64 {
		return uint64(limit)
	}
	if s.totalMemory > 0 {
		return s.totalMemory
	}
	return heapSys
}

// SampleCPU implements Sampler.
func (s *RuntimeSampler) SampleCPU(ctx context.Context) (CPUSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return CPUSnapshot{}, err
	}

	numCPU := runtime.NumCPU()
	snap := CPUSnapshot{
		SystemLoadAverage:   LoadUnavailable,
		ProcessCPULoad:      LoadUnavailable,
		AvailableProcessors: numCPU,
	}

	// Load averages do not exist on Windows; gopsutil returns an error there.
	if avg, err := load.AvgWithContext(ctx); err == nil {
		snap.SystemLoadAverage = avg.Load1
	}

	if s.proc != nil {
		s.procMu.Lock()
		percent, err := s.proc.PercentWithContext(ctx, 0)
		s.procMu.Unlock()
		if err == nil {
			// gopsutil reports 100% per fully used core.
			snap.ProcessCPULoad = clamp01(percent / (100 * float64(numCPU)))
		}
	}

	if snap.SystemLoadAverage == LoadUnavailable && snap.ProcessCPULoad == LoadUnavailable {
		return CPUSnapshot{}, fmt.Errorf("%w: neither system nor process CPU load readable", ErrUnavailable)
	}

	snap.SampledAt = s.now()
	return snap, nil
}

// SampleThreads implements Sampler.
func (s *RuntimeSampler) SampleThreads(ctx context.Context) (ThreadSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return ThreadSnapshot{}, err
	}

	current := runtime.NumGoroutine()
	peak := raisePeak(&s.peakGoroutines, int64(current))

	snap := ThreadSnapshot{
		CurrentCount: current,
		PeakCount:    int(peak),
		DaemonCount:  current - 1,
		SampledAt:    s.now(),
	}
	if s.threadCreate != nil {
		snap.TotalStartedCount = uint64(s.threadCreate.Count())
	}
	if s.proc != nil {
		if n, err := s.proc.NumThreadsWithContext(ctx); err == nil {
			snap.OSThreads = int(n)
		}
	}

	return snap, nil
}

// raisePeak lifts the high-water mark to value and returns the result.
func raisePeak(peak *atomic.Int64, value int64) int64 {
	for {
		current := peak.Load()
		if value <= current {
			return current
		}
		if peak.CompareAndSwap(current, value) {
			return value
		}
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
