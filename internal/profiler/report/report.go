// Package report turns profiler state into a JSON performance report and a
// console summary.
package report

import (
	"os"
	"runtime"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/cpuid/v2"
	"github.com/pbnjay/memory"

	"github.com/wesleyorama2/perfcore/internal/profiler/config"
	"github.com/wesleyorama2/perfcore/internal/profiler/metrics"
	"github.com/wesleyorama2/perfcore/internal/profiler/sampler"
	"github.com/wesleyorama2/perfcore/internal/profiler/scheduler"
)

// Source is the read side of a profiler.
type Source interface {
	ID() uuid.UUID
	StartedAt() time.Time
	Config() config.Config
	SnapshotAllMethods() map[string]metrics.Snapshot
	LatestMemory() (sampler.MemorySnapshot, bool)
	LatestCPU() (sampler.CPUSnapshot, bool)
	LatestThreads() (sampler.ThreadSnapshot, bool)
	History() *sampler.History
	SchedulerStats() scheduler.Stats
}

// Report is a point-in-time view of everything the profiler knows.
// Resource snapshots are nil when their family was never sampled.
type Report struct {
	ID            string                             `json:"id"`
	ProfilerID    string                             `json:"profilerId"`
	Timestamp     time.Time                          `json:"timestamp"`
	UptimeSeconds float64                            `json:"uptimeSeconds"`
	Host          HostInfo                           `json:"host"`
	Config        ConfigInfo                         `json:"config"`
	Methods       map[string]metrics.Snapshot        `json:"methods"`
	Memory        *sampler.MemorySnapshot            `json:"memory"`
	CPU           *sampler.CPUSnapshot               `json:"cpu"`
	Threads       *sampler.ThreadSnapshot            `json:"threads"`
	History       map[sampler.Series]sampler.Summary `json:"history"`
	Scheduler     scheduler.Stats                    `json:"scheduler"`
}

// HostInfo describes the machine the report was taken on.
type HostInfo struct {
	Hostname      string `json:"hostname"`
	OS            string `json:"os"`
	Arch          string `json:"arch"`
	GoVersion     string `json:"goVersion"`
	CPUBrand      string `json:"cpuBrand"`
	PhysicalCores int    `json:"physicalCores"`
	LogicalCPUs   int    `json:"logicalCpus"`
	TotalMemory   uint64 `json:"totalMemory"`
}

// ConfigInfo is the sampling config in effect.
type ConfigInfo struct {
	SamplingIntervalMillis int64 `json:"samplingIntervalMillis"`
	CaptureMemoryMetrics   bool  `json:"captureMemoryMetrics"`
	CaptureCPUMetrics      bool  `json:"captureCpuMetrics"`
	CaptureThreadMetrics   bool  `json:"captureThreadMetrics"`
}

// Build assembles a report from src.
func Build(src Source) *Report {
	now := time.Now()
	cfg := src.Config()

	r := &Report{
		ID:            uuid.NewString(),
		ProfilerID:    src.ID().String(),
		Timestamp:     now,
		UptimeSeconds: now.Sub(src.StartedAt()).Seconds(),
		Host:          Host(),
		Config: ConfigInfo{
			SamplingIntervalMillis: cfg.SamplingInterval().Milliseconds(),
			CaptureMemoryMetrics:   cfg.CaptureMemory(),
			CaptureCPUMetrics:      cfg.CaptureCPU(),
			CaptureThreadMetrics:   cfg.CaptureThreads(),
		},
		Methods:   src.SnapshotAllMethods(),
		History:   src.History().Summaries(),
		Scheduler: src.SchedulerStats(),
	}

	if m, ok := src.LatestMemory(); ok {
		r.Memory = &m
	}
	if c, ok := src.LatestCPU(); ok {
		r.CPU = &c
	}
	if t, ok := src.LatestThreads(); ok {
		r.Threads = &t
	}

	return r
}

// SortedMethods returns the method snapshots ordered by total time spent,
// largest first; ties are broken by name.
func (r *Report) SortedMethods() []metrics.Snapshot {
	out := make([]metrics.Snapshot, 0, len(r.Methods))
	for _, s := range r.Methods {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Total != out[j].Total {
			return out[i].Total > out[j].Total
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// Host collects information about the current machine.
func Host() HostInfo {
	hostname, _ := os.Hostname()
	return HostInfo{
		Hostname:      hostname,
		OS:            runtime.GOOS,
		Arch:          runtime.GOARCH,
		GoVersion:     runtime.Version(),
		CPUBrand:      cpuid.CPU.BrandName,
		PhysicalCores: cpuid.CPU.PhysicalCores,
		LogicalCPUs:   runtime.NumCPU(),
		TotalMemory:   memory.TotalMemory(),
	}
}
