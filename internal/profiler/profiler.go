// Package profiler collects per-operation timing statistics and periodic
// resource snapshots for the running process.
//
// Callers record timings explicitly:
//
//	p := profiler.Default()
//	if err := p.Configure(config.Default()); err != nil {
//		return err
//	}
//	defer p.Shutdown(5 * time.Second)
//
//	t := p.Start("checkout.ProcessOrder")
//	processOrder()
//	t.Stop()
//
// Recording never blocks on the sampler and is safe from any number of
// goroutines. Reporting reads copies through SnapshotAllMethods and the
// Latest* accessors.
package profiler

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/wesleyorama2/perfcore/internal/profiler/config"
	"github.com/wesleyorama2/perfcore/internal/profiler/metrics"
	"github.com/wesleyorama2/perfcore/internal/profiler/sampler"
	"github.com/wesleyorama2/perfcore/internal/profiler/scheduler"
)

// DefaultShutdownTimeout bounds Shutdown when callers have no better value.
const DefaultShutdownTimeout = 60 * time.Second

// ErrShutdown is returned by Configure after Shutdown.
var ErrShutdown = errors.New("profiler shut down")

// Profiler owns one metrics registry and one sampling scheduler.
type Profiler struct {
	id        uuid.UUID
	startedAt time.Time
	logger    *zap.Logger

	registry  *metrics.Registry
	scheduler *scheduler.Scheduler

	mu       sync.Mutex
	cfg      config.Config
	shutdown bool
}

// Option configures a Profiler.
type Option func(*options)

type options struct {
	logger  *zap.Logger
	sampler sampler.Sampler
	cfg     config.Config
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithSampler replaces the host resource sampler.
func WithSampler(s sampler.Sampler) Option {
	return func(o *options) {
		if s != nil {
			o.sampler = s
		}
	}
}

// WithConfig sets the config reported by Config before the first Configure.
// It does not start sampling.
func WithConfig(c config.Config) Option {
	return func(o *options) {
		o.cfg = c
	}
}

// New creates a profiler. Sampling does not start until Configure.
func New(opts ...Option) *Profiler {
	o := options{
		logger: zap.NewNop(),
		cfg:    config.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.sampler == nil {
		o.sampler = sampler.NewRuntimeSampler()
	}

	p := &Profiler{
		id:        uuid.New(),
		startedAt: time.Now(),
		logger:    o.logger.Named("profiler"),
		registry:  metrics.NewRegistry(),
		cfg:       o.cfg,
	}
	p.scheduler = scheduler.New(o.sampler, scheduler.WithLogger(o.logger))

	p.logger.Info("profiler initialized", zap.String("id", p.id.String()))
	return p
}

var (
	defaultOnce sync.Once
	defaultProf *Profiler
)

// Default returns the process-wide profiler, creating it on first use. It is
// never replaced, even after Shutdown.
func Default() *Profiler {
	defaultOnce.Do(func() {
		defaultProf = New()
	})
	return defaultProf
}

// Configure applies cfg, starting sampling on the first call and changing
// cadence on later ones. The new config takes effect on the next tick.
func (p *Profiler) Configure(cfg config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.shutdown {
		return ErrShutdown
	}

	var err error
	if p.scheduler.State() == scheduler.StateRunning {
		err = p.scheduler.Reconfigure(cfg)
	} else {
		err = p.scheduler.Start(cfg)
	}
	if err != nil {
		return err
	}

	p.cfg = cfg
	return nil
}

// RecordExecution adds one timing event for name. It keeps working after
// Shutdown.
func (p *Profiler) RecordExecution(name string, durationNanos int64) error {
	return p.registry.Record(name, durationNanos)
}

// Track records the time elapsed since start. Intended for
//
//	defer p.Track("db.Query", time.Now())
func (p *Profiler) Track(name string, start time.Time) {
	if err := p.registry.Record(name, int64(time.Since(start))); err != nil {
		p.logger.Debug("dropped timing", zap.String("name", name), zap.Error(err))
	}
}

// Method returns the statistics for one operation.
func (p *Profiler) Method(name string) (metrics.Snapshot, bool) {
	return p.registry.Get(name)
}

// SnapshotAllMethods returns a copy of the statistics of every operation.
func (p *Profiler) SnapshotAllMethods() map[string]metrics.Snapshot {
	return p.registry.All()
}

// MethodNames returns the recorded operation names in sorted order.
func (p *Profiler) MethodNames() []string {
	return p.registry.Names()
}

// LatestMemory returns the most recent memory snapshot, if any.
func (p *Profiler) LatestMemory() (sampler.MemorySnapshot, bool) {
	return p.scheduler.LatestMemory()
}

// LatestCPU returns the most recent CPU snapshot, if any.
func (p *Profiler) LatestCPU() (sampler.CPUSnapshot, bool) {
	return p.scheduler.LatestCPU()
}

// LatestThreads returns the most recent goroutine/thread snapshot, if any.
func (p *Profiler) LatestThreads() (sampler.ThreadSnapshot, bool) {
	return p.scheduler.LatestThreads()
}

// History returns the distribution of sampled resource values.
func (p *Profiler) History() *sampler.History {
	return p.scheduler.History()
}

// SchedulerStats returns sampling activity counters.
func (p *Profiler) SchedulerStats() scheduler.Stats {
	return p.scheduler.Stats()
}

// Sampling reports whether the scheduler is running.
func (p *Profiler) Sampling() bool {
	return p.scheduler.State() == scheduler.StateRunning
}

// Config returns the active config.
func (p *Profiler) Config() config.Config {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cfg
}

// ID identifies this profiler instance in reports.
func (p *Profiler) ID() uuid.UUID { return p.id }

// StartedAt is when the profiler was created.
func (p *Profiler) StartedAt() time.Time { return p.startedAt }

// Shutdown stops sampling, waiting up to timeout for an in-flight tick. It
// is idempotent. Timings recorded afterwards are still accepted.
//
// The profiler lock is released before waiting, so Config and the read
// methods stay responsive while a slow tick drains.
func (p *Profiler) Shutdown(timeout time.Duration) error {
	p.mu.Lock()
	if p.shutdown {
		p.mu.Unlock()
		return nil
	}
	p.shutdown = true
	p.mu.Unlock()

	err := p.scheduler.Stop(timeout)
	if err != nil {
		p.logger.Warn("shutdown did not complete cleanly", zap.Error(err))
		return err
	}
	p.logger.Info("profiler shut down", zap.Int("methods", p.registry.Len()))
	return nil
}
