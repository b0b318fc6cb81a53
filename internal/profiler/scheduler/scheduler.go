// Package scheduler runs a Sampler on a fixed interval in the background and
// publishes the latest snapshot of each metric family.
//
// A Scheduler moves between two states:
//
//	Stopped --Start--> Running --Stop--> Stopped
//	                   Running --Reconfigure--> Running (new cadence)
//
// At most one tick is in flight at a time. A tick that comes due while the
// previous one is still sampling is skipped, not queued.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/wesleyorama2/perfcore/internal/profiler/config"
	"github.com/wesleyorama2/perfcore/internal/profiler/sampler"
)

var (
	// ErrShutdownTimeout is returned by Stop when an in-flight tick did not
	// finish in time and had to be cancelled.
	ErrShutdownTimeout = errors.New("scheduler shutdown timed out")

	// ErrAlreadyRunning is returned by Start on a running scheduler.
	ErrAlreadyRunning = errors.New("scheduler already running")

	// ErrNotRunning is returned by Reconfigure on a stopped scheduler.
	ErrNotRunning = errors.New("scheduler not running")
)

// State is the lifecycle state of a Scheduler.
type State int32

const (
	StateStopped State = iota
	StateRunning
)

func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateRunning:
		return "running"
	default:
		return "unknown"
	}
}

// Stats counts scheduler activity since creation.
type Stats struct {
	// Ticks is the number of ticks that sampled
	Ticks uint64 `json:"ticks"`
	// Skipped is the number of ticks dropped because one was in flight
	Skipped uint64 `json:"skipped"`
	// Failures is the number of family samples that returned an error
	Failures uint64 `json:"failures"`
}

// Scheduler samples resources in the background.
type Scheduler struct {
	sampler sampler.Sampler
	history *sampler.History
	logger  *zap.Logger

	memory  atomic.Pointer[sampler.MemorySnapshot]
	cpu     atomic.Pointer[sampler.CPUSnapshot]
	threads atomic.Pointer[sampler.ThreadSnapshot]

	ticks    atomic.Uint64
	skipped  atomic.Uint64
	failures atomic.Uint64

	// mu guards lifecycle transitions only; it is never held while sampling.
	mu     sync.Mutex
	state  atomic.Int32
	cfg    config.Config
	period *period
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithHistory records every published snapshot into h.
func WithHistory(h *sampler.History) Option {
	return func(s *Scheduler) {
		if h != nil {
			s.history = h
		}
	}
}

// New creates a stopped scheduler for smp.
func New(smp sampler.Sampler, opts ...Option) *Scheduler {
	s := &Scheduler{
		sampler: smp,
		history: sampler.NewHistory(),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.Named("scheduler")
	return s
}

// period is one Running interval, from Start to Stop. Reconfigure replaces
// the loop but keeps the period, so an in-flight tick stays accounted for.
type period struct {
	// ctx is the parent of every tick context; cancelling it interrupts
	// samplers that honor their context.
	ctx    context.Context
	cancel context.CancelFunc

	ticks    sync.WaitGroup
	inFlight atomic.Bool

	// publishMu lets a forced stop wait out any publish already past its
	// cancellation check.
	publishMu sync.RWMutex

	loopCancel context.CancelFunc
	loopDone   chan struct{}
}

// Start begins sampling at cfg's interval. The first tick runs immediately.
func (s *Scheduler) Start(cfg config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.State() == StateRunning {
		return ErrAlreadyRunning
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &period{ctx: ctx, cancel: cancel}
	s.cfg = cfg
	s.period = p
	s.startLoop(p, cfg)
	s.state.Store(int32(StateRunning))

	s.logger.Info("sampling started", zap.Stringer("config", cfg))
	return nil
}

// Reconfigure switches a running scheduler to cfg. The new cadence starts
// with an immediate tick; a tick already in flight finishes with the config
// it started with.
func (s *Scheduler) Reconfigure(cfg config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.State() != StateRunning {
		return ErrNotRunning
	}

	s.stopLoop(s.period)
	s.cfg = cfg
	s.startLoop(s.period, cfg)

	s.logger.Info("sampling reconfigured", zap.Stringer("config", cfg))
	return nil
}

// Stop halts sampling and waits up to timeout for an in-flight tick. If the
// tick does not finish in time its context is cancelled and
// ErrShutdownTimeout is returned. With no tick in flight Stop returns nil
// for any timeout, including zero. Stopping a stopped scheduler is a no-op.
//
// Once Stop returns no tick of this Running period publishes again.
func (s *Scheduler) Stop(timeout time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.State() == StateStopped {
		return nil
	}

	p := s.period
	s.period = nil
	s.state.Store(int32(StateStopped))
	s.stopLoop(p)

	// The loop has exited, so no tick can start. With none in flight
	// there is nothing to wait for and the timeout does not apply.
	if !p.inFlight.Load() {
		p.ticks.Wait()
		p.cancel()
		s.logger.Info("sampling stopped")
		return nil
	}

	done := make(chan struct{})
	go func() {
		p.ticks.Wait()
		close(done)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-done:
		p.cancel()
		s.logger.Info("sampling stopped")
		return nil
	case <-timer.C:
		p.cancel()
		p.publishMu.Lock()
		p.publishMu.Unlock()
		s.logger.Warn("sampling stopped with tick still in flight", zap.Duration("timeout", timeout))
		return fmt.Errorf("%w after %s", ErrShutdownTimeout, timeout)
	}
}

// State returns the current lifecycle state.
func (s *Scheduler) State() State {
	return State(s.state.Load())
}

// Config returns the config of the current or last Running period.
func (s *Scheduler) Config() config.Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

// Stats returns activity counters.
func (s *Scheduler) Stats() Stats {
	return Stats{
		Ticks:    s.ticks.Load(),
		Skipped:  s.skipped.Load(),
		Failures: s.failures.Load(),
	}
}

// LatestMemory returns the most recent memory snapshot, if any.
func (s *Scheduler) LatestMemory() (sampler.MemorySnapshot, bool) {
	return load(&s.memory)
}

// LatestCPU returns the most recent CPU snapshot, if any.
func (s *Scheduler) LatestCPU() (sampler.CPUSnapshot, bool) {
	return load(&s.cpu)
}

// LatestThreads returns the most recent goroutine/thread snapshot, if any.
func (s *Scheduler) LatestThreads() (sampler.ThreadSnapshot, bool) {
	return load(&s.threads)
}

// History returns the distribution of published samples.
func (s *Scheduler) History() *sampler.History {
	return s.history
}

func load[T any](p *atomic.Pointer[T]) (T, bool) {
	v := p.Load()
	if v == nil {
		var zero T
		return zero, false
	}
	return *v, true
}

// startLoop and stopLoop are called with s.mu held.
func (s *Scheduler) startLoop(p *period, cfg config.Config) {
	ctx, cancel := context.WithCancel(p.ctx)
	p.loopCancel = cancel
	p.loopDone = make(chan struct{})
	go s.loop(ctx, p, cfg, p.loopDone)
}

func (s *Scheduler) stopLoop(p *period) {
	p.loopCancel()
	<-p.loopDone
}

func (s *Scheduler) loop(ctx context.Context, p *period, cfg config.Config, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(cfg.SamplingInterval())
	defer ticker.Stop()

	for {
		s.fire(p, cfg)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// fire launches a tick unless one is in flight.
func (s *Scheduler) fire(p *period, cfg config.Config) {
	if !p.inFlight.CompareAndSwap(false, true) {
		s.skipped.Add(1)
		s.logger.Debug("tick skipped, previous tick still in flight")
		return
	}

	s.ticks.Add(1)
	p.ticks.Add(1)
	go func() {
		defer p.ticks.Done()
		defer p.inFlight.Store(false)
		s.tick(p, cfg)
	}()
}

// tick samples every enabled family concurrently. Families fail
// independently; a failed family keeps its previous snapshot.
func (s *Scheduler) tick(p *period, cfg config.Config) {
	ctx := p.ctx
	var wg sync.WaitGroup

	if cfg.CaptureMemory() {
		wg.Add(1)
		go func() {
			defer wg.Done()
			snap, err := s.sampler.SampleMemory(ctx)
			if s.check("memory", err) {
				s.publish(p, func() {
					s.memory.Store(&snap)
					s.history.ObserveMemory(snap)
				})
			}
		}()
	}

	if cfg.CaptureCPU() {
		wg.Add(1)
		go func() {
			defer wg.Done()
			snap, err := s.sampler.SampleCPU(ctx)
			if s.check("cpu", err) {
				s.publish(p, func() {
					s.cpu.Store(&snap)
					s.history.ObserveCPU(snap)
				})
			}
		}()
	}

	if cfg.CaptureThreads() {
		wg.Add(1)
		go func() {
			defer wg.Done()
			snap, err := s.sampler.SampleThreads(ctx)
			if s.check("threads", err) {
				s.publish(p, func() {
					s.threads.Store(&snap)
					s.history.ObserveThreads(snap)
				})
			}
		}()
	}

	wg.Wait()
}

// check logs and counts a sampling error, returning true if the sample can
// be published.
func (s *Scheduler) check(family string, err error) bool {
	if err == nil {
		return true
	}

	s.failures.Add(1)
	switch {
	case errors.Is(err, sampler.ErrUnavailable):
		s.logger.Debug("metric family unavailable", zap.String("family", family), zap.Error(err))
	case errors.Is(err, context.Canceled):
		s.logger.Debug("sample cancelled", zap.String("family", family))
	default:
		s.logger.Warn("sampling failed", zap.String("family", family), zap.Error(err))
	}
	return false
}

// publish runs store unless the period has been cancelled.
func (s *Scheduler) publish(p *period, store func()) {
	p.publishMu.RLock()
	defer p.publishMu.RUnlock()

	if p.ctx.Err() != nil {
		return
	}
	store()
}
