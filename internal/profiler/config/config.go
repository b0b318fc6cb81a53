// Package config holds the profiler's sampling configuration and the file
// format used to load it.
//
// Config is an immutable value built through Builder. FileConfig is the
// YAML/JSON document read by LoadConfig and watched by Watcher; it converts to
// a Config with ToProfilerConfig.
package config

import (
	"fmt"
	"math"
	"time"

	"github.com/wesleyorama2/perfcore/internal/profiler/metrics"
)

// ErrInvalidArgument is returned for a configuration the profiler cannot use.
var ErrInvalidArgument = metrics.ErrInvalidArgument

// DefaultSamplingInterval is used when no interval is configured.
const DefaultSamplingInterval = 100 * time.Millisecond

// MaxSamplingInterval is the longest accepted tick period.
const MaxSamplingInterval = 24 * time.Hour

// Config is the profiler configuration. The zero value is not valid; use
// Default or NewBuilder.
type Config struct {
	samplingInterval time.Duration
	captureMemory    bool
	captureCPU       bool
	captureThreads   bool
}

// Default returns a 100ms interval with every metric family enabled.
func Default() Config {
	return Config{
		samplingInterval: DefaultSamplingInterval,
		captureMemory:    true,
		captureCPU:       true,
		captureThreads:   true,
	}
}

// SamplingInterval returns the period between resource sampling ticks.
func (c Config) SamplingInterval() time.Duration { return c.samplingInterval }

// CaptureMemory reports whether memory snapshots are taken.
func (c Config) CaptureMemory() bool { return c.captureMemory }

// CaptureCPU reports whether CPU snapshots are taken.
func (c Config) CaptureCPU() bool { return c.captureCPU }

// CaptureThreads reports whether goroutine/thread snapshots are taken.
func (c Config) CaptureThreads() bool { return c.captureThreads }

// Validate returns ErrInvalidArgument if the interval is not positive or
// exceeds MaxSamplingInterval.
func (c Config) Validate() error {
	if c.samplingInterval <= 0 {
		return fmt.Errorf("%w: sampling interval must be positive, got %s", ErrInvalidArgument, c.samplingInterval)
	}
	if c.samplingInterval > MaxSamplingInterval {
		return fmt.Errorf("%w: sampling interval must be at most %s, got %s", ErrInvalidArgument, MaxSamplingInterval, c.samplingInterval)
	}
	return nil
}

// String renders the config for logs.
func (c Config) String() string {
	return fmt.Sprintf("interval=%s memory=%t cpu=%t threads=%t",
		c.samplingInterval, c.captureMemory, c.captureCPU, c.captureThreads)
}

// Builder assembles a Config. Setters can be chained; the first invalid value
// is reported by Build.
//
//	cfg, err := config.NewBuilder().
//		SamplingInterval(250 * time.Millisecond).
//		CaptureThreads(false).
//		Build()
type Builder struct {
	cfg Config
}

// NewBuilder starts from Default.
func NewBuilder() *Builder {
	return &Builder{cfg: Default()}
}

// From starts a builder from an existing config.
func From(c Config) *Builder {
	return &Builder{cfg: c}
}

// SamplingInterval sets the tick period.
func (b *Builder) SamplingInterval(d time.Duration) *Builder {
	b.cfg.samplingInterval = d
	return b
}

// SamplingIntervalMillis sets the tick period in milliseconds.
func (b *Builder) SamplingIntervalMillis(ms int64) *Builder {
	b.cfg.samplingInterval = millis(ms)
	return b
}

// CaptureMemory enables or disables memory sampling.
func (b *Builder) CaptureMemory(enabled bool) *Builder {
	b.cfg.captureMemory = enabled
	return b
}

// CaptureCPU enables or disables CPU sampling.
func (b *Builder) CaptureCPU(enabled bool) *Builder {
	b.cfg.captureCPU = enabled
	return b
}

// CaptureThreads enables or disables goroutine/thread sampling.
func (b *Builder) CaptureThreads(enabled bool) *Builder {
	b.cfg.captureThreads = enabled
	return b
}

// millis converts ms to a Duration, saturating instead of wrapping so an
// out-of-range value still fails validation.
func millis(ms int64) time.Duration {
	const limit = int64(math.MaxInt64 / int64(time.Millisecond))
	switch {
	case ms > limit:
		return time.Duration(math.MaxInt64)
	case ms < -limit:
		return time.Duration(math.MinInt64)
	default:
		return time.Duration(ms) * time.Millisecond
	}
}

// Build validates and returns the config.
func (b *Builder) Build() (Config, error) {
	if err := b.cfg.Validate(); err != nil {
		return Config{}, err
	}
	return b.cfg, nil
}
