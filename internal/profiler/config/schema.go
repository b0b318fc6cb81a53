package config

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// FileConfig is the on-disk configuration document.
//
// Example YAML:
//
//	profiler:
//	  samplingIntervalMillis: 100
//	  captureMemoryMetrics: true
//	  captureCpuMetrics: true
//	  captureThreadMetrics: false
//	logging:
//	  level: info
//	  encoding: console
//	server:
//	  listen: ":9464"
//	report:
//	  outputDir: reports
//	  gzip: true
type FileConfig struct {
	// Profiler controls resource sampling
	Profiler ProfilerSection `json:"profiler" yaml:"profiler"`

	// Logging configures the zap logger
	Logging LoggingSection `json:"logging,omitempty" yaml:"logging,omitempty"`

	// Server configures the HTTP reporting surface
	Server ServerSection `json:"server,omitempty" yaml:"server,omitempty"`

	// Report configures the JSON report writer
	Report ReportSection `json:"report,omitempty" yaml:"report,omitempty"`
}

// ProfilerSection mirrors Config. Capture flags are pointers so an omitted
// flag can default to true.
type ProfilerSection struct {
	// SamplingIntervalMillis is the tick period in milliseconds
	SamplingIntervalMillis int64 `json:"samplingIntervalMillis,omitempty" yaml:"samplingIntervalMillis,omitempty"`

	// SamplingInterval is an alternative to SamplingIntervalMillis ("250ms", "1s")
	SamplingInterval Duration `json:"samplingInterval,omitempty" yaml:"samplingInterval,omitempty"`

	CaptureMemoryMetrics *bool `json:"captureMemoryMetrics,omitempty" yaml:"captureMemoryMetrics,omitempty"`
	CaptureCPUMetrics    *bool `json:"captureCpuMetrics,omitempty" yaml:"captureCpuMetrics,omitempty"`
	CaptureThreadMetrics *bool `json:"captureThreadMetrics,omitempty" yaml:"captureThreadMetrics,omitempty"`
}

// Interval resolves the configured sampling interval. SamplingInterval wins
// over SamplingIntervalMillis when both are set.
func (p ProfilerSection) Interval() time.Duration {
	if p.SamplingInterval != 0 {
		return time.Duration(p.SamplingInterval)
	}
	return millis(p.SamplingIntervalMillis)
}

// LoggingSection configures logging.
type LoggingSection struct {
	// Level is one of debug, info, warn, error
	Level string `json:"level,omitempty" yaml:"level,omitempty"`

	// Encoding is console or json
	Encoding string `json:"encoding,omitempty" yaml:"encoding,omitempty"`

	// Development enables zap's development mode (stack traces on warn)
	Development bool `json:"development,omitempty" yaml:"development,omitempty"`

	// File writes logs to a rotated file instead of stderr
	File string `json:"file,omitempty" yaml:"file,omitempty"`

	// MaxSizeMB is the size at which File is rotated
	MaxSizeMB int `json:"maxSizeMB,omitempty" yaml:"maxSizeMB,omitempty"`

	// MaxBackups is how many rotated files are kept
	MaxBackups int `json:"maxBackups,omitempty" yaml:"maxBackups,omitempty"`
}

// ServerSection configures the HTTP server started by `perfcore serve`.
type ServerSection struct {
	// Listen is the TCP address to bind
	Listen string `json:"listen,omitempty" yaml:"listen,omitempty"`

	// ShutdownTimeout bounds graceful server shutdown
	ShutdownTimeout Duration `json:"shutdownTimeout,omitempty" yaml:"shutdownTimeout,omitempty"`
}

// ReportSection configures report output.
type ReportSection struct {
	// OutputDir is where report files are written
	OutputDir string `json:"outputDir,omitempty" yaml:"outputDir,omitempty"`

	// Gzip compresses report files
	Gzip bool `json:"gzip,omitempty" yaml:"gzip,omitempty"`
}

// Defaults for FileConfig sections.
const (
	DefaultLogLevel        = "info"
	DefaultLogEncoding     = "console"
	DefaultListenAddr      = ":9464"
	DefaultOutputDir       = "."
	DefaultShutdownTimeout = 5 * time.Second
)

// ApplyDefaults fills in every unset value.
func (c *FileConfig) ApplyDefaults() {
	if c.Profiler.Interval() == 0 {
		c.Profiler.SamplingIntervalMillis = DefaultSamplingInterval.Milliseconds()
	}
	c.Profiler.CaptureMemoryMetrics = defaultTrue(c.Profiler.CaptureMemoryMetrics)
	c.Profiler.CaptureCPUMetrics = defaultTrue(c.Profiler.CaptureCPUMetrics)
	c.Profiler.CaptureThreadMetrics = defaultTrue(c.Profiler.CaptureThreadMetrics)

	if c.Logging.Level == "" {
		c.Logging.Level = DefaultLogLevel
	}
	if c.Logging.Encoding == "" {
		c.Logging.Encoding = DefaultLogEncoding
	}

	if c.Server.Listen == "" {
		c.Server.Listen = DefaultListenAddr
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = Duration(DefaultShutdownTimeout)
	}

	if c.Report.OutputDir == "" {
		c.Report.OutputDir = DefaultOutputDir
	}
}

func defaultTrue(b *bool) *bool {
	if b != nil {
		return b
	}
	v := true
	return &v
}

// ToProfilerConfig converts the profiler section into an immutable Config.
// Unset capture flags count as enabled.
func (c *FileConfig) ToProfilerConfig() (Config, error) {
	interval := c.Profiler.Interval()
	if interval == 0 {
		interval = DefaultSamplingInterval
	}

	return NewBuilder().
		SamplingInterval(interval).
		CaptureMemory(boolOr(c.Profiler.CaptureMemoryMetrics, true)).
		CaptureCPU(boolOr(c.Profiler.CaptureCPUMetrics, true)).
		CaptureThreads(boolOr(c.Profiler.CaptureThreadMetrics, true)).
		Build()
}

func boolOr(b *bool, fallback bool) bool {
	if b == nil {
		return fallback
	}
	return *b
}

// Duration is a time.Duration written as a string ("250ms") in YAML and
// JSON. A bare integer is read as milliseconds.
type Duration time.Duration

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Duration) UnmarshalJSON(b []byte) error {
	var raw interface{}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}

	switch v := raw.(type) {
	case nil:
		*d = 0
	case float64:
		*d = Duration(time.Duration(v) * time.Millisecond)
	case string:
		return d.parse(v)
	default:
		return fmt.Errorf("invalid duration: %s", string(b))
	}
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: duration must be a scalar", node.Line)
	}
	if node.ShortTag() == "!!int" {
		ms, err := strconv.ParseInt(node.Value, 10, 64)
		if err != nil {
			return fmt.Errorf("line %d: %w", node.Line, err)
		}
		*d = Duration(time.Duration(ms) * time.Millisecond)
		return nil
	}
	return d.parse(node.Value)
}

func (d *Duration) parse(s string) error {
	if s == "" {
		*d = 0
		return nil
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

// String returns the duration as a string.
func (d Duration) String() string {
	return time.Duration(d).String()
}
