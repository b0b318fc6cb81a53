package config

import (
	"fmt"
	"net"
	"strings"
	"time"
)

// ValidationError is a single invalid field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation error: %s", e.Message)
}

// ValidationErrors collects every invalid field of a FileConfig.
type ValidationErrors struct {
	Errors []*ValidationError
}

func (e *ValidationErrors) Error() string {
	switch len(e.Errors) {
	case 0:
		return "no validation errors"
	case 1:
		return e.Errors[0].Error()
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d validation errors:\n", len(e.Errors))
	for i, err := range e.Errors {
		fmt.Fprintf(&sb, "  %d. %s\n", i+1, err.Error())
	}
	return sb.String()
}

// Unwrap lets errors.Is match ErrInvalidArgument.
func (e *ValidationErrors) Unwrap() error {
	return ErrInvalidArgument
}

// Add records an invalid field.
func (e *ValidationErrors) Add(field, message string) {
	e.Errors = append(e.Errors, &ValidationError{Field: field, Message: message})
}

// HasErrors reports whether any field was invalid.
func (e *ValidationErrors) HasErrors() bool {
	return len(e.Errors) > 0
}

var (
	validLevels    = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	validEncodings = map[string]bool{"console": true, "json": true}
)

// Validate checks the document. Call ApplyDefaults first; empty values are
// reported as errors here.
//
// Returns nil if valid, or a *ValidationErrors listing every problem.
func (c *FileConfig) Validate() error {
	errs := &ValidationErrors{}

	validateProfiler(&c.Profiler, errs)
	validateLogging(&c.Logging, errs)
	validateServer(&c.Server, errs)

	if c.Report.OutputDir == "" {
		errs.Add("report.outputDir", "output directory is required")
	}

	if errs.HasErrors() {
		return errs
	}
	return nil
}

func validateProfiler(p *ProfilerSection, errs *ValidationErrors) {
	if p.SamplingIntervalMillis < 0 {
		errs.Add("profiler.samplingIntervalMillis", "must be greater than 0")
	}
	if p.SamplingInterval < 0 {
		errs.Add("profiler.samplingInterval", "must be greater than 0")
	}
	if p.SamplingIntervalMillis > MaxSamplingInterval.Milliseconds() {
		errs.Add("profiler.samplingIntervalMillis", fmt.Sprintf("must be at most %d", MaxSamplingInterval.Milliseconds()))
	}
	if p.SamplingInterval > Duration(MaxSamplingInterval) {
		errs.Add("profiler.samplingInterval", fmt.Sprintf("must be at most %s", MaxSamplingInterval))
	}
	if p.SamplingIntervalMillis > 0 && p.SamplingInterval > 0 &&
		millis(p.SamplingIntervalMillis) != time.Duration(p.SamplingInterval) {
		errs.Add("profiler.samplingInterval", "conflicts with samplingIntervalMillis; set only one")
	}
	if p.Interval() == 0 {
		errs.Add("profiler.samplingIntervalMillis", "sampling interval is required")
	}
}

func validateLogging(l *LoggingSection, errs *ValidationErrors) {
	if !validLevels[strings.ToLower(l.Level)] {
		errs.Add("logging.level", fmt.Sprintf("unknown level: %q", l.Level))
	}
	if !validEncodings[strings.ToLower(l.Encoding)] {
		errs.Add("logging.encoding", fmt.Sprintf("unknown encoding: %q (want console or json)", l.Encoding))
	}
	if l.MaxSizeMB < 0 {
		errs.Add("logging.maxSizeMB", "cannot be negative")
	}
	if l.MaxBackups < 0 {
		errs.Add("logging.maxBackups", "cannot be negative")
	}
}

func validateServer(s *ServerSection, errs *ValidationErrors) {
	if s.Listen == "" {
		errs.Add("server.listen", "listen address is required")
	} else if _, _, err := net.SplitHostPort(s.Listen); err != nil {
		errs.Add("server.listen", fmt.Sprintf("invalid address: %v", err))
	}
	if s.ShutdownTimeout < 0 {
		errs.Add("server.shutdownTimeout", "cannot be negative")
	}
}
