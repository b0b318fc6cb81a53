package report

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/mattn/go-isatty"

	"github.com/wesleyorama2/perfcore/internal/profiler/sampler"
)

// ColorScheme defines the colors used by the console summary.
type ColorScheme struct {
	Title     *color.Color
	Section   *color.Color
	Key       *color.Color
	Value     *color.Color
	Good      *color.Color
	Warn      *color.Color
	Bad       *color.Color
	Muted     *color.Color
	Highlight *color.Color
}

// DefaultColorScheme returns the default color scheme.
func DefaultColorScheme() *ColorScheme {
	return &ColorScheme{
		Title:     color.New(color.FgCyan, color.Bold),
		Section:   color.New(color.Bold),
		Key:       color.New(color.FgYellow),
		Value:     color.New(color.FgCyan),
		Good:      color.New(color.FgGreen),
		Warn:      color.New(color.FgYellow, color.Bold),
		Bad:       color.New(color.FgRed, color.Bold),
		Muted:     color.New(color.FgHiBlack),
		Highlight: color.New(color.FgMagenta, color.Bold),
	}
}

// NoColorScheme returns a color scheme with all colors disabled.
func NoColorScheme() *ColorScheme {
	s := DefaultColorScheme()
	for _, c := range []*color.Color{s.Title, s.Section, s.Key, s.Value, s.Good, s.Warn, s.Bad, s.Muted, s.Highlight} {
		c.DisableColor()
	}
	return s
}

// ColorEnabled reports whether w is a terminal that should get colors.
// NO_COLOR and FORCE_COLOR override detection.
func ColorEnabled(w io.Writer) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	if os.Getenv("FORCE_COLOR") != "" {
		return true
	}
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	if !isatty.IsTerminal(f.Fd()) && !isatty.IsCygwinTerminal(f.Fd()) {
		return false
	}
	term := os.Getenv("TERM")
	return term != "" && term != "dumb"
}

// ConsoleOption configures Render.
type ConsoleOption func(*console)

// WithColorScheme overrides the scheme picked from the writer.
func WithColorScheme(s *ColorScheme) ConsoleOption {
	return func(c *console) { c.scheme = s }
}

// WithTopMethods limits the method table to the n most expensive methods.
// Zero shows all of them.
func WithTopMethods(n int) ConsoleOption {
	return func(c *console) { c.top = n }
}

type console struct {
	w      io.Writer
	scheme *ColorScheme
	top    int
	err    error
}

const ruleWidth = 72

// Render writes a human readable summary of r to w.
func Render(w io.Writer, r *Report, opts ...ConsoleOption) error {
	if r == nil {
		return fmt.Errorf("report cannot be nil")
	}

	c := &console{w: w}
	for _, opt := range opts {
		opt(c)
	}
	if c.scheme == nil {
		if ColorEnabled(w) {
			c.scheme = DefaultColorScheme()
		} else {
			c.scheme = NoColorScheme()
		}
	}

	rule := strings.Repeat("─", ruleWidth)
	c.println(c.scheme.Title.Sprint(rule))
	c.printf("%s  %s\n", c.scheme.Title.Sprint("Performance Report"), c.scheme.Muted.Sprint(r.Timestamp.Format(time.RFC3339)))
	c.println(c.scheme.Title.Sprint(rule))
	c.printf("Profiler:  %s (up %s)\n", r.ProfilerID, formatUptime(time.Duration(r.UptimeSeconds*float64(time.Second))))
	c.printf("Host:      %s %s/%s, %d CPUs, %s\n", r.Host.Hostname, r.Host.OS, r.Host.Arch, r.Host.LogicalCPUs, humanize.IBytes(r.Host.TotalMemory))
	c.printf("Sampling:  every %dms (memory=%t cpu=%t threads=%t)\n",
		r.Config.SamplingIntervalMillis, r.Config.CaptureMemoryMetrics, r.Config.CaptureCPUMetrics, r.Config.CaptureThreadMetrics)
	c.println("")

	c.renderMethods(r)
	c.renderMemory(r.Memory)
	c.renderCPU(r.CPU)
	c.renderThreads(r.Threads)
	c.renderHistory(r.History)

	c.printf("%s ticks=%s skipped=%s failures=%s\n",
		c.scheme.Section.Sprint("Scheduler:"),
		humanize.Comma(int64(r.Scheduler.Ticks)),
		humanize.Comma(int64(r.Scheduler.Skipped)),
		c.countColor(r.Scheduler.Failures).Sprint(humanize.Comma(int64(r.Scheduler.Failures))))

	return c.err
}

func (c *console) renderMethods(r *Report) {
	c.println(c.scheme.Section.Sprint("Methods:"))
	methods := r.SortedMethods()
	if len(methods) == 0 {
		c.println(c.scheme.Muted.Sprint("  no recordings"))
		c.println("")
		return
	}

	hidden := 0
	if c.top > 0 && len(methods) > c.top {
		hidden = len(methods) - c.top
		methods = methods[:c.top]
	}

	width := len("Method")
	for _, m := range methods {
		if len(m.Name) > width {
			width = len(m.Name)
		}
	}

	c.printf("  %-*s %10s %10s %10s %10s %10s\n", width, "Method", "Calls", "Total", "Avg", "Min", "Max")
	for _, m := range methods {
		c.printf("  %s %10s %10s %10s %10s %10s\n",
			c.scheme.Key.Sprintf("%-*s", width, m.Name),
			humanize.Comma(int64(m.Count)),
			formatNanos(int64(m.Total)),
			c.scheme.Value.Sprintf("%10s", formatNanos(int64(m.Average))),
			formatNanos(m.Min),
			formatNanos(m.Max))
	}
	if hidden > 0 {
		c.println(c.scheme.Muted.Sprintf("  ... %d more", hidden))
	}
	c.println("")
}

func (c *console) renderMemory(m *sampler.MemorySnapshot) {
	c.println(c.scheme.Section.Sprint("Memory:"))
	if m == nil {
		c.println(c.scheme.Muted.Sprint("  n/a"))
		c.println("")
		return
	}
	util := m.HeapUtilization()
	c.printf("  Heap:      %s / %s (%s)\n",
		humanize.IBytes(m.HeapUsed), humanize.IBytes(m.HeapMax),
		c.ratioColor(util).Sprintf("%.1f%%", util*100))
	c.printf("  Non-heap:  %s / %s\n", humanize.IBytes(m.NonHeapUsed), humanize.IBytes(m.NonHeapMax))
	c.println("")
}

func (c *console) renderCPU(s *sampler.CPUSnapshot) {
	c.println(c.scheme.Section.Sprint("CPU:"))
	if s == nil {
		c.println(c.scheme.Muted.Sprint("  n/a"))
		c.println("")
		return
	}
	c.printf("  Processors:    %d\n", s.AvailableProcessors)
	if s.SystemLoadAverage == sampler.LoadUnavailable {
		c.println("  System load:   n/a")
	} else {
		c.printf("  System load:   %.2f (%.2f per CPU)\n", s.SystemLoadAverage, s.NormalizedLoad())
	}
	if s.ProcessCPULoad == sampler.LoadUnavailable {
		c.println("  Process load:  n/a")
	} else {
		c.printf("  Process load:  %s\n", c.ratioColor(s.ProcessCPULoad).Sprintf("%.1f%%", s.ProcessCPULoad*100))
	}
	c.println("")
}

func (c *console) renderThreads(t *sampler.ThreadSnapshot) {
	c.println(c.scheme.Section.Sprint("Goroutines:"))
	if t == nil {
		c.println(c.scheme.Muted.Sprint("  n/a"))
		c.println("")
		return
	}
	c.printf("  Current: %s  Peak: %s  Background: %s\n",
		humanize.Comma(int64(t.CurrentCount)), humanize.Comma(int64(t.PeakCount)), humanize.Comma(int64(t.DaemonCount)))
	c.printf("  OS threads created: %s", humanize.Comma(int64(t.TotalStartedCount)))
	if t.OSThreads > 0 {
		c.printf(" (live %d)", t.OSThreads)
	}
	c.println("")
	c.println("")
}

func (c *console) renderHistory(h map[sampler.Series]sampler.Summary) {
	if len(h) == 0 {
		return
	}
	c.println(c.scheme.Section.Sprint("History:"))
	for _, name := range []sampler.Series{sampler.SeriesHeapUsed, sampler.SeriesProcessCPU, sampler.SeriesGoroutines} {
		s, ok := h[name]
		if !ok {
			continue
		}
		format := formatSeries(name)
		c.printf("  %-15s n=%-6d p50=%-10s p90=%-10s p99=%-10s max=%s\n",
			name, s.Count, format(s.P50), format(s.P90), format(s.P99), format(s.Max))
	}
	c.println("")
}

func formatSeries(name sampler.Series) func(float64) string {
	switch name {
	case sampler.SeriesHeapUsed:
		return func(v float64) string { return humanize.IBytes(uint64(v)) }
	case sampler.SeriesProcessCPU:
		return func(v float64) string { return fmt.Sprintf("%.1f%%", v*100) }
	default:
		return func(v float64) string { return humanize.Comma(int64(v)) }
	}
}

func (c *console) ratioColor(r float64) *color.Color {
	switch {
	case r >= 0.9:
		return c.scheme.Bad
	case r >= 0.7:
		return c.scheme.Warn
	default:
		return c.scheme.Good
	}
}

func (c *console) countColor(n uint64) *color.Color {
	if n > 0 {
		return c.scheme.Warn
	}
	return c.scheme.Good
}

func (c *console) printf(format string, args ...interface{}) {
	if c.err != nil {
		return
	}
	_, c.err = fmt.Fprintf(c.w, format, args...)
}

func (c *console) println(s string) {
	if c.err != nil {
		return
	}
	_, c.err = fmt.Fprintln(c.w, s)
}

// formatNanos formats a nanosecond duration in a short format.
func formatNanos(ns int64) string {
	d := time.Duration(ns)
	switch {
	case d < time.Microsecond:
		return fmt.Sprintf("%dns", ns)
	case d < time.Millisecond:
		return fmt.Sprintf("%.1fµs", float64(d)/float64(time.Microsecond))
	case d < time.Second:
		return fmt.Sprintf("%.1fms", float64(d)/float64(time.Millisecond))
	case d < time.Minute:
		return fmt.Sprintf("%.2fs", d.Seconds())
	default:
		return fmt.Sprintf("%.1fm", d.Minutes())
	}
}

// formatUptime formats a duration in a human-readable format.
func formatUptime(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm %02ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh %02dm %02ds", int(d.Hours()), int(d.Minutes())%60, int(d.Seconds())%60)
}
