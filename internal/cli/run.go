package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wesleyorama2/perfcore/internal/profiler"
	"github.com/wesleyorama2/perfcore/internal/profiler/report"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Profile a built-in demo workload",
	Long: `Run two instrumented demo methods for a number of iterations while the
sampler records memory, CPU and goroutine usage. A report is written every
--report-every iterations and once more at the end.

  perfcore run
  perfcore run --iterations 20 --pause 500ms --output-dir reports --gzip`,
	Args: cobra.NoArgs,
	RunE: runDemoCmd,
}

// demoOptions controls a demo run.
type demoOptions struct {
	Iterations  int
	ReportEvery int
	Pause       time.Duration
	OutputDir   string
	Gzip        bool
	TopMethods  int
	Shutdown    time.Duration
}

func runDemoCmd(cmd *cobra.Command, args []string) error {
	fc, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger, err := newLogger(cmd, fc)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := fc.ToProfilerConfig()
	if err != nil {
		return err
	}

	opts := demoOptions{
		OutputDir: fc.Report.OutputDir,
		Gzip:      fc.Report.Gzip,
		Shutdown:  profiler.DefaultShutdownTimeout,
	}
	opts.Iterations, _ = cmd.Flags().GetInt("iterations")
	opts.ReportEvery, _ = cmd.Flags().GetInt("report-every")
	opts.Pause, _ = cmd.Flags().GetDuration("pause")
	opts.TopMethods, _ = cmd.Flags().GetInt("top")
	if dir, _ := cmd.Flags().GetString("output-dir"); dir != "" {
		opts.OutputDir = dir
	}
	if cmd.Flags().Changed("gzip") {
		opts.Gzip, _ = cmd.Flags().GetBool("gzip")
	}
	if opts.Iterations <= 0 {
		return fmt.Errorf("--iterations must be positive")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p := profiler.New(profiler.WithLogger(logger))
	if err := p.Configure(cfg); err != nil {
		return err
	}
	return runDemo(ctx, p, opts, cmd.OutOrStdout(), colorScheme(cmd), logger)
}

// runDemo drives the workload against p and shuts it down when done.
// Cancelling ctx ends the loop early; the final report is still written.
func runDemo(ctx context.Context, p *profiler.Profiler, opts demoOptions, out io.Writer, scheme *report.ColorScheme, logger *zap.Logger) error {
	writer := report.NewWriter(opts.OutputDir, report.WithGzip(opts.Gzip))

	emit := func() error {
		r := report.Build(p)
		path, err := writer.Write(r)
		if err != nil {
			return err
		}
		logger.Info("Report written", zap.String("path", path))
		if err := report.Render(out, r, report.WithColorScheme(scheme), report.WithTopMethods(opts.TopMethods)); err != nil {
			return err
		}
		fmt.Fprintf(out, "Report saved to %s\n\n", path)
		return nil
	}

	var failed error
loop:
	for i := 0; i < opts.Iterations; i++ {
		p.Start(computeMethod).Stop()
		p.Start(buildMethod).Stop()

		if opts.ReportEvery > 0 && i%opts.ReportEvery == 0 {
			if err := emit(); err != nil {
				logger.Error("Failed to generate report", zap.Error(err))
				failed = err
			}
		}

		if opts.Pause > 0 {
			select {
			case <-ctx.Done():
				break loop
			case <-time.After(opts.Pause):
			}
		} else if ctx.Err() != nil {
			break
		}
	}

	if err := emit(); err != nil {
		logger.Error("Failed to generate final report", zap.Error(err))
		failed = err
	}

	if err := p.Shutdown(opts.Shutdown); err != nil {
		return err
	}
	return failed
}

func init() {
	runCmd.Flags().Int("iterations", 10, "Number of workload iterations")
	runCmd.Flags().Int("report-every", 5, "Write a report every N iterations (0 disables periodic reports)")
	runCmd.Flags().Duration("pause", time.Second, "Pause between iterations")
	runCmd.Flags().String("output-dir", "", "Report directory (default from config)")
	runCmd.Flags().Bool("gzip", false, "Compress report files")
	runCmd.Flags().Int("top", 0, "Show only the N most expensive methods (0 shows all)")
}
