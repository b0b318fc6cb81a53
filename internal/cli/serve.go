package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wesleyorama2/perfcore/internal/profiler"
	"github.com/wesleyorama2/perfcore/internal/profiler/config"
	"github.com/wesleyorama2/perfcore/internal/profiler/exporter"
	"github.com/wesleyorama2/perfcore/internal/profiler/report"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Sample this process and serve metrics over HTTP",
	Long: `Start the sampler and expose Prometheus metrics plus a JSON API:

  GET /metrics
  GET /api/v1/methods
  GET /api/v1/methods/{name}
  GET /api/v1/resources
  GET /api/v1/report[?path=$.methods.foo.count]
  GET /healthz

When --config is given the file is watched and sampling is reconfigured on
every valid change.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return serve(ctx, cmd)
	},
}

// serve runs until ctx is cancelled.
func serve(ctx context.Context, cmd *cobra.Command) error {
	fc, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if listen, _ := cmd.Flags().GetString("listen"); listen != "" {
		fc.Server.Listen = listen
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

	p := profiler.New(profiler.WithLogger(logger))
	if err := p.Configure(cfg); err != nil {
		return err
	}

	srv := exporter.NewServer(p, fc.Server.Listen, exporter.WithServerLogger(logger), exporter.WithRuntimeCollectors())
	if err := srv.Start(); err != nil {
		_ = p.Shutdown(profiler.DefaultShutdownTimeout)
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Serving metrics on http://%s/metrics\n", srv.Addr())

	if path, _ := cmd.Flags().GetString("config"); path != "" {
		w := config.NewWatcher(path, config.WithWatcherLogger(logger))
		if err := w.Start(func(next *config.FileConfig) {
			reconfigure(p, next, logger)
		}); err != nil {
			logger.Warn("Config watch disabled", zap.Error(err))
		} else {
			defer w.Stop()
		}
	}

	<-ctx.Done()
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(fc.Server.ShutdownTimeout))
	defer cancel()
	var errs []error
	if err := srv.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, err)
	}

	if final, _ := cmd.Flags().GetBool("report-on-exit"); final {
		path, err := report.NewWriter(fc.Report.OutputDir, report.WithGzip(fc.Report.Gzip)).Write(report.Build(p))
		if err != nil {
			errs = append(errs, err)
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "Report saved to %s\n", path)
		}
	}

	if err := p.Shutdown(profiler.DefaultShutdownTimeout); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// reconfigure applies the profiler section of a reloaded config file.
func reconfigure(p *profiler.Profiler, fc *config.FileConfig, logger *zap.Logger) {
	cfg, err := fc.ToProfilerConfig()
	if err != nil {
		logger.Warn("Ignoring reloaded config", zap.Error(err))
		return
	}
	if err := p.Configure(cfg); err != nil {
		logger.Warn("Reconfigure failed", zap.Error(err))
		return
	}
	logger.Info("Sampling reconfigured", zap.Stringer("config", cfg))
}

func init() {
	serveCmd.Flags().String("listen", "", "Listen address (default from config)")
	serveCmd.Flags().Bool("report-on-exit", false, "Write a report file before exiting")
}
