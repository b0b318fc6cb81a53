package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wesleyorama2/perfcore/internal/logging"
	"github.com/wesleyorama2/perfcore/internal/profiler/config"
	"github.com/wesleyorama2/perfcore/internal/profiler/report"
)

var version = "0.1.0"

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:     "perfcore",
	Short:   "In-process method timing and resource sampling",
	Version: version,
	Long: `perfcore records per-method execution statistics and samples memory,
CPU and goroutine usage on a fixed cadence. It can run a demo workload,
serve live metrics over HTTP, and inspect saved performance reports.`,
	SilenceUsage: true,
	Run: func(cmd *cobra.Command, args []string) {
		// If no subcommand is provided, print help
		_ = cmd.Help()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	if err := RootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return err
	}
	return nil
}

func init() {
	RootCmd.PersistentFlags().StringP("config", "c", "", "Configuration file (YAML or JSON)")
	RootCmd.PersistentFlags().String("log-level", "", "Override the configured log level")
	RootCmd.PersistentFlags().Bool("no-color", false, "Disable colored output")

	// Add subcommands to root command
	RootCmd.AddCommand(runCmd)
	RootCmd.AddCommand(serveCmd)
	RootCmd.AddCommand(reportCmd)
}

// loadConfig reads the --config file, or returns the defaults when none is
// given.
func loadConfig(cmd *cobra.Command) (*config.FileConfig, error) {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		return config.DefaultFileConfig(), nil
	}
	return config.Load(path)
}

// newLogger builds the logger described by fc, applying --log-level.
func newLogger(cmd *cobra.Command, fc *config.FileConfig) (*zap.Logger, error) {
	cfg := logging.FromSection(fc.Logging)
	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.Level = level
	}
	if cfg.File == "" {
		cfg.Output = cmd.ErrOrStderr()
	}
	return logging.New(cfg)
}

// colorScheme picks the console colors for cmd's output.
func colorScheme(cmd *cobra.Command) *report.ColorScheme {
	if noColor, _ := cmd.Flags().GetBool("no-color"); noColor {
		return report.NoColorScheme()
	}
	if report.ColorEnabled(cmd.OutOrStdout()) {
		return report.DefaultColorScheme()
	}
	return report.NoColorScheme()
}
