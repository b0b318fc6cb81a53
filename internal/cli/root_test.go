package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wesleyorama2/perfcore/internal/profiler/config"
)

// execute runs the root command with args and returns its stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	if args == nil {
		args = []string{}
	}

	var out, errOut bytes.Buffer
	RootCmd.SetOut(&out)
	RootCmd.SetErr(&errOut)
	RootCmd.SetArgs(args)
	t.Cleanup(func() {
		RootCmd.SetOut(nil)
		RootCmd.SetErr(nil)
		RootCmd.SetArgs(nil)
		resetFlags(RootCmd)
	})

	err := RootCmd.Execute()
	return out.String(), err
}

// resetFlags restores every flag to its default so tests sharing RootCmd do
// not leak values into each other.
func resetFlags(cmd *cobra.Command) {
	cmd.Flags().VisitAll(resetFlag)
	cmd.PersistentFlags().VisitAll(resetFlag)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

func resetFlag(f *pflag.Flag) {
	_ = f.Value.Set(f.DefValue)
	f.Changed = false
}

func mustInterval(t *testing.T, fc *config.FileConfig) time.Duration {
	t.Helper()
	cfg, err := fc.ToProfilerConfig()
	require.NoError(t, err)
	return cfg.SamplingInterval()
}

func TestRootHelp(t *testing.T) {
	out, err := execute(t)
	require.NoError(t, err)
	assert.Contains(t, out, "perfcore")
	assert.Contains(t, out, "serve")
	assert.Contains(t, out, "report")
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "--version")
	require.NoError(t, err)
	assert.Contains(t, out, version)
}

func TestLoadConfig(t *testing.T) {
	cmd := &cobra.Command{}
	cmd.Flags().String("config", "", "")

	fc, err := loadConfig(cmd)
	require.NoError(t, err)
	assert.Equal(t, int64(100), mustInterval(t, fc).Milliseconds())

	path := filepath.Join(t.TempDir(), "perfcore.yaml")
	require.NoError(t, os.WriteFile(path, []byte("profiler:\n  samplingIntervalMillis: 250\n"), 0o644))
	require.NoError(t, cmd.Flags().Set("config", path))

	fc, err = loadConfig(cmd)
	require.NoError(t, err)
	assert.Equal(t, int64(250), mustInterval(t, fc).Milliseconds())

	require.NoError(t, os.WriteFile(path, []byte("profiler:\n  samplingIntervalMillis: -1\n"), 0o644))
	_, err = loadConfig(cmd)
	assert.Error(t, err)
}
