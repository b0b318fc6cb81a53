package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestWatcher_ReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "perfcore.yaml")
	writeFile(t, path, "profiler:\n  samplingIntervalMillis: 100\n")

	w := NewWatcher(path, WithDebounce(20*time.Millisecond), WithWatcherLogger(zap.NewNop()))
	loaded := make(chan *FileConfig, 4)
	require.NoError(t, w.Start(func(c *FileConfig) { loaded <- c }))
	defer w.Stop()

	writeFile(t, path, "profiler:\n  samplingIntervalMillis: 500\n")

	deadline := time.After(5 * time.Second)
	for {
		select {
		case cfg := <-loaded:
			if cfg.Profiler.Interval() == 500*time.Millisecond {
				return
			}
		case <-deadline:
			t.Fatal("no reload after write")
		}
	}
}

func TestWatcher_IgnoresInvalidFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "perfcore.yaml")
	writeFile(t, path, "profiler:\n  samplingIntervalMillis: 100\n")

	w := NewWatcher(path, WithDebounce(20*time.Millisecond))
	loaded := make(chan *FileConfig, 4)
	require.NoError(t, w.Start(func(c *FileConfig) { loaded <- c }))
	defer w.Stop()

	writeFile(t, path, "profiler:\n  samplingIntervalMillis: -3\n")

	select {
	case cfg := <-loaded:
		t.Fatalf("invalid config delivered: %+v", cfg.Profiler)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestWatcher_IgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "perfcore.yaml")
	writeFile(t, path, "profiler:\n  samplingIntervalMillis: 100\n")

	w := NewWatcher(path, WithDebounce(20*time.Millisecond))
	loaded := make(chan *FileConfig, 4)
	require.NoError(t, w.Start(func(c *FileConfig) { loaded <- c }))
	defer w.Stop()

	writeFile(t, filepath.Join(dir, "other.yaml"), "x: 1\n")

	select {
	case <-loaded:
		t.Fatal("reload triggered by unrelated file")
	case <-time.After(300 * time.Millisecond):
	}
}

func TestWatcher_StartTwiceAndStopIdempotent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "perfcore.yaml")
	writeFile(t, path, "")

	w := NewWatcher(path)
	require.NoError(t, w.Start(nil))
	assert.ErrorIs(t, w.Start(nil), ErrWatcherRunning)

	w.Stop()
	w.Stop()
}

func TestWatcher_MissingDirectory(t *testing.T) {
	w := NewWatcher(filepath.Join(t.TempDir(), "missing", "perfcore.yaml"))
	assert.Error(t, w.Start(nil))
}
