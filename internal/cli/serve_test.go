package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/wesleyorama2/perfcore/internal/profiler"
	"github.com/wesleyorama2/perfcore/internal/profiler/config"
)

// syncBuffer is a bytes.Buffer safe for a writer and a polling reader.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func newServeCmd(out *syncBuffer, args ...string) *cobra.Command {
	cmd := &cobra.Command{}
	cmd.Flags().String("config", "", "")
	cmd.Flags().String("log-level", "error", "")
	cmd.Flags().String("listen", "127.0.0.1:0", "")
	cmd.Flags().Bool("report-on-exit", false, "")
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	for i := 0; i+1 < len(args); i += 2 {
		_ = cmd.Flags().Set(args[i], args[i+1])
	}
	return cmd
}

func TestServe(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "perfcore.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(fmt.Sprintf("profiler:\n  samplingIntervalMillis: 20\nreport:\n  outputDir: %s\n", dir)), 0o644))

	out := &syncBuffer{}
	cmd := newServeCmd(out, "config", cfgPath, "report-on-exit", "true")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- serve(ctx, cmd) }()

	var addr string
	require.Eventually(t, func() bool {
		line := out.String()
		i := strings.Index(line, "http://")
		if i < 0 {
			return false
		}
		addr = strings.TrimSuffix(strings.TrimSpace(line[i+len("http://"):]), "/metrics")
		return true
	}, 5*time.Second, 10*time.Millisecond)

	resp, err := http.Get("http://" + addr + "/healthz")
	require.NoError(t, err)
	var health struct {
		Status   string `json:"status"`
		Sampling bool   `json:"sampling"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	resp.Body.Close()
	assert.Equal(t, "ok", health.Status)
	assert.True(t, health.Sampling)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("serve did not return after cancel")
	}

	files, err := filepath.Glob(filepath.Join(dir, "performance_report_*.json"))
	require.NoError(t, err)
	assert.Len(t, files, 1)
}

func TestServe_BadListen(t *testing.T) {
	cmd := newServeCmd(&syncBuffer{}, "listen", "256.0.0.1:bad")
	assert.Error(t, serve(context.Background(), cmd))
}

func TestReconfigure(t *testing.T) {
	p := profiler.New()
	t.Cleanup(func() { _ = p.Shutdown(time.Second) })

	fc := config.DefaultFileConfig()
	fc.Profiler.SamplingIntervalMillis = 40
	reconfigure(p, fc, zap.NewNop())
	assert.Equal(t, 40*time.Millisecond, p.Config().SamplingInterval())
	assert.True(t, p.Sampling())

	fc.Profiler.SamplingIntervalMillis = -5
	reconfigure(p, fc, zap.NewNop())
	assert.Equal(t, 40*time.Millisecond, p.Config().SamplingInterval(), "invalid config is ignored")
}
