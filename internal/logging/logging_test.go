package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/wesleyorama2/perfcore/internal/profiler/config"
)

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Config{Level: "info", Encoding: "json", Output: &buf})
	require.NoError(t, err)

	logger.Named("scheduler").Info("sampling started", zap.String("family", "memory"))
	logger.Debug("hidden")
	require.NoError(t, logger.Sync())

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "scheduler", entry["logger"])
	assert.Equal(t, "sampling started", entry["msg"])
	assert.Equal(t, "memory", entry["family"])
}

func TestNew_Levels(t *testing.T) {
	tests := []struct {
		level   string
		debug   bool
		wantErr bool
	}{
		{level: "", debug: false},
		{level: "debug", debug: true},
		{level: "WARN", debug: false},
		{level: "loud", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			logger, err := New(Config{Level: tt.level, Output: &bytes.Buffer{}})
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.debug, logger.Core().Enabled(zap.DebugLevel))
		})
	}
}

func TestNew_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "perfcore.log")
	logger, err := New(Config{Encoding: "console", File: path, MaxSizeMB: 1})
	require.NoError(t, err)

	logger.Info("written to file")
	require.NoError(t, logger.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "written to file")
}

func TestFromSection(t *testing.T) {
	cfg := FromSection(config.LoggingSection{Level: "debug", Encoding: "json", File: "x.log", MaxBackups: 3})
	assert.Equal(t, "debug", cfg.Level)
	assert.Equal(t, "json", cfg.Encoding)
	assert.Equal(t, "x.log", cfg.File)
	assert.Equal(t, 3, cfg.MaxBackups)
}
