package report

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, Build(fullSource()), WithColorScheme(NoColorScheme())))
	out := buf.String()

	assert.Contains(t, out, "Performance Report")
	for _, name := range []string{"slow", "also", "fast"} {
		assert.Contains(t, out, name)
	}
	assert.Less(t, strings.Index(out, "slow"), strings.Index(out, "fast"))
	assert.Contains(t, out, "2.0ms")
	assert.Contains(t, out, "64 MiB / 256 MiB (25.0%)")
	assert.Contains(t, out, "Process load:  25.0%")
	assert.Contains(t, out, "History:")
	assert.NotContains(t, out, "\x1b[")
}

func TestRender_AbsentResources(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, Build(newFakeSource())))
	out := buf.String()

	assert.Equal(t, 3, strings.Count(out, "n/a"))
	assert.NotContains(t, out, "History:")
}

func TestRender_TopMethods(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, Build(newFakeSource()), WithTopMethods(1)))
	out := buf.String()

	assert.Contains(t, out, "slow")
	assert.NotContains(t, out, "fast")
	assert.Contains(t, out, "... 2 more")
}

func TestRender_Nil(t *testing.T) {
	assert.Error(t, Render(&bytes.Buffer{}, nil))
}

func TestColorEnabled_NonTerminal(t *testing.T) {
	t.Setenv("NO_COLOR", "")
	t.Setenv("FORCE_COLOR", "")
	assert.False(t, ColorEnabled(&bytes.Buffer{}))

	t.Setenv("FORCE_COLOR", "1")
	assert.True(t, ColorEnabled(&bytes.Buffer{}))

	t.Setenv("NO_COLOR", "1")
	assert.False(t, ColorEnabled(&bytes.Buffer{}))
}

func TestFormatNanos(t *testing.T) {
	tests := []struct {
		ns   int64
		want string
	}{
		{0, "0ns"},
		{999, "999ns"},
		{1500, "1.5µs"},
		{2_000_000, "2.0ms"},
		{1_500_000_000, "1.50s"},
		{90_000_000_000, "1.5m"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, formatNanos(tt.ns), "formatNanos(%d)", tt.ns)
	}
}
