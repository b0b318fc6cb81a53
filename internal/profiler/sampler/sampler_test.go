package sampler

import (
	"context"
	"errors"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemorySnapshot_HeapUtilization(t *testing.T) {
	tests := []struct {
		name string
		snap MemorySnapshot
		want float64
	}{
		{"half", MemorySnapshot{HeapUsed: 50, HeapMax: 100}, 0.5},
		{"unknown max", MemorySnapshot{HeapUsed: 50, HeapMax: 0}, 0},
		{"empty", MemorySnapshot{HeapMax: 100}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.snap.HeapUtilization(); got != tt.want {
				t.Errorf("HeapUtilization() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCPUSnapshot_NormalizedLoad(t *testing.T) {
	snap := CPUSnapshot{SystemLoadAverage: 2, AvailableProcessors: 4}
	if got := snap.NormalizedLoad(); got != 0.5 {
		t.Errorf("NormalizedLoad() = %v, want 0.5", got)
	}

	snap = CPUSnapshot{SystemLoadAverage: 2}
	if got := snap.NormalizedLoad(); got != 0 {
		t.Errorf("NormalizedLoad() with no processors = %v, want 0", got)
	}
}

func TestFuncSampler_NilFamilies(t *testing.T) {
	var s FuncSampler
	ctx := context.Background()

	_, err := s.SampleMemory(ctx)
	assert.ErrorIs(t, err, ErrUnavailable)
	_, err = s.SampleCPU(ctx)
	assert.ErrorIs(t, err, ErrUnavailable)
	_, err = s.SampleThreads(ctx)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestFuncSampler_Delegates(t *testing.T) {
	s := FuncSampler{
		Memory: func(context.Context) (MemorySnapshot, error) {
			return MemorySnapshot{HeapUsed: 7}, nil
		},
	}

	snap, err := s.SampleMemory(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(7), snap.HeapUsed)
}

func TestRuntimeSampler_Memory(t *testing.T) {
	s := NewRuntimeSampler()

	snap, err := s.SampleMemory(context.Background())
	require.NoError(t, err)

	assert.NotZero(t, snap.HeapUsed)
	assert.NotZero(t, snap.HeapMax)
	assert.NotZero(t, snap.NonHeapUsed)
	assert.GreaterOrEqual(t, snap.NonHeapMax, snap.NonHeapUsed)
	assert.False(t, snap.SampledAt.IsZero())
}

func TestRuntimeSampler_CPU(t *testing.T) {
	s := NewRuntimeSampler()

	snap, err := s.SampleCPU(context.Background())
	if errors.Is(err, ErrUnavailable) {
		t.Skip("CPU load not exposed on this platform")
	}
	require.NoError(t, err)

	assert.Equal(t, runtime.NumCPU(), snap.AvailableProcessors)
	if snap.ProcessCPULoad != LoadUnavailable {
		assert.GreaterOrEqual(t, snap.ProcessCPULoad, 0.0)
		assert.LessOrEqual(t, snap.ProcessCPULoad, 1.0)
	}
}

func TestRuntimeSampler_Threads(t *testing.T) {
	s := NewRuntimeSampler()

	first, err := s.SampleThreads(context.Background())
	require.NoError(t, err)
	assert.GreaterOrEqual(t, first.CurrentCount, 1)
	assert.GreaterOrEqual(t, first.PeakCount, first.CurrentCount)
	assert.Equal(t, first.CurrentCount-1, first.DaemonCount)
	assert.NotZero(t, first.TotalStartedCount)

	// Park some goroutines to raise the peak, then release them.
	release := make(chan struct{})
	for i := 0; i < 10; i++ {
		go func() { <-release }()
	}
	busy, err := s.SampleThreads(context.Background())
	require.NoError(t, err)
	close(release)

	later, err := s.SampleThreads(context.Background())
	require.NoError(t, err)
	assert.GreaterOrEqual(t, later.PeakCount, busy.CurrentCount)
	assert.GreaterOrEqual(t, later.TotalStartedCount, first.TotalStartedCount)
}

func TestRuntimeSampler_CancelledContext(t *testing.T) {
	s := NewRuntimeSampler()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.SampleMemory(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	_, err = s.SampleCPU(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	_, err = s.SampleThreads(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
