package metrics

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_Record(t *testing.T) {
	r := NewRegistry()

	for _, d := range []int64{10, 20, 30} {
		require.NoError(t, r.Record("foo", d))
	}

	snap, ok := r.Get("foo")
	require.True(t, ok)
	assert.Equal(t, Snapshot{Name: "foo", Count: 3, Total: 60, Max: 30, Min: 10, Average: 20}, snap)
}

func TestRegistry_RecordInvalid(t *testing.T) {
	tests := []struct {
		name     string
		op       string
		duration int64
	}{
		{name: "empty name", op: "", duration: 10},
		{name: "negative duration", op: "foo", duration: -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRegistry()
			require.NoError(t, r.Record("other", 5))

			err := r.Record(tt.op, tt.duration)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidArgument))

			// Rejected calls leave the registry as it was.
			assert.Equal(t, 1, r.Len())
			_, ok := r.Get(tt.op)
			assert.False(t, ok)

			other, _ := r.Get("other")
			assert.Equal(t, uint64(1), other.Count)
		})
	}
}

func TestRegistry_GetUnknown(t *testing.T) {
	r := NewRegistry()
	_, ok := r.Get("missing")
	assert.False(t, ok)
}

func TestRegistry_ConcurrentFirstTouch(t *testing.T) {
	const k = 64

	r := NewRegistry()
	accs := make([]*Accumulator, k)

	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < k; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			assert.NoError(t, r.Record("fresh", int64(i)))
			accs[i] = r.Accumulator("fresh")
		}(i)
	}
	close(start)
	wg.Wait()

	assert.Equal(t, 1, r.Len())
	for i := 1; i < k; i++ {
		assert.Same(t, accs[0], accs[i], "goroutine %d saw a different accumulator", i)
	}

	snap, ok := r.Get("fresh")
	require.True(t, ok)
	assert.Equal(t, uint64(k), snap.Count)
	assert.Equal(t, int64(0), snap.Min)
	assert.Equal(t, int64(k-1), snap.Max)
}

func TestRegistry_AllIsCopy(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Record("a", 1))
	require.NoError(t, r.Record("b", 2))

	all := r.All()
	require.Len(t, all, 2)

	require.NoError(t, r.Record("a", 100))
	require.NoError(t, r.Record("c", 3))

	assert.Len(t, all, 2)
	assert.Equal(t, uint64(1), all["a"].Count)
	assert.Equal(t, int64(1), all["a"].Max)
}

func TestRegistry_Names(t *testing.T) {
	r := NewRegistry()
	for _, name := range []string{"zeta", "alpha", "mid"} {
		require.NoError(t, r.Record(name, 1))
	}
	assert.Equal(t, []string{"alpha", "mid", "zeta"}, r.Names())
}

func TestRegistry_ManyNamesConcurrently(t *testing.T) {
	const (
		names   = 20
		writers = 8
		perName = 250
	)

	r := NewRegistry()
	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perName; i++ {
				for n := 0; n < names; n++ {
					_ = r.Record(fmt.Sprintf("op-%d", n), int64(i))
				}
			}
		}()
	}
	wg.Wait()

	all := r.All()
	require.Len(t, all, names)
	for name, snap := range all {
		assert.Equal(t, uint64(writers*perName), snap.Count, name)
	}
}
