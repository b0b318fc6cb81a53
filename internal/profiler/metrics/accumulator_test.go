package metrics

import (
	"math/rand"
	"sync"
	"testing"
)

func TestNewAccumulator(t *testing.T) {
	acc := NewAccumulator("idle")

	snap := acc.Snapshot()
	if snap.Name != "idle" {
		t.Errorf("Name = %q, want %q", snap.Name, "idle")
	}
	if snap.Count != 0 || snap.Total != 0 || snap.Average != 0 {
		t.Errorf("Initial snapshot = %+v, want zero counters", snap)
	}
	if snap.Max != 0 || snap.Min != 0 {
		t.Errorf("Initial extrema = (%d, %d), want (0, 0)", snap.Min, snap.Max)
	}
}

func TestAccumulator_Record(t *testing.T) {
	tests := []struct {
		name      string
		durations []int64
		want      Snapshot
	}{
		{
			name:      "example",
			durations: []int64{10, 20, 30},
			want:      Snapshot{Count: 3, Total: 60, Max: 30, Min: 10, Average: 20},
		},
		{
			name:      "single",
			durations: []int64{42},
			want:      Snapshot{Count: 1, Total: 42, Max: 42, Min: 42, Average: 42},
		},
		{
			name:      "floor average",
			durations: []int64{1, 2},
			want:      Snapshot{Count: 2, Total: 3, Max: 2, Min: 1, Average: 1},
		},
		{
			name:      "zero duration",
			durations: []int64{0, 5},
			want:      Snapshot{Count: 2, Total: 5, Max: 5, Min: 0, Average: 2},
		},
		{
			name:      "descending",
			durations: []int64{300, 200, 100},
			want:      Snapshot{Count: 3, Total: 600, Max: 300, Min: 100, Average: 200},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			acc := NewAccumulator("op")
			for _, d := range tt.durations {
				acc.Record(d)
			}

			got := acc.Snapshot()
			tt.want.Name = "op"
			if got != tt.want {
				t.Errorf("Snapshot() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestAccumulator_ConcurrentRecord(t *testing.T) {
	const (
		writers   = 16
		perWriter = 2000
	)

	acc := NewAccumulator("hot")

	// Each writer records a distinct range so the expected extrema and sum
	// are known up front.
	var wg sync.WaitGroup
	start := make(chan struct{})
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			<-start
			order := rand.Perm(perWriter)
			for _, i := range order {
				acc.Record(int64(w*perWriter + i + 1))
			}
		}(w)
	}
	close(start)
	wg.Wait()

	n := uint64(writers * perWriter)
	snap := acc.Snapshot()
	if snap.Count != n {
		t.Errorf("Count = %d, want %d", snap.Count, n)
	}
	if want := n * (n + 1) / 2; snap.Total != want {
		t.Errorf("Total = %d, want %d", snap.Total, want)
	}
	if snap.Min != 1 {
		t.Errorf("Min = %d, want 1", snap.Min)
	}
	if snap.Max != int64(n) {
		t.Errorf("Max = %d, want %d", snap.Max, n)
	}
	if uint64(snap.Min) > snap.Average || snap.Average > uint64(snap.Max) {
		t.Errorf("Average %d outside [%d, %d]", snap.Average, snap.Min, snap.Max)
	}
}

func BenchmarkAccumulator_Record(b *testing.B) {
	acc := NewAccumulator("bench")
	b.RunParallel(func(pb *testing.PB) {
		var d int64
		for pb.Next() {
			d++
			acc.Record(d)
		}
	})
}
