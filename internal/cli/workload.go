package cli

import (
	"math"
	"strconv"
	"strings"
)

// Demo workload method names as they appear in reports.
const (
	computeMethod = "workload.ComputeRoots"
	buildMethod   = "workload.BuildString"
)

// sink keeps the compiler from discarding the workload results.
var sink float64

// computeRoots is CPU bound: one million square roots.
func computeRoots() {
	var sum float64
	for i := 0; i < 1_000_000; i++ {
		sum += math.Sqrt(float64(i))
	}
	sink = sum
}

// buildString allocates: ten thousand appends to a builder.
func buildString() {
	var sb strings.Builder
	for i := 0; i < 10_000; i++ {
		sb.WriteString(strconv.Itoa(i))
	}
	sink = float64(sb.Len())
}
