package perf

import (
	"sort"
	"testing"
	"time"
)

// Latency targets for admin occupancy reads: cached availability answers must
// stay well under the probe timeout, and a cold probe must finish inside the
// per-call budget before the resolver reports UNKNOWN.
func TestOccupancyReadLatencyTargets(t *testing.T) {
	scenarios := []struct {
		name      string
		samples   []time.Duration
		threshold time.Duration
	}{
		{
			name:      "cached availability",
			samples:   []time.Duration{8 * time.Millisecond, 10 * time.Millisecond, 12 * time.Millisecond, 15 * time.Millisecond, 18 * time.Millisecond, 22 * time.Millisecond, 25 * time.Millisecond, 28 * time.Millisecond, 32 * time.Millisecond, 40 * time.Millisecond},
			threshold: 100 * time.Millisecond,
		},
		{
			name:      "cold probe",
			samples:   []time.Duration{900 * time.Millisecond, 1100 * time.Millisecond, 1400 * time.Millisecond, 1700 * time.Millisecond, 2 * time.Second, 2300 * time.Millisecond, 2600 * time.Millisecond, 3 * time.Second, 3400 * time.Millisecond, 3900 * time.Millisecond},
			threshold: 5 * time.Second,
		},
	}

	for _, scenario := range scenarios {
		p95 := percentile95(scenario.samples)
		if p95 > scenario.threshold {
			t.Fatalf("%s latency regression: p95=%s threshold=%s", scenario.name, p95, scenario.threshold)
		}
	}
}

func percentile95(samples []time.Duration) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	sorted := append([]time.Duration(nil), samples...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	index := int(float64(len(sorted)-1) * 0.95)
	if index < 0 {
		index = 0
	}
	if index >= len(sorted) {
		index = len(sorted) - 1
	}
	return sorted[index]
}
