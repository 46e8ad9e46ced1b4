package ridestats

import (
	"math"
	"sort"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/stat"
)

// QuantileCount is the number of percentiles (0 through 100) in a summary.
const QuantileCount = 101

// PowerSummary describes the distribution of recorded power.
type PowerSummary struct {
	Mean        float64                `json:"mean"`
	Median      float64                `json:"median"`
	TotalWorkKJ float64                `json:"total_work"`
	Quantiles   [QuantileCount]float64 `json:"quantiles"`
}

// SummarizePower returns nil when no sample carries power.
func SummarizePower(samples Samples) *PowerSummary {
	powers := samples.Powers()
	if len(powers) == 0 {
		return nil
	}

	median, err := stats.Median(stats.Float64Data(powers))
	if err != nil {
		return nil
	}
	summary := &PowerSummary{
		Mean:        stat.Mean(powers, nil),
		Median:      median,
		TotalWorkKJ: TotalWork(samples),
	}

	sorted := append([]float64(nil), powers...)
	sort.Float64s(sorted)
	for i := range summary.Quantiles {
		summary.Quantiles[i] = quantileLinear(sorted, float64(i)/100.0)
	}
	return summary
}

// quantileLinear interpolates between the closest ranks of sorted, placing
// q=0 on the minimum and q=1 on the maximum.
func quantileLinear(sorted []float64, q float64) float64 {
	n := len(sorted)
	if n == 1 {
		return sorted[0]
	}
	h := float64(n-1) * q
	lo := int(math.Floor(h))
	if lo >= n-1 {
		return sorted[n-1]
	}
	return sorted[lo] + (h-float64(lo))*(sorted[lo+1]-sorted[lo])
}

// TotalWork integrates power over time in kilojoules. Each powered sample
// holds its value until the next sample in time order; the last sample adds
// nothing.
func TotalWork(samples Samples) float64 {
	sorted := samples.sortedByTime()
	joules := 0.0
	for i := 0; i+1 < len(sorted); i++ {
		if sorted[i].Power == nil {
			continue
		}
		dt := sorted[i+1].Timestamp.Sub(sorted[i].Timestamp).Seconds()
		joules += float64(*sorted[i].Power) * dt
	}
	return joules / 1000.0
}

// MaxPower returns the highest recorded power.
func MaxPower(samples Samples) (int, bool) {
	best, ok := 0, false
	for _, s := range samples {
		if s.Power == nil {
			continue
		}
		if !ok || *s.Power > best {
			best = *s.Power
			ok = true
		}
	}
	return best, ok
}
