package ridestats

import (
	"fmt"
	"sort"
	"time"

	"gonum.org/v1/gonum/floats"
)

// StandardDurations are the curve durations in seconds.
var StandardDurations = []int{1, 2, 5, 10, 20, 30, 60, 120, 300, 600, 1200, 1800, 3600, 7200, 10800, 14400, 18000}

// AllTimeWindow is the curve-set key that every activity contributes to.
const AllTimeWindow = "all"

// daysPerMonth is the fixed month length used for rolling windows.
const daysPerMonth = 30

// CurvePoint is the best mean power held for Duration seconds.
type CurvePoint struct {
	Duration int     `json:"duration"`
	Watts    float64 `json:"watts"`
}

// PowerCurve holds at most one point per duration, sorted by duration.
type PowerCurve []CurvePoint

// At returns the watts stored for duration.
func (c PowerCurve) At(duration int) (float64, bool) {
	for _, p := range c {
		if p.Duration == duration {
			return p.Watts, true
		}
	}
	return 0, false
}

// CurveSet maps a window key to a user's curve for that window.
type CurveSet map[string]PowerCurve

// WindowKey returns the curve-set key for a rolling window of months.
func WindowKey(months int) string {
	return fmt.Sprintf("%dm", months)
}

// ComputeCurve returns the best mean power for each standard duration that
// fits in the recording. Samples are placed on a one-second grid spanning the
// first to the last timestamp; a second with several samples takes their mean
// and a second with none counts as 0 W, so pauses pull the curve down.
func ComputeCurve(samples Samples) PowerCurve {
	grid := resampleSeconds(samples)
	if len(grid) == 0 {
		return PowerCurve{}
	}

	curve := make(PowerCurve, 0, len(StandardDurations))
	for _, d := range StandardDurations {
		if d > len(grid) {
			break
		}
		curve = append(curve, CurvePoint{Duration: d, Watts: bestRollingMean(grid, d)})
	}
	return curve
}

func resampleSeconds(samples Samples) []float64 {
	if !samples.Columns().Has(ColPower) {
		return nil
	}
	sorted := samples.sortedByTime()
	if len(sorted) == 0 {
		return nil
	}

	origin := sorted[0].Timestamp.Truncate(time.Second)
	last := sorted[len(sorted)-1].Timestamp.Truncate(time.Second)
	n := int(last.Sub(origin)/time.Second) + 1

	sums := make([]float64, n)
	counts := make([]int, n)
	for _, s := range sorted {
		if s.Power == nil {
			continue
		}
		i := int(s.Timestamp.Truncate(time.Second).Sub(origin) / time.Second)
		sums[i] += float64(*s.Power)
		counts[i]++
	}
	for i := range sums {
		if counts[i] > 0 {
			sums[i] /= float64(counts[i])
		}
	}
	return sums
}

// bestRollingMean returns the highest mean of any window of the given length.
// Callers guarantee 0 < window <= len(values).
func bestRollingMean(values []float64, window int) float64 {
	sum := floats.Sum(values[:window])
	best := sum
	for i := window; i < len(values); i++ {
		sum += values[i] - values[i-window]
		if sum > best {
			best = sum
		}
	}
	return best / float64(window)
}

// MergeCurves takes the pointwise maximum over the union of durations. Curve
// watts are never negative, so a duration present on one side only keeps its
// value.
func MergeCurves(a, b PowerCurve) PowerCurve {
	byDuration := make(map[int]float64, len(a)+len(b))
	for _, c := range []PowerCurve{a, b} {
		for _, p := range c {
			if cur, ok := byDuration[p.Duration]; !ok || p.Watts > cur {
				byDuration[p.Duration] = p.Watts
			}
		}
	}
	out := make(PowerCurve, 0, len(byDuration))
	for d, w := range byDuration {
		out = append(out, CurvePoint{Duration: d, Watts: w})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Duration < out[j].Duration })
	return out
}

// UpdateRollingWindows merges curve into the all-time window and into every
// configured month window whose cutoff (now minus months*30 days) is not
// after activityDate. The input set is left unchanged.
func UpdateRollingWindows(set CurveSet, curve PowerCurve, activityDate, now time.Time, months []int) CurveSet {
	out := make(CurveSet, len(set)+len(months)+1)
	for k, v := range set {
		out[k] = append(PowerCurve(nil), v...)
	}

	out[AllTimeWindow] = MergeCurves(out[AllTimeWindow], curve)
	for _, m := range months {
		key := WindowKey(m)
		if _, ok := out[key]; !ok {
			out[key] = PowerCurve{}
		}
		cutoff := now.Add(-time.Duration(m*daysPerMonth) * 24 * time.Hour)
		if !activityDate.Before(cutoff) {
			out[key] = MergeCurves(out[key], curve)
		}
	}
	return out
}
