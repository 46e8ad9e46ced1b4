package ridestats

import "sort"

// TimeInZones returns seconds spent in each power zone. Zone 0 is
// [0, bounds[0]], zone i is (bounds[i-1], bounds[i]], and the last zone is
// everything above the highest bound. Each sample counts as one second.
// Bounds are sorted first; the result always has len(bounds)+1 zones, and a
// repeated bound leaves an empty zone.
func TimeInZones(samples Samples, bounds []int) []float64 {
	if len(samples) == 0 || len(bounds) == 0 || !samples.Columns().Has(ColPower) {
		return nil
	}
	edges := sortedBounds(bounds)

	out := make([]float64, len(edges)+1)
	for _, s := range samples {
		// Missing power is binned as 0 W; negatives fall into the first zone.
		watts := 0
		if s.Power != nil && *s.Power > 0 {
			watts = *s.Power
		}
		out[zoneIndex(edges, watts)]++
	}
	return out
}

// zoneIndex returns the first zone whose upper bound is >= watts.
func zoneIndex(edges []int, watts int) int {
	return sort.SearchInts(edges, watts)
}

func sortedBounds(bounds []int) []int {
	edges := append([]int(nil), bounds...)
	sort.Ints(edges)
	return edges
}
