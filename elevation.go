package ridestats

// Thresholds used for activity elevation gain.
const (
	GainTolerance    = 2.0
	GainMinElevation = 4.0
)

// Climb is a rising run in an altitude series. From and To index the
// non-null altitude subsequence.
type Climb struct {
	From      int     `json:"from_index"`
	To        int     `json:"to_index"`
	Elevation float64 `json:"elevation"`
}

// DetectClimbs scans altitudes once, tracking the running low and high. A
// climb closes when altitude falls more than tolerance below the high; it is
// kept only if it rose more than minElevation. A climb still rising at the
// last sample is not emitted.
func DetectClimbs(altitudes []float64, tolerance, minElevation float64) []Climb {
	if len(altitudes) < 2 {
		return nil
	}

	var climbs []Climb
	low, high := 0, 0
	for i, h := range altitudes {
		if h < altitudes[low] {
			low = i
		}
		if h > altitudes[high] {
			high = i
		}
		if h < altitudes[high]-tolerance {
			elevation := altitudes[high] - altitudes[low]
			if low < high && elevation > minElevation {
				climbs = append(climbs, Climb{From: low, To: high, Elevation: elevation})
			}
			low, high = i, i
		}
	}
	return climbs
}

// TotalElevation sums the elevation of climbs.
func TotalElevation(climbs []Climb) float64 {
	total := 0.0
	for _, c := range climbs {
		total += c.Elevation
	}
	return total
}

// ElevationGain returns the activity elevation gain in meters, or 0 when no
// altitude was recorded.
func ElevationGain(samples Samples) float64 {
	return TotalElevation(DetectClimbs(samples.Altitudes(), GainTolerance, GainMinElevation))
}

// ElevationProfile is a chart-sized view of altitude against distance.
type ElevationProfile struct {
	Lowest     float64    `json:"lowest"`
	Highest    float64    `json:"highest"`
	Altitude   []*float64 `json:"altitude"`
	DistanceKm []*float64 `json:"distance_km"`
}

// BuildElevationProfile subsamples altitude and distance to n points with a
// uniform index stride. It returns nil when no altitude was recorded.
func BuildElevationProfile(samples Samples, n int) *ElevationProfile {
	lo, hi, ok := minMax(samples.Altitudes())
	if !ok {
		return nil
	}

	profile := &ElevationProfile{Lowest: lo, Highest: hi}
	idx := strideIndices(len(samples), n)
	profile.Altitude = make([]*float64, 0, len(idx))
	profile.DistanceKm = make([]*float64, 0, len(idx))
	for _, i := range idx {
		s := samples[i]
		profile.Altitude = append(profile.Altitude, s.Altitude)
		var km *float64
		if s.Distance != nil {
			km = FloatPtr(*s.Distance / 1000.0)
		}
		profile.DistanceKm = append(profile.DistanceKm, km)
	}
	return profile
}

// strideIndices returns n evenly spaced indices over [0, length-1], truncated
// toward zero. Indices repeat when n exceeds length.
func strideIndices(length, n int) []int {
	if length == 0 || n <= 0 {
		return nil
	}
	if n == 1 {
		return []int{0}
	}
	out := make([]int, n)
	step := float64(length-1) / float64(n-1)
	for i := range out {
		out[i] = int(float64(i) * step)
	}
	out[n-1] = length - 1
	return out
}
