package ridestats

// DefaultProfileSamples is the elevation profile length used when none is set.
const DefaultProfileSamples = 200

// SummaryOptions carries per-user inputs to Summarize.
type SummaryOptions struct {
	ProfileSamples int
	Zones          []int
	Laps           []LapBoundary
}

// ActivitySummary is the consolidated view of one activity. Sub-results whose
// telemetry is missing are left nil.
type ActivitySummary struct {
	DistanceKm          float64           `json:"distance"`
	TotalElapsedSeconds float64           `json:"total_elapsed_time"`
	ActiveSeconds       float64           `json:"active_time"`
	ElevationGain       float64           `json:"elevation_gain"`
	AverageSpeedKmh     float64           `json:"average_speed"`
	Power               *PowerSummary     `json:"power_summary,omitempty"`
	ZoneTimes           []float64         `json:"zone_times,omitempty"`
	Profile             *ElevationProfile `json:"elevation_profile,omitempty"`
	Laps                []LapMetrics      `json:"laps,omitempty"`
}

// Summarize builds an ActivitySummary. It has no side effects, and equal
// inputs give equal output.
func Summarize(samples Samples, opts SummaryOptions) ActivitySummary {
	if opts.ProfileSamples <= 0 {
		opts.ProfileSamples = DefaultProfileSamples
	}
	cols := samples.Columns()

	summary := ActivitySummary{
		ActiveSeconds: float64(len(samples)),
	}
	if start, end, ok := samples.Span(); ok {
		summary.TotalElapsedSeconds = end.Sub(start).Seconds()
	}
	if cols.Has(ColDistance) {
		summary.DistanceKm = lastDistance(samples) / 1000.0
	}
	if cols.Has(ColSpeed) {
		summary.AverageSpeedKmh = meanSpeed(samples) * 3.6
	}
	if cols.Has(ColAltitude) {
		summary.ElevationGain = ElevationGain(samples)
		summary.Profile = BuildElevationProfile(samples, opts.ProfileSamples)
	}
	if cols.Has(ColPower) {
		summary.Power = SummarizePower(samples)
	}
	if len(opts.Zones) > 0 {
		summary.ZoneTimes = TimeInZones(samples, opts.Zones)
	}
	if len(opts.Laps) > 0 {
		summary.Laps = ComputeLaps(opts.Laps, samples)
	}
	return summary
}

func lastDistance(samples Samples) float64 {
	for i := len(samples) - 1; i >= 0; i-- {
		if d := samples[i].Distance; d != nil && isFinite(*d) {
			return *d
		}
	}
	return 0
}

func meanSpeed(samples Samples) float64 {
	speeds := make([]float64, 0, len(samples))
	for _, s := range samples {
		if s.Speed != nil {
			speeds = append(speeds, *s.Speed)
		}
	}
	return average(speeds)
}
