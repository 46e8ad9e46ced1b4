package ridestats

import "time"

// LapBoundary is one lap as reported by the recording device. The scalar
// fields are passed through to LapMetrics unchanged.
type LapBoundary struct {
	Start            *time.Time `json:"start_time,omitempty"`
	End              *time.Time `json:"timestamp,omitempty"`
	TotalDistance    *float64   `json:"total_distance,omitempty"`
	TotalElapsedTime *float64   `json:"total_elapsed_time,omitempty"`
	TotalTimerTime   *float64   `json:"total_timer_time,omitempty"`
	AvgSpeed         *float64   `json:"avg_speed,omitempty"`
	MaxSpeed         *float64   `json:"max_speed,omitempty"`
	TotalAscent      *int       `json:"total_ascent,omitempty"`
	TotalDescent     *int       `json:"total_descent,omitempty"`
	MaxPower         *int       `json:"max_power,omitempty"`
	AvgPower         *int       `json:"avg_power,omitempty"`
}

// LapMetrics is a lap with power statistics recomputed from its samples.
type LapMetrics struct {
	StartTime        time.Time     `json:"start_time"`
	EndTime          time.Time     `json:"end_time"`
	TotalDistance    *float64      `json:"total_distance,omitempty"`
	TotalElapsedTime *float64      `json:"total_elapsed_time,omitempty"`
	TotalTimerTime   *float64      `json:"total_timer_time,omitempty"`
	AvgSpeed         *float64      `json:"avg_speed,omitempty"`
	MaxSpeed         *float64      `json:"max_speed,omitempty"`
	TotalAscent      *int          `json:"total_ascent,omitempty"`
	TotalDescent     *int          `json:"total_descent,omitempty"`
	MaxPower         *int          `json:"max_power,omitempty"`
	Power            *PowerSummary `json:"power_summary,omitempty"`
}

// ComputeLapMetrics slices samples to the inclusive lap window. Adjacent laps
// share a boundary sample. It returns false when the lap lacks a start or
// end time.
func ComputeLapMetrics(lap LapBoundary, samples Samples) (LapMetrics, bool) {
	if lap.Start == nil || lap.End == nil || lap.Start.IsZero() || lap.End.IsZero() {
		return LapMetrics{}, false
	}

	slice := samples.Between(*lap.Start, *lap.End)
	return LapMetrics{
		StartTime:        *lap.Start,
		EndTime:          *lap.End,
		TotalDistance:    lap.TotalDistance,
		TotalElapsedTime: lap.TotalElapsedTime,
		TotalTimerTime:   lap.TotalTimerTime,
		AvgSpeed:         lap.AvgSpeed,
		MaxSpeed:         lap.MaxSpeed,
		TotalAscent:      lap.TotalAscent,
		TotalDescent:     lap.TotalDescent,
		MaxPower:         lap.MaxPower,
		Power:            SummarizePower(slice),
	}, true
}

// ComputeLaps returns metrics for every usable lap, in input order.
func ComputeLaps(laps []LapBoundary, samples Samples) []LapMetrics {
	out := make([]LapMetrics, 0, len(laps))
	for _, lap := range laps {
		m, ok := ComputeLapMetrics(lap, samples)
		if !ok {
			continue
		}
		out = append(out, m)
	}
	return out
}
