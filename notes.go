package ridestats

import (
	"fmt"
	"io"
	"math"
	"strings"
)

// reportDurations are the curve points shown in a text report.
var reportDurations = []int{5, 60, 300, 1200, 3600}

// FormatSummary writes a plain-text report of an activity.
func FormatSummary(w io.Writer, name string, s ActivitySummary, curve PowerCurve, zones []int) error {
	var b strings.Builder

	if name != "" {
		fmt.Fprintf(&b, "Activity: %s\n", name)
	}
	fmt.Fprintf(
		&b,
		"Elapsed %s | Recorded %s | Distance %.1f km | Elevation +%.0f m | Speed %.1f km/h avg\n",
		formatDuration(s.TotalElapsedSeconds),
		formatDuration(s.ActiveSeconds),
		s.DistanceKm,
		s.ElevationGain,
		s.AverageSpeedKmh,
	)

	if p := s.Power; p != nil {
		fmt.Fprintf(
			&b,
			"Power %.0f avg / %.0f median / %.0f max W | Work %.0f kJ\n",
			p.Mean,
			p.Median,
			p.Quantiles[QuantileCount-1],
			p.TotalWorkKJ,
		)
	} else {
		b.WriteString("Power: not recorded\n")
	}

	if len(curve) > 0 {
		b.WriteString("\nBest Efforts\n")
		for _, d := range reportDurations {
			watts, ok := curve.At(d)
			if !ok {
				continue
			}
			fmt.Fprintf(&b, "- %s: %.0f W\n", formatDuration(float64(d)), watts)
		}
	}

	if len(s.ZoneTimes) > 0 {
		b.WriteString("\nPower Zone Distribution\n")
		total := 0.0
		for _, sec := range s.ZoneTimes {
			total += sec
		}
		for i, sec := range s.ZoneTimes {
			if sec <= 0 {
				continue
			}
			fmt.Fprintf(
				&b,
				"- Z%d %s: %s (%.1f%%)\n",
				i+1,
				zoneLabel(zones, i),
				formatDuration(sec),
				(sec/total)*100.0,
			)
		}
	}

	if p := s.Profile; p != nil {
		fmt.Fprintf(&b, "\nAltitude %.0f-%.0f m\n", p.Lowest, p.Highest)
	}

	if len(s.Laps) > 0 {
		b.WriteString("\nLaps\n")
		for i, lap := range s.Laps {
			avg := 0.0
			if lap.Power != nil {
				avg = lap.Power.Mean
			}
			fmt.Fprintf(
				&b,
				"- Lap %02d | %s | %6.0f W avg | %6.2f km\n",
				i+1,
				formatDuration(lap.EndTime.Sub(lap.StartTime).Seconds()),
				avg,
				safePositive(derefFloat(lap.TotalDistance))/1000.0,
			)
		}
	}

	_, err := io.WriteString(w, strings.TrimSpace(b.String())+"\n")
	return err
}

func zoneLabel(bounds []int, i int) string {
	edges := sortedBounds(bounds)
	switch {
	case len(edges) == 0:
		return ""
	case i == 0:
		return fmt.Sprintf("0-%d W", edges[0])
	case i >= len(edges):
		return fmt.Sprintf(">%d W", edges[len(edges)-1])
	default:
		return fmt.Sprintf("%d-%d W", edges[i-1], edges[i])
	}
}

func formatDuration(seconds float64) string {
	if seconds <= 0 {
		return "0s"
	}
	s := int(math.Round(seconds))
	h := s / 3600
	m := (s % 3600) / 60
	sec := s % 60
	if h > 0 {
		return fmt.Sprintf("%dh%02dm%02ds", h, m, sec)
	}
	if m > 0 {
		return fmt.Sprintf("%dm%02ds", m, sec)
	}
	return fmt.Sprintf("%ds", sec)
}

func derefFloat(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
