package ridestats

import (
	"math"
	"time"
)

var testStart = time.Date(2025, 3, 14, 8, 0, 0, 0, time.UTC)

func powerSeries(start time.Time, watts ...int) Samples {
	out := make(Samples, len(watts))
	for i, w := range watts {
		out[i] = Sample{Timestamp: start.Add(time.Duration(i) * time.Second), Power: IntPtr(w)}
	}
	return out
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}
