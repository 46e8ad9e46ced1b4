package ridestats

import (
	"testing"
	"time"
)

func TestComputeLapsInclusiveBoundaries(t *testing.T) {
	samples := powerSeries(testStart, 100, 200, 300, 400, 500)
	at := func(sec int) *time.Time {
		ts := testStart.Add(time.Duration(sec) * time.Second)
		return &ts
	}
	laps := []LapBoundary{
		{Start: at(0), End: at(2), TotalDistance: FloatPtr(1200), MaxPower: IntPtr(310)},
		{Start: at(2), End: at(4), TotalAscent: IntPtr(15)},
		{Start: at(4), End: nil},
	}

	metrics := ComputeLaps(laps, samples)
	if len(metrics) != 2 {
		t.Fatalf("expected 2 laps after skipping the open lap, got %d", len(metrics))
	}

	first := metrics[0]
	if first.Power == nil || first.Power.Mean != 200 {
		t.Fatalf("unexpected first lap power %+v", first.Power)
	}
	if *first.TotalDistance != 1200 || *first.MaxPower != 310 {
		t.Fatalf("lap fields not passed through: %+v", first)
	}

	second := metrics[1]
	if second.Power == nil || second.Power.Median != 400 {
		t.Fatalf("unexpected second lap power %+v", second.Power)
	}
	if !second.StartTime.Equal(*at(2)) || !second.EndTime.Equal(*at(4)) {
		t.Fatalf("unexpected second lap window %s-%s", second.StartTime, second.EndTime)
	}
}

func TestComputeLapMetricsWithoutPower(t *testing.T) {
	start, end := testStart, testStart.Add(time.Minute)
	samples := Samples{{Timestamp: testStart, Speed: FloatPtr(9)}}
	lap, ok := ComputeLapMetrics(LapBoundary{Start: &start, End: &end}, samples)
	if !ok {
		t.Fatalf("expected lap metrics")
	}
	if lap.Power != nil {
		t.Fatalf("expected nil power summary, got %+v", lap.Power)
	}
}
