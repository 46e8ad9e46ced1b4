package ridestats

import (
	"testing"
	"time"
)

func TestComputeCurveStepEffort(t *testing.T) {
	curve := ComputeCurve(powerSeries(testStart, 100, 100, 100, 200, 200, 200, 100, 100, 100, 100))

	want := map[int]float64{1: 200, 2: 200, 5: 160, 10: 130}
	if len(curve) != len(want) {
		t.Fatalf("expected %d points, got %+v", len(want), curve)
	}
	for d, w := range want {
		got, ok := curve.At(d)
		if !ok || !almostEqual(got, w) {
			t.Fatalf("duration %d: got %.2f (present=%v) want %.2f", d, got, ok, w)
		}
	}
}

func TestComputeCurveFillsGapsWithZero(t *testing.T) {
	samples := Samples{
		{Timestamp: testStart, Power: IntPtr(300)},
		{Timestamp: testStart.Add(500 * time.Millisecond), Power: IntPtr(100)},
		{Timestamp: testStart.Add(3 * time.Second), Power: IntPtr(200)},
		{Timestamp: testStart.Add(4 * time.Second), Power: nil},
	}
	grid := resampleSeconds(samples)
	want := []float64{200, 0, 0, 200, 0}
	if len(grid) != len(want) {
		t.Fatalf("expected %d grid seconds, got %v", len(want), grid)
	}
	for i := range want {
		if grid[i] != want[i] {
			t.Fatalf("second %d: got %.1f want %.1f", i, grid[i], want[i])
		}
	}

	curve := ComputeCurve(samples)
	if w, _ := curve.At(5); !almostEqual(w, 80) {
		t.Fatalf("expected 5s best of 80 W, got %.2f", w)
	}
}

func TestComputeCurveOrdersByTimestamp(t *testing.T) {
	ordered := powerSeries(testStart, 150, 250, 350, 120)
	shuffled := Samples{ordered[2], ordered[0], ordered[3], ordered[1]}

	a, b := ComputeCurve(ordered), ComputeCurve(shuffled)
	if len(a) != len(b) {
		t.Fatalf("curve length differs: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("point %d differs: %+v vs %+v", i, a[i], b[i])
		}
	}
	if w, _ := a.At(2); w != 300 {
		t.Fatalf("expected 2s best of 300 W, got %.1f", w)
	}
}

func TestComputeCurveWithoutPower(t *testing.T) {
	samples := Samples{{Timestamp: testStart, Altitude: FloatPtr(10)}, {Timestamp: testStart.Add(time.Second)}}
	if got := ComputeCurve(samples); len(got) != 0 {
		t.Fatalf("expected empty curve, got %+v", got)
	}
	if got := ComputeCurve(nil); len(got) != 0 {
		t.Fatalf("expected empty curve for no samples, got %+v", got)
	}
}

func TestComputeCurveDecaysForSteadyFade(t *testing.T) {
	watts := make([]int, 3700)
	for i := range watts {
		watts[i] = 400 - i/20
	}
	curve := ComputeCurve(powerSeries(testStart, watts...))
	if last := curve[len(curve)-1].Duration; last != 3600 {
		t.Fatalf("expected curve to stop at 3600s, got %d", last)
	}
	for i := 1; i < len(curve); i++ {
		if curve[i].Watts > curve[i-1].Watts {
			t.Fatalf("curve rose from %ds (%.1f) to %ds (%.1f)", curve[i-1].Duration, curve[i-1].Watts, curve[i].Duration, curve[i].Watts)
		}
	}
}

func TestMergeCurvesAlgebra(t *testing.T) {
	a := PowerCurve{{1, 800}, {5, 600}, {60, 350}}
	b := PowerCurve{{1, 750}, {5, 640}, {300, 280}}
	c := PowerCurve{{2, 700}, {60, 360}}

	ab, ba := MergeCurves(a, b), MergeCurves(b, a)
	assertCurve(t, "commutative", ab, ba)
	assertCurve(t, "associative", MergeCurves(MergeCurves(a, b), c), MergeCurves(a, MergeCurves(b, c)))
	assertCurve(t, "idempotent", MergeCurves(a, a), a)
	assertCurve(t, "identity", MergeCurves(a, nil), a)

	want := PowerCurve{{1, 800}, {5, 640}, {60, 350}, {300, 280}}
	assertCurve(t, "values", ab, want)
}

func TestUpdateRollingWindows(t *testing.T) {
	now := time.Date(2025, 6, 30, 12, 0, 0, 0, time.UTC)
	months := []int{3, 6, 12}
	curve := PowerCurve{{1, 900}, {60, 400}}

	old := now.AddDate(0, 0, -100)
	set := UpdateRollingWindows(CurveSet{}, curve, old, now, months)

	assertCurve(t, "all", set[AllTimeWindow], curve)
	if got := set[WindowKey(3)]; len(got) != 0 {
		t.Fatalf("100-day-old activity leaked into 3m window: %+v", got)
	}
	assertCurve(t, "6m", set["6m"], curve)
	assertCurve(t, "12m", set["12m"], curve)

	// Exactly on the cutoff counts.
	edge := now.Add(-90 * 24 * time.Hour)
	set2 := UpdateRollingWindows(set, PowerCurve{{1, 950}}, edge, now, months)
	if w, _ := set2["3m"].At(1); w != 950 {
		t.Fatalf("expected cutoff-day activity in 3m window, got %+v", set2["3m"])
	}
	if w, _ := set[AllTimeWindow].At(1); w != 900 {
		t.Fatalf("input set was modified: %+v", set[AllTimeWindow])
	}

	again := UpdateRollingWindows(set2, PowerCurve{{1, 950}}, edge, now, months)
	for k := range set2 {
		assertCurve(t, "rerun "+k, again[k], set2[k])
	}
}

func assertCurve(t *testing.T, label string, got, want PowerCurve) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("%s: got %+v want %+v", label, got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("%s: point %d got %+v want %+v", label, i, got[i], want[i])
		}
	}
}
