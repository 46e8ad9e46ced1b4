package ledger

import (
	"testing"
	"time"
)

func TestPeriodKeys(t *testing.T) {
	cases := []struct {
		date  time.Time
		year  string
		month string
		week  string
	}{
		{time.Date(2025, 3, 14, 8, 0, 0, 0, time.UTC), "2025", "2025-03", "2025-W11"},
		{time.Date(2024, 12, 30, 7, 0, 0, 0, time.UTC), "2024", "2024-12", "2025-W01"},
		{time.Date(2021, 1, 3, 9, 0, 0, 0, time.UTC), "2021", "2021-01", "2020-W53"},
		// 23:30 in UTC-5 is the next day in UTC.
		{time.Date(2025, 5, 31, 23, 30, 0, 0, time.FixedZone("EST", -5*3600)), "2025", "2025-06", "2025-W22"},
	}
	for _, tc := range cases {
		keys := PeriodKeys(tc.date)
		if len(keys) != 4 {
			t.Fatalf("expected 4 keys, got %d", len(keys))
		}
		want := []PeriodKey{
			{Type: PeriodAll, ID: AllTimeID},
			{Type: PeriodYear, ID: tc.year},
			{Type: PeriodMonth, ID: tc.month},
			{Type: PeriodWeek, ID: tc.week},
		}
		for i := range want {
			if keys[i] != want[i] {
				t.Fatalf("%s: key %d got %s want %s", tc.date, i, keys[i], want[i])
			}
			if !keys[i].Valid() {
				t.Fatalf("%s: key %s reported invalid", tc.date, keys[i])
			}
		}
	}
}

func TestWeekStart(t *testing.T) {
	start, err := WeekStart("2025-W01")
	if err != nil {
		t.Fatalf("WeekStart: %v", err)
	}
	if want := time.Date(2024, 12, 30, 0, 0, 0, 0, time.UTC); !start.Equal(want) {
		t.Fatalf("expected %s, got %s", want, start)
	}
	if _, err := WeekStart("2025-W53"); err == nil {
		t.Fatalf("expected 2025 to have no week 53")
	}
	if _, err := WeekStart("2020-W53"); err != nil {
		t.Fatalf("expected 2020-W53 to exist: %v", err)
	}
	if (PeriodKey{Type: PeriodMonth, ID: "2025-13"}).Valid() {
		t.Fatalf("expected month 13 to be invalid")
	}
}
