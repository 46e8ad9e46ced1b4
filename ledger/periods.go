package ledger

import (
	"fmt"
	"time"
)

// PeriodType is the granularity of a stats bucket.
type PeriodType string

const (
	PeriodAll   PeriodType = "ALL"
	PeriodYear  PeriodType = "YEAR"
	PeriodMonth PeriodType = "MONTH"
	PeriodWeek  PeriodType = "WEEK"
)

// AllTimeID is the period id of the single ALL bucket.
const AllTimeID = "total"

// PeriodTypes lists every period type from coarsest to finest.
var PeriodTypes = []PeriodType{PeriodAll, PeriodYear, PeriodMonth, PeriodWeek}

func (p PeriodType) rank() int {
	for i, t := range PeriodTypes {
		if t == p {
			return i
		}
	}
	return len(PeriodTypes)
}

// PeriodKey addresses one bucket within a user's bucket set.
type PeriodKey struct {
	Type PeriodType `json:"period_type"`
	ID   string     `json:"period_id"`
}

func (k PeriodKey) String() string {
	return string(k.Type) + ":" + k.ID
}

// Valid reports whether the key names a real period.
func (k PeriodKey) Valid() bool {
	switch k.Type {
	case PeriodAll:
		return k.ID == AllTimeID
	case PeriodYear:
		_, err := time.Parse("2006", k.ID)
		return err == nil
	case PeriodMonth:
		_, err := time.Parse("2006-01", k.ID)
		return err == nil
	case PeriodWeek:
		_, err := WeekStart(k.ID)
		return err == nil
	default:
		return false
	}
}

func keyLess(a, b PeriodKey) bool {
	if a.Type != b.Type {
		return a.Type.rank() < b.Type.rank()
	}
	return a.ID < b.ID
}

// PeriodKeys returns the four buckets an activity on date contributes to.
// Dates are bucketed in UTC; weeks follow ISO 8601.
func PeriodKeys(date time.Time) []PeriodKey {
	d := date.UTC()
	year, week := d.ISOWeek()
	return []PeriodKey{
		{Type: PeriodAll, ID: AllTimeID},
		{Type: PeriodYear, ID: d.Format("2006")},
		{Type: PeriodMonth, ID: d.Format("2006-01")},
		{Type: PeriodWeek, ID: fmt.Sprintf("%d-W%02d", year, week)},
	}
}

// WeekStart returns the Monday 00:00 UTC of an ISO week id like "2025-W07".
func WeekStart(id string) (time.Time, error) {
	var year, week int
	if _, err := fmt.Sscanf(id, "%d-W%d", &year, &week); err != nil {
		return time.Time{}, fmt.Errorf("parse week %q: %w", id, err)
	}
	if week < 1 || week > 53 {
		return time.Time{}, fmt.Errorf("parse week %q: week out of range", id)
	}
	jan4 := time.Date(year, time.January, 4, 0, 0, 0, 0, time.UTC)
	offset := (int(jan4.Weekday()) + 6) % 7
	monday := jan4.AddDate(0, 0, -offset+(week-1)*7)
	if y, w := monday.ISOWeek(); y != year || w != week {
		return time.Time{}, fmt.Errorf("parse week %q: no such week", id)
	}
	return monday, nil
}
