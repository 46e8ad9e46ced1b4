package ledger

import "time"

// ActivityTypeRoute marks a planned route rather than a recorded ride.
const ActivityTypeRoute = "route"

// Activity is the persisted row for one uploaded recording. Scalars are
// derived from the activity summary at upload time; TotalWork and MaxPower
// may be missing on rows written before they were tracked.
type Activity struct {
	ID            string    `json:"activity_id"`
	OwnerID       int64     `json:"owner_id"`
	Name          string    `json:"name"`
	Type          string    `json:"activity_type"`
	Date          time.Time `json:"date"`
	Distance      float64   `json:"distance"`
	ActiveTime    float64   `json:"active_time"`
	ElapsedTime   *float64  `json:"elapsed_time,omitempty"`
	ElevationGain float64   `json:"elevation_gain"`
	TotalWork     *int64    `json:"total_work,omitempty"`
	MaxPower      *int      `json:"max_power,omitempty"`
	AveragePower  *int      `json:"average_power,omitempty"`
	Data          []byte    `json:"-"`
	DataKey       string    `json:"data_key,omitempty"`
	LapsData      []byte    `json:"-"`
	LastModified  time.Time `json:"last_modified"`
}

// NeedsBackfill reports whether the power scalars are missing. Rides
// recorded without a power meter stay eligible, so each rebuild decodes
// their blobs again. Routes never carry power and are skipped.
func (a Activity) NeedsBackfill() bool {
	if a.Type == ActivityTypeRoute {
		return false
	}
	return a.TotalWork == nil || a.MaxPower == nil
}

// contribution is what one activity adds to every bucket it maps into.
type contribution struct {
	distance      float64
	movingTime    float64
	elapsedTime   float64
	elevationGain float64
	totalWork     int64
	maxPower      *int
	speed         *float64
}

func contributionOf(a Activity) contribution {
	c := contribution{
		distance:      a.Distance,
		movingTime:    a.ActiveTime,
		elapsedTime:   a.ActiveTime,
		elevationGain: a.ElevationGain,
		maxPower:      a.MaxPower,
	}
	if a.ElapsedTime != nil {
		c.elapsedTime = *a.ElapsedTime
	}
	if a.TotalWork != nil {
		c.totalWork = *a.TotalWork
	}
	if a.ActiveTime > 0 {
		speed := a.Distance / a.ActiveTime
		c.speed = &speed
	}
	return c
}
