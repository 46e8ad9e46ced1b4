package ledger

import "time"

// Bucket holds running totals for one (user, period) pair. Sums are kept
// exact under add and delete. Max fields only ever rise; deleting the
// activity that set one leaves it stale until the next rebuild.
type Bucket struct {
	UserID int64     `json:"user_id"`
	Key    PeriodKey `json:"key"`

	Distance      float64 `json:"distance"`
	MovingTime    float64 `json:"moving_time"`
	ElapsedTime   float64 `json:"elapsed_time"`
	ElevationGain float64 `json:"elevation_gain"`
	TotalWork     int64   `json:"total_work"`
	ActivityCount int     `json:"activity_count"`

	MaxDistance      float64 `json:"max_distance"`
	MaxMovingTime    float64 `json:"max_moving_time"`
	MaxElevationGain float64 `json:"max_elevation_gain"`
	MaxPower         int     `json:"max_power"`
	MaxSpeed         float64 `json:"max_speed"`

	LastUpdated time.Time `json:"last_updated"`
}

// NewBucket returns an empty bucket for key.
func NewBucket(userID int64, key PeriodKey) Bucket {
	return Bucket{UserID: userID, Key: key}
}

func (b *Bucket) add(c contribution) {
	b.Distance += c.distance
	b.MovingTime += c.movingTime
	b.ElapsedTime += c.elapsedTime
	b.ElevationGain += c.elevationGain
	b.TotalWork += c.totalWork
	b.ActivityCount++

	b.MaxDistance = max(b.MaxDistance, c.distance)
	b.MaxMovingTime = max(b.MaxMovingTime, c.movingTime)
	b.MaxElevationGain = max(b.MaxElevationGain, c.elevationGain)
	if c.maxPower != nil {
		b.MaxPower = max(b.MaxPower, *c.maxPower)
	}
	if c.speed != nil {
		b.MaxSpeed = max(b.MaxSpeed, *c.speed)
	}
}

func (b *Bucket) subtract(c contribution) {
	b.Distance -= c.distance
	b.MovingTime -= c.movingTime
	b.ElapsedTime -= c.elapsedTime
	b.ElevationGain -= c.elevationGain
	b.TotalWork -= c.totalWork
	b.ActivityCount--
}
