package ledger

import (
	"context"
	"fmt"
	"sort"
	"time"
)

// RangeSummary aggregates recorded activities over a date range.
type RangeSummary struct {
	Distance         float64 `json:"distance"`
	MovingTime       float64 `json:"moving_time"`
	ElevationGain    float64 `json:"elevation_gain"`
	ActivityCount    int     `json:"activity_count"`
	TotalWork        int64   `json:"total_work"`
	MaxDistance      float64 `json:"max_distance"`
	MaxMovingTime    float64 `json:"max_moving_time"`
	MaxElevationGain float64 `json:"max_elevation_gain"`
	MaxSpeed         float64 `json:"max_speed"`
}

// SummarizeRange folds the activity table directly, without the buckets.
// Routes are excluded. from and to compare calendar dates in UTC and are
// both inclusive; nil leaves that side open.
func (l *Ledger) SummarizeRange(ctx context.Context, userID int64, from, to *time.Time) (RangeSummary, error) {
	var out RangeSummary
	err := l.store.WithUserTx(ctx, userID, func(ctx context.Context, tx Tx) error {
		activities, err := tx.Activities(ctx, userID)
		if err != nil {
			return err
		}
		out = RangeSummary{}
		for _, a := range activities {
			if a.Type == ActivityTypeRoute || a.Date.IsZero() {
				continue
			}
			day := truncateDay(a.Date)
			if from != nil && day.Before(truncateDay(*from)) {
				continue
			}
			if to != nil && day.After(truncateDay(*to)) {
				continue
			}
			c := contributionOf(a)
			out.Distance += c.distance
			out.MovingTime += c.movingTime
			out.ElevationGain += c.elevationGain
			out.TotalWork += c.totalWork
			out.ActivityCount++
			out.MaxDistance = max(out.MaxDistance, c.distance)
			out.MaxMovingTime = max(out.MaxMovingTime, c.movingTime)
			out.MaxElevationGain = max(out.MaxElevationGain, c.elevationGain)
			if c.speed != nil {
				out.MaxSpeed = max(out.MaxSpeed, *c.speed)
			}
		}
		return nil
	})
	if err != nil {
		return RangeSummary{}, fmt.Errorf("summarize range: %w", err)
	}
	return out, nil
}

// WeekVolume is one ISO week of training volume.
type WeekVolume struct {
	WeekStart time.Time `json:"date"`
	Bucket    Bucket    `json:"bucket"`
}

// WeeklyVolume returns the user's WEEK buckets whose Monday is on or after
// since, oldest first. A zero since returns every week.
func (l *Ledger) WeeklyVolume(ctx context.Context, userID int64, since time.Time) ([]WeekVolume, error) {
	weeks, err := l.Buckets(ctx, userID, PeriodWeek)
	if err != nil {
		return nil, err
	}
	cutoff := truncateDay(since)
	out := make([]WeekVolume, 0, len(weeks))
	for _, b := range weeks {
		start, err := WeekStart(b.Key.ID)
		if err != nil {
			l.cfg.Logger.Warn("skipping malformed week bucket", "user_id", userID, "period_id", b.Key.ID)
			continue
		}
		if !since.IsZero() && start.Before(cutoff) {
			continue
		}
		out = append(out, WeekVolume{WeekStart: start, Bucket: b})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].WeekStart.Before(out[j].WeekStart) })
	return out, nil
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
