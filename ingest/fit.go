package ingest

import (
	"fmt"
	"io"
	"math"
	"sort"
	"time"

	"github.com/tormoder/fit"

	"github.com/lucasjlepore/ridestats"
)

// DecodeFIT reads an activity FIT file. Records are sorted by timestamp and
// invalid field sentinels become nil.
func DecodeFIT(r io.Reader) (*Recording, error) {
	decoded, err := fit.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("decode FIT file: %w", err)
	}
	activity, err := decoded.Activity()
	if err != nil {
		return nil, fmt.Errorf("activity FIT expected: %w", err)
	}

	samples := buildSamples(activity.Records)
	if len(samples) == 0 {
		return nil, ErrNoRecords
	}
	return &Recording{
		Format:  FormatFIT,
		Samples: samples,
		Laps:    buildLaps(activity.Laps),
	}, nil
}

func buildSamples(records []*fit.RecordMsg) ridestats.Samples {
	out := make(ridestats.Samples, 0, len(records))
	for _, rec := range records {
		if rec == nil {
			continue
		}
		ts := validTimeOrZero(rec.Timestamp)
		if ts.IsZero() {
			continue
		}
		s := ridestats.Sample{
			Timestamp: ts.UTC(),
			Power:     extractPower(rec),
			Altitude:  extractAltitude(rec),
			Distance:  finitePtr(rec.GetDistanceScaled()),
			Speed:     extractSpeed(rec),
		}
		if !rec.PositionLat.Invalid() && !rec.PositionLong.Invalid() {
			s.Lat = finitePtr(rec.PositionLat.Degrees())
			s.Long = finitePtr(rec.PositionLong.Degrees())
		}
		out = append(out, s)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out
}

func buildLaps(laps []*fit.LapMsg) []ridestats.LapBoundary {
	out := make([]ridestats.LapBoundary, 0, len(laps))
	for _, lap := range laps {
		if lap == nil {
			continue
		}
		out = append(out, ridestats.LapBoundary{
			Start:            timePtr(lap.StartTime),
			End:              timePtr(lap.Timestamp),
			TotalDistance:    finitePtr(lap.GetTotalDistanceScaled()),
			TotalElapsedTime: finitePtr(lap.GetTotalElapsedTimeScaled()),
			TotalTimerTime:   finitePtr(lap.GetTotalTimerTimeScaled()),
			AvgSpeed:         finitePtr(lap.GetAvgSpeedScaled()),
			MaxSpeed:         finitePtr(lap.GetMaxSpeedScaled()),
			TotalAscent:      uint16Ptr(lap.TotalAscent),
			TotalDescent:     uint16Ptr(lap.TotalDescent),
			MaxPower:         uint16Ptr(lap.MaxPower),
			AvgPower:         uint16Ptr(lap.AvgPower),
		})
	}
	return out
}

func extractPower(rec *fit.RecordMsg) *int {
	return uint16Ptr(rec.Power)
}

func extractAltitude(rec *fit.RecordMsg) *float64 {
	if v := finitePtr(rec.GetEnhancedAltitudeScaled()); v != nil {
		return v
	}
	return finitePtr(rec.GetAltitudeScaled())
}

func extractSpeed(rec *fit.RecordMsg) *float64 {
	speed := rec.GetEnhancedSpeedScaled()
	if isFinite(speed) && speed >= 0 {
		return &speed
	}
	speed = rec.GetSpeedScaled()
	if isFinite(speed) && speed >= 0 {
		return &speed
	}
	return nil
}

func validTimeOrZero(t time.Time) time.Time {
	if t.IsZero() || fit.IsBaseTime(t) {
		return time.Time{}
	}
	return t
}

func timePtr(t time.Time) *time.Time {
	t = validTimeOrZero(t)
	if t.IsZero() {
		return nil
	}
	t = t.UTC()
	return &t
}

func uint16Ptr(v uint16) *int {
	if v == math.MaxUint16 {
		return nil
	}
	x := int(v)
	return &x
}

func finitePtr(v float64) *float64 {
	if !isFinite(v) {
		return nil
	}
	return &v
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
