package ridestats

import (
	"sort"
	"time"
)

// Sample is one normalized telemetry point. Optional channels are nil when the
// recording device did not report them; a zero Timestamp means the timestamp
// is missing.
type Sample struct {
	Timestamp time.Time `json:"timestamp"`
	Power     *int      `json:"power,omitempty"`
	Altitude  *float64  `json:"altitude,omitempty"`
	Distance  *float64  `json:"distance,omitempty"`
	Speed     *float64  `json:"speed,omitempty"`
	Lat       *float64  `json:"lat,omitempty"`
	Long      *float64  `json:"long,omitempty"`
}

// Samples is an ordered sample sequence. Functions in this package never
// modify a Samples value they receive.
type Samples []Sample

// Columns is a bitset of the channels present in a sequence.
type Columns uint8

const (
	ColPower Columns = 1 << iota
	ColAltitude
	ColDistance
	ColSpeed
	ColPosition
)

// Has reports whether every column in c is present.
func (c Columns) Has(col Columns) bool {
	return c&col == col
}

// Shape classifies which telemetry a sequence carries.
type Shape int

const (
	ShapeBare Shape = iota
	ShapeNoPower
	ShapeNoGPS
	ShapeFull
)

func (s Shape) String() string {
	switch s {
	case ShapeFull:
		return "full"
	case ShapeNoGPS:
		return "no_gps"
	case ShapeNoPower:
		return "no_power"
	default:
		return "bare"
	}
}

// Columns reports which channels have at least one non-nil value.
func (s Samples) Columns() Columns {
	var c Columns
	for _, sample := range s {
		if sample.Power != nil {
			c |= ColPower
		}
		if sample.Altitude != nil {
			c |= ColAltitude
		}
		if sample.Distance != nil {
			c |= ColDistance
		}
		if sample.Speed != nil {
			c |= ColSpeed
		}
		if sample.Lat != nil && sample.Long != nil {
			c |= ColPosition
		}
	}
	return c
}

// Shape reports the telemetry shape of the sequence.
func (s Samples) Shape() Shape {
	c := s.Columns()
	power, gps := c.Has(ColPower), c.Has(ColPosition)
	switch {
	case power && gps:
		return ShapeFull
	case power:
		return ShapeNoGPS
	case gps:
		return ShapeNoPower
	default:
		return ShapeBare
	}
}

// Altitudes returns the non-nil altitude values in order.
func (s Samples) Altitudes() []float64 {
	out := make([]float64, 0, len(s))
	for _, sample := range s {
		if sample.Altitude != nil && isFinite(*sample.Altitude) {
			out = append(out, *sample.Altitude)
		}
	}
	return out
}

// Powers returns the non-nil power values in order.
func (s Samples) Powers() []float64 {
	out := make([]float64, 0, len(s))
	for _, sample := range s {
		if sample.Power != nil {
			out = append(out, float64(*sample.Power))
		}
	}
	return out
}

// Span returns the earliest and latest non-zero timestamps.
func (s Samples) Span() (start, end time.Time, ok bool) {
	for _, sample := range s {
		ts := sample.Timestamp
		if ts.IsZero() {
			continue
		}
		if !ok || ts.Before(start) {
			start = ts
		}
		if !ok || ts.After(end) {
			end = ts
		}
		ok = true
	}
	return start, end, ok
}

// sortedByTime returns a stably sorted copy holding only timestamped samples.
func (s Samples) sortedByTime() Samples {
	out := make(Samples, 0, len(s))
	for _, sample := range s {
		if !sample.Timestamp.IsZero() {
			out = append(out, sample)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out
}

// Between returns the samples with start <= t <= end, preserving order.
func (s Samples) Between(start, end time.Time) Samples {
	out := make(Samples, 0)
	for _, sample := range s {
		ts := sample.Timestamp
		if ts.IsZero() || ts.Before(start) || ts.After(end) {
			continue
		}
		out = append(out, sample)
	}
	return out
}

// IntPtr returns a pointer to v.
func IntPtr(v int) *int {
	return &v
}

// FloatPtr returns a pointer to v.
func FloatPtr(v float64) *float64 {
	return &v
}
