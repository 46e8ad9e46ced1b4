package ingest

import (
	"fmt"
	"io"

	"github.com/tkrajina/gpxgo/gpx"

	"github.com/lucasjlepore/ridestats"
)

// DecodeGPX reads the track points of a GPX document. Route and waypoint
// elements carry no timing and are ignored. Points without a time keep a
// zero timestamp.
func DecodeGPX(r io.Reader) (*Recording, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read GPX file: %w", err)
	}
	doc, err := gpx.ParseBytes(data)
	if err != nil {
		return nil, fmt.Errorf("decode GPX file: %w", err)
	}

	rec := &Recording{Format: FormatGPX, Name: doc.Name}
	for _, trk := range doc.Tracks {
		if rec.Name == "" {
			rec.Name = trk.Name
		}
		for _, seg := range trk.Segments {
			rec.Samples = appendPoints(rec.Samples, seg.Points)
		}
	}
	if len(rec.Samples) == 0 {
		return nil, ErrNoRecords
	}
	return rec, nil
}

func appendPoints(dst ridestats.Samples, points []gpx.GPXPoint) ridestats.Samples {
	for i := range points {
		p := &points[i]
		lat, lon := p.Point.Latitude, p.Point.Longitude
		s := ridestats.Sample{Lat: &lat, Long: &lon}
		if p.Elevation.NotNull() {
			ele := p.Elevation.Value()
			s.Altitude = &ele
		}
		if !p.Timestamp.IsZero() {
			s.Timestamp = p.Timestamp.UTC()
		}
		dst = append(dst, s)
	}
	return dst
}
