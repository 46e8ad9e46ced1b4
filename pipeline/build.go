// Package pipeline runs the activity lifecycle: decoding an upload,
// persisting it, and keeping the stats ledger and power curves in step.
package pipeline

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lucasjlepore/ridestats"
	"github.com/lucasjlepore/ridestats/codec"
	"github.com/lucasjlepore/ridestats/ingest"
	"github.com/lucasjlepore/ridestats/ledger"
)

const activityTypeRide = "ride"

// Options configures per-activity analysis.
type Options struct {
	Zones          []int
	ProfileSamples int
}

// Upload is one recording file submitted by a user.
type Upload struct {
	OwnerID  int64
	FileName string
	Data     []byte
	// Name overrides the name found in the file.
	Name string
}

// Result is a decoded and analyzed upload, ready to persist.
type Result struct {
	Activity ledger.Activity
	Summary  ridestats.ActivitySummary
	Curve    ridestats.PowerCurve
	Samples  ridestats.Samples
}

// Build decodes an upload and derives everything the activity row needs.
// It does not touch storage.
func Build(up Upload, opts Options) (*Result, error) {
	if len(up.Data) == 0 {
		return nil, fmt.Errorf("upload %q is empty", up.FileName)
	}
	rec, err := ingest.Decode(up.FileName, up.Data)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", up.FileName, err)
	}
	start, _, ok := rec.Samples.Span()
	if !ok {
		return nil, fmt.Errorf("decode %s: %w", up.FileName, ingest.ErrNoRecords)
	}

	summary := ridestats.Summarize(rec.Samples, ridestats.SummaryOptions{
		ProfileSamples: opts.ProfileSamples,
		Zones:          opts.Zones,
		Laps:           rec.Laps,
	})

	blob, err := codec.EncodeSamples(rec.Samples)
	if err != nil {
		return nil, fmt.Errorf("encode samples: %w", err)
	}
	var lapsBlob []byte
	if len(rec.Laps) > 0 {
		if lapsBlob, err = codec.EncodeLaps(rec.Laps); err != nil {
			return nil, fmt.Errorf("encode laps: %w", err)
		}
	}

	name := strings.TrimSpace(up.Name)
	if name == "" {
		name = rec.Name
	}
	activityType := activityTypeRide
	if rec.Format == ingest.FormatGPX {
		activityType = ledger.ActivityTypeRoute
	}
	elapsed := summary.TotalElapsedSeconds

	a := ledger.Activity{
		ID:            uuid.NewString(),
		OwnerID:       up.OwnerID,
		Name:          name,
		Type:          activityType,
		Date:          start.UTC(),
		Distance:      summary.DistanceKm,
		ActiveTime:    summary.ActiveSeconds,
		ElapsedTime:   &elapsed,
		ElevationGain: summary.ElevationGain,
		Data:          blob,
		LapsData:      lapsBlob,
		LastModified:  time.Now().UTC(),
	}
	if p := summary.Power; p != nil {
		work := int64(p.TotalWorkKJ)
		avg := int(math.Round(p.Mean))
		a.TotalWork = &work
		a.AveragePower = &avg
	}
	if peak, ok := ridestats.MaxPower(rec.Samples); ok {
		a.MaxPower = &peak
	}

	return &Result{
		Activity: a,
		Summary:  summary,
		Curve:    ridestats.ComputeCurve(rec.Samples),
		Samples:  rec.Samples,
	}, nil
}
