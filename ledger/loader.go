package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/lucasjlepore/ridestats"
	"github.com/lucasjlepore/ridestats/codec"
)

// ErrNoSamples is returned for activities without a stored sample blob.
var ErrNoSamples = errors.New("ledger: activity has no sample data")

// SampleKey is the object key an offloaded sample blob is stored under.
func SampleKey(userID int64, activityID string) string {
	return fmt.Sprintf("samples/%d/%s.parquet", userID, activityID)
}

// SampleLoader returns the stored sample sequence of an activity.
type SampleLoader interface {
	LoadSamples(ctx context.Context, a Activity) (ridestats.Samples, error)
}

// BlobGetter fetches an offloaded blob by key.
type BlobGetter interface {
	Get(ctx context.Context, key string) ([]byte, error)
}

// BlobLoader decodes the inline sample blob, or fetches it from Blobs when
// the activity only carries a DataKey.
type BlobLoader struct {
	Blobs BlobGetter
}

func (l BlobLoader) LoadSamples(ctx context.Context, a Activity) (ridestats.Samples, error) {
	data := a.Data
	if len(data) == 0 && a.DataKey != "" {
		if l.Blobs == nil {
			return nil, fmt.Errorf("activity %s: blob %q: no object store configured", a.ID, a.DataKey)
		}
		var err error
		data, err = l.Blobs.Get(ctx, a.DataKey)
		if err != nil {
			return nil, fmt.Errorf("activity %s: fetch %q: %w", a.ID, a.DataKey, err)
		}
	}
	if len(data) == 0 {
		return nil, ErrNoSamples
	}
	samples, err := codec.DecodeSamples(data)
	if err != nil {
		return nil, fmt.Errorf("activity %s: %w", a.ID, err)
	}
	return samples, nil
}
