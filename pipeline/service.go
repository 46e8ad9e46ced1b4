package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/lucasjlepore/ridestats"
	"github.com/lucasjlepore/ridestats/codec"
	"github.com/lucasjlepore/ridestats/ledger"
)

// BlobStore holds offloaded sample blobs.
type BlobStore interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

// Config wires a Service. Blobs is optional; without it sample blobs stay
// inline in the activity row.
type Config struct {
	Store        ledger.Store
	Blobs        BlobStore
	Logger       *slog.Logger
	Now          func() time.Time
	CurveWindows []int
	Options      Options
}

// Service applies activity changes together with their ledger and curve
// effects.
type Service struct {
	store  ledger.Store
	blobs  BlobStore
	ledger *ledger.Ledger
	curves *ledger.CurveBook
	loader ledger.SampleLoader
	opts   Options
	logger *slog.Logger
	now    func() time.Time
}

func NewService(cfg Config) *Service {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	loader := ledger.BlobLoader{}
	if cfg.Blobs != nil {
		loader.Blobs = cfg.Blobs
	}
	lcfg := ledger.Config{
		Loader:       loader,
		Logger:       cfg.Logger,
		Now:          cfg.Now,
		CurveWindows: cfg.CurveWindows,
	}
	return &Service{
		store:  cfg.Store,
		blobs:  cfg.Blobs,
		ledger: ledger.New(cfg.Store, lcfg),
		curves: ledger.NewCurveBook(cfg.Store, lcfg),
		loader: loader,
		opts:   cfg.Options,
		logger: cfg.Logger,
		now:    cfg.Now,
	}
}

// Ledger exposes the stats ledger sharing this service's store.
func (s *Service) Ledger() *ledger.Ledger { return s.ledger }

// Curves exposes the power-curve book sharing this service's store.
func (s *Service) Curves() *ledger.CurveBook { return s.curves }

// Create builds an activity from an upload and persists it. The row, its
// bucket contributions and the curve merge commit together.
func (s *Service) Create(ctx context.Context, up Upload) (*Result, error) {
	res, err := Build(up, s.opts)
	if err != nil {
		return nil, err
	}
	a := &res.Activity
	a.LastModified = s.now().UTC()

	offloaded := ""
	if s.blobs != nil {
		key := ledger.SampleKey(a.OwnerID, a.ID)
		if err := s.blobs.Put(ctx, key, a.Data); err != nil {
			return nil, fmt.Errorf("offload samples: %w", err)
		}
		a.DataKey = key
		a.Data = nil
		offloaded = key
	}

	err = s.store.WithUserTx(ctx, a.OwnerID, func(ctx context.Context, tx ledger.Tx) error {
		if err := tx.SaveActivity(ctx, *a); err != nil {
			return err
		}
		if err := s.ledger.AddTx(ctx, tx, *a); err != nil {
			return err
		}
		return s.curves.MergeTx(ctx, tx, a.OwnerID, res.Curve, a.Date)
	})
	if err != nil {
		if offloaded != "" {
			s.dropBlob(ctx, a.OwnerID, a.ID, offloaded)
		}
		return nil, fmt.Errorf("create activity: %w", err)
	}

	s.logger.Info("activity created",
		"user_id", a.OwnerID,
		"activity_id", a.ID,
		"activity_type", a.Type,
		"samples", len(res.Samples),
	)
	return res, nil
}

// Get returns one stored activity.
func (s *Service) Get(ctx context.Context, ownerID int64, activityID string) (ledger.Activity, error) {
	var a ledger.Activity
	err := s.store.WithUserTx(ctx, ownerID, func(ctx context.Context, tx ledger.Tx) error {
		var err error
		a, err = tx.Activity(ctx, ownerID, activityID)
		return err
	})
	return a, err
}

// Delete removes an activity and its bucket contributions. Power curves
// keep whatever the activity contributed until the next recompute.
func (s *Service) Delete(ctx context.Context, ownerID int64, activityID string) error {
	var removed ledger.Activity
	err := s.store.WithUserTx(ctx, ownerID, func(ctx context.Context, tx ledger.Tx) error {
		a, err := tx.Activity(ctx, ownerID, activityID)
		if err != nil {
			return err
		}
		if err := tx.DeleteActivity(ctx, ownerID, activityID); err != nil {
			return err
		}
		removed = a
		return s.ledger.DeleteTx(ctx, tx, a)
	})
	if err != nil {
		return fmt.Errorf("delete activity %s: %w", activityID, err)
	}
	if removed.DataKey != "" {
		s.dropBlob(ctx, ownerID, activityID, removed.DataKey)
	}
	s.logger.Info("activity deleted", "user_id", ownerID, "activity_id", activityID)
	return nil
}

// Patch lists editable activity fields. Nil fields are left unchanged.
type Patch struct {
	Name *string
	Date *time.Time
}

// Update edits an activity. A date change moves its contribution between
// buckets in the same transaction.
func (s *Service) Update(ctx context.Context, ownerID int64, activityID string, p Patch) (ledger.Activity, error) {
	var next ledger.Activity
	err := s.store.WithUserTx(ctx, ownerID, func(ctx context.Context, tx ledger.Tx) error {
		prev, err := tx.Activity(ctx, ownerID, activityID)
		if err != nil {
			return err
		}
		next = prev
		if p.Name != nil {
			next.Name = strings.TrimSpace(*p.Name)
		}
		if p.Date != nil {
			next.Date = p.Date.UTC()
		}
		next.LastModified = s.now().UTC()
		if err := tx.SaveActivity(ctx, next); err != nil {
			return err
		}
		if next.Date.Equal(prev.Date) {
			return nil
		}
		return s.ledger.ReplaceTx(ctx, tx, prev, next)
	})
	if err != nil {
		return ledger.Activity{}, fmt.Errorf("update activity %s: %w", activityID, err)
	}
	return next, nil
}

// Report is the on-read analysis of a stored activity.
type Report struct {
	Activity ledger.Activity          `json:"activity"`
	Summary  ridestats.ActivitySummary `json:"summary"`
	Curve    ridestats.PowerCurve      `json:"power_curve"`
}

// Summary recomputes the full analysis from the stored blobs. A blob that
// fails to decode is an error here, unlike during batch rebuilds.
func (s *Service) Summary(ctx context.Context, ownerID int64, activityID string) (*Report, error) {
	a, err := s.Get(ctx, ownerID, activityID)
	if err != nil {
		return nil, fmt.Errorf("load activity %s: %w", activityID, err)
	}
	samples, err := s.loader.LoadSamples(ctx, a)
	if err != nil && !errors.Is(err, ledger.ErrNoSamples) {
		return nil, fmt.Errorf("load samples: %w", err)
	}
	var laps []ridestats.LapBoundary
	if len(a.LapsData) > 0 {
		if laps, err = codec.DecodeLaps(a.LapsData); err != nil {
			return nil, fmt.Errorf("load laps of %s: %w", activityID, err)
		}
	}

	return &Report{
		Activity: a,
		Summary: ridestats.Summarize(samples, ridestats.SummaryOptions{
			ProfileSamples: s.opts.ProfileSamples,
			Zones:          s.opts.Zones,
			Laps:           laps,
		}),
		Curve: ridestats.ComputeCurve(samples),
	}, nil
}

func (s *Service) dropBlob(ctx context.Context, ownerID int64, activityID, key string) {
	if s.blobs == nil {
		return
	}
	if err := s.blobs.Delete(ctx, key); err != nil {
		s.logger.Warn("sample blob not removed",
			"user_id", ownerID,
			"activity_id", activityID,
			"data_key", key,
			"error", err,
		)
	}
}
