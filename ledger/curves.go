package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lucasjlepore/ridestats"
)

// CurveBook maintains each user's power-curve set. Updates are merges, so
// replaying an activity is harmless. Deleting an activity does not lower the
// curves; Recompute rebuilds them from the stored samples.
type CurveBook struct {
	store Store
	cfg   Config
}

// RecomputeReport describes one Recompute run.
type RecomputeReport struct {
	UserID     int64
	Activities int
	Failed     int
}

// NewCurveBook returns a CurveBook over store.
func NewCurveBook(store Store, cfg Config) *CurveBook {
	return &CurveBook{store: store, cfg: cfg.withDefaults()}
}

// MergeTx folds curve, recorded on date, into the user's windows.
func (c *CurveBook) MergeTx(ctx context.Context, tx Tx, userID int64, curve ridestats.PowerCurve, date time.Time) error {
	set, err := tx.Curves(ctx, userID)
	if err != nil {
		return fmt.Errorf("load curves: %w", err)
	}
	set = ridestats.UpdateRollingWindows(set, curve, date, c.cfg.Now(), c.cfg.CurveWindows)
	if err := tx.PutCurves(ctx, userID, set); err != nil {
		return fmt.Errorf("store curves: %w", err)
	}
	return nil
}

// Merge is MergeTx in its own transaction.
func (c *CurveBook) Merge(ctx context.Context, userID int64, curve ridestats.PowerCurve, date time.Time) error {
	return c.store.WithUserTx(ctx, userID, func(ctx context.Context, tx Tx) error {
		return c.MergeTx(ctx, tx, userID, curve, date)
	})
}

// Curve returns one window of the user's curve set, empty when unknown.
func (c *CurveBook) Curve(ctx context.Context, userID int64, window string) (ridestats.PowerCurve, error) {
	set, err := c.Curves(ctx, userID)
	if err != nil {
		return nil, err
	}
	if curve, ok := set[window]; ok {
		return curve, nil
	}
	return ridestats.PowerCurve{}, nil
}

// Curves returns the user's full curve set.
func (c *CurveBook) Curves(ctx context.Context, userID int64) (ridestats.CurveSet, error) {
	var set ridestats.CurveSet
	err := c.store.WithUserTx(ctx, userID, func(ctx context.Context, tx Tx) error {
		var err error
		set, err = tx.Curves(ctx, userID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("load curves for user %d: %w", userID, err)
	}
	if set == nil {
		set = ridestats.CurveSet{}
	}
	return set, nil
}

// Recompute resets the user's curve set and folds in the curve of every
// stored activity. Activities without a sample blob are skipped; those whose
// samples cannot be loaded are logged and counted as failed.
func (c *CurveBook) Recompute(ctx context.Context, userID int64) (RecomputeReport, error) {
	var report RecomputeReport
	err := c.store.WithUserTx(ctx, userID, func(ctx context.Context, tx Tx) error {
		report = RecomputeReport{UserID: userID}
		activities, err := tx.Activities(ctx, userID)
		if err != nil {
			return fmt.Errorf("list activities: %w", err)
		}

		now := c.cfg.Now()
		set := ridestats.UpdateRollingWindows(ridestats.CurveSet{}, nil, now, now, c.cfg.CurveWindows)
		for _, a := range activities {
			if a.Date.IsZero() {
				continue
			}
			samples, err := c.cfg.Loader.LoadSamples(ctx, a)
			if errors.Is(err, ErrNoSamples) {
				continue
			}
			if err != nil {
				report.Failed++
				c.cfg.Logger.Warn("curve recompute skipped activity",
					"user_id", userID,
					"activity_id", a.ID,
					"error", err,
				)
				continue
			}
			set = ridestats.UpdateRollingWindows(set, ridestats.ComputeCurve(samples), a.Date, now, c.cfg.CurveWindows)
			report.Activities++
		}
		return tx.PutCurves(ctx, userID, set)
	})
	if err != nil {
		return RecomputeReport{}, fmt.Errorf("recompute curves for user %d: %w", userID, err)
	}
	c.cfg.Logger.Info("curves recomputed", "user_id", userID, "activities", report.Activities, "failed", report.Failed)
	return report, nil
}
