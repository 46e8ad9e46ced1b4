// Package ledger maintains per-user historical stats and power curves.
//
// Every mutation runs inside Store.WithUserTx, so writers for one user are
// serialized while different users proceed independently. Add and Delete
// adjust buckets incrementally; Rebuild replaces them from the activity table.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/lucasjlepore/ridestats"
)

// Config wires optional collaborators. Zero values fall back to defaults.
type Config struct {
	Loader SampleLoader
	Logger *slog.Logger
	Now    func() time.Time
	// CurveWindows lists the rolling power-curve windows in months.
	CurveWindows []int
}

func (c Config) withDefaults() Config {
	if c.Loader == nil {
		c.Loader = BlobLoader{}
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}

// Ledger maintains the historical stats buckets.
type Ledger struct {
	store Store
	cfg   Config
}

// RebuildReport describes one Rebuild run.
type RebuildReport struct {
	UserID         int64
	Activities     int
	Skipped        int
	Backfilled     int
	BackfillFailed int
	Buckets        int
}

// New returns a Ledger over store.
func New(store Store, cfg Config) *Ledger {
	return &Ledger{store: store, cfg: cfg.withDefaults()}
}

// Add folds a into every bucket its date maps to.
func (l *Ledger) Add(ctx context.Context, a Activity) error {
	return l.store.WithUserTx(ctx, a.OwnerID, func(ctx context.Context, tx Tx) error {
		return l.AddTx(ctx, tx, a)
	})
}

// Delete removes a's sums and count from its buckets.
func (l *Ledger) Delete(ctx context.Context, a Activity) error {
	return l.store.WithUserTx(ctx, a.OwnerID, func(ctx context.Context, tx Tx) error {
		return l.DeleteTx(ctx, tx, a)
	})
}

// Replace applies an edit as a delete of prev followed by an add of next.
func (l *Ledger) Replace(ctx context.Context, prev, next Activity) error {
	return l.store.WithUserTx(ctx, next.OwnerID, func(ctx context.Context, tx Tx) error {
		return l.ReplaceTx(ctx, tx, prev, next)
	})
}

// AddTx is Add inside a caller-owned transaction.
func (l *Ledger) AddTx(ctx context.Context, tx Tx, a Activity) error {
	if a.Date.IsZero() {
		l.cfg.Logger.Debug("ledger add skipped: activity has no date", "user_id", a.OwnerID, "activity_id", a.ID)
		return nil
	}
	c := contributionOf(a)
	now := l.cfg.Now().UTC()
	for _, key := range PeriodKeys(a.Date) {
		b, ok, err := tx.Bucket(ctx, a.OwnerID, key)
		if err != nil {
			return fmt.Errorf("load bucket %s: %w", key, err)
		}
		if !ok {
			b = NewBucket(a.OwnerID, key)
		}
		b.add(c)
		b.LastUpdated = now
		if err := tx.PutBucket(ctx, b); err != nil {
			return fmt.Errorf("store bucket %s: %w", key, err)
		}
	}
	return nil
}

// DeleteTx is Delete inside a caller-owned transaction. Buckets that do not
// exist are left absent. Max fields are not lowered.
func (l *Ledger) DeleteTx(ctx context.Context, tx Tx, a Activity) error {
	if a.Date.IsZero() {
		return nil
	}
	c := contributionOf(a)
	now := l.cfg.Now().UTC()
	for _, key := range PeriodKeys(a.Date) {
		b, ok, err := tx.Bucket(ctx, a.OwnerID, key)
		if err != nil {
			return fmt.Errorf("load bucket %s: %w", key, err)
		}
		if !ok {
			continue
		}
		b.subtract(c)
		b.LastUpdated = now
		if err := tx.PutBucket(ctx, b); err != nil {
			return fmt.Errorf("store bucket %s: %w", key, err)
		}
	}
	return nil
}

// ReplaceTx is Replace inside a caller-owned transaction.
func (l *Ledger) ReplaceTx(ctx context.Context, tx Tx, prev, next Activity) error {
	if err := l.DeleteTx(ctx, tx, prev); err != nil {
		return err
	}
	return l.AddTx(ctx, tx, next)
}

// Rebuild recomputes every bucket of a user from the activity table in one
// transaction. Activities missing TotalWork or MaxPower are backfilled from
// their sample blob; a blob that fails to load is logged and the activity is
// folded with the scalars it has. Power curves are not touched.
func (l *Ledger) Rebuild(ctx context.Context, userID int64) (RebuildReport, error) {
	var report RebuildReport
	err := l.store.WithUserTx(ctx, userID, func(ctx context.Context, tx Tx) error {
		var err error
		report, err = l.RebuildTx(ctx, tx, userID)
		return err
	})
	if err != nil {
		return RebuildReport{}, fmt.Errorf("rebuild stats for user %d: %w", userID, err)
	}
	l.cfg.Logger.Info("stats rebuilt",
		"user_id", userID,
		"activities", report.Activities,
		"backfilled", report.Backfilled,
		"backfill_failed", report.BackfillFailed,
		"buckets", report.Buckets,
	)
	return report, nil
}

// RebuildTx is Rebuild inside a caller-owned transaction.
func (l *Ledger) RebuildTx(ctx context.Context, tx Tx, userID int64) (RebuildReport, error) {
	report := RebuildReport{UserID: userID}
	activities, err := tx.Activities(ctx, userID)
	if err != nil {
		return report, fmt.Errorf("list activities: %w", err)
	}

	acc := make(map[PeriodKey]*Bucket)
	for _, a := range activities {
		if a.Date.IsZero() {
			report.Skipped++
			continue
		}
		if a.NeedsBackfill() {
			filled, changed, err := l.backfill(ctx, a)
			switch {
			case err != nil:
				report.BackfillFailed++
				l.cfg.Logger.Warn("backfill skipped",
					"user_id", userID,
					"activity_id", a.ID,
					"error", err,
				)
			case changed:
				if err := tx.SaveActivity(ctx, filled); err != nil {
					return report, fmt.Errorf("save backfilled activity %s: %w", a.ID, err)
				}
				a = filled
				report.Backfilled++
			}
		}

		c := contributionOf(a)
		for _, key := range PeriodKeys(a.Date) {
			b, ok := acc[key]
			if !ok {
				nb := NewBucket(userID, key)
				b = &nb
				acc[key] = b
			}
			b.add(c)
		}
		report.Activities++
	}

	if err := tx.DeleteBuckets(ctx, userID); err != nil {
		return report, fmt.Errorf("clear buckets: %w", err)
	}
	keys := make([]PeriodKey, 0, len(acc))
	for k := range acc {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keyLess(keys[i], keys[j]) })

	now := l.cfg.Now().UTC()
	for _, k := range keys {
		b := acc[k]
		b.LastUpdated = now
		if err := tx.PutBucket(ctx, *b); err != nil {
			return report, fmt.Errorf("store bucket %s: %w", k, err)
		}
	}
	report.Buckets = len(keys)
	return report, nil
}

// backfill fills whichever of TotalWork and MaxPower is nil from the stored
// samples. It reports changed=false when the recording has no power.
func (l *Ledger) backfill(ctx context.Context, a Activity) (Activity, bool, error) {
	samples, err := l.cfg.Loader.LoadSamples(ctx, a)
	if err != nil {
		if errors.Is(err, ErrNoSamples) {
			return a, false, nil
		}
		return a, false, err
	}
	summary := ridestats.SummarizePower(samples)
	peak, ok := ridestats.MaxPower(samples)
	if summary == nil || !ok {
		return a, false, nil
	}
	if a.TotalWork == nil {
		work := int64(summary.TotalWorkKJ)
		a.TotalWork = &work
	}
	if a.MaxPower == nil {
		a.MaxPower = &peak
	}
	return a, true, nil
}

// Bucket returns the bucket for key. A period without activities yields a
// zero bucket rather than an error.
func (l *Ledger) Bucket(ctx context.Context, userID int64, key PeriodKey) (Bucket, error) {
	if !key.Valid() {
		return Bucket{}, fmt.Errorf("%w: %s", ErrInvalidPeriod, key)
	}
	out := NewBucket(userID, key)
	err := l.store.WithUserTx(ctx, userID, func(ctx context.Context, tx Tx) error {
		b, ok, err := tx.Bucket(ctx, userID, key)
		if err != nil {
			return err
		}
		if ok {
			out = b
		} else {
			out = NewBucket(userID, key)
		}
		return nil
	})
	if err != nil {
		return Bucket{}, fmt.Errorf("load bucket %s: %w", key, err)
	}
	return out, nil
}

// Buckets lists a user's buckets of the given types (all types when none
// are given), ordered by type then period id.
func (l *Ledger) Buckets(ctx context.Context, userID int64, types ...PeriodType) ([]Bucket, error) {
	want := make(map[PeriodType]bool, len(types))
	for _, t := range types {
		want[t] = true
	}

	var out []Bucket
	err := l.store.WithUserTx(ctx, userID, func(ctx context.Context, tx Tx) error {
		all, err := tx.Buckets(ctx, userID)
		if err != nil {
			return err
		}
		out = out[:0]
		for _, b := range all {
			if len(want) == 0 || want[b.Key.Type] {
				out = append(out, b)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list buckets: %w", err)
	}
	sort.Slice(out, func(i, j int) bool { return keyLess(out[i].Key, out[j].Key) })
	return out, nil
}
