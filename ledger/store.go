package ledger

import (
	"context"
	"errors"

	"github.com/lucasjlepore/ridestats"
)

var (
	// ErrConflict is returned when a user transaction kept conflicting
	// with concurrent writers after all retries.
	ErrConflict = errors.New("ledger: concurrent update conflict")
	// ErrNotFound is returned for a missing activity.
	ErrNotFound = errors.New("ledger: not found")
	// ErrInvalidPeriod is returned for a malformed period key.
	ErrInvalidPeriod = errors.New("ledger: invalid period key")
)

// Store persists activities, stats buckets and power curves.
type Store interface {
	// WithUserTx runs fn in one transaction holding the user's exclusive
	// lock. fn may run more than once when the store retries a conflict;
	// all writes commit together or not at all.
	WithUserTx(ctx context.Context, userID int64, fn func(ctx context.Context, tx Tx) error) error
	// UserIDs lists every user that owns at least one activity.
	UserIDs(ctx context.Context) ([]int64, error)
}

// Tx is the set of reads and writes available inside a user transaction.
type Tx interface {
	Bucket(ctx context.Context, userID int64, key PeriodKey) (Bucket, bool, error)
	Buckets(ctx context.Context, userID int64) ([]Bucket, error)
	PutBucket(ctx context.Context, b Bucket) error
	DeleteBuckets(ctx context.Context, userID int64) error

	Activities(ctx context.Context, userID int64) ([]Activity, error)
	Activity(ctx context.Context, userID int64, activityID string) (Activity, error)
	SaveActivity(ctx context.Context, a Activity) error
	DeleteActivity(ctx context.Context, userID int64, activityID string) error

	Curves(ctx context.Context, userID int64) (ridestats.CurveSet, error)
	PutCurves(ctx context.Context, userID int64, set ridestats.CurveSet) error
}
