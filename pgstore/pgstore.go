// Package pgstore is the PostgreSQL implementation of ledger.Store.
//
// Each user transaction runs at READ COMMITTED and first takes
// pg_advisory_xact_lock on a key derived from the user id, so writers for
// one user queue behind each other and release on commit or rollback.
// Serialization failures and deadlocks replay the whole function.
package pgstore

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/lucasjlepore/ridestats/ledger"
)

// Options tunes connection and retry behavior.
type Options struct {
	// MaxAttempts bounds how often a conflicting transaction is replayed.
	MaxAttempts int
	// RetryDelay is the first backoff step; it doubles per attempt up to 15s.
	RetryDelay time.Duration
	Logger     *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 5
	}
	if o.RetryDelay <= 0 {
		o.RetryDelay = 100 * time.Millisecond
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

const maxRetryDelay = 15 * time.Second

// Store implements ledger.Store over a database/sql handle.
type Store struct {
	db   *sql.DB
	opts Options
}

var _ ledger.Store = (*Store)(nil)

// New wraps an open handle.
func New(db *sql.DB, opts Options) *Store {
	return &Store{db: db, opts: opts.withDefaults()}
}

// Open connects with the pgx driver and pings until the database answers or
// MaxAttempts runs out.
func Open(ctx context.Context, dsn string, opts Options) (*Store, error) {
	opts = opts.withDefaults()
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	for attempt := 1; ; attempt++ {
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err = db.PingContext(pingCtx)
		cancel()
		if err == nil {
			opts.Logger.Info("database connection established", "attempt", attempt)
			return New(db, opts), nil
		}
		opts.Logger.Warn("database connection attempt failed",
			"attempt", attempt,
			"max_attempts", opts.MaxAttempts,
			"error", err,
		)
		if attempt >= opts.MaxAttempts {
			_ = db.Close()
			return nil, fmt.Errorf("connect to database after %d attempts: %w", attempt, err)
		}
		if err := sleep(ctx, backoff(opts.RetryDelay, attempt)); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
}

// DB exposes the underlying handle.
func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Close() error { return s.db.Close() }

// EnsureSchema creates the tables when they do not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}

// WithUserTx runs fn in a transaction holding the user's advisory lock.
func (s *Store) WithUserTx(ctx context.Context, userID int64, fn func(ctx context.Context, tx ledger.Tx) error) error {
	for attempt := 1; ; attempt++ {
		err := s.runUserTx(ctx, userID, fn)
		if err == nil {
			return nil
		}
		if !isRetryable(err) {
			return err
		}
		if attempt >= s.opts.MaxAttempts {
			return fmt.Errorf("user %d after %d attempts: %w: %v", userID, attempt, ledger.ErrConflict, err)
		}
		delay := backoff(s.opts.RetryDelay, attempt)
		s.opts.Logger.Warn("user transaction conflict, retrying",
			"user_id", userID,
			"attempt", attempt,
			"delay_seconds", delay.Seconds(),
			"error", err,
		)
		if err := sleep(ctx, delay); err != nil {
			return err
		}
	}
}

func (s *Store) runUserTx(ctx context.Context, userID int64, fn func(ctx context.Context, tx ledger.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, userLockKey(userID)); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("lock user %d: %w", userID, err)
	}
	if err := fn(ctx, &pgTx{tx: tx}); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// userIDsQuery includes users whose last activity is gone but whose buckets
// or curves still hold its contribution.
const userIDsQuery = `SELECT owner_id FROM activities
UNION SELECT user_id FROM historical_stats
UNION SELECT user_id FROM user_power_curves
ORDER BY 1`

// UserIDs lists every user with activities, buckets or curves.
func (s *Store) UserIDs(ctx context.Context) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, userIDsQuery)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan user id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func backoff(initial time.Duration, attempt int) time.Duration {
	delay := initial * time.Duration(1<<uint(attempt-1))
	if delay <= 0 || delay > maxRetryDelay {
		delay = maxRetryDelay
	}
	return delay
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
