// Package jobs runs the periodic per-user batch work: rebuilding stats
// buckets and recomputing power curves.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/lucasjlepore/ridestats/ledger"
)

const (
	JobStatsRebuild   = "stats-rebuild"
	JobCurveRecompute = "power-curve-recompute"
)

// UserLister enumerates users that own activities.
type UserLister interface {
	UserIDs(ctx context.Context) ([]int64, error)
}

type Rebuilder interface {
	Rebuild(ctx context.Context, userID int64) (ledger.RebuildReport, error)
}

type Recomputer interface {
	Recompute(ctx context.Context, userID int64) (ledger.RecomputeReport, error)
}

// Runner fans a job out over every user with bounded concurrency. A failure
// for one user is logged and counted; the others still run.
type Runner struct {
	Users       UserLister
	Stats       Rebuilder
	Curves      Recomputer
	Concurrency int
	Logger      *slog.Logger
}

// BatchReport summarizes one pass over all users.
type BatchReport struct {
	Job      string
	Users    int
	Failed   int
	Duration time.Duration
}

// RebuildAll rebuilds every user's stats buckets.
func (r *Runner) RebuildAll(ctx context.Context) (BatchReport, error) {
	return r.forEachUser(ctx, JobStatsRebuild, func(ctx context.Context, userID int64) error {
		_, err := r.Stats.Rebuild(ctx, userID)
		return err
	})
}

// RecomputeAllCurves recomputes every user's power-curve set.
func (r *Runner) RecomputeAllCurves(ctx context.Context) (BatchReport, error) {
	return r.forEachUser(ctx, JobCurveRecompute, func(ctx context.Context, userID int64) error {
		_, err := r.Curves.Recompute(ctx, userID)
		return err
	})
}

func (r *Runner) logger() *slog.Logger {
	if r.Logger == nil {
		return slog.Default()
	}
	return r.Logger
}

func (r *Runner) forEachUser(ctx context.Context, job string, fn func(ctx context.Context, userID int64) error) (BatchReport, error) {
	start := time.Now()
	report := BatchReport{Job: job}
	ids, err := r.Users.UserIDs(ctx)
	if err != nil {
		return report, fmt.Errorf("%s: list users: %w", job, err)
	}

	limit := r.Concurrency
	if limit <= 0 {
		limit = 1
	}
	var (
		g       errgroup.Group
		started atomic.Int64
		failed  atomic.Int64
	)
	g.SetLimit(limit)
	// Cancellation stops new users from starting; a user already started
	// runs to completion on a context that is never cancelled.
	runCtx := context.WithoutCancel(ctx)
	for _, id := range ids {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			started.Add(1)
			if err := fn(runCtx, id); err != nil {
				failed.Add(1)
				r.logger().Error("job failed for user", "job", job, "user_id", id, "error", err)
			}
			return nil
		})
	}
	_ = g.Wait()

	report.Users = int(started.Load())
	report.Failed = int(failed.Load())
	report.Duration = time.Since(start)
	r.logger().Info("job finished",
		"job", job,
		"users", report.Users,
		"failed", report.Failed,
		"duration_seconds", report.Duration.Seconds(),
	)
	if err := ctx.Err(); err != nil {
		return report, fmt.Errorf("%s interrupted: %w", job, err)
	}
	return report, nil
}
