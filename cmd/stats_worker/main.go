package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"

	"github.com/lucasjlepore/ridestats/config"
	"github.com/lucasjlepore/ridestats/jobs"
	"github.com/lucasjlepore/ridestats/ledger"
	"github.com/lucasjlepore/ridestats/objectstore"
	"github.com/lucasjlepore/ridestats/pgstore"
)

func main() {
	var (
		configPath = flag.String("config", "", "Optional YAML config file")
		once       = flag.Bool("once", false, "Run each job a single time and exit")
		userID     = flag.Int64("user", 0, "Only rebuild this user's stats and curves, then exit")
		migrate    = flag.Bool("migrate", false, "Create missing tables on start")
	)
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [--config ridestats.yaml] [--once] [--user 42]\n", filepath.Base(os.Args[0]))
		flag.PrintDefaults()
	}
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if cfg.DatabaseURL == "" {
		fmt.Fprintf(os.Stderr, "DATABASE_URL is required\n")
		os.Exit(1)
	}
	logger, err := config.NewLogger(cfg.Log, os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger, *once, *userID, *migrate); err != nil {
		logger.Error("stats_worker failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger, once bool, userID int64, migrate bool) error {
	store, err := pgstore.Open(ctx, cfg.DatabaseURL, pgstore.Options{Logger: logger})
	if err != nil {
		return err
	}
	defer store.Close()
	if migrate {
		if err := store.EnsureSchema(ctx); err != nil {
			return err
		}
	}

	loader := ledger.BlobLoader{}
	if cfg.ObjectStoreEnabled() {
		blobs, err := objectstore.New(cfg.ObjectStoreClient())
		if err != nil {
			return err
		}
		loader.Blobs = blobs
	}
	lcfg := ledger.Config{Loader: loader, Logger: logger, CurveWindows: cfg.CurveWindows}
	stats := ledger.New(store, lcfg)
	curves := ledger.NewCurveBook(store, lcfg)

	if userID > 0 {
		// A started rebuild finishes even if the worker is signalled.
		ctx := context.WithoutCancel(ctx)
		report, err := stats.Rebuild(ctx, userID)
		if err != nil {
			return err
		}
		curveReport, err := curves.Recompute(ctx, userID)
		if err != nil {
			return err
		}
		fmt.Printf("user %d: %d activities, %d backfilled, %d buckets, %d curves folded\n",
			userID, report.Activities, report.Backfilled, report.Buckets, curveReport.Activities)
		return nil
	}

	runner := &jobs.Runner{
		Users:       store,
		Stats:       stats,
		Curves:      curves,
		Concurrency: cfg.JobConcurrency,
		Logger:      logger,
	}
	if once {
		if _, err := runner.RebuildAll(ctx); err != nil {
			return err
		}
		_, err := runner.RecomputeAllCurves(ctx)
		return err
	}

	leader := func(ctx context.Context, name string) (func(), bool, error) {
		lock, ok, err := store.TryLeaderLock(ctx, name)
		if err != nil || !ok {
			return nil, ok, err
		}
		return func() {
			if err := lock.Unlock(context.Background()); err != nil {
				logger.Warn("leader lock release failed", "job", name, "error", err)
			}
		}, true, nil
	}

	logger.Info("stats worker started",
		"stats_every", cfg.StatsInterval().String(),
		"curves_every", cfg.CurveInterval().String(),
		"concurrency", cfg.JobConcurrency,
	)
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		jobs.LeaderLoop(ctx, logger, leader, jobs.JobStatsRebuild, cfg.StatsInterval(), func(ctx context.Context) error {
			_, err := runner.RebuildAll(ctx)
			return err
		})
	}()
	go func() {
		defer wg.Done()
		jobs.LeaderLoop(ctx, logger, leader, jobs.JobCurveRecompute, cfg.CurveInterval(), func(ctx context.Context) error {
			_, err := runner.RecomputeAllCurves(ctx)
			return err
		})
	}()
	wg.Wait()
	logger.Info("stats worker stopped")
	return nil
}
