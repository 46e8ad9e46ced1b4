package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/lucasjlepore/ridestats/config"
	"github.com/lucasjlepore/ridestats/objectstore"
	"github.com/lucasjlepore/ridestats/pgstore"
	"github.com/lucasjlepore/ridestats/pipeline"
)

func main() {
	var (
		filePath   = flag.String("file", "", "Path to input .fit or .gpx file")
		userID     = flag.Int64("user", 0, "Owner user id")
		name       = flag.String("name", "", "Activity name (defaults to the name in the file)")
		configPath = flag.String("config", "", "Optional YAML config file")
		migrate    = flag.Bool("migrate", false, "Create missing tables before ingesting")
	)
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s --file ride.fit --user 42 [--name \"Morning ride\"] [--config ridestats.yaml]\n", filepath.Base(os.Args[0]))
		flag.PrintDefaults()
	}
	flag.Parse()

	if strings.TrimSpace(*filePath) == "" || *userID <= 0 {
		flag.Usage()
		os.Exit(2)
	}

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
	data, err := os.ReadFile(*filePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read failed: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	store, err := pgstore.Open(ctx, cfg.DatabaseURL, pgstore.Options{Logger: logger})
	if err != nil {
		fmt.Fprintf(os.Stderr, "database: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()
	if *migrate {
		if err := store.EnsureSchema(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "schema: %v\n", err)
			os.Exit(1)
		}
	}

	svcCfg := pipeline.Config{
		Store:        store,
		Logger:       logger,
		CurveWindows: cfg.CurveWindows,
		Options: pipeline.Options{
			Zones:          cfg.PowerZones,
			ProfileSamples: cfg.ProfileSamples,
		},
	}
	if cfg.ObjectStoreEnabled() {
		blobs, err := objectstore.New(cfg.ObjectStoreClient())
		if err != nil {
			fmt.Fprintf(os.Stderr, "object store: %v\n", err)
			os.Exit(1)
		}
		if err := blobs.EnsureBucket(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "object store: %v\n", err)
			os.Exit(1)
		}
		svcCfg.Blobs = blobs
	}

	res, err := pipeline.NewService(svcCfg).Create(ctx, pipeline.Upload{
		OwnerID:  *userID,
		FileName: filepath.Base(*filePath),
		Data:     data,
		Name:     *name,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "ride_ingest failed: %v\n", err)
		os.Exit(1)
	}

	a := res.Activity
	fmt.Printf("ride_ingest complete\n")
	fmt.Printf("Activity id:     %s\n", a.ID)
	fmt.Printf("Name:            %s\n", a.Name)
	fmt.Printf("Type:            %s\n", a.Type)
	fmt.Printf("Date:            %s\n", a.Date.Format("2006-01-02 15:04:05Z07:00"))
	fmt.Printf("Distance:        %.2f km\n", a.Distance)
	fmt.Printf("Elevation gain:  %.0f m\n", a.ElevationGain)
	if a.TotalWork != nil {
		fmt.Printf("Work:            %d kJ\n", *a.TotalWork)
	}
	if a.DataKey != "" {
		fmt.Printf("Samples:         %s\n", a.DataKey)
	}
}
