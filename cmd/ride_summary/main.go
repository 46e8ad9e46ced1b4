package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/lucasjlepore/ridestats"
	"github.com/lucasjlepore/ridestats/codec"
	"github.com/lucasjlepore/ridestats/config"
	"github.com/lucasjlepore/ridestats/pipeline"
)

type output struct {
	Name    string                    `json:"name"`
	Type    string                    `json:"activity_type"`
	Date    time.Time                 `json:"date"`
	Summary ridestats.ActivitySummary `json:"summary"`
	Curve   ridestats.PowerCurve      `json:"power_curve"`
}

func main() {
	var (
		jsonOut = flag.Bool("json", false, "Emit the full summary as JSON")
		zones   = flag.String("zones", "", "Comma separated power zone upper bounds in watts, e.g. 150,200,250")
		samples = flag.Int("samples", ridestats.DefaultProfileSamples, "Elevation profile points")
		export  = flag.String("export", "", "Also write the decoded samples to this parquet file")
	)
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] <path-to-fit-or-gpx-file>\n", filepath.Base(os.Args[0]))
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(2)
	}

	bounds, err := config.ParseIntList(*zones)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid -zones: %v\n", err)
		os.Exit(2)
	}

	path := flag.Arg(0)
	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read failed: %v\n", err)
		os.Exit(1)
	}
	res, err := pipeline.Build(pipeline.Upload{FileName: filepath.Base(path), Data: data}, pipeline.Options{
		Zones:          bounds,
		ProfileSamples: *samples,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "analysis failed: %v\n", err)
		os.Exit(1)
	}

	if *export != "" {
		if err := codec.WriteSamplesFile(*export, res.Samples); err != nil {
			fmt.Fprintf(os.Stderr, "export failed: %v\n", err)
			os.Exit(1)
		}
	}

	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		err := enc.Encode(output{
			Name:    res.Activity.Name,
			Type:    res.Activity.Type,
			Date:    res.Activity.Date,
			Summary: res.Summary,
			Curve:   res.Curve,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "json encode failed: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := ridestats.FormatSummary(os.Stdout, res.Activity.Name, res.Summary, res.Curve, bounds); err != nil {
		fmt.Fprintf(os.Stderr, "write failed: %v\n", err)
		os.Exit(1)
	}
	if *export != "" {
		fmt.Printf("\nSamples written to %s\n", *export)
	}
}
