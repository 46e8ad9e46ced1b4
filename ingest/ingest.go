// Package ingest turns FIT and GPX recordings into normalized samples.
package ingest

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/lucasjlepore/ridestats"
)

// Format identifies a recording container.
type Format string

const (
	FormatFIT Format = "fit"
	FormatGPX Format = "gpx"
)

var (
	// ErrUnsupportedFormat is returned when the container cannot be identified.
	ErrUnsupportedFormat = errors.New("ingest: unsupported file format")
	// ErrNoRecords is returned when a recording holds no timestamped samples.
	ErrNoRecords = errors.New("ingest: recording has no samples")
)

// Recording is the decoder output handed to the analytics core.
type Recording struct {
	Format  Format
	Name    string
	Samples ridestats.Samples
	Laps    []ridestats.LapBoundary
}

// DetectFormat identifies the container from the file name, falling back to
// content sniffing.
func DetectFormat(name string, data []byte) (Format, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".fit":
		return FormatFIT, nil
	case ".gpx":
		return FormatGPX, nil
	}
	if len(data) >= 12 && string(data[8:12]) == ".FIT" {
		return FormatFIT, nil
	}
	if bytes.Contains(data[:min(len(data), 512)], []byte("<gpx")) {
		return FormatGPX, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, name)
}

// Decode parses a FIT or GPX file.
func Decode(name string, data []byte) (*Recording, error) {
	format, err := DetectFormat(name, data)
	if err != nil {
		return nil, err
	}

	var rec *Recording
	switch format {
	case FormatFIT:
		rec, err = DecodeFIT(bytes.NewReader(data))
	case FormatGPX:
		rec, err = DecodeGPX(bytes.NewReader(data))
	}
	if err != nil {
		return nil, err
	}
	if rec.Name == "" {
		rec.Name = strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	}
	return rec, nil
}
