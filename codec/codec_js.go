//go:build js

package codec

import (
	"errors"

	"github.com/lucasjlepore/ridestats"
)

// The parquet stack does not build for js/wasm.
var errUnavailable = errors.New("codec: parquet blobs are not available in js builds")

func EncodeSamples(ridestats.Samples) ([]byte, error) { return nil, errUnavailable }

func DecodeSamples([]byte) (ridestats.Samples, error) { return nil, errUnavailable }

func EncodeLaps([]ridestats.LapBoundary) ([]byte, error) { return nil, errUnavailable }

func DecodeLaps([]byte) ([]ridestats.LapBoundary, error) { return nil, errUnavailable }
