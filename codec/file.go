//go:build !js

package codec

import (
	"fmt"

	"github.com/xitongsys/parquet-go-source/local"

	"github.com/lucasjlepore/ridestats"
)

// WriteSamplesFile writes samples to a parquet file at path.
func WriteSamplesFile(path string, samples ridestats.Samples) error {
	fw, err := local.NewLocalFileWriter(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := writeSamples(fw, samples); err != nil {
		_ = fw.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
