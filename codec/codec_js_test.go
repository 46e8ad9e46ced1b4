//go:build js

package codec

import (
	"errors"
	"testing"

	"github.com/lucasjlepore/ridestats"
)

func TestBlobsUnavailableInJSBuilds(t *testing.T) {
	if _, err := EncodeSamples(ridestats.Samples{{Power: ridestats.IntPtr(1)}}); !errors.Is(err, errUnavailable) {
		t.Fatalf("expected errUnavailable, got %v", err)
	}
	if _, err := DecodeLaps([]byte("PAR1")); !errors.Is(err, errUnavailable) {
		t.Fatalf("expected errUnavailable, got %v", err)
	}
}
