// Package codec stores sample sequences and lap tables as parquet blobs.
package codec

import "errors"

// ErrMalformed is returned for blobs that cannot be decoded.
var ErrMalformed = errors.New("codec: malformed blob")
