// Package datasource defines where munge input bytes come from.
package datasource

import (
	"context"
	"io"
)

// Source opens the raw bytes of an exported table. Callers own the returned
// ReadCloser.
type Source interface {
	Open(ctx context.Context) (io.ReadCloser, error)

	// Name identifies the source in logs and diagnostics (a path or URL).
	Name() string
}
