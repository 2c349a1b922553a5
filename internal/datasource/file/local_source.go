// Package file implements a local filesystem-backed data source for FileMaker
// CSV exports.
package file

import (
	"context"
	"fmt"
	"io"
	"os"

	"fmpmunge/internal/datasource"
)

// Local opens an export from the local disk.
type Local struct{ path string }

var _ datasource.Source = (*Local)(nil)

// NewLocal returns a Local source bound to path.
func NewLocal(path string) *Local { return &Local{path: path} }

// Name returns the configured path.
func (l *Local) Name() string { return l.path }

// Open opens the configured path for reading.
//
// A context that is already done short-circuits without touching the
// filesystem. A directory is rejected up front so the CSV decoder never sees
// a confusing read error. Filesystem errors keep their identity for
// errors.Is checks (e.g. os.ErrNotExist).
func (l *Local) Open(ctx context.Context) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	fi, err := os.Stat(l.path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", l.path, err)
	}
	if fi.IsDir() {
		return nil, fmt.Errorf("open %s: is a directory", l.path)
	}
	f, err := os.Open(l.path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", l.path, err)
	}
	return f, nil
}
