// Package pipeline runs ordered passes over a table.
//
// Each pass reads columns that exist when it starts and appends or rewrites
// derived columns. Passes run strictly in sequence; a pass may fan rows out
// across workers internally. The first error stops the run.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"fmpmunge/internal/compose"
	"fmpmunge/internal/metrics"
	"fmpmunge/internal/table"
)

// ErrMissingColumns reports input columns a pass needs but the table lacks.
var ErrMissingColumns = errors.New("missing required columns")

// Pass is one step of a Pipeline.
type Pass interface {
	Name() string
	Apply(ctx context.Context, tbl *table.Table) error
}

// RowError ties a failure to the pass, row and (when known) column that
// produced it. Row is the 0-based index into Table.Rows.
type RowError struct {
	Pass   string
	Row    int
	Column string
	Err    error
}

func (e *RowError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "pass %s: %s", e.Pass, table.RowRef(e.Row))
	if e.Column != "" {
		fmt.Fprintf(&b, ", column %q", e.Column)
	}
	fmt.Fprintf(&b, ": %v", e.Err)
	return b.String()
}

func (e *RowError) Unwrap() error { return e.Err }

// rowError wraps err for row i, lifting the column out of a compose.CellError.
func rowError(pass string, i int, err error) error {
	re := &RowError{Pass: pass, Row: i, Err: err}
	var ce *compose.CellError
	if errors.As(err, &ce) {
		re.Column = ce.Column
	}
	return re
}

// RequireColumns fails with ErrMissingColumns when tbl lacks any of cols.
func RequireColumns(tbl *table.Table, cols ...string) error {
	if missing := tbl.Missing(cols...); len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingColumns, strings.Join(missing, ", "))
	}
	return nil
}

// Pipeline is an ordered list of passes.
type Pipeline struct {
	// Job labels metrics.
	Job    string
	Logger *zap.Logger
	Passes []Pass
}

// Run applies every pass to tbl in order, stopping at the first error.
func (p *Pipeline) Run(ctx context.Context, tbl *table.Table) error {
	log := p.Logger
	if log == nil {
		log = zap.NewNop()
	}

	start := time.Now()
	for _, pass := range p.Passes {
		if err := ctx.Err(); err != nil {
			return err
		}

		t0 := time.Now()
		err := pass.Apply(ctx, tbl)
		d := time.Since(t0)
		metrics.RecordStep(p.Job, pass.Name(), err, d)
		if err != nil {
			log.Error("pass failed", zap.String("pass", pass.Name()), zap.Duration("elapsed", d), zap.Error(err))
			return err
		}
		log.Info("pass done", zap.String("pass", pass.Name()), zap.Int("rows", tbl.Len()), zap.Duration("elapsed", d))
	}

	log.Info("pipeline done",
		zap.Int("passes", len(p.Passes)),
		zap.Int("rows", tbl.Len()),
		zap.Int("columns", len(tbl.Columns)),
		zap.Duration("elapsed", time.Since(start)))
	return nil
}
