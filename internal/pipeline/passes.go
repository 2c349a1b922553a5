package pipeline

import (
	"context"
	"fmt"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"fmpmunge/internal/authority"
	"fmpmunge/internal/compose"
	"fmpmunge/internal/table"
)

// ComposePass applies a compose.Rule to every row.
//
// With Workers > 1 rows are composed concurrently. The target column is
// added to the schema before any worker starts and each worker only writes
// its own row, so no locking is needed. When several rows fail, the error of
// the lowest row is returned.
type ComposePass struct {
	Rule    compose.Rule
	Workers int
}

func (p ComposePass) Name() string { return p.Rule.Target }

func (p ComposePass) Apply(ctx context.Context, tbl *table.Table) error {
	if err := p.Rule.Validate(); err != nil {
		return fmt.Errorf("pass %s: %w", p.Name(), err)
	}
	tbl.AddColumn(p.Rule.Target)

	if p.Workers <= 1 {
		for i, row := range tbl.Rows {
			if err := ctx.Err(); err != nil {
				return err
			}
			v, err := p.Rule.Value(row)
			if err != nil {
				return rowError(p.Name(), i, err)
			}
			row[p.Rule.Target] = v
		}
		return nil
	}

	// Rows above the lowest failure seen so far are skipped; rows below it
	// always run, so the reported row matches a sequential run.
	errs := make([]error, tbl.Len())
	var lowest atomic.Int64
	lowest.Store(int64(tbl.Len()))
	skip := func(i int) bool { return ctx.Err() != nil || int64(i) > lowest.Load() }

	var g errgroup.Group
	g.SetLimit(p.Workers)
	for i := range tbl.Rows {
		if skip(i) {
			break
		}
		g.Go(func() error {
			if skip(i) {
				return nil
			}
			row := tbl.Rows[i]
			v, err := p.Rule.Value(row)
			if err != nil {
				errs[i] = err
				lowerTo(&lowest, int64(i))
				return nil
			}
			row[p.Rule.Target] = v
			return nil
		})
	}
	_ = g.Wait() // failures are recorded in errs

	for i, err := range errs {
		if err != nil {
			return rowError(p.Name(), i, err)
		}
	}
	return ctx.Err()
}

func lowerTo(v *atomic.Int64, n int64) {
	for {
		cur := v.Load()
		if n >= cur || v.CompareAndSwap(cur, n) {
			return
		}
	}
}

// RowFunc updates one row in place.
type RowFunc func(row table.Row) error

// RowPass runs Fn over every row in order. Columns are added to the schema
// first, so they appear in the output even when Fn leaves some rows unset.
type RowPass struct {
	PassName string
	Columns  []string
	Fn       RowFunc
}

func (p RowPass) Name() string { return p.PassName }

func (p RowPass) Apply(ctx context.Context, tbl *table.Table) error {
	for _, c := range p.Columns {
		tbl.AddColumn(c)
	}
	return eachRow(ctx, tbl, p.PassName, p.Fn)
}

// EnrichFunc updates one row in place from a resolved cache.
type EnrichFunc func(row table.Row, cache authority.Cache) error

// EnrichPass builds an authority cache once for the whole table, then runs Fn
// over every row with read-only access to it.
//
// Terms selects what to resolve. When nil, the distinct piped values of
// Source are used.
type EnrichPass struct {
	PassName string
	Source   string
	Terms    func(tbl *table.Table) ([]string, error)
	Resolver authority.Resolver
	Options  authority.CacheOptions
	Columns  []string
	Fn       EnrichFunc
}

func (p EnrichPass) Name() string { return p.PassName }

func (p EnrichPass) Apply(ctx context.Context, tbl *table.Table) error {
	var terms []string
	if p.Terms != nil {
		t, err := p.Terms(tbl)
		if err != nil {
			return err
		}
		terms = t
	} else {
		terms = authority.CollectTerms(tbl, p.Source)
	}

	cache, _, err := authority.BuildCache(ctx, terms, p.Resolver, p.Options)
	if err != nil {
		return fmt.Errorf("pass %s: build cache: %w", p.PassName, err)
	}

	for _, c := range p.Columns {
		tbl.AddColumn(c)
	}
	return eachRow(ctx, tbl, p.PassName, func(row table.Row) error {
		return p.Fn(row, cache)
	})
}

// SuppressPass clears Target in every row where When is non-empty.
type SuppressPass struct {
	Target string
	When   string
}

func (p SuppressPass) Name() string { return "suppress " + p.Target }

func (p SuppressPass) Apply(ctx context.Context, tbl *table.Table) error {
	tbl.AddColumn(p.Target)
	return eachRow(ctx, tbl, p.Name(), func(row table.Row) error {
		if row[p.When] != "" {
			row[p.Target] = ""
		}
		return nil
	})
}

// RequirePass fails the run when the table lacks any of Columns.
type RequirePass struct {
	Columns []string
}

func (RequirePass) Name() string { return "require_columns" }

func (p RequirePass) Apply(_ context.Context, tbl *table.Table) error {
	return RequireColumns(tbl, p.Columns...)
}

func eachRow(ctx context.Context, tbl *table.Table, pass string, fn RowFunc) error {
	for i, row := range tbl.Rows {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(row); err != nil {
			return rowError(pass, i, err)
		}
	}
	return nil
}
