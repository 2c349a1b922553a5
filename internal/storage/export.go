package storage

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/zeebo/xxh3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"fmpmunge/internal/metrics"
	"fmpmunge/internal/table"
)

// KeyColumn is the primary-key column prepended to every export table.
const KeyColumn = "row_key"

// DefaultBatchSize is used when ExportOptions.BatchSize is not positive.
const DefaultBatchSize = 500

// ExportOptions configures Export.
type ExportOptions struct {
	// Source identifies the input (usually its base file name); it seeds the
	// row keys so re-exports of the same input replace their earlier rows.
	Source string

	BatchSize int
	Job       string
	Logger    *zap.Logger
}

// Ident converts a CSV header into a lower-case SQL identifier: accents are
// folded, runs of other characters become one underscore, and a leading digit
// gets a "c_" prefix.
func Ident(name string) string {
	fold := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	s, _, err := transform.String(fold, name)
	if err != nil {
		s = name
	}

	var b strings.Builder
	underscore := false
	for _, r := range strings.ToLower(s) {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(r)
			underscore = false
			continue
		}
		if !underscore && b.Len() > 0 {
			b.WriteByte('_')
			underscore = true
		}
	}
	out := strings.TrimSuffix(b.String(), "_")
	switch {
	case out == "":
		return "col"
	case out[0] >= '0' && out[0] <= '9':
		return "c_" + out
	}
	return out
}

// ColumnNames maps header to unique SQL identifiers, in header order.
// Collisions (including with KeyColumn) get a numeric suffix.
func ColumnNames(header []string) []string {
	used := map[string]struct{}{KeyColumn: {}}
	out := make([]string, len(header))
	for i, h := range header {
		base := Ident(h)
		name := base
		for n := 2; ; n++ {
			if _, taken := used[name]; !taken {
				break
			}
			name = base + "_" + strconv.Itoa(n)
		}
		used[name] = struct{}{}
		out[i] = name
	}
	return out
}

// Definition returns the export table for header: KeyColumn followed by one
// column per header entry.
func Definition(tableName string, header []string) TableDef {
	return TableDef{
		Table:   tableName,
		Columns: append([]string{KeyColumn}, ColumnNames(header)...),
		Key:     KeyColumn,
	}
}

// RowKey returns the stable key of the data row on the given CSV line.
func RowKey(source string, line int) string {
	return fmt.Sprintf("%016x", xxh3.HashString(source+"\x00"+strconv.Itoa(line)))
}

// Export streams every row of tbl into repo, batching through LoadBatches.
// Columns follow Definition(name, tbl.Columns).Columns, so derived columns
// are exported alongside the input header.
func Export(ctx context.Context, repo Repository, tbl *table.Table, opt ExportOptions) (int64, error) {
	log := opt.Logger
	if log == nil {
		log = zap.NewNop()
	}
	size := opt.BatchSize
	if size <= 0 {
		size = DefaultBatchSize
	}
	columns := append([]string{KeyColumn}, ColumnNames(tbl.Columns)...)

	g, gctx := errgroup.WithContext(ctx)
	rows := make(chan []any, size)

	g.Go(func() error {
		defer close(rows)
		for i := range tbl.Rows {
			rec := tbl.Record(i)
			row := make([]any, 0, len(rec)+1)
			row = append(row, RowKey(opt.Source, table.LineOf(i)))
			for _, v := range rec {
				row = append(row, v)
			}
			select {
			case rows <- row:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})

	var total int64
	g.Go(func() error {
		n, err := LoadBatches(gctx, log, columns, rows, size, repo.CopyFrom)
		total = n
		return err
	})

	err := g.Wait()
	metrics.RecordRows(opt.Job, "exported", total)
	if err != nil {
		return total, fmt.Errorf("export: %w", err)
	}
	log.Info("export complete", zap.Int64("rows", total), zap.Int("columns", len(columns)))
	return total, nil
}
