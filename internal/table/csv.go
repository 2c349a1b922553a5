package table

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/unicode/norm"

	"fmpmunge/internal/datasource"
)

// utf8BOM is stripped from the first header cell if present. FileMaker
// exports on Windows commonly carry one.
const utf8BOM = "\uFEFF"

// ReadOptions configures CSV decoding. The zero value reads a
// comma-separated file and normalizes cells to NFC.
type ReadOptions struct {
	// Comma is the field delimiter. When zero, ',' is used.
	Comma rune

	// TrimSpace trims leading/trailing whitespace from each cell.
	TrimSpace bool

	// KeepUnicodeForm disables NFC normalization of cells. Normalization is on
	// by default so that a term exported in decomposed form (e + U+0301)
	// and one in composed form (U+00E9) dedupe to one authority lookup.
	KeepUnicodeForm bool
}

// Read decodes a CSV stream whose first record is the header. The whole
// input is materialized. Records whose width differs from the header are a
// hard error naming the offending line; partial tables are never returned.
func Read(r io.Reader, opt ReadOptions) (*Table, error) {
	cr := csv.NewReader(r)
	if opt.Comma != 0 {
		cr.Comma = opt.Comma
	}
	cr.ReuseRecord = true

	h, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("read csv header: empty input")
		}
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	header := normalizeHeader(h)
	if dup := firstDuplicate(header); dup != "" {
		return nil, fmt.Errorf("read csv header: duplicate column %q", dup)
	}

	var rows []Row
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			// csv.ParseError already carries the line number.
			return nil, fmt.Errorf("read csv: %w", err)
		}
		row := make(Row, len(header))
		for i, col := range header {
			v := rec[i]
			if opt.TrimSpace {
				v = strings.TrimSpace(v)
			}
			if !opt.KeepUnicodeForm {
				v = norm.NFC.String(v)
			}
			row[col] = v
		}
		rows = append(rows, row)
	}
	return New(header, rows), nil
}

// ReadSource opens src and decodes it with Read.
func ReadSource(ctx context.Context, src datasource.Source, opt ReadOptions) (*Table, error) {
	rc, err := src.Open(ctx)
	if err != nil {
		return nil, fmt.Errorf("open source: %w", err)
	}
	defer rc.Close()
	return Read(rc, opt)
}

// Write encodes t as CSV: the column schema as header, then one record per
// row aligned to it.
func Write(w io.Writer, t *Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Columns); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for i := range t.Rows {
		if err := cw.Write(t.Record(i)); err != nil {
			return fmt.Errorf("write csv %s: %w", RowRef(i), err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteFile writes t to path, creating the parent directory if it does not
// exist yet. An existing file is replaced.
func WriteFile(path string, t *Table) (err error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir %s: %w", dir, err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close %s: %w", path, cerr)
		}
	}()
	return Write(f, t)
}

// normalizeHeader trims header cells and strips a UTF-8 BOM from the first
// one. Column names are otherwise kept verbatim; the passes address columns
// by their exported display names ("Authoritized Name").
func normalizeHeader(h []string) []string {
	res := make([]string, len(h))
	for i, col := range h {
		c := strings.TrimSpace(col)
		if i == 0 {
			c = strings.TrimPrefix(c, utf8BOM)
		}
		res[i] = norm.NFC.String(c)
	}
	return res
}

func firstDuplicate(cols []string) string {
	seen := make(map[string]struct{}, len(cols))
	for _, c := range cols {
		if _, ok := seen[c]; ok {
			return c
		}
		seen[c] = struct{}{}
	}
	return ""
}
