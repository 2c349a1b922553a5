package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fmpmunge/internal/compose"
	"fmpmunge/internal/table"
)

func envMap(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func writeFile(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "fmpmunge.yaml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadWith("", envMap(nil))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Empty(t, Validate(cfg))
}

func TestLoadFileThenEnv(t *testing.T) {
	path := writeFile(t, `
log_level: DEBUG
output_path: out/a.csv
workers: 4
authority:
  interval: 500ms
  timeout: 3s
storage:
  kind: sqlite
  dsn: file:test.db
rules:
  - target: nameDates
    align_on: Authoritized Name
    chunks:
      - column: Authoritized Name
      - text: ", "
      - func: date_range
        args: {start_date: Start Date, end_date: End Date}
`)
	cfg, err := LoadWith(path, envMap(map[string]string{
		"LOGLEVEL":        "WARN",
		"LOOKUP_INTERVAL": "1s",
		"STORAGE_TABLE":   "munged",
		"JOB":             "",
	}))
	require.NoError(t, err)

	assert.Equal(t, "WARN", cfg.LogLevel)
	assert.Equal(t, "out/a.csv", cfg.OutputPath)
	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, time.Second, cfg.Authority.Interval)
	assert.Equal(t, 3*time.Second, cfg.Authority.Timeout)
	assert.Equal(t, "sqlite", cfg.Storage.Kind)
	assert.Equal(t, "munged", cfg.Storage.Table)
	assert.Equal(t, 500, cfg.Storage.BatchSize)
	assert.Equal(t, "fmpmunge", cfg.Job)
	require.Len(t, cfg.Rules, 1)
	assert.Len(t, cfg.Rules[0].Chunks, 3)
	assert.Empty(t, Validate(cfg))
}

func TestLoadErrors(t *testing.T) {
	_, err := LoadWith(filepath.Join(t.TempDir(), "missing.yaml"), envMap(nil))
	require.Error(t, err)

	_, err = LoadWith(writeFile(t, "no_such_key: 1\n"), envMap(nil))
	require.Error(t, err)

	_, err = LoadWith("", envMap(map[string]string{"WORKERS": "many", "LOOKUP_TIMEOUT": "soon"}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "WORKERS")
	assert.Contains(t, err.Error(), "LOOKUP_TIMEOUT")
}

func TestLoadEmptyFile(t *testing.T) {
	cfg, err := LoadWith(writeFile(t, ""), envMap(nil))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestRuleBuild(t *testing.T) {
	sep := ", "
	r := Rule{
		Target: "nameDates",
		Mask:   &Mask{Column: "Authority Used", Value: "viaf"},
		Chunks: []Chunk{
			{Column: "Authoritized Name"},
			{Text: &sep},
			{Func: "build_uri", Args: map[string]string{"authority": "Authority Used", "id": "Authority ID"}},
		},
	}
	cr, err := r.Build()
	require.NoError(t, err)

	v, err := cr.Value(table.Row{
		"Authoritized Name": "Smith, John|Doe, Jane",
		"Authority Used":    "viaf|local",
		"Authority ID":      "100|",
	})
	require.NoError(t, err)
	assert.Equal(t, "Smith, John, http://viaf.org/viaf/100", v)
}

func TestRuleBuildErrors(t *testing.T) {
	text := "x"
	tests := []struct {
		name string
		rule Rule
		want error
	}{
		{"no chunks", Rule{Target: "T"}, compose.ErrMalformedTemplate},
		{"two kinds", Rule{Target: "T", Chunks: []Chunk{{Text: &text, Column: "A"}}}, compose.ErrMalformedTemplate},
		{"empty chunk", Rule{Target: "T", Chunks: []Chunk{{}}}, compose.ErrMalformedTemplate},
		{"func without args", Rule{Target: "T", Chunks: []Chunk{{Func: "build_uri"}}}, compose.ErrMalformedTemplate},
		{"args without func", Rule{Target: "T", Chunks: []Chunk{{Args: map[string]string{"id": "A"}}}}, compose.ErrMalformedTemplate},
		{"unknown func", Rule{Target: "T", Chunks: []Chunk{{Func: "shout", Args: map[string]string{"x": "A"}}}}, compose.ErrMalformedTemplate},
		{"half mask", Rule{Target: "T", Mask: &Mask{Column: "A"}, Chunks: []Chunk{{Column: "A"}}}, compose.ErrMaskArgument},
		{"no target", Rule{Chunks: []Chunk{{Column: "A"}}}, compose.ErrMalformedTemplate},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.rule.Build()
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestBuildRulesCollectsAll(t *testing.T) {
	cfg := Default()
	cfg.Rules = []Rule{
		{Target: "A", Chunks: []Chunk{{Column: "X"}}},
		{Target: "B"},
		{Target: "C", Mask: &Mask{Value: "v"}, Chunks: []Chunk{{Column: "X"}}},
	}
	_, err := cfg.BuildRules()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rules[1]")
	assert.Contains(t, err.Error(), "rules[2]")

	cfg.Rules = cfg.Rules[:1]
	rules, err := cfg.BuildRules()
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, "A", rules[0].Target)
}
