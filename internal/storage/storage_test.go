package storage

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memRepo records every CopyFrom batch and Exec statement.
type memRepo struct {
	mu      sync.Mutex
	columns []string
	rows    [][]any
	batches int
	execs   []string
	closed  bool

	failOn  int // 1-based batch number that fails; 0 never fails
	execErr error
}

func (m *memRepo) CopyFrom(_ context.Context, columns []string, rows [][]any) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batches++
	if m.failOn != 0 && m.batches == m.failOn {
		return 0, errors.New("copy failed")
	}
	m.columns = columns
	for _, r := range rows {
		m.rows = append(m.rows, append([]any(nil), r...))
	}
	return int64(len(rows)), nil
}

func (m *memRepo) Exec(_ context.Context, sql string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.execErr != nil {
		return m.execErr
	}
	m.execs = append(m.execs, sql)
	return nil
}

func (m *memRepo) Close() { m.closed = true }

func TestNew_RoutesToRegisteredFactory(t *testing.T) {
	var got Config
	repo := &memRepo{}
	Register("memory-test", func(_ context.Context, cfg Config) (Repository, error) {
		got = cfg
		return repo, nil
	})

	cfg := Config{Kind: "memory-test", DSN: "mem://", Table: "items", Columns: []string{"a"}, KeyColumn: "a"}
	r, err := New(context.Background(), cfg)
	require.NoError(t, err)
	assert.Same(t, repo, r)
	assert.Equal(t, cfg, got)
	assert.Contains(t, Kinds(), "memory-test")
}

func TestNew_UnknownKind(t *testing.T) {
	_, err := New(context.Background(), Config{Kind: "nope"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownKind)
	assert.Contains(t, err.Error(), `"nope"`)
}

func TestNew_FactoryError(t *testing.T) {
	boom := errors.New("dial refused")
	Register("broken-test", func(context.Context, Config) (Repository, error) { return nil, boom })

	_, err := New(context.Background(), Config{Kind: "broken-test"})
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "open broken-test repository")
}
