package authority

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fmpmunge/internal/table"
)

// countingResolver records every call and answers from a fixed map.
type countingResolver struct {
	mu      sync.Mutex
	answers map[string]string
	calls   map[string]int
	times   []time.Time
}

func newCountingResolver(answers map[string]string) *countingResolver {
	return &countingResolver{answers: answers, calls: map[string]int{}}
}

func (r *countingResolver) Resolve(_ context.Context, term string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls[term]++
	r.times = append(r.times, time.Now())
	if v, ok := r.answers[term]; ok {
		return v, nil
	}
	return "", ErrNotFound
}

func TestCollectTermsDedupesAcrossRows(t *testing.T) {
	rows := make([]table.Row, 0, 52)
	for range 50 {
		rows = append(rows, table.Row{"Subject Heading": "Cats"})
	}
	rows = append(rows,
		table.Row{"Subject Heading": "Dogs|Cats"},
		table.Row{"Subject Heading": ""},
	)
	tbl := table.New([]string{"Subject Heading"}, rows)

	assert.Equal(t, []string{"Cats", "Dogs"}, CollectTerms(tbl, "Subject Heading"))
}

func TestBuildCacheResolvesEachTermOnce(t *testing.T) {
	rows := make([]table.Row, 0, 50)
	for range 50 {
		rows = append(rows, table.Row{"Subject Heading": "Cats"})
	}
	tbl := table.New([]string{"Subject Heading"}, rows)
	r := newCountingResolver(map[string]string{"Cats": "http://id.loc.gov/authorities/subjects/sh85021262"})

	cache, st, err := BuildCache(context.Background(), CollectTerms(tbl, "Subject Heading"), r, CacheOptions{Kind: "subject"})
	require.NoError(t, err)

	assert.Equal(t, 1, r.calls["Cats"])
	assert.Equal(t, Cache{"Cats": "http://id.loc.gov/authorities/subjects/sh85021262"}, cache)
	assert.Equal(t, 1, st.Terms)
	assert.Equal(t, 1, st.Resolved)
	assert.Zero(t, st.Failed)
}

func TestBuildCacheOmitsFailures(t *testing.T) {
	r := ResolverFunc(func(_ context.Context, term string) (string, error) {
		switch term {
		case "ok":
			return "uri:ok", nil
		case "ambiguous":
			return "", ErrAmbiguous
		case "blank":
			return "", nil
		default:
			return "", errors.New("connection reset")
		}
	})

	cache, st, err := BuildCache(context.Background(), []string{"ambiguous", "blank", "network", "ok"}, r, CacheOptions{})
	require.NoError(t, err)

	assert.Equal(t, Cache{"ok": "uri:ok"}, cache)
	v, ok := cache.Lookup("network")
	assert.False(t, ok)
	assert.Empty(t, v)
	assert.Equal(t, Stats{Terms: 4, Resolved: 1, Failed: 3, Elapsed: st.Elapsed}, st)
}

func TestBuildCachePacesCalls(t *testing.T) {
	r := newCountingResolver(map[string]string{"a": "1", "b": "2", "c": "3"})
	interval := 30 * time.Millisecond

	_, _, err := BuildCache(context.Background(), []string{"a", "b", "c"}, r, CacheOptions{Interval: interval})
	require.NoError(t, err)

	require.Len(t, r.times, 3)
	for i := 1; i < len(r.times); i++ {
		gap := r.times[i].Sub(r.times[i-1])
		// allow a little scheduler slack below the nominal interval
		assert.GreaterOrEqual(t, gap, interval-5*time.Millisecond, "gap %d", i)
	}
}

func TestBuildCacheTimeoutIsAFailure(t *testing.T) {
	r := ResolverFunc(func(ctx context.Context, term string) (string, error) {
		if term == "slow" {
			<-ctx.Done()
			return "", ctx.Err()
		}
		return "uri:" + term, nil
	})

	cache, st, err := BuildCache(context.Background(), []string{"fast", "slow"}, r, CacheOptions{Timeout: 10 * time.Millisecond})
	require.NoError(t, err)
	assert.Equal(t, Cache{"fast": "uri:fast"}, cache)
	assert.Equal(t, 1, st.Failed)
}

func TestBuildCacheCancelReturnsPartial(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r := ResolverFunc(func(_ context.Context, term string) (string, error) {
		if term == "b" {
			cancel()
			return "", context.Canceled
		}
		return strings.ToUpper(term), nil
	})

	cache, _, err := BuildCache(ctx, []string{"a", "b", "c"}, r, CacheOptions{})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, Cache{"a": "A"}, cache)
}
