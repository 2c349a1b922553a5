package authority

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"fmpmunge/internal/metrics"
	"fmpmunge/internal/piped"
	"fmpmunge/internal/table"
)

// Resolution failures. Resolvers return these (or transport errors) and
// BuildCache treats every error the same way: the term is left out of the
// cache.
var (
	ErrNotFound  = errors.New("authority: not found")
	ErrAmbiguous = errors.New("authority: ambiguous match")
)

// Resolver looks up the canonical URI (or other value) for a term. It is
// called sequentially and may block on the network.
type Resolver interface {
	Resolve(ctx context.Context, term string) (string, error)
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(ctx context.Context, term string) (string, error)

// Resolve calls f.
func (f ResolverFunc) Resolve(ctx context.Context, term string) (string, error) {
	return f(ctx, term)
}

// Cache maps a term to its resolved value. A missing key means resolution
// failed or was never attempted.
type Cache map[string]string

// Lookup returns the value for term.
func (c Cache) Lookup(term string) (string, bool) {
	v, ok := c[term]
	return v, ok
}

// CacheOptions tunes BuildCache.
type CacheOptions struct {
	// Interval is the minimum spacing between resolver calls. Zero disables
	// pacing.
	Interval time.Duration

	// Timeout bounds each resolver call. A timed-out call counts as a
	// failed resolution. Zero means no per-call deadline.
	Timeout time.Duration

	// Kind labels log lines and metrics (e.g. "subject", "name_type").
	Kind string

	// Job labels metrics.
	Job string

	Logger *zap.Logger
}

// Stats summarizes one cache build.
type Stats struct {
	Terms    int
	Resolved int
	Failed   int
	Elapsed  time.Duration
}

// CollectTerms returns the distinct non-empty piped values of column across
// every row, sorted.
func CollectTerms(tbl *table.Table, column string) []string {
	return piped.Unique(tbl.Column(column)...)
}

// BuildCache resolves every term exactly once, in order, and returns the
// successful results. Calls are paced so that no more than one request is
// issued per opts.Interval. Failed resolutions are logged at debug level and
// omitted; they never fail the build.
//
// If ctx is canceled the build stops and the partial cache is returned with
// ctx.Err().
func BuildCache(ctx context.Context, terms []string, r Resolver, opts CacheOptions) (Cache, Stats, error) {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	log = log.With(zap.String("kind", opts.Kind))

	limit := rate.Inf
	if opts.Interval > 0 {
		limit = rate.Every(opts.Interval)
	}
	limiter := rate.NewLimiter(limit, 1)

	start := time.Now()
	cache := make(Cache, len(terms))
	st := Stats{Terms: len(terms)}

	for _, term := range terms {
		if err := limiter.Wait(ctx); err != nil {
			st.Elapsed = time.Since(start)
			return cache, st, ctxErr(ctx, err)
		}

		v, err := resolveOne(ctx, r, term, opts.Timeout)
		switch {
		case err != nil && ctx.Err() != nil:
			st.Elapsed = time.Since(start)
			return cache, st, ctx.Err()
		case err != nil:
			st.Failed++
			metrics.RecordLookup(opts.Job, opts.Kind, "miss")
			log.Debug("resolution failed", zap.String("term", term), zap.Error(err))
		case v == "":
			st.Failed++
			metrics.RecordLookup(opts.Job, opts.Kind, "miss")
			log.Debug("resolution returned no value", zap.String("term", term))
		default:
			cache[term] = v
			st.Resolved++
			metrics.RecordLookup(opts.Job, opts.Kind, "hit")
		}
	}

	st.Elapsed = time.Since(start)
	log.Info("authority cache built",
		zap.Int("terms", st.Terms),
		zap.Int("resolved", st.Resolved),
		zap.Int("failed", st.Failed),
		zap.Duration("elapsed", st.Elapsed))
	return cache, st, nil
}

func resolveOne(ctx context.Context, r Resolver, term string, timeout time.Duration) (string, error) {
	if timeout <= 0 {
		return r.Resolve(ctx, term)
	}
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return r.Resolve(cctx, term)
}

// ctxErr prefers the context's own error over the limiter's wrapped one.
func ctxErr(ctx context.Context, err error) error {
	if cerr := ctx.Err(); cerr != nil {
		return cerr
	}
	return err
}
