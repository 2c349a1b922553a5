// Package metrics provides a small, backend-agnostic abstraction for recording
// operational metrics from a munge run.
//
// The package exposes a narrow Backend interface (counters and timings) and a
// global, pluggable backend that defaults to a no-op, so instrumentation is
// always safe to call even when no metrics system is configured. Concrete
// systems (Prometheus Pushgateway, DogStatsD) live in subpackages.
//
// Metric names:
//
//   - fmpmunge_pass_total{job,pass,status}
//   - fmpmunge_pass_duration_seconds{job,pass,status}
//   - fmpmunge_lookups_total{job,kind,outcome}
//   - fmpmunge_rows_total{job,kind}
package metrics

import (
	"sync"
	"time"
)

// Metric names shared by the helpers and the backends.
const (
	PassTotal    = "fmpmunge_pass_total"
	PassDuration = "fmpmunge_pass_duration_seconds"
	LookupsTotal = "fmpmunge_lookups_total"
	RowsTotal    = "fmpmunge_rows_total"
)

// Labels are string key/value pairs attached to a metric.
type Labels map[string]string

// Backend is the minimal interface for metrics backends.
type Backend interface {
	// IncCounter increments a counter by delta.
	IncCounter(name string, delta float64, labels Labels)
	// ObserveHistogram records a value in a latency/duration style metric.
	ObserveHistogram(name string, value float64, labels Labels)
	// Flush pushes or flushes metrics, if the backend needs it (e.g. Pushgateway).
	Flush() error
}

type nopBackend struct{}

func (nopBackend) IncCounter(string, float64, Labels)       {}
func (nopBackend) ObserveHistogram(string, float64, Labels) {}
func (nopBackend) Flush() error                             { return nil }

var (
	mu      sync.RWMutex
	backend Backend = nopBackend{}
)

// SetBackend installs a concrete backend. Passing nil keeps the existing backend.
func SetBackend(b Backend) {
	if b == nil {
		return
	}
	mu.Lock()
	backend = b
	mu.Unlock()
}

func current() Backend {
	mu.RLock()
	defer mu.RUnlock()
	return backend
}

// Flush delegates to the current backend.
func Flush() error {
	return current().Flush()
}

// RecordStep records one execution of a pipeline pass: a counter and a
// duration, both labeled with success/failure.
func RecordStep(job, pass string, err error, d time.Duration) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	lbls := Labels{
		"job":    job,
		"pass":   pass,
		"status": status,
	}
	b := current()
	b.IncCounter(PassTotal, 1, lbls)
	b.ObserveHistogram(PassDuration, d.Seconds(), lbls)
}

// RecordLookup counts one authority lookup. kind names the resolver
// ("subject", "name_type"); outcome is "hit" or "miss".
func RecordLookup(job, kind, outcome string) {
	current().IncCounter(LookupsTotal, 1, Labels{
		"job":     job,
		"kind":    kind,
		"outcome": outcome,
	})
}

// RecordRows increments a row-level counter, e.g. kind "read" or "written".
func RecordRows(job, kind string, delta int64) {
	if delta <= 0 {
		return
	}
	current().IncCounter(RowsTotal, float64(delta), Labels{
		"job":  job,
		"kind": kind,
	})
}
