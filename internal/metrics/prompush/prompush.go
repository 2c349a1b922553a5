// Package prompush implements a Prometheus Pushgateway backend for the
// metrics package.
//
// A munge run is a short-lived batch job, so metrics are pushed to a
// Pushgateway at the end of the run instead of being scraped. The job label
// is the Pushgateway grouping key; the run ID is attached as an extra
// grouping label so concurrent runs do not overwrite each other.
package prompush

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"fmpmunge/internal/metrics"
)

// Backend is a Prometheus Pushgateway metrics backend.
type Backend struct {
	gatewayURL string
	jobName    string
	runID      string
	reg        *prometheus.Registry

	passCounter  *prometheus.CounterVec // fmpmunge_pass_total
	passDuration *prometheus.SummaryVec // fmpmunge_pass_duration_seconds
	lookups      *prometheus.CounterVec // fmpmunge_lookups_total
	rows         *prometheus.CounterVec // fmpmunge_rows_total

	// push is swapped in tests.
	push func() error
}

// NewBackend constructs a Pushgateway backend. gatewayURL is required; an
// empty jobName defaults to "fmpmunge". runID may be empty.
func NewBackend(jobName, gatewayURL, runID string) (*Backend, error) {
	if gatewayURL == "" {
		return nil, fmt.Errorf("prompush: gateway URL is required")
	}
	if jobName == "" {
		jobName = "fmpmunge"
	}

	b := &Backend{
		gatewayURL: gatewayURL,
		jobName:    jobName,
		runID:      runID,
		reg:        prometheus.NewRegistry(),
		passCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metrics.PassTotal,
				Help: "Pipeline pass executions, partitioned by pass and status.",
			},
			[]string{"pass", "status"},
		),
		passDuration: prometheus.NewSummaryVec(
			prometheus.SummaryOpts{
				Name:       metrics.PassDuration,
				Help:       "Duration of pipeline passes in seconds.",
				Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
			},
			[]string{"pass", "status"},
		),
		lookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metrics.LookupsTotal,
				Help: "Authority lookups, partitioned by resolver kind and outcome.",
			},
			[]string{"kind", "outcome"},
		),
		rows: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metrics.RowsTotal,
				Help: "Row counts per kind (read, written, exported).",
			},
			[]string{"kind"},
		),
	}

	for name, c := range map[string]prometheus.Collector{
		"pass counter":   b.passCounter,
		"pass summary":   b.passDuration,
		"lookup counter": b.lookups,
		"row counter":    b.rows,
	} {
		if err := b.reg.Register(c); err != nil {
			return nil, fmt.Errorf("prompush: register %s: %w", name, err)
		}
	}

	b.push = b.pushToGateway
	return b, nil
}

// IncCounter routes known metric names to their collectors and ignores the rest.
func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	switch name {
	case metrics.PassTotal:
		b.passCounter.WithLabelValues(labels["pass"], labels["status"]).Add(delta)
	case metrics.LookupsTotal:
		b.lookups.WithLabelValues(labels["kind"], labels["outcome"]).Add(delta)
	case metrics.RowsTotal:
		b.rows.WithLabelValues(labels["kind"]).Add(delta)
	}
}

// ObserveHistogram records pass durations; other names are ignored.
func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	if name != metrics.PassDuration {
		return
	}
	b.passDuration.WithLabelValues(labels["pass"], labels["status"]).Observe(value)
}

// Flush pushes the current registry to the Pushgateway.
func (b *Backend) Flush() error {
	return b.push()
}

func (b *Backend) pushToGateway() error {
	p := push.New(b.gatewayURL, b.jobName).Gatherer(b.reg)
	if b.runID != "" {
		p = p.Grouping("run_id", b.runID)
	}
	if err := p.Push(); err != nil {
		return fmt.Errorf("prompush: push: %w", err)
	}
	return nil
}
