package config

import (
	"fmt"
	"net/url"
	"slices"
	"strings"
)

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError blocks the run.
	SeverityError IssueSeverity = "error"
	// SeverityWarning is reported but does not block the run.
	SeverityWarning IssueSeverity = "warning"
)

// Issue is a single validation finding. Path is a dotted path into the
// config, e.g. "authority.interval" or "rules[1].mask".
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// HasErrors reports whether any issue is an error.
func HasErrors(issues []Issue) bool {
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			return true
		}
	}
	return false
}

var (
	logLevels      = []string{"DEBUG", "INFO", "WARN", "ERROR"}
	metricBackends = []string{"", "none", "pushgateway", "datadog"}
	storageKinds   = []string{"sqlite", "postgres", "mssql", "mysql"}
)

// Validate lints cfg without modifying it.
func Validate(cfg Config) []Issue {
	var issues []Issue
	add := func(sev IssueSeverity, path, format string, args ...any) {
		issues = append(issues, Issue{Severity: sev, Path: path, Message: fmt.Sprintf(format, args...)})
	}

	if !slices.Contains(logLevels, strings.ToUpper(cfg.LogLevel)) {
		add(SeverityError, "log_level", "unknown level %q (want one of %s)", cfg.LogLevel, strings.Join(logLevels, ", "))
	}
	if strings.TrimSpace(cfg.OutputPath) == "" {
		add(SeverityError, "output_path", "output path must not be empty")
	}
	if strings.TrimSpace(cfg.Job) == "" {
		add(SeverityWarning, "job", "job is empty; metrics will be unlabeled")
	}
	if cfg.Workers < 1 {
		add(SeverityError, "workers", "workers must be >= 1, got %d", cfg.Workers)
	}

	issues = append(issues, validateAuthority(cfg.Authority)...)
	issues = append(issues, validateMetrics(cfg.Metrics)...)
	issues = append(issues, validateStorage(cfg.Storage)...)
	issues = append(issues, validateRules(cfg.Rules)...)
	return issues
}

func validateAuthority(a Authority) []Issue {
	var issues []Issue
	if u, err := url.Parse(a.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		issues = append(issues, Issue{SeverityError, "authority.base_url", fmt.Sprintf("invalid URL %q", a.BaseURL)})
	}
	switch {
	case a.Interval < 0:
		issues = append(issues, Issue{SeverityError, "authority.interval", "interval must not be negative"})
	case a.Interval == 0:
		issues = append(issues, Issue{SeverityWarning, "authority.interval", "lookups are not paced"})
	}
	if a.Timeout < 0 {
		issues = append(issues, Issue{SeverityError, "authority.timeout", "timeout must not be negative"})
	}
	if a.MaxRetries < 0 {
		issues = append(issues, Issue{SeverityError, "authority.max_retries", "max_retries must not be negative"})
	}
	return issues
}

func validateMetrics(m Metrics) []Issue {
	var issues []Issue
	switch {
	case !slices.Contains(metricBackends, m.Backend):
		issues = append(issues, Issue{SeverityError, "metrics.backend", fmt.Sprintf("unknown backend %q", m.Backend)})
	case m.Backend == "pushgateway" && m.PushgatewayURL == "":
		issues = append(issues, Issue{SeverityError, "metrics.pushgateway_url", "required for the pushgateway backend"})
	case m.Backend == "datadog" && m.DogStatsDAddr == "":
		issues = append(issues, Issue{SeverityError, "metrics.dogstatsd_addr", "required for the datadog backend"})
	}
	return issues
}

func validateStorage(s Storage) []Issue {
	if s.Kind == "" {
		return nil
	}
	var issues []Issue
	if !slices.Contains(storageKinds, s.Kind) {
		issues = append(issues, Issue{SeverityError, "storage.kind", fmt.Sprintf("unknown kind %q (want one of %s)", s.Kind, strings.Join(storageKinds, ", "))})
	}
	if s.DSN == "" {
		issues = append(issues, Issue{SeverityError, "storage.dsn", "dsn is required when storage is enabled"})
	}
	if s.Table == "" {
		issues = append(issues, Issue{SeverityError, "storage.table", "table is required when storage is enabled"})
	}
	if s.BatchSize <= 0 {
		issues = append(issues, Issue{SeverityWarning, "storage.batch_size", "batch_size <= 0; the default of 500 is used"})
	}
	return issues
}

func validateRules(rules []Rule) []Issue {
	var issues []Issue
	seen := map[string]int{}
	for i, r := range rules {
		path := fmt.Sprintf("rules[%d]", i)
		if _, err := r.Build(); err != nil {
			issues = append(issues, Issue{SeverityError, path, err.Error()})
		}
		if prev, dup := seen[r.Target]; dup && r.Target != "" {
			issues = append(issues, Issue{SeverityWarning, path + ".target", fmt.Sprintf("target %q also written by rules[%d]; the later rule wins", r.Target, prev)})
		}
		seen[r.Target] = i
	}
	return issues
}
