// Package config holds the run configuration of the munge tool.
//
// Values are layered: built-in defaults, then an optional YAML file, then
// environment variables. A .env file, when present, is loaded into the
// environment by the caller before Load runs.
//
// Example file:
//
//	log_level: DEBUG
//	output_path: ../output/processed_data.csv
//	authority:
//	  interval: 200ms
//	  timeout: 10s
//	storage:
//	  kind: sqlite
//	  dsn: file:munge.db
//	  table: processed_data
//	rules:
//	  - target: nameDates
//	    align_on: Authoritized Name
//	    chunks:
//	      - column: Authoritized Name
//	      - text: ", "
//	      - func: date_range
//	        args: {start_date: Start Date, end_date: End Date}
package config

import (
	"time"

	"fmpmunge/internal/authority/lc"
)

// Config is the top-level configuration.
type Config struct {
	// LogLevel is one of DEBUG, INFO, WARN, ERROR.
	LogLevel string `yaml:"log_level"`

	// LogFile receives the full log at LogLevel. It is truncated on start.
	LogFile string `yaml:"log_file"`

	// OutputPath is the CSV written at the end of the run.
	OutputPath string `yaml:"output_path"`

	// Job labels metrics and storage exports.
	Job string `yaml:"job"`

	// Workers bounds row-level parallelism inside compose passes.
	Workers int `yaml:"workers"`

	Authority Authority `yaml:"authority"`
	Metrics   Metrics   `yaml:"metrics"`
	Storage   Storage   `yaml:"storage"`

	// Rules are extra derived columns composed after the catalog sequence.
	Rules []Rule `yaml:"rules"`
}

// Authority configures the remote authority service.
type Authority struct {
	BaseURL string `yaml:"base_url"`

	// Interval is the minimum spacing between two lookups.
	Interval time.Duration `yaml:"interval"`

	// Timeout bounds a single lookup, retries included.
	Timeout time.Duration `yaml:"timeout"`

	MaxRetries int    `yaml:"max_retries"`
	UserAgent  string `yaml:"user_agent"`
}

// Metrics selects a metrics backend: "none", "pushgateway" or "datadog".
type Metrics struct {
	Backend        string   `yaml:"backend"`
	PushgatewayURL string   `yaml:"pushgateway_url"`
	DogStatsDAddr  string   `yaml:"dogstatsd_addr"`
	Namespace      string   `yaml:"namespace"`
	Tags           []string `yaml:"tags"`
}

// Storage configures the optional SQL export. An empty Kind disables it.
type Storage struct {
	Kind       string `yaml:"kind"`
	DSN        string `yaml:"dsn"`
	Table      string `yaml:"table"`
	BatchSize  int    `yaml:"batch_size"`
	AutoCreate bool   `yaml:"auto_create"`
}

// Rule declares one derived column.
type Rule struct {
	Target  string  `yaml:"target"`
	AlignOn string  `yaml:"align_on"`
	Mask    *Mask   `yaml:"mask"`
	Chunks  []Chunk `yaml:"chunks"`
}

// Mask restricts a rule to positions whose Column value equals Value.
type Mask struct {
	Column string `yaml:"column"`
	Value  string `yaml:"value"`
}

// Chunk is exactly one of Text, Column or Func (with Args).
type Chunk struct {
	Text   *string           `yaml:"text"`
	Column string            `yaml:"column"`
	Func   string            `yaml:"func"`
	Args   map[string]string `yaml:"args"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		LogLevel:   "INFO",
		LogFile:    "fmpmunge.log",
		OutputPath: "output/processed_data.csv",
		Job:        "fmpmunge",
		Workers:    1,
		Authority: Authority{
			BaseURL:    lc.DefaultBaseURL,
			Interval:   200 * time.Millisecond,
			Timeout:    10 * time.Second,
			MaxRetries: 2,
			UserAgent:  "fmpmunge/1.0",
		},
		Metrics: Metrics{Backend: "none"},
		Storage: Storage{
			Table:      "processed_data",
			BatchSize:  500,
			AutoCreate: true,
		},
	}
}
