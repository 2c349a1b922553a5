package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvConfigPath names the variable holding an optional YAML config path.
const EnvConfigPath = "FMPMUNGE_CONFIG"

// Load builds the configuration from defaults, the YAML file at path (skipped
// when path is empty) and the process environment.
func Load(path string) (Config, error) {
	return LoadWith(path, os.LookupEnv)
}

// LoadWith is Load with an injectable environment lookup.
func LoadWith(path string, lookup func(string) (string, bool)) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := decodeYAML(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("decode config %s: %w", path, err)
		}
	}
	if err := applyEnv(&cfg, lookup); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// decodeYAML decodes data over cfg, rejecting unknown keys. An empty document
// leaves cfg untouched.
func decodeYAML(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	var errs []error
	num := func(key string, dst *int) {
		if v, ok := lookup(key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("env %s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	dur := func(key string, dst *time.Duration) {
		if v, ok := lookup(key); ok && v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("env %s: %w", key, err))
				return
			}
			*dst = d
		}
	}

	str("LOGLEVEL", &cfg.LogLevel)
	str("LOG_FILE", &cfg.LogFile)
	str("OUTPUT_PATH", &cfg.OutputPath)
	str("JOB", &cfg.Job)
	num("WORKERS", &cfg.Workers)
	str("LC_BASE_URL", &cfg.Authority.BaseURL)
	dur("LOOKUP_INTERVAL", &cfg.Authority.Interval)
	dur("LOOKUP_TIMEOUT", &cfg.Authority.Timeout)
	str("METRICS_BACKEND", &cfg.Metrics.Backend)
	str("PUSHGATEWAY_URL", &cfg.Metrics.PushgatewayURL)
	str("DOGSTATSD_ADDR", &cfg.Metrics.DogStatsDAddr)
	str("STORAGE_KIND", &cfg.Storage.Kind)
	str("STORAGE_DSN", &cfg.Storage.DSN)
	str("STORAGE_TABLE", &cfg.Storage.Table)

	return errors.Join(errs...)
}
