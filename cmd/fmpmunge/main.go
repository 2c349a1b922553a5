// Command fmpmunge derives catalog metadata columns from a FileMaker CSV
// export and writes the processed table to CSV (and optionally SQL).
//
// Usage:
//
//	fmpmunge <input.csv>
//
// Configuration comes from a .env file, the YAML file named by
// FMPMUNGE_CONFIG and environment variables; see package config.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"fmpmunge/internal/authority/lc"
	"fmpmunge/internal/config"
	"fmpmunge/internal/datasource/file"
	"fmpmunge/internal/datasource/httpds"
	"fmpmunge/internal/logging"
	"fmpmunge/internal/metrics"
	"fmpmunge/internal/metrics/datadog"
	"fmpmunge/internal/metrics/prompush"
	"fmpmunge/internal/pipeline"
	"fmpmunge/internal/storage"
	"fmpmunge/internal/table"

	// register all backends with the storage factory.
	_ "fmpmunge/internal/storage/all"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fmpmunge <input.csv>",
		Short: "Derive catalog metadata columns from a FileMaker export",
		Long: `fmpmunge reads a FileMaker CSV export, composes the derived name and
subject columns (resolving Library of Congress authorities where needed)
and writes the processed table to the configured output path.

Settings are read from .env, the YAML file named by FMPMUNGE_CONFIG, and
environment variables such as LOGLEVEL, LOG_FILE and OUTPUT_PATH.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			// A missing .env is fine; the environment may already be set.
			_ = godotenv.Load()

			cfg, err := config.Load(os.Getenv(config.EnvConfigPath))
			if err != nil {
				return err
			}
			if err := checkConfig(cfg, cmd.ErrOrStderr()); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg, args[0], cmd.ErrOrStderr())
		},
	}
}

// checkConfig prints every issue and fails when any is an error.
func checkConfig(cfg config.Config, w io.Writer) error {
	issues := config.Validate(cfg)
	for _, iss := range issues {
		fmt.Fprintln(w, iss.Error())
	}
	if config.HasErrors(issues) {
		return errors.New("configuration is invalid")
	}
	return nil
}

func run(ctx context.Context, cfg config.Config, input string, console io.Writer) error {
	runID := uuid.NewString()

	log, cleanup, err := logging.New(logging.Options{
		Level:   cfg.LogLevel,
		File:    cfg.LogFile,
		Console: console,
	})
	if err != nil {
		return err
	}
	defer cleanup()
	log = log.With(zap.String("run_id", runID))

	flush := setupMetrics(cfg, runID, log)
	defer flush()

	rules, err := cfg.BuildRules()
	if err != nil {
		return err
	}

	start := time.Now()
	log.Info("run started", zap.String("input", input), zap.String("job", cfg.Job))

	tbl, err := table.ReadSource(ctx, file.NewLocal(input), table.ReadOptions{})
	if err != nil {
		return err
	}
	metrics.RecordRows(cfg.Job, "read", int64(tbl.Len()))
	log.Info("input loaded", zap.Int("rows", tbl.Len()), zap.Int("columns", len(tbl.Header())))

	hc := httpds.NewClient(httpds.Config{
		Timeout:    cfg.Authority.Timeout,
		MaxRetries: cfg.Authority.MaxRetries,
		UserAgent:  cfg.Authority.UserAgent,
	})
	authorities := lc.NewClient(cfg.Authority.BaseURL, hc)

	passes := pipeline.Catalog(pipeline.Deps{
		Subjects:  authorities.Subjects(),
		NameTypes: authorities.EntityTypes(),
		Interval:  cfg.Authority.Interval,
		Timeout:   cfg.Authority.Timeout,
		Workers:   cfg.Workers,
		Job:       cfg.Job,
		Logger:    log,
	})
	for _, r := range rules {
		passes = append(passes, pipeline.ComposePass{Rule: r, Workers: cfg.Workers})
	}

	p := pipeline.Pipeline{Job: cfg.Job, Logger: log, Passes: passes}
	if err := p.Run(ctx, tbl); err != nil {
		return err
	}

	if err := table.WriteFile(cfg.OutputPath, tbl); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	metrics.RecordRows(cfg.Job, "written", int64(tbl.Len()))
	log.Info("output written", zap.String("path", cfg.OutputPath), zap.Int("rows", tbl.Len()))

	if cfg.Storage.Kind != "" {
		if err := export(ctx, cfg, tbl, input, log); err != nil {
			return err
		}
	}

	log.Info("run complete", zap.Duration("elapsed", time.Since(start).Truncate(time.Millisecond)))
	return nil
}

// setupMetrics installs the configured backend and returns its flush func.
// Backend failures only disable metrics.
func setupMetrics(cfg config.Config, runID string, log *zap.Logger) func() {
	var (
		b   metrics.Backend
		err error
	)
	switch cfg.Metrics.Backend {
	case "pushgateway":
		b, err = prompush.NewBackend(cfg.Job, cfg.Metrics.PushgatewayURL, runID)
	case "datadog":
		b, err = datadog.NewBackend(datadog.Config{
			Addr:       cfg.Metrics.DogStatsDAddr,
			Namespace:  cfg.Metrics.Namespace,
			GlobalTags: append([]string{"run_id:" + runID}, cfg.Metrics.Tags...),
		})
	default:
		log.Debug("metrics disabled", zap.String("backend", cfg.Metrics.Backend))
		return func() {}
	}
	if err != nil {
		log.Warn("metrics backend unavailable; metrics disabled",
			zap.String("backend", cfg.Metrics.Backend), zap.Error(err))
		return func() {}
	}

	metrics.SetBackend(b)
	log.Info("metrics enabled", zap.String("backend", cfg.Metrics.Backend))
	return func() {
		if err := metrics.Flush(); err != nil {
			log.Warn("metrics flush failed", zap.Error(err))
		}
	}
}

func export(ctx context.Context, cfg config.Config, tbl *table.Table, input string, log *zap.Logger) error {
	td := storage.Definition(cfg.Storage.Table, tbl.Columns)
	repo, err := storage.New(ctx, storage.Config{
		Kind:      cfg.Storage.Kind,
		DSN:       cfg.Storage.DSN,
		Table:     td.Table,
		Columns:   td.Columns,
		KeyColumn: td.Key,
	})
	if err != nil {
		return err
	}
	defer repo.Close()

	if cfg.Storage.AutoCreate {
		if err := storage.EnsureTable(ctx, cfg.Storage.Kind, repo, td); err != nil {
			return err
		}
	}

	n, err := storage.Export(ctx, repo, tbl, storage.ExportOptions{
		Source:    filepath.Base(input),
		BatchSize: cfg.Storage.BatchSize,
		Job:       cfg.Job,
		Logger:    log,
	})
	if err != nil {
		return err
	}
	log.Info("table exported",
		zap.String("kind", cfg.Storage.Kind),
		zap.String("table", td.Table),
		zap.Int64("rows", n))
	return nil
}
