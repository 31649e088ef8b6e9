// Package main is the entry point for the data loader. It downloads the
// legislature's daily export, turns it into the JSON documents the API and
// front end read, and optionally loads them into PostgreSQL and object
// storage.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/attribute"

	"github.com/onnwee/legvotes/internal/config"
	"github.com/onnwee/legvotes/internal/jobs"
	"github.com/onnwee/legvotes/internal/legdata"
	"github.com/onnwee/legvotes/internal/middleware"
	"github.com/onnwee/legvotes/internal/publish"
	"github.com/onnwee/legvotes/internal/store"
	"github.com/onnwee/legvotes/internal/tracing"
)

const serviceName = "legvotes-loader"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		slog.Error("loader failed", "error", err)
		os.Exit(1)
	}
}

type options struct {
	skipDownload bool
	noPublish    bool
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	flags := flag.NewFlagSet("loader", flag.ContinueOnError)
	configPath := flags.String("config", "", "path to a YAML config file")
	skipDownload := flags.Bool("skip-download", false, "parse the data files already in the download dir")
	noPublish := flags.Bool("no-publish", false, "do not upload the documents to object storage")
	metricsFile := flags.String("metrics-file", "", "write run metrics to this file in the Prometheus text format")
	help := flags.Bool("help", false, "display help message")
	if err := flags.Parse(args); err != nil {
		return err
	}

	if *help {
		fmt.Fprintln(stdout, "legvotes Data Loader")
		fmt.Fprintln(stdout)
		fmt.Fprintln(stdout, "Usage: loader [options]")
		fmt.Fprintln(stdout)
		fmt.Fprintln(stdout, "Options:")
		flags.SetOutput(stdout)
		flags.PrintDefaults()
		return nil
	}

	cfg, errs := config.Load(*configPath)
	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}

	logger := middleware.NewLogger(cfg.Env)
	slog.SetDefault(logger)
	logger.Info("configuration loaded", "config", cfg.LogSummary())

	tp, err := tracing.NewProvider(tracing.ConfigFrom(cfg, serviceName))
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			logger.Error("tracing shutdown failed", "error", err)
		}
	}()

	reg := prometheus.NewRegistry()
	metrics := jobs.NewMetrics()
	if err := metrics.Register(reg); err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}
	if *metricsFile != "" {
		defer func() {
			if err := prometheus.WriteToTextfile(*metricsFile, reg); err != nil {
				logger.Error("failed to write metrics file", "path", *metricsFile, "error", err)
			}
		}()
	}

	l := &loader{
		cfg:     cfg,
		logger:  logger,
		client:  legdata.NewHTTPClient(),
		metrics: metrics,
	}

	if cfg.DatabaseURL != "" {
		db, err := store.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer db.Close()
		l.saver = store.New(db, logger)
	}

	if cfg.S3Enabled() && !*noPublish {
		p, err := publish.New(publish.NewS3Client(cfg), cfg.S3Bucket, cfg.S3Prefix, logger)
		if err != nil {
			return err
		}
		l.publisher = p
	}

	return l.run(ctx, options{skipDownload: *skipDownload, noPublish: *noPublish})
}

// datasetSaver stores a parsed dataset.
type datasetSaver interface {
	EnsureSchema(ctx context.Context) error
	SaveDataset(ctx context.Context, ds *legdata.Dataset) error
}

// dirPublisher uploads the output directory.
type dirPublisher interface {
	PublishDir(ctx context.Context, dir string) (int, error)
}

// loader runs the pipeline. saver and publisher are nil when not configured.
type loader struct {
	cfg       *config.Config
	logger    *slog.Logger
	client    *http.Client
	metrics   *jobs.Metrics
	saver     datasetSaver
	publisher dirPublisher
}

func (l *loader) run(ctx context.Context, opts options) error {
	ctx, endSpan := tracing.StartSpan(ctx, "loader.run")
	var err error
	defer func() { endSpan(err) }()

	started := time.Now()
	paths := l.cfg.Paths()
	loc, err := l.cfg.VoteLocation()
	if err != nil {
		return err
	}

	if err = l.step(ctx, "create dirs", func(context.Context) error {
		return paths.CreateDirs()
	}); err != nil {
		return err
	}

	if opts.skipDownload {
		l.logger.Info("skipping download", "dir", paths.DownloadDir)
	} else {
		err = l.step(ctx, "download", func(ctx context.Context) error {
			tracing.SetAttributes(ctx, attribute.String("source.url", l.cfg.SourceURL()))
			return legdata.Download(ctx, l.client, l.cfg.SourceURL(), paths.DownloadDir, legdata.DataFiles())
		})
		if err != nil {
			return err
		}
	}

	ds := &legdata.Dataset{}
	if err = l.step(ctx, "parse legislators", func(context.Context) error {
		var err error
		ds.Legislators, err = legdata.ParseLegislators(paths)
		return err
	}); err != nil {
		return err
	}
	if err = l.step(ctx, "parse bills", func(context.Context) error {
		var err error
		ds.Bills, err = legdata.ParseBills(paths)
		return err
	}); err != nil {
		return err
	}
	if err = l.step(ctx, "parse votes", func(context.Context) error {
		var err error
		ds.Votes, err = legdata.ParseVotes(paths, legdata.Authors(ds.Legislators), loc)
		return err
	}); err != nil {
		return err
	}

	l.metrics.SetRecords(jobs.RecordLegislators, len(ds.Legislators))
	l.metrics.SetRecords(jobs.RecordBills, len(ds.Bills))
	l.metrics.SetRecords(jobs.RecordVotes, ds.VoteCount())

	if err = l.step(ctx, "write documents", func(context.Context) error {
		return legdata.WriteDataset(paths, ds)
	}); err != nil {
		return err
	}

	if l.saver != nil {
		err = l.step(ctx, "save to database", func(ctx context.Context) error {
			if err := l.saver.EnsureSchema(ctx); err != nil {
				return err
			}
			return l.saver.SaveDataset(ctx, ds)
		})
		if err != nil {
			return err
		}
	}

	if l.publisher != nil && !opts.noPublish {
		err = l.step(ctx, "publish", func(ctx context.Context) error {
			_, err := l.publisher.PublishDir(ctx, paths.OutputDir)
			return err
		})
		if err != nil {
			return err
		}
	}

	l.metrics.MarkSuccess(time.Now())
	l.logger.Info("load complete",
		"legislators", len(ds.Legislators),
		"bills", len(ds.Bills),
		"votes", ds.VoteCount(),
		"duration_ms", time.Since(started).Milliseconds(),
	)
	return nil
}

// step runs one named pipeline stage in its own span and logs its outcome.
func (l *loader) step(ctx context.Context, name string, fn func(context.Context) error) (err error) {
	ctx, endSpan := tracing.StartSpan(ctx, "loader."+name)
	defer func() { endSpan(err) }()

	start := time.Now()
	l.logger.Info("step started", "step", name)
	err = fn(ctx)
	l.metrics.ObserveStep(name, time.Since(start), err)
	if err != nil {
		l.logger.Error("step failed", "step", name, "error", err)
		return fmt.Errorf("%s: %w", name, err)
	}
	l.logger.Info("step finished", "step", name, "duration_ms", time.Since(start).Milliseconds())
	return nil
}
