// Command indexer builds a new committed index generation from a
// conversation export.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Conversation-Search/internal/events"
	"github.com/Adithya-Monish-Kumar-K/Conversation-Search/internal/export"
	"github.com/Adithya-Monish-Kumar-K/Conversation-Search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/Conversation-Search/internal/indexer/journal"
	"github.com/Adithya-Monish-Kumar-K/Conversation-Search/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/Conversation-Search/internal/ingest"
	"github.com/Adithya-Monish-Kumar-K/Conversation-Search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Conversation-Search/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Conversation-Search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Conversation-Search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Conversation-Search/pkg/postgres"
)

func main() {
	configPath := flag.String("config", "", "path to config file (defaults and CS_* env when empty)")
	input := flag.String("input", "", "conversation export to index (overrides ingest.inputPath)")
	output := flag.String("output", "", "index directory (overrides index.path)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *input != "" {
		cfg.Ingest.InputPath = *input
	}
	if *output != "" {
		cfg.Index.Path = *output
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("indexer failed", "error", err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	m := metrics.New(nil)
	if cfg.Metrics.Enabled {
		shutdown := metrics.StartServer(cfg.Metrics.Port, nil)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			shutdown(shutdownCtx)
		}()
	}

	var jrnl *journal.Journal
	if cfg.Postgres.Enabled {
		db, err := postgres.New(ctx, cfg.Postgres)
		if err != nil {
			return fmt.Errorf("connecting build journal: %w", err)
		}
		defer db.Close()
		jrnl = journal.New(db.DB)
		if err := jrnl.EnsureSchema(ctx); err != nil {
			return err
		}
	}

	var publisher *events.Publisher
	if cfg.Kafka.Enabled {
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.IndexCommitted)
		defer producer.Close()
		publisher = events.NewPublisher(producer)
	}

	slog.Info("starting index build",
		"input", cfg.Ingest.InputPath,
		"output", cfg.Index.Path,
		"workers", cfg.Ingest.Workers,
		"journal", jrnl != nil,
		"publish", publisher != nil,
	)
	started := time.Now()

	convs, err := export.Load(cfg.Ingest.InputPath)
	if err != nil {
		return fmt.Errorf("loading export: %w", err)
	}
	extracted, err := ingest.Extract(ctx, convs, ingest.Options{
		Workers:       cfg.Ingest.Workers,
		ProgressEvery: cfg.Ingest.ProgressEvery,
		Metrics:       m,
	})
	if err != nil {
		return err
	}

	builder, err := indexer.NewBuilder(indexer.Config{
		Tokenizer: tokenizer.Config{MinGram: cfg.Tokenizer.MinGram, MaxGram: cfg.Tokenizer.MaxGram},
		Workers:   cfg.Ingest.Workers,
	}, m)
	if err != nil {
		return err
	}

	report, err := builder.Build(ctx, extracted.Records, cfg.Index.Path)
	if err != nil {
		if jrnl != nil {
			// ctx may be the reason the build failed.
			recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()
			if jerr := jrnl.RecordFailure(recordCtx, cfg.Index.Path, started, err); jerr != nil {
				err = errors.Join(err, jerr)
			}
		}
		return err
	}

	if jrnl != nil {
		if err := jrnl.RecordBuild(ctx, report, len(extracted.Skipped)); err != nil {
			slog.Error("build committed but journal write failed", "build_id", report.BuildID, "error", err)
		}
	}
	if publisher != nil {
		if err := publisher.PublishCommitted(ctx, events.FromReport(report)); err != nil {
			slog.Error("build committed but commit event not published", "build_id", report.BuildID, "error", err)
		}
	}

	slog.Info("index build committed",
		"build_id", report.BuildID,
		"generation", report.Generation,
		"documents", report.Documents,
		"skipped", len(extracted.Skipped),
		"duplicates", report.Duplicates,
		"terms", report.Terms,
		"pruned", report.Pruned,
		"duration", time.Since(started).Round(time.Millisecond),
	)
	return nil
}
