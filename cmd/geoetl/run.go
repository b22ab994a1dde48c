package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/geo-timeline-etl/internal/adapter/csvout"
	"github.com/couchcryptid/geo-timeline-etl/internal/adapter/filesource"
	kafkaadapter "github.com/couchcryptid/geo-timeline-etl/internal/adapter/kafka"
	"github.com/couchcryptid/geo-timeline-etl/internal/adapter/sqlite"
	"github.com/couchcryptid/geo-timeline-etl/internal/config"
	"github.com/couchcryptid/geo-timeline-etl/internal/domain"
	"github.com/couchcryptid/geo-timeline-etl/internal/observability"
	"github.com/couchcryptid/geo-timeline-etl/internal/parser"
	"github.com/couchcryptid/geo-timeline-etl/internal/pipeline"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

func runCmd() *cobra.Command {
	var configPath, dataDir, output string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Extract every export in the data directory and write the unified table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if dataDir != "" {
				cfg.DataDir = dataDir
			}
			if output != "" {
				cfg.OutputFile = output
			}

			logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat, cmd.ErrOrStderr())

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			summary, err := runPipeline(ctx, cfg, logger)
			if summary != nil {
				if werr := summary.Write(cmd.OutOrStdout()); werr != nil {
					logger.Error("write summary", "error", werr)
				}
			}
			return err
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "YAML config file (default $GEOETL_CONFIG)")
	cmd.Flags().StringVar(&dataDir, "data-dir", "", "directory of export files (overrides config)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "CSV output path (overrides config)")
	return cmd
}

// runPipeline wires the configured sinks around one pipeline run and closes
// them afterwards.
func runPipeline(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*pipeline.Summary, error) {
	normalizer, err := domain.NewNormalizer(cfg.InputTimezone, cfg.OutputTimezone)
	if err != nil {
		return nil, err
	}

	loaders := []pipeline.Loader{csvout.NewWriter(cfg.OutputFile, logger)}
	var closers []func() error

	if cfg.SQLitePath != "" {
		store, err := sqlite.Open(cfg.SQLitePath, logger)
		if err != nil {
			return nil, err
		}
		loaders = append(loaders, store)
		closers = append(closers, store.Close)
		logger.Info("sqlite output enabled", "path", cfg.SQLitePath)
	}
	if cfg.KafkaEnabled {
		writer := kafkaadapter.NewWriter(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
		loaders = append(loaders, writer)
		closers = append(closers, writer.Close)
		logger.Info("kafka output enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	}

	reg := prometheus.NewRegistry()
	metrics := observability.NewMetrics(reg)

	converter := pipeline.NewConverter(
		cfg.Resolver(),
		normalizer,
		parser.GPXOptions{Thresholds: cfg.GPX.Thresholds, MaxSpeedKmh: cfg.GPX.MaxSpeedKmh},
		cfg.MaxArchiveEntryBytes,
		logger,
	)
	p := pipeline.New(
		filesource.New(cfg.DataDir),
		converter,
		loaders,
		cfg.CSVColumns,
		logger,
		metrics,
		clockwork.NewRealClock(),
	)

	summary, runErr := p.Run(ctx)

	var errs []error
	if runErr != nil {
		errs = append(errs, runErr)
	}
	for _, c := range closers {
		if err := c(); err != nil {
			errs = append(errs, fmt.Errorf("close output: %w", err))
		}
	}
	if cfg.MetricsTextfile != "" {
		if err := prometheus.WriteToTextfile(cfg.MetricsTextfile, reg); err != nil {
			logger.Error("write metrics textfile", "path", cfg.MetricsTextfile, "error", err)
		}
	}
	return summary, errors.Join(errs...)
}
