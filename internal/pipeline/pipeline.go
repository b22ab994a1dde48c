package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/couchcryptid/geo-timeline-etl/internal/domain"
	"github.com/couchcryptid/geo-timeline-etl/internal/observability"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// Source lists and reads input files.
type Source interface {
	Discover(ctx context.Context) ([]string, error)
	Read(ctx context.Context, path string) (domain.SourceFile, error)
}

// Converter turns one input file into a table of records.
type Converter interface {
	Convert(ctx context.Context, file domain.SourceFile) (Conversion, error)
}

// Loader writes the unified table to a destination.
type Loader interface {
	Load(ctx context.Context, batch domain.Batch) error
}

// Pipeline runs one pass over the input directory: every file is converted
// independently, the results are merged into one table sorted by time, and the
// table is handed to each loader.
type Pipeline struct {
	source    Source
	converter Converter
	loaders   []Loader
	columns   []string
	logger    *slog.Logger
	metrics   *observability.Metrics
	clock     clockwork.Clock
	newRunID  func() string
}

// New creates a Pipeline. columns is the declared column order of the output.
func New(s Source, c Converter, loaders []Loader, columns []string, logger *slog.Logger, metrics *observability.Metrics, clock clockwork.Clock) *Pipeline {
	return &Pipeline{
		source:    s,
		converter: c,
		loaders:   loaders,
		columns:   columns,
		logger:    logger,
		metrics:   metrics,
		clock:     clock,
		newRunID:  uuid.NewString,
	}
}

// Run processes all files sequentially in lexical order. Per-file failures
// are logged and counted but never stop the run; discovery, cancellation and
// loader errors do. The summary is returned even when err is non-nil.
func (p *Pipeline) Run(ctx context.Context) (*Summary, error) {
	summary := newSummary(p.newRunID(), p.clock.Now())
	log := p.logger.With("run_id", summary.RunID)
	defer p.finish(summary)

	files, err := p.source.Discover(ctx)
	if err != nil {
		return summary, fmt.Errorf("discover input files: %w", err)
	}
	log.Info("run started", "files", len(files))

	tables := make([]domain.Table, 0, len(files))
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			log.Info("run cancelled", "reason", err)
			return summary, err
		}

		conv, result := p.processFile(ctx, log, path)
		summary.addFile(result)
		p.metrics.FilesProcessed.WithLabelValues(string(result.Format), result.Outcome).Inc()
		if result.Outcome == OutcomeFailed {
			continue
		}

		tables = append(tables, conv.Table)
		summary.SoftErrors.Merge(conv.Soft)
		for kind, n := range conv.Soft {
			p.metrics.SoftErrors.WithLabelValues(string(kind)).Add(float64(n))
		}
		if conv.DataSource != "" {
			summary.GPXDataSources[conv.DataSource]++
		}
	}

	sorted := domain.SortByTime(domain.Merge(tables...))
	summary.addTable(sorted)
	merged := domain.Conform(sorted, p.columns)
	summary.UnifiedColumns = merged.Columns
	for typ, n := range summary.RecordsByType {
		p.metrics.RecordsExtracted.WithLabelValues(typ).Add(float64(n))
	}

	if merged.Len() == 0 {
		log.Warn("no records extracted, nothing written")
		return summary, nil
	}

	batch := domain.Batch{RunID: summary.RunID, Table: merged}
	for _, l := range p.loaders {
		if err := l.Load(ctx, batch); err != nil {
			return summary, fmt.Errorf("load unified table: %w", err)
		}
		summary.OutputsWritten++
	}

	log.Info("run finished",
		"records", summary.TotalRecords,
		"columns", len(merged.Columns),
		"soft_errors", summary.SoftErrors.Total(),
		"outputs", summary.OutputsWritten,
	)
	return summary, nil
}

func (p *Pipeline) processFile(ctx context.Context, log *slog.Logger, path string) (Conversion, FileResult) {
	result := FileResult{Name: filepath.Base(path), Format: domain.FormatUnknown}

	file, err := p.source.Read(ctx, path)
	if err != nil {
		return Conversion{}, p.fail(log, result, err)
	}

	conv, err := p.converter.Convert(ctx, file)
	if conv.Format != "" {
		result.Format = conv.Format
	}
	result.Username = conv.Username
	if err != nil {
		return Conversion{}, p.fail(log, result, err)
	}

	result.Outcome = OutcomeSucceeded
	result.Records = conv.Table.Len()
	if result.Records == 0 {
		log.Warn("file produced no records", "file", result.Name, "format", conv.Format)
		return conv, result
	}
	log.Info("file processed",
		"file", result.Name,
		"format", conv.Format,
		"username", conv.Username,
		"records", result.Records,
		"soft_errors", conv.Soft.Total(),
	)
	return conv, result
}

func (p *Pipeline) fail(log *slog.Logger, result FileResult, err error) FileResult {
	result.Outcome = OutcomeFailed
	result.Kind = domain.KindOf(err)
	result.Error = err.Error()
	if errors.Is(err, context.Canceled) {
		log.Info("file skipped", "file", result.Name, "reason", err)
		return result
	}
	log.Warn("file skipped", "file", result.Name, "format", result.Format, "kind", result.Kind, "error", err)
	return result
}

func (p *Pipeline) finish(s *Summary) {
	s.FinishedAt = p.clock.Now()
	p.metrics.RunDuration.Observe(s.Duration().Seconds())
	p.metrics.LastRunRecords.Set(float64(s.TotalRecords))
	p.metrics.LastRunTimestamp.Set(float64(s.FinishedAt.Unix()))
}
