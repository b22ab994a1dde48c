package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/geo-timeline-etl/internal/domain"
	"github.com/couchcryptid/geo-timeline-etl/internal/parser"
)

// Conversion is the outcome of converting one input file.
type Conversion struct {
	Format   domain.Format
	Username string
	Table    domain.Table
	Soft     domain.SoftErrors
	Warnings []string

	// DataSource is the GPX data source label; empty for other formats.
	DataSource string
}

// FileConverter implements Converter: it detects the format of a file, runs
// the matching extractor and normalizes timestamps into the output zone.
type FileConverter struct {
	resolver      domain.UsernameResolver
	normalizer    *domain.Normalizer
	gpx           parser.GPXOptions
	maxEntryBytes int64
	logger        *slog.Logger
}

// NewConverter creates a FileConverter.
func NewConverter(resolver domain.UsernameResolver, normalizer *domain.Normalizer, gpx parser.GPXOptions, maxEntryBytes int64, logger *slog.Logger) *FileConverter {
	return &FileConverter{
		resolver:      resolver,
		normalizer:    normalizer,
		gpx:           gpx,
		maxEntryBytes: maxEntryBytes,
		logger:        logger,
	}
}

func (c *FileConverter) Convert(ctx context.Context, file domain.SourceFile) (Conversion, error) {
	if err := ctx.Err(); err != nil {
		return Conversion{Format: domain.FormatUnknown}, err
	}

	format, err := parser.Detect(file.Name, file.Content)
	if err != nil {
		return Conversion{Format: format}, fmt.Errorf("detect format: %w", err)
	}

	conv := Conversion{Format: format, Username: c.resolver.Resolve(file.Name)}

	var res parser.ExtractResult
	switch format {
	case domain.FormatAndroid, domain.FormatIPhone:
		res, err = parser.ExtractTimeline(file.Content, format, conv.Username)
	case domain.FormatGPX:
		conv.DataSource = parser.DataSource(file.Name)
		res, err = parser.ExtractGPX(file.Content, file.Name, conv.Username, c.gpx)
	case domain.FormatKML:
		res, err = parser.ExtractKML(file.Content, conv.Username)
	case domain.FormatKMZ:
		res, err = parser.ExtractKMZ(file.Content, conv.Username, c.maxEntryBytes)
	default:
		err = fmt.Errorf("format %s: %w", format, domain.ErrUnrecognizedFormat)
	}
	if err != nil {
		return conv, fmt.Errorf("extract %s: %w", format, err)
	}

	for i := range res.Records {
		if err := c.normalizer.NormalizeRecord(&res.Records[i]); err != nil {
			res.Soft.Add(domain.KindOf(err))
			c.logger.Debug("timestamp shifted", "file", file.Name, "error", err)
		}
	}

	for _, w := range res.Warnings {
		c.logger.Warn("extraction anomaly", "file", file.Name, "format", format, "detail", w)
	}
	for _, kind := range res.Soft.Kinds() {
		c.logger.Debug("soft errors", "file", file.Name, "kind", kind, "count", res.Soft[kind])
	}

	conv.Table = domain.NewTable(format.Columns(), res.Records)
	conv.Soft = res.Soft
	conv.Warnings = res.Warnings
	return conv, nil
}
