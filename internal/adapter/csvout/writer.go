// Package csvout writes the unified table to a CSV file.
package csvout

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/couchcryptid/geo-timeline-etl/internal/domain"
)

// Writer writes each batch to one CSV file, replacing any previous content.
// It implements pipeline.Loader.
type Writer struct {
	path   string
	logger *slog.Logger
}

// NewWriter creates a CSV sink for path.
func NewWriter(path string, logger *slog.Logger) *Writer {
	return &Writer{path: path, logger: logger}
}

// Load writes the header and all rows to a temporary sibling of the target
// and renames it into place.
func (w *Writer) Load(ctx context.Context, batch domain.Batch) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if dir := filepath.Dir(w.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}

	tmp, err := os.CreateTemp(filepath.Dir(w.path), filepath.Base(w.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create csv temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := Encode(tmp, batch.Table); err != nil {
		tmp.Close()
		return fmt.Errorf("write csv %s: %w", w.path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close csv %s: %w", w.path, err)
	}
	if err := os.Rename(tmp.Name(), w.path); err != nil {
		return fmt.Errorf("move csv into place: %w", err)
	}

	w.logger.Info("csv written", "path", w.path, "rows", batch.Table.Len(), "columns", len(batch.Table.Columns))
	return nil
}

// Encode writes t as CSV: one header row, then one line per row. Null cells
// are empty.
func Encode(out io.Writer, t domain.Table) error {
	cw := csv.NewWriter(out)
	if err := cw.Write(t.Columns); err != nil {
		return err
	}
	record := make([]string, len(t.Columns))
	for _, row := range t.Rows {
		for i, c := range t.Columns {
			record[i] = domain.FormatCell(row[c])
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
