// Package sqlite persists unified tables into a SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/couchcryptid/geo-timeline-etl/internal/domain"
	_ "modernc.org/sqlite"
)

const (
	recordsTable = "records"

	pragmas = `
PRAGMA journal_mode = WAL;
PRAGMA synchronous = NORMAL;
PRAGMA busy_timeout = 5000;
`

	baseSchema = `
CREATE TABLE IF NOT EXISTS records (
    run_id TEXT NOT NULL,
    seq    INTEGER NOT NULL,
    PRIMARY KEY (run_id, seq)
);
`
)

var realColumns = map[string]bool{
	domain.ColLatitude:               true,
	domain.ColLongitude:              true,
	domain.ColVisitProbability:       true,
	domain.ColActivityDistanceMeters: true,
	domain.ColActivityProbability:    true,
	domain.ColElevation:              true,
	domain.ColGPXElevation:           true,
	domain.ColGPXSpeed:               true,
}

// Store appends each run's rows to the records table, adding columns as new
// ones appear. It implements pipeline.Loader.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens or creates the database at path.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec(pragmas + baseSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return &Store{db: db, logger: logger}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Load inserts every row of the batch in one transaction.
func (s *Store) Load(ctx context.Context, batch domain.Batch) error {
	if err := s.ensureColumns(ctx, batch.Table.Columns); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	stmt, err := tx.PrepareContext(ctx, insertSQL(batch.Table.Columns))
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	args := make([]any, len(batch.Table.Columns)+2)
	for i, row := range batch.Table.Rows {
		args[0], args[1] = batch.RunID, i
		for j, c := range batch.Table.Columns {
			args[j+2] = sqlValue(row[c])
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("insert row %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	s.logger.Info("sqlite rows inserted", "run_id", batch.RunID, "rows", batch.Table.Len())
	return nil
}

// CountRecords returns the number of rows stored for runID.
func (s *Store) CountRecords(ctx context.Context, runID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM records WHERE run_id = ?", runID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count records: %w", err)
	}
	return n, nil
}

// Columns returns the column names of the records table in table order.
func (s *Store) Columns(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT name FROM pragma_table_info('"+recordsTable+"')")
	if err != nil {
		return nil, fmt.Errorf("read table info: %w", err)
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan table info: %w", err)
		}
		cols = append(cols, name)
	}
	return cols, rows.Err()
}

func (s *Store) ensureColumns(ctx context.Context, columns []string) error {
	existing, err := s.Columns(ctx)
	if err != nil {
		return err
	}
	have := make(map[string]bool, len(existing))
	for _, c := range existing {
		have[strings.ToLower(c)] = true
	}

	for _, c := range columns {
		if have[strings.ToLower(c)] {
			continue
		}
		stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", recordsTable, quoteIdent(c), columnType(c))
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("add column %s: %w", c, err)
		}
		have[strings.ToLower(c)] = true
	}
	return nil
}

func insertSQL(columns []string) string {
	names := make([]string, 0, len(columns)+2)
	names = append(names, "run_id", "seq")
	for _, c := range columns {
		names = append(names, quoteIdent(c))
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(names)), ",")
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", recordsTable, strings.Join(names, ", "), placeholders)
}

func columnType(name string) string {
	switch {
	case realColumns[name]:
		return "REAL"
	case name == domain.ColGPXPointSequence:
		return "INTEGER"
	default:
		return "TEXT"
	}
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func sqlValue(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case domain.Timestamp:
		return x.String()
	case string, float64, int, int64, bool:
		return x
	default:
		return domain.FormatCell(x)
	}
}
