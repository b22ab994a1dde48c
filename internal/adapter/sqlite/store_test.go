package sqlite

import (
	"context"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/couchcryptid/geo-timeline-etl/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "db", "timeline.db"), slog.Default())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_Load(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	ts := domain.NaiveOf(time.Date(2024, 1, 15, 1, 0, 0, 0, time.UTC))

	batch := domain.Batch{
		RunID: "run-1",
		Table: domain.Table{
			Columns: []string{domain.ColType, domain.ColPointTime, domain.ColLatitude},
			Rows: []domain.Row{
				{domain.ColType: "visit", domain.ColPointTime: ts, domain.ColLatitude: 35.681},
				{domain.ColType: "timelinePath", domain.ColPointTime: nil, domain.ColLatitude: 35.7},
			},
		},
	}
	require.NoError(t, s.Load(ctx, batch))

	n, err := s.CountRecords(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	var pointTime string
	var lat float64
	err = s.db.QueryRowContext(ctx,
		`SELECT point_time, latitude FROM records WHERE run_id = ? AND seq = 0`, "run-1").Scan(&pointTime, &lat)
	require.NoError(t, err)
	assert.Equal(t, "2024-01-15 01:00:00", pointTime)
	assert.InDelta(t, 35.681, lat, 1e-9)

	var missing *string
	err = s.db.QueryRowContext(ctx,
		`SELECT point_time FROM records WHERE run_id = ? AND seq = 1`, "run-1").Scan(&missing)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestStore_Load_AddsColumns(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	first := domain.Batch{RunID: "run-1", Table: domain.Table{
		Columns: []string{domain.ColType},
		Rows:    []domain.Row{{domain.ColType: "visit"}},
	}}
	second := domain.Batch{RunID: "run-2", Table: domain.Table{
		Columns: []string{domain.ColType, domain.ColGPXPointSequence},
		Rows:    []domain.Row{{domain.ColType: "gpx_trackpoint", domain.ColGPXPointSequence: 3}},
	}}
	require.NoError(t, s.Load(ctx, first))
	require.NoError(t, s.Load(ctx, second))

	cols, err := s.Columns(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"run_id", "seq", domain.ColType, domain.ColGPXPointSequence}, cols)

	var seq int
	err = s.db.QueryRowContext(ctx,
		`SELECT _gpx_point_sequence FROM records WHERE run_id = ?`, "run-2").Scan(&seq)
	require.NoError(t, err)
	assert.Equal(t, 3, seq)
}

func TestStore_Load_DuplicateRunRejected(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	batch := domain.Batch{RunID: "run-1", Table: domain.Table{
		Columns: []string{domain.ColType},
		Rows:    []domain.Row{{domain.ColType: "visit"}},
	}}

	require.NoError(t, s.Load(ctx, batch))
	require.Error(t, s.Load(ctx, batch))

	n, err := s.CountRecords(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, 1, n, "failed transaction rolled back")
}

func TestQuoteIdent(t *testing.T) {
	assert.Equal(t, `"visit_placeId"`, quoteIdent("visit_placeId"))
	assert.Equal(t, `"a""b"`, quoteIdent(`a"b`))
}
