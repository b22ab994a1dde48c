package csvout

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/couchcryptid/geo-timeline-etl/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testTable() domain.Table {
	ts := domain.NaiveOf(time.Date(2024, 1, 15, 1, 0, 0, 0, time.UTC))
	return domain.Table{
		Columns: []string{domain.ColType, domain.ColPointTime, domain.ColLatitude, domain.ColVisitPlaceID, domain.ColGPXPointSequence},
		Rows: []domain.Row{
			{domain.ColType: "visit", domain.ColPointTime: ts, domain.ColLatitude: 35.681, domain.ColVisitPlaceID: "a,b"},
			{domain.ColType: "gpx_trackpoint", domain.ColPointTime: nil, domain.ColLatitude: 35.0, domain.ColGPXPointSequence: 4},
		},
	}
}

func TestEncode(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, testTable()))

	want := "type,point_time,latitude,visit_placeId,_gpx_point_sequence\n" +
		"visit,2024-01-15 01:00:00,35.681,\"a,b\",\n" +
		"gpx_trackpoint,,35,,4\n"
	assert.Equal(t, want, buf.String())
}

func TestWriter_Load(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "timeline.csv")
	w := NewWriter(path, slog.Default())

	require.NoError(t, w.Load(context.Background(), domain.Batch{RunID: "run-1", Table: testTable()}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "type,point_time,latitude")

	matches, err := filepath.Glob(filepath.Join(filepath.Dir(path), "*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, matches, "temporary file cleaned up")
}

func TestWriter_Load_CancelledContext(t *testing.T) {
	path := filepath.Join(t.TempDir(), "timeline.csv")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := NewWriter(path, slog.Default()).Load(ctx, domain.Batch{Table: testTable()})
	require.ErrorIs(t, err, context.Canceled)
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}
