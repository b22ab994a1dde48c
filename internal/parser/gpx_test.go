package parser

import (
	"testing"

	"github.com/couchcryptid/geo-timeline-etl/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testGPXOptions = GPXOptions{
	Thresholds: domain.Thresholds{
		WalkingMax:    4,
		HikingMax:     6,
		RunningMax:    15,
		CyclingMax:    40,
		HikingMinGain: 100,
	},
	MaxSpeedKmh: 200,
}

const mountainGPX = `<?xml version="1.0" encoding="UTF-8"?>
<gpx version="1.1" creator="test" xmlns="http://www.topografix.com/GPX/1/1">
  <wpt lat="35.5" lon="139.5">
    <ele>100</ele>
    <time>2025-01-18T00:00:00Z</time>
    <name>Trailhead</name>
    <desc> Parking and toilets </desc>
  </wpt>
  <trk>
    <name>高尾山</name>
    <trkseg>
      <trkpt lat="35.6250" lon="139.2430"><ele>200</ele><time>2025-01-18T01:00:00Z</time></trkpt>
      <trkpt lat="35.6260" lon="139.2430"><ele>250</ele><time>2025-01-18T01:01:00Z</time></trkpt>
      <trkpt lat="35.6270" lon="139.2430"><ele>240</ele><time>2025-01-18T01:01:00Z</time></trkpt>
      <trkpt lat="35.6280" lon="139.2430"><ele>300</ele></trkpt>
    </trkseg>
    <trkseg>
      <trkpt lat="35.6300" lon="139.2430"><time>2025-01-18T02:00:00Z</time></trkpt>
      <trkpt lat="35.6310" lon="139.2430"><ele>310</ele><time>2025-01-18T01:59:00Z</time></trkpt>
    </trkseg>
  </trk>
</gpx>`

func TestExtractGPX_Trackpoints(t *testing.T) {
	res, err := ExtractGPX([]byte(mountainGPX), "trip.gpx", testUser, testGPXOptions)
	require.NoError(t, err)

	points := byType(res.Records, domain.TypeGPXTrackpoint)
	require.Len(t, points, 6)

	first := points[0]
	assert.Equal(t, 35.625, *first.Latitude)
	assert.Equal(t, 139.243, *first.Longitude)
	assert.Equal(t, testUser, first.Username)
	assert.Equal(t, "高尾山", *first.VisitPlaceID)
	assert.Equal(t, domain.ActivityHiking, *first.ActivityType)
	assert.Equal(t, domain.SemanticMountain, *first.VisitSemanticType)
	require.NotNil(t, first.GPX)
	assert.Equal(t, "gpx", first.GPX.DataSource)
	assert.Equal(t, "高尾山", first.GPX.TrackName)
	assert.Equal(t, 200.0, *first.GPX.Elevation)

	require.NotNil(t, first.StartTime)
	require.NotNil(t, first.EndTime)
	assert.Equal(t, "2025-01-18T01:00:00Z", first.StartTime.String())
	assert.Equal(t, "2025-01-18T02:00:00Z", first.EndTime.String())

	assert.Nil(t, points[3].PointTime)
	assert.Nil(t, points[4].GPX.Elevation)

	seqs := make([]int, len(points))
	for i, p := range points {
		seqs[i] = p.GPX.PointSequence
	}
	assert.Equal(t, []int{0, 1, 2, 3, 0, 1}, seqs)
}

func TestExtractGPX_Speeds(t *testing.T) {
	res, err := ExtractGPX([]byte(mountainGPX), "trip.gpx", testUser, testGPXOptions)
	require.NoError(t, err)

	points := byType(res.Records, domain.TypeGPXTrackpoint)
	require.Len(t, points, 6)

	speeds := make([]*float64, len(points))
	for i, p := range points {
		speeds[i] = p.GPX.Speed
	}

	assert.Nil(t, speeds[0], "first point of segment")
	require.NotNil(t, speeds[1])
	assert.InDelta(t, 6.67, *speeds[1], 0.05)
	assert.Nil(t, speeds[2], "zero elapsed time")
	assert.Nil(t, speeds[3], "missing time")
	assert.Nil(t, speeds[4], "first point of second segment")
	assert.Nil(t, speeds[5], "negative elapsed time")

	for _, s := range speeds {
		if s != nil {
			assert.GreaterOrEqual(t, *s, 0.0)
		}
	}
}

func TestExtractGPX_ElevationGain(t *testing.T) {
	res, err := ExtractGPX([]byte(mountainGPX), "trip.gpx", testUser, testGPXOptions)
	require.NoError(t, err)

	var tr track
	for _, r := range byType(res.Records, domain.TypeGPXTrackpoint) {
		tr.points = append(tr.points, trackPoint{elevation: r.GPX.Elevation, speed: r.GPX.Speed})
	}
	assert.InDelta(t, 120.0, tr.elevationGain(), 1e-9)
}

func TestExtractGPX_Waypoint(t *testing.T) {
	res, err := ExtractGPX([]byte(mountainGPX), "trip.gpx", testUser, testGPXOptions)
	require.NoError(t, err)

	wpts := byType(res.Records, domain.TypeGPXWaypoint)
	require.Len(t, wpts, 1)
	w := wpts[0]
	assert.Equal(t, "Trailhead", *w.VisitPlaceID)
	assert.Equal(t, domain.SemanticWaypoint, *w.VisitSemanticType)
	assert.Equal(t, "waypoint", *w.ActivityType)
	assert.Equal(t, 100.0, *w.GPX.Elevation)
	assert.Nil(t, w.GPX.Speed)
	require.NotNil(t, w.GPX.Description)
	assert.Equal(t, "Parking and toilets", *w.GPX.Description)
	assert.Equal(t, "Parking and toilets", w.Value(domain.ColGPXDescription))
	require.NotNil(t, w.PointTime)
	assert.Equal(t, w.PointTime, w.StartTime)

	for _, tp := range byType(res.Records, domain.TypeGPXTrackpoint) {
		assert.Nil(t, tp.Value(domain.ColGPXDescription))
	}
}

func TestExtractGPX_ClampAndClassifyByFilename(t *testing.T) {
	content := `<gpx version="1.1" creator="test" xmlns="http://www.topografix.com/GPX/1/1">
  <trk><trkseg>
    <trkpt lat="35.0" lon="139.0"><time>2025-01-18T01:00:00Z</time></trkpt>
    <trkpt lat="36.0" lon="139.0"><time>2025-01-18T01:01:00Z</time></trkpt>
  </trkseg></trk>
</gpx>`

	res, err := ExtractGPX([]byte(content), "yamap_2025-01-18.gpx", testUser, testGPXOptions)
	require.NoError(t, err)

	require.Len(t, res.Records, 2)
	assert.Equal(t, 200.0, *res.Records[1].GPX.Speed)
	assert.Equal(t, domain.ActivityHiking, *res.Records[1].ActivityType)
	assert.Equal(t, "yamap", res.Records[1].GPX.DataSource)
	assert.Equal(t, "Track 1", res.Records[1].GPX.TrackName)
}

func TestDataSource(t *testing.T) {
	tests := map[string]string{
		"yamap_2025-01-18.gpx":   "yamap",
		"Garmin_export.gpx":      "garmin",
		"activity_12345.gpx":     "garmin",
		"YAMAP_garmin.gpx":       "yamap",
		"strava_ride.gpx":        "gpx",
		"data/2025/activity.gpx": "gpx",
	}
	for name, want := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, want, DataSource(name))
		})
	}
}

func TestExtractGPX_Malformed(t *testing.T) {
	t.Run("entity declaration", func(t *testing.T) {
		content := `<?xml version="1.0"?><!DOCTYPE gpx [<!ENTITY x "boom">]><gpx version="1.1"><wpt lat="1" lon="1"><name>&x;</name></wpt></gpx>`
		_, err := ExtractGPX([]byte(content), "a.gpx", testUser, testGPXOptions)
		require.ErrorIs(t, err, domain.ErrMalformedInput)
	})

	t.Run("broken xml", func(t *testing.T) {
		_, err := ExtractGPX([]byte(`<gpx version="1.1"><trk><trkseg>`), "a.gpx", testUser, testGPXOptions)
		require.ErrorIs(t, err, domain.ErrMalformedInput)
	})
}
