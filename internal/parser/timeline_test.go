package parser

import (
	"testing"
	"time"

	"github.com/couchcryptid/geo-timeline-etl/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testUser = "testuser"

const androidExport = `{
  "semanticSegments": [
    {
      "startTime": "2024-01-15T09:00:00.000+09:00",
      "endTime": "2024-01-15T10:00:00.000+09:00",
      "timelinePath": [
        {"point": "35.6812°, 139.7671°", "time": "2024-01-15T09:05:00.000+09:00"},
        {"point": "not a coordinate", "time": "2024-01-15T09:06:00.000+09:00"}
      ]
    },
    {
      "startTime": "2024-01-15T10:00:00.000+09:00",
      "endTime": "2024-01-15T11:00:00.000+09:00",
      "visit": {
        "probability": 0.9,
        "topCandidate": {
          "placeId": "ChIJ51cu8IcbXWARiRtXIothAS4",
          "semanticType": "HOME",
          "probability": 0.8,
          "placeLocation": {"latLng": "35.6581°, 139.7017°"}
        }
      }
    },
    {
      "startTime": "2024-01-15T11:00:00.000+09:00",
      "endTime": "2024-01-15T11:30:00.000+09:00",
      "activity": {
        "start": {"latLng": "35.1°, 139.1°"},
        "end": {"latLng": "35.2°, 139.2°"},
        "distanceMeters": 1234.5,
        "topCandidate": {"type": "WALKING", "probability": 0.7}
      }
    },
    {
      "startTime": "2024-01-15T12:00:00.000+09:00",
      "visit": {"topCandidate": {"placeLocation": {"latLng": "95.0°, 10.0°"}}}
    },
    {
      "startTime": "2024-01-15T13:00:00.000+09:00",
      "timelineMemory": {"note": "ignored"}
    }
  ]
}`

const iphoneExport = `[
  {
    "startTime": "2024-01-15T09:00:00.000+09:00",
    "endTime": "2024-01-15T10:00:00.000+09:00",
    "visit": {
      "probability": "0.95",
      "topCandidate": {
        "placeID": "ChIJabc",
        "semanticType": "Work",
        "probability": "0.5",
        "placeLocation": "geo:35.639772,139.670222"
      }
    }
  },
  {
    "startTime": "2024-01-15T10:00:00.000+09:00",
    "endTime": "2024-01-15T10:30:00.000+09:00",
    "activity": {
      "start": "geo:35.600000,139.600000",
      "end": "geo:35.700000,139.700000",
      "distanceMeters": "2500.5",
      "topCandidate": {"type": "walking", "probability": "0.8"}
    }
  },
  {
    "startTime": "2024-01-15T10:30:00.000+09:00",
    "endTime": "2024-01-15T11:30:00.000+09:00",
    "timelinePath": [
      {"point": "geo:35.710000,139.710000", "durationMinutesOffsetFromStartTime": "10"},
      {"point": "geo:35.720000,139.720000", "durationMinutesOffsetFromStartTime": "25"}
    ]
  }
]`

func byType(records []domain.Record, typ string) []domain.Record {
	var out []domain.Record
	for _, r := range records {
		if r.Type == typ {
			out = append(out, r)
		}
	}
	return out
}

func TestExtractTimeline_Android(t *testing.T) {
	res, err := ExtractTimeline([]byte(androidExport), domain.FormatAndroid, testUser)
	require.NoError(t, err)

	require.Len(t, res.Records, 4)
	for _, r := range res.Records {
		assert.Equal(t, testUser, r.Username)
	}

	t.Run("timeline path", func(t *testing.T) {
		paths := byType(res.Records, domain.TypeTimelinePath)
		require.Len(t, paths, 1)
		p := paths[0]
		assert.Equal(t, 35.6812, *p.Latitude)
		assert.Equal(t, 139.7671, *p.Longitude)
		require.NotNil(t, p.PointTime)
		assert.True(t, time.Date(2024, 1, 15, 0, 5, 0, 0, time.UTC).Equal(p.PointTime.Time))
		assert.NotNil(t, p.StartTime)
		assert.NotNil(t, p.EndTime)
	})

	t.Run("visit", func(t *testing.T) {
		visits := byType(res.Records, domain.TypeVisit)
		require.Len(t, visits, 1)
		v := visits[0]
		assert.Equal(t, 35.6581, *v.Latitude)
		assert.Equal(t, 0.9, *v.VisitProbability)
		assert.Equal(t, "ChIJ51cu8IcbXWARiRtXIothAS4", *v.VisitPlaceID)
		assert.Equal(t, "HOME", *v.VisitSemanticType)
		assert.Nil(t, v.PointTime)
	})

	t.Run("activity endpoints", func(t *testing.T) {
		starts := byType(res.Records, domain.TypeActivityStart)
		ends := byType(res.Records, domain.TypeActivityEnd)
		require.Len(t, starts, 1)
		require.Len(t, ends, 1)
		assert.Equal(t, 35.1, *starts[0].Latitude)
		assert.Equal(t, 139.2, *ends[0].Longitude)
		assert.Equal(t, 1234.5, *starts[0].ActivityDistanceMeters)
		assert.Equal(t, "WALKING", *ends[0].ActivityType)
		assert.Equal(t, 0.7, *ends[0].ActivityProbability)
	})

	t.Run("soft errors", func(t *testing.T) {
		assert.Equal(t, 1, res.Soft[domain.KindCoordinateParse])
		assert.Equal(t, 1, res.Soft[domain.KindCoordinateOutOfRange])
		assert.Zero(t, res.Soft[domain.KindTimestampAmbiguous])
	})
}

func TestExtractTimeline_AndroidVisitLocationFallback(t *testing.T) {
	content := `{"semanticSegments":[{"startTime":"2024-01-15T10:00:00.000+09:00","endTime":"2024-01-15T11:00:00.000+09:00","visit":{"probability":0.5,"topCandidate":{"placeId":"p1"},"location":{"latLng":"35.681,139.767"}}}]}`

	res, err := ExtractTimeline([]byte(content), domain.FormatAndroid, testUser)
	require.NoError(t, err)

	require.Len(t, res.Records, 1)
	v := res.Records[0]
	assert.Equal(t, domain.TypeVisit, v.Type)
	assert.Equal(t, 35.681, *v.Latitude)
	assert.Equal(t, 139.767, *v.Longitude)
	assert.Equal(t, "p1", *v.VisitPlaceID)
}

func TestExtractTimeline_ObjectCoordinates(t *testing.T) {
	content := `{"semanticSegments":[
		{"visit":{"topCandidate":{"placeLocation":{"latLng":{"latitude":35.5,"longitude":139.5}}}}},
		{"visit":{"location":{"latLng":{"latE7":356810000,"lngE7":1397670000}}}}
	]}`

	res, err := ExtractTimeline([]byte(content), domain.FormatAndroid, testUser)
	require.NoError(t, err)

	require.Len(t, res.Records, 2)
	assert.Equal(t, 35.5, *res.Records[0].Latitude)
	assert.InDelta(t, 35.681, *res.Records[1].Latitude, 1e-9)
	assert.InDelta(t, 139.767, *res.Records[1].Longitude, 1e-9)
}

func TestExtractTimeline_IPhone(t *testing.T) {
	res, err := ExtractTimeline([]byte(iphoneExport), domain.FormatIPhone, testUser)
	require.NoError(t, err)

	require.Len(t, res.Records, 5)

	visits := byType(res.Records, domain.TypeVisit)
	require.Len(t, visits, 1)
	assert.Equal(t, 35.639772, *visits[0].Latitude)
	assert.Equal(t, 139.670222, *visits[0].Longitude)
	assert.Equal(t, 0.95, *visits[0].VisitProbability)
	assert.Equal(t, "ChIJabc", *visits[0].VisitPlaceID)
	assert.Equal(t, "Work", *visits[0].VisitSemanticType)

	starts := byType(res.Records, domain.TypeActivityStart)
	require.Len(t, starts, 1)
	assert.Equal(t, 2500.5, *starts[0].ActivityDistanceMeters)
	assert.Equal(t, 0.8, *starts[0].ActivityProbability)
	assert.Equal(t, "walking", *starts[0].ActivityType)

	paths := byType(res.Records, domain.TypeTimelinePath)
	require.Len(t, paths, 2)
	require.NotNil(t, paths[0].PointTime)
	assert.True(t, time.Date(2024, 1, 15, 1, 40, 0, 0, time.UTC).Equal(paths[0].PointTime.Time))
	assert.True(t, time.Date(2024, 1, 15, 1, 55, 0, 0, time.UTC).Equal(paths[1].PointTime.Time))
}

func TestExtractTimeline_NaiveTimestampsCounted(t *testing.T) {
	content := `[{"startTime":"2024-01-15T09:00:00","endTime":"2024-01-15T10:00:00","activity":{"start":"geo:35.6,139.6"}}]`

	res, err := ExtractTimeline([]byte(content), domain.FormatIPhone, testUser)
	require.NoError(t, err)

	require.Len(t, res.Records, 1)
	assert.True(t, res.Records[0].StartTime.Naive)
	assert.Equal(t, 2, res.Soft[domain.KindTimestampAmbiguous])
}

func TestExtractTimeline_InvalidTimestampKeepsRecord(t *testing.T) {
	content := `[{"startTime":"yesterday-ish","visit":{"topCandidate":{"placeLocation":"geo:35.6,139.6"}}}]`

	res, err := ExtractTimeline([]byte(content), domain.FormatIPhone, testUser)
	require.NoError(t, err)

	require.Len(t, res.Records, 1)
	assert.Nil(t, res.Records[0].StartTime)
	assert.Equal(t, 1, res.Soft[domain.KindInvalidTimestamp])
}

func TestExtractTimeline_Errors(t *testing.T) {
	_, err := ExtractTimeline([]byte(`{`), domain.FormatAndroid, testUser)
	require.ErrorIs(t, err, domain.ErrMalformedInput)

	_, err = ExtractTimeline([]byte(`{"semanticSegments":{}}`), domain.FormatAndroid, testUser)
	require.ErrorIs(t, err, domain.ErrMalformedInput)

	_, err = ExtractTimeline([]byte(`{}`), domain.FormatIPhone, testUser)
	require.ErrorIs(t, err, domain.ErrMalformedInput)

	_, err = ExtractTimeline([]byte(`[]`), domain.FormatGPX, testUser)
	require.ErrorIs(t, err, domain.ErrUnrecognizedFormat)
}
