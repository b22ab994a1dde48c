package parser

import (
	"fmt"
	"strings"
	"time"

	"github.com/couchcryptid/geo-timeline-etl/internal/domain"
	"github.com/tkrajina/gpxgo/gpx"
)

// GPX data sources, by filename marker. Checked in order.
var dataSources = []struct {
	marker string
	source string
}{
	{"yamap", "yamap"},
	{"garmin", "garmin"},
	{"activity_", "garmin"},
}

const genericDataSource = "gpx"

// GPXOptions tune track classification and speed computation.
type GPXOptions struct {
	Thresholds domain.Thresholds
	// MaxSpeedKmh clamps instantaneous speeds. Zero disables clamping.
	MaxSpeedKmh float64
}

// DataSource derives the GPX producer from the file name.
func DataSource(filename string) string {
	lower := strings.ToLower(filename)
	for _, ds := range dataSources {
		if strings.Contains(lower, ds.marker) {
			return ds.source
		}
	}
	return genericDataSource
}

// ExtractGPX emits one gpx_trackpoint record per track point and one
// gpx_waypoint record per waypoint.
func ExtractGPX(content []byte, filename, username string, opts GPXOptions) (ExtractResult, error) {
	if err := rejectDTD(content); err != nil {
		return ExtractResult{}, fmt.Errorf("parse gpx: %w", err)
	}
	doc, err := gpx.ParseBytes(content)
	if err != nil {
		return ExtractResult{}, fmt.Errorf("parse gpx: %w: %v", domain.ErrMalformedInput, err)
	}

	res := newResult()
	source := DataSource(filename)

	for i := range doc.Tracks {
		trk := &doc.Tracks[i]
		name := strings.TrimSpace(trk.Name)
		if name == "" {
			name = fmt.Sprintf("Track %d", i+1)
		}
		t := collectTrack(trk, opts.MaxSpeedKmh, &res)
		if len(t.points) == 0 {
			continue
		}

		activity := domain.Classify(filename, name, t.avgSpeed(), t.elevationGain(), opts.Thresholds)
		semantic := domain.SemanticType(activity, name)
		start, end := t.timeRange()

		for _, p := range t.points {
			res.Records = append(res.Records, domain.Record{
				Type:              domain.TypeGPXTrackpoint,
				StartTime:         start,
				EndTime:           end,
				PointTime:         p.time,
				Latitude:          domain.Ptr(p.lat),
				Longitude:         domain.Ptr(p.lng),
				VisitPlaceID:      domain.Ptr(name),
				VisitSemanticType: domain.Ptr(semantic),
				ActivityType:      domain.Ptr(activity),
				Username:          username,
				GPX: &domain.GPXFields{
					DataSource:    source,
					TrackName:     name,
					Elevation:     p.elevation,
					Speed:         p.speed,
					PointSequence: p.seq,
				},
			})
		}
	}

	for i := range doc.Waypoints {
		w := &doc.Waypoints[i]
		if !domain.ValidCoordinate(w.Latitude, w.Longitude) {
			res.Soft.Add(domain.KindCoordinateOutOfRange)
			continue
		}
		name := strings.TrimSpace(w.Name)
		if name == "" {
			name = fmt.Sprintf("Waypoint %d", i+1)
		}
		ts := gpxTime(w.Timestamp)
		res.Records = append(res.Records, domain.Record{
			Type:              domain.TypeGPXWaypoint,
			StartTime:         ts,
			EndTime:           ts,
			PointTime:         ts,
			Latitude:          domain.Ptr(w.Latitude),
			Longitude:         domain.Ptr(w.Longitude),
			VisitPlaceID:      domain.Ptr(name),
			VisitSemanticType: domain.Ptr(domain.SemanticWaypoint),
			ActivityType:      domain.Ptr("waypoint"),
			Username:          username,
			GPX: &domain.GPXFields{
				DataSource:    source,
				TrackName:     name,
				Elevation:     elevation(&w.Point),
				PointSequence: i,
				Description:   optionalText(w.Description),
			},
		})
	}

	return res, nil
}

type trackPoint struct {
	lat, lng  float64
	elevation *float64
	time      *domain.Timestamp
	speed     *float64
	seq       int
}

type track struct {
	points []trackPoint
}

// collectTrack flattens the segments of trk in document order, computing the
// speed of each point relative to its predecessor in the same segment.
func collectTrack(trk *gpx.GPXTrack, maxSpeed float64, res *ExtractResult) track {
	var t track
	for si := range trk.Segments {
		var prev trackPoint
		first := true
		for pi := range trk.Segments[si].Points {
			gp := &trk.Segments[si].Points[pi]
			if !domain.ValidCoordinate(gp.Latitude, gp.Longitude) {
				res.Soft.Add(domain.KindCoordinateOutOfRange)
				continue
			}
			p := trackPoint{
				lat:       gp.Latitude,
				lng:       gp.Longitude,
				elevation: elevation(&gp.Point),
				time:      gpxTime(gp.Timestamp),
				seq:       pi,
			}
			if !first {
				p.speed = speedKmh(prev, p, maxSpeed)
			}
			t.points = append(t.points, p)
			prev, first = p, false
		}
	}
	return t
}

// speedKmh is nil when either time is missing or elapsed time is not positive.
func speedKmh(from, to trackPoint, maxSpeed float64) *float64 {
	if from.time == nil || to.time == nil {
		return nil
	}
	elapsed := to.time.Time.Sub(from.time.Time).Seconds()
	if elapsed <= 0 {
		return nil
	}
	v := domain.DistanceMeters(from.lat, from.lng, to.lat, to.lng) / elapsed * 3.6
	if maxSpeed > 0 && v > maxSpeed {
		v = maxSpeed
	}
	return &v
}

func (t track) avgSpeed() float64 {
	var sum float64
	var n int
	for _, p := range t.points {
		if p.speed != nil && *p.speed > 0 {
			sum += *p.speed
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// elevationGain sums positive elevation deltas, skipping points without
// elevation.
func (t track) elevationGain() float64 {
	var gain float64
	var prev *float64
	for _, p := range t.points {
		if p.elevation == nil {
			continue
		}
		if prev != nil && *p.elevation > *prev {
			gain += *p.elevation - *prev
		}
		prev = p.elevation
	}
	return gain
}

func (t track) timeRange() (start, end *domain.Timestamp) {
	for _, p := range t.points {
		if p.time == nil {
			continue
		}
		if start == nil || p.time.Before(*start) {
			start = p.time
		}
		if end == nil || end.Before(*p.time) {
			end = p.time
		}
	}
	return start, end
}

func elevation(p *gpx.Point) *float64 {
	if p.Elevation.Null() {
		return nil
	}
	return domain.Ptr(p.Elevation.Value())
}

func gpxTime(t time.Time) *domain.Timestamp {
	if t.IsZero() {
		return nil
	}
	ts := domain.AwareOf(t)
	return &ts
}

func optionalText(s string) *string {
	if s = strings.TrimSpace(s); s == "" {
		return nil
	}
	return &s
}
