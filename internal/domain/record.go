package domain

// Format identifies the source format of an input file.
type Format string

const (
	FormatUnknown Format = "unknown"
	FormatAndroid Format = "android-timeline"
	FormatIPhone  Format = "iphone-timeline"
	FormatGPX     Format = "gpx"
	FormatKML     Format = "kml"
	FormatKMZ     Format = "kmz"
)

// Formats lists every supported format in reporting order.
var Formats = []Format{FormatAndroid, FormatIPhone, FormatGPX, FormatKML, FormatKMZ}

// Record types emitted by the extractors.
const (
	TypeVisit         = "visit"
	TypeActivityStart = "activity_start"
	TypeActivityEnd   = "activity_end"
	TypeTimelinePath  = "timelinePath"
	TypeGPXTrackpoint = "gpx_trackpoint"
	TypeGPXWaypoint   = "gpx_waypoint"
	TypeKMLGxTrack    = "kml_gx_track"
	TypeKMLPoint      = "kml_point"
	TypeKMLLineString = "kml_linestring"
	TypeKMLPolygon    = "kml_polygon"
)

// Column names of the unified table.
const (
	ColType                   = "type"
	ColStartTime              = "start_time"
	ColEndTime                = "end_time"
	ColPointTime              = "point_time"
	ColLatitude               = "latitude"
	ColLongitude              = "longitude"
	ColVisitProbability       = "visit_probability"
	ColVisitPlaceID           = "visit_placeId"
	ColVisitSemanticType      = "visit_semanticType"
	ColActivityDistanceMeters = "activity_distanceMeters"
	ColActivityType           = "activity_type"
	ColActivityProbability    = "activity_probability"
	ColUsername               = "username"
	ColElevation              = "elevation"
	ColGPXDataSource          = "_gpx_data_source"
	ColGPXTrackName           = "_gpx_track_name"
	ColGPXElevation           = "_gpx_elevation"
	ColGPXSpeed               = "_gpx_speed"
	ColGPXPointSequence       = "_gpx_point_sequence"
	ColGPXDescription         = "_gpx_description"
)

var (
	// TimelineColumns are declared by both Google Timeline formats.
	TimelineColumns = []string{
		ColType, ColStartTime, ColEndTime, ColPointTime, ColLatitude, ColLongitude,
		ColVisitProbability, ColVisitPlaceID, ColVisitSemanticType,
		ColActivityDistanceMeters, ColActivityType, ColActivityProbability, ColUsername,
	}

	// GPXColumns extend the timeline columns with per-point track data.
	GPXColumns = concat(TimelineColumns, []string{
		ColGPXDataSource, ColGPXTrackName, ColGPXElevation, ColGPXSpeed, ColGPXPointSequence,
		ColGPXDescription,
	})

	// KMLColumns extend the timeline columns with the coordinate altitude.
	KMLColumns = concat(TimelineColumns, []string{ColElevation})

	// DefaultColumns is the declared column order of the unified table.
	DefaultColumns = concat(concat(TimelineColumns, []string{ColElevation}), GPXColumns[len(TimelineColumns):])
)

// Columns returns the column set a format contributes to the unified table.
func (f Format) Columns() []string {
	switch f {
	case FormatGPX:
		return GPXColumns
	case FormatKML, FormatKMZ:
		return KMLColumns
	default:
		return TimelineColumns
	}
}

// GPXFields holds the columns only GPX records carry.
type GPXFields struct {
	DataSource    string
	TrackName     string
	Elevation     *float64
	Speed         *float64
	PointSequence int

	// Description is the <desc> of a waypoint.
	Description *string
}

// Record is one normalized location observation produced by an extractor.
// Nil pointers are null cells in the unified table.
type Record struct {
	Type      string
	StartTime *Timestamp
	EndTime   *Timestamp
	PointTime *Timestamp
	Latitude  *float64
	Longitude *float64

	VisitProbability       *float64
	VisitPlaceID           *string
	VisitSemanticType      *string
	ActivityDistanceMeters *float64
	ActivityType           *string
	ActivityProbability    *float64

	Username string

	// Elevation is the altitude component of KML coordinates.
	Elevation *float64

	GPX *GPXFields
}

// Value returns the cell value of the named column, or nil when the record
// has no value for it.
func (r Record) Value(column string) any {
	switch column {
	case ColType:
		return r.Type
	case ColStartTime:
		return deref(r.StartTime)
	case ColEndTime:
		return deref(r.EndTime)
	case ColPointTime:
		return deref(r.PointTime)
	case ColLatitude:
		return deref(r.Latitude)
	case ColLongitude:
		return deref(r.Longitude)
	case ColVisitProbability:
		return deref(r.VisitProbability)
	case ColVisitPlaceID:
		return deref(r.VisitPlaceID)
	case ColVisitSemanticType:
		return deref(r.VisitSemanticType)
	case ColActivityDistanceMeters:
		return deref(r.ActivityDistanceMeters)
	case ColActivityType:
		return deref(r.ActivityType)
	case ColActivityProbability:
		return deref(r.ActivityProbability)
	case ColUsername:
		return r.Username
	case ColElevation:
		return deref(r.Elevation)
	}

	if r.GPX == nil {
		return nil
	}
	switch column {
	case ColGPXDataSource:
		return r.GPX.DataSource
	case ColGPXTrackName:
		return r.GPX.TrackName
	case ColGPXElevation:
		return deref(r.GPX.Elevation)
	case ColGPXSpeed:
		return deref(r.GPX.Speed)
	case ColGPXPointSequence:
		return r.GPX.PointSequence
	case ColGPXDescription:
		return deref(r.GPX.Description)
	}
	return nil
}

// Row projects the record onto the given columns.
func (r Record) Row(columns []string) Row {
	row := make(Row, len(columns))
	for _, c := range columns {
		row[c] = r.Value(c)
	}
	return row
}

// SourceFile is a discovered input file with its raw content.
type SourceFile struct {
	Path    string
	Name    string
	Ext     string // lowercased, with leading dot
	Content []byte
}

// Batch is the unit handed to sinks: one merged table from one run.
type Batch struct {
	RunID string
	Table Table
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T {
	return &v
}

// deref unwraps a pointer into an untyped nil or its value, so that table
// cells never hold typed nil pointers.
func deref[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}

func concat(a, b []string) []string {
	out := make([]string, 0, len(a)+len(b))
	out = append(out, a...)
	return append(out, b...)
}
