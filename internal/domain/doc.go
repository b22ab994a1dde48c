// Package domain models location history records exported by phones, GPS
// devices and mapping tools, and the rules that merge them into one table.
//
// # Source Formats
//
// Google Timeline, Android export ("Timeline.json" from the device):
//
//	{"semanticSegments": [{"startTime": ..., "endTime": ...,
//	  "visit": {...} | "activity": {...} | "timelinePath": [...]}]}
//	Coordinates are strings such as "35.681°, 139.767°".
//
// Google Timeline, iPhone export:
//
//	[{"startTime": ..., "endTime": ..., "visit": {...} | "activity": {...}}]
//	Coordinates are "geo:lat,lng" strings; probabilities and distances are strings.
//
// GPX 1.1: <trk>/<trkseg>/<trkpt lat lon> with optional <ele> and <time>,
// plus standalone <wpt> waypoints.
//
// KML 2.2 and KMZ (a zip archive holding doc.kml): gx:Track when/coord pairs
// and Placemarks with Point, LineString, Polygon or MultiGeometry geometry.
//
// # Timestamps
//
// Source timestamps may carry a UTC offset or none. Naive values are read as
// wall clock in the configured input zone (Asia/Tokyo by default), converted
// to the output zone and stored without an offset. See [Normalizer].
//
// # Activity Classification
//
// GPX tracks get an activity label from, in order: filename hints, track
// name hints, then average speed (km/h) and cumulative elevation gain (m):
//
//	walking  avg < walking_max
//	hiking   avg < hiking_max and gain >= hiking_min_gain
//	running  avg < running_max
//	cycling  avg < cycling_max
//	unknown  otherwise
//
// # Unified Table
//
// Every record becomes a [Row] over the column set of its format. Tables of
// different formats are merged by column union with null fill ([Merge]) and
// ordered by point_time, then start_time, then end_time ([SortByTime]).
package domain
