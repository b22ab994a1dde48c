package domain

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
)

// ValidCoordinate reports whether lat and lng are inside the WGS84 ranges.
func ValidCoordinate(lat, lng float64) bool {
	return lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180
}

// ParseLatLng parses the coordinate strings found in timeline exports:
// "35.681,139.767", "35.681°, 139.767°" and "geo:35.681,139.767".
// Unparseable input wraps ErrCoordinateParse; values outside WGS84 wrap
// ErrCoordinateOutOfRange.
func ParseLatLng(s string) (lat, lng float64, err error) {
	v := strings.TrimSpace(s)
	v = strings.TrimPrefix(v, "geo:")
	v = strings.ReplaceAll(v, "°", "")

	parts := strings.Split(v, ",")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("parse lat/lng %q: %w", s, ErrCoordinateParse)
	}
	lat, err = strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("parse latitude %q: %w", s, ErrCoordinateParse)
	}
	lng, err = strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("parse longitude %q: %w", s, ErrCoordinateParse)
	}
	if !ValidCoordinate(lat, lng) {
		return 0, 0, fmt.Errorf("lat/lng %q: %w", s, ErrCoordinateOutOfRange)
	}
	return lat, lng, nil
}

// DistanceMeters is the great-circle distance between two WGS84 positions.
func DistanceMeters(lat1, lng1, lat2, lng2 float64) float64 {
	return geo.DistanceHaversine(orb.Point{lng1, lat1}, orb.Point{lng2, lat2})
}
