package parser

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/couchcryptid/geo-timeline-etl/internal/domain"
)

// Struct tags use local names only, so elements match in both the KML and
// the gx extension namespaces.
type kmlPlacemark struct {
	Name      string        `xml:"name"`
	TimeStamp *kmlTimeStamp `xml:"TimeStamp"`
	TimeSpan  *kmlTimeSpan  `xml:"TimeSpan"`
	kmlGeometry
}

type kmlGeometry struct {
	Points        []kmlCoordinates `xml:"Point"`
	LineStrings   []kmlCoordinates `xml:"LineString"`
	Polygons      []kmlPolygon     `xml:"Polygon"`
	Tracks        []kmlTrack       `xml:"Track"`
	MultiTracks   []kmlMultiTrack  `xml:"MultiTrack"`
	MultiGeometry []kmlGeometry    `xml:"MultiGeometry"`
}

type kmlCoordinates struct {
	Coordinates string `xml:"coordinates"`
}

type kmlPolygon struct {
	Outer string `xml:"outerBoundaryIs>LinearRing>coordinates"`
}

type kmlTrack struct {
	When  []string `xml:"when"`
	Coord []string `xml:"coord"`
}

type kmlMultiTrack struct {
	Tracks []kmlTrack `xml:"Track"`
}

type kmlTimeStamp struct {
	When string `xml:"when"`
}

type kmlTimeSpan struct {
	Begin string `xml:"begin"`
	End   string `xml:"end"`
}

type kmlPosition struct {
	lat, lng float64
	alt      *float64
}

// ExtractKML streams a KML document and emits one record per gx:Track sample,
// whether or not the track sits in a Placemark, and per Point, LineString and
// Polygon vertex of every Placemark, at any nesting depth.
func ExtractKML(content []byte, username string) (ExtractResult, error) {
	if err := rejectDTD(content); err != nil {
		return ExtractResult{}, fmt.Errorf("parse kml: %w", err)
	}

	x := &kmlExtractor{username: username, res: newResult()}
	dec := newXMLDecoder(bytes.NewReader(content))
	roots := 0
	depth := 0
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return ExtractResult{}, fmt.Errorf("parse kml: %w: %v", domain.ErrMalformedInput, err)
		}

		switch t := tok.(type) {
		case xml.Directive:
			return ExtractResult{}, fmt.Errorf("parse kml: directive not allowed: %w", domain.ErrMalformedInput)
		case xml.StartElement:
			if depth == 0 {
				roots++
			}
			switch t.Name.Local {
			case "Placemark":
				var pm kmlPlacemark
				if err := dec.DecodeElement(&pm, &t); err != nil {
					return ExtractResult{}, fmt.Errorf("parse kml placemark: %w: %v", domain.ErrMalformedInput, err)
				}
				x.placemark(&pm)
			case "Track", "MultiTrack":
				// gx:Track elements are also found outside any Placemark.
				var g kmlGeometry
				if err := decodeTrack(dec, &t, &g); err != nil {
					return ExtractResult{}, fmt.Errorf("parse kml track: %w: %v", domain.ErrMalformedInput, err)
				}
				x.geometry(&g, placemarkTimes{})
			default:
				depth++
			}
		case xml.EndElement:
			depth--
		}
	}
	if roots == 0 {
		return ExtractResult{}, fmt.Errorf("parse kml: no root element: %w", domain.ErrMalformedInput)
	}
	return x.res, nil
}

func decodeTrack(dec *xml.Decoder, start *xml.StartElement, g *kmlGeometry) error {
	if start.Name.Local == "MultiTrack" {
		var mt kmlMultiTrack
		if err := dec.DecodeElement(&mt, start); err != nil {
			return err
		}
		g.MultiTracks = append(g.MultiTracks, mt)
		return nil
	}
	var tr kmlTrack
	if err := dec.DecodeElement(&tr, start); err != nil {
		return err
	}
	g.Tracks = append(g.Tracks, tr)
	return nil
}

type kmlExtractor struct {
	username string
	res      ExtractResult
}

type placemarkTimes struct {
	point, start, end *domain.Timestamp
}

func (x *kmlExtractor) placemark(pm *kmlPlacemark) {
	var pt placemarkTimes
	if pm.TimeSpan != nil {
		pt.start = x.res.timestamp(pm.TimeSpan.Begin)
		pt.end = x.res.timestamp(pm.TimeSpan.End)
	}
	switch {
	case pm.TimeStamp != nil && strings.TrimSpace(pm.TimeStamp.When) != "":
		pt.point = x.res.timestamp(pm.TimeStamp.When)
	case pt.start != nil:
		pt.point = pt.start
	}
	x.geometry(&pm.kmlGeometry, pt)
}

func (x *kmlExtractor) geometry(g *kmlGeometry, pt placemarkTimes) {
	for _, p := range g.Points {
		x.vertices(domain.TypeKMLPoint, p.Coordinates, pt)
	}
	for _, ls := range g.LineStrings {
		x.vertices(domain.TypeKMLLineString, ls.Coordinates, pt)
	}
	for _, poly := range g.Polygons {
		x.vertices(domain.TypeKMLPolygon, poly.Outer, pt)
	}
	for i := range g.Tracks {
		x.track(&g.Tracks[i], pt)
	}
	for _, mt := range g.MultiTracks {
		for i := range mt.Tracks {
			x.track(&mt.Tracks[i], pt)
		}
	}
	for i := range g.MultiGeometry {
		x.geometry(&g.MultiGeometry[i], pt)
	}
}

// tupleSep matches a comma inside a coordinate tuple together with any
// whitespace around it, as in "139.767, 35.681, 10".
var tupleSep = regexp.MustCompile(`\s*,\s*`)

// vertices emits one record per "lng,lat[,alt]" tuple of a coordinates
// element. Tuples are separated by whitespace.
func (x *kmlExtractor) vertices(typ, coordinates string, pt placemarkTimes) {
	for _, tuple := range strings.Fields(tupleSep.ReplaceAllString(coordinates, ",")) {
		pos, err := parsePosition(strings.Split(tuple, ","))
		if err != nil {
			x.res.Soft.Add(domain.KindOf(err))
			continue
		}
		x.emit(typ, pos, pt)
	}
}

// track pairs when and gx:coord elements by index. Lists of unequal length
// are truncated to the shorter one.
func (x *kmlExtractor) track(t *kmlTrack, pt placemarkTimes) {
	n := len(t.When)
	if len(t.Coord) != n {
		n = min(n, len(t.Coord))
		x.res.warn(domain.KindTrackLengthMismatch,
			fmt.Sprintf("gx:Track has %d when and %d coord elements, using %d pairs", len(t.When), len(t.Coord), n))
	}
	for i := 0; i < n; i++ {
		pos, err := parsePosition(strings.Fields(t.Coord[i]))
		if err != nil {
			x.res.Soft.Add(domain.KindOf(err))
			continue
		}
		x.emit(domain.TypeKMLGxTrack, pos, placemarkTimes{
			point: x.res.timestamp(t.When[i]),
			start: pt.start,
			end:   pt.end,
		})
	}
}

func (x *kmlExtractor) emit(typ string, pos kmlPosition, pt placemarkTimes) {
	x.res.Records = append(x.res.Records, domain.Record{
		Type:      typ,
		StartTime: pt.start,
		EndTime:   pt.end,
		PointTime: pt.point,
		Latitude:  domain.Ptr(pos.lat),
		Longitude: domain.Ptr(pos.lng),
		Elevation: pos.alt,
		Username:  x.username,
	})
}

// parsePosition reads KML axis order: longitude, latitude, optional altitude.
func parsePosition(parts []string) (kmlPosition, error) {
	if len(parts) < 2 || len(parts) > 3 {
		return kmlPosition{}, fmt.Errorf("kml coordinate %q: %w", strings.Join(parts, ","), domain.ErrCoordinateParse)
	}
	lng, ok1 := parseFloat(strings.TrimSpace(parts[0]))
	lat, ok2 := parseFloat(strings.TrimSpace(parts[1]))
	if !ok1 || !ok2 {
		return kmlPosition{}, fmt.Errorf("kml coordinate %q: %w", strings.Join(parts, ","), domain.ErrCoordinateParse)
	}
	if !domain.ValidCoordinate(lat, lng) {
		return kmlPosition{}, fmt.Errorf("kml coordinate %v,%v: %w", lng, lat, domain.ErrCoordinateOutOfRange)
	}
	pos := kmlPosition{lat: lat, lng: lng}
	if len(parts) == 3 {
		if alt, ok := parseFloat(strings.TrimSpace(parts[2])); ok {
			pos.alt = &alt
		}
	}
	return pos, nil
}
