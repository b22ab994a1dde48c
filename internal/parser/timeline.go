package parser

import (
	"errors"
	"fmt"
	"time"

	"github.com/couchcryptid/geo-timeline-etl/internal/domain"
	"github.com/tidwall/gjson"
)

var errNoCoordinates = errors.New("no coordinates")

// ExtractTimeline extracts records from a Google Timeline export. The format
// must be FormatAndroid or FormatIPhone, as returned by Detect.
func ExtractTimeline(content []byte, format domain.Format, username string) (ExtractResult, error) {
	if !gjson.ValidBytes(content) {
		return ExtractResult{}, fmt.Errorf("parse timeline json: %w", domain.ErrMalformedInput)
	}
	root := gjson.ParseBytes(content)

	x := &timelineExtractor{username: username, res: newResult()}
	switch format {
	case domain.FormatAndroid:
		segments := root.Get("semanticSegments")
		if !segments.IsArray() {
			return ExtractResult{}, fmt.Errorf("parse android timeline: semanticSegments is not a list: %w", domain.ErrMalformedInput)
		}
		segments.ForEach(func(_, seg gjson.Result) bool {
			x.androidSegment(seg)
			return true
		})
	case domain.FormatIPhone:
		if !root.IsArray() {
			return ExtractResult{}, fmt.Errorf("parse iphone timeline: top level is not a list: %w", domain.ErrMalformedInput)
		}
		root.ForEach(func(_, seg gjson.Result) bool {
			x.iphoneSegment(seg)
			return true
		})
	default:
		return ExtractResult{}, fmt.Errorf("extract timeline as %s: %w", format, domain.ErrUnrecognizedFormat)
	}
	return x.res, nil
}

type timelineExtractor struct {
	username string
	res      ExtractResult
}

type segmentTimes struct {
	start *domain.Timestamp
	end   *domain.Timestamp
}

func (x *timelineExtractor) times(seg gjson.Result) segmentTimes {
	return segmentTimes{
		start: x.res.timestamp(seg.Get("startTime").String()),
		end:   x.res.timestamp(seg.Get("endTime").String()),
	}
}

func (x *timelineExtractor) emit(r domain.Record) {
	r.Username = x.username
	x.res.Records = append(x.res.Records, r)
}

func (x *timelineExtractor) androidSegment(seg gjson.Result) {
	st := x.times(seg)

	seg.Get("timelinePath").ForEach(func(_, p gjson.Result) bool {
		lat, lng, ok := x.coordinates(p, "point")
		if !ok {
			return true
		}
		x.emit(domain.Record{
			Type:      domain.TypeTimelinePath,
			StartTime: st.start,
			EndTime:   st.end,
			PointTime: x.res.timestamp(p.Get("time").String()),
			Latitude:  &lat,
			Longitude: &lng,
		})
		return true
	})

	if visit := seg.Get("visit"); visit.Exists() {
		lat, lng, ok := x.coordinates(visit, "topCandidate.placeLocation.latLng", "location.latLng")
		if ok {
			x.emit(domain.Record{
				Type:              domain.TypeVisit,
				StartTime:         st.start,
				EndTime:           st.end,
				Latitude:          &lat,
				Longitude:         &lng,
				VisitProbability:  number(visit.Get("probability")),
				VisitPlaceID:      text(visit.Get("topCandidate.placeId")),
				VisitSemanticType: text(visit.Get("topCandidate.semanticType")),
			})
		}
	}

	if activity := seg.Get("activity"); activity.Exists() {
		x.activity(activity, st, "start.latLng", "end.latLng")
	}
}

func (x *timelineExtractor) iphoneSegment(seg gjson.Result) {
	st := x.times(seg)

	if visit := seg.Get("visit"); visit.Exists() {
		lat, lng, ok := x.coordinates(visit, "topCandidate.placeLocation", "topCandidate.placeLocation.latLng", "location.latLng")
		if ok {
			x.emit(domain.Record{
				Type:              domain.TypeVisit,
				StartTime:         st.start,
				EndTime:           st.end,
				Latitude:          &lat,
				Longitude:         &lng,
				VisitProbability:  number(visit.Get("probability")),
				VisitPlaceID:      text(visit.Get("topCandidate.placeID")),
				VisitSemanticType: text(visit.Get("topCandidate.semanticType")),
			})
		}
	}

	if activity := seg.Get("activity"); activity.Exists() {
		x.activity(activity, st, "start", "end")
	}

	seg.Get("timelinePath").ForEach(func(_, p gjson.Result) bool {
		lat, lng, ok := x.coordinates(p, "point")
		if !ok {
			return true
		}
		var pointTime *domain.Timestamp
		if offset := number(p.Get("durationMinutesOffsetFromStartTime")); offset != nil && st.start != nil {
			ts := st.start.Add(time.Duration(*offset * float64(time.Minute)))
			pointTime = &ts
		}
		x.emit(domain.Record{
			Type:      domain.TypeTimelinePath,
			StartTime: st.start,
			EndTime:   st.end,
			PointTime: pointTime,
			Latitude:  &lat,
			Longitude: &lng,
		})
		return true
	})
}

// activity emits activity_start and activity_end records. A missing end
// point is skipped without a soft error; one that fails to parse is counted.
func (x *timelineExtractor) activity(activity gjson.Result, st segmentTimes, startPath, endPath string) {
	distance := number(activity.Get("distanceMeters"))
	kind := text(activity.Get("topCandidate.type"))
	probability := number(activity.Get("topCandidate.probability"))

	for _, ep := range []struct {
		typ  string
		path string
	}{
		{domain.TypeActivityStart, startPath},
		{domain.TypeActivityEnd, endPath},
	} {
		if !activity.Get(ep.path).Exists() {
			continue
		}
		lat, lng, ok := x.coordinates(activity, ep.path)
		if !ok {
			continue
		}
		x.emit(domain.Record{
			Type:                   ep.typ,
			StartTime:              st.start,
			EndTime:                st.end,
			Latitude:               &lat,
			Longitude:              &lng,
			ActivityDistanceMeters: distance,
			ActivityType:           kind,
			ActivityProbability:    probability,
		})
	}
}

// coordinates resolves the first usable coordinate found under paths. Failures
// are counted as soft errors and reported as ok=false.
func (x *timelineExtractor) coordinates(obj gjson.Result, paths ...string) (lat, lng float64, ok bool) {
	lat, lng, err := resolveCoordinates(obj, paths...)
	if err != nil {
		if errors.Is(err, errNoCoordinates) {
			x.res.Soft.Add(domain.KindCoordinateParse)
		} else {
			x.res.Soft.Add(domain.KindOf(err))
		}
		return 0, 0, false
	}
	return lat, lng, true
}

func resolveCoordinates(obj gjson.Result, paths ...string) (float64, float64, error) {
	for _, p := range paths {
		v := obj.Get(p)
		switch {
		case v.Type == gjson.String:
			return domain.ParseLatLng(v.String())
		case v.IsObject():
			if lat, lng, found := objectCoordinates(v); found {
				if !domain.ValidCoordinate(lat, lng) {
					return 0, 0, fmt.Errorf("lat/lng %v,%v: %w", lat, lng, domain.ErrCoordinateOutOfRange)
				}
				return lat, lng, nil
			}
		}
	}
	return 0, 0, errNoCoordinates
}

// objectCoordinates reads {latitude, longitude} and E7 integer forms.
func objectCoordinates(v gjson.Result) (lat, lng float64, found bool) {
	pairs := []struct {
		lat, lng string
		scale    float64
	}{
		{"latitude", "longitude", 1},
		{"latitudeE7", "longitudeE7", 1e7},
		{"latE7", "lngE7", 1e7},
	}
	for _, p := range pairs {
		la, lo := number(v.Get(p.lat)), number(v.Get(p.lng))
		if la != nil && lo != nil {
			return *la / p.scale, *lo / p.scale, true
		}
	}
	return 0, 0, false
}

// number reads a JSON number or a numeric string. Anything else is nil.
func number(v gjson.Result) *float64 {
	switch v.Type {
	case gjson.Number:
		return domain.Ptr(v.Float())
	case gjson.String:
		if f, ok := parseFloat(v.String()); ok {
			return &f
		}
	}
	return nil
}

func text(v gjson.Result) *string {
	if !v.Exists() || v.Type == gjson.Null {
		return nil
	}
	return domain.Ptr(v.String())
}
