package parser

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/couchcryptid/geo-timeline-etl/internal/domain"
	"github.com/tidwall/gjson"
)

var gpxRootRe = regexp.MustCompile(`(?i)<gpx[\s>]`)

// SupportedExtensions lists the lowercased file extensions Detect accepts.
var SupportedExtensions = []string{".json", ".gpx", ".kml", ".kmz"}

// Detect returns the format of a file from its name and decoded content.
// GPX files whose content lacks a <gpx> root fail with ErrMalformedInput and
// report FormatGPX so callers can attribute the failure.
func Detect(filename string, content []byte) (domain.Format, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".gpx":
		if !gpxRootRe.Match(content) {
			return domain.FormatGPX, fmt.Errorf("detect %s: no gpx root element: %w", filename, domain.ErrMalformedInput)
		}
		return domain.FormatGPX, nil
	case ".kml":
		return domain.FormatKML, nil
	case ".kmz":
		return domain.FormatKMZ, nil
	case ".json":
		return detectTimeline(filename, content)
	default:
		return domain.FormatUnknown, fmt.Errorf("detect %s: %w", filename, domain.ErrUnrecognizedFormat)
	}
}

func detectTimeline(filename string, content []byte) (domain.Format, error) {
	if !gjson.ValidBytes(content) {
		return domain.FormatUnknown, fmt.Errorf("detect %s: invalid json: %w", filename, domain.ErrMalformedInput)
	}

	root := gjson.ParseBytes(content)
	var iphone, android bool
	switch {
	case root.IsArray():
		first := root.Get("0")
		iphone = first.Get("startTime").Exists()
		android = first.Get("semanticSegments").Exists()
	case root.IsObject():
		android = root.Get("semanticSegments").Exists()
		iphone = root.Get("startTime").Exists()
	}

	switch {
	case iphone && android:
		return domain.FormatUnknown, fmt.Errorf("detect %s: both timeline markers present: %w", filename, domain.ErrUnrecognizedFormat)
	case iphone && root.IsArray():
		return domain.FormatIPhone, nil
	case android && root.IsObject():
		return domain.FormatAndroid, nil
	default:
		return domain.FormatUnknown, fmt.Errorf("detect %s: %w", filename, domain.ErrUnrecognizedFormat)
	}
}
