package domain

import (
	"path/filepath"
	"regexp"
	"strings"
)

// Username modes.
const (
	UsernameFixed    = "fixed"
	UsernameFilename = "filename"
	UsernameCustom   = "custom"
)

var nonAlnumRun = regexp.MustCompile(`[^a-z0-9]+`)

// Checked in order against the lowercased filename.
var customUsernames = []struct {
	marker   string
	username string
}{
	{"android", "android_user"},
	{"iphone", "iphone_user"},
	{"timeline", "timeline_user"},
	{"location", "location_user"},
}

// UsernameResolver derives the username attached to every record of a file.
type UsernameResolver struct {
	Mode  string
	Fixed string
	Base  string
}

// Resolve returns the username for the given file name. Unknown modes fall
// back to the fixed username.
func (r UsernameResolver) Resolve(filename string) string {
	switch r.Mode {
	case UsernameFilename:
		return r.Base + "_" + SanitizeStem(filename)
	case UsernameCustom:
		lower := strings.ToLower(filepath.Base(filename))
		for _, c := range customUsernames {
			if strings.Contains(lower, c.marker) {
				return c.username
			}
		}
		return "user_" + SanitizeStem(filename)
	default:
		return r.Fixed
	}
}

// SanitizeStem turns a file name into an identifier: the basename without
// extension, lowercased, with every run of non-alphanumerics collapsed to a
// single underscore. An empty result becomes "unknown".
func SanitizeStem(filename string) string {
	base := filepath.Base(filename)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	s := nonAlnumRun.ReplaceAllString(strings.ToLower(stem), "_")
	s = strings.Trim(s, "_")
	if s == "" {
		return "unknown"
	}
	return s
}
