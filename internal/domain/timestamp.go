package domain

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

const (
	naiveLayout = "2006-01-02 15:04:05.999999999"
	awareLayout = time.RFC3339Nano
)

// offsetRe matches a trailing UTC designator or numeric offset that follows a
// clock time, e.g. "T10:00:00Z", "T10:00:00.000+09:00", " 10:00+0900".
var offsetRe = regexp.MustCompile(`(?i)[t ]\d{1,2}:\d{2}(?::\d{2}(?:[.,]\d+)?)?\s*(?:z|[+-]\d{2}(?::?\d{2})?)$`)

// Timestamp is a point in time as read from a source file. A naive timestamp
// carries no UTC offset; its wall clock is stored in Time with location UTC
// and must not be read as a UTC instant.
type Timestamp struct {
	Time  time.Time
	Naive bool
}

// NaiveOf strips the location of t, keeping its wall clock.
func NaiveOf(t time.Time) Timestamp {
	return Timestamp{
		Time:  time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC),
		Naive: true,
	}
}

// AwareOf wraps an offset-aware time.
func AwareOf(t time.Time) Timestamp {
	return Timestamp{Time: t}
}

// ParseTimestamp parses an ISO-8601 style timestamp. An empty string yields
// nil. Strings without a UTC designator or offset are returned naive.
func ParseTimestamp(s string) (*Timestamp, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}

	t, err := dateparse.ParseIn(s, time.UTC)
	if err != nil {
		return nil, fmt.Errorf("parse timestamp %q: %w: %v", s, ErrInvalidTimestamp, err)
	}

	if offsetRe.MatchString(s) {
		ts := AwareOf(t)
		return &ts, nil
	}
	ts := NaiveOf(t)
	return &ts, nil
}

// Before reports whether ts sorts before other. Naive values compare by wall
// clock, which is only meaningful once both are normalized.
func (ts Timestamp) Before(other Timestamp) bool {
	return ts.Time.Before(other.Time)
}

// Add returns ts shifted by d, keeping its naivety.
func (ts Timestamp) Add(d time.Duration) Timestamp {
	return Timestamp{Time: ts.Time.Add(d), Naive: ts.Naive}
}

// String renders naive values as "2006-01-02 15:04:05" with optional
// fractional seconds, and aware values as RFC 3339.
func (ts Timestamp) String() string {
	if ts.Naive {
		return ts.Time.Format(naiveLayout)
	}
	return ts.Time.Format(awareLayout)
}

// MarshalJSON encodes the timestamp as its String form.
func (ts Timestamp) MarshalJSON() ([]byte, error) {
	return []byte(`"` + ts.String() + `"`), nil
}

// Normalizer converts timestamps to offset-free wall clock time in the
// configured output zone. Naive input is interpreted in the input zone.
type Normalizer struct {
	in   *time.Location
	out  *time.Location
	same bool
}

// NewNormalizer loads both IANA zones.
func NewNormalizer(inputZone, outputZone string) (*Normalizer, error) {
	in, err := time.LoadLocation(inputZone)
	if err != nil {
		return nil, fmt.Errorf("load input timezone %q: %w", inputZone, err)
	}
	out, err := time.LoadLocation(outputZone)
	if err != nil {
		return nil, fmt.Errorf("load output timezone %q: %w", outputZone, err)
	}
	return &Normalizer{in: in, out: out, same: in.String() == out.String()}, nil
}

// Normalize returns a new naive timestamp holding the output-zone wall clock
// of ts. The argument is never modified. With equal zones a naive value is
// returned as is.
func (n *Normalizer) Normalize(ts *Timestamp) *Timestamp {
	out, _ := n.normalize(ts)
	return out
}

// normalize also reports whether a naive ts names a wall clock that does not
// exist in the input zone (a daylight saving gap) and was shifted.
func (n *Normalizer) normalize(ts *Timestamp) (*Timestamp, bool) {
	if ts == nil {
		return nil, false
	}

	t := ts.Time
	shifted := false
	if ts.Naive {
		if n.same {
			cp := *ts
			return &cp, false
		}
		local := time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), n.in)
		shifted = local.Day() != t.Day() || local.Hour() != t.Hour() || local.Minute() != t.Minute()
		t = local
	}
	normalized := NaiveOf(t.In(n.out))
	return &normalized, shifted
}

// NormalizeRecord rewrites the three timestamp fields of r in place. The
// returned error wraps ErrTimestampAmbiguous when a naive field fell into a
// daylight saving gap of the input zone; the fields are still rewritten.
func (n *Normalizer) NormalizeRecord(r *Record) error {
	var gaps int
	for _, f := range []**Timestamp{&r.StartTime, &r.EndTime, &r.PointTime} {
		var shifted bool
		*f, shifted = n.normalize(*f)
		if shifted {
			gaps++
		}
	}
	if gaps > 0 {
		return fmt.Errorf("%d wall clock times skipped by daylight saving in %s: %w", gaps, n.in, ErrTimestampAmbiguous)
	}
	return nil
}
