package domain

import (
	"errors"
	"sort"
)

var (
	ErrUnrecognizedFormat   = errors.New("unrecognized format")
	ErrMalformedInput       = errors.New("malformed input")
	ErrSecurityViolation    = errors.New("security violation")
	ErrCoordinateOutOfRange = errors.New("coordinate out of range")
	ErrCoordinateParse      = errors.New("coordinate parse error")
	ErrTimestampAmbiguous   = errors.New("timestamp has no utc offset")
	ErrInvalidTimestamp     = errors.New("invalid timestamp")
)

// ErrorKind labels a failure or soft error in run summaries and metrics.
type ErrorKind string

const (
	KindUnrecognizedFormat   ErrorKind = "unrecognized_format"
	KindMalformedInput       ErrorKind = "malformed_input"
	KindSecurityViolation    ErrorKind = "security_violation"
	KindCoordinateOutOfRange ErrorKind = "coordinate_out_of_range"
	KindCoordinateParse      ErrorKind = "coordinate_parse"
	KindTimestampAmbiguous   ErrorKind = "timestamp_ambiguous"
	KindInvalidTimestamp     ErrorKind = "invalid_timestamp"
	KindTrackLengthMismatch  ErrorKind = "track_length_mismatch"
	KindIO                   ErrorKind = "io"
)

var kindSentinels = []struct {
	err  error
	kind ErrorKind
}{
	{ErrUnrecognizedFormat, KindUnrecognizedFormat},
	{ErrMalformedInput, KindMalformedInput},
	{ErrSecurityViolation, KindSecurityViolation},
	{ErrCoordinateOutOfRange, KindCoordinateOutOfRange},
	{ErrCoordinateParse, KindCoordinateParse},
	{ErrTimestampAmbiguous, KindTimestampAmbiguous},
	{ErrInvalidTimestamp, KindInvalidTimestamp},
}

// KindOf classifies err by the first sentinel it wraps. Errors wrapping none
// of them are reported as io.
func KindOf(err error) ErrorKind {
	for _, ks := range kindSentinels {
		if errors.Is(err, ks.err) {
			return ks.kind
		}
	}
	return KindIO
}

// SoftErrors counts recoverable anomalies by kind. The zero value is not
// usable; create one with make or NewSoftErrors.
type SoftErrors map[ErrorKind]int

func NewSoftErrors() SoftErrors {
	return make(SoftErrors)
}

// Add increments the count for kind.
func (s SoftErrors) Add(kind ErrorKind) {
	s[kind]++
}

// Merge adds every count of other into s.
func (s SoftErrors) Merge(other SoftErrors) {
	for k, n := range other {
		s[k] += n
	}
}

// Total returns the sum of all counts.
func (s SoftErrors) Total() int {
	total := 0
	for _, n := range s {
		total += n
	}
	return total
}

// Kinds returns the recorded kinds in lexical order.
func (s SoftErrors) Kinds() []ErrorKind {
	kinds := make([]ErrorKind, 0, len(s))
	for k := range s {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}
