// Package parser detects the format of location export files and extracts
// their contents into domain records.
package parser

import (
	"strconv"

	"github.com/couchcryptid/geo-timeline-etl/internal/domain"
)

// ExtractResult is the output of one extractor run over one file.
type ExtractResult struct {
	Records []domain.Record
	Soft    domain.SoftErrors

	// Warnings are human-readable notes for anomalies that did not drop the
	// whole file, e.g. truncated gx:Track lists or rejected KMZ entries.
	Warnings []string
}

func newResult() ExtractResult {
	return ExtractResult{Soft: domain.NewSoftErrors()}
}

func (r *ExtractResult) warn(kind domain.ErrorKind, msg string) {
	r.Soft.Add(kind)
	r.Warnings = append(r.Warnings, msg)
}

// timestamp parses s, counting invalid and offset-free values as soft errors.
func (r *ExtractResult) timestamp(s string) *domain.Timestamp {
	ts, err := domain.ParseTimestamp(s)
	if err != nil {
		r.Soft.Add(domain.KindOf(err))
		return nil
	}
	if ts != nil && ts.Naive {
		r.Soft.Add(domain.KindTimestampAmbiguous)
	}
	return ts
}

func parseFloat(s string) (float64, bool) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}
