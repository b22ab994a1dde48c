package pipeline

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/couchcryptid/geo-timeline-etl/internal/domain"
)

// Outcome labels for per-file results.
const (
	OutcomeSucceeded = "succeeded"
	OutcomeFailed    = "failed"
)

// FileResult is the outcome of processing one input file.
type FileResult struct {
	Name     string
	Format   domain.Format
	Username string
	Records  int
	Outcome  string
	Kind     domain.ErrorKind // set when Outcome is failed
	Error    string
}

// Summary reports what a run did.
type Summary struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time

	Files      []FileResult
	FilesFound map[domain.Format]int
	Succeeded  map[domain.Format]int
	Failed     map[domain.Format]int
	Failures   map[domain.ErrorKind]int
	SoftErrors domain.SoftErrors

	TotalRecords   int
	RecordsByType  map[string]int
	RecordsByUser  map[string]int
	GPXDataSources map[string]int
	Earliest       *domain.Timestamp
	Latest         *domain.Timestamp
	OutputsWritten int
	UnifiedColumns []string
}

func newSummary(runID string, startedAt time.Time) *Summary {
	return &Summary{
		RunID:          runID,
		StartedAt:      startedAt,
		FilesFound:     map[domain.Format]int{},
		Succeeded:      map[domain.Format]int{},
		Failed:         map[domain.Format]int{},
		Failures:       map[domain.ErrorKind]int{},
		SoftErrors:     domain.NewSoftErrors(),
		RecordsByType:  map[string]int{},
		RecordsByUser:  map[string]int{},
		GPXDataSources: map[string]int{},
	}
}

// Duration is the wall time between start and finish.
func (s *Summary) Duration() time.Duration {
	return s.FinishedAt.Sub(s.StartedAt)
}

func (s *Summary) addFile(r FileResult) {
	s.Files = append(s.Files, r)
	s.FilesFound[r.Format]++
	if r.Outcome == OutcomeFailed {
		s.Failed[r.Format]++
		s.Failures[r.Kind]++
		return
	}
	s.Succeeded[r.Format]++
}

func (s *Summary) addTable(t domain.Table) {
	s.TotalRecords = t.Len()
	for _, row := range t.Rows {
		if typ, ok := row[domain.ColType].(string); ok {
			s.RecordsByType[typ]++
		}
		if user, ok := row[domain.ColUsername].(string); ok {
			s.RecordsByUser[user]++
		}
		if ts, ok := domain.RowTime(row); ok {
			if s.Earliest == nil || ts.Before(*s.Earliest) {
				s.Earliest = domain.Ptr(ts)
			}
			if s.Latest == nil || s.Latest.Before(ts) {
				s.Latest = domain.Ptr(ts)
			}
		}
	}
}

// Write prints a human-readable report.
func (s *Summary) Write(w io.Writer) error {
	var b strings.Builder

	fmt.Fprintf(&b, "run %s finished in %s\n", s.RunID, s.Duration().Round(time.Millisecond))

	found := 0
	for _, n := range s.FilesFound {
		found += n
	}
	fmt.Fprintf(&b, "files: %d found\n", found)
	for _, f := range append(append([]domain.Format(nil), domain.Formats...), domain.FormatUnknown) {
		if s.FilesFound[f] == 0 {
			continue
		}
		fmt.Fprintf(&b, "  %-17s %d succeeded, %d failed\n", f, s.Succeeded[f], s.Failed[f])
	}
	for _, f := range s.Files {
		if f.Outcome == OutcomeFailed {
			fmt.Fprintf(&b, "  failed: %s (%s): %s\n", f.Name, f.Kind, f.Error)
		}
	}

	fmt.Fprintf(&b, "records: %d\n", s.TotalRecords)
	writeCounts(&b, "by type", s.RecordsByType)
	writeCounts(&b, "by user", s.RecordsByUser)
	writeCounts(&b, "gpx sources", s.GPXDataSources)
	if s.Earliest != nil {
		fmt.Fprintf(&b, "time range: %s .. %s\n", s.Earliest, s.Latest)
	}

	if s.SoftErrors.Total() > 0 {
		soft := make(map[string]int, len(s.SoftErrors))
		for k, n := range s.SoftErrors {
			soft[string(k)] = n
		}
		writeCounts(&b, "soft errors", soft)
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func writeCounts(b *strings.Builder, label string, counts map[string]int) {
	if len(counts) == 0 {
		return
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fmt.Fprintf(b, "  %s:\n", label)
	for _, k := range keys {
		fmt.Fprintf(b, "    %-24s %d\n", k, counts[k])
	}
}
