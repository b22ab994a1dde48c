// Command validate checks the integrity of a unified timeline CSV written by
// geoetl: header layout, record types, usernames, coordinate ranges and the
// chronological order of rows.
//
// Usage:
//
//	go run ./cmd/validate -csv timeline_output.csv
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/couchcryptid/geo-timeline-etl/internal/domain"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	csvPath := flag.String("csv", "", "path to the unified timeline CSV")
	flag.Parse()

	if *csvPath == "" {
		flag.Usage()
		os.Exit(1)
	}

	os.Exit(run(*csvPath, os.Stdout, os.Stderr))
}

func run(csvPath string, stdout, stderr io.Writer) int {
	fmt.Fprintln(stdout, "=== Timeline Output Validation ===")

	tbl, err := loadCSV(csvPath)
	if err != nil {
		fmt.Fprintf(stderr, "FATAL: load %s: %v\n", csvPath, err)
		return 1
	}

	phases := []*phase{
		validateHeader(tbl.header),
		validateRecords(tbl),
		validateCoordinates(tbl),
		validateTimeOrder(tbl),
	}

	fmt.Fprintln(stdout)
	allPassed := true
	for _, p := range phases {
		status := "PASS"
		if !p.passed() {
			status = fmt.Sprintf("FAIL (%d errors)", len(p.errors))
			allPassed = false
		}
		fmt.Fprintf(stdout, "  %-36s %s\n", p.name, status)
	}
	fmt.Fprintf(stdout, "\nRows: %d, columns: %d\n", len(tbl.rows), len(tbl.header))

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Fprintf(stdout, "\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Fprintf(stdout, "  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Fprintln(stdout, "\nAll validations passed.")
		return 0
	}
	fmt.Fprintln(stdout, "\nValidation FAILED.")
	return 1
}

// ── Data loading ──

type csvRow struct {
	lineNum int
	fields  map[string]string
}

type table struct {
	header []string
	rows   []csvRow
}

func loadCSV(path string) (table, error) {
	f, err := os.Open(path)
	if err != nil {
		return table{}, err
	}
	defer f.Close()

	all, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return table{}, err
	}
	if len(all) == 0 {
		return table{}, fmt.Errorf("empty file")
	}

	header := all[0]
	rows := make([]csvRow, 0, len(all)-1)
	for i, row := range all[1:] {
		fields := make(map[string]string, len(header))
		for j, h := range header {
			if j < len(row) {
				fields[h] = row[j]
			}
		}
		rows = append(rows, csvRow{lineNum: i + 2, fields: fields})
	}
	return table{header: header, rows: rows}, nil
}

// ── Phase 1: Header ──

var requiredColumns = []string{
	domain.ColType, domain.ColUsername, domain.ColLatitude, domain.ColLongitude,
}

func validateHeader(header []string) *phase {
	p := &phase{name: "Phase 1: Header"}

	seen := map[string]bool{}
	for _, h := range header {
		if seen[h] {
			p.errorf("duplicate column %q", h)
		}
		seen[h] = true
	}
	for _, c := range requiredColumns {
		if !seen[c] {
			p.errorf("missing column %q", c)
		}
	}

	// Declared columns that are present must keep their relative order.
	declared := make(map[string]int, len(domain.DefaultColumns))
	for i, c := range domain.DefaultColumns {
		declared[c] = i
	}
	last := -1
	for _, h := range header {
		pos, ok := declared[h]
		if !ok {
			continue
		}
		if pos < last {
			p.errorf("column %q out of declared order", h)
		}
		last = pos
	}
	return p
}

// ── Phase 2: Records ──

var knownTypes = map[string]bool{
	domain.TypeVisit:         true,
	domain.TypeActivityStart: true,
	domain.TypeActivityEnd:   true,
	domain.TypeTimelinePath:  true,
	domain.TypeGPXTrackpoint: true,
	domain.TypeGPXWaypoint:   true,
	domain.TypeKMLGxTrack:    true,
	domain.TypeKMLPoint:      true,
	domain.TypeKMLLineString: true,
	domain.TypeKMLPolygon:    true,
}

func validateRecords(t table) *phase {
	p := &phase{name: "Phase 2: Record types and users"}
	for _, row := range t.rows {
		typ := row.fields[domain.ColType]
		switch {
		case typ == "":
			p.errorf("line %d: empty type", row.lineNum)
		case !knownTypes[typ]:
			p.errorf("line %d: unknown type %q", row.lineNum, typ)
		}
		if strings.TrimSpace(row.fields[domain.ColUsername]) == "" {
			p.errorf("line %d: empty username", row.lineNum)
		}
		if strings.HasPrefix(typ, "gpx_") && row.fields[domain.ColGPXPointSequence] == "" {
			p.errorf("line %d: %s without point sequence", row.lineNum, typ)
		}
	}
	return p
}

// ── Phase 3: Coordinates ──

func validateCoordinates(t table) *phase {
	p := &phase{name: "Phase 3: Coordinates"}
	for _, row := range t.rows {
		latStr, lngStr := row.fields[domain.ColLatitude], row.fields[domain.ColLongitude]
		if latStr == "" && lngStr == "" {
			continue
		}
		if latStr == "" || lngStr == "" {
			p.errorf("line %d: latitude %q and longitude %q must both be set", row.lineNum, latStr, lngStr)
			continue
		}
		lat, err1 := strconv.ParseFloat(latStr, 64)
		lng, err2 := strconv.ParseFloat(lngStr, 64)
		if err1 != nil || err2 != nil {
			p.errorf("line %d: unparseable coordinate %q,%q", row.lineNum, latStr, lngStr)
			continue
		}
		if !domain.ValidCoordinate(lat, lng) {
			p.errorf("line %d: coordinate %g,%g out of range", row.lineNum, lat, lng)
		}
	}
	return p
}

// ── Phase 4: Time order ──

func validateTimeOrder(t table) *phase {
	p := &phase{name: "Phase 4: Chronological order"}

	var prev *domain.Timestamp
	untimedSeen := 0
	for _, row := range t.rows {
		ts, err := rowTime(row)
		if err != nil {
			p.errorf("line %d: %v", row.lineNum, err)
			continue
		}
		if ts == nil {
			untimedSeen = row.lineNum
			continue
		}
		if !ts.Naive {
			p.errorf("line %d: timestamp %s carries an offset", row.lineNum, ts)
		}
		if untimedSeen > 0 {
			p.errorf("line %d: timed row follows untimed row on line %d", row.lineNum, untimedSeen)
		}
		if prev != nil && ts.Before(*prev) {
			p.errorf("line %d: %s sorts before previous %s", row.lineNum, ts, prev)
		}
		prev = ts
	}
	return p
}

func rowTime(row csvRow) (*domain.Timestamp, error) {
	for _, c := range []string{domain.ColPointTime, domain.ColStartTime, domain.ColEndTime} {
		ts, err := domain.ParseTimestamp(row.fields[c])
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", c, err)
		}
		if ts != nil {
			return ts, nil
		}
	}
	return nil, nil
}
