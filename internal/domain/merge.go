package domain

import (
	"sort"
	"strconv"
)

// Row maps column name to cell value. A missing key and a nil value both mean
// null.
type Row map[string]any

// Table is an ordered set of rows sharing one column list.
type Table struct {
	Columns []string
	Rows    []Row
}

// NewTable projects records onto columns.
func NewTable(columns []string, records []Record) Table {
	rows := make([]Row, len(records))
	for i := range records {
		rows[i] = records[i].Row(columns)
	}
	return Table{Columns: append([]string(nil), columns...), Rows: rows}
}

// Len returns the number of rows.
func (t Table) Len() int {
	return len(t.Rows)
}

// Merge concatenates tables. The result's columns are the union of the input
// columns in first-seen order. Columns that are null in every row of a source
// table are left out of that table's contribution and come back as nulls, so
// the result equals a plain concatenation with null fill.
func Merge(tables ...Table) Table {
	var columns []string
	seen := make(map[string]bool)
	total := 0
	for _, t := range tables {
		for _, c := range t.Columns {
			if !seen[c] {
				seen[c] = true
				columns = append(columns, c)
			}
		}
		total += len(t.Rows)
	}

	rows := make([]Row, 0, total)
	for _, t := range tables {
		active := nonNullColumns(t)
		for _, src := range t.Rows {
			row := make(Row, len(columns))
			for _, c := range columns {
				row[c] = nil
			}
			for _, c := range active {
				row[c] = src[c]
			}
			rows = append(rows, row)
		}
	}
	return Table{Columns: columns, Rows: rows}
}

func nonNullColumns(t Table) []string {
	var active []string
	for _, c := range t.Columns {
		for _, r := range t.Rows {
			if r[c] != nil {
				active = append(active, c)
				break
			}
		}
	}
	return active
}

// SortByTime orders rows by the first non-null of point_time, start_time and
// end_time. The sort is stable; rows with none of the three keep their input
// order after all timed rows.
func SortByTime(t Table) Table {
	rows := append([]Row(nil), t.Rows...)
	sort.SliceStable(rows, func(i, j int) bool {
		a, aok := RowTime(rows[i])
		b, bok := RowTime(rows[j])
		switch {
		case aok && bok:
			return a.Before(b)
		case aok:
			return true
		default:
			return false
		}
	})
	return Table{Columns: t.Columns, Rows: rows}
}

// RowTime returns the sort key of r: the first non-null of point_time,
// start_time and end_time.
func RowTime(r Row) (Timestamp, bool) {
	for _, c := range []string{ColPointTime, ColStartTime, ColEndTime} {
		if ts, ok := r[c].(Timestamp); ok {
			return ts, true
		}
	}
	return Timestamp{}, false
}

// Conform projects t onto the declared columns that are present in it, in
// declared order. Columns outside the declaration are dropped from the
// column list and from every row.
func Conform(t Table, declared []string) Table {
	present := make(map[string]bool, len(t.Columns))
	for _, c := range t.Columns {
		present[c] = true
	}

	columns := make([]string, 0, len(declared))
	used := make(map[string]bool, len(declared))
	for _, c := range declared {
		if present[c] && !used[c] {
			columns = append(columns, c)
			used[c] = true
		}
	}

	rows := make([]Row, len(t.Rows))
	for i, r := range t.Rows {
		row := make(Row, len(columns))
		for _, c := range columns {
			row[c] = r[c]
		}
		rows[i] = row
	}
	return Table{Columns: columns, Rows: rows}
}

// FormatCell renders a cell for text sinks. Null is the empty string.
func FormatCell(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case Timestamp:
		return x.String()
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int:
		return strconv.Itoa(x)
	case bool:
		return strconv.FormatBool(x)
	default:
		return ""
	}
}
