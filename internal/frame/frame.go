package frame

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Table is a loosely typed CSV table. Cells are kept as the raw strings the
// upstream API returned; numeric interpretation happens on demand.
type Table struct {
	Columns []string
	Rows    [][]string
}

// New creates an empty table with the given header
func New(columns ...string) *Table {
	return &Table{Columns: append([]string(nil), columns...)}
}

// Len returns the number of rows
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// Index returns the position of a column, or -1 if it is not present
func (t *Table) Index(name string) int {
	for i, col := range t.Columns {
		if col == name {
			return i
		}
	}
	return -1
}

// Get returns the cell for column name in row i, or "" if the column is missing
func (t *Table) Get(i int, name string) string {
	idx := t.Index(name)
	if idx < 0 || idx >= len(t.Rows[i]) {
		return ""
	}
	return t.Rows[i][idx]
}

// AddColumn appends a column whose values are produced per row
func (t *Table) AddColumn(name string, value func(row []string) string) {
	idx := t.Index(name)
	if idx < 0 {
		t.Columns = append(t.Columns, name)
		idx = len(t.Columns) - 1
	}
	for i, row := range t.Rows {
		for len(row) <= idx {
			row = append(row, "")
		}
		row[idx] = value(row)
		t.Rows[i] = row
	}
}

// Append row-stacks other onto t. Columns are matched by name; columns only
// present in other are added to t and earlier rows get empty cells for them.
func (t *Table) Append(other *Table) {
	if other == nil {
		return
	}

	mapping := make([]int, len(other.Columns))
	for i, col := range other.Columns {
		idx := t.Index(col)
		if idx < 0 {
			t.Columns = append(t.Columns, col)
			idx = len(t.Columns) - 1
		}
		mapping[i] = idx
	}

	for _, src := range other.Rows {
		row := make([]string, len(t.Columns))
		for i, cell := range src {
			if i < len(mapping) {
				row[mapping[i]] = cell
			}
		}
		t.Rows = append(t.Rows, row)
	}

	// pad older rows that predate newly added columns
	for i, row := range t.Rows {
		for len(row) < len(t.Columns) {
			row = append(row, "")
		}
		t.Rows[i] = row
	}
}

// Filter returns a new table holding copies of the rows for which keep
// returns true
func (t *Table) Filter(keep func(row []string) bool) *Table {
	out := New(t.Columns...)
	for _, row := range t.Rows {
		if keep(row) {
			out.Rows = append(out.Rows, append([]string(nil), row...))
		}
	}
	return out
}

// Equals returns a predicate matching rows whose column equals value
func (t *Table) Equals(column, value string) func(row []string) bool {
	idx := t.Index(column)
	return func(row []string) bool {
		return idx >= 0 && idx < len(row) && row[idx] == value
	}
}

// Dedupe drops every row whose key columns repeat an earlier row. Missing key
// columns are treated as empty.
func (t *Table) Dedupe(keys ...string) int {
	idx := make([]int, len(keys))
	for i, k := range keys {
		idx[i] = t.Index(k)
	}

	seen := make(map[string]struct{}, len(t.Rows))
	kept := t.Rows[:0]
	dropped := 0
	for _, row := range t.Rows {
		parts := make([]string, len(idx))
		for i, c := range idx {
			if c >= 0 && c < len(row) {
				parts[i] = row[c]
			}
		}
		key := strings.Join(parts, "\x00")
		if _, ok := seen[key]; ok {
			dropped++
			continue
		}
		seen[key] = struct{}{}
		kept = append(kept, row)
	}
	t.Rows = kept
	return dropped
}

// NumericColumns returns the indexes of columns where every non-missing cell
// parses as a number and at least one cell holds a value
func (t *Table) NumericColumns() []int {
	var cols []int
	for c := range t.Columns {
		seen := false
		numeric := true
		for _, row := range t.Rows {
			if c >= len(row) {
				continue
			}
			cell := strings.TrimSpace(row[c])
			if IsMissing(cell) {
				continue
			}
			if _, err := strconv.ParseFloat(cell, 64); err != nil {
				numeric = false
				break
			}
			seen = true
		}
		if numeric && seen {
			cols = append(cols, c)
		}
	}
	return cols
}

// missingTokens are the cell values read as "no value", besides the empty cell
var missingTokens = map[string]struct{}{
	"#N/A": {}, "#N/A N/A": {}, "#NA": {}, "-1.#IND": {}, "-1.#QNAN": {},
	"-NaN": {}, "-nan": {}, "1.#IND": {}, "1.#QNAN": {}, "<NA>": {},
	"N/A": {}, "NA": {}, "NULL": {}, "NaN": {}, "None": {},
	"n/a": {}, "nan": {}, "null": {},
}

// IsMissing reports whether a cell holds no value
func IsMissing(cell string) bool {
	cell = strings.TrimSpace(cell)
	if cell == "" {
		return true
	}
	_, ok := missingTokens[cell]
	return ok
}

// Float parses a cell as a number. Missing or unparseable cells yield NaN.
func Float(cell string) float64 {
	cell = strings.TrimSpace(cell)
	if IsMissing(cell) {
		return math.NaN()
	}
	v, err := strconv.ParseFloat(cell, 64)
	if err != nil {
		return math.NaN()
	}
	return v
}

// FormatFloat renders a number for CSV output. NaN becomes an empty cell.
func FormatFloat(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// ReadCSV parses a comma separated table with a header row
func ReadCSV(r io.Reader) (*Table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("reading CSV header: %w", err)
	}

	t := New(header...)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading CSV row: %w", err)
		}
		if len(record) > len(t.Columns) {
			line, _ := reader.FieldPos(0)
			return nil, fmt.Errorf("reading CSV row at line %d: %d fields, header has %d", line, len(record), len(t.Columns))
		}
		row := make([]string, len(t.Columns))
		copy(row, record)
		t.Rows = append(t.Rows, row)
	}

	return t, nil
}

// ReadCSVFile opens and parses a CSV file
func ReadCSVFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening CSV: %w", err)
	}
	defer f.Close()

	return ReadCSV(f)
}

// WriteCSV writes the header and all rows
func (t *Table) WriteCSV(w io.Writer) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(t.Columns); err != nil {
		return fmt.Errorf("writing CSV header: %w", err)
	}
	for _, row := range t.Rows {
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("writing CSV row: %w", err)
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteCSVFile creates (or truncates) path and writes the table to it
func (t *Table) WriteCSVFile(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating output directory: %w", err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating CSV file: %w", err)
	}

	if err := t.WriteCSV(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
