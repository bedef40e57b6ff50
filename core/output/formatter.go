// Package output provides the tabular result shape shared by every report
// and its file exports.
package output

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Format represents an export file format
type Format string

const (
	// FormatCSV writes one comma-separated file per table
	FormatCSV Format = "csv"

	// FormatJSON writes every table into one JSON document
	FormatJSON Format = "json"
)

// FormatOf returns the export format implied by a file extension.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return FormatCSV, nil
	case ".json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unsupported export format %q (want .csv or .json)", filepath.Ext(path))
	}
}

// Table is a titled grid of display strings.
type Table struct {
	Title   string     `json:"title"`
	Headers []string   `json:"headers"`
	Rows    [][]string `json:"rows"`
}

// NewTable creates an empty table
func NewTable(title string, headers ...string) *Table {
	return &Table{Title: title, Headers: headers, Rows: [][]string{}}
}

// AddRow appends a row, padding or truncating it to the header count.
func (t *Table) AddRow(cells ...string) {
	row := make([]string, len(t.Headers))
	copy(row, cells)
	t.Rows = append(t.Rows, row)
}

// Len returns the number of rows
func (t *Table) Len() int {
	return len(t.Rows)
}

// Records returns the rows keyed by header
func (t *Table) Records() []map[string]string {
	out := make([]map[string]string, 0, len(t.Rows))
	for _, row := range t.Rows {
		rec := make(map[string]string, len(t.Headers))
		for i, h := range t.Headers {
			if i < len(row) {
				rec[h] = row[i]
			}
		}
		out = append(out, rec)
	}
	return out
}

// Slug is the table title as a file-name fragment: "Idle Warehouses" is
// "idle_warehouses".
func (t *Table) Slug() string {
	var b strings.Builder
	underscore := false
	for _, r := range strings.ToLower(t.Title) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			underscore = false
		case !underscore && b.Len() > 0:
			b.WriteByte('_')
			underscore = true
		}
	}
	slug := strings.TrimSuffix(b.String(), "_")
	if slug == "" {
		return "table"
	}
	return slug
}
