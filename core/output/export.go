package output

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

type jsonTable struct {
	Title string              `json:"title"`
	Rows  []map[string]string `json:"rows"`
}

// Export writes tables to path. CSV holds one table per file, so several
// tables exported to report.csv become report_<slug>.csv each. JSON always
// holds every table in one document. It returns the files written.
func Export(path string, tables ...*Table) ([]string, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}
	if len(tables) == 0 {
		return nil, nil
	}

	switch format {
	case FormatJSON:
		return []string{path}, writeJSON(path, tables)
	default:
		if len(tables) == 1 {
			return []string{path}, writeCSV(path, tables[0])
		}
		base := strings.TrimSuffix(path, filepath.Ext(path))
		written := make([]string, 0, len(tables))
		for _, t := range tables {
			file := fmt.Sprintf("%s_%s.csv", base, t.Slug())
			if err := writeCSV(file, t); err != nil {
				return written, err
			}
			written = append(written, file)
		}
		return written, nil
	}
}

func writeCSV(path string, t *Table) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(t.Headers); err != nil {
		return err
	}
	if err := w.WriteAll(t.Rows); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}

func writeJSON(path string, tables []*Table) error {
	doc := make([]jsonTable, 0, len(tables))
	for _, t := range tables {
		doc = append(doc, jsonTable{Title: t.Title, Rows: t.Records()})
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
