package dataset

import (
	"encoding/csv"
	"fmt"
	"os"
)

// Row represents a single CSV row with column name to value mapping.
type Row map[string]string

// LoadCSV reads a CSV file and returns rows as maps of column to value.
// The first row is treated as headers (column names).
func LoadCSV(path string) ([]Row, error) {
	if err := requireFile(path); err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("csv: open %s: %w", path, err)
	}
	defer f.Close() //nolint:errcheck

	reader := csv.NewReader(f)
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("csv: parse %s: %w", path, err)
	}

	if len(records) == 0 {
		return nil, fmt.Errorf("csv: %s is empty (no header row)", path)
	}

	headers := records[0]
	rows := make([]Row, 0, len(records)-1)

	for i, record := range records[1:] {
		if len(record) != len(headers) {
			return nil, fmt.Errorf("csv: row %d has %d columns, expected %d", i+2, len(record), len(headers))
		}
		row := make(Row, len(headers))
		for j, h := range headers {
			row[h] = record[j]
		}
		rows = append(rows, row)
	}

	return rows, nil
}

// LoadRelationsCSV reads probe/relatum pairs from a CSV with "probe" and
// "relatum" columns. Repeated probes accumulate relata in file order.
func LoadRelationsCSV(path string) (*Relations, error) {
	rows, err := LoadCSV(path)
	if err != nil {
		return nil, err
	}
	rel := NewRelations()
	for i, row := range rows {
		probe, okP := row["probe"]
		relatum, okR := row["relatum"]
		if !okP || !okR {
			return nil, fmt.Errorf("csv: %s row %d: need probe and relatum columns", path, i+2)
		}
		if probe == "" || relatum == "" {
			continue
		}
		rel.Add(probe, relatum)
	}
	return rel, nil
}
