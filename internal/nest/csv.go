package nest

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
)

// CSVSource reads a CSV file as a nest: the header row names the record
// keys.
type CSVSource struct {
	path string
}

// OpenCSV opens a CSV file nest.
func OpenCSV(path string) (*CSVSource, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("cannot open CSV nest: %w", err)
	}
	return &CSVSource{path: path}, nil
}

// Name implements Source.
func (s *CSVSource) Name() string {
	return "csv"
}

// Fetch implements Source.
func (s *CSVSource) Fetch(ctx context.Context, limit int) ([]Record, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("CSV nest %s is empty", s.path)
	}
	if err != nil {
		return nil, err
	}

	var out []Record
	for limit <= 0 || len(out) < limit {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		rec := make(Record, len(header))
		for i, name := range header {
			if name == "" || i >= len(record) {
				continue
			}
			rec[name] = record[i]
		}
		out = append(out, rec)
	}
	return out, nil
}

// Close implements Source.
func (s *CSVSource) Close() error {
	return nil
}
