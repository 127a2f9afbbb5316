package feeder

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
)

// loadCSV treats the first row as the header holding field names.
func loadCSV(path string) ([]Record, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open CSV file: %w", err)
	}
	defer file.Close()

	r := csv.NewReader(file)
	r.TrimLeadingSpace = true
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read CSV header: %w", err)
	}

	var records []Record
	for line := 2; ; line++ {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read CSV: %w", err)
		}
		if len(row) != len(header) {
			return nil, fmt.Errorf("row %d has %d fields, expected %d", line, len(row), len(header))
		}
		record := make(Record, len(header))
		for i, name := range header {
			record[name] = row[i]
		}
		records = append(records, record)
	}
	if len(records) == 0 {
		return nil, errors.New("CSV file must have a header row and at least one data row")
	}
	return records, nil
}
