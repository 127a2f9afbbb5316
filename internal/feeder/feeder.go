// Package feeder supplies per-iteration data records for scenario placeholders.
package feeder

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
)

// Record represents a single row of data with named fields.
type Record map[string]string

// Feeder provides per-iteration data. Implementations must be safe for
// concurrent use: every VU pulls from the same Feeder.
type Feeder interface {
	// Next returns the next record, wrapping around at the end of the dataset.
	Next(ctx context.Context) (Record, error)

	// Close releases any resources held by the feeder.
	Close() error

	// Len returns the total number of records in the dataset.
	Len() int
}

// ErrEmpty is returned when a dataset has no records.
var ErrEmpty = errors.New("feeder: dataset has no records")

// RoundRobin hands out records in order and rewinds after the last one.
type RoundRobin struct {
	records []Record
	next    atomic.Uint64
}

// NewRoundRobin wraps an in-memory dataset.
func NewRoundRobin(records []Record) (*RoundRobin, error) {
	if len(records) == 0 {
		return nil, ErrEmpty
	}
	return &RoundRobin{records: records}, nil
}

// Open loads path as a "csv" or "json" dataset.
func Open(path, kind string) (*RoundRobin, error) {
	var (
		records []Record
		err     error
	)
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "csv":
		records, err = loadCSV(path)
	case "json":
		records, err = loadJSON(path)
	default:
		return nil, fmt.Errorf("feeder: unsupported type %q", kind)
	}
	if err != nil {
		return nil, err
	}
	return NewRoundRobin(records)
}

func (f *RoundRobin) Next(ctx context.Context) (Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	idx := (f.next.Add(1) - 1) % uint64(len(f.records))
	return f.records[idx], nil
}

// Close is a no-op; datasets are fully loaded in memory.
func (f *RoundRobin) Close() error {
	return nil
}

func (f *RoundRobin) Len() int {
	return len(f.records)
}
