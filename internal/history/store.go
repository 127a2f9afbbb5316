// Package history persists a short record of every finished run in a bbolt
// file so past runs can be listed and compared.
package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/oklog/ulid/v2"
	"go.etcd.io/bbolt"
)

const bucketRuns = "runs"

// ErrNotFound is returned by Get for an unknown run ID.
var ErrNotFound = errors.New("history: run not found")

// Record summarizes one finished run.
type Record struct {
	ID           string        `json:"id"`
	StartedAt    time.Time     `json:"started_at"`
	Target       string        `json:"target"`
	Duration     time.Duration `json:"duration"`
	Total        int64         `json:"total_requests"`
	Failures     int64         `json:"failures"`
	ErrorRate    float64       `json:"error_rate"`
	Iterations   int64         `json:"iterations"`
	VUsMax       int           `json:"vus_max"`
	P95LatencyMs float64       `json:"p95_latency_ms"`
	P99LatencyMs float64       `json:"p99_latency_ms"`
	Passed       bool          `json:"passed"`
	AbortedBy    string        `json:"aborted_by,omitempty"`
}

// NewID returns a ULID string for t. IDs sort in creation order, which is
// the order List walks the bucket.
func NewID(t time.Time) string {
	return ulid.MustNew(ulid.Timestamp(t), ulid.DefaultEntropy()).String()
}

// Store is a bbolt-backed run history.
type Store struct {
	db *bbolt.DB
}

// Open opens or creates the history file at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create history dir: %w", err)
		}
	}
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open history %s: %w", path, err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketRuns))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init history: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying file.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save stores rec, assigning an ID when it has none, and returns the ID.
func (s *Store) Save(rec Record) (string, error) {
	if rec.StartedAt.IsZero() {
		rec.StartedAt = time.Now()
	}
	if rec.ID == "" {
		rec.ID = NewID(rec.StartedAt)
	}
	if _, err := ulid.ParseStrict(rec.ID); err != nil {
		return "", fmt.Errorf("history: invalid run id %q: %w", rec.ID, err)
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return "", err
	}
	err = s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(bucketRuns)).Put([]byte(rec.ID), data)
	})
	if err != nil {
		return "", fmt.Errorf("save run %s: %w", rec.ID, err)
	}
	return rec.ID, nil
}

// List returns up to limit records, newest first. A limit <= 0 returns all.
func (s *Store) List(limit int) ([]Record, error) {
	var out []Record
	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(bucketRuns)).Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			if limit > 0 && len(out) >= limit {
				break
			}
			var rec Record
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("decode run %s: %w", k, err)
			}
			out = append(out, rec)
		}
		return nil
	})
	return out, err
}

// Get returns the record with the given ID.
func (s *Store) Get(id string) (Record, error) {
	var rec Record
	err := s.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket([]byte(bucketRuns)).Get([]byte(id))
		if v == nil {
			return ErrNotFound
		}
		return json.Unmarshal(v, &rec)
	})
	return rec, err
}
