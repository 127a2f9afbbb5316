package history_test

import (
	"bytes"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/torosent/stampede/internal/history"
)

func openStore(t *testing.T) *history.Store {
	t.Helper()
	store, err := history.Open(filepath.Join(t.TempDir(), "runs", "history.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSaveAndGet(t *testing.T) {
	store := openStore(t)

	rec := history.Record{
		StartedAt:    time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Target:       "http://localhost:8080/payments",
		Duration:     2 * time.Minute,
		Total:        1500,
		Failures:     15,
		ErrorRate:    0.01,
		P95LatencyMs: 120.5,
		VUsMax:       2000,
		Passed:       true,
	}
	id, err := store.Save(rec)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if id == "" {
		t.Fatal("expected an assigned id")
	}

	got, err := store.Get(id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Target != rec.Target || got.Total != rec.Total || got.Duration != rec.Duration || !got.Passed {
		t.Errorf("Get = %+v, want %+v", got, rec)
	}
}

func TestGetUnknown(t *testing.T) {
	store := openStore(t)
	if _, err := store.Get(history.NewID(time.Now())); !errors.Is(err, history.ErrNotFound) {
		t.Fatalf("Get unknown err = %v, want ErrNotFound", err)
	}
}

func TestSaveRejectsBadID(t *testing.T) {
	store := openStore(t)
	if _, err := store.Save(history.Record{ID: "not-a-ulid"}); err == nil {
		t.Fatal("expected error for invalid id")
	}
}

func TestListNewestFirst(t *testing.T) {
	store := openStore(t)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		_, err := store.Save(history.Record{
			StartedAt: base.Add(time.Duration(i) * time.Minute),
			Total:     int64(i),
		})
		if err != nil {
			t.Fatalf("Save %d: %v", i, err)
		}
	}

	tests := []struct {
		name  string
		limit int
		want  []int64
	}{
		{"all", 0, []int64{4, 3, 2, 1, 0}},
		{"recent", 2, []int64{4, 3}},
		{"more than stored", 10, []int64{4, 3, 2, 1, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records, err := store.List(tt.limit)
			if err != nil {
				t.Fatalf("List: %v", err)
			}
			if len(records) != len(tt.want) {
				t.Fatalf("len = %d, want %d", len(records), len(tt.want))
			}
			for i, r := range records {
				if r.Total != tt.want[i] {
					t.Errorf("record %d total = %d, want %d", i, r.Total, tt.want[i])
				}
			}
		})
	}
}

func TestReopenKeepsRuns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	store, err := history.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	id, err := store.Save(history.Record{Target: "http://example.test"})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	store.Close()

	store, err = history.Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer store.Close()
	if _, err := store.Get(id); err != nil {
		t.Fatalf("Get after reopen: %v", err)
	}
}

func TestPrintList(t *testing.T) {
	var buf bytes.Buffer
	if err := history.PrintList(&buf, nil); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "No recorded runs.") {
		t.Errorf("empty output = %q", buf.String())
	}

	buf.Reset()
	records := []history.Record{
		{ID: "01HZX0000000000000000000AA", Target: "http://a", Passed: true, ErrorRate: 0.05},
		{ID: "01HZX0000000000000000000AB", Target: "http://b", AbortedBy: "http_req_failed:rate"},
		{ID: "01HZX0000000000000000000AC", Target: "http://c"},
	}
	if err := history.PrintList(&buf, records); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"ID", "passed", "aborted (http_req_failed:rate)", "failed", "5.00%"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}
