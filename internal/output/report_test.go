package output_test

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/torosent/stampede/internal/metrics"
	"github.com/torosent/stampede/internal/output"
	"github.com/torosent/stampede/internal/threshold"
)

func sampleSummary() output.Summary {
	return output.Summary{
		RunID:  "01J9ZQ3W6Y8N2K4M5P7R9T1V3X",
		Target: "https://api.example.test/payments",
		Stages: []output.Stage{
			output.NewStage(30*time.Second, 2000),
			output.NewStage(60*time.Second, 2000),
			output.NewStage(30*time.Second, 0),
		},
		Metrics: metrics.Snapshot{
			Total:            1000,
			Successes:        950,
			Failures:         50,
			ErrorRate:        0.05,
			FailuresByTag:    map[string]int64{"status-503": 30, "status-404": 15, "transport-timeout": 5},
			Iterations:       1000,
			IterationsPerSec: 8.33,
			ChecksPassed:     940,
			ChecksFailed:     10,
			ChecksRate:       0.989,
			VUsMax:           2000,
			MinLatency:       5 * time.Millisecond,
			MaxLatency:       900 * time.Millisecond,
			MeanLatency:      120 * time.Millisecond,
			P50Latency:       100 * time.Millisecond,
			P90Latency:       300 * time.Millisecond,
			P95Latency:       600 * time.Millisecond,
			P99Latency:       850 * time.Millisecond,
			P95LatencyMs:     600,
			Duration:         2 * time.Minute,
			RequestsPerSec:   8.33,
		},
		Thresholds: []threshold.Verdict{
			{Name: "p95_latency < 500ms", Metric: "http_req_duration", Aggregate: "p95", Operator: "<", Observed: 600, Limit: 500, Message: "✗ p95_latency < 500ms: 600.00 < 500.00"},
			{Name: "http_req_failed:rate < 0.1", Metric: "http_req_failed", Aggregate: "rate", Operator: "<", Observed: 0.05, Limit: 0.1, Passed: true, Message: "✓ http_req_failed:rate < 0.1: 0.05 < 0.10"},
		},
		WorkerErrors: 1,
	}
}

func TestPrintReport(t *testing.T) {
	var buf bytes.Buffer
	output.PrintReport(&buf, sampleSummary())
	out := buf.String()

	for _, want := range []string{
		"Total Requests:    1000",
		"Failed:            50 (5.00%)",
		"Iterations:        1000",
		"VUs:               max 2000",
		"Worker Errors:     1",
		"Checks:",
		"P95:             600ms",
		"HTTP 503 Service Unavailable:",
		"Thresholds (1/2 passed):",
		"✗ p95_latency < 500ms",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q\n%s", want, out)
		}
	}
	// Failures are listed most frequent first.
	if strings.Index(out, "503") > strings.Index(out, "404") {
		t.Error("failures are not sorted by count")
	}
}

func TestPrintReportAborted(t *testing.T) {
	s := sampleSummary()
	s.AbortedBy = "p95_latency < 500ms"
	var buf bytes.Buffer
	output.PrintReport(&buf, s)
	if !strings.Contains(buf.String(), "Run aborted: threshold p95_latency < 500ms failed") {
		t.Errorf("report = %s", buf.String())
	}
}

func TestPrintJSONReport(t *testing.T) {
	var buf bytes.Buffer
	if err := output.PrintJSONReport(&buf, sampleSummary()); err != nil {
		t.Fatalf("PrintJSONReport() error = %v", err)
	}
	var decoded struct {
		Target  string `json:"target"`
		Metrics struct {
			Total         int64            `json:"total"`
			P95LatencyMs  float64          `json:"p95_latency_ms"`
			FailuresByTag map[string]int64 `json:"failures_by_tag"`
		} `json:"metrics"`
		Thresholds []struct {
			Name   string `json:"name"`
			Passed bool   `json:"passed"`
		} `json:"thresholds"`
		Stages []struct {
			Duration string `json:"duration"`
			Target   int    `json:"target"`
		} `json:"stages"`
	}
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if decoded.Metrics.Total != 1000 || decoded.Metrics.P95LatencyMs != 600 {
		t.Errorf("metrics = %+v", decoded.Metrics)
	}
	if decoded.Metrics.FailuresByTag["status-503"] != 30 {
		t.Errorf("failures_by_tag = %v", decoded.Metrics.FailuresByTag)
	}
	if len(decoded.Thresholds) != 2 || decoded.Thresholds[0].Passed {
		t.Errorf("thresholds = %+v", decoded.Thresholds)
	}
	if len(decoded.Stages) != 3 || decoded.Stages[0].Duration != "30s" || decoded.Stages[1].Target != 2000 {
		t.Errorf("stages = %+v", decoded.Stages)
	}
}
