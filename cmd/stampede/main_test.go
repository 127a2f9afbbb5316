package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/torosent/stampede/internal/config"
	"github.com/torosent/stampede/internal/output"
)

func newStatusServer(t *testing.T, status int) (*httptest.Server, *atomic.Int64) {
	t.Helper()
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(`{"status":"accepted"}`))
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	code := run(ctx, args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func decodeSummary(t *testing.T, raw string) output.Summary {
	t.Helper()
	var s output.Summary
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		t.Fatalf("decode JSON report: %v\n%s", err, raw)
	}
	return s
}

func TestRunHelp(t *testing.T) {
	code, _, stderr := runCLI(t, "--help")
	if code != exitOK {
		t.Fatalf("exit code = %d, want %d", code, exitOK)
	}
	if stderr != "" {
		t.Errorf("unexpected stderr: %q", stderr)
	}
}

func TestRunConfigurationErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"missing target", []string{"--vus", "1", "--duration", "1s"}, "target is required"},
		{"missing stages", []string{"--target", "http://localhost"}, "stages are required"},
		{"bad threshold", []string{"--target", "http://localhost", "--vus", "1", "--duration", "1s", "--threshold", "bogus < 1"}, "thresholds[0]"},
		{"missing body file", []string{"--target", "http://localhost", "--vus", "1", "--duration", "1s", "--body-file", "/does/not/exist"}, "body"},
		{"history list without file", []string{"--history-list"}, "--history-file"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _, stderr := runCLI(t, tt.args...)
			if code != exitFatal {
				t.Fatalf("exit code = %d, want %d (stderr: %s)", code, exitFatal, stderr)
			}
			if !strings.Contains(stderr, tt.want) {
				t.Errorf("stderr = %q, want it to mention %q", stderr, tt.want)
			}
		})
	}
}

func TestRunPassesThresholds(t *testing.T) {
	srv, hits := newStatusServer(t, http.StatusAccepted)

	code, stdout, stderr := runCLI(t,
		"--target", srv.URL+"/payments",
		"--method", "POST",
		"--body", `{"id":"{{uuid}}"}`,
		"--vus", "2",
		"--duration", "300ms",
		"--think-time", "10ms",
		"--tick-interval", "10ms",
		"--json-output",
		"--threshold", "http_req_failed:rate < 0.01",
		"--threshold", "http_reqs:count > 0",
	)
	if code != exitOK {
		t.Fatalf("exit code = %d, want %d (stderr: %s)", code, exitOK, stderr)
	}

	s := decodeSummary(t, stdout)
	if !s.Passed {
		t.Errorf("summary not passed: %+v", s.Thresholds)
	}
	if s.Metrics.Total == 0 || s.Metrics.Total != hits.Load() {
		t.Errorf("total = %d, server hits = %d", s.Metrics.Total, hits.Load())
	}
	if s.Metrics.VUsMax != 2 {
		t.Errorf("vus_max = %d, want 2", s.Metrics.VUsMax)
	}
	if s.RunID == "" {
		t.Error("expected a run id")
	}
}

func TestRunFailedThresholdsExit99(t *testing.T) {
	srv, _ := newStatusServer(t, http.StatusInternalServerError)

	code, stdout, _ := runCLI(t,
		"--target", srv.URL,
		"--vus", "1",
		"--duration", "200ms",
		"--think-time", "10ms",
		"--json-output",
		"--threshold", "http_req_failed:rate < 0.01",
	)
	if code != exitThresholdsFailed {
		t.Fatalf("exit code = %d, want %d", code, exitThresholdsFailed)
	}
	s := decodeSummary(t, stdout)
	if s.Passed {
		t.Error("summary should not pass")
	}
	if s.Metrics.FailuresByTag["status-500"] == 0 {
		t.Errorf("failures by tag = %v, want status-500", s.Metrics.FailuresByTag)
	}
}

func TestRunAbortsOnThreshold(t *testing.T) {
	srv, _ := newStatusServer(t, http.StatusServiceUnavailable)

	cfgPath := filepath.Join(t.TempDir(), "abort.yaml")
	cfgYAML := `target: ` + srv.URL + `
stages:
  - duration: 10s
    target: 2
think_time:
  min: 10ms
  max: 10ms
tick_interval: 10ms
threshold_interval: 50ms
json_output: true
thresholds:
  - threshold: "http_req_failed:rate < 0.5"
    abort_on_fail: true
`
	if err := os.WriteFile(cfgPath, []byte(cfgYAML), 0o644); err != nil {
		t.Fatal(err)
	}

	start := time.Now()
	code, stdout, stderr := runCLI(t, "--config", cfgPath)
	if code != exitThresholdsFailed {
		t.Fatalf("exit code = %d, want %d (stderr: %s)", code, exitThresholdsFailed, stderr)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("run took %s, expected an early abort", elapsed)
	}
	s := decodeSummary(t, stdout)
	if s.AbortedBy != "http_req_failed:rate < 0.5" {
		t.Errorf("aborted_by = %q", s.AbortedBy)
	}
	if !s.Cancelled {
		t.Error("expected the run to be marked cancelled")
	}
}

func TestRunInterruptedExit105(t *testing.T) {
	srv, hits := newStatusServer(t, http.StatusOK)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	var stdout, stderr bytes.Buffer
	start := time.Now()
	code := run(ctx, []string{
		"--target", srv.URL,
		"--vus", "2",
		"--duration", "1m",
		"--think-time", "10ms",
		"--json-output",
		"--threshold", "http_req_failed:rate < 0.01",
	}, &stdout, &stderr)

	if code != exitInterrupted {
		t.Fatalf("exit code = %d, want %d (stderr: %s)", code, exitInterrupted, stderr.String())
	}
	if elapsed := time.Since(start); elapsed > 10*time.Second {
		t.Errorf("run took %s after interrupt", elapsed)
	}
	s := decodeSummary(t, stdout.String())
	if !s.Cancelled || s.AbortedBy != "" {
		t.Errorf("cancelled = %v, aborted_by = %q", s.Cancelled, s.AbortedBy)
	}
	if !s.Passed {
		t.Errorf("thresholds should still pass: %+v", s.Thresholds)
	}
	if s.Metrics.Total != hits.Load() {
		t.Errorf("total = %d, server hits = %d", s.Metrics.Total, hits.Load())
	}
}

func TestRunWritesArtifactsAndHistory(t *testing.T) {
	srv, _ := newStatusServer(t, http.StatusOK)
	dir := t.TempDir()
	htmlPath := filepath.Join(dir, "report.html")
	summaryPath := filepath.Join(dir, "summary.yaml")
	historyPath := filepath.Join(dir, "history.db")

	code, stdout, stderr := runCLI(t,
		"--target", srv.URL,
		"--stage", "100ms:2",
		"--stage", "100ms:0",
		"--think-time", "5ms",
		"--tick-interval", "10ms",
		"--html-output", htmlPath,
		"--summary-export", summaryPath,
		"--history-file", historyPath,
		"--log-level", "error",
	)
	if code != exitOK {
		t.Fatalf("exit code = %d, want %d (stderr: %s)", code, exitOK, stderr)
	}
	if !strings.Contains(stdout, "Load Test Results") {
		t.Errorf("text report missing from stdout:\n%s", stdout)
	}

	html, err := os.ReadFile(htmlPath)
	if err != nil {
		t.Fatalf("read html: %v", err)
	}
	if !strings.Contains(string(html), "Stampede Load Test Report") {
		t.Error("html report missing title")
	}
	summary, err := os.ReadFile(summaryPath)
	if err != nil {
		t.Fatalf("read summary: %v", err)
	}
	if !strings.Contains(string(summary), "run_id:") {
		t.Errorf("summary export missing run_id:\n%s", summary)
	}

	code, stdout, stderr = runCLI(t, "--history-list", "--history-file", historyPath)
	if code != exitOK {
		t.Fatalf("history list exit code = %d (stderr: %s)", code, stderr)
	}
	if !strings.Contains(stdout, srv.URL) || !strings.Contains(stdout, "passed") {
		t.Errorf("history list missing run:\n%s", stdout)
	}
}

func TestBuildThresholds(t *testing.T) {
	rules, err := buildThresholds([]config.Threshold{
		{Expr: "http_req_duration:p95 < 500ms"},
		{Expr: "http_req_failed:rate < 0.01", AbortOnFail: true},
	})
	if err != nil {
		t.Fatalf("buildThresholds: %v", err)
	}
	if len(rules) != 2 {
		t.Fatalf("len = %d, want 2", len(rules))
	}
	if rules[0].AbortOnFail || !rules[1].AbortOnFail {
		t.Errorf("abort flags = %v, %v", rules[0].AbortOnFail, rules[1].AbortOnFail)
	}

	_, err = buildThresholds([]config.Threshold{{Expr: "nope"}, {Expr: "also < bad"}})
	var verr config.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("err = %v, want ValidationError", err)
	}
	if len(verr.Issues()) != 2 {
		t.Errorf("issues = %v, want 2", verr.Issues())
	}
}

func TestRequestName(t *testing.T) {
	tests := []struct {
		method, target, want string
	}{
		{"GET", "http://localhost/api", "GET http://localhost/api"},
		{"POST", "http://localhost/pay?id={{uuid}}", "POST http://localhost/pay"},
	}
	for _, tt := range tests {
		if got := requestName(tt.method, tt.target); got != tt.want {
			t.Errorf("requestName(%q, %q) = %q, want %q", tt.method, tt.target, got, tt.want)
		}
	}
}
