package output

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/torosent/stampede/internal/metrics"
)

func TestProgressLineShowsVUsAgainstTarget(t *testing.T) {
	line := progressLine(metrics.Snapshot{
		Duration:       12 * time.Second,
		VUs:            42,
		TargetVUs:      50,
		Total:          1200,
		Failures:       3,
		RequestsPerSec: 100,
		P95LatencyMs:   87.5,
	}, 0)
	for _, want := range []string{"[12s]", "VUs: 42/50", "Requests: 1200", "Failures: 3", "RPS: 100.0", "P95: 87.5ms"} {
		if !strings.Contains(line, want) {
			t.Errorf("progress line %q missing %q", line, want)
		}
	}
	if !strings.HasPrefix(line, "\r") {
		t.Error("progress line should rewrite the current terminal line")
	}
}

func TestProgressLineShowsScheduleLength(t *testing.T) {
	line := progressLine(metrics.Snapshot{Duration: 15 * time.Second}, 2*time.Minute)
	if !strings.Contains(line, "[15s/2m0s]") {
		t.Errorf("progress line %q missing schedule clock", line)
	}
}

func TestProgressReporterWritesUntilStopped(t *testing.T) {
	collector := metrics.NewCollector()
	collector.Start()
	collector.SetTargetVUs(5)
	collector.SetVUs(5)
	for range 5 {
		collector.Record(metrics.Classify(200, nil), 30*time.Millisecond)
	}

	var buf bytes.Buffer
	reporter := NewProgressReporter(collector, 10*time.Millisecond, 0, &buf)
	reporter.Start()
	reporter.Start()
	time.Sleep(50 * time.Millisecond)
	reporter.Stop()
	reporter.Stop()

	out := buf.String()
	if !strings.Contains(out, "VUs: 5/5") || !strings.Contains(out, "Requests: 5") {
		t.Errorf("output = %q", out)
	}
}
