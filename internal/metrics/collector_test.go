package metrics_test

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/torosent/stampede/internal/metrics"
)

func TestCollectorAggregatesLatencies(t *testing.T) {
	c := metrics.NewCollector()
	for i := 1; i <= 100; i++ {
		c.Record(metrics.Classify(200, nil), time.Duration(i)*time.Millisecond)
	}

	snap := c.Snapshot(10 * time.Second)
	if snap.Total != 100 || snap.Successes != 100 || snap.Failures != 0 {
		t.Fatalf("unexpected counts: %+v", snap)
	}
	if snap.MinLatency != time.Millisecond {
		t.Fatalf("min = %v", snap.MinLatency)
	}
	if snap.MaxLatency != 100*time.Millisecond {
		t.Fatalf("max = %v", snap.MaxLatency)
	}
	if snap.MeanLatency != 50500*time.Microsecond {
		t.Fatalf("mean = %v", snap.MeanLatency)
	}
	assertWithin(t, "p50", snap.P50Latency, 50*time.Millisecond)
	assertWithin(t, "p95", snap.P95Latency, 95*time.Millisecond)
	assertWithin(t, "p99", snap.P99Latency, 99*time.Millisecond)
	if snap.RequestsPerSec != 10 {
		t.Fatalf("rps = %v", snap.RequestsPerSec)
	}
}

// assertWithin allows for the histogram's 3 significant figures.
func assertWithin(t *testing.T, name string, got, want time.Duration) {
	t.Helper()
	diff := got - want
	if diff < 0 {
		diff = -diff
	}
	if diff > want/100 {
		t.Fatalf("%s = %v, want ~%v", name, got, want)
	}
}

func TestCollectorFailuresByTag(t *testing.T) {
	c := metrics.NewCollector()
	c.Record(metrics.Classify(200, nil), time.Millisecond)
	c.Record(metrics.Classify(404, nil), time.Millisecond)
	c.Record(metrics.Classify(404, nil), time.Millisecond)
	c.Record(metrics.Classify(500, nil), time.Millisecond)
	c.Record(metrics.Classify(0, errors.New("reset")), time.Millisecond)
	c.Record(metrics.Classify(200, nil).FailCheck("body"), time.Millisecond)

	snap := c.Snapshot(time.Second)
	if snap.Total != 6 || snap.Failures != 5 || snap.Successes != 1 {
		t.Fatalf("unexpected counts: total=%d failures=%d successes=%d", snap.Total, snap.Failures, snap.Successes)
	}
	want := map[string]int64{
		"status-404":              2,
		"status-500":              1,
		metrics.TagTransportError: 1,
		"check:body":              1,
	}
	for tag, n := range want {
		if snap.FailuresByTag[tag] != n {
			t.Fatalf("tag %q = %d, want %d (all: %v)", tag, snap.FailuresByTag[tag], n, snap.FailuresByTag)
		}
	}
	var sum int64
	for _, n := range snap.FailuresByTag {
		sum += n
	}
	if sum != snap.Failures {
		t.Fatalf("tag counts %d do not add up to failures %d", sum, snap.Failures)
	}
	if snap.ErrorRate != 5.0/6.0 {
		t.Fatalf("error rate = %v", snap.ErrorRate)
	}
}

func TestCollectorConcurrentRecords(t *testing.T) {
	const (
		callers = 64
		records = 500
	)
	c := metrics.NewCollector()

	var wg sync.WaitGroup
	stop := make(chan struct{})
	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		var last int64
		for {
			select {
			case <-stop:
				return
			default:
			}
			snap := c.Snapshot(time.Second)
			if snap.Total < last {
				t.Errorf("total went backwards: %d < %d", snap.Total, last)
				return
			}
			last = snap.Total
		}
	}()

	wg.Add(callers)
	for i := 0; i < callers; i++ {
		go func(i int) {
			defer wg.Done()
			for j := 0; j < records; j++ {
				status := 200
				if j%10 == 0 {
					status = 503
				}
				c.Record(metrics.Classify(status, nil), time.Duration(i+1)*time.Millisecond)
			}
		}(i)
	}
	wg.Wait()
	close(stop)
	<-readerDone

	snap := c.Snapshot(time.Second)
	if snap.Total != callers*records {
		t.Fatalf("total = %d, want %d", snap.Total, callers*records)
	}
	if snap.Successes+snap.Failures != snap.Total {
		t.Fatalf("successes %d + failures %d != total %d", snap.Successes, snap.Failures, snap.Total)
	}
	if snap.FailuresByTag["status-503"] != callers*records/10 {
		t.Fatalf("503 count = %d", snap.FailuresByTag["status-503"])
	}
}

func TestCollectorSeparateCounters(t *testing.T) {
	c := metrics.NewCollector()
	c.RecordScenarioError()
	c.RecordScenarioError()
	c.RecordInterrupted()
	c.RecordIteration()
	c.RecordChecks(3, 1)

	snap := c.Snapshot(time.Second)
	if snap.Total != 0 {
		t.Fatalf("scenario errors must not count as requests, total=%d", snap.Total)
	}
	if snap.ScenarioErrors != 2 || snap.Interrupted != 1 || snap.Iterations != 1 {
		t.Fatalf("unexpected counters: %+v", snap)
	}
	if snap.ChecksRate != 0.75 {
		t.Fatalf("checks rate = %v", snap.ChecksRate)
	}
}

func TestChecksRateWithoutChecks(t *testing.T) {
	c := metrics.NewCollector()
	c.Record(metrics.Classify(200, nil), time.Millisecond)
	if got := c.Snapshot(time.Second).ChecksRate; got != 1 {
		t.Fatalf("checks rate = %v, want 1 when no checks ran", got)
	}
}

func TestCollectorVUGauges(t *testing.T) {
	c := metrics.NewCollector()
	c.SetVUs(5)
	c.SetVUs(12)
	c.SetVUs(3)
	c.SetTargetVUs(4)

	snap := c.Snapshot(time.Second)
	if snap.VUs != 3 || snap.VUsMax != 12 || snap.TargetVUs != 4 {
		t.Fatalf("unexpected gauges: vus=%d max=%d target=%d", snap.VUs, snap.VUsMax, snap.TargetVUs)
	}
	live, target := c.VUs()
	if live != 3 || target != 4 {
		t.Fatalf("VUs() = %d, %d", live, target)
	}
}

func TestSnapshotJSONUsesMilliseconds(t *testing.T) {
	c := metrics.NewCollector()
	c.Record(metrics.Classify(200, nil), 20*time.Millisecond)
	c.Record(metrics.Classify(404, nil), 40*time.Millisecond)

	data, err := json.Marshal(c.Snapshot(2 * time.Second))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded["duration_ms"].(float64) != 2000 {
		t.Fatalf("duration_ms = %v", decoded["duration_ms"])
	}
	if decoded["max_latency_ms"].(float64) != 40 {
		t.Fatalf("max_latency_ms = %v", decoded["max_latency_ms"])
	}
	tags, ok := decoded["failures_by_tag"].(map[string]any)
	if !ok || tags["status-404"].(float64) != 1 {
		t.Fatalf("failures_by_tag = %v", decoded["failures_by_tag"])
	}
}

func TestSnapshotPercentileEmpty(t *testing.T) {
	snap := metrics.NewCollector().Snapshot(time.Second)
	if snap.Percentile(95) != 0 {
		t.Fatalf("expected zero percentile on empty snapshot")
	}
	var zero metrics.Snapshot
	if zero.Percentile(50) != 0 {
		t.Fatalf("expected zero percentile on zero snapshot")
	}
}

func TestCaptureHistory(t *testing.T) {
	c := metrics.NewCollector()
	c.Start()
	c.Record(metrics.Classify(200, nil), 5*time.Millisecond)
	first := c.Capture()
	c.Record(metrics.Classify(200, nil), 5*time.Millisecond)
	c.Record(metrics.Classify(500, nil), 5*time.Millisecond)
	second := c.Capture()

	if first.TotalRequests != 1 || second.TotalRequests != 3 {
		t.Fatalf("unexpected totals %d, %d", first.TotalRequests, second.TotalRequests)
	}
	if second.Failures != 1 {
		t.Fatalf("failures = %d", second.Failures)
	}
	if !second.Timestamp.After(first.Timestamp) && !second.Timestamp.Equal(first.Timestamp) {
		t.Fatalf("timestamps out of order")
	}
	history := c.History()
	if len(history) != 2 {
		t.Fatalf("history length = %d", len(history))
	}
	history[0].TotalRequests = 99
	if c.History()[0].TotalRequests != 1 {
		t.Fatalf("History must return a copy")
	}
}
