package metrics

import "time"

// DataPoint is one sample of the run's time series.
type DataPoint struct {
	Timestamp     time.Time     `json:"timestamp"`
	Elapsed       time.Duration `json:"-"`
	TotalRequests int64         `json:"total_requests"`
	Failures      int64         `json:"failures"`
	CurrentRPS    float64       `json:"current_rps"`
	VUs           int           `json:"vus"`
	TargetVUs     int           `json:"target_vus"`
	P50Latency    time.Duration `json:"-"`
	P95Latency    time.Duration `json:"-"`
	P99Latency    time.Duration `json:"-"`

	ElapsedSec   float64 `json:"elapsed_sec"`
	P50LatencyMs float64 `json:"p50_latency_ms"`
	P95LatencyMs float64 `json:"p95_latency_ms"`
	P99LatencyMs float64 `json:"p99_latency_ms"`
}

// Capture appends a DataPoint built from the current state. CurrentRPS is the
// rate since the previous capture. Latency percentiles are cumulative.
func (c *Collector) Capture() DataPoint {
	c.mu.Lock()
	start := c.start
	c.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(start)
	snap := c.Snapshot(elapsed)

	dp := DataPoint{
		Timestamp:     now,
		Elapsed:       elapsed,
		TotalRequests: snap.Total,
		Failures:      snap.Failures,
		VUs:           snap.VUs,
		TargetVUs:     snap.TargetVUs,
		P50Latency:    snap.P50Latency,
		P95Latency:    snap.P95Latency,
		P99Latency:    snap.P99Latency,
		ElapsedSec:    elapsed.Seconds(),
		P50LatencyMs:  snap.P50LatencyMs,
		P95LatencyMs:  snap.P95LatencyMs,
		P99LatencyMs:  snap.P99LatencyMs,
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	prevTotal, prevAt := int64(0), start
	if n := len(c.history); n > 0 {
		prevTotal, prevAt = c.history[n-1].TotalRequests, c.history[n-1].Timestamp
	}
	if window := now.Sub(prevAt).Seconds(); window > 0 {
		dp.CurrentRPS = float64(dp.TotalRequests-prevTotal) / window
	}
	c.history = append(c.history, dp)
	return dp
}

// History returns a copy of the captured time series.
func (c *Collector) History() []DataPoint {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]DataPoint, len(c.history))
	copy(out, c.history)
	return out
}
