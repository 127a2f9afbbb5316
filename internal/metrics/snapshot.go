package metrics

import (
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// Snapshot is an immutable view of a Collector at one point in time.
type Snapshot struct {
	Total          int64            `json:"total" yaml:"total"`
	Successes      int64            `json:"successes" yaml:"successes"`
	Failures       int64            `json:"failures" yaml:"failures"`
	ErrorRate      float64          `json:"error_rate" yaml:"error_rate"`
	FailuresByTag  map[string]int64 `json:"failures_by_tag,omitempty" yaml:"failures_by_tag,omitempty"`
	ScenarioErrors int64            `json:"scenario_errors" yaml:"scenario_errors"`
	Interrupted    int64            `json:"interrupted_iterations" yaml:"interrupted_iterations"`

	Iterations       int64   `json:"iterations" yaml:"iterations"`
	IterationsPerSec float64 `json:"iterations_per_sec" yaml:"iterations_per_sec"`
	ChecksPassed     int64   `json:"checks_passed" yaml:"checks_passed"`
	ChecksFailed     int64   `json:"checks_failed" yaml:"checks_failed"`
	ChecksRate       float64 `json:"checks_rate" yaml:"checks_rate"`

	VUs       int `json:"vus" yaml:"vus"`
	VUsMax    int `json:"vus_max" yaml:"vus_max"`
	TargetVUs int `json:"target_vus" yaml:"target_vus"`

	MinLatency     time.Duration `json:"-" yaml:"-"`
	MaxLatency     time.Duration `json:"-" yaml:"-"`
	MeanLatency    time.Duration `json:"-" yaml:"-"`
	P50Latency     time.Duration `json:"-" yaml:"-"`
	P90Latency     time.Duration `json:"-" yaml:"-"`
	P95Latency     time.Duration `json:"-" yaml:"-"`
	P99Latency     time.Duration `json:"-" yaml:"-"`
	Duration       time.Duration `json:"-" yaml:"-"`
	RequestsPerSec float64       `json:"requests_per_sec" yaml:"requests_per_sec"`

	// JSON-friendly millisecond fields.
	MinLatencyMs  float64 `json:"min_latency_ms" yaml:"min_latency_ms"`
	MaxLatencyMs  float64 `json:"max_latency_ms" yaml:"max_latency_ms"`
	MeanLatencyMs float64 `json:"mean_latency_ms" yaml:"mean_latency_ms"`
	P50LatencyMs  float64 `json:"p50_latency_ms" yaml:"p50_latency_ms"`
	P90LatencyMs  float64 `json:"p90_latency_ms" yaml:"p90_latency_ms"`
	P95LatencyMs  float64 `json:"p95_latency_ms" yaml:"p95_latency_ms"`
	P99LatencyMs  float64 `json:"p99_latency_ms" yaml:"p99_latency_ms"`
	DurationMs    float64 `json:"duration_ms" yaml:"duration_ms"`

	hist *hdrhistogram.Histogram
}

// Percentile returns the latency at quantile q (0-100). The histogram backing
// a Snapshot is never written after creation, so this is safe to call from
// several goroutines.
func (s Snapshot) Percentile(q float64) time.Duration {
	if s.hist == nil || s.hist.TotalCount() == 0 {
		return 0
	}
	return time.Duration(s.hist.ValueAtQuantile(q)) * time.Microsecond
}

func (s *Snapshot) fillMillis() {
	s.MinLatencyMs = Millis(s.MinLatency)
	s.MaxLatencyMs = Millis(s.MaxLatency)
	s.MeanLatencyMs = Millis(s.MeanLatency)
	s.P50LatencyMs = Millis(s.P50Latency)
	s.P90LatencyMs = Millis(s.P90Latency)
	s.P95LatencyMs = Millis(s.P95Latency)
	s.P99LatencyMs = Millis(s.P99Latency)
	s.DurationMs = Millis(s.Duration)
}

// Millis converts a duration to fractional milliseconds.
func Millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
