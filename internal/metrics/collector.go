package metrics

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

const (
	shardCount = 32

	// Latencies are tracked in microseconds from 1µs to 10 minutes.
	histMin     = 1
	histMax     = int64(10 * time.Minute / time.Microsecond)
	histSigFigs = 3
)

type shard struct {
	mu         sync.Mutex
	hist       *hdrhistogram.Histogram
	minLatency time.Duration
	maxLatency time.Duration
	sumLatency time.Duration
	tags       map[string]int64
}

func newShard() *shard {
	return &shard{
		hist: hdrhistogram.New(histMin, histMax, histSigFigs),
		tags: make(map[string]int64),
	}
}

func (s *shard) record(latency time.Duration, tag string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_ = s.hist.RecordValue(clampMicros(latency))
	s.sumLatency += latency
	if s.hist.TotalCount() == 1 || latency < s.minLatency {
		s.minLatency = latency
	}
	if latency > s.maxLatency {
		s.maxLatency = latency
	}
	if tag != "" {
		s.tags[tag]++
	}
}

func clampMicros(latency time.Duration) int64 {
	us := latency.Microseconds()
	if us < histMin {
		return histMin
	}
	if us > histMax {
		return histMax
	}
	return us
}

// Collector aggregates outcomes from every VU. It is safe for concurrent use.
type Collector struct {
	total     atomic.Int64
	successes atomic.Int64
	failures  atomic.Int64

	scenarioErrors atomic.Int64
	interrupted    atomic.Int64
	iterations     atomic.Int64
	checksPassed   atomic.Int64
	checksFailed   atomic.Int64

	vus       atomic.Int64
	vusMax    atomic.Int64
	targetVUs atomic.Int64

	next   atomic.Uint64
	shards [shardCount]*shard

	mu      sync.Mutex
	start   time.Time
	history []DataPoint
}

// NewCollector returns an empty Collector. The run clock starts immediately;
// call Start to reset it when the load actually begins.
func NewCollector() *Collector {
	c := &Collector{start: time.Now()}
	for i := range c.shards {
		c.shards[i] = newShard()
	}
	return c
}

// Start marks the beginning of the run for rate and history calculations.
func (c *Collector) Start() {
	c.mu.Lock()
	c.start = time.Now()
	c.mu.Unlock()
}

// Record adds one classified request and its latency.
func (c *Collector) Record(outcome Outcome, latency time.Duration) {
	idx := c.next.Add(1) % shardCount
	c.shards[idx].record(latency, outcome.Tag())

	c.total.Add(1)
	if outcome.Failed() {
		c.failures.Add(1)
	} else {
		c.successes.Add(1)
	}
}

// RecordChecks adds the results of one response's checks.
func (c *Collector) RecordChecks(passed, failed int) {
	if passed > 0 {
		c.checksPassed.Add(int64(passed))
	}
	if failed > 0 {
		c.checksFailed.Add(int64(failed))
	}
}

// RecordScenarioError counts a scenario callback failure. No request was
// sent, so request totals are unchanged.
func (c *Collector) RecordScenarioError() {
	c.scenarioErrors.Add(1)
}

// RecordInterrupted counts an iteration abandoned by a hard stop.
func (c *Collector) RecordInterrupted() {
	c.interrupted.Add(1)
}

// RecordIteration counts one finished VU iteration.
func (c *Collector) RecordIteration() {
	c.iterations.Add(1)
}

// SetVUs publishes the number of live VUs and tracks the peak.
func (c *Collector) SetVUs(n int) {
	v := int64(n)
	c.vus.Store(v)
	for {
		peak := c.vusMax.Load()
		if v <= peak || c.vusMax.CompareAndSwap(peak, v) {
			return
		}
	}
}

// SetTargetVUs publishes the scheduler's current target.
func (c *Collector) SetTargetVUs(n int) {
	c.targetVUs.Store(int64(n))
}

// VUs returns the live and target VU counts last published.
func (c *Collector) VUs() (live, target int) {
	return int(c.vus.Load()), int(c.targetVUs.Load())
}

// Snapshot returns an immutable view of everything recorded so far.
func (c *Collector) Snapshot(elapsed time.Duration) Snapshot {
	merged := hdrhistogram.New(histMin, histMax, histSigFigs)
	var (
		sum      time.Duration
		minLat   time.Duration
		maxLat   time.Duration
		haveMin  bool
		tags     map[string]int64
		observed int64
	)
	for _, s := range c.shards {
		s.mu.Lock()
		n := s.hist.TotalCount()
		if n > 0 {
			merged.Merge(s.hist)
			observed += n
			sum += s.sumLatency
			if !haveMin || s.minLatency < minLat {
				minLat = s.minLatency
				haveMin = true
			}
			if s.maxLatency > maxLat {
				maxLat = s.maxLatency
			}
		}
		for tag, count := range s.tags {
			if tags == nil {
				tags = make(map[string]int64)
			}
			tags[tag] += count
		}
		s.mu.Unlock()
	}

	snap := Snapshot{
		Total:          c.total.Load(),
		Successes:      c.successes.Load(),
		Failures:       c.failures.Load(),
		FailuresByTag:  tags,
		ScenarioErrors: c.scenarioErrors.Load(),
		Interrupted:    c.interrupted.Load(),
		Iterations:     c.iterations.Load(),
		ChecksPassed:   c.checksPassed.Load(),
		ChecksFailed:   c.checksFailed.Load(),
		VUs:            int(c.vus.Load()),
		VUsMax:         int(c.vusMax.Load()),
		TargetVUs:      int(c.targetVUs.Load()),
		MinLatency:     minLat,
		MaxLatency:     maxLat,
		Duration:       elapsed,
		hist:           merged,
	}
	if observed > 0 {
		snap.MeanLatency = sum / time.Duration(observed)
		snap.P50Latency = snap.Percentile(50)
		snap.P90Latency = snap.Percentile(90)
		snap.P95Latency = snap.Percentile(95)
		snap.P99Latency = snap.Percentile(99)
	}
	if elapsed > 0 {
		snap.RequestsPerSec = float64(snap.Total) / elapsed.Seconds()
		snap.IterationsPerSec = float64(snap.Iterations) / elapsed.Seconds()
	}
	if snap.Total > 0 {
		snap.ErrorRate = float64(snap.Failures) / float64(snap.Total)
	}
	// With no checks evaluated nothing has failed a check.
	snap.ChecksRate = 1
	if checks := snap.ChecksPassed + snap.ChecksFailed; checks > 0 {
		snap.ChecksRate = float64(snap.ChecksPassed) / float64(checks)
	}
	snap.fillMillis()
	return snap
}

// Elapsed returns the time since Start.
func (c *Collector) Elapsed() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return time.Since(c.start)
}
