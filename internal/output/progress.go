package output

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/torosent/stampede/internal/metrics"
)

// ProgressReporter rewrites one terminal line with the run's state on every
// tick.
type ProgressReporter struct {
	collector *metrics.Collector
	interval  time.Duration
	total     time.Duration
	writer    io.Writer

	mu      sync.Mutex
	stop    chan struct{}
	stopped sync.WaitGroup
}

// NewProgressReporter returns a reporter for a run scheduled to last total.
// A zero total omits the schedule length from the line.
func NewProgressReporter(collector *metrics.Collector, interval, total time.Duration, writer io.Writer) *ProgressReporter {
	if writer == nil {
		writer = io.Discard
	}
	return &ProgressReporter{
		collector: collector,
		interval:  interval,
		total:     total,
		writer:    writer,
	}
}

// Start begins reporting. Calling it on a running reporter does nothing.
func (p *ProgressReporter) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stop != nil {
		return
	}
	p.stop = make(chan struct{})
	p.stopped.Add(1)
	go p.loop(p.stop)
}

// Stop ends reporting and waits for the last line to be written.
func (p *ProgressReporter) Stop() {
	p.mu.Lock()
	stop := p.stop
	p.stop = nil
	p.mu.Unlock()
	if stop == nil {
		return
	}
	close(stop)
	p.stopped.Wait()
}

func (p *ProgressReporter) loop(stop <-chan struct{}) {
	defer p.stopped.Done()
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			snap := p.collector.Snapshot(p.collector.Elapsed())
			fmt.Fprint(p.writer, progressLine(snap, p.total))
		}
	}
}

func progressLine(s metrics.Snapshot, total time.Duration) string {
	clock := s.Duration.Round(time.Second).String()
	if total > 0 {
		clock += "/" + total.String()
	}
	return fmt.Sprintf("\r[%s] VUs: %d/%d | Requests: %d | Failures: %d | RPS: %.1f | P95: %.1fms",
		clock, s.VUs, s.TargetVUs, s.Total, s.Failures, s.RequestsPerSec, s.P95LatencyMs)
}
