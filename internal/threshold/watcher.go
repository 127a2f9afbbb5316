package threshold

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/torosent/stampede/internal/metrics"
)

// DefaultInterval is how often rules are evaluated during a run when abort
// rules exist but no interval was configured.
const DefaultInterval = 2 * time.Second

// AbortError is the cancellation cause when an abort-on-fail rule fails.
type AbortError struct {
	Verdict Verdict
}

func (e *AbortError) Error() string {
	return fmt.Sprintf("threshold %q failed: observed %.2f %s %.2f", e.Verdict.Name, e.Verdict.Observed, e.Verdict.Operator, e.Verdict.Limit)
}

// Watcher evaluates thresholds periodically while the run is in progress.
type Watcher struct {
	eval     *Evaluator
	snapshot func() metrics.Snapshot
	interval time.Duration
	log      logrus.FieldLogger

	mu      sync.Mutex
	failing map[string]bool
	aborted *Verdict
}

// NewWatcher returns a Watcher reading snapshots from the snapshot func.
func NewWatcher(eval *Evaluator, snapshot func() metrics.Snapshot, interval time.Duration, log logrus.FieldLogger) *Watcher {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Watcher{
		eval:     eval,
		snapshot: snapshot,
		interval: interval,
		log:      log,
		failing:  make(map[string]bool),
	}
}

// Run evaluates on every interval until ctx is done. The first failing
// abort-on-fail rule calls abort with an *AbortError and ends Run.
func (w *Watcher) Run(ctx context.Context, abort context.CancelCauseFunc) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if v, ok := w.Check(); ok {
				abort(&AbortError{Verdict: v})
				return
			}
		}
	}
}

// Check runs one evaluation. It returns the verdict that should abort the
// run, if any.
func (w *Watcher) Check() (Verdict, bool) {
	verdicts := w.eval.Evaluate(w.snapshot())

	w.mu.Lock()
	defer w.mu.Unlock()
	for _, v := range verdicts {
		if v.Passed {
			if w.failing[v.Name] {
				w.log.WithField("threshold", v.Name).Info("threshold recovered")
			}
			delete(w.failing, v.Name)
			continue
		}
		if !w.failing[v.Name] {
			w.log.WithFields(logrus.Fields{
				"threshold": v.Name,
				"observed":  v.Observed,
			}).Warn("threshold failing")
			w.failing[v.Name] = true
		}
		if v.AbortOnFail && w.aborted == nil {
			aborted := v
			w.aborted = &aborted
			return v, true
		}
	}
	return Verdict{}, false
}

// Aborted returns the verdict that aborted the run, if any.
func (w *Watcher) Aborted() (Verdict, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.aborted == nil {
		return Verdict{}, false
	}
	return *w.aborted, true
}
