package runner

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/torosent/stampede/internal/httpclient"
	"github.com/torosent/stampede/internal/metrics"
	"github.com/torosent/stampede/internal/scenario"
)

// VUState is the lifecycle of one virtual user.
type VUState int32

const (
	VUStarting VUState = iota
	VURunning
	VUStopping
	VUStopped
)

func (s VUState) String() string {
	switch s {
	case VUStarting:
		return "starting"
	case VURunning:
		return "running"
	case VUStopping:
		return "stopping"
	case VUStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// vu is the scheduler's handle on one worker goroutine.
type vu struct {
	id       uint64
	state    atomic.Int32
	stop     chan struct{}
	stopOnce sync.Once
}

func newVU(id uint64) *vu {
	return &vu{id: id, stop: make(chan struct{})}
}

func (v *vu) State() VUState {
	return VUState(v.state.Load())
}

// active reports whether the VU counts towards the live population.
func (v *vu) active() bool {
	s := v.State()
	return s == VUStarting || s == VURunning
}

// requestStop moves a Starting or Running VU to Stopping. The worker
// notices after its current iteration.
func (v *vu) requestStop() {
	for {
		s := v.state.Load()
		if VUState(s) >= VUStopping {
			return
		}
		if v.state.CompareAndSwap(s, int32(VUStopping)) {
			v.stopOnce.Do(func() { close(v.stop) })
			return
		}
	}
}

func (v *vu) stopping() bool {
	return v.State() >= VUStopping
}

// worker runs the iterations of one VU.
type worker struct {
	vu          *vu
	opt         *Options
	log         logrus.FieldLogger
	pacer       *pacer
	warn        *rate.Sometimes
	consecutive int
	iteration   uint64
}

func newWorker(v *vu, opt *Options) *worker {
	return &worker{
		vu:    v,
		opt:   opt,
		log:   opt.Logger.WithField("vu", v.id),
		pacer: newPacer(opt.ThinkTime, opt.Seed, v.id),
		warn:  &rate.Sometimes{First: 3, Interval: 5 * time.Second},
	}
}

// errScenarioCap stops a VU whose scenario keeps failing.
var errScenarioCap = errors.New("too many consecutive scenario errors")

// run loops until the VU is asked to stop or ctx is cancelled. ctx is the
// hard-stop context: it only fires once the graceful stop period is over.
func (w *worker) run(ctx context.Context) error {
	w.vu.state.CompareAndSwap(int32(VUStarting), int32(VURunning))
	for {
		if w.vu.stopping() || ctx.Err() != nil {
			return nil
		}
		w.iteration++
		if err := w.iterate(ctx); err != nil {
			return err
		}
		if w.vu.stopping() {
			return nil
		}
		if !w.pacer.sleep(ctx, w.vu.stop) {
			return nil
		}
	}
}

func (w *worker) iterate(ctx context.Context) error {
	collector := w.opt.Collector
	ictx := scenario.WithIteration(ctx, scenario.Iteration{VU: w.vu.id, Number: w.iteration})

	req, err := w.opt.Scenario.NextRequest(ictx)
	if err != nil {
		if ctx.Err() != nil {
			collector.RecordInterrupted()
			return nil
		}
		return w.scenarioFailed(err)
	}
	w.consecutive = 0

	start := time.Now()
	resp, err := w.opt.Sender.Send(ictx, req)
	var outcome metrics.Outcome
	if err != nil {
		if ctx.Err() != nil {
			collector.RecordInterrupted()
			return nil
		}
		outcome = metrics.Classify(0, err)
		collector.Record(outcome, failedLatency(err, start))
	} else {
		outcome = metrics.Classify(resp.StatusCode, nil)
		if outcome.Kind == metrics.OutcomeSuccess && len(w.opt.Checks) > 0 {
			res := w.opt.Checks.Evaluate(resp.StatusCode, resp.Body)
			collector.RecordChecks(res.Passed, res.Failed)
			if res.Failed > 0 {
				outcome = outcome.FailCheck(res.FirstFailed)
			}
		}
		collector.Record(outcome, resp.Latency)
	}
	collector.RecordIteration()

	if outcome.Failed() && w.opt.FailureLogger != nil {
		w.opt.FailureLogger.LogFailure(w.vu.id, req, outcome)
	}
	return nil
}

func (w *worker) scenarioFailed(err error) error {
	var serr *scenario.Error
	if !errors.As(err, &serr) {
		serr = &scenario.Error{Err: err}
	}
	w.opt.Collector.RecordScenarioError()
	w.consecutive++
	w.warn.Do(func() {
		w.log.WithError(serr).WithField("consecutive", w.consecutive).Warn("scenario failed")
	})
	if w.opt.MaxScenarioErrors > 0 && w.consecutive > w.opt.MaxScenarioErrors {
		return errors.Join(errScenarioCap, serr)
	}
	return nil
}

// failedLatency is the latency of the last attempt behind err, matching
// Response.Latency when a retrying Sender gave up.
func failedLatency(err error, start time.Time) time.Duration {
	var terr *httpclient.TransportError
	if errors.As(err, &terr) {
		return terr.Latency
	}
	return time.Since(start)
}
