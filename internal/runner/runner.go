package runner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

// ErrWorkerCrashed marks a VU whose goroutine panicked.
var ErrWorkerCrashed = errors.New("vu worker crashed")

// errGracefulStopExpired is the cause attached to the hard-stop context.
var errGracefulStopExpired = errors.New("graceful stop period expired")

// Result captures the execution summary.
type Result struct {
	Duration time.Duration
	// Cancelled is true when the run ended before the schedule did.
	Cancelled bool
	// WorkerErrors counts VUs lost to panics or the scenario error cap.
	WorkerErrors int64
	// HardStopped is true when the graceful stop period ran out.
	HardStopped bool
	PeakVUs     int
}

// Runner reconciles the VU population against a Schedule.
type Runner struct {
	opt      Options
	schedule *Schedule

	nextID       uint64
	live         []*vu
	wg           sync.WaitGroup
	workerErrors atomic.Int64
	peak         int
}

// New validates opt and compiles its stages.
func New(opt Options) (*Runner, error) {
	opt.normalize()
	if err := opt.validate(); err != nil {
		return nil, err
	}
	schedule, err := NewSchedule(opt.Stages)
	if err != nil {
		return nil, fmt.Errorf("stages: %w", err)
	}
	return &Runner{opt: opt, schedule: schedule}, nil
}

// Schedule returns the compiled stage schedule.
func (r *Runner) Schedule() *Schedule {
	return r.schedule
}

// Run executes the schedule and blocks until every VU has stopped. Cancelling
// ctx ends the run early: VUs finish their current iteration within the
// graceful stop period.
func (r *Runner) Run(ctx context.Context) Result {
	log := r.opt.Logger
	start := time.Now()
	r.opt.Collector.Start()

	// Requests outlive ctx so a cancelled run still lets in-flight
	// iterations finish; hardCancel ends them after the graceful stop.
	hardCtx, hardCancel := context.WithCancelCause(context.WithoutCancel(ctx))
	defer hardCancel(nil)

	ticker := time.NewTicker(r.opt.TickInterval)
	defer ticker.Stop()

	log.WithFields(logrus.Fields{
		"stages":   len(r.opt.Stages),
		"duration": r.schedule.TotalDuration(),
		"max_vus":  r.schedule.MaxTarget(),
	}).Debug("run started")

	cancelled := false
	running := r.reconcile(hardCtx, time.Since(start))
loop:
	for running {
		select {
		case <-ctx.Done():
			cancelled = true
			break loop
		case <-ticker.C:
			running = r.reconcile(hardCtx, time.Since(start))
		}
	}

	hardStopped := r.drain(hardCancel)
	r.opt.Collector.SetVUs(0)
	r.opt.Collector.SetTargetVUs(0)

	res := Result{
		Duration:     time.Since(start),
		Cancelled:    cancelled,
		WorkerErrors: r.workerErrors.Load(),
		HardStopped:  hardStopped,
		PeakVUs:      r.peak,
	}
	log.WithFields(logrus.Fields{
		"elapsed":       res.Duration.Round(time.Millisecond),
		"cancelled":     res.Cancelled,
		"worker_errors": res.WorkerErrors,
	}).Debug("run finished")
	return res
}

// reconcile is the only place the live VU set is read or written. It returns
// false once the schedule is over.
func (r *Runner) reconcile(ctx context.Context, elapsed time.Duration) bool {
	target, ok := r.schedule.Target(elapsed)

	kept := r.live[:0]
	active := 0
	for _, v := range r.live {
		if v.State() == VUStopped {
			continue
		}
		kept = append(kept, v)
		if v.active() {
			active++
		}
	}
	clear(r.live[len(kept):])
	r.live = kept

	if !ok {
		return false
	}

	for ; active < target; active++ {
		r.spawn(ctx)
	}
	// Newest VUs stop first.
	for i := len(r.live) - 1; i >= 0 && active > target; i-- {
		if r.live[i].active() {
			r.live[i].requestStop()
			active--
		}
	}

	r.peak = max(r.peak, active)
	r.opt.Collector.SetTargetVUs(target)
	r.opt.Collector.SetVUs(active)
	return true
}

func (r *Runner) spawn(ctx context.Context) {
	r.nextID++
	v := newVU(r.nextID)
	r.live = append(r.live, v)
	r.wg.Add(1)
	r.opt.Logger.WithField("vu", v.id).Debug("vu starting")
	go r.runVU(ctx, v)
}

func (r *Runner) runVU(ctx context.Context, v *vu) {
	log := r.opt.Logger.WithField("vu", v.id)
	defer r.wg.Done()
	defer func() {
		if p := recover(); p != nil {
			r.workerErrors.Add(1)
			log.WithField("panic", p).WithError(ErrWorkerCrashed).Error("vu crashed")
		}
		v.state.Store(int32(VUStopped))
	}()

	if err := newWorker(v, &r.opt).run(ctx); err != nil {
		r.workerErrors.Add(1)
		log.WithError(err).Error("vu stopped")
		return
	}
	log.Debug("vu stopped")
}

// drain asks every VU to stop and waits for them. A positive GracefulStop
// bounds the wait, after which in-flight iterations are cancelled; otherwise
// every VU finishes its iteration. It reports whether the hard stop was used.
func (r *Runner) drain(hardCancel context.CancelCauseFunc) bool {
	for _, v := range r.live {
		v.requestStop()
	}
	r.live = nil

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	if r.opt.GracefulStop <= 0 {
		<-done
		return false
	}

	timer := time.NewTimer(r.opt.GracefulStop)
	defer timer.Stop()
	select {
	case <-done:
		return false
	case <-timer.C:
		r.opt.Logger.WithField("graceful_stop", r.opt.GracefulStop).Warn("interrupting in-flight iterations")
		hardCancel(errGracefulStopExpired)
		<-done
		return true
	}
}
