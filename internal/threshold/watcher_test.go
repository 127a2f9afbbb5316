package threshold_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/torosent/stampede/internal/logging"
	"github.com/torosent/stampede/internal/metrics"
	"github.com/torosent/stampede/internal/threshold"
)

func TestWatcherAbortsOnFailingAbortRule(t *testing.T) {
	abortRule, err := threshold.Parse("http_req_failed:rate < 0.1")
	if err != nil {
		t.Fatal(err)
	}
	abortRule.AbortOnFail = true
	plainRule, err := threshold.Parse("http_reqs:count > 1000000")
	if err != nil {
		t.Fatal(err)
	}

	var failures atomic.Int64
	snapshot := func() metrics.Snapshot {
		return metrics.Snapshot{Total: 10, Failures: failures.Load()}
	}
	w := threshold.NewWatcher(threshold.NewEvaluator([]threshold.Threshold{plainRule, abortRule}), snapshot, 5*time.Millisecond, logging.Discard())

	if _, abort := w.Check(); abort {
		t.Fatal("healthy snapshot must not abort")
	}

	ctx, cancel := context.WithCancelCause(context.Background())
	defer cancel(nil)
	done := make(chan struct{})
	go func() {
		defer close(done)
		w.Run(ctx, cancel)
	}()

	failures.Store(5)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not abort")
	}

	var abortErr *threshold.AbortError
	if !errors.As(context.Cause(ctx), &abortErr) {
		t.Fatalf("cause = %v, want *AbortError", context.Cause(ctx))
	}
	if abortErr.Verdict.Name != "http_req_failed:rate < 0.1" {
		t.Errorf("aborted by %q", abortErr.Verdict.Name)
	}
	if v, ok := w.Aborted(); !ok || v.Observed != 0.5 {
		t.Errorf("Aborted() = %+v, %v", v, ok)
	}
}

func TestWatcherIgnoresNonAbortFailures(t *testing.T) {
	rule, err := threshold.Parse("http_req_failed:rate < 0.1")
	if err != nil {
		t.Fatal(err)
	}
	snapshot := func() metrics.Snapshot { return metrics.Snapshot{Total: 10, Failures: 10} }
	w := threshold.NewWatcher(threshold.NewEvaluator([]threshold.Threshold{rule}), snapshot, 5*time.Millisecond, logging.Discard())

	ctx, cancel := context.WithTimeout(context.Background(), 40*time.Millisecond)
	defer cancel()
	w.Run(ctx, func(error) { t.Error("abort called for a rule without abort_on_fail") })

	if _, ok := w.Aborted(); ok {
		t.Error("Aborted() = true")
	}
}
