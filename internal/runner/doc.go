// Package runner drives virtual users (VUs) against a Sender according to a
// staged concurrency schedule.
//
// # Schedule
//
// A [Schedule] is an ordered list of [Stage] values. Each stage ramps the
// target VU count linearly from the previous stage's target (0 for the first
// stage) to its own over its duration. A stage with zero duration jumps
// straight to its target. Once the last stage ends the target is 0 and the
// run is over.
//
// # Scheduler
//
// [Runner.Run] reconciles the live VU population against the schedule on a
// fixed tick. Missing VUs are started without blocking the tick; surplus VUs
// are asked to stop after their current iteration. When the schedule ends or
// the run context is cancelled every VU is asked to stop and the runner
// waits for their in-flight iterations. A positive [Options.GracefulStop]
// caps that wait: requests still in flight after it are cancelled and
// counted as interrupted iterations.
//
// # Workers
//
// Each VU loops over iterations: ask the [scenario.Scenario] for a request,
// send it, classify the result, record it into the shared
// [metrics.Collector] and pause for the configured [ThinkTime]. Iterations of
// one VU never overlap. A worker that panics is recovered, counted as a
// worker error and replaced on the next tick.
//
//	r, err := runner.New(runner.Options{
//		Stages:    []runner.Stage{{Duration: 30 * time.Second, Target: 100}},
//		Scenario:  tmpl,
//		Sender:    client,
//		Collector: collector,
//	})
//	if err != nil {
//		return err
//	}
//	result := r.Run(ctx)
package runner
