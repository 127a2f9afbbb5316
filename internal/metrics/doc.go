// Package metrics classifies request outcomes and aggregates them for reporting.
//
// # Classification
//
// [Classify] turns a response status or transport error into an [Outcome].
// 2xx and 3xx responses are successes, 4xx client errors, 5xx server errors,
// and any error returned by the HTTP collaborator is a transport error. A
// success whose response fails a scenario check is downgraded with
// [Outcome.FailCheck]; the failure tag and the pass/fail decision are read
// from the same Outcome, so one request is never counted twice.
//
// # Collector
//
// A single [Collector] is shared by every VU worker:
//
//	collector := metrics.NewCollector()
//	collector.Start()
//
//	outcome := metrics.Classify(resp.StatusCode, err)
//	collector.Record(outcome, latency)
//
//	snap := collector.Snapshot(elapsed)
//
// Counters are atomic. Latencies go to one of a fixed set of mutex-guarded
// shards, each owning an HDR histogram, so concurrent workers rarely contend
// on the same lock. [Collector.Snapshot] merges the shards into an immutable
// [Snapshot].
//
// # Precision
//
// Histograms track latencies from 1µs to 10 minutes with 3 significant
// figures: any reported percentile is within 0.1% of the true sample value.
// Latencies beyond the range are clamped to its bounds.
//
// # Time-Series Data
//
// [Collector.Capture] appends a [DataPoint] to the run history. Call it
// periodically (the CLI does so once per second) and read it back with
// [Collector.History] for charting.
package metrics
