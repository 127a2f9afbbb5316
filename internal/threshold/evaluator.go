package threshold

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/torosent/stampede/internal/metrics"
)

// Evaluator evaluates thresholds against snapshots. It holds no mutable
// state and is safe for concurrent use.
type Evaluator struct {
	thresholds []Threshold
}

func NewEvaluator(thresholds []Threshold) *Evaluator {
	return &Evaluator{thresholds: thresholds}
}

// HasAbortRules reports whether any rule may end the run early.
func (e *Evaluator) HasAbortRules() bool {
	for _, t := range e.thresholds {
		if t.AbortOnFail {
			return true
		}
	}
	return false
}

// Evaluate checks every threshold independently.
func (e *Evaluator) Evaluate(snap metrics.Snapshot) []Verdict {
	if len(e.thresholds) == 0 {
		return nil
	}
	verdicts := make([]Verdict, 0, len(e.thresholds))
	for _, t := range e.thresholds {
		verdicts = append(verdicts, evaluateOne(t, snap))
	}
	return verdicts
}

func evaluateOne(t Threshold, snap metrics.Snapshot) Verdict {
	v := Verdict{
		Name:        t.Name(),
		Metric:      t.Metric,
		Aggregate:   t.Aggregate,
		Operator:    t.Operator,
		Limit:       t.Value,
		AbortOnFail: t.AbortOnFail,
	}
	actual, err := observe(t, snap)
	if err != nil {
		v.Message = fmt.Sprintf("✗ %s: %v", t.Raw, err)
		return v
	}
	v.Observed = actual
	v.Passed = compareValues(actual, t.Operator, t.Value)

	status := "✓"
	if !v.Passed {
		status = "✗"
	}
	v.Message = fmt.Sprintf("%s %s: %.2f %s %.2f", status, t.Raw, actual, t.Operator, t.Value)
	return v
}

func observe(t Threshold, snap metrics.Snapshot) (float64, error) {
	switch t.Metric {
	case MetricDuration:
		return latency(t.Aggregate, snap)
	case MetricFailed:
		switch t.Aggregate {
		case "count":
			return float64(snap.Failures), nil
		case "rate":
			if snap.Total == 0 {
				return 0, nil
			}
			return float64(snap.Failures) / float64(snap.Total), nil
		}
	case MetricRequests:
		switch t.Aggregate {
		case "count":
			return float64(snap.Total), nil
		case "rate":
			return snap.RequestsPerSec, nil
		}
	case MetricChecks:
		switch t.Aggregate {
		case "count":
			return float64(snap.ChecksFailed), nil
		case "rate":
			if snap.ChecksPassed+snap.ChecksFailed == 0 {
				return 1, nil
			}
			return float64(snap.ChecksPassed) / float64(snap.ChecksPassed+snap.ChecksFailed), nil
		}
	case MetricIterations:
		switch t.Aggregate {
		case "count":
			return float64(snap.Iterations), nil
		case "rate":
			return snap.IterationsPerSec, nil
		}
	case MetricVUs:
		switch t.Aggregate {
		case "max":
			return float64(snap.VUsMax), nil
		case "value":
			return float64(snap.VUs), nil
		}
	case MetricScenario:
		if t.Aggregate == "count" {
			return float64(snap.ScenarioErrors), nil
		}
	}
	return 0, fmt.Errorf("unsupported aggregate %q for %s", t.Aggregate, t.Metric)
}

func latency(aggregate string, snap metrics.Snapshot) (float64, error) {
	switch aggregate {
	case "p50":
		return metrics.Millis(snap.P50Latency), nil
	case "p90":
		return metrics.Millis(snap.P90Latency), nil
	case "p95":
		return metrics.Millis(snap.P95Latency), nil
	case "p99":
		return metrics.Millis(snap.P99Latency), nil
	case "avg":
		return metrics.Millis(snap.MeanLatency), nil
	case "min", "p0":
		return metrics.Millis(snap.MinLatency), nil
	case "max", "p100":
		return metrics.Millis(snap.MaxLatency), nil
	}
	if q, ok := strings.CutPrefix(aggregate, "p"); ok {
		pct, err := strconv.ParseFloat(q, 64)
		if err == nil {
			return metrics.Millis(snap.Percentile(pct)), nil
		}
	}
	return 0, fmt.Errorf("unsupported aggregate %q for %s", aggregate, MetricDuration)
}
