// Package threshold parses pass/fail rules over aggregate metrics and
// evaluates them against a metrics.Snapshot.
package threshold

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/torosent/stampede/internal/metrics"
)

// Canonical metric names.
const (
	MetricDuration   = "http_req_duration"
	MetricFailed     = "http_req_failed"
	MetricRequests   = "http_reqs"
	MetricChecks     = "checks"
	MetricIterations = "iterations"
	MetricVUs        = "vus"
	MetricScenario   = "scenario_errors"
)

// Threshold is one rule: Metric's Aggregate compared with Value.
type Threshold struct {
	Metric    string  // canonical metric name
	Aggregate string  // "p95", "avg", "rate", ...
	Operator  string  // "<", "<=", ">", ">=", "=="
	Value     float64 // milliseconds for http_req_duration
	Raw       string  // original rule for display
	// AbortOnFail ends the run as soon as a periodic evaluation fails.
	AbortOnFail bool
}

// Name identifies the rule in reports.
func (t Threshold) Name() string {
	return t.Raw
}

// Verdict is the outcome of evaluating one threshold.
type Verdict struct {
	Name        string  `json:"name" yaml:"name"`
	Metric      string  `json:"metric" yaml:"metric"`
	Aggregate   string  `json:"aggregate" yaml:"aggregate"`
	Operator    string  `json:"operator" yaml:"operator"`
	Observed    float64 `json:"observed" yaml:"observed"`
	Limit       float64 `json:"limit" yaml:"limit"`
	Passed      bool    `json:"passed" yaml:"passed"`
	AbortOnFail bool    `json:"abort_on_fail,omitempty" yaml:"abort_on_fail,omitempty"`
	Message     string  `json:"message" yaml:"message"`
}

// AllPassed reports whether every verdict passed. An empty set passes.
func AllPassed(verdicts []Verdict) bool {
	for _, v := range verdicts {
		if !v.Passed {
			return false
		}
	}
	return true
}

var rulePattern = regexp.MustCompile(
	`^([a-z_0-9]+)(?::([a-z]+|p\(\d+(?:\.\d+)?\)|p\d+(?:\.\d+)?))?\s*(<=|>=|==|<|>)\s*(\d+(?:\.\d+)?|\.\d+)\s*([a-zµ]*)$`)

// shorthands expand single-word metrics to metric:aggregate.
var shorthands = map[string][2]string{
	"p50_latency":  {MetricDuration, "p50"},
	"p90_latency":  {MetricDuration, "p90"},
	"p95_latency":  {MetricDuration, "p95"},
	"p99_latency":  {MetricDuration, "p99"},
	"p50latency":   {MetricDuration, "p50"},
	"p90latency":   {MetricDuration, "p90"},
	"p95latency":   {MetricDuration, "p95"},
	"p99latency":   {MetricDuration, "p99"},
	"avg_latency":  {MetricDuration, "avg"},
	"max_latency":  {MetricDuration, "max"},
	"failure_rate": {MetricFailed, "rate"},
	"error_rate":   {MetricFailed, "rate"},
	"rps":          {MetricRequests, "rate"},
}

var metricAliases = map[string]string{
	"http_requests": MetricRequests,
}

// defaultAggregates apply when a rule names only the metric, as k6 allows
// for rate and counter metrics.
var defaultAggregates = map[string]string{
	MetricFailed:     "rate",
	MetricRequests:   "count",
	MetricChecks:     "rate",
	MetricIterations: "count",
	MetricVUs:        "max",
	MetricScenario:   "count",
}

var aggregates = map[string][]string{
	MetricDuration:   {"avg", "min", "max", "med"},
	MetricFailed:     {"rate", "count"},
	MetricRequests:   {"count", "rate"},
	MetricChecks:     {"rate", "count"},
	MetricIterations: {"count", "rate"},
	MetricVUs:        {"max", "value"},
	MetricScenario:   {"count"},
}

// Parse parses a rule. Supported forms:
//   - "http_req_duration:p95 < 500"       (milliseconds)
//   - "http_req_duration:p(99.9) < 1.5s"  (k6 percentile, unit suffix)
//   - "http_req_failed:rate < 0.01"
//   - "http_req_failed < 0.01"            (default aggregate)
//   - "p95_latency < 500ms"               (shorthand)
func Parse(s string) (Threshold, error) {
	raw := strings.TrimSpace(s)
	if raw == "" {
		return Threshold{}, errors.New("empty threshold string")
	}
	m := rulePattern.FindStringSubmatch(strings.ToLower(raw))
	if m == nil {
		return Threshold{}, fmt.Errorf("invalid threshold format: %q (expected metric:aggregate operator value, e.g. 'http_req_duration:p95 < 500')", raw)
	}
	metric, aggregate, operator, number, unit := m[1], m[2], m[3], m[4], m[5]

	if alias, ok := metricAliases[metric]; ok {
		metric = alias
	}
	if sh, ok := shorthands[metric]; ok {
		if aggregate != "" {
			return Threshold{}, fmt.Errorf("%q already implies an aggregate", metric)
		}
		metric, aggregate = sh[0], sh[1]
	}
	if _, ok := aggregates[metric]; !ok {
		return Threshold{}, fmt.Errorf("unsupported metric %q (supported: %s)", metric, supportedMetrics())
	}
	if aggregate == "" {
		def, ok := defaultAggregates[metric]
		if !ok {
			return Threshold{}, fmt.Errorf("metric %q needs an aggregate, e.g. %s:p95", metric, metric)
		}
		aggregate = def
	}
	aggregate, err := normalizeAggregate(metric, aggregate)
	if err != nil {
		return Threshold{}, err
	}

	value, err := parseLimit(metric, number, unit)
	if err != nil {
		return Threshold{}, err
	}

	return Threshold{
		Metric:    metric,
		Aggregate: aggregate,
		Operator:  operator,
		Value:     value,
		Raw:       raw,
	}, nil
}

// ParseErrors lists every rule that failed to parse, one entry per rule.
type ParseErrors []string

func (e ParseErrors) Error() string {
	return "threshold parsing errors: " + strings.Join(e, "; ")
}

// ParseMultiple parses every rule and reports all failures together as
// ParseErrors. On success the result is index-aligned with rules.
func ParseMultiple(rules []string) ([]Threshold, error) {
	if len(rules) == 0 {
		return nil, nil
	}
	out := make([]Threshold, 0, len(rules))
	var errs ParseErrors
	for i, s := range rules {
		t, err := Parse(s)
		if err != nil {
			errs = append(errs, fmt.Sprintf("thresholds[%d]: %v", i, err))
			continue
		}
		out = append(out, t)
	}
	if len(errs) > 0 {
		return nil, errs
	}
	return out, nil
}

func normalizeAggregate(metric, aggregate string) (string, error) {
	if metric == MetricDuration {
		if aggregate == "mean" {
			return "avg", nil
		}
		if aggregate == "med" {
			return "p50", nil
		}
		if strings.HasPrefix(aggregate, "p") && aggregate != "p" {
			q := strings.TrimSuffix(strings.TrimPrefix(strings.TrimPrefix(aggregate, "p"), "("), ")")
			v, err := strconv.ParseFloat(q, 64)
			if err != nil || v < 0 || v > 100 {
				return "", fmt.Errorf("invalid percentile %q", aggregate)
			}
			return "p" + strconv.FormatFloat(v, 'f', -1, 64), nil
		}
	}
	for _, a := range aggregates[metric] {
		if a == aggregate {
			return aggregate, nil
		}
	}
	return "", fmt.Errorf("unsupported aggregate %q for %s", aggregate, metric)
}

func parseLimit(metric, number, unit string) (float64, error) {
	if unit == "" {
		v, err := strconv.ParseFloat(number, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid threshold value %q: %w", number, err)
		}
		return v, nil
	}
	if metric != MetricDuration {
		return 0, fmt.Errorf("unit %q is only valid for %s", unit, MetricDuration)
	}
	d, err := time.ParseDuration(number + unit)
	if err != nil {
		return 0, fmt.Errorf("invalid threshold value %q: %w", number+unit, err)
	}
	return metrics.Millis(d), nil
}

func supportedMetrics() string {
	return strings.Join([]string{MetricDuration, MetricFailed, MetricRequests, MetricChecks, MetricIterations, MetricVUs, MetricScenario}, ", ")
}

const epsilon = 1e-9

func compareValues(actual float64, operator string, expected float64) bool {
	switch operator {
	case "<":
		return actual < expected
	case "<=":
		return actual <= expected || math.Abs(actual-expected) < epsilon
	case ">":
		return actual > expected
	case ">=":
		return actual >= expected || math.Abs(actual-expected) < epsilon
	case "==":
		return math.Abs(actual-expected) < epsilon
	default:
		return false
	}
}
