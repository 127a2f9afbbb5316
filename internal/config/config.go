// Package config loads and validates stampede run configuration.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Bounds and defaults for scheduler settings.
const (
	DefaultTickInterval      = 100 * time.Millisecond
	MinTickInterval          = 10 * time.Millisecond
	MaxTickInterval          = time.Second
	DefaultGracefulStop      = 0
	DefaultMaxScenarioErrors = 10
	DefaultTimeout           = 30 * time.Second
)

type Config struct {
	TargetURL         string            `mapstructure:"target"`
	Method            string            `mapstructure:"method"`
	Headers           map[string]string `mapstructure:"headers"`
	Body              string            `mapstructure:"body"`
	BodyFile          string            `mapstructure:"body_file"`
	Stages            []Stage           `mapstructure:"stages"`
	VUs               int               `mapstructure:"vus"`
	Duration          time.Duration     `mapstructure:"duration"`
	ThinkTime         ThinkTime         `mapstructure:"think_time"`
	Thresholds        []Threshold       `mapstructure:"thresholds"`
	Checks            []Check           `mapstructure:"checks"`
	Timeout           time.Duration     `mapstructure:"timeout"`
	Retries           int               `mapstructure:"retries"`
	TickInterval      time.Duration     `mapstructure:"tick_interval"`
	GracefulStop      time.Duration     `mapstructure:"graceful_stop"`
	MaxScenarioErrors int               `mapstructure:"max_scenario_errors"`
	ThresholdInterval time.Duration     `mapstructure:"threshold_interval"`
	Seed              int64             `mapstructure:"seed"`
	Feeder            FeederConfig      `mapstructure:"feeder"`
	Tracing           TracingConfig     `mapstructure:"tracing"`
	HistoryFile       string            `mapstructure:"history_file"`
	HistoryList       bool              `mapstructure:"-"`
	JSONOutput        bool              `mapstructure:"json_output"`
	HTMLOutput        string            `mapstructure:"html_output"`
	SummaryExport     string            `mapstructure:"summary_export"`
	Dashboard         bool              `mapstructure:"dashboard"`
	LogErrors         bool              `mapstructure:"log_errors"`
	LogLevel          string            `mapstructure:"log_level"`
	LogFormat         string            `mapstructure:"log_format"`
	ConfigFile        string            `mapstructure:"-"`
}

// Stage is one step of the VU schedule: ramp linearly to Target over Duration.
type Stage struct {
	Duration time.Duration `mapstructure:"duration"`
	Target   int           `mapstructure:"target"`
}

// ThinkTime is the pause between iterations. Min == Max means a fixed pause.
type ThinkTime struct {
	Min time.Duration `mapstructure:"min"`
	Max time.Duration `mapstructure:"max"`
}

// Threshold is a pass/fail rule in "metric:aggregate op limit" form.
type Threshold struct {
	Expr        string `mapstructure:"threshold"`
	AbortOnFail bool   `mapstructure:"abort_on_fail"`
}

// Check is a named assertion on every successful response.
type Check struct {
	Name   string `mapstructure:"name"`
	Status []int  `mapstructure:"status"`
	// JSONPath is a gjson path into the response body.
	JSONPath string `mapstructure:"jsonpath"`
	// Equals, when set, must match the JSONPath result; otherwise the path
	// only has to exist.
	Equals string `mapstructure:"equals"`
}

type FeederConfig struct {
	Path string `mapstructure:"path"`
	Type string `mapstructure:"type"` // "csv" or "json"
}

// TracingConfig configures OpenTelemetry export.
type TracingConfig struct {
	Endpoint    string  `mapstructure:"endpoint"`
	Protocol    string  `mapstructure:"protocol"` // "grpc" or "http"
	ServiceName string  `mapstructure:"service_name"`
	SampleRate  float64 `mapstructure:"sample_rate"`
	Insecure    bool    `mapstructure:"insecure"`
	Propagate   *bool   `mapstructure:"propagate"`
}

// Enabled reports whether tracing has anything to do.
func (t TracingConfig) Enabled() bool {
	return strings.TrimSpace(t.Endpoint) != "" || t.Propagate != nil && *t.Propagate
}

// ShouldPropagate defaults to true once an endpoint is configured.
func (t TracingConfig) ShouldPropagate() bool {
	if t.Propagate != nil {
		return *t.Propagate
	}
	return strings.TrimSpace(t.Endpoint) != ""
}

// TotalDuration is the sum of all stage durations.
func (c Config) TotalDuration() time.Duration {
	var total time.Duration
	for _, s := range c.Stages {
		total += s.Duration
	}
	return total
}

type ValidationError struct {
	issues []string
}

// NewValidationError wraps issues found outside Validate, such as threshold
// parse failures.
func NewValidationError(issues ...string) ValidationError {
	return ValidationError{issues: issues}
}

func (e ValidationError) Error() string {
	if len(e.issues) == 0 {
		return "validation failed"
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(e.issues, "; "))
}

func (e ValidationError) Issues() []string {
	return append([]string(nil), e.issues...)
}

// Validate checks the whole configuration and reports every issue at once.
func (c Config) Validate() error {
	var issues []string

	target := strings.TrimSpace(c.TargetURL)
	if target == "" {
		issues = append(issues, "target is required (use --help for usage information)")
	} else if u, err := url.Parse(target); err != nil || u.Scheme == "" || u.Host == "" {
		if !strings.Contains(target, "{{") {
			issues = append(issues, fmt.Sprintf("target %q is not an absolute URL", target))
		}
	}

	issues = append(issues, validateStages(c.Stages)...)

	if c.ThinkTime.Min < 0 || c.ThinkTime.Max < 0 {
		issues = append(issues, "think_time: min and max must be >= 0")
	}
	if c.ThinkTime.Max < c.ThinkTime.Min {
		issues = append(issues, "think_time: max must be >= min")
	}
	if c.TickInterval < MinTickInterval || c.TickInterval > MaxTickInterval {
		issues = append(issues, fmt.Sprintf("tick_interval must be between %s and %s", MinTickInterval, MaxTickInterval))
	}
	if c.GracefulStop < 0 {
		issues = append(issues, "graceful_stop must be >= 0")
	}
	if c.MaxScenarioErrors < 1 {
		issues = append(issues, "max_scenario_errors must be >= 1")
	}
	if c.ThresholdInterval < 0 {
		issues = append(issues, "threshold_interval must be >= 0")
	}
	if c.Timeout < 0 {
		issues = append(issues, "timeout must be >= 0")
	}
	if c.Retries < 0 {
		issues = append(issues, "retries must be >= 0")
	}
	if strings.TrimSpace(c.Body) != "" && strings.TrimSpace(c.BodyFile) != "" {
		issues = append(issues, "body and body_file are mutually exclusive")
	}
	if c.Dashboard && c.JSONOutput {
		issues = append(issues, "dashboard and json_output are mutually exclusive")
	}
	for i, th := range c.Thresholds {
		if strings.TrimSpace(th.Expr) == "" {
			issues = append(issues, fmt.Sprintf("thresholds[%d]: expression is required", i))
		}
	}
	issues = append(issues, validateChecks(c.Checks)...)
	issues = append(issues, validateFeederConfig(c.Feeder)...)
	if export := strings.TrimSpace(c.SummaryExport); export != "" {
		lower := strings.ToLower(export)
		if !strings.HasSuffix(lower, ".json") && !strings.HasSuffix(lower, ".yaml") && !strings.HasSuffix(lower, ".yml") {
			issues = append(issues, "summary_export must end in .json, .yaml or .yml")
		}
	}
	switch strings.ToLower(c.LogFormat) {
	case "", "text", "json":
	default:
		issues = append(issues, fmt.Sprintf("log_format must be 'text' or 'json', got %q", c.LogFormat))
	}

	if len(issues) > 0 {
		return ValidationError{issues: issues}
	}
	return nil
}

func validateStages(stages []Stage) []string {
	if len(stages) == 0 {
		return []string{"stages are required (or set vus and duration)"}
	}
	var issues []string
	var total time.Duration
	for idx, s := range stages {
		if s.Duration < 0 {
			issues = append(issues, fmt.Sprintf("stages[%d]: duration must be >= 0", idx))
		}
		if s.Target < 0 {
			issues = append(issues, fmt.Sprintf("stages[%d]: target must be >= 0", idx))
		}
		total += s.Duration
	}
	if total <= 0 {
		issues = append(issues, "stages: total duration must be > 0")
	}
	return issues
}

func validateChecks(checks []Check) []string {
	var issues []string
	seen := map[string]int{}
	for idx, ch := range checks {
		name := strings.TrimSpace(ch.Name)
		if name == "" {
			issues = append(issues, fmt.Sprintf("checks[%d]: name is required", idx))
		} else if prev, ok := seen[name]; ok {
			issues = append(issues, fmt.Sprintf("checks[%d]: duplicate name also defined at index %d", idx, prev))
		} else {
			seen[name] = idx
		}
		for _, code := range ch.Status {
			if code < 100 || code > 599 {
				issues = append(issues, fmt.Sprintf("checks[%d]: status %d is not a valid HTTP status", idx, code))
			}
		}
		if ch.Equals != "" && strings.TrimSpace(ch.JSONPath) == "" {
			issues = append(issues, fmt.Sprintf("checks[%d]: equals requires jsonpath", idx))
		}
		if len(ch.Status) == 0 && strings.TrimSpace(ch.JSONPath) == "" {
			issues = append(issues, fmt.Sprintf("checks[%d]: status or jsonpath is required", idx))
		}
	}
	return issues
}

func validateFeederConfig(feeder FeederConfig) []string {
	if strings.TrimSpace(feeder.Path) == "" {
		return nil
	}
	if strings.TrimSpace(feeder.Type) == "" {
		return []string{"feeder: type is required when path is specified"}
	}
	if feeder.Type != "csv" && feeder.Type != "json" {
		return []string{fmt.Sprintf("feeder: type must be 'csv' or 'json', got %q", feeder.Type)}
	}
	return nil
}
