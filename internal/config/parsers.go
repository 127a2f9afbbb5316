package config

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cast"
)

// lookupSetting returns the first candidate key present in settings, also
// trying the lowercase form since viper lowercases keys.
func lookupSetting(settings map[string]any, candidates ...string) (any, bool) {
	for _, key := range candidates {
		if val, ok := settings[key]; ok {
			return val, true
		}
		if val, ok := settings[strings.ToLower(key)]; ok {
			return val, true
		}
	}
	return nil, false
}

// trimmedString reports the trimmed form of value when it is a string.
func trimmedString(value any) (string, bool) {
	s, ok := value.(string)
	return strings.TrimSpace(s), ok
}

func asString(value any) (string, error) {
	if value == nil {
		return "", nil
	}
	return cast.ToStringE(value)
}

// asInt treats a blank string as zero.
func asInt(value any) (int, error) {
	if s, ok := trimmedString(value); ok {
		if s == "" {
			return 0, nil
		}
		return strconv.Atoi(s)
	}
	if value == nil {
		return 0, nil
	}
	return cast.ToIntE(value)
}

func asInt64(value any) (int64, error) {
	if s, ok := trimmedString(value); ok {
		if s == "" {
			return 0, nil
		}
		return strconv.ParseInt(s, 10, 64)
	}
	if value == nil {
		return 0, nil
	}
	return cast.ToInt64E(value)
}

func asFloat64(value any) (float64, error) {
	if s, ok := trimmedString(value); ok {
		if s == "" {
			return 0, nil
		}
		return strconv.ParseFloat(s, 64)
	}
	if value == nil {
		return 0, nil
	}
	return cast.ToFloat64E(value)
}

func asBool(value any) (bool, error) {
	if s, ok := trimmedString(value); ok {
		if s == "" {
			return false, nil
		}
		return strconv.ParseBool(s)
	}
	if value == nil {
		return false, nil
	}
	return cast.ToBoolE(value)
}

// asDuration accepts Go duration strings; bare numbers are seconds.
func asDuration(value any) (time.Duration, error) {
	switch v := value.(type) {
	case nil:
		return 0, nil
	case time.Duration:
		return v, nil
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return 0, nil
		}
		if secs, err := strconv.ParseFloat(s, 64); err == nil {
			return time.Duration(secs * float64(time.Second)), nil
		}
		return time.ParseDuration(s)
	}
	secs, err := cast.ToFloat64E(value)
	if err != nil {
		return 0, fmt.Errorf("duration: %w", err)
	}
	return time.Duration(secs * float64(time.Second)), nil
}

// asStringMap keeps key case; header names are sent as written.
func asStringMap(value any) (map[string]string, error) {
	if value == nil {
		return nil, nil
	}
	m, err := cast.ToStringMapStringE(value)
	if err != nil {
		return nil, err
	}
	for k := range m {
		if strings.TrimSpace(k) == "" {
			return nil, errors.New("header key cannot be empty")
		}
	}
	return m, nil
}

func asIntSlice(value any) ([]int, error) {
	switch value.(type) {
	case nil:
		return nil, nil
	case []int, []any:
		return cast.ToIntSliceE(value)
	}
	n, err := asInt(value)
	if err != nil {
		return nil, err
	}
	return []int{n}, nil
}

func toInterfaceSlice(value any) ([]any, error) {
	if value == nil {
		return nil, nil
	}
	items, err := cast.ToSliceE(value)
	if err != nil {
		return nil, fmt.Errorf("expected list, got %T", value)
	}
	return items, nil
}

// toStringKeyMap normalizes keys to lowercase for lookupSetting.
func toStringKeyMap(value any) (map[string]any, error) {
	m, err := cast.ToStringMapE(value)
	if err != nil {
		return nil, fmt.Errorf("expected map, got %T", value)
	}
	result := make(map[string]any, len(m))
	for k, v := range m {
		result[strings.ToLower(strings.TrimSpace(k))] = v
	}
	return result, nil
}

func parseStages(value any) ([]Stage, error) {
	items, err := toInterfaceSlice(value)
	if err != nil {
		return nil, err
	}
	stages := make([]Stage, 0, len(items))
	for idx, item := range items {
		if s, ok := item.(string); ok {
			stage, err := ParseStageFlag(s)
			if err != nil {
				return nil, fmt.Errorf("index %d: %w", idx, err)
			}
			stages = append(stages, stage)
			continue
		}
		entry, err := toStringKeyMap(item)
		if err != nil {
			return nil, fmt.Errorf("index %d: %w", idx, err)
		}
		var stage Stage
		if raw, ok := lookupSetting(entry, "duration"); ok {
			if stage.Duration, err = asDuration(raw); err != nil {
				return nil, fmt.Errorf("index %d duration: %w", idx, err)
			}
		}
		if raw, ok := lookupSetting(entry, "target", "vus"); ok {
			if stage.Target, err = asInt(raw); err != nil {
				return nil, fmt.Errorf("index %d target: %w", idx, err)
			}
		}
		stages = append(stages, stage)
	}
	return stages, nil
}

// ParseStageFlag parses "duration:target", e.g. "30s:2000".
func ParseStageFlag(raw string) (Stage, error) {
	durPart, targetPart, ok := strings.Cut(strings.TrimSpace(raw), ":")
	if !ok {
		return Stage{}, fmt.Errorf("stage %q must be in duration:target form", raw)
	}
	dur, err := time.ParseDuration(strings.TrimSpace(durPart))
	if err != nil {
		return Stage{}, fmt.Errorf("stage %q: %w", raw, err)
	}
	target, err := strconv.Atoi(strings.TrimSpace(targetPart))
	if err != nil {
		return Stage{}, fmt.Errorf("stage %q: target: %w", raw, err)
	}
	return Stage{Duration: dur, Target: target}, nil
}

// ParseThinkTimeFlag parses "500ms-1.5s" or a single fixed duration.
func ParseThinkTimeFlag(raw string) (ThinkTime, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ThinkTime{}, nil
	}
	minPart, maxPart, ranged := strings.Cut(raw, "-")
	minDur, err := asDuration(minPart)
	if err != nil {
		return ThinkTime{}, fmt.Errorf("think time %q: %w", raw, err)
	}
	if !ranged {
		return ThinkTime{Min: minDur, Max: minDur}, nil
	}
	maxDur, err := asDuration(maxPart)
	if err != nil {
		return ThinkTime{}, fmt.Errorf("think time %q: %w", raw, err)
	}
	return ThinkTime{Min: minDur, Max: maxDur}, nil
}

func parseThinkTime(value any) (ThinkTime, error) {
	if s, ok := value.(string); ok {
		return ParseThinkTimeFlag(s)
	}
	entry, err := toStringKeyMap(value)
	if err != nil {
		return ThinkTime{}, err
	}
	var tt ThinkTime
	if raw, ok := lookupSetting(entry, "min"); ok {
		if tt.Min, err = asDuration(raw); err != nil {
			return ThinkTime{}, fmt.Errorf("min: %w", err)
		}
	}
	if raw, ok := lookupSetting(entry, "max"); ok {
		if tt.Max, err = asDuration(raw); err != nil {
			return ThinkTime{}, fmt.Errorf("max: %w", err)
		}
	} else {
		tt.Max = tt.Min
	}
	return tt, nil
}

// parseThresholds accepts a list of expressions or structured rules, or a
// map of metric name to a list of "aggregate op limit" expressions.
func parseThresholds(value any) ([]Threshold, error) {
	var items []any
	switch v := value.(type) {
	case nil:
		return nil, nil
	case string:
		return thresholdsFromStrings([]string{v}), nil
	case []string:
		return thresholdsFromStrings(v), nil
	case []any:
		items = v
	default:
		return parseThresholdMap(value)
	}
	out := make([]Threshold, 0, len(items))
	for idx, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, Threshold{Expr: strings.TrimSpace(s)})
			continue
		}
		entry, err := toStringKeyMap(item)
		if err != nil {
			return nil, fmt.Errorf("index %d: %w", idx, err)
		}
		th, err := buildThreshold(entry, "")
		if err != nil {
			return nil, fmt.Errorf("index %d: %w", idx, err)
		}
		out = append(out, th)
	}
	return out, nil
}

func thresholdsFromStrings(strs []string) []Threshold {
	out := make([]Threshold, 0, len(strs))
	for _, s := range strs {
		out = append(out, Threshold{Expr: strings.TrimSpace(s)})
	}
	return out
}

func parseThresholdMap(value any) ([]Threshold, error) {
	entries, err := toStringKeyMap(value)
	if err != nil {
		return nil, err
	}
	metricNames := make([]string, 0, len(entries))
	for name := range entries {
		metricNames = append(metricNames, name)
	}
	sort.Strings(metricNames)

	var out []Threshold
	for _, metric := range metricNames {
		raw := entries[metric]
		list, err := toInterfaceSlice(raw)
		if err != nil {
			if s, ok := raw.(string); ok {
				list = []any{s}
			} else {
				return nil, fmt.Errorf("%s: %w", metric, err)
			}
		}
		for idx, item := range list {
			if s, ok := item.(string); ok {
				out = append(out, Threshold{Expr: metric + ":" + strings.TrimSpace(s)})
				continue
			}
			entry, err := toStringKeyMap(item)
			if err != nil {
				return nil, fmt.Errorf("%s[%d]: %w", metric, idx, err)
			}
			th, err := buildThreshold(entry, metric)
			if err != nil {
				return nil, fmt.Errorf("%s[%d]: %w", metric, idx, err)
			}
			out = append(out, th)
		}
	}
	return out, nil
}

// buildThreshold handles {threshold, abort_on_fail} and
// {metric, [aggregate], comparator, limit, abort_on_fail}.
func buildThreshold(entry map[string]any, metric string) (Threshold, error) {
	var th Threshold
	if raw, ok := lookupSetting(entry, "abort_on_fail", "abortonfail"); ok {
		val, err := asBool(raw)
		if err != nil {
			return Threshold{}, fmt.Errorf("abort_on_fail: %w", err)
		}
		th.AbortOnFail = val
	}
	if raw, ok := lookupSetting(entry, "threshold", "expr"); ok {
		expr, _ := asString(raw)
		expr = strings.TrimSpace(expr)
		if metric != "" {
			expr = metric + ":" + expr
		}
		th.Expr = expr
		return th, nil
	}

	if raw, ok := lookupSetting(entry, "metric"); ok {
		metric, _ = asString(raw)
	}
	aggregate := ""
	if raw, ok := lookupSetting(entry, "aggregate", "stat"); ok {
		aggregate, _ = asString(raw)
	}
	comparator := ""
	if raw, ok := lookupSetting(entry, "comparator", "operator"); ok {
		comparator, _ = asString(raw)
	}
	limit := ""
	if raw, ok := lookupSetting(entry, "limit", "value"); ok {
		limit, _ = asString(raw)
	}
	metric, aggregate = strings.TrimSpace(metric), strings.TrimSpace(aggregate)
	comparator, limit = strings.TrimSpace(comparator), strings.TrimSpace(limit)
	if metric == "" || comparator == "" || limit == "" {
		return Threshold{}, fmt.Errorf("metric, comparator and limit are required")
	}
	// Without an aggregate the metric must be a shorthand such as p95_latency.
	if aggregate != "" {
		metric += ":" + aggregate
	}
	th.Expr = fmt.Sprintf("%s %s %s", metric, comparator, limit)
	return th, nil
}

func parseChecks(value any) ([]Check, error) {
	items, err := toInterfaceSlice(value)
	if err != nil {
		return nil, err
	}
	checks := make([]Check, 0, len(items))
	for idx, item := range items {
		entry, err := toStringKeyMap(item)
		if err != nil {
			return nil, fmt.Errorf("index %d: %w", idx, err)
		}
		var ch Check
		if raw, ok := lookupSetting(entry, "name"); ok {
			ch.Name, _ = asString(raw)
			ch.Name = strings.TrimSpace(ch.Name)
		}
		if raw, ok := lookupSetting(entry, "status"); ok {
			if ch.Status, err = asIntSlice(raw); err != nil {
				return nil, fmt.Errorf("index %d status: %w", idx, err)
			}
		}
		if raw, ok := lookupSetting(entry, "jsonpath", "json_path"); ok {
			ch.JSONPath, _ = asString(raw)
			ch.JSONPath = strings.TrimSpace(ch.JSONPath)
		}
		if raw, ok := lookupSetting(entry, "equals"); ok {
			ch.Equals, _ = asString(raw)
		}
		checks = append(checks, ch)
	}
	return checks, nil
}

func parseFeeder(value any) (FeederConfig, error) {
	if value == nil {
		return FeederConfig{}, nil
	}
	entry, err := toStringKeyMap(value)
	if err != nil {
		return FeederConfig{}, err
	}
	var feeder FeederConfig
	if raw, ok := lookupSetting(entry, "path"); ok {
		val, _ := asString(raw)
		feeder.Path = strings.TrimSpace(val)
	}
	if raw, ok := lookupSetting(entry, "type"); ok {
		val, _ := asString(raw)
		feeder.Type = strings.ToLower(strings.TrimSpace(val))
	}
	return feeder, nil
}

func parseTracing(value any) (TracingConfig, error) {
	if value == nil {
		return TracingConfig{}, nil
	}
	entry, err := toStringKeyMap(value)
	if err != nil {
		return TracingConfig{}, err
	}
	var tc TracingConfig
	if raw, ok := lookupSetting(entry, "endpoint"); ok {
		val, _ := asString(raw)
		tc.Endpoint = strings.TrimSpace(val)
	}
	if raw, ok := lookupSetting(entry, "protocol"); ok {
		val, _ := asString(raw)
		tc.Protocol = strings.ToLower(strings.TrimSpace(val))
	}
	if raw, ok := lookupSetting(entry, "service_name", "servicename"); ok {
		val, _ := asString(raw)
		tc.ServiceName = strings.TrimSpace(val)
	}
	if raw, ok := lookupSetting(entry, "sample_rate", "samplerate"); ok {
		if tc.SampleRate, err = asFloat64(raw); err != nil {
			return TracingConfig{}, fmt.Errorf("sample_rate: %w", err)
		}
	} else {
		tc.SampleRate = 1.0
	}
	if raw, ok := lookupSetting(entry, "insecure"); ok {
		if tc.Insecure, err = asBool(raw); err != nil {
			return TracingConfig{}, fmt.Errorf("insecure: %w", err)
		}
	}
	if raw, ok := lookupSetting(entry, "propagate"); ok {
		val, err := asBool(raw)
		if err != nil {
			return TracingConfig{}, fmt.Errorf("propagate: %w", err)
		}
		tc.Propagate = &val
	}
	return tc, nil
}
