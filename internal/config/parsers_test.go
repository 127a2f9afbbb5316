package config

import (
	"testing"
	"time"
)

func TestAsDuration(t *testing.T) {
	tests := []struct {
		input any
		want  time.Duration
	}{
		{"30s", 30 * time.Second},
		{"1.5s", 1500 * time.Millisecond},
		{"2", 2 * time.Second},
		{5, 5 * time.Second},
		{0.5, 500 * time.Millisecond},
		{nil, 0},
	}
	for _, tt := range tests {
		got, err := asDuration(tt.input)
		if err != nil {
			t.Errorf("asDuration(%v) error = %v", tt.input, err)
		}
		if got != tt.want {
			t.Errorf("asDuration(%v) = %s, want %s", tt.input, got, tt.want)
		}
	}
}

func TestParseStageFlag(t *testing.T) {
	got, err := ParseStageFlag("30s:2000")
	if err != nil {
		t.Fatalf("ParseStageFlag() error = %v", err)
	}
	if got != (Stage{Duration: 30 * time.Second, Target: 2000}) {
		t.Fatalf("got %+v", got)
	}
	for _, bad := range []string{"30s", "abc:10", "30s:many"} {
		if _, err := ParseStageFlag(bad); err == nil {
			t.Errorf("ParseStageFlag(%q) expected error", bad)
		}
	}
}

func TestParseThinkTimeFlag(t *testing.T) {
	tests := []struct {
		in   string
		want ThinkTime
	}{
		{"", ThinkTime{}},
		{"1s", ThinkTime{Min: time.Second, Max: time.Second}},
		{"500ms-1.5s", ThinkTime{Min: 500 * time.Millisecond, Max: 1500 * time.Millisecond}},
	}
	for _, tt := range tests {
		got, err := ParseThinkTimeFlag(tt.in)
		if err != nil {
			t.Fatalf("ParseThinkTimeFlag(%q) error = %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("ParseThinkTimeFlag(%q) = %+v, want %+v", tt.in, got, tt.want)
		}
	}
}

func TestParseThresholdForms(t *testing.T) {
	tests := []struct {
		name  string
		input any
		want  []Threshold
	}{
		{
			name:  "string list",
			input: []any{"http_req_duration:p95 < 500"},
			want:  []Threshold{{Expr: "http_req_duration:p95 < 500"}},
		},
		{
			name: "structured rule",
			input: []any{map[string]any{
				"metric": "http_req_duration", "aggregate": "p99", "comparator": "<=", "limit": "1s", "abort_on_fail": true,
			}},
			want: []Threshold{{Expr: "http_req_duration:p99 <= 1s", AbortOnFail: true}},
		},
		{
			name: "structured shorthand metric",
			input: []any{map[string]any{
				"metric": "p95_latency", "comparator": "<", "limit": "500ms",
			}},
			want: []Threshold{{Expr: "p95_latency < 500ms"}},
		},
		{
			name: "metric map",
			input: map[string]any{
				"http_reqs":         "count > 10",
				"http_req_duration": []any{"p(95)<500", map[string]any{"threshold": "avg<200", "abortOnFail": true}},
			},
			want: []Threshold{
				{Expr: "http_req_duration:p(95)<500"},
				{Expr: "http_req_duration:avg<200", AbortOnFail: true},
				{Expr: "http_reqs:count > 10"},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseThresholds(tt.input)
			if err != nil {
				t.Fatalf("parseThresholds() error = %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %+v, want %+v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("[%d] = %+v, want %+v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestParseThresholdIncomplete(t *testing.T) {
	_, err := parseThresholds([]any{map[string]any{"metric": "http_reqs"}})
	if err == nil {
		t.Fatal("expected error for incomplete structured threshold")
	}
}

func TestTracingDefaults(t *testing.T) {
	tc, err := parseTracing(map[string]any{"endpoint": "collector:4317"})
	if err != nil {
		t.Fatalf("parseTracing() error = %v", err)
	}
	if tc.SampleRate != 1.0 {
		t.Errorf("SampleRate = %v, want 1.0", tc.SampleRate)
	}
	if !tc.Enabled() || !tc.ShouldPropagate() {
		t.Errorf("expected enabled tracing with propagation")
	}

	off := false
	tc.Propagate = &off
	if tc.ShouldPropagate() {
		t.Errorf("explicit propagate=false ignored")
	}
}
