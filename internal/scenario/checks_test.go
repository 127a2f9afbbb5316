package scenario_test

import (
	"testing"

	"github.com/torosent/stampede/internal/scenario"
)

func TestChecksEvaluate(t *testing.T) {
	checks := scenario.Checks{
		{Name: "accepted", Status: []int{200, 202}},
		{Name: "has id", JSONPath: "$.id"},
		{Name: "state", JSONPath: "payment.state", Equals: "queued"},
	}
	body := []byte(`{"id":"abc","payment":{"state":"queued"}}`)

	tests := []struct {
		name        string
		status      int
		body        []byte
		passed      int
		failed      int
		firstFailed string
	}{
		{name: "all pass", status: 202, body: body, passed: 3},
		{name: "wrong status", status: 201, body: body, passed: 2, failed: 1, firstFailed: "accepted"},
		{name: "missing fields", status: 200, body: []byte(`{}`), passed: 1, failed: 2, firstFailed: "has id"},
		{name: "wrong value", status: 200, body: []byte(`{"id":"x","payment":{"state":"done"}}`), passed: 2, failed: 1, firstFailed: "state"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := checks.Evaluate(tt.status, tt.body)
			if res.Passed != tt.passed || res.Failed != tt.failed || res.FirstFailed != tt.firstFailed {
				t.Fatalf("Evaluate() = %+v, want passed=%d failed=%d first=%q", res, tt.passed, tt.failed, tt.firstFailed)
			}
		})
	}
}

func TestChecksNeedsBody(t *testing.T) {
	if (scenario.Checks{{Name: "s", Status: []int{200}}}).NeedsBody() {
		t.Fatal("status-only checks do not need the body")
	}
	if !(scenario.Checks{{Name: "j", JSONPath: "id"}}).NeedsBody() {
		t.Fatal("jsonpath checks need the body")
	}
	var none scenario.Checks
	if res := none.Evaluate(500, nil); res.Passed != 0 || res.Failed != 0 {
		t.Fatalf("empty checks should be a no-op, got %+v", res)
	}
}
