package scenario

import (
	"slices"
	"strings"

	"github.com/tidwall/gjson"
)

// Check is a named assertion on a successful response. A check with Status
// set requires one of those codes; a check with JSONPath requires the path to
// exist in the body and, when Equals is set, to render as Equals.
type Check struct {
	Name     string
	Status   []int
	JSONPath string
	Equals   string
}

// Checks evaluates a set of checks in order.
type Checks []Check

// CheckResult summarises one response.
type CheckResult struct {
	Passed int
	Failed int
	// FirstFailed names the first failing check, if any.
	FirstFailed string
}

// Evaluate runs every check against the response. All checks run even after
// one fails, so pass/fail counts stay comparable between iterations.
func (c Checks) Evaluate(status int, body []byte) CheckResult {
	var res CheckResult
	for _, ch := range c {
		if ch.passes(status, body) {
			res.Passed++
			continue
		}
		res.Failed++
		if res.FirstFailed == "" {
			res.FirstFailed = ch.Name
		}
	}
	return res
}

// NeedsBody reports whether any check inspects the response body.
func (c Checks) NeedsBody() bool {
	return slices.ContainsFunc(c, func(ch Check) bool { return ch.JSONPath != "" })
}

func (ch Check) passes(status int, body []byte) bool {
	if len(ch.Status) > 0 && !slices.Contains(ch.Status, status) {
		return false
	}
	if ch.JSONPath == "" {
		return true
	}
	result := gjson.GetBytes(body, normalizePath(ch.JSONPath))
	if !result.Exists() {
		return false
	}
	return ch.Equals == "" || result.String() == ch.Equals
}

// normalizePath accepts "$.a.b" as well as gjson's native "a.b".
func normalizePath(path string) string {
	switch {
	case path == "$":
		return "@this"
	case strings.HasPrefix(path, "$."):
		return path[2:]
	default:
		return path
	}
}
