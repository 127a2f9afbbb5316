package output

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/torosent/stampede/internal/metrics"
	"github.com/torosent/stampede/internal/threshold"
)

// Summary is everything reported about a finished run.
type Summary struct {
	RunID        string              `json:"run_id,omitempty" yaml:"run_id,omitempty"`
	Target       string              `json:"target" yaml:"target"`
	Stages       []Stage             `json:"stages" yaml:"stages"`
	Metrics      metrics.Snapshot    `json:"metrics" yaml:"metrics"`
	Thresholds   []threshold.Verdict `json:"thresholds,omitempty" yaml:"thresholds,omitempty"`
	Passed       bool                `json:"passed" yaml:"passed"`
	AbortedBy    string              `json:"aborted_by,omitempty" yaml:"aborted_by,omitempty"`
	Cancelled    bool                `json:"cancelled,omitempty" yaml:"cancelled,omitempty"`
	WorkerErrors int64               `json:"worker_errors" yaml:"worker_errors"`
}

// Stage echoes one configured stage.
type Stage struct {
	Duration string `json:"duration" yaml:"duration"`
	Target   int    `json:"target" yaml:"target"`
}

// NewStage formats a stage for reports.
func NewStage(d time.Duration, target int) Stage {
	return Stage{Duration: d.String(), Target: target}
}

// PrintReport outputs a human-readable summary report.
func PrintReport(w io.Writer, s Summary) {
	stats := s.Metrics
	fmt.Fprintln(w, "\n--- Load Test Results ---")
	if s.Target != "" {
		fmt.Fprintf(w, "Target:            %s\n", s.Target)
	}
	fmt.Fprintf(w, "Total Requests:    %d\n", stats.Total)
	fmt.Fprintf(w, "Successful:        %d\n", stats.Successes)
	fmt.Fprintf(w, "Failed:            %d (%.2f%%)\n", stats.Failures, stats.ErrorRate*100)
	fmt.Fprintf(w, "Duration:          %s\n", stats.Duration.Round(time.Millisecond))
	fmt.Fprintf(w, "Requests/sec:      %.2f\n", stats.RequestsPerSec)
	fmt.Fprintf(w, "Iterations:        %d (%.2f/s)\n", stats.Iterations, stats.IterationsPerSec)
	fmt.Fprintf(w, "VUs:               max %d\n", stats.VUsMax)
	if stats.Interrupted > 0 {
		fmt.Fprintf(w, "Interrupted:       %d\n", stats.Interrupted)
	}
	if stats.ScenarioErrors > 0 {
		fmt.Fprintf(w, "Scenario Errors:   %d\n", stats.ScenarioErrors)
	}
	if s.WorkerErrors > 0 {
		fmt.Fprintf(w, "Worker Errors:     %d\n", s.WorkerErrors)
	}
	if checks := stats.ChecksPassed + stats.ChecksFailed; checks > 0 {
		fmt.Fprintf(w, "Checks:            %.2f%% (%d passed, %d failed)\n", stats.ChecksRate*100, stats.ChecksPassed, stats.ChecksFailed)
	}

	fmt.Fprintln(w, "\nLatency:")
	fmt.Fprintf(w, "  Min:             %s\n", stats.MinLatency)
	fmt.Fprintf(w, "  Max:             %s\n", stats.MaxLatency)
	fmt.Fprintf(w, "  Mean:            %s\n", stats.MeanLatency)
	fmt.Fprintf(w, "  P50:             %s\n", stats.P50Latency)
	fmt.Fprintf(w, "  P90:             %s\n", stats.P90Latency)
	fmt.Fprintf(w, "  P95:             %s\n", stats.P95Latency)
	fmt.Fprintf(w, "  P99:             %s\n", stats.P99Latency)

	if rows := metrics.FlattenTags(stats.FailuresByTag); len(rows) > 0 {
		fmt.Fprintln(w, "\nFailures:")
		for _, row := range rows {
			fmt.Fprintf(w, "  %-28s %d\n", metrics.FriendlyTag(row.Tag)+":", row.Count)
		}
	}

	if len(s.Thresholds) > 0 {
		passed := 0
		for _, v := range s.Thresholds {
			if v.Passed {
				passed++
			}
		}
		fmt.Fprintf(w, "\nThresholds (%d/%d passed):\n", passed, len(s.Thresholds))
		for _, v := range s.Thresholds {
			fmt.Fprintf(w, "  %s\n", v.Message)
		}
	}
	if s.AbortedBy != "" {
		fmt.Fprintf(w, "\nRun aborted: threshold %s failed\n", s.AbortedBy)
	}
}

// PrintJSONReport outputs a JSON-formatted report.
func PrintJSONReport(w io.Writer, s Summary) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(s)
}
