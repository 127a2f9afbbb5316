package output

import (
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/torosent/stampede/internal/metrics"
	"github.com/torosent/stampede/internal/threshold"
)

// HTMLReportData is the view model for the HTML report template.
type HTMLReportData struct {
	GeneratedAt      string
	Summary          Summary
	Stats            metrics.Snapshot
	Failures         []metrics.TagCount
	ThresholdSummary *ThresholdSummary
	Latencies        []LatencyStat
	HistoryJSON      string
	HasHistory       bool
}

// LatencyStat is one labelled cell of the latency grid.
type LatencyStat struct {
	Label string
	Value time.Duration
}

func latencyStats(s metrics.Snapshot) []LatencyStat {
	return []LatencyStat{
		{"Min", s.MinLatency},
		{"Max", s.MaxLatency},
		{"Mean", s.MeanLatency},
		{"P50", s.P50Latency},
		{"P90", s.P90Latency},
		{"P95", s.P95Latency},
		{"P99", s.P99Latency},
	}
}

// ThresholdSummary counts passed and failed verdicts.
type ThresholdSummary struct {
	Total    int
	Passed   int
	Failed   int
	Verdicts []threshold.Verdict
}

func summarizeVerdicts(verdicts []threshold.Verdict) *ThresholdSummary {
	if len(verdicts) == 0 {
		return nil
	}
	ts := &ThresholdSummary{Total: len(verdicts), Verdicts: verdicts}
	for _, v := range verdicts {
		if v.Passed {
			ts.Passed++
		} else {
			ts.Failed++
		}
	}
	return ts
}

var reportTemplate = template.Must(template.New("report").Funcs(template.FuncMap{
	"formatDuration": func(d time.Duration) string {
		return d.String()
	},
	"formatFloat": func(f float64) string {
		return fmt.Sprintf("%.2f", f)
	},
	"formatPercent": func(part, total int64) string {
		if total == 0 {
			return "0.0"
		}
		return fmt.Sprintf("%.1f", (float64(part)/float64(total))*100)
	},
	"friendlyTag": metrics.FriendlyTag,
}).Parse(htmlTemplate))

// GenerateHTMLReport writes a standalone HTML report with embedded charts.
func GenerateHTMLReport(w io.Writer, s Summary, history []metrics.DataPoint) error {
	if history == nil {
		history = []metrics.DataPoint{}
	}
	historyJSON, err := json.Marshal(history)
	if err != nil {
		return fmt.Errorf("failed to marshal history: %w", err)
	}

	data := HTMLReportData{
		GeneratedAt:      time.Now().Format(time.RFC3339),
		Summary:          s,
		Stats:            s.Metrics,
		Failures:         metrics.FlattenTags(s.Metrics.FailuresByTag),
		ThresholdSummary: summarizeVerdicts(s.Thresholds),
		Latencies:        latencyStats(s.Metrics),
		HistoryJSON:      string(historyJSON),
		HasHistory:       len(history) > 0,
	}
	if err := reportTemplate.Execute(w, data); err != nil {
		return fmt.Errorf("failed to execute template: %w", err)
	}
	return nil
}

const htmlTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>Stampede Load Test Report</title>
    <style>
        :root { --ink: #1f2937; --muted: #6b7280; --line: #e5e7eb; --soft: #f3f4f6; --ok: #059669; --bad: #dc2626; --warn: #d97706; --accent: #0f766e; }
        * { box-sizing: border-box; margin: 0; padding: 0; }
        body { font: 15px/1.55 system-ui, -apple-system, 'Segoe UI', sans-serif; color: var(--ink); background: var(--soft); padding: 24px; }
        .container { max-width: 1280px; margin: 0 auto; background: #fff; border: 1px solid var(--line); border-radius: 6px; }
        header { padding: 28px 36px; color: #fff; background: var(--accent); border-radius: 6px 6px 0 0; }
        header h1 { font-size: 1.8rem; }
        header .meta { font-size: 0.9rem; opacity: 0.85; }
        .content { padding: 36px; }
        .grid { display: grid; grid-template-columns: repeat(auto-fill, minmax(190px, 1fr)); gap: 16px; margin-bottom: 36px; }
        .card { padding: 16px 18px; border: 1px solid var(--line); border-top: 4px solid var(--accent); border-radius: 4px; }
        .card.success { border-top-color: var(--ok); }
        .card.error { border-top-color: var(--bad); }
        .card.warning { border-top-color: var(--warn); }
        .card h3 { font-size: 0.8rem; font-weight: 600; text-transform: uppercase; color: var(--muted); }
        .card .value { font-size: 1.9rem; font-weight: 700; }
        .card .subvalue { font-size: 0.85rem; color: var(--muted); }
        .section { margin-bottom: 36px; }
        .section h2 { font-size: 1.3rem; margin-bottom: 16px; padding-bottom: 8px; border-bottom: 1px solid var(--line); }
        .panel { margin-bottom: 24px; padding: 16px; border: 1px solid var(--line); border-radius: 4px; }
        .panel h3 { font-size: 1rem; color: var(--muted); margin-bottom: 12px; }
        .chart { width: 100%; height: 280px; }
        table { width: 100%; border-collapse: collapse; }
        th, td { padding: 10px 12px; text-align: left; border-bottom: 1px solid var(--line); }
        th { font-size: 0.8rem; text-transform: uppercase; color: var(--muted); background: var(--soft); }
        .badge { padding: 2px 10px; border-radius: 10px; font-size: 0.8rem; font-weight: 600; }
        .badge-success { color: var(--ok); background: #d1fae5; }
        .badge-error { color: var(--bad); background: #fee2e2; }
        .stats { display: grid; grid-template-columns: repeat(auto-fit, minmax(130px, 1fr)); gap: 12px; }
        .stat { padding: 12px; text-align: center; background: var(--soft); border-radius: 4px; }
        .stat .label { font-size: 0.8rem; color: var(--muted); }
        .stat .value { font-size: 1.2rem; font-weight: 700; }
        .no-data { padding: 32px; text-align: center; color: var(--muted); font-style: italic; }
    </style>
    <script src="https://cdn.jsdelivr.net/npm/uplot@1.6.24/dist/uPlot.iife.min.js"></script>
    <link rel="stylesheet" href="https://cdn.jsdelivr.net/npm/uplot@1.6.24/dist/uPlot.min.css">
</head>
<body>
    <div class="container">
        <header>
            <h1>Stampede Load Test Report</h1>
            {{if .Summary.Target}}
            <div class="meta" style="margin-top: 5px;">Target: {{.Summary.Target}}</div>
            {{end}}
            {{if .Summary.RunID}}<div class="meta">Run: {{.Summary.RunID}}</div>{{end}}
            <div class="meta">Generated: {{.GeneratedAt}} | Duration: {{formatDuration .Stats.Duration}}</div>
        </header>
        
        <div class="content">
            <!-- Summary Cards -->
            <div class="grid">
                <div class="card">
                    <h3>Total Requests</h3>
                    <div class="value">{{.Stats.Total}}</div>
                </div>
                <div class="card success">
                    <h3>Successful</h3>
                    <div class="value">{{.Stats.Successes}}</div>
                    <div class="subvalue">{{formatPercent .Stats.Successes .Stats.Total}}%</div>
                </div>
                <div class="card error">
                    <h3>Failed</h3>
                    <div class="value">{{.Stats.Failures}}</div>
                    <div class="subvalue">{{formatPercent .Stats.Failures .Stats.Total}}%</div>
                </div>
                <div class="card">
                    <h3>Requests/sec</h3>
                    <div class="value">{{formatFloat .Stats.RequestsPerSec}}</div>
                </div>
                <div class="card">
                    <h3>Iterations</h3>
                    <div class="value">{{.Stats.Iterations}}</div>
                    <div class="subvalue">{{formatFloat .Stats.IterationsPerSec}}/s</div>
                </div>
                <div class="card">
                    <h3>Peak VUs</h3>
                    <div class="value">{{.Stats.VUsMax}}</div>
                </div>
                {{if or .Stats.ChecksPassed .Stats.ChecksFailed}}
                <div class="card {{if .Stats.ChecksFailed}}warning{{else}}success{{end}}">
                    <h3>Checks</h3>
                    <div class="value">{{.Stats.ChecksPassed}} / {{.Stats.ChecksFailed}}</div>
                    <div class="subvalue">passed / failed</div>
                </div>
                {{end}}
            </div>
            {{if .Summary.AbortedBy}}
            <div class="card error" style="margin-bottom: 40px;">
                <h3>Aborted</h3>
                <div class="subvalue">Threshold {{.Summary.AbortedBy}} failed during the run</div>
            </div>
            {{end}}

            <!-- Charts Section -->
            {{if .HasHistory}}
            <div class="section">
                <h2>Performance Over Time</h2>

                <div class="panel">
                    <h3>Virtual Users</h3>
                    <div id="vus-chart" class="chart"></div>
                </div>

                <div class="panel">
                    <h3>Requests Per Second</h3>
                    <div id="rps-chart" class="chart"></div>
                </div>
                
                <div class="panel">
                    <h3>Latency Percentiles (ms)</h3>
                    <div id="latency-chart" class="chart"></div>
                </div>
            </div>
            {{end}}

            <!-- Latency Statistics -->
            <div class="section">
                <h2>Latency Statistics</h2>
                <div class="stats">
                    {{range .Latencies}}
                    <div class="stat">
                        <div class="label">{{.Label}}</div>
                        <div class="value">{{formatDuration .Value}}</div>
                    </div>
                    {{end}}
                </div>
            </div>

            <!-- Thresholds -->
            {{if .ThresholdSummary}}
            <div class="section">
                <h2>Thresholds ({{.ThresholdSummary.Passed}}/{{.ThresholdSummary.Total}} Passed)</h2>
                <table>
                    <thead>
                        <tr>
                            <th>Threshold</th>
                            <th>Metric</th>
                            <th>Limit</th>
                            <th>Observed</th>
                            <th>Status</th>
                        </tr>
                    </thead>
                    <tbody>
                        {{range .ThresholdSummary.Verdicts}}
                        <tr>
                            <td>{{.Name}}{{if .AbortOnFail}} <em>(abort on fail)</em>{{end}}</td>
                            <td>{{.Metric}} ({{.Aggregate}})</td>
                            <td>{{.Operator}} {{formatFloat .Limit}}</td>
                            <td>{{formatFloat .Observed}}</td>
                            <td>
                                {{if .Passed}}
                                <span class="badge badge-success">✓ PASS</span>
                                {{else}}
                                <span class="badge badge-error">✗ FAIL</span>
                                {{end}}
                            </td>
                        </tr>
                        {{end}}
                    </tbody>
                </table>
            </div>
            {{end}}

            <!-- Failures -->
            {{if .Failures}}
            <div class="section">
                <h2>Failures</h2>
                <table>
                    <thead>
                        <tr>
                            <th>Reason</th>
                            <th>Tag</th>
                            <th>Count</th>
                        </tr>
                    </thead>
                    <tbody>
                        {{range .Failures}}
                        <tr>
                            <td>{{friendlyTag .Tag}}</td>
                            <td><code>{{.Tag}}</code></td>
                            <td>{{.Count}} ({{formatPercent .Count $.Stats.Total}}%)</td>
                        </tr>
                        {{end}}
                    </tbody>
                </table>
            </div>
            {{end}}

            <!-- Stages -->
            {{if .Summary.Stages}}
            <div class="section">
                <h2>Stages</h2>
                <table>
                    <thead>
                        <tr>
                            <th>#</th>
                            <th>Duration</th>
                            <th>Target VUs</th>
                        </tr>
                    </thead>
                    <tbody>
                        {{range $i, $st := .Summary.Stages}}
                        <tr>
                            <td>{{$i}}</td>
                            <td>{{$st.Duration}}</td>
                            <td>{{$st.Target}}</td>
                        </tr>
                        {{end}}
                    </tbody>
                </table>
            </div>
            {{end}}
        </div>
    </div>

    {{if .HasHistory}}
    <script>
        const points = JSON.parse({{.HistoryJSON}});
        const xs = points.map(p => p.elapsed_sec);
        const col = key => points.map(p => p[key]);

        function plot(id, title, yLabel, series, columns) {
            const el = document.getElementById(id);
            new uPlot({
                title: title,
                width: el.offsetWidth,
                height: 280,
                scales: { x: { time: false } },
                series: [{ label: "Elapsed (s)" }].concat(series),
                axes: [{ label: "Elapsed (s)" }, { label: yLabel }]
            }, [xs].concat(columns), el);
        }

        if (points.length > 0) {
            plot("vus-chart", "Active VUs vs Target", "VUs", [
                { label: "VUs", stroke: "#0f766e", fill: "rgba(15,118,110,0.12)", width: 2 },
                { label: "Target", stroke: "#6b7280", dash: [6, 4], width: 2 }
            ], [col("vus"), col("target_vus")]);
            plot("rps-chart", "Requests Per Second", "req/s", [
                { label: "RPS", stroke: "#1d4ed8", fill: "rgba(29,78,216,0.1)", width: 2 }
            ], [col("current_rps")]);
            plot("latency-chart", "Latency Percentiles", "ms", [
                { label: "P50", stroke: "#059669", width: 2 },
                { label: "P95", stroke: "#d97706", width: 2 },
                { label: "P99", stroke: "#dc2626", width: 2 }
            ], [col("p50_latency_ms"), col("p95_latency_ms"), col("p99_latency_ms")]);
        }
    </script>
    {{end}}
</body>
</html>
`
