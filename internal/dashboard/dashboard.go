package dashboard

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	ui "github.com/gizak/termui/v3"
	"github.com/gizak/termui/v3/widgets"

	"github.com/torosent/stampede/internal/metrics"
)

const (
	historySize     = 100
	refreshInterval = 500 * time.Millisecond
)

// TestConfig holds load test configuration parameters for display.
type TestConfig struct {
	TargetURL  string        // Full target URL
	Method     string        // HTTP method
	Stages     int           // Number of stages in the schedule
	MaxVUs     int           // Highest stage target
	Duration   time.Duration // Sum of stage durations
	ThinkMin   time.Duration
	ThinkMax   time.Duration
	Timeout    time.Duration // Request timeout
	Retries    int           // Number of retries
	ConfigFile string        // Path to config file if used
}

// Dashboard renders a live terminal UI for load test metrics.
type Dashboard struct {
	collector    *metrics.Collector
	ctx          context.Context
	cancel       context.CancelFunc
	shutdownFunc func()
	wg           sync.WaitGroup
	mu           sync.Mutex

	// Widgets
	grid           *ui.Grid
	latencySparkle *widgets.SparklineGroup
	latencyPara    *widgets.Paragraph
	rpsSparkle     *widgets.SparklineGroup
	vuGauge        *widgets.Gauge
	failureList    *widgets.List
	summaryPara    *widgets.Paragraph
	metricsPara    *widgets.Paragraph
	latencyHistory []float64
	rpsHistory     []float64
	lastTotal      int64
	lastUpdate     time.Duration
	testConfig     TestConfig
}

// New creates a new Dashboard. shutdownFunc is called when the user presses
// q or Ctrl+C.
func New(collector *metrics.Collector, cfg TestConfig, shutdownFunc func()) (*Dashboard, error) {
	if err := ui.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize termui: %w", err)
	}

	d := newDashboard(collector, cfg, shutdownFunc)
	d.setupGrid()
	return d, nil
}

func newDashboard(collector *metrics.Collector, cfg TestConfig, shutdownFunc func()) *Dashboard {
	ctx, cancel := context.WithCancel(context.Background())
	d := &Dashboard{
		collector:      collector,
		ctx:            ctx,
		cancel:         cancel,
		shutdownFunc:   shutdownFunc,
		latencyHistory: make([]float64, 0, historySize),
		rpsHistory:     make([]float64, 0, historySize),
		testConfig:     cfg,
	}
	d.initWidgets()
	return d
}

func sparkGroup(title, line string, color ui.Color) *widgets.SparklineGroup {
	sl := widgets.NewSparkline()
	sl.Title = line
	sl.LineColor = color
	sl.Data = []float64{0}
	g := widgets.NewSparklineGroup(sl)
	g.Title = title
	return g
}

func paragraph(title, text string) *widgets.Paragraph {
	p := widgets.NewParagraph()
	p.Title = title
	p.Text = text
	return p
}

func (d *Dashboard) initWidgets() {
	d.latencySparkle = sparkGroup("Latency", "P95 (ms)", ui.ColorGreen)
	d.rpsSparkle = sparkGroup("Throughput", "req/s", ui.ColorBlue)
	d.latencyPara = paragraph("Latency Stats", "Waiting for first request...")
	d.summaryPara = paragraph("Run", "Initializing...")
	d.metricsPara = paragraph("Counters", "Waiting for data...")

	d.vuGauge = widgets.NewGauge()
	d.vuGauge.Title = "Virtual Users"
	d.vuGauge.BarColor = ui.ColorMagenta
	d.vuGauge.LabelStyle = ui.NewStyle(ui.ColorWhite)

	d.failureList = widgets.NewList()
	d.failureList.Title = "Failures"
	d.failureList.Rows = formatFailureRows(nil, 0)
	d.failureList.TextStyle = ui.NewStyle(ui.ColorYellow)

	border := ui.NewStyle(ui.ColorCyan)
	for _, b := range []*ui.Block{
		&d.latencySparkle.Block, &d.rpsSparkle.Block, &d.latencyPara.Block,
		&d.summaryPara.Block, &d.metricsPara.Block, &d.vuGauge.Block, &d.failureList.Block,
	} {
		b.BorderStyle = border
	}
}

// setupGrid lays out four rows: run header, VUs and counters, latency,
// throughput and failures.
func (d *Dashboard) setupGrid() {
	w, h := ui.TerminalDimensions()
	d.grid = ui.NewGrid()
	d.grid.SetRect(0, 0, w, h)
	d.grid.Set(
		ui.NewRow(0.14, ui.NewCol(1.0, d.summaryPara)),
		ui.NewRow(0.22, ui.NewCol(0.5, d.vuGauge), ui.NewCol(0.5, d.metricsPara)),
		ui.NewRow(0.24, ui.NewCol(0.65, d.latencySparkle), ui.NewCol(0.35, d.latencyPara)),
		ui.NewRow(0.40, ui.NewCol(0.5, d.rpsSparkle), ui.NewCol(0.5, d.failureList)),
	)
}

// Start begins the dashboard refresh loop.
func (d *Dashboard) Start() {
	d.wg.Add(1)
	go d.run()
}

// Stop ends the refresh loop and restores the terminal.
func (d *Dashboard) Stop() {
	d.cancel()
	d.wg.Wait()
	ui.Close()
}

func (d *Dashboard) run() {
	defer d.wg.Done()

	refresh := time.NewTicker(refreshInterval)
	defer refresh.Stop()
	events := ui.PollEvents()

	d.render()
	for {
		select {
		case <-d.ctx.Done():
			return
		case <-refresh.C:
			elapsed := d.collector.Elapsed()
			d.update(d.collector.Snapshot(elapsed), elapsed)
			d.render()
		case e := <-events:
			d.handleEvent(e)
		}
	}
}

func (d *Dashboard) handleEvent(e ui.Event) {
	switch e.ID {
	case "q", "<C-c>":
		// The run drains and then calls Stop.
		if d.shutdownFunc != nil {
			d.shutdownFunc()
		}
	case "<Resize>":
		if size, ok := e.Payload.(ui.Resize); ok {
			d.mu.Lock()
			d.grid.SetRect(0, 0, size.Width, size.Height)
			d.mu.Unlock()
			ui.Clear()
			d.render()
		}
	}
}

func (d *Dashboard) render() {
	d.mu.Lock()
	defer d.mu.Unlock()
	ui.Render(d.grid)
}

// update refreshes all widget data from a snapshot.
func (d *Dashboard) update(snap metrics.Snapshot, elapsed time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()

	rps := 0.0
	if window := (elapsed - d.lastUpdate).Seconds(); window > 0 {
		rps = float64(snap.Total-d.lastTotal) / window
	}
	d.lastTotal, d.lastUpdate = snap.Total, elapsed

	d.rpsHistory = pushSample(d.rpsHistory, rps)
	d.rpsSparkle.Sparklines[0].Data = d.rpsHistory
	d.rpsSparkle.Title = fmt.Sprintf("Throughput | Current: %.1f req/s | Average: %.1f req/s", rps, snap.RequestsPerSec)

	if snap.Total > 0 {
		d.latencyHistory = pushSample(d.latencyHistory, snap.P95LatencyMs)
		d.latencySparkle.Sparklines[0].Data = d.latencyHistory
		d.latencySparkle.Title = fmt.Sprintf(
			"Latency | P95: %.2fms | Min: %.2fms | Max: %.2fms",
			snap.P95LatencyMs, snap.MinLatencyMs, snap.MaxLatencyMs,
		)
	}

	d.vuGauge.Percent = vuPercent(snap.VUs, snap.TargetVUs, d.testConfig.MaxVUs)
	d.vuGauge.Label = fmt.Sprintf("%d / %d VUs (peak %d)", snap.VUs, snap.TargetVUs, snap.VUsMax)

	successRate := 0.0
	if snap.Total > 0 {
		successRate = float64(snap.Successes) / float64(snap.Total) * 100
	}

	d.summaryPara.Text = fmt.Sprintf(
		"Target: %s\n%s\nElapsed: %s | Requests: %d | Iterations: %d | Success Rate: %.1f%%",
		d.testConfig.TargetURL,
		d.testConfig.params(),
		elapsed.Round(time.Second),
		snap.Total,
		snap.Iterations,
		successRate,
	)

	d.metricsPara.Text = fmt.Sprintf(
		"Total Requests:    %d\nSuccessful:        %d\nFailed:            %d\nScenario Errors:   %d\nIterations/s:      %.2f\nChecks:            %d passed / %d failed",
		snap.Total,
		snap.Successes,
		snap.Failures,
		snap.ScenarioErrors,
		snap.IterationsPerSec,
		snap.ChecksPassed,
		snap.ChecksFailed,
	)

	d.latencyPara.Text = fmt.Sprintf(
		"Min:  %.2fms\nMean: %.2fms\nP50:  %.2fms\nP95:  %.2fms\nP99:  %.2fms",
		snap.MinLatencyMs,
		snap.MeanLatencyMs,
		snap.P50LatencyMs,
		snap.P95LatencyMs,
		snap.P99LatencyMs,
	)

	d.failureList.Rows = formatFailureRows(snap.FailuresByTag, 10)
}

func pushSample(history []float64, v float64) []float64 {
	history = append(history, v)
	if len(history) > historySize {
		history = history[len(history)-historySize:]
	}
	return history
}

// vuPercent scales live VUs against the schedule peak, falling back to the
// current target when the peak is unknown.
func vuPercent(live, target, peak int) int {
	scale := peak
	if scale <= 0 {
		scale = target
	}
	if scale <= 0 {
		return 0
	}
	pct := live * 100 / scale
	return min(max(pct, 0), 100)
}

func formatFailureRows(tags map[string]int64, limit int) []string {
	rows := metrics.FlattenTags(tags)
	if len(rows) == 0 {
		return []string{"[No failures](fg:green)"}
	}
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	formatted := make([]string, 0, len(rows))
	for _, row := range rows {
		formatted = append(formatted, fmt.Sprintf("[%s](fg:red) %d", metrics.FriendlyTag(row.Tag), row.Count))
	}
	return formatted
}

// params formats the test configuration parameters for display.
func (c TestConfig) params() string {
	var parts []string

	if c.Method != "" && c.Method != "GET" {
		parts = append(parts, fmt.Sprintf("Method: %s", c.Method))
	}
	if c.Stages > 0 {
		parts = append(parts, fmt.Sprintf("Stages: %d", c.Stages))
	}
	if c.MaxVUs > 0 {
		parts = append(parts, fmt.Sprintf("Max VUs: %d", c.MaxVUs))
	}
	if c.Duration > 0 {
		parts = append(parts, fmt.Sprintf("Duration: %s", c.Duration))
	}
	switch {
	case c.ThinkMax > 0 && c.ThinkMin != c.ThinkMax:
		parts = append(parts, fmt.Sprintf("Think: %s-%s", c.ThinkMin, c.ThinkMax))
	case c.ThinkMax > 0:
		parts = append(parts, fmt.Sprintf("Think: %s", c.ThinkMax))
	}
	if c.Timeout > 0 {
		parts = append(parts, fmt.Sprintf("Timeout: %s", c.Timeout))
	}
	if c.Retries > 0 {
		parts = append(parts, fmt.Sprintf("Retries: %d", c.Retries))
	}
	if c.ConfigFile != "" {
		parts = append(parts, fmt.Sprintf("Config: %s", c.ConfigFile))
	}

	return strings.Join(parts, " | ")
}
