package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"

	"github.com/torosent/stampede/internal/config"
	"github.com/torosent/stampede/internal/dashboard"
	"github.com/torosent/stampede/internal/history"
	"github.com/torosent/stampede/internal/logging"
	"github.com/torosent/stampede/internal/metrics"
	"github.com/torosent/stampede/internal/output"
	"github.com/torosent/stampede/internal/runner"
	"github.com/torosent/stampede/internal/threshold"
	"github.com/torosent/stampede/internal/tracing"
)

// Process exit codes. An abort-on-fail threshold exits with
// exitThresholdsFailed; exitInterrupted is a run stopped from outside.
const (
	exitOK               = 0
	exitFatal            = 1
	exitThresholdsFailed = 99
	exitInterrupted      = 105
)

const (
	progressInterval = time.Second
	captureInterval  = time.Second
	shutdownTimeout  = 5 * time.Second
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	cancel()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	code, err := execute(ctx, args, stdout, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
	}
	return code
}

func execute(ctx context.Context, args []string, stdout, stderr io.Writer) (int, error) {
	cfg, err := config.NewLoader().Load(args)
	if err != nil {
		if errors.Is(err, config.ErrHelpRequested) {
			return exitOK, nil
		}
		return exitFatal, err
	}
	if cfg.HistoryList {
		return listHistory(cfg.HistoryFile, stdout)
	}
	if err := cfg.Validate(); err != nil {
		return exitFatal, err
	}

	logOut := stderr
	if cfg.Dashboard {
		// termui owns the terminal.
		logOut = io.Discard
	}
	log, err := logging.New(cfg.LogLevel, cfg.LogFormat, logOut)
	if err != nil {
		return exitFatal, err
	}

	rules, err := buildThresholds(cfg.Thresholds)
	if err != nil {
		return exitFatal, err
	}
	eval := threshold.NewEvaluator(rules)

	runID := history.NewID(time.Now())
	provider, err := tracing.Init(ctx, cfg.Tracing,
		attribute.String("stampede.run_id", runID),
		attribute.String("stampede.target", cfg.TargetURL),
	)
	if err != nil {
		return exitFatal, fmt.Errorf("tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := provider.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Warn("tracing shutdown failed")
		}
	}()

	scn, closeScenario, err := buildScenario(cfg)
	if err != nil {
		return exitFatal, err
	}
	defer closeScenario()

	checks := buildChecks(cfg.Checks)
	collector := metrics.NewCollector()

	opts := runner.Options{
		Stages:            toRunnerStages(cfg.Stages),
		TickInterval:      cfg.TickInterval,
		GracefulStop:      cfg.GracefulStop,
		ThinkTime:         runner.ThinkTime{Min: cfg.ThinkTime.Min, Max: cfg.ThinkTime.Max},
		MaxScenarioErrors: cfg.MaxScenarioErrors,
		Seed:              uint64(cfg.Seed),
		Scenario:          scn,
		Sender:            buildSender(cfg, checks, provider),
		Checks:            checks,
		Collector:         collector,
		Logger:            log,
	}
	if cfg.LogErrors {
		opts.FailureLogger = newFailureLogger(log)
	}

	r, err := runner.New(opts)
	if err != nil {
		return exitFatal, config.NewValidationError(err.Error())
	}

	log.WithFields(logrus.Fields{
		"run_id":   runID,
		"target":   cfg.TargetURL,
		"stages":   len(cfg.Stages),
		"max_vus":  r.Schedule().MaxTarget(),
		"duration": r.Schedule().TotalDuration(),
	}).Info("starting run")

	runCtx, abort := context.WithCancelCause(ctx)
	defer abort(nil)

	var watcher *threshold.Watcher
	if len(rules) > 0 && (cfg.ThresholdInterval > 0 || eval.HasAbortRules()) {
		watcher = threshold.NewWatcher(eval, func() metrics.Snapshot {
			return collector.Snapshot(collector.Elapsed())
		}, cfg.ThresholdInterval, log)
		go watcher.Run(runCtx, abort)
	}

	stopLive, err := startLiveOutput(cfg, collector, r.Schedule(), stdout, func() { abort(context.Canceled) })
	if err != nil {
		return exitFatal, err
	}

	captureDone := make(chan struct{})
	var captureWG sync.WaitGroup
	captureWG.Add(1)
	go func() {
		defer captureWG.Done()
		captureHistory(collector, captureInterval, captureDone)
	}()

	result := r.Run(runCtx)

	close(captureDone)
	captureWG.Wait()
	collector.Capture()
	abort(nil)
	stopLive()

	snap := collector.Snapshot(result.Duration)
	verdicts := eval.Evaluate(snap)
	summary := output.Summary{
		RunID:        runID,
		Target:       cfg.TargetURL,
		Stages:       toOutputStages(cfg.Stages),
		Metrics:      snap,
		Thresholds:   verdicts,
		Passed:       threshold.AllPassed(verdicts),
		Cancelled:    result.Cancelled,
		WorkerErrors: result.WorkerErrors,
	}
	if watcher != nil {
		if v, ok := watcher.Aborted(); ok {
			summary.AbortedBy = v.Name
			summary.Passed = false
		}
	}

	log.WithFields(logrus.Fields{
		"duration":      result.Duration.Round(time.Millisecond),
		"requests":      snap.Total,
		"failures":      snap.Failures,
		"peak_vus":      result.PeakVUs,
		"hard_stopped":  result.HardStopped,
		"worker_errors": result.WorkerErrors,
	}).Info("run finished")

	if err := writeReports(cfg, summary, collector.History(), stdout); err != nil {
		return exitFatal, err
	}
	if cfg.HistoryFile != "" {
		if err := recordRun(cfg.HistoryFile, summary, time.Now().Add(-result.Duration)); err != nil {
			log.WithError(err).Warn("could not record run history")
		}
	}

	switch {
	case summary.AbortedBy != "":
		return exitThresholdsFailed, fmt.Errorf("run aborted: threshold %q failed", summary.AbortedBy)
	case result.Cancelled:
		return exitInterrupted, errors.New("run interrupted before the schedule finished")
	case !summary.Passed:
		return exitThresholdsFailed, errors.New("one or more thresholds failed")
	}
	return exitOK, nil
}

// startLiveOutput shows the dashboard or the progress line and returns a
// function that tears it down.
func startLiveOutput(cfg *config.Config, collector *metrics.Collector, schedule *runner.Schedule, stdout io.Writer, shutdown func()) (func(), error) {
	switch {
	case cfg.Dashboard:
		dash, err := dashboard.New(collector, dashboardConfig(cfg, schedule), shutdown)
		if err != nil {
			return nil, err
		}
		dash.Start()
		return dash.Stop, nil
	case !cfg.JSONOutput:
		progress := output.NewProgressReporter(collector, progressInterval, schedule.TotalDuration(), stdout)
		progress.Start()
		return func() {
			progress.Stop()
			fmt.Fprintln(stdout)
		}, nil
	default:
		return func() {}, nil
	}
}

func captureHistory(collector *metrics.Collector, interval time.Duration, done <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			collector.Capture()
		}
	}
}

func writeReports(cfg *config.Config, summary output.Summary, points []metrics.DataPoint, stdout io.Writer) error {
	if cfg.JSONOutput {
		if err := output.PrintJSONReport(stdout, summary); err != nil {
			return err
		}
	} else {
		output.PrintReport(stdout, summary)
	}

	if cfg.HTMLOutput != "" {
		f, err := os.Create(cfg.HTMLOutput)
		if err != nil {
			return fmt.Errorf("html report: %w", err)
		}
		if err := output.GenerateHTMLReport(f, summary, points); err != nil {
			f.Close()
			return fmt.Errorf("html report: %w", err)
		}
		if err := f.Close(); err != nil {
			return fmt.Errorf("html report: %w", err)
		}
		if !cfg.JSONOutput {
			fmt.Fprintf(stdout, "\nHTML report written to %s\n", cfg.HTMLOutput)
		}
	}

	if cfg.SummaryExport != "" {
		if err := output.WriteSummary(cfg.SummaryExport, summary); err != nil {
			return err
		}
	}
	return nil
}
