package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/torosent/stampede/internal/config"
	"github.com/torosent/stampede/internal/dashboard"
	"github.com/torosent/stampede/internal/feeder"
	"github.com/torosent/stampede/internal/httpclient"
	"github.com/torosent/stampede/internal/output"
	"github.com/torosent/stampede/internal/runner"
	"github.com/torosent/stampede/internal/scenario"
	"github.com/torosent/stampede/internal/threshold"
	"github.com/torosent/stampede/internal/tracing"
)

// buildThresholds parses every configured rule and reports all bad rules in
// one ValidationError.
func buildThresholds(cfgs []config.Threshold) ([]threshold.Threshold, error) {
	exprs := make([]string, len(cfgs))
	for i, c := range cfgs {
		exprs[i] = c.Expr
	}
	rules, err := threshold.ParseMultiple(exprs)
	if err != nil {
		var perr threshold.ParseErrors
		if errors.As(err, &perr) {
			return nil, config.NewValidationError(perr...)
		}
		return nil, config.NewValidationError(err.Error())
	}
	for i := range rules {
		rules[i].AbortOnFail = cfgs[i].AbortOnFail
	}
	return rules, nil
}

// buildScenario assembles the request template and its feeder. The returned
// func releases the feeder.
func buildScenario(cfg *config.Config) (scenario.Scenario, func(), error) {
	body, err := scenario.LoadBody(cfg.Body, cfg.BodyFile)
	if err != nil {
		return nil, nil, config.NewValidationError(err.Error())
	}

	opts := []scenario.TemplateOption{
		scenario.WithUUIDGenerator(scenario.NewUUIDGenerator(uint64(cfg.Seed))),
	}
	closeFn := func() {}
	if path := strings.TrimSpace(cfg.Feeder.Path); path != "" {
		f, err := feeder.Open(path, cfg.Feeder.Type)
		if err != nil {
			return nil, nil, config.NewValidationError(fmt.Sprintf("feeder: %v", err))
		}
		opts = append(opts, scenario.WithFeeder(f))
		closeFn = func() { f.Close() }
	}

	tmpl, err := scenario.NewTemplate(scenario.TemplateConfig{
		Name:    requestName(cfg.Method, cfg.TargetURL),
		Method:  cfg.Method,
		URL:     cfg.TargetURL,
		Headers: cfg.Headers,
		Body:    body,
	}, opts...)
	if err != nil {
		closeFn()
		return nil, nil, config.NewValidationError(err.Error())
	}
	return tmpl, closeFn, nil
}

// requestName labels spans and failure logs with the method and the URL
// without its query string.
func requestName(method, target string) string {
	path, _, _ := strings.Cut(target, "?")
	return method + " " + path
}

func buildChecks(cfgs []config.Check) scenario.Checks {
	if len(cfgs) == 0 {
		return nil
	}
	checks := make(scenario.Checks, len(cfgs))
	for i, c := range cfgs {
		checks[i] = scenario.Check{
			Name:     c.Name,
			Status:   c.Status,
			JSONPath: c.JSONPath,
			Equals:   c.Equals,
		}
	}
	return checks
}

func buildSender(cfg *config.Config, checks scenario.Checks, provider *tracing.Provider) runner.Sender {
	clientOpts := []httpclient.ClientOption{httpclient.WithBodyCapture(checks.NeedsBody())}
	if provider.Exporting() || provider.ShouldPropagate() {
		clientOpts = append(clientOpts, httpclient.WithTracing(provider.Tracer(), provider.ShouldPropagate()))
	}

	var sender httpclient.Sender = httpclient.NewClient(cfg.Timeout, clientOpts...)
	if cfg.Retries > 0 {
		sender = httpclient.WithRetry(sender, httpclient.DefaultRetryPolicy(cfg.Retries, uint64(cfg.Seed)))
	}
	return sender
}

func toRunnerStages(stages []config.Stage) []runner.Stage {
	out := make([]runner.Stage, len(stages))
	for i, s := range stages {
		out[i] = runner.Stage{Duration: s.Duration, Target: s.Target}
	}
	return out
}

func toOutputStages(stages []config.Stage) []output.Stage {
	out := make([]output.Stage, len(stages))
	for i, s := range stages {
		out[i] = output.NewStage(s.Duration, s.Target)
	}
	return out
}

func dashboardConfig(cfg *config.Config, schedule *runner.Schedule) dashboard.TestConfig {
	return dashboard.TestConfig{
		TargetURL:  cfg.TargetURL,
		Method:     cfg.Method,
		Stages:     len(cfg.Stages),
		MaxVUs:     schedule.MaxTarget(),
		Duration:   schedule.TotalDuration(),
		ThinkMin:   cfg.ThinkTime.Min,
		ThinkMax:   cfg.ThinkTime.Max,
		Timeout:    cfg.Timeout,
		Retries:    cfg.Retries,
		ConfigFile: cfg.ConfigFile,
	}
}
