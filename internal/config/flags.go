package config

import (
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// RegisterFlags registers all CLI flags to a cobra command.
func RegisterFlags(cmd *cobra.Command) {
	configureFlags(cmd.Flags())
}

func newFlagCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "stampede",
		Short:         "Staged virtual-user HTTP load generator",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	cmd.SetOut(os.Stdout)
	configureFlags(cmd.Flags())
	return cmd
}

func configureFlags(flags *pflag.FlagSet) {
	// Scenario
	flags.String("target", "", "Target URL to load test (supports {{placeholders}})")
	flags.String("method", "GET", "HTTP method to use")
	flags.StringSlice("header", nil, "Additional request header in key=value form")
	flags.String("body", "", "Inline request body payload")
	flags.String("body-file", "", "Path to file containing the request body")
	flags.String("feeder-path", "", "Path to CSV or JSON file with per-iteration data")
	flags.String("feeder-type", "", "Type of feeder file: 'csv' or 'json'")

	// Schedule
	flags.StringArray("stage", nil, "Schedule stage as duration:target (repeatable, e.g. 30s:2000)")
	flags.Int("vus", 0, "Constant number of VUs (with --duration, instead of --stage)")
	flags.DurationP("duration", "d", 0, "How long to hold --vus")
	flags.String("think-time", "", "Pause between iterations, fixed (1s) or a range (500ms-1.5s)")
	flags.Duration("tick-interval", DefaultTickInterval, "Scheduler reconciliation interval (10ms to 1s)")
	flags.Duration("graceful-stop", DefaultGracefulStop, "Upper bound for in-flight iterations to finish at the end of the run (0 waits for all)")
	flags.Int("max-scenario-errors", DefaultMaxScenarioErrors, "Consecutive scenario failures before a VU is stopped")
	flags.Int64("seed", 0, "Seed for think-time and test data randomness (0 uses the clock)")

	// Transport
	flags.Duration("timeout", DefaultTimeout, "Per-request timeout")
	flags.Int("retries", 0, "Number of retries per request")

	// Thresholds
	flags.StringArray("threshold", nil, "Pass/fail threshold (repeatable, e.g. 'http_req_duration:p95 < 500')")
	flags.Duration("threshold-interval", 0, "Evaluate thresholds periodically during the run (0 = only at the end)")

	// Output
	flags.Bool("json-output", false, "Emit JSON formatted output")
	flags.Bool("dashboard", false, "Show live terminal dashboard")
	flags.Bool("log-errors", false, "Log each failed request")
	flags.String("html-output", "", "Write an HTML report to this path")
	flags.String("summary-export", "", "Write the end-of-run summary to a .json or .yaml file")
	flags.String("log-level", "info", "Log level (debug, info, warn, error)")
	flags.String("log-format", "text", "Log format: 'text' or 'json'")
	flags.String("history-file", "", "bbolt file where finished runs are recorded")
	flags.Bool("history-list", false, "List recorded runs from --history-file and exit")
	flags.String("config", "", "Path to configuration file (JSON or YAML)")

	// Tracing
	flags.String("tracing-endpoint", "", "OTLP collector endpoint (host:port)")
	flags.String("tracing-protocol", "grpc", "OTLP protocol: 'grpc' or 'http'")
	flags.Bool("tracing-insecure", false, "Disable TLS for the OTLP exporter")
}

func displayHelp(cmd *cobra.Command) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Usage: %s\n\nFlags:\n", cmd.UseLine())
	fs := cmd.Flags()
	fs.SetOutput(out)
	fs.PrintDefaults()
}

// applyFlagOverrides lets explicitly set flags win over config file values.
func applyFlagOverrides(cfg *Config, fs *pflag.FlagSet) error {
	var err error
	str := func(name string, dst *string) {
		if err != nil || !fs.Changed(name) {
			return
		}
		var v string
		if v, err = fs.GetString(name); err == nil {
			*dst = strings.TrimSpace(v)
		}
	}
	integer := func(name string, dst *int) {
		if err != nil || !fs.Changed(name) {
			return
		}
		*dst, err = fs.GetInt(name)
	}
	dur := func(name string, dst *time.Duration) {
		if err != nil || !fs.Changed(name) {
			return
		}
		*dst, err = fs.GetDuration(name)
	}
	boolean := func(name string, dst *bool) {
		if err != nil || !fs.Changed(name) {
			return
		}
		*dst, err = fs.GetBool(name)
	}

	str("target", &cfg.TargetURL)
	str("method", &cfg.Method)
	if fs.Changed("body") {
		if cfg.Body, err = fs.GetString("body"); err != nil {
			return err
		}
		cfg.BodyFile = ""
	}
	if fs.Changed("body-file") {
		str("body-file", &cfg.BodyFile)
		cfg.Body = ""
	}
	str("feeder-path", &cfg.Feeder.Path)
	str("feeder-type", &cfg.Feeder.Type)
	integer("vus", &cfg.VUs)
	dur("duration", &cfg.Duration)
	dur("tick-interval", &cfg.TickInterval)
	dur("graceful-stop", &cfg.GracefulStop)
	integer("max-scenario-errors", &cfg.MaxScenarioErrors)
	dur("timeout", &cfg.Timeout)
	integer("retries", &cfg.Retries)
	dur("threshold-interval", &cfg.ThresholdInterval)
	boolean("json-output", &cfg.JSONOutput)
	boolean("dashboard", &cfg.Dashboard)
	boolean("log-errors", &cfg.LogErrors)
	str("html-output", &cfg.HTMLOutput)
	str("summary-export", &cfg.SummaryExport)
	str("log-level", &cfg.LogLevel)
	str("log-format", &cfg.LogFormat)
	str("history-file", &cfg.HistoryFile)
	boolean("history-list", &cfg.HistoryList)
	str("tracing-endpoint", &cfg.Tracing.Endpoint)
	str("tracing-protocol", &cfg.Tracing.Protocol)
	boolean("tracing-insecure", &cfg.Tracing.Insecure)
	if err != nil {
		return err
	}

	if fs.Changed("seed") {
		if cfg.Seed, err = fs.GetInt64("seed"); err != nil {
			return err
		}
	}

	if fs.Changed("stage") {
		vals, err := fs.GetStringArray("stage")
		if err != nil {
			return err
		}
		stages := make([]Stage, 0, len(vals))
		for _, v := range vals {
			stage, err := ParseStageFlag(v)
			if err != nil {
				return err
			}
			stages = append(stages, stage)
		}
		cfg.Stages = stages
	}

	if fs.Changed("think-time") {
		raw, err := fs.GetString("think-time")
		if err != nil {
			return err
		}
		if cfg.ThinkTime, err = ParseThinkTimeFlag(raw); err != nil {
			return err
		}
	}

	if fs.Changed("threshold") {
		vals, err := fs.GetStringArray("threshold")
		if err != nil {
			return err
		}
		cfg.Thresholds = thresholdsFromStrings(vals)
	}

	vals, err := fs.GetStringSlice("header")
	if err != nil {
		return err
	}
	if len(vals) > 0 {
		if cfg.Headers == nil {
			cfg.Headers = map[string]string{}
		}
		for _, entry := range vals {
			key, value, ok := strings.Cut(entry, "=")
			if !ok {
				return fmt.Errorf("header must be in key=value format: %s", entry)
			}
			key = http.CanonicalHeaderKey(strings.TrimSpace(key))
			if key == "" {
				return fmt.Errorf("header key cannot be empty")
			}
			cfg.Headers[key] = strings.TrimSpace(value)
		}
	}
	return nil
}
