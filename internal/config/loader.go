package config

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Loader handles loading configuration from files and command-line arguments.
type Loader struct{}

// ErrHelpRequested is returned when the user requests help via --help flag.
var ErrHelpRequested = errors.New("help requested")

func NewLoader() *Loader {
	return &Loader{}
}

// Defaults returns a Config with every default applied and nothing else set.
func Defaults() *Config {
	return &Config{
		Method:            http.MethodGet,
		Headers:           map[string]string{},
		Timeout:           DefaultTimeout,
		TickInterval:      DefaultTickInterval,
		GracefulStop:      DefaultGracefulStop,
		MaxScenarioErrors: DefaultMaxScenarioErrors,
		Tracing:           TracingConfig{SampleRate: 1.0},
		LogLevel:          "info",
		LogFormat:         "text",
	}
}

// Load parses command-line arguments and an optional config file. Flags
// override file values.
func (Loader) Load(args []string) (*Config, error) {
	cmd := newFlagCommand()
	if err := cmd.Flags().Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			displayHelp(cmd)
			return nil, ErrHelpRequested
		}
		return nil, err
	}

	flagSet := cmd.Flags()
	if helpFlag := flagSet.Lookup("help"); helpFlag != nil {
		if wantsHelp, err := strconv.ParseBool(helpFlag.Value.String()); err == nil && wantsHelp {
			displayHelp(cmd)
			return nil, ErrHelpRequested
		}
	}

	configPath := flagSet.Lookup("config").Value.String()
	if len(args) == 0 && configPath == "" {
		displayHelp(cmd)
		return nil, ErrHelpRequested
	}

	cfgViper := viper.New()
	if configPath != "" {
		cfgViper.SetConfigFile(configPath)
		if err := cfgViper.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", configPath, err)
		}
	}

	cfg := Defaults()
	cfg.ConfigFile = configPath

	if err := applyConfigSettings(cfg, cfgViper.AllSettings()); err != nil {
		return nil, err
	}
	if err := applyFlagOverrides(cfg, flagSet); err != nil {
		return nil, err
	}
	cfg.normalize()
	return cfg, nil
}

func (c *Config) normalize() {
	c.Method = strings.ToUpper(strings.TrimSpace(c.Method))
	if c.Method == "" {
		c.Method = http.MethodGet
	}
	c.TargetURL = strings.TrimSpace(c.TargetURL)
	c.BodyFile = strings.TrimSpace(c.BodyFile)
	c.LogFormat = strings.ToLower(strings.TrimSpace(c.LogFormat))
	if c.Headers == nil {
		c.Headers = map[string]string{}
	}
	// vus+duration is a jump to vus followed by a hold.
	if len(c.Stages) == 0 && c.VUs > 0 && c.Duration > 0 {
		c.Stages = []Stage{
			{Duration: 0, Target: c.VUs},
			{Duration: c.Duration, Target: c.VUs},
		}
	}
}

// applyConfigSettings copies recognised keys from viper's settings map.
func applyConfigSettings(cfg *Config, settings map[string]any) error {
	if len(settings) == 0 {
		return nil
	}

	stringField := func(dst *string, keys ...string) error {
		raw, ok := lookupSetting(settings, keys...)
		if !ok {
			return nil
		}
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("%s: %w", keys[0], err)
		}
		*dst = strings.TrimSpace(val)
		return nil
	}

	var errs []error
	errs = append(errs,
		stringField(&cfg.TargetURL, "target"),
		stringField(&cfg.Method, "method"),
		stringField(&cfg.BodyFile, "body_file", "bodyfile", "body-file"),
		stringField(&cfg.HTMLOutput, "html_output", "htmloutput", "html-output"),
		stringField(&cfg.SummaryExport, "summary_export", "summaryexport", "summary-export"),
		stringField(&cfg.HistoryFile, "history_file", "historyfile", "history-file"),
		stringField(&cfg.LogLevel, "log_level", "loglevel", "log-level"),
		stringField(&cfg.LogFormat, "log_format", "logformat", "log-format"),
	)
	if err := errors.Join(errs...); err != nil {
		return err
	}

	// The body is sent verbatim, so it is not trimmed.
	if raw, ok := lookupSetting(settings, "body"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("body: %w", err)
		}
		cfg.Body = val
	}

	if raw, ok := lookupSetting(settings, "headers"); ok {
		hdrs, err := asStringMap(raw)
		if err != nil {
			return fmt.Errorf("headers: %w", err)
		}
		for k, v := range hdrs {
			cfg.Headers[http.CanonicalHeaderKey(k)] = v
		}
	}

	if raw, ok := lookupSetting(settings, "stages"); ok {
		stages, err := parseStages(raw)
		if err != nil {
			return fmt.Errorf("stages: %w", err)
		}
		cfg.Stages = stages
	}

	intFields := []struct {
		dst  *int
		keys []string
	}{
		{&cfg.VUs, []string{"vus"}},
		{&cfg.Retries, []string{"retries"}},
		{&cfg.MaxScenarioErrors, []string{"max_scenario_errors", "maxscenarioerrors", "max-scenario-errors"}},
	}
	for _, f := range intFields {
		if raw, ok := lookupSetting(settings, f.keys...); ok {
			val, err := asInt(raw)
			if err != nil {
				return fmt.Errorf("%s: %w", f.keys[0], err)
			}
			*f.dst = val
		}
	}

	durationFields := []struct {
		dst  *time.Duration
		keys []string
	}{
		{&cfg.Duration, []string{"duration"}},
		{&cfg.Timeout, []string{"timeout"}},
		{&cfg.TickInterval, []string{"tick_interval", "tickinterval", "tick-interval"}},
		{&cfg.GracefulStop, []string{"graceful_stop", "gracefulstop", "graceful-stop"}},
		{&cfg.ThresholdInterval, []string{"threshold_interval", "thresholdinterval", "threshold-interval"}},
	}
	for _, f := range durationFields {
		if raw, ok := lookupSetting(settings, f.keys...); ok {
			val, err := asDuration(raw)
			if err != nil {
				return fmt.Errorf("%s: %w", f.keys[0], err)
			}
			*f.dst = val
		}
	}

	boolFields := []struct {
		dst  *bool
		keys []string
	}{
		{&cfg.JSONOutput, []string{"json_output", "jsonoutput", "json-output"}},
		{&cfg.Dashboard, []string{"dashboard"}},
		{&cfg.LogErrors, []string{"log_errors", "logerrors", "log-errors"}},
	}
	for _, f := range boolFields {
		if raw, ok := lookupSetting(settings, f.keys...); ok {
			val, err := asBool(raw)
			if err != nil {
				return fmt.Errorf("%s: %w", f.keys[0], err)
			}
			*f.dst = val
		}
	}

	if raw, ok := lookupSetting(settings, "seed"); ok {
		val, err := asInt64(raw)
		if err != nil {
			return fmt.Errorf("seed: %w", err)
		}
		cfg.Seed = val
	}

	if raw, ok := lookupSetting(settings, "think_time", "thinktime", "think-time"); ok {
		tt, err := parseThinkTime(raw)
		if err != nil {
			return fmt.Errorf("think_time: %w", err)
		}
		cfg.ThinkTime = tt
	}

	if raw, ok := lookupSetting(settings, "thresholds"); ok {
		thresholds, err := parseThresholds(raw)
		if err != nil {
			return fmt.Errorf("thresholds: %w", err)
		}
		cfg.Thresholds = thresholds
	}

	if raw, ok := lookupSetting(settings, "checks"); ok {
		checks, err := parseChecks(raw)
		if err != nil {
			return fmt.Errorf("checks: %w", err)
		}
		cfg.Checks = checks
	}

	if raw, ok := lookupSetting(settings, "feeder"); ok {
		feeder, err := parseFeeder(raw)
		if err != nil {
			return fmt.Errorf("feeder: %w", err)
		}
		cfg.Feeder = feeder
	}

	if raw, ok := lookupSetting(settings, "tracing"); ok {
		tracing, err := parseTracing(raw)
		if err != nil {
			return fmt.Errorf("tracing: %w", err)
		}
		cfg.Tracing = tracing
	}

	return nil
}
