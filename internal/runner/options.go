package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/torosent/stampede/internal/httpclient"
	"github.com/torosent/stampede/internal/logging"
	"github.com/torosent/stampede/internal/metrics"
	"github.com/torosent/stampede/internal/scenario"
)

const (
	DefaultTickInterval      = 100 * time.Millisecond
	DefaultMaxScenarioErrors = 10
)

// Sender issues one request. It must be safe for concurrent use.
type Sender interface {
	Send(ctx context.Context, req *scenario.Request) (*httpclient.Response, error)
}

// FailureLogger receives every failed request outcome.
type FailureLogger interface {
	LogFailure(vu uint64, req *scenario.Request, outcome metrics.Outcome)
}

// Options configure the Runner.
type Options struct {
	Stages       []Stage
	TickInterval time.Duration // reconciliation period
	// GracefulStop bounds how long stopping VUs may take to finish their
	// in-flight iteration once the schedule is over. Zero waits for every
	// iteration to finish.
	GracefulStop time.Duration
	ThinkTime    ThinkTime
	// MaxScenarioErrors stops a VU after this many consecutive scenario
	// failures. Negative disables the cap.
	MaxScenarioErrors int
	Seed              uint64

	Scenario  scenario.Scenario
	Sender    Sender
	Checks    scenario.Checks
	Collector *metrics.Collector

	Logger        logrus.FieldLogger
	FailureLogger FailureLogger // optional
}

func (o *Options) normalize() {
	if o.TickInterval <= 0 {
		o.TickInterval = DefaultTickInterval
	}
	if o.MaxScenarioErrors == 0 {
		o.MaxScenarioErrors = DefaultMaxScenarioErrors
	}
	if o.Seed == 0 {
		o.Seed = uint64(time.Now().UnixNano())
	}
	if o.Logger == nil {
		o.Logger = logging.Discard()
	}
}

func (o *Options) validate() error {
	var errs []error
	if o.Scenario == nil {
		errs = append(errs, errors.New("scenario is required"))
	}
	if o.Sender == nil {
		errs = append(errs, errors.New("sender is required"))
	}
	if o.Collector == nil {
		errs = append(errs, errors.New("collector is required"))
	}
	if err := o.ThinkTime.validate(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return fmt.Errorf("runner options: %w", errors.Join(errs...))
	}
	return nil
}
