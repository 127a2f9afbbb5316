package main

import (
	"sync/atomic"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/torosent/stampede/internal/metrics"
	"github.com/torosent/stampede/internal/scenario"
)

const (
	failureLogRate  = 20 // lines per second
	failureLogBurst = 50
)

// logrusFailureLogger logs failed requests, dropping lines beyond the rate
// limit. The number of dropped lines is reported with the next logged one.
type logrusFailureLogger struct {
	log        logrus.FieldLogger
	limiter    *rate.Limiter
	suppressed atomic.Int64
}

func newFailureLogger(log logrus.FieldLogger) *logrusFailureLogger {
	return &logrusFailureLogger{
		log:     log,
		limiter: rate.NewLimiter(failureLogRate, failureLogBurst),
	}
}

func (l *logrusFailureLogger) LogFailure(vu uint64, req *scenario.Request, outcome metrics.Outcome) {
	if !l.limiter.Allow() {
		l.suppressed.Add(1)
		return
	}
	fields := logrus.Fields{
		"vu":      vu,
		"outcome": outcome.Kind.String(),
		"tag":     outcome.Tag(),
	}
	if req != nil {
		fields["method"] = req.Method
		fields["url"] = req.URL
	}
	if outcome.Status != 0 {
		fields["status"] = outcome.Status
	}
	if n := l.suppressed.Swap(0); n > 0 {
		fields["suppressed"] = n
	}
	entry := l.log.WithFields(fields)
	if outcome.Cause != nil {
		entry = entry.WithError(outcome.Cause)
	}
	entry.Warn("request failed: " + metrics.FriendlyTag(outcome.Tag()))
}
