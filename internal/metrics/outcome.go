package metrics

import (
	"context"
	"errors"
	"net"
	"strconv"
	"syscall"
)

// OutcomeKind is the classification of one request.
type OutcomeKind int

const (
	OutcomeSuccess OutcomeKind = iota
	OutcomeClientError
	OutcomeServerError
	OutcomeTransportError
	OutcomeCheckFailed
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeClientError:
		return "client_error"
	case OutcomeServerError:
		return "server_error"
	case OutcomeTransportError:
		return "transport_error"
	case OutcomeCheckFailed:
		return "check_failed"
	default:
		return "unknown"
	}
}

// Failure tags that are not derived from a status code.
const (
	TagTransportTimeout = "transport-timeout"
	TagTransportRefused = "transport-refused"
	TagTransportDNS     = "transport-dns"
	TagTransportError   = "transport-error"
	TagScenarioError    = "scenario-error"
)

// Outcome is the classified result of a single request.
type Outcome struct {
	Kind   OutcomeKind
	Status int
	// Cause is set for transport errors.
	Cause error
	// Check names the first failed check for OutcomeCheckFailed.
	Check string
}

// Classify maps a response status or transport error to an Outcome.
// A non-nil err always wins over the status.
func Classify(status int, err error) Outcome {
	if err != nil {
		return Outcome{Kind: OutcomeTransportError, Status: status, Cause: err}
	}
	switch {
	case status >= 200 && status < 400:
		return Outcome{Kind: OutcomeSuccess, Status: status}
	case status >= 400 && status < 500:
		return Outcome{Kind: OutcomeClientError, Status: status}
	default:
		// 5xx, and anything outside the standard ranges.
		return Outcome{Kind: OutcomeServerError, Status: status}
	}
}

// FailCheck downgrades a success to a failed check. Outcomes that already
// failed keep their original classification.
func (o Outcome) FailCheck(name string) Outcome {
	if o.Kind != OutcomeSuccess {
		return o
	}
	o.Kind = OutcomeCheckFailed
	o.Check = name
	return o
}

// Failed reports whether the outcome counts against the failure rate.
func (o Outcome) Failed() bool {
	return o.Kind != OutcomeSuccess
}

// Tag returns the failure tag, or "" for successes.
func (o Outcome) Tag() string {
	switch o.Kind {
	case OutcomeClientError, OutcomeServerError:
		return "status-" + strconv.Itoa(o.Status)
	case OutcomeCheckFailed:
		return "check:" + o.Check
	case OutcomeTransportError:
		return transportTag(o.Cause)
	default:
		return ""
	}
}

func transportTag(err error) string {
	if err == nil {
		return TagTransportError
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return TagTransportTimeout
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		if dnsErr.IsTimeout {
			return TagTransportTimeout
		}
		return TagTransportDNS
	}
	if errors.Is(err, syscall.ECONNREFUSED) {
		return TagTransportRefused
	}
	var timeout interface{ Timeout() bool }
	if errors.As(err, &timeout) && timeout.Timeout() {
		return TagTransportTimeout
	}
	return TagTransportError
}
