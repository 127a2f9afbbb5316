package httpclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/torosent/stampede/internal/scenario"
	"github.com/torosent/stampede/internal/tracing"
)

// MaxBodyBytes caps how much of a response body is kept for checks.
const MaxBodyBytes = 1 << 20

// Response is a completed HTTP exchange.
type Response struct {
	StatusCode int
	// Body holds at most MaxBodyBytes, and only when body capture is on.
	Body    []byte
	Latency time.Duration
}

// Sender performs one request. Implementations must be safe for concurrent
// use.
type Sender interface {
	Send(ctx context.Context, req *scenario.Request) (*Response, error)
}

// TransportError reports a request that produced no usable response.
type TransportError struct {
	Op  string // "build", "send" or "read"
	URL string
	Err error
	// Latency is the time from sending this attempt until it failed. It is
	// zero for "build" errors, which never reach the network.
	Latency time.Duration
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Timeout reports whether the failure was a deadline or I/O timeout.
func (e *TransportError) Timeout() bool {
	if errors.Is(e.Err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(e.Err, &netErr) && netErr.Timeout()
}

// Client sends scenario requests over a tuned http.Client.
type Client struct {
	http      *http.Client
	keepBody  bool
	tracer    trace.Tracer
	propagate bool
}

type ClientOption func(*Client)

// WithBodyCapture keeps up to MaxBodyBytes of each response body.
func WithBodyCapture(keep bool) ClientOption {
	return func(c *Client) { c.keepBody = keep }
}

// WithTracing records a client span per request and optionally injects
// W3C trace headers.
func WithTracing(tracer trace.Tracer, propagate bool) ClientOption {
	return func(c *Client) {
		c.tracer = tracer
		c.propagate = propagate
	}
}

func NewClient(timeout time.Duration, opts ...ClientOption) *Client {
	c := &Client{http: newHTTPClient(timeout)}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func newHTTPClient(timeout time.Duration) *http.Client {
	if timeout < 0 {
		timeout = 0
	}

	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          4096,
		MaxIdleConnsPerHost:   4096,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}

// Send performs req once. A non-nil error is always a *TransportError.
func (c *Client) Send(ctx context.Context, req *scenario.Request) (*Response, error) {
	if c.tracer != nil {
		var span trace.Span
		ctx, span = tracing.StartRequestSpan(ctx, c.tracer, req.Method, req.URL, req.Name)
		resp, err := c.send(ctx, req)
		var attrs []attribute.KeyValue
		if resp != nil {
			attrs = append(attrs, attribute.Int("http.response.status_code", resp.StatusCode))
		}
		tracing.EndSpan(span, err, attrs...)
		return resp, err
	}
	return c.send(ctx, req)
}

func (c *Client) send(ctx context.Context, req *scenario.Request) (*Response, error) {
	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		return nil, &TransportError{Op: "build", URL: req.URL, Err: err}
	}
	for key, values := range req.Header {
		for _, v := range values {
			httpReq.Header.Add(key, v)
		}
	}
	if c.propagate {
		tracing.InjectHTTPHeaders(ctx, httpReq.Header)
	}

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, &TransportError{Op: "send", URL: req.URL, Err: err, Latency: time.Since(start)}
	}
	defer resp.Body.Close()

	var kept []byte
	if c.keepBody {
		kept, err = io.ReadAll(io.LimitReader(resp.Body, MaxBodyBytes))
		if err != nil {
			return nil, &TransportError{Op: "read", URL: req.URL, Err: err, Latency: time.Since(start)}
		}
	}
	// Drain the rest so the connection can be reused.
	if _, err := io.Copy(io.Discard, resp.Body); err != nil {
		return nil, &TransportError{Op: "read", URL: req.URL, Err: err, Latency: time.Since(start)}
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Body:       kept,
		Latency:    time.Since(start),
	}, nil
}
