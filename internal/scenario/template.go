package scenario

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/torosent/stampede/internal/feeder"
)

// Built-in placeholder names.
const (
	KeyUUID        = "uuid"
	KeyVU          = "vu"
	KeyIteration   = "iteration"
	KeyTimestamp   = "timestamp"
	KeyTimestampMs = "timestamp_ms"
)

// TemplateConfig describes a request whose URL, headers and body may contain
// placeholders.
type TemplateConfig struct {
	Name    string
	Method  string
	URL     string
	Headers map[string]string
	Body    string
}

// Template renders a fresh request per iteration. Every occurrence of
// {{uuid}} within one request resolves to the same UUID, so an id can appear
// in both a header and the body.
type Template struct {
	cfg    TemplateConfig
	feeder feeder.Feeder
	uuids  *UUIDGenerator
	now    func() time.Time

	// seq numbers iterations when the context carries none.
	seq atomic.Uint64
}

type TemplateOption func(*Template)

// WithFeeder resolves placeholders from the feeder's records.
func WithFeeder(f feeder.Feeder) TemplateOption {
	return func(t *Template) { t.feeder = f }
}

// WithUUIDGenerator replaces the clock-seeded default.
func WithUUIDGenerator(g *UUIDGenerator) TemplateOption {
	return func(t *Template) { t.uuids = g }
}

// WithClock overrides time.Now for {{timestamp}}.
func WithClock(now func() time.Time) TemplateOption {
	return func(t *Template) { t.now = now }
}

func NewTemplate(cfg TemplateConfig, opts ...TemplateOption) (*Template, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("scenario: url is required")
	}
	if cfg.Method == "" {
		cfg.Method = http.MethodGet
	}
	t := &Template{cfg: cfg, now: time.Now}
	for _, opt := range opts {
		opt(t)
	}
	if t.uuids == nil {
		t.uuids = NewUUIDGenerator(0)
	}
	return t, nil
}

func (t *Template) NextRequest(ctx context.Context) (*Request, error) {
	var record feeder.Record
	if t.feeder != nil {
		rec, err := t.feeder.Next(ctx)
		if err != nil {
			return nil, fmt.Errorf("feeder: %w", err)
		}
		record = rec
	}

	it, ok := IterationFrom(ctx)
	if !ok {
		it.Number = t.seq.Add(1) - 1
	}

	var id string
	now := t.now()
	lookup := func(key string) (string, bool) {
		switch key {
		case KeyUUID:
			if id == "" {
				id = t.uuids.New().String()
			}
			return id, true
		case KeyVU:
			return strconv.FormatUint(it.VU, 10), true
		case KeyIteration:
			return strconv.FormatUint(it.Number, 10), true
		case KeyTimestamp:
			return strconv.FormatInt(now.Unix(), 10), true
		case KeyTimestampMs:
			return strconv.FormatInt(now.UnixMilli(), 10), true
		}
		val, found := record[key]
		return val, found
	}

	req := &Request{
		Name:   t.cfg.Name,
		Method: t.cfg.Method,
		URL:    render(t.cfg.URL, lookup),
		Header: make(http.Header, len(t.cfg.Headers)),
	}
	for k, v := range t.cfg.Headers {
		req.Header.Set(k, render(v, lookup))
	}
	if t.cfg.Body != "" {
		req.Body = []byte(render(t.cfg.Body, lookup))
	}
	return req, nil
}
