// Package tracing wires OpenTelemetry spans and W3C trace propagation into
// outgoing requests.
package tracing

import (
	"context"
	"fmt"
	"os"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/torosent/stampede/internal/config"
)

const (
	instrumentationName = "github.com/torosent/stampede"
	defaultServiceName  = "stampede"
)

// Provider owns the run's TracerProvider.
type Provider struct {
	tp        *sdktrace.TracerProvider
	tracer    trace.Tracer
	propagate bool
}

// exportTarget is the tracing config with environment fallbacks applied.
type exportTarget struct {
	endpoint string
	service  string
	protocol string
	insecure bool
}

func resolveTarget(cfg config.TracingConfig) exportTarget {
	t := exportTarget{
		endpoint: cfg.Endpoint,
		service:  cfg.ServiceName,
		protocol: strings.ToLower(cfg.Protocol),
		insecure: cfg.Insecure,
	}
	if t.endpoint == "" {
		t.endpoint = os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	}
	if t.service == "" {
		t.service = os.Getenv("OTEL_SERVICE_NAME")
	}
	if t.service == "" {
		t.service = defaultServiceName
	}
	return t
}

// Init builds a TracerProvider exporting over OTLP. Without an endpoint (from
// cfg or OTEL_EXPORTER_OTLP_ENDPOINT) no spans are exported and the provider
// only decides whether trace headers are propagated. attrs are added to the
// exported resource, e.g. the run ID.
func Init(ctx context.Context, cfg config.TracingConfig, attrs ...attribute.KeyValue) (*Provider, error) {
	if !cfg.Enabled() {
		return &Provider{}, nil
	}
	p := &Provider{propagate: cfg.ShouldPropagate()}

	target := resolveTarget(cfg)
	if target.endpoint == "" {
		return p, nil
	}

	sampler, err := newSampler(cfg.SampleRate)
	if err != nil {
		return nil, err
	}
	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceName(target.service)),
		resource.WithAttributes(attrs...),
	)
	if err != nil {
		return nil, fmt.Errorf("tracing resource: %w", err)
	}
	exporter, err := target.exporter(ctx)
	if err != nil {
		return nil, fmt.Errorf("tracing exporter: %w", err)
	}

	p.tp = sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sampler)),
	)
	p.tracer = p.tp.Tracer(instrumentationName)
	otel.SetTracerProvider(p.tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	return p, nil
}

func newSampler(rate float64) (sdktrace.Sampler, error) {
	if rate < 0 || rate > 1 {
		return nil, fmt.Errorf("tracing sample_rate must be between 0.0 and 1.0, got %g", rate)
	}
	if rate == 1 {
		return sdktrace.AlwaysSample(), nil
	}
	// TraceIDRatioBased(0) never samples.
	return sdktrace.TraceIDRatioBased(rate), nil
}

func (t exportTarget) exporter(ctx context.Context) (sdktrace.SpanExporter, error) {
	if t.protocol == "http" {
		opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(t.endpoint)}
		if t.insecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		return otlptracehttp.New(ctx, opts...)
	}
	if t.protocol != "" && t.protocol != "grpc" {
		return nil, fmt.Errorf("unsupported OTLP protocol %q: use \"grpc\" or \"http\"", t.protocol)
	}
	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(t.endpoint)}
	if t.insecure {
		opts = append(opts,
			otlptracegrpc.WithInsecure(),
			otlptracegrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
		)
	}
	return otlptracegrpc.New(ctx, opts...)
}

// Tracer returns the configured tracer, or a no-op tracer when nothing is
// exported.
func (p *Provider) Tracer() trace.Tracer {
	if !p.Exporting() {
		return noop.NewTracerProvider().Tracer(instrumentationName)
	}
	return p.tracer
}

// Exporting reports whether spans leave the process.
func (p *Provider) Exporting() bool { return p != nil && p.tp != nil }

// ShouldPropagate reports whether W3C trace headers are injected.
func (p *Provider) ShouldPropagate() bool { return p != nil && p.propagate }

// Shutdown flushes pending spans.
func (p *Provider) Shutdown(ctx context.Context) error {
	if !p.Exporting() {
		return nil
	}
	return p.tp.Shutdown(ctx)
}
