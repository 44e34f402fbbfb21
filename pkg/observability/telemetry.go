package observability

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.27.0"

	"github.com/bookspot/bookspot_backend/config"
)

const defaultServiceName = "bookspot"

type Config struct {
	ServiceName    string
	ServiceVersion string
	Environment    string

	// Spans are exported over OTLP/HTTP only when TracingEnabled is set and
	// OTLPEndpoint (host:port) is not empty. Otherwise they stay in process
	// and only feed the trace ids used in logs.
	TracingEnabled bool
	OTLPEndpoint   string
	OTLPInsecure   bool

	// SamplingRate is the ratio of traces kept; zero means all.
	SamplingRate float64
}

// FromCentralConfig maps the observability and server sections.
func FromCentralConfig(cfg *config.Config) Config {
	name := cfg.Observability.ServiceName
	if name == "" {
		name = defaultServiceName
	}
	return Config{
		ServiceName:    name,
		ServiceVersion: cfg.Observability.ServiceVersion,
		Environment:    cfg.Server.Environment,
		TracingEnabled: cfg.Observability.Tracing.Enabled,
		OTLPEndpoint:   cfg.Observability.Tracing.OTLPEndpoint,
		OTLPInsecure:   cfg.Observability.Tracing.OTLPInsecure,
		SamplingRate:   cfg.Observability.Tracing.SamplingRate,
	}
}

func (c Config) exportsSpans() bool { return c.TracingEnabled && c.OTLPEndpoint != "" }

func (c Config) sampler() trace.Sampler {
	if c.SamplingRate <= 0 || c.SamplingRate >= 1 {
		return trace.AlwaysSample()
	}
	return trace.ParentBased(trace.TraceIDRatioBased(c.SamplingRate))
}

// Provider owns the SDK providers installed as the otel globals. Metrics are
// served by the Prometheus exporter on the default registry.
type Provider struct {
	TracerProvider *trace.TracerProvider
	MeterProvider  *metric.MeterProvider
}

// InitTelemetry builds the providers for cfg, installs them and the W3C
// propagators as globals, and returns them for shutdown.
func InitTelemetry(ctx context.Context, cfg Config) (*Provider, error) {
	res, err := resource.Merge(resource.Default(), resource.NewWithAttributes("",
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.ServiceVersion),
		semconv.DeploymentEnvironmentName(cfg.Environment),
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	tpOpts := []trace.TracerProviderOption{trace.WithResource(res), trace.WithSampler(cfg.sampler())}
	if cfg.exportsSpans() {
		opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(cfg.OTLPEndpoint)}
		if cfg.OTLPInsecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		exporter, err := otlptracehttp.New(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
		}
		tpOpts = append(tpOpts, trace.WithBatcher(exporter))
	}
	tp := trace.NewTracerProvider(tpOpts...)

	promExporter, err := prometheus.New()
	if err != nil {
		_ = tp.Shutdown(ctx)
		return nil, fmt.Errorf("failed to create Prometheus exporter: %w", err)
	}
	mp := metric.NewMeterProvider(metric.WithResource(res), metric.WithReader(promExporter))

	otel.SetTracerProvider(tp)
	otel.SetMeterProvider(mp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return &Provider{TracerProvider: tp, MeterProvider: mp}, nil
}

// Shutdown flushes pending spans and stops both providers within five
// seconds. A nil Provider is a no-op.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	return errors.Join(
		wrap("tracer provider", p.TracerProvider.Shutdown(ctx)),
		wrap("meter provider", p.MeterProvider.Shutdown(ctx)),
	)
}

func wrap(what string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("failed to shut down %s: %w", what, err)
}
