package telemetry

import (
	"context"
	"fmt"
	"os"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Global telemetry handles, initialized by InitOTEL. Before that, the
// no-op globals from the otel package apply, so instrumented code works
// in tests without setup.
var (
	Tracer = otel.Tracer("github.com/skyfell/reaper")
	Meter  = otel.Meter("github.com/skyfell/reaper")

	// PrometheusRegistry backs the /metrics endpoint. The OTEL
	// Prometheus exporter registers itself here.
	PrometheusRegistry *promclient.Registry

	ResourcesEnumerated metric.Int64Counter
	ResourcesDeleted    metric.Int64Counter
	ResourcesSkipped    metric.Int64Counter
	DeletesFailed       metric.Int64Counter
	PairsFailed         metric.Int64Counter
	PairDuration        metric.Float64Histogram
	RunDuration         metric.Float64Histogram
)

// Config for OTEL initialization.
type Config struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	OTELEndpoint   string
	Insecure       bool
}

// InitOTEL wires traces and metrics: OTLP over gRPC for both, plus a
// Prometheus registry for pull-based scraping.
func InitOTEL(ctx context.Context, cfg Config) (shutdown func(context.Context) error, err error) {
	cfg = applyConfigDefaults(cfg)

	res, err := newResource(cfg)
	if err != nil {
		return nil, err
	}

	traceShutdown, err := setupTraceProvider(ctx, cfg, res)
	if err != nil {
		return nil, fmt.Errorf("failed to setup traces: %w", err)
	}

	metricShutdown, err := setupMetricProvider(ctx, cfg, res)
	if err != nil {
		_ = traceShutdown(ctx)
		return nil, fmt.Errorf("failed to setup metrics: %w", err)
	}

	if err := initInstruments(); err != nil {
		_ = traceShutdown(ctx)
		_ = metricShutdown(ctx)
		return nil, fmt.Errorf("failed to create instruments: %w", err)
	}

	return func(ctx context.Context) error {
		var err error
		if e := traceShutdown(ctx); e != nil {
			err = fmt.Errorf("trace shutdown failed: %w", e)
		}
		if e := metricShutdown(ctx); e != nil && err == nil {
			err = fmt.Errorf("metric shutdown failed: %w", e)
		}
		return err
	}, nil
}

func applyConfigDefaults(cfg Config) Config {
	if cfg.OTELEndpoint == "" {
		cfg.OTELEndpoint = os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = "reaper"
	}
	return cfg
}

func newResource(cfg Config) (*resource.Resource, error) {
	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
			attribute.String("environment", cfg.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}
	return res, nil
}

func setupTraceProvider(ctx context.Context, cfg Config, res *resource.Resource) (func(context.Context) error, error) {
	opts := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(cfg.OTELEndpoint),
	}
	if cfg.Insecure {
		opts = append(opts, otlptracegrpc.WithDialOption(
			grpc.WithTransportCredentials(insecure.NewCredentials()),
		))
	}

	exporter, err := otlptracegrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter,
			sdktrace.WithBatchTimeout(5*time.Second),
		),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)

	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.TraceContext{})
	Tracer = provider.Tracer("github.com/skyfell/reaper")

	return provider.Shutdown, nil
}

func setupMetricProvider(ctx context.Context, cfg Config, res *resource.Resource) (func(context.Context) error, error) {
	registry := promclient.NewRegistry()
	PrometheusRegistry = registry

	prometheusExporter, err := prometheus.New(
		prometheus.WithRegisterer(registry),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	providerOpts := []sdkmetric.Option{
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(prometheusExporter),
	}

	if cfg.OTELEndpoint != "" {
		otlpReader, err := newOTLPReader(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create OTLP metric reader: %w", err)
		}
		providerOpts = append(providerOpts, sdkmetric.WithReader(otlpReader))
	}

	provider := sdkmetric.NewMeterProvider(providerOpts...)
	otel.SetMeterProvider(provider)
	Meter = provider.Meter("github.com/skyfell/reaper")

	return provider.Shutdown, nil
}

func newOTLPReader(ctx context.Context, cfg Config) (sdkmetric.Reader, error) {
	opts := []otlpmetricgrpc.Option{
		otlpmetricgrpc.WithEndpoint(cfg.OTELEndpoint),
	}
	if cfg.Insecure {
		opts = append(opts, otlpmetricgrpc.WithDialOption(
			grpc.WithTransportCredentials(insecure.NewCredentials()),
		))
	}

	exporter, err := otlpmetricgrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
	}

	return sdkmetric.NewPeriodicReader(exporter,
		sdkmetric.WithInterval(10*time.Second),
	), nil
}

func initInstruments() error {
	var err error

	ResourcesEnumerated, err = Meter.Int64Counter("reaper.resources.enumerated.total",
		metric.WithDescription("Total resources enumerated across all pairs"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return err
	}

	ResourcesDeleted, err = Meter.Int64Counter("reaper.resources.deleted.total",
		metric.WithDescription("Total resources deleted"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return err
	}

	ResourcesSkipped, err = Meter.Int64Counter("reaper.resources.skipped.total",
		metric.WithDescription("Total resources skipped by filters and policies"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return err
	}

	DeletesFailed, err = Meter.Int64Counter("reaper.deletes.failed.total",
		metric.WithDescription("Total delete attempts that exhausted retries"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return err
	}

	PairsFailed, err = Meter.Int64Counter("reaper.pairs.failed.total",
		metric.WithDescription("Total region and service pairs whose enumeration failed"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return err
	}

	PairDuration, err = Meter.Float64Histogram("reaper.pair.duration.seconds",
		metric.WithDescription("Duration of one region and service pair"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return err
	}

	RunDuration, err = Meter.Float64Histogram("reaper.run.duration.seconds",
		metric.WithDescription("Duration of a full run"),
		metric.WithUnit("s"),
	)
	return err
}
