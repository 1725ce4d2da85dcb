package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/kbukum/gocompose/logger"
)

// MeterConfig configures the OTLP metric exporter.
type MeterConfig struct {
	ServiceName string
	Endpoint    string
	Insecure    bool
	Interval    time.Duration
}

// InitMeter installs a periodic OTLP/HTTP meter provider as the global provider.
func InitMeter(ctx context.Context, cfg MeterConfig) (*sdkmetric.MeterProvider, error) {
	opts := []otlpmetrichttp.Option{otlpmetrichttp.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}

	exporter, err := otlpmetrichttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating metric exporter: %w", err)
	}

	res, err := newResource(cfg.ServiceName)
	if err != nil {
		return nil, fmt.Errorf("creating resource: %w", err)
	}

	var readerOpts []sdkmetric.PeriodicReaderOption
	if cfg.Interval > 0 {
		readerOpts = append(readerOpts, sdkmetric.WithInterval(cfg.Interval))
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, readerOpts...)),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(mp)

	logger.Get("observability").Info("meter initialized", logger.Fields(
		"service", cfg.ServiceName,
		"endpoint", cfg.Endpoint,
	))
	return mp, nil
}

// Meter returns the module meter from mp, or from the global provider when mp is nil.
func Meter(mp metric.MeterProvider) metric.Meter {
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	return mp.Meter(InstrumentationName)
}

// CompositionMetrics holds the instruments recorded by containers.
type CompositionMetrics struct {
	recompositions  metric.Int64Counter
	recomposeTime   metric.Float64Histogram
	constructions   metric.Int64Counter
	assignments     metric.Int64Counter
	releases        metric.Int64Counter
	compositionErrs metric.Int64Counter
}

// NewCompositionMetrics creates the instruments on meter.
func NewCompositionMetrics(meter metric.Meter) (*CompositionMetrics, error) {
	recompositions, err := meter.Int64Counter("di.recompositions",
		metric.WithDescription("Completed recomposition cycles"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating di.recompositions counter: %w", err)
	}

	recomposeTime, err := meter.Float64Histogram("di.recompose.duration",
		metric.WithDescription("Duration of recomposition cycles in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating di.recompose.duration histogram: %w", err)
	}

	constructions, err := meter.Int64Counter("di.constructions",
		metric.WithDescription("Instances built by type and factory exports"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating di.constructions counter: %w", err)
	}

	assignments, err := meter.Int64Counter("di.assignments",
		metric.WithDescription("Import slots assigned"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating di.assignments counter: %w", err)
	}

	releases, err := meter.Int64Counter("di.releases",
		metric.WithDescription("Instances released after their export disappeared"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating di.releases counter: %w", err)
	}

	compositionErrs, err := meter.Int64Counter("di.errors",
		metric.WithDescription("Failed composition operations by error code"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating di.errors counter: %w", err)
	}

	return &CompositionMetrics{
		recompositions:  recompositions,
		recomposeTime:   recomposeTime,
		constructions:   constructions,
		assignments:     assignments,
		releases:        releases,
		compositionErrs: compositionErrs,
	}, nil
}

// RecordRecompose records a finished recomposition cycle.
func (m *CompositionMetrics) RecordRecompose(ctx context.Context, containerID string, changed bool, d time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String(AttrContainerID, containerID),
		attribute.Bool(AttrChanged, changed),
	)
	m.recompositions.Add(ctx, 1, attrs)
	m.recomposeTime.Record(ctx, d.Seconds(), attrs)
}

// RecordConstruction records one built instance. kind is "type" or "factory".
func (m *CompositionMetrics) RecordConstruction(ctx context.Context, containerID, kind string) {
	m.constructions.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrContainerID, containerID),
		attribute.String("kind", kind),
	))
}

// RecordAssignment records one assigned import slot.
func (m *CompositionMetrics) RecordAssignment(ctx context.Context, containerID string) {
	m.assignments.Add(ctx, 1, metric.WithAttributes(attribute.String(AttrContainerID, containerID)))
}

// RecordRelease records one released instance.
func (m *CompositionMetrics) RecordRelease(ctx context.Context, containerID string) {
	m.releases.Add(ctx, 1, metric.WithAttributes(attribute.String(AttrContainerID, containerID)))
}

// RecordError records a failed operation by error code.
func (m *CompositionMetrics) RecordError(ctx context.Context, containerID, code string) {
	m.compositionErrs.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrContainerID, containerID),
		attribute.String("code", code),
	))
}
