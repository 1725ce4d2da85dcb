package observability

import (
	"context"

	"go.uber.org/multierr"

	"github.com/kbukum/gocompose/config"
)

// Init installs tracer and meter providers described by cfg. When telemetry is
// disabled it installs nothing and returns a no-op shutdown.
func Init(ctx context.Context, serviceName string, cfg config.TelemetryConfig) (func(context.Context) error, error) {
	if !cfg.Enabled {
		return func(context.Context) error { return nil }, nil
	}

	tp, err := InitTracer(ctx, TracerConfig{
		ServiceName: serviceName,
		Endpoint:    cfg.Endpoint,
		Insecure:    cfg.Insecure,
		SampleRate:  cfg.SampleRate,
	})
	if err != nil {
		return nil, err
	}

	mp, err := InitMeter(ctx, MeterConfig{
		ServiceName: serviceName,
		Endpoint:    cfg.Endpoint,
		Insecure:    cfg.Insecure,
	})
	if err != nil {
		return nil, multierr.Append(err, tp.Shutdown(ctx))
	}

	return func(ctx context.Context) error {
		return multierr.Combine(tp.Shutdown(ctx), mp.Shutdown(ctx))
	}, nil
}
