// Package telemetry wires OpenTelemetry tracing and metrics for docker
// operations. Everything is a no-op unless enabled.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

const (
	instrumentationName = "github.com/berth-dev/berth/lifecycle"
	callsMetric         = "berth.runtime.calls"
)

// Config controls exporter behaviour.
type Config struct {
	ServiceName string
	Enabled     bool
	// TraceOutput receives spans as JSON lines. Required when Enabled.
	TraceOutput io.Writer
}

// Provider owns the tracer and meter providers and the runtime call counter.
type Provider struct {
	cfg            Config
	meterProvider  *sdkmetric.MeterProvider
	tracerProvider *sdktrace.TracerProvider
	reader         *sdkmetric.ManualReader
	tracer         trace.Tracer
	calls          metric.Int64Counter

	shutdownOnce sync.Once
}

// Setup builds a Provider. A disabled config yields a Provider whose tracer
// and counter discard everything.
func Setup(ctx context.Context, cfg Config) (*Provider, error) {
	if !cfg.Enabled {
		return disabled(cfg), nil
	}
	if cfg.TraceOutput == nil {
		return nil, errors.New("telemetry enabled without a trace output")
	}
	if strings.TrimSpace(cfg.ServiceName) == "" {
		cfg.ServiceName = "berth"
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewSchemaless(attribute.String("service.name", cfg.ServiceName)),
	)
	if err != nil {
		return nil, fmt.Errorf("build resource: %w", err)
	}

	exp, err := stdouttrace.New(stdouttrace.WithWriter(cfg.TraceOutput))
	if err != nil {
		return nil, fmt.Errorf("init stdout trace exporter: %w", err)
	}
	// A short-lived CLI exports synchronously so nothing is lost on exit.
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSyncer(exp),
		sdktrace.WithResource(res),
	)

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(reader),
		sdkmetric.WithResource(res),
	)
	calls, err := mp.Meter(instrumentationName).Int64Counter(callsMetric,
		metric.WithDescription("Docker operations performed, by operation and outcome."))
	if err != nil {
		return nil, fmt.Errorf("create %s counter: %w", callsMetric, err)
	}

	return &Provider{
		cfg:            cfg,
		meterProvider:  mp,
		tracerProvider: tp,
		reader:         reader,
		tracer:         tp.Tracer(instrumentationName),
		calls:          calls,
	}, nil
}

func disabled(cfg Config) *Provider {
	calls, _ := metricnoop.NewMeterProvider().Meter(instrumentationName).Int64Counter(callsMetric)
	return &Provider{
		cfg:    cfg,
		tracer: tracenoop.NewTracerProvider().Tracer(instrumentationName),
		calls:  calls,
	}
}

// Noop returns a disabled Provider.
func Noop() *Provider {
	return disabled(Config{})
}

// Enabled reports whether spans and metrics are recorded.
func (p *Provider) Enabled() bool {
	return p != nil && p.cfg.Enabled
}

// Observe runs fn inside a span named op and counts the call.
func (p *Provider) Observe(ctx context.Context, op string, fn func(context.Context) error) error {
	if p == nil {
		p = Noop()
	}
	ctx, span := p.tracer.Start(ctx, op)
	defer span.End()

	err := fn(ctx)
	p.calls.Add(ctx, 1, metric.WithAttributes(
		attribute.String("op", op),
		attribute.Bool("ok", err == nil),
	))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

// CallCounts sums the calls counter per operation and outcome, keyed as
// "<op>/<ok>". It returns nil when telemetry is disabled.
func (p *Provider) CallCounts(ctx context.Context) (map[string]int64, error) {
	if !p.Enabled() {
		return nil, nil
	}
	var rm metricdata.ResourceMetrics
	if err := p.reader.Collect(ctx, &rm); err != nil {
		return nil, err
	}
	counts := make(map[string]int64)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != callsMetric {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				continue
			}
			for _, dp := range sum.DataPoints {
				op, _ := dp.Attributes.Value("op")
				okVal, _ := dp.Attributes.Value("ok")
				counts[fmt.Sprintf("%s/%t", op.AsString(), okVal.AsBool())] += dp.Value
			}
		}
	}
	return counts, nil
}

// Shutdown flushes and stops the configured providers.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p == nil {
		return nil
	}
	var err error
	p.shutdownOnce.Do(func() {
		var errs []error
		if p.meterProvider != nil {
			if shutdownErr := p.meterProvider.Shutdown(ctx); shutdownErr != nil {
				errs = append(errs, shutdownErr)
			}
		}
		if p.tracerProvider != nil {
			if shutdownErr := p.tracerProvider.Shutdown(ctx); shutdownErr != nil {
				errs = append(errs, shutdownErr)
			}
		}
		if len(errs) > 0 {
			err = errors.Join(errs...)
		}
	})
	return err
}
