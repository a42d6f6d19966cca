package observability

import (
	"context"
	"time"

	"github.com/SC-SoftwareHS/EmergencyConnect-sub001/internal/common/config"
	"github.com/SC-SoftwareHS/EmergencyConnect-sub001/internal/common/logger"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// Observability owns the OpenTelemetry meter and tracer providers.
type Observability struct {
	meterProvider  *metric.MeterProvider
	tracerProvider *sdktrace.TracerProvider
	tracer         trace.Tracer

	dispatchCounter  otelmetric.Int64Counter
	dispatchDuration otelmetric.Float64Histogram
	ackCounter       otelmetric.Int64Counter
}

// New wires the Prometheus metric exporter and, when tracing is enabled
// with an endpoint, a Jaeger span exporter. Failures are logged and leave
// the corresponding instrument as a no-op.
func New(serviceName string, tracing config.TracingConfig, log logger.Logger) *Observability {
	var reader metric.Reader
	exporter, err := prometheus.New()
	if err != nil {
		log.Error("Failed to create Prometheus exporter", map[string]interface{}{"error": err.Error()})
	} else {
		reader = exporter
	}

	o := newWithReader(serviceName, reader)

	if tracing.Enabled && tracing.JaegerEndpoint != "" {
		tp, err := newTracerProvider(serviceName, tracing)
		if err != nil {
			log.Error("Failed to create Jaeger exporter", map[string]interface{}{"error": err.Error()})
		} else {
			o.tracerProvider = tp
			otel.SetTracerProvider(tp)
			log.Info("Tracing enabled", map[string]interface{}{"endpoint": tracing.JaegerEndpoint})
		}
	}
	o.tracer = otel.Tracer(serviceName)

	return o
}

func newWithReader(serviceName string, reader metric.Reader) *Observability {
	if reader == nil {
		return &Observability{tracer: otel.Tracer(serviceName)}
	}

	provider := metric.NewMeterProvider(metric.WithReader(reader))
	otel.SetMeterProvider(provider)
	meter := provider.Meter(serviceName)

	dispatchCounter, _ := meter.Int64Counter(
		"alerts.dispatched",
		otelmetric.WithDescription("Number of alerts dispatched"),
	)
	dispatchDuration, _ := meter.Float64Histogram(
		"alerts.dispatch.duration",
		otelmetric.WithDescription("Alert dispatch duration"),
		otelmetric.WithUnit("ms"),
	)
	ackCounter, _ := meter.Int64Counter(
		"alerts.acknowledgments",
		otelmetric.WithDescription("Number of acknowledgment requests"),
	)

	return &Observability{
		meterProvider:    provider,
		tracer:           otel.Tracer(serviceName),
		dispatchCounter:  dispatchCounter,
		dispatchDuration: dispatchDuration,
		ackCounter:       ackCounter,
	}
}

func newTracerProvider(serviceName string, cfg config.TracingConfig) (*sdktrace.TracerProvider, error) {
	exp, err := jaeger.New(jaeger.WithCollectorEndpoint(jaeger.WithEndpoint(cfg.JaegerEndpoint)))
	if err != nil {
		return nil, err
	}

	res := resource.NewSchemaless(attribute.String("service.name", serviceName))
	return sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRatio))),
	), nil
}

// Tracer returns the service tracer. It is a no-op tracer unless tracing
// was configured.
func (o *Observability) Tracer() trace.Tracer {
	if o == nil || o.tracer == nil {
		return otel.Tracer("")
	}
	return o.tracer
}

// RecordDispatch records one completed dispatch and the number of attempts it made.
func (o *Observability) RecordDispatch(ctx context.Context, status string, attempts int, duration time.Duration) {
	if o == nil {
		return
	}
	if o.dispatchCounter != nil {
		o.dispatchCounter.Add(ctx, 1, otelmetric.WithAttributes(attribute.String("status", status)))
	}
	if o.dispatchDuration != nil {
		o.dispatchDuration.Record(ctx, float64(duration.Milliseconds()), otelmetric.WithAttributes(
			attribute.String("status", status),
			attribute.Int("attempts", attempts),
		))
	}
}

func (o *Observability) RecordAcknowledgment(ctx context.Context, created bool) {
	if o == nil || o.ackCounter == nil {
		return
	}
	o.ackCounter.Add(ctx, 1, otelmetric.WithAttributes(attribute.Bool("created", created)))
}

func (o *Observability) Shutdown() {
	if o == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if o.meterProvider != nil {
		_ = o.meterProvider.Shutdown(ctx)
	}
	if o.tracerProvider != nil {
		_ = o.tracerProvider.Shutdown(ctx)
	}
}
