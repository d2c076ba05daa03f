package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config configures the metrics provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
}

// Metrics exposes application-level instruments.
type Metrics struct {
	returnsCreated    metric.Int64Counter
	returnTransitions metric.Int64Counter
	inspections       metric.Int64Counter
	refunds           metric.Int64Counter
	rtoEvents         metric.Int64Counter
	rateLimitDenied   metric.Int64Counter
}

// NewProvider configures and registers the meter provider.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, err
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(10*time.Second))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				if log != nil {
					log.Info("shutting down meter provider")
				}
				return provider.Shutdown(ctx)
			},
		})
	}

	if log != nil {
		log.Info("metrics initialized",
			zap.String("endpoint", cfg.ExporterEndpoint),
			zap.String("protocol", cfg.ExporterProtocol),
		)
	}

	return provider, nil
}

// New configures the domain metrics instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "returns"
	}
	meter := provider.Meter(name)

	returnsCreated, err := meter.Int64Counter("returns_requests_created_total")
	if err != nil {
		return nil, err
	}
	returnTransitions, err := meter.Int64Counter("returns_status_transitions_total")
	if err != nil {
		return nil, err
	}
	inspections, err := meter.Int64Counter("returns_inspections_total")
	if err != nil {
		return nil, err
	}
	refunds, err := meter.Int64Counter("returns_refunds_total")
	if err != nil {
		return nil, err
	}
	rtoEvents, err := meter.Int64Counter("returns_rto_events_total")
	if err != nil {
		return nil, err
	}
	rateLimitDenied, err := meter.Int64Counter("returns_rate_limit_denied_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		returnsCreated:    returnsCreated,
		returnTransitions: returnTransitions,
		inspections:       inspections,
		refunds:           refunds,
		rtoEvents:         rtoEvents,
		rateLimitDenied:   rateLimitDenied,
	}, nil
}

// RecordReturnCreated increments created return request counts.
func (m *Metrics) RecordReturnCreated(ctx context.Context, refundMethod string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("refund_method", strings.TrimSpace(refundMethod)))
	m.returnsCreated.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordTransition increments status transition counts.
func (m *Metrics) RecordTransition(ctx context.Context, from, to string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("from_status", strings.TrimSpace(from)),
		attribute.String("to_status", strings.TrimSpace(to)),
	)
	m.returnTransitions.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordInspection increments inspection counts.
func (m *Metrics) RecordInspection(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("outcome", strings.TrimSpace(outcome)))
	m.inspections.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordRefund increments refund counts by kind (full or partial).
func (m *Metrics) RecordRefund(ctx context.Context, kind, status string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("kind", strings.TrimSpace(kind)),
		attribute.String("status", strings.TrimSpace(status)),
	)
	m.refunds.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordRTOEvent increments courier RTO event counts.
func (m *Metrics) RecordRTOEvent(ctx context.Context, courierStatus string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("courier_status", strings.TrimSpace(courierStatus)))
	m.rtoEvents.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordRateLimitDenied increments rate limit deny counts.
func (m *Metrics) RecordRateLimitDenied(ctx context.Context, endpoint, reason string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("endpoint", strings.TrimSpace(endpoint)),
		attribute.String("reason", strings.TrimSpace(reason)),
	)
	m.rateLimitDenied.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	protocol = strings.ToLower(strings.TrimSpace(protocol))
	switch protocol {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{}
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		return otlpmetrichttp.New(context.Background(), opts...)
	case "grpc", "grpc/protobuf", "":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
	}
}

var allowedLabelKeys = map[attribute.Key]struct{}{
	"endpoint":       {},
	"status_code":    {},
	"refund_method":  {},
	"from_status":    {},
	"to_status":      {},
	"outcome":        {},
	"kind":           {},
	"status":         {},
	"courier_status": {},
	"reason":         {},
	"method":         {},
	"route":          {},
}

// FilterAttributes strips disallowed labels to keep metrics low-cardinality.
func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	filtered := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := allowedLabelKeys[attr.Key]; !ok {
			continue
		}
		filtered = append(filtered, attr)
	}
	return filtered
}
