package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds the instruments recorded for each composed URI.
type Metrics struct {
	compositions metric.Int64Counter
	failures     metric.Int64Counter
	duration     metric.Float64Histogram
	filterLength metric.Int64Histogram
}

func newMetrics(meter metric.Meter) (*Metrics, error) {
	compositions, err := meter.Int64Counter("odata.filter.compositions",
		metric.WithDescription("Number of composed query URIs"))
	if err != nil {
		return nil, err
	}
	failures, err := meter.Int64Counter("odata.filter.failures",
		metric.WithDescription("Number of URI compositions that failed"))
	if err != nil {
		return nil, err
	}
	duration, err := meter.Float64Histogram("odata.filter.duration",
		metric.WithDescription("Time spent composing a query URI"),
		metric.WithUnit("ms"))
	if err != nil {
		return nil, err
	}
	filterLength, err := meter.Int64Histogram("odata.filter.length",
		metric.WithDescription("Length of the rendered $filter expression"),
		metric.WithUnit("By"))
	if err != nil {
		return nil, err
	}
	return &Metrics{
		compositions: compositions,
		failures:     failures,
		duration:     duration,
		filterLength: filterLength,
	}, nil
}

// RecordComposition records one composition of a URI over entitySet. filterLength is the
// length of the rendered filter text, or 0 when no filter was applied.
func (m *Metrics) RecordComposition(ctx context.Context, entitySet string, elapsed time.Duration, filterLength int, err error) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(EntitySetAttr(entitySet))
	m.compositions.Add(ctx, 1, attrs)
	m.duration.Record(ctx, float64(elapsed.Microseconds())/1000, attrs)
	if err != nil {
		m.failures.Add(ctx, 1, attrs)
		return
	}
	if filterLength > 0 {
		m.filterLength.Record(ctx, int64(filterLength), attrs)
	}
}

// EntitySetAttr is the attribute naming the entity set a URI addresses.
func EntitySetAttr(name string) attribute.KeyValue {
	return attribute.String("odata.entity_set", name)
}
