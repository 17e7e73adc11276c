package observability

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Span names.
const (
	SpanComposeURI   = "odata.compose_uri"
	SpanRenderFilter = "odata.render_filter"
)

// StartSpan starts an internal span carrying the service attributes plus attrs.
func (c *Config) StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	base := []attribute.KeyValue{attribute.String("service.name", c.ServiceName())}
	if v := c.ServiceVersion(); v != "" {
		base = append(base, attribute.String("service.version", v))
	}
	return c.Tracer().Start(ctx, name,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(append(base, attrs...)...),
	)
}

// EndSpan records err on span, if any, and ends it.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// FilterAttr is the attribute carrying the rendered filter text.
func FilterAttr(filter string) attribute.KeyValue {
	return attribute.String("odata.filter", filter)
}
