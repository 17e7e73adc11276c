package observability

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	servertiming "github.com/mitchellh/go-server-timing"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// recordingProvider hands out tracers that remember the names of started spans.
type recordingProvider struct {
	tracenoop.TracerProvider
	mu    *sync.Mutex
	spans *[]string
}

func newRecordingProvider() recordingProvider {
	return recordingProvider{mu: &sync.Mutex{}, spans: &[]string{}}
}

func (p recordingProvider) Tracer(name string, opts ...trace.TracerOption) trace.Tracer {
	return recordingTracer{p: p}
}

func (p recordingProvider) names() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), *p.spans...)
}

type recordingTracer struct {
	tracenoop.Tracer
	p recordingProvider
}

func (t recordingTracer) Start(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	t.p.mu.Lock()
	*t.p.spans = append(*t.p.spans, name)
	t.p.mu.Unlock()
	return t.Tracer.Start(ctx, name, opts...)
}

func TestNewConfig_Defaults(t *testing.T) {
	cfg := NewConfig()
	if cfg.ServiceName() != DefaultServiceName {
		t.Errorf("Expected service name %q, got %q", DefaultServiceName, cfg.ServiceName())
	}
	if cfg.ServerTimingEnabled() {
		t.Error("Server timing should be disabled by default")
	}
	if cfg.Metrics() != nil {
		t.Error("Metrics should be nil before Initialize")
	}
	if err := cfg.Initialize(); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	if err := cfg.Initialize(); err != nil {
		t.Fatalf("second Initialize failed: %v", err)
	}
	if cfg.Metrics() == nil {
		t.Error("Metrics should be set after Initialize")
	}
	// No-op instruments accept recordings without panicking.
	cfg.Metrics().RecordComposition(context.Background(), "Customers", time.Millisecond, 12, nil)
	cfg.Metrics().RecordComposition(context.Background(), "Customers", time.Millisecond, 0, errors.New("boom"))
}

func TestNilConfig(t *testing.T) {
	var cfg *Config
	if cfg.ServiceName() != DefaultServiceName {
		t.Errorf("Expected default service name, got %q", cfg.ServiceName())
	}
	if cfg.Logger() == nil || cfg.Tracer() == nil {
		t.Error("nil Config should fall back to default logger and tracer")
	}
	var m *Metrics
	m.RecordComposition(context.Background(), "x", 0, 0, nil)
	cfg.StartServerTiming(context.Background(), "compose").Stop()
}

func TestStartSpan_UsesConfiguredProvider(t *testing.T) {
	tp := newRecordingProvider()
	cfg := NewConfig(WithTracerProvider(tp), WithServiceName("catalog"), WithServiceVersion("1.2.0"))
	if err := cfg.Initialize(); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	_, span := cfg.StartSpan(context.Background(), SpanComposeURI, EntitySetAttr("Orders"))
	EndSpan(span, nil)
	_, span = cfg.StartSpan(context.Background(), SpanRenderFilter, FilterAttr("Age gt 3"))
	EndSpan(span, errors.New("render failed"))

	names := tp.names()
	if len(names) != 2 || names[0] != SpanComposeURI || names[1] != SpanRenderFilter {
		t.Errorf("Unexpected spans %v", names)
	}
	if cfg.ServiceVersion() != "1.2.0" {
		t.Errorf("Expected version 1.2.0, got %q", cfg.ServiceVersion())
	}
}

func TestServerTiming(t *testing.T) {
	var h servertiming.Header
	ctx := servertiming.NewContext(context.Background(), &h)

	disabled := NewConfig()
	disabled.StartServerTiming(ctx, "compose").Stop()
	if len(h.Metrics) != 0 {
		t.Fatalf("Expected no metrics while disabled, got %d", len(h.Metrics))
	}

	enabled := NewConfig(WithServerTiming())
	enabled.StartServerTiming(ctx, "compose").Stop()
	StartServerTimingWithDesc(ctx, "render", "Render filter").Stop()

	if len(h.Metrics) != 2 {
		t.Fatalf("Expected 2 metrics, got %d", len(h.Metrics))
	}
	if h.Metrics[0].Name != "compose" || h.Metrics[1].Desc != "Render filter" {
		t.Errorf("Unexpected metrics: %+v, %+v", h.Metrics[0], h.Metrics[1])
	}

	// Without a header in the context the metric is a no-op.
	StartServerTiming(context.Background(), "orphan").Stop()
	var zero *ServerTimingMetric
	zero.Stop()
}
