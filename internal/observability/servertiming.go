package observability

import (
	"context"

	servertiming "github.com/mitchellh/go-server-timing"
)

// ServerTimingMetric tracks one timed operation for the Server-Timing header.
// The zero value and nil are no-ops.
type ServerTimingMetric struct {
	metric *servertiming.Metric
}

// Stop ends the timed operation.
func (m *ServerTimingMetric) Stop() {
	if m == nil || m.metric == nil {
		return
	}
	m.metric.Stop()
}

// StartServerTiming starts a metric named name on the timing header carried by ctx. Without a
// header a no-op metric is returned.
func StartServerTiming(ctx context.Context, name string) *ServerTimingMetric {
	return StartServerTimingWithDesc(ctx, name, "")
}

// StartServerTimingWithDesc is StartServerTiming with a description shown in browser tools.
func StartServerTimingWithDesc(ctx context.Context, name, description string) *ServerTimingMetric {
	h := servertiming.FromContext(ctx)
	if h == nil {
		return &ServerTimingMetric{}
	}
	m := h.NewMetric(name)
	if description != "" {
		m = m.WithDesc(description)
	}
	return &ServerTimingMetric{metric: m.Start()}
}

// StartServerTiming starts a metric when server timing is enabled for c.
func (c *Config) StartServerTiming(ctx context.Context, name string) *ServerTimingMetric {
	if !c.ServerTimingEnabled() {
		return &ServerTimingMetric{}
	}
	return StartServerTiming(ctx, name)
}
