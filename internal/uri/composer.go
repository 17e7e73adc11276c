// Package uri composes request URIs from a service root, a resource path and a finalized
// filter clause.
package uri

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nlstn/go-odata-filter/internal/metadata"
	"github.com/nlstn/go-odata-filter/internal/observability"
	"github.com/nlstn/go-odata-filter/internal/query"
)

// ServerTimingName is the Server-Timing metric recorded around filter rendering.
const ServerTimingName = "filter-render"

// Config controls a Composer.
type Config struct {
	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// Observability supplies tracing, metrics and server timing. If nil, a no-op
	// configuration is used.
	Observability *observability.Config
}

// Composer renders ODataURI values. Build may be called concurrently; SetLogger may not.
type Composer struct {
	logger *slog.Logger
	obs    *observability.Config
}

// NewComposer creates a Composer, initializing the observability configuration.
func NewComposer(cfg Config) (*Composer, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	obs := cfg.Observability
	if obs == nil {
		obs = observability.NewConfig(observability.WithLogger(logger))
	}
	if err := obs.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize observability: %w", err)
	}
	return &Composer{logger: logger, obs: obs}, nil
}

// SetLogger replaces the logger; nil restores slog.Default().
func (c *Composer) SetLogger(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	c.logger = logger
}

// Build renders u. It fails without producing output when u is invalid, when the filter
// ranges over another entity set, or when the filter cannot be rendered.
func (c *Composer) Build(ctx context.Context, u *ODataURI) (result string, err error) {
	if u == nil {
		return "", fmt.Errorf("%w: nil URI", ErrInvalidURI)
	}
	start := time.Now()
	ctx, span := c.obs.StartSpan(ctx, observability.SpanComposeURI, observability.EntitySetAttr(u.EntitySetName()))
	filterLength := 0
	defer func() {
		observability.EndSpan(span, err)
		c.obs.Metrics().RecordComposition(ctx, u.EntitySetName(), time.Since(start), filterLength, err)
	}()

	if err := u.validate(); err != nil {
		return "", err
	}

	var filter string
	if u.Filter != nil {
		timing := c.obs.StartServerTiming(ctx, ServerTimingName)
		filter, err = query.Render(u.Filter)
		timing.Stop()
		if err != nil {
			return "", err
		}
		filterLength = len(filter)
		span.SetAttributes(observability.FilterAttr(filter))
	}

	result = u.write(filter)
	c.logger.Debug("Composed URI", "entity_set", u.EntitySetName(), "filter", filter, "uri", result)
	return result, nil
}

// ComposeURI builds <serviceRoot>/<set>?$filter=<encoded filter> followed by opts. clause
// must have been built over set.
func (c *Composer) ComposeURI(ctx context.Context, serviceRoot string, set *metadata.EntitySet, clause *query.FilterClause, opts ...QueryOption) (string, error) {
	if set == nil {
		return "", &metadata.SchemaNotFoundError{Kind: "entity set"}
	}
	if clause == nil {
		return "", &query.SerializationError{Reason: "filter clause is nil"}
	}
	if clause.EntitySet() != set {
		return "", fmt.Errorf("%w: filter ranges over '%s', URI addresses '%s'", ErrEntitySetMismatch, setName(clause), set.Name())
	}
	return c.Build(ctx, &ODataURI{
		ServiceRoot: serviceRoot,
		Path:        []string{set.Name()},
		Filter:      clause,
		Custom:      opts,
	})
}
