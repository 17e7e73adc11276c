// Package odata builds type-checked OData $filter expressions and composes them into request
// URIs.
//
// A filter is built in three steps. First a schema is declared with a ModelBuilder and frozen
// with Build. Then a filter Builder is created over one entity set of that model; every
// property access, navigation, comparison and any/all lambda is validated against the schema
// as it is added. Finally Finalize freezes the expression into an immutable FilterClause that
// can be rendered, fingerprinted, composed into a URI or projected to SQL.
//
// Example:
//
//	mb := odata.NewModelBuilder("Sales")
//	customer, _ := mb.AddEntityTypeFromStruct(Customer{})
//	order, _ := mb.AddEntityTypeFromStruct(Order{})
//	customers, _ := mb.AddEntitySet("Customers", customer)
//	orders, _ := mb.AddNavigation(customer, "Orders", order, odata.MultiplicityMany)
//	model, _ := mb.Build()
//
//	b, _ := odata.NewFilterBuilder(model, customers, odata.FilterConfig{})
//	src, _ := b.NavigateCollection(b.Root(), orders)
//	pred, _ := b.Any(src, "o", func(o odata.NodeRef) (odata.NodeRef, error) {
//	    amount, _ := b.AccessPropertyNamed(o, "Amount")
//	    limit, _ := b.Constant(100)
//	    return b.Compare(odata.OpGreaterThan, amount, limit)
//	})
//	clause, _ := b.Finalize(pred)
//	uri, _ := odata.ComposeURI("http://host/service", customers, clause)
//
// Range variables introduced by any and all are scoped to their lambda body. Reusing a name
// inside a nested lambda fails with DuplicateRangeVariableError, and using a variable after its
// lambda has been built fails with DanglingVariableError.
package odata

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"

	"github.com/nlstn/go-odata-filter/internal/metadata"
	"github.com/nlstn/go-odata-filter/internal/observability"
	"github.com/nlstn/go-odata-filter/internal/query"
	"github.com/nlstn/go-odata-filter/internal/scope"
	"github.com/nlstn/go-odata-filter/internal/sqlgen"
	"github.com/nlstn/go-odata-filter/internal/uri"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
)

// Schema types, re-exported from internal/metadata.
type (
	// ModelBuilder declares entity types, complex types, entity sets and navigation
	// properties. Build freezes it into a Model.
	ModelBuilder = metadata.ModelBuilder

	// Model is a frozen, read-only schema. It is safe for concurrent readers.
	Model = metadata.Model

	// EntityType is a named structured type; complex types share the representation.
	EntityType = metadata.EntityType

	// Property is a structural property of an entity or complex type.
	Property = metadata.Property

	// NavigationProperty is a typed relationship from one entity type to another.
	NavigationProperty = metadata.NavigationProperty

	// ReferentialConstraint pairs the foreign key property of a navigation with the key it
	// references.
	ReferentialConstraint = metadata.ReferentialConstraint

	// EntitySet is a named collection of entities of one type.
	EntitySet = metadata.EntitySet

	// Multiplicity is the cardinality of a navigation property.
	Multiplicity = metadata.Multiplicity

	// ValueKind is the family of values an expression evaluates to.
	ValueKind = metadata.ValueKind
)

// Expression types, re-exported from internal/query and internal/scope.
type (
	// FilterBuilder constructs a filter expression over one entity set.
	FilterBuilder = query.Builder

	// FilterConfig controls optional FilterBuilder behaviour.
	FilterConfig = query.Config

	// NodeRef references a node under construction.
	NodeRef = query.NodeRef

	// BodyFunc builds the predicate of an any or all lambda.
	BodyFunc = query.BodyFunc

	// FilterClause is a finalized, immutable filter expression.
	FilterClause = query.FilterClause

	// Node is a read-only view of one node of a FilterClause.
	Node = query.Node

	// NodeKind identifies the variant of a Node.
	NodeKind = query.NodeKind

	// ComparisonOperator is one of eq, ne, gt, ge, lt, le.
	ComparisonOperator = query.ComparisonOperator

	// LambdaKind is any or all.
	LambdaKind = query.LambdaKind

	// RangeVariable is the root iterator ($it) or a lambda variable.
	RangeVariable = scope.Variable
)

// URI composition and SQL projection types.
type (
	// ODataURI describes a request against an entity set.
	ODataURI = uri.ODataURI

	// QueryOption is a passthrough query option.
	QueryOption = uri.QueryOption

	// Composer renders ODataURI values with logging, tracing and metrics.
	Composer = uri.Composer

	// ComposerConfig controls a Composer.
	ComposerConfig = uri.Config

	// Observability holds initialized tracing, metrics and server timing settings.
	Observability = observability.Config

	// ServerTimingMetric tracks the duration of an operation for the Server-Timing header.
	ServerTimingMetric = observability.ServerTimingMetric

	// Dialect selects identifier quoting and placeholder style for SQL projection.
	Dialect = sqlgen.Dialect

	// SQLTranslation is the SQL form of a filter clause.
	SQLTranslation = sqlgen.Translation

	// SQLStatement is a SELECT over an entity set table.
	SQLStatement = sqlgen.Statement
)

// Error types.
type (
	SchemaNotFoundError         = metadata.SchemaNotFoundError
	DuplicatePropertyError      = metadata.DuplicatePropertyError
	DuplicateNavigationError    = metadata.DuplicateNavigationError
	MultiplicityMismatchError   = query.MultiplicityMismatchError
	TypeMismatchError           = query.TypeMismatchError
	SerializationError          = query.SerializationError
	DuplicateRangeVariableError = scope.DuplicateRangeVariableError
	DanglingVariableError       = scope.DanglingVariableError
)

// Sentinel errors. Match them with errors.Is.
var (
	ErrModelFrozen        = metadata.ErrModelFrozen
	ErrDuplicateType      = metadata.ErrDuplicateType
	ErrDuplicateEntitySet = metadata.ErrDuplicateEntitySet
	ErrInvalidName        = metadata.ErrInvalidName
	ErrInvalidDeclaration = metadata.ErrInvalidDeclaration

	ErrBuilderFinalized    = query.ErrBuilderFinalized
	ErrForeignNode         = query.ErrForeignNode
	ErrNotStructured       = query.ErrNotStructured
	ErrNotCollection       = query.ErrNotCollection
	ErrNotBoolean          = query.ErrNotBoolean
	ErrNestedComparison    = query.ErrNestedComparison
	ErrOpenScope           = query.ErrOpenScope
	ErrLambdaDepth         = query.ErrLambdaDepth
	ErrUnsupportedOperator = query.ErrUnsupportedOperator
	ErrUnsupportedLiteral  = query.ErrUnsupportedLiteral

	ErrInvalidVariableName = scope.ErrInvalidName

	ErrInvalidURI        = uri.ErrInvalidURI
	ErrEntitySetMismatch = uri.ErrEntitySetMismatch

	ErrMissingConstraint = sqlgen.ErrMissingConstraint
	ErrUntranslatable    = sqlgen.ErrUntranslatable
)

const (
	MultiplicityOne       = metadata.MultiplicityOne
	MultiplicityZeroOrOne = metadata.MultiplicityZeroOrOne
	MultiplicityMany      = metadata.MultiplicityMany
)

const (
	OpEqual              = query.OpEqual
	OpNotEqual           = query.OpNotEqual
	OpGreaterThan        = query.OpGreaterThan
	OpGreaterThanOrEqual = query.OpGreaterThanOrEqual
	OpLessThan           = query.OpLessThan
	OpLessThanOrEqual    = query.OpLessThanOrEqual

	LambdaAny = query.LambdaAny
	LambdaAll = query.LambdaAll
)

// Node kinds.
const (
	KindConstant             = query.KindConstant
	KindRangeVariable        = query.KindRangeVariable
	KindPropertyAccess       = query.KindPropertyAccess
	KindSingleNavigation     = query.KindSingleNavigation
	KindCollectionNavigation = query.KindCollectionNavigation
	KindBinaryComparison     = query.KindBinaryComparison
	KindLambda               = query.KindLambda
)

// Primitive EDM type names accepted by ModelBuilder.AddProperty.
const (
	EdmString         = metadata.EdmString
	EdmBoolean        = metadata.EdmBoolean
	EdmByte           = metadata.EdmByte
	EdmSByte          = metadata.EdmSByte
	EdmInt16          = metadata.EdmInt16
	EdmInt32          = metadata.EdmInt32
	EdmInt64          = metadata.EdmInt64
	EdmSingle         = metadata.EdmSingle
	EdmDouble         = metadata.EdmDouble
	EdmDecimal        = metadata.EdmDecimal
	EdmGuid           = metadata.EdmGuid
	EdmDate           = metadata.EdmDate
	EdmDateTimeOffset = metadata.EdmDateTimeOffset
	EdmTimeOfDay      = metadata.EdmTimeOfDay
	EdmDuration       = metadata.EdmDuration
	EdmBinary         = metadata.EdmBinary
)

const (
	// DefaultMaxLambdaDepth is the lambda nesting limit used when FilterConfig.MaxLambdaDepth
	// is unset.
	DefaultMaxLambdaDepth = query.DefaultMaxLambdaDepth

	// RootVariableName is the name of the implicit root range variable.
	RootVariableName = scope.RootName

	DialectSQLite   = sqlgen.DialectSQLite
	DialectPostgres = sqlgen.DialectPostgres
	DialectMySQL    = sqlgen.DialectMySQL
)

// NewModelBuilder creates a schema builder whose types live in namespace.
func NewModelBuilder(namespace string) *ModelBuilder {
	return metadata.NewModelBuilder(namespace)
}

// NewFilterBuilder creates a filter builder whose root range variable iterates over set.
// set must belong to model.
func NewFilterBuilder(model *Model, set *EntitySet, cfg FilterConfig) (*FilterBuilder, error) {
	return query.NewBuilder(model, set, cfg)
}

// Render returns the canonical $filter text of a finalized clause.
func Render(clause *FilterClause) (string, error) {
	return query.Render(clause)
}

// NewComposer creates a URI composer.
func NewComposer(cfg ComposerConfig) (*Composer, error) {
	return uri.NewComposer(cfg)
}

var (
	defaultComposer     *Composer
	defaultComposerErr  error
	defaultComposerOnce sync.Once
)

// ComposeURI returns <serviceRoot>/<set>?$filter=<encoded filter> followed by opts, using a
// composer with the default logger and no-op observability.
func ComposeURI(serviceRoot string, set *EntitySet, clause *FilterClause, opts ...QueryOption) (string, error) {
	defaultComposerOnce.Do(func() {
		defaultComposer, defaultComposerErr = uri.NewComposer(uri.Config{})
	})
	if defaultComposerErr != nil {
		return "", defaultComposerErr
	}
	return defaultComposer.ComposeURI(context.Background(), serviceRoot, set, clause, opts...)
}

// ObservabilityConfig configures observability features (tracing, metrics) for a Composer.
// All providers are optional; when nil, the corresponding feature is disabled.
type ObservabilityConfig struct {
	// TracerProvider provides the OpenTelemetry tracer. If nil, tracing is disabled.
	TracerProvider trace.TracerProvider

	// MeterProvider provides the OpenTelemetry meter. If nil, metrics collection is disabled.
	MeterProvider metric.MeterProvider

	// ServiceName identifies this service in telemetry data.
	// Defaults to "odata-filter" if not specified.
	ServiceName string

	// ServiceVersion is reported in telemetry attributes.
	ServiceVersion string

	// Logger receives observability lifecycle messages. Defaults to slog.Default().
	Logger *slog.Logger

	// EnableServerTiming records a Server-Timing metric around filter rendering when the
	// request context carries a go-server-timing header.
	EnableServerTiming bool
}

// NewObservability initializes an observability configuration for use in ComposerConfig.
//
// Example:
//
//	obs, err := odata.NewObservability(odata.ObservabilityConfig{
//	    TracerProvider: tp,
//	    ServiceName:    "catalog",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	composer, err := odata.NewComposer(odata.ComposerConfig{Observability: obs})
func NewObservability(cfg ObservabilityConfig) (*Observability, error) {
	opts := []observability.Option{}

	if cfg.TracerProvider != nil {
		opts = append(opts, observability.WithTracerProvider(cfg.TracerProvider))
	}
	if cfg.MeterProvider != nil {
		opts = append(opts, observability.WithMeterProvider(cfg.MeterProvider))
	}
	if cfg.ServiceName != "" {
		opts = append(opts, observability.WithServiceName(cfg.ServiceName))
	}
	if cfg.ServiceVersion != "" {
		opts = append(opts, observability.WithServiceVersion(cfg.ServiceVersion))
	}
	if cfg.Logger != nil {
		opts = append(opts, observability.WithLogger(cfg.Logger))
	}
	if cfg.EnableServerTiming {
		opts = append(opts, observability.WithServerTiming())
	}

	obsCfg := observability.NewConfig(opts...)
	if err := obsCfg.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize observability: %w", err)
	}

	obsCfg.Logger().Info("Observability configured",
		"tracing_enabled", cfg.TracerProvider != nil,
		"metrics_enabled", cfg.MeterProvider != nil,
		"server_timing_enabled", cfg.EnableServerTiming,
		"service_name", obsCfg.ServiceName(),
	)
	return obsCfg, nil
}

// StartServerTiming starts a Server-Timing metric with the given name on the header carried
// by ctx. Without a header it returns a no-op metric that is safe to Stop.
func StartServerTiming(ctx context.Context, name string) *ServerTimingMetric {
	return observability.StartServerTiming(ctx, name)
}

// StartServerTimingWithDesc starts a Server-Timing metric with a name and description.
func StartServerTimingWithDesc(ctx context.Context, name, description string) *ServerTimingMetric {
	return observability.StartServerTimingWithDesc(ctx, name, description)
}

// TranslateToSQL converts a finalized clause into a SQL condition over the table of its
// entity set, aliased as t0. Every navigation used needs a referential constraint.
func TranslateToSQL(clause *FilterClause, dialect Dialect) (*SQLTranslation, error) {
	return sqlgen.Translate(clause, dialect)
}

// NewSQLStatement creates a SELECT over the clause's entity set restricted by the clause.
func NewSQLStatement(db *sql.DB, dialect Dialect, clause *FilterClause) (*SQLStatement, error) {
	return sqlgen.FromClause(db, dialect, clause)
}

// GormScope returns a GORM scope restricting a query to the rows matching clause.
//
// Example:
//
//	var customers []Customer
//	err := db.Scopes(odata.GormScope(clause, odata.DialectSQLite)).Find(&customers).Error
func GormScope(clause *FilterClause, dialect Dialect) func(*gorm.DB) *gorm.DB {
	return sqlgen.Scope(clause, dialect)
}

// GormDialector returns the GORM dialector for dialect opened on dsn.
func GormDialector(dialect Dialect, dsn string) (gorm.Dialector, error) {
	return sqlgen.Dialector(dialect, dsn)
}
