package sqlgen

import (
	"errors"
	"fmt"
	"strings"

	"github.com/nlstn/go-odata-filter/internal/metadata"
	"github.com/nlstn/go-odata-filter/internal/query"
	"github.com/nlstn/go-odata-filter/internal/scope"
)

// RootAlias is the table alias of the root range variable.
const RootAlias = "t0"

var (
	// ErrMissingConstraint is returned when a navigation has no referential constraint, so
	// there is no column pair to join on.
	ErrMissingConstraint = errors.New("navigation property has no referential constraint")

	// ErrUntranslatable is returned for expressions that have no SQL equivalent.
	ErrUntranslatable = errors.New("expression cannot be translated to SQL")
)

var sqlOperators = map[query.ComparisonOperator]string{
	query.OpEqual:              "=",
	query.OpNotEqual:           "<>",
	query.OpGreaterThan:        ">",
	query.OpGreaterThanOrEqual: ">=",
	query.OpLessThan:           "<",
	query.OpLessThanOrEqual:    "<=",
}

// Translation is the SQL form of a filter clause over the table of its entity set.
type Translation struct {
	// Table is the table of the clause's entity set, to be aliased as RootAlias.
	Table string
	// Joins are LEFT JOINs for single-valued navigations reached from the root.
	Joins []string
	// Where is the condition, with ? placeholders.
	Where string
	// Args are the placeholder values in order.
	Args []interface{}
}

type navKey struct {
	alias string
	nav   *metadata.NavigationProperty
}

// frame collects the joins of one SELECT level: the outer statement or a lambda subquery.
type frame struct {
	joins []string
}

type translator struct {
	dialect    Dialect
	variables  map[*scope.Variable]string
	navAliases map[navKey]string
	aliasFrame map[string]*frame
	next       int
	args       []interface{}
}

// Translate converts a finalized filter clause into a SQL condition. Single-valued navigations
// become LEFT JOINs, any becomes EXISTS and all becomes NOT EXISTS over a correlated subquery.
// eq and ne treat NULL as a value, and all counts a row whose body is unknown as failing.
// Every navigation in the clause needs a referential constraint.
func Translate(clause *query.FilterClause, dialect Dialect) (*Translation, error) {
	root := clause.Root()
	if !root.Valid() {
		return nil, fmt.Errorf("%w: filter clause is not finalized", ErrUntranslatable)
	}

	outer := &frame{}
	tr := &translator{
		dialect:    dialect,
		variables:  map[*scope.Variable]string{clause.RangeVariable(): RootAlias},
		navAliases: make(map[navKey]string),
		aliasFrame: map[string]*frame{RootAlias: outer},
		next:       1,
	}
	where, err := tr.predicate(root)
	if err != nil {
		return nil, err
	}
	return &Translation{
		Table: clause.EntitySet().EntityType().TableName(),
		Joins: outer.joins,
		Where: where,
		Args:  tr.args,
	}, nil
}

func (tr *translator) predicate(n query.Node) (string, error) {
	switch n.Kind() {
	case query.KindBinaryComparison:
		return tr.comparison(n)
	case query.KindLambda:
		return tr.lambda(n)
	default:
		return "", fmt.Errorf("%w: %s is not a predicate", ErrUntranslatable, n.Kind())
	}
}

func (tr *translator) comparison(n query.Node) (string, error) {
	op, ok := sqlOperators[n.Operator()]
	if !ok {
		return "", fmt.Errorf("%w: operator '%s'", ErrUntranslatable, n.Operator())
	}
	left, right := n.Left(), n.Right()

	leftNull, rightNull := isNull(left), isNull(right)
	if leftNull || rightNull {
		if n.Operator() != query.OpEqual && n.Operator() != query.OpNotEqual {
			return "", fmt.Errorf("%w: null can only be compared with eq or ne", ErrUntranslatable)
		}
		if leftNull && rightNull {
			if n.Operator() == query.OpEqual {
				return "1 = 1", nil
			}
			return "1 = 0", nil
		}
		other := left
		if leftNull {
			other = right
		}
		expr, err := tr.operand(other)
		if err != nil {
			return "", err
		}
		if n.Operator() == query.OpEqual {
			return expr + " IS NULL", nil
		}
		return expr + " IS NOT NULL", nil
	}

	l, err := tr.operand(left)
	if err != nil {
		return "", err
	}
	r, err := tr.operand(right)
	if err != nil {
		return "", err
	}
	expr := l + " " + op + " " + r

	// eq and ne treat NULL as a value: null eq null holds, null ne x holds for non-null x.
	leftMaybe, rightMaybe := mayBeNull(left), mayBeNull(right)
	switch n.Operator() {
	case query.OpEqual:
		if leftMaybe && rightMaybe {
			return fmt.Sprintf("(%s OR (%s IS NULL AND %s IS NULL))", expr, l, r), nil
		}
	case query.OpNotEqual:
		switch {
		case leftMaybe && rightMaybe:
			return fmt.Sprintf("(%s OR (%s IS NULL AND %s IS NOT NULL) OR (%s IS NOT NULL AND %s IS NULL))", expr, l, r, l, r), nil
		case leftMaybe:
			return fmt.Sprintf("(%s OR %s IS NULL)", expr, l), nil
		case rightMaybe:
			return fmt.Sprintf("(%s OR %s IS NULL)", expr, r), nil
		}
	}
	return expr, nil
}

func (tr *translator) operand(n query.Node) (string, error) {
	switch n.Kind() {
	case query.KindConstant:
		tr.args = append(tr.args, n.Value())
		return "?", nil

	case query.KindPropertyAccess:
		if n.Property().ComplexType() != nil {
			return "", fmt.Errorf("%w: complex property '%s' has no single column", ErrUntranslatable, n.Property().Name())
		}
		alias, column, err := tr.column(n)
		if err != nil {
			return "", err
		}
		return alias + "." + quoteIdent(tr.dialect, column), nil

	case query.KindRangeVariable, query.KindSingleNavigation:
		alias, err := tr.alias(n)
		if err != nil {
			return "", err
		}
		key, ok := n.StructuredType().SingleKey()
		if !ok {
			return "", fmt.Errorf("%w: '%s' has no single key", ErrUntranslatable, n.StructuredType().Name())
		}
		return tr.qualified(alias, key), nil

	default:
		return "", fmt.Errorf("%w: %s is not an operand", ErrUntranslatable, n.Kind())
	}
}

// column resolves a property access to its table alias and column name. Properties of
// complex values are stored inline as <complex column>_<property column>.
func (tr *translator) column(n query.Node) (string, string, error) {
	src := n.Source()
	if src.Kind() == query.KindPropertyAccess {
		alias, prefix, err := tr.column(src)
		if err != nil {
			return "", "", err
		}
		return alias, prefix + "_" + n.Property().ColumnName(), nil
	}
	alias, err := tr.alias(src)
	if err != nil {
		return "", "", err
	}
	return alias, n.Property().ColumnName(), nil
}

// alias returns the table alias of an entity-valued node, joining navigation targets as needed.
func (tr *translator) alias(n query.Node) (string, error) {
	switch n.Kind() {
	case query.KindRangeVariable:
		alias, ok := tr.variables[n.Variable()]
		if !ok {
			return "", fmt.Errorf("%w: variable '%s' is not in scope", ErrUntranslatable, n.Variable().Name())
		}
		return alias, nil

	case query.KindSingleNavigation:
		src, err := tr.alias(n.Source())
		if err != nil {
			return "", err
		}
		nav := n.Navigation()
		key := navKey{alias: src, nav: nav}
		if alias, ok := tr.navAliases[key]; ok {
			return alias, nil
		}
		c := nav.Constraint()
		if c == nil {
			return "", fmt.Errorf("%w: '%s'", ErrMissingConstraint, nav.Name())
		}
		alias := tr.newAlias()
		f := tr.aliasFrame[src]
		f.joins = append(f.joins, fmt.Sprintf("LEFT JOIN %s AS %s ON %s = %s",
			quoteIdent(tr.dialect, nav.Target().TableName()), alias,
			tr.qualified(alias, c.Principal), tr.qualified(src, c.Dependent)))
		tr.aliasFrame[alias] = f
		tr.navAliases[key] = alias
		return alias, nil

	default:
		return "", fmt.Errorf("%w: %s is not entity-valued", ErrUntranslatable, n.Kind())
	}
}

func (tr *translator) lambda(n query.Node) (string, error) {
	src := n.Source()
	nav := src.Navigation()
	parent, err := tr.alias(src.Source())
	if err != nil {
		return "", err
	}
	c := nav.Constraint()
	if c == nil {
		return "", fmt.Errorf("%w: '%s'", ErrMissingConstraint, nav.Name())
	}

	alias := tr.newAlias()
	sub := &frame{}
	tr.variables[n.Variable()] = alias
	tr.aliasFrame[alias] = sub
	defer delete(tr.variables, n.Variable())

	body, err := tr.predicate(n.Body())
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	if n.LambdaKind() == query.LambdaAll {
		sb.WriteString("NOT ")
	}
	sb.WriteString("EXISTS (SELECT 1 FROM ")
	sb.WriteString(quoteIdent(tr.dialect, nav.Target().TableName()))
	sb.WriteString(" AS ")
	sb.WriteString(alias)
	for _, join := range sub.joins {
		sb.WriteString(" ")
		sb.WriteString(join)
	}
	sb.WriteString(" WHERE ")
	sb.WriteString(tr.qualified(alias, c.Dependent))
	sb.WriteString(" = ")
	sb.WriteString(tr.qualified(parent, c.Principal))
	if n.LambdaKind() == query.LambdaAll {
		// An unknown body is a counterexample, not a match.
		sb.WriteString(" AND NOT COALESCE((")
		sb.WriteString(body)
		sb.WriteString("), FALSE))")
		return sb.String(), nil
	}
	sb.WriteString(" AND (")
	sb.WriteString(body)
	sb.WriteString("))")
	return sb.String(), nil
}

func (tr *translator) newAlias() string {
	alias := fmt.Sprintf("t%d", tr.next)
	tr.next++
	return alias
}

func (tr *translator) qualified(alias string, prop *metadata.Property) string {
	return alias + "." + quoteIdent(tr.dialect, prop.ColumnName())
}

// mayBeNull reports whether the SQL value of an operand can be NULL: nullable columns and
// anything reached through a LEFT JOIN.
func mayBeNull(n query.Node) bool {
	switch n.Kind() {
	case query.KindSingleNavigation:
		return true
	case query.KindPropertyAccess:
		return n.Property().Nullable() || mayBeNull(n.Source())
	default:
		return false
	}
}

func isNull(n query.Node) bool {
	return n.Kind() == query.KindConstant && n.ValueKind() == metadata.KindNull
}
