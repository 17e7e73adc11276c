package sqlgen

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/nlstn/go-odata-filter/internal/query"
)

// Dialect names the SQL flavour statements are generated for.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
	DialectMySQL    Dialect = "mysql"
)

func (d Dialect) isPostgres() bool {
	return d == DialectPostgres || d == "postgresql"
}

// Statement accumulates the clauses of a SELECT over one entity set's table.
// Filter clauses are applied through Filter; the remaining builders take raw SQL fragments.
type Statement struct {
	db       *sql.DB
	dialect  Dialect
	table    string
	alias    string
	wheres   []whereClause
	joins    []string
	selects  []string
	orderBys []string
	limit    *int
	offset   int
	logger   *slog.Logger
}

// whereClause is a SQL condition with its positional arguments.
type whereClause struct {
	sql  string
	args []interface{}
}

// NewStatement creates an empty statement bound to db.
func NewStatement(db *sql.DB, dialect Dialect) *Statement {
	return &Statement{
		db:      db,
		dialect: dialect,
		logger:  slog.Default(),
	}
}

// FromClause creates a statement over the clause's entity set with the clause applied as
// its WHERE condition.
func FromClause(db *sql.DB, dialect Dialect, clause *query.FilterClause) (*Statement, error) {
	st := NewStatement(db, dialect)
	if err := st.Filter(clause); err != nil {
		return nil, err
	}
	return st, nil
}

// WithTable sets the table the statement reads from and the alias it is known by.
func (st *Statement) WithTable(table, alias string) *Statement {
	st.table = table
	st.alias = alias
	return st
}

// Filter translates clause and applies its joins and condition. The statement's table becomes
// the table of the clause's entity set, aliased as the root range variable.
func (st *Statement) Filter(clause *query.FilterClause) error {
	tr, err := Translate(clause, st.dialect)
	if err != nil {
		return err
	}
	st.WithTable(tr.Table, RootAlias)
	for _, join := range tr.Joins {
		st.Join(join)
	}
	st.Where(tr.Where, tr.Args...)
	st.logger.Debug("Applied filter to statement", "table", tr.Table, "joins", len(tr.Joins), "args", len(tr.Args))
	return nil
}

// Where adds a WHERE condition to the statement.
func (st *Statement) Where(sql string, args ...interface{}) *Statement {
	st.wheres = append(st.wheres, whereClause{sql: sql, args: args})
	return st
}

// Join adds a JOIN clause to the statement.
func (st *Statement) Join(sql string) *Statement {
	st.joins = append(st.joins, sql)
	return st
}

// Select sets the selected columns. The default is every column of the aliased table.
func (st *Statement) Select(cols ...string) *Statement {
	st.selects = append(st.selects, cols...)
	return st
}

// OrderBy adds an ORDER BY term.
func (st *Statement) OrderBy(order string) *Statement {
	st.orderBys = append(st.orderBys, order)
	return st
}

// Limit sets the LIMIT.
func (st *Statement) Limit(n int) *Statement {
	st.limit = &n
	return st
}

// Offset sets the OFFSET.
func (st *Statement) Offset(n int) *Statement {
	st.offset = n
	return st
}

// WithLogger sets the logger used for query debug output.
func (st *Statement) WithLogger(logger *slog.Logger) *Statement {
	if logger != nil {
		st.logger = logger
	}
	return st
}

// ToSQL builds the SELECT statement and its positional arguments.
func (st *Statement) ToSQL() (string, []interface{}) {
	var sb strings.Builder

	sb.WriteString("SELECT ")
	switch {
	case len(st.selects) > 0:
		sb.WriteString(strings.Join(st.selects, ", "))
	case st.alias != "":
		sb.WriteString(st.alias + ".*")
	default:
		sb.WriteString("*")
	}

	args := st.writeFrom(&sb)

	if len(st.orderBys) > 0 {
		sb.WriteString(" ORDER BY ")
		sb.WriteString(strings.Join(st.orderBys, ", "))
	}

	if st.limit != nil {
		fmt.Fprintf(&sb, " LIMIT %d", *st.limit)
	} else if st.offset > 0 && st.dialect == DialectMySQL {
		// MySQL requires LIMIT when OFFSET is used
		sb.WriteString(" LIMIT 2147483647")
	} else if st.offset > 0 && st.dialect == DialectSQLite {
		sb.WriteString(" LIMIT -1")
	}
	if st.offset > 0 {
		fmt.Fprintf(&sb, " OFFSET %d", st.offset)
	}

	return st.placeholders(sb.String()), args
}

// ToCountSQL builds a COUNT(*) statement over the same rows as ToSQL, ignoring paging.
func (st *Statement) ToCountSQL() (string, []interface{}) {
	var sb strings.Builder
	sb.WriteString("SELECT COUNT(*)")
	args := st.writeFrom(&sb)
	return st.placeholders(sb.String()), args
}

// writeFrom writes the FROM, JOIN and WHERE clauses and returns the WHERE arguments. With more
// than one condition each is parenthesized before joining with AND.
func (st *Statement) writeFrom(sb *strings.Builder) []interface{} {
	if st.table != "" {
		sb.WriteString(" FROM ")
		sb.WriteString(quoteIdent(st.dialect, st.table))
		if st.alias != "" {
			sb.WriteString(" AS ")
			sb.WriteString(st.alias)
		}
	}
	for _, join := range st.joins {
		sb.WriteString(" ")
		sb.WriteString(join)
	}

	var args []interface{}
	if len(st.wheres) > 0 {
		sb.WriteString(" WHERE ")
		conds := make([]string, 0, len(st.wheres))
		for _, w := range st.wheres {
			if len(st.wheres) > 1 {
				conds = append(conds, "("+w.sql+")")
			} else {
				conds = append(conds, w.sql)
			}
			args = append(args, w.args...)
		}
		sb.WriteString(strings.Join(conds, " AND "))
	}
	return args
}

func (st *Statement) placeholders(query string) string {
	if st.dialect.isPostgres() {
		return convertToPostgresPlaceholders(query)
	}
	return query
}

// QueryContext executes the statement and returns the result rows.
func (st *Statement) QueryContext(ctx context.Context) (*sql.Rows, error) {
	query, args := st.ToSQL()
	st.logger.Debug("Executing query", "sql", query, "args", args)
	return st.db.QueryContext(ctx, query, args...)
}

// CountContext executes the count statement and returns the number of matching rows.
func (st *Statement) CountContext(ctx context.Context) (int64, error) {
	query, args := st.ToCountSQL()
	st.logger.Debug("Executing count query", "sql", query, "args", args)

	var count int64
	if err := st.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// convertToPostgresPlaceholders converts ? placeholders to $1, $2, ... for PostgreSQL
func convertToPostgresPlaceholders(query string) string {
	var result strings.Builder
	placeholderNum := 1

	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			fmt.Fprintf(&result, "$%d", placeholderNum)
			placeholderNum++
		} else {
			result.WriteByte(query[i])
		}
	}

	return result.String()
}

// quoteIdent quotes a table or column name for dialect.
func quoteIdent(dialect Dialect, name string) string {
	if dialect == DialectMySQL {
		return "`" + strings.ReplaceAll(name, "`", "``") + "`"
	}
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
