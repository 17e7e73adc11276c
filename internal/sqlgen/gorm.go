package sqlgen

import (
	"fmt"

	"github.com/nlstn/go-odata-filter/internal/query"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// Scope returns a GORM scope that restricts a query to the rows matching clause. The query
// reads from the clause's entity set table aliased as RootAlias; translation errors are added
// to the returned *gorm.DB.
func Scope(clause *query.FilterClause, dialect Dialect) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		tr, err := Translate(clause, dialect)
		if err != nil {
			_ = db.AddError(err)
			return db
		}
		db = db.Table(quoteIdent(dialect, tr.Table) + " AS " + RootAlias).Select(RootAlias + ".*")
		for _, join := range tr.Joins {
			db = db.Joins(join)
		}
		return db.Where("("+tr.Where+")", tr.Args...)
	}
}

// Dialector returns the GORM dialector for dialect opened on dsn.
func Dialector(dialect Dialect, dsn string) (gorm.Dialector, error) {
	switch {
	case dialect == DialectSQLite:
		return sqlite.Open(dsn), nil
	case dialect.isPostgres():
		return postgres.Open(dsn), nil
	default:
		return nil, fmt.Errorf("unsupported dialect '%s'", dialect)
	}
}
