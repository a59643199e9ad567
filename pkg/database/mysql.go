package database

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/go-sql-driver/mysql" // registers the "mysql" database/sql driver

	"github.com/accented-ai/semcompile/internal/util"
)

// MySQLPool is the MySQL/MariaDB sibling of Pool, kept as a thin
// database/sql wrapper rather than a pgx-style pool since go-sql-driver/mysql
// only implements database/sql (spec.md §4.9's MySQL dialect target).
type MySQLPool struct {
	db *sql.DB
}

func NewMySQLPoolFromDSN(ctx context.Context, dsn string) (*MySQLPool, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, util.WrapError("open mysql connection", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, util.WrapError("ping mysql database", err)
	}

	return &MySQLPool{db: db}, nil
}

func (p *MySQLPool) Close() error {
	return util.WrapError("close mysql connection", p.db.Close())
}

func (p *MySQLPool) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	rows, err := p.db.QueryContext(ctx, query, args...)
	return rows, util.WrapError("execute query", err)
}

// ColumnTypes mirrors Pool.ColumnTypes for MySQL's information_schema.
func (p *MySQLPool) ColumnTypes(ctx context.Context, schema, table string) (map[string]string, error) {
	const query = `
SELECT column_name, data_type
FROM information_schema.columns
WHERE table_schema = ? AND table_name = ?`

	rows, err := p.db.QueryContext(ctx, query, schema, table)
	if err != nil {
		return nil, util.WrapError(fmt.Sprintf("introspect columns for %s.%s", schema, table), err)
	}
	defer rows.Close()

	types := make(map[string]string)

	for rows.Next() {
		var column, dataType string

		if err := rows.Scan(&column, &dataType); err != nil {
			return nil, util.WrapError("scan column row", err)
		}

		types[column] = dataType
	}

	if err := rows.Err(); err != nil {
		return nil, util.WrapError("iterate column rows", err)
	}

	return types, nil
}
