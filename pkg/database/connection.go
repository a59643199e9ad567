// Package database is the external execution collaborator (spec.md §1):
// it introspects column types for auto_dimensions (spec.md §6.4) and runs
// compiled SQL against a live database for the `query` CLI subcommand. It
// is never imported by internal/compiler/* — the core compiler only
// produces SQL text and never executes it.
package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/accented-ai/semcompile/internal/util"
)

// Pool wraps a Postgres connection pool.
type Pool struct {
	pool *pgxpool.Pool
}

func NewPoolFromURL(ctx context.Context, url string) (*Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, util.WrapError("parse pool config", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, util.WrapError("create connection pool", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, util.WrapError("ping database", err)
	}

	return &Pool{pool: pool}, nil
}

func (p *Pool) Close() {
	p.pool.Close()
}

func (p *Pool) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return p.pool.Query(ctx, sql, args...) //nolint:wrapcheck
}

func (p *Pool) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return p.pool.QueryRow(ctx, sql, args...)
}

func (p *Pool) CurrentDatabase(ctx context.Context) (string, error) {
	var dbName string

	err := p.pool.QueryRow(ctx, "SELECT current_database()").Scan(&dbName)
	if err != nil {
		return "", util.WrapError("get current database", err)
	}

	return dbName, nil
}

// ColumnTypes introspects a table's declared column types, keyed by column
// name, for auto_dimensions (spec.md §6.4): the loader maps each type
// through model.MapColumnType to synthesise a Dimension.
func (p *Pool) ColumnTypes(ctx context.Context, schema, table string) (map[string]string, error) {
	const query = `
SELECT column_name, data_type
FROM information_schema.columns
WHERE table_schema = $1 AND table_name = $2`

	rows, err := p.pool.Query(ctx, query, schema, table)
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
