// Package dialect is the dialect driver (spec.md §4.9): it accepts
// canonical-form SQL text or an already-parsed expression and renders it
// for a target dialect, centralising every dialect-specific rewrite inside
// the SQL AST facility's emit/translate operations.
package dialect

import (
	"fmt"

	"github.com/accented-ai/semcompile/internal/sqlast"
)

// Dialect re-exports sqlast.Dialect so callers outside internal/sqlast
// don't need to import it directly for the common case of naming a target.
type Dialect = sqlast.Dialect

const (
	Postgres  = sqlast.Postgres
	MySQL     = sqlast.MySQL
	Snowflake = sqlast.Snowflake
	BigQuery  = sqlast.BigQuery
	DuckDB    = sqlast.DuckDB
)

// Parse validates a dialect name from CLI input or a loaded model file
// (spec.md §6.1's `dialect` compile parameter).
func Parse(name string) (Dialect, error) {
	d := Dialect(name)
	if !d.Valid() {
		return "", fmt.Errorf("%w: %q", sqlast.ErrUnknownDialect, name)
	}

	return d, nil
}

// Render re-renders a canonical SQL fragment (as emitted by the planner in
// Postgres-shaped canonical form) for the target dialect.
func Render(canonicalSQL string, target Dialect) (string, error) {
	return sqlast.Translate(canonicalSQL, Postgres, target) //nolint:wrapcheck
}

// RenderExpr emits an already-parsed expression directly in the target
// dialect, skipping the parse round-trip Render needs for raw text.
func RenderExpr(expr sqlast.Expr, target Dialect) string {
	return sqlast.Emit(expr, target)
}

// QuoteIdent quotes a bare identifier part for target if it needs quoting.
func QuoteIdent(name string, target Dialect) string {
	return sqlast.QuoteIdent(name, target)
}
