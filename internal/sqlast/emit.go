package sqlast

import (
	"fmt"
	"strings"
)

// Emit renders expr as SQL text for the given dialect. It is the only place
// that applies per-dialect syntax differences (identifier quoting, the
// DATE_TRUNC argument order, the INTERVAL literal form) to an already-parsed
// tree.
func Emit(expr Expr, dialect Dialect) string {
	var b strings.Builder

	emit(&b, expr, dialect)

	return b.String()
}

// Translate re-renders a SQL expression fragment from one dialect to
// another by parsing it in the source dialect and emitting it in the
// target one (spec.md §4.1 `translate`).
func Translate(sql string, from, to Dialect) (string, error) {
	expr, err := Parse(sql, from)
	if err != nil {
		return "", err
	}

	return Emit(expr, to), nil
}

func emit(b *strings.Builder, expr Expr, d Dialect) { //nolint:cyclop
	switch e := expr.(type) {
	case *Ident:
		emitIdent(b, e, d)
	case *Literal:
		emitLiteral(b, e)
	case *Star:
		b.WriteString("*")
	case *BinaryExpr:
		emit(b, e.Left, d)
		b.WriteString(" ")
		b.WriteString(e.Op)
		b.WriteString(" ")
		emit(b, e.Right, d)
	case *UnaryExpr:
		b.WriteString(e.Op)
		b.WriteString(" ")
		emit(b, e.Operand, d)
	case *ParenExpr:
		b.WriteString("(")
		emit(b, e.Inner, d)
		b.WriteString(")")
	case *FuncCall:
		emitFuncCall(b, e, d)
	case *CaseExpr:
		emitCase(b, e, d)
	case *BetweenExpr:
		emit(b, e.Operand, d)

		if e.Not {
			b.WriteString(" NOT BETWEEN ")
		} else {
			b.WriteString(" BETWEEN ")
		}

		emit(b, e.Low, d)
		b.WriteString(" AND ")
		emit(b, e.High, d)
	case *InExpr:
		emit(b, e.Operand, d)

		if e.Not {
			b.WriteString(" NOT IN (")
		} else {
			b.WriteString(" IN (")
		}

		for i, item := range e.List {
			if i > 0 {
				b.WriteString(", ")
			}

			emit(b, item, d)
		}

		b.WriteString(")")
	case *IsNullExpr:
		emit(b, e.Operand, d)

		if e.Not {
			b.WriteString(" IS NOT NULL")
		} else {
			b.WriteString(" IS NULL")
		}
	case *IntervalExpr:
		emitInterval(b, e, d)
	default:
		b.WriteString(fmt.Sprintf("/* unsupported node %T */", expr))
	}
}

func emitIdent(b *strings.Builder, e *Ident, d Dialect) {
	quote := quoteChar(d)

	for i, part := range e.Parts {
		if i > 0 {
			b.WriteString(".")
		}

		if needsQuoting(part) {
			b.WriteString(quote[0])
			b.WriteString(strings.ReplaceAll(part, quote[0], quote[0]+quote[0]))
			b.WriteString(quote[1])
		} else {
			b.WriteString(part)
		}
	}
}

// quoteChar returns the opening/closing quote pair for identifiers needing
// quoting in dialect d.
func quoteChar(d Dialect) [2]string {
	switch d {
	case MySQL, BigQuery:
		return [2]string{"`", "`"}
	default:
		return [2]string{`"`, `"`}
	}
}

func needsQuoting(identPart string) bool {
	for i, r := range identPart {
		switch {
		case r >= 'a' && r <= 'z', r == '_':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return true
		}
	}

	return identPart == ""
}

func emitLiteral(b *strings.Builder, e *Literal) {
	switch e.Kind {
	case LiteralString:
		b.WriteString("'")
		b.WriteString(strings.ReplaceAll(e.Value, "'", "''"))
		b.WriteString("'")
	case LiteralNumber:
		b.WriteString(e.Value)
	case LiteralBool:
		b.WriteString(strings.ToUpper(e.Value))
	case LiteralNull:
		b.WriteString("NULL")
	case LiteralParam:
		b.WriteString("{")
		b.WriteString(e.Value)
		b.WriteString("}")
	}
}

func emitFuncCall(b *strings.Builder, e *FuncCall, d Dialect) {
	if strings.EqualFold(e.Name, "date_trunc") && len(e.Args) == 2 {
		emitDateTrunc(b, e.Args[0], e.Args[1], d)
		return
	}

	b.WriteString(e.Name)
	b.WriteString("(")

	if e.Distinct {
		b.WriteString("DISTINCT ")
	}

	for i, a := range e.Args {
		if i > 0 {
			b.WriteString(", ")
		}

		emit(b, a, d)
	}

	b.WriteString(")")
}

// emitDateTrunc renders the canonical internal call DATE_TRUNC(unit_literal,
// column) into the dialect's native argument order (spec.md §4.9): Postgres/
// Snowflake/DuckDB take a quoted unit first, BigQuery takes the column first
// and a bare unit keyword second, MySQL has no DATE_TRUNC and is rendered via
// DATE_FORMAT-based truncation for day/month/year grains.
func emitDateTrunc(b *strings.Builder, unit, col Expr, d Dialect) {
	unitName := literalOrIdentText(unit)

	switch d {
	case BigQuery:
		b.WriteString("DATE_TRUNC(")
		emit(b, col, d)
		b.WriteString(", ")
		b.WriteString(strings.ToUpper(unitName))
		b.WriteString(")")
	case MySQL:
		emitMySQLTrunc(b, unitName, col)
	default: // Postgres, Snowflake, DuckDB
		b.WriteString("DATE_TRUNC('")
		b.WriteString(strings.ToLower(unitName))
		b.WriteString("', ")
		emit(b, col, d)
		b.WriteString(")")
	}
}

func literalOrIdentText(e Expr) string {
	switch v := e.(type) {
	case *Literal:
		return v.Value
	case *Ident:
		return v.Last()
	default:
		return ""
	}
}

// mysqlTruncFormats maps a granularity to a MySQL DATE_FORMAT mask whose
// output, re-parsed with STR_TO_DATE, truncates to that grain. Finer grains
// than day are handled by zeroing the remaining time components directly.
var mysqlTruncFormats = map[string]string{ //nolint:gochecknoglobals
	"year":    "%Y-01-01",
	"quarter": "", // handled specially below
	"month":   "%Y-%m-01",
	"week":    "",
	"day":     "%Y-%m-%d",
}

func emitMySQLTrunc(b *strings.Builder, unit string, col Expr) {
	unit = strings.ToLower(unit)

	switch unit {
	case "second":
		b.WriteString("DATE_FORMAT(")
		emit(b, col, MySQL)
		b.WriteString(", '%Y-%m-%d %H:%i:%s')")
	case "minute":
		b.WriteString("DATE_FORMAT(")
		emit(b, col, MySQL)
		b.WriteString(", '%Y-%m-%d %H:%i:00')")
	case "hour":
		b.WriteString("DATE_FORMAT(")
		emit(b, col, MySQL)
		b.WriteString(", '%Y-%m-%d %H:00:00')")
	case "week":
		b.WriteString("DATE_SUB(")
		emit(b, col, MySQL)
		b.WriteString(", INTERVAL WEEKDAY(")
		emit(b, col, MySQL)
		b.WriteString(") DAY)")
	case "quarter":
		b.WriteString("MAKEDATE(YEAR(")
		emit(b, col, MySQL)
		b.WriteString("), 1) + INTERVAL (QUARTER(")
		emit(b, col, MySQL)
		b.WriteString(") - 1) QUARTER")
	default:
		format, ok := mysqlTruncFormats[unit]
		if !ok {
			format = "%Y-%m-%d"
		}

		b.WriteString("STR_TO_DATE(DATE_FORMAT(")
		emit(b, col, MySQL)
		b.WriteString(", '")
		b.WriteString(format)
		b.WriteString("'), '%Y-%m-%d')")
	}
}

func emitCase(b *strings.Builder, e *CaseExpr, d Dialect) {
	b.WriteString("CASE")

	if e.Operand != nil {
		b.WriteString(" ")
		emit(b, e.Operand, d)
	}

	for _, w := range e.Whens {
		b.WriteString(" WHEN ")
		emit(b, w.Cond, d)
		b.WriteString(" THEN ")
		emit(b, w.Then, d)
	}

	if e.Else != nil {
		b.WriteString(" ELSE ")
		emit(b, e.Else, d)
	}

	b.WriteString(" END")
}

func emitInterval(b *strings.Builder, e *IntervalExpr, d Dialect) {
	switch d {
	case MySQL:
		b.WriteString("INTERVAL ")
		emit(b, e.Value, d)
		b.WriteString(" ")
		b.WriteString(strings.ToUpper(e.Unit))
	default:
		b.WriteString("INTERVAL '")
		emit(b, e.Value, d)
		b.WriteString(" ")
		b.WriteString(e.Unit)
		b.WriteString("'")
	}
}

// QuoteIdent quotes a single identifier part for dialect d if needed. Used
// by the planner when synthesising alias names outside of a parsed Expr.
func QuoteIdent(name string, d Dialect) string {
	quote := quoteChar(d)
	if !needsQuoting(name) {
		return name
	}

	return quote[0] + strings.ReplaceAll(name, quote[0], quote[0]+quote[0]) + quote[1]
}

// NullSafeDivide renders `CAST(num AS DOUBLE) / NULLIF(den, 0)`, the ratio
// metric's null-safe guard (spec.md §4.3).
func NullSafeDivide(num, den Expr, d Dialect) string {
	var b strings.Builder

	b.WriteString("CAST(")
	emit(&b, num, d)
	b.WriteString(" AS DOUBLE) / NULLIF(")
	emit(&b, den, d)
	b.WriteString(", 0)")

	return b.String()
}
