package filter

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/accented-ai/semcompile/internal/sqlast"
)

var (
	lastUnitPattern = regexp.MustCompile(`(?i)^last\s+(\d+)\s+(day|days|week|weeks|month|months|year|years)$`)
	thisUnitPattern = regexp.MustCompile(`(?i)^this\s+(week|month|quarter|year)$`)
)

// currentDateIdent is the dialect-neutral CURRENT_DATE reference. Lower-case
// so the emitter's quoting heuristic treats it as a bare, unquoted keyword
// rather than a quoted identifier (every SQL dialect in spec.md §4.9 accepts
// the keyword case-insensitively).
func currentDateIdent() *sqlast.Ident { return sqlast.NewIdent("current_date") }

// ExpandRelativeDates walks expr and replaces any binary comparison whose
// right-hand side is a recognised relative-date string literal with a
// dialect-neutral expression (spec.md §4.5). Unrecognised literals, and any
// literal compared with an operator other than the ones the table covers,
// pass through unchanged.
func ExpandRelativeDates(expr sqlast.Expr) sqlast.Expr {
	bin, ok := expr.(*sqlast.BinaryExpr)
	if !ok {
		return rewriteChildren(expr)
	}

	left := ExpandRelativeDates(bin.Left)
	right := ExpandRelativeDates(bin.Right)

	if lit, ok := right.(*sqlast.Literal); ok && lit.Kind == sqlast.LiteralString {
		if expanded, ok := expandLiteral(left, bin.Op, lit.Value); ok {
			return expanded
		}
	}

	return &sqlast.BinaryExpr{Op: bin.Op, Left: left, Right: right}
}

// rewriteChildren recurses into non-binary nodes so a relative-date literal
// nested inside a CASE, function call, or parenthesised group is still found.
func rewriteChildren(expr sqlast.Expr) sqlast.Expr { //nolint:cyclop
	switch e := expr.(type) {
	case *sqlast.ParenExpr:
		return &sqlast.ParenExpr{Inner: ExpandRelativeDates(e.Inner)}
	case *sqlast.UnaryExpr:
		return &sqlast.UnaryExpr{Op: e.Op, Operand: ExpandRelativeDates(e.Operand)}
	case *sqlast.FuncCall:
		args := make([]sqlast.Expr, len(e.Args))
		for i, a := range e.Args {
			args[i] = ExpandRelativeDates(a)
		}

		return &sqlast.FuncCall{Name: e.Name, Distinct: e.Distinct, Args: args}
	case *sqlast.CaseExpr:
		whens := make([]sqlast.WhenClause, len(e.Whens))
		for i, w := range e.Whens {
			whens[i] = sqlast.WhenClause{Cond: ExpandRelativeDates(w.Cond), Then: ExpandRelativeDates(w.Then)}
		}

		var elseExpr sqlast.Expr
		if e.Else != nil {
			elseExpr = ExpandRelativeDates(e.Else)
		}

		return &sqlast.CaseExpr{Operand: e.Operand, Whens: whens, Else: elseExpr}
	case *sqlast.BetweenExpr:
		return &sqlast.BetweenExpr{
			Operand: ExpandRelativeDates(e.Operand),
			Not:     e.Not,
			Low:     ExpandRelativeDates(e.Low),
			High:    ExpandRelativeDates(e.High),
		}
	default:
		return expr
	}
}

// expandLiteral implements spec.md §4.5's expansion table for a single
// right-hand-side string literal compared against left via op.
func expandLiteral(left sqlast.Expr, op, value string) (sqlast.Expr, bool) { //nolint:cyclop
	normalized := strings.TrimSpace(value)

	switch {
	case strings.EqualFold(normalized, "today"):
		return &sqlast.BinaryExpr{Op: op, Left: left, Right: currentDateIdent()}, true

	case strings.EqualFold(normalized, "yesterday"):
		return &sqlast.BinaryExpr{Op: op, Left: left, Right: daysAgo(1)}, true

	case lastUnitPattern.MatchString(normalized):
		m := lastUnitPattern.FindStringSubmatch(normalized)
		n, err := strconv.Atoi(m[1])
		if err != nil {
			return nil, false
		}

		unit := singularUnit(m[2])
		if unit == "day" {
			return &sqlast.BinaryExpr{Op: op, Left: left, Right: daysAgo(n)}, true
		}

		return &sqlast.BinaryExpr{
			Op:   op,
			Left: left,
			Right: &sqlast.BinaryExpr{
				Op:   "-",
				Left: currentDateIdent(),
				Right: &sqlast.IntervalExpr{
					Value: &sqlast.Literal{Kind: sqlast.LiteralNumber, Value: strconv.Itoa(n)},
					Unit:  unit,
				},
			},
		}, true

	case thisUnitPattern.MatchString(normalized) && op == "=":
		unit := strings.ToLower(thisUnitPattern.FindStringSubmatch(normalized)[1])
		trunc := dateTrunc(unit)

		return &sqlast.BinaryExpr{
			Op:   "AND",
			Left: &sqlast.BinaryExpr{Op: ">=", Left: left, Right: trunc},
			Right: &sqlast.BinaryExpr{
				Op:   "<",
				Left: left,
				Right: &sqlast.BinaryExpr{
					Op:   "+",
					Left: dateTrunc(unit),
					Right: &sqlast.IntervalExpr{
						Value: &sqlast.Literal{Kind: sqlast.LiteralNumber, Value: "1"},
						Unit:  unit,
					},
				},
			},
		}, true

	default:
		return nil, false
	}
}

func daysAgo(n int) sqlast.Expr {
	return &sqlast.BinaryExpr{
		Op:    "-",
		Left:  currentDateIdent(),
		Right: &sqlast.Literal{Kind: sqlast.LiteralNumber, Value: strconv.Itoa(n)},
	}
}

// dateTrunc builds the canonical internal call shape emit.go's emitDateTrunc
// expects: DATE_TRUNC(unit_literal, column), reordered per-dialect at emit time.
func dateTrunc(unit string) sqlast.Expr {
	return &sqlast.FuncCall{
		Name: "date_trunc",
		Args: []sqlast.Expr{
			&sqlast.Literal{Kind: sqlast.LiteralString, Value: unit},
			currentDateIdent(),
		},
	}
}

func singularUnit(unit string) string {
	return strings.TrimSuffix(strings.ToLower(unit), "s")
}
