package sqlast

import "regexp"

// Walk returns every node in expr's subtree in pre-order, including expr
// itself. It is the "iterator of nodes" spec.md §4.1 describes; callers that
// only need identifiers or aggregate detection use the narrower helpers
// below instead of walking the whole tree themselves.
func Walk(expr Expr) []Expr {
	if expr == nil {
		return nil
	}

	nodes := []Expr{expr}

	switch e := expr.(type) {
	case *Ident, *Literal, *Star:
		// leaves
	case *BinaryExpr:
		nodes = append(nodes, Walk(e.Left)...)
		nodes = append(nodes, Walk(e.Right)...)
	case *UnaryExpr:
		nodes = append(nodes, Walk(e.Operand)...)
	case *ParenExpr:
		nodes = append(nodes, Walk(e.Inner)...)
	case *FuncCall:
		for _, a := range e.Args {
			nodes = append(nodes, Walk(a)...)
		}
	case *CaseExpr:
		if e.Operand != nil {
			nodes = append(nodes, Walk(e.Operand)...)
		}

		for _, w := range e.Whens {
			nodes = append(nodes, Walk(w.Cond)...)
			nodes = append(nodes, Walk(w.Then)...)
		}

		if e.Else != nil {
			nodes = append(nodes, Walk(e.Else)...)
		}
	case *BetweenExpr:
		nodes = append(nodes, Walk(e.Operand)...)
		nodes = append(nodes, Walk(e.Low)...)
		nodes = append(nodes, Walk(e.High)...)
	case *InExpr:
		nodes = append(nodes, Walk(e.Operand)...)

		for _, item := range e.List {
			nodes = append(nodes, Walk(item)...)
		}
	case *IsNullExpr:
		nodes = append(nodes, Walk(e.Operand)...)
	case *IntervalExpr:
		nodes = append(nodes, Walk(e.Value)...)
	}

	return nodes
}

// HasAggregate reports whether expr contains an aggregate function call
// anywhere in its subtree (spec.md §4.1).
func HasAggregate(expr Expr) bool {
	for _, n := range Walk(expr) {
		if call, ok := n.(*FuncCall); ok && IsAggregateFunctionName(lastSegment(call.Name)) {
			return true
		}
	}

	return false
}

func lastSegment(name string) string {
	for i := len(name) - 1; i >= 0; i-- {
		if name[i] == '.' {
			return name[i+1:]
		}
	}

	return name
}

// aggregateCallPattern backs the regex fallback spec.md §4.1 requires when
// parsing fails: the listed aggregate names immediately followed by "(".
var aggregateCallPattern = regexp.MustCompile(
	`(?i)\b(sum|avg|count|min|max|median|stddev(?:_pop|_samp)?|variance|var_pop|var_samp|approx_distinct|approx_quantile|mode|quantile|percentile)\s*\(`,
)

// HasAggregateFallback scans raw SQL text for an aggregate-function call
// using a regex, for use when Parse fails (spec.md §4.1, §7 "the core
// recovers locally only from parser failures in aggregate-detection").
func HasAggregateFallback(sql string) bool {
	return aggregateCallPattern.MatchString(sql)
}

// Identifiers returns every distinct Ident referenced in expr, in
// first-encountered order. Used by the filter classifier (spec.md §4.4) to
// decide which model(s)/columns a predicate touches.
func Identifiers(expr Expr) []*Ident {
	seen := make(map[string]bool)

	var out []*Ident

	for _, n := range Walk(expr) {
		ident, ok := n.(*Ident)
		if !ok {
			continue
		}

		key := ident.Qualifier() + "." + ident.Last()
		if seen[key] {
			continue
		}

		seen[key] = true

		out = append(out, ident)
	}

	return out
}

// RewriteIdentifiers returns a copy of expr with every Ident node replaced by
// f(ident). Used by derived-metric composition (spec.md §4.3, §9) to
// substitute a dependency name with a reference to its computed column,
// respecting token boundaries by construction (identifiers are AST nodes,
// never substrings).
func RewriteIdentifiers(expr Expr, f func(*Ident) *Ident) Expr {
	switch e := expr.(type) {
	case nil:
		return nil
	case *Ident:
		return f(e)
	case *Literal, *Star:
		return e
	case *BinaryExpr:
		return &BinaryExpr{Op: e.Op, Left: RewriteIdentifiers(e.Left, f), Right: RewriteIdentifiers(e.Right, f)}
	case *UnaryExpr:
		return &UnaryExpr{Op: e.Op, Operand: RewriteIdentifiers(e.Operand, f)}
	case *ParenExpr:
		return &ParenExpr{Inner: RewriteIdentifiers(e.Inner, f)}
	case *FuncCall:
		args := make([]Expr, len(e.Args))
		for i, a := range e.Args {
			args[i] = RewriteIdentifiers(a, f)
		}

		return &FuncCall{Name: e.Name, Distinct: e.Distinct, Args: args}
	case *CaseExpr:
		var operand Expr
		if e.Operand != nil {
			operand = RewriteIdentifiers(e.Operand, f)
		}

		whens := make([]WhenClause, len(e.Whens))
		for i, w := range e.Whens {
			whens[i] = WhenClause{Cond: RewriteIdentifiers(w.Cond, f), Then: RewriteIdentifiers(w.Then, f)}
		}

		var elseExpr Expr
		if e.Else != nil {
			elseExpr = RewriteIdentifiers(e.Else, f)
		}

		return &CaseExpr{Operand: operand, Whens: whens, Else: elseExpr}
	case *BetweenExpr:
		return &BetweenExpr{
			Operand: RewriteIdentifiers(e.Operand, f),
			Not:     e.Not,
			Low:     RewriteIdentifiers(e.Low, f),
			High:    RewriteIdentifiers(e.High, f),
		}
	case *InExpr:
		list := make([]Expr, len(e.List))
		for i, item := range e.List {
			list[i] = RewriteIdentifiers(item, f)
		}

		return &InExpr{Operand: RewriteIdentifiers(e.Operand, f), Not: e.Not, List: list}
	case *IsNullExpr:
		return &IsNullExpr{Operand: RewriteIdentifiers(e.Operand, f), Not: e.Not}
	case *IntervalExpr:
		return &IntervalExpr{Value: RewriteIdentifiers(e.Value, f), Unit: e.Unit}
	default:
		return expr
	}
}
