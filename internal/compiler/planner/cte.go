package planner

import (
	"fmt"
	"strings"

	"github.com/accented-ai/semcompile/internal/model"
	"github.com/accented-ai/semcompile/internal/sqlast"
)

// cteDimension is one dimension projected in a model's CTE.
type cteDimension struct {
	Dim         *model.Dimension
	Granularity model.Granularity // zero value unless Dim.Kind == model.Time and a rollup grain was requested
	OutputName  string
}

// cteMetric is one base aggregate metric projected in raw form (spec.md
// §4.7: "every aggregate is expressed as <inner_expr> AS <metric>_raw").
type cteMetric struct {
	Metric     *model.Metric
	OutputName string
}

// ctePlan is everything buildModelCTE needs to render one model's CTE.
// Column and filter identifiers are expected already qualified the way
// they'll resolve inside the CTE's own FROM clause, where the model is
// aliased as its own name.
type ctePlan struct {
	Model         *model.Model
	Dimensions    []cteDimension
	Metrics       []cteMetric
	SilentColumns []string // bare column names a pushdown filter or join key needs but no dimension/metric projects
	Where         []sqlast.Expr
	// Rollup is set when routePreAggregation matched a materialised rollup
	// for this model (spec.md §4.6 "rewrites the plan to hit it"): the CTE
	// reads from the rollup table instead of the base table, and every
	// dimension/metric column below is sourced from the rollup's own
	// renamed columns rather than re-derived from the raw source.
	Rollup *model.PreAggregation
}

// buildModelCTE renders "<model>_cte AS (...)" per spec.md §4.7's per-model
// CTE structure: primary key, each dimension (DATE_TRUNC-rewritten if a
// time rollup grain was requested), each requested metric's CASE-WHEN
// filtered raw form, silent columns, and that model's own pushdown
// predicates as WHERE — or, when plan.Rollup is set, the equivalent
// rollup-sourced columns and FROM clause (spec.md §6.5).
func buildModelCTE(plan ctePlan, dialect sqlast.Dialect) (string, error) {
	m := plan.Model
	pa := plan.Rollup

	cols := make([]string, 0, len(plan.Dimensions)+len(plan.Metrics)*2+len(plan.SilentColumns)+1)

	if pa == nil {
		for _, pk := range m.PrimaryKeyColumns() {
			cols = append(cols, fmt.Sprintf("%s AS %s", pk, pk))
		}
	}

	for _, d := range plan.Dimensions {
		var (
			expr sqlast.Expr
			err  error
		)

		if pa != nil {
			expr = rollupDimensionExpr(d, pa)
		} else {
			expr, err = dimensionExpr(d)
			if err != nil {
				return "", fmt.Errorf("model %q dimension %q: %w", m.Name, d.Dim.Name, err)
			}
		}

		cols = append(cols, fmt.Sprintf("%s AS %s", sqlast.Emit(expr, dialect), d.OutputName))
	}

	for _, mc := range plan.Metrics {
		if pa != nil {
			primary, secondary, err := rollupMetricRawExpr(m, mc.Metric, pa)
			if err != nil {
				return "", fmt.Errorf("model %q metric %q: %w", m.Name, mc.Metric.Name, err)
			}

			cols = append(cols, fmt.Sprintf("%s AS %s", primary, mc.OutputName))

			if secondary != "" {
				cols = append(cols, fmt.Sprintf("%s AS %s", secondary, rollupAvgCountAlias(mc.OutputName)))
			}

			continue
		}

		expr, err := metricRawExpr(plan, mc.Metric, dialect)
		if err != nil {
			return "", fmt.Errorf("model %q metric %q: %w", m.Name, mc.Metric.Name, err)
		}

		cols = append(cols, fmt.Sprintf("%s AS %s", expr, mc.OutputName))
	}

	seen := make(map[string]bool, len(cols))
	for _, c := range cols {
		seen[c] = true
	}

	silentColumns := plan.SilentColumns
	if pa != nil {
		silentColumns = rollupColumnNames(silentColumns, pa)
	}

	for _, col := range silentColumns {
		aliased := fmt.Sprintf("%s AS %s", col, col)
		if seen[aliased] {
			continue
		}

		seen[aliased] = true
		cols = append(cols, aliased)
	}

	var b strings.Builder

	fmt.Fprintf(&b, "%s_cte AS (\n  SELECT\n", m.Name)

	for i, c := range cols {
		if i > 0 {
			b.WriteString(",\n")
		}

		b.WriteString("    ")
		b.WriteString(c)
	}

	from := fmt.Sprintf("%s AS %s", m.FromClause(), m.Name)
	if pa != nil {
		from = fmt.Sprintf("%s AS %s", pa.TableName(m.Schema(), m.Name), m.Name)
	}

	fmt.Fprintf(&b, "\n  FROM %s", from)

	where := plan.Where
	if pa != nil {
		where = rollupWhereExprs(where, pa)
	}

	if len(where) > 0 {
		b.WriteString("\n  WHERE ")

		for i, w := range where {
			if i > 0 {
				b.WriteString(" AND ")
			}

			b.WriteString(sqlast.Emit(w, dialect))
		}
	}

	b.WriteString("\n)")

	return b.String(), nil
}

// rollupDimensionExpr renders one dimension's CTE-level source expression
// when the owning model routed to a matched rollup: the rollup's own
// renamed time column (spec.md §6.5's "<time_dim>_<granularity>"),
// re-bucketed with DATE_TRUNC only if a coarser grain than the rollup's own
// was requested, or any other retained dimension verbatim — the rollup
// never materialises the base table's raw time column under its original
// name, so dimensionExpr's base-table parsing doesn't apply here.
func rollupDimensionExpr(d cteDimension, pa *model.PreAggregation) sqlast.Expr {
	if d.Dim.Kind == model.Time && d.Dim.Name == pa.TimeDimension {
		var col sqlast.Expr = sqlast.NewIdent(pa.TimeColumn())

		if d.Granularity != "" && d.Granularity != pa.Granularity {
			return &sqlast.FuncCall{
				Name: "date_trunc",
				Args: []sqlast.Expr{
					&sqlast.Literal{Kind: sqlast.LiteralString, Value: string(d.Granularity)},
					col,
				},
			}
		}

		return col
	}

	return sqlast.NewIdent(d.Dim.Name)
}

// rollupAvgCountAlias names the extra raw column an avg metric's sibling
// count measure is projected under, alongside the sibling sum under the
// metric's own "<metric>_raw" name.
func rollupAvgCountAlias(rawCol string) string {
	return rawCol + "_count"
}

// rollupSiblingSum finds a sum metric on m aggregating the same inner
// expression as sql — the same sibling an avg metric needs to derive from a
// rollup (spec.md §4.6 rule 4), mirroring internal/compiler/preagg's
// eligibility check so the column this projects matches what the matcher
// already verified was materialised.
func rollupSiblingSum(m *model.Model, sql string) (string, bool) {
	for i := range m.Metrics {
		if m.Metrics[i].Agg == model.Sum && m.Metrics[i].SQL == sql {
			return m.Metrics[i].Name, true
		}
	}

	return "", false
}

// rollupSiblingCount finds any row-count metric on m.
func rollupSiblingCount(m *model.Model) (string, bool) {
	for i := range m.Metrics {
		if m.Metrics[i].Agg == model.Count {
			return m.Metrics[i].Name, true
		}
	}

	return "", false
}

// rollupMetricRawExpr renders one metric's CTE-level raw column(s) when
// sourced from a matched rollup (spec.md §4.6 rule 4, §6.5): a bare
// reference to the rollup's "<measure>_raw" column for every directly
// materialisable aggregate, or — for avg, which a rollup never materialises
// directly — the sibling sum and count raw columns, returned separately so
// the outer aggregation layer can re-derive the average as SUM(sum)/SUM
// (count) rather than averaging the per-rollup-row averages.
func rollupMetricRawExpr(m *model.Model, mt *model.Metric, pa *model.PreAggregation) (primary, secondary string, err error) {
	if mt.Agg != model.Avg {
		return pa.MeasureColumn(mt.Name), "", nil
	}

	sumName, hasSum := rollupSiblingSum(m, mt.SQL)
	countName, hasCount := rollupSiblingCount(m)

	if !hasSum || !hasCount {
		return "", "", fmt.Errorf("metric %q: %w: rollup %q has no materialised sum/count sibling", mt.Name, ErrRollupMeasureNotDerivable, pa.Name)
	}

	return pa.MeasureColumn(sumName), pa.MeasureColumn(countName), nil
}

// rollupColumnNames renames any silent column the rollup projects under a
// different name — only the time dimension is ever renamed (spec.md §6.5).
func rollupColumnNames(cols []string, pa *model.PreAggregation) []string {
	if pa.TimeDimension == "" {
		return cols
	}

	out := make([]string, len(cols))

	for i, col := range cols {
		if col == pa.TimeDimension {
			out[i] = pa.TimeColumn()
			continue
		}

		out[i] = col
	}

	return out
}

// rollupWhereExprs rewrites every pushdown predicate's reference to the
// model's own time dimension column to the rollup's renamed time column —
// the only column name a matched rollup ever changes (spec.md §6.5).
func rollupWhereExprs(where []sqlast.Expr, pa *model.PreAggregation) []sqlast.Expr {
	if pa.TimeDimension == "" || len(where) == 0 {
		return where
	}

	out := make([]sqlast.Expr, len(where))

	for i, w := range where {
		out[i] = sqlast.RewriteIdentifiers(w, func(id *sqlast.Ident) *sqlast.Ident {
			if id.Last() != pa.TimeDimension {
				return id
			}

			if q := id.Qualifier(); q != "" {
				return sqlast.NewIdent(q, pa.TimeColumn())
			}

			return sqlast.NewIdent(pa.TimeColumn())
		})
	}

	return out
}

// dimensionExpr parses a dimension's source expression and, when a
// granularity was requested for a time dimension, wraps it in the canonical
// DATE_TRUNC(unit, expr) call shape emit.go's emitDateTrunc expects,
// matching the pattern established by internal/compiler/filter's relative-
// date expansion.
func dimensionExpr(d cteDimension) (sqlast.Expr, error) {
	expr, err := sqlast.Parse(d.Dim.Expr(), sqlast.Postgres)
	if err != nil {
		return nil, fmt.Errorf("%w", err)
	}

	if d.Dim.Kind == model.Time && d.Granularity != "" {
		return &sqlast.FuncCall{
			Name: "date_trunc",
			Args: []sqlast.Expr{
				&sqlast.Literal{Kind: sqlast.LiteralString, Value: string(d.Granularity)},
				expr,
			},
		}, nil
	}

	return expr, nil
}

// compositeKeySeparator joins CAST-to-text primary key columns for a
// composite-key count_distinct metric (SPEC_FULL.md §4): an unlikely-to-
// occur-in-real-data separator, matching the conservative choice of
// explicitly casting every column to text first rather than relying on
// implicit coercion across heterogeneous column types.
const compositeKeySeparator = "'-\x1f-'"

// metricRawExpr renders one base aggregate metric's CTE-level raw column:
// the literal 1 for count-with-no-inner-expression (spec.md §3, §8), a
// CONCAT of CAST-to-text primary key columns for a count_distinct metric
// with no inner sql on a model with a composite primary key (SPEC_FULL.md
// §4 — COUNT(DISTINCT ...) over a row-value tuple isn't portable across
// dialects), or the declared inner expression — each wrapped in CASE WHEN
// for every declared metric-local filter (spec.md §3, §4.4) and, when
// non_additive_dimension is set, CASE-WHEN-guarded by nonAdditiveGuard so
// only the most-recent row per partition contributes (SPEC_FULL.md §4).
// "{model}" in metric-local filters is substituted for the owning model's
// own name — it is also the CTE's FROM alias, matching the Segment.SQL
// templating convention.
func metricRawExpr(plan ctePlan, m *model.Metric, dialect sqlast.Dialect) (string, error) {
	modelAlias := plan.Model.Name

	inner, err := metricRawInnerExpr(plan, m, dialect)
	if err != nil {
		return "", err
	}

	conds := make([]string, 0, len(m.Filters)+1)

	for _, f := range m.Filters {
		templated := strings.ReplaceAll(f, "{model}", modelAlias)

		expr, err := sqlast.Parse(templated, sqlast.Postgres)
		if err != nil {
			return "", fmt.Errorf("metric %q filter %q: %w", m.Name, f, err)
		}

		conds = append(conds, sqlast.Emit(expr, dialect))
	}

	if m.NonAdditiveDimension != "" {
		guard, err := nonAdditiveGuard(plan, m, dialect)
		if err != nil {
			return "", err
		}

		conds = append(conds, guard)
	}

	if len(conds) == 0 {
		return inner, nil
	}

	return fmt.Sprintf("CASE WHEN %s THEN %s END", strings.Join(conds, " AND "), inner), nil
}

// metricRawInnerExpr renders the raw, unfiltered inner expression for one
// metric: composite-key count_distinct and count-with-no-sql are special
// cases that have no literal SQL to parse (spec.md §3, §8; SPEC_FULL.md §4).
func metricRawInnerExpr(plan ctePlan, m *model.Metric, dialect sqlast.Dialect) (string, error) {
	if m.Agg == model.CountDistinct && m.SQL == "" {
		pkCols := plan.Model.PrimaryKeyColumns()
		if len(pkCols) == 1 {
			return pkCols[0], nil
		}

		parts := make([]string, 0, len(pkCols)*2-1)

		for i, col := range pkCols {
			if i > 0 {
				parts = append(parts, compositeKeySeparator)
			}

			parts = append(parts, fmt.Sprintf("CAST(%s AS TEXT)", col))
		}

		return fmt.Sprintf("CONCAT(%s)", strings.Join(parts, ", ")), nil
	}

	if m.IsCountWithNoSQL() {
		return "1", nil
	}

	expr, err := sqlast.Parse(m.SQL, sqlast.Postgres)
	if err != nil {
		return "", fmt.Errorf("metric %q sql: %w", m.Name, err)
	}

	return sqlast.Emit(expr, dialect), nil
}
