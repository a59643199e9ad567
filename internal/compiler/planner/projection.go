package planner

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/accented-ai/semcompile/internal/model"
	"github.com/accented-ai/semcompile/internal/sqlast"
)

// dimensionProjection is one dimension carried through both projection
// layers, already aliased to its final collision-resolved output name.
type dimensionProjection struct {
	OutputName string
	SourceExpr string // "<model>.<dim_output>" as projected by that model's CTE
}

// aggregateSlot is one aggregate metric computed in the inner layer,
// whether requested directly or pulled in only as a derived/ratio
// dependency.
type aggregateSlot struct {
	OutputName string
	Metric     *model.Metric
	OwnerModel string
	RawColumn  string // "<metric>_raw", the column the owning model's CTE projects
	// FromRollup marks a metric whose owning model's CTE reads from a
	// matched pre-aggregation rather than the base table: the raw column
	// already holds one rollup-row's worth of pre-aggregated value, so
	// re-aggregating across multiple matched rollup rows needs SUM even
	// for a count measure (spec.md §4.6 rule 4 — "count -> directly
	// summable... across finer rollup rows"; COUNT(raw) would instead
	// count rollup rows, not the events they represent).
	FromRollup bool
	// RollupCountColumn is set only for an avg metric whose owning model
	// routed to a matched rollup: the sibling count raw column the inner
	// layer must divide RawColumn's summed total by, instead of calling
	// AVG() directly (spec.md §4.6 rule 4 — a rollup never materialises a
	// per-row average, only the sum and count it's derived from).
	RollupCountColumn string
}

// derivedSlot is one ratio/derived/cumulative/time_comparison metric,
// computed in the outer layer over the inner layer's already-aggregated
// output columns, in dependency order.
type derivedSlot struct {
	OutputName string
	Metric     *model.Metric
	// Refs maps every dependency reference name the metric declaration uses
	// (bare or qualified, matching internal/compiler/metric.Dependencies'
	// output) to the inner-layer output column name it resolves to.
	Refs map[string]string
	// TimeDimensionOutput/TimeGranularity are set for cumulative and
	// time_comparison metrics: the inner-layer output column (and its
	// granularity) to order/partition the window by.
	TimeDimensionOutput string
	TimeGranularity     model.Granularity
	// PartitionDimensions is every other requested dimension's inner-layer
	// output column, excluding TimeDimensionOutput itself: a time_comparison
	// metric's LAG() window partitions by these so a comparison never crosses
	// a series boundary (e.g. revenue_yoy by region must not lag into another
	// region's row).
	PartitionDimensions []string
}

// aggFuncSQL renders agg applied to ref. count is rendered uniformly as
// COUNT(ref) whether or not the metric declares an inner expression: the
// count-with-no-sql CTE raw column is the literal 1 (never NULL), so
// COUNT(ref) and SUM(ref) agree for that case, and COUNT is chosen because
// it also does the right thing when ref is a metric-local-filtered CASE
// WHEN expression that evaluates to NULL for excluded rows.
func aggFuncSQL(agg model.AggFunc, ref string) (string, error) { //nolint:cyclop
	switch agg {
	case model.Sum:
		return fmt.Sprintf("SUM(%s)", ref), nil
	case model.Avg:
		return fmt.Sprintf("AVG(%s)", ref), nil
	case model.Count:
		return fmt.Sprintf("COUNT(%s)", ref), nil
	case model.CountDistinct:
		return fmt.Sprintf("COUNT(DISTINCT %s)", ref), nil
	case model.Min:
		return fmt.Sprintf("MIN(%s)", ref), nil
	case model.Max:
		return fmt.Sprintf("MAX(%s)", ref), nil
	case model.Median:
		return fmt.Sprintf("PERCENTILE_CONT(0.5) WITHIN GROUP (ORDER BY %s)", ref), nil
	case model.StdDev:
		return fmt.Sprintf("STDDEV(%s)", ref), nil
	case model.StdDevPop:
		return fmt.Sprintf("STDDEV_POP(%s)", ref), nil
	case model.StdDevSamp:
		return fmt.Sprintf("STDDEV_SAMP(%s)", ref), nil
	case model.Variance:
		return fmt.Sprintf("VARIANCE(%s)", ref), nil
	case model.VarPop:
		return fmt.Sprintf("VAR_POP(%s)", ref), nil
	case model.VarSamp:
		return fmt.Sprintf("VAR_SAMP(%s)", ref), nil
	case model.ApproxDistinct:
		return fmt.Sprintf("APPROX_COUNT_DISTINCT(%s)", ref), nil
	case model.ApproxQuantile:
		return fmt.Sprintf("APPROX_QUANTILE(%s, 0.5)", ref), nil
	case model.Mode:
		return fmt.Sprintf("MODE() WITHIN GROUP (ORDER BY %s)", ref), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownAggFunc, agg)
	}
}

// rollupReaggregateFunc maps a metric's declared aggregate to the function
// that correctly recombines it across more than one matched rollup row
// (spec.md §4.6 rule 4): sum/min/max carry over unchanged, but count must
// become SUM since the rollup raw column already holds a per-group count —
// COUNT(raw) would count rollup rows instead of summing the events each one
// represents. count_distinct is never reachable here: the matcher (rule 4)
// disqualifies any rollup candidate requesting it.
func rollupReaggregateFunc(agg model.AggFunc) (model.AggFunc, error) {
	switch agg {
	case model.Sum, model.Min, model.Max:
		return agg, nil
	case model.Count:
		return model.Sum, nil
	default:
		return "", fmt.Errorf("%w: %q is not derivable from a rollup", ErrRollupMeasureNotDerivable, agg)
	}
}

// rollupAvgExpr re-derives an avg metric from a matched rollup's sibling sum
// and count raw columns (spec.md §4.6 rule 4): summing each first and only
// then dividing is the only way to recombine a per-row average correctly
// across more than one rollup row — averaging the rollup's own per-row
// averages would weight every rollup row equally regardless of how many
// source rows it represents.
func rollupAvgExpr(sumRef, countRef string, dialect sqlast.Dialect) string {
	return sqlast.NullSafeDivide(
		&sqlast.FuncCall{Name: "SUM", Args: []sqlast.Expr{sqlast.NewIdent(sumRef)}},
		&sqlast.FuncCall{Name: "SUM", Args: []sqlast.Expr{sqlast.NewIdent(countRef)}},
		dialect,
	)
}

// innerLayer renders the aggregation query: every CTE, dimensions, each
// aggregate metric rolled up with its AggFunc (or passed through raw and
// unaggregated when ungrouped), the join tree, a pre-aggregation WHERE for
// filters spanning more than one model's raw columns (BucketOuter, applied
// before GROUP BY since they reference ungrouped rows), GROUP BY, and
// HAVING for predicates that have no outer derived layer left to run in.
func innerLayer(
	ctes []string,
	fromModel string,
	joins []joinClause,
	dims []dimensionProjection,
	aggs []aggregateSlot,
	whereExprs []sqlast.Expr,
	having []sqlast.Expr,
	ungrouped bool,
	dialect sqlast.Dialect,
) (string, error) {
	var b strings.Builder

	if len(ctes) > 0 {
		b.WriteString("WITH ")
		b.WriteString(strings.Join(ctes, ",\n"))
		b.WriteString("\n")
	}

	cols := make([]string, 0, len(dims)+len(aggs))

	for _, d := range dims {
		cols = append(cols, fmt.Sprintf("%s AS %s", d.SourceExpr, d.OutputName))
	}

	for _, a := range aggs {
		ref := fmt.Sprintf("%s.%s", a.OwnerModel, a.RawColumn)

		var (
			expr string
			err  error
		)

		switch {
		case ungrouped:
			expr = ref
		case a.RollupCountColumn != "":
			countRef := fmt.Sprintf("%s.%s", a.OwnerModel, a.RollupCountColumn)
			expr = rollupAvgExpr(ref, countRef, dialect)
		case a.FromRollup:
			agg, aggErr := rollupReaggregateFunc(a.Metric.Agg)
			if aggErr != nil {
				return "", fmt.Errorf("metric %q: %w", a.Metric.Name, aggErr)
			}

			expr, err = aggFuncSQL(agg, ref)
			if err != nil {
				return "", fmt.Errorf("metric %q: %w", a.Metric.Name, err)
			}
		default:
			expr, err = aggFuncSQL(a.Metric.Agg, ref)
			if err != nil {
				return "", fmt.Errorf("metric %q: %w", a.Metric.Name, err)
			}
		}

		cols = append(cols, fmt.Sprintf("%s AS %s", expr, a.OutputName))
	}

	b.WriteString("SELECT\n")

	for i, c := range cols {
		if i > 0 {
			b.WriteString(",\n")
		}

		b.WriteString("  ")
		b.WriteString(c)
	}

	fmt.Fprintf(&b, "\nFROM %s_cte AS %s", fromModel, fromModel)

	for _, j := range joins {
		b.WriteString("\n")
		b.WriteString(j.SQL)
	}

	if len(whereExprs) > 0 {
		parts := make([]string, len(whereExprs))
		for i, w := range whereExprs {
			parts[i] = sqlast.Emit(w, dialect)
		}

		b.WriteString("\nWHERE ")
		b.WriteString(strings.Join(parts, " AND "))
	}

	if !ungrouped && len(dims) > 0 {
		nums := make([]string, len(dims))
		for i := range dims {
			nums[i] = strconv.Itoa(i + 1)
		}

		b.WriteString("\nGROUP BY ")
		b.WriteString(strings.Join(nums, ", "))
	}

	if ungrouped && len(having) > 0 {
		return "", ErrHavingWithoutGrouping
	}

	if len(having) > 0 {
		parts := make([]string, len(having))
		for i, h := range having {
			parts[i] = sqlast.Emit(h, dialect)
		}

		b.WriteString("\nHAVING ")
		b.WriteString(strings.Join(parts, " AND "))
	}

	return b.String(), nil
}

// derivedExpr renders one derived-layer metric's SQL expression, reading
// its dependencies from the inner layer's already-projected output columns.
func derivedExpr(slot derivedSlot, dialect sqlast.Dialect) (string, error) {
	switch slot.Metric.Type() {
	case model.RatioMetric:
		num, ok := slot.Refs[slot.Metric.Numerator]
		if !ok {
			return "", fmt.Errorf("metric %q: %w: numerator %q", slot.Metric.Name, ErrUnresolvedDependency, slot.Metric.Numerator)
		}

		den, ok := slot.Refs[slot.Metric.Denominator]
		if !ok {
			return "", fmt.Errorf("metric %q: %w: denominator %q", slot.Metric.Name, ErrUnresolvedDependency, slot.Metric.Denominator)
		}

		return sqlast.NullSafeDivide(sqlast.NewIdent(num), sqlast.NewIdent(den), dialect), nil

	case model.DerivedMetric:
		return renderSubstitutedFormula(slot, dialect)

	case model.CumulativeMetric:
		return cumulativeExpr(slot, dialect)

	case model.TimeComparisonMetric:
		return timeComparisonExpr(slot, dialect)

	default:
		return "", fmt.Errorf("metric %q: %w", slot.Metric.Name, model.ErrInvalidMetricShape)
	}
}

// renderSubstitutedFormula parses a derived metric's formula and rewrites
// every identifier naming a dependency metric to a bare reference to that
// dependency's inner-layer output column (internal/sqlast.RewriteIdentifiers
// substitutes whole Ident nodes, respecting token boundaries by
// construction; spec.md §4.3, §9).
func renderSubstitutedFormula(slot derivedSlot, dialect sqlast.Dialect) (string, error) {
	expr, err := sqlast.Parse(slot.Metric.SQL, sqlast.Postgres)
	if err != nil {
		return "", fmt.Errorf("metric %q sql: %w", slot.Metric.Name, err)
	}

	rewritten := sqlast.RewriteIdentifiers(expr, func(id *sqlast.Ident) *sqlast.Ident {
		key := id.Last()
		if id.Qualifier() != "" {
			key = id.Qualifier() + "." + id.Last()
		}

		if out, ok := slot.Refs[key]; ok {
			return sqlast.NewIdent(out)
		}

		if out, ok := slot.Refs[id.Last()]; ok {
			return sqlast.NewIdent(out)
		}

		return id
	})

	return sqlast.Emit(rewritten, dialect), nil
}

// cumulativeExpr renders a window-function rollup over the inner layer's
// rows: a running or trailing-window sum of the base metric, ordered by the
// requested time dimension (SPEC_FULL.md §4 "Default time dimension" /
// original_source sidemantic.core.metric cumulative semantics). GrainToDate
// resets the running total at each period boundary (PARTITION BY
// DATE_TRUNC(grain, time_dim)); Window instead bounds a trailing range of
// calendar time.
func cumulativeExpr(slot derivedSlot, dialect sqlast.Dialect) (string, error) {
	if slot.TimeDimensionOutput == "" {
		return "", fmt.Errorf("metric %q: %w", slot.Metric.Name, ErrMissingTimeDimension)
	}

	base, ok := slot.Refs[slot.Metric.SQL]
	if !ok {
		return "", fmt.Errorf("metric %q: %w: base metric %q", slot.Metric.Name, ErrUnresolvedDependency, slot.Metric.SQL)
	}

	order := fmt.Sprintf("ORDER BY %s", slot.TimeDimensionOutput)

	if slot.Metric.GrainToDate != "" {
		partition := fmt.Sprintf(
			"PARTITION BY %s",
			sqlast.Emit(&sqlast.FuncCall{
				Name: "date_trunc",
				Args: []sqlast.Expr{
					&sqlast.Literal{Kind: sqlast.LiteralString, Value: string(slot.Metric.GrainToDate)},
					sqlast.NewIdent(slot.TimeDimensionOutput),
				},
			}, dialect),
		)

		return fmt.Sprintf("SUM(%s) OVER (%s %s ROWS BETWEEN UNBOUNDED PRECEDING AND CURRENT ROW)", base, partition, order), nil
	}

	n, unit, ok := parseWindow(slot.Metric.Window)
	if !ok {
		return fmt.Sprintf("SUM(%s) OVER (%s ROWS BETWEEN UNBOUNDED PRECEDING AND CURRENT ROW)", base, order), nil
	}

	frame := fmt.Sprintf("RANGE BETWEEN INTERVAL '%d %s' PRECEDING AND CURRENT ROW", n, unit)

	return fmt.Sprintf("SUM(%s) OVER (%s %s)", base, order, frame), nil
}

// parseWindow parses a "<n> <unit>" window string (e.g. "7 days") as
// declared on a cumulative metric.
func parseWindow(window string) (int, string, bool) {
	fields := strings.Fields(window)
	if len(fields) != 2 {
		return 0, "", false
	}

	n, err := strconv.Atoi(fields[0])
	if err != nil {
		return 0, "", false
	}

	return n, strings.TrimSuffix(strings.ToLower(fields[1]), "s"), true
}

// comparisonLag maps a comparison type to the number of rows a LAG() window
// must look back, given the granularity of the time dimension the request
// grouped by: e.g. week-over-week over daily rows looks back 7 rows, but
// over weekly rows looks back 1.
var comparisonLag = map[model.ComparisonType]map[model.Granularity]int{ //nolint:gochecknoglobals
	model.WoW: {model.Day: 7, model.Week: 1},
	model.MoM: {model.Month: 1},
	model.YoY: {model.Month: 12, model.Quarter: 4, model.Year: 1},
}

// timeComparisonExpr renders a year/month/week-over-value comparison as a
// LAG() window lookback over the inner layer's rows, partitioned by every
// other requested dimension so each comparison stays within its own series
// (SPEC_FULL.md §4 time comparison note) — the same PARTITION BY pattern
// nonAdditiveGuard applies at the CTE level, applied here at the outer
// layer over already-projected output columns instead of parsed dimension
// expressions.
func timeComparisonExpr(slot derivedSlot, dialect sqlast.Dialect) (string, error) { //nolint:unparam
	if slot.TimeDimensionOutput == "" {
		return "", fmt.Errorf("metric %q: %w", slot.Metric.Name, ErrMissingTimeDimension)
	}

	base, ok := slot.Refs[slot.Metric.BaseMetric]
	if !ok {
		return "", fmt.Errorf("metric %q: %w: base metric %q", slot.Metric.Name, ErrUnresolvedDependency, slot.Metric.BaseMetric)
	}

	lag, ok := comparisonLag[slot.Metric.ComparisonType][slot.TimeGranularity]
	if !ok {
		return "", fmt.Errorf("metric %q: %w", slot.Metric.Name, ErrUnsupportedComparisonGranularity)
	}

	_ = dialect

	var over strings.Builder

	over.WriteString("OVER (")

	if len(slot.PartitionDimensions) > 0 {
		fmt.Fprintf(&over, "PARTITION BY %s ", strings.Join(slot.PartitionDimensions, ", "))
	}

	fmt.Fprintf(&over, "ORDER BY %s)", slot.TimeDimensionOutput)

	return fmt.Sprintf("%s - LAG(%s, %d) %s", base, base, lag, over.String()), nil
}

// outerLayer wraps inner as a subquery and adds every derived-layer
// projection alongside the passthrough dimension/requested-aggregate
// columns, applying any HAVING-bucket predicate that referenced a derived
// metric as a plain WHERE over inner's already-aggregated rows.
func outerLayer(
	inner string,
	passthrough []string,
	derived []derivedSlot,
	postAggregateFilters []sqlast.Expr,
	dialect sqlast.Dialect,
) (string, error) {
	cols := make([]string, 0, len(passthrough)+len(derived))
	cols = append(cols, passthrough...)

	for _, d := range derived {
		expr, err := derivedExpr(d, dialect)
		if err != nil {
			return "", err
		}

		cols = append(cols, fmt.Sprintf("%s AS %s", expr, d.OutputName))
	}

	var b strings.Builder

	b.WriteString("SELECT\n")

	for i, c := range cols {
		if i > 0 {
			b.WriteString(",\n")
		}

		b.WriteString("  ")
		b.WriteString(c)
	}

	b.WriteString("\nFROM (\n")
	b.WriteString(inner)
	b.WriteString("\n) AS agg")

	if len(postAggregateFilters) > 0 {
		parts := make([]string, len(postAggregateFilters))
		for i, f := range postAggregateFilters {
			parts[i] = sqlast.Emit(f, dialect)
		}

		b.WriteString("\nWHERE ")
		b.WriteString(strings.Join(parts, " AND "))
	}

	return b.String(), nil
}
