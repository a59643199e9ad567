package planner

import (
	"fmt"
	"strings"

	compilergraph "github.com/accented-ai/semcompile/internal/compiler/graph"
	"github.com/accented-ai/semcompile/internal/compiler/filter"
	"github.com/accented-ai/semcompile/internal/compiler/metric"
	"github.com/accented-ai/semcompile/internal/compiler/preagg"
	"github.com/accented-ai/semcompile/internal/model"
	"github.com/accented-ai/semcompile/internal/plan"
	"github.com/accented-ai/semcompile/internal/sqlast"
)

// buildPerModelCTEs assembles every touched-or-joined model's ctePlan
// (dimensions, raw aggregate metrics, silent join/filter columns, pushdown
// WHERE) and renders its CTE, and walks metricPlan.Order once to build both
// the inner layer's aggregateSlot list and the key->internal-column-name
// map every derived-metric formula substitution resolves its dependencies
// through (spec.md §4.7, §4.3).
func buildPerModelCTEs(
	g *model.Graph,
	joinedModels []string,
	dims []*compilergraph.ResolvedDimension,
	metricPlan *metric.Plan,
	classified []filter.Classified,
	joinNeeds []joinColumnNeed,
	dialect sqlast.Dialect,
	rollupModel string,
	rollup *model.PreAggregation,
) ([]string, []dimensionProjection, []aggregateSlot, map[string]string, error) {
	plans := make(map[string]*ctePlan, len(joinedModels))

	for _, name := range joinedModels {
		m, err := g.Model(name)
		if err != nil {
			return nil, nil, nil, nil, err
		}

		plans[name] = &ctePlan{Model: m}

		if rollup != nil && name == rollupModel {
			plans[name].Rollup = rollup
		}
	}

	for _, need := range joinNeeds {
		p, ok := plans[need.Model]
		if !ok {
			continue
		}

		p.SilentColumns = append(p.SilentColumns, need.Column)
	}

	for _, c := range classified {
		if c.Bucket != filter.BucketPushdown {
			continue
		}

		if p, ok := plans[c.Model]; ok {
			p.Where = append(p.Where, c.Expr)
		}
	}

	// BucketPushdown and BucketOuter predicates reference raw source columns
	// directly (unlike BucketHaving, which references an already-aggregated
	// output), so every column they touch must be silently projected by its
	// owning model's CTE even when no requested dimension/metric already
	// covers it.
	for _, c := range classified {
		if c.Bucket != filter.BucketPushdown && c.Bucket != filter.BucketOuter {
			continue
		}

		for _, ref := range c.Columns {
			modelName, column, ok := strings.Cut(ref, ".")
			if !ok {
				continue
			}

			if p, ok := plans[modelName]; ok {
				p.SilentColumns = append(p.SilentColumns, column)
			}
		}
	}

	dimProjections := make([]dimensionProjection, 0, len(dims))

	for _, rd := range dims {
		p, ok := plans[rd.Owner.Name]
		if !ok {
			return nil, nil, nil, nil, fmt.Errorf("dimension %q: %w: %q is not joined into this request", rd.Dimension.Name, ErrUnresolvedDependency, rd.Owner.Name)
		}

		out := internalDimName(rd)

		p.Dimensions = append(p.Dimensions, cteDimension{Dim: rd.Dimension, Granularity: rd.Granularity, OutputName: out})
		dimProjections = append(dimProjections, dimensionProjection{OutputName: out, SourceExpr: rd.Owner.Name + "." + out})
	}

	refs := make(map[string]string, len(metricPlan.Order)*2)

	aggSlots := make([]aggregateSlot, 0, len(metricPlan.Order))

	for _, node := range metricPlan.Order {
		key := metricKey(node)
		internal := internalName(key)

		refs[node.Metric.Name] = internal
		if node.Owner != nil {
			refs[node.Owner.Name+"."+node.Metric.Name] = internal
		}

		switch node.Metric.Type() {
		case model.AggregateMetric:
			if node.Owner == nil {
				return nil, nil, nil, nil, fmt.Errorf("metric %q: %w", node.Metric.Name, ErrNoModelForAggregate)
			}

			p, ok := plans[node.Owner.Name]
			if !ok {
				return nil, nil, nil, nil, fmt.Errorf("metric %q: %w: model %q is not joined into this request", node.Metric.Name, ErrUnresolvedDependency, node.Owner.Name)
			}

			rawCol := internal + "_raw"
			p.Metrics = append(p.Metrics, cteMetric{Metric: node.Metric, OutputName: rawCol})

			slot := aggregateSlot{OutputName: internal, Metric: node.Metric, OwnerModel: node.Owner.Name, RawColumn: rawCol, FromRollup: p.Rollup != nil}
			if p.Rollup != nil && node.Metric.Agg == model.Avg {
				slot.RollupCountColumn = rollupAvgCountAlias(rawCol)
			}

			aggSlots = append(aggSlots, slot)

		case model.ConversionMetric:
			return nil, nil, nil, nil, fmt.Errorf("metric %q: %w", node.Metric.Name, ErrConversionMetricUnsupported)

		default:
			// Ratio/derived/cumulative/time_comparison metrics are resolved
			// entirely in the outer layer (buildDerivedSlots); only their
			// internal name needs to be known here, already recorded above.
		}
	}

	ctes := make([]string, 0, len(joinedModels))

	for _, name := range joinedModels {
		sql, err := buildModelCTE(*plans[name], dialect)
		if err != nil {
			return nil, nil, nil, nil, err
		}

		ctes = append(ctes, sql)
	}

	return ctes, dimProjections, aggSlots, refs, nil
}

// buildDerivedSlots walks metricPlan.Order a second time, building one
// derivedSlot per ratio/derived/cumulative/time_comparison metric node. Each
// slot gets its own scopedRefs map (see scopedRefs) rather than sharing the
// global refs map directly: two different models can each declare a metric
// named e.g. "revenue", and a global bare-name map would let the wrong one's
// internal column leak into a formula that never meant to reference it.
func buildDerivedSlots(metricPlan *metric.Plan, refs map[string]string, dims []*compilergraph.ResolvedDimension) ([]derivedSlot, map[string]string, error) {
	timeOutput, timeGranularity := primaryTimeDimension(dims)

	partitionDims := make([]string, 0, len(dims))

	for _, rd := range dims {
		out := internalDimName(rd)
		if out == timeOutput {
			continue
		}

		partitionDims = append(partitionDims, out)
	}

	slots := make([]derivedSlot, 0, len(metricPlan.Order))

	for _, node := range metricPlan.Order {
		switch node.Metric.Type() {
		case model.RatioMetric, model.DerivedMetric, model.CumulativeMetric, model.TimeComparisonMetric:
			scoped, err := scopedRefs(node, metricPlan)
			if err != nil {
				return nil, nil, err
			}

			slots = append(slots, derivedSlot{
				OutputName:          internalName(metricKey(node)),
				Metric:              node.Metric,
				Refs:                scoped,
				TimeDimensionOutput: timeOutput,
				TimeGranularity:     timeGranularity,
				PartitionDimensions: partitionDims,
			})
		}
	}

	return slots, refs, nil
}

// scopedRefs builds the bare-name-to-internal-column map one derived metric
// node's formula resolves its dependencies through: metric.Dependencies(m)
// returns the same dependency names in the same order BuildPlan resolved
// them in, so zipping that list against metricPlan.DependsOn[key] recovers
// exactly which canonical key each bare name meant for this node specifically
// — never a same-named metric belonging to a different model.
func scopedRefs(node *compilergraph.ResolvedMetric, metricPlan *metric.Plan) (map[string]string, error) {
	depNames, err := metric.Dependencies(node.Metric)
	if err != nil {
		return nil, fmt.Errorf("%w", err)
	}

	depKeys := metricPlan.DependsOn[metricKey(node)]

	scoped := make(map[string]string, len(depNames))

	for i, name := range depNames {
		if i >= len(depKeys) {
			break
		}

		scoped[name] = internalName(depKeys[i])
	}

	return scoped, nil
}

// primaryTimeDimension picks the first requested time dimension to order
// cumulative/time_comparison window functions by (spec.md §4.7's windowed
// metrics require exactly one ordering series; SPEC_FULL.md's default-time-
// dimension note covers the no-time-dimension-requested case by leaving
// this empty, which derivedExpr rejects via ErrMissingTimeDimension).
func primaryTimeDimension(dims []*compilergraph.ResolvedDimension) (string, model.Granularity) {
	for _, rd := range dims {
		if rd.Dimension.Kind != model.Time {
			continue
		}

		gran := rd.Granularity
		if gran == "" {
			gran = rd.Dimension.Granularity
		}

		return internalDimName(rd), gran
	}

	return "", ""
}

// passthroughColumns is the outer layer's pass-through SELECT list: every
// dimension (always), plus every inner-layer aggregate that was directly
// requested rather than pulled in only as a ratio/derived dependency.
func passthroughColumns(dims []dimensionProjection, aggs []aggregateSlot, requestedKeys map[string]bool) []string {
	cols := make([]string, 0, len(dims)+len(aggs))

	for _, d := range dims {
		cols = append(cols, d.OutputName)
	}

	for _, a := range aggs {
		if requestedKeys[a.Metric.Name] || requestedKeys[a.OwnerModel+"."+a.Metric.Name] {
			cols = append(cols, a.OutputName)
		}
	}

	return cols
}

// finalLayer wraps working (the inner or outer projection layer) in the
// last aliasing pass: only the originally-requested dimensions and metrics,
// in request order, collision-resolved to their spec.md §4.7 output names,
// with ORDER BY/LIMIT/OFFSET appended at this outermost level.
func finalLayer(
	working string,
	dims []*compilergraph.ResolvedDimension,
	requestedMetrics []*compilergraph.ResolvedMetric,
	outputByKey map[string]string,
	req Request,
	dialect sqlast.Dialect,
) (string, error) {
	_ = dialect

	refs := make([]outputRef, 0, len(dims)+len(requestedMetrics))
	internalCols := make([]string, 0, len(dims)+len(requestedMetrics))

	for _, rd := range dims {
		refs = append(refs, outputRef{model: rd.Owner.Name, base: dimensionOutputBase(rd)})
		internalCols = append(internalCols, internalDimName(rd))
	}

	for _, rm := range requestedMetrics {
		internal, ok := outputByKey[metricKey(rm)]
		if !ok {
			internal, ok = outputByKey[rm.Metric.Name]
		}

		if !ok {
			return "", fmt.Errorf("metric %q: %w", rm.Metric.Name, ErrUnresolvedDependency)
		}

		modelName := ""
		if rm.Owner != nil {
			modelName = rm.Owner.Name
		}

		refs = append(refs, outputRef{model: modelName, base: rm.Metric.Name})
		internalCols = append(internalCols, internal)
	}

	finalNames := resolveCollisions(refs)

	cols := make([]string, len(internalCols))

	for i, c := range internalCols {
		if c == finalNames[i] {
			cols[i] = c
		} else {
			cols[i] = fmt.Sprintf("%s AS %s", c, finalNames[i])
		}
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
	b.WriteString(working)
	b.WriteString("\n) AS result")

	if len(req.OrderBy) > 0 {
		parts := make([]string, len(req.OrderBy))

		for i, o := range req.OrderBy {
			dir := "ASC"
			if o.Desc {
				dir = "DESC"
			}

			parts[i] = fmt.Sprintf("%s %s", o.Expr, dir)
		}

		b.WriteString("\nORDER BY ")
		b.WriteString(strings.Join(parts, ", "))
	}

	if req.Limit != nil {
		fmt.Fprintf(&b, "\nLIMIT %d", *req.Limit)
	}

	if req.Offset != nil {
		fmt.Fprintf(&b, "\nOFFSET %d", *req.Offset)
	}

	return b.String(), nil
}

// routePreAggregation runs spec.md §4.6's matcher for single-model requests
// and records the routing decision plus every candidate's explain() detail
// on qp. Multi-model requests never route to a rollup (rule 1). When a
// rollup matches, its model name and *model.PreAggregation are returned so
// buildPerModelCTEs can substitute it into that model's CTE — the matcher
// only decides eligibility; actually reading from the rollup table happens
// in buildModelCTE (spec.md §4.6 "rewrites the plan to hit it", §6.5).
func routePreAggregation(
	g *model.Graph,
	touched []string,
	dims []*compilergraph.ResolvedDimension,
	requestedMetrics []*compilergraph.ResolvedMetric,
	classified []filter.Classified,
	qp *plan.QueryPlan,
) (string, *model.PreAggregation) {
	if len(touched) != 1 {
		qp.RouteToBaseTables("request spans multiple models")
		return "", nil
	}

	m, err := g.Model(touched[0])
	if err != nil || len(m.PreAggregations) == 0 {
		qp.RouteToBaseTables("no pre-aggregations declared")
		return "", nil
	}

	req := preagg.Request{Models: touched}

	for _, rd := range dims {
		gran := rd.Granularity
		if gran == "" {
			gran = rd.Dimension.Granularity
		}

		req.Dimensions = append(req.Dimensions, preagg.DimensionRequest{Name: rd.Dimension.Name, Granularity: gran})
	}

	for _, rm := range requestedMetrics {
		if rm.Owner != nil && rm.Owner.Name == m.Name {
			req.Metrics = append(req.Metrics, rm.Metric.Name)
		}
	}

	for _, c := range classified {
		if c.Model != m.Name {
			continue
		}

		for _, col := range c.Columns {
			req.FilterColumns = append(req.FilterColumns, strings.TrimPrefix(col, m.Name+"."))
		}
	}

	qp.Candidates[m.Name] = preagg.Explain(m, req)

	if pa, report, ok := preagg.Match(m, req); ok {
		qp.RouteToPreAggregation(m.Name, pa.Name, fmt.Sprintf("matched rollup %q", report.Rollup))
		return m.Name, pa
	}

	qp.RouteToBaseTables("no eligible rollup")

	return "", nil
}
