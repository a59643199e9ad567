package planner

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	compilergraph "github.com/accented-ai/semcompile/internal/compiler/graph"
	"github.com/accented-ai/semcompile/internal/compiler/filter"
	"github.com/accented-ai/semcompile/internal/compiler/metric"
	"github.com/accented-ai/semcompile/internal/model"
	"github.com/accented-ai/semcompile/internal/plan"
	"github.com/accented-ai/semcompile/internal/sqlast"
)

// ErrNoModelsTouched is returned when a request names no metric or
// dimension at all — there is nothing for the planner to build a FROM
// clause around.
var ErrNoModelsTouched = errors.New("request touches no model")

// Result is what Build returns: the rendered SQL alongside the structured
// plan spec.md §6.1's explain() promises.
type Result struct {
	SQL  string
	Plan *plan.QueryPlan
}

// Build assembles compiled SQL for req against g in dialect (spec.md §4.7's
// full responsibility): resolving every reference, building the metric
// dependency plan, classifying filters, matching pre-aggregations,
// assembling the join tree and per-model CTEs, and layering the final
// projection (inner aggregation, optional derived-metric outer layer, and
// a final aliasing/ordering/limiting layer).
func Build(g *model.Graph, req Request, dialect sqlast.Dialect) (*Result, error) { //nolint:cyclop,funlen
	resolver := compilergraph.New(g)

	dims := make([]*compilergraph.ResolvedDimension, 0, len(req.DimensionRefs))

	for _, ref := range req.DimensionRefs {
		rd, err := resolver.ResolveDimension(ref)
		if err != nil {
			return nil, fmt.Errorf("dimension %q: %w", ref, err)
		}

		dims = append(dims, rd)
	}

	metricPlan, err := metric.BuildPlan(resolver, req.MetricRefs)
	if err != nil {
		return nil, fmt.Errorf("metrics: %w", err)
	}

	requestedMetricNames := make(map[string]bool, len(metricPlan.Requested)*2)

	for _, rm := range metricPlan.Requested {
		requestedMetricNames[rm.Metric.Name] = true
		if rm.Owner != nil {
			requestedMetricNames[rm.Owner.Name+"."+rm.Metric.Name] = true
		}
	}

	allFilters := make([]string, 0, len(req.Filters)+len(req.Segments))
	allFilters = append(allFilters, req.Filters...)

	for _, segRef := range req.Segments {
		owner, seg, err := resolver.ResolveSegment(segRef)
		if err != nil {
			return nil, fmt.Errorf("segment %q: %w", segRef, err)
		}

		allFilters = append(allFilters, substituteParams(strings.ReplaceAll(seg.SQL, "{model}", owner.Name), req.Parameters))
	}

	for i, f := range req.Filters {
		allFilters[i] = substituteParams(f, req.Parameters)
	}

	classified, err := filter.Classify(allFilters, dialect, requestedMetricNames)
	if err != nil {
		return nil, fmt.Errorf("filters: %w", err)
	}

	touched := touchedModels(dims, metricPlan)
	if len(touched) == 0 {
		return nil, ErrNoModelsTouched
	}

	primary := choosePrimaryModel(touched, metricPlan)

	others := make([]string, 0, len(touched)-1)
	for _, m := range touched {
		if m != primary {
			others = append(others, m)
		}
	}

	joins, joinNeeds, err := buildJoinTree(g, primary, others)
	if err != nil {
		return nil, fmt.Errorf("join tree: %w", err)
	}

	joinedModels := make([]string, 0, len(joins)+1)
	joinedModels = append(joinedModels, primary)

	for _, j := range joins {
		joinedModels = append(joinedModels, j.TargetModel)
	}

	qp := plan.New(string(dialect), touched)
	rollupModel, rollup := routePreAggregation(g, touched, dims, metricPlan.Requested, classified, qp)

	ctes, dimProjections, aggSlots, refs, err := buildPerModelCTEs(g, joinedModels, dims, metricPlan, classified, joinNeeds, dialect, rollupModel, rollup)
	if err != nil {
		return nil, err
	}

	outerFilters, havingFilters := splitOuterAndHaving(classified)
	rewriteHavingRefs(havingFilters, refs)

	derivedSlots, derivedOutputNames, err := buildDerivedSlots(metricPlan, refs, dims)
	if err != nil {
		return nil, fmt.Errorf("derived metrics: %w", err)
	}

	innerSQL, err := innerLayer(ctes, primary, joins, dimProjections, aggSlots, classifiedExprs(outerFilters), innerLayerHaving(havingFilters, len(derivedSlots) > 0), req.Ungrouped, dialect)
	if err != nil {
		return nil, fmt.Errorf("inner layer: %w", err)
	}

	working := innerSQL

	if len(derivedSlots) > 0 {
		passthrough := passthroughColumns(dimProjections, aggSlots, requestedMetricNames)

		working, err = outerLayer(innerSQL, passthrough, derivedSlots, outerLayerHaving(havingFilters, true), dialect)
		if err != nil {
			return nil, fmt.Errorf("outer layer: %w", err)
		}
	}

	finalSQL, err := finalLayer(working, dims, metricPlan.Requested, derivedOutputNames, req, dialect)
	if err != nil {
		return nil, fmt.Errorf("final layer: %w", err)
	}

	qp.SQL = finalSQL

	return &Result{SQL: finalSQL, Plan: qp}, nil
}

// substituteParams replaces every "{name}" placeholder in fragment with its
// bound parameter value (spec.md §6.3), rendered as a SQL literal.
func substituteParams(fragment string, params map[string]any) string {
	for name, value := range params {
		fragment = strings.ReplaceAll(fragment, "{"+name+"}", paramLiteral(value))
	}

	return fragment
}

func paramLiteral(value any) string {
	switch v := value.(type) {
	case string:
		return "'" + strings.ReplaceAll(v, "'", "''") + "'"
	case int:
		return strconv.Itoa(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// touchedModels is the distinct set of models any requested dimension or
// metric belongs to, in first-encounter order. It scans metricPlan.Order
// (every transitive dependency), not just Requested: a graph-level ratio
// metric composing two model-owned aggregates touches those models even
// though the ratio itself has no owner.
func touchedModels(dims []*compilergraph.ResolvedDimension, metricPlan *metric.Plan) []string {
	seen := make(map[string]bool)

	var out []string

	for _, d := range dims {
		if !seen[d.Owner.Name] {
			seen[d.Owner.Name] = true
			out = append(out, d.Owner.Name)
		}
	}

	for _, rm := range metricPlan.Order {
		if rm.Owner == nil || seen[rm.Owner.Name] {
			continue
		}

		seen[rm.Owner.Name] = true
		out = append(out, rm.Owner.Name)
	}

	return out
}

// choosePrimaryModel picks the model owning the most requested metrics,
// ties broken by encounter order (spec.md §4.7); falls back to the first
// touched model when no requested metric is model-owned.
func choosePrimaryModel(touched []string, metricPlan *metric.Plan) string {
	counts := make(map[string]int)

	for _, rm := range metricPlan.Requested {
		if rm.Owner != nil {
			counts[rm.Owner.Name]++
		}
	}

	best := touched[0]
	bestCount := counts[best]

	for _, m := range touched[1:] {
		if counts[m] > bestCount {
			best = m
			bestCount = counts[m]
		}
	}

	return best
}

// splitOuterAndHaving partitions classified filters into the cross-model,
// pre-aggregation predicates (BucketOuter) and the metric-referencing ones
// (BucketHaving). BucketPushdown entries are consumed by buildPerModelCTEs.
func splitOuterAndHaving(classified []filter.Classified) (outer, having []filter.Classified) {
	for _, c := range classified {
		switch c.Bucket {
		case filter.BucketOuter:
			outer = append(outer, c)
		case filter.BucketHaving:
			having = append(having, c)
		}
	}

	return outer, having
}

func innerLayerHaving(having []filter.Classified, hasOuterLayer bool) []sqlast.Expr {
	if hasOuterLayer {
		return nil
	}

	return classifiedExprs(having)
}

func outerLayerHaving(having []filter.Classified, hasOuterLayer bool) []sqlast.Expr {
	if !hasOuterLayer {
		return nil
	}

	return classifiedExprs(having)
}

// rewriteHavingRefs points every BucketHaving predicate's metric identifiers
// at the collision-free internal column name the inner/outer layer actually
// projects it under: a user writes "orders.revenue > 1000" or
// "revenue > 1000" against the metric's public name, but by the time the
// HAVING clause runs (inner layer when there is no derived-metric outer
// layer, outer layer otherwise) that column only exists as e.g.
// "orders__revenue". Non-metric identifiers are left untouched.
func rewriteHavingRefs(having []filter.Classified, refs map[string]string) {
	for i, c := range having {
		having[i].Expr = sqlast.RewriteIdentifiers(c.Expr, func(id *sqlast.Ident) *sqlast.Ident {
			if q := id.Qualifier(); q != "" {
				if internal, ok := refs[q+"."+id.Last()]; ok {
					return sqlast.NewIdent(internal)
				}
			}

			if internal, ok := refs[id.Last()]; ok {
				return sqlast.NewIdent(internal)
			}

			return id
		})
	}
}

// classifiedExprs extracts the expanded sqlast.Expr from each classified
// filter, in the same order.
func classifiedExprs(classified []filter.Classified) []sqlast.Expr {
	out := make([]sqlast.Expr, len(classified))
	for i, c := range classified {
		out[i] = c.Expr
	}

	return out
}
