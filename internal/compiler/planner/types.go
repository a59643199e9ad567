// Package planner implements the query planner (spec.md §4.7): assembling
// per-model CTEs, the join tree between them, the final projection (base
// aggregates, then derived/ratio/cumulative/time-comparison metrics), and
// GROUP BY/HAVING/ORDER BY/LIMIT.
package planner

import "github.com/accented-ai/semcompile/internal/model"

// OrderSpec is one ORDER BY fragment (spec.md §4.7): an output column name,
// optionally qualified with a model prefix the planner strips once the
// column has been aliased unqualified.
type OrderSpec struct {
	Expr string
	Desc bool
}

// Request is the planner's resolved input: every reference has already been
// validated and classified by the layers below it (graph resolution, metric
// dependency planning, filter classification). The planner only assembles
// SQL from already-resolved parts.
type Request struct {
	// MetricRefs and DimensionRefs are the originally-requested references
	// (e.g. "orders.revenue", "orders.order_date__month"), in request order.
	MetricRefs    []string
	DimensionRefs []string

	// Filters are raw SQL predicate fragments (spec.md §6.3); Segments are
	// "model.segment" references resolved and appended alongside them.
	Filters  []string
	Segments []string

	OrderBy []OrderSpec
	Limit   *int
	Offset  *int

	// Ungrouped skips GROUP BY entirely; a HAVING filter is then rejected by
	// the planner with ErrHavingWithoutGrouping (spec.md §4.7).
	Ungrouped bool

	// Parameters fills {param_name} placeholders found in filter/segment
	// fragments (spec.md §6.3).
	Parameters map[string]any
}

// resolvedDimension pairs a requested dimension with the model that owns it
// and the granularity actually requested.
type resolvedDimension struct {
	ref         string
	owner       *model.Model
	dim         *model.Dimension
	granularity model.Granularity
	outputName  string
}
