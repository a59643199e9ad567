package planner

import "errors"

var (
	ErrUnknownAggFunc                   = errors.New("unrecognised aggregate function")
	ErrUnresolvedDependency             = errors.New("metric dependency was not projected by the inner layer")
	ErrMissingTimeDimension             = errors.New("cumulative or time-comparison metric requires a requested time dimension")
	ErrUnsupportedComparisonGranularity = errors.New("time-comparison metric does not support this time dimension's granularity")
	ErrHavingWithoutGrouping            = errors.New("having predicates are not valid in ungrouped mode")

	// ErrConversionMetricUnsupported marks spec.md §3's conversion metric
	// kind as recognised but not yet compiled: its self-join/window shape
	// (base_event and conversion_event CTEs joined by entity within
	// conversion_window) is a planned follow-up, tracked in DESIGN.md.
	ErrConversionMetricUnsupported = errors.New("conversion metrics are not yet supported by the query planner")

	// ErrNoModelForAggregate guards an aggregate metric resolved with no
	// owning model (only graph-level derived/ratio metrics are expected to
	// have a nil Owner; spec.md §3 ties every aggregate to a declaring
	// model's raw columns).
	ErrNoModelForAggregate = errors.New("aggregate metric has no owning model")

	// ErrRollupMeasureNotDerivable guards an avg metric routed to a rollup
	// whose sibling sum/count measures aren't both materialised — this
	// should be unreachable in practice since internal/compiler/preagg's
	// matcher already verified derivability before routing, but the CTE
	// builder re-derives the sibling names independently and fails closed
	// if the two ever disagree.
	ErrRollupMeasureNotDerivable = errors.New("metric is not derivable from the matched rollup's materialised measures")
)
