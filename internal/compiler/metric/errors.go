package metric

import "errors"

var (
	// ErrSelfReferential is spec.md §7's SelfReferentialMetric: a derived,
	// ratio, cumulative, or time-comparison metric whose transitive
	// dependency set includes itself.
	ErrSelfReferential = errors.New("metric transitively depends on itself")

	// ErrDerivedContainsAggregate rejects a derived metric formula that
	// itself aggregates a base column (spec.md §3: "must not itself contain
	// an aggregate of a base column — it composes already-aggregated
	// metrics").
	ErrDerivedContainsAggregate = errors.New("derived metric formula must not aggregate a base column")
)
