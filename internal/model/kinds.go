// Package model holds the semantic layer's declarative data model (spec.md
// §3): Dimension, Metric, Relationship, Segment, Model, PreAggregation, and
// the Graph that indexes them. These are plain data types; resolution and
// join-path logic live in internal/compiler/graph and internal/compiler/metric.
package model

// DimensionKind is the declared type of a Dimension (spec.md §3).
type DimensionKind string

const (
	Categorical DimensionKind = "categorical"
	Numeric     DimensionKind = "numeric"
	Boolean     DimensionKind = "boolean"
	Time        DimensionKind = "time"
)

// Granularity is a time-truncation unit (spec.md Glossary).
type Granularity string

const (
	Second  Granularity = "second"
	Minute  Granularity = "minute"
	Hour    Granularity = "hour"
	Day     Granularity = "day"
	Week    Granularity = "week"
	Month   Granularity = "month"
	Quarter Granularity = "quarter"
	Year    Granularity = "year"
)

// granularityRank orders granularities from finest to coarsest, per spec.md
// §4.6: "second < minute < hour < day < week < month < quarter < year".
var granularityRank = map[Granularity]int{ //nolint:gochecknoglobals
	Second:  0,
	Minute:  1,
	Hour:    2,
	Day:     3,
	Week:    4,
	Month:   5,
	Quarter: 6,
	Year:    7,
}

// ValidGranularity reports whether g is one of the recognised granularities.
func ValidGranularity(g Granularity) bool {
	_, ok := granularityRank[g]
	return ok
}

// CoarserOrEqual reports whether g is the same granularity as, or coarser
// than, other. Week is never considered compatible with month/quarter/year
// in either direction (spec.md §4.6: "weeks straddle boundaries"), matching
// the pre-aggregation matcher's exception to an otherwise total order.
func CoarserOrEqual(g, other Granularity) bool {
	if g == Week && (other == Month || other == Quarter || other == Year) {
		return false
	}

	if other == Week && (g == Month || g == Quarter || g == Year) {
		return false
	}

	gr, gok := granularityRank[g]
	or, ook := granularityRank[other]

	return gok && ook && gr >= or
}

// AggFunc is the aggregation function of a base aggregate metric (spec.md
// §3).
type AggFunc string

const (
	Sum            AggFunc = "sum"
	Avg            AggFunc = "avg"
	Count          AggFunc = "count"
	CountDistinct  AggFunc = "count_distinct"
	Min            AggFunc = "min"
	Max            AggFunc = "max"
	Median         AggFunc = "median"
	StdDev         AggFunc = "stddev"
	StdDevPop      AggFunc = "stddev_pop"
	StdDevSamp     AggFunc = "stddev_samp"
	Variance       AggFunc = "variance"
	VarPop         AggFunc = "var_pop"
	VarSamp        AggFunc = "var_samp"
	ApproxDistinct AggFunc = "approx_distinct"
	ApproxQuantile AggFunc = "approx_quantile"
	Mode           AggFunc = "mode"
)

// RelationshipType is the cardinality of a Relationship edge (spec.md §3).
type RelationshipType string

const (
	ManyToOne  RelationshipType = "many_to_one"
	OneToMany  RelationshipType = "one_to_many"
	OneToOne   RelationshipType = "one_to_one"
	ManyToMany RelationshipType = "many_to_many"
)

// ComparisonType is the kind of time-comparison metric (spec.md §3).
type ComparisonType string

const (
	YoY ComparisonType = "yoy"
	MoM ComparisonType = "mom"
	WoW ComparisonType = "wow"
)
