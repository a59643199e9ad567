package model

// Metric is any computable numeric output exposed by the semantic layer
// (spec.md §3). Its kind is not declared directly; it is determined by
// which of the kind-specific fields below are populated (see Metric.Type
// in metric_kind.go) — in the spirit of spec.md §9's
// "tagged enumeration over variants" guidance, the cosmetic fields live on
// this single outer struct and each variant's resolver only reads its own
// fields.
type Metric struct {
	Name string `json:"name"`

	// aggregate
	Agg AggFunc `json:"agg,omitempty"`
	SQL string  `json:"sql,omitempty"` // aggregate inner expr, or derived/cumulative formula

	// ratio
	Numerator   string `json:"numerator,omitempty"`
	Denominator string `json:"denominator,omitempty"`

	// cumulative
	Window      string      `json:"window,omitempty"`
	GrainToDate Granularity `json:"grain_to_date,omitempty"`

	// time_comparison
	BaseMetric     string         `json:"base_metric,omitempty"`
	ComparisonType ComparisonType `json:"comparison_type,omitempty"`

	// conversion
	Entity           string `json:"entity,omitempty"`
	BaseEvent        string `json:"base_event,omitempty"`
	ConversionEvent  string `json:"conversion_event,omitempty"`
	ConversionWindow string `json:"conversion_window,omitempty"`

	// Filters are per-metric templated row-level predicates, applied as
	// CASE WHEN ... THEN <expr> END inside the aggregate (spec.md §3, §4.4).
	// {model} is substituted with the owning model's CTE alias.
	Filters []string `json:"filters,omitempty"`

	Label               string   `json:"label,omitempty"`
	Description         string   `json:"description,omitempty"`
	Format              string   `json:"format,omitempty"`
	ValueFormatName     string   `json:"value_format_name,omitempty"`
	DrillFields         []string `json:"drill_fields,omitempty"`
	DefaultTimeDimension string  `json:"default_time_dimension,omitempty"`
	DefaultGrain        Granularity `json:"default_grain,omitempty"`
	// NonAdditiveDimension names a dimension (typically a snapshot date)
	// along which this metric must not be summed across rows; the planner
	// picks one row per group (the latest by this dimension) before
	// aggregating (SPEC_FULL.md §4).
	NonAdditiveDimension string `json:"non_additive_dimension,omitempty"`
}

// IsCountWithNoSQL reports the "row count" special case: count with no sql
// means the raw column is the literal 1, not a pk/column reference (spec.md
// §3, §8 "never the metric's own name as a column").
func (m *Metric) IsCountWithNoSQL() bool {
	return m.Agg == Count && m.SQL == ""
}
