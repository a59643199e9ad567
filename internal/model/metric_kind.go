package model

// MetricKind classifies a Metric by which of its variant-specific fields are
// populated (spec.md §3, §9).
type MetricKind string

const (
	AggregateMetric      MetricKind = "aggregate"
	RatioMetric          MetricKind = "ratio"
	DerivedMetric        MetricKind = "derived"
	CumulativeMetric     MetricKind = "cumulative"
	TimeComparisonMetric MetricKind = "time_comparison"
	ConversionMetric     MetricKind = "conversion"
	// InvalidMetric marks a declaration with no coherent variant, or more
	// than one (spec.md §7 InvalidMetricKind).
	InvalidMetric MetricKind = ""
)

// Type classifies m by which fields are set. Exactly one variant's
// discriminating fields may be populated; any other combination is
// InvalidMetric.
func (m *Metric) Type() MetricKind { //nolint:cyclop
	hasAgg := m.Agg != ""
	hasRatio := m.Numerator != "" || m.Denominator != ""
	hasCumulative := m.Window != "" || m.GrainToDate != ""
	hasTimeComparison := m.BaseMetric != "" || m.ComparisonType != ""
	hasConversion := m.Entity != "" || m.BaseEvent != "" || m.ConversionEvent != ""

	set := 0
	for _, b := range []bool{hasAgg, hasRatio, hasCumulative, hasTimeComparison, hasConversion} {
		if b {
			set++
		}
	}

	switch {
	case set > 1:
		return InvalidMetric
	case hasAgg:
		return AggregateMetric
	case hasRatio:
		if m.Numerator == "" || m.Denominator == "" {
			return InvalidMetric
		}

		return RatioMetric
	case hasCumulative:
		if m.SQL == "" {
			return InvalidMetric
		}

		return CumulativeMetric
	case hasTimeComparison:
		if m.BaseMetric == "" || m.ComparisonType == "" {
			return InvalidMetric
		}

		return TimeComparisonMetric
	case hasConversion:
		if m.Entity == "" || m.BaseEvent == "" || m.ConversionEvent == "" {
			return InvalidMetric
		}

		return ConversionMetric
	case m.SQL != "":
		// sql with none of the above discriminants set: a derived formula
		// over other metrics (spec.md §3).
		return DerivedMetric
	default:
		return InvalidMetric
	}
}
