package model

import "fmt"

// PreAggregation is a materialized rollup attached to a Model (spec.md §3,
// §6.5). Physical materialization is out of scope; the core treats the
// rollup's table as authoritative once a request routes to it.
type PreAggregation struct {
	Name       string   `json:"name"`
	Measures   []string `json:"measures"`   // subset of the owning model's metric names
	Dimensions []string `json:"dimensions"` // categorical columns retained

	TimeDimension        string      `json:"time_dimension,omitempty"`
	Granularity          Granularity `json:"granularity,omitempty"`
	PartitionGranularity Granularity `json:"partition_granularity,omitempty"`
}

// TableName returns the externally-materialized rollup table's conventional
// name (spec.md §6.5): "<schema>.<model>_preagg_<rollup_name>".
func (p *PreAggregation) TableName(schema, modelName string) string {
	return fmt.Sprintf("%s.%s_preagg_%s", schema, modelName, p.Name)
}

// MeasureColumn returns the rollup's raw-measure column name for a
// materialised metric (spec.md §6.5): "<measure>_raw".
func (p *PreAggregation) MeasureColumn(metricName string) string {
	return metricName + "_raw"
}

// TimeColumn returns the rollup's truncated time column name (spec.md
// §6.5): "<time_dim>_<granularity>".
func (p *PreAggregation) TimeColumn() string {
	if p.TimeDimension == "" {
		return ""
	}

	return fmt.Sprintf("%s_%s", p.TimeDimension, p.Granularity)
}

// HasMeasure reports whether metricName is among the rollup's materialised
// measures.
func (p *PreAggregation) HasMeasure(metricName string) bool {
	for _, m := range p.Measures {
		if m == metricName {
			return true
		}
	}

	return false
}

// HasDimension reports whether dimName is among the rollup's retained
// dimensions.
func (p *PreAggregation) HasDimension(dimName string) bool {
	for _, d := range p.Dimensions {
		if d == dimName {
			return true
		}
	}

	return false
}
