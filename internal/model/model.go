package model

import (
	"fmt"
	"strings"
)

// Model is a logical table with declared dimensions, metrics,
// relationships, and segments (spec.md §3).
type Model struct {
	Name string `json:"name"`

	// Source: exactly one of Table or SQL.
	Table string `json:"table,omitempty"`
	SQL   string `json:"sql,omitempty"`

	// PrimaryKey defaults to ["id"] when unset.
	PrimaryKey []string `json:"primary_key,omitempty"`

	Dimensions      []Dimension      `json:"dimensions,omitempty"`
	Metrics         []Metric         `json:"metrics,omitempty"`
	Relationships   []Relationship   `json:"relationships,omitempty"`
	Segments        []Segment        `json:"segments,omitempty"`
	PreAggregations []PreAggregation `json:"pre_aggregations,omitempty"`

	DefaultTimeDimension string      `json:"default_time_dimension,omitempty"`
	DefaultGrain         Granularity `json:"default_grain,omitempty"`

	AutoDimensions bool `json:"auto_dimensions,omitempty"`
}

// PrimaryKeyColumns returns the model's primary key, defaulting to ["id"].
func (m *Model) PrimaryKeyColumns() []string {
	if len(m.PrimaryKey) > 0 {
		return m.PrimaryKey
	}

	return []string{"id"}
}

// FromClause returns the SQL the model's CTE selects FROM: the table name
// verbatim, or the subquery SQL wrapped in parentheses (spec.md §3: "the
// core treats these uniformly").
func (m *Model) FromClause() string {
	if m.Table != "" {
		return m.Table
	}

	return "(" + m.SQL + ")"
}

// Schema returns the schema qualifying this model's table source, defaulting
// to "public" when Table is unqualified or the model sources from inline SQL
// (spec.md §6.5's schema-qualified rollup table naming needs this even
// though Table itself never carries an explicit default).
func (m *Model) Schema() string {
	if idx := strings.IndexByte(m.Table, '.'); idx >= 0 {
		return m.Table[:idx]
	}

	return "public"
}

// Dimension looks up a dimension declared directly on this model by name.
func (m *Model) Dimension(name string) (*Dimension, bool) {
	for i := range m.Dimensions {
		if m.Dimensions[i].Name == name {
			return &m.Dimensions[i], true
		}
	}

	return nil, false
}

// Metric looks up a metric declared directly on this model by name.
func (m *Model) Metric(name string) (*Metric, bool) {
	for i := range m.Metrics {
		if m.Metrics[i].Name == name {
			return &m.Metrics[i], true
		}
	}

	return nil, false
}

// Relationship looks up an outgoing relationship by its target model name.
func (m *Model) Relationship(targetName string) (*Relationship, bool) {
	for i := range m.Relationships {
		if m.Relationships[i].Name == targetName {
			return &m.Relationships[i], true
		}
	}

	return nil, false
}

// Segment looks up a segment declared on this model by name.
func (m *Model) Segment(name string) (*Segment, bool) {
	for i := range m.Segments {
		if m.Segments[i].Name == name {
			return &m.Segments[i], true
		}
	}

	return nil, false
}

// PreAggregation looks up a rollup declared on this model by name.
func (m *Model) PreAggregation(name string) (*PreAggregation, bool) {
	for i := range m.PreAggregations {
		if m.PreAggregations[i].Name == name {
			return &m.PreAggregations[i], true
		}
	}

	return nil, false
}

// Validate checks the structural invariants spec.md §3 places on a Model in
// isolation (cross-model invariants like relationship targets existing are
// checked by the graph at registration time, spec.md §4.2).
func (m *Model) Validate() error {
	if m.Name == "" {
		return fmt.Errorf("model: %w: name is required", ErrInvalidModel)
	}

	if m.Table == "" && m.SQL == "" {
		return fmt.Errorf("model %q: %w: exactly one of table or sql is required", m.Name, ErrInvalidModel)
	}

	if m.Table != "" && m.SQL != "" {
		return fmt.Errorf("model %q: %w: table and sql are mutually exclusive", m.Name, ErrInvalidModel)
	}

	seen := make(map[string]bool)

	for _, d := range m.Dimensions {
		if seen[d.Name] {
			return fmt.Errorf("model %q: %w: duplicate dimension %q", m.Name, ErrInvalidModel, d.Name)
		}

		seen[d.Name] = true
	}

	seenMetric := make(map[string]bool)

	for _, mt := range m.Metrics {
		if seenMetric[mt.Name] {
			return fmt.Errorf("model %q: %w: duplicate metric %q", m.Name, ErrInvalidModel, mt.Name)
		}

		seenMetric[mt.Name] = true

		if mt.Type() == InvalidMetric {
			return fmt.Errorf("model %q metric %q: %w", m.Name, mt.Name, ErrInvalidMetricShape)
		}
	}

	return nil
}
