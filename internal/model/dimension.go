package model

// Dimension is a named column-level attribute used to group or filter rows
// (spec.md §3).
type Dimension struct {
	Name        string        `json:"name"`
	Kind        DimensionKind `json:"kind"`
	SQL         string        `json:"sql,omitempty"`
	Granularity Granularity   `json:"granularity,omitempty"`
	// SupportedGranularities lists granularities coarser-or-equal to
	// Granularity that a request may roll the dimension up to.
	SupportedGranularities []Granularity `json:"supported_granularities,omitempty"`
	Parent                 string        `json:"parent,omitempty"`

	Label           string `json:"label,omitempty"`
	Description     string `json:"description,omitempty"`
	Format          string `json:"format,omitempty"`
	ValueFormatName string `json:"value_format_name,omitempty"`
}

// Expr returns the dimension's source SQL expression, defaulting to its own
// name when none is declared (spec.md §3).
func (d *Dimension) Expr() string {
	if d.SQL != "" {
		return d.SQL
	}

	return d.Name
}

// SupportsGranularity reports whether g is a valid rollup target for this
// dimension: g must be recognised, coarser-or-equal to the base
// granularity, and either explicitly listed or implied when no explicit
// list was declared (spec.md §3, §6.2).
func (d *Dimension) SupportsGranularity(g Granularity) bool {
	if d.Kind != Time {
		return false
	}

	if !ValidGranularity(g) {
		return false
	}

	if !CoarserOrEqual(g, d.Granularity) {
		return false
	}

	if len(d.SupportedGranularities) == 0 {
		return true
	}

	for _, sg := range d.SupportedGranularities {
		if sg == g {
			return true
		}
	}

	return false
}
