// Package filter implements the filter classifier and relative-date
// expander (spec.md §4.4, §4.5): partitioning user-supplied predicate
// fragments into CTE-pushdown, HAVING, and outer-WHERE buckets, and
// rewriting relative-date literals into dialect-neutral expressions first.
package filter

import (
	"fmt"

	"github.com/accented-ai/semcompile/internal/sqlast"
)

// Bucket is which clause of the emitted SQL a classified predicate belongs
// in (spec.md §4.4). Metric-local filters are not classified here: they
// live on the Metric declaration itself and are rendered directly into the
// metric's aggregate CASE expression by the planner.
type Bucket string

const (
	// BucketPushdown predicates reference columns of exactly one model and
	// no metric output; they are attached to that model's CTE WHERE clause.
	BucketPushdown Bucket = "pushdown"
	// BucketHaving predicates reference at least one requested metric's
	// output name and must run after aggregation.
	BucketHaving Bucket = "having"
	// BucketOuter predicates span more than one model, or reference no
	// model-qualified column at all, and can only be evaluated after the
	// join.
	BucketOuter Bucket = "outer"
)

// Classified is one user filter fragment after relative-date expansion and
// bucket classification.
type Classified struct {
	Bucket  Bucket
	Model   string       // owning model name, set only for BucketPushdown
	Expr    sqlast.Expr  // expanded expression, ready to emit
	Columns []string     // "model.column" references the expression needs present in a CTE projection
	Source  string       // original, unexpanded fragment text
}

// Classify parses, relative-date-expands, and buckets every filter fragment
// in filters. requestedMetrics is the set of metric names (both bare and
// model-qualified forms a request may use) the HAVING check matches
// identifiers against (spec.md §4.4 rule 3).
func Classify(filters []string, dialect sqlast.Dialect, requestedMetrics map[string]bool) ([]Classified, error) {
	out := make([]Classified, 0, len(filters))

	for _, raw := range filters {
		expr, err := sqlast.Parse(raw, dialect)
		if err != nil {
			return nil, fmt.Errorf("filter %q: %w", raw, err)
		}

		expanded := ExpandRelativeDates(expr)

		idents := sqlast.Identifiers(expanded)
		columns := make([]string, 0, len(idents))
		models := make(map[string]bool)
		referencesMetric := false

		for _, id := range idents {
			if requestedMetrics[id.Last()] {
				referencesMetric = true
			}

			qualifier := id.Qualifier()
			if qualifier == "" {
				continue
			}

			models[qualifier] = true
			columns = append(columns, qualifier+"."+id.Last())

			if requestedMetrics[qualifier+"."+id.Last()] {
				referencesMetric = true
			}
		}

		c := Classified{Expr: expanded, Columns: columns, Source: raw}

		switch {
		case referencesMetric:
			c.Bucket = BucketHaving
		case len(models) == 1:
			c.Bucket = BucketPushdown
			for m := range models {
				c.Model = m
			}
		default:
			c.Bucket = BucketOuter
		}

		out = append(out, c)
	}

	return out, nil
}
