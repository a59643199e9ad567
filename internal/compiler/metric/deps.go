package metric

import (
	"fmt"

	"github.com/accented-ai/semcompile/internal/model"
	"github.com/accented-ai/semcompile/internal/sqlast"
)

// Dependencies returns the other metric names m references, as raw
// (possibly qualified) reference strings not yet resolved against a graph.
// aggregate and conversion metrics depend on no other metric (they are leaf
// nodes of the dependency DAG, spec.md §4.3).
func Dependencies(m *model.Metric) ([]string, error) {
	switch m.Type() {
	case model.RatioMetric:
		return []string{m.Numerator, m.Denominator}, nil

	case model.DerivedMetric:
		refs, err := identifierNames(m.SQL)
		if err != nil {
			return nil, fmt.Errorf("metric %q: %w", m.Name, err)
		}

		return refs, nil

	case model.CumulativeMetric:
		refs, err := identifierNames(m.SQL)
		if err != nil {
			return nil, fmt.Errorf("metric %q: %w", m.Name, err)
		}

		return refs, nil

	case model.TimeComparisonMetric:
		return []string{m.BaseMetric}, nil

	case model.AggregateMetric, model.ConversionMetric:
		return nil, nil

	default:
		return nil, fmt.Errorf("metric %q: %w", m.Name, model.ErrInvalidMetricShape)
	}
}

// identifierNames parses sql as an expression and returns the dotted name of
// every identifier it references, deduplicated and in first-seen order. It
// also enforces spec.md §3's derived-metric invariant that the formula must
// not itself aggregate a base column.
func identifierNames(sql string) ([]string, error) {
	expr, err := sqlast.Parse(sql, sqlast.Postgres)
	if err != nil {
		return nil, err
	}

	if sqlast.HasAggregate(expr) {
		return nil, ErrDerivedContainsAggregate
	}

	idents := sqlast.Identifiers(expr)

	seen := make(map[string]bool, len(idents))

	names := make([]string, 0, len(idents))

	for _, ident := range idents {
		name := dottedName(ident)
		if seen[name] {
			continue
		}

		seen[name] = true

		names = append(names, name)
	}

	return names, nil
}

func dottedName(ident *sqlast.Ident) string {
	name := ident.Last()
	if q := ident.Qualifier(); q != "" {
		name = q + "." + name
	}

	return name
}
