package planner

import (
	"fmt"
	"strings"

	"github.com/accented-ai/semcompile/internal/model"
	"github.com/accented-ai/semcompile/internal/sqlast"
)

// nonAdditiveGuard renders the "ROW_NUMBER() OVER (...) = 1" predicate a
// non-additive metric's raw column is CASE-WHEN-guarded by (SPEC_FULL.md §4,
// sidemantic-style semantics): a metric like an account balance must not be
// summed across every row that happens to carry it (e.g. one row per ledger
// entry on the same as-of date), only the most recent row per group. Every
// row is ranked by how recent its non_additive_dimension value is within its
// partition; only the rank-1 row's value survives into the aggregate, the
// rest are excluded by the guard (never NULLed by an unrelated join — this
// operates row-wise inside the owning model's own CTE, before any join).
//
// Partitioning is scoped to this model's own requested dimensions: a
// non-additive metric's owning model can only see dimensions its own CTE
// already projects, not ones owned by a model it will later be joined to.
func nonAdditiveGuard(plan ctePlan, m *model.Metric, dialect sqlast.Dialect) (string, error) {
	nonAdditive, ok := plan.Model.Dimension(m.NonAdditiveDimension)
	if !ok {
		return "", fmt.Errorf("metric %q: %w: non_additive_dimension %q", m.Name, ErrUnresolvedDependency, m.NonAdditiveDimension)
	}

	orderExpr, err := sqlast.Parse(nonAdditive.Expr(), sqlast.Postgres)
	if err != nil {
		return "", fmt.Errorf("metric %q non_additive_dimension: %w", m.Name, err)
	}

	partitionBy := make([]string, 0, len(plan.Dimensions))

	for _, d := range plan.Dimensions {
		expr, err := dimensionExpr(d)
		if err != nil {
			return "", fmt.Errorf("metric %q non_additive_dimension partition: %w", m.Name, err)
		}

		partitionBy = append(partitionBy, sqlast.Emit(expr, dialect))
	}

	var over strings.Builder

	over.WriteString("ROW_NUMBER() OVER (")

	if len(partitionBy) > 0 {
		fmt.Fprintf(&over, "PARTITION BY %s ", strings.Join(partitionBy, ", "))
	}

	fmt.Fprintf(&over, "ORDER BY %s DESC)", sqlast.Emit(orderExpr, dialect))

	return over.String() + " = 1", nil
}
