package metric_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	compilergraph "github.com/accented-ai/semcompile/internal/compiler/graph"
	"github.com/accented-ai/semcompile/internal/compiler/metric"
	"github.com/accented-ai/semcompile/internal/model"
)

func buildPlanTestGraph(t *testing.T) *compilergraph.Resolver {
	t.Helper()

	g := model.NewGraph()

	orders := &model.Model{
		Name:  "orders",
		Table: "public.orders",
		Metrics: []model.Metric{
			{Name: "revenue", Agg: model.Sum, SQL: "amount"},
			{Name: "cost", Agg: model.Sum, SQL: "cost_amount"},
			{Name: "order_count", Agg: model.Count},
			{Name: "gross_margin", SQL: "revenue - cost"},
			{Name: "aov", Numerator: "revenue", Denominator: "order_count"},
		},
	}

	require.NoError(t, g.AddModel(orders))

	return compilergraph.New(g)
}

func TestBuildPlanOrdersBaseMetricsBeforeDerived(t *testing.T) {
	t.Parallel()

	r := buildPlanTestGraph(t)

	plan, err := metric.BuildPlan(r, []string{"orders.gross_margin"})
	require.NoError(t, err)
	require.Len(t, plan.Order, 3)

	positions := make(map[string]int, len(plan.Order))
	for i, rm := range plan.Order {
		positions[rm.Metric.Name] = i
	}

	require.Less(t, positions["cost"], positions["gross_margin"])
	require.Less(t, positions["revenue"], positions["gross_margin"])
}

func TestBuildPlanRatioDependsOnNumeratorAndDenominator(t *testing.T) {
	t.Parallel()

	r := buildPlanTestGraph(t)

	plan, err := metric.BuildPlan(r, []string{"orders.aov"})
	require.NoError(t, err)

	names := make([]string, 0, len(plan.Order))
	for _, rm := range plan.Order {
		names = append(names, rm.Metric.Name)
	}

	require.ElementsMatch(t, []string{"revenue", "order_count", "aov"}, names)
}

func TestBuildPlanDetectsSelfReference(t *testing.T) {
	t.Parallel()

	g := model.NewGraph()
	require.NoError(t, g.AddModel(&model.Model{
		Name:  "orders",
		Table: "public.orders",
		Metrics: []model.Metric{
			{Name: "circular", SQL: "circular + 1"},
		},
	}))

	r := compilergraph.New(g)

	_, err := metric.BuildPlan(r, []string{"orders.circular"})
	require.ErrorIs(t, err, metric.ErrSelfReferential)
}

func TestBuildPlanDetectsIndirectCycle(t *testing.T) {
	t.Parallel()

	g := model.NewGraph()
	require.NoError(t, g.AddModel(&model.Model{
		Name:  "orders",
		Table: "public.orders",
		Metrics: []model.Metric{
			{Name: "a", SQL: "b + 1"},
			{Name: "b", SQL: "a + 1"},
		},
	}))

	r := compilergraph.New(g)

	_, err := metric.BuildPlan(r, []string{"orders.a"})
	require.ErrorIs(t, err, metric.ErrSelfReferential)
}

func TestBuildPlanRejectsAggregateInDerivedFormula(t *testing.T) {
	t.Parallel()

	g := model.NewGraph()
	require.NoError(t, g.AddModel(&model.Model{
		Name:  "orders",
		Table: "public.orders",
		Metrics: []model.Metric{
			{Name: "revenue", Agg: model.Sum, SQL: "amount"},
			{Name: "bad_derived", SQL: "SUM(revenue)"},
		},
	}))

	r := compilergraph.New(g)

	_, err := metric.BuildPlan(r, []string{"orders.bad_derived"})
	require.ErrorIs(t, err, metric.ErrDerivedContainsAggregate)
}

func TestDependenciesByKind(t *testing.T) {
	t.Parallel()

	deps, err := metric.Dependencies(&model.Metric{Name: "m", Agg: model.Sum, SQL: "amount"})
	require.NoError(t, err)
	require.Nil(t, deps)

	deps, err = metric.Dependencies(&model.Metric{Name: "m", BaseMetric: "revenue", ComparisonType: model.YoY})
	require.NoError(t, err)
	require.Equal(t, []string{"revenue"}, deps)

	deps, err = metric.Dependencies(&model.Metric{Name: "m", Numerator: "revenue", Denominator: "orders.count"})
	require.NoError(t, err)
	require.Equal(t, []string{"revenue", "orders.count"}, deps)
}
