package planner

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/accented-ai/semcompile/internal/model"
	"github.com/accented-ai/semcompile/internal/sqlast"
)

func buildBuildTestGraph(t *testing.T) *model.Graph {
	t.Helper()

	g := model.NewGraph()

	orders := &model.Model{
		Name:  "orders",
		Table: "public.orders",
		Dimensions: []model.Dimension{
			{Name: "status", Kind: model.Categorical},
			{Name: "order_date", Kind: model.Time, Granularity: model.Day},
		},
		Metrics: []model.Metric{
			{Name: "revenue", Agg: model.Sum, SQL: "amount"},
			{Name: "cost", Agg: model.Sum, SQL: "cost_amount"},
			{Name: "margin", Numerator: "revenue", Denominator: "cost"},
		},
		Relationships: []model.Relationship{
			{Name: "customers", Type: model.ManyToOne, ForeignKey: "customer_id"},
		},
	}

	customers := &model.Model{
		Name:  "customers",
		Table: "public.customers",
		Dimensions: []model.Dimension{
			{Name: "tier", Kind: model.Categorical},
		},
	}

	require.NoError(t, g.AddModel(customers))
	require.NoError(t, g.AddModel(orders))

	return g
}

func buildEventsRollupGraph(t *testing.T) *model.Graph {
	t.Helper()

	g := model.NewGraph()

	events := &model.Model{
		Name:  "events",
		Table: "public.events",
		Dimensions: []model.Dimension{
			{Name: "event_type", Kind: model.Categorical},
			{Name: "event_date", Kind: model.Time, Granularity: model.Day},
		},
		Metrics: []model.Metric{
			{Name: "event_count", Agg: model.Count},
			{Name: "total_amount", Agg: model.Sum, SQL: "amount"},
		},
		PreAggregations: []model.PreAggregation{
			{
				Name:          "daily_by_type",
				Measures:      []string{"event_count", "total_amount"},
				Dimensions:    []string{"event_type"},
				TimeDimension: "event_date",
				Granularity:   model.Day,
			},
		},
	}

	require.NoError(t, g.AddModel(events))

	return g
}

// TestBuildRoutesToMatchedRollup covers spec.md §8 Testable Scenario 5: a
// request compatible with a declared rollup's dimensions, granularity, and
// measures must read only from the rollup table, never the base table.
func TestBuildRoutesToMatchedRollup(t *testing.T) {
	t.Parallel()

	g := buildEventsRollupGraph(t)

	req := Request{
		MetricRefs:    []string{"events.event_count", "events.total_amount"},
		DimensionRefs: []string{"events.event_type", "events.event_date__month"},
	}

	res, err := Build(g, req, sqlast.Postgres)
	require.NoError(t, err)
	require.Contains(t, res.SQL, "FROM public.events_preagg_daily_by_type AS events")
	require.NotContains(t, res.SQL, "FROM public.events AS events")
	require.Contains(t, res.SQL, "DATE_TRUNC('month', event_date_day) AS events__event_date__month")
	require.Contains(t, res.SQL, "event_count_raw AS events__event_count_raw")
	require.Contains(t, res.SQL, "total_amount_raw AS events__total_amount_raw")
	require.Contains(t, res.SQL, "SUM(events.events__event_count_raw) AS events__event_count")
	require.Contains(t, res.SQL, "SUM(events.events__total_amount_raw) AS events__total_amount")
	require.True(t, res.Plan.UsedPreAggregation)
	require.Equal(t, "daily_by_type", res.Plan.PreAggregationName)
}

// TestBuildFallsBackToBaseTablesOnGranularityMismatch covers spec.md §8
// Testable Scenario 6: a month-grain request against a week-grain rollup,
// where week is never compatible with month, so the matcher must reject the
// rollup and the compiler keeps reading the base table.
func TestBuildFallsBackToBaseTablesOnGranularityMismatch(t *testing.T) {
	t.Parallel()

	g := buildEventsRollupGraph(t)

	events, err := g.Model("events")
	require.NoError(t, err)

	events.PreAggregations[0].Granularity = model.Week

	req := Request{
		MetricRefs:    []string{"events.event_count"},
		DimensionRefs: []string{"events.event_type", "events.event_date__month"},
	}

	res, err := Build(g, req, sqlast.Postgres)
	require.NoError(t, err)
	require.Contains(t, res.SQL, "FROM public.events AS events")
	require.NotContains(t, res.SQL, "events_preagg_daily_by_type")
	require.False(t, res.Plan.UsedPreAggregation)
}

func TestBuildSingleModelAggregateWithDimension(t *testing.T) {
	t.Parallel()

	g := buildBuildTestGraph(t)

	req := Request{
		MetricRefs:    []string{"orders.revenue"},
		DimensionRefs: []string{"orders.status"},
	}

	res, err := Build(g, req, sqlast.Postgres)
	require.NoError(t, err)
	require.Contains(t, res.SQL, "WITH orders_cte AS (")
	require.Contains(t, res.SQL, "amount AS orders__revenue_raw")
	require.Contains(t, res.SQL, "status AS orders__status")
	require.Contains(t, res.SQL, "SUM(orders.orders__revenue_raw) AS orders__revenue")
	require.Contains(t, res.SQL, "GROUP BY 1")
	require.Contains(t, res.SQL, "orders__status AS status")
	require.Contains(t, res.SQL, "orders__revenue AS revenue")
	require.Equal(t, []string{"orders"}, res.Plan.Models)
}

func TestBuildRatioMetricAddsOuterLayer(t *testing.T) {
	t.Parallel()

	g := buildBuildTestGraph(t)

	req := Request{
		MetricRefs: []string{"orders.margin"},
	}

	res, err := Build(g, req, sqlast.Postgres)
	require.NoError(t, err)
	require.Contains(t, res.SQL, "SUM(orders.orders__revenue_raw) AS orders__revenue")
	require.Contains(t, res.SQL, "SUM(orders.orders__cost_raw) AS orders__cost")
	require.Contains(t, res.SQL, "CAST(orders__revenue AS DOUBLE) / NULLIF(orders__cost, 0) AS orders__margin")
	require.Contains(t, res.SQL, "AS agg")
	require.Contains(t, res.SQL, "orders__margin AS margin")
	require.NotContains(t, res.SQL, "AS revenue", "raw-only aggregates used solely as ratio inputs must not leak into the final layer")
}

func TestBuildJoinsAcrossModels(t *testing.T) {
	t.Parallel()

	g := buildBuildTestGraph(t)

	req := Request{
		MetricRefs:    []string{"orders.revenue"},
		DimensionRefs: []string{"customers.tier"},
	}

	res, err := Build(g, req, sqlast.Postgres)
	require.NoError(t, err)
	require.Contains(t, res.SQL, "customers_cte AS (")
	require.Contains(t, res.SQL, "LEFT JOIN customers_cte AS customers ON orders.customer_id = customers.id")
	require.Contains(t, res.SQL, "customers__tier AS tier")
	require.ElementsMatch(t, []string{"orders", "customers"}, res.Plan.Models)
}

func TestBuildPushdownFilterProjectsRawColumnIntoCTE(t *testing.T) {
	t.Parallel()

	g := buildBuildTestGraph(t)

	req := Request{
		MetricRefs: []string{"orders.revenue"},
		Filters:    []string{"orders.status = 'closed'"},
	}

	res, err := Build(g, req, sqlast.Postgres)
	require.NoError(t, err)
	require.Contains(t, res.SQL, "status AS status")
	require.Contains(t, res.SQL, "WHERE orders.status = 'closed'")
}

func TestBuildHavingFilterOnRequestedMetric(t *testing.T) {
	t.Parallel()

	g := buildBuildTestGraph(t)

	req := Request{
		MetricRefs:    []string{"orders.revenue"},
		DimensionRefs: []string{"orders.status"},
		Filters:       []string{"orders.revenue > 1000"},
	}

	res, err := Build(g, req, sqlast.Postgres)
	require.NoError(t, err)
	require.Contains(t, res.SQL, "HAVING orders__revenue > 1000")
}

func TestBuildOrderByLimitOffset(t *testing.T) {
	t.Parallel()

	g := buildBuildTestGraph(t)

	limit, offset := 10, 5
	req := Request{
		MetricRefs:    []string{"orders.revenue"},
		DimensionRefs: []string{"orders.status"},
		OrderBy:       []OrderSpec{{Expr: "revenue", Desc: true}},
		Limit:         &limit,
		Offset:        &offset,
	}

	res, err := Build(g, req, sqlast.Postgres)
	require.NoError(t, err)
	require.Contains(t, res.SQL, "ORDER BY revenue DESC")
	require.Contains(t, res.SQL, "LIMIT 10")
	require.Contains(t, res.SQL, "OFFSET 5")
}

func TestBuildNoModelsTouchedFails(t *testing.T) {
	t.Parallel()

	g := buildBuildTestGraph(t)

	_, err := Build(g, Request{}, sqlast.Postgres)
	require.ErrorIs(t, err, ErrNoModelsTouched)
}

func TestBuildUnknownDimensionFails(t *testing.T) {
	t.Parallel()

	g := buildBuildTestGraph(t)

	_, err := Build(g, Request{DimensionRefs: []string{"orders.nonexistent"}}, sqlast.Postgres)
	require.Error(t, err)
}

func TestBuildParameterSubstitutionInFilters(t *testing.T) {
	t.Parallel()

	g := buildBuildTestGraph(t)

	req := Request{
		MetricRefs: []string{"orders.revenue"},
		Filters:    []string{"orders.status = {status}"},
		Parameters: map[string]any{"status": "closed"},
	}

	res, err := Build(g, req, sqlast.Postgres)
	require.NoError(t, err)
	require.Contains(t, res.SQL, "WHERE orders.status = 'closed'")
}
