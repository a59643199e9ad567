package planner

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/accented-ai/semcompile/internal/model"
	"github.com/accented-ai/semcompile/internal/sqlast"
)

func ordersModel() *model.Model {
	return &model.Model{
		Name:  "orders",
		Table: "public.orders",
		Dimensions: []model.Dimension{
			{Name: "order_date", Kind: model.Time, Granularity: model.Day},
			{Name: "status", Kind: model.Categorical},
		},
		Metrics: []model.Metric{
			{Name: "revenue", Agg: model.Sum, SQL: "amount"},
			{Name: "completed_revenue", Agg: model.Sum, SQL: "amount", Filters: []string{"{model}.status = 'completed'"}},
			{Name: "order_count", Agg: model.Count},
		},
	}
}

func TestBuildModelCTEProjectsPKDimensionsAndRawMetrics(t *testing.T) {
	t.Parallel()

	m := ordersModel()

	plan := ctePlan{
		Model: m,
		Dimensions: []cteDimension{
			{Dim: &m.Dimensions[1], OutputName: "status"},
		},
		Metrics: []cteMetric{
			{Metric: &m.Metrics[0], OutputName: "revenue_raw"},
			{Metric: &m.Metrics[2], OutputName: "order_count_raw"},
		},
	}

	sql, err := buildModelCTE(plan, sqlast.Postgres)
	require.NoError(t, err)
	require.Contains(t, sql, "orders_cte AS (")
	require.Contains(t, sql, "id AS id")
	require.Contains(t, sql, "status AS status")
	require.Contains(t, sql, "amount AS revenue_raw")
	require.Contains(t, sql, "1 AS order_count_raw")
	require.Contains(t, sql, "FROM public.orders AS orders")
	require.NotContains(t, sql, "WHERE")
}

func TestBuildModelCTERewritesTimeDimensionGranularity(t *testing.T) {
	t.Parallel()

	m := ordersModel()

	plan := ctePlan{
		Model: m,
		Dimensions: []cteDimension{
			{Dim: &m.Dimensions[0], Granularity: model.Month, OutputName: "order_date__month"},
		},
	}

	sql, err := buildModelCTE(plan, sqlast.Postgres)
	require.NoError(t, err)
	require.Contains(t, sql, "DATE_TRUNC('month', order_date) AS order_date__month")
}

func TestBuildModelCTEAppliesMetricLocalFilterAsCaseWhen(t *testing.T) {
	t.Parallel()

	m := ordersModel()

	plan := ctePlan{
		Model: m,
		Metrics: []cteMetric{
			{Metric: &m.Metrics[1], OutputName: "completed_revenue_raw"},
		},
	}

	sql, err := buildModelCTE(plan, sqlast.Postgres)
	require.NoError(t, err)
	require.Contains(t, sql, "CASE WHEN orders.status = 'completed' THEN amount END AS completed_revenue_raw")
}

func TestBuildModelCTEAppliesPushdownWhereAndSilentColumns(t *testing.T) {
	t.Parallel()

	m := ordersModel()

	where, err := sqlast.Parse("orders.status = 'completed'", sqlast.Postgres)
	require.NoError(t, err)

	plan := ctePlan{
		Model:         m,
		SilentColumns: []string{"customer_id"},
		Where:         []sqlast.Expr{where},
	}

	sql, err := buildModelCTE(plan, sqlast.Postgres)
	require.NoError(t, err)
	require.Contains(t, sql, "customer_id AS customer_id")
	require.Contains(t, sql, "WHERE orders.status = 'completed'")
}

func TestBuildModelCTEGuardsNonAdditiveMetricWithRowNumber(t *testing.T) {
	t.Parallel()

	m := &model.Model{
		Name:  "account_snapshots",
		Table: "public.account_snapshots",
		Dimensions: []model.Dimension{
			{Name: "account_id", Kind: model.Categorical},
			{Name: "as_of_date", Kind: model.Time, Granularity: model.Day},
		},
		Metrics: []model.Metric{
			{Name: "balance", Agg: model.Sum, SQL: "balance", NonAdditiveDimension: "as_of_date"},
		},
	}

	plan := ctePlan{
		Model: m,
		Dimensions: []cteDimension{
			{Dim: &m.Dimensions[0], OutputName: "account_snapshots__account_id"},
		},
		Metrics: []cteMetric{
			{Metric: &m.Metrics[0], OutputName: "balance_raw"},
		},
	}

	sql, err := buildModelCTE(plan, sqlast.Postgres)
	require.NoError(t, err)
	require.Contains(t, sql, "CASE WHEN ROW_NUMBER() OVER (PARTITION BY account_id ORDER BY as_of_date DESC) = 1 THEN balance END AS balance_raw")
}

func TestBuildModelCTEUnknownNonAdditiveDimensionFails(t *testing.T) {
	t.Parallel()

	m := &model.Model{
		Name:  "account_snapshots",
		Table: "public.account_snapshots",
		Metrics: []model.Metric{
			{Name: "balance", Agg: model.Sum, SQL: "balance", NonAdditiveDimension: "nonexistent"},
		},
	}

	plan := ctePlan{
		Model:   m,
		Metrics: []cteMetric{{Metric: &m.Metrics[0], OutputName: "balance_raw"}},
	}

	_, err := buildModelCTE(plan, sqlast.Postgres)
	require.ErrorIs(t, err, ErrUnresolvedDependency)
}

func TestBuildModelCTECompositeKeyCountDistinctConcatenates(t *testing.T) {
	t.Parallel()

	m := &model.Model{
		Name:       "line_items",
		Table:      "public.line_items",
		PrimaryKey: []string{"order_id", "item_id"},
		Metrics: []model.Metric{
			{Name: "distinct_lines", Agg: model.CountDistinct},
		},
	}

	plan := ctePlan{
		Model:   m,
		Metrics: []cteMetric{{Metric: &m.Metrics[0], OutputName: "distinct_lines_raw"}},
	}

	sql, err := buildModelCTE(plan, sqlast.Postgres)
	require.NoError(t, err)
	require.Contains(t, sql, "CONCAT(CAST(order_id AS TEXT), '-\x1f-', CAST(item_id AS TEXT)) AS distinct_lines_raw")
}

func TestBuildModelCTESingleKeyCountDistinctUsesBareColumn(t *testing.T) {
	t.Parallel()

	m := ordersModel()
	m.Metrics = append(m.Metrics, model.Metric{Name: "distinct_customers", Agg: model.CountDistinct})

	plan := ctePlan{
		Model:   m,
		Metrics: []cteMetric{{Metric: &m.Metrics[3], OutputName: "distinct_customers_raw"}},
	}

	sql, err := buildModelCTE(plan, sqlast.Postgres)
	require.NoError(t, err)
	require.Contains(t, sql, "id AS distinct_customers_raw")
}

func eventsModelWithRollup() (*model.Model, *model.PreAggregation) {
	m := &model.Model{
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
	}

	pa := &model.PreAggregation{
		Name:          "daily_by_type",
		Measures:      []string{"event_count", "total_amount"},
		Dimensions:    []string{"event_type"},
		TimeDimension: "event_date",
		Granularity:   model.Day,
	}

	m.PreAggregations = []model.PreAggregation{*pa}

	return m, pa
}

func TestBuildModelCTERollupReadsFromRollupTableNotBase(t *testing.T) {
	t.Parallel()

	m, pa := eventsModelWithRollup()

	plan := ctePlan{
		Model:  m,
		Rollup: pa,
		Dimensions: []cteDimension{
			{Dim: &m.Dimensions[0], OutputName: "events__event_type"},
			{Dim: &m.Dimensions[1], Granularity: model.Month, OutputName: "events__event_date__month"},
		},
		Metrics: []cteMetric{
			{Metric: &m.Metrics[0], OutputName: "events__event_count_raw"},
			{Metric: &m.Metrics[1], OutputName: "events__total_amount_raw"},
		},
	}

	sql, err := buildModelCTE(plan, sqlast.Postgres)
	require.NoError(t, err)
	require.Contains(t, sql, "FROM public.events_preagg_daily_by_type AS events")
	require.NotContains(t, sql, "FROM public.events AS events")
	require.Contains(t, sql, "event_type AS events__event_type")
	require.Contains(t, sql, "DATE_TRUNC('month', event_date_day) AS events__event_date__month")
	require.Contains(t, sql, "event_count_raw AS events__event_count_raw")
	require.Contains(t, sql, "total_amount_raw AS events__total_amount_raw")
	require.NotContains(t, sql, "id AS id")
}

func TestBuildModelCTERollupExactGranularityOmitsDateTrunc(t *testing.T) {
	t.Parallel()

	m, pa := eventsModelWithRollup()

	plan := ctePlan{
		Model:  m,
		Rollup: pa,
		Dimensions: []cteDimension{
			{Dim: &m.Dimensions[1], Granularity: model.Day, OutputName: "events__event_date__day"},
		},
	}

	sql, err := buildModelCTE(plan, sqlast.Postgres)
	require.NoError(t, err)
	require.Contains(t, sql, "event_date_day AS events__event_date__day")
	require.NotContains(t, sql, "DATE_TRUNC")
}

func TestBuildModelCTERollupAvgProjectsSiblingSumAndCount(t *testing.T) {
	t.Parallel()

	m, pa := eventsModelWithRollup()
	m.Metrics = append(m.Metrics, model.Metric{Name: "avg_amount", Agg: model.Avg, SQL: "amount"})
	pa.Measures = append(pa.Measures, "avg_amount")

	plan := ctePlan{
		Model:  m,
		Rollup: pa,
		Metrics: []cteMetric{
			{Metric: &m.Metrics[2], OutputName: "events__avg_amount_raw"},
		},
	}

	sql, err := buildModelCTE(plan, sqlast.Postgres)
	require.NoError(t, err)
	require.Contains(t, sql, "total_amount_raw AS events__avg_amount_raw")
	require.Contains(t, sql, "event_count_raw AS events__avg_amount_raw_count")
}

func TestBuildModelCTERollupAvgWithoutSiblingsFails(t *testing.T) {
	t.Parallel()

	m, pa := eventsModelWithRollup()
	m.Metrics = append(m.Metrics, model.Metric{Name: "avg_amount", Agg: model.Avg, SQL: "amount"})
	m.Metrics = m.Metrics[1:] // drop event_count so there is no count sibling
	pa.Measures = []string{"total_amount", "avg_amount"}

	plan := ctePlan{
		Model:  m,
		Rollup: pa,
		Metrics: []cteMetric{
			{Metric: &m.Metrics[len(m.Metrics)-1], OutputName: "events__avg_amount_raw"},
		},
	}

	_, err := buildModelCTE(plan, sqlast.Postgres)
	require.ErrorIs(t, err, ErrRollupMeasureNotDerivable)
}

func TestBuildModelCTERollupRewritesPushdownWhereToTimeColumn(t *testing.T) {
	t.Parallel()

	m, pa := eventsModelWithRollup()

	where, err := sqlast.Parse("events.event_date >= '2026-01-01'", sqlast.Postgres)
	require.NoError(t, err)

	plan := ctePlan{
		Model:  m,
		Rollup: pa,
		Where:  []sqlast.Expr{where},
	}

	sql, err := buildModelCTE(plan, sqlast.Postgres)
	require.NoError(t, err)
	require.Contains(t, sql, "WHERE events.event_date_day >= '2026-01-01'")
}

func TestBuildModelCTERendersDialectSpecificDateTrunc(t *testing.T) {
	t.Parallel()

	m := ordersModel()

	plan := ctePlan{
		Model: m,
		Dimensions: []cteDimension{
			{Dim: &m.Dimensions[0], Granularity: model.Month, OutputName: "order_date__month"},
		},
	}

	sql, err := buildModelCTE(plan, sqlast.BigQuery)
	require.NoError(t, err)
	require.Contains(t, sql, "DATE_TRUNC(order_date, MONTH) AS order_date__month")
}
