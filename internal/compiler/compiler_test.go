package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/accented-ai/semcompile/internal/dialect"
	"github.com/accented-ai/semcompile/internal/model"
)

func buildCompilerTestGraph(t *testing.T) *model.Graph {
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
		},
	}

	require.NoError(t, g.AddModel(orders))

	return g
}

func TestCompileRendersSQL(t *testing.T) {
	t.Parallel()

	g := buildCompilerTestGraph(t)

	sql, err := Compile(g, Request{
		MetricRefs:    []string{"orders.revenue"},
		DimensionRefs: []string{"orders.status"},
	}, dialect.Postgres)
	require.NoError(t, err)

	assert.Contains(t, sql, "orders")
	assert.Contains(t, sql, "revenue")
}

func TestCompileTranslatesToTargetDialect(t *testing.T) {
	t.Parallel()

	g := buildCompilerTestGraph(t)

	sql, err := Compile(g, Request{
		MetricRefs: []string{"orders.revenue"},
	}, dialect.MySQL)
	require.NoError(t, err)
	assert.NotEmpty(t, sql)
}

func TestCompileRejectsUnknownMetric(t *testing.T) {
	t.Parallel()

	g := buildCompilerTestGraph(t)

	_, err := Compile(g, Request{
		MetricRefs: []string{"orders.nonexistent"},
	}, dialect.Postgres)
	require.Error(t, err)
}

func TestExplainReturnsPlan(t *testing.T) {
	t.Parallel()

	g := buildCompilerTestGraph(t)

	p, err := Explain(g, Request{
		MetricRefs:    []string{"orders.revenue"},
		DimensionRefs: []string{"orders.status"},
	}, dialect.Postgres)
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.NotEmpty(t, p.ID)
}

func TestCompileUserSQLRewritesThenCompiles(t *testing.T) {
	t.Parallel()

	g := buildCompilerTestGraph(t)

	sql, err := CompileUserSQL(g, "SELECT status, revenue FROM orders", dialect.Postgres)
	require.NoError(t, err)
	assert.Contains(t, sql, "revenue")
}

func TestExplainUserSQLRewritesThenExplains(t *testing.T) {
	t.Parallel()

	g := buildCompilerTestGraph(t)

	p, err := ExplainUserSQL(g, "SELECT status, revenue FROM orders", dialect.Postgres)
	require.NoError(t, err)
	require.NotNil(t, p)
}

func TestCompileUserSQLRejectsUnsupportedShape(t *testing.T) {
	t.Parallel()

	g := buildCompilerTestGraph(t)

	_, err := CompileUserSQL(g, "SELECT * FROM orders", dialect.Postgres)
	require.Error(t, err)
}
