package loader

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/accented-ai/semcompile/internal/model"
)

const validDocument = `
models:
  - name: orders
    table: public.orders
    primary_key: [id]
    dimensions:
      - name: status
        kind: categorical
      - name: order_date
        kind: time
        granularity: day
    metrics:
      - name: revenue
        agg: sum
        sql: amount
      - name: order_count
        agg: count
  - name: customers
    table: public.customers
    dimensions:
      - name: tier
        kind: categorical
metrics:
  - name: revenue_per_customer
    numerator: orders.revenue
    denominator: customers.customer_count
`

func TestLoadBytesBuildsGraph(t *testing.T) {
	t.Parallel()

	g, err := LoadBytes([]byte(validDocument))
	require.NoError(t, err)

	require.True(t, g.HasModel("orders"))
	require.True(t, g.HasModel("customers"))

	orders, err := g.Model("orders")
	require.NoError(t, err)

	revenue, ok := orders.Metric("revenue")
	require.True(t, ok)
	assert.Equal(t, model.Sum, revenue.Agg)
	assert.Equal(t, "amount", revenue.SQL)

	_, ok = g.GraphMetric("revenue_per_customer")
	assert.True(t, ok)
}

func TestLoadBytesRejectsUnknownField(t *testing.T) {
	t.Parallel()

	const doc = `
models:
  - name: orders
    table: public.orders
    not_a_real_field: true
`

	_, err := LoadBytes([]byte(doc))
	require.ErrorIs(t, err, ErrSchemaValidation)
}

func TestLoadBytesRejectsEmptyDocument(t *testing.T) {
	t.Parallel()

	_, err := LoadBytes([]byte(`{}`))
	require.ErrorIs(t, err, ErrNoModels)
}

func TestLoadBytesRejectsInvalidDimensionKind(t *testing.T) {
	t.Parallel()

	const doc = `
models:
  - name: orders
    table: public.orders
    dimensions:
      - name: status
        kind: not_a_kind
`

	_, err := LoadBytes([]byte(doc))
	require.ErrorIs(t, err, ErrSchemaValidation)
}

type stubColumnTypeProvider struct {
	types map[string]string
}

func (s stubColumnTypeProvider) ColumnTypes(_ context.Context, _, _ string) (map[string]string, error) {
	return s.types, nil
}

func TestApplyAutoDimensionsSynthesizesDimensions(t *testing.T) {
	t.Parallel()

	g := model.NewGraph()
	require.NoError(t, g.AddModel(&model.Model{
		Name:           "events",
		Table:          "public.events",
		AutoDimensions: true,
		Dimensions: []model.Dimension{
			{Name: "status", Kind: model.Categorical}, // already declared, must not be overwritten
		},
	}))

	provider := stubColumnTypeProvider{types: map[string]string{
		"id":         "bigint",
		"status":     "varchar(32)",
		"created_at": "timestamp without time zone",
		"amount":     "numeric(10,2)",
	}}

	require.NoError(t, ApplyAutoDimensions(context.Background(), g, provider))

	events, err := g.Model("events")
	require.NoError(t, err)

	status, ok := events.Dimension("status")
	require.True(t, ok)
	assert.Equal(t, model.Categorical, status.Kind, "pre-declared dimension must not be overwritten by introspection")

	createdAt, ok := events.Dimension("created_at")
	require.True(t, ok)
	assert.Equal(t, model.Time, createdAt.Kind)
	assert.Equal(t, model.Second, createdAt.Granularity)

	amount, ok := events.Dimension("amount")
	require.True(t, ok)
	assert.Equal(t, model.Numeric, amount.Kind)

	_, ok = events.Dimension("id")
	assert.False(t, ok, "primary key columns must be excluded from auto-introspection")
}

func TestApplyAutoDimensionsRejectsSQLSourcedModel(t *testing.T) {
	t.Parallel()

	g := model.NewGraph()
	require.NoError(t, g.AddModel(&model.Model{
		Name:           "derived",
		SQL:            "SELECT * FROM events",
		AutoDimensions: true,
	}))

	err := ApplyAutoDimensions(context.Background(), g, stubColumnTypeProvider{})
	require.ErrorIs(t, err, ErrAutoDimensionsRequiresTable)
}
