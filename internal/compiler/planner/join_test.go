package planner

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/accented-ai/semcompile/internal/model"
)

func buildJoinTestGraph(t *testing.T) *model.Graph {
	t.Helper()

	g := model.NewGraph()

	orders := &model.Model{
		Name:  "orders",
		Table: "public.orders",
		Relationships: []model.Relationship{
			{Name: "customers", Type: model.ManyToOne, ForeignKey: "customer_id"},
			{Name: "tags", Type: model.ManyToMany, Through: "order_tags", ThroughForeignKey: "order_id", RelatedForeignKey: "tag_id"},
		},
	}

	customers := &model.Model{Name: "customers", Table: "public.customers"}
	orderTags := &model.Model{Name: "order_tags", Table: "public.order_tags"}
	tags := &model.Model{Name: "tags", Table: "public.tags"}

	require.NoError(t, g.AddModel(customers))
	require.NoError(t, g.AddModel(orderTags))
	require.NoError(t, g.AddModel(tags))
	require.NoError(t, g.AddModel(orders))

	return g
}

func TestBuildJoinTreeDirectManyToOne(t *testing.T) {
	t.Parallel()

	g := buildJoinTestGraph(t)

	joins, _, err := buildJoinTree(g, "orders", []string{"customers"})
	require.NoError(t, err)
	require.Len(t, joins, 1)
	require.Equal(t, "customers", joins[0].TargetModel)
	require.Equal(t, "LEFT JOIN customers_cte AS customers ON orders.customer_id = customers.id", joins[0].SQL)
}

func TestBuildJoinTreeExpandsManyToManyThroughJunction(t *testing.T) {
	t.Parallel()

	g := buildJoinTestGraph(t)

	joins, _, err := buildJoinTree(g, "orders", []string{"tags"})
	require.NoError(t, err)
	require.Len(t, joins, 2)
	require.Equal(t, "order_tags", joins[0].TargetModel)
	require.Equal(t, "LEFT JOIN order_tags_cte AS order_tags ON order_tags.order_id = orders.id", joins[0].SQL)
	require.Equal(t, "tags", joins[1].TargetModel)
	require.Equal(t, "LEFT JOIN tags_cte AS tags ON order_tags.tag_id = tags.id", joins[1].SQL)
}

func TestBuildJoinTreeSkipsAlreadyVisitedModels(t *testing.T) {
	t.Parallel()

	g := buildJoinTestGraph(t)

	joins, _, err := buildJoinTree(g, "orders", []string{"customers", "customers"})
	require.NoError(t, err)
	require.Len(t, joins, 1)
}

func TestBuildJoinTreeUnknownModelFails(t *testing.T) {
	t.Parallel()

	g := buildJoinTestGraph(t)

	_, _, err := buildJoinTree(g, "orders", []string{"nonexistent"})
	require.Error(t, err)
}

func TestPrimaryKeyColumnRejectsCompositeKeyWithoutOverride(t *testing.T) {
	t.Parallel()

	g := model.NewGraph()
	require.NoError(t, g.AddModel(&model.Model{
		Name:       "line_items",
		Table:      "public.line_items",
		PrimaryKey: []string{"order_id", "item_id"},
	}))

	_, err := primaryKeyColumn(g, "line_items", "")
	require.ErrorIs(t, err, ErrCompositeJoinKey)

	col, err := primaryKeyColumn(g, "line_items", "item_id")
	require.NoError(t, err)
	require.Equal(t, "item_id", col)
}
