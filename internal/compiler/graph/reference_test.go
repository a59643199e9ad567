package graph_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	compilergraph "github.com/accented-ai/semcompile/internal/compiler/graph"
	"github.com/accented-ai/semcompile/internal/model"
)

func buildTestGraph(t *testing.T) *model.Graph {
	t.Helper()

	g := model.NewGraph()

	orders := &model.Model{
		Name:  "orders",
		Table: "public.orders",
		Dimensions: []model.Dimension{
			{Name: "order_date", Kind: model.Time, Granularity: model.Day},
			{Name: "status", Kind: model.Categorical},
		},
		Metrics: []model.Metric{
			{Name: "revenue", Agg: model.Sum, SQL: "amount"},
		},
		Relationships: []model.Relationship{
			{Name: "customers", Type: model.ManyToOne, ForeignKey: "customer_id"},
			{Name: "tags", Type: model.ManyToMany, Through: "order_tags", ThroughForeignKey: "order_id", RelatedForeignKey: "tag_id"},
		},
		Segments: []model.Segment{
			{Name: "completed", SQL: "{model}.status = 'completed'"},
		},
	}

	customers := &model.Model{
		Name:  "customers",
		Table: "public.customers",
		Dimensions: []model.Dimension{
			{Name: "region", Kind: model.Categorical},
		},
	}

	orderTags := &model.Model{
		Name:  "order_tags",
		Table: "public.order_tags",
	}

	tags := &model.Model{
		Name:  "tags",
		Table: "public.tags",
	}

	require.NoError(t, g.AddModel(customers))
	require.NoError(t, g.AddModel(orderTags))
	require.NoError(t, g.AddModel(tags))
	require.NoError(t, g.AddModel(orders))

	return g
}

func TestResolveMetricQualifiedAndUnqualified(t *testing.T) {
	t.Parallel()

	g := buildTestGraph(t)
	require.NoError(t, g.AddMetric(&model.Metric{Name: "total_revenue", SQL: "orders.revenue - 0"}))

	r := compilergraph.New(g)

	resolved, err := r.ResolveMetric("orders.revenue")
	require.NoError(t, err)
	require.Equal(t, "orders", resolved.Owner.Name)
	require.Equal(t, "revenue", resolved.Metric.Name)

	graphLevel, err := r.ResolveMetric("total_revenue")
	require.NoError(t, err)
	require.Nil(t, graphLevel.Owner)

	_, err = r.ResolveMetric("revenue")
	require.ErrorIs(t, err, model.ErrUnknownMetric)

	_, err = r.ResolveMetric("orders.nonexistent")
	require.ErrorIs(t, err, model.ErrUnknownMetric)
}

func TestResolveDimensionWithGranularitySuffix(t *testing.T) {
	t.Parallel()

	g := buildTestGraph(t)
	r := compilergraph.New(g)

	resolved, err := r.ResolveDimension("orders.order_date__month")
	require.NoError(t, err)
	require.Equal(t, model.Month, resolved.Granularity)
	require.Equal(t, "order_date", resolved.Dimension.Name)

	_, err = r.ResolveDimension("orders.status__month")
	require.ErrorIs(t, err, compilergraph.ErrInvalidGranularity)

	weeklyGraph := model.NewGraph()
	require.NoError(t, weeklyGraph.AddModel(&model.Model{
		Name:  "events",
		Table: "public.events",
		Dimensions: []model.Dimension{
			{Name: "event_date", Kind: model.Time, Granularity: model.Week},
		},
	}))

	_, err = compilergraph.New(weeklyGraph).ResolveDimension("events.event_date__month")
	require.ErrorIs(t, err, compilergraph.ErrInvalidGranularity)
}

func TestResolveSegmentRequiresQualification(t *testing.T) {
	t.Parallel()

	g := buildTestGraph(t)
	r := compilergraph.New(g)

	owner, seg, err := r.ResolveSegment("orders.completed")
	require.NoError(t, err)
	require.Equal(t, "orders", owner.Name)
	require.Equal(t, "completed", seg.Name)

	_, _, err = r.ResolveSegment("completed")
	require.ErrorIs(t, err, model.ErrUnknownSegment)
}

func TestFindRelationshipPathDirectAndReverse(t *testing.T) {
	t.Parallel()

	g := buildTestGraph(t)

	path, err := compilergraph.FindRelationshipPath(g, "orders", "customers")
	require.NoError(t, err)
	require.Len(t, path, 1)
	require.Equal(t, "orders", path[0].From)
	require.Equal(t, "customers", path[0].To)
	require.False(t, path[0].Reversed)

	reverse, err := compilergraph.FindRelationshipPath(g, "customers", "orders")
	require.NoError(t, err)
	require.Len(t, reverse, 1)
	require.True(t, reverse[0].Reversed)
}

func TestFindRelationshipPathExpandsManyToMany(t *testing.T) {
	t.Parallel()

	g := buildTestGraph(t)

	path, err := compilergraph.FindRelationshipPath(g, "orders", "tags")
	require.NoError(t, err)
	require.Len(t, path, 2)
	require.Equal(t, "order_tags", path[0].To)
	require.Equal(t, "through", path[0].Hop)
	require.Equal(t, "tags", path[1].To)
	require.Equal(t, "related", path[1].Hop)
}

func TestFindRelationshipPathSameModelIsEmpty(t *testing.T) {
	t.Parallel()

	g := buildTestGraph(t)

	path, err := compilergraph.FindRelationshipPath(g, "orders", "orders")
	require.NoError(t, err)
	require.Empty(t, path)
}

func TestFindRelationshipPathUnknownModel(t *testing.T) {
	t.Parallel()

	g := buildTestGraph(t)

	_, err := compilergraph.FindRelationshipPath(g, "orders", "nonexistent")
	require.ErrorIs(t, err, model.ErrUnknownModel)
}
