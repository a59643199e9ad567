package filter_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/accented-ai/semcompile/internal/compiler/filter"
	"github.com/accented-ai/semcompile/internal/sqlast"
)

func TestClassifyPushdownSingleModel(t *testing.T) {
	t.Parallel()

	results, err := filter.Classify([]string{"orders.status = 'completed'"}, sqlast.Postgres, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, filter.BucketPushdown, results[0].Bucket)
	require.Equal(t, "orders", results[0].Model)
	require.Equal(t, []string{"orders.status"}, results[0].Columns)
}

func TestClassifyOuterWhenMultiModel(t *testing.T) {
	t.Parallel()

	results, err := filter.Classify([]string{"orders.status = customers.status"}, sqlast.Postgres, nil)
	require.NoError(t, err)
	require.Equal(t, filter.BucketOuter, results[0].Bucket)
}

func TestClassifyHavingWhenReferencingRequestedMetric(t *testing.T) {
	t.Parallel()

	requested := map[string]bool{"revenue": true}

	results, err := filter.Classify([]string{"revenue > 1000"}, sqlast.Postgres, requested)
	require.NoError(t, err)
	require.Equal(t, filter.BucketHaving, results[0].Bucket)
}

func TestClassifyOuterWhenUnqualified(t *testing.T) {
	t.Parallel()

	results, err := filter.Classify([]string{"1 = 1"}, sqlast.Postgres, nil)
	require.NoError(t, err)
	require.Equal(t, filter.BucketOuter, results[0].Bucket)
}

func TestExpandTodayAndYesterday(t *testing.T) {
	t.Parallel()

	results, err := filter.Classify([]string{"orders.order_date = 'today'"}, sqlast.Postgres, nil)
	require.NoError(t, err)
	require.Equal(t, "orders.order_date = current_date", sqlast.Emit(results[0].Expr, sqlast.Postgres))

	results, err = filter.Classify([]string{"orders.order_date = 'yesterday'"}, sqlast.Postgres, nil)
	require.NoError(t, err)
	require.Equal(t, "orders.order_date = current_date - 1", sqlast.Emit(results[0].Expr, sqlast.Postgres))
}

func TestExpandLastNDays(t *testing.T) {
	t.Parallel()

	results, err := filter.Classify([]string{"orders.order_date >= 'last 7 days'"}, sqlast.Postgres, nil)
	require.NoError(t, err)
	require.Equal(t, "orders.order_date >= current_date - 7", sqlast.Emit(results[0].Expr, sqlast.Postgres))
}

func TestExpandLastNWeeksUsesInterval(t *testing.T) {
	t.Parallel()

	results, err := filter.Classify([]string{"orders.order_date >= 'last 2 weeks'"}, sqlast.Postgres, nil)
	require.NoError(t, err)
	require.Equal(t, "orders.order_date >= current_date - INTERVAL '2 week'", sqlast.Emit(results[0].Expr, sqlast.Postgres))
}

func TestExpandThisMonthEqualityBecomesRange(t *testing.T) {
	t.Parallel()

	results, err := filter.Classify([]string{"orders.order_date = 'this month'"}, sqlast.Postgres, nil)
	require.NoError(t, err)

	got := sqlast.Emit(results[0].Expr, sqlast.Postgres)
	require.Equal(t,
		"orders.order_date >= DATE_TRUNC('month', current_date) AND orders.order_date < DATE_TRUNC('month', current_date) + INTERVAL '1 month'",
		got,
	)
}

func TestExpandUnrecognisedLiteralPassesThrough(t *testing.T) {
	t.Parallel()

	results, err := filter.Classify([]string{"orders.status = 'archived'"}, sqlast.Postgres, nil)
	require.NoError(t, err)
	require.Equal(t, "orders.status = 'archived'", sqlast.Emit(results[0].Expr, sqlast.Postgres))
}
