package dialect_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/accented-ai/semcompile/internal/dialect"
)

func TestParseRejectsUnknownDialect(t *testing.T) {
	t.Parallel()

	_, err := dialect.Parse("oracle")
	require.Error(t, err)
}

func TestRenderTranslatesDateTruncForBigQuery(t *testing.T) {
	t.Parallel()

	got, err := dialect.Render("DATE_TRUNC('month', orders.order_date)", dialect.BigQuery)
	require.NoError(t, err)
	require.Equal(t, "DATE_TRUNC(orders.order_date, MONTH)", got)
}

func TestRenderLeavesPlainIdentifiersUnquotedForMySQL(t *testing.T) {
	t.Parallel()

	got, err := dialect.Render("orders.order_date", dialect.MySQL)
	require.NoError(t, err)
	require.Equal(t, "orders.order_date", got)
}
