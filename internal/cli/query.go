package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/accented-ai/semcompile/internal/compiler"
	"github.com/accented-ai/semcompile/internal/config"
	"github.com/accented-ai/semcompile/internal/dialect"
	"github.com/accented-ai/semcompile/internal/util"
	"github.com/accented-ai/semcompile/pkg/database"
)

var (
	errMissingDatabaseURL = errors.New("no postgres connection configured")
	errMissingMySQLDSN    = errors.New("no mysql connection configured")
)

type queryConfig struct {
	requestFlags
}

func newQueryCommand(ctx context.Context) *cobra.Command {
	cfg := &queryConfig{}

	cmd := &cobra.Command{
		Use:   "query",
		Short: "Compile a request and run it against a live database",
		Long: `Query compiles a request the same way compile does, then executes the
resulting SQL against --database-url (postgres) or --mysql-dsn (mysql) and
prints the result set.`,
		Example: `  semcompile query --model model.yaml --dialect postgres \
    --database-url "$DATABASE_URL" \
    --metric orders.revenue --dimension orders.order_date__month`,
		RunE: func(_ *cobra.Command, _ []string) error {
			return runQuery(ctx, cfg)
		},
	}

	registerRequestFlags(cmd, &cfg.requestFlags)

	return cmd
}

func runQuery(ctx context.Context, cfg *queryConfig) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	g, err := loadGraph()
	if err != nil {
		return err
	}

	target, err := resolveDialect()
	if err != nil {
		return err
	}

	req, err := buildRequest(g, &cfg.requestFlags)
	if err != nil {
		return err
	}

	sql, err := compiler.Compile(g, req, target)
	if err != nil {
		return fmt.Errorf("compile request: %w", err)
	}

	columns, rows, err := runSQL(ctx, target, sql)
	if err != nil {
		return err
	}

	printTable(columns, rows)

	return nil
}

func runSQL(ctx context.Context, target dialect.Dialect, sql string) ([]string, [][]any, error) {
	switch target {
	case dialect.MySQL:
		return runMySQL(ctx, sql)
	default:
		return runPostgres(ctx, sql)
	}
}

func runPostgres(ctx context.Context, sql string) ([]string, [][]any, error) {
	url := config.DatabaseURL()
	if url == "" {
		return nil, nil, fmt.Errorf("%w: pass --database-url or set SEMCOMPILE_DATABASE_URL", errMissingDatabaseURL)
	}

	pool, err := database.NewPoolFromURL(ctx, url)
	if err != nil {
		return nil, nil, util.WrapError("connect to database", err)
	}
	defer pool.Close()

	pgxRows, err := pool.Query(ctx, sql)
	if err != nil {
		return nil, nil, util.WrapError("execute query", err)
	}
	defer pgxRows.Close()

	columns := make([]string, 0)
	for _, fd := range pgxRows.FieldDescriptions() {
		columns = append(columns, fd.Name)
	}

	var rows [][]any

	for pgxRows.Next() {
		values, err := pgxRows.Values()
		if err != nil {
			return nil, nil, util.WrapError("read row", err)
		}

		rows = append(rows, values)
	}

	if err := pgxRows.Err(); err != nil {
		return nil, nil, util.WrapError("iterate rows", err)
	}

	return columns, rows, nil
}

func runMySQL(ctx context.Context, sql string) ([]string, [][]any, error) {
	dsn := config.MySQLDSN()
	if dsn == "" {
		return nil, nil, fmt.Errorf("%w: pass --mysql-dsn or set SEMCOMPILE_MYSQL_DSN", errMissingMySQLDSN)
	}

	pool, err := database.NewMySQLPoolFromDSN(ctx, dsn)
	if err != nil {
		return nil, nil, util.WrapError("connect to database", err)
	}
	defer pool.Close() //nolint:errcheck

	sqlRows, err := pool.Query(ctx, sql)
	if err != nil {
		return nil, nil, util.WrapError("execute query", err)
	}
	defer sqlRows.Close()

	columns, err := sqlRows.Columns()
	if err != nil {
		return nil, nil, util.WrapError("read columns", err)
	}

	var rows [][]any

	for sqlRows.Next() {
		scanTargets := make([]any, len(columns))
		values := make([]any, len(columns))

		for i := range values {
			scanTargets[i] = &values[i]
		}

		if err := sqlRows.Scan(scanTargets...); err != nil {
			return nil, nil, util.WrapError("read row", err)
		}

		rows = append(rows, values)
	}

	if err := sqlRows.Err(); err != nil {
		return nil, nil, util.WrapError("iterate rows", err)
	}

	return columns, rows, nil
}

func printTable(columns []string, rows [][]any) {
	fmt.Fprintln(os.Stderr, strings.Join(columns, "\t"))

	for _, row := range rows {
		cells := make([]string, len(row))
		for i, v := range row {
			cells[i] = fmt.Sprintf("%v", v)
		}

		fmt.Println(strings.Join(cells, "\t"))
	}

	fmt.Fprintf(os.Stderr, "(%d rows)\n", len(rows))
}
