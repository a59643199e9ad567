package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/accented-ai/semcompile/internal/compiler"
)

type compileConfig struct {
	requestFlags
	output string
}

func newCompileCommand() *cobra.Command {
	cfg := &compileConfig{}

	cmd := &cobra.Command{
		Use:   "compile",
		Short: "Compile a metric/dimension request into SQL",
		Long: `Compile resolves a request (a set of metric and dimension references,
filters, and ordering) against the semantic model named by --model and
prints the SQL it produces for --dialect.`,
		Example: `  # Compile a structured request
  semcompile compile --model model.yaml --dialect postgres \
    --metric orders.revenue --dimension orders.order_date__month

  # Compile a single-table user SQL string
  semcompile compile --model model.yaml --sql "SELECT status, revenue FROM orders"`,
		RunE: func(_ *cobra.Command, _ []string) error {
			return runCompile(cfg)
		},
	}

	registerRequestFlags(cmd, &cfg.requestFlags)
	cmd.Flags().StringVarP(&cfg.output, "output", "o", "-",
		"Output file path (use '-' for stdout)")

	return cmd
}

func runCompile(cfg *compileConfig) error {
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

	fmt.Fprintln(os.Stderr, "Compiled successfully")

	return writeOutput(cfg.output, []byte(sql))
}
