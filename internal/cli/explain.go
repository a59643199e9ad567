package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/accented-ai/semcompile/internal/compiler"
)

type explainConfig struct {
	requestFlags
	output string
}

func newExplainCommand() *cobra.Command {
	cfg := &explainConfig{}

	cmd := &cobra.Command{
		Use:   "explain",
		Short: "Show the plan the compiler would choose for a request",
		Long: `Explain runs the same resolution pass as compile, but prints the
structured plan instead of SQL alone: which model(s) were touched, whether a
pre-aggregation served the request (and every candidate considered if not),
and the SQL the plan renders to.`,
		Example: `  semcompile explain --model model.yaml --dialect postgres \
    --metric orders.revenue --dimension orders.order_date__month`,
		RunE: func(_ *cobra.Command, _ []string) error {
			return runExplain(cfg)
		},
	}

	registerRequestFlags(cmd, &cfg.requestFlags)
	cmd.Flags().StringVarP(&cfg.output, "output", "o", "-",
		"Output file path (use '-' for stdout)")

	return cmd
}

func runExplain(cfg *explainConfig) error {
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

	queryPlan, err := compiler.Explain(g, req, target)
	if err != nil {
		return fmt.Errorf("explain request: %w", err)
	}

	jsonData, err := json.MarshalIndent(queryPlan, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal plan: %w", err)
	}

	fmt.Fprintf(os.Stderr, "Plan %s: routed to %s (%s)\n", queryPlan.ID,
		preAggregationLabel(queryPlan.UsedPreAggregation, queryPlan.PreAggregationName), queryPlan.RoutingReason)

	return writeOutput(cfg.output, jsonData)
}

func preAggregationLabel(used bool, name string) string {
	if used {
		return name
	}

	return "base tables"
}
