// Package cli wires semcompile's cobra command tree (spec.md §6.1's compile
// and explain operations, plus a query convenience command), following the
// teacher's own internal/cli layout: one file per subcommand, a root command
// in cli.go that registers persistent flags and assembles them.
package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/accented-ai/semcompile/internal/config"
	"github.com/accented-ai/semcompile/internal/util"
)

// BuildInfo carries version metadata stamped in at link time (-ldflags),
// the same shape the teacher's cmd/pgtofu main.go builds.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildTime string
}

// Execute builds and runs the root command against ctx and os.Args.
func Execute(ctx context.Context, info BuildInfo) error {
	config.Init()

	rootCmd := newRootCommand()
	config.RegisterPersistentFlags(rootCmd)

	rootCmd.AddCommand(
		newCompileCommand(),
		newExplainCommand(),
		newQueryCommand(ctx),
		newVersionCommand(info),
	)

	return util.WrapError("execute command", rootCmd.ExecuteContext(ctx))
}

func newRootCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "semcompile",
		Short: "Semantic layer SQL compiler",
		Long: `semcompile compiles requests against a declarative semantic model —
metrics, dimensions, joins, and pre-aggregations defined once in YAML — into
SQL for Postgres, MySQL, Snowflake, BigQuery, or DuckDB.

Define your semantic model in a YAML document, then compile a request
against it into dialect-specific SQL, inspect the plan the compiler chose,
or run the request straight against a live database.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
}

func newVersionCommand(info BuildInfo) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Printf("semcompile %s\n", info.Version)
			fmt.Printf("  commit:     %s\n", info.Commit)
			fmt.Printf("  built:      %s\n", info.BuildTime)
		},
	}
}
