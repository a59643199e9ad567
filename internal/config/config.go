// Package config is the CLI's configuration surface (SPEC_FULL.md §2),
// grounded on xataio-pgroll's cmd/flags/flags.go idiom: cobra persistent
// flags bound into viper, read through env vars sharing the same names
// under a package-specific prefix. It never touches internal/compiler —
// that package stays a pure function of its explicit arguments (spec.md §5).
package config

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix viper.AutomaticEnv reads bound flags under, e.g.
// "--dialect" also binds to "SEMCOMPILE_DIALECT".
const EnvPrefix = "SEMCOMPILE"

// Init wires viper's environment binding once, at CLI startup (mirrors
// xataio-pgroll's cmd/root.go init()).
func Init() {
	viper.SetEnvPrefix(EnvPrefix)
	viper.AutomaticEnv()
}

// RegisterPersistentFlags declares the flags every subcommand needing a
// connection or a model file shares, and binds each into viper the way
// flags.PgConnectionFlags does.
func RegisterPersistentFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().String("dialect", "postgres", "SQL dialect to compile for (postgres, mysql, snowflake, bigquery, duckdb)")
	cmd.PersistentFlags().String("model", "", "Path to the semantic model YAML/JSON document")
	cmd.PersistentFlags().String("database-url", "", "Postgres connection URL (postgres dialect only, or set SEMCOMPILE_DATABASE_URL)")
	cmd.PersistentFlags().String("mysql-dsn", "", "MySQL connection DSN (mysql dialect only, or set SEMCOMPILE_MYSQL_DSN)")
	cmd.PersistentFlags().String("schema", "public", "Default schema auto_dimensions introspection and pre-aggregation table names assume")

	viper.BindPFlag("DIALECT", cmd.PersistentFlags().Lookup("dialect"))           //nolint:errcheck
	viper.BindPFlag("MODEL", cmd.PersistentFlags().Lookup("model"))               //nolint:errcheck
	viper.BindPFlag("DATABASE_URL", cmd.PersistentFlags().Lookup("database-url")) //nolint:errcheck
	viper.BindPFlag("MYSQL_DSN", cmd.PersistentFlags().Lookup("mysql-dsn"))       //nolint:errcheck
	viper.BindPFlag("SCHEMA", cmd.PersistentFlags().Lookup("schema"))             //nolint:errcheck
}

// Dialect returns the bound --dialect value (or SEMCOMPILE_DIALECT).
func Dialect() string { return viper.GetString("DIALECT") }

// ModelPath returns the bound --model value (or SEMCOMPILE_MODEL).
func ModelPath() string { return viper.GetString("MODEL") }

// DatabaseURL returns the bound --database-url value (or
// SEMCOMPILE_DATABASE_URL).
func DatabaseURL() string { return viper.GetString("DATABASE_URL") }

// MySQLDSN returns the bound --mysql-dsn value (or SEMCOMPILE_MYSQL_DSN).
func MySQLDSN() string { return viper.GetString("MYSQL_DSN") }

// Schema returns the bound --schema value (or SEMCOMPILE_SCHEMA), defaulting
// to "public".
func Schema() string { return viper.GetString("SCHEMA") }
