package loader

import (
	"context"
	"fmt"
	"strings"

	"github.com/accented-ai/semcompile/internal/model"
)

// ColumnTypeProvider is the subset of pkg/database's Pool/MySQLPool this
// package needs for auto_dimensions (spec.md §6.4): introspecting a table's
// declared column types. Accepting the interface rather than a concrete
// database type keeps internal/loader free of any database driver import —
// pkg/database is an external collaborator the CLI wires in, never the
// other way around.
type ColumnTypeProvider interface {
	ColumnTypes(ctx context.Context, schema, table string) (map[string]string, error)
}

// ApplyAutoDimensions synthesizes a Dimension for every introspected column
// on each auto_dimensions model in g that doesn't already declare one by
// that name (spec.md §6.4), via model.MapColumnType. Models without
// auto_dimensions set are left untouched.
func ApplyAutoDimensions(ctx context.Context, g *model.Graph, provider ColumnTypeProvider) error {
	for _, m := range g.Models() {
		if !m.AutoDimensions {
			continue
		}

		schema, table := splitSchemaTable(m.Table)

		if table == "" {
			return fmt.Errorf("model %q: %w: auto_dimensions requires a table source, not sql", m.Name, ErrAutoDimensionsRequiresTable)
		}

		types, err := provider.ColumnTypes(ctx, schema, table)
		if err != nil {
			return fmt.Errorf("model %q: introspect columns: %w", m.Name, err)
		}

		pkCols := m.PrimaryKeyColumns()

		for column, dbType := range types {
			if _, exists := m.Dimension(column); exists {
				continue
			}

			if isPrimaryKeyColumn(column, pkCols) {
				continue
			}

			kind, granularity := model.MapColumnType(dbType)
			m.Dimensions = append(m.Dimensions, model.Dimension{Name: column, Kind: kind, Granularity: granularity})
		}
	}

	return nil
}

// isPrimaryKeyColumn reports whether column is one of a model's primary key
// columns (spec.md §6.4: "Primary-key columns are always excluded from
// auto-introspection").
func isPrimaryKeyColumn(column string, pkCols []string) bool {
	for _, pk := range pkCols {
		if pk == column {
			return true
		}
	}

	return false
}

// splitSchemaTable splits a model's "schema.table" source into its parts,
// defaulting to the "public" schema when none is qualified.
func splitSchemaTable(source string) (schema, table string) {
	if source == "" {
		return "", ""
	}

	if idx := strings.IndexByte(source, '.'); idx >= 0 {
		return source[:idx], source[idx+1:]
	}

	return "public", source
}
