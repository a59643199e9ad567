package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/accented-ai/semcompile/internal/compiler"
	"github.com/accented-ai/semcompile/internal/compiler/rewriter"
	"github.com/accented-ai/semcompile/internal/config"
	"github.com/accented-ai/semcompile/internal/dialect"
	"github.com/accented-ai/semcompile/internal/loader"
	"github.com/accented-ai/semcompile/internal/model"
	"github.com/accented-ai/semcompile/internal/util"
)

// errMissingModelPath is returned when no --model/SEMCOMPILE_MODEL was given.
var errMissingModelPath = errors.New("no model document path configured")

// requestFlags holds the flags shared by compile, explain, and query: either
// a structured request (--metric/--dimension/...) or a single --sql string
// routed through internal/compiler/rewriter. If --sql is set it wins outright
// over the structured flags, following spec.md §4.8's "the rewriter front
// end and the structured request builder are alternate entry points into the
// same planner, never combined in one call."
type requestFlags struct {
	sql        string
	metrics    []string
	dimensions []string
	filters    []string
	segments   []string
	orderBy    []string
	limit      int
	offset     int
	ungrouped  bool
}

func registerRequestFlags(cmd *cobra.Command, f *requestFlags) {
	cmd.Flags().StringVar(&f.sql, "sql", "",
		"Single-table user SQL to rewrite into a request, instead of --metric/--dimension")
	cmd.Flags().StringArrayVar(&f.metrics, "metric", nil,
		"Metric reference to include, e.g. orders.revenue (repeatable)")
	cmd.Flags().StringArrayVar(&f.dimensions, "dimension", nil,
		"Dimension reference to include, e.g. orders.order_date__month (repeatable)")
	cmd.Flags().StringArrayVar(&f.filters, "filter", nil,
		"Raw SQL predicate fragment, e.g. \"orders.status = 'completed'\" (repeatable)")
	cmd.Flags().StringArrayVar(&f.segments, "segment", nil,
		"model.segment reference to apply (repeatable)")
	cmd.Flags().StringArrayVar(&f.orderBy, "order-by", nil,
		"Output column to order by, optionally suffixed \" desc\" (repeatable)")
	cmd.Flags().IntVar(&f.limit, "limit", 0, "Row limit (0 = unlimited)")
	cmd.Flags().IntVar(&f.offset, "offset", 0, "Row offset")
	cmd.Flags().BoolVar(&f.ungrouped, "ungrouped", false, "Skip GROUP BY entirely")
}

// buildRequest turns f into a compiler.Request, either by parsing --sql via
// the rewriter or by assembling the structured flags directly.
func buildRequest(g *model.Graph, f *requestFlags) (compiler.Request, error) {
	if f.sql != "" {
		req, err := rewriter.Rewrite(g, f.sql)
		if err != nil {
			return compiler.Request{}, util.WrapError("rewrite --sql", err)
		}

		return *req, nil
	}

	req := compiler.Request{
		MetricRefs:    f.metrics,
		DimensionRefs: f.dimensions,
		Filters:       f.filters,
		Segments:      f.segments,
		Ungrouped:     f.ungrouped,
		Parameters:    map[string]any{},
	}

	for _, spec := range f.orderBy {
		req.OrderBy = append(req.OrderBy, parseOrderBy(spec))
	}

	if f.limit > 0 {
		limit := f.limit
		req.Limit = &limit
	}

	if f.offset > 0 {
		offset := f.offset
		req.Offset = &offset
	}

	return req, nil
}

func parseOrderBy(spec string) compiler.OrderSpec {
	fields := strings.Fields(spec)
	if len(fields) == 2 && strings.EqualFold(fields[1], "desc") {
		return compiler.OrderSpec{Expr: fields[0], Desc: true}
	}

	return compiler.OrderSpec{Expr: spec}
}

// loadGraph reads the model document named by --model (or SEMCOMPILE_MODEL).
func loadGraph() (*model.Graph, error) {
	path := config.ModelPath()
	if path == "" {
		return nil, fmt.Errorf("%w: pass --model or set SEMCOMPILE_MODEL", errMissingModelPath)
	}

	g, err := loader.Load(path)
	if err != nil {
		return nil, util.WrapError("load model document", err)
	}

	return g, nil
}

func resolveDialect() (dialect.Dialect, error) {
	d, err := dialect.Parse(config.Dialect())
	if err != nil {
		return "", util.WrapError("resolve dialect", err)
	}

	return d, nil
}

func writeOutput(path string, data []byte) error {
	if path == "" || path == "-" {
		fmt.Println(string(data))
		return nil
	}

	outputDir := filepath.Dir(path)
	if outputDir != "." && outputDir != "" {
		if err := os.MkdirAll(outputDir, 0o755); err != nil {
			return util.WrapError("create output directory", err)
		}
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return util.WrapError("write output file", err)
	}

	return nil
}
