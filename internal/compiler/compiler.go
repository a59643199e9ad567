// Package compiler is the public entry point spec.md §6.1 names: `compile`
// and `explain`, orchestrating the semantic graph, metric resolver, filter
// classifier, relative-date expander, pre-aggregation matcher, query
// planner, and dialect driver into the two operations everything else in
// this module exists to support. It performs no I/O (spec.md §5: "the core
// compiler is a single-threaded pure function") — callers hand it an
// already-built *model.Graph (internal/loader) and an already-resolved
// dialect (internal/dialect), and get back SQL text or a structured plan.
package compiler

import (
	"fmt"

	"github.com/accented-ai/semcompile/internal/compiler/planner"
	"github.com/accented-ai/semcompile/internal/compiler/rewriter"
	"github.com/accented-ai/semcompile/internal/dialect"
	"github.com/accented-ai/semcompile/internal/model"
	"github.com/accented-ai/semcompile/internal/plan"
)

// Request re-exports planner.Request: the semantic-layer request shape
// every caller (CLI, rewriter, a future API server) builds before compiling.
type Request = planner.Request

// OrderSpec re-exports planner.OrderSpec.
type OrderSpec = planner.OrderSpec

// Compile renders req against g in the target dialect and returns just the
// SQL text (spec.md §6.1's `compile(graph, request, dialect) -> sql`).
func Compile(g *model.Graph, req Request, target dialect.Dialect) (string, error) {
	result, err := planner.Build(g, req, target)
	if err != nil {
		return "", fmt.Errorf("compile: %w", err)
	}

	return result.SQL, nil
}

// Explain renders req the same way Compile does, but returns the full
// structured plan (spec.md §6.1's `explain(graph, request, dialect) ->
// plan`): selected model(s), pre-aggregation routing decision and every
// candidate considered, and the rendered SQL alongside them.
func Explain(g *model.Graph, req Request, target dialect.Dialect) (*plan.QueryPlan, error) {
	result, err := planner.Build(g, req, target)
	if err != nil {
		return nil, fmt.Errorf("explain: %w", err)
	}

	return result.Plan, nil
}

// CompileUserSQL is the spec.md §4.8 front end composed with Compile: it
// parses a single-table user SQL string into a Request via
// internal/compiler/rewriter, then compiles that Request the normal way.
func CompileUserSQL(g *model.Graph, userSQL string, target dialect.Dialect) (string, error) {
	req, err := rewriter.Rewrite(g, userSQL)
	if err != nil {
		return "", fmt.Errorf("rewrite user sql: %w", err)
	}

	return Compile(g, *req, target)
}

// ExplainUserSQL is CompileUserSQL's Explain counterpart.
func ExplainUserSQL(g *model.Graph, userSQL string, target dialect.Dialect) (*plan.QueryPlan, error) {
	req, err := rewriter.Rewrite(g, userSQL)
	if err != nil {
		return nil, fmt.Errorf("rewrite user sql: %w", err)
	}

	return Explain(g, *req, target)
}
