// Package rewriter is the user-SQL front end (spec.md §4.8): it accepts a
// single-table SELECT of the restricted shape
//
//	SELECT <model>.<metric|dim>, ...
//	FROM <model>
//	[WHERE <preds>] [GROUP BY ...] [ORDER BY ...] [LIMIT N] [OFFSET N]
//
// parses it with the real Postgres grammar via pg_query_go (the same
// library xataio-pgroll's pkg/sql2pgroll uses to parse user-supplied
// migration SQL), and synthesises the equivalent planner.Request. GROUP BY
// is discarded — the planner derives it from the requested dimensions.
// Joins and SELECT * are rejected with ErrUnsupportedUserSQL; every join is
// the planner's responsibility, not the user's.
package rewriter

import (
	"fmt"

	pgq "github.com/xataio/pg_query_go/v6"

	compilergraph "github.com/accented-ai/semcompile/internal/compiler/graph"
	"github.com/accented-ai/semcompile/internal/compiler/planner"
	"github.com/accented-ai/semcompile/internal/model"
)

// Rewrite parses sql against g (used to classify each SELECT-list reference
// as a metric or a dimension) and returns the planner.Request it describes.
func Rewrite(g *model.Graph, sql string) (*planner.Request, error) {
	tree, err := pgq.Parse(sql)
	if err != nil {
		return nil, fmt.Errorf("parse user sql: %w", err)
	}

	stmts := tree.GetStmts()
	if len(stmts) != 1 {
		return nil, fmt.Errorf("%w: got %d", ErrExpectedSingleStatement, len(stmts))
	}

	selectNode, ok := stmts[0].GetStmt().GetNode().(*pgq.Node_SelectStmt)
	if !ok {
		return nil, fmt.Errorf("%w: only a single SELECT statement is accepted", ErrUnsupportedUserSQL)
	}

	return rewriteSelect(g, selectNode.SelectStmt)
}

func rewriteSelect(g *model.Graph, stmt *pgq.SelectStmt) (*planner.Request, error) {
	modelName, err := fromModel(stmt)
	if err != nil {
		return nil, err
	}

	if !g.HasModel(modelName) {
		return nil, fmt.Errorf("%w: %q", model.ErrUnknownModel, modelName)
	}

	resolver := compilergraph.New(g)

	req := &planner.Request{Parameters: map[string]any{}}

	for _, target := range stmt.GetTargetList() {
		resTarget := target.GetNode().(*pgq.Node_ResTarget)

		ref, err := columnRef(resTarget.ResTarget.GetVal(), modelName)
		if err != nil {
			return nil, err
		}

		classifyRef(resolver, ref, req)
	}

	if where := stmt.GetWhereClause(); where != nil {
		predicate, err := pgq.DeparseExpr(where)
		if err != nil {
			return nil, fmt.Errorf("deparse WHERE clause: %w", err)
		}

		req.Filters = append(req.Filters, predicate)
	}

	for _, sortNode := range stmt.GetSortClause() {
		sortBy := sortNode.GetSortBy()
		if sortBy == nil {
			continue
		}

		expr, err := pgq.DeparseExpr(sortBy.GetNode())
		if err != nil {
			return nil, fmt.Errorf("deparse ORDER BY expression: %w", err)
		}

		req.OrderBy = append(req.OrderBy, planner.OrderSpec{
			Expr: expr,
			Desc: sortBy.GetSortbyDir() == pgq.SortByDir_SORTBY_DESC,
		})
	}

	if limit := stmt.GetLimitCount(); limit != nil {
		n, err := intLiteral(limit)
		if err != nil {
			return nil, fmt.Errorf("parse LIMIT: %w", err)
		}

		req.Limit = &n
	}

	if offset := stmt.GetLimitOffset(); offset != nil {
		n, err := intLiteral(offset)
		if err != nil {
			return nil, fmt.Errorf("parse OFFSET: %w", err)
		}

		req.Offset = &n
	}

	return req, nil
}

// fromModel extracts the single bare table name in the FROM clause,
// rejecting joins, subqueries, and multi-item FROM lists (spec.md §4.8:
// "Joins in the user input are rejected... all joins are resolved by the
// planner").
func fromModel(stmt *pgq.SelectStmt) (string, error) {
	from := stmt.GetFromClause()
	if len(from) != 1 {
		return "", fmt.Errorf("%w: exactly one FROM model is required, got %d", ErrUnsupportedUserSQL, len(from))
	}

	rangeVar, ok := from[0].GetNode().(*pgq.Node_RangeVar)
	if !ok {
		return "", fmt.Errorf("%w: joins and subqueries in FROM are not accepted, the planner resolves joins itself", ErrUnsupportedUserSQL)
	}

	return rangeVar.RangeVar.GetRelname(), nil
}

// columnRef extracts a "model.name" or "model.name__granularity" reference
// from a SELECT-list expression, qualifying a bare column with modelName
// (the grammar's single FROM table) when the user wrote it unqualified.
// SELECT * is rejected outright (spec.md §4.8 implies every reference names
// one metric or dimension explicitly; a star can't be classified as either).
func columnRef(val *pgq.Node, modelName string) (string, error) {
	columnRef, ok := val.GetNode().(*pgq.Node_ColumnRef)
	if !ok {
		return "", fmt.Errorf("%w: SELECT list entries must be column references, not expressions", ErrUnsupportedUserSQL)
	}

	fields := columnRef.ColumnRef.GetFields()
	if len(fields) == 0 {
		return "", fmt.Errorf("%w: empty column reference", ErrUnsupportedUserSQL)
	}

	last := fields[len(fields)-1]
	if _, ok := last.GetNode().(*pgq.Node_AStar); ok {
		return "", fmt.Errorf("%w: SELECT * is not supported, name dimensions/metrics explicitly", ErrUnsupportedUserSQL)
	}

	parts := make([]string, 0, len(fields))

	for _, f := range fields {
		strNode, ok := f.GetNode().(*pgq.Node_String_)
		if !ok {
			return "", fmt.Errorf("%w: unexpected column reference part", ErrUnsupportedUserSQL)
		}

		parts = append(parts, strNode.String_.GetSval())
	}

	if len(parts) == 1 {
		return modelName + "." + parts[0], nil
	}

	return parts[len(parts)-2] + "." + parts[len(parts)-1], nil
}

// classifyRef tries ref as a metric reference first and otherwise appends
// it to req's dimension references. The metric lookup error is discarded: a
// reference that is neither a metric nor a dimension is reported when the
// planner resolves the request's dimensions.
func classifyRef(resolver *compilergraph.Resolver, ref string, req *planner.Request) {
	if _, err := resolver.ResolveMetric(ref); err == nil {
		req.MetricRefs = append(req.MetricRefs, ref)
		return
	}

	req.DimensionRefs = append(req.DimensionRefs, ref)
}

// intLiteral reads a LIMIT/OFFSET node's integer value. The grammar only
// ever produces an A_Const wrapping an Integer for these clauses.
func intLiteral(node *pgq.Node) (int, error) {
	constNode, ok := node.GetNode().(*pgq.Node_AConst)
	if !ok {
		return 0, fmt.Errorf("%w: expected an integer literal", ErrUnsupportedUserSQL)
	}

	ival, ok := constNode.AConst.GetVal().(*pgq.A_Const_Ival)
	if !ok {
		return 0, fmt.Errorf("%w: expected an integer literal", ErrUnsupportedUserSQL)
	}

	return int(ival.Ival.GetIval()), nil
}
