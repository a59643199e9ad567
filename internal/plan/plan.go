// Package plan holds the structured explain() output spec.md §6.1 promises:
// which model(s) were touched, whether a pre-aggregation served the
// request, the per-candidate check results, and the rendered SQL.
package plan

import (
	"github.com/google/uuid"

	"github.com/accented-ai/semcompile/internal/compiler/preagg"
)

// QueryPlan is the result of explain(graph, request, dialect) (spec.md
// §6.1). ID is a stable handle a caller can log and correlate against the
// eventually-executed statement.
type QueryPlan struct {
	ID      string `json:"id"`
	Dialect string `json:"dialect"`
	Models  []string `json:"models"`

	UsedPreAggregation bool   `json:"used_pre_aggregation"`
	PreAggregationName string `json:"pre_aggregation_name,omitempty"`
	RoutingReason      string `json:"routing_reason"`

	// Candidates maps model name to every pre-aggregation candidate
	// evaluated on it, eligible or not (spec.md §4.6 explain()).
	Candidates map[string][]preagg.CandidateReport `json:"candidates,omitempty"`

	SQL string `json:"sql"`
}

// New stamps a fresh plan with a random ID (github.com/google/uuid).
func New(dialect string, models []string) *QueryPlan {
	return &QueryPlan{
		ID:         uuid.NewString(),
		Dialect:    dialect,
		Models:     models,
		Candidates: make(map[string][]preagg.CandidateReport),
	}
}

// RouteToPreAggregation records that model's request was served from a
// materialised rollup instead of its base table.
func (p *QueryPlan) RouteToPreAggregation(model, rollup, reason string) {
	p.UsedPreAggregation = true
	p.PreAggregationName = rollup
	p.RoutingReason = reason
}

// RouteToBaseTables records that model's request fell back to base tables,
// with reason explaining why (e.g. "no eligible rollup", "no rollups declared").
func (p *QueryPlan) RouteToBaseTables(reason string) {
	p.UsedPreAggregation = false
	p.RoutingReason = reason
}
