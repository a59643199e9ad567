// Package metric implements the metric resolver (spec.md §4.3): classifying
// metric kind, building the cross-metric dependency DAG, detecting
// self-reference, and producing a deterministic base-first evaluation order.
package metric

import (
	"errors"
	"fmt"
	"strings"

	"github.com/accented-ai/semcompile/internal/compiler/graph"
	"github.com/accented-ai/semcompile/internal/dag"
	"github.com/accented-ai/semcompile/internal/model"
)

// Plan is the resolved, ordered set of metrics a compile needs to evaluate:
// every requested metric plus every metric it transitively depends on.
type Plan struct {
	// Requested holds the originally-requested metrics, resolved, in request
	// order.
	Requested []*graph.ResolvedMetric

	// Order holds every metric node (requested and transitive dependencies)
	// in dependency-respecting topological order: a metric never precedes
	// one it depends on (spec.md §6.1 "Ordering guarantees").
	Order []*graph.ResolvedMetric

	// DependsOn maps a metric's canonical key to the canonical keys of the
	// metrics it directly depends on.
	DependsOn map[string][]string
}

// canonicalKey returns a key unique across the whole graph for a resolved
// metric: "<model>.<metric>" for model-owned metrics, "graph:<metric>" for
// graph-level ones (graph-level names can't contain "graph:" since metric
// names never contain a colon, so the two key spaces can't collide).
func canonicalKey(rm *graph.ResolvedMetric) string {
	if rm.Owner == nil {
		return "graph:" + rm.Metric.Name
	}

	return rm.Owner.Name + "." + rm.Metric.Name
}

// BuildPlan resolves every metric in requested (each "metric" or
// "model.metric", spec.md §6.2) against r, walks their dependency formulas,
// and returns a Plan with a deterministic topological evaluation order.
// Ties in the topological order are broken by canonical key, then the
// resulting order is stabilised against request order by the caller when
// assembling the final projection (spec.md §6.1).
func BuildPlan(r *graph.Resolver, requested []string) (*Plan, error) {
	nodes := make(map[string]*graph.ResolvedMetric)
	dependsOn := make(map[string][]string)
	g := dag.NewDirectedGraph[string]()

	var resolve func(ref string, relativeTo *model.Model) (string, error)

	resolve = func(ref string, relativeTo *model.Model) (string, error) {
		rm, err := resolveRef(r, ref, relativeTo)
		if err != nil {
			return "", err
		}

		key := canonicalKey(rm)

		if _, already := nodes[key]; already {
			return key, nil
		}

		nodes[key] = rm
		g.AddNode(key)

		deps, err := Dependencies(rm.Metric)
		if err != nil {
			return "", err
		}

		depKeys := make([]string, 0, len(deps))

		for _, dep := range deps {
			depKey, err := resolve(dep, rm.Owner)
			if err != nil {
				return "", err
			}

			if err := g.AddEdge(key, depKey); err != nil {
				return "", err
			}

			depKeys = append(depKeys, depKey)
		}

		dependsOn[key] = depKeys

		return key, nil
	}

	requestedMetrics := make([]*graph.ResolvedMetric, 0, len(requested))

	for _, ref := range requested {
		key, err := resolve(ref, nil)
		if err != nil {
			return nil, err
		}

		requestedMetrics = append(requestedMetrics, nodes[key])
	}

	order, err := g.TopologicalSort()
	if err != nil {
		var cycle *dag.CycleError[string]
		if errors.As(err, &cycle) {
			return nil, fmt.Errorf("%w: %s", ErrSelfReferential, strings.Join(cycle.Remaining, ", "))
		}

		return nil, err
	}

	orderedMetrics := make([]*graph.ResolvedMetric, len(order))
	for i, key := range order {
		orderedMetrics[i] = nodes[key]
	}

	return &Plan{Requested: requestedMetrics, Order: orderedMetrics, DependsOn: dependsOn}, nil
}

// resolveRef resolves a metric reference relative to the model its
// referencing formula belongs to: an unqualified reference first checks for
// a sibling metric on relativeTo before falling back to the graph-level
// namespace (spec.md §3, §6.2).
func resolveRef(r *graph.Resolver, ref string, relativeTo *model.Model) (*graph.ResolvedMetric, error) {
	if modelName, _ := graph.SplitQualified(ref); modelName == "" && relativeTo != nil {
		if mt, ok := relativeTo.Metric(ref); ok {
			return &graph.ResolvedMetric{Owner: relativeTo, Metric: mt}, nil
		}
	}

	return r.ResolveMetric(ref)
}
