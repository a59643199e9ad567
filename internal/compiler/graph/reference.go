// Package graph implements the semantic graph's resolution logic (spec.md
// §4.2): resolving qualified metric/dimension references against a
// model.Graph, and finding join paths between models via BFS.
package graph

import (
	"fmt"
	"strings"

	"github.com/accented-ai/semcompile/internal/model"
)

// SplitQualified splits a "model.name" reference into its parts. An
// unqualified reference (no ".") returns ("", name).
func SplitQualified(ref string) (modelName, name string) {
	idx := strings.IndexByte(ref, '.')
	if idx < 0 {
		return "", ref
	}

	return ref[:idx], ref[idx+1:]
}

// SplitGranularity splits a dimension reference's trailing "__granularity"
// suffix off, per spec.md §6.2's `<dim>__<granularity>` grammar.
func SplitGranularity(name string) (base string, gran model.Granularity, hasSuffix bool) {
	idx := strings.LastIndex(name, "__")
	if idx < 0 {
		return name, "", false
	}

	candidate := model.Granularity(name[idx+2:])
	if !model.ValidGranularity(candidate) {
		return name, "", false
	}

	return name[:idx], candidate, true
}

// Resolver resolves qualified references against a fixed model.Graph.
type Resolver struct {
	graph *model.Graph
}

func New(g *model.Graph) *Resolver {
	return &Resolver{graph: g}
}

// Graph returns the underlying model graph.
func (r *Resolver) Graph() *model.Graph { return r.graph }

// ResolvedMetric is the result of resolving a metric reference: either a
// model-owned metric, or a graph-level metric (Owner == nil).
type ResolvedMetric struct {
	Owner  *model.Model // nil for graph-level metrics
	Metric *model.Metric
}

// ResolveMetric resolves a metric reference of the form "model.metric" or,
// for graph-level metrics only, the bare "metric" (spec.md §6.2).
func (r *Resolver) ResolveMetric(ref string) (*ResolvedMetric, error) {
	modelName, name := SplitQualified(ref)

	if modelName == "" {
		if m, ok := r.graph.GraphMetric(name); ok {
			return &ResolvedMetric{Metric: m}, nil
		}

		return nil, fmt.Errorf("%w: %q (unqualified references require a graph-level metric)", model.ErrUnknownMetric, ref)
	}

	owner, err := r.graph.Model(modelName)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", model.ErrUnknownModel, modelName)
	}

	metric, ok := owner.Metric(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", model.ErrUnknownMetric, ref)
	}

	return &ResolvedMetric{Owner: owner, Metric: metric}, nil
}

// ResolvedDimension is the result of resolving a dimension reference.
type ResolvedDimension struct {
	Owner       *model.Model
	Dimension   *model.Dimension
	Granularity model.Granularity // "" unless a __granularity suffix was given
}

// ResolveDimension resolves a dimension reference of the form "model.dim" or
// "model.dim__granularity" (spec.md §6.2). The granularity suffix is only
// accepted when the dimension is of kind Time and supports that
// granularity; otherwise InvalidGranularity is returned.
func (r *Resolver) ResolveDimension(ref string) (*ResolvedDimension, error) {
	modelName, rawName := SplitQualified(ref)
	if modelName == "" {
		return nil, fmt.Errorf("%w: %q (dimension references must be qualified)", model.ErrUnknownDimension, ref)
	}

	owner, err := r.graph.Model(modelName)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", model.ErrUnknownModel, modelName)
	}

	base, gran, hasSuffix := SplitGranularity(rawName)

	dim, ok := owner.Dimension(base)
	if !ok {
		return nil, fmt.Errorf("%w: %q", model.ErrUnknownDimension, ref)
	}

	if !hasSuffix {
		return &ResolvedDimension{Owner: owner, Dimension: dim}, nil
	}

	if dim.Kind != model.Time {
		return nil, fmt.Errorf("%w: %q is not a time dimension, granularity suffix not allowed", ErrInvalidGranularity, ref)
	}

	if !dim.SupportsGranularity(gran) {
		return nil, fmt.Errorf("%w: %q does not support granularity %q", ErrInvalidGranularity, ref, gran)
	}

	return &ResolvedDimension{Owner: owner, Dimension: dim, Granularity: gran}, nil
}

// ResolveSegment resolves a qualified segment reference "model.segment".
func (r *Resolver) ResolveSegment(ref string) (*model.Model, *model.Segment, error) {
	modelName, name := SplitQualified(ref)
	if modelName == "" {
		return nil, nil, fmt.Errorf("%w: %q (segment references must be qualified)", model.ErrUnknownSegment, ref)
	}

	owner, err := r.graph.Model(modelName)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %q", model.ErrUnknownModel, modelName)
	}

	seg, ok := owner.Segment(name)
	if !ok {
		return nil, nil, fmt.Errorf("%w: %q", model.ErrUnknownSegment, ref)
	}

	return owner, seg, nil
}
