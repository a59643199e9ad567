package planner

import (
	"strings"

	compilergraph "github.com/accented-ai/semcompile/internal/compiler/graph"
)

// metricKey returns the canonical cross-plan key for a resolved metric,
// matching internal/compiler/metric's own canonicalKey format exactly:
// "<model>.<metric>" for model-owned metrics, "graph:<metric>" for
// graph-level ones.
func metricKey(rm *compilergraph.ResolvedMetric) string {
	if rm.Owner == nil {
		return "graph:" + rm.Metric.Name
	}

	return rm.Owner.Name + "." + rm.Metric.Name
}

// internalName maps a metricKey to the collision-free SQL identifier used
// throughout the inner and outer projection layers: graph-level metrics
// keep their bare name, model-owned metrics become "<model>__<metric>".
// Every internal name is unique by construction, so neither layer needs
// spec.md §4.7's output collision rule — only the final layer (finalLayer)
// applies that rule, to the small subset of columns actually requested.
func internalName(key string) string {
	if after, ok := strings.CutPrefix(key, "graph:"); ok {
		return after
	}

	return strings.ReplaceAll(key, ".", "__")
}

// dimensionOutputBase is a resolved dimension's bare output name before any
// model-prefix collision resolution: its own name, plus a "__granularity"
// suffix when a time rollup grain was requested.
func dimensionOutputBase(rd *compilergraph.ResolvedDimension) string {
	if rd.Granularity != "" {
		return rd.Dimension.Name + "__" + string(rd.Granularity)
	}

	return rd.Dimension.Name
}

// internalDimName is a resolved dimension's collision-free internal column
// name, always model-prefixed since a dimension is never graph-level.
func internalDimName(rd *compilergraph.ResolvedDimension) string {
	return rd.Owner.Name + "__" + dimensionOutputBase(rd)
}
