package model

import "fmt"

// Graph is the data container spec.md §3 calls SemanticGraph: a registry of
// Models plus graph-level Metrics (cross-model derived/ratio metrics not
// owned by any single model). It is built once through NewGraph, AddModel
// and AddMetric (spec.md §9: "Replace with explicit builder/config... no
// ambient state") and treated as immutable during compilation (spec.md §5).
type Graph struct {
	models  map[string]*Model
	metrics map[string]*Metric
	order   []string // model names in registration order, for deterministic iteration
}

// NewGraph returns an empty Graph ready for sequential registration.
func NewGraph() *Graph {
	return &Graph{
		models:  make(map[string]*Model),
		metrics: make(map[string]*Metric),
	}
}

// AddModel registers a model. Registration is sequential and not
// concurrency-safe (spec.md §5: "Mutating operations on the graph... must
// be serialised by the caller"). Every relationship target (and, for
// many_to_many, the through junction) must already be registered: spec.md
// §4.2 requires targets to exist "validated at add-time," which means
// models must be added in dependency order — a relationship pointing at a
// model not yet added is rejected, not deferred.
func (g *Graph) AddModel(m *Model) error {
	if err := m.Validate(); err != nil {
		return err
	}

	if _, exists := g.models[m.Name]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateModel, m.Name)
	}

	for _, rel := range m.Relationships {
		if rel.Type == ManyToMany && rel.Through == "" {
			return fmt.Errorf("model %q relationship %q: %w: many_to_many requires through",
				m.Name, rel.Name, ErrInvalidModel)
		}

		if _, ok := g.models[rel.Name]; !ok {
			return fmt.Errorf("model %q relationship %q: %w: target model %q is not registered",
				m.Name, rel.Name, ErrUnknownModel, rel.Name)
		}

		if rel.Through != "" {
			if _, ok := g.models[rel.Through]; !ok {
				return fmt.Errorf("model %q relationship %q: %w: through model %q is not registered",
					m.Name, rel.Name, ErrUnknownModel, rel.Through)
			}
		}
	}

	g.models[m.Name] = m
	g.order = append(g.order, m.Name)

	return nil
}

// AddMetric registers a graph-level metric (declared independent of any one
// model, spec.md §3).
func (g *Graph) AddMetric(metric *Metric) error {
	if metric.Type() == InvalidMetric {
		return fmt.Errorf("graph metric %q: %w", metric.Name, ErrInvalidMetricShape)
	}

	if _, exists := g.metrics[metric.Name]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateMetric, metric.Name)
	}

	g.metrics[metric.Name] = metric

	return nil
}

// Model returns the named model or ErrUnknownModel.
func (g *Graph) Model(name string) (*Model, error) {
	m, ok := g.models[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownModel, name)
	}

	return m, nil
}

// HasModel reports whether name is a registered model.
func (g *Graph) HasModel(name string) bool {
	_, ok := g.models[name]
	return ok
}

// GraphMetric returns a graph-level metric (not owned by any model) and
// whether one is registered under name.
func (g *Graph) GraphMetric(name string) (*Metric, bool) {
	m, ok := g.metrics[name]
	return m, ok
}

// ModelNames returns registered model names in registration order.
func (g *Graph) ModelNames() []string {
	out := make([]string, len(g.order))
	copy(out, g.order)

	return out
}

// Models returns every registered model in registration order.
func (g *Graph) Models() []*Model {
	out := make([]*Model, 0, len(g.order))
	for _, name := range g.order {
		out = append(out, g.models[name])
	}

	return out
}
