package graph

import (
	"fmt"
	"sort"

	"github.com/accented-ai/semcompile/internal/model"
)

// Edge is one join hop in a resolved relationship path. Relationship is the
// declaring relationship; for a ManyToMany relationship the logical edge is
// split into two synthetic Edges through the junction model, distinguished
// by Hop ("through" for the near side, "related" for the far side). Reversed
// marks an edge traversed against the direction it was declared in (the
// planner still joins on the same foreign key, just from the other side).
type Edge struct {
	From         string
	To           string
	Relationship *model.Relationship
	Hop          string
	Reversed     bool
}

// FindRelationshipPath finds the shortest join path from one model to
// another via BFS over the graph's declared relationships, treated as
// undirected for traversal purposes (spec.md §4.2: a relationship declared
// A -> B is usable to join either A from B or B from A). ManyToMany
// relationships are expanded into two hops through their junction model.
// Returns an empty, non-nil slice when from == to.
func FindRelationshipPath(g *model.Graph, from, to string) ([]Edge, error) {
	if !g.HasModel(from) {
		return nil, fmt.Errorf("%w: %q", model.ErrUnknownModel, from)
	}

	if !g.HasModel(to) {
		return nil, fmt.Errorf("%w: %q", model.ErrUnknownModel, to)
	}

	if from == to {
		return []Edge{}, nil
	}

	adjacency := buildAdjacency(g)

	type frame struct {
		node string
		via  *Edge
		prev *frame
	}

	visited := map[string]bool{from: true}
	queue := []*frame{{node: from}}

	var found *frame

	for len(queue) > 0 && found == nil {
		cur := queue[0]
		queue = queue[1:]

		edges := adjacency[cur.node]
		sort.SliceStable(edges, func(i, j int) bool { return edges[i].To < edges[j].To })

		for i := range edges {
			e := edges[i]
			if visited[e.To] {
				continue
			}

			visited[e.To] = true
			next := &frame{node: e.To, via: &e, prev: cur}

			if e.To == to {
				found = next
				break
			}

			queue = append(queue, next)
		}
	}

	if found == nil {
		return nil, fmt.Errorf("%w: %q -> %q", ErrNoPath, from, to)
	}

	var path []Edge
	for f := found; f.via != nil; f = f.prev {
		path = append([]Edge{*f.via}, path...)
	}

	return path, nil
}

// buildAdjacency flattens every model's declared relationships into a
// directed, traversable-both-ways adjacency list, expanding ManyToMany
// relationships into their two junction hops.
func buildAdjacency(g *model.Graph) map[string][]Edge {
	adj := make(map[string][]Edge)

	add := func(e Edge) { adj[e.From] = append(adj[e.From], e) }

	for _, m := range g.Models() {
		for i := range m.Relationships {
			rel := &m.Relationships[i]

			if rel.Type == model.ManyToMany {
				near := Edge{From: m.Name, To: rel.Through, Relationship: rel, Hop: "through"}
				far := Edge{From: rel.Through, To: rel.Name, Relationship: rel, Hop: "related"}

				add(near)
				add(Edge{From: near.To, To: near.From, Relationship: rel, Hop: "through", Reversed: true})
				add(far)
				add(Edge{From: far.To, To: far.From, Relationship: rel, Hop: "related", Reversed: true})

				continue
			}

			e := Edge{From: m.Name, To: rel.Name, Relationship: rel}
			add(e)
			add(Edge{From: rel.Name, To: m.Name, Relationship: rel, Reversed: true})
		}
	}

	return adj
}
