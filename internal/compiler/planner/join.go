package planner

import (
	"errors"
	"fmt"

	compilergraph "github.com/accented-ai/semcompile/internal/compiler/graph"
	"github.com/accented-ai/semcompile/internal/model"
)

// ErrCompositeJoinKey is returned when a relationship would need to join on
// a composite primary key: foreign_key/through_foreign_key/related_foreign_key
// are single columns by declaration (spec.md §3), so a model used as a
// relationship target must expose a single-column primary key.
var ErrCompositeJoinKey = errors.New("relationship target has a composite primary key, which a single foreign_key column cannot join against")

// joinClause is one resolved LEFT JOIN in the assembled join tree.
type joinClause struct {
	TargetModel string // the model newly introduced by this join
	TargetAlias string
	SQL         string // "LEFT JOIN <target>_cte AS <alias> ON <condition>"
}

// joinColumnNeed is a bare column a model's CTE must project so a join-tree
// ON clause can reference it; unlike a model's own primary key (always
// projected, see buildModelCTE), foreign-key-side columns are only needed
// when a relationship actually uses them.
type joinColumnNeed struct {
	Model  string
	Column string
}

// buildJoinTree finds the shortest relationship path from primary to every
// other touched model and assembles the LEFT JOIN chain, deduplicating
// shared path prefixes and expanding many-to-many hops through their
// junction model (spec.md §4.7 "Join tree"). It also reports every
// foreign-key-side column the assembled ON clauses reference, so the
// caller can ensure each owning model's CTE silently projects it.
func buildJoinTree(g *model.Graph, primary string, others []string) ([]joinClause, []joinColumnNeed, error) {
	visited := map[string]bool{primary: true}

	var (
		joins []joinClause
		needs []joinColumnNeed
	)

	for _, other := range others {
		if visited[other] {
			continue
		}

		path, err := compilergraph.FindRelationshipPath(g, primary, other)
		if err != nil {
			return nil, nil, err
		}

		for _, edge := range path {
			if visited[edge.To] {
				continue
			}

			visited[edge.To] = true

			cond, err := joinCondition(g, edge)
			if err != nil {
				return nil, nil, err
			}

			joins = append(joins, joinClause{
				TargetModel: edge.To,
				TargetAlias: edge.To,
				SQL:         fmt.Sprintf("LEFT JOIN %s_cte AS %s ON %s", edge.To, edge.To, cond),
			})

			needs = append(needs, joinColumnNeeds(edge)...)
		}
	}

	return joins, needs, nil
}

// joinColumnNeeds names the foreign-key-side column(s) one join-tree edge's
// ON clause references, mirroring joinCondition's edge-unpacking logic.
func joinColumnNeeds(edge compilergraph.Edge) []joinColumnNeed {
	rel := edge.Relationship

	switch edge.Hop {
	case "through":
		_, throughModel := edge.From, edge.To
		if edge.Reversed {
			throughModel = edge.From
		}

		return []joinColumnNeed{{Model: throughModel, Column: rel.ThroughForeignKey}}

	case "related":
		throughModel, _ := edge.From, edge.To
		if edge.Reversed {
			throughModel = edge.To
		}

		return []joinColumnNeed{{Model: throughModel, Column: rel.RelatedForeignKey}}

	default:
		ownerModel, targetModel := edge.From, edge.To
		if edge.Reversed {
			ownerModel, targetModel = edge.To, edge.From
		}

		needs := []joinColumnNeed{{Model: ownerModel, Column: rel.ForeignKey}}
		if rel.PrimaryKey != "" {
			needs = append(needs, joinColumnNeed{Model: targetModel, Column: rel.PrimaryKey})
		}

		return needs
	}
}

// joinCondition renders the ON clause for one join-tree edge, applying
// spec.md §3's relationship convention: foreign_key always names a column
// on the relationship's declaring model, primary_key always names a column
// on the model across the edge (defaulting to that model's own primary
// key). many_to_many hops use through_foreign_key/related_foreign_key in
// the same shape, each referencing its own side's primary key.
func joinCondition(g *model.Graph, edge compilergraph.Edge) (string, error) {
	rel := edge.Relationship

	switch edge.Hop {
	case "through":
		ownerModel, throughModel := edge.From, edge.To
		if edge.Reversed {
			ownerModel, throughModel = edge.To, edge.From
		}

		ownerPK, err := primaryKeyColumn(g, ownerModel, "")
		if err != nil {
			return "", err
		}

		return fmt.Sprintf("%s.%s = %s.%s", throughModel, rel.ThroughForeignKey, ownerModel, ownerPK), nil

	case "related":
		throughModel, targetModel := edge.From, edge.To
		if edge.Reversed {
			throughModel, targetModel = edge.To, edge.From
		}

		targetPK, err := primaryKeyColumn(g, targetModel, "")
		if err != nil {
			return "", err
		}

		return fmt.Sprintf("%s.%s = %s.%s", throughModel, rel.RelatedForeignKey, targetModel, targetPK), nil

	default:
		ownerModel, targetModel := edge.From, edge.To
		if edge.Reversed {
			ownerModel, targetModel = edge.To, edge.From
		}

		targetPK, err := primaryKeyColumn(g, targetModel, rel.PrimaryKey)
		if err != nil {
			return "", err
		}

		return fmt.Sprintf("%s.%s = %s.%s", ownerModel, rel.ForeignKey, targetModel, targetPK), nil
	}
}

func primaryKeyColumn(g *model.Graph, modelName, override string) (string, error) {
	if override != "" {
		return override, nil
	}

	m, err := g.Model(modelName)
	if err != nil {
		return "", err
	}

	pk := m.PrimaryKeyColumns()
	if len(pk) != 1 {
		return "", fmt.Errorf("model %q: %w", modelName, ErrCompositeJoinKey)
	}

	return pk[0], nil
}
