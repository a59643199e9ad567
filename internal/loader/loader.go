// Package loader is the external collaborator that turns a model document
// on disk into a *model.Graph (spec.md §6.1): reading a YAML or JSON file,
// validating its shape against schema.json, and registering each declared
// model and graph-level metric. internal/compiler/graph never does file
// I/O — this is the only place in the module that does.
package loader

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	_ "embed"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"sigs.k8s.io/yaml"

	"github.com/accented-ai/semcompile/internal/model"
)

//go:embed schema.json
var schemaJSON []byte

const schemaResourceURL = "semcompile://model-document.json"

// compiledSchema is built once per process: model documents are small and
// recompiling the schema per Load call would still work, but a CLI that
// loads several model files in one run shouldn't pay for it more than once.
var compiledSchema *jsonschema.Schema //nolint:gochecknoglobals

func compile() (*jsonschema.Schema, error) {
	if compiledSchema != nil {
		return compiledSchema, nil
	}

	c := jsonschema.NewCompiler()

	if err := c.AddResource(schemaResourceURL, bytes.NewReader(schemaJSON)); err != nil {
		return nil, fmt.Errorf("compile model document schema: %w", err)
	}

	sch, err := c.Compile(schemaResourceURL)
	if err != nil {
		return nil, fmt.Errorf("compile model document schema: %w", err)
	}

	compiledSchema = sch

	return sch, nil
}

// document is the top-level shape of a model file: a list of models plus
// any graph-level metrics not owned by a single model (spec.md §3).
type document struct {
	Models  []model.Model  `json:"models,omitempty"`
	Metrics []model.Metric `json:"metrics,omitempty"`
}

// Load reads a model document from path (YAML or JSON — sigs.k8s.io/yaml
// accepts both interchangeably), validates it, and builds a Graph.
func Load(path string) (*model.Graph, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model document %q: %w", path, err)
	}

	g, err := LoadBytes(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return g, nil
}

// LoadBytes is Load without the filesystem read, for callers that already
// hold the document in memory (e.g. a test fixture or an embedded default).
func LoadBytes(raw []byte) (*model.Graph, error) {
	asJSON, err := yaml.YAMLToJSON(raw)
	if err != nil {
		return nil, fmt.Errorf("parse model document: %w", err)
	}

	var generic any
	if err := json.Unmarshal(asJSON, &generic); err != nil {
		return nil, fmt.Errorf("parse model document: %w", err)
	}

	sch, err := compile()
	if err != nil {
		return nil, err
	}

	if err := sch.Validate(generic); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrSchemaValidation, err)
	}

	var doc document
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode model document: %w", err)
	}

	if len(doc.Models) == 0 && len(doc.Metrics) == 0 {
		return nil, ErrNoModels
	}

	g := model.NewGraph()

	for i := range doc.Models {
		if err := g.AddModel(&doc.Models[i]); err != nil {
			return nil, fmt.Errorf("model %q: %w", doc.Models[i].Name, err)
		}
	}

	for i := range doc.Metrics {
		if err := g.AddMetric(&doc.Metrics[i]); err != nil {
			return nil, fmt.Errorf("graph metric %q: %w", doc.Metrics[i].Name, err)
		}
	}

	return g, nil
}
