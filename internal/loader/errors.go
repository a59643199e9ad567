package loader

import "errors"

var (
	// ErrSchemaValidation is wrapped around a document's jsonschema
	// validation failure so callers can distinguish malformed model files
	// from the graph-level structural errors internal/model itself raises.
	ErrSchemaValidation = errors.New("model document failed schema validation")
	// ErrNoModels is returned when a document declares neither models nor
	// graph-level metrics — there is nothing to build a graph around.
	ErrNoModels = errors.New("model document declares no models")
	// ErrAutoDimensionsRequiresTable is returned when a model declares
	// auto_dimensions but sources from an inline sql subquery rather than a
	// table name — there is no information_schema row to introspect.
	ErrAutoDimensionsRequiresTable = errors.New("auto_dimensions requires a table source")
)
