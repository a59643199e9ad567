package planner

// outputRef is one candidate output column: its owning model (empty for a
// graph-level metric) and its unqualified base name.
type outputRef struct {
	model string
	base  string
}

// resolveCollisions implements spec.md §4.7's identifier-collision rule: if
// two output columns across different models share a base name, both (and
// every other column sharing that base name) get prefixed "<model>_"; a
// base name used by only one model is never prefixed, even if requested
// more than once.
func resolveCollisions(refs []outputRef) []string {
	models := make(map[string]map[string]bool, len(refs))

	for _, r := range refs {
		if models[r.base] == nil {
			models[r.base] = make(map[string]bool)
		}

		models[r.base][r.model] = true
	}

	names := make([]string, len(refs))

	for i, r := range refs {
		if len(models[r.base]) > 1 {
			names[i] = r.model + "_" + r.base
		} else {
			names[i] = r.base
		}
	}

	return names
}
