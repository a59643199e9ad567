package rewriter

import "errors"

var (
	// ErrExpectedSingleStatement is returned when the user SQL text contains
	// more or less than one statement.
	ErrExpectedSingleStatement = errors.New("expected exactly one SQL statement")
	// ErrUnsupportedUserSQL covers every shape spec.md §4.8 explicitly
	// rejects: anything but a single-table SELECT (joins, subqueries in
	// FROM, SELECT *).
	ErrUnsupportedUserSQL = errors.New("unsupported user SQL")
)
