package graph

import "errors"

var (
	ErrInvalidGranularity = errors.New("invalid granularity reference")
	ErrNoPath             = errors.New("no relationship path between models")
	ErrAmbiguousPath      = errors.New("ambiguous relationship path between models")
)
