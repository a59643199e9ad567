package model

import "errors"

var (
	ErrInvalidModel       = errors.New("invalid model")
	ErrInvalidMetricShape = errors.New("metric fields do not form a valid metric kind")
	ErrUnknownModel       = errors.New("unknown model")
	ErrUnknownMetric      = errors.New("unknown metric")
	ErrUnknownDimension   = errors.New("unknown dimension")
	ErrUnknownSegment     = errors.New("unknown segment")
	ErrAmbiguousReference = errors.New("ambiguous reference")
	ErrDuplicateModel     = errors.New("duplicate model")
	ErrDuplicateMetric    = errors.New("duplicate graph-level metric")
)
