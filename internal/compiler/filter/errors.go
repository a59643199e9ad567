package filter

import "errors"

var ErrAmbiguousFilter = errors.New("filter fragment references no columns and cannot be classified")
