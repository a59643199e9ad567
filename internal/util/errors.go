// Package util holds small cross-cutting helpers shared by every package in
// this module, mirroring the teacher's own internal/util conventions.
package util

import "fmt"

// WrapError wraps err with an operation label using %w, so callers can
// still errors.Is/errors.As through it, or returns nil unchanged.
func WrapError(op string, err error) error {
	if err == nil {
		return nil
	}

	return fmt.Errorf("%s: %w", op, err)
}
