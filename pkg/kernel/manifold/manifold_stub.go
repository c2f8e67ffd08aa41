//go:build !manifold

// Package manifold provides a CGo-based geometry kernel binding to the
// Manifold library. When the "manifold" build tag is not set, this stub
// package is compiled instead and New reports that the backend is missing.
//
// Build with: go build -tags=manifold
package manifold

import (
	"errors"

	"github.com/chazu/makertron/pkg/kernel"
)

// ErrNotBuilt is returned by New when the binary was built without the
// manifold tag.
var ErrNotBuilt = errors.New("manifold kernel not available: build with -tags=manifold")

// New returns ErrNotBuilt.
func New() (kernel.Kernel, error) {
	return nil, ErrNotBuilt
}
