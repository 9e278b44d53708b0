//go:build !cgo

package bindings

import "fmt"

// Native cannot reach zenoh-c without cgo.
func Native() (ABI, error) {
	return nil, fmt.Errorf("%w: %w", ErrNotBuilt, ErrCGONotEnabled)
}
