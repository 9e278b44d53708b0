//go:build cgo && !zenohc

package bindings

// Native reports ErrNotBuilt in cgo builds that do not link zenoh-c. Build
// with -tags zenohc to enable the native engine.
func Native() (ABI, error) {
	return nil, ErrNotBuilt
}
