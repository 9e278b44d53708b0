// Package internalcheck holds repository policy tests.
//
// The tests load the module's own packages and fail when code crosses a
// boundary the binding depends on: cgo and unsafe confined to the packages
// that own native memory, and sample payloads kept out of log records.
//
// # Internal Use Only
//
// This package has no API. It is not intended for external use.
package internalcheck
