package cliconfig

import (
	"errors"

	"github.com/hsiuhsiu/zenoh-go/pkg/zenoh"
)

// Unavailable reports whether err means the native engine is not linked in.
func Unavailable(err error) bool {
	return errors.Is(err, zenoh.ErrNotBuilt) || errors.Is(err, zenoh.ErrCGONotEnabled)
}
