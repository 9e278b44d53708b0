package zenoh

import "github.com/hsiuhsiu/zenoh-go/internal/bindings"

var (
	Version     = "v0.0.0-in-progress"
	UpstreamRef = "1.4.0"
	UpstreamDir = "zenoh-c"
)

// WrapperVersion returns the semantic version populated at build time via
// ldflags. In development it defaults to v0.0.0-in-progress.
func WrapperVersion() string {
	return Version
}

// UpstreamVersion returns the version string reported by the native engine if
// available; otherwise it falls back to the pinned zenoh-c release.
func UpstreamVersion() string {
	if abi, err := bindings.Native(); err == nil {
		if v := abi.Version(); v != "" {
			return v
		}
	}
	return UpstreamRef
}
