package zenoh

import (
	"runtime"

	"github.com/hsiuhsiu/zenoh-go/internal/bindings"
)

// Config is an owned engine configuration. Opening a session consumes it.
type Config struct {
	h   owned[configKind]
	lib *Library
}

func (l *Library) newConfig(op string, ctor func(bindings.OwnedPtr) bindings.Result) (*Config, error) {
	c := &Config{lib: l}
	if err := c.h.init(l.abi, op, KindConstruct, ctor); err != nil {
		return nil, err
	}
	runtime.SetFinalizer(c, (*Config).finalize)
	return c, nil
}

// ConfigDefault returns the engine's default configuration.
func (l *Library) ConfigDefault() (*Config, error) {
	return l.newConfig("config default", l.abi.ConfigDefault)
}

// ConfigFromString parses a JSON5 configuration document.
func (l *Library) ConfigFromString(s string) (*Config, error) {
	return l.newConfig("config from string", func(dst bindings.OwnedPtr) bindings.Result {
		return l.abi.ConfigFromStr(dst, s)
	})
}

// ConfigFromFile loads a configuration file.
func (l *Library) ConfigFromFile(path string) (*Config, error) {
	return l.newConfig("config from file", func(dst bindings.OwnedPtr) bindings.Result {
		return l.abi.ConfigFromFile(dst, path)
	})
}

// Clone returns an independent copy of c.
func (c *Config) Clone() (*Config, error) {
	var out *Config
	err := c.h.withLoan("config clone", func(src bindings.LoanedPtr) error {
		var err error
		out, err = c.lib.newConfig("config clone", func(dst bindings.OwnedPtr) bindings.Result {
			return c.lib.abi.Clone(bindings.KindConfig, dst, src)
		})
		return err
	})
	return out, err
}

// Close releases the configuration. It is a no-op after the configuration was
// consumed by Open.
func (c *Config) Close() error {
	if c == nil {
		return nil
	}
	runtime.SetFinalizer(c, nil)
	c.h.release()
	return nil
}

func (c *Config) finalize() {
	if c.h.release() {
		c.lib.leaked("config")
	}
}
