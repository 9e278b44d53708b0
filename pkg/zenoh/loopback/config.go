package loopback

import (
	"os"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/hsiuhsiu/zenoh-go/internal/bindings"
)

type configObj struct {
	mode string
	doc  map[string]any
}

var validModes = map[string]bool{"peer": true, "client": true, "router": true}

// parseConfig accepts JSON (and therefore JSON5 without comments) or YAML.
func parseConfig(text []byte) (*configObj, bindings.Result) {
	var doc map[string]any
	if err := yaml.Unmarshal(text, &doc); err != nil {
		Logger().Debug("loopback: config parse failed", zap.Error(err))
		return nil, bindings.EParse
	}
	cfg := &configObj{mode: "peer", doc: doc}
	if v, ok := doc["mode"]; ok {
		mode, isString := v.(string)
		if !isString || !validModes[mode] {
			return nil, bindings.EInval
		}
		cfg.mode = mode
	}
	return cfg, bindings.OK
}

func readConfig(path string) (*configObj, bindings.Result) {
	text, err := os.ReadFile(path)
	if err != nil {
		return nil, bindings.EIO
	}
	return parseConfig(text)
}

func (c *configObj) clone() *configObj {
	out := &configObj{mode: c.mode, doc: make(map[string]any, len(c.doc))}
	for k, v := range c.doc {
		out.doc[k] = v
	}
	return out
}
