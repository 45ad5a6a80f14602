package loader

import (
	"errors"

	"github.com/pelletier/go-toml/v2"
)

// TOML is the default configuration syntax (config.toml).
var TOML = Format{
	Name:       "toml",
	Extensions: []string{".toml"},
	unmarshal: func(data []byte) (map[string]any, error) {
		var config map[string]any
		err := toml.Unmarshal(data, &config)
		return config, err
	},
	position: func(err error) (int, int) {
		var derr *toml.DecodeError
		if errors.As(err, &derr) {
			return derr.Position()
		}
		return 0, 0
	},
}
