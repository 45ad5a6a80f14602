package loader

import (
	"regexp"
	"strconv"

	"gopkg.in/yaml.v3"
)

// YAML is the alternative configuration syntax (config.yaml, config.yml).
var YAML = Format{
	Name:       "yaml",
	Extensions: []string{".yaml", ".yml"},
	unmarshal: func(data []byte) (map[string]any, error) {
		var config map[string]any
		err := yaml.Unmarshal(data, &config)
		return config, err
	},
	position: yamlLine,
}

// yamlLinePattern matches the "line N" yaml.v3 puts in syntax and type errors.
var yamlLinePattern = regexp.MustCompile(`line (\d+)`)

// yamlLine extracts the first line number from a yaml.v3 error.
func yamlLine(err error) (int, int) {
	m := yamlLinePattern.FindStringSubmatch(err.Error())
	if m == nil {
		return 0, 0
	}
	line, _ := strconv.Atoi(m[1])
	return line, 0
}
