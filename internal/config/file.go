package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

var ErrConfigNotFound = errors.New("configuration file not found")

// LoadFile reads a flat YAML mapping of configuration keys, for example
//
//	LLM_PROVIDER: anthropic
//	RATE_LIMIT_MAX_REQUESTS: 20
//	RATE_LIMIT_EXEMPT_PREFIXES: [/static/, /health]
//
// Keys are upper-cased. Lists are joined with commas.
func LoadFile(path string) (map[string]string, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from the operator
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return nil, err
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	values := make(map[string]string, len(raw))
	for key, value := range raw {
		if value == nil {
			continue
		}
		values[strings.ToUpper(strings.TrimSpace(key))] = stringify(value)
	}
	return values, nil
}

func stringify(value any) string {
	switch v := value.(type) {
	case []any:
		items := make([]string, 0, len(v))
		for _, item := range v {
			items = append(items, stringify(item))
		}
		return strings.Join(items, ",")
	default:
		return fmt.Sprint(v)
	}
}
