package config

import (
	"os"
	"regexp"
	"strings"
)

// StrategyConfig declares one strategy instance built from the factory table.
type StrategyConfig struct {
	// Name is the registry name. Empty uses Type.
	Name string `yaml:"name" json:"name" toml:"name"`
	// Type selects the factory, e.g. openai, deepseek, zhipu or template.
	Type string `yaml:"type" json:"type" toml:"type"`
	// Enabled defaults to true when omitted.
	Enabled *bool `yaml:"enabled,omitempty" json:"enabled,omitempty" toml:"enabled,omitempty"`
	// Default marks the strategy as the default after registration.
	Default bool `yaml:"default,omitempty" json:"default,omitempty" toml:"default,omitempty"`
	// Settings are passed to the factory after ${VAR} expansion.
	Settings map[string]any `yaml:"settings" json:"settings" toml:"settings"`
}

// EffectiveName returns Name, or Type when Name is empty.
func (s StrategyConfig) EffectiveName() string {
	if n := strings.TrimSpace(s.Name); n != "" {
		return n
	}
	return strings.TrimSpace(s.Type)
}

// IsEnabled reports whether the strategy should be registered.
func (s StrategyConfig) IsEnabled() bool {
	return s.Enabled == nil || *s.Enabled
}

// ExpandedSettings returns a copy of Settings with ${VAR} references in
// string values replaced from the environment.
func (s StrategyConfig) ExpandedSettings() map[string]any {
	out := make(map[string]any, len(s.Settings))
	for k, v := range s.Settings {
		out[k] = expandValue(v)
	}
	return out
}

var envRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// ExpandEnv replaces ${VAR} references with environment values. Unset
// variables expand to the empty string. A bare $VAR is left alone.
func ExpandEnv(s string) string {
	if !strings.Contains(s, "${") {
		return s
	}
	return envRef.ReplaceAllStringFunc(s, func(m string) string {
		return os.Getenv(m[2 : len(m)-1])
	})
}

func expandValue(v any) any {
	switch t := v.(type) {
	case string:
		return ExpandEnv(t)
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, vv := range t {
			out[k] = expandValue(vv)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, vv := range t {
			out[i] = expandValue(vv)
		}
		return out
	default:
		return v
	}
}
