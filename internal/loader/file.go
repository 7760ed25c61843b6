package loader

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/audio-translator/translator/internal/config"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Supported reports whether name has a strategy file extension.
func Supported(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml", ".json", ".toml":
		return true
	}
	return false
}

// strategyFile is the document form with a top-level strategies list.
type strategyFile struct {
	Strategies []config.StrategyConfig `yaml:"strategies" json:"strategies" toml:"strategies"`
}

// ParseFile reads a strategy list. The document may hold a strategies list,
// be a bare list, or be a single strategy manifest.
func ParseFile(path string) ([]config.StrategyConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("loader: reading %s: %w", path, err)
	}
	list, err := Parse(data, filepath.Ext(path))
	if err != nil {
		return nil, fmt.Errorf("loader: %s: %w", path, err)
	}
	return list, nil
}

// Parse decodes a strategy list in the format named by ext.
func Parse(data []byte, ext string) ([]config.StrategyConfig, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	switch strings.ToLower(ext) {
	case ".toml":
		return parseTOML(data)
	case ".yaml", ".yml", ".json":
		// JSON documents are valid YAML.
		return parseYAML(data)
	default:
		return nil, fmt.Errorf("unsupported strategy file extension %q", ext)
	}
}

func parseYAML(data []byte) ([]config.StrategyConfig, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing YAML: %w", err)
	}
	if len(doc.Content) == 0 {
		return nil, nil
	}
	root := doc.Content[0]
	switch root.Kind {
	case yaml.SequenceNode:
		var list []config.StrategyConfig
		if err := root.Decode(&list); err != nil {
			return nil, err
		}
		return list, nil
	case yaml.MappingNode:
		if hasKey(root, "strategies") {
			var f strategyFile
			if err := root.Decode(&f); err != nil {
				return nil, err
			}
			return f.Strategies, nil
		}
		var one config.StrategyConfig
		if err := root.Decode(&one); err != nil {
			return nil, err
		}
		if one.Type == "" {
			return nil, errors.New("manifest has no type")
		}
		return []config.StrategyConfig{one}, nil
	default:
		return nil, errors.New("strategy document must be a list or a mapping")
	}
}

func parseTOML(data []byte) ([]config.StrategyConfig, error) {
	var raw map[string]any
	if err := toml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing TOML: %w", err)
	}
	if _, ok := raw["strategies"]; ok {
		var f strategyFile
		if err := toml.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("parsing TOML: %w", err)
		}
		return f.Strategies, nil
	}
	var one config.StrategyConfig
	if err := toml.Unmarshal(data, &one); err != nil {
		return nil, fmt.Errorf("parsing TOML: %w", err)
	}
	if one.Type == "" {
		return nil, errors.New("manifest has no type")
	}
	return []config.StrategyConfig{one}, nil
}

func hasKey(m *yaml.Node, key string) bool {
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			return true
		}
	}
	return false
}
