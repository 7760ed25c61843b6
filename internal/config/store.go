package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Store is a dotted-key view over the raw YAML configuration document.
// Writes keep the document's key order and comments and are saved back to
// the file when it has a path.
type Store struct {
	mu   sync.RWMutex
	path string
	doc  *yaml.Node
}

// OpenStore parses the document at path. A missing file yields an empty
// document that is created on the first Set.
func OpenStore(path string) (*Store, error) {
	s := &Store{path: path}
	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("config store: %w", err)
	}
	if err = s.parse(data); err != nil {
		return nil, err
	}
	return s, nil
}

// NewMemoryStore returns a store that is never written to disk.
func NewMemoryStore() *Store {
	s := &Store{}
	_ = s.parse(nil)
	return s
}

func (s *Store) parse(data []byte) error {
	var doc yaml.Node
	if len(bytes.TrimSpace(data)) > 0 {
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return fmt.Errorf("config store: parsing YAML: %w", err)
		}
	}
	if doc.Kind == 0 || len(doc.Content) == 0 {
		doc = yaml.Node{Kind: yaml.DocumentNode, Content: []*yaml.Node{{Kind: yaml.MappingNode, Tag: "!!map"}}}
	}
	if doc.Content[0].Kind != yaml.MappingNode {
		return fmt.Errorf("config store: YAML root must be a mapping, got kind %d", doc.Content[0].Kind)
	}
	s.doc = &doc
	return nil
}

// Path returns the backing file path, empty for memory stores.
func (s *Store) Path() string { return s.path }

// Get decodes the value at the dotted key, or returns def when absent.
func (s *Store) Get(key string, def any) any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	node := lookup(s.doc.Content[0], splitKey(key))
	if node == nil {
		return def
	}
	var v any
	if err := node.Decode(&v); err != nil || v == nil {
		return def
	}
	return v
}

// GetString returns the value at key as a string, or def.
func (s *Store) GetString(key, def string) string {
	if v, ok := s.Get(key, nil).(string); ok {
		return v
	}
	return def
}

// Set writes value at the dotted key, creating intermediate mappings, and
// saves the document.
func (s *Store) Set(key string, value any) error {
	parts := splitKey(key)
	if len(parts) == 0 {
		return errors.New("config store: empty key")
	}
	var encoded yaml.Node
	if err := encoded.Encode(value); err != nil {
		return fmt.Errorf("config store: encoding %s: %w", key, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	node := s.doc.Content[0]
	for _, p := range parts[:len(parts)-1] {
		child := mappingValue(node, p)
		if child == nil || child.Kind != yaml.MappingNode {
			fresh := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
			setMappingValue(node, p, fresh)
			child = fresh
		}
		node = child
	}
	setMappingValue(node, parts[len(parts)-1], &encoded)
	return s.saveLocked()
}

// Save writes the document to its path.
func (s *Store) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked()
}

func (s *Store) saveLocked() error {
	if s.path == "" {
		return nil
	}
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(s.doc); err != nil {
		return fmt.Errorf("config store: encoding document: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("config store: encoding document: %w", err)
	}
	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("config store: %w", err)
		}
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("config store: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("config store: %w", err)
	}
	log.Debugf("config store: saved %s", s.path)
	return nil
}

func splitKey(key string) []string {
	key = strings.Trim(strings.TrimSpace(key), ".")
	if key == "" {
		return nil
	}
	return strings.Split(key, ".")
}

func lookup(node *yaml.Node, parts []string) *yaml.Node {
	for _, p := range parts {
		if node == nil || node.Kind != yaml.MappingNode {
			return nil
		}
		node = mappingValue(node, p)
	}
	return node
}

func mappingValue(m *yaml.Node, key string) *yaml.Node {
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			return m.Content[i+1]
		}
	}
	return nil
}

func setMappingValue(m *yaml.Node, key string, value *yaml.Node) {
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			// Keep comments attached to the old value.
			value.HeadComment = m.Content[i+1].HeadComment
			value.LineComment = m.Content[i+1].LineComment
			m.Content[i+1] = value
			return
		}
	}
	m.Content = append(m.Content,
		&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key},
		value,
	)
}
