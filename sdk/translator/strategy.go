// Package translator orchestrates text translation across interchangeable
// AI-provider strategies. It owns strategy dispatch, a content-addressed
// result cache, long-text segmentation with token preservation, and request
// metrics with fail-soft degradation when a provider misbehaves.
package translator

import (
	"context"
	"maps"
)

// Context carries caller hints (source file, domain, languages, category)
// through the pipeline. Adapters treat it as opaque apart from prompt
// placeholder substitution.
type Context map[string]any

// Reserved context keys written by the Processor.
const (
	KeyPreservedItems    = "preserved_items"
	KeySegmentIndex      = "segment_index"
	KeyTotalSegments     = "total_segments"
	KeyPartialSentence   = "is_partial_sentence"
	KeyMaxSegmentLength  = "max_segment_length"
	KeyPreservePatterns  = "preserve_patterns"
	KeyDomain            = "domain"
	KeySourceLanguage    = "source_lang"
	KeyTargetLanguage    = "target_lang"
	KeyCategoryID        = "category_id"
	KeySourceFile        = "source_file"
	defaultProviderLabel = "custom"
)

// Clone returns a shallow copy. A nil receiver yields an empty, writable map.
func (c Context) Clone() Context {
	out := make(Context, len(c)+4)
	maps.Copy(out, c)
	return out
}

// String returns the value for key when it is a non-empty string.
func (c Context) String(key string) string {
	if c == nil {
		return ""
	}
	s, _ := c[key].(string)
	return s
}

// Int returns the value for key as an int, accepting the numeric shapes that
// JSON and YAML decoders produce.
func (c Context) Int(key string) (int, bool) {
	if c == nil {
		return 0, false
	}
	switch v := c[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	case uint64:
		return int(v), true
	}
	return 0, false
}

// Bool returns the value for key when it is a bool.
func (c Context) Bool(key string) bool {
	if c == nil {
		return false
	}
	b, _ := c[key].(bool)
	return b
}

// Capabilities is the static descriptor an adapter publishes about itself.
type Capabilities struct {
	SupportsBatch      bool     `json:"supports_batch" yaml:"supports-batch"`
	MaxBatchSize       int      `json:"max_batch_size" yaml:"max-batch-size"`
	MaxTextLength      int      `json:"max_text_length" yaml:"max-text-length"`
	SupportsAsync      bool     `json:"supports_async" yaml:"supports-async"`
	RequiresAPIKey     bool     `json:"requires_api_key" yaml:"requires-api-key"`
	SupportedLanguages []string `json:"supported_languages" yaml:"supported-languages"`
	ProviderType       string   `json:"provider_type" yaml:"provider-type"`
}

// Metadata is the registry's snapshot of a strategy taken at registration.
type Metadata struct {
	Name         string         `json:"name"`
	Description  string         `json:"description"`
	ProviderType string         `json:"provider_type"`
	Capabilities Capabilities   `json:"capabilities"`
	Extra        map[string]any `json:"extra,omitempty"`
}

// ConnectionStatus is the result of a connectivity probe.
type ConnectionStatus struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// Connection probe outcomes.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// OK reports whether the probe succeeded.
func (s ConnectionStatus) OK() bool { return s.Status == StatusSuccess }

// Strategy is the uniform contract every translation provider satisfies.
//
// Translate is fail-soft: when the provider cannot produce a translation the
// implementation returns the original text together with a non-nil error
// (typically *ProviderError). Callers that only want text may ignore the error.
type Strategy interface {
	Name() string
	Description() string
	ProviderType() string
	Translate(ctx context.Context, text string, tctx Context) (string, error)
	BatchTranslate(ctx context.Context, texts []string, tctx Context) []string
	TestConnection(ctx context.Context) ConnectionStatus
	Capabilities() Capabilities
	Metrics() RequestMetrics
	UpdateConfig(cfg map[string]any)
}

// MetadataOf snapshots a strategy's descriptive fields.
func MetadataOf(s Strategy) Metadata {
	caps := s.Capabilities()
	provider := s.ProviderType()
	if provider == "" {
		provider = caps.ProviderType
	}
	if provider == "" {
		provider = defaultProviderLabel
	}
	return Metadata{
		Name:         s.Name(),
		Description:  s.Description(),
		ProviderType: provider,
		Capabilities: caps,
	}
}
