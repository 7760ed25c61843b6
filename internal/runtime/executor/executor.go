// Package executor talks to AI provider HTTP APIs and exposes each provider
// as a translator.Strategy through the generic Adapter.
package executor

import (
	"context"
	"errors"
	"net/http"
	"time"
)

var errNoText = errors.New("no text in provider response")

// Request is a single-turn chat completion request.
type Request struct {
	Model       string
	System      string
	Prompt      string
	Temperature *float64
	MaxTokens   int
}

// ProviderExecutor performs provider-specific request shaping and response
// extraction. Execute returns the assistant text.
type ProviderExecutor interface {
	Identifier() string
	Execute(ctx context.Context, req Request) (string, error)
	Probe(ctx context.Context) error
}

// ExecutorConfig holds the transport settings shared by all executors.
type ExecutorConfig struct {
	Provider string
	BaseURL  string
	APIKey   string
	ProxyURL string
	Timeout  time.Duration
	Retry    RetryConfig
	Headers  map[string]string
}

type baseExecutor struct {
	provider string
	baseURL  string
	apiKey   string
	client   *http.Client
	retry    RetryConfig
	headers  map[string]string
}

func newBaseExecutor(cfg ExecutorConfig, defaultBaseURL string) (baseExecutor, error) {
	client, err := newHTTPClient(cfg.Timeout, cfg.ProxyURL)
	if err != nil {
		return baseExecutor{}, err
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	retry := cfg.Retry
	if retry.MaxAttempts == 0 {
		retry = DefaultRetryConfig()
	}
	return baseExecutor{
		provider: cfg.Provider,
		baseURL:  baseURL,
		apiKey:   cfg.APIKey,
		client:   client,
		retry:    retry,
		headers:  cfg.Headers,
	}, nil
}

func (b baseExecutor) Identifier() string { return b.provider }

func (b baseExecutor) header() http.Header {
	h := make(http.Header, len(b.headers)+2)
	for k, v := range b.headers {
		h.Set(k, v)
	}
	return h
}
