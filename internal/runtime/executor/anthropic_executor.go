package executor

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

const (
	anthropicDefaultBaseURL   = "https://api.anthropic.com/v1"
	anthropicVersion          = "2023-06-01"
	anthropicDefaultMaxTokens = 4096
)

// AnthropicExecutor calls the Anthropic Messages API.
type AnthropicExecutor struct {
	baseExecutor
}

// NewAnthropicExecutor creates an Anthropic executor.
func NewAnthropicExecutor(cfg ExecutorConfig) (*AnthropicExecutor, error) {
	if cfg.Provider == "" {
		cfg.Provider = "anthropic"
	}
	base, err := newBaseExecutor(cfg, anthropicDefaultBaseURL)
	if err != nil {
		return nil, err
	}
	return &AnthropicExecutor{baseExecutor: base}, nil
}

func (e *AnthropicExecutor) Execute(ctx context.Context, req Request) (string, error) {
	body := []byte(`{"messages":[{"role":"user","content":""}]}`)
	body, _ = sjson.SetBytes(body, "model", req.Model)
	body, _ = sjson.SetBytes(body, "messages.0.content", req.Prompt)
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = anthropicDefaultMaxTokens
	}
	body, _ = sjson.SetBytes(body, "max_tokens", maxTokens)
	if req.System != "" {
		body, _ = sjson.SetBytes(body, "system", req.System)
	}
	if req.Temperature != nil {
		body, _ = sjson.SetBytes(body, "temperature", *req.Temperature)
	}

	url := strings.TrimSuffix(e.baseURL, "/") + "/messages"
	data, err := doJSON(ctx, e.client, e.retry, http.MethodPost, url, e.authHeader(), body, e.provider)
	if err != nil {
		return "", err
	}
	return extractAnthropicText(data)
}

func (e *AnthropicExecutor) Probe(ctx context.Context) error {
	url := strings.TrimSuffix(e.baseURL, "/") + "/models"
	_, err := doJSON(ctx, e.client, RetryConfig{MaxAttempts: 1}, http.MethodGet, url, e.authHeader(), nil, e.provider)
	return err
}

func (e *AnthropicExecutor) authHeader() http.Header {
	h := e.header()
	h.Set("x-api-key", e.apiKey)
	h.Set("anthropic-version", anthropicVersion)
	return h
}

func extractAnthropicText(data []byte) (string, error) {
	if msg := gjson.GetBytes(data, "error.message"); msg.Exists() {
		return "", errors.New(msg.String())
	}
	var sb strings.Builder
	for _, part := range gjson.GetBytes(data, `content.#(type=="text")#.text`).Array() {
		sb.WriteString(part.String())
	}
	if sb.Len() == 0 {
		return "", errNoText
	}
	return sb.String(), nil
}
