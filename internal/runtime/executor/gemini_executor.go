package executor

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

const geminiDefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// GeminiExecutor calls the Gemini generateContent endpoint.
type GeminiExecutor struct {
	baseExecutor
}

// NewGeminiExecutor creates a Gemini executor.
func NewGeminiExecutor(cfg ExecutorConfig) (*GeminiExecutor, error) {
	if cfg.Provider == "" {
		cfg.Provider = "gemini"
	}
	base, err := newBaseExecutor(cfg, geminiDefaultBaseURL)
	if err != nil {
		return nil, err
	}
	return &GeminiExecutor{baseExecutor: base}, nil
}

func (e *GeminiExecutor) Execute(ctx context.Context, req Request) (string, error) {
	body := []byte(`{"contents":[{"role":"user","parts":[{"text":""}]}]}`)
	body, _ = sjson.SetBytes(body, "contents.0.parts.0.text", req.Prompt)
	if req.System != "" {
		body, _ = sjson.SetBytes(body, "system_instruction.parts.0.text", req.System)
	}
	if req.Temperature != nil {
		body, _ = sjson.SetBytes(body, "generationConfig.temperature", *req.Temperature)
	}
	if req.MaxTokens > 0 {
		body, _ = sjson.SetBytes(body, "generationConfig.maxOutputTokens", req.MaxTokens)
	}

	endpoint := e.endpoint("models/" + url.PathEscape(req.Model) + ":generateContent")
	data, err := doJSON(ctx, e.client, e.retry, http.MethodPost, endpoint, e.header(), body, e.provider)
	if err != nil {
		return "", err
	}
	return extractGeminiText(data)
}

func (e *GeminiExecutor) Probe(ctx context.Context) error {
	_, err := doJSON(ctx, e.client, RetryConfig{MaxAttempts: 1}, http.MethodGet, e.endpoint("models"), e.header(), nil, e.provider)
	return err
}

func (e *GeminiExecutor) endpoint(path string) string {
	u := strings.TrimSuffix(e.baseURL, "/") + "/" + path
	if e.apiKey != "" {
		u += "?key=" + url.QueryEscape(e.apiKey)
	}
	return u
}

func extractGeminiText(data []byte) (string, error) {
	if msg := gjson.GetBytes(data, "error.message"); msg.Exists() {
		return "", errors.New(msg.String())
	}
	var sb strings.Builder
	for _, part := range gjson.GetBytes(data, "candidates.0.content.parts.#.text").Array() {
		sb.WriteString(part.String())
	}
	if sb.Len() == 0 {
		if reason := gjson.GetBytes(data, "promptFeedback.blockReason"); reason.Exists() {
			return "", errors.New("prompt blocked: " + reason.String())
		}
		return "", errNoText
	}
	return sb.String(), nil
}
