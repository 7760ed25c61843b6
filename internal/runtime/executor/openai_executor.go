package executor

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

const openAIDefaultBaseURL = "https://api.openai.com/v1"

// OpenAIExecutor speaks the OpenAI chat completions protocol. DeepSeek,
// Zhipu, Volcano Engine, OpenRouter and Ollama expose the same shape.
type OpenAIExecutor struct {
	baseExecutor
}

// NewOpenAIExecutor creates an executor for an OpenAI-compatible endpoint.
func NewOpenAIExecutor(cfg ExecutorConfig) (*OpenAIExecutor, error) {
	if cfg.Provider == "" {
		cfg.Provider = "openai"
	}
	base, err := newBaseExecutor(cfg, openAIDefaultBaseURL)
	if err != nil {
		return nil, err
	}
	return &OpenAIExecutor{baseExecutor: base}, nil
}

func (e *OpenAIExecutor) Execute(ctx context.Context, req Request) (string, error) {
	body := buildOpenAIChatBody(req)
	url := strings.TrimSuffix(e.baseURL, "/") + "/chat/completions"
	data, err := doJSON(ctx, e.client, e.retry, http.MethodPost, url, e.authHeader(), body, e.provider)
	if err != nil {
		return "", err
	}
	return extractOpenAIText(data)
}

// Probe lists models, the cheapest authenticated call.
func (e *OpenAIExecutor) Probe(ctx context.Context) error {
	url := strings.TrimSuffix(e.baseURL, "/") + "/models"
	_, err := doJSON(ctx, e.client, RetryConfig{MaxAttempts: 1}, http.MethodGet, url, e.authHeader(), nil, e.provider)
	return err
}

func (e *OpenAIExecutor) authHeader() http.Header {
	h := e.header()
	if e.apiKey != "" {
		h.Set("Authorization", "Bearer "+e.apiKey)
	}
	return h
}

func buildOpenAIChatBody(req Request) []byte {
	body := []byte(`{"messages":[]}`)
	body, _ = sjson.SetBytes(body, "model", req.Model)
	i := 0
	if req.System != "" {
		body, _ = sjson.SetBytes(body, "messages.0.role", "system")
		body, _ = sjson.SetBytes(body, "messages.0.content", req.System)
		i++
	}
	prefix := "messages." + strconv.Itoa(i)
	body, _ = sjson.SetBytes(body, prefix+".role", "user")
	body, _ = sjson.SetBytes(body, prefix+".content", req.Prompt)
	if req.Temperature != nil {
		body, _ = sjson.SetBytes(body, "temperature", *req.Temperature)
	}
	if req.MaxTokens > 0 {
		body, _ = sjson.SetBytes(body, "max_tokens", req.MaxTokens)
	}
	return body
}

func extractOpenAIText(data []byte) (string, error) {
	if msg := gjson.GetBytes(data, "error.message"); msg.Exists() {
		return "", errors.New(msg.String())
	}
	for _, path := range []string{"choices.0.message.content", "choices.0.text", "output", "content"} {
		if r := gjson.GetBytes(data, path); r.Type == gjson.String && r.String() != "" {
			return r.String(), nil
		}
	}
	return "", errNoText
}
