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

const dashScopeDefaultBaseURL = "https://dashscope.aliyuncs.com/api/v1"

// DashScopeExecutor calls Alibaba Cloud's DashScope text generation API.
type DashScopeExecutor struct {
	baseExecutor
	probeModel string
}

// NewDashScopeExecutor creates a DashScope executor. probeModel is used for
// the connectivity check since DashScope has no model listing endpoint.
func NewDashScopeExecutor(cfg ExecutorConfig, probeModel string) (*DashScopeExecutor, error) {
	if cfg.Provider == "" {
		cfg.Provider = "alibaba"
	}
	base, err := newBaseExecutor(cfg, dashScopeDefaultBaseURL)
	if err != nil {
		return nil, err
	}
	return &DashScopeExecutor{baseExecutor: base, probeModel: probeModel}, nil
}

func (e *DashScopeExecutor) Execute(ctx context.Context, req Request) (string, error) {
	body := []byte(`{"input":{"messages":[]},"parameters":{"result_format":"message"}}`)
	body, _ = sjson.SetBytes(body, "model", req.Model)
	i := 0
	if req.System != "" {
		body, _ = sjson.SetBytes(body, "input.messages.0.role", "system")
		body, _ = sjson.SetBytes(body, "input.messages.0.content", req.System)
		i++
	}
	prefix := "input.messages." + strconv.Itoa(i)
	body, _ = sjson.SetBytes(body, prefix+".role", "user")
	body, _ = sjson.SetBytes(body, prefix+".content", req.Prompt)
	if req.Temperature != nil {
		body, _ = sjson.SetBytes(body, "parameters.temperature", *req.Temperature)
	}
	if req.MaxTokens > 0 {
		body, _ = sjson.SetBytes(body, "parameters.max_tokens", req.MaxTokens)
	}

	url := strings.TrimSuffix(e.baseURL, "/") + "/services/aigc/text-generation/generation"
	h := e.header()
	h.Set("Authorization", "Bearer "+e.apiKey)
	data, err := doJSON(ctx, e.client, e.retry, http.MethodPost, url, h, body, e.provider)
	if err != nil {
		return "", err
	}
	return extractDashScopeText(data)
}

// Probe sends a one-token generation.
func (e *DashScopeExecutor) Probe(ctx context.Context) error {
	_, err := e.Execute(ctx, Request{Model: e.probeModel, Prompt: "ping", MaxTokens: 1})
	if errors.Is(err, errNoText) {
		return nil
	}
	return err
}

func extractDashScopeText(data []byte) (string, error) {
	if code := gjson.GetBytes(data, "code"); code.Exists() && code.String() != "" {
		return "", errors.New(code.String() + ": " + gjson.GetBytes(data, "message").String())
	}
	for _, path := range []string{"output.text", "output.choices.0.message.content"} {
		if r := gjson.GetBytes(data, path); r.Exists() && r.String() != "" {
			return r.String(), nil
		}
	}
	return "", errNoText
}
