package executor

import (
	"fmt"
	"maps"
	"os"
	"slices"
	"sort"
	"strings"
	"time"

	apperrors "github.com/audio-translator/translator/internal/errors"
	"github.com/audio-translator/translator/sdk/translator"
)

// Factory builds a strategy named name from its declarative settings.
type Factory func(name string, settings map[string]any) (translator.Strategy, error)

// Provider wire protocols.
const (
	protocolOpenAI    = "openai"
	protocolAnthropic = "anthropic"
	protocolGemini    = "gemini"
	protocolDashScope = "dashscope"
)

// providerDefaults describes a provider type: its protocol, endpoint and the
// prompt it uses when the configuration leaves them out.
type providerDefaults struct {
	protocol       string
	baseURL        string
	model          string
	description    string
	promptTemplate string
	systemMessage  string
	apiKeyEnv      string
	keyless        bool
}

var providers = map[string]providerDefaults{
	"openai": {
		protocol:       protocolOpenAI,
		baseURL:        "https://api.openai.com/v1",
		model:          "gpt-3.5-turbo",
		description:    "OpenAI GPT translation",
		promptTemplate: "请将以下文本翻译成中文，直接输出翻译结果，无需解释：\n\n{text}",
		systemMessage:  "你是专业的翻译模型，专注于准确翻译文本。请直接提供翻译结果，不要添加解释或其他内容。",
		apiKeyEnv:      "OPENAI_API_KEY",
	},
	"deepseek": {
		protocol:       protocolOpenAI,
		baseURL:        "https://api.deepseek.com/v1",
		model:          "deepseek-chat",
		description:    "DeepSeek translation",
		promptTemplate: "请将以下文本翻译成简体中文，只需提供翻译结果，不要添加任何解释、注释或其他内容：\n\n{text}",
		systemMessage:  "你是一位精通多种语言的翻译专家。请将文本准确翻译成简体中文，只输出翻译结果，不要添加任何其他内容。",
		apiKeyEnv:      "DEEPSEEK_API_KEY",
	},
	"zhipu": {
		protocol:       protocolOpenAI,
		baseURL:        "https://open.bigmodel.cn/api/paas/v4",
		model:          "glm-4",
		description:    "Zhipu GLM translation",
		promptTemplate: "请将以下文本翻译成简体中文，只返回翻译结果，不要添加解释、注释或其他内容：\n\n{text}",
		systemMessage:  "你是一个专业的文本翻译助手，基于GLM模型。请准确翻译用户提供的文本，只返回翻译结果，不添加任何额外内容。",
		apiKeyEnv:      "ZHIPU_API_KEY",
	},
	"volc": {
		protocol:       protocolOpenAI,
		baseURL:        "https://spark-api.cn-beijing.volcanicengine.com/v1",
		model:          "spark-v3",
		description:    "Volcano Engine translation",
		promptTemplate: "请你充当翻译专家，将以下文本翻译成简体中文，直接给出翻译结果，不需要解释：\n\n{text}",
		systemMessage:  "你是一位专业的翻译助手，负责将文本准确翻译成中文。请直接提供翻译结果，不需要解释或添加额外内容。",
		apiKeyEnv:      "VOLC_API_KEY",
	},
	"openrouter": {
		protocol:       protocolOpenAI,
		baseURL:        "https://openrouter.ai/api/v1",
		model:          "openai/gpt-4o-mini",
		description:    "OpenRouter translation",
		promptTemplate: "请将以下文本翻译成中文，直接输出翻译结果，无需解释：\n\n{text}",
		systemMessage:  "你是专业的翻译模型，专注于准确翻译文本。请直接提供翻译结果，不要添加解释或其他内容。",
		apiKeyEnv:      "OPENROUTER_API_KEY",
	},
	"ollama": {
		protocol:       protocolOpenAI,
		baseURL:        "http://localhost:11434/v1",
		model:          "qwen2.5",
		description:    "Local Ollama translation",
		promptTemplate: "请将以下文本翻译成中文，直接输出翻译结果，无需解释：\n\n{text}",
		keyless:        true,
	},
	"anthropic": {
		protocol:       protocolAnthropic,
		baseURL:        anthropicDefaultBaseURL,
		model:          "claude-3-5-haiku-latest",
		description:    "Anthropic Claude translation",
		promptTemplate: "请将以下文本翻译成中文，直接输出翻译结果，不要包含任何前缀、后缀或解释：\n\n{text}",
		systemMessage:  "你是一个专业翻译模型。你的任务是准确翻译文本，不添加任何解释或额外内容。",
		apiKeyEnv:      "ANTHROPIC_API_KEY",
	},
	"gemini": {
		protocol:       protocolGemini,
		baseURL:        geminiDefaultBaseURL,
		model:          "gemini-1.5-flash",
		description:    "Google Gemini translation",
		promptTemplate: "请将以下文本准确翻译成简体中文，直接返回翻译结果而不添加任何解释或引号：\n\n{text}",
		systemMessage:  "你是一个专业的翻译助手。请直接提供准确的翻译，不要添加任何额外说明或解释。",
		apiKeyEnv:      "GEMINI_API_KEY",
	},
	"alibaba": {
		protocol:       protocolDashScope,
		baseURL:        dashScopeDefaultBaseURL,
		model:          "qwen-max",
		description:    "Alibaba Tongyi Qianwen translation",
		promptTemplate: "请将以下文本准确翻译成简体中文，只需直接返回翻译结果：\n\n{text}",
		systemMessage:  "你是通义千问翻译助手，请准确翻译用户提供的文本，直接给出翻译结果，无需解释或附加内容。",
		apiKeyEnv:      "DASHSCOPE_API_KEY",
	},
}

// DefaultFactories returns the factory table for every built-in strategy type.
func DefaultFactories() map[string]Factory {
	out := make(map[string]Factory, len(providers)+1)
	for typ := range providers {
		out[typ] = providerFactory(typ)
	}
	out[TemplateType] = NewTemplateStrategyFromSettings
	return out
}

// KnownTypes lists the built-in strategy types in sorted order.
func KnownTypes() []string {
	types := make([]string, 0, len(providers)+1)
	for typ := range providers {
		types = append(types, typ)
	}
	types = append(types, TemplateType)
	sort.Strings(types)
	return types
}

func requiresAPIKey(typ string) bool {
	d, ok := providers[typ]
	return ok && !d.keyless
}

func providerFactory(typ string) Factory {
	return func(name string, settings map[string]any) (translator.Strategy, error) {
		cfg, err := ParseAdapterConfig(typ, name, settings)
		if err != nil {
			return nil, err
		}
		exec, err := newExecutor(cfg)
		if err != nil {
			return nil, apperrors.NewConfigError(fmt.Sprintf("strategy %s: %v", name, err))
		}
		return NewAdapter(cfg, exec), nil
	}
}

// ParseAdapterConfig merges settings over the provider defaults of typ.
// A key-requiring provider without an API key is a configuration error.
func ParseAdapterConfig(typ, name string, settings map[string]any) (AdapterConfig, error) {
	d, ok := providers[typ]
	if !ok {
		return AdapterConfig{}, apperrors.NewUnknownStrategyTypeError(typ)
	}
	if name == "" {
		name = typ
	}
	cfg := AdapterConfig{
		Name:           name,
		Type:           typ,
		Description:    d.description,
		Model:          d.model,
		BaseURL:        d.baseURL,
		PromptTemplate: d.promptTemplate,
		SystemMessage:  d.systemMessage,
	}
	if v, ok := stringValue(settings, "description"); ok {
		cfg.Description = v
	}
	if v, ok := stringValue(settings, "model"); ok {
		cfg.Model = v
	}
	if v, ok := stringValue(settings, "base_url"); ok {
		cfg.BaseURL = v
	} else if v, ok := stringValue(settings, "api_url"); ok {
		cfg.BaseURL = v
	}
	if v, ok := stringValue(settings, "proxy_url"); ok {
		cfg.ProxyURL = v
	}
	if v, ok := stringValue(settings, "prompt_template"); ok {
		cfg.PromptTemplate = v
	}
	if v, ok := stringValue(settings, "system_message"); ok {
		cfg.SystemMessage = v
	}
	if v, ok := floatValue(settings, "temperature"); ok {
		cfg.Temperature = &v
	}
	applyMaxTokens(&cfg, settings)
	if v, ok := durationValue(settings, "timeout"); ok {
		cfg.Timeout = v
	}
	if v, ok := intValue(settings, "max_retries"); ok {
		cfg.MaxRetries = v
	}
	if v, ok := intValue(settings, "max_text_length"); ok {
		cfg.MaxTextLength = v
	}
	if v, ok := intValue(settings, "max_batch_size"); ok {
		cfg.MaxBatchSize = v
	}
	cfg.SupportedLanguages = stringSlice(settings, "supported_languages")
	cfg.Headers = stringMap(settings, "headers")

	cfg.APIKey, _ = stringValue(settings, "api_key")
	if cfg.APIKey == "" && d.apiKeyEnv != "" {
		cfg.APIKey = os.Getenv(d.apiKeyEnv)
	}
	if cfg.APIKey == "" && !d.keyless {
		return AdapterConfig{}, apperrors.NewMissingAPIKeyError(name)
	}
	return cfg, nil
}

func newExecutor(cfg AdapterConfig) (ProviderExecutor, error) {
	ec := ExecutorConfig{
		Provider: cfg.Type,
		BaseURL:  cfg.BaseURL,
		APIKey:   cfg.APIKey,
		ProxyURL: cfg.ProxyURL,
		Timeout:  cfg.Timeout,
		Headers:  cfg.Headers,
	}
	if cfg.MaxRetries > 0 {
		ec.Retry = DefaultRetryConfig()
		ec.Retry.MaxAttempts = cfg.MaxRetries
	}
	switch providers[cfg.Type].protocol {
	case protocolAnthropic:
		return NewAnthropicExecutor(ec)
	case protocolGemini:
		return NewGeminiExecutor(ec)
	case protocolDashScope:
		return NewDashScopeExecutor(ec, cfg.Model)
	default:
		return NewOpenAIExecutor(ec)
	}
}

func stringValue(m map[string]any, key string) (string, bool) {
	s, ok := m[key].(string)
	s = strings.TrimSpace(s)
	return s, ok && s != ""
}

func floatValue(m map[string]any, key string) (float64, bool) {
	switch v := m[key].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	}
	return 0, false
}

func intValue(m map[string]any, key string) (int, bool) {
	switch v := m[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case uint64:
		return int(v), true
	case float64:
		return int(v), true
	}
	return 0, false
}

// durationValue accepts a Go duration string or a number of seconds.
func durationValue(m map[string]any, key string) (time.Duration, bool) {
	if s, ok := stringValue(m, key); ok {
		d, err := time.ParseDuration(s)
		return d, err == nil
	}
	if f, ok := floatValue(m, key); ok {
		return time.Duration(f * float64(time.Second)), true
	}
	return 0, false
}

func stringSlice(m map[string]any, key string) []string {
	switch v := m[key].(type) {
	case []string:
		return slices.Clone(v)
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func stringMap(m map[string]any, key string) map[string]string {
	switch v := m[key].(type) {
	case map[string]string:
		return maps.Clone(v)
	case map[string]any:
		out := make(map[string]string, len(v))
		for k, item := range v {
			if s, ok := item.(string); ok {
				out[k] = s
			}
		}
		return out
	}
	return nil
}
