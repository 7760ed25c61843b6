package executor

import (
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"
	"github.com/tiktoken-go/tokenizer"
)

// Output budget bounds for max_tokens: auto.
const (
	autoMaxTokensFloor   = 256
	autoMaxTokensCeiling = 4096
	autoMaxTokensFactor  = 3
)

var tokenizerCache sync.Map // model -> tokenizer.Codec

// codecFor returns a cached BPE codec matching model's family.
func codecFor(model string) (tokenizer.Codec, error) {
	if cached, ok := tokenizerCache.Load(model); ok {
		return cached.(tokenizer.Codec), nil
	}

	var (
		enc tokenizer.Codec
		err error
	)
	sanitized := strings.ToLower(strings.TrimSpace(model))
	switch {
	case strings.HasPrefix(sanitized, "gpt-4o"), strings.HasPrefix(sanitized, "gpt-4.1"):
		enc, err = tokenizer.ForModel(tokenizer.GPT4o)
	case strings.HasPrefix(sanitized, "gpt-4"):
		enc, err = tokenizer.ForModel(tokenizer.GPT4)
	case strings.HasPrefix(sanitized, "gpt-3.5"):
		enc, err = tokenizer.ForModel(tokenizer.GPT35Turbo)
	default:
		enc, err = tokenizer.Get(tokenizer.O200kBase)
	}
	if err != nil {
		return nil, err
	}
	actual, _ := tokenizerCache.LoadOrStore(model, enc)
	return actual.(tokenizer.Codec), nil
}

// CountTokens counts the tokens of text for model. When no codec is
// available it falls back to one token per four bytes.
func CountTokens(model, text string) int {
	if text == "" {
		return 0
	}
	enc, err := codecFor(model)
	if err == nil {
		var ids []uint
		if ids, _, err = enc.Encode(text); err == nil {
			return len(ids)
		}
	}
	log.Debugf("executor: token count for %s estimated: %v", model, err)
	return max(1, len(text)/4)
}

// AutoMaxTokens sizes the completion budget from the source text. CJK output
// commonly needs more tokens than the source, hence the factor.
func AutoMaxTokens(model, text string) int {
	n := CountTokens(model, text)*autoMaxTokensFactor + 64
	return min(max(n, autoMaxTokensFloor), autoMaxTokensCeiling)
}

// applyMaxTokens reads max_tokens as a number or the string "auto".
func applyMaxTokens(cfg *AdapterConfig, settings map[string]any) {
	if v, ok := stringValue(settings, "max_tokens"); ok && strings.EqualFold(strings.TrimSpace(v), "auto") {
		cfg.AutoMaxTokens = true
		cfg.MaxTokens = 0
		return
	}
	if v, ok := intValue(settings, "max_tokens"); ok {
		cfg.MaxTokens = v
		cfg.AutoMaxTokens = false
	}
}
