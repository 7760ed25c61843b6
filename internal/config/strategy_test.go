package config

import "testing"

func TestStrategyConfig_NameAndEnabled(t *testing.T) {
	off := false
	tests := []struct {
		name        string
		cfg         StrategyConfig
		wantName    string
		wantEnabled bool
	}{
		{name: "name wins", cfg: StrategyConfig{Name: "fast", Type: "openai"}, wantName: "fast", wantEnabled: true},
		{name: "type fallback", cfg: StrategyConfig{Type: " deepseek "}, wantName: "deepseek", wantEnabled: true},
		{name: "disabled", cfg: StrategyConfig{Type: "zhipu", Enabled: &off}, wantName: "zhipu"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cfg.EffectiveName(); got != tt.wantName {
				t.Errorf("EffectiveName() = %q, want %q", got, tt.wantName)
			}
			if got := tt.cfg.IsEnabled(); got != tt.wantEnabled {
				t.Errorf("IsEnabled() = %v, want %v", got, tt.wantEnabled)
			}
		})
	}
}

func TestExpandEnv(t *testing.T) {
	t.Setenv("TRANSLATOR_TEST_KEY", "sk-123")
	tests := []struct {
		in   string
		want string
	}{
		{"${TRANSLATOR_TEST_KEY}", "sk-123"},
		{"Bearer ${TRANSLATOR_TEST_KEY}!", "Bearer sk-123!"},
		{"${TRANSLATOR_TEST_UNSET_VAR}", ""},
		{"$TRANSLATOR_TEST_KEY", "$TRANSLATOR_TEST_KEY"},
		{"plain", "plain"},
	}
	for _, tt := range tests {
		if got := ExpandEnv(tt.in); got != tt.want {
			t.Errorf("ExpandEnv(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestStrategyConfig_ExpandedSettings(t *testing.T) {
	t.Setenv("TRANSLATOR_TEST_KEY", "sk-123")
	cfg := StrategyConfig{Type: "openai", Settings: map[string]any{
		"api_key":     "${TRANSLATOR_TEST_KEY}",
		"temperature": 0.3,
		"headers":     map[string]any{"X-Key": "${TRANSLATOR_TEST_KEY}"},
		"langs":       []any{"en", "${TRANSLATOR_TEST_KEY}"},
	}}
	got := cfg.ExpandedSettings()
	if got["api_key"] != "sk-123" || got["temperature"] != 0.3 {
		t.Errorf("settings = %v", got)
	}
	if h := got["headers"].(map[string]any); h["X-Key"] != "sk-123" {
		t.Errorf("headers = %v", h)
	}
	if l := got["langs"].([]any); l[1] != "sk-123" {
		t.Errorf("langs = %v", l)
	}
	if cfg.Settings["api_key"] != "${TRANSLATOR_TEST_KEY}" {
		t.Error("ExpandedSettings mutated the original settings")
	}
}
