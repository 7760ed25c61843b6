package loader

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/audio-translator/translator/internal/config"
	apperrors "github.com/audio-translator/translator/internal/errors"
	"github.com/audio-translator/translator/internal/runtime/executor"
	"github.com/audio-translator/translator/sdk/translator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingFactories wraps the template factory and records the settings
// each strategy was built with.
func recordingFactories(seen map[string]map[string]any) map[string]executor.Factory {
	return map[string]executor.Factory{
		executor.TemplateType: func(name string, settings map[string]any) (translator.Strategy, error) {
			seen[name] = settings
			return executor.NewTemplateStrategyFromSettings(name, settings)
		},
		"broken": func(name string, settings map[string]any) (translator.Strategy, error) {
			return nil, errors.New("boom")
		},
	}
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestParse_Formats(t *testing.T) {
	tests := []struct {
		name      string
		ext       string
		data      string
		wantNames []string
		wantErr   bool
	}{
		{
			name:      "yaml strategies key",
			ext:       ".yaml",
			data:      "strategies:\n  - name: a\n    type: template\n  - type: openai\n",
			wantNames: []string{"a", "openai"},
		},
		{
			name:      "yaml bare list",
			ext:       ".yml",
			data:      "- name: a\n  type: template\n",
			wantNames: []string{"a"},
		},
		{
			name:      "json manifest",
			ext:       ".json",
			data:      `{"name": "j", "type": "template", "settings": {"prefix": ">"}}`,
			wantNames: []string{"j"},
		},
		{
			name:      "toml array of tables",
			ext:       ".toml",
			data:      "[[strategies]]\nname = \"t1\"\ntype = \"template\"\n\n[[strategies]]\nname = \"t2\"\ntype = \"deepseek\"\n[strategies.settings]\napi_key = \"k\"\n",
			wantNames: []string{"t1", "t2"},
		},
		{
			name:      "toml manifest",
			ext:       ".toml",
			data:      "name = \"solo\"\ntype = \"template\"\n",
			wantNames: []string{"solo"},
		},
		{name: "empty document", ext: ".yaml", data: "  \n"},
		{name: "manifest without type", ext: ".yaml", data: "name: x\n", wantErr: true},
		{name: "scalar document", ext: ".yaml", data: "hello\n", wantErr: true},
		{name: "unknown extension", ext: ".ini", data: "a=b", wantErr: true},
		{name: "broken toml", ext: ".toml", data: "name = ", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			list, err := Parse([]byte(tt.data), tt.ext)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			var names []string
			for _, sc := range list {
				names = append(names, sc.EffectiveName())
			}
			assert.Equal(t, tt.wantNames, names)
		})
	}
}

func TestParse_TOMLSettings(t *testing.T) {
	list, err := Parse([]byte("[[strategies]]\ntype = \"zhipu\"\nenabled = false\n[strategies.settings]\ntemperature = 0.2\nmax_tokens = 512\n"), ".toml")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.False(t, list[0].IsEnabled())
	assert.Equal(t, 0.2, list[0].Settings["temperature"])
	assert.EqualValues(t, 512, list[0].Settings["max_tokens"])
}

func TestLoader_LoadAll(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("TRANSLATOR_TEST_PREFIX", "<<")
	file := writeFile(t, dir, "extra.yaml", "strategies:\n  - name: from-file\n    type: template\n    settings:\n      prefix: \"${TRANSLATOR_TEST_PREFIX}\"\n")
	plugins := filepath.Join(dir, "plugins")
	require.NoError(t, os.Mkdir(plugins, 0o755))
	writeFile(t, plugins, "b.toml", "name = \"plugin-b\"\ntype = \"template\"\n")
	writeFile(t, plugins, "a.json", `{"name": "plugin-a", "type": "template", "default": true}`)
	writeFile(t, plugins, "notes.txt", "ignored")

	off := false
	reg := translator.NewRegistry("")
	seen := make(map[string]map[string]any)
	l := New(reg, recordingFactories(seen),
		WithInline([]config.StrategyConfig{
			{Name: "inline", Type: executor.TemplateType},
			{Name: "disabled", Type: executor.TemplateType, Enabled: &off},
			{Name: "bad-type", Type: "nope"},
			{Name: "bad-build", Type: "broken"},
		}),
		WithFiles(file),
		WithPluginDir(plugins),
		WithDefaultProxy("http://proxy:8080"),
	)

	n, errs := l.LoadAll()
	assert.Equal(t, 4, n)
	require.Len(t, errs, 2)
	var appErr *apperrors.AppError
	require.ErrorAs(t, errs[0], &appErr)
	assert.Equal(t, apperrors.CodeUnknownStrategyType, appErr.Code)

	assert.ElementsMatch(t, []string{"inline", "from-file", "plugin-a", "plugin-b"}, reg.Names())
	assert.Equal(t, "plugin-a", reg.Default())
	assert.Equal(t, "<<", seen["from-file"]["prefix"])
	assert.Equal(t, "http://proxy:8080", seen["inline"]["proxy_url"])

	loaded := l.Loaded()
	require.Len(t, loaded, 4)
	assert.Equal(t, "from-file", loaded[0].Name)
	assert.Equal(t, file, loaded[0].Source)
	assert.Equal(t, SourceInline, loaded[1].Source)
}

func TestLoader_DuplicateNameKeepsFirst(t *testing.T) {
	reg := translator.NewRegistry("")
	l := New(reg, recordingFactories(map[string]map[string]any{}), WithInline([]config.StrategyConfig{
		{Name: "x", Type: executor.TemplateType},
		{Name: "x", Type: executor.TemplateType},
	}))
	n, errs := l.LoadAll()
	assert.Equal(t, 1, n)
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], translator.ErrStrategyExists)
}

func TestLoader_UnloadAndReload(t *testing.T) {
	dir := t.TempDir()
	file := writeFile(t, dir, "s.yaml", "- name: one\n  type: template\n")

	reg := translator.NewRegistry("one")
	external := executor.NewTemplateStrategy("external")
	require.NoError(t, reg.Register("external", external, nil))

	l := New(reg, nil, WithFiles(file))
	n, errs := l.LoadAll()
	require.Empty(t, errs)
	assert.Equal(t, 1, n)

	assert.False(t, l.Unload("external"), "strategies registered elsewhere are not owned by the loader")
	assert.True(t, l.Unload("one"))
	assert.False(t, l.Unload("one"))
	_, ok := reg.Get("one")
	assert.False(t, ok)

	writeFile(t, dir, "s.yaml", "- name: one\n  type: template\n- name: two\n  type: template\n")
	n, errs = l.ReloadAll()
	require.Empty(t, errs)
	assert.Equal(t, 2, n)
	assert.ElementsMatch(t, []string{"external", "one", "two"}, reg.Names())
	assert.Equal(t, "one", reg.Default())
}

func TestLoader_MissingSources(t *testing.T) {
	reg := translator.NewRegistry("")
	l := New(reg, nil,
		WithFiles(filepath.Join(t.TempDir(), "missing.yaml")),
		WithPluginDir(filepath.Join(t.TempDir(), "no-plugins")),
	)
	n, errs := l.LoadAll()
	assert.Equal(t, 0, n)
	assert.Len(t, errs, 1, "a missing strategy file is an error, a missing plugin dir is not")
}

func TestLoader_Types(t *testing.T) {
	l := New(translator.NewRegistry(""), nil)
	assert.Equal(t, executor.KnownTypes(), l.Types())
}

func TestLoader_Watch(t *testing.T) {
	dir := t.TempDir()
	file := writeFile(t, dir, "s.yaml", "- name: one\n  type: template\n")
	plugins := filepath.Join(dir, "plugins")
	require.NoError(t, os.Mkdir(plugins, 0o755))

	reg := translator.NewRegistry("")
	l := New(reg, nil, WithFiles(file), WithPluginDir(plugins))
	_, errs := l.LoadAll()
	require.Empty(t, errs)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Watch(ctx, 20*time.Millisecond) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	// Give the watcher time to register before changing files.
	time.Sleep(100 * time.Millisecond)
	writeFile(t, dir, "s.yaml", "- name: one\n  type: template\n- name: two\n  type: template\n")
	require.Eventually(t, func() bool {
		_, ok := reg.Get("two")
		return ok
	}, 5*time.Second, 20*time.Millisecond)

	writeFile(t, plugins, "plugin.json", `{"name": "three", "type": "template"}`)
	require.Eventually(t, func() bool {
		_, ok := reg.Get("three")
		return ok
	}, 5*time.Second, 20*time.Millisecond)
}

func TestLoader_WatchWithoutTargets(t *testing.T) {
	l := New(translator.NewRegistry(""), nil)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.NoError(t, l.Watch(ctx, 0))
}
