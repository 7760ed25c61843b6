package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/audio-translator/translator/internal/config"
	"github.com/audio-translator/translator/sdk/translator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const engineConfig = `
default-strategy: dev
strategies:
  - name: dev
    type: template
    settings:
      prefix: "["
      suffix: "]"
  - name: slow
    type: template
    enabled: false
  - name: bogus
    type: not-a-provider
cache:
  max-size: 50
  backend:
    type: memory
    snapshot-file: cache.gob
categories:
  items:
    - id: MUSCInst
      name: MUSIC
      subcategory: INSTRUMENT
      synonyms: [guitar, piano]
`

func writeEngineConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(engineConfig), 0o600))
	return path
}

func buildTestEngine(t *testing.T) (*Engine, string) {
	t.Helper()
	path := writeEngineConfig(t)
	cfg, err := config.LoadConfig(path)
	require.NoError(t, err)
	e, err := BuildEngine(t.Context(), cfg, path)
	require.NoError(t, err)
	return e, path
}

func TestBuildEngine(t *testing.T) {
	e, _ := buildTestEngine(t)
	defer func() { require.NoError(t, e.Close()) }()

	reg := e.Manager.Registry()
	assert.Equal(t, []string{"dev"}, reg.Names())
	assert.Equal(t, "dev", reg.Default())
	assert.Equal(t, "memory", e.Manager.Cache().Backend())

	got, err := e.Manager.Translate(t.Context(), "hello", "", translator.Context{translator.KeyTargetLanguage: "en"})
	require.NoError(t, err)
	assert.Equal(t, "[This is a custom translation: hello]", got)
}

func TestEngine_SnapshotSurvivesRestart(t *testing.T) {
	e, path := buildTestEngine(t)
	_, err := e.Manager.Translate(t.Context(), "hello", "", nil)
	require.NoError(t, err)
	require.NoError(t, e.Close())

	snapshot := filepath.Join(filepath.Dir(path), "cache.gob")
	require.FileExists(t, snapshot)

	cfg, err := config.LoadConfig(path)
	require.NoError(t, err)
	e2, err := BuildEngine(t.Context(), cfg, path)
	require.NoError(t, err)
	defer func() { _ = e2.Close() }()

	_, ok := e2.Manager.Cache().Get(t.Context(), "hello", nil)
	assert.True(t, ok, "entry restored from snapshot")
}

func TestEngine_DefaultStrategyIsPersisted(t *testing.T) {
	path := writeEngineConfig(t)
	cfg, err := config.LoadConfig(path)
	require.NoError(t, err)
	cfg.Strategies = append(cfg.Strategies, config.StrategyConfig{Name: "alt", Type: "template"})
	e, err := BuildEngine(t.Context(), cfg, path)
	require.NoError(t, err)
	defer func() { _ = e.Close() }()

	require.NoError(t, e.Manager.SetDefaultStrategy("alt"))

	reloaded, err := config.LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "alt", reloaded.DefaultStrategy)
	assert.Len(t, reloaded.Strategies, 3, "other settings are kept")
}

func TestBuildEngine_MissingCategoryFile(t *testing.T) {
	cfg := config.Default()
	cfg.Categories.File = filepath.Join(t.TempDir(), "missing.csv")
	_, err := BuildEngine(t.Context(), cfg, "")
	assert.Error(t, err)
}

func TestReadLines(t *testing.T) {
	lines, err := ReadLines(strings.NewReader("one\n\n  two  \r\nthree"))
	require.NoError(t, err)
	assert.Equal(t, []string{"one", "two", "three"}, lines)
}

func TestTranslateTexts(t *testing.T) {
	e, _ := buildTestEngine(t)
	defer func() { _ = e.Close() }()

	var out bytes.Buffer
	stats, err := TranslateTexts(t.Context(), e.Manager, []string{"a", "b", "a"},
		TranslateOptions{Workers: 2, Context: translator.Context{translator.KeyTargetLanguage: "en"}}, &out)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 0, stats.Fallbacks)
	assert.Contains(t, out.String(), "a => [This is a custom translation: a]")
	assert.NotContains(t, out.String(), "\033[", "colors are off unless requested")

	out.Reset()
	_, err = TranslateTexts(t.Context(), e.Manager, []string{"x"}, TranslateOptions{JSON: true}, &out)
	require.NoError(t, err)
	var doc TranslationOutput
	require.NoError(t, json.Unmarshal(out.Bytes(), &doc))
	require.Len(t, doc.Results, 1)
	assert.Equal(t, "x", doc.Results[0].Source)

	_, err = TranslateTexts(t.Context(), e.Manager, []string{"x"}, TranslateOptions{Strategy: "nope"}, &out)
	assert.ErrorIs(t, err, translator.ErrStrategyNotFound)
}

func TestTranslateFiles(t *testing.T) {
	e, _ := buildTestEngine(t)
	defer func() { _ = e.Close() }()

	var out bytes.Buffer
	err := TranslateFiles(t.Context(), e.Manager, []string{"/audio/guitar solo.wav"},
		TranslateOptions{JSON: true, Context: translator.Context{translator.KeyTargetLanguage: "en"}}, &out)
	require.NoError(t, err)

	var results []translator.FileResult
	require.NoError(t, json.Unmarshal(out.Bytes(), &results))
	require.Len(t, results, 1)
	assert.Equal(t, ".wav", results[0].Extension)
	assert.True(t, strings.HasSuffix(results[0].FinalName, ".wav"), results[0].FinalName)
}

func TestListAndTestStrategies(t *testing.T) {
	e, _ := buildTestEngine(t)
	defer func() { _ = e.Close() }()

	var out bytes.Buffer
	require.NoError(t, ListStrategies(e.Manager, false, false, &out))
	assert.Contains(t, out.String(), "* dev (custom)")

	out.Reset()
	failed, err := TestStrategies(t.Context(), e.Manager, nil, true, false, &out)
	require.NoError(t, err)
	assert.Equal(t, 0, failed)
	var rows []StrategyTestResult
	require.NoError(t, json.Unmarshal(out.Bytes(), &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, "dev", rows[0].Name)
	assert.Equal(t, translator.StatusSuccess, rows[0].Status)

	_, err = TestStrategies(t.Context(), e.Manager, []string{"nope"}, false, false, &out)
	assert.ErrorIs(t, err, translator.ErrStrategyNotFound)
}

func TestBootstrap(t *testing.T) {
	dir := t.TempDir()
	missing := filepath.Join(dir, "config.yaml")

	cfg, err := Bootstrap(missing, false, "error")
	require.NoError(t, err)
	assert.Equal(t, config.DefaultPort, cfg.Port)

	_, err = Bootstrap(missing, true, "")
	assert.Error(t, err)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("port: 99999\n"), 0o600))
	_, err = Bootstrap(bad, true, "")
	assert.Error(t, err)
}

func TestResolveConfigPath(t *testing.T) {
	p, explicit := ResolveConfigPath("/etc/translator.yaml")
	assert.Equal(t, "/etc/translator.yaml", p)
	assert.True(t, explicit)

	p, explicit = ResolveConfigPath("")
	assert.Equal(t, DefaultConfigFile, filepath.Base(p))
	assert.False(t, explicit)
}

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())
	return port
}

func TestRunService(t *testing.T) {
	path := writeEngineConfig(t)
	cfg, err := config.LoadConfig(path)
	require.NoError(t, err)
	cfg.Host = "127.0.0.1"
	cfg.Port = freePort(t)

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)
	go func() { done <- RunService(ctx, cfg, path) }()

	url := "http://127.0.0.1:" + strconv.Itoa(cfg.Port) + "/healthz"
	require.Eventually(t, func() bool {
		resp, errGet := http.Get(url)
		if errGet != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 50*time.Millisecond)

	cancel()
	select {
	case err = <-done:
		assert.NoError(t, err)
	case <-time.After(ShutdownTimeout):
		t.Fatal("service did not stop")
	}
}
