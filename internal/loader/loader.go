// Package loader builds strategies from declarative lists and keeps the
// registry in sync with strategy files and a plugin directory.
package loader

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/audio-translator/translator/internal/config"
	apperrors "github.com/audio-translator/translator/internal/errors"
	"github.com/audio-translator/translator/internal/runtime/executor"
	"github.com/audio-translator/translator/sdk/translator"
	log "github.com/sirupsen/logrus"
)

// SourceInline tags strategies declared in the main configuration.
const SourceInline = "inline"

// LoadedStrategy describes a strategy the loader registered.
type LoadedStrategy struct {
	Name   string `json:"name"`
	Type   string `json:"type"`
	Source string `json:"source"`
}

// Option configures a Loader.
type Option func(*Loader)

// WithInline sets the strategies declared in the main configuration.
func WithInline(list []config.StrategyConfig) Option {
	return func(l *Loader) { l.inline = append([]config.StrategyConfig(nil), list...) }
}

// WithFiles sets the strategy list files.
func WithFiles(paths ...string) Option {
	return func(l *Loader) { l.files = append([]string(nil), paths...) }
}

// WithPluginDir sets the directory of strategy manifests.
func WithPluginDir(dir string) Option {
	return func(l *Loader) { l.pluginDir = dir }
}

// WithDefaultProxy sets the proxy used by strategies that configure none.
func WithDefaultProxy(proxyURL string) Option {
	return func(l *Loader) { l.proxyURL = strings.TrimSpace(proxyURL) }
}

// Loader registers strategies built through the factory table.
type Loader struct {
	mu        sync.Mutex
	registry  *translator.Registry
	factories map[string]executor.Factory

	inline    []config.StrategyConfig
	files     []string
	pluginDir string
	proxyURL  string

	loaded map[string]LoadedStrategy
}

// New returns a loader. A nil factory table uses executor.DefaultFactories.
func New(registry *translator.Registry, factories map[string]executor.Factory, opts ...Option) *Loader {
	if factories == nil {
		factories = executor.DefaultFactories()
	}
	l := &Loader{
		registry:  registry,
		factories: factories,
		loaded:    make(map[string]LoadedStrategy),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Types lists the strategy types the loader can build.
func (l *Loader) Types() []string {
	out := make([]string, 0, len(l.factories))
	for t := range l.factories {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Load builds one strategy and registers it. Disabled entries are skipped.
func (l *Loader) Load(sc config.StrategyConfig, source string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.loadLocked(sc, source)
}

func (l *Loader) loadLocked(sc config.StrategyConfig, source string) error {
	if !sc.IsEnabled() {
		log.Debugf("loader: strategy %s from %s is disabled", sc.EffectiveName(), source)
		return nil
	}
	typ := strings.ToLower(strings.TrimSpace(sc.Type))
	factory, ok := l.factories[typ]
	if !ok {
		return apperrors.NewUnknownStrategyTypeError(sc.Type)
	}
	name := sc.EffectiveName()
	settings := sc.ExpandedSettings()
	if l.proxyURL != "" {
		if _, set := settings["proxy_url"]; !set {
			settings["proxy_url"] = l.proxyURL
		}
	}

	s, err := factory(name, settings)
	if err != nil {
		return fmt.Errorf("strategy %s: %w", name, err)
	}
	if err = l.registry.Register(name, s, nil); err != nil {
		return fmt.Errorf("strategy %s: %w", name, err)
	}
	l.loaded[name] = LoadedStrategy{Name: name, Type: typ, Source: source}
	if sc.Default {
		if err = l.registry.SetDefault(name); err != nil {
			return err
		}
	}
	log.WithFields(log.Fields{"strategy": name, "type": typ, "source": source}).Info("loader: strategy registered")
	return nil
}

// LoadFile registers every strategy in a YAML, JSON or TOML file.
func (l *Loader) LoadFile(path string) (int, []error) {
	list, err := ParseFile(path)
	if err != nil {
		return 0, []error{err}
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.loadListLocked(list, path)
}

// LoadDir registers the strategies of every manifest in dir, in name order.
func (l *Loader) LoadDir(dir string) (int, []error) {
	files, err := manifestFiles(dir)
	if err != nil {
		return 0, []error{err}
	}
	total := 0
	var errs []error
	for _, f := range files {
		n, ferrs := l.LoadFile(f)
		total += n
		errs = append(errs, ferrs...)
	}
	return total, errs
}

func (l *Loader) loadListLocked(list []config.StrategyConfig, source string) (int, []error) {
	n := 0
	var errs []error
	for _, sc := range list {
		if err := l.loadLocked(sc, source); err != nil {
			log.Warnf("loader: %s: %v", source, err)
			errs = append(errs, err)
			continue
		}
		if sc.IsEnabled() {
			n++
		}
	}
	return n, errs
}

// LoadAll registers inline strategies, then strategy files, then plugins.
// Failures of single entries are collected and do not stop the others.
func (l *Loader) LoadAll() (int, []error) {
	l.mu.Lock()
	total, errs := l.loadListLocked(l.inline, SourceInline)
	files := slices.Clone(l.files)
	dir := l.pluginDir
	l.mu.Unlock()

	for _, f := range files {
		n, ferrs := l.LoadFile(f)
		total += n
		errs = append(errs, ferrs...)
	}
	if dir != "" {
		n, derrs := l.LoadDir(dir)
		total += n
		errs = append(errs, derrs...)
	}
	l.registry.EnsureDefault()
	return total, errs
}

// Unload removes a strategy the loader registered.
func (l *Loader) Unload(name string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.loaded[name]; !ok {
		return false
	}
	delete(l.loaded, name)
	return l.registry.Unregister(name)
}

// ReloadAll unregisters every loader-owned strategy and loads all sources again.
// Strategies registered by other code are left in place.
func (l *Loader) ReloadAll() (int, []error) {
	l.mu.Lock()
	for name := range l.loaded {
		l.registry.Unregister(name)
	}
	l.loaded = make(map[string]LoadedStrategy)
	l.mu.Unlock()

	n, errs := l.LoadAll()
	log.Infof("loader: reloaded %d strategies (%d errors)", n, len(errs))
	return n, errs
}

// Loaded lists the registered strategies in name order.
func (l *Loader) Loaded() []LoadedStrategy {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]LoadedStrategy, 0, len(l.loaded))
	for _, s := range l.loaded {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// watchTargets returns the directories to watch and the files of interest.
func (l *Loader) watchTargets() (dirs []string, files map[string]struct{}, pluginDir string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	files = make(map[string]struct{}, len(l.files))
	seen := make(map[string]struct{})
	add := func(d string) {
		if _, ok := seen[d]; ok {
			return
		}
		seen[d] = struct{}{}
		dirs = append(dirs, d)
	}
	for _, f := range l.files {
		abs := absPath(f)
		files[abs] = struct{}{}
		add(filepath.Dir(abs))
	}
	if l.pluginDir != "" {
		pluginDir = absPath(l.pluginDir)
		add(pluginDir)
	}
	return dirs, files, pluginDir
}

func manifestFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("loader: reading plugin dir: %w", err)
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || !Supported(e.Name()) {
			continue
		}
		out = append(out, filepath.Join(dir, e.Name()))
	}
	sort.Strings(out)
	return out, nil
}

func absPath(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return filepath.Clean(p)
}
