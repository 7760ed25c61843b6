package translator

import (
	"slices"
	"sync"

	log "github.com/sirupsen/logrus"
)

type registration struct {
	strategy Strategy
	meta     Metadata
}

// Registry maps strategy names to live strategy instances and their metadata.
type Registry struct {
	mu          sync.RWMutex
	strategies  map[string]*registration
	order       []string
	defaultName string
}

// NewRegistry creates an empty registry. defaultName may name a strategy that
// is registered later.
func NewRegistry(defaultName string) *Registry {
	return &Registry{
		strategies:  make(map[string]*registration),
		defaultName: defaultName,
	}
}

// Register adds a strategy under name. An existing name is never overwritten.
// When meta is nil the metadata is snapshotted from the strategy.
func (r *Registry) Register(name string, s Strategy, meta *Metadata) error {
	if name == "" || s == nil {
		return ErrInvalidStrategy
	}

	var m Metadata
	if meta != nil {
		m = *meta
	} else {
		m = MetadataOf(s)
	}
	m.Name = name

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.strategies[name]; exists {
		log.Warnf("translator: strategy %s already registered, skipping", name)
		return ErrStrategyExists
	}
	r.strategies[name] = &registration{strategy: s, meta: m}
	r.order = append(r.order, name)
	if r.defaultName == "" {
		r.defaultName = name
	}
	log.Debugf("translator: registered strategy %s (%s)", name, m.ProviderType)
	return nil
}

// Unregister removes a strategy. The default name is kept so that a later
// registration under the same name becomes the default again.
func (r *Registry) Unregister(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.strategies[name]; !exists {
		return false
	}
	delete(r.strategies, name)
	r.order = slices.DeleteFunc(r.order, func(n string) bool { return n == name })
	log.Debugf("translator: unregistered strategy %s", name)
	return true
}

// Get returns the named strategy; an empty name resolves to the default.
func (r *Registry) Get(name string) (Strategy, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if name == "" {
		name = r.defaultName
	}
	reg, ok := r.strategies[name]
	if !ok {
		return nil, false
	}
	return reg.strategy, true
}

// Resolve is Get with a typed error for the missing case.
func (r *Registry) Resolve(name string) (Strategy, string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	resolved := name
	if resolved == "" {
		resolved = r.defaultName
	}
	reg, ok := r.strategies[resolved]
	if !ok {
		return nil, resolved, &StrategyNotFoundError{Name: resolved}
	}
	return reg.strategy, resolved, nil
}

// SetDefault marks a registered strategy as the default.
func (r *Registry) SetDefault(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.strategies[name]; !ok {
		return &StrategyNotFoundError{Name: name}
	}
	r.defaultName = name
	return nil
}

// Default returns the default strategy name, which may be unregistered.
func (r *Registry) Default() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.defaultName
}

// EnsureDefault points the default at the first registered strategy when the
// configured default is not registered. It returns the effective default.
func (r *Registry) EnsureDefault() string {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.strategies[r.defaultName]; ok {
		return r.defaultName
	}
	if len(r.order) > 0 {
		log.Infof("translator: default strategy %q unavailable, using %s", r.defaultName, r.order[0])
		r.defaultName = r.order[0]
	}
	return r.defaultName
}

// Names lists registered strategies in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.order)
}

// Len returns the number of registered strategies.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.strategies)
}

// Metadata returns the registration snapshot for name.
func (r *Registry) Metadata(name string) (Metadata, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.strategies[name]
	if !ok {
		return Metadata{}, false
	}
	return reg.meta, true
}

// AllMetadata returns every registration snapshot keyed by name.
func (r *Registry) AllMetadata() map[string]Metadata {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]Metadata, len(r.strategies))
	for name, reg := range r.strategies {
		out[name] = reg.meta
	}
	return out
}

// ByProvider lists the names of strategies whose provider type matches.
func (r *Registry) ByProvider(providerType string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []string
	for _, name := range r.order {
		if r.strategies[name].meta.ProviderType == providerType {
			out = append(out, name)
		}
	}
	return out
}
