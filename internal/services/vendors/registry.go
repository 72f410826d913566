package vendors

import (
	"fmt"
	"sort"
	"sync"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/rateprobe/internal/common"
	"github.com/ternarybob/rateprobe/internal/interfaces"
)

// Registry maps vendor ids to adapters
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]interfaces.VendorAdapter
}

func NewRegistry() *Registry {
	return &Registry{
		adapters: make(map[string]interfaces.VendorAdapter),
	}
}

// Register adds an adapter. Ids must be unique.
func (r *Registry) Register(adapter interfaces.VendorAdapter) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := adapter.ID()
	if id == "" {
		return fmt.Errorf("vendor adapter id is required")
	}
	if _, exists := r.adapters[id]; exists {
		return fmt.Errorf("vendor %q already registered", id)
	}
	r.adapters[id] = adapter
	return nil
}

func (r *Registry) Get(id string) (interfaces.VendorAdapter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.adapters[id]
	return a, ok
}

// IDs returns the registered vendor ids in sorted order
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.adapters))
	for id := range r.adapters {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// NewRegistryFromConfig registers the built-in adapters and every scripted
// definition found in config.Dir, restricted to config.Enabled when set.
func NewRegistryFromConfig(config *common.VendorsConfig, logger arbor.ILogger) (*Registry, error) {
	enabled := make(map[string]bool, len(config.Enabled))
	for _, id := range config.Enabled {
		enabled[id] = true
	}
	allowed := func(id string) bool {
		return len(enabled) == 0 || enabled[id]
	}

	r := NewRegistry()

	if config.GoogleHotels && allowed(GoogleHotelsID) {
		if err := r.Register(NewGoogleHotelsAdapter()); err != nil {
			return nil, err
		}
	}

	defs, err := LoadDefinitions(config.Dir)
	if err != nil {
		return nil, err
	}
	for _, def := range defs {
		if !allowed(def.ID) {
			logger.Debug().Str("vendor", def.ID).Msg("Vendor definition not enabled, skipping")
			continue
		}
		if err := r.Register(NewScriptedAdapter(def, logger)); err != nil {
			return nil, err
		}
	}

	logger.Info().
		Strs("vendors", r.IDs()).
		Str("dir", config.Dir).
		Msg("Vendor adapters registered")
	return r, nil
}
