package collector

import (
	"fmt"
	"sort"
	"sync"

	"github.com/hashicorp/go-multierror"

	"cycleagent/internal/settings"
)

// Registry holds the collectors of one agent, kept sorted by name so every
// cycle reports them in the same order.
type Registry struct {
	mu         sync.RWMutex
	collectors []Collector
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds c. Names must be unique.
func (r *Registry) Register(c Collector) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := c.Name()
	i := sort.Search(len(r.collectors), func(i int) bool { return r.collectors[i].Name() >= name })
	if i < len(r.collectors) && r.collectors[i].Name() == name {
		return fmt.Errorf("collector %s already registered", name)
	}

	r.collectors = append(r.collectors, nil)
	copy(r.collectors[i+1:], r.collectors[i:])
	r.collectors[i] = c
	return nil
}

// Get retrieves a collector by name.
func (r *Registry) Get(name string) (Collector, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, c := range r.collectors {
		if c.Name() == name {
			return c, true
		}
	}
	return nil, false
}

// All returns every registered collector.
func (r *Registry) All() []Collector {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Collector(nil), r.collectors...)
}

// Configure applies the settings entry of every collector that has one.
// Collectors without an entry keep their current configuration. Every
// collector is attempted; failures are returned together.
func (r *Registry) Configure(configs map[string]settings.CollectorConfig) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var merr *multierror.Error
	for _, c := range r.collectors {
		cfg, ok := configs[c.Name()]
		if !ok {
			continue
		}
		if err := c.Configure(cfg); err != nil {
			merr = multierror.Append(merr, fmt.Errorf("failed to configure collector %s: %w", c.Name(), err))
		}
	}
	return merr.ErrorOrNil()
}

// EnabledCollectors returns the enabled collectors.
func (r *Registry) EnabledCollectors() []Collector {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []Collector
	for _, c := range r.collectors {
		if c.Enabled() {
			result = append(result, c)
		}
	}
	return result
}

// DefaultRegistry creates a registry with all built-in collectors registered.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	for _, c := range []Collector{
		NewCPUCollector(),
		NewMemoryCollector(),
		NewDiskCollector(),
		NewUptimeCollector(),
		NewOSCollector(),
		NewNetworkCollector(),
		NewProcessCollector(),
	} {
		_ = r.Register(c)
	}
	return r
}
