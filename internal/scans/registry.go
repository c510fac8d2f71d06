package scans

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/wonny/screener/internal/contracts"
)

// ErrUnknownStrategy is returned when no scenario is registered under an id
var ErrUnknownStrategy = errors.New("unknown strategy")

// Factory builds a fresh scenario instance
type Factory func() contracts.Scenario

// Info describes a registered scenario
type Info struct {
	ID            string           `json:"id"`
	Name          string           `json:"name"`
	Description   string           `json:"description"`
	DefaultParams contracts.Params `json:"default_params"`
}

// Registry maps scenario ids to factories
// ⭐ SSOT: 시나리오 등록/조회는 여기서만
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a factory under the id of the scenario it builds
func (r *Registry) Register(factory Factory) {
	id := factory().ID()

	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[id] = factory
}

// Lookup returns a new scenario instance for id
func (r *Registry) Lookup(id string) (contracts.Scenario, error) {
	r.mu.RLock()
	factory, ok := r.factories[id]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, id)
	}
	return factory(), nil
}

// Has reports whether id is registered
func (r *Registry) Has(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[id]
	return ok
}

// IDs returns the registered ids in sorted order
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.factories))
	for id := range r.factories {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Infos describes every registered scenario, sorted by id
func (r *Registry) Infos() []Info {
	ids := r.IDs()
	infos := make([]Info, 0, len(ids))
	for _, id := range ids {
		s, err := r.Lookup(id)
		if err != nil {
			continue
		}
		infos = append(infos, Info{
			ID:            s.ID(),
			Name:          s.Name(),
			Description:   s.Description(),
			DefaultParams: s.DefaultParams(),
		})
	}
	return infos
}

var defaultRegistry = func() *Registry {
	r := NewRegistry()
	r.Register(NewGoldenCross)
	r.Register(NewMomentumBreakout)
	r.Register(NewClassicOversold)
	r.Register(NewMeanReversionBollinger)
	r.Register(NewStochasticOversold)
	r.Register(NewVolatilitySqueeze)
	r.Register(NewCompounder)
	r.Register(NewFloorConsolidationUniversal)
	r.Register(NewFloorConsolidationQuality)
	r.Register(NewVolumeBreakout)
	return r
}()

// fundamentalScenarios score fundamentals and match nothing without them
var fundamentalScenarios = map[string]bool{
	"lti_compounder":              true,
	"floor_consolidation_quality": true,
}

// NeedsFundamentals reports whether the scenario id requires fundamentals
func NeedsFundamentals(id string) bool {
	return fundamentalScenarios[id]
}

// Default returns the registry holding the built-in scenarios
func Default() *Registry {
	return defaultRegistry
}

// Lookup resolves id against the built-in scenarios
func Lookup(id string) (contracts.Scenario, error) {
	return defaultRegistry.Lookup(id)
}
