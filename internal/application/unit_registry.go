package application

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/samber/lo"

	"github.com/ahrav/go-sleepeval/infrastructure/units"
	"github.com/ahrav/go-sleepeval/internal/ports"
)

var _ ports.UnitRegistry = (*DefaultUnitRegistry)(nil)

// DefaultUnitRegistry maps voter types from the report configuration to
// the factories that build them. Additional types can be registered at
// runtime; it is safe for concurrent use.
type DefaultUnitRegistry struct {
	mu        sync.RWMutex
	factories map[string]ports.UnitFactory
}

// NewDefaultUnitRegistry returns a registry with the soft_vote,
// majority_vote and upper_bound types.
func NewDefaultUnitRegistry() *DefaultUnitRegistry {
	return &DefaultUnitRegistry{
		factories: map[string]ports.UnitFactory{
			VoterTypeSoftVote:     units.NewSoftVoteFromConfig,
			VoterTypeMajorityVote: units.NewMajorityVoteFromConfig,
			VoterTypeUpperBound:   units.NewUpperBoundFromConfig,
		},
	}
}

// CreateUnit builds a voter of unitType named id. A nil config selects the
// factory's defaults.
func (r *DefaultUnitRegistry) CreateUnit(unitType, id string, config map[string]any) (ports.Unit, error) {
	r.mu.RLock()
	factory, ok := r.factories[unitType]
	r.mu.RUnlock()

	switch {
	case !ok:
		return nil, fmt.Errorf("unsupported unit type: %s", unitType)
	case id == "":
		return nil, errors.New("unit ID cannot be empty")
	}

	unit, err := factory(id, lo.Ternary(config == nil, map[string]any{}, config))
	if err != nil {
		return nil, fmt.Errorf("failed to create unit %s of type %s: %w", id, unitType, err)
	}
	return unit, nil
}

// RegisterUnitFactory adds or replaces the factory for unitType.
func (r *DefaultUnitRegistry) RegisterUnitFactory(unitType string, factory ports.UnitFactory) error {
	if unitType == "" {
		return errors.New("unit type cannot be empty")
	}
	if factory == nil {
		return fmt.Errorf("factory for %s cannot be nil", unitType)
	}

	r.mu.Lock()
	r.factories[unitType] = factory
	r.mu.Unlock()
	return nil
}

// GetSupportedTypes returns the registered types in ascending order.
func (r *DefaultUnitRegistry) GetSupportedTypes() []string {
	r.mu.RLock()
	types := lo.Keys(r.factories)
	r.mu.RUnlock()

	slices.Sort(types)
	return types
}
