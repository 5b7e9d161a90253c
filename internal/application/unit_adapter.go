package application

import (
	"context"
	"fmt"

	"github.com/ahrav/go-sleepeval/internal/domain"
	"github.com/ahrav/go-sleepeval/internal/ports"
)

// UnitAdapter wraps a ports.Unit to implement the ports.Executable
// interface so voter units can be placed in a Pipeline.
type UnitAdapter struct {
	// unit is the underlying voter unit that performs the actual work
	// when Execute is called.
	unit ports.Unit
	// id is the unique identifier for this adapter within the pipeline,
	// used for error reporting.
	id string
}

// NewUnitAdapter creates a new adapter for unit. id is usually the voter ID
// from configuration.
func NewUnitAdapter(unit ports.Unit, id string) *UnitAdapter {
	return &UnitAdapter{
		unit: unit,
		id:   id,
	}
}

// Execute delegates to the underlying unit's Execute method. A nil unit
// fails with domain.ErrInvalidState instead of panicking.
func (ua *UnitAdapter) Execute(ctx context.Context, state domain.State) (domain.State, error) {
	if ua.unit == nil {
		return state, fmt.Errorf("unit adapter %s: %w: no unit", ua.id, domain.ErrInvalidState)
	}
	return ua.unit.Execute(ctx, state)
}

// ID returns the unique string identifier for this adapter.
func (ua *UnitAdapter) ID() string { return ua.id }

// Unit returns the wrapped unit.
func (ua *UnitAdapter) Unit() ports.Unit { return ua.unit }
