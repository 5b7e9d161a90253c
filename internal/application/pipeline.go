package application

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/ahrav/go-sleepeval/internal/domain"
	"github.com/ahrav/go-sleepeval/internal/ports"
)

var _ ports.Pipeline = (*Pipeline)(nil)

// Pipeline runs its executables in insertion order, threading the State
// returned by one into the next. The voters operation runs the plan's
// Pipeline once per subject, so every voter sees the same bundle and
// ensemble records accumulate in configuration order.
//
// A Pipeline may be extended while other goroutines execute it; each
// Execute works on a snapshot of the executables taken when it starts.
type Pipeline struct {
	id string

	mu    sync.RWMutex
	steps []ports.Executable
	ids   map[string]struct{}
}

// NewPipeline returns an empty pipeline named id.
func NewPipeline(id string) *Pipeline {
	return &Pipeline{id: id, ids: make(map[string]struct{})}
}

// Execute runs every step against state. It stops at the first failing
// step, returning the state produced so far and an error naming the step.
// Cancellation is checked before each step.
func (p *Pipeline) Execute(ctx context.Context, state domain.State) (domain.State, error) {
	for _, step := range p.Executables() {
		if err := ctx.Err(); err != nil {
			return state, err
		}
		next, err := step.Execute(ctx, state)
		if err != nil {
			return state, fmt.Errorf("pipeline %s: execution failed at %s: %w", p.id, step.ID(), err)
		}
		state = next
	}
	return state, nil
}

// ID returns the pipeline name.
func (p *Pipeline) ID() string { return p.id }

// Add appends exec. Step IDs are voter IDs and must be unique.
func (p *Pipeline) Add(exec ports.Executable) error {
	if exec == nil {
		return fmt.Errorf("pipeline %s: cannot add nil executable", p.id)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	id := exec.ID()
	if _, dup := p.ids[id]; dup {
		return fmt.Errorf("pipeline %s: executable with ID %s already exists", p.id, id)
	}
	p.steps = append(p.steps, exec)
	p.ids[id] = struct{}{}
	return nil
}

// Executables returns a copy of the steps in execution order.
func (p *Pipeline) Executables() []ports.Executable {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return slices.Clone(p.steps)
}

// Len returns the number of steps.
func (p *Pipeline) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.steps)
}
