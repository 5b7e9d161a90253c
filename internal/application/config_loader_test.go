package application

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-sleepeval/infrastructure/units"
	"github.com/ahrav/go-sleepeval/internal/domain"
	"github.com/ahrav/go-sleepeval/internal/ports"
)

func newTestLoader(t *testing.T) *ConfigLoader {
	t.Helper()
	loader, err := NewConfigLoader(NewDefaultUnitRegistry())
	require.NoError(t, err)
	return loader
}

func executableIDs(p *Pipeline) []string {
	var ids []string
	for _, e := range p.Executables() {
		ids = append(ids, e.ID())
	}
	return ids
}

func TestNewConfigLoader(t *testing.T) {
	_, err := NewConfigLoader(nil)
	assert.Error(t, err)

	loader := newTestLoader(t)
	assert.NotNil(t, loader.cache)
}

func TestConfigLoader_Default(t *testing.T) {
	loader := newTestLoader(t)

	plan, err := loader.Default(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{domain.ModelSoftVote, domain.ModelMajorityVote, domain.ModelUpperBound}, executableIDs(plan.Voters))
	assert.Len(t, plan.Hash, 64)

	adapter, ok := plan.Voters.Executables()[1].(*UnitAdapter)
	require.True(t, ok)
	assert.IsType(t, &units.MajorityVoteUnit{}, adapter.Unit())
}

func TestConfigLoader_LoadFromReader(t *testing.T) {
	loader := newTestLoader(t)

	plan, err := loader.LoadFromReader(context.Background(), strings.NewReader(`
classes: [wake, nrem, rem]
voters:
  - id: MAJ
    type: majority_vote
    parameters:
      tie_breaker: error
`))
	require.NoError(t, err)
	require.Equal(t, 1, plan.Voters.Len())

	// The class count is injected from the classes list.
	bundle := []domain.ResultRecord{
		{SubjectID: "s", ModelID: "a", YTrue: []int{2}, YPred: []int{2}},
		{SubjectID: "s", ModelID: "b", YTrue: []int{2}, YPred: []int{1}},
	}
	state := domain.With(domain.NewState(), domain.KeyBundle, bundle)
	_, err = plan.Voters.Execute(context.Background(), state)
	assert.ErrorIs(t, err, units.ErrTie)
}

func TestConfigLoader_ParameterOverridesClassCount(t *testing.T) {
	loader := newTestLoader(t)

	config := DefaultReportConfig()
	config.Voters = []VoterConfig{{ID: "MAJ", Type: VoterTypeMajorityVote}}
	require.NoError(t, config.Voters[0].Parameters.Encode(map[string]any{"num_classes": 1}))

	_, err := loader.Build(context.Background(), config)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create voter MAJ")
}

func TestConfigLoader_Errors(t *testing.T) {
	loader := newTestLoader(t)
	ctx := context.Background()

	t.Run("invalid config", func(t *testing.T) {
		_, err := loader.LoadFromReader(ctx, strings.NewReader("workers: -1"))
		assert.ErrorIs(t, err, domain.ErrInvalidConfiguration)
	})

	t.Run("unknown soft vote parameter", func(t *testing.T) {
		_, err := loader.LoadFromReader(ctx, strings.NewReader(`
voters:
  - id: S
    type: soft_vote
    parameters:
      min_models: 0
`))
		assert.Error(t, err)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := loader.LoadFromFile(ctx, filepath.Join(t.TempDir(), "nope.yaml"))
		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("canceled context", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := loader.Default(cctx)
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("type missing from registry", func(t *testing.T) {
		registry := &DefaultUnitRegistry{factories: map[string]ports.UnitFactory{}}
		l, err := NewConfigLoader(registry)
		require.NoError(t, err)
		_, err = l.Default(ctx)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unsupported unit type")
	})
}

func TestConfigLoader_LoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.yaml")
	require.NoError(t, os.WriteFile(path, []byte("store:\n  format: yaml\n"), 0o644))

	plan, err := newTestLoader(t).LoadFromFile(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "yaml", plan.Config.Store.Format)
	assert.Equal(t, 3, plan.Voters.Len())
}

func TestConfigLoader_Cache(t *testing.T) {
	loader := newTestLoader(t)
	ctx := context.Background()

	first, err := loader.Default(ctx)
	require.NoError(t, err)

	// Formatting differences do not change the hash.
	second, err := loader.LoadFromReader(ctx, strings.NewReader("version:   '1.0.0'\n"))
	require.NoError(t, err)
	assert.Same(t, first, second)

	other, err := loader.LoadFromReader(ctx, strings.NewReader("workers: 2\n"))
	require.NoError(t, err)
	assert.NotSame(t, first, other)
	assert.NotEqual(t, first.Hash, other.Hash)

	loader.ClearCache()
	third, err := loader.Default(ctx)
	require.NoError(t, err)
	assert.NotSame(t, first, third)
	assert.Equal(t, first.Hash, third.Hash)
}

func TestConfigLoader_ConcurrentBuild(t *testing.T) {
	loader := newTestLoader(t)
	ctx := context.Background()

	const n = 16
	plans := make([]*ReportPlan, n)
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			plan, err := loader.Default(ctx)
			assert.NoError(t, err)
			plans[i] = plan
		}()
	}
	wg.Wait()

	for _, p := range plans[1:] {
		assert.Same(t, plans[0], p)
	}
}
