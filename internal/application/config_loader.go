package application

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sync/singleflight"
	"gopkg.in/yaml.v3"

	"github.com/ahrav/go-sleepeval/internal/ports"
)

// ReportPlan is a validated ReportConfig together with the voter pipeline
// compiled from it.
// WARNING: Plans returned by ConfigLoader are cached and shared. Callers
// MUST NOT add executables to Voters.
type ReportPlan struct {
	// Config is the validated configuration.
	Config ReportConfig
	// Voters runs every configured voter in order over one subject bundle.
	Voters *Pipeline
	// Hash is the SHA256 of the normalized configuration.
	Hash string
}

// ConfigLoader turns report configurations into ReportPlans, creating the
// voter units through a unit registry. Compiled plans are cached by the
// hash of their normalized configuration.
type ConfigLoader struct {
	// unitRegistry provides factory methods for creating voter units.
	unitRegistry ports.UnitRegistry
	// cache stores compiled plans indexed by configuration hash.
	cache map[string]*ReportPlan
	// cacheMu provides thread-safe access to the cache map.
	cacheMu sync.RWMutex
	// sf prevents duplicate compilation when several goroutines request
	// the same plan simultaneously.
	sf singleflight.Group
}

// NewConfigLoader creates a loader that builds voters with unitRegistry.
func NewConfigLoader(unitRegistry ports.UnitRegistry) (*ConfigLoader, error) {
	if unitRegistry == nil {
		return nil, fmt.Errorf("unit registry cannot be nil")
	}
	return &ConfigLoader{
		unitRegistry: unitRegistry,
		cache:        make(map[string]*ReportPlan),
	}, nil
}

// LoadFromFile reads, parses and compiles the configuration at path.
func (cl *ConfigLoader) LoadFromFile(ctx context.Context, path string) (*ReportPlan, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return cl.load(ctx, data)
}

// LoadFromReader reads all of r and compiles the configuration it holds.
func (cl *ConfigLoader) LoadFromReader(ctx context.Context, r io.Reader) (*ReportPlan, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read data: %w", err)
	}
	return cl.load(ctx, data)
}

// Default compiles DefaultReportConfig.
func (cl *ConfigLoader) Default(ctx context.Context) (*ReportPlan, error) {
	return cl.Build(ctx, DefaultReportConfig())
}

func (cl *ConfigLoader) load(ctx context.Context, data []byte) (*ReportPlan, error) {
	config, err := ParseReportConfig(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cl.Build(ctx, config)
}

// Build validates config and compiles its voter pipeline, returning a
// cached plan when an identical configuration was built before.
func (cl *ConfigLoader) Build(ctx context.Context, config ReportConfig) (*ReportPlan, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := ValidateReportConfig(config); err != nil {
		return nil, err
	}

	hash, err := calculateConfigHash(config)
	if err != nil {
		return nil, err
	}

	v, err, _ := cl.sf.Do(hash, func() (any, error) {
		if plan, ok := cl.getCachedPlan(hash); ok {
			return plan, nil
		}

		voters, err := cl.buildVoters(config)
		if err != nil {
			return nil, fmt.Errorf("failed to build voters: %w", err)
		}

		plan := &ReportPlan{Config: config, Voters: voters, Hash: hash}
		cl.cachePlan(hash, plan)
		return plan, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*ReportPlan), nil
}

// buildVoters instantiates every voter through the registry and chains
// them into a pipeline in configuration order.
func (cl *ConfigLoader) buildVoters(config ReportConfig) (*Pipeline, error) {
	pipeline := NewPipeline("voters")
	for _, vc := range config.Voters {
		unit, err := cl.createUnit(vc, config.NumClasses())
		if err != nil {
			return nil, fmt.Errorf("failed to create voter %s: %w", vc.ID, err)
		}
		if err := unit.Validate(); err != nil {
			return nil, fmt.Errorf("voter %s validation failed: %w", vc.ID, err)
		}
		if err := pipeline.Add(NewUnitAdapter(unit, vc.ID)); err != nil {
			return nil, err
		}
	}
	return pipeline, nil
}

// createUnit decodes the voter parameters and injects the configured
// class count unless the parameters set their own.
func (cl *ConfigLoader) createUnit(vc VoterConfig, numClasses int) (ports.Unit, error) {
	params := map[string]any{}
	if !vc.Parameters.IsZero() {
		if err := vc.Parameters.Decode(&params); err != nil {
			return nil, fmt.Errorf("failed to decode parameters: %w", err)
		}
		if params == nil {
			params = map[string]any{}
		}
	}

	unitConfig := map[string]any{"num_classes": numClasses}
	if vc.Type == VoterTypeSoftVote {
		delete(unitConfig, "num_classes")
	}
	for k, v := range params {
		unitConfig[k] = v
	}

	return cl.unitRegistry.CreateUnit(vc.Type, vc.ID, unitConfig)
}

// calculateConfigHash computes the SHA256 hash of the YAML encoding of
// config, so semantically identical configurations share a hash
// regardless of their source formatting.
func calculateConfigHash(config ReportConfig) (string, error) {
	var buf bytes.Buffer
	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)

	if err := encoder.Encode(config); err != nil {
		return "", fmt.Errorf("failed to encode config for hashing: %w", err)
	}
	if err := encoder.Close(); err != nil {
		return "", fmt.Errorf("failed to encode config for hashing: %w", err)
	}

	hash := sha256.Sum256(buf.Bytes())
	return hex.EncodeToString(hash[:]), nil
}

func (cl *ConfigLoader) getCachedPlan(hash string) (*ReportPlan, bool) {
	cl.cacheMu.RLock()
	defer cl.cacheMu.RUnlock()

	plan, ok := cl.cache[hash]
	return plan, ok
}

func (cl *ConfigLoader) cachePlan(hash string, plan *ReportPlan) {
	cl.cacheMu.Lock()
	defer cl.cacheMu.Unlock()

	cl.cache[hash] = plan
}

// ClearCache removes all cached plans, forcing subsequent loads to
// recompile.
func (cl *ConfigLoader) ClearCache() {
	cl.cacheMu.Lock()
	defer cl.cacheMu.Unlock()

	cl.cache = make(map[string]*ReportPlan)
}
