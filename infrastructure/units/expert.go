package units

import (
	"fmt"

	"github.com/samber/lo"

	"github.com/ahrav/go-sleepeval/internal/domain"
)

// ExpertModelID returns the pseudo-model identifier for an expert channel.
func ExpertModelID(expert string) string {
	return domain.ExpertModelPrefix + expert
}

// ExtractExperts decomposes a mixture-of-experts record into one record per
// expert channel. Each derived record predicts the arg-max of that expert's
// probability rows and carries the expert's gate weights as its attention
// when the source has them. Channel names must be unique.
func ExtractExperts(rec domain.ResultRecord) ([]domain.ResultRecord, error) {
	if rec.ExpertChannels == nil {
		return nil, fmt.Errorf("%w: expert_channels", domain.ErrMissingData)
	}
	if rec.YExperts == nil {
		return nil, fmt.Errorf("%w: y_experts", domain.ErrMissingData)
	}

	if dups := lo.FindDuplicates(rec.ExpertChannels); len(dups) > 0 {
		return nil, fmt.Errorf("%w: duplicate expert channels %v", domain.ErrInvalidInput, dups)
	}

	n := rec.Epochs()
	numExperts := len(rec.ExpertChannels)
	if len(rec.YExperts) != n {
		return nil, fmt.Errorf("%w: y_experts has %d epochs, want %d", domain.ErrInvalidInput, len(rec.YExperts), n)
	}
	for e, row := range rec.YExperts {
		if len(row) != numExperts {
			return nil, fmt.Errorf("%w: y_experts epoch %d has %d experts, want %d",
				domain.ErrInvalidInput, e, len(row), numExperts)
		}
	}
	if rec.HasExpertAttention() {
		if len(rec.ExpertAttention) != n {
			return nil, fmt.Errorf("%w: a has %d epochs, want %d", domain.ErrInvalidInput, len(rec.ExpertAttention), n)
		}
		for e, row := range rec.ExpertAttention {
			if len(row) != numExperts {
				return nil, fmt.Errorf("%w: a epoch %d has %d experts, want %d",
					domain.ErrInvalidInput, e, len(row), numExperts)
			}
		}
	}

	out := make([]domain.ResultRecord, 0, numExperts)
	for x, expert := range rec.ExpertChannels {
		pred := make([]int, n)
		for e := 0; e < n; e++ {
			pred[e] = domain.ArgMax(rec.YExperts[e][x])
		}

		derived, err := domain.NewDerivedRecord(rec.SubjectID, ExpertModelID(expert), rec.YTrue, pred)
		if err != nil {
			return nil, fmt.Errorf("expert %q: %w", expert, err)
		}
		if rec.HasExpertAttention() {
			attention := make([]float64, n)
			for e := 0; e < n; e++ {
				attention[e] = rec.ExpertAttention[e][x]
			}
			derived.Attention = attention
		}
		out = append(out, derived)
	}
	return out, nil
}
