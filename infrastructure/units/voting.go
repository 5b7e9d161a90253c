package units

import (
	"fmt"
	"math/rand"

	"github.com/ahrav/go-sleepeval/internal/domain"
)

// SoftVote averages the bundle's probability matrices element-wise and
// returns the arg-max class per epoch. Every record must carry Probs with
// identical dimensions.
func SoftVote(bundle []domain.ResultRecord) ([]int, error) {
	if err := domain.ValidateBundle(bundle); err != nil {
		return nil, err
	}
	n := bundle[0].Epochs()

	var numClasses int
	for i, rec := range bundle {
		if !rec.HasProbs() {
			return nil, fmt.Errorf("%w: model %q has no probabilities", domain.ErrMissingData, rec.ModelID)
		}
		if len(rec.Probs) != n {
			return nil, fmt.Errorf("%w: model %q has %d probability rows, want %d",
				domain.ErrInvalidInput, rec.ModelID, len(rec.Probs), n)
		}
		if i == 0 && n > 0 {
			numClasses = len(rec.Probs[0])
		}
		for e, row := range rec.Probs {
			if len(row) != numClasses {
				return nil, fmt.Errorf("%w: model %q epoch %d has %d classes, want %d",
					domain.ErrInvalidInput, rec.ModelID, e, len(row), numClasses)
			}
		}
	}
	if numClasses == 0 {
		return nil, fmt.Errorf("%w: probability rows are empty", domain.ErrInvalidInput)
	}

	m := float64(len(bundle))
	pred := make([]int, n)
	mean := make([]float64, numClasses)
	for e := 0; e < n; e++ {
		for c := range mean {
			mean[c] = 0
		}
		for _, rec := range bundle {
			for c, p := range rec.Probs[e] {
				mean[c] += p
			}
		}
		for c := range mean {
			mean[c] /= m
		}
		pred[e] = domain.ArgMax(mean)
	}
	return pred, nil
}

// MajorityVote returns, per epoch, the class predicted by the most models.
// Ties are resolved by tb; TieFirst picks the lowest class index.
func MajorityVote(preds [][]int, numClasses int, tb TieBreaker) ([]int, error) {
	if len(preds) == 0 {
		return nil, fmt.Errorf("%w: no predictions to vote on", domain.ErrInvalidInput)
	}
	if numClasses < 1 {
		return nil, fmt.Errorf("%w: numClasses must be positive, got %d", domain.ErrInvalidInput, numClasses)
	}
	n := len(preds[0])
	for i, p := range preds {
		if len(p) != n {
			return nil, fmt.Errorf("%w: member %d has %d predictions, want %d", domain.ErrInvalidInput, i, len(p), n)
		}
		if err := domain.CheckLabels(p, numClasses); err != nil {
			return nil, fmt.Errorf("member %d: %w", i, err)
		}
	}

	out := make([]int, n)
	counts := make([]int, numClasses)
	var tied []int
	for e := 0; e < n; e++ {
		for c := range counts {
			counts[c] = 0
		}
		for _, p := range preds {
			counts[p[e]]++
		}

		maxCount := 0
		for _, cnt := range counts {
			maxCount = max(maxCount, cnt)
		}
		// Ascending class order, so tied[0] is the lowest index.
		tied = tied[:0]
		for c, cnt := range counts {
			if cnt == maxCount {
				tied = append(tied, c)
			}
		}

		best := tied[0]
		if len(tied) > 1 {
			switch tb {
			case TieError:
				return nil, fmt.Errorf("%w: epoch %d classes %v", ErrTie, e, tied)
			case TieRandom:
				best = tied[rand.Intn(len(tied))] // #nosec G404
			default:
				best = tied[0]
			}
		}
		out[e] = best
	}
	return out, nil
}

// UpperBound builds the oracle prediction: it starts from base (usually the
// majority vote) and takes the true label at every epoch where at least one
// member predicted it. None of the inputs are modified.
func UpperBound(base, yTrue []int, preds [][]int) ([]int, error) {
	if len(base) != len(yTrue) {
		return nil, fmt.Errorf("%w: base has %d epochs, y_true has %d", domain.ErrInvalidInput, len(base), len(yTrue))
	}
	for i, p := range preds {
		if len(p) != len(yTrue) {
			return nil, fmt.Errorf("%w: member %d has %d predictions, want %d",
				domain.ErrInvalidInput, i, len(p), len(yTrue))
		}
	}

	out := make([]int, len(base))
	for e := range base {
		out[e] = base[e]
		for _, p := range preds {
			if p[e] == yTrue[e] {
				out[e] = yTrue[e]
				break
			}
		}
	}
	return out, nil
}
