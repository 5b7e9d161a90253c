package domain

import (
	"fmt"
	"slices"
)

// ValidateBundle checks that a voting bundle is non-empty and that every
// record shares the first record's ground truth and epoch count.
func ValidateBundle(bundle []ResultRecord) error {
	if len(bundle) == 0 {
		return fmt.Errorf("%w: empty voting bundle", ErrInvalidInput)
	}
	truth := bundle[0].YTrue
	if len(truth) == 0 {
		return fmt.Errorf("%w: bundle has no epochs", ErrInvalidInput)
	}
	for i, rec := range bundle {
		if len(rec.YPred) != len(truth) {
			return fmt.Errorf("%w: model %q has %d predictions, want %d",
				ErrInvalidInput, modelLabel(rec, i), len(rec.YPred), len(truth))
		}
		if i > 0 && !slices.Equal(rec.YTrue, truth) {
			return fmt.Errorf("%w: model %q ground truth differs from model %q",
				ErrInvalidInput, modelLabel(rec, i), modelLabel(bundle[0], 0))
		}
	}
	return nil
}

// BundlePredictions returns the hard predictions of every bundle member.
func BundlePredictions(bundle []ResultRecord) [][]int {
	preds := make([][]int, len(bundle))
	for i, rec := range bundle {
		preds[i] = rec.YPred
	}
	return preds
}

func modelLabel(rec ResultRecord, idx int) string {
	if rec.ModelID != "" {
		return rec.ModelID
	}
	return fmt.Sprintf("#%d", idx)
}
