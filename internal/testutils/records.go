// Package testutils provides utilities for testing, including record
// fixtures and synthetic experiment generators. These components are
// intended for internal use within the project's test suites and tools and
// are not part of the public API.
package testutils

import (
	"github.com/ahrav/go-sleepeval/internal/domain"
)

// NewRecord builds a record and computes its accuracy from the labels.
// It panics on misaligned labels, which is a bug in the calling test.
func NewRecord(subject, model string, yTrue, yPred []int) domain.ResultRecord {
	rec, err := domain.NewDerivedRecord(subject, model, yTrue, yPred)
	if err != nil {
		panic(err)
	}
	return rec
}

// OneHot returns an N×numClasses probability matrix that puts all mass on
// each predicted label.
func OneHot(pred []int, numClasses int) [][]float64 {
	probs := make([][]float64, len(pred))
	for i, p := range pred {
		probs[i] = make([]float64, numClasses)
		probs[i][p] = 1
	}
	return probs
}

// WithProbs returns a copy of rec whose Probs are the one-hot encoding of
// its predictions.
func WithProbs(rec domain.ResultRecord, numClasses int) domain.ResultRecord {
	rec.Probs = OneHot(rec.YPred, numClasses)
	return rec
}

// ScenarioTruth is the ground truth of the three-model voting scenario.
var ScenarioTruth = []int{0, 1, 2, 0}

// ScenarioBundle returns the three-model, four-epoch voting scenario:
// every epoch is unanimous or 2-of-3 correct, so both the majority vote and
// the oracle reach 100%.
func ScenarioBundle() []domain.ResultRecord {
	return []domain.ResultRecord{
		WithProbs(NewRecord("s1", "m1", ScenarioTruth, []int{0, 1, 2, 1}), domain.NumClasses),
		WithProbs(NewRecord("s1", "m2", ScenarioTruth, []int{0, 2, 2, 0}), domain.NumClasses),
		WithProbs(NewRecord("s1", "m3", ScenarioTruth, []int{1, 1, 2, 0}), domain.NumClasses),
	}
}
