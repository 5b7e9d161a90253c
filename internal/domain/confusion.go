package domain

import (
	"fmt"
	"math"
)

// normEpsilon keeps row normalization finite for classes with no samples.
const normEpsilon = 1e-7

// ConfusionMatrix holds C×C counts where cm[i][j] is the number of epochs
// with true class i predicted as class j.
type ConfusionMatrix [][]int

// ClassMetrics are the per-class scores derived from a ConfusionMatrix.
type ClassMetrics struct {
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
	Support   int     `json:"support"`
}

// PerClassMetrics holds ClassMetrics indexed by class.
type PerClassMetrics []ClassMetrics

// ComputeConfusion counts (true, predicted) pairs for labels in
// [0, numClasses).
func ComputeConfusion(yTrue, yPred []int, numClasses int) (ConfusionMatrix, error) {
	if numClasses < 1 {
		return nil, fmt.Errorf("%w: numClasses must be positive, got %d", ErrInvalidInput, numClasses)
	}
	if len(yTrue) != len(yPred) {
		return nil, fmt.Errorf("%w: y_true has %d epochs, y_pred has %d", ErrInvalidInput, len(yTrue), len(yPred))
	}
	if err := CheckLabels(yTrue, numClasses); err != nil {
		return nil, fmt.Errorf("y_true: %w", err)
	}
	if err := CheckLabels(yPred, numClasses); err != nil {
		return nil, fmt.Errorf("y_pred: %w", err)
	}

	cm := make(ConfusionMatrix, numClasses)
	for i := range cm {
		cm[i] = make([]int, numClasses)
	}
	for k := range yTrue {
		cm[yTrue[k]][yPred[k]]++
	}
	return cm, nil
}

// ComputePerClass returns precision, recall, F1 (beta=1) and support for
// every class. Ratios with a zero denominator are reported as 0.
func ComputePerClass(yTrue, yPred []int, numClasses int) (PerClassMetrics, error) {
	cm, err := ComputeConfusion(yTrue, yPred, numClasses)
	if err != nil {
		return nil, err
	}
	return cm.PerClass(), nil
}

// NumClasses returns the matrix dimension.
func (cm ConfusionMatrix) NumClasses() int { return len(cm) }

// Total returns the sum of all entries, i.e. the number of epochs.
func (cm ConfusionMatrix) Total() int {
	total := 0
	for i := range cm {
		total += cm.RowSum(i)
	}
	return total
}

// RowSum returns the number of epochs whose true class is i.
func (cm ConfusionMatrix) RowSum(i int) int {
	sum := 0
	for _, v := range cm[i] {
		sum += v
	}
	return sum
}

// ColSum returns the number of epochs predicted as class j.
func (cm ConfusionMatrix) ColSum(j int) int {
	sum := 0
	for i := range cm {
		sum += cm[i][j]
	}
	return sum
}

// PerClass derives ClassMetrics for every class of the matrix.
func (cm ConfusionMatrix) PerClass() PerClassMetrics {
	metrics := make(PerClassMetrics, len(cm))
	for i := range cm {
		tp := float64(cm[i][i])
		row := cm.RowSum(i)
		col := cm.ColSum(i)

		m := ClassMetrics{Support: row}
		if col > 0 {
			m.Precision = tp / float64(col)
		}
		if row > 0 {
			m.Recall = tp / float64(row)
		}
		if m.Precision+m.Recall > 0 {
			m.F1 = 2 * m.Precision * m.Recall / (m.Precision + m.Recall)
		}
		metrics[i] = m
	}
	return metrics
}

// Normalized divides each row by (row sum + 1e-7) for display. Empty rows
// become all zeros.
func (cm ConfusionMatrix) Normalized() [][]float64 {
	out := make([][]float64, len(cm))
	for i := range cm {
		denom := float64(cm.RowSum(i)) + normEpsilon
		out[i] = make([]float64, len(cm[i]))
		for j, v := range cm[i] {
			x := float64(v) / denom
			if math.IsNaN(x) {
				x = 0
			}
			out[i][j] = x
		}
	}
	return out
}
