package domain

import (
	"fmt"
	"math"
)

// AccuracyTable is a subjects × models matrix of per-subject scores
// (accuracy percentages, or mean attention weights for attention tables).
// Values[i][j] belongs to Subjects[i] and Models[j].
type AccuracyTable struct {
	Subjects []string    `json:"subjects"`
	Models   []string    `json:"models"`
	Values   [][]float64 `json:"values"`
}

// TableSummary holds per-model column aggregates of an AccuracyTable.
type TableSummary struct {
	// Mean is the column mean per model.
	Mean []float64 `json:"mean"`

	// Std is the population (ddof=0) standard deviation per model.
	Std []float64 `json:"std"`
}

// LookupFunc returns the table value for one subject and model.
type LookupFunc func(subject, model string) (float64, error)

// BuildTable fills a table by calling lookup for every subject/model pair
// in order. The first lookup error aborts the build.
func BuildTable(subjects, models []string, lookup LookupFunc) (AccuracyTable, error) {
	if lookup == nil {
		return AccuracyTable{}, fmt.Errorf("%w: nil lookup", ErrInvalidInput)
	}

	values := make([][]float64, len(subjects))
	for i, subject := range subjects {
		row := make([]float64, len(models))
		for j, model := range models {
			v, err := lookup(subject, model)
			if err != nil {
				return AccuracyTable{}, NewRecordError(subject, model, "lookup", err)
			}
			row[j] = v
		}
		values[i] = row
	}

	return AccuracyTable{
		Subjects: append([]string(nil), subjects...),
		Models:   append([]string(nil), models...),
		Values:   values,
	}, nil
}

// Validate checks that every row matches the model list.
func (t AccuracyTable) Validate() error {
	if len(t.Values) != len(t.Subjects) {
		return fmt.Errorf("%w: %d rows for %d subjects", ErrInvalidInput, len(t.Values), len(t.Subjects))
	}
	for i, row := range t.Values {
		if len(row) != len(t.Models) {
			return fmt.Errorf("%w: row %q has %d values for %d models",
				ErrInvalidInput, t.Subjects[i], len(row), len(t.Models))
		}
	}
	return nil
}

// Column returns a copy of the values of model column j.
func (t AccuracyTable) Column(j int) []float64 {
	col := make([]float64, len(t.Values))
	for i, row := range t.Values {
		col[i] = row[j]
	}
	return col
}

// Aggregate computes the mean and population standard deviation of every
// model column across subjects.
func (t AccuracyTable) Aggregate() (TableSummary, error) {
	if err := t.Validate(); err != nil {
		return TableSummary{}, err
	}
	if len(t.Subjects) == 0 || len(t.Models) == 0 {
		return TableSummary{}, fmt.Errorf("%w: empty table", ErrInvalidInput)
	}

	summary := TableSummary{
		Mean: make([]float64, len(t.Models)),
		Std:  make([]float64, len(t.Models)),
	}
	for j := range t.Models {
		summary.Mean[j], summary.Std[j] = MeanStd(t.Column(j))
	}
	return summary, nil
}

// MeanStd returns the mean and population standard deviation of values.
// An empty slice yields zeros.
func MeanStd(values []float64) (mean, std float64) {
	if len(values) == 0 {
		return 0, 0
	}
	n := float64(len(values))
	for _, v := range values {
		mean += v
	}
	mean /= n

	var sq float64
	for _, v := range values {
		d := v - mean
		sq += d * d
	}
	return mean, math.Sqrt(sq / n)
}
