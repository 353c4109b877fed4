package dataset

import (
	"sort"

	"gonum.org/v1/gonum/stat"
)

// ColumnSummary holds five-number-plus-moments statistics for one numeric
// column.
type ColumnSummary struct {
	Name   string
	Mean   float64
	Std    float64
	Min    float64
	Q1     float64
	Median float64
	Q3     float64
	Max    float64
}

// Summarize computes a ColumnSummary for a single column of values.
func Summarize(name string, values []float64) ColumnSummary {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	mean, std := stat.MeanStdDev(values, nil)
	return ColumnSummary{
		Name:   name,
		Mean:   mean,
		Std:    std,
		Min:    sorted[0],
		Q1:     stat.Quantile(0.25, stat.Empirical, sorted, nil),
		Median: stat.Quantile(0.5, stat.Empirical, sorted, nil),
		Q3:     stat.Quantile(0.75, stat.Empirical, sorted, nil),
		Max:    sorted[len(sorted)-1],
	}
}

// Summaries computes statistics for every numeric predictor column plus the
// label, in NumericFeatureNames order.
func Summaries(t *Table) []ColumnSummary {
	return []ColumnSummary{
		Summarize("age", t.Age),
		Summarize("hypertension", t.Hypertension),
		Summarize("heart_disease", t.HeartDisease),
		Summarize("bmi", t.BMI),
		Summarize("HbA1c_level", t.HbA1c),
		Summarize("blood_glucose_level", t.Glucose),
		Summarize("diabetes", t.Diabetes),
	}
}

// CategoryCounts tallies occurrences of each category in values.
func CategoryCounts(values []string) map[string]int {
	counts := make(map[string]int)
	for _, v := range values {
		counts[v]++
	}
	return counts
}

// SortedCategories returns the keys of counts in lexical order, so chart
// and table output is deterministic.
func SortedCategories(counts map[string]int) []string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// LabelBalance returns the negative and positive label counts.
func LabelBalance(t *Table) (negatives, positives int) {
	positives = t.PositiveCount()
	return t.Len() - positives, positives
}
