// Package selection implements data partitioning and model tuning: the
// stratified train/test split, stratified k-fold cross-validation, and a
// grid search scored by mean cross-validated ROC-AUC.
package selection

import (
	"math/rand/v2"
	"sort"

	diabriskErrors "github.com/medscreen/diabrisk/pkg/errors"
)

// SplitResult holds the disjoint row index sets of a train/test split.
type SplitResult struct {
	TrainIndices []int
	TestIndices  []int
}

// TrainTestSplit partitions rows into train and test sets, stratified on
// the binary labels so both partitions keep the label ratio. The split is
// deterministic under a fixed seed.
func TrainTestSplit(labels []float64, testFraction float64, seed uint64) (*SplitResult, error) {
	if len(labels) == 0 {
		return nil, diabriskErrors.NewModelError("TrainTestSplit", "empty data", diabriskErrors.ErrEmptyData)
	}
	if testFraction <= 0 || testFraction >= 1 {
		return nil, diabriskErrors.NewValidationError("testFraction", "must be in (0, 1)", testFraction)
	}

	classIndices := groupByClass(labels)
	rng := rand.New(rand.NewPCG(seed, seed))

	result := &SplitResult{}
	for _, class := range sortedClasses(classIndices) {
		indices := append([]int(nil), classIndices[class]...)
		rng.Shuffle(len(indices), func(i, j int) {
			indices[i], indices[j] = indices[j], indices[i]
		})

		nTest := int(float64(len(indices)) * testFraction)
		result.TestIndices = append(result.TestIndices, indices[:nTest]...)
		result.TrainIndices = append(result.TrainIndices, indices[nTest:]...)
	}

	sort.Ints(result.TrainIndices)
	sort.Ints(result.TestIndices)
	return result, nil
}

func groupByClass(labels []float64) map[float64][]int {
	classIndices := make(map[float64][]int)
	for i, label := range labels {
		classIndices[label] = append(classIndices[label], i)
	}
	return classIndices
}

func sortedClasses(classIndices map[float64][]int) []float64 {
	classes := make([]float64, 0, len(classIndices))
	for class := range classIndices {
		classes = append(classes, class)
	}
	sort.Float64s(classes)
	return classes
}
