package selection

import (
	"math/rand/v2"
	"sort"

	diabriskErrors "github.com/medscreen/diabrisk/pkg/errors"
)

// CVFold is one cross-validation fold: the rows a candidate trains on and
// the held-out rows it is assessed on. Indices are relative to the training
// partition, not the full table.
type CVFold struct {
	TrainIndices  []int
	AssessIndices []int
}

// StratifiedKFold splits rows into k folds whose assessment sets are
// disjoint and preserve the class ratio.
type StratifiedKFold struct {
	NSplits int
	Seed    uint64
}

// NewStratifiedKFold creates a stratified splitter. Fewer than 2 splits
// falls back to 5.
func NewStratifiedKFold(nSplits int, seed uint64) *StratifiedKFold {
	if nSplits < 2 {
		nSplits = 5
	}
	return &StratifiedKFold{NSplits: nSplits, Seed: seed}
}

// Split generates the folds for the given labels.
func (skf *StratifiedKFold) Split(labels []float64) ([]CVFold, error) {
	n := len(labels)
	if n < skf.NSplits {
		return nil, diabriskErrors.NewValidationError(
			"n_splits",
			"cannot have more folds than samples",
			skf.NSplits,
		)
	}

	classIndices := groupByClass(labels)
	rng := rand.New(rand.NewPCG(skf.Seed, skf.Seed))

	folds := make([]CVFold, skf.NSplits)

	// Deal each class round-robin style across folds so every assessment
	// set keeps the label ratio to within one sample per class.
	for _, class := range sortedClasses(classIndices) {
		indices := append([]int(nil), classIndices[class]...)
		rng.Shuffle(len(indices), func(i, j int) {
			indices[i], indices[j] = indices[j], indices[i]
		})

		nClass := len(indices)
		foldSize := nClass / skf.NSplits
		remainder := nClass % skf.NSplits

		cursor := 0
		for f := 0; f < skf.NSplits; f++ {
			take := foldSize
			if f < remainder {
				take++
			}
			folds[f].AssessIndices = append(folds[f].AssessIndices, indices[cursor:cursor+take]...)
			cursor += take
		}
	}

	for f := range folds {
		assessSet := make(map[int]bool, len(folds[f].AssessIndices))
		for _, idx := range folds[f].AssessIndices {
			assessSet[idx] = true
		}
		for i := 0; i < n; i++ {
			if !assessSet[i] {
				folds[f].TrainIndices = append(folds[f].TrainIndices, i)
			}
		}
		sort.Ints(folds[f].AssessIndices)
	}

	return folds, nil
}
