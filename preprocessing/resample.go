package preprocessing

import (
	"math/rand/v2"

	"github.com/medscreen/diabrisk/dataset"
	diabriskErrors "github.com/medscreen/diabrisk/pkg/errors"
)

// RandomOverSampler balances the diabetes label by duplicating minority
// rows, sampled with replacement, until both classes have equal counts.
// It must only ever see training rows; assessment and holdout partitions
// keep their natural class ratio.
type RandomOverSampler struct {
	Seed uint64
}

// NewRandomOverSampler creates an oversampler with the given seed.
func NewRandomOverSampler(seed uint64) *RandomOverSampler {
	return &RandomOverSampler{Seed: seed}
}

// Resample returns a new table in which the minority class has been
// upsampled to match the majority class count. Original rows are kept in
// their input order; duplicates are appended.
func (r *RandomOverSampler) Resample(t *dataset.Table) (*dataset.Table, error) {
	n := t.Len()
	if n == 0 {
		return nil, diabriskErrors.NewModelError("RandomOverSampler.Resample", "empty data", diabriskErrors.ErrEmptyData)
	}

	var positives, negatives []int
	for i := 0; i < n; i++ {
		if t.Diabetes[i] == 1 {
			positives = append(positives, i)
		} else {
			negatives = append(negatives, i)
		}
	}
	if len(positives) == 0 || len(negatives) == 0 {
		return nil, diabriskErrors.NewValidationError(
			"diabetes",
			"oversampling requires both classes to be present",
			t.Len(),
		)
	}

	minority, majority := positives, negatives
	if len(negatives) < len(positives) {
		minority, majority = negatives, positives
	}

	indices := make([]int, 0, 2*len(majority))
	for i := 0; i < n; i++ {
		indices = append(indices, i)
	}

	rng := rand.New(rand.NewPCG(r.Seed, r.Seed))
	for deficit := len(majority) - len(minority); deficit > 0; deficit-- {
		indices = append(indices, minority[rng.IntN(len(minority))])
	}

	return t.Select(indices)
}
