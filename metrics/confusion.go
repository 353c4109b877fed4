package metrics

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	diabriskErrors "github.com/medscreen/diabrisk/pkg/errors"
)

// ConfusionMatrix holds the four cells of a binary confusion matrix with
// diabetes=1 as the positive class.
type ConfusionMatrix struct {
	TruePositives  int
	FalsePositives int
	TrueNegatives  int
	FalseNegatives int
}

// NewConfusionMatrix tallies hard predictions against 0/1 labels.
func NewConfusionMatrix(yTrue, yPred *mat.VecDense) (*ConfusionMatrix, error) {
	if yTrue == nil || yPred == nil {
		return nil, diabriskErrors.NewValueError("NewConfusionMatrix", "input vectors cannot be nil")
	}

	n := yTrue.Len()
	if n == 0 {
		return nil, diabriskErrors.NewValueError("NewConfusionMatrix", "input vectors cannot be empty")
	}
	if n != yPred.Len() {
		return nil, diabriskErrors.NewDimensionError("NewConfusionMatrix", n, yPred.Len(), 0)
	}

	cm := &ConfusionMatrix{}
	for i := 0; i < n; i++ {
		truth := yTrue.AtVec(i)
		pred := yPred.AtVec(i)
		if truth != 0 && truth != 1 {
			return nil, diabriskErrors.NewValidationError(
				"yTrue",
				fmt.Sprintf("must contain only binary values (0 or 1), found %f at index %d", truth, i),
				truth,
			)
		}

		switch {
		case truth == 1 && pred == 1:
			cm.TruePositives++
		case truth == 0 && pred == 1:
			cm.FalsePositives++
		case truth == 0 && pred == 0:
			cm.TrueNegatives++
		default:
			cm.FalseNegatives++
		}
	}
	return cm, nil
}

// Total returns the number of observations.
func (cm *ConfusionMatrix) Total() int {
	return cm.TruePositives + cm.FalsePositives + cm.TrueNegatives + cm.FalseNegatives
}

// Accuracy is the fraction of correct predictions.
func (cm *ConfusionMatrix) Accuracy() float64 {
	total := cm.Total()
	if total == 0 {
		return 0
	}
	return float64(cm.TruePositives+cm.TrueNegatives) / float64(total)
}

// Sensitivity is the true positive rate (recall).
func (cm *ConfusionMatrix) Sensitivity() float64 {
	denom := cm.TruePositives + cm.FalseNegatives
	if denom == 0 {
		return 0
	}
	return float64(cm.TruePositives) / float64(denom)
}

// Specificity is the true negative rate.
func (cm *ConfusionMatrix) Specificity() float64 {
	denom := cm.TrueNegatives + cm.FalsePositives
	if denom == 0 {
		return 0
	}
	return float64(cm.TrueNegatives) / float64(denom)
}

// Precision is the positive predictive value.
func (cm *ConfusionMatrix) Precision() float64 {
	denom := cm.TruePositives + cm.FalsePositives
	if denom == 0 {
		return 0
	}
	return float64(cm.TruePositives) / float64(denom)
}

// F1 is the harmonic mean of precision and sensitivity.
func (cm *ConfusionMatrix) F1() float64 {
	p := cm.Precision()
	r := cm.Sensitivity()
	if p+r == 0 {
		return 0
	}
	return 2 * p * r / (p + r)
}
