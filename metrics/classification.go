// Package metrics implements the classification metrics used to tune and
// compare the diabrisk models: ROC-AUC (the tuning criterion), accuracy,
// log loss, and confusion-matrix-derived rates.
package metrics

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	diabriskErrors "github.com/medscreen/diabrisk/pkg/errors"
)

// AUC calculates the area under the ROC curve for binary classification.
//
// The AUC is the probability that the classifier ranks a randomly chosen
// positive above a randomly chosen negative: 0.5 is random guessing, 1.0 a
// perfect ranking.
//
// Parameters:
//   - yTrue: ground truth binary labels (0 or 1)
//   - yPred: predicted probabilities or decision scores
func AUC(yTrue, yPred *mat.VecDense) (float64, error) {
	if yTrue == nil || yPred == nil {
		return 0, diabriskErrors.NewValueError("AUC", "input vectors cannot be nil")
	}

	n := yTrue.Len()
	if n == 0 {
		return 0, diabriskErrors.NewValueError("AUC", "input vectors cannot be empty")
	}
	if n != yPred.Len() {
		return 0, diabriskErrors.NewDimensionError("AUC", n, yPred.Len(), 0)
	}

	for i := 0; i < n; i++ {
		val := yTrue.AtVec(i)
		if val != 0.0 && val != 1.0 {
			return 0, diabriskErrors.NewValidationError(
				"yTrue",
				fmt.Sprintf("must contain only binary values (0 or 1), found %f at index %d", val, i),
				val,
			)
		}
	}

	fprs, tprs, err := rocPoints(yTrue, yPred)
	if err != nil {
		return 0, err
	}
	if fprs == nil {
		// Single-class input: AUC is undefined, return the random-classifier
		// value rather than failing the whole comparison.
		return 0.5, nil
	}

	// Trapezoidal rule over the ROC curve.
	auc := 0.0
	for i := 1; i < len(fprs); i++ {
		width := fprs[i] - fprs[i-1]
		height := (tprs[i] + tprs[i-1]) / 2
		auc += width * height
	}
	return auc, nil
}

// ROCCurve returns the ROC curve of a binary classifier as parallel FPR and
// TPR slices, starting at (0,0) and ending at (1,1). The slices are ready
// for plotting.
func ROCCurve(yTrue, yPred *mat.VecDense) (fprs, tprs []float64, err error) {
	if yTrue == nil || yPred == nil {
		return nil, nil, diabriskErrors.NewValueError("ROCCurve", "input vectors cannot be nil")
	}
	if yTrue.Len() != yPred.Len() {
		return nil, nil, diabriskErrors.NewDimensionError("ROCCurve", yTrue.Len(), yPred.Len(), 0)
	}

	fprs, tprs, err = rocPoints(yTrue, yPred)
	if err != nil {
		return nil, nil, err
	}
	if fprs == nil {
		return nil, nil, diabriskErrors.NewValueError("ROCCurve", "needs both classes present")
	}
	return fprs, tprs, nil
}

// rocPoints sweeps thresholds over the scores in descending order and
// accumulates TPR/FPR. Returns nil slices when only one class is present.
func rocPoints(yTrue, yPred *mat.VecDense) ([]float64, []float64, error) {
	n := yTrue.Len()

	type pair struct {
		score float64
		label float64
	}
	pairs := make([]pair, n)
	totalPos, totalNeg := 0.0, 0.0
	for i := 0; i < n; i++ {
		pairs[i] = pair{score: yPred.AtVec(i), label: yTrue.AtVec(i)}
		if yTrue.AtVec(i) == 1.0 {
			totalPos++
		} else {
			totalNeg++
		}
	}
	if totalPos == 0 || totalNeg == 0 {
		return nil, nil, nil
	}

	sort.Slice(pairs, func(i, j int) bool {
		return pairs[i].score > pairs[j].score
	})

	tprs := []float64{0}
	fprs := []float64{0}

	tp, fp := 0.0, 0.0
	prevScore := pairs[0].score + 1
	for _, p := range pairs {
		if p.score != prevScore {
			tprs = append(tprs, tp/totalPos)
			fprs = append(fprs, fp/totalNeg)
			prevScore = p.score
		}
		if p.label == 1.0 {
			tp++
		} else {
			fp++
		}
	}

	tprs = append(tprs, 1)
	fprs = append(fprs, 1)
	return fprs, tprs, nil
}

// BinaryLogLoss calculates the binary cross-entropy of predicted
// probabilities against 0/1 labels.
func BinaryLogLoss(yTrue, yPred *mat.VecDense) (float64, error) {
	if yTrue == nil || yPred == nil {
		return 0, diabriskErrors.NewValueError("BinaryLogLoss", "input vectors cannot be nil")
	}

	n := yTrue.Len()
	if n == 0 {
		return 0, diabriskErrors.NewValueError("BinaryLogLoss", "input vectors cannot be empty")
	}
	if n != yPred.Len() {
		return 0, diabriskErrors.NewDimensionError("BinaryLogLoss", n, yPred.Len(), 0)
	}

	const epsilon = 1e-15
	loss := 0.0
	for i := 0; i < n; i++ {
		y := yTrue.AtVec(i)
		p := yPred.AtVec(i)
		if y != 0.0 && y != 1.0 {
			return 0, diabriskErrors.NewValidationError(
				"yTrue",
				fmt.Sprintf("must contain only binary values (0 or 1), found %f at index %d", y, i),
				y,
			)
		}

		if p < epsilon {
			p = epsilon
		} else if p > 1-epsilon {
			p = 1 - epsilon
		}

		if y == 1.0 {
			loss -= math.Log(p)
		} else {
			loss -= math.Log(1 - p)
		}
	}
	return loss / float64(n), nil
}

// ClassificationError calculates the fraction of incorrect predictions.
func ClassificationError(yTrue, yPred *mat.VecDense) (float64, error) {
	if yTrue == nil || yPred == nil {
		return 0, diabriskErrors.NewValueError("ClassificationError", "input vectors cannot be nil")
	}

	n := yTrue.Len()
	if n == 0 {
		return 0, diabriskErrors.NewValueError("ClassificationError", "input vectors cannot be empty")
	}
	if n != yPred.Len() {
		return 0, diabriskErrors.NewDimensionError("ClassificationError", n, yPred.Len(), 0)
	}

	mistakes := 0
	for i := 0; i < n; i++ {
		if yTrue.AtVec(i) != yPred.AtVec(i) {
			mistakes++
		}
	}
	return float64(mistakes) / float64(n), nil
}

// Accuracy calculates the fraction of correct predictions.
func Accuracy(yTrue, yPred *mat.VecDense) (float64, error) {
	errorRate, err := ClassificationError(yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return 1.0 - errorRate, nil
}
