// Package linear implements the penalized logistic regression classifiers
// used in the diabetes comparison: a plain l2 model solved by L-BFGS and an
// elastic-net variant solved by proximal gradient descent.
package linear

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"

	"github.com/medscreen/diabrisk/core/model"
	diabriskErrors "github.com/medscreen/diabrisk/pkg/errors"
)

const (
	penaltyNone       = "none"
	penaltyL2         = "l2"
	penaltyElasticNet = "elasticnet"

	epsilonSmall       = 1e-15
	regularizationHalf = 0.5
)

// LogisticRegression is a binary logistic regression classifier with
// optional l2 or elastic-net regularization.
type LogisticRegression struct {
	state *model.StateManager

	// Hyperparameters
	penalty      string  // "none", "l2", "elasticnet"
	c            float64 // Inverse regularization strength (1/lambda)
	l1Ratio      float64 // Mixing parameter for elastic net
	fitIntercept bool
	maxIter      int
	tol          float64

	// Fitted parameters
	coef_      []float64
	intercept_ float64
	classes_   []int
	nFeatures_ int
	nIter_     int
}

// LogisticRegressionOption is a functional option for LogisticRegression.
type LogisticRegressionOption func(*LogisticRegression)

// NewLogisticRegression creates a classifier with l2 penalty, C=1 and
// lbfgs-style defaults.
func NewLogisticRegression(opts ...LogisticRegressionOption) *LogisticRegression {
	lr := &LogisticRegression{
		state:        model.NewStateManager(),
		penalty:      penaltyL2,
		c:            1.0,
		l1Ratio:      0.5,
		fitIntercept: true,
		maxIter:      200,
		tol:          1e-5,
	}
	for _, opt := range opts {
		opt(lr)
	}
	return lr
}

// WithLRPenalty sets the regularization type.
func WithLRPenalty(penalty string) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.penalty = penalty
	}
}

// WithLRC sets the inverse regularization strength.
func WithLRC(c float64) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.c = c
	}
}

// WithLRL1Ratio sets the l1 mixing parameter for the elastic-net penalty.
func WithLRL1Ratio(ratio float64) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.l1Ratio = ratio
	}
}

// WithLRMaxIter sets the maximum number of solver iterations.
func WithLRMaxIter(maxIter int) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.maxIter = maxIter
	}
}

// WithLRTol sets the stopping tolerance.
func WithLRTol(tol float64) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.tol = tol
	}
}

// stableSigmoid computes sigmoid(z) without overflow.
func stableSigmoid(z float64) float64 {
	if z >= 0 {
		ez := math.Exp(-z)
		return 1.0 / (1.0 + ez)
	}
	ez := math.Exp(z)
	return ez / (1.0 + ez)
}

// clampProbability keeps p away from 0 and 1 so log stays finite.
func clampProbability(p float64) float64 {
	if p < epsilonSmall {
		return epsilonSmall
	}
	if p > 1-epsilonSmall {
		return 1 - epsilonSmall
	}
	return p
}

// Fit trains the classifier on X and 0/1 labels y (n x 1).
func (lr *LogisticRegression) Fit(X, y mat.Matrix) error {
	nSamples, nFeatures := X.Dims()
	yRows, yCols := y.Dims()
	if nSamples != yRows {
		return diabriskErrors.NewDimensionError("LogisticRegression.Fit", nSamples, yRows, 0)
	}
	if yCols != 1 {
		return diabriskErrors.NewDimensionError("LogisticRegression.Fit", 1, yCols, 1)
	}

	switch lr.penalty {
	case penaltyNone, penaltyL2, penaltyElasticNet:
	default:
		return diabriskErrors.NewValidationError("penalty", "must be none, l2 or elasticnet", lr.penalty)
	}
	if lr.penalty != penaltyNone && lr.c <= 0 {
		return diabriskErrors.NewValidationError("C", "must be > 0 with a penalty", lr.c)
	}

	yBinary := make([]float64, nSamples)
	for i := 0; i < nSamples; i++ {
		v := y.At(i, 0)
		if v != 0 && v != 1 {
			return diabriskErrors.NewValidationError("y", "labels must be 0 or 1", v)
		}
		yBinary[i] = v
	}

	lr.classes_ = []int{0, 1}
	lr.nFeatures_ = nFeatures
	lr.coef_ = make([]float64, nFeatures)
	lr.intercept_ = 0

	var err error
	if lr.penalty == penaltyElasticNet {
		err = lr.fitProximal(mat.DenseCopyOf(X), yBinary)
	} else {
		err = lr.fitLBFGS(mat.DenseCopyOf(X), yBinary)
	}
	if err != nil {
		return err
	}

	lr.state.SetDimensions(nFeatures, nSamples)
	lr.state.SetFitted()
	return nil
}

// fitLBFGS minimizes the (optionally l2-penalized) mean negative
// log-likelihood with gonum's L-BFGS.
func (lr *LogisticRegression) fitLBFGS(X *mat.Dense, y []float64) error {
	nSamples, nFeatures := X.Dims()

	pDim := nFeatures
	if lr.fitIntercept {
		pDim++
	}
	x0 := make([]float64, pDim)

	lambda := 0.0
	if lr.penalty == penaltyL2 {
		lambda = 1.0 / lr.c
	}

	prob := optimize.Problem{
		Func: func(theta []float64) float64 {
			w := theta[:nFeatures]
			var b float64
			if lr.fitIntercept {
				b = theta[nFeatures]
			}
			loss := 0.0
			for i := 0; i < nSamples; i++ {
				z := b
				for j := 0; j < nFeatures; j++ {
					z += w[j] * X.At(i, j)
				}
				p := clampProbability(stableSigmoid(z))
				loss += -y[i]*math.Log(p) - (1.0-y[i])*math.Log(1.0-p)
			}
			loss /= float64(nSamples)
			if lambda > 0 {
				reg := 0.0
				for j := 0; j < nFeatures; j++ {
					reg += w[j] * w[j]
				}
				loss += regularizationHalf * lambda * reg
			}
			return loss
		},
		Grad: func(grad, theta []float64) {
			w := theta[:nFeatures]
			var b float64
			if lr.fitIntercept {
				b = theta[nFeatures]
			}
			for j := range grad {
				grad[j] = 0
			}
			for i := 0; i < nSamples; i++ {
				z := b
				for j := 0; j < nFeatures; j++ {
					z += w[j] * X.At(i, j)
				}
				diff := stableSigmoid(z) - y[i]
				for j := 0; j < nFeatures; j++ {
					grad[j] += diff * X.At(i, j)
				}
				if lr.fitIntercept {
					grad[nFeatures] += diff
				}
			}
			invN := 1.0 / float64(nSamples)
			for j := range grad {
				grad[j] *= invN
			}
			if lambda > 0 {
				for j := 0; j < nFeatures; j++ {
					grad[j] += lambda * w[j]
				}
			}
		},
	}

	settings := optimize.Settings{
		GradientThreshold: lr.tol,
		MajorIterations:   lr.maxIter,
	}
	result, err := optimize.Minimize(prob, x0, &settings, &optimize.LBFGS{})
	if err != nil {
		return diabriskErrors.Wrap(err, "lbfgs optimization failed")
	}

	copy(lr.coef_, result.X[:nFeatures])
	if lr.fitIntercept {
		lr.intercept_ = result.X[nFeatures]
	}
	lr.nIter_ = result.Stats.MajorIterations
	if lr.nIter_ >= lr.maxIter {
		diabriskErrors.Warn(diabriskErrors.NewConvergenceWarning("LogisticRegression", lr.nIter_, ""))
	}
	return nil
}

// fitProximal solves the elastic-net objective with proximal gradient
// descent: a gradient step on the smooth part (NLL + l2 share) followed by
// soft-thresholding for the l1 share. The intercept is never penalized.
func (lr *LogisticRegression) fitProximal(X *mat.Dense, y []float64) error {
	nSamples, nFeatures := X.Dims()

	lambda := 1.0 / lr.c
	l1 := lambda * lr.l1Ratio
	l2 := lambda * (1.0 - lr.l1Ratio)

	// Lipschitz bound for the logistic gradient: ||X||_F^2 / (4n) plus the
	// l2 term. A fixed step of 1/L keeps the iteration stable.
	sumSq := 0.0
	for i := 0; i < nSamples; i++ {
		for j := 0; j < nFeatures; j++ {
			v := X.At(i, j)
			sumSq += v * v
		}
	}
	lipschitz := sumSq/(4.0*float64(nSamples)) + l2
	if lipschitz <= 0 {
		lipschitz = 1
	}
	step := 1.0 / lipschitz

	w := lr.coef_
	b := 0.0
	grad := make([]float64, nFeatures)

	for iter := 0; iter < lr.maxIter; iter++ {
		for j := range grad {
			grad[j] = 0
		}
		gradB := 0.0
		for i := 0; i < nSamples; i++ {
			z := b
			for j := 0; j < nFeatures; j++ {
				z += w[j] * X.At(i, j)
			}
			diff := stableSigmoid(z) - y[i]
			for j := 0; j < nFeatures; j++ {
				grad[j] += diff * X.At(i, j)
			}
			gradB += diff
		}
		invN := 1.0 / float64(nSamples)

		maxMove := 0.0
		for j := 0; j < nFeatures; j++ {
			g := grad[j]*invN + l2*w[j]
			next := softThreshold(w[j]-step*g, step*l1)
			if move := math.Abs(next - w[j]); move > maxMove {
				maxMove = move
			}
			w[j] = next
		}
		if lr.fitIntercept {
			next := b - step*gradB*invN
			if move := math.Abs(next - b); move > maxMove {
				maxMove = move
			}
			b = next
		}

		lr.nIter_ = iter + 1
		if maxMove < lr.tol {
			break
		}
	}

	lr.intercept_ = b
	if lr.nIter_ >= lr.maxIter {
		diabriskErrors.Warn(diabriskErrors.NewConvergenceWarning("LogisticRegression", lr.nIter_, "elastic-net proximal descent"))
	}
	return nil
}

// softThreshold is the proximal operator of the l1 penalty.
func softThreshold(v, threshold float64) float64 {
	switch {
	case v > threshold:
		return v - threshold
	case v < -threshold:
		return v + threshold
	default:
		return 0
	}
}

// decisionFunction computes w·x + b for every row of X.
func (lr *LogisticRegression) decisionFunction(X mat.Matrix) (*mat.VecDense, error) {
	nSamples, nFeatures := X.Dims()
	if nFeatures != lr.nFeatures_ {
		return nil, diabriskErrors.NewDimensionError("LogisticRegression", lr.nFeatures_, nFeatures, 1)
	}

	scores := mat.NewVecDense(nSamples, nil)
	for i := 0; i < nSamples; i++ {
		z := lr.intercept_
		for j := 0; j < nFeatures; j++ {
			z += lr.coef_[j] * X.At(i, j)
		}
		scores.SetVec(i, z)
	}
	return scores, nil
}

// Predict returns hard 0/1 labels as an n x 1 matrix.
func (lr *LogisticRegression) Predict(X mat.Matrix) (mat.Matrix, error) {
	proba, err := lr.PredictProba(X)
	if err != nil {
		return nil, err
	}
	n, _ := proba.Dims()
	out := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		if proba.At(i, 1) > 0.5 {
			out.Set(i, 0, 1)
		}
	}
	return out, nil
}

// PredictProba returns an n x 2 matrix of class probabilities.
func (lr *LogisticRegression) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	if !lr.state.IsFitted() {
		return nil, diabriskErrors.NewNotFittedError("LogisticRegression", "PredictProba")
	}

	scores, err := lr.decisionFunction(X)
	if err != nil {
		return nil, err
	}

	n := scores.Len()
	proba := mat.NewDense(n, 2, nil)
	for i := 0; i < n; i++ {
		p := stableSigmoid(scores.AtVec(i))
		proba.Set(i, 0, 1-p)
		proba.Set(i, 1, p)
	}
	return proba, nil
}

// Classes returns the class labels in probability column order.
func (lr *LogisticRegression) Classes() []int {
	return append([]int(nil), lr.classes_...)
}

// Coef returns the fitted weight vector.
func (lr *LogisticRegression) Coef() []float64 {
	return append([]float64(nil), lr.coef_...)
}

// Intercept returns the fitted intercept.
func (lr *LogisticRegression) Intercept() float64 {
	return lr.intercept_
}

// NIter returns the number of solver iterations of the last fit.
func (lr *LogisticRegression) NIter() int {
	return lr.nIter_
}

// GetParams returns the hyperparameters.
func (lr *LogisticRegression) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"penalty":       lr.penalty,
		"C":             lr.c,
		"l1_ratio":      lr.l1Ratio,
		"fit_intercept": lr.fitIntercept,
		"max_iter":      lr.maxIter,
		"tol":           lr.tol,
	}
}
