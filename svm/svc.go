// Package svm implements a support vector classifier trained with the
// Pegasos subgradient method, for both the linear and RBF kernels. Decision
// values are mapped to probabilities by Platt scaling, since the hinge loss
// itself carries no probabilistic meaning.
package svm

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"

	"github.com/medscreen/diabrisk/core/model"
	diabriskErrors "github.com/medscreen/diabrisk/pkg/errors"
)

const (
	// KernelLinear selects the plain dot-product kernel.
	KernelLinear = "linear"
	// KernelRBF selects the Gaussian kernel exp(-gamma * ||x-z||^2).
	KernelRBF = "rbf"
)

// SVC is a binary support vector classifier.
type SVC struct {
	state *model.StateManager

	// Hyperparameters
	c       float64
	kernel  string
	gamma   float64 // 0 means 1/nFeatures
	maxIter int
	seed    uint64

	// Fitted parameters. The linear kernel keeps a primal weight vector;
	// the RBF kernel keeps per-row dual coefficients and the training data.
	weights_   []float64
	bias_      float64
	alphas_    []float64
	supportX_  *mat.Dense
	supportY_  []float64 // -1/+1
	gamma_     float64
	plattA_    float64
	plattB_    float64
	classes_   []int
	nFeatures_ int
}

// SVCOption is a functional option for SVC.
type SVCOption func(*SVC)

// NewSVC creates a linear-kernel classifier with C=1.
func NewSVC(opts ...SVCOption) *SVC {
	s := &SVC{
		state:   model.NewStateManager(),
		c:       1.0,
		kernel:  KernelLinear,
		maxIter: 20,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// WithSVCC sets the regularization strength C.
func WithSVCC(c float64) SVCOption {
	return func(s *SVC) {
		s.c = c
	}
}

// WithSVCKernel sets the kernel ("linear" or "rbf").
func WithSVCKernel(kernel string) SVCOption {
	return func(s *SVC) {
		s.kernel = kernel
	}
}

// WithSVCGamma sets the RBF kernel width. Zero defaults to 1/nFeatures.
func WithSVCGamma(gamma float64) SVCOption {
	return func(s *SVC) {
		s.gamma = gamma
	}
}

// WithSVCMaxIter sets the number of training epochs.
func WithSVCMaxIter(maxIter int) SVCOption {
	return func(s *SVC) {
		s.maxIter = maxIter
	}
}

// WithSVCSeed seeds the stochastic training order.
func WithSVCSeed(seed uint64) SVCOption {
	return func(s *SVC) {
		s.seed = seed
	}
}

// Fit trains the classifier on X and 0/1 labels y, then calibrates the
// Platt sigmoid on the training decision values.
func (s *SVC) Fit(X, y mat.Matrix) error {
	nSamples, nFeatures := X.Dims()
	yRows, yCols := y.Dims()
	if nSamples != yRows {
		return diabriskErrors.NewDimensionError("SVC.Fit", nSamples, yRows, 0)
	}
	if yCols != 1 {
		return diabriskErrors.NewDimensionError("SVC.Fit", 1, yCols, 1)
	}
	if s.c <= 0 {
		return diabriskErrors.NewValidationError("C", "must be > 0", s.c)
	}
	switch s.kernel {
	case KernelLinear, KernelRBF:
	default:
		return diabriskErrors.NewValidationError("kernel", "must be linear or rbf", s.kernel)
	}

	signed := make([]float64, nSamples)
	nPos := 0
	for i := 0; i < nSamples; i++ {
		v := y.At(i, 0)
		if v != 0 && v != 1 {
			return diabriskErrors.NewValidationError("y", "labels must be 0 or 1", v)
		}
		if v == 1 {
			signed[i] = 1
			nPos++
		} else {
			signed[i] = -1
		}
	}
	if nPos == 0 || nPos == nSamples {
		return diabriskErrors.NewModelError("SVC", "training set has a single class", diabriskErrors.ErrEmptyData)
	}

	s.classes_ = []int{0, 1}
	s.nFeatures_ = nFeatures
	s.gamma_ = s.gamma
	if s.gamma_ <= 0 {
		s.gamma_ = 1.0 / float64(nFeatures)
	}

	Xd := mat.DenseCopyOf(X)
	if s.kernel == KernelLinear {
		s.fitLinear(Xd, signed)
	} else {
		s.fitRBF(Xd, signed)
	}

	scores := make([]float64, nSamples)
	for i := 0; i < nSamples; i++ {
		scores[i] = s.decisionValue(Xd, i)
	}
	s.fitPlatt(scores, signed)

	s.state.SetDimensions(nFeatures, nSamples)
	s.state.SetFitted()
	return nil
}

// fitLinear runs primal Pegasos: at step t, shrink w by (1 - 1/t) and add
// eta*y*x for margin violators.
func (s *SVC) fitLinear(X *mat.Dense, signed []float64) {
	nSamples, nFeatures := X.Dims()
	lambda := 1.0 / (s.c * float64(nSamples))

	w := make([]float64, nFeatures)
	b := 0.0
	rng := rand.New(rand.NewPCG(s.seed, s.seed))

	t := 0
	order := make([]int, nSamples)
	for i := range order {
		order[i] = i
	}

	for epoch := 0; epoch < s.maxIter; epoch++ {
		rng.Shuffle(nSamples, func(i, j int) {
			order[i], order[j] = order[j], order[i]
		})
		for _, idx := range order {
			t++
			eta := 1.0 / (lambda * float64(t))

			margin := b
			for j := 0; j < nFeatures; j++ {
				margin += w[j] * X.At(idx, j)
			}
			margin *= signed[idx]

			shrink := 1.0 - eta*lambda
			for j := 0; j < nFeatures; j++ {
				w[j] *= shrink
			}
			if margin < 1 {
				for j := 0; j < nFeatures; j++ {
					w[j] += eta * signed[idx] * X.At(idx, j)
				}
				b += eta * signed[idx]
			}
		}
	}

	s.weights_ = w
	s.bias_ = b
}

// fitRBF runs kernelized Pegasos: alpha[i] counts how often row i violated
// the margin, and the decision value is sum alpha*y*K(x_i, x) / (lambda*t).
func (s *SVC) fitRBF(X *mat.Dense, signed []float64) {
	nSamples, _ := X.Dims()
	lambda := 1.0 / (s.c * float64(nSamples))

	alpha := make([]float64, nSamples)
	rng := rand.New(rand.NewPCG(s.seed, s.seed))

	t := 0
	order := make([]int, nSamples)
	for i := range order {
		order[i] = i
	}

	for epoch := 0; epoch < s.maxIter; epoch++ {
		rng.Shuffle(nSamples, func(i, j int) {
			order[i], order[j] = order[j], order[i]
		})
		for _, idx := range order {
			t++
			sum := 0.0
			for i := 0; i < nSamples; i++ {
				if alpha[i] == 0 {
					continue
				}
				sum += alpha[i] * signed[i] * s.rbf(X, i, X, idx)
			}
			margin := signed[idx] * sum / (lambda * float64(t))
			if margin < 1 {
				alpha[idx]++
			}
		}
	}

	// Fold the final 1/(lambda*T) normalization into the coefficients.
	norm := 1.0 / (lambda * float64(t))
	for i := range alpha {
		alpha[i] *= norm
	}

	s.alphas_ = alpha
	s.supportX_ = X
	s.supportY_ = signed
}

func (s *SVC) rbf(A *mat.Dense, i int, B *mat.Dense, j int) float64 {
	d := 0.0
	for k := 0; k < s.nFeatures_; k++ {
		diff := A.At(i, k) - B.At(j, k)
		d += diff * diff
	}
	return math.Exp(-s.gamma_ * d)
}

func (s *SVC) decisionValue(X *mat.Dense, i int) float64 {
	if s.kernel == KernelLinear {
		z := s.bias_
		for j := 0; j < s.nFeatures_; j++ {
			z += s.weights_[j] * X.At(i, j)
		}
		return z
	}
	nSupport, _ := s.supportX_.Dims()
	z := 0.0
	for t := 0; t < nSupport; t++ {
		if s.alphas_[t] == 0 {
			continue
		}
		z += s.alphas_[t] * s.supportY_[t] * s.rbf(s.supportX_, t, X, i)
	}
	return z
}

// fitPlatt fits p(y=1|f) = 1/(1+exp(A*f+B)) on training decision values by
// gradient descent on the cross entropy, with the smoothed targets from
// Platt's original formulation.
func (s *SVC) fitPlatt(scores, signed []float64) {
	n := len(scores)
	nPos, nNeg := 0, 0
	for _, v := range signed {
		if v > 0 {
			nPos++
		} else {
			nNeg++
		}
	}
	tPos := (float64(nPos) + 1.0) / (float64(nPos) + 2.0)
	tNeg := 1.0 / (float64(nNeg) + 2.0)

	targets := make([]float64, n)
	for i, v := range signed {
		if v > 0 {
			targets[i] = tPos
		} else {
			targets[i] = tNeg
		}
	}

	a, b := -1.0, 0.0
	step := 1e-3
	for iter := 0; iter < 500; iter++ {
		gradA, gradB := 0.0, 0.0
		for i := 0; i < n; i++ {
			p := 1.0 / (1.0 + math.Exp(a*scores[i]+b))
			diff := p - targets[i]
			// d p / d a = -p(1-p) f
			gradA -= diff * p * (1 - p) * scores[i]
			gradB -= diff * p * (1 - p)
		}
		a -= step * gradA / float64(n)
		b -= step * gradB / float64(n)
	}

	s.plattA_ = a
	s.plattB_ = b
}

// PredictProba returns an n x 2 matrix of Platt-calibrated probabilities.
func (s *SVC) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	if err := s.state.RequireFitted("SVC", "PredictProba"); err != nil {
		return nil, err
	}
	nSamples, nFeatures := X.Dims()
	if nFeatures != s.nFeatures_ {
		return nil, diabriskErrors.NewDimensionError("SVC.PredictProba", s.nFeatures_, nFeatures, 1)
	}

	Xd := mat.DenseCopyOf(X)
	proba := mat.NewDense(nSamples, 2, nil)
	for i := 0; i < nSamples; i++ {
		f := s.decisionValue(Xd, i)
		p := 1.0 / (1.0 + math.Exp(s.plattA_*f+s.plattB_))
		proba.Set(i, 0, 1-p)
		proba.Set(i, 1, p)
	}
	return proba, nil
}

// Predict returns hard 0/1 labels as an n x 1 matrix.
func (s *SVC) Predict(X mat.Matrix) (mat.Matrix, error) {
	proba, err := s.PredictProba(X)
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

// Classes returns the class labels in probability column order.
func (s *SVC) Classes() []int {
	return append([]int(nil), s.classes_...)
}

// GetParams returns the hyperparameters.
func (s *SVC) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"C":        s.c,
		"kernel":   s.kernel,
		"gamma":    s.gamma,
		"max_iter": s.maxIter,
		"seed":     s.seed,
	}
}
