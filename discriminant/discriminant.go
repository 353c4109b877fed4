// Package discriminant implements Gaussian discriminant analysis: LDA with
// a pooled covariance and QDA with per-class covariances. Both classify by
// the largest posterior under the fitted Gaussians.
package discriminant

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/medscreen/diabrisk/core/model"
	diabriskErrors "github.com/medscreen/diabrisk/pkg/errors"
)

// classGaussian holds the per-class pieces of a fitted discriminant model.
type classGaussian struct {
	label    int
	logPrior float64
	mean     *mat.VecDense
	// chol factors the class covariance (QDA) or the pooled covariance
	// (LDA, shared across classes).
	chol    *mat.Cholesky
	logDet  float64
	nSample int
}

// logDensity evaluates the Gaussian log-density at x up to the shared
// -d/2*log(2pi) constant, which cancels in the posterior.
func (g *classGaussian) logDensity(x *mat.VecDense) float64 {
	d := x.Len()
	diff := mat.NewVecDense(d, nil)
	diff.SubVec(x, g.mean)

	solved := mat.NewVecDense(d, nil)
	// Cholesky solve cannot fail once the factorization succeeded.
	_ = g.chol.SolveVecTo(solved, diff)

	maha := mat.Dot(diff, solved)
	return g.logPrior - 0.5*g.logDet - 0.5*maha
}

// gaussianClassifier is the shared Fit/Predict machinery of LDA and QDA.
type gaussianClassifier struct {
	state      *model.StateManager
	name       string
	pooled     bool
	reg        float64
	gaussians  []classGaussian
	classes_   []int
	nFeatures_ int
}

func (gc *gaussianClassifier) fit(X, y mat.Matrix) error {
	nSamples, nFeatures := X.Dims()
	yRows, yCols := y.Dims()
	if nSamples != yRows {
		return diabriskErrors.NewDimensionError(gc.name+".Fit", nSamples, yRows, 0)
	}
	if yCols != 1 {
		return diabriskErrors.NewDimensionError(gc.name+".Fit", 1, yCols, 1)
	}
	if nSamples == 0 {
		return diabriskErrors.NewModelError(gc.name, "empty training set", diabriskErrors.ErrEmptyData)
	}

	byClass := make(map[int][]int)
	for i := 0; i < nSamples; i++ {
		label := int(y.At(i, 0))
		byClass[label] = append(byClass[label], i)
	}
	gc.classes_ = sortedLabels(byClass)
	gc.nFeatures_ = nFeatures

	if len(gc.classes_) < 2 {
		return diabriskErrors.NewModelError(gc.name, "training set has a single class", diabriskErrors.ErrEmptyData)
	}

	gc.gaussians = make([]classGaussian, len(gc.classes_))
	pooledCov := mat.NewSymDense(nFeatures, nil)

	for ci, label := range gc.classes_ {
		rows := byClass[label]
		g := &gc.gaussians[ci]
		g.label = label
		g.nSample = len(rows)
		g.logPrior = math.Log(float64(len(rows)) / float64(nSamples))
		g.mean = classMean(X, rows, nFeatures)

		cov := scatter(X, rows, g.mean, nFeatures)
		if gc.pooled {
			for i := 0; i < nFeatures; i++ {
				for j := i; j < nFeatures; j++ {
					pooledCov.SetSym(i, j, pooledCov.At(i, j)+cov.At(i, j)*float64(len(rows)-1))
				}
			}
			continue
		}

		chol, logDet, err := gc.factorize(cov)
		if err != nil {
			return err
		}
		g.chol = chol
		g.logDet = logDet
	}

	if gc.pooled {
		denom := float64(nSamples - len(gc.classes_))
		if denom < 1 {
			denom = 1
		}
		for i := 0; i < nFeatures; i++ {
			for j := i; j < nFeatures; j++ {
				pooledCov.SetSym(i, j, pooledCov.At(i, j)/denom)
			}
		}
		chol, logDet, err := gc.factorize(pooledCov)
		if err != nil {
			return err
		}
		for ci := range gc.gaussians {
			gc.gaussians[ci].chol = chol
			gc.gaussians[ci].logDet = logDet
		}
	}

	gc.state.SetDimensions(nFeatures, nSamples)
	gc.state.SetFitted()
	return nil
}

// factorize Cholesky-factors a covariance, optionally ridge-regularized. A
// failed factorization means the covariance is rank deficient; the caller
// surfaces that as a ModelError so the tuning driver drops the model.
func (gc *gaussianClassifier) factorize(cov *mat.SymDense) (*mat.Cholesky, float64, error) {
	d := cov.SymmetricDim()
	work := mat.NewSymDense(d, nil)
	work.CopySym(cov)
	if gc.reg > 0 {
		for i := 0; i < d; i++ {
			work.SetSym(i, i, work.At(i, i)+gc.reg)
		}
	}

	var chol mat.Cholesky
	if ok := chol.Factorize(work); !ok {
		return nil, 0, diabriskErrors.NewModelError(
			gc.name,
			"covariance matrix is rank deficient",
			diabriskErrors.ErrSingularMatrix,
		)
	}
	return &chol, chol.LogDet(), nil
}

func (gc *gaussianClassifier) predictProba(X mat.Matrix) (mat.Matrix, error) {
	if err := gc.state.RequireFitted(gc.name, "PredictProba"); err != nil {
		return nil, err
	}
	nSamples, nFeatures := X.Dims()
	if nFeatures != gc.nFeatures_ {
		return nil, diabriskErrors.NewDimensionError(gc.name+".PredictProba", gc.nFeatures_, nFeatures, 1)
	}

	nClasses := len(gc.classes_)
	proba := mat.NewDense(nSamples, nClasses, nil)
	x := mat.NewVecDense(nFeatures, nil)
	logp := make([]float64, nClasses)

	for i := 0; i < nSamples; i++ {
		for j := 0; j < nFeatures; j++ {
			x.SetVec(j, X.At(i, j))
		}

		maxLog := math.Inf(-1)
		for ci := range gc.gaussians {
			logp[ci] = gc.gaussians[ci].logDensity(x)
			if logp[ci] > maxLog {
				maxLog = logp[ci]
			}
		}

		// Softmax with the max subtracted for stability.
		sum := 0.0
		for ci := range logp {
			logp[ci] = math.Exp(logp[ci] - maxLog)
			sum += logp[ci]
		}
		for ci := range logp {
			proba.Set(i, ci, logp[ci]/sum)
		}
	}
	return proba, nil
}

func (gc *gaussianClassifier) predict(X mat.Matrix) (mat.Matrix, error) {
	proba, err := gc.predictProba(X)
	if err != nil {
		return nil, err
	}
	n, nClasses := proba.Dims()
	out := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		best, bestP := 0, proba.At(i, 0)
		for j := 1; j < nClasses; j++ {
			if proba.At(i, j) > bestP {
				best, bestP = j, proba.At(i, j)
			}
		}
		out.Set(i, 0, float64(gc.classes_[best]))
	}
	return out, nil
}

// LinearDiscriminant is LDA: one pooled covariance shared by all classes.
type LinearDiscriminant struct {
	gaussianClassifier
}

// LinearDiscriminantOption is a functional option for LinearDiscriminant.
type LinearDiscriminantOption func(*LinearDiscriminant)

// WithLDARegularization adds a ridge term to the pooled covariance diagonal.
func WithLDARegularization(reg float64) LinearDiscriminantOption {
	return func(lda *LinearDiscriminant) {
		lda.reg = reg
	}
}

// NewLinearDiscriminant creates an LDA classifier.
func NewLinearDiscriminant(opts ...LinearDiscriminantOption) *LinearDiscriminant {
	lda := &LinearDiscriminant{gaussianClassifier{
		state:  model.NewStateManager(),
		name:   "LinearDiscriminant",
		pooled: true,
	}}
	for _, opt := range opts {
		opt(lda)
	}
	return lda
}

// Fit estimates class means, priors and the pooled covariance.
func (lda *LinearDiscriminant) Fit(X, y mat.Matrix) error {
	return lda.fit(X, y)
}

// Predict returns the class with the largest posterior per row.
func (lda *LinearDiscriminant) Predict(X mat.Matrix) (mat.Matrix, error) {
	return lda.predict(X)
}

// PredictProba returns posterior class probabilities, one column per class.
func (lda *LinearDiscriminant) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	return lda.predictProba(X)
}

// Classes returns the class labels in probability column order.
func (lda *LinearDiscriminant) Classes() []int {
	return append([]int(nil), lda.classes_...)
}

// GetParams returns the hyperparameters.
func (lda *LinearDiscriminant) GetParams() map[string]interface{} {
	return map[string]interface{}{"reg": lda.reg}
}

// QuadraticDiscriminant is QDA: a separate covariance per class. One-hot
// encoded inputs routinely make a class covariance rank deficient, in which
// case Fit returns a ModelError wrapping ErrSingularMatrix.
type QuadraticDiscriminant struct {
	gaussianClassifier
}

// QuadraticDiscriminantOption is a functional option for QuadraticDiscriminant.
type QuadraticDiscriminantOption func(*QuadraticDiscriminant)

// WithQDARegularization adds a ridge term to each class covariance diagonal.
func WithQDARegularization(reg float64) QuadraticDiscriminantOption {
	return func(qda *QuadraticDiscriminant) {
		qda.reg = reg
	}
}

// NewQuadraticDiscriminant creates a QDA classifier.
func NewQuadraticDiscriminant(opts ...QuadraticDiscriminantOption) *QuadraticDiscriminant {
	qda := &QuadraticDiscriminant{gaussianClassifier{
		state: model.NewStateManager(),
		name:  "QuadraticDiscriminant",
	}}
	for _, opt := range opts {
		opt(qda)
	}
	return qda
}

// Fit estimates class means, priors and per-class covariances.
func (qda *QuadraticDiscriminant) Fit(X, y mat.Matrix) error {
	return qda.fit(X, y)
}

// Predict returns the class with the largest posterior per row.
func (qda *QuadraticDiscriminant) Predict(X mat.Matrix) (mat.Matrix, error) {
	return qda.predict(X)
}

// PredictProba returns posterior class probabilities, one column per class.
func (qda *QuadraticDiscriminant) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	return qda.predictProba(X)
}

// Classes returns the class labels in probability column order.
func (qda *QuadraticDiscriminant) Classes() []int {
	return append([]int(nil), qda.classes_...)
}

// GetParams returns the hyperparameters.
func (qda *QuadraticDiscriminant) GetParams() map[string]interface{} {
	return map[string]interface{}{"reg": qda.reg}
}

func sortedLabels(byClass map[int][]int) []int {
	labels := make([]int, 0, len(byClass))
	for label := range byClass {
		labels = append(labels, label)
	}
	for i := 1; i < len(labels); i++ {
		for j := i; j > 0 && labels[j] < labels[j-1]; j-- {
			labels[j], labels[j-1] = labels[j-1], labels[j]
		}
	}
	return labels
}

func classMean(X mat.Matrix, rows []int, nFeatures int) *mat.VecDense {
	mean := mat.NewVecDense(nFeatures, nil)
	for _, idx := range rows {
		for j := 0; j < nFeatures; j++ {
			mean.SetVec(j, mean.AtVec(j)+X.At(idx, j))
		}
	}
	mean.ScaleVec(1.0/float64(len(rows)), mean)
	return mean
}

// scatter computes the sample covariance of the given rows with the n-1
// denominator.
func scatter(X mat.Matrix, rows []int, mean *mat.VecDense, nFeatures int) *mat.SymDense {
	cov := mat.NewSymDense(nFeatures, nil)
	denom := float64(len(rows) - 1)
	if denom < 1 {
		denom = 1
	}
	diff := make([]float64, nFeatures)
	for _, idx := range rows {
		for j := 0; j < nFeatures; j++ {
			diff[j] = X.At(idx, j) - mean.AtVec(j)
		}
		for i := 0; i < nFeatures; i++ {
			for j := i; j < nFeatures; j++ {
				cov.SetSym(i, j, cov.At(i, j)+diff[i]*diff[j]/denom)
			}
		}
	}
	return cov
}
