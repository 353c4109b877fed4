package ensemble

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/medscreen/diabrisk/core/model"
	diabriskErrors "github.com/medscreen/diabrisk/pkg/errors"
	"github.com/medscreen/diabrisk/tree"
)

// GradientBoostingClassifier fits a stagewise additive model under the
// binomial deviance loss. Each stage grows a shallow regression tree on the
// pseudo-residuals and replaces its leaf means with Newton steps.
type GradientBoostingClassifier struct {
	state *model.StateManager

	// Hyperparameters
	nEstimators    int
	learningRate   float64
	maxDepth       int
	minSamplesLeaf int

	trees      []*tree.RegressionTree
	initScore_ float64
	classes_   []int
	nFeatures_ int
}

// GradientBoostingOption is a functional option for GradientBoostingClassifier.
type GradientBoostingOption func(*GradientBoostingClassifier)

// NewGradientBoostingClassifier creates a booster of 100 depth-3 trees with
// a 0.1 learning rate.
func NewGradientBoostingClassifier(opts ...GradientBoostingOption) *GradientBoostingClassifier {
	gb := &GradientBoostingClassifier{
		state:          model.NewStateManager(),
		nEstimators:    100,
		learningRate:   0.1,
		maxDepth:       3,
		minSamplesLeaf: 1,
	}
	for _, opt := range opts {
		opt(gb)
	}
	return gb
}

// WithGBNEstimators sets the number of boosting stages.
func WithGBNEstimators(n int) GradientBoostingOption {
	return func(gb *GradientBoostingClassifier) {
		gb.nEstimators = n
	}
}

// WithGBLearningRate sets the shrinkage applied to each stage.
func WithGBLearningRate(rate float64) GradientBoostingOption {
	return func(gb *GradientBoostingClassifier) {
		gb.learningRate = rate
	}
}

// WithGBMaxDepth sets the depth of each stage tree.
func WithGBMaxDepth(depth int) GradientBoostingOption {
	return func(gb *GradientBoostingClassifier) {
		gb.maxDepth = depth
	}
}

// WithGBMinSamplesLeaf sets the smallest allowed leaf per stage tree.
func WithGBMinSamplesLeaf(n int) GradientBoostingOption {
	return func(gb *GradientBoostingClassifier) {
		gb.minSamplesLeaf = n
	}
}

// Fit runs the boosting iterations on X and 0/1 labels y.
func (gb *GradientBoostingClassifier) Fit(X, y mat.Matrix) error {
	nSamples, nFeatures := X.Dims()
	yRows, yCols := y.Dims()
	if nSamples != yRows {
		return diabriskErrors.NewDimensionError("GradientBoostingClassifier.Fit", nSamples, yRows, 0)
	}
	if yCols != 1 {
		return diabriskErrors.NewDimensionError("GradientBoostingClassifier.Fit", 1, yCols, 1)
	}
	if gb.nEstimators < 1 {
		return diabriskErrors.NewValidationError("n_estimators", "must be >= 1", gb.nEstimators)
	}
	if gb.learningRate <= 0 {
		return diabriskErrors.NewValidationError("learning_rate", "must be > 0", gb.learningRate)
	}

	labels := make([]float64, nSamples)
	nPos := 0
	for i := 0; i < nSamples; i++ {
		v := y.At(i, 0)
		if v != 0 && v != 1 {
			return diabriskErrors.NewValidationError("y", "labels must be 0 or 1", v)
		}
		labels[i] = v
		if v == 1 {
			nPos++
		}
	}
	if nPos == 0 || nPos == nSamples {
		return diabriskErrors.NewModelError("GradientBoostingClassifier", "training set has a single class", diabriskErrors.ErrEmptyData)
	}

	// F0 is the log odds of the positive class.
	prior := float64(nPos) / float64(nSamples)
	gb.initScore_ = math.Log(prior / (1.0 - prior))
	gb.classes_ = []int{0, 1}
	gb.nFeatures_ = nFeatures
	gb.trees = make([]*tree.RegressionTree, 0, gb.nEstimators)

	score := make([]float64, nSamples)
	for i := range score {
		score[i] = gb.initScore_
	}

	residual := make([]float64, nSamples)
	prob := make([]float64, nSamples)

	for stage := 0; stage < gb.nEstimators; stage++ {
		for i := 0; i < nSamples; i++ {
			prob[i] = sigmoid(score[i])
			residual[i] = labels[i] - prob[i]
		}

		rt := tree.NewRegressionTree(gb.maxDepth, gb.minSamplesLeaf)
		if err := rt.Fit(X, residual); err != nil {
			return err
		}

		// Newton leaf value: sum(r) / sum(p(1-p)) over the leaf's rows.
		for leafID, rows := range rt.LeafSamples() {
			num, den := 0.0, 0.0
			for _, idx := range rows {
				num += residual[idx]
				den += prob[idx] * (1.0 - prob[idx])
			}
			value := 0.0
			if den > 1e-12 {
				value = num / den
			}
			rt.SetLeafValue(leafID, value)
		}

		update, err := rt.Predict(X)
		if err != nil {
			return err
		}
		for i := 0; i < nSamples; i++ {
			score[i] += gb.learningRate * update[i]
		}

		gb.trees = append(gb.trees, rt)
	}

	gb.state.SetDimensions(nFeatures, nSamples)
	gb.state.SetFitted()
	return nil
}

// decisionFunction accumulates the staged scores for every row of X.
func (gb *GradientBoostingClassifier) decisionFunction(X mat.Matrix) ([]float64, error) {
	nSamples, nFeatures := X.Dims()
	if nFeatures != gb.nFeatures_ {
		return nil, diabriskErrors.NewDimensionError("GradientBoostingClassifier", gb.nFeatures_, nFeatures, 1)
	}

	score := make([]float64, nSamples)
	for i := range score {
		score[i] = gb.initScore_
	}
	for _, rt := range gb.trees {
		update, err := rt.Predict(X)
		if err != nil {
			return nil, err
		}
		for i := range score {
			score[i] += gb.learningRate * update[i]
		}
	}
	return score, nil
}

// PredictProba returns an n x 2 matrix of class probabilities.
func (gb *GradientBoostingClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	if err := gb.state.RequireFitted("GradientBoostingClassifier", "PredictProba"); err != nil {
		return nil, err
	}

	score, err := gb.decisionFunction(X)
	if err != nil {
		return nil, err
	}

	proba := mat.NewDense(len(score), 2, nil)
	for i, s := range score {
		p := sigmoid(s)
		proba.Set(i, 0, 1-p)
		proba.Set(i, 1, p)
	}
	return proba, nil
}

// Predict returns hard 0/1 labels as an n x 1 matrix.
func (gb *GradientBoostingClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	proba, err := gb.PredictProba(X)
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
func (gb *GradientBoostingClassifier) Classes() []int {
	return append([]int(nil), gb.classes_...)
}

// NStages returns the number of fitted boosting stages.
func (gb *GradientBoostingClassifier) NStages() int {
	return len(gb.trees)
}

// GetParams returns the hyperparameters.
func (gb *GradientBoostingClassifier) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"n_estimators":     gb.nEstimators,
		"learning_rate":    gb.learningRate,
		"max_depth":        gb.maxDepth,
		"min_samples_leaf": gb.minSamplesLeaf,
	}
}

func sigmoid(z float64) float64 {
	if z >= 0 {
		ez := math.Exp(-z)
		return 1.0 / (1.0 + ez)
	}
	ez := math.Exp(z)
	return ez / (1.0 + ez)
}
