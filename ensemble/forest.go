// Package ensemble implements the tree ensembles entering the model
// comparison: a bagged random forest and a gradient boosted trees
// classifier, both built on the CART trees in the tree package.
package ensemble

import (
	"math"
	"math/rand/v2"
	"sync"

	"gonum.org/v1/gonum/mat"

	"github.com/medscreen/diabrisk/core/model"
	diabriskErrors "github.com/medscreen/diabrisk/pkg/errors"
	"github.com/medscreen/diabrisk/tree"
)

// RandomForestClassifier averages the class probabilities of bootstrap
// trees, each splitting on a random feature subset.
type RandomForestClassifier struct {
	state *model.StateManager

	// Hyperparameters
	nEstimators    int
	maxDepth       int
	minSamplesLeaf int
	maxFeatures    int // 0 means sqrt(nFeatures)
	seed           uint64

	trees      []*tree.DecisionTreeClassifier
	classes_   []int
	nFeatures_ int
}

// RandomForestOption is a functional option for RandomForestClassifier.
type RandomForestOption func(*RandomForestClassifier)

// NewRandomForestClassifier creates a forest of 100 unlimited-depth trees.
func NewRandomForestClassifier(opts ...RandomForestOption) *RandomForestClassifier {
	rf := &RandomForestClassifier{
		state:          model.NewStateManager(),
		nEstimators:    100,
		minSamplesLeaf: 1,
	}
	for _, opt := range opts {
		opt(rf)
	}
	return rf
}

// WithRFNEstimators sets the number of trees.
func WithRFNEstimators(n int) RandomForestOption {
	return func(rf *RandomForestClassifier) {
		rf.nEstimators = n
	}
}

// WithRFMaxDepth caps each tree's depth. Zero leaves it unlimited.
func WithRFMaxDepth(depth int) RandomForestOption {
	return func(rf *RandomForestClassifier) {
		rf.maxDepth = depth
	}
}

// WithRFMinSamplesLeaf sets the smallest allowed leaf per tree.
func WithRFMinSamplesLeaf(n int) RandomForestOption {
	return func(rf *RandomForestClassifier) {
		rf.minSamplesLeaf = n
	}
}

// WithRFMaxFeatures sets how many features each split considers. Zero
// defaults to sqrt of the feature count.
func WithRFMaxFeatures(n int) RandomForestOption {
	return func(rf *RandomForestClassifier) {
		rf.maxFeatures = n
	}
}

// WithRFSeed seeds the bootstrap and feature sampling.
func WithRFSeed(seed uint64) RandomForestOption {
	return func(rf *RandomForestClassifier) {
		rf.seed = seed
	}
}

// Fit grows the forest. Trees train concurrently; the bootstrap sample of
// each tree is drawn up front so the result does not depend on scheduling.
func (rf *RandomForestClassifier) Fit(X, y mat.Matrix) error {
	nSamples, nFeatures := X.Dims()
	yRows, yCols := y.Dims()
	if nSamples != yRows {
		return diabriskErrors.NewDimensionError("RandomForestClassifier.Fit", nSamples, yRows, 0)
	}
	if yCols != 1 {
		return diabriskErrors.NewDimensionError("RandomForestClassifier.Fit", 1, yCols, 1)
	}
	if rf.nEstimators < 1 {
		return diabriskErrors.NewValidationError("n_estimators", "must be >= 1", rf.nEstimators)
	}

	mtry := rf.maxFeatures
	if mtry <= 0 {
		mtry = int(math.Sqrt(float64(nFeatures)))
		if mtry < 1 {
			mtry = 1
		}
	}

	rng := rand.New(rand.NewPCG(rf.seed, rf.seed))
	bootstraps := make([][]int, rf.nEstimators)
	for t := range bootstraps {
		sample := make([]int, nSamples)
		for i := range sample {
			sample[i] = rng.IntN(nSamples)
		}
		bootstraps[t] = sample
	}

	rf.trees = make([]*tree.DecisionTreeClassifier, rf.nEstimators)
	errs := make([]error, rf.nEstimators)

	var wg sync.WaitGroup
	for t := 0; t < rf.nEstimators; t++ {
		wg.Add(1)
		go func(t int) {
			defer wg.Done()
			bx, by := subsample(X, y, bootstraps[t])
			dt := tree.NewDecisionTreeClassifier(
				tree.WithMaxDepth(rf.maxDepth),
				tree.WithMinSamplesLeaf(rf.minSamplesLeaf),
				tree.WithMaxFeatures(mtry),
				tree.WithTreeSeed(rf.seed+uint64(t)+1),
			)
			errs[t] = dt.Fit(bx, by)
			rf.trees[t] = dt
		}(t)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return err
		}
	}

	// Bootstraps can miss a class entirely in pathological cases; take the
	// label set from the full training vector instead.
	rf.classes_ = fullClasses(y)
	rf.nFeatures_ = nFeatures
	rf.state.SetDimensions(nFeatures, nSamples)
	rf.state.SetFitted()
	return nil
}

// PredictProba averages the per-tree class probabilities.
func (rf *RandomForestClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	if err := rf.state.RequireFitted("RandomForestClassifier", "PredictProba"); err != nil {
		return nil, err
	}
	nSamples, nFeatures := X.Dims()
	if nFeatures != rf.nFeatures_ {
		return nil, diabriskErrors.NewDimensionError("RandomForestClassifier.PredictProba", rf.nFeatures_, nFeatures, 1)
	}

	nClasses := len(rf.classes_)
	classCol := make(map[int]int, nClasses)
	for ci, c := range rf.classes_ {
		classCol[c] = ci
	}

	sum := mat.NewDense(nSamples, nClasses, nil)
	for _, dt := range rf.trees {
		proba, err := dt.PredictProba(X)
		if err != nil {
			return nil, err
		}
		treeClasses := dt.Classes()
		for i := 0; i < nSamples; i++ {
			for tc, c := range treeClasses {
				col := classCol[c]
				sum.Set(i, col, sum.At(i, col)+proba.At(i, tc))
			}
		}
	}

	sum.Scale(1.0/float64(len(rf.trees)), sum)
	return sum, nil
}

// Predict returns the class with the largest averaged probability.
func (rf *RandomForestClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	proba, err := rf.PredictProba(X)
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
		out.Set(i, 0, float64(rf.classes_[best]))
	}
	return out, nil
}

// Classes returns the class labels in probability column order.
func (rf *RandomForestClassifier) Classes() []int {
	return append([]int(nil), rf.classes_...)
}

// GetParams returns the hyperparameters.
func (rf *RandomForestClassifier) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"n_estimators":     rf.nEstimators,
		"max_depth":        rf.maxDepth,
		"min_samples_leaf": rf.minSamplesLeaf,
		"max_features":     rf.maxFeatures,
		"seed":             rf.seed,
	}
}

func subsample(X, y mat.Matrix, indices []int) (*mat.Dense, *mat.Dense) {
	_, nFeatures := X.Dims()
	bx := mat.NewDense(len(indices), nFeatures, nil)
	by := mat.NewDense(len(indices), 1, nil)
	for i, idx := range indices {
		for j := 0; j < nFeatures; j++ {
			bx.Set(i, j, X.At(idx, j))
		}
		by.Set(i, 0, y.At(idx, 0))
	}
	return bx, by
}

func fullClasses(y mat.Matrix) []int {
	rows, _ := y.Dims()
	seen := make(map[int]bool)
	for i := 0; i < rows; i++ {
		seen[int(y.At(i, 0))] = true
	}
	classes := make([]int, 0, len(seen))
	for c := range seen {
		classes = append(classes, c)
	}
	for i := 1; i < len(classes); i++ {
		for j := i; j > 0 && classes[j] < classes[j-1]; j-- {
			classes[j], classes[j-1] = classes[j-1], classes[j]
		}
	}
	return classes
}
