// Package neighbors implements a brute-force k-nearest-neighbors
// classifier. On a few tens of thousands of rows with a dozen features
// exact search is fast enough that no index structure is needed.
package neighbors

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/medscreen/diabrisk/core/model"
	diabriskErrors "github.com/medscreen/diabrisk/pkg/errors"
)

const (
	// WeightsUniform gives every neighbor an equal vote.
	WeightsUniform = "uniform"
	// WeightsDistance weights each vote by inverse distance.
	WeightsDistance = "distance"
)

// KNeighborsClassifier predicts by majority vote among the k training rows
// closest in Euclidean distance.
type KNeighborsClassifier struct {
	state *model.StateManager

	// Hyperparameters
	nNeighbors int
	weights    string

	// Fitted data
	trainX     *mat.Dense
	trainY     []int
	classes_   []int
	nFeatures_ int
}

// KNeighborsOption is a functional option for KNeighborsClassifier.
type KNeighborsOption func(*KNeighborsClassifier)

// NewKNeighborsClassifier creates a uniform-weight classifier with k=5.
func NewKNeighborsClassifier(opts ...KNeighborsOption) *KNeighborsClassifier {
	knn := &KNeighborsClassifier{
		state:      model.NewStateManager(),
		nNeighbors: 5,
		weights:    WeightsUniform,
	}
	for _, opt := range opts {
		opt(knn)
	}
	return knn
}

// WithNNeighbors sets the number of neighbors.
func WithNNeighbors(k int) KNeighborsOption {
	return func(knn *KNeighborsClassifier) {
		knn.nNeighbors = k
	}
}

// WithWeights sets the vote weighting ("uniform" or "distance").
func WithWeights(weights string) KNeighborsOption {
	return func(knn *KNeighborsClassifier) {
		knn.weights = weights
	}
}

// Fit stores the training data.
func (knn *KNeighborsClassifier) Fit(X, y mat.Matrix) error {
	nSamples, nFeatures := X.Dims()
	yRows, yCols := y.Dims()
	if nSamples != yRows {
		return diabriskErrors.NewDimensionError("KNeighborsClassifier.Fit", nSamples, yRows, 0)
	}
	if yCols != 1 {
		return diabriskErrors.NewDimensionError("KNeighborsClassifier.Fit", 1, yCols, 1)
	}
	if knn.nNeighbors < 1 {
		return diabriskErrors.NewValidationError("n_neighbors", "must be >= 1", knn.nNeighbors)
	}
	if knn.nNeighbors > nSamples {
		return diabriskErrors.NewValidationError("n_neighbors", "cannot exceed the number of samples", knn.nNeighbors)
	}
	switch knn.weights {
	case WeightsUniform, WeightsDistance:
	default:
		return diabriskErrors.NewValidationError("weights", "must be uniform or distance", knn.weights)
	}

	knn.trainX = mat.DenseCopyOf(X)
	knn.trainY = make([]int, nSamples)
	seen := make(map[int]bool)
	for i := 0; i < nSamples; i++ {
		label := int(y.At(i, 0))
		knn.trainY[i] = label
		seen[label] = true
	}

	knn.classes_ = make([]int, 0, len(seen))
	for c := range seen {
		knn.classes_ = append(knn.classes_, c)
	}
	sort.Ints(knn.classes_)
	knn.nFeatures_ = nFeatures

	knn.state.SetDimensions(nFeatures, nSamples)
	knn.state.SetFitted()
	return nil
}

// neighbor pairs a training row with its distance to a query point.
type neighbor struct {
	index    int
	distance float64
}

// nearest returns the k nearest training rows to query row i of X.
func (knn *KNeighborsClassifier) nearest(X mat.Matrix, i int) []neighbor {
	nTrain, _ := knn.trainX.Dims()
	all := make([]neighbor, nTrain)
	for t := 0; t < nTrain; t++ {
		d := 0.0
		for j := 0; j < knn.nFeatures_; j++ {
			diff := X.At(i, j) - knn.trainX.At(t, j)
			d += diff * diff
		}
		all[t] = neighbor{index: t, distance: math.Sqrt(d)}
	}
	sort.Slice(all, func(a, b int) bool {
		return all[a].distance < all[b].distance
	})
	return all[:knn.nNeighbors]
}

// PredictProba returns per-class vote fractions, one column per class.
func (knn *KNeighborsClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	if err := knn.state.RequireFitted("KNeighborsClassifier", "PredictProba"); err != nil {
		return nil, err
	}
	nSamples, nFeatures := X.Dims()
	if nFeatures != knn.nFeatures_ {
		return nil, diabriskErrors.NewDimensionError("KNeighborsClassifier.PredictProba", knn.nFeatures_, nFeatures, 1)
	}

	classIdx := make(map[int]int, len(knn.classes_))
	for ci, c := range knn.classes_ {
		classIdx[c] = ci
	}

	proba := mat.NewDense(nSamples, len(knn.classes_), nil)
	for i := 0; i < nSamples; i++ {
		votes := make([]float64, len(knn.classes_))
		total := 0.0
		for _, nb := range knn.nearest(X, i) {
			w := 1.0
			if knn.weights == WeightsDistance {
				// An exact match dominates the vote.
				w = 1.0 / (nb.distance + 1e-10)
			}
			votes[classIdx[knn.trainY[nb.index]]] += w
			total += w
		}
		for ci := range votes {
			proba.Set(i, ci, votes[ci]/total)
		}
	}
	return proba, nil
}

// Predict returns the majority-vote class per row.
func (knn *KNeighborsClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	proba, err := knn.PredictProba(X)
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
		out.Set(i, 0, float64(knn.classes_[best]))
	}
	return out, nil
}

// Classes returns the class labels in probability column order.
func (knn *KNeighborsClassifier) Classes() []int {
	return append([]int(nil), knn.classes_...)
}

// GetParams returns the hyperparameters.
func (knn *KNeighborsClassifier) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"n_neighbors": knn.nNeighbors,
		"weights":     knn.weights,
	}
}
