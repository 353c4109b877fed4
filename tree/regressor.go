package tree

import (
	"sort"

	"gonum.org/v1/gonum/mat"

	diabriskErrors "github.com/medscreen/diabrisk/pkg/errors"
)

// rnode is one node of a regression tree.
type rnode struct {
	isLeaf    bool
	feature   int
	threshold float64
	left      *rnode
	right     *rnode
	value     float64
	leafID    int
}

// RegressionTree is a squared-error CART regressor. It is the base learner
// of the boosted-trees model, which fits it on pseudo-residuals and then
// overwrites the leaf values with Newton steps. LeafSamples exposes the
// training rows per leaf for exactly that purpose.
type RegressionTree struct {
	MaxDepth       int // 0 means unlimited
	MinSamplesLeaf int

	root        *rnode
	nFeatures_  int
	leafSamples [][]int
}

// NewRegressionTree creates a regression tree with the given depth cap.
func NewRegressionTree(maxDepth, minSamplesLeaf int) *RegressionTree {
	if minSamplesLeaf < 1 {
		minSamplesLeaf = 1
	}
	return &RegressionTree{MaxDepth: maxDepth, MinSamplesLeaf: minSamplesLeaf}
}

// Fit grows the tree on X and the target slice.
func (rt *RegressionTree) Fit(X mat.Matrix, targets []float64) error {
	nSamples, nFeatures := X.Dims()
	if nSamples != len(targets) {
		return diabriskErrors.NewDimensionError("RegressionTree.Fit", nSamples, len(targets), 0)
	}
	if nSamples == 0 {
		return diabriskErrors.NewModelError("RegressionTree", "empty training set", diabriskErrors.ErrEmptyData)
	}

	rt.nFeatures_ = nFeatures
	rt.leafSamples = nil

	indices := make([]int, nSamples)
	for i := range indices {
		indices[i] = i
	}
	rt.root = rt.grow(X, targets, indices, 0)
	return nil
}

func (rt *RegressionTree) grow(X mat.Matrix, targets []float64, indices []int, depth int) *rnode {
	sum := 0.0
	for _, idx := range indices {
		sum += targets[idx]
	}
	mean := sum / float64(len(indices))
	n := &rnode{value: mean}

	if len(indices) < 2*rt.MinSamplesLeaf ||
		(rt.MaxDepth > 0 && depth >= rt.MaxDepth) {
		return rt.seal(n, indices)
	}

	feature, threshold, ok := rt.bestSplit(X, targets, indices)
	if !ok {
		return rt.seal(n, indices)
	}

	var left, right []int
	for _, idx := range indices {
		if X.At(idx, feature) <= threshold {
			left = append(left, idx)
		} else {
			right = append(right, idx)
		}
	}
	if len(left) < rt.MinSamplesLeaf || len(right) < rt.MinSamplesLeaf {
		return rt.seal(n, indices)
	}

	n.feature = feature
	n.threshold = threshold
	n.left = rt.grow(X, targets, left, depth+1)
	n.right = rt.grow(X, targets, right, depth+1)
	return n
}

// seal marks the node as a leaf and records its training rows.
func (rt *RegressionTree) seal(n *rnode, indices []int) *rnode {
	n.isLeaf = true
	n.leafID = len(rt.leafSamples)
	rt.leafSamples = append(rt.leafSamples, append([]int(nil), indices...))
	return n
}

// bestSplit picks the split minimizing the weighted sum of squared errors,
// using the running-sum identity SSE = sumSq - sum^2/n per side.
func (rt *RegressionTree) bestSplit(X mat.Matrix, targets []float64, indices []int) (int, float64, bool) {
	total := len(indices)

	totalSum, totalSumSq := 0.0, 0.0
	for _, idx := range indices {
		t := targets[idx]
		totalSum += t
		totalSumSq += t * t
	}
	parentSSE := totalSumSq - totalSum*totalSum/float64(total)

	bestFeature := -1
	bestThreshold := 0.0
	bestSSE := parentSSE

	order := make([]int, total)
	for feature := 0; feature < rt.nFeatures_; feature++ {
		copy(order, indices)
		sort.Slice(order, func(i, j int) bool {
			return X.At(order[i], feature) < X.At(order[j], feature)
		})

		leftSum, leftSumSq := 0.0, 0.0
		for i := 0; i < total-1; i++ {
			t := targets[order[i]]
			leftSum += t
			leftSumSq += t * t

			v, next := X.At(order[i], feature), X.At(order[i+1], feature)
			if v == next {
				continue
			}
			nLeft := i + 1
			nRight := total - nLeft
			if nLeft < rt.MinSamplesLeaf || nRight < rt.MinSamplesLeaf {
				continue
			}

			rightSum := totalSum - leftSum
			rightSumSq := totalSumSq - leftSumSq
			sse := (leftSumSq - leftSum*leftSum/float64(nLeft)) +
				(rightSumSq - rightSum*rightSum/float64(nRight))
			if sse < bestSSE {
				bestSSE = sse
				bestFeature = feature
				bestThreshold = (v + next) / 2.0
			}
		}
	}

	return bestFeature, bestThreshold, bestFeature >= 0
}

// LeafSamples returns the training row indices per leaf.
func (rt *RegressionTree) LeafSamples() [][]int {
	return rt.leafSamples
}

// SetLeafValue overwrites the value of one leaf.
func (rt *RegressionTree) SetLeafValue(leafID int, value float64) {
	rt.setLeafValue(rt.root, leafID, value)
}

func (rt *RegressionTree) setLeafValue(n *rnode, leafID int, value float64) bool {
	if n == nil {
		return false
	}
	if n.isLeaf {
		if n.leafID == leafID {
			n.value = value
			return true
		}
		return false
	}
	return rt.setLeafValue(n.left, leafID, value) || rt.setLeafValue(n.right, leafID, value)
}

// Predict returns the reached leaf value for every row of X.
func (rt *RegressionTree) Predict(X mat.Matrix) ([]float64, error) {
	if rt.root == nil {
		return nil, diabriskErrors.NewNotFittedError("RegressionTree", "Predict")
	}
	nSamples, nFeatures := X.Dims()
	if nFeatures != rt.nFeatures_ {
		return nil, diabriskErrors.NewDimensionError("RegressionTree.Predict", rt.nFeatures_, nFeatures, 1)
	}

	out := make([]float64, nSamples)
	for i := 0; i < nSamples; i++ {
		n := rt.root
		for !n.isLeaf {
			if X.At(i, n.feature) <= n.threshold {
				n = n.left
			} else {
				n = n.right
			}
		}
		out[i] = n.value
	}
	return out, nil
}
