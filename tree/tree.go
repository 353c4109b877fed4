// Package tree implements the CART trees backing the ensemble models: a
// classification tree with optional per-split feature subsampling and a
// regression tree used as the gradient boosting base learner.
package tree

import (
	"math"
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/medscreen/diabrisk/core/model"
	diabriskErrors "github.com/medscreen/diabrisk/pkg/errors"
)

const (
	// CriterionGini selects Gini impurity splits.
	CriterionGini = "gini"
	// CriterionEntropy selects information-gain splits.
	CriterionEntropy = "entropy"
)

// node is one node of a fitted tree. Internal nodes route on
// feature <= threshold; leaves carry class counts (classification) or a
// response value (regression).
type node struct {
	isLeaf      bool
	feature     int
	threshold   float64
	left        *node
	right       *node
	classCounts []int
	value       float64
	nSamples    int
}

// DecisionTreeClassifier is a binary CART classifier. With MaxFeatures set
// below the feature count, each split considers a random feature subset,
// which is how the random forest decorrelates its trees.
type DecisionTreeClassifier struct {
	state *model.StateManager

	// Hyperparameters
	criterion      string
	maxDepth       int // 0 means unlimited
	minSamplesLeaf int
	maxFeatures    int // 0 means all features
	seed           uint64

	root       *node
	classes_   []int
	nClasses_  int
	nFeatures_ int
	rng        *rand.Rand
}

// DecisionTreeOption is a functional option for DecisionTreeClassifier.
type DecisionTreeOption func(*DecisionTreeClassifier)

// NewDecisionTreeClassifier creates an unlimited-depth gini tree.
func NewDecisionTreeClassifier(opts ...DecisionTreeOption) *DecisionTreeClassifier {
	dt := &DecisionTreeClassifier{
		state:          model.NewStateManager(),
		criterion:      CriterionGini,
		minSamplesLeaf: 1,
	}
	for _, opt := range opts {
		opt(dt)
	}
	return dt
}

// WithCriterion sets the split criterion ("gini" or "entropy").
func WithCriterion(criterion string) DecisionTreeOption {
	return func(dt *DecisionTreeClassifier) {
		dt.criterion = criterion
	}
}

// WithMaxDepth caps the tree depth. Zero leaves it unlimited.
func WithMaxDepth(depth int) DecisionTreeOption {
	return func(dt *DecisionTreeClassifier) {
		dt.maxDepth = depth
	}
}

// WithMinSamplesLeaf sets the smallest allowed leaf.
func WithMinSamplesLeaf(n int) DecisionTreeOption {
	return func(dt *DecisionTreeClassifier) {
		dt.minSamplesLeaf = n
	}
}

// WithMaxFeatures limits how many features each split may consider.
func WithMaxFeatures(n int) DecisionTreeOption {
	return func(dt *DecisionTreeClassifier) {
		dt.maxFeatures = n
	}
}

// WithTreeSeed seeds the feature subsampling.
func WithTreeSeed(seed uint64) DecisionTreeOption {
	return func(dt *DecisionTreeClassifier) {
		dt.seed = seed
	}
}

// Fit grows the tree on X and integer labels y (n x 1).
func (dt *DecisionTreeClassifier) Fit(X, y mat.Matrix) error {
	nSamples, nFeatures := X.Dims()
	yRows, yCols := y.Dims()
	if nSamples != yRows {
		return diabriskErrors.NewDimensionError("DecisionTreeClassifier.Fit", nSamples, yRows, 0)
	}
	if yCols != 1 {
		return diabriskErrors.NewDimensionError("DecisionTreeClassifier.Fit", 1, yCols, 1)
	}
	if nSamples == 0 {
		return diabriskErrors.NewModelError("DecisionTreeClassifier", "empty training set", diabriskErrors.ErrEmptyData)
	}

	dt.classes_ = extractClasses(y)
	dt.nClasses_ = len(dt.classes_)
	dt.nFeatures_ = nFeatures
	dt.rng = rand.New(rand.NewPCG(dt.seed, dt.seed))

	classIdx := make(map[int]int, dt.nClasses_)
	for i, c := range dt.classes_ {
		classIdx[c] = i
	}
	yIdx := make([]int, nSamples)
	for i := 0; i < nSamples; i++ {
		yIdx[i] = classIdx[int(y.At(i, 0))]
	}

	indices := make([]int, nSamples)
	for i := range indices {
		indices[i] = i
	}
	dt.root = dt.grow(X, yIdx, indices, 0)

	dt.state.SetDimensions(nFeatures, nSamples)
	dt.state.SetFitted()
	return nil
}

// grow recursively builds the subtree over the given row indices.
func (dt *DecisionTreeClassifier) grow(X mat.Matrix, yIdx []int, indices []int, depth int) *node {
	counts := make([]int, dt.nClasses_)
	for _, idx := range indices {
		counts[yIdx[idx]]++
	}
	n := &node{classCounts: counts, nSamples: len(indices)}

	impurity := dt.impurity(counts, len(indices))
	if impurity == 0 ||
		len(indices) < 2*dt.minSamplesLeaf ||
		(dt.maxDepth > 0 && depth >= dt.maxDepth) {
		n.isLeaf = true
		return n
	}

	feature, threshold, gain := dt.bestSplit(X, yIdx, indices, impurity)
	if feature < 0 || gain <= 0 {
		n.isLeaf = true
		return n
	}

	var left, right []int
	for _, idx := range indices {
		if X.At(idx, feature) <= threshold {
			left = append(left, idx)
		} else {
			right = append(right, idx)
		}
	}
	if len(left) < dt.minSamplesLeaf || len(right) < dt.minSamplesLeaf {
		n.isLeaf = true
		return n
	}

	n.feature = feature
	n.threshold = threshold
	n.left = dt.grow(X, yIdx, left, depth+1)
	n.right = dt.grow(X, yIdx, right, depth+1)
	return n
}

// bestSplit scans a (possibly subsampled) feature set for the split with
// the largest impurity decrease.
func (dt *DecisionTreeClassifier) bestSplit(X mat.Matrix, yIdx []int, indices []int, parentImpurity float64) (int, float64, float64) {
	features := dt.candidateFeatures()

	bestFeature := -1
	bestThreshold := 0.0
	bestGain := 0.0

	order := make([]int, len(indices))
	leftCounts := make([]int, dt.nClasses_)
	rightCounts := make([]int, dt.nClasses_)
	total := len(indices)

	for _, feature := range features {
		copy(order, indices)
		sort.Slice(order, func(i, j int) bool {
			return X.At(order[i], feature) < X.At(order[j], feature)
		})

		for i := range leftCounts {
			leftCounts[i] = 0
		}
		for i := range rightCounts {
			rightCounts[i] = 0
		}
		for _, idx := range order {
			rightCounts[yIdx[idx]]++
		}

		// Sweep the sorted rows left to right, moving one sample at a time
		// from the right partition to the left.
		for i := 0; i < total-1; i++ {
			c := yIdx[order[i]]
			leftCounts[c]++
			rightCounts[c]--

			v, next := X.At(order[i], feature), X.At(order[i+1], feature)
			if v == next {
				continue
			}
			nLeft := i + 1
			nRight := total - nLeft
			if nLeft < dt.minSamplesLeaf || nRight < dt.minSamplesLeaf {
				continue
			}

			weighted := (float64(nLeft)*dt.impurity(leftCounts, nLeft) +
				float64(nRight)*dt.impurity(rightCounts, nRight)) / float64(total)
			gain := parentImpurity - weighted
			if gain > bestGain {
				bestGain = gain
				bestFeature = feature
				bestThreshold = (v + next) / 2.0
			}
		}
	}
	return bestFeature, bestThreshold, bestGain
}

// candidateFeatures returns the features a split may consider, sampling
// maxFeatures of them without replacement when set.
func (dt *DecisionTreeClassifier) candidateFeatures() []int {
	all := make([]int, dt.nFeatures_)
	for i := range all {
		all[i] = i
	}
	if dt.maxFeatures <= 0 || dt.maxFeatures >= dt.nFeatures_ {
		return all
	}
	dt.rng.Shuffle(len(all), func(i, j int) {
		all[i], all[j] = all[j], all[i]
	})
	return all[:dt.maxFeatures]
}

func (dt *DecisionTreeClassifier) impurity(counts []int, total int) float64 {
	if total == 0 {
		return 0
	}
	switch dt.criterion {
	case CriterionEntropy:
		entropy := 0.0
		for _, count := range counts {
			if count > 0 {
				p := float64(count) / float64(total)
				entropy -= p * math.Log2(p)
			}
		}
		return entropy
	default:
		sumSquared := 0.0
		for _, count := range counts {
			if count > 0 {
				p := float64(count) / float64(total)
				sumSquared += p * p
			}
		}
		return 1.0 - sumSquared
	}
}

func (dt *DecisionTreeClassifier) leaf(x func(j int) float64) *node {
	n := dt.root
	for !n.isLeaf {
		if x(n.feature) <= n.threshold {
			n = n.left
		} else {
			n = n.right
		}
	}
	return n
}

// Predict returns the majority class of the reached leaf for every row.
func (dt *DecisionTreeClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	proba, err := dt.PredictProba(X)
	if err != nil {
		return nil, err
	}
	n, _ := proba.Dims()
	out := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		best, bestP := 0, proba.At(i, 0)
		for j := 1; j < dt.nClasses_; j++ {
			if proba.At(i, j) > bestP {
				best, bestP = j, proba.At(i, j)
			}
		}
		out.Set(i, 0, float64(dt.classes_[best]))
	}
	return out, nil
}

// PredictProba returns leaf class proportions, one row per sample.
func (dt *DecisionTreeClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	if err := dt.state.RequireFitted("DecisionTreeClassifier", "PredictProba"); err != nil {
		return nil, err
	}
	nSamples, nFeatures := X.Dims()
	if nFeatures != dt.nFeatures_ {
		return nil, diabriskErrors.NewDimensionError("DecisionTreeClassifier.PredictProba", dt.nFeatures_, nFeatures, 1)
	}

	proba := mat.NewDense(nSamples, dt.nClasses_, nil)
	for i := 0; i < nSamples; i++ {
		row := i
		leaf := dt.leaf(func(j int) float64 { return X.At(row, j) })
		total := 0
		for _, count := range leaf.classCounts {
			total += count
		}
		for j := 0; j < dt.nClasses_; j++ {
			if total > 0 {
				proba.Set(i, j, float64(leaf.classCounts[j])/float64(total))
			}
		}
	}
	return proba, nil
}

// Classes returns the class labels in probability column order.
func (dt *DecisionTreeClassifier) Classes() []int {
	return append([]int(nil), dt.classes_...)
}

// Depth returns the depth of the fitted tree.
func (dt *DecisionTreeClassifier) Depth() int {
	return maxDepth(dt.root, 0)
}

// NLeaves returns the number of leaves of the fitted tree.
func (dt *DecisionTreeClassifier) NLeaves() int {
	return countLeaves(dt.root)
}

// GetParams returns the hyperparameters.
func (dt *DecisionTreeClassifier) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"criterion":        dt.criterion,
		"max_depth":        dt.maxDepth,
		"min_samples_leaf": dt.minSamplesLeaf,
		"max_features":     dt.maxFeatures,
		"seed":             dt.seed,
	}
}

func extractClasses(y mat.Matrix) []int {
	rows, _ := y.Dims()
	seen := make(map[int]bool)
	for i := 0; i < rows; i++ {
		seen[int(y.At(i, 0))] = true
	}
	classes := make([]int, 0, len(seen))
	for c := range seen {
		classes = append(classes, c)
	}
	sort.Ints(classes)
	return classes
}

func maxDepth(n *node, depth int) int {
	if n == nil {
		return depth - 1
	}
	if n.isLeaf {
		return depth
	}
	l := maxDepth(n.left, depth+1)
	r := maxDepth(n.right, depth+1)
	if l > r {
		return l
	}
	return r
}

func countLeaves(n *node) int {
	if n == nil {
		return 0
	}
	if n.isLeaf {
		return 1
	}
	return countLeaves(n.left) + countLeaves(n.right)
}
