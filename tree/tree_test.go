package tree

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"

	diabriskErrors "github.com/medscreen/diabrisk/pkg/errors"
)

// thresholdData builds a 1D dataset split cleanly at x = 5.
func thresholdData() (*mat.Dense, *mat.Dense) {
	X := mat.NewDense(8, 1, []float64{0, 1, 2, 3, 7, 8, 9, 10})
	y := mat.NewDense(8, 1, []float64{0, 0, 0, 0, 1, 1, 1, 1})
	return X, y
}

// xorData is inseparable by a single split but solved at depth 2.
func xorData() (*mat.Dense, *mat.Dense) {
	X := mat.NewDense(8, 2, []float64{
		0, 0,
		0.1, 0.1,
		1, 1,
		0.9, 0.9,
		0, 1,
		0.1, 0.9,
		1, 0,
		0.9, 0.1,
	})
	y := mat.NewDense(8, 1, []float64{0, 0, 0, 0, 1, 1, 1, 1})
	return X, y
}

func TestDecisionTreeSingleSplit(t *testing.T) {
	X, y := thresholdData()

	dt := NewDecisionTreeClassifier()
	if err := dt.Fit(X, y); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}

	if dt.Depth() != 1 {
		t.Errorf("clean threshold data should need depth 1, got %d", dt.Depth())
	}
	if dt.NLeaves() != 2 {
		t.Errorf("expected 2 leaves, got %d", dt.NLeaves())
	}

	pred, err := dt.Predict(mat.NewDense(2, 1, []float64{1.5, 8.5}))
	if err != nil {
		t.Fatalf("Predict failed: %v", err)
	}
	if pred.At(0, 0) != 0 || pred.At(1, 0) != 1 {
		t.Errorf("unexpected predictions: %f, %f", pred.At(0, 0), pred.At(1, 0))
	}
}

func TestDecisionTreeSolvesXOR(t *testing.T) {
	X, y := xorData()

	for _, criterion := range []string{CriterionGini, CriterionEntropy} {
		dt := NewDecisionTreeClassifier(WithCriterion(criterion))
		if err := dt.Fit(X, y); err != nil {
			t.Fatalf("%s: Fit failed: %v", criterion, err)
		}
		pred, err := dt.Predict(X)
		if err != nil {
			t.Fatalf("%s: Predict failed: %v", criterion, err)
		}
		n, _ := y.Dims()
		for i := 0; i < n; i++ {
			if pred.At(i, 0) != y.At(i, 0) {
				t.Errorf("%s: row %d predicted %f, want %f", criterion, i, pred.At(i, 0), y.At(i, 0))
			}
		}
	}
}

func TestDecisionTreeMaxDepthCapsTree(t *testing.T) {
	X, y := xorData()

	dt := NewDecisionTreeClassifier(WithMaxDepth(1))
	if err := dt.Fit(X, y); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	if dt.Depth() > 1 {
		t.Errorf("depth cap ignored: depth %d", dt.Depth())
	}
}

func TestDecisionTreeMinSamplesLeaf(t *testing.T) {
	X, y := thresholdData()

	dt := NewDecisionTreeClassifier(WithMinSamplesLeaf(4))
	if err := dt.Fit(X, y); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	// The clean split leaves exactly 4 per side, so it is still allowed.
	if dt.NLeaves() != 2 {
		t.Errorf("expected 2 leaves, got %d", dt.NLeaves())
	}

	dt = NewDecisionTreeClassifier(WithMinSamplesLeaf(5))
	if err := dt.Fit(X, y); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	if dt.NLeaves() != 1 {
		t.Errorf("min leaf 5 over 8 rows must yield a stump, got %d leaves", dt.NLeaves())
	}
}

func TestDecisionTreeLeafProportions(t *testing.T) {
	// A mixed leaf: depth 0 forces everything into the root, which holds
	// 3 negatives and 1 positive.
	X := mat.NewDense(4, 1, []float64{0, 1, 2, 3})
	y := mat.NewDense(4, 1, []float64{0, 0, 0, 1})

	dt := NewDecisionTreeClassifier(WithMinSamplesLeaf(4))
	if err := dt.Fit(X, y); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}

	proba, err := dt.PredictProba(mat.NewDense(1, 1, []float64{1.5}))
	if err != nil {
		t.Fatalf("PredictProba failed: %v", err)
	}
	if math.Abs(proba.At(0, 0)-0.75) > 1e-9 {
		t.Errorf("expected P(0) = 0.75, got %f", proba.At(0, 0))
	}
	if math.Abs(proba.At(0, 1)-0.25) > 1e-9 {
		t.Errorf("expected P(1) = 0.25, got %f", proba.At(0, 1))
	}
}

func TestDecisionTreeDeterministicUnderSeed(t *testing.T) {
	X, y := xorData()

	a := NewDecisionTreeClassifier(WithMaxFeatures(1), WithTreeSeed(7))
	b := NewDecisionTreeClassifier(WithMaxFeatures(1), WithTreeSeed(7))
	if err := a.Fit(X, y); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	if err := b.Fit(X, y); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}

	pa, err := a.PredictProba(X)
	if err != nil {
		t.Fatalf("PredictProba failed: %v", err)
	}
	pb, err := b.PredictProba(X)
	if err != nil {
		t.Fatalf("PredictProba failed: %v", err)
	}
	if !mat.EqualApprox(pa, pb, 1e-12) {
		t.Error("identically seeded trees disagree")
	}
}

func TestDecisionTreeNotFitted(t *testing.T) {
	dt := NewDecisionTreeClassifier()
	_, err := dt.PredictProba(mat.NewDense(1, 1, nil))
	if err == nil {
		t.Fatal("expected NotFittedError")
	}
	var nfe *diabriskErrors.NotFittedError
	if !diabriskErrors.As(err, &nfe) {
		t.Errorf("expected NotFittedError, got %T", err)
	}
}

func TestDecisionTreeRejectsMismatchedInput(t *testing.T) {
	dt := NewDecisionTreeClassifier()
	if err := dt.Fit(mat.NewDense(3, 1, nil), mat.NewDense(2, 1, nil)); err == nil {
		t.Error("expected error for row count mismatch")
	}
}
