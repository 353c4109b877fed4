package ensemble

import (
	"math"
	"math/rand/v2"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/medscreen/diabrisk/metrics"
	diabriskErrors "github.com/medscreen/diabrisk/pkg/errors"
)

// separableBlobs builds two well-separated Gaussian clusters in 2D.
func separableBlobs(n int, seed uint64) (*mat.Dense, *mat.Dense) {
	rng := rand.New(rand.NewPCG(seed, seed))
	X := mat.NewDense(2*n, 2, nil)
	y := mat.NewDense(2*n, 1, nil)
	for i := 0; i < n; i++ {
		X.Set(i, 0, rng.NormFloat64()-3)
		X.Set(i, 1, rng.NormFloat64()-3)
		y.Set(i, 0, 0)
	}
	for i := n; i < 2*n; i++ {
		X.Set(i, 0, rng.NormFloat64()+3)
		X.Set(i, 1, rng.NormFloat64()+3)
		y.Set(i, 0, 1)
	}
	return X, y
}

func holdoutAUC(t *testing.T, proba mat.Matrix, y *mat.Dense) float64 {
	t.Helper()
	n, _ := y.Dims()
	truth := mat.NewVecDense(n, nil)
	scores := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		truth.SetVec(i, y.At(i, 0))
		scores.SetVec(i, proba.At(i, 1))
	}
	auc, err := metrics.AUC(truth, scores)
	if err != nil {
		t.Fatalf("AUC failed: %v", err)
	}
	return auc
}

func TestRandomForestSeparatesBlobs(t *testing.T) {
	X, y := separableBlobs(50, 1)

	rf := NewRandomForestClassifier(WithRFNEstimators(25), WithRFSeed(7))
	if err := rf.Fit(X, y); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}

	proba, err := rf.PredictProba(X)
	if err != nil {
		t.Fatalf("PredictProba failed: %v", err)
	}
	if auc := holdoutAUC(t, proba, y); auc < 0.99 {
		t.Errorf("expected AUC >= 0.99 on separable blobs, got %f", auc)
	}
}

func TestRandomForestProbabilitiesSumToOne(t *testing.T) {
	X, y := separableBlobs(20, 2)

	rf := NewRandomForestClassifier(WithRFNEstimators(10), WithRFSeed(3))
	if err := rf.Fit(X, y); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	proba, err := rf.PredictProba(X)
	if err != nil {
		t.Fatalf("PredictProba failed: %v", err)
	}

	n, _ := proba.Dims()
	for i := 0; i < n; i++ {
		sum := proba.At(i, 0) + proba.At(i, 1)
		if math.Abs(sum-1.0) > 1e-9 {
			t.Errorf("row %d: probabilities sum to %f", i, sum)
		}
	}
}

func TestRandomForestDeterministicUnderSeed(t *testing.T) {
	X, y := separableBlobs(30, 4)

	a := NewRandomForestClassifier(WithRFNEstimators(15), WithRFSeed(11))
	b := NewRandomForestClassifier(WithRFNEstimators(15), WithRFSeed(11))
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
		t.Error("identically seeded forests disagree")
	}
}

func TestRandomForestNotFitted(t *testing.T) {
	rf := NewRandomForestClassifier()
	_, err := rf.PredictProba(mat.NewDense(1, 2, nil))
	if err == nil {
		t.Fatal("expected NotFittedError")
	}
	var nfe *diabriskErrors.NotFittedError
	if !diabriskErrors.As(err, &nfe) {
		t.Errorf("expected NotFittedError, got %T", err)
	}
}

func TestRandomForestValidatesHyperparameters(t *testing.T) {
	X, y := separableBlobs(5, 5)
	rf := NewRandomForestClassifier(WithRFNEstimators(0))
	if err := rf.Fit(X, y); err == nil {
		t.Error("expected error for zero estimators")
	}
}
