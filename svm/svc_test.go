package svm

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

// ringData places negatives on an inner ring and positives on an outer ring.
// No linear separator exists but the RBF kernel handles it.
func ringData(n int, seed uint64) (*mat.Dense, *mat.Dense) {
	rng := rand.New(rand.NewPCG(seed, seed))
	X := mat.NewDense(2*n, 2, nil)
	y := mat.NewDense(2*n, 1, nil)
	for i := 0; i < 2*n; i++ {
		radius := 1.0
		if i >= n {
			radius = 4.0
			y.Set(i, 0, 1)
		}
		angle := 2 * math.Pi * rng.Float64()
		X.Set(i, 0, radius*math.Cos(angle))
		X.Set(i, 1, radius*math.Sin(angle))
	}
	return X, y
}

func svcAUC(t *testing.T, s *SVC, X *mat.Dense, y *mat.Dense) float64 {
	t.Helper()
	proba, err := s.PredictProba(X)
	if err != nil {
		t.Fatalf("PredictProba failed: %v", err)
	}
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

func TestSVCLinearSeparatesBlobs(t *testing.T) {
	X, y := separableBlobs(50, 1)

	s := NewSVC(WithSVCSeed(7))
	if err := s.Fit(X, y); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	if auc := svcAUC(t, s, X, y); auc < 0.99 {
		t.Errorf("expected AUC >= 0.99 on separable blobs, got %f", auc)
	}
}

func TestSVCRBFSeparatesRings(t *testing.T) {
	X, y := ringData(40, 2)

	s := NewSVC(WithSVCKernel(KernelRBF), WithSVCGamma(0.5), WithSVCSeed(3))
	if err := s.Fit(X, y); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	if auc := svcAUC(t, s, X, y); auc < 0.95 {
		t.Errorf("expected AUC >= 0.95 on ring data, got %f", auc)
	}
}

func TestSVCPlattProbabilitiesOrderedByMargin(t *testing.T) {
	X, y := separableBlobs(40, 4)

	s := NewSVC(WithSVCSeed(5))
	if err := s.Fit(X, y); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}

	// Points deep inside each cluster must land far apart in probability,
	// and a midpoint query must sit between them.
	q := mat.NewDense(3, 2, []float64{
		-4, -4,
		0, 0,
		4, 4,
	})
	proba, err := s.PredictProba(q)
	if err != nil {
		t.Fatalf("PredictProba failed: %v", err)
	}

	pNeg, pMid, pPos := proba.At(0, 1), proba.At(1, 1), proba.At(2, 1)
	if !(pNeg < pMid && pMid < pPos) {
		t.Errorf("probabilities not ordered by margin: %f, %f, %f", pNeg, pMid, pPos)
	}
	if pNeg > 0.2 {
		t.Errorf("deep negative query has P(1) = %f", pNeg)
	}
	if pPos < 0.8 {
		t.Errorf("deep positive query has P(1) = %f", pPos)
	}
}

func TestSVCProbabilitiesSumToOne(t *testing.T) {
	X, y := separableBlobs(20, 6)

	s := NewSVC(WithSVCSeed(6))
	if err := s.Fit(X, y); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	proba, err := s.PredictProba(X)
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

func TestSVCDeterministicUnderSeed(t *testing.T) {
	X, y := separableBlobs(30, 7)

	a := NewSVC(WithSVCSeed(11))
	b := NewSVC(WithSVCSeed(11))
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
		t.Error("identically seeded classifiers disagree")
	}
}

func TestSVCValidatesHyperparameters(t *testing.T) {
	X, y := separableBlobs(5, 8)

	if err := NewSVC(WithSVCC(0)).Fit(X, y); err == nil {
		t.Error("expected error for C = 0")
	}
	if err := NewSVC(WithSVCKernel("poly")).Fit(X, y); err == nil {
		t.Error("expected error for unknown kernel")
	}

	single := mat.NewDense(4, 2, nil)
	zeros := mat.NewDense(4, 1, nil)
	if err := NewSVC().Fit(single, zeros); err == nil {
		t.Error("expected error for a single-class training set")
	}
}

func TestSVCNotFitted(t *testing.T) {
	s := NewSVC()
	_, err := s.PredictProba(mat.NewDense(1, 2, nil))
	if err == nil {
		t.Fatal("expected NotFittedError")
	}
	var nfe *diabriskErrors.NotFittedError
	if !diabriskErrors.As(err, &nfe) {
		t.Errorf("expected NotFittedError, got %T", err)
	}
}
