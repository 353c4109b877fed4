package ensemble

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/medscreen/diabrisk/metrics"
	diabriskErrors "github.com/medscreen/diabrisk/pkg/errors"
)

func TestGradientBoostingSeparatesBlobs(t *testing.T) {
	X, y := separableBlobs(50, 1)

	gb := NewGradientBoostingClassifier(WithGBNEstimators(30), WithGBMaxDepth(2))
	if err := gb.Fit(X, y); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	if gb.NStages() != 30 {
		t.Errorf("expected 30 stages, got %d", gb.NStages())
	}

	proba, err := gb.PredictProba(X)
	if err != nil {
		t.Fatalf("PredictProba failed: %v", err)
	}
	if auc := holdoutAUC(t, proba, y); auc < 0.99 {
		t.Errorf("expected AUC >= 0.99 on separable blobs, got %f", auc)
	}
}

func TestGradientBoostingMoreStagesReduceTrainingLoss(t *testing.T) {
	X, y := separableBlobs(40, 2)
	n, _ := y.Dims()
	truth := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		truth.SetVec(i, y.At(i, 0))
	}

	trainLoss := func(stages int) float64 {
		gb := NewGradientBoostingClassifier(WithGBNEstimators(stages), WithGBMaxDepth(2))
		if err := gb.Fit(X, y); err != nil {
			t.Fatalf("Fit failed: %v", err)
		}
		proba, err := gb.PredictProba(X)
		if err != nil {
			t.Fatalf("PredictProba failed: %v", err)
		}
		scores := mat.NewVecDense(n, nil)
		for i := 0; i < n; i++ {
			scores.SetVec(i, proba.At(i, 1))
		}
		loss, err := metrics.BinaryLogLoss(truth, scores)
		if err != nil {
			t.Fatalf("BinaryLogLoss failed: %v", err)
		}
		return loss
	}

	short := trainLoss(5)
	long := trainLoss(50)
	if long >= short {
		t.Errorf("expected training loss to fall with more stages: 5 stages %f, 50 stages %f", short, long)
	}
}

func TestGradientBoostingInitScoreIsPriorLogOdds(t *testing.T) {
	// 3 positives out of 10: F0 = log(0.3/0.7).
	X := mat.NewDense(10, 1, []float64{0, 1, 2, 3, 4, 5, 6, 7, 8, 9})
	y := mat.NewDense(10, 1, []float64{0, 0, 0, 0, 0, 0, 0, 1, 1, 1})

	gb := NewGradientBoostingClassifier(WithGBNEstimators(1))
	if err := gb.Fit(X, y); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}

	want := math.Log(0.3 / 0.7)
	if math.Abs(gb.initScore_-want) > 1e-9 {
		t.Errorf("expected init score %f, got %f", want, gb.initScore_)
	}
}

func TestGradientBoostingProbabilitiesSumToOne(t *testing.T) {
	X, y := separableBlobs(20, 3)

	gb := NewGradientBoostingClassifier(WithGBNEstimators(10))
	if err := gb.Fit(X, y); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	proba, err := gb.PredictProba(X)
	if err != nil {
		t.Fatalf("PredictProba failed: %v", err)
	}

	rows, _ := proba.Dims()
	for i := 0; i < rows; i++ {
		sum := proba.At(i, 0) + proba.At(i, 1)
		if math.Abs(sum-1.0) > 1e-9 {
			t.Errorf("row %d: probabilities sum to %f", i, sum)
		}
	}
}

func TestGradientBoostingRejectsBadInput(t *testing.T) {
	X, y := separableBlobs(5, 4)

	if err := NewGradientBoostingClassifier(WithGBNEstimators(0)).Fit(X, y); err == nil {
		t.Error("expected error for zero estimators")
	}
	if err := NewGradientBoostingClassifier(WithGBLearningRate(0)).Fit(X, y); err == nil {
		t.Error("expected error for zero learning rate")
	}

	single := mat.NewDense(4, 1, []float64{1, 2, 3, 4})
	ones := mat.NewDense(4, 1, []float64{1, 1, 1, 1})
	if err := NewGradientBoostingClassifier().Fit(single, ones); err == nil {
		t.Error("expected error for a single-class training set")
	}
}

func TestGradientBoostingNotFitted(t *testing.T) {
	gb := NewGradientBoostingClassifier()
	_, err := gb.PredictProba(mat.NewDense(1, 2, nil))
	if err == nil {
		t.Fatal("expected NotFittedError")
	}
	var nfe *diabriskErrors.NotFittedError
	if !diabriskErrors.As(err, &nfe) {
		t.Errorf("expected NotFittedError, got %T", err)
	}
}
