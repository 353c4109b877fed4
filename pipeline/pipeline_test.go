package pipeline

import (
	"math"
	"testing"

	"github.com/medscreen/diabrisk/dataset"
	"github.com/medscreen/diabrisk/linear"
	diabriskErrors "github.com/medscreen/diabrisk/pkg/errors"
	"github.com/medscreen/diabrisk/preprocessing"
)

// riskTable builds a table where BMI separates the classes: negatives near
// 22, positives near 37.
func riskTable(nNeg, nPos int) *dataset.Table {
	t := dataset.NewTable(nNeg + nPos)
	add := func(label, bmi float64) {
		t.Gender = append(t.Gender, "Female")
		t.Age = append(t.Age, 50)
		t.Hypertension = append(t.Hypertension, 0)
		t.HeartDisease = append(t.HeartDisease, 0)
		t.Smoking = append(t.Smoking, "never")
		t.BMI = append(t.BMI, bmi)
		t.HbA1c = append(t.HbA1c, 5.5)
		t.Glucose = append(t.Glucose, 120)
		t.Diabetes = append(t.Diabetes, label)
	}
	for i := 0; i < nNeg; i++ {
		add(0, 20+float64(i%5))
	}
	for i := 0; i < nPos; i++ {
		add(1, 35+float64(i%5))
	}
	return t
}

func TestPipelineFitPredict(t *testing.T) {
	table := riskTable(30, 30)

	p := New("logistic/baseline", preprocessing.NewRecipe(true), linear.NewLogisticRegression())
	if err := p.Fit(table); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}

	pred, err := p.Predict(table)
	if err != nil {
		t.Fatalf("Predict failed: %v", err)
	}
	correct := 0
	for i := 0; i < table.Len(); i++ {
		if pred.At(i, 0) == table.Diabetes[i] {
			correct++
		}
	}
	if acc := float64(correct) / float64(table.Len()); acc < 0.95 {
		t.Errorf("expected accuracy >= 0.95, got %f", acc)
	}
}

func TestPipelinePositiveProba(t *testing.T) {
	table := riskTable(30, 30)

	p := New("logistic/baseline", preprocessing.NewRecipe(true), linear.NewLogisticRegression())
	if err := p.Fit(table); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}

	scores, err := p.PositiveProba(table)
	if err != nil {
		t.Fatalf("PositiveProba failed: %v", err)
	}
	if scores.Len() != table.Len() {
		t.Fatalf("expected %d scores, got %d", table.Len(), scores.Len())
	}
	for i := 0; i < scores.Len(); i++ {
		s := scores.AtVec(i)
		if s < 0 || s > 1 || math.IsNaN(s) {
			t.Errorf("row %d: score %f outside [0, 1]", i, s)
		}
	}
}

func TestPipelineSamplerBalancesTraining(t *testing.T) {
	table := riskTable(50, 10)

	p := New("logistic/baseline",
		preprocessing.NewRecipe(true),
		linear.NewLogisticRegression(),
		WithSampler(preprocessing.NewRandomOverSampler(7)),
	)
	if err := p.Fit(table); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}

	// Prediction inputs are never resampled: the output row count must
	// match the input table.
	proba, err := p.PredictProba(table)
	if err != nil {
		t.Fatalf("PredictProba failed: %v", err)
	}
	rows, _ := proba.Dims()
	if rows != table.Len() {
		t.Errorf("expected %d prediction rows, got %d", table.Len(), rows)
	}
}

func TestPipelineNotFitted(t *testing.T) {
	p := New("logistic/baseline", preprocessing.NewRecipe(true), linear.NewLogisticRegression())
	_, err := p.Predict(riskTable(2, 2))
	if err == nil {
		t.Fatal("expected NotFittedError")
	}
	var nfe *diabriskErrors.NotFittedError
	if !diabriskErrors.As(err, &nfe) {
		t.Errorf("expected NotFittedError, got %T", err)
	}
}
