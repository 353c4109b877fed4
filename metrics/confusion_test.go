package metrics

import (
	"math"
	"testing"
)

func TestConfusionMatrixCells(t *testing.T) {
	yTrue := vec(1, 1, 0, 0, 1, 0)
	yPred := vec(1, 0, 0, 1, 1, 0)

	cm, err := NewConfusionMatrix(yTrue, yPred)
	if err != nil {
		t.Fatalf("NewConfusionMatrix failed: %v", err)
	}

	if cm.TruePositives != 2 {
		t.Errorf("expected 2 TP, got %d", cm.TruePositives)
	}
	if cm.FalseNegatives != 1 {
		t.Errorf("expected 1 FN, got %d", cm.FalseNegatives)
	}
	if cm.TrueNegatives != 2 {
		t.Errorf("expected 2 TN, got %d", cm.TrueNegatives)
	}
	if cm.FalsePositives != 1 {
		t.Errorf("expected 1 FP, got %d", cm.FalsePositives)
	}
	if cm.Total() != 6 {
		t.Errorf("expected total 6, got %d", cm.Total())
	}
}

func TestConfusionMatrixRates(t *testing.T) {
	yTrue := vec(1, 1, 0, 0, 1, 0)
	yPred := vec(1, 0, 0, 1, 1, 0)

	cm, err := NewConfusionMatrix(yTrue, yPred)
	if err != nil {
		t.Fatalf("NewConfusionMatrix failed: %v", err)
	}

	checks := []struct {
		name     string
		got      float64
		expected float64
	}{
		{"accuracy", cm.Accuracy(), 4.0 / 6.0},
		{"sensitivity", cm.Sensitivity(), 2.0 / 3.0},
		{"specificity", cm.Specificity(), 2.0 / 3.0},
		{"precision", cm.Precision(), 2.0 / 3.0},
	}
	for _, c := range checks {
		if math.Abs(c.got-c.expected) > tolerance {
			t.Errorf("%s: expected %f, got %f", c.name, c.expected, c.got)
		}
	}

	p, r := cm.Precision(), cm.Sensitivity()
	expectedF1 := 2 * p * r / (p + r)
	if math.Abs(cm.F1()-expectedF1) > tolerance {
		t.Errorf("F1: expected %f, got %f", expectedF1, cm.F1())
	}
}

func TestConfusionMatrixAccuracyMatchesMetric(t *testing.T) {
	yTrue := vec(0, 1, 1, 0, 1, 1, 0)
	yPred := vec(0, 1, 0, 1, 1, 1, 0)

	cm, err := NewConfusionMatrix(yTrue, yPred)
	if err != nil {
		t.Fatalf("NewConfusionMatrix failed: %v", err)
	}
	acc, err := Accuracy(yTrue, yPred)
	if err != nil {
		t.Fatalf("Accuracy failed: %v", err)
	}
	if math.Abs(cm.Accuracy()-acc) > tolerance {
		t.Errorf("confusion accuracy %f != metric accuracy %f", cm.Accuracy(), acc)
	}
}
