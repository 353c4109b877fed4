package preprocessing

import (
	"testing"

	"github.com/medscreen/diabrisk/dataset"
)

// imbalancedTable builds a table with nNeg negatives and nPos positives.
func imbalancedTable(nNeg, nPos int) *dataset.Table {
	t := dataset.NewTable(nNeg + nPos)
	add := func(label float64, bmi float64) {
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
		add(0, 20+float64(i))
	}
	for i := 0; i < nPos; i++ {
		add(1, 30+float64(i))
	}
	return t
}

func TestResampleBalancesExactly(t *testing.T) {
	table := imbalancedTable(90, 10)

	sampler := NewRandomOverSampler(42)
	resampled, err := sampler.Resample(table)
	if err != nil {
		t.Fatalf("Resample failed: %v", err)
	}

	if resampled.Len() != 180 {
		t.Errorf("expected 180 rows, got %d", resampled.Len())
	}
	pos := resampled.PositiveCount()
	if pos != 90 {
		t.Errorf("expected 90 positives, got %d", pos)
	}
}

func TestResampleOnlyDuplicatesMinority(t *testing.T) {
	table := imbalancedTable(5, 2)

	sampler := NewRandomOverSampler(7)
	resampled, err := sampler.Resample(table)
	if err != nil {
		t.Fatalf("Resample failed: %v", err)
	}

	// Original rows come first in input order; appended rows are positive.
	for i := 0; i < table.Len(); i++ {
		if resampled.Diabetes[i] != table.Diabetes[i] {
			t.Errorf("row %d: original order not preserved", i)
		}
	}
	for i := table.Len(); i < resampled.Len(); i++ {
		if resampled.Diabetes[i] != 1 {
			t.Errorf("appended row %d is not a minority duplicate", i)
		}
	}
}

func TestResampleDeterministicUnderSeed(t *testing.T) {
	table := imbalancedTable(20, 5)

	a, err := NewRandomOverSampler(3).Resample(table)
	if err != nil {
		t.Fatalf("Resample failed: %v", err)
	}
	b, err := NewRandomOverSampler(3).Resample(table)
	if err != nil {
		t.Fatalf("Resample failed: %v", err)
	}

	if a.Len() != b.Len() {
		t.Fatalf("lengths differ: %d vs %d", a.Len(), b.Len())
	}
	for i := 0; i < a.Len(); i++ {
		if a.BMI[i] != b.BMI[i] {
			t.Errorf("row %d differs between identically seeded runs", i)
		}
	}
}

func TestResampleRequiresBothClasses(t *testing.T) {
	table := imbalancedTable(5, 0)
	if _, err := NewRandomOverSampler(1).Resample(table); err == nil {
		t.Error("expected error for single-class table")
	}
}
