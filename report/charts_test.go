package report

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/medscreen/diabrisk/dataset"
)

func chartTable() *dataset.Table {
	t := dataset.NewTable(6)
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
	for i := 0; i < 4; i++ {
		add(0, 22+float64(i))
	}
	add(1, 36)
	add(1, 38)
	return t
}

func assertPNGWritten(t *testing.T, path string) {
	t.Helper()
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("chart not written: %v", err)
	}
	if info.Size() == 0 {
		t.Fatalf("chart %s is empty", filepath.Base(path))
	}
}

func TestClassBalanceChart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "class_balance.png")
	if err := ClassBalanceChart(chartTable(), path); err != nil {
		t.Fatalf("ClassBalanceChart failed: %v", err)
	}
	assertPNGWritten(t, path)
}

func TestCategoryChart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gender.png")
	counts := map[string]int{"Female": 4, "Male": 2}
	if err := CategoryChart("Gender", counts, path); err != nil {
		t.Fatalf("CategoryChart failed: %v", err)
	}
	assertPNGWritten(t, path)
}

func TestConditionalHistogram(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bmi_by_label.png")
	negatives := []float64{22, 23, 24, 25, 26, 22.5}
	positives := []float64{34, 36, 38, 35}
	if err := ConditionalHistogram("BMI by diabetes label", negatives, positives, path); err != nil {
		t.Fatalf("ConditionalHistogram failed: %v", err)
	}
	assertPNGWritten(t, path)
}

func TestROCChart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roc.png")
	series := []ROCSeries{{
		Name: "boost_tree/boost",
		FPR:  []float64{0, 0, 0.2, 1},
		TPR:  []float64{0, 0.8, 0.9, 1},
	}}
	if err := ROCChart(series, path); err != nil {
		t.Fatalf("ROCChart failed: %v", err)
	}
	assertPNGWritten(t, path)
}

func TestComparisonChart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "comparison.png")
	scores := []ModelScore{
		{Name: "logistic/baseline", MeanAUC: 0.95},
		{Name: "boost_tree/boost", MeanAUC: 0.97},
	}
	if err := ComparisonChart(scores, path); err != nil {
		t.Fatalf("ComparisonChart failed: %v", err)
	}
	assertPNGWritten(t, path)
}
