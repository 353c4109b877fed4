package preprocessing

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"
)

const scalerTolerance = 1e-9

func TestStandardScalerTransform(t *testing.T) {
	X := mat.NewDense(4, 2, []float64{
		1, 10,
		2, 20,
		3, 30,
		4, 40,
	})

	scaler := NewStandardScalerDefault()
	result, err := scaler.FitTransform(X)
	if err != nil {
		t.Fatalf("FitTransform failed: %v", err)
	}

	// Standardized columns have zero mean and unit variance.
	rows, cols := result.Dims()
	for j := 0; j < cols; j++ {
		sum, sumSq := 0.0, 0.0
		for i := 0; i < rows; i++ {
			v := result.At(i, j)
			sum += v
			sumSq += v * v
		}
		mean := sum / float64(rows)
		if math.Abs(mean) > scalerTolerance {
			t.Errorf("col %d: expected zero mean, got %g", j, mean)
		}
		variance := (sumSq - sum*sum/float64(rows)) / float64(rows-1)
		if math.Abs(variance-1) > scalerTolerance {
			t.Errorf("col %d: expected unit variance, got %g", j, variance)
		}
	}
}

func TestStandardScalerConstantColumn(t *testing.T) {
	X := mat.NewDense(3, 1, []float64{5, 5, 5})

	scaler := NewStandardScalerDefault()
	result, err := scaler.FitTransform(X)
	if err != nil {
		t.Fatalf("FitTransform failed: %v", err)
	}

	// Constant columns keep scale 1, so centering yields exact zeros.
	for i := 0; i < 3; i++ {
		if result.At(i, 0) != 0 {
			t.Errorf("row %d: expected 0, got %f", i, result.At(i, 0))
		}
	}
}

func TestStandardScalerInverseRoundTrip(t *testing.T) {
	X := mat.NewDense(3, 2, []float64{
		1.5, -2,
		3.25, 0,
		-1, 7,
	})

	scaler := NewStandardScalerDefault()
	transformed, err := scaler.FitTransform(X)
	if err != nil {
		t.Fatalf("FitTransform failed: %v", err)
	}
	restored, err := scaler.InverseTransform(transformed)
	if err != nil {
		t.Fatalf("InverseTransform failed: %v", err)
	}

	for i := 0; i < 3; i++ {
		for j := 0; j < 2; j++ {
			if math.Abs(restored.At(i, j)-X.At(i, j)) > scalerTolerance {
				t.Errorf("(%d,%d): expected %f, got %f", i, j, X.At(i, j), restored.At(i, j))
			}
		}
	}
}

func TestStandardScalerDimensionMismatch(t *testing.T) {
	scaler := NewStandardScalerDefault()
	if err := scaler.Fit(mat.NewDense(2, 2, []float64{1, 2, 3, 4})); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	if _, err := scaler.Transform(mat.NewDense(2, 3, nil)); err == nil {
		t.Error("expected DimensionError for 3 columns")
	}
}
