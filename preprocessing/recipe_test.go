package preprocessing

import (
	"math"
	"testing"
)

func TestRecipeDesignMatrixShape(t *testing.T) {
	table := imbalancedTable(6, 4)

	recipe := NewRecipe(false)
	X, err := recipe.FitTransform(table)
	if err != nil {
		t.Fatalf("FitTransform failed: %v", err)
	}

	rows, cols := X.Dims()
	if rows != table.Len() {
		t.Errorf("expected %d rows, got %d", table.Len(), rows)
	}
	// 6 numeric + 1 gender category + 1 smoking category in the fixture.
	if cols != 8 {
		t.Errorf("expected 8 columns, got %d", cols)
	}
	if len(recipe.FeatureNames()) != cols {
		t.Errorf("feature names (%d) do not match columns (%d)", len(recipe.FeatureNames()), cols)
	}
}

func TestRecipeNormalizeStandardizesNumerics(t *testing.T) {
	table := imbalancedTable(10, 10)

	recipe := NewRecipe(true)
	X, err := recipe.FitTransform(table)
	if err != nil {
		t.Fatalf("FitTransform failed: %v", err)
	}

	// BMI (column 3) varies in the fixture; standardized it must have mean 0.
	rows, _ := X.Dims()
	sum := 0.0
	for i := 0; i < rows; i++ {
		sum += X.At(i, 3)
	}
	if math.Abs(sum/float64(rows)) > 1e-9 {
		t.Errorf("expected standardized BMI mean 0, got %g", sum/float64(rows))
	}
}

func TestRecipeCloneIsUnfitted(t *testing.T) {
	table := imbalancedTable(4, 4)

	recipe := NewRecipe(true)
	if _, err := recipe.FitTransform(table); err != nil {
		t.Fatalf("FitTransform failed: %v", err)
	}

	clone := recipe.Clone()
	if clone.IsFitted() {
		t.Error("clone must start unfitted")
	}
	if clone.Normalize != recipe.Normalize {
		t.Error("clone lost the Normalize setting")
	}
}

func TestRecipeTransformBeforeFit(t *testing.T) {
	recipe := NewRecipe(false)
	if _, err := recipe.Transform(imbalancedTable(2, 2)); err == nil {
		t.Error("expected NotFittedError")
	}
}
