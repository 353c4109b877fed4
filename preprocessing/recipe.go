package preprocessing

import (
	"gonum.org/v1/gonum/mat"

	"github.com/medscreen/diabrisk/core/model"
	"github.com/medscreen/diabrisk/dataset"
	diabriskErrors "github.com/medscreen/diabrisk/pkg/errors"
)

// Recipe is the declarative preprocessing applied before a classifier:
// one-hot encoding of the categorical predictors, optionally followed by
// standardization of the numeric columns. Distance- and margin-based models
// (KNN, SVM) and the penalized logistic models set Normalize; tree
// ensembles and discriminant analysis work on raw scales.
//
// A Recipe is fitted on training rows only and then applied to assessment
// or holdout rows, so each CV fold gets its own clone.
type Recipe struct {
	// Normalize standardizes the numeric columns when set.
	Normalize bool

	state   *model.StateManager
	encoder *OneHotEncoder
	scaler  *StandardScaler
}

// NewRecipe creates an unfitted recipe.
func NewRecipe(normalize bool) *Recipe {
	return &Recipe{
		Normalize: normalize,
		state:     model.NewStateManager(),
	}
}

// Clone returns a fresh unfitted recipe with the same configuration.
func (r *Recipe) Clone() *Recipe {
	return NewRecipe(r.Normalize)
}

// IsFitted returns whether the recipe has been fitted.
func (r *Recipe) IsFitted() bool {
	return r.state.IsFitted()
}

// Fit learns encoder categories and, when normalizing, scaler statistics
// from the training table.
func (r *Recipe) Fit(t *dataset.Table) (err error) {
	defer diabriskErrors.Recover(&err, "Recipe.Fit")
	if t.Len() == 0 {
		return diabriskErrors.NewModelError("Recipe.Fit", "empty data", diabriskErrors.ErrEmptyData)
	}

	r.encoder = NewOneHotEncoder()
	if err := r.encoder.Fit(t.Categorical()); err != nil {
		return err
	}

	if r.Normalize {
		r.scaler = NewStandardScalerDefault()
		if err := r.scaler.Fit(t.NumericMatrix()); err != nil {
			return err
		}
	}

	r.state.SetFitted()
	return nil
}

// Transform builds the design matrix for t: numeric columns (standardized
// when configured) followed by the one-hot indicator columns.
func (r *Recipe) Transform(t *dataset.Table) (_ *mat.Dense, err error) {
	defer diabriskErrors.Recover(&err, "Recipe.Transform")
	if !r.IsFitted() {
		return nil, diabriskErrors.NewNotFittedError("Recipe", "Transform")
	}

	numeric := t.NumericMatrix()
	if r.Normalize {
		numeric, err = r.scaler.Transform(numeric)
		if err != nil {
			return nil, err
		}
	}

	encoded, err := r.encoder.Transform(t.Categorical())
	if err != nil {
		return nil, err
	}

	n := t.Len()
	_, numCols := numeric.Dims()
	_, encCols := encoded.Dims()

	out := mat.NewDense(n, numCols+encCols, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < numCols; j++ {
			out.Set(i, j, numeric.At(i, j))
		}
		for j := 0; j < encCols; j++ {
			out.Set(i, numCols+j, encoded.At(i, j))
		}
	}
	return out, nil
}

// FitTransform fits the recipe on t and returns its design matrix.
func (r *Recipe) FitTransform(t *dataset.Table) (*mat.Dense, error) {
	if err := r.Fit(t); err != nil {
		return nil, err
	}
	return r.Transform(t)
}

// FeatureNames returns the design matrix column names in order.
func (r *Recipe) FeatureNames() []string {
	if !r.IsFitted() {
		return nil
	}
	names := append([]string(nil), dataset.NumericFeatureNames...)
	return append(names, r.encoder.FeatureNamesOut(dataset.CategoricalFeatureNames)...)
}
