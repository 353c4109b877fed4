// Package preprocessing provides the feature engineering used by the
// diabrisk recipes: one-hot encoding of the categorical predictors,
// standardization of numeric columns, and minority-class oversampling for
// the imbalanced diabetes label.
package preprocessing

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/medscreen/diabrisk/core/model"
	diabriskErrors "github.com/medscreen/diabrisk/pkg/errors"
)

// OneHotEncoder converts categorical string columns into 0/1 indicator
// columns. Categories are learned from training data only; categories unseen
// at fit time encode as all-zero (the holdout must not leak into the recipe).
type OneHotEncoder struct {
	state *model.StateManager

	// Categories holds the sorted category list per input feature.
	Categories [][]string

	// CategoryToIdx maps category to indicator position per input feature.
	CategoryToIdx []map[string]int

	// NFeatures is the number of input features.
	NFeatures int

	// NOutputs is the total number of indicator columns.
	NOutputs int
}

// NewOneHotEncoder creates an unfitted OneHotEncoder.
func NewOneHotEncoder() *OneHotEncoder {
	return &OneHotEncoder{state: model.NewStateManager()}
}

// IsFitted returns whether the encoder has learned its categories.
func (e *OneHotEncoder) IsFitted() bool {
	return e.state.IsFitted()
}

// Fit learns the category set of each feature from the training rows.
func (e *OneHotEncoder) Fit(data [][]string) (err error) {
	defer diabriskErrors.Recover(&err, "OneHotEncoder.Fit")
	if len(data) == 0 {
		return diabriskErrors.NewModelError("OneHotEncoder.Fit", "empty data", diabriskErrors.ErrEmptyData)
	}
	if len(data[0]) == 0 {
		return diabriskErrors.NewModelError("OneHotEncoder.Fit", "empty features", diabriskErrors.ErrEmptyData)
	}

	nFeatures := len(data[0])
	for i, row := range data {
		if len(row) != nFeatures {
			return diabriskErrors.NewDimensionError("OneHotEncoder.Fit", nFeatures, len(row), i)
		}
	}

	e.NFeatures = nFeatures
	e.Categories = make([][]string, nFeatures)
	e.CategoryToIdx = make([]map[string]int, nFeatures)

	for j := 0; j < nFeatures; j++ {
		categorySet := make(map[string]bool)
		for i := range data {
			categorySet[data[i][j]] = true
		}

		categories := make([]string, 0, len(categorySet))
		for category := range categorySet {
			categories = append(categories, category)
		}
		sort.Strings(categories)
		e.Categories[j] = categories

		categoryToIdx := make(map[string]int, len(categories))
		for idx, category := range categories {
			categoryToIdx[category] = idx
		}
		e.CategoryToIdx[j] = categoryToIdx
	}

	e.NOutputs = 0
	for _, categories := range e.Categories {
		e.NOutputs += len(categories)
	}

	e.state.SetFitted()
	return nil
}

// Transform encodes rows using the fitted category sets. Unknown categories
// produce all-zero indicators.
func (e *OneHotEncoder) Transform(data [][]string) (_ *mat.Dense, err error) {
	defer diabriskErrors.Recover(&err, "OneHotEncoder.Transform")
	if !e.IsFitted() {
		return nil, diabriskErrors.NewNotFittedError("OneHotEncoder", "Transform")
	}
	if len(data) == 0 {
		return mat.NewDense(0, e.NOutputs, nil), nil
	}
	if len(data[0]) != e.NFeatures {
		return nil, diabriskErrors.NewDimensionError("OneHotEncoder.Transform", e.NFeatures, len(data[0]), 1)
	}

	result := mat.NewDense(len(data), e.NOutputs, nil)
	for i := range data {
		outputIdx := 0
		for j := 0; j < e.NFeatures; j++ {
			if idx, exists := e.CategoryToIdx[j][data[i][j]]; exists {
				result.Set(i, outputIdx+idx, 1.0)
			}
			outputIdx += len(e.Categories[j])
		}
	}
	return result, nil
}

// FitTransform fits on data and encodes the same rows.
func (e *OneHotEncoder) FitTransform(data [][]string) (*mat.Dense, error) {
	if err := e.Fit(data); err != nil {
		return nil, err
	}
	return e.Transform(data)
}

// FeatureNamesOut returns the indicator column names, "<feature>_<category>".
func (e *OneHotEncoder) FeatureNamesOut(inputFeatures []string) []string {
	if !e.IsFitted() {
		return nil
	}

	var out []string
	for i, categories := range e.Categories {
		name := fmt.Sprintf("x%d", i)
		if inputFeatures != nil && i < len(inputFeatures) {
			name = inputFeatures[i]
		}
		for _, category := range categories {
			out = append(out, fmt.Sprintf("%s_%s", name, category))
		}
	}
	return out
}
