package preprocessing

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/medscreen/diabrisk/core/model"
	diabriskErrors "github.com/medscreen/diabrisk/pkg/errors"
)

// StandardScaler standardizes features by removing the mean and scaling to
// unit variance. Constant columns keep a scale of 1 so 0/1 indicator columns
// pass through unharmed.
type StandardScaler struct {
	state *model.StateManager

	// Mean holds the per-column training mean.
	Mean []float64

	// Scale holds the per-column training standard deviation (1 for
	// constant columns).
	Scale []float64

	withMean bool
	withStd  bool
}

// NewStandardScaler creates a scaler with the given centering and scaling
// behavior.
func NewStandardScaler(withMean, withStd bool) *StandardScaler {
	return &StandardScaler{
		state:    model.NewStateManager(),
		withMean: withMean,
		withStd:  withStd,
	}
}

// NewStandardScalerDefault creates a scaler that both centers and scales.
func NewStandardScalerDefault() *StandardScaler {
	return NewStandardScaler(true, true)
}

// IsFitted returns whether the scaler has learned its statistics.
func (s *StandardScaler) IsFitted() bool {
	return s.state.IsFitted()
}

// Fit computes per-column mean and standard deviation from X.
func (s *StandardScaler) Fit(X mat.Matrix) (err error) {
	defer diabriskErrors.Recover(&err, "StandardScaler.Fit")
	nSamples, nFeatures := X.Dims()
	if nSamples == 0 || nFeatures == 0 {
		return diabriskErrors.NewModelError("StandardScaler.Fit", "empty data", diabriskErrors.ErrEmptyData)
	}

	s.Mean = make([]float64, nFeatures)
	s.Scale = make([]float64, nFeatures)

	column := make([]float64, nSamples)
	for j := 0; j < nFeatures; j++ {
		for i := 0; i < nSamples; i++ {
			column[i] = X.At(i, j)
		}
		mean, std := stat.MeanStdDev(column, nil)
		s.Mean[j] = mean
		if !s.withStd || std == 0 || math.IsNaN(std) {
			s.Scale[j] = 1.0
		} else {
			s.Scale[j] = std
		}
	}

	s.state.SetDimensions(nFeatures, nSamples)
	s.state.SetFitted()
	return nil
}

// Transform standardizes X using the fitted statistics.
func (s *StandardScaler) Transform(X mat.Matrix) (_ *mat.Dense, err error) {
	defer diabriskErrors.Recover(&err, "StandardScaler.Transform")
	if !s.IsFitted() {
		return nil, diabriskErrors.NewNotFittedError("StandardScaler", "Transform")
	}

	nSamples, nFeatures := X.Dims()
	if nFeatures != len(s.Mean) {
		return nil, diabriskErrors.NewDimensionError("StandardScaler.Transform", len(s.Mean), nFeatures, 1)
	}

	out := mat.NewDense(nSamples, nFeatures, nil)
	for i := 0; i < nSamples; i++ {
		for j := 0; j < nFeatures; j++ {
			v := X.At(i, j)
			if s.withMean {
				v -= s.Mean[j]
			}
			out.Set(i, j, v/s.Scale[j])
		}
	}
	return out, nil
}

// FitTransform fits on X and standardizes the same rows.
func (s *StandardScaler) FitTransform(X mat.Matrix) (*mat.Dense, error) {
	if err := s.Fit(X); err != nil {
		return nil, err
	}
	return s.Transform(X)
}

// InverseTransform maps standardized values back to the original scale.
func (s *StandardScaler) InverseTransform(X mat.Matrix) (_ *mat.Dense, err error) {
	defer diabriskErrors.Recover(&err, "StandardScaler.InverseTransform")
	if !s.IsFitted() {
		return nil, diabriskErrors.NewNotFittedError("StandardScaler", "InverseTransform")
	}

	nSamples, nFeatures := X.Dims()
	if nFeatures != len(s.Mean) {
		return nil, diabriskErrors.NewDimensionError("StandardScaler.InverseTransform", len(s.Mean), nFeatures, 1)
	}

	out := mat.NewDense(nSamples, nFeatures, nil)
	for i := 0; i < nSamples; i++ {
		for j := 0; j < nFeatures; j++ {
			v := X.At(i, j) * s.Scale[j]
			if s.withMean {
				v += s.Mean[j]
			}
			out.Set(i, j, v)
		}
	}
	return out, nil
}
