package model

import "gonum.org/v1/gonum/mat"

// Transformer is the interface for fitted data transformations.
type Transformer interface {
	Fit(X mat.Matrix) error
	Transform(X mat.Matrix) (mat.Matrix, error)
	FitTransform(X mat.Matrix) (mat.Matrix, error)
}

// Predictor produces hard label predictions as an n x 1 matrix.
type Predictor interface {
	Predict(X mat.Matrix) (mat.Matrix, error)
}

// Classifier is the interface every diabrisk classification model satisfies.
// PredictProba returns an n x 2 matrix with class probabilities in column
// order Classes().
type Classifier interface {
	Fit(X, y mat.Matrix) error
	Predictor
	PredictProba(X mat.Matrix) (mat.Matrix, error)
	Classes() []int
}

// ParameterGetter exposes an estimator's hyperparameters, mainly for the
// report and the tuning cache key.
type ParameterGetter interface {
	GetParams() map[string]interface{}
}
