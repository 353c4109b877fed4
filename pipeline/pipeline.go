// Package pipeline bundles a preprocessing recipe with a classifier into
// one trainable unit. The tuning driver works on raw tables; the pipeline
// is what carries the fitted encoder and scaler alongside the final model
// so holdout rows go through exactly the transformations the training rows
// did.
package pipeline

import (
	"gonum.org/v1/gonum/mat"

	"github.com/medscreen/diabrisk/core/model"
	"github.com/medscreen/diabrisk/dataset"
	diabriskErrors "github.com/medscreen/diabrisk/pkg/errors"
	"github.com/medscreen/diabrisk/pkg/log"
	"github.com/medscreen/diabrisk/preprocessing"
)

// Pipeline is a recipe plus a final classifier, fitted together.
type Pipeline struct {
	state  *model.StateManager
	logger log.Logger

	name       string
	recipe     *preprocessing.Recipe
	classifier model.Classifier
	sampler    *preprocessing.RandomOverSampler
}

// Option is a functional option for Pipeline.
type Option func(*Pipeline)

// WithLogger attaches a logger; the default is a no-op logger.
func WithLogger(logger log.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithSampler oversamples the training table before fitting. Prediction
// inputs are never resampled.
func WithSampler(sampler *preprocessing.RandomOverSampler) Option {
	return func(p *Pipeline) {
		p.sampler = sampler
	}
}

// New creates a pipeline around the given recipe and classifier.
func New(name string, recipe *preprocessing.Recipe, clf model.Classifier, opts ...Option) *Pipeline {
	p := &Pipeline{
		state:      model.NewStateManager(),
		logger:     log.Nop(),
		name:       name,
		recipe:     recipe,
		classifier: clf,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name returns the pipeline's model identifier.
func (p *Pipeline) Name() string {
	return p.name
}

// Classifier returns the wrapped classifier.
func (p *Pipeline) Classifier() model.Classifier {
	return p.classifier
}

// Fit oversamples the table (when configured), fits the recipe on the
// result, and fits the classifier on the encoded features.
func (p *Pipeline) Fit(table *dataset.Table) (err error) {
	defer diabriskErrors.Recover(&err, "Pipeline.Fit")

	train := table
	if p.sampler != nil {
		train, err = p.sampler.Resample(table)
		if err != nil {
			return diabriskErrors.Wrap(err, "oversampling failed")
		}
		p.logger.Debug("oversampled training table",
			"model", p.name,
			"rows_before", table.Len(),
			"rows_after", train.Len(),
		)
	}

	X, err := p.recipe.FitTransform(train)
	if err != nil {
		return diabriskErrors.Wrapf(err, "recipe fit failed for %s", p.name)
	}
	if err := p.classifier.Fit(X, train.LabelMatrix()); err != nil {
		return diabriskErrors.Wrapf(err, "classifier fit failed for %s", p.name)
	}

	_, nFeatures := X.Dims()
	p.state.SetDimensions(nFeatures, train.Len())
	p.state.SetFitted()
	return nil
}

// Predict returns hard labels for the table's rows.
func (p *Pipeline) Predict(table *dataset.Table) (mat.Matrix, error) {
	if err := p.state.RequireFitted("Pipeline", "Predict"); err != nil {
		return nil, err
	}
	X, err := p.recipe.Transform(table)
	if err != nil {
		return nil, err
	}
	return p.classifier.Predict(X)
}

// PredictProba returns class probabilities for the table's rows.
func (p *Pipeline) PredictProba(table *dataset.Table) (mat.Matrix, error) {
	if err := p.state.RequireFitted("Pipeline", "PredictProba"); err != nil {
		return nil, err
	}
	X, err := p.recipe.Transform(table)
	if err != nil {
		return nil, err
	}
	return p.classifier.PredictProba(X)
}

// PositiveProba returns the positive-class probability per row as a vector.
func (p *Pipeline) PositiveProba(table *dataset.Table) (*mat.VecDense, error) {
	proba, err := p.PredictProba(table)
	if err != nil {
		return nil, err
	}
	n, cols := proba.Dims()
	v := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		v.SetVec(i, proba.At(i, cols-1))
	}
	return v, nil
}
