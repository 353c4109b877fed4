// Package analysis orchestrates the full study: load and clean the
// dataset, run the EDA, split, tune every configured model, pick the
// winner, evaluate it on the holdout, and render the report.
package analysis

import (
	"github.com/medscreen/diabrisk/config"
	"github.com/medscreen/diabrisk/core/model"
	"github.com/medscreen/diabrisk/discriminant"
	"github.com/medscreen/diabrisk/ensemble"
	"github.com/medscreen/diabrisk/linear"
	"github.com/medscreen/diabrisk/neighbors"
	diabriskErrors "github.com/medscreen/diabrisk/pkg/errors"
	"github.com/medscreen/diabrisk/selection"
	"github.com/medscreen/diabrisk/svm"
	"github.com/medscreen/diabrisk/tree"
)

// BuildSpecs translates the configured model blocks into grid-search
// specs. The seed feeds the stochastic learners so runs are reproducible.
func BuildSpecs(cfg *config.Config) ([]selection.ModelSpec, error) {
	specs := make([]selection.ModelSpec, 0, len(cfg.Models))
	for _, mc := range cfg.Models {
		builder, err := builderFor(mc.Family, cfg.Split.Seed)
		if err != nil {
			return nil, err
		}
		specs = append(specs, selection.ModelSpec{
			Family:    mc.Family,
			Name:      mc.Name,
			Normalize: mc.Normalize,
			Grid:      selection.Grid(mc.Grid),
			Build:     builder,
		})
	}
	return specs, nil
}

func builderFor(family string, seed uint64) (selection.Builder, error) {
	switch family {
	case "logistic":
		return func(p selection.Params) (model.Classifier, error) {
			return linear.NewLogisticRegression(
				linear.WithLRPenalty("l2"),
				linear.WithLRC(p.Get("c", 1.0)),
			), nil
		}, nil

	case "elasticnet":
		return func(p selection.Params) (model.Classifier, error) {
			return linear.NewLogisticRegression(
				linear.WithLRPenalty("elasticnet"),
				linear.WithLRC(p.Get("c", 1.0)),
				linear.WithLRL1Ratio(p.Get("l1_ratio", 0.5)),
				linear.WithLRMaxIter(1000),
			), nil
		}, nil

	case "lda":
		return func(p selection.Params) (model.Classifier, error) {
			return discriminant.NewLinearDiscriminant(
				discriminant.WithLDARegularization(p.Get("reg", 0)),
			), nil
		}, nil

	case "qda":
		return func(p selection.Params) (model.Classifier, error) {
			return discriminant.NewQuadraticDiscriminant(
				discriminant.WithQDARegularization(p.Get("reg", 0)),
			), nil
		}, nil

	case "knn":
		return func(p selection.Params) (model.Classifier, error) {
			return neighbors.NewKNeighborsClassifier(
				neighbors.WithNNeighbors(int(p.Get("k", 5))),
				neighbors.WithWeights(neighbors.WeightsUniform),
			), nil
		}, nil

	case "decision_tree":
		return func(p selection.Params) (model.Classifier, error) {
			return tree.NewDecisionTreeClassifier(
				tree.WithMaxDepth(int(p.Get("depth", 0))),
				tree.WithMinSamplesLeaf(int(p.Get("min_n", 1))),
				tree.WithTreeSeed(seed),
			), nil
		}, nil

	case "rand_forest":
		return func(p selection.Params) (model.Classifier, error) {
			return ensemble.NewRandomForestClassifier(
				ensemble.WithRFNEstimators(int(p.Get("trees", 100))),
				ensemble.WithRFMaxFeatures(int(p.Get("mtry", 0))),
				ensemble.WithRFMinSamplesLeaf(int(p.Get("min_n", 1))),
				ensemble.WithRFSeed(seed),
			), nil
		}, nil

	case "boost_tree":
		return func(p selection.Params) (model.Classifier, error) {
			return ensemble.NewGradientBoostingClassifier(
				ensemble.WithGBNEstimators(int(p.Get("trees", 100))),
				ensemble.WithGBMaxDepth(int(p.Get("depth", 3))),
				ensemble.WithGBLearningRate(p.Get("learning_rate", 0.1)),
			), nil
		}, nil

	case "svm_rbf":
		return func(p selection.Params) (model.Classifier, error) {
			return svm.NewSVC(
				svm.WithSVCKernel(svm.KernelRBF),
				svm.WithSVCC(p.Get("c", 1.0)),
				svm.WithSVCGamma(p.Get("gamma", 0)),
				svm.WithSVCSeed(seed),
			), nil
		}, nil

	case "svm_linear":
		return func(p selection.Params) (model.Classifier, error) {
			return svm.NewSVC(
				svm.WithSVCKernel(svm.KernelLinear),
				svm.WithSVCC(p.Get("c", 1.0)),
				svm.WithSVCSeed(seed),
			), nil
		}, nil
	}

	return nil, diabriskErrors.NewValidationError("model.family", "unknown model family", family)
}
