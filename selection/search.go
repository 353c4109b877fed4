package selection

import (
	"sync"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/medscreen/diabrisk/dataset"
	"github.com/medscreen/diabrisk/metrics"
	diabriskErrors "github.com/medscreen/diabrisk/pkg/errors"
	"github.com/medscreen/diabrisk/pkg/log"
	"github.com/medscreen/diabrisk/preprocessing"
)

// ResultCache persists per-candidate fold scores across runs. The store
// package provides the SQLite implementation; a nil cache disables reuse.
type ResultCache interface {
	Lookup(modelID, paramsKey string) (scores []float64, ok bool, err error)
	Save(modelID, paramsKey string, scores []float64, mean float64) error
}

// CandidateResult is the cross-validated score of one hyperparameter
// assignment.
type CandidateResult struct {
	Params     Params
	FoldScores []float64
	MeanAUC    float64
	StdAUC     float64
	FromCache  bool
}

// SearchResult is the outcome of tuning one model spec. A model whose fit
// fails (QDA on a rank-deficient covariance, for instance) comes back with
// Omitted set instead of an error, so the comparison continues without it.
type SearchResult struct {
	ModelID    string
	Candidates []CandidateResult
	Best       CandidateResult
	Omitted    bool
	OmitReason string
}

// GridSearch tunes one model spec over stratified CV folds, scoring every
// candidate by mean assessment-set ROC-AUC.
type GridSearch struct {
	Spec    ModelSpec
	Folds   []CVFold
	Sampler *preprocessing.RandomOverSampler
	Cache   ResultCache
	Logger  log.Logger
}

// NewGridSearch creates a search for spec over the given folds.
func NewGridSearch(spec ModelSpec, folds []CVFold, sampler *preprocessing.RandomOverSampler, logger log.Logger) *GridSearch {
	if logger == nil {
		logger = log.Nop()
	}
	return &GridSearch{
		Spec:    spec,
		Folds:   folds,
		Sampler: sampler,
		Logger:  logger,
	}
}

// Run evaluates every grid candidate on train. Fold indices refer to rows
// of train. The best candidate maximizes mean ROC-AUC; ties keep the
// earlier candidate.
func (gs *GridSearch) Run(train *dataset.Table) (*SearchResult, error) {
	result := &SearchResult{ModelID: gs.Spec.ID()}

	candidates := gs.Spec.Grid.Candidates()
	gs.Logger.Info("tuning model",
		"model", result.ModelID,
		"candidates", len(candidates),
		"folds", len(gs.Folds),
	)

	for _, params := range candidates {
		candidate, err := gs.evaluate(train, params)
		if err != nil {
			// A fit failure drops the whole model from the comparison
			// rather than aborting the run.
			var modelErr *diabriskErrors.ModelError
			if diabriskErrors.As(err, &modelErr) {
				gs.Logger.Warn("model omitted from comparison",
					"model", result.ModelID,
					"params", params.Key(),
					err,
				)
				result.Omitted = true
				result.OmitReason = modelErr.Error()
				return result, nil
			}
			return nil, err
		}

		result.Candidates = append(result.Candidates, candidate)
		if len(result.Candidates) == 1 || candidate.MeanAUC > result.Best.MeanAUC {
			result.Best = candidate
		}
	}

	gs.Logger.Info("tuning finished",
		"model", result.ModelID,
		"best_params", result.Best.Params.Key(),
		"mean_auc", result.Best.MeanAUC,
	)
	return result, nil
}

// evaluate scores one candidate across all folds, consulting the cache
// first.
func (gs *GridSearch) evaluate(train *dataset.Table, params Params) (CandidateResult, error) {
	candidate := CandidateResult{Params: params}

	if gs.Cache != nil {
		scores, ok, err := gs.Cache.Lookup(gs.Spec.ID(), params.Key())
		if err != nil {
			return candidate, err
		}
		if ok && len(scores) == len(gs.Folds) {
			candidate.FoldScores = scores
			candidate.MeanAUC = stat.Mean(scores, nil)
			candidate.StdAUC = stat.StdDev(scores, nil)
			candidate.FromCache = true
			gs.Logger.Debug("cache hit",
				"model", gs.Spec.ID(),
				"params", params.Key(),
				"mean_auc", candidate.MeanAUC,
			)
			return candidate, nil
		}
	}

	scores := make([]float64, len(gs.Folds))
	errs := make([]error, len(gs.Folds))

	var wg sync.WaitGroup
	for foldIdx := range gs.Folds {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			scores[idx], errs[idx] = gs.evaluateFold(train, gs.Folds[idx], params)
		}(foldIdx)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return candidate, err
		}
	}

	candidate.FoldScores = scores
	candidate.MeanAUC = stat.Mean(scores, nil)
	candidate.StdAUC = stat.StdDev(scores, nil)

	if gs.Cache != nil {
		if err := gs.Cache.Save(gs.Spec.ID(), params.Key(), scores, candidate.MeanAUC); err != nil {
			return candidate, err
		}
	}
	return candidate, nil
}

// evaluateFold fits the candidate on the fold's (oversampled) train side
// and returns the ROC-AUC on the untouched assessment side.
func (gs *GridSearch) evaluateFold(train *dataset.Table, fold CVFold, params Params) (float64, error) {
	foldTrain, err := train.Select(fold.TrainIndices)
	if err != nil {
		return 0, err
	}
	if gs.Sampler != nil {
		foldTrain, err = gs.Sampler.Resample(foldTrain)
		if err != nil {
			return 0, err
		}
	}

	recipe := preprocessing.NewRecipe(gs.Spec.Normalize)
	X, err := recipe.FitTransform(foldTrain)
	if err != nil {
		return 0, err
	}

	clf, err := gs.Spec.Build(params)
	if err != nil {
		return 0, err
	}
	if err := clf.Fit(X, foldTrain.LabelMatrix()); err != nil {
		return 0, err
	}

	assess, err := train.Select(fold.AssessIndices)
	if err != nil {
		return 0, err
	}
	Xa, err := recipe.Transform(assess)
	if err != nil {
		return 0, err
	}

	proba, err := clf.PredictProba(Xa)
	if err != nil {
		return 0, err
	}

	return metrics.AUC(assess.Labels(), positiveColumn(proba))
}

// positiveColumn extracts the probability of the positive class (column 1
// of an n x 2 probability matrix) as a vector.
func positiveColumn(proba mat.Matrix) *mat.VecDense {
	n, cols := proba.Dims()
	col := cols - 1
	v := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		v.SetVec(i, proba.At(i, col))
	}
	return v
}
