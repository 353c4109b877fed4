package analysis

import (
	"os"
	"path/filepath"

	"gonum.org/v1/gonum/mat"

	"github.com/medscreen/diabrisk/config"
	"github.com/medscreen/diabrisk/dataset"
	"github.com/medscreen/diabrisk/metrics"
	diabriskErrors "github.com/medscreen/diabrisk/pkg/errors"
	"github.com/medscreen/diabrisk/pkg/log"
	"github.com/medscreen/diabrisk/pipeline"
	"github.com/medscreen/diabrisk/preprocessing"
	"github.com/medscreen/diabrisk/report"
	"github.com/medscreen/diabrisk/selection"
)

// Runner executes the study described by a Config.
type Runner struct {
	Config *config.Config
	OutDir string
	Logger log.Logger
	Cache  selection.ResultCache
}

// NewRunner creates a runner writing artifacts under outDir.
func NewRunner(cfg *config.Config, outDir string, logger log.Logger) *Runner {
	if logger == nil {
		logger = log.Nop()
	}
	return &Runner{Config: cfg, OutDir: outDir, Logger: logger}
}

// Study is the state accumulated over a full run, exposed so the CLI
// subcommands can execute individual stages.
type Study struct {
	Raw     *dataset.Table
	Cleaned *dataset.Table
	Train   *dataset.Table
	Test    *dataset.Table
	Folds   []selection.CVFold

	Results []*selection.SearchResult
	Best    *selection.SearchResult
	Winner  *pipeline.Pipeline
	Holdout *report.HoldoutMetrics

	chartFiles []string
}

// LoadAndClean loads the configured dataset and drops the sentinel rows.
func (r *Runner) LoadAndClean() (*Study, error) {
	raw, err := dataset.Load(r.Config.Dataset.Path)
	if err != nil {
		return nil, err
	}

	cleaned := raw.DropSmokingCategory(r.Config.Dataset.Sentinel)
	if cleaned.Len() == 0 {
		return nil, diabriskErrors.NewModelError("LoadAndClean", "cleaning removed every row", diabriskErrors.ErrEmptyData)
	}

	r.Logger.Info("dataset loaded",
		"path", r.Config.Dataset.Path,
		"rows", raw.Len(),
		"rows_after_cleaning", cleaned.Len(),
		"positives", cleaned.PositiveCount(),
	)
	return &Study{Raw: raw, Cleaned: cleaned}, nil
}

// Split partitions the cleaned table into train/test and builds the CV
// folds over the training rows.
func (r *Runner) Split(study *Study) error {
	split, err := selection.TrainTestSplit(study.Cleaned.Diabetes, r.Config.Split.TestFraction, r.Config.Split.Seed)
	if err != nil {
		return err
	}

	if study.Train, err = study.Cleaned.Select(split.TrainIndices); err != nil {
		return err
	}
	if study.Test, err = study.Cleaned.Select(split.TestIndices); err != nil {
		return err
	}

	skf := selection.NewStratifiedKFold(r.Config.Split.Folds, r.Config.Split.Seed)
	if study.Folds, err = skf.Split(study.Train.Diabetes); err != nil {
		return err
	}

	r.Logger.Info("data split",
		"train_rows", study.Train.Len(),
		"test_rows", study.Test.Len(),
		"folds", len(study.Folds),
	)
	return nil
}

// EDA renders the exploratory charts into the output directory.
func (r *Runner) EDA(study *Study) error {
	if err := os.MkdirAll(r.OutDir, 0o755); err != nil {
		return diabriskErrors.Wrapf(err, "creating output dir %s", r.OutDir)
	}

	t := study.Cleaned
	charts := []struct {
		file   string
		render func(path string) error
	}{
		{"class_balance.png", func(p string) error { return report.ClassBalanceChart(t, p) }},
		{"gender.png", func(p string) error {
			return report.CategoryChart("Gender", dataset.CategoryCounts(t.Gender), p)
		}},
		{"smoking_history.png", func(p string) error {
			return report.CategoryChart("Smoking history", dataset.CategoryCounts(t.Smoking), p)
		}},
		{"bmi_by_label.png", func(p string) error {
			neg, pos := splitByLabel(t, t.BMI)
			return report.ConditionalHistogram("BMI by diabetes label", neg, pos, p)
		}},
		{"hba1c_by_label.png", func(p string) error {
			neg, pos := splitByLabel(t, t.HbA1c)
			return report.ConditionalHistogram("HbA1c by diabetes label", neg, pos, p)
		}},
		{"glucose_by_label.png", func(p string) error {
			neg, pos := splitByLabel(t, t.Glucose)
			return report.ConditionalHistogram("Blood glucose by diabetes label", neg, pos, p)
		}},
	}

	for _, c := range charts {
		if err := c.render(filepath.Join(r.OutDir, c.file)); err != nil {
			return err
		}
		study.chartFiles = append(study.chartFiles, c.file)
	}

	r.Logger.Info("eda charts rendered", "dir", r.OutDir, "charts", len(charts))
	return nil
}

// Tune grid-searches every configured model over the CV folds and selects
// the winner by mean ROC-AUC. Ties keep the earlier config entry.
func (r *Runner) Tune(study *Study) error {
	specs, err := BuildSpecs(r.Config)
	if err != nil {
		return err
	}

	sampler := preprocessing.NewRandomOverSampler(r.Config.Split.Seed)
	for _, spec := range specs {
		gs := selection.NewGridSearch(spec, study.Folds, sampler, r.Logger)
		gs.Cache = r.Cache

		result, err := gs.Run(study.Train)
		if err != nil {
			return err
		}
		study.Results = append(study.Results, result)

		if result.Omitted {
			continue
		}
		if study.Best == nil || result.Best.MeanAUC > study.Best.Best.MeanAUC {
			study.Best = result
		}
	}

	if study.Best == nil {
		return diabriskErrors.New("every model was omitted from the comparison")
	}
	r.Logger.Info("model selected",
		"model", study.Best.ModelID,
		"params", study.Best.Best.Params.Key(),
		"mean_auc", study.Best.Best.MeanAUC,
	)
	return nil
}

// Finalize refits the winner on the full training partition and evaluates
// it on the holdout.
func (r *Runner) Finalize(study *Study) error {
	specs, err := BuildSpecs(r.Config)
	if err != nil {
		return err
	}

	var winnerSpec *selection.ModelSpec
	for i := range specs {
		if specs[i].ID() == study.Best.ModelID {
			winnerSpec = &specs[i]
			break
		}
	}
	if winnerSpec == nil {
		return diabriskErrors.Newf("winning model %s not found in config", study.Best.ModelID)
	}

	clf, err := winnerSpec.Build(study.Best.Best.Params)
	if err != nil {
		return err
	}

	study.Winner = pipeline.New(
		study.Best.ModelID,
		preprocessing.NewRecipe(winnerSpec.Normalize),
		clf,
		pipeline.WithLogger(r.Logger),
		pipeline.WithSampler(preprocessing.NewRandomOverSampler(r.Config.Split.Seed)),
	)
	if err := study.Winner.Fit(study.Train); err != nil {
		return err
	}

	proba, err := study.Winner.PositiveProba(study.Test)
	if err != nil {
		return err
	}
	labels := study.Test.Labels()

	auc, err := metrics.AUC(labels, proba)
	if err != nil {
		return err
	}

	predicted, err := study.Winner.Predict(study.Test)
	if err != nil {
		return err
	}
	cm, err := metrics.NewConfusionMatrix(labels, denseColumn(predicted))
	if err != nil {
		return err
	}
	study.Holdout = &report.HoldoutMetrics{AUC: auc, Confusion: cm}

	if err := r.renderFinalCharts(study, labels, proba); err != nil {
		return err
	}

	r.Logger.Info("holdout evaluation",
		"model", study.Best.ModelID,
		"auc", auc,
		"accuracy", cm.Accuracy(),
		"sensitivity", cm.Sensitivity(),
		"specificity", cm.Specificity(),
	)
	return nil
}

func (r *Runner) renderFinalCharts(study *Study, labels, proba *mat.VecDense) error {
	if err := os.MkdirAll(r.OutDir, 0o755); err != nil {
		return diabriskErrors.Wrapf(err, "creating output dir %s", r.OutDir)
	}

	fprs, tprs, err := metrics.ROCCurve(labels, proba)
	if err != nil {
		return err
	}
	rocPath := filepath.Join(r.OutDir, "roc_holdout.png")
	if err := report.ROCChart([]report.ROCSeries{
		{Name: study.Best.ModelID, FPR: fprs, TPR: tprs},
	}, rocPath); err != nil {
		return err
	}
	study.chartFiles = append(study.chartFiles, "roc_holdout.png")

	var scores []report.ModelScore
	for _, res := range study.Results {
		if res.Omitted {
			continue
		}
		scores = append(scores, report.ModelScore{Name: res.ModelID, MeanAUC: res.Best.MeanAUC})
	}
	cmpPath := filepath.Join(r.OutDir, "model_comparison.png")
	if err := report.ComparisonChart(scores, cmpPath); err != nil {
		return err
	}
	study.chartFiles = append(study.chartFiles, "model_comparison.png")
	return nil
}

// Report writes the markdown summary into the output directory.
func (r *Runner) Report(study *Study) error {
	neg, pos := dataset.LabelBalance(study.Cleaned)
	data := &report.Data{
		DatasetPath:   r.Config.Dataset.Path,
		RowsLoaded:    study.Raw.Len(),
		RowsKept:      study.Cleaned.Len(),
		Summaries:     dataset.Summaries(study.Cleaned),
		GenderCounts:  dataset.CategoryCounts(study.Cleaned.Gender),
		SmokingCounts: dataset.CategoryCounts(study.Cleaned.Smoking),
		LabelNeg:      neg,
		LabelPos:      pos,
		Results:       study.Results,
		Holdout:       study.Holdout,
		ChartFiles:    study.chartFiles,
	}
	if study.Train != nil {
		data.TrainRows = study.Train.Len()
		data.TestRows = study.Test.Len()
	}
	if study.Best != nil {
		data.BestID = study.Best.ModelID
	}

	path := filepath.Join(r.OutDir, "report.md")
	if err := report.WriteMarkdownFile(path, data); err != nil {
		return err
	}
	r.Logger.Info("report written", "path", path)
	return nil
}

// Run executes the whole study end to end.
func (r *Runner) Run() (*Study, error) {
	study, err := r.LoadAndClean()
	if err != nil {
		return nil, err
	}
	if err := r.Split(study); err != nil {
		return nil, err
	}
	if err := r.EDA(study); err != nil {
		return nil, err
	}
	if err := r.Tune(study); err != nil {
		return nil, err
	}
	if err := r.Finalize(study); err != nil {
		return nil, err
	}
	if err := r.Report(study); err != nil {
		return nil, err
	}
	return study, nil
}

// splitByLabel partitions one numeric column by the diabetes label.
func splitByLabel(t *dataset.Table, values []float64) (neg, pos []float64) {
	for i, v := range values {
		if t.Diabetes[i] == 1 {
			pos = append(pos, v)
		} else {
			neg = append(neg, v)
		}
	}
	return neg, pos
}

// denseColumn converts an n x 1 prediction matrix to a vector.
func denseColumn(m mat.Matrix) *mat.VecDense {
	n, _ := m.Dims()
	v := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		v.SetVec(i, m.At(i, 0))
	}
	return v
}
