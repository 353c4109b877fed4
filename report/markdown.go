package report

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/medscreen/diabrisk/dataset"
	"github.com/medscreen/diabrisk/metrics"
	diabriskErrors "github.com/medscreen/diabrisk/pkg/errors"
	"github.com/medscreen/diabrisk/selection"
)

// HoldoutMetrics is the final evaluation of the winning model on the test
// partition.
type HoldoutMetrics struct {
	AUC       float64
	Confusion *metrics.ConfusionMatrix
}

// Data collects everything the markdown report renders.
type Data struct {
	DatasetPath string
	RowsLoaded  int
	RowsKept    int
	TrainRows   int
	TestRows    int

	Summaries     []dataset.ColumnSummary
	GenderCounts  map[string]int
	SmokingCounts map[string]int
	LabelNeg      int
	LabelPos      int

	Results []*selection.SearchResult
	BestID  string
	Holdout *HoldoutMetrics

	ChartFiles []string
}

// WriteMarkdownFile renders the report to path.
func WriteMarkdownFile(path string, data *Data) error {
	f, err := os.Create(path)
	if err != nil {
		return diabriskErrors.Wrapf(err, "creating report %s", path)
	}
	if err := WriteMarkdown(f, data); err != nil {
		f.Close()
		return err
	}
	return diabriskErrors.Wrapf(f.Close(), "closing report %s", path)
}

// WriteMarkdown renders the report to w.
func WriteMarkdown(w io.Writer, data *Data) error {
	var b strings.Builder

	b.WriteString("# Diabetes risk screening report\n\n")

	fmt.Fprintf(&b, "Dataset: `%s`\n\n", data.DatasetPath)
	fmt.Fprintf(&b, "- rows loaded: %d\n", data.RowsLoaded)
	fmt.Fprintf(&b, "- rows after cleaning: %d (dropped %d with unknown smoking history)\n",
		data.RowsKept, data.RowsLoaded-data.RowsKept)
	fmt.Fprintf(&b, "- training rows: %d, holdout rows: %d\n", data.TrainRows, data.TestRows)
	fmt.Fprintf(&b, "- label balance: %d negative / %d positive (%.1f%% positive)\n\n",
		data.LabelNeg, data.LabelPos,
		100*float64(data.LabelPos)/float64(data.LabelNeg+data.LabelPos))

	if len(data.Summaries) > 0 {
		b.WriteString("## Numeric columns\n\n")
		b.WriteString("| column | mean | sd | min | q1 | median | q3 | max |\n")
		b.WriteString("|--------|------|----|-----|----|--------|----|-----|\n")
		for _, s := range data.Summaries {
			fmt.Fprintf(&b, "| %s | %.3f | %.3f | %.3f | %.3f | %.3f | %.3f | %.3f |\n",
				s.Name, s.Mean, s.Std, s.Min, s.Q1, s.Median, s.Q3, s.Max)
		}
		b.WriteString("\n")
	}

	writeCategoryTable(&b, "Gender", data.GenderCounts)
	writeCategoryTable(&b, "Smoking history", data.SmokingCounts)

	b.WriteString("## Model comparison\n\n")
	b.WriteString("Scored by mean ROC-AUC over stratified cross-validation folds.\n\n")
	b.WriteString("| model | best params | mean AUC | sd | status |\n")
	b.WriteString("|-------|-------------|----------|----|--------|\n")
	for _, r := range data.Results {
		if r.Omitted {
			fmt.Fprintf(&b, "| %s | — | — | — | omitted: %s |\n", r.ModelID, r.OmitReason)
			continue
		}
		status := ""
		if r.ModelID == data.BestID {
			status = "**selected**"
		}
		fmt.Fprintf(&b, "| %s | %s | %.4f | %.4f | %s |\n",
			r.ModelID, r.Best.Params.Key(), r.Best.MeanAUC, r.Best.StdAUC, status)
	}
	b.WriteString("\n")

	if data.Holdout != nil {
		cm := data.Holdout.Confusion
		fmt.Fprintf(&b, "## Holdout evaluation: %s\n\n", data.BestID)
		b.WriteString("| metric | value |\n")
		b.WriteString("|--------|-------|\n")
		fmt.Fprintf(&b, "| ROC-AUC | %.4f |\n", data.Holdout.AUC)
		fmt.Fprintf(&b, "| accuracy | %.4f |\n", cm.Accuracy())
		fmt.Fprintf(&b, "| sensitivity | %.4f |\n", cm.Sensitivity())
		fmt.Fprintf(&b, "| specificity | %.4f |\n", cm.Specificity())
		fmt.Fprintf(&b, "| precision | %.4f |\n", cm.Precision())
		fmt.Fprintf(&b, "| F1 | %.4f |\n\n", cm.F1())

		b.WriteString("Confusion matrix (rows = truth, columns = prediction):\n\n")
		b.WriteString("| | predicted 0 | predicted 1 |\n")
		b.WriteString("|---|---|---|\n")
		fmt.Fprintf(&b, "| actual 0 | %d | %d |\n", cm.TrueNegatives, cm.FalsePositives)
		fmt.Fprintf(&b, "| actual 1 | %d | %d |\n\n", cm.FalseNegatives, cm.TruePositives)
	}

	if len(data.ChartFiles) > 0 {
		b.WriteString("## Charts\n\n")
		files := append([]string(nil), data.ChartFiles...)
		sort.Strings(files)
		for _, f := range files {
			fmt.Fprintf(&b, "![%s](%s)\n\n", f, f)
		}
	}

	_, err := io.WriteString(w, b.String())
	return diabriskErrors.Wrap(err, "writing markdown report")
}

func writeCategoryTable(b *strings.Builder, title string, counts map[string]int) {
	if len(counts) == 0 {
		return
	}
	fmt.Fprintf(b, "## %s\n\n", title)
	b.WriteString("| category | count |\n")
	b.WriteString("|----------|-------|\n")
	for _, c := range dataset.SortedCategories(counts) {
		fmt.Fprintf(b, "| %s | %d |\n", c, counts[c])
	}
	b.WriteString("\n")
}
