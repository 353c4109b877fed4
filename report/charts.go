// Package report renders the run's artifacts: PNG charts through
// gonum/plot and a markdown summary with the model comparison and holdout
// metrics.
package report

import (
	"image/color"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/medscreen/diabrisk/dataset"
	diabriskErrors "github.com/medscreen/diabrisk/pkg/errors"
)

const (
	chartWidth  = 6 * vg.Inch
	chartHeight = 4 * vg.Inch
	histBins    = 30
)

var (
	negativeColor = color.RGBA{R: 70, G: 130, B: 180, A: 255}
	positiveColor = color.RGBA{R: 205, G: 92, B: 92, A: 255}
)

// ROCSeries is one named curve on the ROC chart.
type ROCSeries struct {
	Name string
	FPR  []float64
	TPR  []float64
}

// ModelScore is one bar of the comparison chart.
type ModelScore struct {
	Name    string
	MeanAUC float64
}

// ClassBalanceChart renders the label counts as a two-bar chart.
func ClassBalanceChart(t *dataset.Table, path string) error {
	negatives, positives := dataset.LabelBalance(t)

	p := plot.New()
	p.Title.Text = "Diabetes label balance"
	p.Y.Label.Text = "patients"

	bars, err := plotter.NewBarChart(plotter.Values{float64(negatives), float64(positives)}, vg.Points(40))
	if err != nil {
		return diabriskErrors.Wrap(err, "building class balance bars")
	}
	bars.Color = negativeColor
	p.Add(bars)
	p.NominalX("no diabetes", "diabetes")

	return save(p, path)
}

// CategoryChart renders category counts for one string column.
func CategoryChart(title string, counts map[string]int, path string) error {
	categories := dataset.SortedCategories(counts)
	values := make(plotter.Values, len(categories))
	for i, c := range categories {
		values[i] = float64(counts[c])
	}

	p := plot.New()
	p.Title.Text = title
	p.Y.Label.Text = "patients"

	bars, err := plotter.NewBarChart(values, vg.Points(30))
	if err != nil {
		return diabriskErrors.Wrapf(err, "building %s bars", title)
	}
	bars.Color = negativeColor
	p.Add(bars)
	p.NominalX(categories...)
	p.X.Tick.Label.Rotation = 0.5

	return save(p, path)
}

// ConditionalHistogram renders overlaid histograms of one numeric column,
// split by diabetes label.
func ConditionalHistogram(title string, negatives, positives []float64, path string) error {
	p := plot.New()
	p.Title.Text = title
	p.Y.Label.Text = "count"

	negHist, err := plotter.NewHist(sliceValues(negatives), histBins)
	if err != nil {
		return diabriskErrors.Wrapf(err, "building %s histogram", title)
	}
	negHist.FillColor = withAlpha(negativeColor, 160)

	posHist, err := plotter.NewHist(sliceValues(positives), histBins)
	if err != nil {
		return diabriskErrors.Wrapf(err, "building %s histogram", title)
	}
	posHist.FillColor = withAlpha(positiveColor, 160)

	p.Add(negHist, posHist)
	p.Legend.Add("no diabetes", negHist)
	p.Legend.Add("diabetes", posHist)
	p.Legend.Top = true

	return save(p, path)
}

// ROCChart renders one or more ROC curves plus the chance diagonal.
func ROCChart(series []ROCSeries, path string) error {
	p := plot.New()
	p.Title.Text = "ROC curves (holdout)"
	p.X.Label.Text = "false positive rate"
	p.Y.Label.Text = "true positive rate"
	p.X.Min, p.X.Max = 0, 1
	p.Y.Min, p.Y.Max = 0, 1

	diagonal, err := plotter.NewLine(plotter.XYs{{X: 0, Y: 0}, {X: 1, Y: 1}})
	if err != nil {
		return diabriskErrors.Wrap(err, "building ROC diagonal")
	}
	diagonal.LineStyle.Color = color.Gray{Y: 160}
	diagonal.LineStyle.Dashes = []vg.Length{vg.Points(4), vg.Points(4)}
	p.Add(diagonal)

	for i, s := range series {
		pts := make(plotter.XYs, len(s.FPR))
		for j := range s.FPR {
			pts[j].X = s.FPR[j]
			pts[j].Y = s.TPR[j]
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return diabriskErrors.Wrapf(err, "building ROC line for %s", s.Name)
		}
		line.LineStyle.Color = plotter.DefaultLineStyle.Color
		if i == 0 {
			line.LineStyle.Color = positiveColor
		}
		p.Add(line)
		p.Legend.Add(s.Name, line)
	}
	p.Legend.Top = false

	return save(p, path)
}

// ComparisonChart renders mean cross-validated AUC per model as bars.
func ComparisonChart(scores []ModelScore, path string) error {
	values := make(plotter.Values, len(scores))
	names := make([]string, len(scores))
	for i, s := range scores {
		values[i] = s.MeanAUC
		names[i] = s.Name
	}

	p := plot.New()
	p.Title.Text = "Model comparison (mean CV ROC-AUC)"
	p.Y.Label.Text = "mean ROC-AUC"
	p.Y.Min = 0.5
	p.Y.Max = 1.0

	bars, err := plotter.NewBarChart(values, vg.Points(30))
	if err != nil {
		return diabriskErrors.Wrap(err, "building comparison bars")
	}
	bars.Color = negativeColor
	p.Add(bars)
	p.NominalX(names...)
	p.X.Tick.Label.Rotation = 0.5

	return save(p, path)
}

func save(p *plot.Plot, path string) error {
	if err := p.Save(chartWidth, chartHeight, path); err != nil {
		return diabriskErrors.Wrapf(err, "saving chart %s", filepath.Base(path))
	}
	return nil
}

func sliceValues(values []float64) plotter.Values {
	out := make(plotter.Values, len(values))
	copy(out, values)
	return out
}

func withAlpha(c color.RGBA, alpha uint8) color.RGBA {
	c.A = alpha
	return c
}
