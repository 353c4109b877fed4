package analysis

import (
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/medscreen/diabrisk/config"
)

// writeStudyCSV generates a dataset where HbA1c and glucose separate the
// classes, plus a few sentinel rows that cleaning should drop.
func writeStudyCSV(t *testing.T, dir string, nNeg, nPos, nSentinel int) string {
	t.Helper()

	rng := rand.New(rand.NewPCG(42, 42))
	var sb strings.Builder
	sb.WriteString("gender,age,hypertension,heart_disease,smoking_history,bmi,HbA1c_level,blood_glucose_level,diabetes\n")

	gender := func(i int) string {
		if i%3 == 0 {
			return "Male"
		}
		return "Female"
	}
	smoking := func(i int) string {
		if i%4 == 0 {
			return "former"
		}
		return "never"
	}

	for i := 0; i < nNeg; i++ {
		fmt.Fprintf(&sb, "%s,%.1f,0,0,%s,%.2f,%.2f,%.1f,0\n",
			gender(i), 30+10*rng.Float64(), smoking(i),
			22+4*rng.Float64(), 4.5+0.8*rng.Float64(), 90+30*rng.Float64())
	}
	for i := 0; i < nPos; i++ {
		fmt.Fprintf(&sb, "%s,%.1f,1,0,%s,%.2f,%.2f,%.1f,1\n",
			gender(i), 55+10*rng.Float64(), smoking(i),
			30+5*rng.Float64(), 7.0+1.5*rng.Float64(), 190+60*rng.Float64())
	}
	for i := 0; i < nSentinel; i++ {
		fmt.Fprintf(&sb, "Female,%.1f,0,0,No Info,%.2f,%.2f,%.1f,0\n",
			40+5*rng.Float64(), 25.0, 5.0, 110.0)
	}

	path := filepath.Join(dir, "diabetes.csv")
	if err := os.WriteFile(path, []byte(sb.String()), 0o644); err != nil {
		t.Fatalf("writing dataset: %v", err)
	}
	return path
}

func studyConfig(dataPath string) *config.Config {
	return &config.Config{
		Dataset: config.DatasetConfig{Path: dataPath, Sentinel: "No Info"},
		Split:   config.SplitConfig{TestFraction: 0.25, Folds: 3, Seed: 42},
		Models: []config.ModelConfig{
			{Family: "logistic", Name: "baseline", Normalize: true},
			{Family: "lda", Name: "lda"},
		},
	}
}

func TestRunnerEndToEnd(t *testing.T) {
	dir := t.TempDir()
	dataPath := writeStudyCSV(t, dir, 80, 40, 6)
	outDir := filepath.Join(dir, "results")

	r := NewRunner(studyConfig(dataPath), outDir, nil)
	study, err := r.Run()
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if study.Raw.Len() != 126 {
		t.Errorf("expected 126 raw rows, got %d", study.Raw.Len())
	}
	if study.Cleaned.Len() != 120 {
		t.Errorf("expected sentinel rows dropped, got %d", study.Cleaned.Len())
	}
	if study.Train.Len()+study.Test.Len() != study.Cleaned.Len() {
		t.Error("train and test partitions do not cover the cleaned table")
	}

	if len(study.Results) != 2 {
		t.Fatalf("expected 2 search results, got %d", len(study.Results))
	}
	if study.Best == nil {
		t.Fatal("no winning model selected")
	}
	if study.Holdout == nil {
		t.Fatal("no holdout metrics computed")
	}
	if study.Holdout.AUC < 0.9 {
		t.Errorf("expected holdout AUC >= 0.9 on separable data, got %f", study.Holdout.AUC)
	}

	for _, file := range []string{
		"report.md",
		"class_balance.png",
		"roc_holdout.png",
		"model_comparison.png",
	} {
		if _, err := os.Stat(filepath.Join(outDir, file)); err != nil {
			t.Errorf("artifact %s not written: %v", file, err)
		}
	}

	content, err := os.ReadFile(filepath.Join(outDir, "report.md"))
	if err != nil {
		t.Fatalf("reading report: %v", err)
	}
	if !strings.Contains(string(content), study.Best.ModelID) {
		t.Error("report does not mention the winning model")
	}
}

func TestRunnerTieKeepsEarlierConfigEntry(t *testing.T) {
	// Two identical model blocks score identically; the first configured
	// entry must win the tie.
	dir := t.TempDir()
	dataPath := writeStudyCSV(t, dir, 60, 30, 0)

	cfg := studyConfig(dataPath)
	cfg.Models = []config.ModelConfig{
		{Family: "lda", Name: "first"},
		{Family: "lda", Name: "second"},
	}

	r := NewRunner(cfg, filepath.Join(dir, "results"), nil)
	study, err := r.LoadAndClean()
	if err != nil {
		t.Fatalf("LoadAndClean failed: %v", err)
	}
	if err := r.Split(study); err != nil {
		t.Fatalf("Split failed: %v", err)
	}
	if err := r.Tune(study); err != nil {
		t.Fatalf("Tune failed: %v", err)
	}

	if study.Best.ModelID != "lda/first" {
		t.Errorf("tie must keep the earlier entry, selected %s", study.Best.ModelID)
	}
}

func TestRunnerFailsWhenCleaningRemovesEverything(t *testing.T) {
	dir := t.TempDir()
	dataPath := writeStudyCSV(t, dir, 0, 0, 5)

	r := NewRunner(studyConfig(dataPath), filepath.Join(dir, "results"), nil)
	if _, err := r.LoadAndClean(); err == nil {
		t.Error("expected an error when every row is dropped")
	}
}
