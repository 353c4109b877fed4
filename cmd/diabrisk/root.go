package main

import (
	"github.com/spf13/cobra"

	"github.com/medscreen/diabrisk/analysis"
	"github.com/medscreen/diabrisk/config"
	"github.com/medscreen/diabrisk/pkg/log"
	"github.com/medscreen/diabrisk/store"
)

var (
	configPath string
	dataPath   string
	outDir     string
	logLevel   string

	rootCmd = &cobra.Command{
		Use:   "diabrisk",
		Short: "Diabetes risk screening: tune, compare, and report classifiers",
		Long: `diabrisk runs a reproducible screening study over a tabular diabetes
dataset: it cleans the data, explores it, tunes eight classifier families by
cross-validated ROC-AUC, refits the best one, evaluates it on a stratified
holdout, and renders charts plus a markdown report.

Examples:
  # Full study with the built-in model comparison
  diabrisk run --data data/diabetes.csv --out results/

  # Custom models and grids from an HCL file
  diabrisk run --config study.hcl --out results/

  # Only the exploratory charts
  diabrisk eda --data data/diabetes.csv --out results/

  # Only the tuning comparison (cached in SQLite when configured)
  diabrisk tune --config study.hcl`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "HCL run configuration (default: built-in comparison)")
	rootCmd.PersistentFlags().StringVarP(&dataPath, "data", "d", "", "dataset CSV path, overrides the config")
	rootCmd.PersistentFlags().StringVarP(&outDir, "out", "o", "results", "output directory for charts and the report")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")

	rootCmd.AddCommand(runCmd, edaCmd, tuneCmd, reportCmd)
}

// newRunner builds a Runner from the CLI flags, wiring the SQLite cache
// when the config names one. The caller must call the returned cleanup.
func newRunner() (*analysis.Runner, func(), error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	if dataPath != "" {
		cfg.Dataset.Path = dataPath
	}

	provider := log.NewZerologProvider(log.ToLogLevel(logLevel))
	runner := analysis.NewRunner(cfg, outDir, provider.GetLoggerWithName("diabrisk"))

	cleanup := func() {}
	if cfg.Cache.Path != "" {
		cache, err := store.Open(cfg.Cache.Path, cfg.Hash())
		if err != nil {
			return nil, nil, err
		}
		runner.Cache = cache
		cleanup = func() { _ = cache.Close() }
	}
	return runner, cleanup, nil
}
