package main

import (
	"github.com/spf13/cobra"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Tune, evaluate the winner on the holdout, and write the report",
	Long: `Like run, but without the exploratory charts: tune every configured
model, refit the winner, evaluate it on the holdout, and write the markdown
report plus the ROC and comparison charts.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		runner, cleanup, err := newRunner()
		if err != nil {
			return err
		}
		defer cleanup()

		study, err := runner.LoadAndClean()
		if err != nil {
			return err
		}
		if err := runner.Split(study); err != nil {
			return err
		}
		if err := runner.Tune(study); err != nil {
			return err
		}
		if err := runner.Finalize(study); err != nil {
			return err
		}
		return runner.Report(study)
	},
}
