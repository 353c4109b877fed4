package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/medscreen/diabrisk/dataset"
)

var edaCmd = &cobra.Command{
	Use:   "eda",
	Short: "Render exploratory charts and print column summaries",
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
		if err := runner.EDA(study); err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "column\tmean\tsd\tmin\tmedian\tmax")
		for _, s := range dataset.Summaries(study.Cleaned) {
			fmt.Fprintf(w, "%s\t%.3f\t%.3f\t%.3f\t%.3f\t%.3f\n",
				s.Name, s.Mean, s.Std, s.Min, s.Median, s.Max)
		}
		return w.Flush()
	},
}
