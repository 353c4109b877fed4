package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var tuneCmd = &cobra.Command{
	Use:   "tune",
	Short: "Tune every configured model and print the comparison",
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

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "model\tbest params\tmean AUC\tsd\tstatus")
		for _, r := range study.Results {
			if r.Omitted {
				fmt.Fprintf(w, "%s\t-\t-\t-\tomitted: %s\n", r.ModelID, r.OmitReason)
				continue
			}
			status := ""
			if r.ModelID == study.Best.ModelID {
				status = "selected"
			}
			fmt.Fprintf(w, "%s\t%s\t%.4f\t%.4f\t%s\n",
				r.ModelID, r.Best.Params.Key(), r.Best.MeanAUC, r.Best.StdAUC, status)
		}
		return w.Flush()
	},
}
