package main

import (
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full study: clean, explore, tune, select, evaluate, report",
	RunE: func(cmd *cobra.Command, args []string) error {
		runner, cleanup, err := newRunner()
		if err != nil {
			return err
		}
		defer cleanup()

		_, err = runner.Run()
		return err
	},
}
