package commands

import (
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run [id...]",
	Short: "Run scripts by id in order, or all of them",
	Long: `Run executes the given scripts in order and stops at the first failure.
Without ids every loaded script runs. The exit status is non-zero when any
scenario fails.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, cmd.InOrStdin())
		if err != nil {
			return err
		}
		defer a.close()

		entries, err := a.resolve(args)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			a.out.Info("No scripts found in %s", a.loader.Dir())
			return nil
		}

		results := a.runner.RunBatch(cmd.Context(), entries)
		if err := a.out.FormatResults(results); err != nil {
			return err
		}
		for _, r := range results {
			if !r.Passed {
				return errReported
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}
