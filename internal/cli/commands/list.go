package commands

import (
	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List the scripts in the scripts folder",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, cmd.InOrStdin())
		if err != nil {
			return err
		}
		defer a.close()

		return a.out.FormatScripts(a.loader.Entries())
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
}
