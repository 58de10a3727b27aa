package commands

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	clierrors "github.com/scenariokit/harness/internal/cli/errors"
)

const replHelp = `Commands:
  list, l       list the loaded scripts
  context, c    print the shared context
  reload, r     reload the scripts folder
  files, f [d]  list saved files, optionally below folder d
  help, h       show this help
  exit, e       leave
  <id> [id...]  run scripts by id`

var replCmd = &cobra.Command{
	Use:   "repl",
	Short: "Pick and run scripts interactively",
	Long: `repl keeps the shared context between runs, so values stored by one
scenario stay visible to the next.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		// Scenario prompts read from the same buffer as the command loop.
		in := bufio.NewReader(cmd.InOrStdin())
		a, err := newApp(cmd, in)
		if err != nil {
			return err
		}
		defer a.close()

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, replHelp)
		for {
			fmt.Fprint(out, "harness> ")
			line, err := in.ReadString('\n')
			if err != nil && (err != io.EOF || line == "") {
				fmt.Fprintln(out)
				return nil
			}
			fields := strings.Fields(line)
			if len(fields) == 0 {
				continue
			}

			switch strings.ToLower(fields[0]) {
			case "list", "l":
				err = a.out.FormatScripts(a.loader.Entries())
			case "context", "c":
				err = a.out.FormatContext(a.h.Context.All())
			case "files", "f":
				var dir string
				if len(fields) > 1 {
					dir = fields[1]
				}
				var files []string
				if files, err = a.h.Files.List(dir); err == nil {
					for _, f := range files {
						fmt.Fprintln(out, f)
					}
				}
			case "reload", "r":
				if err = a.loader.LoadAll(); err == nil {
					a.out.Info("Reloaded %d scripts", len(a.loader.Entries()))
				}
			case "help", "h":
				fmt.Fprintln(out, replHelp)
			case "exit", "e":
				return nil
			default:
				entries, rerr := a.resolve(fields)
				if rerr != nil {
					err = rerr
					break
				}
				err = a.out.FormatResults(a.runner.RunBatch(cmd.Context(), entries))
			}
			if err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), a.out.FormatError(clierrors.Classify(err)))
			}
			if cmd.Context().Err() != nil {
				return nil
			}
		}
	},
}

func init() {
	rootCmd.AddCommand(replCmd)
}
