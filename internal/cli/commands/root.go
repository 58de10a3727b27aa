package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	clierrors "github.com/scenariokit/harness/internal/cli/errors"
	"github.com/scenariokit/harness/internal/cli/inference"
	"github.com/scenariokit/harness/internal/cli/output"
)

var (
	cfgFile    string
	scriptsDir string
	dataDir    string
	envFile    string
	timeout    time.Duration
	jsonOutput bool
	noColor    bool
)

// errReported marks a failure that has already been printed.
var errReported = errors.New("scenario run failed")

var rootCmd = &cobra.Command{
	Use:   "harness",
	Short: "Scenario harness - scripted REST and SOAP integration scenarios",
	Long: `harness loads JavaScript scenarios from a folder and runs them against
REST and SOAP services, with built-in mock servers, OAuth2 client credentials,
XML/JSON conversion and a sandboxed data folder for results.

Run a scenario by id with 'harness <id>', browse them with 'harness repl',
or expose them over HTTP with 'harness serve'.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if noColor {
			color.NoColor = true
		}
	},
}

func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return ExecuteContext(ctx, os.Args[1:])
}

// ExecuteContext runs the command line args. A bare script id is treated as
// "run <id>".
func ExecuteContext(ctx context.Context, args []string) error {
	if inferred, _ := inference.InferCommand(args, commandNames(), takesValue); inferred != "" {
		args = append([]string{inferred}, args...)
	}
	rootCmd.SetArgs(args)

	err := rootCmd.ExecuteContext(ctx)
	if err != nil && !errors.Is(err, errReported) {
		fmt.Fprintln(rootCmd.ErrOrStderr(), formatter(rootCmd).FormatError(clierrors.Classify(err)))
	}
	return err
}

func commandNames() []string {
	names := []string{"help", "completion"}
	for _, c := range rootCmd.Commands() {
		names = append(names, c.Name())
		names = append(names, c.Aliases...)
	}
	return names
}

func takesValue(name string) bool {
	f := rootCmd.PersistentFlags().Lookup(name)
	if f == nil && len(name) == 1 {
		f = rootCmd.PersistentFlags().ShorthandLookup(name)
	}
	return f != nil && f.Value.Type() != "bool"
}

func formatter(cmd *cobra.Command) *output.Formatter {
	mode := output.FormatText
	if jsonOutput {
		mode = output.FormatJSON
	}
	return output.NewFormatter(mode, !noColor, cmd.OutOrStdout())
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "harness.yaml", "config file (YAML or TOML)")
	rootCmd.PersistentFlags().StringVar(&scriptsDir, "scripts", "", "scripts folder (overrides script.folder)")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data", "", "data folder for saved files and logs (overrides data.dir)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded into the environment if present")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 0, "per-scenario timeout (overrides scenario.timeout)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
}
