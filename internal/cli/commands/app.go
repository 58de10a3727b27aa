package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	clierrors "github.com/scenariokit/harness/internal/cli/errors"
	"github.com/scenariokit/harness/internal/cli/output"
	"github.com/scenariokit/harness/internal/domain/config"
	"github.com/scenariokit/harness/internal/domain/harness"
	"github.com/scenariokit/harness/internal/domain/script"
	"github.com/scenariokit/harness/internal/logger"
)

// app is the wiring shared by the subcommands.
type app struct {
	h      *harness.Harness
	loader *script.Loader
	runner *harness.Runner
	out    *output.Formatter
}

func newApp(cmd *cobra.Command, in io.Reader) (*app, error) {
	if err := config.LoadDotEnv(envFile); err != nil {
		return nil, err
	}

	cfg, err := config.NewStore(cfgFile).Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if scriptsDir != "" {
		cfg.Set(config.KeyScriptFolder, scriptsDir)
	}
	if dataDir != "" {
		cfg.Set(config.KeyDataDir, dataDir)
	}
	if timeout > 0 {
		cfg.Set(config.KeyScenarioTimeout, timeout.String())
	}

	h, err := harness.New(harness.Options{Config: cfg, In: in, Out: cmd.OutOrStdout()})
	if err != nil {
		return nil, err
	}

	logger.SetOutput(cmd.ErrOrStderr())
	if err := logger.Init(h.Settings.DataDir); err != nil {
		return nil, err
	}

	loader := script.NewLoader(h.Settings.ScriptFolder)
	if err := loader.LoadAll(); err != nil {
		logger.Close()
		return nil, err
	}

	return &app{
		h:      h,
		loader: loader,
		runner: harness.NewRunner(h, 0),
		out:    formatter(cmd),
	}, nil
}

// resolve maps ids to loaded scripts, failing on the first unknown one.
func (a *app) resolve(ids []string) ([]harness.Entry, error) {
	if len(ids) == 0 {
		return a.loader.Entries(), nil
	}
	entries := make([]harness.Entry, 0, len(ids))
	for _, id := range ids {
		e, ok := a.loader.Get(id)
		if !ok {
			return nil, &clierrors.NotFound{Key: id}
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func (a *app) close() {
	a.h.Close(context.Background())
	logger.Close()
}
