package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	clierrors "github.com/scenariokit/harness/internal/cli/errors"
)

const putScript = `var scenario = {
  getScenarioName: function () { return "Put answer"; },
  runScenario: function () {
    context.put("answer", 42);
    logger.log("stored");
  }
};
`

const failScript = `var scenario = {
  getScenarioName: function () { return "Always fails"; },
  runScenario: function () { logger.error("boom"); }
};
`

type cli struct {
	scripts string
	data    string
	out     bytes.Buffer
	errOut  bytes.Buffer
}

func newCLI(t *testing.T) *cli {
	t.Helper()
	c := &cli{scripts: t.TempDir(), data: t.TempDir()}
	require.NoError(t, os.WriteFile(filepath.Join(c.scripts, "1_put.js"), []byte(putScript), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(c.scripts, "2_fail.js"), []byte(failScript), 0644))
	return c
}

func (c *cli) exec(t *testing.T, stdin string, args ...string) error {
	t.Helper()
	c.out.Reset()
	c.errOut.Reset()
	rootCmd.SetOut(&c.out)
	rootCmd.SetErr(&c.errOut)
	rootCmd.SetIn(strings.NewReader(stdin))

	full := []string{"--config", "", "--env-file", "", "--no-color", "--timeout", "5s",
		"--scripts", c.scripts, "--data", c.data}
	return ExecuteContext(context.Background(), append(full, args...))
}

func TestList(t *testing.T) {
	c := newCLI(t)

	require.NoError(t, c.exec(t, "", "--json=false", "list"))
	assert.Contains(t, c.out.String(), "1_put.js")
	assert.Contains(t, c.out.String(), "Always fails")

	require.NoError(t, c.exec(t, "", "--json", "list"))
	var infos []struct {
		Key  string `json:"key"`
		Name string `json:"name"`
	}
	require.NoError(t, json.Unmarshal(c.out.Bytes(), &infos))
	require.Len(t, infos, 2)
	assert.Equal(t, "1", infos[0].Key)
	assert.Equal(t, "Put answer", infos[0].Name)
}

func TestRun_BareIDIsInferred(t *testing.T) {
	c := newCLI(t)

	require.NoError(t, c.exec(t, "", "--json", "1"))
	var summary struct {
		Passed  int `json:"passed"`
		Failed  int `json:"failed"`
		Results []struct {
			Key    string `json:"key"`
			Passed bool   `json:"passed"`
		} `json:"results"`
	}
	require.NoError(t, json.Unmarshal(c.out.Bytes(), &summary))
	assert.Equal(t, 1, summary.Passed)
	assert.Zero(t, summary.Failed)
	assert.Equal(t, "1", summary.Results[0].Key)
}

func TestRun_FailureAndUnknownID(t *testing.T) {
	c := newCLI(t)

	err := c.exec(t, "", "--json=false", "run", "1", "2")
	assert.ErrorIs(t, err, errReported)
	assert.Contains(t, c.out.String(), "1 passed, 1 failed")
	assert.Contains(t, c.out.String(), "FAIL")

	err = c.exec(t, "", "--json=false", "run", "42")
	var nf *clierrors.NotFound
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, "42", nf.Key)
	assert.Contains(t, c.errOut.String(), "Error [not-found]")
}

func TestREPL(t *testing.T) {
	c := newCLI(t)

	input := "\nl\n1\nc\nf ../x\nnope\nexit\n"
	require.NoError(t, c.exec(t, input, "--json=false", "repl"))
	out := c.out.String()
	assert.Contains(t, out, "Commands:")
	assert.Contains(t, out, "1_put.js")
	assert.Contains(t, out, "PASS")
	assert.Contains(t, out, `"answer": 42`)
	assert.Contains(t, c.errOut.String(), "no script with id nope")
	assert.Contains(t, c.errOut.String(), "Error [security]")
}

func TestCommandNames(t *testing.T) {
	names := commandNames()
	for _, want := range []string{"run", "list", "ls", "repl", "serve", "help"} {
		assert.Contains(t, names, want)
	}
	assert.True(t, takesValue("scripts"))
	assert.True(t, takesValue("c"))
	assert.False(t, takesValue("json"))
}
