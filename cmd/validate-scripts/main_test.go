package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validScript = `var scenario = {
  getScenarioName: function () { return "Valid"; },
  runScenario: function () { logger.log("ok"); }
};
`

func TestRun(t *testing.T) {
	var out bytes.Buffer
	assert.Equal(t, 1, run(&out, []string{"non-existent-path"}, false, false, true))

	dir := t.TempDir()
	validPath := filepath.Join(dir, "1_valid.js")
	require.NoError(t, os.WriteFile(validPath, []byte(validScript), 0644))

	out.Reset()
	assert.Equal(t, 0, run(&out, []string{dir}, false, false, false))
	assert.Contains(t, out.String(), "✓ "+validPath+" [1] Valid")
	assert.Contains(t, out.String(), "Summary: 1 valid, 0 invalid")

	plainPath := filepath.Join(dir, "2_plain.js")
	require.NoError(t, os.WriteFile(plainPath, []byte(`logger.log("plain");`), 0644))

	out.Reset()
	assert.Equal(t, 0, run(&out, []string{dir}, false, false, false))
	assert.Contains(t, out.String(), "WARN:  scenario")
	assert.Equal(t, 1, run(&out, []string{dir}, true, false, true), "warnings fail in strict mode")

	require.NoError(t, os.WriteFile(filepath.Join(dir, "3_broken.js"), []byte(`function (`), 0644))
	out.Reset()
	assert.Equal(t, 1, run(&out, []string{dir}, false, true, false))

	var report struct {
		Summary struct {
			Total   int `json:"total"`
			Valid   int `json:"valid"`
			Invalid int `json:"invalid"`
		} `json:"summary"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &report))
	assert.Equal(t, 3, report.Summary.Total)
	assert.Equal(t, 2, report.Summary.Valid)
	assert.Equal(t, 1, report.Summary.Invalid)
}
