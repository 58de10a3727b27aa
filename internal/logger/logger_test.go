package logger_test

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/scenariokit/harness/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedact(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Authorization: Bearer eyJhbGciOi.abc.def", "Authorization: Bearer REDACTED"},
		{"Authorization: Basic dXNlcjpwYXNz", "Authorization: Basic REDACTED"},
		{"grant_type=client_credentials&client_secret=s3cr3t&scope=x", "grant_type=client_credentials&client_secret=REDACTED&scope=x"},
		{`{"access_token":"tok123","expires_in":60}`, `{"access_token":"REDACTED","expires_in":60}`},
		{"nothing to hide", "nothing to hide"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, logger.Redact(tt.in))
	}
}

func TestAddScopedLog_ConsoleAndSubscribers(t *testing.T) {
	var buf bytes.Buffer
	logger.SetOutput(&buf)
	defer logger.SetOutput(os.Stdout)

	ch := logger.Subscribe()
	defer logger.Unsubscribe(ch)

	logger.AddScopedLog("ERROR", "3", "token Bearer abc failed")

	select {
	case entry := <-ch:
		assert.Equal(t, "ERROR", entry.Level)
		assert.Equal(t, "3", entry.Scope)
		assert.Equal(t, "token Bearer REDACTED failed", entry.Message)
	case <-time.After(time.Second):
		t.Fatal("subscriber did not receive entry")
	}

	assert.Contains(t, buf.String(), "[ERROR] [3] token Bearer REDACTED failed")

	logs := logger.GetLogs()
	require.NotEmpty(t, logs)
	assert.Equal(t, "token Bearer REDACTED failed", logs[len(logs)-1].Message)
}

func TestInit_WritesJSONLines(t *testing.T) {
	logger.SetOutput(nil)
	defer logger.SetOutput(os.Stdout)

	dir := t.TempDir()
	require.NoError(t, logger.Init(dir))

	logger.AddLog("INFO", "written to file")
	logger.Close()

	path := logger.GetLogFilePath()
	assert.Equal(t, filepath.Join(dir, "logs"), filepath.Dir(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	var last logger.LogEntry
	require.NoError(t, json.Unmarshal([]byte(lines[len(lines)-1]), &last))
	assert.Equal(t, "written to file", last.Message)
}
