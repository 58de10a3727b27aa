package harness

import (
	"sync/atomic"

	"github.com/scenariokit/harness/internal/logger"
)

// ScriptLogger is the logger scenarios write to. Any Error marks the current
// run as failed.
type ScriptLogger struct {
	failed atomic.Bool
}

func NewScriptLogger() *ScriptLogger {
	return &ScriptLogger{}
}

func (l *ScriptLogger) Log(msg string) {
	logger.AddScopedLog("INFO", "script", msg)
}

func (l *ScriptLogger) Error(msg string) {
	logger.AddScopedLog("ERROR", "script", msg)
	l.failed.Store(true)
}

// HasError reports whether Error was called since the last Reset.
func (l *ScriptLogger) HasError() bool {
	return l.failed.Load()
}

func (l *ScriptLogger) Reset() {
	l.failed.Store(false)
}
