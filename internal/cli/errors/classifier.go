package errors

import (
	"errors"
	"strings"

	"github.com/scenariokit/harness/internal/domain/fault"
	"github.com/scenariokit/harness/internal/domain/harness"
)

type ErrorKind string

const (
	ErrorKindSecurity ErrorKind = "security"
	ErrorKindMock     ErrorKind = "mock-state"
	ErrorKindHTTP     ErrorKind = "http"
	ErrorKindAuth     ErrorKind = "auth"
	ErrorKindConvert  ErrorKind = "conversion"
	ErrorKindConfig   ErrorKind = "config"
	ErrorKindTimeout  ErrorKind = "timeout"
	ErrorKindNotFound ErrorKind = "not-found"
	ErrorKindAborted  ErrorKind = "aborted"
	ErrorKindOther    ErrorKind = "other"
)

type ClassifiedError struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
	Hint    string    `json:"hint,omitempty"` // User-friendly suggestion
	Raw     error     `json:"-"`
}

func (e ClassifiedError) Error() string {
	return e.Message
}

func (e ClassifiedError) Unwrap() error { return e.Raw }

// NotFound reports an unknown script id.
type NotFound struct {
	Key string
}

func (e *NotFound) Error() string {
	return "no script with id " + e.Key
}

// Classify maps err onto a kind and a hint for the operator. Typed harness
// errors are matched first; anything else falls back to the message text.
func Classify(err error) ClassifiedError {
	if err == nil {
		return ClassifiedError{}
	}
	c := ClassifiedError{Message: err.Error(), Raw: err}

	var nf *NotFound
	if errors.As(err, &nf) {
		c.Kind = ErrorKindNotFound
		c.Hint = "Run 'harness list' to see the loaded script ids."
		return c
	}
	if errors.Is(err, harness.ErrPromptExit) || errors.Is(err, harness.ErrInputClosed) {
		c.Kind = ErrorKindAborted
		c.Hint = "The scenario stopped waiting for input."
		return c
	}

	switch fault.KindOf(err) {
	case fault.KindSecurityViolation:
		c.Kind = ErrorKindSecurity
		c.Hint = "File names must stay inside the data folder."
		return c
	case fault.KindAlreadyRunning, fault.KindNotRunning:
		c.Kind = ErrorKindMock
		c.Hint = "Check the start/stop order of the mock servers in the scenario."
		return c
	case fault.KindInvocation:
		c.Kind = ErrorKindHTTP
		c.Hint = "The remote endpoint returned an error. The log file has the full exchange."
		return c
	case fault.KindAuth:
		c.Kind = ErrorKindAuth
		c.Hint = "Check the token URL, client id and secret in your .env or config."
		return c
	case fault.KindConversion:
		c.Kind = ErrorKindConvert
		c.Hint = "The document could not be parsed or serialized."
		return c
	case fault.KindConfigMissing:
		c.Kind = ErrorKindConfig
		c.Hint = "Set the value in the config file or the environment."
		return c
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "deadline exceeded") || strings.Contains(msg, "timed out") || strings.Contains(msg, "timeout"):
		c.Kind = ErrorKindTimeout
		c.Hint = "Raise --timeout or the scenario_timeout setting."
	case strings.Contains(msg, "connection refused"):
		c.Kind = ErrorKindHTTP
		c.Hint = "Is the target service or mock server running?"
	default:
		c.Kind = ErrorKindOther
		c.Hint = "An unexpected error occurred."
	}
	return c
}
