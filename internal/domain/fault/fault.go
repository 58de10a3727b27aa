// Package fault defines the harness error taxonomy. Each kind is a distinct
// type carrying structured context; callers match them with errors.As or
// classify them with KindOf.
package fault

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindSecurityViolation Kind = "security-violation"
	KindAlreadyRunning    Kind = "already-running"
	KindNotRunning        Kind = "not-running"
	KindInvocation        Kind = "invocation"
	KindAuth              Kind = "auth"
	KindConversion        Kind = "conversion"
	KindConfigMissing     Kind = "config-missing"
	KindOther             Kind = "other"
)

// SecurityViolation is returned when a path resolves outside the sandbox root.
type SecurityViolation struct {
	Path string
	Root string
}

func (e *SecurityViolation) Error() string {
	return fmt.Sprintf("security violation: %q resolves outside %q", e.Path, e.Root)
}

// AlreadyRunning is returned by Start on a handle that is not Stopped, or when
// the requested port is held by another live handle.
type AlreadyRunning struct {
	Protocol string
	Port     int
}

func (e *AlreadyRunning) Error() string {
	return fmt.Sprintf("%s mock server already running on port %d", e.Protocol, e.Port)
}

// NotRunning is returned by operations that need a Running handle.
type NotRunning struct {
	Protocol string
}

func (e *NotRunning) Error() string {
	return fmt.Sprintf("%s mock server is not running", e.Protocol)
}

// InvocationError reports a non-2xx response or a SOAP fault.
type InvocationError struct {
	URL         string
	Operation   string
	Status      int
	FaultCode   string
	FaultString string
	Detail      string
	Body        string
	Err         error
}

func (e *InvocationError) Error() string {
	msg := fmt.Sprintf("invoke %s", e.URL)
	if e.Operation != "" {
		msg = fmt.Sprintf("invoke %s at %s", e.Operation, e.URL)
	}
	if e.Status != 0 {
		msg += fmt.Sprintf(": status %d", e.Status)
	}
	if e.FaultString != "" {
		msg += fmt.Sprintf(": soap fault [%s] %s", e.FaultCode, e.FaultString)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *InvocationError) Unwrap() error { return e.Err }

// AuthError reports a failed token exchange.
type AuthError struct {
	TokenURL string
	Status   int
	Body     string
	Err      error
}

func (e *AuthError) Error() string {
	msg := fmt.Sprintf("token request to %s failed", e.TokenURL)
	if e.Status != 0 {
		msg += fmt.Sprintf(": status %d", e.Status)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *AuthError) Unwrap() error { return e.Err }

// ConversionError reports malformed XML or JSON handed to a conversion routine.
type ConversionError struct {
	Op    string
	Input string
	Err   error
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ConversionError) Unwrap() error { return e.Err }

// ConfigMissing reports an absent or empty required config or env value.
type ConfigMissing struct {
	Key    string
	Source string // "config" or "env"
}

func (e *ConfigMissing) Error() string {
	return fmt.Sprintf("%s value %q is required but missing or empty", e.Source, e.Key)
}

// KindOf returns the taxonomy kind of err, or KindOther.
func KindOf(err error) Kind {
	var (
		sv *SecurityViolation
		ar *AlreadyRunning
		nr *NotRunning
		ie *InvocationError
		ae *AuthError
		ce *ConversionError
		cm *ConfigMissing
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &sv):
		return KindSecurityViolation
	case errors.As(err, &ar):
		return KindAlreadyRunning
	case errors.As(err, &nr):
		return KindNotRunning
	case errors.As(err, &ae):
		return KindAuth
	case errors.As(err, &ie):
		return KindInvocation
	case errors.As(err, &ce):
		return KindConversion
	case errors.As(err, &cm):
		return KindConfigMissing
	}
	return KindOther
}

// Truncate shortens s to at most n bytes for inclusion in error context.
func Truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
