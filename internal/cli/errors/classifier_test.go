package errors_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	clierrors "github.com/scenariokit/harness/internal/cli/errors"
	"github.com/scenariokit/harness/internal/domain/fault"
	"github.com/scenariokit/harness/internal/domain/harness"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want clierrors.ErrorKind
	}{
		{"security", &fault.SecurityViolation{Path: "../x", Root: "/data"}, clierrors.ErrorKindSecurity},
		{"wrapped auth", fmt.Errorf("login: %w", &fault.AuthError{Status: 401}), clierrors.ErrorKindAuth},
		{"invocation", &fault.InvocationError{Operation: "GET", URL: "http://x", Status: 500}, clierrors.ErrorKindHTTP},
		{"config", &fault.ConfigMissing{Key: "token.url", Source: "config"}, clierrors.ErrorKindConfig},
		{"not found", &clierrors.NotFound{Key: "7"}, clierrors.ErrorKindNotFound},
		{"prompt exit", fmt.Errorf("ask: %w", harness.ErrPromptExit), clierrors.ErrorKindAborted},
		{"timeout", fmt.Errorf("scenario timed out after 1s: %w", context.DeadlineExceeded), clierrors.ErrorKindTimeout},
		{"other", fmt.Errorf("something odd"), clierrors.ErrorKindOther},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := clierrors.Classify(tt.err)
			assert.Equal(t, tt.want, c.Kind)
			assert.Equal(t, tt.err.Error(), c.Message)
			assert.NotEmpty(t, c.Hint)
			assert.ErrorIs(t, c, tt.err)
		})
	}

	assert.Equal(t, clierrors.ClassifiedError{}, clierrors.Classify(nil))
}
