package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scenariokit/harness/internal/domain/mock"
	"github.com/scenariokit/harness/internal/logger"
)

func TestRun(t *testing.T) {
	logger.SetOutput(nil)

	restPort, err := mock.FreePort()
	require.NoError(t, err)
	soapPort, err := mock.FreePort()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- run(ctx, "127.0.0.1", restPort, fmt.Sprintf("http://localhost:%d/calculator", soapPort))
	}()

	var body string
	require.Eventually(t, func() bool {
		resp, err := http.Get(fmt.Sprintf("http://127.0.0.1:%d/users/1", restPort))
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		data, _ := io.ReadAll(resp.Body)
		body = string(data)
		return resp.StatusCode == http.StatusOK
	}, 3*time.Second, 50*time.Millisecond)
	assert.Contains(t, body, "Leanne")

	resp, err := http.Get(fmt.Sprintf("http://127.0.0.1:%d/calculator?wsdl", soapPort))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("run did not return after cancel")
	}

	_, err = http.Get(fmt.Sprintf("http://127.0.0.1:%d/users/1", restPort))
	assert.Error(t, err, "mock should be stopped")
}
