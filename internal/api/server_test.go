package api

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/scenariokit/harness/internal/domain/config"
	"github.com/scenariokit/harness/internal/domain/harness"
	"github.com/scenariokit/harness/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	logger.SetOutput(nil)
}

type fakeCatalog struct {
	entries []harness.Entry
	loads   int
}

func (c *fakeCatalog) Entries() []harness.Entry { return c.entries }

func (c *fakeCatalog) Get(key string) (harness.Entry, bool) {
	for _, e := range c.entries {
		if e.Key == key {
			return e, true
		}
	}
	return harness.Entry{}, false
}

func (c *fakeCatalog) LoadAll() error {
	c.loads++
	return nil
}

func newTestServer(t *testing.T) (*ControlServer, *fakeCatalog, *harness.Harness) {
	t.Helper()
	h, err := harness.New(harness.Options{
		Config: config.New(map[string]string{config.KeyDataDir: t.TempDir()}),
		Env:    config.MapEnv(nil),
		In:     strings.NewReader(""),
		Out:    &strings.Builder{},
	})
	require.NoError(t, err)
	t.Cleanup(func() { h.Close(context.Background()) })

	catalog := &fakeCatalog{entries: []harness.Entry{
		{Key: "1", File: "1_put.js", Scenario: harness.ScenarioFunc{Title: "Put", Fn: func(ctx context.Context, h *harness.Harness) error {
			h.Context.Put("user", "Leanne")
			return nil
		}}},
		{Key: "2", File: "2_fail.js", Scenario: harness.ScenarioFunc{Title: "Fail", Fn: func(ctx context.Context, h *harness.Harness) error {
			h.Logger.Error("expected failure")
			return nil
		}}},
	}}
	return NewControlServer(catalog, harness.NewRunner(h, time.Second)), catalog, h
}

func do(srv http.Handler, method, target string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, httptest.NewRequest(method, target, nil))
	return w
}

func TestControlServer_Scenarios(t *testing.T) {
	srv, catalog, _ := newTestServer(t)

	w := do(srv, "GET", "/api/scenarios")
	assert.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Scenarios []ScenarioInfo `json:"scenarios"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	require.Len(t, resp.Scenarios, 2)
	assert.Equal(t, ScenarioInfo{Key: "1", File: "1_put.js", Name: "Put"}, resp.Scenarios[0])

	w = do(srv, "POST", "/api/scenarios/reload")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, catalog.loads)
}

func TestControlServer_RunAndContext(t *testing.T) {
	srv, _, h := newTestServer(t)

	w := do(srv, "POST", "/api/scenarios/1/run")
	assert.Equal(t, http.StatusOK, w.Code)
	var res struct {
		RunID  string `json:"run_id"`
		Key    string `json:"key"`
		Passed bool   `json:"passed"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&res))
	assert.True(t, res.Passed)
	assert.Equal(t, "1", res.Key)
	assert.NotEmpty(t, res.RunID)

	w = do(srv, "POST", "/api/scenarios/2/run")
	require.NoError(t, json.NewDecoder(w.Body).Decode(&res))
	assert.False(t, res.Passed)

	w = do(srv, "POST", "/api/scenarios/99/run")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(srv, "GET", "/api/context")
	assert.JSONEq(t, `{"user":"Leanne"}`, w.Body.String())

	w = do(srv, "DELETE", "/api/context")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Zero(t, h.Context.Len())
}

func TestControlServer_MocksAndLogs(t *testing.T) {
	srv, _, _ := newTestServer(t)

	w := do(srv, "GET", "/api/mocks")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"state":"stopped"`)

	logger.AddScopedLog("INFO", "test", "visible in api")
	w = do(srv, "GET", "/api/logs")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "visible in api")

	w = do(srv, "OPTIONS", "/api/logs")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestControlServer_LogStream(t *testing.T) {
	srv, _, _ := newTestServer(t)
	ts := httptest.NewServer(srv)
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, "GET", ts.URL+"/api/logs/stream", nil)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	sc := bufio.NewScanner(resp.Body)
	require.True(t, sc.Scan())
	assert.Equal(t, "event: ready", sc.Text())

	logger.AddScopedLog("INFO", "test", "streamed line")
	for sc.Scan() {
		if strings.HasPrefix(sc.Text(), "data: ") && strings.Contains(sc.Text(), "streamed line") {
			return
		}
	}
	t.Fatal("log entry was not streamed")
}
