package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/scenariokit/harness/internal/domain/harness"
	"github.com/scenariokit/harness/internal/domain/mock"
	"github.com/scenariokit/harness/internal/logger"
)

// Catalog is the set of runnable scenarios, typically a *script.Loader.
type Catalog interface {
	Entries() []harness.Entry
	Get(key string) (harness.Entry, bool)
	LoadAll() error
}

// ControlServer exposes scenarios, the shared context and logs over HTTP.
type ControlServer struct {
	mux     *http.ServeMux
	catalog Catalog
	runner  *harness.Runner
}

// NewControlServer creates a new management server.
func NewControlServer(catalog Catalog, runner *harness.Runner) *ControlServer {
	s := &ControlServer{
		mux:     http.NewServeMux(),
		catalog: catalog,
		runner:  runner,
	}
	s.routes()
	return s
}

func (s *ControlServer) routes() {
	s.mux.HandleFunc("GET /api/scenarios", s.handleGetScenarios)
	s.mux.HandleFunc("POST /api/scenarios/{id}/run", s.handleRunScenario)
	s.mux.HandleFunc("POST /api/scenarios/reload", s.handleReload)
	s.mux.HandleFunc("GET /api/context", s.handleGetContext)
	s.mux.HandleFunc("DELETE /api/context", s.handleResetContext)
	s.mux.HandleFunc("GET /api/mocks", s.handleGetMocks)
	s.mux.HandleFunc("GET /api/logs", s.handleGetLogs)
	s.mux.HandleFunc("DELETE /api/logs", s.handleClearLogs)
	s.mux.HandleFunc("GET /api/logs/stream", s.handleLogStream)
}

func (s *ControlServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// Global CORS headers
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

	if r.Method == "OPTIONS" {
		w.WriteHeader(http.StatusOK)
		return
	}

	s.mux.ServeHTTP(w, r)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"error": msg, "code": status})
}

// ScenarioInfo describes one loaded scenario.
type ScenarioInfo struct {
	Key  string `json:"key"`
	File string `json:"file"`
	Name string `json:"name,omitempty"`
}

func (s *ControlServer) handleGetScenarios(w http.ResponseWriter, r *http.Request) {
	entries := s.catalog.Entries()
	info := make([]ScenarioInfo, len(entries))
	for i, e := range entries {
		info[i] = ScenarioInfo{Key: e.Key, File: e.File}
		if e.Scenario != nil {
			info[i].Name = e.Scenario.Name()
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"scenarios": info})
}

func (s *ControlServer) handleRunScenario(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	entry, ok := s.catalog.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("scenario %q not found", id))
		return
	}

	logger.AddScopedLog("INFO", "api", fmt.Sprintf("Run requested for [%s]", id))
	res := s.runner.Run(r.Context(), entry)
	writeJSON(w, http.StatusOK, res)
}

func (s *ControlServer) handleReload(w http.ResponseWriter, r *http.Request) {
	if err := s.catalog.LoadAll(); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.handleGetScenarios(w, r)
}

func (s *ControlServer) handleGetContext(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.runner.Harness().Context.All())
}

func (s *ControlServer) handleResetContext(w http.ResponseWriter, r *http.Request) {
	s.runner.Harness().Context.Reset()
	w.WriteHeader(http.StatusNoContent)
}

// MockInfo is the public state of a mock server handle.
type MockInfo struct {
	Protocol string `json:"protocol"`
	State    string `json:"state"`
	Port     int    `json:"port,omitempty"`
	URL      string `json:"url,omitempty"`
}

func (s *ControlServer) handleGetMocks(w http.ResponseWriter, r *http.Request) {
	servers := s.runner.Harness().Mocks.Servers()
	info := make([]MockInfo, len(servers))
	for i, m := range servers {
		info[i] = MockInfo{Protocol: string(m.Protocol()), State: m.State().String(), Port: m.Port(), URL: m.URL()}
		if m.State() != mock.Running {
			info[i].Port, info[i].URL = 0, ""
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"mocks": info})
}

func (s *ControlServer) handleGetLogs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"logs": logger.GetLogs()})
}

func (s *ControlServer) handleClearLogs(w http.ResponseWriter, r *http.Request) {
	if err := logger.ClearLogs(); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *ControlServer) handleLogStream(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported!", http.StatusInternalServerError)
		return
	}

	ch := logger.Subscribe()
	defer logger.Unsubscribe(ch)

	fmt.Fprintf(w, "event: ready\ndata: {\"timestamp\": \"%s\"}\n\n", time.Now().Format(time.RFC3339))
	flusher.Flush()

	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case entry, ok := <-ch:
			if !ok {
				return
			}
			data, _ := json.Marshal(entry)
			fmt.Fprintf(w, "event: log\ndata: %s\n\n", data)
			flusher.Flush()
		case <-ticker.C:
			fmt.Fprint(w, ": keep-alive\n\n")
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}
