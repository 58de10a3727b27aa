package mock

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/scenariokit/harness/internal/domain/fault"
)

const DefaultHost = "127.0.0.1"

// Manager hands out mock server handles and keeps any port owned by a live
// handle from being given to another one.
type Manager struct {
	host string

	mu      sync.Mutex
	servers []*Server
	ports   map[int]*Server
}

func NewManager(host string) *Manager {
	if host == "" {
		host = DefaultHost
	}
	return &Manager{host: host, ports: make(map[int]*Server)}
}

// REST returns a new stopped handle serving the users/posts fixtures.
func (m *Manager) REST() *Server {
	return m.add(newServer(REST, m.host, func(string) http.Handler { return NewRESTHandler() }, m))
}

// SOAP returns a new stopped handle serving the calculator service.
func (m *Manager) SOAP() *Server {
	return m.add(newServer(SOAP, m.host, func(path string) http.Handler { return NewCalculatorHandler(path) }, m))
}

func (m *Manager) add(s *Server) *Server {
	m.mu.Lock()
	m.servers = append(m.servers, s)
	m.mu.Unlock()
	return s
}

// Servers returns every handle created by the manager.
func (m *Manager) Servers() []*Server {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Server, len(m.servers))
	copy(out, m.servers)
	return out
}

func (m *Manager) claim(s *Server, port int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if owner, ok := m.ports[port]; ok && owner != s {
		return &fault.AlreadyRunning{Protocol: string(owner.protocol), Port: port}
	}
	m.ports[port] = s
	return nil
}

func (m *Manager) release(s *Server, port int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ports[port] == s {
		delete(m.ports, port)
	}
}

// StopAll stops every running handle.
func (m *Manager) StopAll(ctx context.Context) error {
	var errs []error
	for _, s := range m.Servers() {
		if err := s.Stop(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
