// Package mock runs in-process REST and SOAP fixture servers for scenarios.
package mock

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/scenariokit/harness/internal/domain/fault"
	"github.com/scenariokit/harness/internal/logger"
)

type Protocol string

const (
	REST Protocol = "rest"
	SOAP Protocol = "soap"
)

type State int

const (
	Stopped State = iota
	Starting
	Running
	Stopping
)

func (s State) String() string {
	switch s {
	case Stopped:
		return "stopped"
	case Starting:
		return "starting"
	case Running:
		return "running"
	case Stopping:
		return "stopping"
	}
	return "state(" + strconv.Itoa(int(s)) + ")"
}

// Server is a mock server handle. A handle can be started again after Stop.
type Server struct {
	protocol Protocol
	host     string
	build    func(path string) http.Handler
	mgr      *Manager

	mu    sync.Mutex
	state State
	port  int
	path  string
	srv   *http.Server
	done  chan struct{}
}

func newServer(protocol Protocol, host string, build func(path string) http.Handler, mgr *Manager) *Server {
	if host == "" {
		host = DefaultHost
	}
	return &Server{protocol: protocol, host: host, build: build, mgr: mgr}
}

func (s *Server) Protocol() Protocol { return s.protocol }

func (s *Server) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Port returns the bound port, or 0 when the handle is stopped.
func (s *Server) Port() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.port
}

// URL returns the base URL of a running handle including its path.
func (s *Server) URL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Running {
		return ""
	}
	return fmt.Sprintf("http://%s%s", net.JoinHostPort(s.host, strconv.Itoa(s.port)), s.path)
}

// Endpoint is URL for callers that need a live server: it fails with
// fault.NotRunning unless the handle is Running.
func (s *Server) Endpoint() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Running {
		return "", &fault.NotRunning{Protocol: string(s.protocol)}
	}
	return fmt.Sprintf("http://%s%s", net.JoinHostPort(s.host, strconv.Itoa(s.port)), s.path), nil
}

// Start binds port (0 picks a free one) and serves at "/". It returns once
// the listener accepts connections.
func (s *Server) Start(ctx context.Context, port int) error {
	return s.start(ctx, port, "/")
}

// StartURL starts the handle on the port and path of rawURL. A URL without
// a port gets a free one.
func (s *Server) StartURL(ctx context.Context, rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("parse mock url %q: %w", rawURL, err)
	}
	port := 0
	if p := u.Port(); p != "" {
		if port, err = strconv.Atoi(p); err != nil {
			return fmt.Errorf("parse mock url %q: bad port: %w", rawURL, err)
		}
	}
	path := u.Path
	if path == "" {
		path = "/"
	}
	return s.start(ctx, port, path)
}

func (s *Server) start(ctx context.Context, port int, path string) error {
	if port < 0 || port > 65535 {
		return fmt.Errorf("%s mock: invalid port %d", s.protocol, port)
	}

	s.mu.Lock()
	if s.state != Stopped {
		defer s.mu.Unlock()
		return &fault.AlreadyRunning{Protocol: string(s.protocol), Port: s.port}
	}
	s.state = Starting
	s.mu.Unlock()

	if s.mgr != nil && port != 0 {
		if err := s.mgr.claim(s, port); err != nil {
			s.setState(Stopped)
			return err
		}
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", net.JoinHostPort(s.host, strconv.Itoa(port)))
	if err != nil {
		if s.mgr != nil {
			s.mgr.release(s, port)
		}
		s.setState(Stopped)
		return fmt.Errorf("%s mock: listen on port %d: %w", s.protocol, port, err)
	}
	bound := ln.Addr().(*net.TCPAddr).Port
	if s.mgr != nil && port == 0 {
		if err := s.mgr.claim(s, bound); err != nil {
			ln.Close()
			s.setState(Stopped)
			return err
		}
	}

	srv := &http.Server{
		Handler:           s.build(path),
		ReadHeaderTimeout: 10 * time.Second,
	}
	done := make(chan struct{})

	s.mu.Lock()
	s.srv = srv
	s.port = bound
	s.path = path
	s.done = done
	s.state = Running
	s.mu.Unlock()

	go func() {
		defer close(done)
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.AddScopedLog("ERROR", "mock", fmt.Sprintf("%s mock on port %d stopped serving: %v", s.protocol, bound, err))
		}
	}()

	logger.AddScopedLog("INFO", "mock", fmt.Sprintf("%s mock started on %s", s.protocol, s.URL()))
	return nil
}

// Stop shuts the handle down and returns after the listener is closed and
// the serve loop has exited. Stopping a stopped handle is a no-op.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.state != Running {
		s.mu.Unlock()
		return nil
	}
	s.state = Stopping
	srv, done, port := s.srv, s.done, s.port
	s.mu.Unlock()

	err := srv.Shutdown(ctx)
	if err != nil {
		// Hard close on deadline so the port is released either way.
		srv.Close()
	}
	<-done

	if s.mgr != nil {
		s.mgr.release(s, port)
	}

	s.mu.Lock()
	s.srv = nil
	s.done = nil
	s.port = 0
	s.path = ""
	s.state = Stopped
	s.mu.Unlock()

	logger.AddScopedLog("INFO", "mock", fmt.Sprintf("%s mock on port %d stopped", s.protocol, port))
	if err != nil && !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s mock: shutdown: %w", s.protocol, err)
	}
	return nil
}

func (s *Server) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// FreePort binds an ephemeral port, releases it and returns the number.
// Another process may take the port before the caller binds it; prefer
// Start with port 0 when possible.
func FreePort() (int, error) {
	ln, err := net.Listen("tcp", net.JoinHostPort(DefaultHost, "0"))
	if err != nil {
		return 0, fmt.Errorf("find free port: %w", err)
	}
	defer ln.Close()
	return ln.Addr().(*net.TCPAddr).Port, nil
}
