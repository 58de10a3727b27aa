// Package client provides the HTTP and SOAP clients scenarios use to talk to
// mock and real services.
package client

import (
	"bytes"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/scenariokit/harness/internal/logger"
)

const (
	DefaultTimeout        = 30 * time.Second
	DefaultMaxBodyLogSize = 1024
)

// Options configures the shared HTTP client.
type Options struct {
	Timeout            time.Duration
	MaxBodyLogSize     int
	InsecureSkipVerify bool
}

// NewHTTPClient returns an http.Client that bounds every request by
// Timeout and logs traffic through the harness logger.
func NewHTTPClient(opts Options) *http.Client {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.MaxBodyLogSize <= 0 {
		opts.MaxBodyLogSize = DefaultMaxBodyLogSize
	}
	base := http.DefaultTransport.(*http.Transport).Clone()
	if opts.InsecureSkipVerify {
		base.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // opt-in for self-signed test endpoints
	}
	return &http.Client{
		Timeout:   opts.Timeout,
		Transport: &LoggingTransport{Next: base, MaxBodyLogSize: opts.MaxBodyLogSize},
	}
}

// LoggingTransport logs each request and response. Authorization headers are
// masked and bodies are cut at MaxBodyLogSize bytes.
type LoggingTransport struct {
	Next           http.RoundTripper
	MaxBodyLogSize int
}

func (t *LoggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	next := t.Next
	if next == nil {
		next = http.DefaultTransport
	}

	var b strings.Builder
	fmt.Fprintf(&b, "> %s %s", req.Method, req.URL.Redacted())
	writeHeaders(&b, ">", req.Header)
	if req.Body != nil && req.GetBody != nil {
		if rc, err := req.GetBody(); err == nil {
			data, _ := io.ReadAll(rc)
			rc.Close()
			if len(data) > 0 {
				fmt.Fprintf(&b, "\n> Body: %s", t.truncate(data))
			}
		}
	}
	logger.AddScopedLog("INFO", "http", b.String())

	start := time.Now()
	resp, err := next.RoundTrip(req)
	if err != nil {
		logger.AddScopedLog("ERROR", "http", fmt.Sprintf("< %s %s failed after %s: %v", req.Method, req.URL.Redacted(), time.Since(start).Round(time.Millisecond), err))
		return nil, err
	}

	b.Reset()
	fmt.Fprintf(&b, "< %s (%s)", resp.Status, time.Since(start).Round(time.Millisecond))
	writeHeaders(&b, "<", resp.Header)
	if resp.Body != nil {
		data, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		resp.Body = io.NopCloser(bytes.NewReader(data))
		if readErr != nil {
			logger.AddScopedLog("ERROR", "http", fmt.Sprintf("< read body: %v", readErr))
			return nil, readErr
		}
		if len(data) > 0 {
			fmt.Fprintf(&b, "\n< Body: %s", t.truncate(data))
		}
	}
	logger.AddScopedLog("INFO", "http", b.String())
	return resp, nil
}

func (t *LoggingTransport) truncate(data []byte) string {
	limit := t.MaxBodyLogSize
	if limit <= 0 {
		limit = DefaultMaxBodyLogSize
	}
	if len(data) > limit {
		return string(data[:limit]) + "..."
	}
	return string(data)
}

func writeHeaders(b *strings.Builder, dir string, h http.Header) {
	keys := make([]string, 0, len(h))
	for k := range h {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v := strings.Join(h[k], ", ")
		if strings.EqualFold(k, "Authorization") || strings.EqualFold(k, "Proxy-Authorization") {
			v = "***********"
		}
		fmt.Fprintf(b, "\n%s %s: %s", dir, k, v)
	}
}
