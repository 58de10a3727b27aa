package client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/scenariokit/harness/internal/domain/fault"
)

// Response is an HTTP response with the body fully read.
type Response struct {
	Status  int         `json:"status"`
	Headers http.Header `json:"headers"`
	Body    string      `json:"body"`
}

// OK reports a 2xx status.
func (r *Response) OK() bool { return r.Status >= 200 && r.Status < 300 }

// RestClient issues JSON-oriented HTTP requests. Non-2xx statuses are
// returned as responses, not errors; only transport failures are errors.
type RestClient struct {
	http *http.Client
}

func NewRestClient(hc *http.Client) *RestClient {
	if hc == nil {
		hc = NewHTTPClient(Options{})
	}
	return &RestClient{http: hc}
}

func (c *RestClient) Get(ctx context.Context, url string) (*Response, error) {
	return c.Request(ctx, http.MethodGet, url, "", nil, "")
}

// GetWithToken sends Authorization: Bearer <token>.
func (c *RestClient) GetWithToken(ctx context.Context, url, token string) (*Response, error) {
	return c.Request(ctx, http.MethodGet, url, "", nil, token)
}

func (c *RestClient) Post(ctx context.Context, url, body string) (*Response, error) {
	return c.Request(ctx, http.MethodPost, url, body, nil, "")
}

func (c *RestClient) PostWithToken(ctx context.Context, url, body, token string) (*Response, error) {
	return c.Request(ctx, http.MethodPost, url, body, nil, token)
}

// Request sends method to url. A non-empty body is sent as JSON, a non-empty
// token as a bearer credential; headers are applied last and win.
func (c *RestClient) Request(ctx context.Context, method, url, body string, headers map[string]string, token string) (*Response, error) {
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, strings.ToUpper(method), url, rd)
	if err != nil {
		return nil, &fault.InvocationError{URL: url, Operation: method, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &fault.InvocationError{URL: url, Operation: method, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &fault.InvocationError{URL: url, Operation: method, Status: resp.StatusCode, Err: fmt.Errorf("read body: %w", err)}
	}
	return &Response{Status: resp.StatusCode, Headers: resp.Header, Body: string(data)}, nil
}
