// Package auth acquires OAuth2 client-credentials tokens for scenarios.
package auth

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/scenariokit/harness/internal/domain/fault"
	"github.com/scenariokit/harness/internal/logger"
)

const (
	// ExpiryBuffer is how long before expiry a cached token is considered stale.
	ExpiryBuffer = 10 * time.Second
	// DefaultLifetime applies when the server omits expires_in.
	DefaultLifetime = 3600 * time.Second
)

type cacheKey struct {
	tokenURL, clientID, scope string
}

type cached struct {
	token   string
	expires time.Time
}

// Acquirer runs the client-credentials grant and caches tokens per
// (token URL, client, scope) until shortly before they expire.
type Acquirer struct {
	http *http.Client
	now  func() time.Time

	mu    sync.Mutex
	cache map[cacheKey]cached
}

// NewAcquirer uses hc for token requests; nil means http.DefaultClient.
func NewAcquirer(hc *http.Client) *Acquirer {
	if hc == nil {
		hc = http.DefaultClient
	}
	return &Acquirer{http: hc, now: time.Now, cache: make(map[cacheKey]cached)}
}

// GetToken returns an access token for clientID. Credentials travel in a
// Basic header; scope is space separated and may be empty.
func (a *Acquirer) GetToken(ctx context.Context, tokenURL, clientID, clientSecret, scope string) (string, error) {
	key := cacheKey{tokenURL, clientID, scope}

	a.mu.Lock()
	if c, ok := a.cache[key]; ok && a.now().Before(c.expires.Add(-ExpiryBuffer)) {
		a.mu.Unlock()
		return c.token, nil
	}
	a.mu.Unlock()

	cfg := clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     tokenURL,
		Scopes:       strings.Fields(scope),
		AuthStyle:    oauth2.AuthStyleInHeader,
	}

	capture := &captureTransport{next: a.http.Transport}
	hc := *a.http
	hc.Transport = capture
	ctx = context.WithValue(ctx, oauth2.HTTPClient, &hc)

	logger.AddScopedLog("INFO", "auth", fmt.Sprintf("Requesting token from %s for client %s", tokenURL, clientID))
	tok, err := cfg.Token(ctx)
	if err != nil {
		ae := &fault.AuthError{TokenURL: tokenURL, Status: capture.status, Body: fault.Truncate(capture.body, 4096), Err: err}
		var re *oauth2.RetrieveError
		if errors.As(err, &re) && re.Response != nil {
			ae.Status = re.Response.StatusCode
			ae.Body = fault.Truncate(string(re.Body), 4096)
		}
		logger.AddScopedLog("ERROR", "auth", ae.Error())
		return "", ae
	}
	if tok.AccessToken == "" {
		return "", &fault.AuthError{TokenURL: tokenURL, Status: capture.status, Body: fault.Truncate(capture.body, 4096),
			Err: errors.New("response has no access_token")}
	}

	expires := tok.Expiry
	if expires.IsZero() {
		expires = a.now().Add(DefaultLifetime)
	}
	a.mu.Lock()
	a.cache[key] = cached{token: tok.AccessToken, expires: expires}
	a.mu.Unlock()

	logger.AddScopedLog("INFO", "auth", fmt.Sprintf("Token acquired, expires %s", expires.Format(time.RFC3339)))
	return tok.AccessToken, nil
}

// Reset drops every cached token.
func (a *Acquirer) Reset() {
	a.mu.Lock()
	a.cache = make(map[cacheKey]cached)
	a.mu.Unlock()
}

// captureTransport remembers the last token response so failures that do not
// surface as *oauth2.RetrieveError still report status and body.
type captureTransport struct {
	next   http.RoundTripper
	status int
	body   string
}

func (t *captureTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	next := t.next
	if next == nil {
		next = http.DefaultTransport
	}
	resp, err := next.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	data, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, err
	}
	t.status = resp.StatusCode
	t.body = string(data)
	resp.Body = io.NopCloser(bytes.NewReader(data))
	return resp, nil
}
