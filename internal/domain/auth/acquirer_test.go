package auth_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"

	"github.com/scenariokit/harness/internal/domain/auth"
	"github.com/scenariokit/harness/internal/domain/fault"
	"github.com/scenariokit/harness/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	logger.SetOutput(nil)
}

type tokenServer struct {
	*httptest.Server
	hits     atomic.Int32
	user     string
	pass     string
	form     url.Values
	status   int
	response string
}

func newTokenServer(t *testing.T, status int, response string) *tokenServer {
	ts := &tokenServer{status: status, response: response}
	ts.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ts.hits.Add(1)
		ts.user, ts.pass, _ = r.BasicAuth()
		body, _ := io.ReadAll(r.Body)
		ts.form, _ = url.ParseQuery(string(body))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(ts.status)
		io.WriteString(w, ts.response)
	}))
	t.Cleanup(ts.Close)
	return ts
}

func TestGetToken(t *testing.T) {
	ts := newTokenServer(t, http.StatusOK, `{"access_token":"tok-1","token_type":"Bearer","expires_in":300}`)
	a := auth.NewAcquirer(nil)

	tok, err := a.GetToken(context.Background(), ts.URL, "my-client", "s3cret", "read write")
	require.NoError(t, err)
	assert.Equal(t, "tok-1", tok)

	assert.Equal(t, "my-client", ts.user)
	assert.Equal(t, "s3cret", ts.pass)
	assert.Equal(t, "client_credentials", ts.form.Get("grant_type"))
	assert.Equal(t, "read write", ts.form.Get("scope"))
	assert.Empty(t, ts.form.Get("client_secret"), "secret must not be sent in the form")
}

func TestGetToken_Cached(t *testing.T) {
	ts := newTokenServer(t, http.StatusOK, `{"access_token":"tok-1","token_type":"Bearer"}`)
	a := auth.NewAcquirer(nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		tok, err := a.GetToken(ctx, ts.URL, "c", "s", "")
		require.NoError(t, err)
		assert.Equal(t, "tok-1", tok)
	}
	assert.EqualValues(t, 1, ts.hits.Load(), "missing expires_in falls back to a one hour lifetime")

	_, err := a.GetToken(ctx, ts.URL, "c", "s", "other")
	require.NoError(t, err)
	assert.EqualValues(t, 2, ts.hits.Load(), "scope is part of the cache key")

	a.Reset()
	_, err = a.GetToken(ctx, ts.URL, "c", "s", "")
	require.NoError(t, err)
	assert.EqualValues(t, 3, ts.hits.Load())
}

func TestGetToken_NearExpiryRefetches(t *testing.T) {
	ts := newTokenServer(t, http.StatusOK, `{"access_token":"short","token_type":"Bearer","expires_in":5}`)
	a := auth.NewAcquirer(nil)
	ctx := context.Background()

	_, err := a.GetToken(ctx, ts.URL, "c", "s", "")
	require.NoError(t, err)
	_, err = a.GetToken(ctx, ts.URL, "c", "s", "")
	require.NoError(t, err)
	assert.EqualValues(t, 2, ts.hits.Load(), "a token inside the expiry buffer is not reused")
}

func TestGetToken_Unauthorized(t *testing.T) {
	ts := newTokenServer(t, http.StatusUnauthorized, `{"error":"invalid_client"}`)
	a := auth.NewAcquirer(nil)

	_, err := a.GetToken(context.Background(), ts.URL, "c", "bad", "")
	var ae *fault.AuthError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, http.StatusUnauthorized, ae.Status)
	assert.Contains(t, ae.Body, "invalid_client")
	assert.Equal(t, ts.URL, ae.TokenURL)
	assert.Equal(t, fault.KindAuth, fault.KindOf(err))
	assert.EqualValues(t, 1, ts.hits.Load(), "no retries")
}

func TestGetToken_MissingAccessToken(t *testing.T) {
	ts := newTokenServer(t, http.StatusOK, `{"token_type":"Bearer"}`)
	a := auth.NewAcquirer(nil)

	_, err := a.GetToken(context.Background(), ts.URL, "c", "s", "")
	var ae *fault.AuthError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, http.StatusOK, ae.Status)
	assert.Contains(t, ae.Body, "token_type")
}
