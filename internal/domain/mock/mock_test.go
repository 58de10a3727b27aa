package mock_test

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/scenariokit/harness/internal/domain/fault"
	"github.com/scenariokit/harness/internal/domain/mock"
	"github.com/scenariokit/harness/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	logger.SetOutput(nil)
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestRESTHandler_Users(t *testing.T) {
	h := mock.NewRESTHandler()

	tests := []struct {
		target string
		want   []mock.User
	}{
		{"/users", mock.Users},
		{"/users?limit=1", mock.Users[:1]},
		{"/users?limit=0", mock.Users},
		{"/users?limit=5", mock.Users},
		{"/users?limit=-1", mock.Users},
	}
	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			rec := get(t, h, tt.target)
			require.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

			var got []mock.User
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRESTHandler_Posts(t *testing.T) {
	h := mock.NewRESTHandler()

	rec := get(t, h, "/posts?userId=1")
	require.Equal(t, http.StatusOK, rec.Code)
	var posts []mock.Post
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &posts))
	require.Len(t, posts, 2)
	assert.Equal(t, 101, posts[0].ID)
	assert.Equal(t, 102, posts[1].ID)

	rec = get(t, h, "/posts?userId=9")
	assert.JSONEq(t, "[]", rec.Body.String())

	rec = get(t, h, "/posts")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &posts))
	assert.Len(t, posts, 3)
}

func TestRESTHandler_Errors(t *testing.T) {
	h := mock.NewRESTHandler()

	assert.Equal(t, http.StatusBadRequest, get(t, h, "/users?limit=abc").Code)
	assert.Equal(t, http.StatusBadRequest, get(t, h, "/posts?userId=x").Code)
	assert.Equal(t, http.StatusNotFound, get(t, h, "/users/42").Code)

	rec := get(t, h, "/nope")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), `"code":404`)

	rec = get(t, h, "/users/2")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Antonette")
}

func soapRequest(action, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/calculator", strings.NewReader(body))
	req.Header.Set("Content-Type", "text/xml; charset=utf-8")
	if action != "" {
		req.Header.Set("SOAPAction", action)
	}
	return req
}

const addEnvelope = `<S:Envelope xmlns:S="http://schemas.xmlsoap.org/soap/envelope/"><S:Header/><S:Body>` +
	`<ns:Add xmlns:ns="calculator"><intA>150</intA><intB>250</intB></ns:Add></S:Body></S:Envelope>`

func TestCalculatorHandler(t *testing.T) {
	h := mock.NewCalculatorHandler("/calculator")

	tests := []struct {
		name       string
		action     string
		body       string
		wantStatus int
		wantBody   string
	}{
		{"quoted action", `"Add"`, addEnvelope, http.StatusOK, "<return>400</return>"},
		{"qualified action", `"calculator/Add"`, addEnvelope, http.StatusOK, "<return>400</return>"},
		{"action mismatch", `"Subtract"`, addEnvelope, http.StatusInternalServerError, "does not match"},
		{"missing action", "", addEnvelope, http.StatusInternalServerError, "does not match"},
		{"bad parameter", `"Add"`, strings.Replace(addEnvelope, "150", "x", 1), http.StatusInternalServerError, "must be an integer"},
		{"wrong namespace", `"Add"`, strings.Replace(addEnvelope, `xmlns:ns="calculator"`, `xmlns:ns="other"`, 1), http.StatusInternalServerError, "cannot find dispatch method"},
		{"malformed", `"Add"`, "<S:Envelope", http.StatusInternalServerError, "faultstring"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, soapRequest(tt.action, tt.body))
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, "text/xml; charset=utf-8", rec.Header().Get("Content-Type"))
			assert.Contains(t, rec.Body.String(), tt.wantBody)
		})
	}
}

func TestCalculatorHandler_WSDL(t *testing.T) {
	h := mock.NewCalculatorHandler("/calculator")

	rec := get(t, h, "/calculator?wsdl")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `targetNamespace="calculator"`)

	assert.Equal(t, http.StatusNotFound, get(t, h, "/other").Code)
}

func TestServer_StateMachine(t *testing.T) {
	ctx := context.Background()
	m := mock.NewManager("")
	s := m.REST()

	assert.Equal(t, mock.Stopped, s.State())
	assert.NoError(t, s.Stop(ctx), "stop on stopped is a no-op")

	require.NoError(t, s.Start(ctx, 0))
	defer s.Stop(ctx)
	assert.Equal(t, mock.Running, s.State())
	assert.NotZero(t, s.Port())

	err := s.Start(ctx, 0)
	var ar *fault.AlreadyRunning
	require.ErrorAs(t, err, &ar)
	assert.Equal(t, s.Port(), ar.Port)

	resp, err := http.Get(s.URL() + "users?limit=1")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "Leanne Graham")

	require.NoError(t, s.Stop(ctx))
	assert.Equal(t, mock.Stopped, s.State())
	assert.Zero(t, s.Port())
	assert.Empty(t, s.URL())
}

func TestServer_EndpointRequiresRunning(t *testing.T) {
	ctx := context.Background()
	s := mock.NewManager("").SOAP()

	_, err := s.Endpoint()
	var nr *fault.NotRunning
	require.ErrorAs(t, err, &nr)
	assert.Equal(t, "soap", nr.Protocol)
	assert.Equal(t, fault.KindNotRunning, fault.KindOf(err))

	require.NoError(t, s.StartURL(ctx, "http://127.0.0.1:0/calculator"))
	u, err := s.Endpoint()
	require.NoError(t, err)
	assert.Equal(t, s.URL(), u)

	require.NoError(t, s.Stop(ctx))
	_, err = s.Endpoint()
	assert.ErrorAs(t, err, &nr)
}

func TestServer_PortReuseAfterStop(t *testing.T) {
	ctx := context.Background()
	m := mock.NewManager("")

	first := m.REST()
	require.NoError(t, first.Start(ctx, 0))
	port := first.Port()

	conn, err := net.DialTimeout("tcp", net.JoinHostPort(mock.DefaultHost, strconv.Itoa(port)), time.Second)
	require.NoError(t, err, "port must accept connections once Start returns")
	conn.Close()

	second := m.SOAP()
	err = second.Start(ctx, port)
	var ar *fault.AlreadyRunning
	require.ErrorAs(t, err, &ar, "port held by a live handle")
	assert.Equal(t, mock.Stopped, second.State())

	require.NoError(t, first.Stop(ctx))
	require.NoError(t, second.Start(ctx, port))
	defer second.Stop(ctx)
	assert.Equal(t, port, second.Port())
}

func TestServer_StartURL(t *testing.T) {
	ctx := context.Background()
	m := mock.NewManager("")
	s := m.SOAP()

	port, err := mock.FreePort()
	require.NoError(t, err)

	require.NoError(t, s.StartURL(ctx, "http://localhost:"+strconv.Itoa(port)+"/calculator"))
	defer s.Stop(ctx)

	assert.Equal(t, port, s.Port())
	assert.True(t, strings.HasSuffix(s.URL(), "/calculator"))

	req, _ := http.NewRequest(http.MethodPost, s.URL(), strings.NewReader(addEnvelope))
	req.Header.Set("SOAPAction", `"Add"`)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), "<return>400</return>")
}

func TestManager_StopAll(t *testing.T) {
	ctx := context.Background()
	m := mock.NewManager("")
	a, b := m.REST(), m.SOAP()
	require.NoError(t, a.Start(ctx, 0))
	require.NoError(t, b.Start(ctx, 0))

	require.NoError(t, m.StopAll(ctx))
	assert.Equal(t, mock.Stopped, a.State())
	assert.Equal(t, mock.Stopped, b.State())
}
