package client

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/antchfx/xmlquery"

	"github.com/scenariokit/harness/internal/domain/convert"
	"github.com/scenariokit/harness/internal/domain/fault"
	"github.com/scenariokit/harness/internal/domain/value"
)

const (
	EnvelopeNS     = "http://schemas.xmlsoap.org/soap/envelope/"
	envelopePrefix = "S"
)

// SOAPClient builds SOAP 1.1 envelopes from maps and posts them.
type SOAPClient struct {
	http *http.Client

	mu       sync.Mutex
	username string
	password string
}

func NewSOAPClient(hc *http.Client) *SOAPClient {
	if hc == nil {
		hc = NewHTTPClient(Options{})
	}
	return &SOAPClient{http: hc}
}

// SetBasicAuth makes subsequent calls send HTTP basic credentials.
func (c *SOAPClient) SetBasicAuth(username, password string) {
	c.mu.Lock()
	c.username, c.password = username, password
	c.mu.Unlock()
}

// ClearBasicAuth drops the credentials set by SetBasicAuth.
func (c *SOAPClient) ClearBasicAuth() {
	c.SetBasicAuth("", "")
}

// Invoke posts operation with params and returns the first element inside the
// response Body. operation may carry a prefix ("ns:Add") resolved through
// namespaces; an unprefixed operation takes namespaces["xmlns"] as its
// namespace. action is sent as the SOAPAction header verbatim.
func (c *SOAPClient) Invoke(ctx context.Context, url, action, operation string, params, namespaces *value.Map) (*convert.Node, error) {
	envelope, err := BuildEnvelope(operation, params, namespaces)
	if err != nil {
		return nil, &fault.InvocationError{URL: url, Operation: operation, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(envelope))
	if err != nil {
		return nil, &fault.InvocationError{URL: url, Operation: operation, Err: err}
	}
	req.Header.Set("Content-Type", "text/xml; charset=utf-8")
	if action != "" {
		req.Header.Set("SOAPAction", action)
	}
	c.mu.Lock()
	if c.username != "" || c.password != "" {
		req.SetBasicAuth(c.username, c.password)
	}
	c.mu.Unlock()

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &fault.InvocationError{URL: url, Operation: operation, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &fault.InvocationError{URL: url, Operation: operation, Status: resp.StatusCode, Err: fmt.Errorf("read body: %w", err)}
	}
	return parseResponse(url, operation, resp.StatusCode, resp.Header.Get("Content-Type"), string(data))
}

// InvokeAsMap is Invoke followed by convert.ToMap.
func (c *SOAPClient) InvokeAsMap(ctx context.Context, url, action, operation string, params, namespaces *value.Map) (*value.Map, error) {
	node, err := c.Invoke(ctx, url, action, operation, params, namespaces)
	if err != nil || node == nil {
		return nil, err
	}
	return convert.ToMap(node)
}

// InvokeAsString is Invoke followed by convert.ToString.
func (c *SOAPClient) InvokeAsString(ctx context.Context, url, action, operation string, params, namespaces *value.Map, f convert.Format) (string, error) {
	node, err := c.Invoke(ctx, url, action, operation, params, namespaces)
	if err != nil || node == nil {
		return "", err
	}
	return convert.ToString(node, f)
}

// BuildEnvelope renders the request envelope for operation and params.
func BuildEnvelope(operation string, params, namespaces *value.Map) (string, error) {
	if operation == "" {
		return "", errors.New("empty operation name")
	}
	doc := &xmlquery.Node{Type: xmlquery.DocumentNode}
	env := &xmlquery.Node{Type: xmlquery.ElementNode, Prefix: envelopePrefix, Data: "Envelope", NamespaceURI: EnvelopeNS}
	env.Attr = append(env.Attr, xmlquery.Attr{Name: xml.Name{Space: "xmlns", Local: envelopePrefix}, Value: EnvelopeNS})
	header := &xmlquery.Node{Type: xmlquery.ElementNode, Prefix: envelopePrefix, Data: "Header", NamespaceURI: EnvelopeNS}
	body := &xmlquery.Node{Type: xmlquery.ElementNode, Prefix: envelopePrefix, Data: "Body", NamespaceURI: EnvelopeNS}
	xmlquery.AddChild(doc, env)
	xmlquery.AddChild(env, header)
	xmlquery.AddChild(env, body)

	prefix, local := "", operation
	if i := strings.IndexByte(operation, ':'); i > 0 {
		prefix, local = operation[:i], operation[i+1:]
	}
	op := &xmlquery.Node{Type: xmlquery.ElementNode, Prefix: prefix, Data: local}
	if namespaces != nil {
		key := "xmlns"
		if prefix != "" {
			key = prefix
		}
		if uri, ok := namespaces.Get(key); ok {
			op.NamespaceURI, _ = value.Text(uri)
		}
	}
	xmlquery.AddChild(body, op)

	if params == nil {
		params = value.NewMap()
	}
	if err := convert.Populate(op, params, namespaces); err != nil {
		return "", err
	}
	return convert.ToString(doc, convert.Format{})
}

func parseResponse(url, operation string, status int, contentType, body string) (*convert.Node, error) {
	isXML := strings.Contains(strings.ToLower(contentType), "xml")
	if !isXML && status != http.StatusOK {
		return nil, &fault.InvocationError{URL: url, Operation: operation, Status: status, Body: fault.Truncate(body, 4096),
			Err: fmt.Errorf("unexpected content type %q", contentType)}
	}

	doc, err := convert.ParseXML(body)
	if err != nil {
		return nil, &fault.InvocationError{URL: url, Operation: operation, Status: status, Body: fault.Truncate(body, 4096), Err: err}
	}
	soapBody, err := convert.XPathNode(doc, "/*[local-name()='Envelope']/*[local-name()='Body']")
	if err != nil {
		return nil, &fault.InvocationError{URL: url, Operation: operation, Status: status, Err: err}
	}
	if soapBody == nil {
		return nil, &fault.InvocationError{URL: url, Operation: operation, Status: status, Body: fault.Truncate(body, 4096),
			Err: errors.New("response is not a SOAP envelope")}
	}

	first := convert.FirstElement(soapBody)
	if first != nil && first.Data == "Fault" {
		return nil, faultError(url, operation, status, first)
	}
	if status < 200 || status >= 300 {
		return nil, &fault.InvocationError{URL: url, Operation: operation, Status: status, Body: fault.Truncate(body, 4096)}
	}
	return first, nil
}

// faultError reads SOAP 1.1 (faultcode/faultstring/detail) and SOAP 1.2
// (Code/Value, Reason/Text, Detail) fault shapes.
func faultError(url, operation string, status int, f *convert.Node) error {
	pick := func(exprs ...string) string {
		for _, e := range exprs {
			if s, ok, err := convert.XPathString(f, e); err == nil && ok {
				return strings.TrimSpace(s)
			}
		}
		return ""
	}
	detail := ""
	if d, err := convert.XPathNode(f, "*[local-name()='detail' or local-name()='Detail']"); err == nil && d != nil {
		detail = d.String()
	}
	return &fault.InvocationError{
		URL:         url,
		Operation:   operation,
		Status:      status,
		FaultCode:   pick("*[local-name()='faultcode']", "*[local-name()='Code']/*[local-name()='Value']"),
		FaultString: pick("*[local-name()='faultstring']", "*[local-name()='Reason']/*[local-name()='Text']"),
		Detail:      detail,
		Body:        f.String(),
	}
}
