package mock

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/scenariokit/harness/internal/domain/convert"
	"github.com/scenariokit/harness/internal/logger"
)

const (
	EnvelopeNS   = "http://schemas.xmlsoap.org/soap/envelope/"
	CalculatorNS = "calculator"

	maxSOAPRequest = 1 << 20
)

type soapFault struct {
	code   string
	reason string
}

// NewCalculatorHandler serves the calculator SOAP 1.1 service at path.
// Requests must carry a SOAPAction naming the operation, either bare or
// qualified with the service namespace; quotes are ignored.
func NewCalculatorHandler(path string) http.Handler {
	if path == "" || path[0] != '/' {
		path = "/" + path
	}
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(requestLog("soap"))

	r.Post(path, func(w http.ResponseWriter, r *http.Request) {
		result, f := calculate(r)
		if f != nil {
			writeFault(w, f)
			return
		}
		writeEnvelope(w, http.StatusOK, result)
	})
	r.Get(path, func(w http.ResponseWriter, r *http.Request) {
		if _, ok := r.URL.Query()["wsdl"]; !ok {
			http.Error(w, "SOAP endpoint: POST an envelope or GET ?wsdl", http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "text/xml; charset=utf-8")
		io.WriteString(w, calculatorWSDL(absoluteURL(r)))
	})
	return r
}

func calculate(r *http.Request) (string, *soapFault) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxSOAPRequest))
	if err != nil {
		return "", &soapFault{"S:Client", "read request: " + err.Error()}
	}
	doc, err := convert.ParseXML(string(data))
	if err != nil {
		return "", &soapFault{"S:Client", err.Error()}
	}

	body, err := convert.XPathNode(doc, "/*[local-name()='Envelope']/*[local-name()='Body']")
	if err != nil || body == nil {
		return "", &soapFault{"S:Client", "missing SOAP Body"}
	}
	op := convert.FirstElement(body)
	if op == nil {
		return "", &soapFault{"S:Client", "empty SOAP Body"}
	}
	if op.NamespaceURI != CalculatorNS {
		return "", &soapFault{"S:Client", fmt.Sprintf("cannot find dispatch method for {%s}%s", op.NamespaceURI, op.Data)}
	}
	if op.Data != "Add" {
		return "", &soapFault{"S:Client", fmt.Sprintf("unknown operation %q", op.Data)}
	}

	action := strings.Trim(strings.TrimSpace(r.Header.Get("SOAPAction")), `"`)
	if action != op.Data && action != CalculatorNS+"/"+op.Data {
		return "", &soapFault{"S:Client", fmt.Sprintf("SOAPAction %q does not match operation %q", action, op.Data)}
	}

	a, f := intParam(op, "intA")
	if f != nil {
		return "", f
	}
	b, f := intParam(op, "intB")
	if f != nil {
		return "", f
	}
	sum := a + b
	logger.AddScopedLog("INFO", "mock", fmt.Sprintf("soap mock calc: %d + %d = %d", a, b, sum))

	return fmt.Sprintf(`<ns2:AddResponse xmlns:ns2="%s"><return>%d</return></ns2:AddResponse>`, CalculatorNS, sum), nil
}

func intParam(op *convert.Node, name string) (int, *soapFault) {
	s, ok, err := convert.XPathString(op, "*[local-name()='"+name+"']")
	if err != nil || !ok {
		return 0, &soapFault{"S:Client", fmt.Sprintf("missing parameter %s", name)}
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, &soapFault{"S:Client", fmt.Sprintf("parameter %s must be an integer, got %q", name, s)}
	}
	return n, nil
}

func writeEnvelope(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/xml; charset=utf-8")
	w.WriteHeader(status)
	fmt.Fprintf(w, `%s<S:Envelope xmlns:S="%s"><S:Body>%s</S:Body></S:Envelope>`, convert.Declaration, EnvelopeNS, body)
}

func writeFault(w http.ResponseWriter, f *soapFault) {
	logger.AddScopedLog("WARN", "mock", "soap mock fault: "+f.reason)
	writeEnvelope(w, http.StatusInternalServerError, fmt.Sprintf(
		`<S:Fault><faultcode>%s</faultcode><faultstring>%s</faultstring></S:Fault>`,
		f.code, escapeText(f.reason)))
}

func escapeText(s string) string {
	return strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;").Replace(s)
}

func absoluteURL(r *http.Request) string {
	return "http://" + r.Host + r.URL.Path
}

func calculatorWSDL(location string) string {
	return convert.Declaration + `
<definitions xmlns="http://schemas.xmlsoap.org/wsdl/" xmlns:soap="http://schemas.xmlsoap.org/wsdl/soap/" xmlns:tns="calculator" xmlns:xsd="http://www.w3.org/2001/XMLSchema" targetNamespace="calculator" name="Calculator">
  <types>
    <xsd:schema targetNamespace="calculator">
      <xsd:element name="Add"><xsd:complexType><xsd:sequence>
        <xsd:element name="intA" type="xsd:int"/>
        <xsd:element name="intB" type="xsd:int"/>
      </xsd:sequence></xsd:complexType></xsd:element>
      <xsd:element name="AddResponse"><xsd:complexType><xsd:sequence>
        <xsd:element name="return" type="xsd:int"/>
      </xsd:sequence></xsd:complexType></xsd:element>
    </xsd:schema>
  </types>
  <message name="Add"><part name="parameters" element="tns:Add"/></message>
  <message name="AddResponse"><part name="parameters" element="tns:AddResponse"/></message>
  <portType name="CalculatorPort">
    <operation name="Add"><input message="tns:Add"/><output message="tns:AddResponse"/></operation>
  </portType>
  <binding name="CalculatorBinding" type="tns:CalculatorPort">
    <soap:binding transport="http://schemas.xmlsoap.org/soap/http" style="document"/>
    <operation name="Add">
      <soap:operation soapAction="Add"/>
      <input><soap:body use="literal"/></input>
      <output><soap:body use="literal"/></output>
    </operation>
  </binding>
  <service name="Calculator">
    <port name="CalculatorPort" binding="tns:CalculatorBinding"><soap:address location="` + escapeText(location) + `"/></port>
  </service>
</definitions>
`
}
