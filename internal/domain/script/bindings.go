package script

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/url"
	"sort"
	"strings"

	"github.com/dop251/goja"

	"github.com/scenariokit/harness/internal/domain/client"
	"github.com/scenariokit/harness/internal/domain/convert"
	"github.com/scenariokit/harness/internal/domain/harness"
	"github.com/scenariokit/harness/internal/domain/mock"
	"github.com/scenariokit/harness/internal/domain/shared"
	"github.com/scenariokit/harness/internal/domain/value"
)

// binder installs the harness services into one runtime.
type binder struct {
	vm  *goja.Runtime
	ctx context.Context
	h   *harness.Harness

	jsonString goja.Value
}

func newBinder(ctx context.Context, vm *goja.Runtime, h *harness.Harness) (*binder, error) {
	fn, err := vm.RunString(`(function () { return JSON.stringify(this); })`)
	if err != nil {
		return nil, err
	}
	return &binder{vm: vm, ctx: ctx, h: h, jsonString: fn}, nil
}

type fn = func(goja.FunctionCall) goja.Value

func (b *binder) install() error {
	objects := []struct {
		name    string
		methods map[string]fn
	}{
		{"logger", b.loggerMethods()},
		{"utils", b.utilsMethods()},
		{"http", b.httpMethods()},
		{"soap", b.soapMethods()},
		{"auth", b.authMethods()},
		{"config", b.configMethods()},
		{"env", b.envMethods()},
		{"context", b.contextMethods()},
		{"restTestServer", b.mockMethods(b.h.RESTServer, func(s *mock.Server, arg goja.Value) error {
			return s.Start(b.ctx, int(arg.ToInteger()))
		})},
		{"soapTestServer", b.mockMethods(b.h.SOAPServer, func(s *mock.Server, arg goja.Value) error {
			return s.StartURL(b.ctx, arg.String())
		})},
	}
	for _, o := range objects {
		obj := b.vm.NewObject()
		for name, m := range o.methods {
			if err := obj.Set(name, m); err != nil {
				return err
			}
		}
		if err := b.vm.Set(o.name, obj); err != nil {
			return err
		}
	}
	return nil
}

// throw raises err as a JS exception the script can catch.
func (b *binder) throw(err error) {
	panic(b.vm.NewGoError(err))
}

func (b *binder) must(v goja.Value, err error) goja.Value {
	if err != nil {
		b.throw(err)
	}
	return v
}

func str(call goja.FunctionCall, i int) string {
	v := call.Argument(i)
	if goja.IsUndefined(v) || goja.IsNull(v) {
		return ""
	}
	return v.String()
}

func has(call goja.FunctionCall, i int) bool {
	return i < len(call.Arguments) && !goja.IsUndefined(call.Arguments[i]) && !goja.IsNull(call.Arguments[i])
}

func optBool(call goja.FunctionCall, i int, def bool) bool {
	if !has(call, i) {
		return def
	}
	return call.Arguments[i].ToBoolean()
}

// xmlSource unwraps a node argument, or passes strings through for parsing.
func xmlSource(v goja.Value) any {
	if goja.IsUndefined(v) || goja.IsNull(v) {
		return ""
	}
	if n, ok := v.Export().(*convert.Node); ok {
		return n
	}
	return v.String()
}

// jsonText renders a body argument: strings pass through, anything else is
// serialized as JSON.
func (b *binder) jsonText(v goja.Value) string {
	if goja.IsUndefined(v) || goja.IsNull(v) {
		return ""
	}
	if _, ok := v.(*goja.Object); !ok {
		return v.String()
	}
	data, err := json.Marshal(fromJS(b.vm, v))
	if err != nil {
		b.throw(err)
	}
	return string(data)
}

func (b *binder) loggerMethods() map[string]fn {
	return map[string]fn{
		"log": func(call goja.FunctionCall) goja.Value {
			b.h.Logger.Log(str(call, 0))
			return goja.Undefined()
		},
		"error": func(call goja.FunctionCall) goja.Value {
			b.h.Logger.Error(str(call, 0))
			return goja.Undefined()
		},
	}
}

func (b *binder) utilsMethods() map[string]fn {
	vm := b.vm
	return map[string]fn{
		"toBase64": func(call goja.FunctionCall) goja.Value {
			return vm.ToValue(base64.StdEncoding.EncodeToString([]byte(str(call, 0))))
		},
		"urlEncode": func(call goja.FunctionCall) goja.Value {
			return vm.ToValue(url.QueryEscape(str(call, 0)))
		},
		"getAvailableLocalPort": func(call goja.FunctionCall) goja.Value {
			port, err := mock.FreePort()
			if err != nil {
				b.throw(err)
			}
			return vm.ToValue(port)
		},
		"prompt": func(call goja.FunctionCall) goja.Value {
			var (
				answer string
				err    error
			)
			if has(call, 1) {
				answer, err = b.h.Prompter.PromptDefault(str(call, 0), str(call, 1))
			} else {
				answer, err = b.h.Prompter.Prompt(str(call, 0))
			}
			if err != nil {
				b.throw(err)
			}
			return vm.ToValue(answer)
		},
		"saveFile": func(call goja.FunctionCall) goja.Value {
			path, err := b.h.SaveFile(str(call, 0), str(call, 1), optBool(call, 2, true))
			return b.must(vm.ToValue(path), err)
		},
		"readFile": func(call goja.FunctionCall) goja.Value {
			content, err := b.h.ReadFile(str(call, 0))
			return b.must(vm.ToValue(content), err)
		},
		"saveJsonFile": func(call goja.FunctionCall) goja.Value {
			path, err := b.h.SaveJSON(str(call, 0), fromJS(vm, call.Argument(1)), optBool(call, 2, false), optBool(call, 3, true))
			return b.must(vm.ToValue(path), err)
		},
		"saveXmlFile": func(call goja.FunctionCall) goja.Value {
			text, err := convert.ToString(xmlSource(call.Argument(1)), convert.Format{Pretty: optBool(call, 2, false)})
			if err != nil {
				b.throw(err)
			}
			path, err := b.h.SaveXML(str(call, 0), text, optBool(call, 3, true))
			return b.must(vm.ToValue(path), err)
		},
		"jsonPath": func(call goja.FunctionCall) goja.Value {
			res, err := convert.JSONPath(b.jsonText(call.Argument(0)), str(call, 1))
			if err != nil {
				b.throw(err)
			}
			return b.toJS(res)
		},
		"xpathString": func(call goja.FunctionCall) goja.Value {
			s, ok, err := convert.XPathString(xmlSource(call.Argument(0)), str(call, 1))
			if err != nil {
				b.throw(err)
			}
			if !ok {
				return goja.Null()
			}
			return vm.ToValue(s)
		},
		"xpathNode": func(call goja.FunctionCall) goja.Value {
			n, err := convert.XPathNode(xmlSource(call.Argument(0)), str(call, 1))
			if err != nil {
				b.throw(err)
			}
			return b.nodeToJS(n)
		},
		"xpathListString": func(call goja.FunctionCall) goja.Value {
			list, err := convert.XPathStrings(xmlSource(call.Argument(0)), str(call, 1))
			if err != nil {
				b.throw(err)
			}
			items := make([]any, len(list))
			for i, s := range list {
				items[i] = s
			}
			return vm.NewArray(items...)
		},
		"xpathListNode": func(call goja.FunctionCall) goja.Value {
			list, err := convert.XPathNodes(xmlSource(call.Argument(0)), str(call, 1))
			if err != nil {
				b.throw(err)
			}
			items := make([]any, len(list))
			for i, n := range list {
				items[i] = b.nodeToJS(n)
			}
			return vm.NewArray(items...)
		},
		"xmlToString": func(call goja.FunctionCall) goja.Value {
			f := convert.Format{Pretty: optBool(call, 1, false)}
			if len(call.Arguments) >= 4 {
				f = convert.Format{
					OmitDeclaration: optBool(call, 1, false),
					Pretty:          optBool(call, 2, false),
					Indent:          int(call.Argument(3).ToInteger()),
				}
			}
			s, err := convert.ToString(xmlSource(call.Argument(0)), f)
			return b.must(vm.ToValue(s), err)
		},
		"xmlToMap": func(call goja.FunctionCall) goja.Value {
			m, err := convert.ToMap(xmlSource(call.Argument(0)))
			if err != nil {
				b.throw(err)
			}
			return b.toJS(m)
		},
		"mapToXml": func(call goja.FunctionCall) goja.Value {
			m := fromJSMap(vm, call.Argument(0))
			if m == nil {
				b.throw(errors.New("mapToXml: argument must be an object"))
			}
			s, err := convert.FromMap(m, fromJSMap(vm, call.Argument(1)))
			return b.must(vm.ToValue(s), err)
		},
		"parseInnerXmlNode": func(call goja.FunctionCall) goja.Value {
			n, err := convert.ParseInnerXMLNode(xmlSource(call.Argument(0)))
			if err != nil {
				b.throw(err)
			}
			return b.nodeToJS(n)
		},
		"parseInnerXmlDoc": func(call goja.FunctionCall) goja.Value {
			n, err := convert.ParseInnerXMLDoc(xmlSource(call.Argument(0)))
			if err != nil {
				b.throw(err)
			}
			return b.nodeToJS(n)
		},
	}
}

func (b *binder) response(r *client.Response, err error) goja.Value {
	if err != nil {
		b.throw(err)
	}
	headers := b.vm.NewObject()
	keys := make([]string, 0, len(r.Headers))
	for k := range r.Headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		_ = headers.Set(k, strings.Join(r.Headers[k], ", "))
	}
	o := b.vm.NewObject()
	_ = o.Set("status", r.Status)
	_ = o.Set("headers", headers)
	_ = o.Set("body", r.Body)
	return o
}

func (b *binder) httpMethods() map[string]fn {
	c := b.h.HTTP
	return map[string]fn{
		"get": func(call goja.FunctionCall) goja.Value {
			return b.response(c.Get(b.ctx, str(call, 0)))
		},
		"getWithToken": func(call goja.FunctionCall) goja.Value {
			return b.response(c.GetWithToken(b.ctx, str(call, 0), str(call, 1)))
		},
		"post": func(call goja.FunctionCall) goja.Value {
			return b.response(c.Post(b.ctx, str(call, 0), b.jsonText(call.Argument(1))))
		},
		"postWithToken": func(call goja.FunctionCall) goja.Value {
			return b.response(c.PostWithToken(b.ctx, str(call, 0), b.jsonText(call.Argument(1)), str(call, 2)))
		},
		// request(method, url[, body[, headers[, token]]])
		"request": func(call goja.FunctionCall) goja.Value {
			var headers map[string]string
			if h := fromJSMap(b.vm, call.Argument(3)); h != nil {
				headers = make(map[string]string, h.Len())
				for _, k := range h.Keys() {
					v, _ := h.Get(k)
					s, _ := value.Text(v)
					headers[k] = s
				}
			}
			return b.response(c.Request(b.ctx, str(call, 0), str(call, 1), b.jsonText(call.Argument(2)), headers, str(call, 4)))
		},
	}
}

func (b *binder) soapMethods() map[string]fn {
	c := b.h.SOAP
	args := func(call goja.FunctionCall) (string, string, string, *value.Map, *value.Map) {
		return str(call, 0), str(call, 1), str(call, 2), fromJSMap(b.vm, call.Argument(3)), fromJSMap(b.vm, call.Argument(4))
	}
	return map[string]fn{
		"invoke": func(call goja.FunctionCall) goja.Value {
			u, action, op, params, ns := args(call)
			n, err := c.Invoke(b.ctx, u, action, op, params, ns)
			if err != nil {
				b.throw(err)
			}
			return b.nodeToJS(n)
		},
		"invokeAsMap": func(call goja.FunctionCall) goja.Value {
			u, action, op, params, ns := args(call)
			m, err := c.InvokeAsMap(b.ctx, u, action, op, params, ns)
			if err != nil {
				b.throw(err)
			}
			if m == nil {
				return goja.Null()
			}
			return b.toJS(m)
		},
		"invokeAsString": func(call goja.FunctionCall) goja.Value {
			u, action, op, params, ns := args(call)
			s, err := c.InvokeAsString(b.ctx, u, action, op, params, ns, convert.Format{Pretty: optBool(call, 5, false)})
			return b.must(b.vm.ToValue(s), err)
		},
		"setUserPassword": func(call goja.FunctionCall) goja.Value {
			c.SetBasicAuth(str(call, 0), str(call, 1))
			return goja.Undefined()
		},
		"clear": func(call goja.FunctionCall) goja.Value {
			c.ClearBasicAuth()
			return goja.Undefined()
		},
	}
}

func (b *binder) authMethods() map[string]fn {
	return map[string]fn{
		"getToken": func(call goja.FunctionCall) goja.Value {
			tok, err := b.h.Auth.GetToken(b.ctx, str(call, 0), str(call, 1), str(call, 2), str(call, 3))
			return b.must(b.vm.ToValue(tok), err)
		},
	}
}

func (b *binder) configMethods() map[string]fn {
	return map[string]fn{
		"get": func(call goja.FunctionCall) goja.Value {
			if v, ok := b.h.Config.Lookup(str(call, 0)); ok {
				return b.vm.ToValue(v)
			}
			if has(call, 1) {
				return call.Arguments[1]
			}
			return goja.Null()
		},
		"require": func(call goja.FunctionCall) goja.Value {
			v, err := b.h.Config.Require(str(call, 0))
			return b.must(b.vm.ToValue(v), err)
		},
	}
}

func (b *binder) envMethods() map[string]fn {
	env := b.h.Env
	return map[string]fn{
		"get": func(call goja.FunctionCall) goja.Value {
			if has(call, 1) {
				return b.vm.ToValue(env.GetDefault(str(call, 0), str(call, 1)))
			}
			return b.vm.ToValue(env.Get(str(call, 0)))
		},
		"getRequired": func(call goja.FunctionCall) goja.Value {
			v, err := env.GetRequired(str(call, 0))
			return b.must(b.vm.ToValue(v), err)
		},
		"getNotEmpty": func(call goja.FunctionCall) goja.Value {
			v, err := env.GetNotEmpty(str(call, 0))
			return b.must(b.vm.ToValue(v), err)
		},
	}
}

func (b *binder) contextMethods() map[string]fn {
	store := b.h.Context
	return map[string]fn{
		"put": func(call goja.FunctionCall) goja.Value {
			store.Put(str(call, 0), fromJS(b.vm, call.Argument(1)))
			return goja.Undefined()
		},
		"get": func(call goja.FunctionCall) goja.Value {
			v := store.Get(str(call, 0))
			if shared.IsAbsent(v) {
				return goja.Undefined()
			}
			return b.toJSAny(v)
		},
		"remove": func(call goja.FunctionCall) goja.Value {
			store.Delete(str(call, 0))
			return goja.Undefined()
		},
		"getAll": func(call goja.FunctionCall) goja.Value {
			all := store.All()
			o := b.vm.NewObject()
			for _, k := range store.Keys() {
				if v, ok := all[k]; ok {
					_ = o.Set(k, b.toJSAny(v))
				}
			}
			_ = o.DefineDataProperty("toString", b.jsonString, goja.FLAG_TRUE, goja.FLAG_TRUE, goja.FLAG_FALSE)
			return o
		},
	}
}

func (b *binder) mockMethods(s *mock.Server, start func(*mock.Server, goja.Value) error) map[string]fn {
	return map[string]fn{
		"start": func(call goja.FunctionCall) goja.Value {
			if err := start(s, call.Argument(0)); err != nil {
				b.throw(err)
			}
			return goja.Undefined()
		},
		"stop": func(call goja.FunctionCall) goja.Value {
			if err := s.Stop(b.ctx); err != nil {
				b.throw(err)
			}
			return goja.Undefined()
		},
		"isRunning": func(call goja.FunctionCall) goja.Value {
			return b.vm.ToValue(s.State() == mock.Running)
		},
		"port": func(call goja.FunctionCall) goja.Value {
			return b.vm.ToValue(s.Port())
		},
		"url": func(call goja.FunctionCall) goja.Value {
			u, err := s.Endpoint()
			if err != nil {
				b.throw(err)
			}
			return b.vm.ToValue(u)
		},
	}
}
