package script

import (
	"fmt"
	"reflect"
	"strconv"

	"github.com/dop251/goja"

	"github.com/scenariokit/harness/internal/domain/convert"
	"github.com/scenariokit/harness/internal/domain/value"
)

var nodeType = reflect.TypeOf((*convert.Node)(nil))

// fromJS converts a script value into the tagged value model. Object keys
// keep their JS enumeration order. Functions become null; wrapped XML nodes
// become their serialized text.
func fromJS(vm *goja.Runtime, v goja.Value) value.Value {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return value.Null{}
	}
	if o, ok := v.(*goja.Object); ok {
		if o.ExportType() == nodeType {
			if n, ok := o.Export().(*convert.Node); ok && n != nil {
				return value.String(n.String())
			}
			return value.Null{}
		}
		switch o.ClassName() {
		case "Function":
			return value.Null{}
		case "Array":
			n := int(o.Get("length").ToInteger())
			out := make(value.Seq, 0, n)
			for i := 0; i < n; i++ {
				out = append(out, fromJS(vm, o.Get(strconv.Itoa(i))))
			}
			return out
		case "Date":
			return value.String(o.String())
		case "String", "Number", "Boolean":
			return primitive(o.Export())
		}
		m := value.NewMap()
		for _, k := range o.Keys() {
			m.Set(k, fromJS(vm, o.Get(k)))
		}
		return m
	}
	return primitive(v.Export())
}

func primitive(x any) value.Value {
	v, err := value.From(x)
	if err != nil {
		return value.String(fmt.Sprint(x))
	}
	return v
}

// fromJSMap is fromJS for arguments that must be objects; anything else is
// treated as absent.
func fromJSMap(vm *goja.Runtime, v goja.Value) *value.Map {
	if m, ok := fromJS(vm, v).(*value.Map); ok {
		return m
	}
	return nil
}

// toJS converts a Value into script objects, preserving map order. Maps get
// a non-enumerable toString that renders them as JSON.
func (b *binder) toJS(v value.Value) goja.Value {
	vm := b.vm
	switch t := v.(type) {
	case nil, value.Null:
		return goja.Null()
	case value.String:
		return vm.ToValue(string(t))
	case value.Number:
		f := float64(t)
		if f == float64(int64(f)) {
			return vm.ToValue(int64(f))
		}
		return vm.ToValue(f)
	case value.Bool:
		return vm.ToValue(bool(t))
	case value.Seq:
		items := make([]any, len(t))
		for i, item := range t {
			items[i] = b.toJS(item)
		}
		return vm.NewArray(items...)
	case *value.Map:
		o := vm.NewObject()
		for _, k := range t.Keys() {
			item, _ := t.Get(k)
			_ = o.Set(k, b.toJS(item))
		}
		_ = o.DefineDataProperty("toString", b.jsonString, goja.FLAG_TRUE, goja.FLAG_TRUE, goja.FLAG_FALSE)
		return o
	}
	return goja.Undefined()
}

// toJSAny handles values held in the shared context, which may have been put
// there by Go scenarios as plain Go values.
func (b *binder) toJSAny(x any) goja.Value {
	if v, ok := x.(value.Value); ok {
		return b.toJS(v)
	}
	if v, err := value.From(x); err == nil {
		return b.toJS(v)
	}
	return b.vm.ToValue(x)
}

func (b *binder) nodeToJS(n *convert.Node) goja.Value {
	if n == nil || n.Node == nil {
		return goja.Null()
	}
	return b.vm.ToValue(n)
}
