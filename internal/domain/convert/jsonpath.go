package convert

import (
	"github.com/ohler55/ojg/jp"
	"github.com/ohler55/ojg/oj"

	"github.com/scenariokit/harness/internal/domain/fault"
	"github.com/scenariokit/harness/internal/domain/value"
)

// JSONPath evaluates expr against a JSON document. A definite path (only
// child and index steps) yields a single value, or Null when nothing
// matches. Any wildcard, descent, filter, union or slice makes the path
// indefinite and the result is always a value.Seq.
func JSONPath(doc, expr string) (value.Value, error) {
	data, err := oj.ParseString(doc)
	if err != nil {
		return nil, &fault.ConversionError{Op: "parse json", Input: fault.Truncate(doc, 256), Err: err}
	}
	x, err := jp.ParseString(expr)
	if err != nil {
		return nil, &fault.ConversionError{Op: "compile jsonpath", Input: expr, Err: err}
	}

	found := x.Get(data)
	if definite(x) {
		if len(found) == 0 {
			return value.Null{}, nil
		}
		return toValue(found[0], expr)
	}

	out := make(value.Seq, 0, len(found))
	for _, item := range found {
		v, err := toValue(item, expr)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func definite(x jp.Expr) bool {
	for _, frag := range x {
		switch frag.(type) {
		case jp.Wildcard, jp.Descent, *jp.Filter, jp.Union, jp.Slice:
			return false
		}
	}
	return true
}

func toValue(x any, expr string) (value.Value, error) {
	v, err := value.From(x)
	if err != nil {
		return nil, &fault.ConversionError{Op: "jsonpath", Input: expr, Err: err}
	}
	return v, nil
}
