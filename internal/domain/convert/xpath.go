package convert

import (
	"fmt"
	"math"
	"strconv"

	"github.com/antchfx/xmlquery"
	"github.com/antchfx/xpath"

	"github.com/scenariokit/harness/internal/domain/fault"
)

// XPathString evaluates expr against src. Node-set results yield the text
// content of the first node; scalar expressions (count(), string(), ...)
// yield their string form. ok is false when a node-set is empty.
func XPathString(src any, expr string) (s string, ok bool, err error) {
	res, err := evaluate(src, expr)
	if err != nil {
		return "", false, err
	}
	switch t := res.(type) {
	case *xpath.NodeIterator:
		err = guard(expr, func() {
			if ok = t.MoveNext(); ok {
				s = textContent(current(t))
			}
		})
		return s, ok, err
	case string:
		return t, true, nil
	case float64:
		return formatNumber(t), true, nil
	case bool:
		return strconv.FormatBool(t), true, nil
	}
	return fmt.Sprint(res), true, nil
}

// XPathNode returns the first node selected by expr, or nil.
func XPathNode(src any, expr string) (*Node, error) {
	nodes, err := XPathNodes(src, expr)
	if err != nil || len(nodes) == 0 {
		return nil, err
	}
	return nodes[0], nil
}

// XPathStrings returns the text content of every node selected by expr.
func XPathStrings(src any, expr string) ([]string, error) {
	nodes, err := XPathNodes(src, expr)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = textContent(n.Node)
	}
	return out, nil
}

// XPathNodes returns every node selected by expr in document order.
func XPathNodes(src any, expr string) ([]*Node, error) {
	res, err := evaluate(src, expr)
	if err != nil {
		return nil, err
	}
	it, ok := res.(*xpath.NodeIterator)
	if !ok {
		return nil, &fault.ConversionError{Op: "xpath", Input: expr, Err: fmt.Errorf("expression yields %T, not a node-set", res)}
	}
	var out []*Node
	err = guard(expr, func() {
		for it.MoveNext() {
			out = append(out, Wrap(current(it)))
		}
	})
	return out, err
}

// evaluate runs expr with src as the context node. Absolute paths start at
// the document that owns src, so "//x" also matches src itself.
func evaluate(src any, expr string) (res any, err error) {
	top, err := Resolve(src)
	if err != nil {
		return nil, err
	}
	compiled, err := xpath.Compile(expr)
	if err != nil {
		return nil, &fault.ConversionError{Op: "compile xpath", Input: expr, Err: err}
	}
	err = guard(expr, func() {
		res = compiled.Evaluate(navigatorAt(top))
	})
	return res, err
}

// guard turns a panic inside the xpath engine into a ConversionError.
func guard(expr string, f func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &fault.ConversionError{Op: "xpath", Input: expr, Err: fmt.Errorf("%v", r)}
		}
	}()
	f()
	return nil
}

// navigatorAt returns a navigator rooted at the top ancestor of n and
// positioned on n.
func navigatorAt(n *xmlquery.Node) *xmlquery.NodeNavigator {
	var path []*xmlquery.Node
	root := n
	for root.Parent != nil {
		path = append(path, root)
		root = root.Parent
	}
	nav := xmlquery.CreateXPathNavigator(root)
	for i := len(path) - 1; i >= 0; i-- {
		if !nav.MoveToChild() {
			return xmlquery.CreateXPathNavigator(n)
		}
		for nav.Current() != path[i] {
			if !nav.MoveToNext() {
				// synthesized nodes such as attributes are not linked from
				// their parent
				return xmlquery.CreateXPathNavigator(n)
			}
		}
	}
	return nav
}

// current returns the node under the iterator. Attributes come back as a
// detached AttributeNode holding the value as its text child.
func current(it *xpath.NodeIterator) *xmlquery.Node {
	nav := it.Current().(*xmlquery.NodeNavigator)
	if nav.NodeType() != xpath.AttributeNode {
		return nav.Current()
	}
	text := &xmlquery.Node{Type: xmlquery.TextNode, Data: nav.Value()}
	return &xmlquery.Node{
		Parent:     nav.Current(),
		Type:       xmlquery.AttributeNode,
		Data:       nav.LocalName(),
		Prefix:     nav.Prefix(),
		FirstChild: text,
		LastChild:  text,
	}
}

func formatNumber(f float64) string {
	if math.IsNaN(f) {
		return "NaN"
	}
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}
