package convert

import (
	"encoding/xml"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/antchfx/xmlquery"

	"github.com/scenariokit/harness/internal/domain/fault"
	"github.com/scenariokit/harness/internal/domain/value"
)

// ToMap converts an element into a single-entry map keyed by its qualified
// name. A document converts from its root element.
//
// Elements without attributes or element children become their text content.
// Otherwise attributes (namespace declarations included) appear as "@name"
// entries, children by qualified name, and repeated children collapse into a
// sequence under one key. Non-blank text beside elements is kept under
// "#text". Relative order between differently named siblings is not
// represented.
func ToMap(src any) (*value.Map, error) {
	n, err := Resolve(src)
	if err != nil {
		return nil, err
	}
	if n.Type == xmlquery.DocumentNode {
		if n = documentElement(n); n == nil {
			return nil, &fault.ConversionError{Op: "xml to map", Err: errors.New("no root element")}
		}
	}
	return value.NewMap().Set(qname(n), content(n)), nil
}

func content(n *xmlquery.Node) value.Value {
	if len(n.Attr) == 0 && !hasElementChild(n) {
		return value.String(textContent(n))
	}

	m := value.NewMap()
	for _, a := range n.Attr {
		m.Set("@"+attrName(a), value.String(a.Value))
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		switch c.Type {
		case xmlquery.ElementNode:
			key := qname(c)
			v := content(c)
			existing, ok := m.Get(key)
			if !ok {
				m.Set(key, v)
				continue
			}
			if seq, isSeq := existing.(value.Seq); isSeq {
				m.Set(key, append(seq, v))
			} else {
				m.Set(key, value.Seq{existing, v})
			}
		case xmlquery.TextNode, xmlquery.CharDataNode:
			if isBlankText(c) || c.Data == "" {
				continue
			}
			m.Set(textKey, value.String(c.Data))
		}
	}
	return m
}

// FromMap renders a single-root map as an XML document string with a
// declaration. See BuildDocument for the mapping rules.
func FromMap(m *value.Map, namespaces *value.Map) (string, error) {
	doc, err := BuildDocument(m, namespaces)
	if err != nil {
		return "", err
	}
	return ToString(doc, Format{})
}

// BuildDocument builds a DOM from a map with exactly one root key.
//
// Keys starting with "@" become attributes, "#text" becomes text content,
// sequences become repeated elements, maps nest. Any other key must be a
// valid XML name. When namespaces is set, a prefixed root takes its URI
// from the matching entry and an unprefixed root takes the "xmlns" entry;
// every entry is declared on the root. Child elements resolve their prefix
// (or the default namespace) from declarations on their ancestors.
func BuildDocument(m *value.Map, namespaces *value.Map) (*Node, error) {
	if m.Len() != 1 {
		return nil, &fault.ConversionError{Op: "map to xml", Err: fmt.Errorf("map must have exactly one root key, got %d", m.Len())}
	}
	rootName := m.Keys()[0]
	rootValue, _ := m.Get(rootName)
	if !validName(rootName) {
		return nil, invalidName(rootName)
	}
	if _, isSeq := rootValue.(value.Seq); isSeq {
		return nil, &fault.ConversionError{Op: "map to xml", Err: errors.New("root element cannot be a sequence")}
	}

	doc := &xmlquery.Node{Type: xmlquery.DocumentNode}
	root := newElement(rootName)
	if namespaces != nil {
		prefix, _ := splitQName(rootName)
		key := "xmlns"
		if prefix != "" {
			key = prefix
		}
		if uri, ok := namespaces.Get(key); ok {
			root.NamespaceURI, _ = value.Text(uri)
		}
	}
	xmlquery.AddChild(doc, root)

	if err := Populate(root, rootValue, namespaces); err != nil {
		return nil, err
	}
	return Wrap(doc), nil
}

// Populate declares namespaces on parent and appends v beneath it: a map adds
// attributes and child elements, a scalar sets the text content.
func Populate(parent *xmlquery.Node, v value.Value, namespaces *value.Map) error {
	if namespaces != nil {
		DeclareNamespaces(parent, namespaces)
	}
	switch t := v.(type) {
	case *value.Map:
		return AppendMap(parent, t)
	case value.Seq:
		return &fault.ConversionError{Op: "map to xml", Err: fmt.Errorf("element %q cannot hold a bare sequence", qname(parent))}
	default:
		if s, ok := value.Text(v); ok && s != "" {
			xmlquery.AddChild(parent, &xmlquery.Node{Type: xmlquery.TextNode, Data: s})
		}
	}
	return nil
}

// AppendMap adds each entry of m beneath parent.
func AppendMap(parent *xmlquery.Node, m *value.Map) error {
	for _, key := range m.Keys() {
		v, _ := m.Get(key)
		if seq, ok := v.(value.Seq); ok {
			for _, item := range seq {
				if err := appendEntry(parent, key, item); err != nil {
					return err
				}
			}
			continue
		}
		if err := appendEntry(parent, key, v); err != nil {
			return err
		}
	}
	return nil
}

func appendEntry(parent *xmlquery.Node, key string, v value.Value) error {
	if key == textKey {
		if s := scalarText(v); s != "" {
			xmlquery.AddChild(parent, &xmlquery.Node{Type: xmlquery.TextNode, Data: s})
		}
		return nil
	}
	if strings.HasPrefix(key, "@") {
		if !validName(key[1:]) {
			return invalidName(key)
		}
		setAttr(parent, key[1:], scalarText(v))
		return nil
	}
	if !validName(key) {
		return invalidName(key)
	}

	el := newElement(key)
	prefix, _ := splitQName(key)
	if uri, ok := lookupNamespace(parent, prefix); ok {
		el.NamespaceURI = uri
	}
	xmlquery.AddChild(parent, el)

	switch t := v.(type) {
	case *value.Map:
		return AppendMap(el, t)
	default:
		if s := scalarText(v); s != "" {
			xmlquery.AddChild(el, &xmlquery.Node{Type: xmlquery.TextNode, Data: s})
		}
	}
	return nil
}

// DeclareNamespaces adds an xmlns declaration for each entry unless the
// element already carries it. The "xmlns" key declares the default namespace.
func DeclareNamespaces(el *xmlquery.Node, namespaces *value.Map) {
	for _, prefix := range namespaces.Keys() {
		v, _ := namespaces.Get(prefix)
		uri, _ := value.Text(v)
		name := "xmlns:" + prefix
		if prefix == "xmlns" {
			name = "xmlns"
		}
		if _, ok := attr(el, name); !ok {
			setAttr(el, name, uri)
		}
	}
}

const textKey = "#text"

var qnamePattern = regexp.MustCompile(`^([\p{L}_][\p{L}\p{N}\p{M}._-]*:)?[\p{L}_][\p{L}\p{N}\p{M}._-]*$`)

func validName(name string) bool {
	return qnamePattern.MatchString(name)
}

func invalidName(key string) error {
	return &fault.ConversionError{Op: "map to xml", Input: key, Err: fmt.Errorf("%q is not a valid XML name", key)}
}

func newElement(name string) *xmlquery.Node {
	prefix, local := splitQName(name)
	return &xmlquery.Node{Type: xmlquery.ElementNode, Prefix: prefix, Data: local}
}

func splitQName(name string) (prefix, local string) {
	if i := strings.IndexByte(name, ':'); i > 0 {
		return name[:i], name[i+1:]
	}
	return "", name
}

func attr(el *xmlquery.Node, name string) (string, bool) {
	for _, a := range el.Attr {
		if attrName(a) == name {
			return a.Value, true
		}
	}
	return "", false
}

func setAttr(el *xmlquery.Node, name, val string) {
	for i, a := range el.Attr {
		if attrName(a) == name {
			el.Attr[i].Value = val
			return
		}
	}
	prefix, local := splitQName(name)
	el.Attr = append(el.Attr, xmlquery.Attr{Name: xml.Name{Space: prefix, Local: local}, Value: val})
}

// lookupNamespace walks up from el looking for the declaration of prefix.
// An empty prefix looks up the default namespace.
func lookupNamespace(el *xmlquery.Node, prefix string) (string, bool) {
	name := "xmlns"
	if prefix != "" {
		name = "xmlns:" + prefix
	}
	for n := el; n != nil && n.Type == xmlquery.ElementNode; n = n.Parent {
		if uri, ok := attr(n, name); ok {
			return uri, true
		}
		if prefix != "" && n.Prefix == prefix && n.NamespaceURI != "" {
			return n.NamespaceURI, true
		}
	}
	return "", false
}

func scalarText(v value.Value) string {
	if s, ok := value.Text(v); ok {
		return s
	}
	if m, ok := v.(*value.Map); ok {
		return m.String()
	}
	return fmt.Sprint(v)
}
