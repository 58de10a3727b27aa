// Package convert turns XML and JSON payloads into the forms scenarios work
// with: DOM nodes, ordered maps, strings and query results.
package convert

import (
	"errors"
	"fmt"
	"strings"

	"github.com/antchfx/xmlquery"

	"github.com/scenariokit/harness/internal/domain/fault"
)

// Node wraps a DOM node. Its String form is the compact XML of the node
// without a declaration, so it concatenates naturally in script output.
type Node struct {
	*xmlquery.Node
}

// Wrap returns n as a *Node, or nil for a nil node.
func Wrap(n *xmlquery.Node) *Node {
	if n == nil {
		return nil
	}
	return &Node{Node: n}
}

func (n *Node) String() string {
	if n == nil || n.Node == nil {
		return ""
	}
	s, err := ToString(n.Node, Format{OmitDeclaration: true})
	if err != nil {
		return fmt.Sprintf("<invalid node: %v>", err)
	}
	return s
}

// Name returns the qualified name of the node (prefix:local).
func (n *Node) Name() string {
	if n == nil || n.Node == nil {
		return ""
	}
	return qname(n.Node)
}

// Text returns the concatenated text content of the node.
func (n *Node) Text() string {
	if n == nil || n.Node == nil {
		return ""
	}
	return textContent(n.Node)
}

// ParseXML parses a complete XML document. The returned node is the document
// node; use DocumentElement for the root element.
func ParseXML(s string) (*Node, error) {
	doc, err := xmlquery.Parse(strings.NewReader(s))
	if err != nil {
		return nil, &fault.ConversionError{Op: "parse xml", Input: fault.Truncate(s, 256), Err: err}
	}
	if documentElement(doc) == nil {
		return nil, &fault.ConversionError{Op: "parse xml", Input: fault.Truncate(s, 256), Err: errors.New("no root element")}
	}
	return Wrap(doc), nil
}

// Resolve accepts an XML string, a *Node or an *xmlquery.Node and returns the
// underlying DOM node.
func Resolve(src any) (*xmlquery.Node, error) {
	switch t := src.(type) {
	case *Node:
		if t != nil && t.Node != nil {
			return t.Node, nil
		}
	case *xmlquery.Node:
		if t != nil {
			return t, nil
		}
	case string:
		n, err := ParseXML(t)
		if err != nil {
			return nil, err
		}
		return n.Node, nil
	case []byte:
		n, err := ParseXML(string(t))
		if err != nil {
			return nil, err
		}
		return n.Node, nil
	default:
		return nil, &fault.ConversionError{Op: "resolve xml", Err: fmt.Errorf("not an XML source: %T", src)}
	}
	return nil, &fault.ConversionError{Op: "resolve xml", Err: errors.New("nil node")}
}

// DocumentElement returns the root element of a document node, or n itself
// for any other node.
func DocumentElement(n *Node) *Node {
	if n == nil {
		return nil
	}
	if n.Type == xmlquery.DocumentNode {
		return Wrap(documentElement(n.Node))
	}
	return n
}

// FirstElement returns the first element child of n, or nil.
func FirstElement(n *Node) *Node {
	if n == nil || n.Node == nil {
		return nil
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == xmlquery.ElementNode {
			return Wrap(c)
		}
	}
	return nil
}

func documentElement(doc *xmlquery.Node) *xmlquery.Node {
	for c := doc.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == xmlquery.ElementNode {
			return c
		}
	}
	return nil
}

// ParseInnerXMLDoc parses the text content of src as a separate XML
// document. It returns nil for blank content.
func ParseInnerXMLDoc(src any) (*Node, error) {
	n, err := Resolve(src)
	if err != nil {
		return nil, err
	}
	content := strings.TrimSpace(textContent(n))
	if content == "" {
		return nil, nil
	}
	return ParseXML(content)
}

// ParseInnerXMLNode is ParseInnerXMLDoc returning the root element.
func ParseInnerXMLNode(src any) (*Node, error) {
	doc, err := ParseInnerXMLDoc(src)
	if err != nil || doc == nil {
		return nil, err
	}
	return DocumentElement(doc), nil
}

const xmlNamespaceURL = "http://www.w3.org/XML/1998/namespace"

func qname(n *xmlquery.Node) string {
	switch n.Type {
	case xmlquery.DocumentNode:
		return "#document"
	case xmlquery.TextNode:
		return "#text"
	case xmlquery.CharDataNode:
		return "#cdata-section"
	case xmlquery.CommentNode:
		return "#comment"
	}
	if n.Prefix != "" {
		return n.Prefix + ":" + n.Data
	}
	return n.Data
}

func attrName(a xmlquery.Attr) string {
	space := a.Name.Space
	if space == xmlNamespaceURL {
		space = "xml"
	}
	if space != "" {
		return space + ":" + a.Name.Local
	}
	return a.Name.Local
}

// textContent mirrors the DOM textContent property: the concatenation of all
// descendant text and CDATA, comments excluded.
func textContent(n *xmlquery.Node) string {
	switch n.Type {
	case xmlquery.TextNode, xmlquery.CharDataNode:
		return n.Data
	case xmlquery.CommentNode, xmlquery.DeclarationNode:
		return ""
	case xmlquery.AttributeNode:
		return n.InnerText()
	}
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		b.WriteString(textContent(c))
	}
	return b.String()
}

func hasElementChild(n *xmlquery.Node) bool {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == xmlquery.ElementNode {
			return true
		}
	}
	return false
}

func isBlankText(n *xmlquery.Node) bool {
	return n.Type == xmlquery.TextNode && strings.TrimSpace(n.Data) == ""
}
