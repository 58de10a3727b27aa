package convert

import (
	"strings"

	"github.com/antchfx/xmlquery"
)

// Declaration is written ahead of serialized XML unless omitted.
const Declaration = `<?xml version="1.0" encoding="UTF-8"?>`

// Format controls XML serialization. Indent defaults to 2 when Pretty is set.
type Format struct {
	OmitDeclaration bool
	Pretty          bool
	Indent          int
}

// ToString serializes src. Whitespace-only text between elements is dropped
// in both modes; Pretty then re-indents element-only content.
func ToString(src any, f Format) (string, error) {
	n, err := Resolve(src)
	if err != nil {
		return "", err
	}
	if f.Pretty && f.Indent <= 0 {
		f.Indent = 2
	}

	w := &xmlWriter{f: f}
	switch n.Type {
	case xmlquery.TextNode, xmlquery.CharDataNode, xmlquery.AttributeNode:
		return textContent(n), nil
	}
	if !f.OmitDeclaration {
		w.b.WriteString(Declaration)
		if f.Pretty {
			w.b.WriteByte('\n')
		}
	}
	if n.Type == xmlquery.DocumentNode {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == xmlquery.DeclarationNode || isBlankText(c) {
				continue
			}
			w.node(c, 0)
			if f.Pretty {
				w.b.WriteByte('\n')
			}
		}
	} else {
		w.node(n, 0)
		if f.Pretty {
			w.b.WriteByte('\n')
		}
	}
	return w.b.String(), nil
}

type xmlWriter struct {
	b strings.Builder
	f Format
}

func (w *xmlWriter) indent(depth int) {
	w.b.WriteByte('\n')
	w.b.WriteString(strings.Repeat(" ", depth*w.f.Indent))
}

func (w *xmlWriter) node(n *xmlquery.Node, depth int) {
	switch n.Type {
	case xmlquery.TextNode:
		w.b.WriteString(textEscaper.Replace(n.Data))
	case xmlquery.CharDataNode:
		w.b.WriteString("<![CDATA[")
		w.b.WriteString(n.Data)
		w.b.WriteString("]]>")
	case xmlquery.CommentNode:
		w.b.WriteString("<!--")
		w.b.WriteString(n.Data)
		w.b.WriteString("-->")
	case xmlquery.ElementNode:
		w.element(n, depth)
	}
}

func (w *xmlWriter) element(n *xmlquery.Node, depth int) {
	name := qname(n)
	w.b.WriteByte('<')
	w.b.WriteString(name)
	for _, a := range n.Attr {
		w.b.WriteByte(' ')
		w.b.WriteString(attrName(a))
		w.b.WriteString(`="`)
		w.b.WriteString(attrEscaper.Replace(a.Value))
		w.b.WriteByte('"')
	}

	var children []*xmlquery.Node
	mixed := false
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if isBlankText(c) {
			continue
		}
		if c.Type == xmlquery.TextNode || c.Type == xmlquery.CharDataNode {
			mixed = true
		}
		children = append(children, c)
	}
	if len(children) == 0 {
		w.b.WriteString("/>")
		return
	}
	w.b.WriteByte('>')

	layout := w.f.Pretty && !mixed
	for _, c := range children {
		if layout {
			w.indent(depth + 1)
		}
		w.node(c, depth+1)
	}
	if layout {
		w.indent(depth)
	}
	w.b.WriteString("</")
	w.b.WriteString(name)
	w.b.WriteByte('>')
}

var (
	textEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
	attrEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", `"`, "&quot;", "\n", "&#10;", "\t", "&#9;", "\r", "&#13;")
)
