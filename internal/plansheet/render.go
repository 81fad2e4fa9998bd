package plansheet

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Render serializes doc to a standalone HTML page. The page root carries
// data-ready="true" so a headless browser can wait for it before printing.
func Render(doc *Document) ([]byte, error) {
	if doc == nil {
		return nil, fmt.Errorf("render: nil document")
	}

	title := doc.Header.ServiceTitle
	if doc.Header.ProfileName != "" {
		title += " · " + doc.Header.ProfileName
	}

	page := el(atom.Html, attrs("lang", "en"),
		el(atom.Head, nil,
			el(atom.Meta, attrs("charset", "utf-8")),
			el(atom.Title, nil, text(title)),
			el(atom.Style, nil, text(doc.Stylesheet)),
		),
		el(atom.Body, nil,
			el(atom.Div, attrs(
				"class", "plansheet orientation-"+string(doc.Orientation),
				"data-ready", "true",
			),
				renderHeader(doc.Header),
				renderTable(doc),
			),
		),
	)

	var buf bytes.Buffer
	buf.WriteString("<!DOCTYPE html>\n")
	if err := html.Render(&buf, page); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

func renderHeader(h Header) *html.Node {
	version := el(atom.Div, attrs("class", "version"),
		el(atom.Div, attrs("class", "updated-at"), text("Updated: "+h.UpdatedAt)),
	)
	if h.UpdatedBy != "" {
		version.AppendChild(el(atom.Div, attrs("class", "updated-by"), text("By: "+h.UpdatedBy)))
	}
	if h.PrintedAt != "" {
		version.AppendChild(el(atom.Div, attrs("class", "printed-at"), text("Printed: "+h.PrintedAt)))
	}

	titles := el(atom.Div, attrs("class", "titles"),
		el(atom.H1, nil, text(h.ServiceTitle)),
		el(atom.Div, attrs("class", "start"), text(h.StartLine)),
	)
	if h.PlanTitle != "" && h.PlanTitle != h.ServiceTitle {
		titles.AppendChild(el(atom.Div, attrs("class", "plan-title"), text(h.PlanTitle)))
	}
	titles.AppendChild(el(atom.Div, attrs("class", "profile"), text(h.ProfileName)))

	return el(atom.Header, attrs("class", "sheet-header"), titles, version)
}

func renderTable(doc *Document) *html.Node {
	headRow := el(atom.Tr, nil)
	for _, c := range doc.Columns {
		class := c.Class
		if c.Team {
			class = "team " + c.Class
		}
		headRow.AppendChild(el(atom.Th, attrs("class", class), text(c.Name)))
	}

	body := el(atom.Tbody, nil)
	for _, r := range doc.Rows {
		tr := el(atom.Tr, attrs("class", "row "+r.Class))

		timeCell := el(atom.Td, attrs("class", "col-time"),
			el(atom.Div, attrs("class", "clock"), text(r.Clock)),
		)
		if caption := r.DurationCaption(); caption != "" {
			timeCell.AppendChild(el(atom.Div, attrs("class", "length"), text(caption)))
		}
		tr.AppendChild(timeCell)
		tr.AppendChild(renderDetail(r))

		for _, c := range r.Cells {
			tr.AppendChild(el(atom.Td, attrs("class", "team "+c.Class), multiline(c.Text)...))
		}
		body.AppendChild(tr)
	}

	return el(atom.Table, attrs("class", "schedule"),
		el(atom.Thead, nil, headRow),
		body,
	)
}

func renderDetail(r Row) *html.Node {
	td := el(atom.Td, attrs("class", "col-detail"))
	if r.Title != "" {
		td.AppendChild(el(atom.Div, attrs("class", "item-title"), el(atom.Strong, nil, text(r.Title))))
	}
	if r.Detail != "" {
		td.AppendChild(el(atom.Div, attrs("class", "item-detail"), sanitize(r.Detail)...))
	}
	return td
}

func el(a atom.Atom, attr []html.Attribute, children ...*html.Node) *html.Node {
	n := &html.Node{Type: html.ElementNode, DataAtom: a, Data: a.String(), Attr: attr}
	for _, c := range children {
		if c != nil {
			n.AppendChild(c)
		}
	}
	return n
}

func text(s string) *html.Node {
	return &html.Node{Type: html.TextNode, Data: s}
}

func attrs(kv ...string) []html.Attribute {
	out := make([]html.Attribute, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		out = append(out, html.Attribute{Key: kv[i], Val: kv[i+1]})
	}
	return out
}

// multiline turns newlines in s into <br> elements.
func multiline(s string) []*html.Node {
	if s == "" {
		return nil
	}
	lines := strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n")
	out := make([]*html.Node, 0, 2*len(lines))
	for i, l := range lines {
		if i > 0 {
			out = append(out, el(atom.Br, nil))
		}
		out = append(out, text(l))
	}
	return out
}

// Inline markup allowed through from upstream detail fields.
var allowed = map[atom.Atom]bool{
	atom.B: true, atom.Strong: true, atom.I: true, atom.Em: true, atom.U: true,
	atom.Br: true, atom.P: true, atom.Span: true, atom.A: true,
	atom.Ul: true, atom.Ol: true, atom.Li: true,
}

// Elements dropped together with their content.
var dropped = map[atom.Atom]bool{
	atom.Script: true, atom.Style: true, atom.Iframe: true, atom.Object: true,
	atom.Embed: true, atom.Noscript: true, atom.Template: true,
}

// sanitize parses untrusted inline markup and rebuilds it from fresh nodes,
// keeping only allow-listed elements. Disallowed elements are unwrapped.
// All attributes are removed except http(s) hrefs on links.
func sanitize(s string) []*html.Node {
	ctx := &html.Node{Type: html.ElementNode, DataAtom: atom.Div, Data: "div"}
	nodes, err := html.ParseFragment(strings.NewReader(s), ctx)
	if err != nil {
		return multiline(s)
	}
	var out []*html.Node
	for _, n := range nodes {
		out = append(out, clean(n)...)
	}
	return out
}

func clean(n *html.Node) []*html.Node {
	switch n.Type {
	case html.TextNode:
		return multiline(n.Data)
	case html.ElementNode:
		if dropped[n.DataAtom] {
			return nil
		}
		var kids []*html.Node
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			kids = append(kids, clean(c)...)
		}
		if !allowed[n.DataAtom] {
			return kids
		}
		var attr []html.Attribute
		if n.DataAtom == atom.A {
			for _, a := range n.Attr {
				if a.Namespace == "" && a.Key == "href" && safeHref(a.Val) {
					attr = append(attr, html.Attribute{Key: "href", Val: a.Val})
				}
			}
		}
		return []*html.Node{el(n.DataAtom, attr, kids...)}
	default:
		return nil
	}
}

func safeHref(v string) bool {
	u, err := url.Parse(strings.TrimSpace(v))
	if err != nil {
		return false
	}
	return u.Scheme == "http" || u.Scheme == "https"
}
