// Package htmltext turns post HTML into plain markdown-flavoured text.
package htmltext

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var blankLines = regexp.MustCompile(`\n{3,}`)

// Convert renders HTML as text. Paragraphs are separated by blank lines,
// links become [text](href), bold and italic become ** and *. Images are
// dropped because their files are archived separately.
func Convert(src string) string {
	if strings.TrimSpace(src) == "" {
		return ""
	}
	doc, err := html.Parse(strings.NewReader(src))
	if err != nil {
		return strings.TrimSpace(src)
	}

	var b strings.Builder
	render(&b, doc)

	out := blankLines.ReplaceAllString(b.String(), "\n\n")
	return strings.TrimSpace(out)
}

// FirstLink returns the first iframe src or anchor href found in src
func FirstLink(src string) string {
	doc, err := html.Parse(strings.NewReader(src))
	if err != nil {
		return ""
	}

	var found string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if found != "" {
			return
		}
		if n.Type == html.ElementNode {
			switch n.DataAtom {
			case atom.Iframe:
				found = attr(n, "src")
			case atom.A:
				found = attr(n, "href")
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return found
}

func render(b *strings.Builder, n *html.Node) {
	switch n.Type {
	case html.TextNode:
		b.WriteString(n.Data)
		return
	case html.ElementNode:
	default:
		renderChildren(b, n)
		return
	}

	switch n.DataAtom {
	case atom.Img, atom.Script, atom.Style:
		return
	case atom.Br:
		b.WriteString("\n")
	case atom.P, atom.Div, atom.Blockquote, atom.Ul, atom.Ol:
		b.WriteString("\n\n")
		renderChildren(b, n)
		b.WriteString("\n\n")
	case atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6:
		level := int(n.Data[1] - '0')
		b.WriteString("\n\n" + strings.Repeat("#", level) + " ")
		renderChildren(b, n)
		b.WriteString("\n\n")
	case atom.Li:
		b.WriteString("\n- ")
		renderChildren(b, n)
	case atom.Strong, atom.B:
		wrap(b, n, "**")
	case atom.Em, atom.I:
		wrap(b, n, "*")
	case atom.A:
		href := attr(n, "href")
		if href == "" {
			renderChildren(b, n)
			return
		}
		var inner strings.Builder
		renderChildren(&inner, n)
		text := strings.TrimSpace(inner.String())
		if text == "" || text == href {
			b.WriteString(href)
			return
		}
		b.WriteString("[" + text + "](" + href + ")")
	default:
		renderChildren(b, n)
	}
}

func renderChildren(b *strings.Builder, n *html.Node) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		render(b, c)
	}
}

func wrap(b *strings.Builder, n *html.Node, mark string) {
	var inner strings.Builder
	renderChildren(&inner, n)
	if text := inner.String(); strings.TrimSpace(text) != "" {
		b.WriteString(mark + text + mark)
	}
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}
