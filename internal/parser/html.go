package parser

import (
	"strings"

	"golang.org/x/net/html"

	"github.com/dgallion1/docseg/internal/doctree"
	"github.com/dgallion1/docseg/internal/titles"
)

// HTMLParser handles HTML. h1-h6 elements become chapters and the text
// blocks that follow them become their content.
type HTMLParser struct {
	Analyzer *titles.Analyzer
}

func (p *HTMLParser) Parse(doc doctree.Document) ([]*doctree.Chapter, error) {
	root, err := html.Parse(strings.NewReader(doc.Content))
	if err != nil {
		return nil, &ParseError{Kind: doctree.KindHTML, Err: err}
	}

	b := newSectionBuilder(SourceHTML, "\n\n")

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if level := headingLevel(n.Data); level > 0 {
				b.heading(textContent(n), level)
				return
			}

			switch n.Data {
			case "script", "style", "nav", "footer", "header", "noscript", "template":
				return
			case "p", "li", "td", "th", "blockquote", "pre", "dd", "dt", "figcaption":
				b.text(textContent(n))
				return
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}

	if body := findBody(root); body != nil {
		walk(body)
	} else {
		walk(root)
	}

	if chapters := b.chapters(); len(chapters) > 0 {
		return chapters, nil
	}
	return fallback(analyzerOrDefault(p.Analyzer), b.Plain(), doctree.KindHTML), nil
}

func headingLevel(tag string) int {
	switch tag {
	case "h1":
		return 1
	case "h2":
		return 2
	case "h3":
		return 3
	case "h4":
		return 4
	case "h5":
		return 5
	case "h6":
		return 6
	}
	return 0
}

func textContent(n *html.Node) string {
	var buf strings.Builder
	var extract func(*html.Node)
	extract = func(n *html.Node) {
		if n.Type == html.TextNode {
			buf.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			extract(c)
		}
	}
	extract(n)
	return strings.TrimSpace(buf.String())
}

// HTMLTitle returns the text of the <title> element, if any.
func HTMLTitle(content string) string {
	root, err := html.Parse(strings.NewReader(content))
	if err != nil {
		return ""
	}
	return findTitle(root)
}

func findTitle(n *html.Node) string {
	if n.Type == html.ElementNode && n.Data == "title" {
		return textContent(n)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if t := findTitle(c); t != "" {
			return t
		}
	}
	return ""
}

func findBody(n *html.Node) *html.Node {
	if n.Type == html.ElementNode && n.Data == "body" {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if b := findBody(c); b != nil {
			return b
		}
	}
	return nil
}
