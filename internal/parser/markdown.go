package parser

import (
	"bytes"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/dgallion1/docseg/internal/doctree"
	"github.com/dgallion1/docseg/internal/titles"
)

// MarkdownParser handles Markdown using goldmark. Top-level headings become
// chapters and the blocks that follow them become their content.
type MarkdownParser struct {
	Analyzer *titles.Analyzer
}

func (p *MarkdownParser) Parse(doc doctree.Document) ([]*doctree.Chapter, error) {
	src := []byte(doc.Content)
	root := goldmark.New().Parser().Parse(text.NewReader(src))

	b := newSectionBuilder(SourceMarkdown, "\n\n")
	for n := root.FirstChild(); n != nil; n = n.NextSibling() {
		switch node := n.(type) {
		case *ast.Heading:
			b.heading(string(node.Text(src)), node.Level)
		default:
			b.text(extractText(n, src))
		}
	}

	if chapters := b.chapters(); len(chapters) > 0 {
		return chapters, nil
	}
	return fallback(analyzerOrDefault(p.Analyzer), b.Plain(), doctree.KindMarkdown), nil
}

// extractText gets the text content of a goldmark AST node. Leaf blocks use
// their source lines; containers such as lists and block quotes are read
// through their children.
func extractText(n ast.Node, src []byte) string {
	var buf bytes.Buffer
	if n.Type() == ast.TypeBlock && n.Lines().Len() > 0 {
		lines := n.Lines()
		for i := 0; i < lines.Len(); i++ {
			line := lines.At(i)
			buf.Write(line.Value(src))
		}
		return strings.TrimSpace(buf.String())
	}

	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		if t, ok := c.(*ast.Text); ok {
			buf.Write(t.Value(src))
			if t.HardLineBreak() || t.SoftLineBreak() {
				buf.WriteByte('\n')
			}
			continue
		}
		s := extractText(c, src)
		if s == "" {
			continue
		}
		if c.Type() == ast.TypeBlock && buf.Len() > 0 {
			buf.WriteByte('\n')
		}
		buf.WriteString(s)
	}
	return strings.TrimSpace(buf.String())
}
