package parser

import (
	"github.com/dgallion1/docseg/internal/doctree"
	"github.com/dgallion1/docseg/internal/titles"
)

// TextParser handles plain text. Structure comes only from the statistical
// analyzer.
type TextParser struct {
	Analyzer *titles.Analyzer
}

func (p *TextParser) Parse(doc doctree.Document) ([]*doctree.Chapter, error) {
	return analyzerOrDefault(p.Analyzer).Analyze(doc.Content), nil
}
