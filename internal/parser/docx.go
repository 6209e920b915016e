package parser

import (
	"bytes"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/fumiama/go-docx"

	"github.com/dgallion1/docseg/internal/doctree"
	"github.com/dgallion1/docseg/internal/titles"
)

// DOCXParser handles .docx files. Chapters come from paragraph heading
// styles; documents without them fall back to the statistical analyzer.
type DOCXParser struct {
	Analyzer *titles.Analyzer
}

// paragraph is the part of a docx paragraph the extractor needs.
type paragraph struct {
	Text  string
	Style string
}

func (p *DOCXParser) Parse(doc doctree.Document) ([]*doctree.Chapter, error) {
	raw := doc.Raw()
	if len(raw) == 0 {
		return fallback(analyzerOrDefault(p.Analyzer), doc.Content, doctree.KindWord), nil
	}

	paras, err := readParagraphs(raw)
	if err != nil {
		return nil, &ParseError{Kind: doctree.KindWord, Err: err}
	}

	chapters, text := chaptersFromParagraphs(paras)
	if len(chapters) > 0 {
		return chapters, nil
	}
	return fallback(analyzerOrDefault(p.Analyzer), text, doctree.KindWord), nil
}

func readParagraphs(raw []byte) (paras []paragraph, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed docx: %v", r)
		}
	}()

	doc, err := docx.Parse(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return nil, fmt.Errorf("parse docx: %w", err)
	}

	for _, item := range doc.Document.Body.Items {
		para, ok := item.(*docx.Paragraph)
		if !ok {
			continue
		}
		var style string
		if para.Properties != nil && para.Properties.Style != nil {
			style = para.Properties.Style.Val
		}
		paras = append(paras, paragraph{Text: docxParagraphText(para), Style: style})
	}
	return paras, nil
}

// chaptersFromParagraphs builds chapters from heading-styled paragraphs and
// returns the document text with one paragraph per line.
func chaptersFromParagraphs(paras []paragraph) ([]*doctree.Chapter, string) {
	b := newSectionBuilder(SourceStyles, "\n")
	for _, para := range paras {
		if level := HeadingLevel(para.Style); level > 0 && strings.TrimSpace(para.Text) != "" {
			b.heading(para.Text, level)
			continue
		}
		b.text(para.Text)
	}
	return b.chapters(), b.Plain()
}

const maxHeadingLevel = 6

var headingStyle = regexp.MustCompile(`heading[\s_-]*(\d+)`)

// localizedHeadingMarkers are lower-cased heading style names used by
// non-English word processors.
var localizedHeadingMarkers = []string{
	"标题", "見出し", "überschrift", "titre", "título", "titolo", "kop",
}

// HeadingLevel maps a paragraph style name to a heading level, or 0 for body
// text. "Heading N" styles give N (at most 6); localized heading styles give
// their trailing number or 1; other title or header styles give 1.
func HeadingLevel(style string) int {
	s := strings.ToLower(strings.TrimSpace(style))
	if s == "" {
		return 0
	}

	if m := headingStyle.FindStringSubmatch(s); m != nil {
		n, _ := strconv.Atoi(m[1])
		return clampLevel(n)
	}

	for _, marker := range localizedHeadingMarkers {
		i := strings.Index(s, marker)
		if i < 0 {
			continue
		}
		if n, ok := leadingNumber(s[i+len(marker):]); ok {
			return clampLevel(n)
		}
		return 1
	}

	if strings.Contains(s, "title") || strings.Contains(s, "header") {
		return 1
	}
	return 0
}

func leadingNumber(s string) (int, bool) {
	s = strings.TrimLeft(s, " _-")
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0, false
	}
	n, err := strconv.Atoi(s[:end])
	return n, err == nil
}

func clampLevel(n int) int {
	return min(max(n, 1), maxHeadingLevel)
}

func docxParagraphText(para *docx.Paragraph) string {
	var buf strings.Builder
	for _, child := range para.Children {
		run, ok := child.(*docx.Run)
		if !ok {
			continue
		}
		for _, rc := range run.Children {
			if t, ok := rc.(*docx.Text); ok {
				buf.WriteString(t.Text)
			}
		}
	}
	return strings.TrimSpace(buf.String())
}
