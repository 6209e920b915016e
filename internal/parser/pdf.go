package parser

import (
	"bytes"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	pdflib "github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/dgallion1/docseg/internal/doctree"
	"github.com/dgallion1/docseg/internal/titles"
)

// PDFParser handles PDF files. Chapters come from the document outline;
// documents without a usable outline fall back to the statistical analyzer
// over the extracted text.
type PDFParser struct {
	Analyzer *titles.Analyzer
}

// OutlineNode is one bookmark of a PDF outline. Page is 0 when unknown.
type OutlineNode struct {
	Title    string
	Page     int
	Children []OutlineNode
}

func (p *PDFParser) Parse(doc doctree.Document) ([]*doctree.Chapter, error) {
	raw := doc.Raw()
	if len(raw) == 0 {
		return fallback(analyzerOrDefault(p.Analyzer), doc.Content, doctree.KindPDF), nil
	}

	text, pageStarts, outline, err := readPDF(raw)
	if err != nil {
		return nil, &ParseError{Kind: doctree.KindPDF, Err: err}
	}

	if chapters := chaptersFromOutline(outline, text, pageStarts); len(chapters) > 0 {
		return chapters, nil
	}
	return fallback(analyzerOrDefault(p.Analyzer), text, doctree.KindPDF), nil
}

// readPDF extracts the page texts joined by newlines, the byte offset where
// each page starts, and the outline.
func readPDF(raw []byte) (text string, pageStarts []int, outline []OutlineNode, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed pdf: %v", r)
		}
	}()

	reader, err := pdflib.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return "", nil, nil, fmt.Errorf("open pdf: %w", err)
	}

	var buf strings.Builder
	numPages := reader.NumPage()
	pageStarts = make([]int, 0, numPages)
	for i := 1; i <= numPages; i++ {
		if i > 1 {
			buf.WriteByte('\n')
		}
		pageStarts = append(pageStarts, buf.Len())

		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pt, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		buf.WriteString(pt)
	}

	outline = bookmarkOutline(raw)
	if len(outline) == 0 {
		outline = convertOutline(reader.Outline().Child)
	}
	return buf.String(), pageStarts, outline, nil
}

// bookmarkOutline reads the outline with page numbers via pdfcpu. Any failure
// yields nil so the caller can use the text library's outline instead.
func bookmarkOutline(raw []byte) (outline []OutlineNode) {
	defer func() {
		if recover() != nil {
			outline = nil
		}
	}()

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	bms, err := api.Bookmarks(bytes.NewReader(raw), conf)
	if err != nil {
		return nil
	}
	return convertBookmarks(bms)
}

func convertBookmarks(bms []pdfcpu.Bookmark) []OutlineNode {
	if len(bms) == 0 {
		return nil
	}
	out := make([]OutlineNode, 0, len(bms))
	for _, bm := range bms {
		out = append(out, OutlineNode{
			Title:    bm.Title,
			Page:     bm.PageFrom,
			Children: convertBookmarks(bm.Kids),
		})
	}
	return out
}

func convertOutline(items []pdflib.Outline) []OutlineNode {
	if len(items) == 0 {
		return nil
	}
	out := make([]OutlineNode, 0, len(items))
	for _, it := range items {
		out = append(out, OutlineNode{
			Title:    it.Title,
			Children: convertOutline(it.Child),
		})
	}
	return out
}

// chaptersFromOutline maps outline nodes onto text. Titles are searched in
// document order, exactly first and then with FuzzyIndex, starting no earlier
// than the bookmark's page when it is known. A node's own content
// runs from the end of its title to the start of the next located node in
// outline order, so a parent's content stops where its first child begins
// and a last child stops where the following section begins. Nodes whose
// title is not found keep their place in the tree with empty content.
//
// The result is empty when no title could be located.
func chaptersFromOutline(outline []OutlineNode, text string, pageStarts []int) []*doctree.Chapter {
	type entry struct {
		ch         *doctree.Chapter
		parent     int
		page       int
		start, end int
	}
	type frame struct {
		node   *OutlineNode
		parent int
		level  int
	}

	var entries []entry
	stack := make([]frame, 0, len(outline))
	for i := len(outline) - 1; i >= 0; i-- {
		stack = append(stack, frame{node: &outline[i], parent: -1, level: 1})
	}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		ch := doctree.NewChapter(strings.TrimSpace(f.node.Title), f.level)
		ch.Metadata[doctree.MetaStructureSource] = SourceBookmarks
		idx := len(entries)
		entries = append(entries, entry{ch: ch, parent: f.parent, page: f.node.Page, start: -1, end: -1})

		kids := f.node.Children
		for i := len(kids) - 1; i >= 0; i-- {
			stack = append(stack, frame{node: &kids[i], parent: idx, level: f.level + 1})
		}
	}

	located := 0
	cursor := 0
	for i := range entries {
		// A known bookmark page skips earlier mentions such as a table of
		// contents; the plain cursor is the fallback when the page is wrong.
		from := cursor
		if page := entries[i].page; page > 0 && page <= len(pageStarts) {
			from = max(cursor, pageStarts[page-1])
		}
		start, end, ok := locateTitle(text, entries[i].ch.Title, from)
		if !ok && from > cursor {
			start, end, ok = locateTitle(text, entries[i].ch.Title, cursor)
		}
		if !ok {
			continue
		}
		entries[i].start, entries[i].end = start, end
		cursor = end
		located++
	}
	if located == 0 {
		return nil
	}

	next := len(text)
	for i := len(entries) - 1; i >= 0; i-- {
		e := &entries[i]
		if e.page > 0 {
			e.ch.PageNumber = e.page
		}
		if e.start < 0 {
			continue
		}
		e.ch.Content = strings.TrimSpace(text[e.end:next])
		e.ch.StartPosition = utf8.RuneCountInString(text[:e.start])
		e.ch.EndPosition = utf8.RuneCountInString(text[:next])
		if e.ch.PageNumber == 0 {
			e.ch.PageNumber = pageAt(pageStarts, e.start)
		}
		next = e.start
	}

	var roots []*doctree.Chapter
	for _, e := range entries {
		if e.parent < 0 {
			roots = append(roots, e.ch)
			continue
		}
		parent := entries[e.parent].ch
		parent.SubChapters = append(parent.SubChapters, e.ch)
	}
	return roots
}

func locateTitle(text, title string, from int) (start, end int, ok bool) {
	if title == "" || from >= len(text) {
		return 0, 0, false
	}
	if i := strings.Index(text[from:], title); i >= 0 {
		return from + i, from + i + len(title), true
	}
	return FuzzyIndex(text, title, from)
}

// pageAt returns the 1-based page containing byte offset off, or 0 when page
// boundaries are unknown.
func pageAt(pageStarts []int, off int) int {
	if len(pageStarts) == 0 {
		return 0
	}
	return sort.Search(len(pageStarts), func(i int) bool { return pageStarts[i] > off })
}
