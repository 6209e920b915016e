package parser

import (
	"strings"
	"unicode/utf8"

	"github.com/dgallion1/docseg/internal/doctree"
	"github.com/dgallion1/docseg/internal/titles"
)

// Values of the structure_source metadata key set by the native extractors.
const (
	SourceBookmarks = "bookmarks"
	SourceStyles    = "styles"
	SourceMarkdown  = "markdown_headings"
	SourceHTML      = "html_headings"
	SourceCSV       = "csv_rows"
)

// sectionBuilder turns a linear stream of headings and body blocks into
// chapters. Body text goes to the most recent heading; text before the first
// heading belongs to no chapter. It also records the extracted plain text so
// callers can fall back to statistical analysis, and positions refer to that
// text.
type sectionBuilder struct {
	source string
	sep    string

	flat []*doctree.Chapter
	open *doctree.Chapter
	body []string

	plain strings.Builder
	pos   int
}

func newSectionBuilder(source, sep string) *sectionBuilder {
	return &sectionBuilder{source: source, sep: sep}
}

func (b *sectionBuilder) heading(title string, level int) {
	title = strings.TrimSpace(title)
	if title == "" {
		return
	}
	start := b.write(title)
	b.close(start)

	ch := doctree.NewChapter(title, level)
	ch.StartPosition = start
	ch.Metadata[doctree.MetaStructureSource] = b.source
	b.flat = append(b.flat, ch)
	b.open = ch
}

func (b *sectionBuilder) text(t string) {
	t = strings.TrimSpace(t)
	if t == "" {
		return
	}
	b.write(t)
	if b.open != nil {
		b.body = append(b.body, t)
	}
}

func (b *sectionBuilder) write(s string) int {
	if b.plain.Len() > 0 {
		b.plain.WriteString(b.sep)
		b.pos += utf8.RuneCountInString(b.sep)
	}
	start := b.pos
	b.plain.WriteString(s)
	b.pos += utf8.RuneCountInString(s)
	return start
}

func (b *sectionBuilder) close(end int) {
	if b.open != nil {
		b.open.Content = strings.Join(b.body, "\n\n")
		b.open.EndPosition = end
	}
	b.open = nil
	b.body = b.body[:0]
}

// chapters closes the last chapter and nests everything by level.
func (b *sectionBuilder) chapters() []*doctree.Chapter {
	b.close(b.pos)
	return titles.BuildHierarchy(b.flat)
}

// Plain returns every heading and body block seen so far.
func (b *sectionBuilder) Plain() string {
	return b.plain.String()
}
