package parser

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"

	pdflib "github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/dgallion1/docseg/internal/doctree"
)

// buildPDF writes a minimal PDF with one Helvetica text line per entry of
// each page.
func buildPDF(t *testing.T, pages [][]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	offsets := []int{0}
	obj := func(body string) {
		offsets = append(offsets, buf.Len())
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", len(offsets)-1, body)
	}

	buf.WriteString("%PDF-1.4\n")
	kids := make([]string, len(pages))
	for i := range pages {
		kids[i] = fmt.Sprintf("%d 0 R", 4+2*i)
	}
	obj("<< /Type /Catalog /Pages 2 0 R >>")
	obj(fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), len(pages)))
	obj("<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>")
	for i, lines := range pages {
		var content strings.Builder
		for j, line := range lines {
			fmt.Fprintf(&content, "BT /F1 12 Tf 72 %d Td (%s) Tj ET\n", 720-16*j, line)
		}
		obj(fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] "+
			"/Resources << /Font << /F1 3 0 R >> >> /Contents %d 0 R >>", 5+2*i))
		obj(fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", content.Len(), content.String()))
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(offsets))
	for _, off := range offsets[1:] {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(offsets), xref)
	return buf.Bytes()
}

func addBookmarks(t *testing.T, raw []byte, bms []pdfcpu.Bookmark) []byte {
	t.Helper()
	conf := model.NewDefaultConfiguration()
	conf.WriteObjectStream = false
	conf.WriteXRefStream = false
	var out bytes.Buffer
	if err := api.AddBookmarks(bytes.NewReader(raw), &out, bms, false, conf); err != nil {
		t.Fatalf("add bookmarks: %v", err)
	}
	return out.Bytes()
}

func pdfDocument(raw []byte) doctree.Document {
	return doctree.Document{Metadata: map[string]any{
		doctree.MetaDocumentType: "pdf",
		doctree.MetaRawBytes:     raw,
	}}
}

func TestPDFParser_BookmarkedFile(t *testing.T) {
	raw := buildPDF(t, [][]string{
		{"Contents", "Introduction", "Methods"},
		{"Introduction", "intro body line"},
		{"Methods", "methods body line", "Sampling", "sampling body line"},
	})
	raw = addBookmarks(t, raw, []pdfcpu.Bookmark{
		{Title: "Introduction", PageFrom: 2},
		{Title: "Methods", PageFrom: 3, Kids: []pdfcpu.Bookmark{{Title: "Sampling", PageFrom: 3}}},
	})

	outline := bookmarkOutline(raw)
	if len(outline) != 2 || outline[1].Page != 3 || len(outline[1].Children) != 1 {
		t.Fatalf("unexpected bookmark outline %+v", outline)
	}

	chapters, err := (&PDFParser{}).Parse(pdfDocument(raw))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chapters) != 2 {
		t.Fatalf("expected 2 top-level chapters, got %d", len(chapters))
	}
	intro, methods := chapters[0], chapters[1]
	if intro.Title != "Introduction" || intro.Level != 1 || intro.PageNumber != 2 {
		t.Errorf("unexpected intro %q level %d page %d", intro.Title, intro.Level, intro.PageNumber)
	}
	if intro.Content != "intro body line" {
		t.Errorf("expected intro located on its page, got content %q", intro.Content)
	}
	if methods.Content != "methods body line" || methods.PageNumber != 3 {
		t.Errorf("unexpected methods %q page %d", methods.Content, methods.PageNumber)
	}
	if len(methods.SubChapters) != 1 {
		t.Fatalf("expected Sampling under Methods, got %+v", methods.SubChapters)
	}
	sampling := methods.SubChapters[0]
	if sampling.Title != "Sampling" || sampling.Level != 2 || sampling.PageNumber != 3 || sampling.Content != "sampling body line" {
		t.Errorf("unexpected sampling chapter %+v", sampling)
	}
	for _, ch := range []*doctree.Chapter{intro, methods, sampling} {
		if ch.Source() != SourceBookmarks {
			t.Errorf("chapter %q: expected source %q, got %q", ch.Title, SourceBookmarks, ch.Source())
		}
		if _, ok := ch.Metadata[doctree.MetaFallbackFrom]; ok {
			t.Errorf("chapter %q: unexpected fallback tag", ch.Title)
		}
	}
}

func TestPDFParser_FileWithoutBookmarksFallsBack(t *testing.T) {
	raw := buildPDF(t, [][]string{
		{"Chapter 1: Start", "first body", "Chapter 2: Finish", "second body"},
	})
	if outline := bookmarkOutline(raw); len(outline) != 0 {
		t.Fatalf("expected no bookmarks, got %+v", outline)
	}
	if doc, err := DocumentFromFile("upload", raw); err != nil || doc.Kind() != doctree.KindPDF {
		t.Fatalf("expected content sniffing to detect pdf, got %v (%v)", doc.Kind(), err)
	}

	text, pageStarts, _, err := readPDF(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(text, "Chapter 2: Finish") || len(pageStarts) != 1 {
		t.Fatalf("unexpected extracted text %q (pages %v)", text, pageStarts)
	}

	chapters, err := (&PDFParser{}).Parse(pdfDocument(raw))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chapters) != 2 {
		t.Fatalf("expected 2 chapters, got %d", len(chapters))
	}
	if chapters[0].Metadata[doctree.MetaFallbackFrom] != "pdf" {
		t.Errorf("expected fallback_from=pdf, got %v", chapters[0].Metadata[doctree.MetaFallbackFrom])
	}
}

func TestConvertOutline(t *testing.T) {
	items := []pdflib.Outline{
		{Title: "Part I", Child: []pdflib.Outline{{Title: "Chapter 1"}, {Title: "Chapter 2"}}},
		{Title: "Part II"},
	}
	got := convertOutline(items)
	if len(got) != 2 || got[0].Title != "Part I" || got[1].Title != "Part II" {
		t.Fatalf("unexpected outline %+v", got)
	}
	if len(got[0].Children) != 2 || got[0].Children[1].Title != "Chapter 2" || got[0].Children[0].Page != 0 {
		t.Errorf("unexpected children %+v", got[0].Children)
	}
	if convertOutline(nil) != nil {
		t.Error("expected nil for no items")
	}
}

func TestChaptersFromOutline_PageSkipsTableOfContents(t *testing.T) {
	text := "Contents\nIntroduction\nMethods\n" +
		"Introduction\nintro body\n" +
		"Methods\nmethods body"
	pageStarts := []int{0, 30, 54}
	outline := []OutlineNode{
		{Title: "Introduction", Page: 2},
		{Title: "Methods", Page: 3},
	}

	chapters := chaptersFromOutline(outline, text, pageStarts)
	if len(chapters) != 2 {
		t.Fatalf("expected 2 chapters, got %d", len(chapters))
	}
	if chapters[0].StartPosition != 30 || chapters[0].Content != "intro body" {
		t.Errorf("expected intro at 30 with its body, got %d %q", chapters[0].StartPosition, chapters[0].Content)
	}
	if chapters[1].StartPosition != 54 || chapters[1].Content != "methods body" {
		t.Errorf("expected methods at 54 with its body, got %d %q", chapters[1].StartPosition, chapters[1].Content)
	}
}

func TestChaptersFromOutline_WrongPageUsesCursor(t *testing.T) {
	text := "Methods\nmethods body\n\nAppendix\nnotes"
	tests := []struct {
		name string
		page int
	}{
		{"page after the title", 2},
		{"page past the end", 9},
	}
	for _, tt := range tests {
		chapters := chaptersFromOutline([]OutlineNode{{Title: "Methods", Page: tt.page}}, text, []int{0, 22})
		if len(chapters) != 1 || chapters[0].StartPosition != 0 {
			t.Errorf("%s: expected Methods located at 0, got %+v", tt.name, chapters)
		}
	}
}

const outlineText = "Contents\n" +
	"Introduction\nintro body\n" +
	"Background\nbg body\n" +
	"Scope\nscope body\n" +
	"Methods\nmethods body"

func TestChaptersFromOutline_Boundaries(t *testing.T) {
	outline := []OutlineNode{
		{Title: "Introduction"},
		{Title: "Background", Children: []OutlineNode{{Title: "Scope"}}},
		{Title: "Methods", Page: 3},
	}
	pageStarts := []int{0, 33, 58}

	chapters := chaptersFromOutline(outline, outlineText, pageStarts)
	if len(chapters) != 3 {
		t.Fatalf("expected 3 top-level chapters, got %d", len(chapters))
	}

	intro, bg, methods := chapters[0], chapters[1], chapters[2]
	if intro.Content != "intro body" {
		t.Errorf("expected intro content %q, got %q", "intro body", intro.Content)
	}
	if intro.StartPosition != 9 || intro.EndPosition != 33 {
		t.Errorf("expected intro span [9,33), got [%d,%d)", intro.StartPosition, intro.EndPosition)
	}
	if intro.PageNumber != 1 {
		t.Errorf("expected intro on page 1, got %d", intro.PageNumber)
	}

	if bg.Content != "bg body" {
		t.Errorf("expected parent content to stop at its first child, got %q", bg.Content)
	}
	if bg.PageNumber != 2 {
		t.Errorf("expected background on page 2, got %d", bg.PageNumber)
	}
	if len(bg.SubChapters) != 1 {
		t.Fatalf("expected 1 child under Background, got %d", len(bg.SubChapters))
	}
	scope := bg.SubChapters[0]
	if scope.Level != 2 {
		t.Errorf("expected child level 2, got %d", scope.Level)
	}
	if scope.Content != "scope body" {
		t.Errorf("expected last child to stop at the next section, got %q", scope.Content)
	}

	if methods.Content != "methods body" || methods.PageNumber != 3 {
		t.Errorf("unexpected Methods chapter: %q page %d", methods.Content, methods.PageNumber)
	}

	for _, ch := range []*doctree.Chapter{intro, bg, scope, methods} {
		if ch.Source() != SourceBookmarks {
			t.Errorf("chapter %q: expected source %q, got %q", ch.Title, SourceBookmarks, ch.Source())
		}
	}
}

func TestChaptersFromOutline_FuzzyTitle(t *testing.T) {
	text := "preamble\n1.2 Data Sources\nsource list"
	chapters := chaptersFromOutline([]OutlineNode{{Title: "1.2 Data-Sources"}}, text, nil)
	if len(chapters) != 1 {
		t.Fatalf("expected 1 chapter, got %d", len(chapters))
	}
	if chapters[0].Content != "source list" {
		t.Errorf("expected content %q, got %q", "source list", chapters[0].Content)
	}
	if chapters[0].StartPosition != 9 {
		t.Errorf("expected start 9, got %d", chapters[0].StartPosition)
	}
	if chapters[0].PageNumber != 0 {
		t.Errorf("expected unknown page, got %d", chapters[0].PageNumber)
	}
}

func TestChaptersFromOutline_UnlocatedNodeKept(t *testing.T) {
	outline := []OutlineNode{
		{Title: "Introduction", Children: []OutlineNode{{Title: "Missing Section"}}},
	}
	chapters := chaptersFromOutline(outline, "Introduction\nbody text", nil)
	if len(chapters) != 1 || len(chapters[0].SubChapters) != 1 {
		t.Fatalf("expected Introduction with 1 child, got %+v", chapters)
	}
	missing := chapters[0].SubChapters[0]
	if missing.Content != "" || missing.StartPosition != -1 {
		t.Errorf("expected unlocated node with no content, got %q at %d", missing.Content, missing.StartPosition)
	}
	if chapters[0].Content != "body text" {
		t.Errorf("expected parent content %q, got %q", "body text", chapters[0].Content)
	}
}

func TestChaptersFromOutline_NothingLocated(t *testing.T) {
	if got := chaptersFromOutline([]OutlineNode{{Title: "Nowhere"}}, "some text", nil); got != nil {
		t.Errorf("expected nil, got %+v", got)
	}
	if got := chaptersFromOutline(nil, "some text", nil); got != nil {
		t.Errorf("expected nil for empty outline, got %+v", got)
	}
}

func TestPDFParser_NoOutlineNoPatterns(t *testing.T) {
	text := "plain lowercase words with no structure at all.\nmore of the same."
	if got := chaptersFromOutline(nil, text, []int{0}); len(got) != 0 {
		t.Fatalf("expected no outline chapters, got %d", len(got))
	}
	if got := fallback(analyzerOrDefault(nil), text, doctree.KindPDF); len(got) != 0 {
		t.Fatalf("expected statistical fallback to find nothing, got %d", len(got))
	}
}

func TestPDFParser_MissingRawBytesFallsBack(t *testing.T) {
	doc := doctree.Document{
		Content:  "Chapter 1: Start\nfirst body\nChapter 2: Finish\nsecond body",
		Metadata: map[string]any{doctree.MetaDocumentType: "pdf"},
	}
	chapters, err := (&PDFParser{}).Parse(doc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chapters) != 2 {
		t.Fatalf("expected 2 chapters, got %d", len(chapters))
	}
	if chapters[0].Metadata[doctree.MetaFallbackFrom] != "pdf" {
		t.Errorf("expected fallback_from=pdf, got %v", chapters[0].Metadata[doctree.MetaFallbackFrom])
	}
}

func TestPDFParser_CorruptInput(t *testing.T) {
	doc := doctree.Document{Metadata: map[string]any{
		doctree.MetaDocumentType: "pdf",
		doctree.MetaRawBytes:     []byte("this is not a pdf file"),
	}}
	_, err := (&PDFParser{}).Parse(doc)
	if err == nil {
		t.Fatal("expected parse error")
	}
	var perr *ParseError
	if !errors.As(err, &perr) {
		t.Fatalf("expected *ParseError, got %T", err)
	}
	if perr.Kind != doctree.KindPDF {
		t.Errorf("expected kind pdf, got %s", perr.Kind)
	}
}

func TestPageAt(t *testing.T) {
	starts := []int{0, 10, 10, 30}
	tests := []struct {
		off, want int
	}{
		{0, 1}, {9, 1}, {10, 3}, {29, 3}, {30, 4}, {500, 4},
	}
	for _, tt := range tests {
		if got := pageAt(starts, tt.off); got != tt.want {
			t.Errorf("pageAt(%d): expected %d, got %d", tt.off, tt.want, got)
		}
	}
	if got := pageAt(nil, 5); got != 0 {
		t.Errorf("expected 0 without page data, got %d", got)
	}
}
