// Package parser recovers chapter structure from documents, using format
// metadata (PDF outlines, heading styles, markup headings) when present and
// the statistical title analyzer otherwise.
package parser

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/dgallion1/docseg/internal/doctree"
	"github.com/dgallion1/docseg/internal/titles"
)

// Parser extracts a chapter forest from a document. An empty result is not
// an error; a non-nil error means the document could not be decoded.
type Parser interface {
	Parse(doc doctree.Document) ([]*doctree.Chapter, error)
}

// SupportedExtensions lists file extensions this service can handle.
var SupportedExtensions = map[string]doctree.Kind{
	".txt":      doctree.KindText,
	".text":     doctree.KindText,
	".md":       doctree.KindMarkdown,
	".markdown": doctree.KindMarkdown,
	".csv":      doctree.KindCSV,
	".html":     doctree.KindHTML,
	".htm":      doctree.KindHTML,
	".pdf":      doctree.KindPDF,
	".docx":     doctree.KindWord,
}

// ForKind returns the extractor for a document kind. A nil analyzer uses the
// default title library.
func ForKind(kind doctree.Kind, analyzer *titles.Analyzer) Parser {
	analyzer = analyzerOrDefault(analyzer)
	switch kind {
	case doctree.KindPDF:
		return &PDFParser{Analyzer: analyzer}
	case doctree.KindWord:
		return &DOCXParser{Analyzer: analyzer}
	case doctree.KindMarkdown:
		return &MarkdownParser{Analyzer: analyzer}
	case doctree.KindHTML:
		return &HTMLParser{Analyzer: analyzer}
	case doctree.KindCSV:
		return &CSVParser{Analyzer: analyzer}
	default:
		return &TextParser{Analyzer: analyzer}
	}
}

// KindForFilename maps a filename extension to a Kind. ok is false when the
// extension is not recognized.
func KindForFilename(filename string) (kind doctree.Kind, ok bool) {
	kind, ok = SupportedExtensions[strings.ToLower(filepath.Ext(filename))]
	return kind, ok
}

// IsSupportedExtension checks if a file extension is supported.
func IsSupportedExtension(filename string) bool {
	_, ok := KindForFilename(filename)
	return ok
}

// DocumentFromFile builds a Document from an uploaded file. The kind comes
// from the extension, or from content sniffing when the extension is
// unknown. Binary formats keep their bytes under raw_bytes; text formats are
// carried as Content.
func DocumentFromFile(filename string, data []byte) (doctree.Document, error) {
	kind, ok := KindForFilename(filename)
	if !ok {
		var err error
		if kind, err = sniffKind(data); err != nil {
			return doctree.Document{}, fmt.Errorf("%s: %w", filename, err)
		}
	}

	doc := doctree.Document{
		Metadata: map[string]any{
			doctree.MetaDocumentType: kind.String(),
			"filename":               filename,
		},
	}
	switch kind {
	case doctree.KindPDF, doctree.KindWord:
		doc.Metadata[doctree.MetaRawBytes] = data
	case doctree.KindHTML:
		doc.Content = string(data)
		if title := HTMLTitle(doc.Content); title != "" {
			doc.Metadata["title"] = title
		}
	default:
		doc.Content = string(data)
	}
	return doc, nil
}

const docxMIME = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

func sniffKind(data []byte) (doctree.Kind, error) {
	mtype := mimetype.Detect(data)
	switch {
	case mtype.Is("application/pdf"):
		return doctree.KindPDF, nil
	case mtype.Is(docxMIME):
		return doctree.KindWord, nil
	case mtype.Is("text/html"):
		return doctree.KindHTML, nil
	case mtype.Is("text/csv"):
		return doctree.KindCSV, nil
	}
	for m := mtype; m != nil; m = m.Parent() {
		if m.Is("text/plain") {
			return doctree.KindText, nil
		}
	}
	return doctree.KindText, fmt.Errorf("unsupported content type %s", mtype.String())
}

func analyzerOrDefault(a *titles.Analyzer) *titles.Analyzer {
	if a == nil {
		return titles.NewAnalyzer(nil)
	}
	return a
}

// fallback runs the statistical analyzer over text extracted from a
// structured format and tags the result with the format it replaced.
func fallback(a *titles.Analyzer, text string, kind doctree.Kind) []*doctree.Chapter {
	chapters := a.Analyze(text)
	doctree.Walk(chapters, func(ch *doctree.Chapter, _ int) {
		ch.Metadata[doctree.MetaFallbackFrom] = kind.String()
	})
	return chapters
}
