package doctree

import "strings"

// Metadata keys shared between the extractors, the segmenter and callers.
const (
	MetaDocumentType = "document_type"
	MetaRawBytes     = "raw_bytes"

	MetaStructureSource = "structure_source"
	MetaFallbackFrom    = "fallback_from"
)

// Kind discriminates the document formats the segmenter knows how to analyze.
type Kind int

const (
	KindText Kind = iota
	KindPDF
	KindWord
	KindMarkdown
	KindHTML
	KindCSV
)

func (k Kind) String() string {
	switch k {
	case KindPDF:
		return "pdf"
	case KindWord:
		return "docx"
	case KindMarkdown:
		return "markdown"
	case KindHTML:
		return "html"
	case KindCSV:
		return "csv"
	default:
		return "text"
	}
}

// ParseKind maps a document-type discriminator to a Kind. Unknown or empty
// values are plain text.
func ParseKind(s string) Kind {
	switch strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), ".")) {
	case "pdf", "application/pdf":
		return KindPDF
	case "docx", "doc", "word", "wordprocessor":
		return KindWord
	case "md", "markdown":
		return KindMarkdown
	case "html", "htm":
		return KindHTML
	case "csv":
		return KindCSV
	default:
		return KindText
	}
}

// Document is the input to segmentation.
type Document struct {
	Content  string
	Metadata map[string]any
}

// Kind reads the document-type discriminator from the metadata.
func (d Document) Kind() Kind {
	switch v := d.Metadata[MetaDocumentType].(type) {
	case Kind:
		return v
	case string:
		return ParseKind(v)
	}
	return KindText
}

// Raw returns the original file bytes, if the caller supplied them.
func (d Document) Raw() []byte {
	raw, _ := d.Metadata[MetaRawBytes].([]byte)
	return raw
}

// Chapter is a node of the recovered document structure.
type Chapter struct {
	Title         string
	Content       string // Own text only; descendants hold their own.
	Level         int
	StartPosition int // Best-effort character offsets, -1 if unknown.
	EndPosition   int
	PageNumber    int // 0 if unknown.
	SubChapters   []*Chapter
	Metadata      map[string]any
}

// NewChapter returns a chapter with unknown position and an empty metadata map.
func NewChapter(title string, level int) *Chapter {
	return &Chapter{
		Title:         title,
		Level:         level,
		StartPosition: -1,
		EndPosition:   -1,
		Metadata:      map[string]any{},
	}
}

// Source returns the provenance tag recorded by the extractor.
func (c *Chapter) Source() string {
	s, _ := c.Metadata[MetaStructureSource].(string)
	return s
}

// Segment is a bounded unit of text ready for embedding.
type Segment struct {
	ID       string         `json:"id" yaml:"id"`
	Title    string         `json:"title" yaml:"title"`
	Content  string         `json:"content" yaml:"content"`
	Metadata map[string]any `json:"metadata" yaml:"metadata"`
}
