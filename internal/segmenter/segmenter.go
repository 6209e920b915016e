// Package segmenter turns documents into bounded, chapter-aligned segments
// ready for embedding.
package segmenter

import (
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/tmc/langchaingo/textsplitter"

	"github.com/dgallion1/docseg/internal/chunker"
	"github.com/dgallion1/docseg/internal/doctree"
	"github.com/dgallion1/docseg/internal/parser"
	"github.com/dgallion1/docseg/internal/titles"
)

const (
	DefaultMinChapterLength = 100
	DefaultMaxChapterLength = 5000

	minChapterFloor = 10
	maxChapterSlack = 100

	// ChunkOverlap is the overlap used when an oversized chapter is split.
	ChunkOverlap = 200
)

// Segmentation method tags.
const (
	MethodChapterBased = "chapter_based"
	MethodLargeChapter = "large_chapter"
)

// Segment metadata keys.
const (
	MetaChapterTitle  = "chapter_title"
	MetaChapterLevel  = "chapter_level"
	MetaStartPosition = "start_position"
	MetaEndPosition   = "end_position"
	MetaMethod        = "segmentation_method"
	MetaPageNumber    = "page_number"
	MetaTokenEstimate = "token_estimate"
	MetaChunkIndex    = "chunk_index"
	MetaTotalChunks   = "total_chunks"
	MetaSegmentIndex  = "segment_index"
	MetaTotalSegments = "total_segments"
)

// segmentNamespace scopes segment IDs so they never collide with other
// name-based UUIDs.
var segmentNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("docseg/segment"))

// Options controls segment synthesis. A zero length uses the default.
// MinChapterLength is raised to at least 10 and MaxChapterLength to at least
// MinChapterLength+100.
type Options struct {
	IncludeSubChapters bool `json:"include_sub_chapters" yaml:"include_sub_chapters"`
	MinChapterLength   int  `json:"min_chapter_length" yaml:"min_chapter_length"`
	MaxChapterLength   int  `json:"max_chapter_length" yaml:"max_chapter_length"`
}

// DefaultOptions merges sub-chapters into their top-level chapter.
func DefaultOptions() Options {
	return Options{
		IncludeSubChapters: true,
		MinChapterLength:   DefaultMinChapterLength,
		MaxChapterLength:   DefaultMaxChapterLength,
	}
}

func (o Options) normalized() Options {
	if o.MinChapterLength == 0 {
		o.MinChapterLength = DefaultMinChapterLength
	}
	if o.MaxChapterLength == 0 {
		o.MaxChapterLength = DefaultMaxChapterLength
	}
	o.MinChapterLength = max(o.MinChapterLength, minChapterFloor)
	o.MaxChapterLength = max(o.MaxChapterLength, o.MinChapterLength+maxChapterSlack)
	return o
}

// Option configures a Segmenter.
type Option func(*Segmenter)

// WithLogger sets the logger. The default discards everything.
func WithLogger(log *slog.Logger) Option {
	return func(s *Segmenter) { s.log = log }
}

// WithAnalyzer sets the statistical analyzer used for plain text and
// fallbacks.
func WithAnalyzer(a *titles.Analyzer) Option {
	return func(s *Segmenter) { s.analyzer = a }
}

// WithSplitter replaces the splitter used for oversized chapters.
func WithSplitter(ts textsplitter.TextSplitter) Option {
	return func(s *Segmenter) { s.splitter = ts }
}

// Segmenter is immutable after New and safe for concurrent use.
type Segmenter struct {
	opts     Options
	log      *slog.Logger
	analyzer *titles.Analyzer
	splitter textsplitter.TextSplitter
}

// New validates the options and builds the oversized-chapter splitter. An
// impossible size combination is reported as a *chunker.ConfigError.
func New(opts Options, options ...Option) (*Segmenter, error) {
	s := &Segmenter{
		opts: opts.normalized(),
		log:  slog.New(slog.DiscardHandler),
	}
	for _, o := range options {
		o(s)
	}
	if s.analyzer == nil {
		s.analyzer = titles.NewAnalyzer(nil)
	}
	if s.splitter == nil {
		sp, err := chunker.New(chunker.Config{
			MaxChunkSize: s.opts.MaxChapterLength,
			OverlapSize:  ChunkOverlap,
		})
		if err != nil {
			return nil, fmt.Errorf("segmenter: %w", err)
		}
		s.splitter = sp
	}
	return s, nil
}

// Options returns the effective options.
func (s *Segmenter) Options() Options {
	return s.opts
}

// Segment recovers the document's chapters and turns them into segments.
// A document without recognizable structure yields an empty slice and no
// error; a corrupt native file yields a *parser.ParseError.
func (s *Segmenter) Segment(doc doctree.Document) ([]doctree.Segment, error) {
	chapters, err := s.Chapters(doc)
	if err != nil {
		return nil, err
	}
	return s.SegmentChapters(chapters, doc.Metadata)
}

// Chapters runs only the structure extraction step.
func (s *Segmenter) Chapters(doc doctree.Document) ([]*doctree.Chapter, error) {
	kind := doc.Kind()
	chapters, err := parser.ForKind(kind, s.analyzer).Parse(doc)
	if err != nil {
		return nil, err
	}

	if len(chapters) == 0 {
		s.log.Debug("no structure found", "kind", kind.String())
		return chapters, nil
	}
	first := chapters[0]
	if from, ok := first.Metadata[doctree.MetaFallbackFrom]; ok {
		s.log.Info("structural metadata unavailable, used statistical analysis",
			"kind", kind.String(), "fallback_from", from, "chapters", doctree.Count(chapters))
	} else {
		s.log.Debug("structure extracted",
			"kind", kind.String(), "source", first.Source(), "chapters", doctree.Count(chapters))
	}
	return chapters, nil
}

// draft is a segment before the final numbering pass.
type draft struct {
	title   string
	content string
	meta    map[string]any
}

// SegmentChapters synthesizes segments from an already extracted chapter
// forest. docMeta is merged into every segment without overwriting segment
// keys; raw bytes are never copied.
func (s *Segmenter) SegmentChapters(chapters []*doctree.Chapter, docMeta map[string]any) ([]doctree.Segment, error) {
	var drafts []draft
	if s.opts.IncludeSubChapters {
		for _, ch := range chapters {
			d, err := s.emit(ch, doctree.FullContent(ch))
			if err != nil {
				return nil, err
			}
			drafts = append(drafts, d...)
		}
	} else {
		for _, n := range doctree.Flatten(chapters).Nodes {
			d, err := s.emit(n.Chapter, strings.TrimSpace(n.Chapter.Content))
			if err != nil {
				return nil, err
			}
			drafts = append(drafts, d...)
		}
	}

	segments := finalize(drafts, docMeta)
	s.log.Debug("segmented document",
		"chapters", doctree.Count(chapters), "segments", len(segments),
		"include_sub_chapters", s.opts.IncludeSubChapters)
	return segments, nil
}

// emit turns one chapter's text into zero or more drafts.
func (s *Segmenter) emit(ch *doctree.Chapter, content string) ([]draft, error) {
	n := utf8.RuneCountInString(content)
	if n < s.opts.MinChapterLength {
		return nil, nil
	}

	if n <= s.opts.MaxChapterLength {
		meta := chapterMetadata(ch)
		meta[MetaMethod] = MethodChapterBased
		meta[MetaTokenEstimate] = chunker.EstimateTokens(content)
		return []draft{{title: ch.Title, content: content, meta: meta}}, nil
	}

	parts, err := s.splitter.SplitText(content)
	if err != nil {
		return nil, fmt.Errorf("split chapter %q: %w", ch.Title, err)
	}
	parts = s.padShortParts(parts)

	drafts := make([]draft, 0, len(parts))
	for i, p := range parts {
		meta := chapterMetadata(ch)
		meta[MetaMethod] = MethodLargeChapter
		meta[MetaTokenEstimate] = chunker.EstimateTokens(p)
		meta[MetaChunkIndex] = i
		meta[MetaTotalChunks] = len(parts)
		drafts = append(drafts, draft{
			title:   fmt.Sprintf("%s (part %d)", ch.Title, i+1),
			content: p,
			meta:    meta,
		})
	}
	return drafts, nil
}

// padShortParts grows every part below the minimum with text from its
// neighbour: backwards from the previous part, or forwards from the next one
// for the first part. Parts are never dropped and never grow past the maximum.
func (s *Segmenter) padShortParts(parts []string) []string {
	if len(parts) < 2 {
		return parts
	}
	out := make([]string, len(parts))
	for i, p := range parts {
		out[i] = p
		short := s.opts.MinChapterLength - utf8.RuneCountInString(p)
		if short <= 0 {
			continue
		}
		if i == 0 {
			out[i] = extendForward(p, parts[1], short, s.opts.MaxChapterLength)
		} else {
			out[i] = extendBackward(parts[i-1], p, short, s.opts.MaxChapterLength)
		}
	}
	return out
}

// extendBackward prepends up to need runes of prev that precede the overlap
// prev already shares with p.
func extendBackward(prev, p string, need, limit int) string {
	pr, cur := []rune(prev), []rune(p)
	k := overlapLen(pr, cur)
	sep := joinSep(k)
	end := len(pr) - k
	need = min(padding(need, sep), end, limit-len(cur)-len(sep))
	if need <= 0 {
		return p
	}
	return string(pr[end-need:end]) + sep + p
}

// extendForward appends up to need runes of next that follow the overlap p
// already shares with next.
func extendForward(p, next string, need, limit int) string {
	cur, nr := []rune(p), []rune(next)
	k := overlapLen(cur, nr)
	sep := joinSep(k)
	need = min(padding(need, sep), len(nr)-k, limit-len(cur)-len(sep))
	if need <= 0 {
		return p
	}
	return p + sep + string(nr[k:k+need])
}

// joinSep separates neighbours that share no overlap.
func joinSep(overlap int) string {
	if overlap == 0 {
		return " "
	}
	return ""
}

func padding(need int, sep string) int {
	return max(need-len(sep), 1)
}

// overlapLen returns the length of the longest suffix of a that is also a
// prefix of b.
func overlapLen(a, b []rune) int {
	for k := min(len(a), len(b)); k > 0; k-- {
		if equalRunes(a[len(a)-k:], b[:k]) {
			return k
		}
	}
	return 0
}

func equalRunes(a, b []rune) bool {
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func chapterMetadata(ch *doctree.Chapter) map[string]any {
	meta := make(map[string]any, len(ch.Metadata)+8)
	for k, v := range ch.Metadata {
		meta[k] = v
	}
	meta[MetaChapterTitle] = ch.Title
	meta[MetaChapterLevel] = ch.Level
	meta[MetaStartPosition] = ch.StartPosition
	meta[MetaEndPosition] = ch.EndPosition
	meta[doctree.MetaStructureSource] = ch.Source()
	if ch.PageNumber > 0 {
		meta[MetaPageNumber] = ch.PageNumber
	}
	return meta
}

// finalize numbers the drafts, merges document metadata and assigns IDs.
func finalize(drafts []draft, docMeta map[string]any) []doctree.Segment {
	key := documentKey(docMeta)
	segments := make([]doctree.Segment, 0, len(drafts))
	for i, d := range drafts {
		d.meta[MetaSegmentIndex] = i
		d.meta[MetaTotalSegments] = len(drafts)
		for k, v := range docMeta {
			if k == doctree.MetaRawBytes {
				continue
			}
			if _, exists := d.meta[k]; !exists {
				d.meta[k] = v
			}
		}
		segments = append(segments, doctree.Segment{
			ID:       segmentID(key, i, d.content),
			Title:    d.title,
			Content:  d.content,
			Metadata: d.meta,
		})
	}
	return segments
}

// documentKey picks the metadata value that identifies the source document.
func documentKey(meta map[string]any) string {
	for _, k := range []string{"document_id", "source", "filename"} {
		if v, ok := meta[k].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

func segmentID(docKey string, index int, content string) string {
	name := fmt.Sprintf("%s\x00%d\x00%s", docKey, index, content)
	return uuid.NewSHA1(segmentNamespace, []byte(name)).String()
}
