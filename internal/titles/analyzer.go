package titles

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/dgallion1/docseg/internal/doctree"
)

// SourceStatistical tags chapters recovered from text patterns.
const SourceStatistical = "statistical"

const (
	minTitleLen       = 2
	maxTitleLen       = 200
	maxPunctDensity   = 0.5
	patternWeight     = 0.6
	structuralWeight  = 0.4
	defaultMinScore   = 0.3
	shortLineLen      = 100
	veryShortLineLen  = 50
	shortLineBonus    = 0.3
	veryShortBonus    = 0.2
	blankBeforeBonus  = 0.3
	breakAfterBonus   = 0.2
	titleTrimTrailing = " \t:：.-–—"
)

// sectionKeywords keep a title even when it looks like punctuation noise.
var sectionKeywords = []string{
	"summary", "abstract", "introduction", "conclusion", "appendix",
	"references", "bibliography", "acknowledg",
	"摘要", "引言", "结论", "总结", "参考文献", "附录", "致谢",
}

// Analyzer finds chapter titles in plain text using a pattern library and
// layout signals, then assembles them into a chapter forest.
type Analyzer struct {
	lib      *Library
	minScore float64
}

// NewAnalyzer returns an analyzer over lib, or the default library if nil.
func NewAnalyzer(lib *Library) *Analyzer {
	if lib == nil {
		lib = DefaultLibrary()
	}
	return &Analyzer{lib: lib, minScore: defaultMinScore}
}

// candidate is a possible title found by one pattern.
type candidate struct {
	title      string
	raw        string
	start, end int // byte offsets of the match
	level      int
	confidence float64
	score      float64
	rule       int
	pattern    string
}

// Analyze returns the top-level chapters found in text. Text without any
// recognizable title yields an empty result.
func (a *Analyzer) Analyze(text string) []*doctree.Chapter {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	cands := a.detect(text)
	cands = dedupe(cands)
	cands = a.rescore(text, cands)
	return BuildHierarchy(assemble(text, cands))
}

func (a *Analyzer) detect(text string) []candidate {
	var cands []candidate
	for i, p := range a.lib.patterns {
		for _, m := range p.re.FindAllStringSubmatchIndex(text, -1) {
			title := cleanTitle(text, m)
			if !acceptTitle(title) {
				continue
			}
			cands = append(cands, candidate{
				title:      title,
				raw:        text[m[0]:m[1]],
				start:      m[0],
				end:        m[1],
				level:      p.Level,
				confidence: p.Confidence,
				rule:       i,
				pattern:    p.Name,
			})
		}
	}
	return cands
}

// cleanTitle returns the first non-empty capture group, or the whole match
// with its leading marker token removed.
func cleanTitle(text string, m []int) string {
	for g := 1; 2*g+1 < len(m); g++ {
		if m[2*g] < 0 {
			continue
		}
		if s := trimTitle(text[m[2*g]:m[2*g+1]]); s != "" {
			return s
		}
	}

	full := strings.TrimSpace(text[m[0]:m[1]])
	idx := strings.IndexFunc(full, unicode.IsSpace)
	if idx < 0 {
		return ""
	}
	return trimTitle(full[idx:])
}

func trimTitle(s string) string {
	return strings.TrimRight(strings.TrimSpace(s), titleTrimTrailing)
}

func acceptTitle(title string) bool {
	n := utf8.RuneCountInString(title)
	if n < minTitleLen || n > maxTitleLen {
		return false
	}
	if hasSectionKeyword(title) {
		return true
	}

	var punct, meaningful int
	for _, r := range title {
		switch {
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			punct++
		case unicode.IsSpace(r) || unicode.IsDigit(r):
		default:
			meaningful++
		}
	}
	if meaningful == 0 {
		return false
	}
	return float64(punct)/float64(n) <= maxPunctDensity
}

func hasSectionKeyword(title string) bool {
	lower := strings.ToLower(title)
	for _, kw := range sectionKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// dedupe orders candidates by position and resolves overlapping spans in
// favor of the more confident pattern; ties keep the earlier candidate.
func dedupe(cands []candidate) []candidate {
	sort.SliceStable(cands, func(i, j int) bool {
		a, b := cands[i], cands[j]
		if a.start != b.start {
			return a.start < b.start
		}
		if a.confidence != b.confidence {
			return a.confidence > b.confidence
		}
		return a.rule < b.rule
	})

	kept := make([]candidate, 0, len(cands))
	for _, c := range cands {
		if len(kept) == 0 {
			kept = append(kept, c)
			continue
		}
		last := &kept[len(kept)-1]
		if c.start >= last.end {
			kept = append(kept, c)
			continue
		}
		if c.confidence > last.confidence {
			*last = c
		}
	}
	return kept
}

func (a *Analyzer) rescore(text string, cands []candidate) []candidate {
	kept := cands[:0]
	for _, c := range cands {
		c.score = patternWeight*c.confidence + structuralWeight*structuralSignal(text, c.start, c.end)
		if c.score > a.minScore {
			kept = append(kept, c)
		}
	}
	return kept
}

// structuralSignal scores how much the match looks like a standalone heading line.
func structuralSignal(text string, start, end int) float64 {
	lineStart := strings.LastIndexByte(text[:start], '\n') + 1
	lineEnd := len(text)
	if i := strings.IndexByte(text[start:], '\n'); i >= 0 {
		lineEnd = start + i
	}
	lineLen := utf8.RuneCountInString(strings.TrimRight(text[lineStart:lineEnd], "\r"))

	var s float64
	if lineLen < shortLineLen {
		s += shortLineBonus
	}
	if lineLen < veryShortLineLen {
		s += veryShortBonus
	}
	if precededByBlank(text, lineStart) {
		s += blankBeforeBonus
	}
	if end >= len(text) {
		s += breakAfterBonus
	} else {
		switch text[end] {
		case '\n', '\r', ' ', '\t':
			s += breakAfterBonus
		}
	}
	return min(max(s, 0), 1)
}

func precededByBlank(text string, lineStart int) bool {
	if lineStart == 0 {
		return true
	}
	prevEnd := lineStart - 1
	prevStart := strings.LastIndexByte(text[:prevEnd], '\n') + 1
	return strings.TrimSpace(text[prevStart:prevEnd]) == ""
}

// assemble turns ordered, non-overlapping candidates into flat chapters whose
// own content runs up to the next title.
func assemble(text string, cands []candidate) []*doctree.Chapter {
	chapters := make([]*doctree.Chapter, 0, len(cands))
	offsets := runeOffsets{text: text}

	for i, c := range cands {
		contentEnd := len(text)
		if i+1 < len(cands) {
			contentEnd = cands[i+1].start
		}

		ch := doctree.NewChapter(c.title, c.level)
		ch.Content = strings.TrimSpace(text[c.end:contentEnd])
		ch.StartPosition = offsets.at(c.start)
		ch.EndPosition = offsets.at(contentEnd)
		ch.Metadata[doctree.MetaStructureSource] = SourceStatistical
		ch.Metadata["pattern"] = c.pattern
		ch.Metadata["confidence"] = c.score
		ch.Metadata["matched_text"] = strings.TrimSpace(c.raw)
		chapters = append(chapters, ch)
	}
	return chapters
}

// runeOffsets converts increasing byte offsets to character offsets.
type runeOffsets struct {
	text  string
	byteN int
	runeN int
}

func (o *runeOffsets) at(b int) int {
	if b < o.byteN {
		o.byteN, o.runeN = 0, 0
	}
	o.runeN += utf8.RuneCountInString(o.text[o.byteN:b])
	o.byteN = b
	return o.runeN
}
