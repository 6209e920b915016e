package chunker

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/tmc/langchaingo/textsplitter"
)

// Config controls chunking behavior. Sizes are measured in characters (runes).
type Config struct {
	MaxChunkSize int // Upper bound for every emitted chunk.
	OverlapSize  int // Characters repeated from the end of one chunk at the start of the next.
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		MaxChunkSize: 1500,
		OverlapSize:  200,
	}
}

// ConfigError reports an impossible size/overlap combination.
type ConfigError struct {
	MaxChunkSize int
	OverlapSize  int
	Reason       string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("chunker: invalid config (max=%d, overlap=%d): %s", e.MaxChunkSize, e.OverlapSize, e.Reason)
}

// Validate checks the configuration without touching any text.
func (c Config) Validate() error {
	switch {
	case c.MaxChunkSize <= 0:
		return &ConfigError{c.MaxChunkSize, c.OverlapSize, "max chunk size must be positive"}
	case c.OverlapSize < 0:
		return &ConfigError{c.MaxChunkSize, c.OverlapSize, "overlap must not be negative"}
	case c.OverlapSize >= c.MaxChunkSize:
		return &ConfigError{c.MaxChunkSize, c.OverlapSize, "overlap must be smaller than max chunk size"}
	}
	return nil
}

// Splitter breaks text into bounded chunks, cascading from paragraphs to
// sentences to fixed character windows. A Splitter is immutable and safe for
// concurrent use.
type Splitter struct {
	cfg Config
}

var _ textsplitter.TextSplitter = (*Splitter)(nil)

// New validates cfg and returns a splitter.
func New(cfg Config) (*Splitter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Splitter{cfg: cfg}, nil
}

// Config returns the splitter's configuration.
func (s *Splitter) Config() Config {
	return s.cfg
}

// SplitText implements textsplitter.TextSplitter.
func (s *Splitter) SplitText(text string) ([]string, error) {
	return s.Split(text), nil
}

// Split breaks text into chunks of at most MaxChunkSize characters.
func (s *Splitter) Split(text string) []string {
	var result []string
	current := s.newBuffer("\n\n")

	for _, para := range splitByParagraphs(text) {
		// A paragraph that cannot fit on its own goes down to sentences.
		if runeLen(para) > s.cfg.MaxChunkSize {
			result = current.flush(result)
			result = append(result, s.splitBySentences(para)...)
			continue
		}
		result = current.add(para, result)
	}

	return current.flush(result)
}

// splitBySentences breaks a large paragraph into sentence-based chunks.
func (s *Splitter) splitBySentences(text string) []string {
	var result []string
	current := s.newBuffer(" ")

	for _, sent := range splitSentences(text) {
		if runeLen(sent) > s.cfg.MaxChunkSize {
			result = current.flush(result)
			result = append(result, s.hardSplit(sent)...)
			continue
		}
		result = current.add(sent, result)
	}

	return current.flush(result)
}

// hardSplit slices text into fixed windows of MaxChunkSize characters, each
// starting MaxChunkSize-OverlapSize characters after the previous one.
func (s *Splitter) hardSplit(text string) []string {
	runes := []rune(text)
	step := s.cfg.MaxChunkSize - s.cfg.OverlapSize

	var result []string
	for start := 0; start < len(runes); start += step {
		end := min(start+s.cfg.MaxChunkSize, len(runes))
		result = append(result, string(runes[start:end]))
		if end == len(runes) {
			break
		}
	}
	return result
}

// buffer accumulates units until the next one would overflow the chunk size.
type buffer struct {
	sb      strings.Builder
	n       int
	sep     string
	sepLen  int
	max     int
	overlap int
}

func (s *Splitter) newBuffer(sep string) *buffer {
	return &buffer{
		sep:     sep,
		sepLen:  runeLen(sep),
		max:     s.cfg.MaxChunkSize,
		overlap: s.cfg.OverlapSize,
	}
}

func (b *buffer) add(unit string, result []string) []string {
	unitLen := runeLen(unit)
	if b.n > 0 && b.n+b.sepLen+unitLen > b.max {
		prev := b.sb.String()
		result = append(result, prev)
		b.reset()
		b.seed(prev, unitLen)
	}
	b.write(unit, unitLen)
	return result
}

// seed starts the next chunk with the tail of the flushed one. The tail is
// shortened when the full overlap plus the incoming unit would not fit.
func (b *buffer) seed(prev string, nextLen int) {
	prevLen := runeLen(prev)
	if b.overlap == 0 || prevLen <= b.overlap {
		return
	}
	n := min(b.overlap, b.max-nextLen-b.sepLen)
	if n <= 0 {
		return
	}
	b.write(lastRunes(prev, n), n)
}

func (b *buffer) write(s string, n int) {
	if b.n > 0 {
		b.sb.WriteString(b.sep)
		b.n += b.sepLen
	}
	b.sb.WriteString(s)
	b.n += n
}

func (b *buffer) flush(result []string) []string {
	if b.n > 0 {
		result = append(result, b.sb.String())
	}
	b.reset()
	return result
}

func (b *buffer) reset() {
	b.sb.Reset()
	b.n = 0
}

var paragraphBreak = regexp.MustCompile(`\n\s*\n`)

// splitByParagraphs splits on blank lines.
func splitByParagraphs(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	var result []string
	for _, p := range paragraphBreak.Split(text, -1) {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}

// splitSentences breaks after terminal punctuation followed by whitespace,
// after CJK full stops, and at line breaks.
func splitSentences(text string) []string {
	var sentences []string
	var current strings.Builder

	emit := func() {
		if s := strings.TrimSpace(current.String()); s != "" {
			sentences = append(sentences, s)
		}
		current.Reset()
	}

	runes := []rune(text)
	for i, r := range runes {
		if r == '\n' {
			emit()
			continue
		}
		current.WriteRune(r)
		switch r {
		case '。', '！', '？', '；':
			emit()
		case '.', '!', '?':
			if i+1 == len(runes) || unicode.IsSpace(runes[i+1]) {
				emit()
			}
		}
	}
	emit()

	return sentences
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}

func lastRunes(s string, n int) string {
	runes := []rune(s)
	if n >= len(runes) {
		return s
	}
	return string(runes[len(runes)-n:])
}
