// Package titles detects chapter titles in unstructured text and rebuilds a
// chapter hierarchy from them.
package titles

import (
	"fmt"
	"regexp"
)

// Pattern is one title-detection rule.
type Pattern struct {
	Name       string
	Level      int     // Hierarchy level assigned to matches.
	Confidence float64 // Reliability of the rule, in (0, 1].
	re         *regexp.Regexp
}

// Regexp returns the compiled expression.
func (p Pattern) Regexp() *regexp.Regexp {
	return p.re
}

// Rule describes a pattern before compilation.
type Rule struct {
	Name       string
	Expr       string
	Level      int
	Confidence float64
}

// Library is an ordered, immutable set of patterns. Earlier patterns have
// priority when candidates are ordered and deduplicated.
type Library struct {
	patterns []Pattern
}

// NewLibrary compiles rules in order.
func NewLibrary(rules []Rule) (*Library, error) {
	lib := &Library{patterns: make([]Pattern, 0, len(rules))}
	for _, r := range rules {
		if r.Level < 1 {
			return nil, fmt.Errorf("pattern %q: level must be >= 1, got %d", r.Name, r.Level)
		}
		if r.Confidence <= 0 || r.Confidence > 1 {
			return nil, fmt.Errorf("pattern %q: confidence must be in (0,1], got %g", r.Name, r.Confidence)
		}
		re, err := regexp.Compile(r.Expr)
		if err != nil {
			return nil, fmt.Errorf("pattern %q: %w", r.Name, err)
		}
		lib.patterns = append(lib.patterns, Pattern{
			Name:       r.Name,
			Level:      r.Level,
			Confidence: r.Confidence,
			re:         re,
		})
	}
	return lib, nil
}

// Patterns returns a copy of the rule list.
func (l *Library) Patterns() []Pattern {
	out := make([]Pattern, len(l.patterns))
	copy(out, l.patterns)
	return out
}

// Len returns the number of patterns.
func (l *Library) Len() int {
	return len(l.patterns)
}

const (
	cjkNumerals = `[一二三四五六七八九十百千零〇两\d]+`
	enNumber    = `(?:\d+|[ivxlcdm]+|one|two|three|four|five|six|seven|eight|nine|ten|eleven|twelve|thirteen|fourteen|fifteen|sixteen|seventeen|eighteen|nineteen|twenty)`
	titleSep    = `[ \t]*[:：.\-–—]?[ \t]*`
)

// DefaultRules is the built-in rule set, highest priority first.
var DefaultRules = []Rule{
	{Name: "zh_chapter", Expr: `(?m)^[ \t]*第` + cjkNumerals + `[章篇卷][ \t:：]*(.*)$`, Level: 1, Confidence: 0.95},
	{Name: "en_part", Expr: `(?mi)^[ \t]*part[ \t]+` + enNumber + `\b` + titleSep + `(.*)$`, Level: 1, Confidence: 0.9},
	{Name: "en_chapter", Expr: `(?mi)^[ \t]*chapter[ \t]+` + enNumber + `\b` + titleSep + `(.*)$`, Level: 1, Confidence: 0.9},
	{Name: "zh_section", Expr: `(?m)^[ \t]*第` + cjkNumerals + `节[ \t:：]*(.*)$`, Level: 2, Confidence: 0.9},
	{Name: "en_section", Expr: `(?mi)^[ \t]*section[ \t]+\d+(?:\.\d+)*\b` + titleSep + `(.*)$`, Level: 2, Confidence: 0.85},
	{Name: "md_h1", Expr: `(?m)^#[ \t]+(.+?)[ \t#]*$`, Level: 1, Confidence: 0.85},
	{Name: "md_h2", Expr: `(?m)^##[ \t]+(.+?)[ \t#]*$`, Level: 2, Confidence: 0.85},
	{Name: "md_h3", Expr: `(?m)^###[ \t]+(.+?)[ \t#]*$`, Level: 3, Confidence: 0.85},
	{Name: "section_keyword", Expr: `(?mi)^[ \t]*(abstract|summary|introduction|conclusions?|references|bibliography|acknowledge?ments|appendix(?:[ \t]+[A-Z0-9]+)?|摘要|引言|结论|参考文献|附录|致谢)[ \t]*$`, Level: 1, Confidence: 0.8},
	{Name: "decimal_3", Expr: `(?m)^[ \t]*\d+\.\d+\.\d+\.?[ \t]+(\S.{0,120})$`, Level: 3, Confidence: 0.75},
	{Name: "decimal_2", Expr: `(?m)^[ \t]*\d+\.\d+\.?[ \t]+(\S.{0,120})$`, Level: 2, Confidence: 0.75},
	{Name: "zh_enum", Expr: `(?m)^[ \t]*[一二三四五六七八九十]+、[ \t]*(.{1,60})$`, Level: 1, Confidence: 0.7},
	{Name: "zh_paren_enum", Expr: `(?m)^[ \t]*[（(][一二三四五六七八九十]+[）)][ \t]*(.{1,60})$`, Level: 2, Confidence: 0.65},
	{Name: "decimal_1", Expr: `(?m)^[ \t]*\d+\.[ \t]+([A-Z\p{Han}].{0,80})$`, Level: 1, Confidence: 0.6},
	{Name: "all_caps", Expr: `(?m)^[ \t]*([A-Z][A-Z0-9 \-&,']{3,60}[A-Z0-9])[ \t]*$`, Level: 1, Confidence: 0.5},
}

var defaultLibrary = mustLibrary(DefaultRules)

// DefaultLibrary returns the built-in library. Libraries are immutable, so
// the same instance is shared by every caller.
func DefaultLibrary() *Library {
	return defaultLibrary
}

func mustLibrary(rules []Rule) *Library {
	lib, err := NewLibrary(rules)
	if err != nil {
		panic(err)
	}
	return lib
}
