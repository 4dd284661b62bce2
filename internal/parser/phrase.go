package parser

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// phrase is a vocabulary entry matched case-insensitively on word
// boundaries. Text is the canonical spelling reported to callers.
type phrase struct {
	Text string
	re   *regexp.Regexp
}

func compilePhrases(list []string) []phrase {
	out := make([]phrase, 0, len(list))
	for _, s := range list {
		pattern := `(?i)` + strings.ReplaceAll(regexp.QuoteMeta(s), " ", `\s+`)
		out = append(out, phrase{Text: s, re: regexp.MustCompile(pattern)})
	}
	return out
}

// find returns the first bounded occurrence of p in s, or nil.
func (p phrase) find(s string) []int {
	for _, loc := range p.re.FindAllStringIndex(s, -1) {
		if boundedAt(s, loc[0], loc[1]) {
			return loc
		}
	}
	return nil
}

func boundedAt(s string, start, end int) bool {
	if start > 0 {
		r, _ := utf8.DecodeLastRuneInString(s[:start])
		if isWordRune(r) {
			return false
		}
	}
	if end < len(s) {
		r, _ := utf8.DecodeRuneInString(s[end:])
		if isWordRune(r) {
			return false
		}
	}
	return true
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

// firstPhrase returns the first entry of list found in s, in list order.
func firstPhrase(list []phrase, s string) (phrase, []int, bool) {
	for _, p := range list {
		if loc := p.find(s); loc != nil {
			return p, loc, true
		}
	}
	return phrase{}, nil, false
}

// exactPhrase returns the entry equal to s ignoring case and spacing.
func exactPhrase(list []phrase, s string) (string, bool) {
	s = collapse(s)
	for _, p := range list {
		if strings.EqualFold(p.Text, s) {
			return p.Text, true
		}
	}
	return "", false
}

// blank replaces s[loc[0]:loc[1]] with spaces so later offsets stay valid.
func blank(s string, loc []int) string {
	return s[:loc[0]] + strings.Repeat(" ", loc[1]-loc[0]) + s[loc[1]:]
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
