package parser

import (
	"regexp"

	"github.com/troopkit/rostersync/internal/vocab"
)

// Parser holds the compiled vocabulary tables used by every extraction.
type Parser struct {
	vocab *vocab.Vocabulary

	ranks     []phrase
	allRanks  []phrase
	positions []phrase
	renewals  []phrase
	patrols   []phrase

	positionHistory []*regexp.Regexp
	rankProgress    []rankPatterns
}

// New compiles v. A nil vocabulary means vocab.Default().
func New(v *vocab.Vocabulary) *Parser {
	if v == nil {
		v = vocab.Default()
	}
	cp := *v
	cp.Normalize()

	p := &Parser{
		vocab:     &cp,
		ranks:     compilePhrases(cp.Ranks),
		allRanks:  compilePhrases(cp.AllRanks()),
		positions: compilePhrases(cp.Positions),
		renewals:  compilePhrases(cp.RenewalStatuses),
		patrols:   compilePhrases(cp.PatrolKeywords),
	}
	for _, pos := range p.positions {
		p.positionHistory = append(p.positionHistory, positionHistoryRe(pos.Text))
	}
	for _, r := range cp.AllRanks() {
		p.rankProgress = append(p.rankProgress, compileRankPatterns(r))
	}
	return p
}

// Vocabulary returns the normalized vocabulary in use.
func (p *Parser) Vocabulary() *vocab.Vocabulary {
	return p.vocab
}
