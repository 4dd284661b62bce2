package parser

import (
	"errors"
	"fmt"

	"github.com/troopkit/rostersync/internal/browser"
	"github.com/troopkit/rostersync/internal/types"
)

// Input is one page to extract members from. Strategies use whichever
// field they understand.
type Input struct {
	Snapshot *browser.Snapshot
	HTML     []byte
}

// Strategy is one way of extracting roster members from a page. Parse
// returns ErrNoConfidentResult when it has nothing to offer.
type Strategy interface {
	Name() string
	Parse(in Input) ([]types.Member, error)
}

// Chain tries strategies in order and returns the first confident result.
type Chain []Strategy

// Parse returns the members and the name of the strategy that produced
// them. Errors other than ErrNoConfidentResult stop the chain.
func (c Chain) Parse(in Input) ([]types.Member, string, error) {
	for _, s := range c {
		members, err := s.Parse(in)
		if errors.Is(err, ErrNoConfidentResult) {
			continue
		}
		if err != nil {
			return nil, s.Name(), fmt.Errorf("%s: %w", s.Name(), err)
		}
		return members, s.Name(), nil
	}
	return nil, "", ErrNoConfidentResult
}

type textRows struct{ p *Parser }

func (s textRows) Name() string { return "text-rows" }

func (s textRows) Parse(in Input) ([]types.Member, error) {
	if in.Snapshot == nil {
		return nil, ErrNoConfidentResult
	}
	return confident(s.p.ParseRosterText(in.Snapshot.Text))
}

type refPositions struct{ p *Parser }

func (s refPositions) Name() string { return "ref-positions" }

func (s refPositions) Parse(in Input) ([]types.Member, error) {
	return confident(s.p.ParseRosterRefs(in.Snapshot))
}

type htmlColumns struct{ p *Parser }

func (s htmlColumns) Name() string { return "html-columns" }

func (s htmlColumns) Parse(in Input) ([]types.Member, error) {
	if len(in.HTML) == 0 {
		return nil, ErrNoConfidentResult
	}
	members, err := s.p.ParseRosterHTML(in.HTML)
	if err != nil {
		return nil, err
	}
	return confident(members)
}

func confident(members []types.Member) ([]types.Member, error) {
	if len(members) == 0 {
		return nil, ErrNoConfidentResult
	}
	return members, nil
}

// TextRows extracts from snapshot row text.
func (p *Parser) TextRows() Strategy { return textRows{p} }

// RefPositions extracts by positional ref offsets.
func (p *Parser) RefPositions() Strategy { return refPositions{p} }

// HTMLColumns extracts from HTML tables.
func (p *Parser) HTMLColumns() Strategy { return htmlColumns{p} }

// RosterChain is the default chain for live roster pages: row text first,
// then ref positions.
func (p *Parser) RosterChain() Chain {
	return Chain{p.TextRows(), p.RefPositions()}
}

// HTMLChain is the chain for uploaded HTML exports.
func (p *Parser) HTMLChain() Chain {
	return Chain{p.HTMLColumns()}
}
