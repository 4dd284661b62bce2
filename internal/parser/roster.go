package parser

import (
	"regexp"
	"strings"

	"github.com/troopkit/rostersync/internal/browser"
	"github.com/troopkit/rostersync/internal/types"
)

var (
	rowRe       = regexp.MustCompile(`\brow "([^"]*)"`)
	rowIDRe     = regexp.MustCompile(`\b\d{9}\b`)
	memberIDRe  = regexp.MustCompile(`\b\d{7,}\b`)
	exactIDRe   = regexp.MustCompile(`^\d{7,}$`)
	headerRowRe = regexp.MustCompile(`(?i)\bmember\s*id\b|^\s*name\b`)
	dateRe      = regexp.MustCompile(`\b\d{1,2}/\d{1,2}/\d{4}\b`)
	exactDateRe = regexp.MustCompile(`^\d{1,2}/\d{1,2}/\d{4}$`)
	ageRe       = regexp.MustCompile(`\b\d{1,2}\b`)
	exactAgeRe  = regexp.MustCompile(`^\d{1,2}$`)
	explicitRe  = regexp.MustCompile(`(?i)\b[\p{L}'-]+(?:\s+[\p{L}'-]+)*\s+Patrol\b`)

	p18Re    = regexp.MustCompile(`(?i)\bP\s*18\+`)
	leaderRe = regexp.MustCompile(`\bLEADER\b`)
	youthRe  = regexp.MustCompile(`\bYOUTH\b`)
)

// ParseRosterText extracts members from the "row" entries of a snapshot's
// text rendering. Rows without a 9-digit member ID, and the header row, are
// ignored. When the same ID appears more than once the first row wins.
func (p *Parser) ParseRosterText(text string) []types.Member {
	var members []types.Member
	seen := make(map[string]bool)

	for _, m := range rowRe.FindAllStringSubmatch(text, -1) {
		row := m[1]
		if !rowIDRe.MatchString(row) || headerRowRe.MatchString(row) {
			continue
		}
		member, ok := p.ParseRow(row)
		if !ok || seen[member.BSAMemberID] {
			continue
		}
		seen[member.BSAMemberID] = true
		members = append(members, member)
	}
	return members
}

// ParseRow parses one flattened roster row. The text before the member ID
// is the name; the text after it is consumed token class by token class:
// member type, expiration date, renewal status, age, rank, up to two
// positions, and finally whatever remains as the patrol.
func (p *Parser) ParseRow(row string) (types.Member, bool) {
	loc := memberIDRe.FindStringIndex(row)
	if loc == nil {
		return types.Member{}, false
	}

	m := types.Member{
		Name:        collapse(strings.Trim(row[:loc[0]], " \t,|-")),
		BSAMemberID: row[loc[0]:loc[1]],
		Type:        types.MemberYouth,
	}
	rest := row[loc[1]:]

	for _, t := range []struct {
		re  *regexp.Regexp
		typ types.MemberType
	}{
		{p18Re, types.MemberP18},
		{leaderRe, types.MemberLeader},
		{youthRe, types.MemberYouth},
	} {
		if l := t.re.FindStringIndex(rest); l != nil {
			m.Type = t.typ
			rest = blank(rest, l)
			break
		}
	}

	if all := dateRe.FindAllStringIndex(rest, -1); len(all) > 0 {
		l := all[len(all)-1]
		m.ExpirationDate = rest[l[0]:l[1]]
		rest = blank(rest, l)
	}

	if ph, l, ok := firstPhrase(p.renewals, rest); ok {
		m.RenewalStatus = ph.Text
		rest = blank(rest, l)
	}

	if l := ageRe.FindStringIndex(rest); l != nil {
		m.Age = rest[l[0]:l[1]]
		rest = blank(rest, l)
	}

	if ph, l, ok := firstPhrase(p.ranks, rest); ok {
		m.LastRankApproved = ph.Text
		rest = blank(rest, l)
	}

	var positions []string
	positions, rest = p.takePositions(rest, 2)
	if len(positions) > 0 {
		m.Position = positions[0]
	}
	if len(positions) > 1 {
		m.Position2 = positions[1]
	}

	m.Patrol = p.patrolFrom(rest)
	return m, true
}

// takePositions removes every known position title from s and returns up
// to max of them in order of appearance. Longer titles are consumed first
// so "Senior Patrol Leader" never also yields "Patrol Leader".
func (p *Parser) takePositions(s string, max int) ([]string, string) {
	type hit struct {
		text   string
		offset int
	}
	var hits []hit
	for _, pos := range p.positions {
		first := -1
		for {
			l := pos.find(s)
			if l == nil {
				break
			}
			if first < 0 {
				first = l[0]
			}
			s = blank(s, l)
		}
		if first >= 0 {
			hits = append(hits, hit{pos.Text, first})
		}
	}

	for i := 1; i < len(hits); i++ {
		for j := i; j > 0 && hits[j].offset < hits[j-1].offset; j-- {
			hits[j], hits[j-1] = hits[j-1], hits[j]
		}
	}

	var out []string
	for _, h := range hits {
		if len(out) == max {
			break
		}
		out = append(out, h.text)
	}
	return out, s
}

// patrolFrom returns the leftover text when it looks like a patrol name:
// it contains a patrol keyword or reads "<Name> Patrol".
func (p *Parser) patrolFrom(rest string) string {
	candidate := collapse(strings.Trim(rest, " \t,|-"))
	if candidate == "" {
		return ""
	}
	if _, _, ok := firstPhrase(p.patrols, candidate); ok {
		return candidate
	}
	if explicitRe.MatchString(candidate) {
		return candidate
	}
	return ""
}

// ParseRosterRefs walks snapshot refs by fixed offset from each cell whose
// name is a member ID: name at -1, then type, age, rank, patrol, position,
// renewal status and expiration date at +1 through +7. It depends entirely
// on the page keeping that cell order.
func (p *Parser) ParseRosterRefs(snap *browser.Snapshot) []types.Member {
	if snap == nil {
		return nil
	}
	byNum := make(map[int]browser.Ref, len(snap.Refs))
	for id, r := range snap.Refs {
		if n := browser.RefNumber(id); n >= 0 {
			byNum[n] = r
		}
	}
	cell := func(n int) string {
		return collapse(byNum[n].Name)
	}

	var members []types.Member
	seen := make(map[string]bool)
	for _, r := range snap.Ordered() {
		id := collapse(r.Name)
		if !exactIDRe.MatchString(id) || seen[id] {
			continue
		}
		n := browser.RefNumber(r.ID)
		if n < 0 {
			continue
		}
		seen[id] = true

		m := types.Member{
			Name:        cell(n - 1),
			BSAMemberID: id,
			Type:        memberType(cell(n + 1)),
		}
		if age := cell(n + 2); exactAgeRe.MatchString(age) {
			m.Age = age
		}
		if rank, ok := exactPhrase(p.ranks, cell(n+3)); ok {
			m.LastRankApproved = rank
		}
		m.Patrol = cell(n + 4)
		if pos, ok := exactPhrase(p.positions, cell(n+5)); ok {
			m.Position = pos
		}
		if st, ok := exactPhrase(p.renewals, cell(n+6)); ok {
			m.RenewalStatus = st
		}
		if d := cell(n + 7); exactDateRe.MatchString(d) {
			m.ExpirationDate = d
		}
		members = append(members, m)
	}
	return members
}

func memberType(s string) types.MemberType {
	switch {
	case p18Re.MatchString(s):
		return types.MemberP18
	case strings.EqualFold(strings.TrimSpace(s), string(types.MemberLeader)):
		return types.MemberLeader
	}
	return types.MemberYouth
}
