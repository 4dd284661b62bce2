package parser

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/troopkit/rostersync/internal/types"
)

// MaxHTMLSize is the largest roster HTML document accepted.
const MaxHTMLSize = 5 << 20

var pageBreakRe = regexp.MustCompile(`<!--\s*PAGE BREAK\s*-->`)

type column int

const (
	colName column = iota
	colFirstName
	colLastName
	colID
	colType
	colAge
	colRank
	colPatrol
	colPosition
	colPosition2
	colRenewal
	colExpiration
)

// headerKeywords maps header text to a column. Entries are checked in order
// and the first keyword contained in the header wins.
var headerKeywords = []struct {
	keyword string
	col     column
}{
	{"first name", colFirstName},
	{"last name", colLastName},
	{"patrol", colPatrol},
	{"member id", colID},
	{"bsa", colID},
	{"type", colType},
	{"age", colAge},
	{"rank", colRank},
	{"position 2", colPosition2},
	{"position", colPosition},
	{"renewal", colRenewal},
	{"status", colRenewal},
	{"expir", colExpiration},
	{"name", colName},
}

// SplitPages splits a multi-page export on PAGE BREAK comments.
func SplitPages(html string) []string {
	var pages []string
	for _, part := range pageBreakRe.Split(html, -1) {
		if strings.TrimSpace(part) != "" {
			pages = append(pages, part)
		}
	}
	return pages
}

// IsValidRosterHTML reports whether data is within the size limit and has
// at least one table cell carrying a member ID. Cells are matched one at a
// time since a row's text runs its cells together.
func IsValidRosterHTML(data []byte) bool {
	if len(data) == 0 || len(data) > MaxHTMLSize {
		return false
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return false
	}
	found := false
	doc.Find("table th, table td").EachWithBreak(func(_ int, c *goquery.Selection) bool {
		found = memberIDRe.MatchString(collapse(c.Text()))
		return !found
	})
	return found
}

// ParseRosterHTML extracts members from every table in data. Columns are
// located from header text; when headers are missing or unrecognized they
// are inferred from the shape of the first data row; when no ID column can
// be placed at all, each row's text goes through ParseRow. Members are
// deduplicated by ID across all tables, first occurrence winning.
func (p *Parser) ParseRosterHTML(data []byte) ([]types.Member, error) {
	if len(data) > MaxHTMLSize {
		return nil, fmt.Errorf("%w: %d bytes (limit %d)", ErrHTMLTooLarge, len(data), MaxHTMLSize)
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parse roster html: %w", err)
	}

	var members []types.Member
	seen := make(map[string]bool)
	doc.Find("table").Each(func(_ int, table *goquery.Selection) {
		for _, m := range p.parseTable(table) {
			if seen[m.BSAMemberID] {
				continue
			}
			seen[m.BSAMemberID] = true
			members = append(members, m)
		}
	})
	return members, nil
}

func (p *Parser) parseTable(table *goquery.Selection) []types.Member {
	var header []string
	var rows [][]string
	table.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		var cells []string
		tr.Find("th, td").Each(func(_ int, c *goquery.Selection) {
			cells = append(cells, collapse(c.Text()))
		})
		if len(cells) == 0 {
			return
		}
		if header == nil && rows == nil && tr.Find("th").Length() > 0 {
			header = cells
			return
		}
		rows = append(rows, cells)
	})
	if len(rows) == 0 {
		return nil
	}

	cols := headerColumns(header)
	if _, ok := cols[colID]; !ok {
		if len(header) == 0 && !hasMemberID(rows[0]) {
			// Header written with td cells.
			cols = headerColumns(rows[0])
			if _, ok := cols[colID]; ok {
				rows = rows[1:]
			}
		}
	}
	if _, ok := cols[colID]; !ok {
		cols = p.inferColumns(rows)
	}

	var members []types.Member
	for _, cells := range rows {
		var m types.Member
		var ok bool
		if _, haveID := cols[colID]; haveID {
			m, ok = p.memberFromCells(cells, cols)
		} else {
			m, ok = p.ParseRow(strings.Join(cells, " "))
		}
		if ok {
			members = append(members, m)
		}
	}
	return members
}

func hasMemberID(cells []string) bool {
	for _, c := range cells {
		if exactIDRe.MatchString(c) {
			return true
		}
	}
	return false
}

func headerColumns(header []string) map[column]int {
	cols := make(map[column]int)
	for i, h := range header {
		h = strings.ToLower(h)
		for _, kw := range headerKeywords {
			if !strings.Contains(h, kw.keyword) {
				continue
			}
			if _, taken := cols[kw.col]; !taken {
				cols[kw.col] = i
			} else if kw.col == colPosition {
				if _, taken2 := cols[colPosition2]; !taken2 {
					cols[colPosition2] = i
				}
			}
			break
		}
	}
	if _, ok := cols[colName]; !ok {
		if _, ok := cols[colLastName]; !ok {
			// Only an ID column is useful without a name; leave the rest to inference.
			if _, ok := cols[colID]; ok {
				cols[colName] = cols[colID] - 1
			}
		}
	}
	return cols
}

// inferColumns assigns columns from the first row that carries a member ID,
// by value shape. The name sits in the one or two columns before the ID and
// the patrol in the column right after the rank.
func (p *Parser) inferColumns(rows [][]string) map[column]int {
	cols := make(map[column]int)
	var sample []string
	for _, r := range rows {
		if hasMemberID(r) {
			sample = r
			break
		}
	}
	if sample == nil {
		return cols
	}

	assign := func(c column, i int) {
		if _, ok := cols[c]; !ok {
			cols[c] = i
		}
	}
	for i, v := range sample {
		switch {
		case exactIDRe.MatchString(v):
			assign(colID, i)
		case types.MemberType(strings.ToUpper(v)).Valid() || p18Re.MatchString(v):
			assign(colType, i)
		case exactAgeRe.MatchString(v):
			assign(colAge, i)
		case exactDateRe.MatchString(v):
			assign(colExpiration, i)
		default:
			if _, ok := exactPhrase(p.renewals, v); ok {
				assign(colRenewal, i)
			} else if _, ok := exactPhrase(p.ranks, v); ok {
				assign(colRank, i)
			} else if _, ok := exactPhrase(p.positions, v); ok {
				if _, taken := cols[colPosition]; taken {
					assign(colPosition2, i)
				} else {
					assign(colPosition, i)
				}
			}
		}
	}

	id, ok := cols[colID]
	if !ok {
		return cols
	}
	if id >= 2 && isNameCell(sample[id-2]) && isNameCell(sample[id-1]) {
		cols[colFirstName] = id - 2
		cols[colLastName] = id - 1
	} else if id >= 1 {
		cols[colName] = id - 1
	}
	if rank, ok := cols[colRank]; ok {
		if !columnTaken(cols, rank+1) {
			cols[colPatrol] = rank + 1
		}
	}
	return cols
}

var nameCellRe = regexp.MustCompile(`^[\p{L}][\p{L} .,'-]*$`)

func isNameCell(s string) bool {
	return nameCellRe.MatchString(s) && !types.MemberType(strings.ToUpper(s)).Valid()
}

func columnTaken(cols map[column]int, i int) bool {
	for _, v := range cols {
		if v == i {
			return true
		}
	}
	return false
}

func (p *Parser) memberFromCells(cells []string, cols map[column]int) (types.Member, bool) {
	get := func(c column) string {
		i, ok := cols[c]
		if !ok || i < 0 || i >= len(cells) {
			return ""
		}
		return cells[i]
	}

	id := get(colID)
	if loc := memberIDRe.FindStringIndex(id); loc != nil {
		id = id[loc[0]:loc[1]]
	} else {
		return types.Member{}, false
	}

	m := types.Member{
		BSAMemberID: id,
		Type:        memberType(get(colType)),
		Age:         get(colAge),
		Patrol:      get(colPatrol),
	}

	if first, last := get(colFirstName), get(colLastName); first != "" || last != "" {
		m.Name = types.JoinName(first, last)
	} else {
		m.Name = get(colName)
	}
	if !exactAgeRe.MatchString(m.Age) {
		m.Age = ""
	}
	if rank, ok := exactPhrase(p.ranks, get(colRank)); ok {
		m.LastRankApproved = rank
	} else if ph, _, ok := firstPhrase(p.ranks, get(colRank)); ok {
		m.LastRankApproved = ph.Text
	}
	if ph, _, ok := firstPhrase(p.renewals, get(colRenewal)); ok {
		m.RenewalStatus = ph.Text
	}
	if d := dateRe.FindString(get(colExpiration)); d != "" {
		m.ExpirationDate = d
	}

	positions, _ := p.takePositions(get(colPosition), 2)
	if _, ok := cols[colPosition2]; ok {
		more, _ := p.takePositions(get(colPosition2), 1)
		positions = append(positions[:min(len(positions), 1)], more...)
	}
	if len(positions) > 0 {
		m.Position = positions[0]
	}
	if len(positions) > 1 {
		m.Position2 = positions[1]
	}
	if m.Position == "" {
		m.Position = get(colPosition)
	}
	return m, true
}
