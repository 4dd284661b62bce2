package parser

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/troopkit/rostersync/internal/types"
)

var (
	annotationRe = regexp.MustCompile(`\s*\[[^\]]*\]`)
	quotedLineRe = regexp.MustCompile(`^[a-z][\w-]*\s+"(.*)"(?::\s*(.*))?$`)
	labelLineRe  = regexp.MustCompile(`^[a-z][\w-]*:\s*(.*)$`)
	headingRe    = regexp.MustCompile(`heading "([^"]+)"`)

	profileIDRe      = regexp.MustCompile(`(?i)\b(?:BSA\s+)?Member\s*ID\s*:?\s*(\d{7,})`)
	profileMarkerRe  = regexp.MustCompile(`(?i)\bdate\s+joined\b|\bleadership\b|\badvancement\b|\brelationships\b`)
	relationshipRe   = regexp.MustCompile(`(?ms)^\s*([\p{L}][\p{L}.' -]*?)\s+-\s+(\d{7,})\b.{0,80}?\bis\s+(?:the\s+)?(Son|Daughter|Child)\s+of\b`)
	pastPositionsRe  = regexp.MustCompile(`(?i)\bPast\s+Youth\s+Positions\b`)
	badgesPendingRe  = regexp.MustCompile(`(?i)\bMerit\s+Badges?\s+Pending\s*:?\s*(\d+)`)
	badgesApprovedRe = regexp.MustCompile(`(?i)\bMerit\s+Badges?\s+Approved\s*:?\s*(\d+)`)
	campingRe        = regexp.MustCompile(`(?i)\bCamping\s+Nights?\s*:?\s*(\d+)`)
	hikingRe         = regexp.MustCompile(`(?i)\bHiking\s+Miles?\s*:?\s*(\d+(?:\.\d+)?)`)
	serviceRe        = regexp.MustCompile(`(?i)\bService\s+Hours?\s*:?\s*(\d+(?:\.\d+)?)`)
)

type rankPatterns struct {
	rank     string
	awarded  *regexp.Regexp
	approved *regexp.Regexp
	percent  *regexp.Regexp
}

func phrasePattern(s string) string {
	return strings.ReplaceAll(regexp.QuoteMeta(s), " ", `\s+`)
}

func positionHistoryRe(position string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)\b` + phrasePattern(position) + `\s+(\d+)\s+days?\s+(\p{L}+)\s+(\d+)\b`)
}

func compileRankPatterns(rank string) rankPatterns {
	r := `(?im)^\s*` + phrasePattern(rank)
	return rankPatterns{
		rank:     rank,
		awarded:  regexp.MustCompile(r + `\s+AWARDED\s+(\d{1,2}/\d{1,2}/\d{4})`),
		approved: regexp.MustCompile(r + `\s+APPROVED\s+(\d{1,2}/\d{1,2}/\d{4})`),
		percent:  regexp.MustCompile(r + `\s+(\d{1,3})\s*%`),
	}
}

func labelRe(label string) *regexp.Regexp {
	return regexp.MustCompile(`(?im)^[ \t]*` + label + `\b[ \t]*(?::[ \t]*|\n\s*)([^\n]+)$`)
}

var (
	statusLabelRe  = labelRe(`Status`)
	unitLabelRe    = labelRe(`Unit`)
	patrolLabelRe  = labelRe(`Patrol`)
	joinedLabelRe  = labelRe(`Date\s+Joined`)
	scoutsRankRe   = labelRe(`Scouts\s+BSA\s+Last\s+Rank(?:\s+Approved)?`)
	cubRankLabelRe = labelRe(`Cub\s+Scouts?\s+Last\s+Rank(?:\s+Approved)?`)
)

// PlainText flattens a snapshot text rendering into one line per element,
// dropping roles, quotes and [ref=...] style annotations.
func PlainText(snapshot string) string {
	var lines []string
	for _, line := range strings.Split(snapshot, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimSpace(strings.TrimPrefix(line, "-"))
		line = annotationRe.ReplaceAllString(line, "")
		if m := quotedLineRe.FindStringSubmatch(line); m != nil {
			line = strings.TrimSpace(m[1] + " " + m[2])
		} else if m := labelLineRe.FindStringSubmatch(line); m != nil {
			line = strings.Trim(m[1], `"`)
		}
		if line = collapse(line); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}

// IsProfilePage reports whether snapshot text looks like a scout profile.
func IsProfilePage(snapshot string) bool {
	text := PlainText(snapshot)
	return profileIDRe.MatchString(text) && profileMarkerRe.MatchString(text)
}

// ParseProfile extracts a scout profile from snapshot text. It returns
// false when the page is not a profile page.
func (p *Parser) ParseProfile(snapshot string) (*types.ScoutProfile, bool) {
	if !IsProfilePage(snapshot) {
		return nil, false
	}
	text := PlainText(snapshot)

	prof := &types.ScoutProfile{
		Status:     labelValue(statusLabelRe, text),
		Unit:       labelValue(unitLabelRe, text),
		Patrol:     labelValue(patrolLabelRe, text),
		DateJoined: labelValue(joinedLabelRe, text),
	}
	if m := headingRe.FindStringSubmatch(snapshot); m != nil {
		prof.Name = collapse(m[1])
	}
	if m := profileIDRe.FindStringSubmatch(text); m != nil {
		prof.BSAMemberID = m[1]
	}
	prof.ScoutsBSALastRank = p.canonicalRank(labelValue(scoutsRankRe, text))
	prof.CubScoutLastRank = p.canonicalRank(labelValue(cubRankLabelRe, text))

	prof.Relationships = parseRelationships(text)
	prof.Positions = p.parsePositionHistory(text)
	prof.RankProgress = p.parseRankProgress(text)

	prof.MeritBadgesPending = atoi(firstGroup(badgesPendingRe, text))
	prof.MeritBadgesApproved = atoi(firstGroup(badgesApprovedRe, text))
	prof.Activity = types.ActivityTotals{
		CampingNights: atoi(firstGroup(campingRe, text)),
		HikingMiles:   atof(firstGroup(hikingRe, text)),
		ServiceHours:  atof(firstGroup(serviceRe, text)),
	}
	return prof, true
}

func (p *Parser) canonicalRank(s string) string {
	if s == "" {
		return ""
	}
	if ph, _, ok := firstPhrase(p.allRanks, s); ok {
		return ph.Text
	}
	return s
}

func parseRelationships(text string) []types.Relationship {
	var out []types.Relationship
	for _, m := range relationshipRe.FindAllStringSubmatch(text, -1) {
		out = append(out, types.Relationship{
			Name:        collapse(m[1]),
			BSAMemberID: m[2],
			Relation:    m[3],
		})
	}
	return out
}

// parsePositionHistory finds "<Position> N days <UnitType> <Number>" for
// every known position. Longer titles claim their text first, and a match
// overlapping a claimed span is dropped. Matches before the "Past Youth
// Positions" marker are current.
func (p *Parser) parsePositionHistory(text string) []types.LeadershipPosition {
	past := len(text)
	if loc := pastPositionsRe.FindStringIndex(text); loc != nil {
		past = loc[0]
	}

	type found struct {
		pos    types.LeadershipPosition
		offset int
	}
	var claimed [][2]int
	var hits []found
	overlaps := func(a, b int) bool {
		for _, c := range claimed {
			if a < c[1] && c[0] < b {
				return true
			}
		}
		return false
	}

	for i, re := range p.positionHistory {
		for _, m := range re.FindAllStringSubmatchIndex(text, -1) {
			if overlaps(m[0], m[1]) {
				continue
			}
			claimed = append(claimed, [2]int{m[0], m[1]})
			hits = append(hits, found{
				pos: types.LeadershipPosition{
					Name:       p.positions[i].Text,
					Days:       atoi(text[m[2]:m[3]]),
					UnitType:   text[m[4]:m[5]],
					UnitNumber: text[m[6]:m[7]],
					Current:    m[0] < past,
				},
				offset: m[0],
			})
		}
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].offset < hits[j].offset })
	out := make([]types.LeadershipPosition, 0, len(hits))
	for _, h := range hits {
		out = append(out, h.pos)
	}
	return out
}

// parseRankProgress tests every known rank against three line-anchored
// forms in order: awarded with date, approved with date, percent complete.
func (p *Parser) parseRankProgress(text string) []types.RankProgress {
	var out []types.RankProgress
	for _, rp := range p.rankProgress {
		switch {
		case rp.awarded.MatchString(text):
			out = append(out, types.RankProgress{
				Rank: rp.rank, Status: types.RankAwarded, Percent: 100,
				CompletionDate: rp.awarded.FindStringSubmatch(text)[1],
			})
		case rp.approved.MatchString(text):
			out = append(out, types.RankProgress{
				Rank: rp.rank, Status: types.RankApproved, Percent: 100,
				CompletionDate: rp.approved.FindStringSubmatch(text)[1],
			})
		case rp.percent.MatchString(text):
			pct := atoi(rp.percent.FindStringSubmatch(text)[1])
			out = append(out, types.RankProgress{
				Rank: rp.rank, Status: types.RankInProgress, Percent: min(pct, 100),
			})
		}
	}
	return out
}

func labelValue(re *regexp.Regexp, text string) string {
	return collapse(firstGroup(re, text))
}

func firstGroup(re *regexp.Regexp, text string) string {
	m := re.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return m[1]
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

func atof(s string) float64 {
	f, _ := strconv.ParseFloat(s, 64)
	return f
}
