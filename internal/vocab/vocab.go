// Package vocab holds the keyword tables the roster and profile parsers match
// against: ranks, positions, patrol keywords, renewal statuses and the
// navigation labels that mark a logged-in session.
//
// Tables are injected into the parsers rather than hard-coded so they can be
// replaced from a TOML file when the external site changes its wording.
package vocab

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
)

// Vocabulary is the full set of keyword tables.
//
// Ranks, CubRanks, Positions and RenewalStatuses are precedence-ordered:
// the first entry that matches wins, so longer phrases must come before any
// phrase they contain. Normalize enforces that ordering.
type Vocabulary struct {
	Ranks            []string `toml:"ranks"`
	CubRanks         []string `toml:"cub_ranks"`
	Positions        []string `toml:"positions"`
	PatrolKeywords   []string `toml:"patrol_keywords"`
	RenewalStatuses  []string `toml:"renewal_statuses"`
	PostLoginMarkers []string `toml:"post_login_markers"`
	LoginFieldNames  []string `toml:"login_field_names"`
	LoginButtonNames []string `toml:"login_button_names"`
}

// Default returns the built-in tables.
func Default() *Vocabulary {
	v := &Vocabulary{
		Ranks: []string{
			"Eagle Scout", "Life Scout", "Star Scout", "First Class",
			"Second Class", "Tenderfoot", "Scout",
		},
		CubRanks: []string{
			"Arrow of Light", "Webelos", "Bear", "Wolf", "Tiger", "Lion", "Bobcat",
		},
		Positions: []string{
			"Assistant Senior Patrol Leader",
			"Senior Patrol Leader",
			"Assistant Patrol Leader",
			"Patrol Leader",
			"Junior Assistant Scoutmaster",
			"Assistant Scoutmaster",
			"Scoutmaster",
			"Chartered Organization Representative",
			"Committee Chair",
			"Committee Member",
			"Unit Advancement Chair",
			"Order of the Arrow Troop Representative",
			"Outdoor Ethics Guide",
			"Quartermaster",
			"Troop Guide",
			"Den Chief",
			"Chaplain Aide",
			"Historian",
			"Librarian",
			"Instructor",
			"Webmaster",
			"Treasurer",
			"Bugler",
			"Scribe",
		},
		PatrolKeywords: []string{
			"Eagle", "Eagles", "Hawk", "Hawks", "Falcon", "Falcons", "Owl", "Owls",
			"Phoenix", "Raven", "Ravens", "Wolf", "Wolves", "Bear", "Bears",
			"Fox", "Foxes", "Cobra", "Cobras", "Panther", "Panthers", "Lion", "Lions",
			"Tiger", "Tigers", "Dragon", "Dragons", "Buffalo", "Bison", "Mustang", "Mustangs",
			"Shark", "Sharks", "Rattlesnake", "Rattlesnakes", "Scorpion", "Scorpions",
			"Thunder", "Lightning", "Flaming", "Flaring", "Arrow", "Pine", "Oak", "Cedar",
		},
		RenewalStatuses: []string{
			"Current (Over 18)", "Eligible to Renew", "Expired", "Dropped", "Current",
		},
		PostLoginMarkers: []string{
			"Roster", "My Dashboard", "Sign Out", "Log Out", "Logout",
		},
		LoginFieldNames:  []string{"Username", "User Name", "Email", "Password"},
		LoginButtonNames: []string{"Login", "Log In", "Sign In"},
	}
	v.Normalize()
	return v
}

// Load reads a TOML vocabulary file. Tables missing from the file keep their
// built-in values.
func Load(path string) (*Vocabulary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read vocabulary file %s: %w", path, err)
	}
	return Parse(string(data))
}

// Parse decodes TOML vocabulary text over the defaults.
func Parse(data string) (*Vocabulary, error) {
	var file Vocabulary
	if _, err := toml.Decode(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse vocabulary: %w", err)
	}

	v := Default()
	override := func(dst *[]string, src []string) {
		if len(src) > 0 {
			*dst = src
		}
	}
	override(&v.Ranks, file.Ranks)
	override(&v.CubRanks, file.CubRanks)
	override(&v.Positions, file.Positions)
	override(&v.PatrolKeywords, file.PatrolKeywords)
	override(&v.RenewalStatuses, file.RenewalStatuses)
	override(&v.PostLoginMarkers, file.PostLoginMarkers)
	override(&v.LoginFieldNames, file.LoginFieldNames)
	override(&v.LoginButtonNames, file.LoginButtonNames)

	v.Normalize()
	if err := v.Validate(); err != nil {
		return nil, err
	}
	return v, nil
}

// Normalize trims entries, drops blanks and duplicates, and reorders every
// precedence table so no entry precedes a longer entry containing it.
func (v *Vocabulary) Normalize() {
	v.Ranks = byContainment(clean(v.Ranks))
	v.CubRanks = byContainment(clean(v.CubRanks))
	v.Positions = byContainment(clean(v.Positions))
	v.RenewalStatuses = byContainment(clean(v.RenewalStatuses))
	v.PatrolKeywords = clean(v.PatrolKeywords)
	v.PostLoginMarkers = clean(v.PostLoginMarkers)
	v.LoginFieldNames = clean(v.LoginFieldNames)
	v.LoginButtonNames = clean(v.LoginButtonNames)
}

// Validate checks that the tables the parsers cannot work without are present.
func (v *Vocabulary) Validate() error {
	if len(v.Ranks) == 0 {
		return fmt.Errorf("vocabulary: ranks table is empty")
	}
	if len(v.Positions) == 0 {
		return fmt.Errorf("vocabulary: positions table is empty")
	}
	if len(v.RenewalStatuses) == 0 {
		return fmt.Errorf("vocabulary: renewal_statuses table is empty")
	}
	return nil
}

// AllRanks returns Scouts BSA ranks followed by Cub Scout ranks.
func (v *Vocabulary) AllRanks() []string {
	all := make([]string, 0, len(v.Ranks)+len(v.CubRanks))
	all = append(all, v.Ranks...)
	return append(all, v.CubRanks...)
}

func clean(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.Join(strings.Fields(s), " ")
		key := strings.ToLower(s)
		if s == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, s)
	}
	return out
}

// byContainment keeps the given order except that any phrase containing a
// shorter phrase is moved ahead of it. Sorting by length descending is the
// simplest order with that property; ties keep their original order.
func byContainment(in []string) []string {
	out := append([]string(nil), in...)
	sort.SliceStable(out, func(i, j int) bool {
		return len(out[i]) > len(out[j])
	})
	return out
}
