package types

import (
	"strings"
)

// MemberType is the membership type column of the external roster.
type MemberType string

const (
	MemberYouth  MemberType = "YOUTH"
	MemberLeader MemberType = "LEADER"
	// MemberP18 is a scout who aged past 18 but keeps youth rank standing.
	MemberP18 MemberType = "P 18+"
)

// Valid reports whether t is one of the known roster member types.
func (t MemberType) Valid() bool {
	switch t {
	case MemberYouth, MemberLeader, MemberP18:
		return true
	}
	return false
}

// Renewal statuses as printed by the roster.
const (
	RenewalCurrent         = "Current"
	RenewalCurrentOver18   = "Current (Over 18)"
	RenewalEligibleToRenew = "Eligible to Renew"
	RenewalExpired         = "Expired"
	RenewalDropped         = "Dropped"
)

// Member is one roster row as extracted from the external system.
// Optional columns are empty strings when the parser could not place them.
type Member struct {
	Name             string     `json:"name" yaml:"name"`
	BSAMemberID      string     `json:"bsaMemberId" yaml:"bsa_member_id"`
	Type             MemberType `json:"type" yaml:"type"`
	Age              string     `json:"age,omitempty" yaml:"age,omitempty"`
	LastRankApproved string     `json:"lastRankApproved,omitempty" yaml:"last_rank_approved,omitempty"`
	Patrol           string     `json:"patrol,omitempty" yaml:"patrol,omitempty"`
	Position         string     `json:"position,omitempty" yaml:"position,omitempty"`
	Position2        string     `json:"position2,omitempty" yaml:"position2,omitempty"`
	RenewalStatus    string     `json:"renewalStatus,omitempty" yaml:"renewal_status,omitempty"`
	ExpirationDate   string     `json:"expirationDate,omitempty" yaml:"expiration_date,omitempty"`
}

// IsYouth reports whether the member is on the youth roster proper.
func (m Member) IsYouth() bool {
	return m.Type == MemberYouth || m.Type == ""
}

// FirstName returns the given-name half of Name.
func (m Member) FirstName() string {
	first, _ := SplitName(m.Name)
	return first
}

// LastName returns the family-name half of Name.
func (m Member) LastName() string {
	_, last := SplitName(m.Name)
	return last
}

// FullName returns the name in "First Last" order.
func (m Member) FullName() string {
	first, last := SplitName(m.Name)
	return JoinName(first, last)
}

var nameSuffixes = map[string]bool{
	"jr": true, "jr.": true, "sr": true, "sr.": true,
	"ii": true, "iii": true, "iv": true,
}

// SplitName splits a roster name written either "Last, First" or
// "First Middle Last" into given and family names. Generational suffixes
// stay attached to the family name.
func SplitName(name string) (first, last string) {
	name = strings.Join(strings.Fields(name), " ")
	if name == "" {
		return "", ""
	}

	if i := strings.Index(name, ","); i >= 0 {
		last = strings.TrimSpace(name[:i])
		first = strings.TrimSpace(name[i+1:])
		return first, last
	}

	parts := strings.Fields(name)
	if len(parts) == 1 {
		return parts[0], ""
	}

	cut := len(parts) - 1
	if nameSuffixes[strings.ToLower(parts[cut])] && cut > 1 {
		cut--
	}
	return strings.Join(parts[:cut], " "), strings.Join(parts[cut:], " ")
}

// JoinName renders given and family names as "First Last".
func JoinName(first, last string) string {
	return strings.TrimSpace(strings.TrimSpace(first) + " " + strings.TrimSpace(last))
}
