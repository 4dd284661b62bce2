package staging

import (
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/troopkit/rostersync/internal/types"
)

// Compared field names, as they appear in a staged row's changes map.
const (
	FieldFirstName      = "first_name"
	FieldLastName       = "last_name"
	FieldName           = "name"
	FieldRank           = "rank"
	FieldPatrol         = "patrol"
	FieldPosition       = "position"
	FieldPosition2      = "position2"
	FieldMemberType     = "member_type"
	FieldRenewalStatus  = "renewal_status"
	FieldExpirationDate = "expiration_date"
)

// NoPatrol is the roster's placeholder for scouts without a patrol.
const NoPatrol = "unassigned"

// PatrolName returns the roster patrol name, or "" for none.
func PatrolName(raw string) string {
	name := strings.Join(strings.Fields(raw), " ")
	if strings.EqualFold(name, NoPatrol) {
		return ""
	}
	return name
}

type differ map[string]types.FieldChange

func (d differ) compare(field, old, new string) {
	if clean(old) != clean(new) {
		d[field] = types.FieldChange{Old: old, New: new}
	}
}

func clean(s string) string {
	return norm.NFC.String(strings.Join(strings.Fields(s), " "))
}

// ScoutChanges diffs a roster member against a live scout. The patrol is
// compared by resolved patrol ID, not by name: a named patrol that does
// not exist yet always counts as a change. patrols maps folded patrol
// names to IDs.
func ScoutChanges(s types.Scout, m types.Member, patrols map[string]string) map[string]types.FieldChange {
	first, last := types.SplitName(m.Name)
	d := differ{}
	d.compare(FieldFirstName, s.FirstName, first)
	d.compare(FieldLastName, s.LastName, last)
	d.compare(FieldRank, s.Rank, m.LastRankApproved)
	d.compare(FieldPosition, s.Position, m.Position)
	d.compare(FieldPosition2, s.Position2, m.Position2)
	d.compare(FieldRenewalStatus, s.RenewalStatus, m.RenewalStatus)
	d.compare(FieldExpirationDate, s.ExpirationDate, m.ExpirationDate)

	name := PatrolName(m.Patrol)
	var patrolID string
	if name != "" {
		var ok bool
		if patrolID, ok = patrols[foldName(name)]; !ok {
			patrolID = "new:" + name
		}
	}
	if patrolID != s.PatrolID {
		d[FieldPatrol] = types.FieldChange{Old: s.PatrolName, New: name}
	}

	if len(d) == 0 {
		return nil
	}
	return d
}

// ProfileChanges diffs an adult roster member against a live profile.
func ProfileChanges(p types.Profile, m types.Member) map[string]types.FieldChange {
	full := p.FullName
	if full == "" {
		full = types.JoinName(p.FirstName, p.LastName)
	}
	d := differ{}
	d.compare(FieldName, full, m.FullName())
	d.compare(FieldPosition, p.Position, m.Position)
	d.compare(FieldPosition2, p.Position2, m.Position2)
	d.compare(FieldMemberType, p.MemberType, string(m.Type))
	d.compare(FieldRenewalStatus, p.RenewalStatus, m.RenewalStatus)
	d.compare(FieldExpirationDate, p.ExpirationDate, m.ExpirationDate)
	if len(d) == 0 {
		return nil
	}
	return d
}
