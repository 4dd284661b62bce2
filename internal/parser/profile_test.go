package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/troopkit/rostersync/internal/types"
)

const profileSnapshot = `- heading "George Anderson" [level=1] [ref=e1]
- text: "BSA Member ID: 133456904"
- text: "Status: Active"
- text: "Unit: Troop 123"
- text: "Patrol: Flaring Phoenix"
- text: "Date Joined: 3/14/2019"
- text: "Scouts BSA Last Rank Approved: Life Scout"
- text: "Cub Scout Last Rank: Arrow of Light"
- heading "Relationships" [level=2]
- text: "Jane Anderson - 123456789"
- text: "George is Son of"
- heading "Leadership" [level=2]
- text: "Senior Patrol Leader 120 days Troop 123"
- text: "Past Youth Positions"
- text: "Patrol Leader 180 days Troop 123"
- heading "Advancement" [level=2]
- text: "Life Scout AWARDED 6/1/2025"
- text: "Star Scout AWARDED 1/10/2024"
- text: "Eagle Scout 40%"
- text: "Merit Badges Pending: 2"
- text: "Merit Badges Approved: 17"
- text: "Camping Nights: 34"
- text: "Hiking Miles: 52.5"
- text: "Service Hours: 21"`

func TestParseProfile(t *testing.T) {
	prof, ok := New(nil).ParseProfile(profileSnapshot)
	require.True(t, ok)

	assert.Equal(t, "George Anderson", prof.Name)
	assert.Equal(t, "133456904", prof.BSAMemberID)
	assert.Equal(t, "Active", prof.Status)
	assert.Equal(t, "Troop 123", prof.Unit)
	assert.Equal(t, "Flaring Phoenix", prof.Patrol)
	assert.Equal(t, "3/14/2019", prof.DateJoined)
	assert.Equal(t, "Life Scout", prof.ScoutsBSALastRank)
	assert.Equal(t, "Arrow of Light", prof.CubScoutLastRank)

	assert.Equal(t, []types.Relationship{
		{Name: "Jane Anderson", BSAMemberID: "123456789", Relation: "Son"},
	}, prof.Relationships)

	assert.Equal(t, []types.LeadershipPosition{
		{Name: "Senior Patrol Leader", Days: 120, UnitType: "Troop", UnitNumber: "123", Current: true},
		{Name: "Patrol Leader", Days: 180, UnitType: "Troop", UnitNumber: "123", Current: false},
	}, prof.Positions)

	byRank := make(map[string]types.RankProgress)
	for _, rp := range prof.RankProgress {
		byRank[rp.Rank] = rp
	}
	assert.Equal(t, types.RankProgress{Rank: "Life Scout", Status: types.RankAwarded, CompletionDate: "6/1/2025", Percent: 100}, byRank["Life Scout"])
	assert.Equal(t, types.RankAwarded, byRank["Star Scout"].Status)
	assert.Equal(t, types.RankProgress{Rank: "Eagle Scout", Status: types.RankInProgress, Percent: 40}, byRank["Eagle Scout"])
	_, scout := byRank["Scout"]
	assert.False(t, scout)

	assert.Equal(t, 2, prof.MeritBadgesPending)
	assert.Equal(t, 17, prof.MeritBadgesApproved)
	assert.Equal(t, types.ActivityTotals{CampingNights: 34, HikingMiles: 52.5, ServiceHours: 21}, prof.Activity)
}

func TestParseProfileRejectsOtherPages(t *testing.T) {
	_, ok := New(nil).ParseProfile(`- link "Roster" [ref=e1]
- row "George Anderson 133456904 YOUTH 15" [ref=e2]`)
	assert.False(t, ok)
}

func TestPlainText(t *testing.T) {
	got := PlainText(`- heading "Title" [level=1] [ref=e1]
  - text: "Status: Active"
  - link "Roster" [ref=e2]

  - text: Plain words`)
	assert.Equal(t, "Title\nStatus: Active\nRoster\nPlain words", got)
}
