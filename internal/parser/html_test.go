package parser

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/troopkit/rostersync/internal/types"
)

const headerTable = `<html><body>
<table>
  <tr><th>Name</th><th>BSA Member ID</th><th>Member Type</th><th>Age</th><th>Last Rank Approved</th><th>Patrol Name</th><th>Position</th><th>Renewal Status</th><th>Expiration Date</th></tr>
  <tr><td>George Anderson</td><td>133456904</td><td>YOUTH</td><td>15</td><td>Life Scout</td><td>Flaring Phoenix</td><td>Senior Patrol Leader</td><td>Current</td><td>8/31/2026</td></tr>
  <tr><td>Pat Jones</td><td>987654321</td><td>LEADER</td><td></td><td></td><td></td><td>Scoutmaster</td><td>Expired</td><td>1/31/2024</td></tr>
  <tr><td>George Anderson</td><td>133456904</td><td>YOUTH</td><td>16</td><td>Star Scout</td><td></td><td></td><td></td><td></td></tr>
</table>
</body></html>`

func TestParseRosterHTMLHeaders(t *testing.T) {
	members, err := New(nil).ParseRosterHTML([]byte(headerTable))
	require.NoError(t, err)
	require.Len(t, members, 2)

	assert.Equal(t, types.Member{
		Name:             "George Anderson",
		BSAMemberID:      "133456904",
		Type:             types.MemberYouth,
		Age:              "15",
		LastRankApproved: "Life Scout",
		Patrol:           "Flaring Phoenix",
		Position:         "Senior Patrol Leader",
		RenewalStatus:    "Current",
		ExpirationDate:   "8/31/2026",
	}, members[0])
	assert.Equal(t, types.MemberLeader, members[1].Type)
	assert.Equal(t, "Expired", members[1].RenewalStatus)
}

func TestParseRosterHTMLInferredColumns(t *testing.T) {
	html := `<table>
  <tr><td>George</td><td>Anderson</td><td>133456904</td><td>YOUTH</td><td>15</td><td>Life Scout</td><td>Flaring Phoenix</td><td>Current</td></tr>
  <tr><td>Mia</td><td>Park</td><td>244567015</td><td>YOUTH</td><td>12</td><td>Tenderfoot</td><td>Hawks</td><td>Eligible to Renew</td></tr>
</table>`

	members, err := New(nil).ParseRosterHTML([]byte(html))
	require.NoError(t, err)
	require.Len(t, members, 2)

	assert.Equal(t, "George Anderson", members[0].Name)
	assert.Equal(t, "Life Scout", members[0].LastRankApproved)
	assert.Equal(t, "Flaring Phoenix", members[0].Patrol)
	assert.Equal(t, "Hawks", members[1].Patrol)
	assert.Equal(t, "Eligible to Renew", members[1].RenewalStatus)
}

func TestParseRosterHTMLRowTextFallback(t *testing.T) {
	html := `<table><tr><td>George Anderson 133456904 YOUTH 15 Life Scout</td></tr></table>`

	members, err := New(nil).ParseRosterHTML([]byte(html))
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, "George Anderson", members[0].Name)
	assert.Equal(t, "Life Scout", members[0].LastRankApproved)
}

func TestParseRosterHTMLTooLarge(t *testing.T) {
	big := []byte("<table>" + strings.Repeat("x", MaxHTMLSize) + "</table>")

	_, err := New(nil).ParseRosterHTML(big)
	assert.ErrorIs(t, err, ErrHTMLTooLarge)
	assert.False(t, IsValidRosterHTML(big))
}

func TestIsValidRosterHTML(t *testing.T) {
	assert.True(t, IsValidRosterHTML([]byte(headerTable)))
	assert.False(t, IsValidRosterHTML([]byte(`<table><tr><td>no ids here</td></tr></table>`)))
	assert.False(t, IsValidRosterHTML(nil))
}

func TestIsValidRosterHTMLAdjacentCells(t *testing.T) {
	html := `<table>
<tr><th>Name</th><th>Member ID</th><th>Type</th></tr>
<tr><td>George Anderson</td><td>133456904</td><td>YOUTH</td></tr>
</table>`
	assert.True(t, IsValidRosterHTML([]byte(html)))

	members, err := New(nil).ParseRosterHTML([]byte(html))
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, "133456904", members[0].BSAMemberID)
}

func TestSplitPages(t *testing.T) {
	pages := SplitPages("<table>1</table><!-- PAGE BREAK --><table>2</table>\n<!--PAGE BREAK-->\n")
	assert.Equal(t, []string{"<table>1</table>", "<table>2</table>\n"}, pages)
}
