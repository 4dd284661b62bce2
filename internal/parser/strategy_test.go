package parser

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/troopkit/rostersync/internal/browser"
	"github.com/troopkit/rostersync/internal/types"
)

type stubStrategy struct {
	name    string
	members []types.Member
	err     error
	calls   int
}

func (s *stubStrategy) Name() string { return s.name }

func (s *stubStrategy) Parse(Input) ([]types.Member, error) {
	s.calls++
	return s.members, s.err
}

func TestChainFallsThrough(t *testing.T) {
	first := &stubStrategy{name: "first", err: ErrNoConfidentResult}
	second := &stubStrategy{name: "second", members: []types.Member{{BSAMemberID: "123456789"}}}
	third := &stubStrategy{name: "third"}

	members, used, err := Chain{first, second, third}.Parse(Input{})
	require.NoError(t, err)
	assert.Equal(t, "second", used)
	assert.Len(t, members, 1)
	assert.Equal(t, 0, third.calls)
}

func TestChainStopsOnHardError(t *testing.T) {
	boom := errors.New("boom")
	first := &stubStrategy{name: "first", err: boom}
	second := &stubStrategy{name: "second"}

	_, used, err := Chain{first, second}.Parse(Input{})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, "first", used)
	assert.Equal(t, 0, second.calls)
}

func TestChainExhausted(t *testing.T) {
	_, _, err := New(nil).RosterChain().Parse(Input{Snapshot: &browser.Snapshot{}})
	assert.ErrorIs(t, err, ErrNoConfidentResult)
}

func TestRosterChainUsesRefsWhenRowsEmpty(t *testing.T) {
	snap := refSnapshot("Mia Park", "244567015", "YOUTH", "12", "Tenderfoot")
	snap.Text = `- table
  - cell "Mia Park" [ref=e1]`

	members, used, err := New(nil).RosterChain().Parse(Input{Snapshot: snap})
	require.NoError(t, err)
	assert.Equal(t, "ref-positions", used)
	require.Len(t, members, 1)
	assert.Equal(t, "Mia Park", members[0].Name)
	assert.Equal(t, "Tenderfoot", members[0].LastRankApproved)
}

func TestHTMLChainPropagatesSizeError(t *testing.T) {
	big := make([]byte, MaxHTMLSize+1)
	_, _, err := New(nil).HTMLChain().Parse(Input{HTML: big})
	assert.ErrorIs(t, err, ErrHTMLTooLarge)
}
