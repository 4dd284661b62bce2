package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/troopkit/rostersync/internal/types"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()

	s, err := Open(ctx, Config{Driver: DriverSQLite, DSN: filepath.Join(t.TempDir(), "test.db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	require.NoError(t, s.InitSchema(ctx))
	return s
}

func createUnit(t *testing.T, s *Store, name string) *types.Unit {
	t.Helper()
	u := &types.Unit{Name: name, UnitType: "Troop", Number: "123"}
	require.NoError(t, s.CreateUnit(context.Background(), u))
	return u
}

func createSession(t *testing.T, s *Store, unitID string) *types.SyncSession {
	t.Helper()
	sess := &types.SyncSession{UnitID: unitID}
	require.NoError(t, s.CreateSession(context.Background(), sess))
	return sess
}

func TestInitSchemaIdempotent(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.InitSchema(context.Background()))
}

func TestOpenUnsupportedDriver(t *testing.T) {
	_, err := Open(context.Background(), Config{Driver: "mysql", DSN: "x"})
	assert.ErrorContains(t, err, "unsupported database driver")
}

func TestUnits(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	u := createUnit(t, s, "Troop 123")

	got, err := s.GetUnit(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "Troop 123", got.Name)
	assert.WithinDuration(t, u.CreatedAt, got.CreatedAt, time.Millisecond)

	_, err = s.GetUnit(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	units, err := s.ListUnits(ctx)
	require.NoError(t, err)
	assert.Len(t, units, 1)
}

func TestEnsurePatrolUpsert(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	u := createUnit(t, s, "Troop 1")
	other := createUnit(t, s, "Troop 2")

	id1, err := s.EnsurePatrol(ctx, u.ID, "Flaring Phoenix")
	require.NoError(t, err)
	id2, err := s.EnsurePatrol(ctx, u.ID, " Flaring Phoenix ")
	require.NoError(t, err)
	assert.Equal(t, id1, id2)

	id3, err := s.EnsurePatrol(ctx, other.ID, "Flaring Phoenix")
	require.NoError(t, err)
	assert.NotEqual(t, id1, id3)

	patrols, err := s.ListPatrols(ctx, u.ID)
	require.NoError(t, err)
	assert.Len(t, patrols, 1)

	_, err = s.EnsurePatrol(ctx, u.ID, "  ")
	assert.Error(t, err)
}

func TestScouts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	u := createUnit(t, s, "Troop 1")
	patrolID, err := s.EnsurePatrol(ctx, u.ID, "Hawks")
	require.NoError(t, err)

	sc := &types.Scout{
		UnitID: u.ID, PatrolID: patrolID, FirstName: "George", LastName: "Anderson",
		BSAMemberID: "133456904", Rank: "Life Scout", IsActive: true,
	}
	require.NoError(t, s.InsertScout(ctx, sc))
	require.NoError(t, s.InsertScout(ctx, &types.Scout{UnitID: u.ID, FirstName: "Mia", LastName: "Park"}))

	require.NoError(t, s.InsertScout(ctx, &types.Scout{UnitID: u.ID, FirstName: "Lee", LastName: "Park"}))
	assert.Error(t, s.InsertScout(ctx, &types.Scout{UnitID: u.ID, FirstName: "G", LastName: "A", BSAMemberID: "133456904"}),
		"member id is unique within a unit")
	other := createUnit(t, s, "Troop 2")
	require.NoError(t, s.InsertScout(ctx, &types.Scout{UnitID: other.ID, FirstName: "G", LastName: "A", BSAMemberID: "133456904"}))

	scouts, err := s.ListScouts(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, scouts, 3)
	assert.Equal(t, "Anderson", scouts[0].LastName)
	assert.Equal(t, "Hawks", scouts[0].PatrolName)
	assert.True(t, scouts[0].IsActive)
	assert.Empty(t, scouts[1].PatrolID)
	assert.False(t, scouts[1].IsActive)

	sc.Rank = "Star Scout"
	sc.PatrolID = ""
	require.NoError(t, s.UpdateScout(ctx, sc))
	got, err := s.GetScout(ctx, u.ID, sc.ID)
	require.NoError(t, err)
	assert.Equal(t, "Star Scout", got.Rank)
	assert.Empty(t, got.PatrolName)

	other = createUnit(t, s, "Troop 2")
	_, err = s.GetScout(ctx, other.ID, sc.ID)
	assert.ErrorIs(t, err, ErrNotFound, "scouts are unit scoped")
	err = s.UpdateScout(ctx, &types.Scout{ID: "missing", UnitID: u.ID})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestProfilesAndMemberships(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	u1 := createUnit(t, s, "Troop 1")
	u2 := createUnit(t, s, "Troop 2")

	p := &types.Profile{FirstName: "Pat", LastName: "Jones", FullName: "Pat Jones", BSAMemberID: "987654321"}
	require.NoError(t, s.InsertProfile(ctx, p))

	created, err := s.EnsureMembership(ctx, types.Membership{UnitID: u1.ID, ProfileID: p.ID, Role: types.RoleLeader})
	require.NoError(t, err)
	assert.True(t, created)
	created, err = s.EnsureMembership(ctx, types.Membership{UnitID: u1.ID, ProfileID: p.ID, Role: types.RoleAdult})
	require.NoError(t, err)
	assert.False(t, created)

	inUnit, err := s.ListUnitProfiles(ctx, u1.ID)
	require.NoError(t, err)
	assert.Len(t, inUnit, 1)
	inOther, err := s.ListUnitProfiles(ctx, u2.ID)
	require.NoError(t, err)
	assert.Empty(t, inOther)

	found, err := s.FindProfileByBSAID(ctx, "987654321")
	require.NoError(t, err)
	assert.Equal(t, p.ID, found.ID)
	_, err = s.FindProfileByBSAID(ctx, "000000000")
	assert.ErrorIs(t, err, ErrNotFound)

	p.Position = "Scoutmaster"
	require.NoError(t, s.UpdateProfile(ctx, p))
	got, err := s.GetProfile(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Scoutmaster", got.Position)

	ms, err := s.ListMemberships(ctx, u1.ID)
	require.NoError(t, err)
	require.Len(t, ms, 1)
	assert.Equal(t, types.RoleLeader, ms[0].Role)
}

func TestSessions(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	u := createUnit(t, s, "Troop 1")

	old := &types.SyncSession{UnitID: u.ID, StartedAt: time.Now().Add(-48 * time.Hour)}
	require.NoError(t, s.CreateSession(ctx, old))
	sess := createSession(t, s, u.ID)
	assert.Equal(t, types.SessionRunning, sess.Status)

	require.NoError(t, s.AddSessionError(ctx, sess.ID, types.SessionError{Phase: "roster", Page: 2, Message: "first"}))
	require.NoError(t, s.AddSessionError(ctx, sess.ID, types.SessionError{Phase: "profiles", Member: "133456904", Message: "second"}))

	done := time.Now()
	sess.Status = types.SessionCompleted
	sess.PagesVisited = 3
	sess.RecordsExtracted = 57
	sess.FinishedAt = &done
	require.NoError(t, s.UpdateSession(ctx, sess))

	got, err := s.GetSession(ctx, u.ID, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, types.SessionCompleted, got.Status)
	assert.Equal(t, 57, got.RecordsExtracted)
	require.NotNil(t, got.FinishedAt)
	require.Len(t, got.Errors, 2)
	assert.Equal(t, "first", got.Errors[0].Message)
	assert.Equal(t, "133456904", got.Errors[1].Member)

	all, err := s.ListSessions(ctx, u.ID, time.Time{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, sess.ID, all[0].ID, "newest first")

	recent, err := s.ListSessions(ctx, u.ID, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, sess.ID, recent[0].ID)
}

func stagedRows(sessionID, unitID string) []types.StagedMember {
	return []types.StagedMember{
		{
			SessionID: sessionID, UnitID: unitID,
			Member:     types.Member{Name: "George Anderson", BSAMemberID: "133456904", Type: types.MemberYouth},
			ChangeType: types.ChangeUpdate, ExistingScoutID: "scout-1", IsSelected: true,
			Changes: map[string]types.FieldChange{"rank": {Old: "Star Scout", New: "Life Scout"}},
		},
		{
			SessionID: sessionID, UnitID: unitID,
			Member:     types.Member{Name: "Mia Park", BSAMemberID: "244567015", Type: types.MemberYouth},
			ChangeType: types.ChangeSkip, SkipReason: types.SkipNoChanges,
		},
		{
			SessionID: sessionID, UnitID: unitID,
			Member:     types.Member{Name: "Pat Jones", BSAMemberID: "987654321", Type: types.MemberLeader},
			ChangeType: types.ChangeCreate, MatchType: types.MatchNone, IsAdult: true, IsSelected: true,
		},
	}
}

func TestStagedLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	u := createUnit(t, s, "Troop 1")
	sess := createSession(t, s, u.ID)

	rows := stagedRows(sess.ID, u.ID)
	require.NoError(t, s.InsertStaged(ctx, rows))

	list, err := s.ListStaged(ctx, StagedFilter{SessionID: sess.ID, UnitID: u.ID})
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "George Anderson", list[0].Name)
	assert.Equal(t, types.FieldChange{Old: "Star Scout", New: "Life Scout"}, list[0].Changes["rank"])
	assert.Nil(t, list[1].Changes)
	assert.True(t, list[2].IsAdult)
	assert.Equal(t, 1, list[0].Version)

	other := createUnit(t, s, "Troop 2")
	scoped, err := s.ListStaged(ctx, StagedFilter{SessionID: sess.ID, UnitID: other.ID})
	require.NoError(t, err)
	assert.Empty(t, scoped)

	v, err := s.SetSelected(ctx, sess.ID, list[0].ID, false, list[0].Version)
	require.NoError(t, err)
	assert.Equal(t, 2, v)

	_, err = s.SetSelected(ctx, sess.ID, list[0].ID, true, 1)
	assert.ErrorIs(t, err, ErrVersionConflict)
	_, err = s.SetSelected(ctx, sess.ID, "missing", true, 1)
	assert.ErrorIs(t, err, ErrNotFound)

	selected, err := s.ListStaged(ctx, StagedFilter{SessionID: sess.ID, UnitID: u.ID, SelectedOnly: true})
	require.NoError(t, err)
	require.Len(t, selected, 1)
	assert.Equal(t, "Pat Jones", selected[0].Name)

	n, err := s.SetAllSelected(ctx, sess.ID, true, "")
	require.NoError(t, err)
	assert.EqualValues(t, 1, n, "skip rows stay unselected")
	count, err := s.CountStaged(ctx, sess.ID, false)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	require.NoError(t, s.DeleteStagedRow(ctx, sess.ID, list[2].ID))
	assert.ErrorIs(t, s.DeleteStagedRow(ctx, sess.ID, list[2].ID), ErrNotFound)

	deleted, err := s.DeleteStaged(ctx, sess.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, deleted)
}

func TestStagedUniquePerSession(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	u := createUnit(t, s, "Troop 1")
	sess := createSession(t, s, u.ID)

	rows := stagedRows(sess.ID, u.ID)
	rows[1].BSAMemberID = rows[0].BSAMemberID
	assert.Error(t, s.InsertStaged(ctx, rows))
}

func TestWithTxRollsBack(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	u := createUnit(t, s, "Troop 1")

	err := s.WithTx(ctx, func(r *Repository) error {
		require.NoError(t, r.InsertScout(ctx, &types.Scout{UnitID: u.ID, FirstName: "A", LastName: "B"}))
		return assert.AnError
	})
	assert.ErrorIs(t, err, assert.AnError)

	scouts, err := s.ListScouts(ctx, u.ID)
	require.NoError(t, err)
	assert.Empty(t, scouts)
}
