package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/troopkit/rostersync/internal/types"
)

var stagedColumns = []string{
	"id", "session_id", "unit_id", "seq", "name", "bsa_member_id", "member_type", "age",
	"last_rank_approved", "patrol", "position", "position2", "renewal_status", "expiration_date",
	"change_type", "existing_scout_id", "existing_profile_id", "matched_profile_id", "match_type",
	"changes", "skip_reason", "is_selected", "is_adult", "version", "created_at",
}

// StagedFilter scopes staged row reads to one session of one unit.
type StagedFilter struct {
	SessionID    string
	UnitID       string
	SelectedOnly bool
}

// InsertStaged writes rows in one statement, keeping their order. IDs,
// versions and creation times are assigned in place.
func (r *Repository) InsertStaged(ctx context.Context, rows []types.StagedMember) error {
	if len(rows) == 0 {
		return nil
	}
	now := r.now()

	ib := r.flavor.NewInsertBuilder().InsertInto("staged_members")
	ib.Cols(stagedColumns...)
	for i := range rows {
		s := &rows[i]
		if s.ID == "" {
			s.ID = newID()
		}
		s.Version = 1
		s.CreatedAt = now

		changes, err := encodeChanges(s.Changes)
		if err != nil {
			return fmt.Errorf("failed to encode changes for %s: %w", s.BSAMemberID, err)
		}
		ib.Values(s.ID, s.SessionID, s.UnitID, i, s.Name, s.BSAMemberID, string(s.Type), s.Age,
			s.LastRankApproved, s.Patrol, s.Position, s.Position2, s.RenewalStatus, s.ExpirationDate,
			string(s.ChangeType), s.ExistingScoutID, s.ExistingProfileID, s.MatchedProfileID, string(s.MatchType),
			changes, s.SkipReason, boolInt(s.IsSelected), boolInt(s.IsAdult), s.Version, formatTime(s.CreatedAt))
	}

	query, args := ib.Build()
	if _, err := r.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to insert staged members: %w", err)
	}
	return nil
}

// ListStaged returns the session's staged rows in staging order.
func (r *Repository) ListStaged(ctx context.Context, f StagedFilter) ([]types.StagedMember, error) {
	sb := r.flavor.NewSelectBuilder().Select(stagedColumns...).From("staged_members")
	sb.Where(sb.Equal("session_id", f.SessionID), sb.Equal("unit_id", f.UnitID))
	if f.SelectedOnly {
		sb.Where(sb.Equal("is_selected", 1))
	}
	sb.OrderBy("seq")

	query, args := sb.Build()
	rows, err := r.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list staged members: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []types.StagedMember
	for rows.Next() {
		s, err := scanStaged(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

// GetStaged returns one staged row of the session.
func (r *Repository) GetStaged(ctx context.Context, sessionID, id string) (*types.StagedMember, error) {
	sb := r.flavor.NewSelectBuilder().Select(stagedColumns...).From("staged_members")
	sb.Where(sb.Equal("session_id", sessionID), sb.Equal("id", id))

	query, args := sb.Build()
	s, err := scanStaged(r.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("staged member %s: %w", id, ErrNotFound)
	}
	return s, err
}

// SetSelected toggles one row's selection if its version still equals
// version, and returns the new version. A stale version yields
// ErrVersionConflict.
func (r *Repository) SetSelected(ctx context.Context, sessionID, id string, selected bool, version int) (int, error) {
	ub := r.flavor.NewUpdateBuilder().Update("staged_members")
	ub.Set(ub.Assign("is_selected", boolInt(selected)), ub.Incr("version"))
	ub.Where(ub.Equal("session_id", sessionID), ub.Equal("id", id), ub.Equal("version", version))

	query, args := ub.Build()
	err := rowsAffected(r.ExecContext(ctx, query, args...))
	if errors.Is(err, ErrNotFound) {
		if _, getErr := r.GetStaged(ctx, sessionID, id); getErr != nil {
			return 0, getErr
		}
		return 0, fmt.Errorf("staged member %s at version %d: %w", id, version, ErrVersionConflict)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to update selection: %w", err)
	}
	return version + 1, nil
}

// SetAllSelected selects or clears every row of the session, or only the
// rows of one change type when changeType is set. Rows staged as skip are
// never selected. It returns the number of rows changed.
func (r *Repository) SetAllSelected(ctx context.Context, sessionID string, selected bool, changeType types.ChangeType) (int64, error) {
	ub := r.flavor.NewUpdateBuilder().Update("staged_members")
	ub.Set(ub.Assign("is_selected", boolInt(selected)), ub.Incr("version"))
	ub.Where(ub.Equal("session_id", sessionID), ub.NotEqual("is_selected", boolInt(selected)))
	if changeType != "" {
		ub.Where(ub.Equal("change_type", string(changeType)))
	}
	if selected {
		ub.Where(ub.NotEqual("change_type", string(types.ChangeSkip)))
	}

	query, args := ub.Build()
	res, err := r.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to update selection: %w", err)
	}
	return res.RowsAffected()
}

// CountStaged counts the session's rows with the given selection state.
func (r *Repository) CountStaged(ctx context.Context, sessionID string, selected bool) (int, error) {
	sb := r.flavor.NewSelectBuilder().Select("COUNT(1)").From("staged_members")
	sb.Where(sb.Equal("session_id", sessionID), sb.Equal("is_selected", boolInt(selected)))

	query, args := sb.Build()
	var n int
	if err := r.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count staged members: %w", err)
	}
	return n, nil
}

// DeleteStaged removes every staged row of the session.
func (r *Repository) DeleteStaged(ctx context.Context, sessionID string) (int64, error) {
	db := r.flavor.NewDeleteBuilder().DeleteFrom("staged_members")
	db.Where(db.Equal("session_id", sessionID))

	query, args := db.Build()
	res, err := r.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to delete staged members: %w", err)
	}
	return res.RowsAffected()
}

// DeleteStagedRow removes one staged row. It returns ErrNotFound when the
// row is already gone.
func (r *Repository) DeleteStagedRow(ctx context.Context, sessionID, id string) error {
	db := r.flavor.NewDeleteBuilder().DeleteFrom("staged_members")
	db.Where(db.Equal("session_id", sessionID), db.Equal("id", id))

	query, args := db.Build()
	if err := rowsAffected(r.ExecContext(ctx, query, args...)); err != nil {
		return fmt.Errorf("failed to delete staged member %s: %w", id, err)
	}
	return nil
}

func encodeChanges(c map[string]types.FieldChange) (sql.NullString, error) {
	if len(c) == 0 {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(c)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

func scanStaged(row scanner) (*types.StagedMember, error) {
	var (
		s                         types.StagedMember
		seq                       int
		memberType, change, match string
		changes                   sql.NullString
		selected, adult           int
		created                   string
	)
	err := row.Scan(&s.ID, &s.SessionID, &s.UnitID, &seq, &s.Name, &s.BSAMemberID, &memberType, &s.Age,
		&s.LastRankApproved, &s.Patrol, &s.Position, &s.Position2, &s.RenewalStatus, &s.ExpirationDate,
		&change, &s.ExistingScoutID, &s.ExistingProfileID, &s.MatchedProfileID, &match,
		&changes, &s.SkipReason, &selected, &adult, &s.Version, &created)
	if err != nil {
		return nil, err
	}
	s.Type = types.MemberType(memberType)
	s.ChangeType = types.ChangeType(change)
	s.MatchType = types.MatchType(match)
	s.IsSelected, s.IsAdult = selected != 0, adult != 0
	s.CreatedAt = parseTime(created)
	if changes.Valid && changes.String != "" {
		if err := json.Unmarshal([]byte(changes.String), &s.Changes); err != nil {
			return nil, fmt.Errorf("failed to decode changes for %s: %w", s.BSAMemberID, err)
		}
	}
	return &s, nil
}
