package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/huandu/go-sqlbuilder"

	"github.com/troopkit/rostersync/internal/types"
)

var scoutSelectColumns = []string{
	"s.id", "s.unit_id", "s.patrol_id", "p.name", "s.first_name", "s.last_name",
	"s.bsa_member_id", "s.rank", "s.position", "s.position2", "s.renewal_status",
	"s.expiration_date", "s.is_active", "s.created_at", "s.updated_at",
}

func (r *Repository) scoutSelect() *sqlbuilder.SelectBuilder {
	sb := r.flavor.NewSelectBuilder().Select(scoutSelectColumns...).From("scouts s")
	sb.JoinWithOption(sqlbuilder.LeftJoin, "patrols p", "p.id = s.patrol_id")
	return sb
}

// ListScouts returns the unit's scouts with their patrol names.
func (r *Repository) ListScouts(ctx context.Context, unitID string) ([]types.Scout, error) {
	sb := r.scoutSelect()
	sb.Where(sb.Equal("s.unit_id", unitID)).OrderBy("s.last_name", "s.first_name")

	query, args := sb.Build()
	rows, err := r.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list scouts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var scouts []types.Scout
	for rows.Next() {
		s, err := scanScout(rows)
		if err != nil {
			return nil, err
		}
		scouts = append(scouts, *s)
	}
	return scouts, rows.Err()
}

// GetScout returns one scout of the unit.
func (r *Repository) GetScout(ctx context.Context, unitID, id string) (*types.Scout, error) {
	sb := r.scoutSelect()
	sb.Where(sb.Equal("s.unit_id", unitID), sb.Equal("s.id", id))

	query, args := sb.Build()
	s, err := scanScout(r.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("scout %s: %w", id, ErrNotFound)
	}
	return s, err
}

// InsertScout inserts s, assigning an ID and timestamps when unset.
func (r *Repository) InsertScout(ctx context.Context, s *types.Scout) error {
	now := r.now()
	if s.ID == "" {
		s.ID = newID()
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	s.UpdatedAt = now

	ib := r.flavor.NewInsertBuilder().InsertInto("scouts")
	ib.Cols("id", "unit_id", "patrol_id", "first_name", "last_name", "bsa_member_id", "rank",
		"position", "position2", "renewal_status", "expiration_date", "is_active", "created_at", "updated_at").
		Values(s.ID, s.UnitID, nullString(s.PatrolID), s.FirstName, s.LastName, s.BSAMemberID, s.Rank,
			s.Position, s.Position2, s.RenewalStatus, s.ExpirationDate, boolInt(s.IsActive),
			formatTime(s.CreatedAt), formatTime(s.UpdatedAt))

	query, args := ib.Build()
	if _, err := r.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to insert scout %s: %w", s.BSAMemberID, err)
	}
	return nil
}

// UpdateScout rewrites the roster-sourced fields of an existing scout.
func (r *Repository) UpdateScout(ctx context.Context, s *types.Scout) error {
	s.UpdatedAt = r.now()

	ub := r.flavor.NewUpdateBuilder().Update("scouts")
	ub.Set(
		ub.Assign("patrol_id", nullString(s.PatrolID)),
		ub.Assign("first_name", s.FirstName),
		ub.Assign("last_name", s.LastName),
		ub.Assign("bsa_member_id", s.BSAMemberID),
		ub.Assign("rank", s.Rank),
		ub.Assign("position", s.Position),
		ub.Assign("position2", s.Position2),
		ub.Assign("renewal_status", s.RenewalStatus),
		ub.Assign("expiration_date", s.ExpirationDate),
		ub.Assign("is_active", boolInt(s.IsActive)),
		ub.Assign("updated_at", formatTime(s.UpdatedAt)),
	)
	ub.Where(ub.Equal("unit_id", s.UnitID), ub.Equal("id", s.ID))

	query, args := ub.Build()
	if err := rowsAffected(r.ExecContext(ctx, query, args...)); err != nil {
		return fmt.Errorf("failed to update scout %s: %w", s.ID, err)
	}
	return nil
}

func scanScout(row scanner) (*types.Scout, error) {
	var (
		s                types.Scout
		patrolID, patrol sql.NullString
		active           int
		created, updated string
	)
	err := row.Scan(&s.ID, &s.UnitID, &patrolID, &patrol, &s.FirstName, &s.LastName,
		&s.BSAMemberID, &s.Rank, &s.Position, &s.Position2, &s.RenewalStatus,
		&s.ExpirationDate, &active, &created, &updated)
	if err != nil {
		return nil, err
	}
	s.PatrolID, s.PatrolName = patrolID.String, patrol.String
	s.IsActive = active != 0
	s.CreatedAt, s.UpdatedAt = parseTime(created), parseTime(updated)
	return &s, nil
}
