package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/huandu/go-sqlbuilder"

	"github.com/troopkit/rostersync/internal/types"
)

var profileColumns = []string{
	"id", "first_name", "last_name", "full_name", "bsa_member_id", "member_type",
	"position", "position2", "renewal_status", "expiration_date", "created_at", "updated_at",
}

func prefixed(prefix string, cols []string) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = prefix + "." + c
	}
	return out
}

// ListUnitProfiles returns the adult profiles that are members of the unit.
func (r *Repository) ListUnitProfiles(ctx context.Context, unitID string) ([]types.Profile, error) {
	sb := r.flavor.NewSelectBuilder().Select(prefixed("p", profileColumns)...).From("profiles p")
	sb.Join("unit_memberships m", "m.profile_id = p.id")
	sb.Where(sb.Equal("m.unit_id", unitID)).OrderBy("p.last_name", "p.first_name")

	query, args := sb.Build()
	rows, err := r.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list unit profiles: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var profiles []types.Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, *p)
	}
	return profiles, rows.Err()
}

// FindProfileByBSAID searches every profile, in any unit or none, for the
// member ID. It returns ErrNotFound when there is no match.
func (r *Repository) FindProfileByBSAID(ctx context.Context, bsaMemberID string) (*types.Profile, error) {
	sb := r.flavor.NewSelectBuilder().Select(profileColumns...).From("profiles")
	sb.Where(sb.Equal("bsa_member_id", bsaMemberID)).OrderBy("created_at").Limit(1)

	query, args := sb.Build()
	p, err := scanProfile(r.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("profile with member id %s: %w", bsaMemberID, ErrNotFound)
	}
	return p, err
}

// GetProfile returns a profile by ID.
func (r *Repository) GetProfile(ctx context.Context, id string) (*types.Profile, error) {
	sb := r.flavor.NewSelectBuilder().Select(profileColumns...).From("profiles")
	sb.Where(sb.Equal("id", id))

	query, args := sb.Build()
	p, err := scanProfile(r.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("profile %s: %w", id, ErrNotFound)
	}
	return p, err
}

// InsertProfile inserts p, assigning an ID and timestamps when unset.
func (r *Repository) InsertProfile(ctx context.Context, p *types.Profile) error {
	now := r.now()
	if p.ID == "" {
		p.ID = newID()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now

	ib := r.flavor.NewInsertBuilder().InsertInto("profiles")
	ib.Cols(profileColumns...).
		Values(p.ID, p.FirstName, p.LastName, p.FullName, p.BSAMemberID, p.MemberType,
			p.Position, p.Position2, p.RenewalStatus, p.ExpirationDate,
			formatTime(p.CreatedAt), formatTime(p.UpdatedAt))

	query, args := ib.Build()
	if _, err := r.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to insert profile: %w", err)
	}
	return nil
}

// UpdateProfile rewrites the roster-sourced fields of a profile.
func (r *Repository) UpdateProfile(ctx context.Context, p *types.Profile) error {
	p.UpdatedAt = r.now()

	ub := r.flavor.NewUpdateBuilder().Update("profiles")
	ub.Set(
		ub.Assign("first_name", p.FirstName),
		ub.Assign("last_name", p.LastName),
		ub.Assign("full_name", p.FullName),
		ub.Assign("bsa_member_id", p.BSAMemberID),
		ub.Assign("member_type", p.MemberType),
		ub.Assign("position", p.Position),
		ub.Assign("position2", p.Position2),
		ub.Assign("renewal_status", p.RenewalStatus),
		ub.Assign("expiration_date", p.ExpirationDate),
		ub.Assign("updated_at", formatTime(p.UpdatedAt)),
	)
	ub.Where(ub.Equal("id", p.ID))

	query, args := ub.Build()
	if err := rowsAffected(r.ExecContext(ctx, query, args...)); err != nil {
		return fmt.Errorf("failed to update profile %s: %w", p.ID, err)
	}
	return nil
}

// EnsureMembership adds the profile to the unit unless it is already a
// member. It reports whether a membership row was created.
func (r *Repository) EnsureMembership(ctx context.Context, m types.Membership) (bool, error) {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = r.now()
	}
	query, args := sqlbuilder.Buildf(`INSERT INTO unit_memberships (unit_id, profile_id, role, created_at)
		VALUES (%s, %s, %s, %s)
		ON CONFLICT (unit_id, profile_id) DO NOTHING`,
		m.UnitID, m.ProfileID, m.Role, formatTime(m.CreatedAt)).
		BuildWithFlavor(r.flavor)

	res, err := r.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("failed to ensure membership: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ListMemberships returns the unit's memberships.
func (r *Repository) ListMemberships(ctx context.Context, unitID string) ([]types.Membership, error) {
	sb := r.flavor.NewSelectBuilder().Select("unit_id", "profile_id", "role", "created_at").From("unit_memberships")
	sb.Where(sb.Equal("unit_id", unitID))

	query, args := sb.Build()
	rows, err := r.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list memberships: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []types.Membership
	for rows.Next() {
		var (
			m       types.Membership
			created string
		)
		if err := rows.Scan(&m.UnitID, &m.ProfileID, &m.Role, &created); err != nil {
			return nil, err
		}
		m.CreatedAt = parseTime(created)
		out = append(out, m)
	}
	return out, rows.Err()
}

func scanProfile(row scanner) (*types.Profile, error) {
	var (
		p                types.Profile
		created, updated string
	)
	err := row.Scan(&p.ID, &p.FirstName, &p.LastName, &p.FullName, &p.BSAMemberID, &p.MemberType,
		&p.Position, &p.Position2, &p.RenewalStatus, &p.ExpirationDate, &created, &updated)
	if err != nil {
		return nil, err
	}
	p.CreatedAt, p.UpdatedAt = parseTime(created), parseTime(updated)
	return &p, nil
}
