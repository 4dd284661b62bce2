package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/huandu/go-sqlbuilder"

	"github.com/troopkit/rostersync/internal/types"
)

// EnsurePatrol returns the ID of the unit's patrol with the given name,
// creating it if needed. The insert is an upsert on (unit_id, name), so
// concurrent callers converge on one row.
func (r *Repository) EnsurePatrol(ctx context.Context, unitID, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("patrol name is empty")
	}

	query, args := sqlbuilder.Buildf(`INSERT INTO patrols (id, unit_id, name, created_at)
		VALUES (%s, %s, %s, %s)
		ON CONFLICT (unit_id, name) DO NOTHING`,
		newID(), unitID, name, formatTime(r.now())).
		BuildWithFlavor(r.flavor)
	if _, err := r.ExecContext(ctx, query, args...); err != nil {
		return "", fmt.Errorf("failed to upsert patrol %q: %w", name, err)
	}

	sb := r.flavor.NewSelectBuilder().Select("id").From("patrols")
	sb.Where(sb.Equal("unit_id", unitID), sb.Equal("name", name))

	query, args = sb.Build()
	var id string
	if err := r.QueryRowContext(ctx, query, args...).Scan(&id); err != nil {
		return "", fmt.Errorf("failed to read patrol %q: %w", name, err)
	}
	return id, nil
}

// ListPatrols returns the unit's patrols ordered by name.
func (r *Repository) ListPatrols(ctx context.Context, unitID string) ([]types.Patrol, error) {
	sb := r.flavor.NewSelectBuilder().Select("id", "unit_id", "name", "created_at").From("patrols")
	sb.Where(sb.Equal("unit_id", unitID)).OrderBy("name")

	query, args := sb.Build()
	rows, err := r.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list patrols: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var patrols []types.Patrol
	for rows.Next() {
		var (
			p       types.Patrol
			created string
		)
		if err := rows.Scan(&p.ID, &p.UnitID, &p.Name, &created); err != nil {
			return nil, err
		}
		p.CreatedAt = parseTime(created)
		patrols = append(patrols, p)
	}
	return patrols, rows.Err()
}
