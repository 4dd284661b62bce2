package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/troopkit/rostersync/internal/types"
)

var unitColumns = []string{"id", "name", "unit_type", "number", "created_at"}

// CreateUnit inserts u, assigning an ID and creation time when unset.
func (r *Repository) CreateUnit(ctx context.Context, u *types.Unit) error {
	if u.ID == "" {
		u.ID = newID()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = r.now()
	}
	ib := r.flavor.NewInsertBuilder().InsertInto("units")
	ib.Cols(unitColumns...).Values(u.ID, u.Name, u.UnitType, u.Number, formatTime(u.CreatedAt))

	query, args := ib.Build()
	if _, err := r.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to create unit: %w", err)
	}
	return nil
}

// GetUnit returns the unit with the given ID.
func (r *Repository) GetUnit(ctx context.Context, id string) (*types.Unit, error) {
	sb := r.flavor.NewSelectBuilder().Select(unitColumns...).From("units")
	sb.Where(sb.Equal("id", id))

	query, args := sb.Build()
	u, err := scanUnit(r.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("unit %s: %w", id, ErrNotFound)
	}
	return u, err
}

// ListUnits returns all units ordered by name.
func (r *Repository) ListUnits(ctx context.Context) ([]types.Unit, error) {
	sb := r.flavor.NewSelectBuilder().Select(unitColumns...).From("units").OrderBy("name")

	query, args := sb.Build()
	rows, err := r.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list units: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var units []types.Unit
	for rows.Next() {
		u, err := scanUnit(rows)
		if err != nil {
			return nil, err
		}
		units = append(units, *u)
	}
	return units, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanUnit(row scanner) (*types.Unit, error) {
	var (
		u       types.Unit
		created string
	)
	if err := row.Scan(&u.ID, &u.Name, &u.UnitType, &u.Number, &created); err != nil {
		return nil, err
	}
	u.CreatedAt = parseTime(created)
	return &u, nil
}
