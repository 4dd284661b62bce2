package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/troopkit/rostersync/internal/types"
)

var sessionColumns = []string{
	"id", "unit_id", "status", "source", "pages_visited", "records_extracted", "started_at", "finished_at",
}

// CreateSession inserts a new running session.
func (r *Repository) CreateSession(ctx context.Context, s *types.SyncSession) error {
	if s.ID == "" {
		s.ID = newID()
	}
	if s.Status == "" {
		s.Status = types.SessionRunning
	}
	if s.Source == "" {
		s.Source = types.SourceBrowser
	}
	if s.StartedAt.IsZero() {
		s.StartedAt = r.now()
	}

	ib := r.flavor.NewInsertBuilder().InsertInto("sync_sessions")
	ib.Cols(sessionColumns...).
		Values(s.ID, s.UnitID, string(s.Status), s.Source, s.PagesVisited, s.RecordsExtracted,
			formatTime(s.StartedAt), finishedAt(s.FinishedAt))

	query, args := ib.Build()
	if _, err := r.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// UpdateSession stores the session's status, counters and finish time.
func (r *Repository) UpdateSession(ctx context.Context, s *types.SyncSession) error {
	ub := r.flavor.NewUpdateBuilder().Update("sync_sessions")
	ub.Set(
		ub.Assign("status", string(s.Status)),
		ub.Assign("pages_visited", s.PagesVisited),
		ub.Assign("records_extracted", s.RecordsExtracted),
		ub.Assign("finished_at", finishedAt(s.FinishedAt)),
	)
	ub.Where(ub.Equal("unit_id", s.UnitID), ub.Equal("id", s.ID))

	query, args := ub.Build()
	if err := rowsAffected(r.ExecContext(ctx, query, args...)); err != nil {
		return fmt.Errorf("failed to update session %s: %w", s.ID, err)
	}
	return nil
}

// AddSessionError appends an error record to the session.
func (r *Repository) AddSessionError(ctx context.Context, sessionID string, e types.SessionError) error {
	if e.At.IsZero() {
		e.At = r.now()
	}

	count := r.flavor.NewSelectBuilder().Select("COUNT(1)").From("sync_session_errors")
	count.Where(count.Equal("session_id", sessionID))
	query, args := count.Build()
	var seq int
	if err := r.QueryRowContext(ctx, query, args...).Scan(&seq); err != nil {
		return fmt.Errorf("failed to count session errors: %w", err)
	}

	ib := r.flavor.NewInsertBuilder().InsertInto("sync_session_errors")
	ib.Cols("id", "session_id", "seq", "at", "phase", "page", "member", "message").
		Values(newID(), sessionID, seq, formatTime(e.At), e.Phase, e.Page, e.Member, e.Message)

	query, args = ib.Build()
	if _, err := r.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to record session error: %w", err)
	}
	return nil
}

// GetSession returns the session with its errors in the order recorded.
func (r *Repository) GetSession(ctx context.Context, unitID, id string) (*types.SyncSession, error) {
	sb := r.flavor.NewSelectBuilder().Select(sessionColumns...).From("sync_sessions")
	sb.Where(sb.Equal("unit_id", unitID), sb.Equal("id", id))

	query, args := sb.Build()
	s, err := scanSession(r.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	errs := r.flavor.NewSelectBuilder().Select("at", "phase", "page", "member", "message").From("sync_session_errors")
	errs.Where(errs.Equal("session_id", id)).OrderBy("seq")

	query, args = errs.Build()
	rows, err := r.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to read session errors: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var (
			e  types.SessionError
			at string
		)
		if err := rows.Scan(&at, &e.Phase, &e.Page, &e.Member, &e.Message); err != nil {
			return nil, err
		}
		e.At = parseTime(at)
		s.Errors = append(s.Errors, e)
	}
	return s, rows.Err()
}

// ListSessions returns the unit's sessions started at or after since,
// newest first. A zero since lists all.
func (r *Repository) ListSessions(ctx context.Context, unitID string, since time.Time) ([]types.SyncSession, error) {
	sb := r.flavor.NewSelectBuilder().Select(sessionColumns...).From("sync_sessions")
	sb.Where(sb.Equal("unit_id", unitID))
	if !since.IsZero() {
		sb.Where(sb.GreaterEqualThan("started_at", formatTime(since)))
	}
	sb.OrderBy("started_at").Desc()

	query, args := sb.Build()
	rows, err := r.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []types.SyncSession
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

func finishedAt(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func scanSession(row scanner) (*types.SyncSession, error) {
	var (
		s        types.SyncSession
		status   string
		started  string
		finished sql.NullString
	)
	err := row.Scan(&s.ID, &s.UnitID, &status, &s.Source, &s.PagesVisited, &s.RecordsExtracted, &started, &finished)
	if err != nil {
		return nil, err
	}
	s.Status = types.SessionStatus(status)
	s.StartedAt = parseTime(started)
	if finished.Valid {
		t := parseTime(finished.String)
		s.FinishedAt = &t
	}
	return &s, nil
}
