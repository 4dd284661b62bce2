package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/huandu/go-sqlbuilder"
)

type queryable interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

type executable interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// Repository runs row-level operations against a connection or a
// transaction.
type Repository struct {
	queryable
	executable

	flavor sqlbuilder.Flavor
	now    func() time.Time
}

// NewRepository returns a repository over db.
func NewRepository(db *sql.DB, flavor sqlbuilder.Flavor) *Repository {
	return &Repository{queryable: db, executable: db, flavor: flavor, now: time.Now}
}

// NewRepositoryTx returns a repository bound to tx.
func NewRepositoryTx(tx *sql.Tx, flavor sqlbuilder.Flavor) *Repository {
	return &Repository{queryable: tx, executable: tx, flavor: flavor, now: time.Now}
}

// Flavor returns the SQL dialect in use.
func (r *Repository) Flavor() sqlbuilder.Flavor {
	return r.flavor
}

func newID() string {
	return uuid.NewString()
}

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// rowsAffected returns ErrNotFound when res touched no rows.
func rowsAffected(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
