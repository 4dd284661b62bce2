package types

import "time"

// SessionStatus is the lifecycle state of a sync session.
type SessionStatus string

const (
	SessionRunning   SessionStatus = "running"
	SessionCompleted SessionStatus = "completed"
	SessionFailed    SessionStatus = "failed"
	SessionCancelled SessionStatus = "cancelled"
)

// Terminal reports whether no further transitions are allowed.
func (s SessionStatus) Terminal() bool {
	return s == SessionCompleted || s == SessionFailed || s == SessionCancelled
}

// SessionError is a page- or member-scoped failure recorded during a sync.
type SessionError struct {
	At      time.Time `json:"at"`
	Phase   string    `json:"phase"`
	Page    int       `json:"page,omitempty"`
	Member  string    `json:"member,omitempty"`
	Message string    `json:"message"`
}

// SyncSession tracks one end-to-end extraction run. Sessions are never reused.
type SyncSession struct {
	ID               string         `json:"id"`
	UnitID           string         `json:"unit_id"`
	Status           SessionStatus  `json:"status"`
	Source           string         `json:"source"`
	PagesVisited     int            `json:"pages_visited"`
	RecordsExtracted int            `json:"records_extracted"`
	Errors           []SessionError `json:"errors"`
	StartedAt        time.Time      `json:"started_at"`
	FinishedAt       *time.Time     `json:"finished_at,omitempty"`
}

// Session sources.
const (
	SourceBrowser = "browser"
	SourceHTML    = "html"
)
