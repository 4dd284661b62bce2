// Package htmlimport stages a roster exported from the site as HTML, the
// offline alternative to a browser sync. Each import is tracked as its own
// sync session with source "html".
package htmlimport

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/troopkit/rostersync/internal/parser"
	"github.com/troopkit/rostersync/internal/staging"
	"github.com/troopkit/rostersync/internal/types"
)

// ErrNotRoster is returned for HTML without a member table.
var ErrNotRoster = errors.New("file is not a roster export")

// SessionStore persists the import's session.
type SessionStore interface {
	CreateSession(ctx context.Context, s *types.SyncSession) error
	UpdateSession(ctx context.Context, s *types.SyncSession) error
	AddSessionError(ctx context.Context, sessionID string, e types.SessionError) error
}

// Stager is the staging step. *staging.Engine satisfies it.
type Stager interface {
	Stage(ctx context.Context, sessionID, unitID string, members []types.Member) (*staging.Summary, error)
}

// Outcome is the result of one import.
type Outcome struct {
	Session *types.SyncSession
	Summary *staging.Summary
}

// Importer parses HTML exports and stages them.
type Importer struct {
	parser   *parser.Parser
	sessions SessionStore
	stager   Stager
	logger   *zap.Logger
	now      func() time.Time
}

// New creates an importer. A nil logger disables logging.
func New(p *parser.Parser, sessions SessionStore, stager Stager, logger *zap.Logger) *Importer {
	if p == nil {
		p = parser.New(nil)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Importer{parser: p, sessions: sessions, stager: stager, logger: logger, now: time.Now}
}

// ImportFile reads and imports one export file.
func (i *Importer) ImportFile(ctx context.Context, unitID, path string) (*Outcome, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.Size() > parser.MaxHTMLSize {
		return nil, fmt.Errorf("%s: %w: %d bytes (limit %d)", path, parser.ErrHTMLTooLarge, info.Size(), parser.MaxHTMLSize)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return i.Import(ctx, unitID, data)
}

// Import validates, parses and stages data under a new session. Invalid
// input is rejected before any session is created.
func (i *Importer) Import(ctx context.Context, unitID string, data []byte) (*Outcome, error) {
	if len(data) > parser.MaxHTMLSize {
		return nil, fmt.Errorf("%w: %d bytes (limit %d)", parser.ErrHTMLTooLarge, len(data), parser.MaxHTMLSize)
	}
	if !parser.IsValidRosterHTML(data) {
		return nil, ErrNotRoster
	}

	sess := &types.SyncSession{
		ID:        uuid.NewString(),
		UnitID:    unitID,
		Status:    types.SessionRunning,
		Source:    types.SourceHTML,
		StartedAt: i.now(),
		Errors:    []types.SessionError{},
	}
	if err := i.sessions.CreateSession(ctx, sess); err != nil {
		return nil, err
	}
	log := i.logger.With(zap.String("session_id", sess.ID), zap.String("unit_id", unitID))

	chain := i.parser.HTMLChain()
	var members []types.Member
	pages := parser.SplitPages(string(data))
	for n, page := range pages {
		found, _, err := chain.Parse(parser.Input{HTML: []byte(page)})
		if err != nil && !errors.Is(err, parser.ErrNoConfidentResult) {
			i.pageError(ctx, sess, n+1, err, log)
			continue
		}
		members = append(members, found...)
	}
	sess.PagesVisited = len(pages)
	sess.RecordsExtracted = len(members)

	sum, err := i.stager.Stage(ctx, sess.ID, unitID, members)
	if err != nil {
		i.finish(context.WithoutCancel(ctx), sess, types.SessionFailed, log)
		return &Outcome{Session: sess}, err
	}
	i.finish(ctx, sess, types.SessionCompleted, log)
	log.Info("html roster imported",
		zap.Int("pages", sess.PagesVisited),
		zap.Int("members", len(members)),
		zap.Int("staged", sum.Total),
	)
	return &Outcome{Session: sess, Summary: sum}, nil
}

func (i *Importer) pageError(ctx context.Context, sess *types.SyncSession, page int, err error, log *zap.Logger) {
	e := types.SessionError{At: i.now(), Phase: "roster", Page: page, Message: err.Error()}
	sess.Errors = append(sess.Errors, e)
	if perr := i.sessions.AddSessionError(ctx, sess.ID, e); perr != nil {
		log.Warn("failed to persist session error", zap.Error(perr))
	}
}

func (i *Importer) finish(ctx context.Context, sess *types.SyncSession, status types.SessionStatus, log *zap.Logger) {
	now := i.now()
	sess.Status = status
	sess.FinishedAt = &now
	if err := i.sessions.UpdateSession(ctx, sess); err != nil {
		log.Error("failed to persist session", zap.Error(err))
	}
}
