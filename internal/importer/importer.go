// Package importer commits reviewed staged rows to the live tables and owns
// the review-time selection toggles.
package importer

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/troopkit/rostersync/internal/staging"
	"github.com/troopkit/rostersync/internal/store"
	"github.com/troopkit/rostersync/internal/types"
)

// Store is the persistence the committer needs. *store.Store satisfies it.
type Store interface {
	GetSession(ctx context.Context, unitID, id string) (*types.SyncSession, error)
	UpdateSession(ctx context.Context, s *types.SyncSession) error
	ListPatrols(ctx context.Context, unitID string) ([]types.Patrol, error)
	ListStaged(ctx context.Context, f store.StagedFilter) ([]types.StagedMember, error)
	SetSelected(ctx context.Context, sessionID, id string, selected bool, version int) (int, error)
	SetAllSelected(ctx context.Context, sessionID string, selected bool, changeType types.ChangeType) (int64, error)
	DeleteStaged(ctx context.Context, sessionID string) (int64, error)
	WithTx(ctx context.Context, fn func(r *store.Repository) error) error
}

// Committer applies selected staged rows.
type Committer struct {
	store  Store
	logger *zap.Logger
	now    func() time.Time
}

// New creates a committer. A nil logger disables logging.
func New(s Store, logger *zap.Logger) *Committer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Committer{store: s, logger: logger, now: time.Now}
}

// Commit writes every selected row of the session and clears its staging
// state. A failing row is recorded in the result and does not stop the
// others. Each applied row leaves staging in the same transaction, so a
// commit interrupted by ctx can be rerun without applying a row twice. Patrols named by selected scout rows are resolved first, once
// per distinct name.
func (c *Committer) Commit(ctx context.Context, unitID, sessionID string) (*types.ImportResult, error) {
	if _, err := c.store.GetSession(ctx, unitID, sessionID); err != nil {
		return nil, err
	}
	rows, err := c.store.ListStaged(ctx, store.StagedFilter{SessionID: sessionID, UnitID: unitID})
	if err != nil {
		return nil, err
	}

	res := &types.ImportResult{Errors: []types.ImportError{}}
	var selected []types.StagedMember
	for _, row := range rows {
		if row.IsSelected && row.ChangeType != types.ChangeSkip {
			selected = append(selected, row)
		} else {
			res.Skipped++
		}
	}

	patrols, perr, err := c.resolvePatrols(ctx, unitID, selected)
	if err != nil {
		return nil, err
	}
	for _, row := range selected {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if name := staging.PatrolName(row.Patrol); !row.IsAdult && name != "" {
			if e, ok := perr[patrolKey(name)]; ok {
				res.Errors = append(res.Errors, importError(row, e))
				continue
			}
		}

		var out outcome
		err := c.store.WithTx(ctx, func(r *store.Repository) error {
			var err error
			if row.IsAdult {
				out, err = applyAdult(ctx, r, row)
			} else {
				out, err = applyScout(ctx, r, row, patrols)
			}
			if err != nil {
				return err
			}
			return r.DeleteStagedRow(ctx, sessionID, row.ID)
		})
		if err != nil {
			c.logger.Warn("staged row failed",
				zap.String("session_id", sessionID),
				zap.String("bsa_member_id", row.BSAMemberID),
				zap.Error(err),
			)
			res.Errors = append(res.Errors, importError(row, err))
			continue
		}
		out.count(res)
	}

	if _, err := c.store.DeleteStaged(ctx, sessionID); err != nil {
		return res, err
	}
	c.logger.Info("staged rows committed",
		zap.String("session_id", sessionID),
		zap.String("unit_id", unitID),
		zap.Int("created", res.Created),
		zap.Int("updated", res.Updated),
		zap.Int("skipped", res.Skipped),
		zap.Int("errors", len(res.Errors)),
	)
	return res, nil
}

// resolvePatrols maps the patrol names of the selected scout rows to IDs,
// keyed by patrolKey. Existing patrols match case-insensitively; missing
// ones are upserted. Names that could not be created are returned with
// their error.
func (c *Committer) resolvePatrols(ctx context.Context, unitID string, rows []types.StagedMember) (map[string]string, map[string]error, error) {
	existing, err := c.store.ListPatrols(ctx, unitID)
	if err != nil {
		return nil, nil, err
	}
	ids := make(map[string]string, len(existing))
	for _, p := range existing {
		if _, ok := ids[patrolKey(p.Name)]; !ok {
			ids[patrolKey(p.Name)] = p.ID
		}
	}

	var missing []string
	seen := make(map[string]bool)
	for _, row := range rows {
		name := staging.PatrolName(row.Patrol)
		key := patrolKey(name)
		if row.IsAdult || name == "" || seen[key] {
			continue
		}
		seen[key] = true
		if _, ok := ids[key]; !ok {
			missing = append(missing, name)
		}
	}
	sort.Strings(missing)

	failed := make(map[string]error)
	for _, name := range missing {
		var id string
		err := c.store.WithTx(ctx, func(r *store.Repository) error {
			var err error
			id, err = r.EnsurePatrol(ctx, unitID, name)
			return err
		})
		if err != nil {
			failed[patrolKey(name)] = fmt.Errorf("patrol %q: %w", name, err)
			continue
		}
		ids[patrolKey(name)] = id
	}
	return ids, failed, nil
}

func patrolKey(name string) string {
	return strings.ToLower(name)
}

// Cancel discards the session's staged rows and marks it cancelled unless
// it already finished.
func (c *Committer) Cancel(ctx context.Context, unitID, sessionID string) (int64, error) {
	sess, err := c.store.GetSession(ctx, unitID, sessionID)
	if err != nil {
		return 0, err
	}
	n, err := c.store.DeleteStaged(ctx, sessionID)
	if err != nil {
		return 0, err
	}
	if !sess.Status.Terminal() {
		now := c.now()
		sess.Status = types.SessionCancelled
		sess.FinishedAt = &now
		if err := c.store.UpdateSession(ctx, sess); err != nil {
			return n, err
		}
	}
	c.logger.Info("staging cancelled",
		zap.String("session_id", sessionID),
		zap.Int64("discarded", n),
	)
	return n, nil
}

// Select toggles one staged row, guarded by the version the reviewer saw.
func (c *Committer) Select(ctx context.Context, unitID, sessionID, stagedID string, selected bool, version int) (int, error) {
	if _, err := c.store.GetSession(ctx, unitID, sessionID); err != nil {
		return 0, err
	}
	return c.store.SetSelected(ctx, sessionID, stagedID, selected, version)
}

// SelectAll selects or clears every row, or every row of changeType when it
// is set.
func (c *Committer) SelectAll(ctx context.Context, unitID, sessionID string, selected bool, changeType types.ChangeType) (int64, error) {
	if _, err := c.store.GetSession(ctx, unitID, sessionID); err != nil {
		return 0, err
	}
	return c.store.SetAllSelected(ctx, sessionID, selected, changeType)
}

func importError(row types.StagedMember, err error) types.ImportError {
	return types.ImportError{Member: row.Member, Error: err.Error()}
}

// isActive treats every status except an expired one as active, so
// "Eligible to Renew" members stay active.
func isActive(renewalStatus string) bool {
	return !strings.Contains(strings.ToLower(renewalStatus), "expired")
}
