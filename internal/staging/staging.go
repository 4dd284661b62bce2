// Package staging reconciles extracted roster members against the live unit
// and records the proposed changes as staged rows for review.
//
// Staging never writes to scouts, profiles, patrols or memberships. Each
// member is classified create, update or skip:
//
//   - Youth ("YOUTH", and "P 18+" unless configured otherwise) are matched to
//     scouts of the unit by member ID and diffed field by field.
//   - Adults are matched in strict priority order: member ID within the unit,
//     member ID anywhere, exact full name within the unit, then exact first
//     and last name within the unit. The first match wins.
//
// Members are deduplicated by member ID before classification, first
// occurrence winning.
package staging

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/troopkit/rostersync/internal/store"
	"github.com/troopkit/rostersync/internal/types"
)

// ErrEmptyRoster is returned when there is nothing to stage.
var ErrEmptyRoster = errors.New("no roster members to stage")

// Repository is the data access staging needs.
type Repository interface {
	ListScouts(ctx context.Context, unitID string) ([]types.Scout, error)
	ListPatrols(ctx context.Context, unitID string) ([]types.Patrol, error)
	ListUnitProfiles(ctx context.Context, unitID string) ([]types.Profile, error)
	FindProfileByBSAID(ctx context.Context, bsaMemberID string) (*types.Profile, error)
	InsertStaged(ctx context.Context, rows []types.StagedMember) error
}

// Options tunes classification.
type Options struct {
	// P18AsAdult stages "P 18+" members as adults instead of scouts.
	P18AsAdult bool
}

// Engine computes and persists staged rows.
type Engine struct {
	repo   Repository
	opts   Options
	logger *zap.Logger
}

// New creates an engine. A nil logger disables logging.
func New(repo Repository, opts Options, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{repo: repo, opts: opts, logger: logger}
}

// Summary counts the outcome of one staging pass.
type Summary struct {
	Total      int                  `json:"total"`
	Creates    int                  `json:"creates"`
	Updates    int                  `json:"updates"`
	Skips      int                  `json:"skips"`
	Adults     int                  `json:"adults"`
	Duplicates int                  `json:"duplicates"`
	Invalid    int                  `json:"invalid"`
	Rows       []types.StagedMember `json:"-"`
}

// IsAdult reports whether members of type t take the adult path.
func (e *Engine) IsAdult(t types.MemberType) bool {
	return t == types.MemberLeader || (t == types.MemberP18 && e.opts.P18AsAdult)
}

// Stage plans the session and persists the staged rows.
func (e *Engine) Stage(ctx context.Context, sessionID, unitID string, members []types.Member) (*Summary, error) {
	sum, err := e.Plan(ctx, sessionID, unitID, members)
	if err != nil {
		return nil, err
	}
	if err := e.repo.InsertStaged(ctx, sum.Rows); err != nil {
		return nil, err
	}
	e.logger.Info("roster staged",
		zap.String("session_id", sessionID),
		zap.String("unit_id", unitID),
		zap.Int("total", sum.Total),
		zap.Int("creates", sum.Creates),
		zap.Int("updates", sum.Updates),
		zap.Int("skips", sum.Skips),
		zap.Int("duplicates", sum.Duplicates),
	)
	return sum, nil
}

// Plan classifies members against the current unit without writing.
func (e *Engine) Plan(ctx context.Context, sessionID, unitID string, members []types.Member) (*Summary, error) {
	if len(members) == 0 {
		return nil, ErrEmptyRoster
	}

	snap, err := e.load(ctx, unitID)
	if err != nil {
		return nil, err
	}

	sum := &Summary{}
	seen := make(map[string]bool, len(members))
	for _, m := range members {
		id := strings.TrimSpace(m.BSAMemberID)
		if id == "" {
			sum.Invalid++
			continue
		}
		if seen[id] {
			sum.Duplicates++
			continue
		}
		seen[id] = true
		m.BSAMemberID = id

		row := types.StagedMember{SessionID: sessionID, UnitID: unitID, Member: m}
		if e.IsAdult(m.Type) {
			row.IsAdult = true
			if err := e.stageAdult(ctx, snap, &row); err != nil {
				return nil, fmt.Errorf("staging %s: %w", id, err)
			}
			sum.Adults++
		} else {
			e.stageScout(snap, &row)
		}

		switch row.ChangeType {
		case types.ChangeCreate:
			sum.Creates++
		case types.ChangeUpdate:
			sum.Updates++
		case types.ChangeSkip:
			sum.Skips++
		}
		sum.Rows = append(sum.Rows, row)
	}
	sum.Total = len(sum.Rows)
	return sum, nil
}

// unitState is the live data of one unit read once per pass.
type unitState struct {
	scouts   map[string]types.Scout
	patrols  map[string]string
	profiles []types.Profile
	byBSAID  map[string]types.Profile
}

func (e *Engine) load(ctx context.Context, unitID string) (*unitState, error) {
	scouts, err := e.repo.ListScouts(ctx, unitID)
	if err != nil {
		return nil, err
	}
	patrols, err := e.repo.ListPatrols(ctx, unitID)
	if err != nil {
		return nil, err
	}
	profiles, err := e.repo.ListUnitProfiles(ctx, unitID)
	if err != nil {
		return nil, err
	}

	st := &unitState{
		scouts:   make(map[string]types.Scout, len(scouts)),
		patrols:  make(map[string]string, len(patrols)),
		profiles: profiles,
		byBSAID:  make(map[string]types.Profile, len(profiles)),
	}
	for _, s := range scouts {
		if s.BSAMemberID != "" {
			st.scouts[s.BSAMemberID] = s
		}
	}
	for _, p := range patrols {
		st.patrols[foldName(p.Name)] = p.ID
	}
	for _, p := range profiles {
		if p.BSAMemberID != "" {
			st.byBSAID[p.BSAMemberID] = p
		}
	}
	return st, nil
}

func (e *Engine) stageScout(st *unitState, row *types.StagedMember) {
	existing, ok := st.scouts[row.BSAMemberID]
	if !ok {
		row.ChangeType = types.ChangeCreate
		row.IsSelected = true
		return
	}
	row.ExistingScoutID = existing.ID
	setDiff(row, ScoutChanges(existing, row.Member, st.patrols))
}

func (e *Engine) stageAdult(ctx context.Context, st *unitState, row *types.StagedMember) error {
	if existing, ok := st.byBSAID[row.BSAMemberID]; ok {
		row.ExistingProfileID = existing.ID
		row.MatchType = types.MatchBSAID
		setDiff(row, ProfileChanges(existing, row.Member))
		return nil
	}

	row.ChangeType = types.ChangeCreate
	row.IsSelected = true
	row.MatchType = types.MatchNone

	p, err := e.repo.FindProfileByBSAID(ctx, row.BSAMemberID)
	switch {
	case err == nil:
		row.MatchedProfileID = p.ID
		row.MatchType = types.MatchBSAID
		return nil
	case !errors.Is(err, store.ErrNotFound):
		return err
	}

	if p, ok := matchFullName(st.profiles, row.Member); ok {
		row.MatchedProfileID = p.ID
		row.MatchType = types.MatchNameExact
		return nil
	}
	if p, ok := matchSplitName(st.profiles, row.Member); ok {
		row.MatchedProfileID = p.ID
		row.MatchType = types.MatchNameFuzzy
	}
	return nil
}

func setDiff(row *types.StagedMember, changes map[string]types.FieldChange) {
	if len(changes) == 0 {
		row.ChangeType = types.ChangeSkip
		row.SkipReason = types.SkipNoChanges
		row.IsSelected = false
		return
	}
	row.ChangeType = types.ChangeUpdate
	row.Changes = changes
	row.IsSelected = true
}

// nameCandidate reports whether p may be matched by name to m. A profile
// already carrying a different member ID belongs to someone else.
func nameCandidate(p types.Profile, m types.Member) bool {
	return p.BSAMemberID == "" || p.BSAMemberID == m.BSAMemberID
}

func matchFullName(profiles []types.Profile, m types.Member) (types.Profile, bool) {
	want := foldName(m.FullName())
	for _, p := range profiles {
		full := p.FullName
		if full == "" {
			full = types.JoinName(p.FirstName, p.LastName)
		}
		if nameCandidate(p, m) && foldName(full) == want {
			return p, true
		}
	}
	return types.Profile{}, false
}

func matchSplitName(profiles []types.Profile, m types.Member) (types.Profile, bool) {
	first, last := foldName(m.FirstName()), foldName(m.LastName())
	if first == "" || last == "" {
		return types.Profile{}, false
	}
	for _, p := range profiles {
		if nameCandidate(p, m) && foldName(p.FirstName) == first && foldName(p.LastName) == last {
			return p, true
		}
	}
	return types.Profile{}, false
}

// foldName normalizes a name for case-insensitive equality.
func foldName(s string) string {
	return cases.Fold().String(norm.NFC.String(strings.Join(strings.Fields(s), " ")))
}
