package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/troopkit/rostersync/internal/browser"
	"github.com/troopkit/rostersync/internal/parser"
	"github.com/troopkit/rostersync/internal/types"
)

var errRosterEmpty = errors.New("roster reports zero members")

func (r *run) login(ctx context.Context) error {
	r.phase = PhaseLogin
	r.report(PhaseLogin, "Opening login page", 0, 0)

	if err := r.browser.Open(ctx, r.cfg.LoginURL, r.cfg.Headed); err != nil {
		return fmt.Errorf("opening login page: %w", err)
	}
	r.report(PhaseLogin, "Waiting for login", 0, 0)
	if err := r.browser.WaitForLogin(ctx, r.cfg.LoginTimeout); err != nil {
		return fmt.Errorf("waiting for login: %w", err)
	}
	if r.browser.DismissTourModal(ctx) {
		r.log.Debug("tour modal dismissed")
	}
	return nil
}

// openRoster loads the roster and returns its first page. While the page
// reports a total of zero it is reloaded up to RosterRetries more times;
// after that the page is used as found.
func (r *run) openRoster(ctx context.Context) (*browser.Snapshot, int, error) {
	var (
		snap  *browser.Snapshot
		total int
	)
	op := func() error {
		strategy, err := r.browser.NavigateToRoster(ctx, r.cfg.RosterURL)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("navigating to roster: %w", err))
		}
		r.log.Debug("roster opened", zap.String("strategy", strategy))
		if err := r.sleep(ctx, r.cfg.RateLimitDelay); err != nil {
			return backoff.Permanent(err)
		}
		if snap, err = r.browser.Snapshot(ctx, false); err != nil {
			return backoff.Permanent(err)
		}
		if total = parser.TotalMemberCount(snap.Text); total == 0 {
			return errRosterEmpty
		}
		return nil
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(r.cfg.RosterRetryDelay), uint64(r.cfg.RosterRetries)),
		ctx,
	)
	err := backoff.RetryNotify(op, policy, func(err error, wait time.Duration) {
		r.log.Info("roster not rendered yet, retrying", zap.Duration("wait", wait))
	})
	if errors.Is(err, errRosterEmpty) {
		r.log.Warn("roster total still zero, continuing with what is shown")
		err = nil
	}
	if err == nil {
		err = ctx.Err()
	}
	return snap, total, err
}

func (r *run) roster(ctx context.Context) error {
	r.phase = PhaseRoster
	r.report(PhaseRoster, "Opening roster", 0, 0)

	snap, total, err := r.openRoster(ctx)
	if err != nil {
		return err
	}

	chain := r.parser.RosterChain()
	seen := make(map[string]bool)
	ceiling := r.cfg.MinPageCeiling
	stuck := 0

	r.memberPage = make(map[string]int)
	for page := 1; ; page++ {
		r.sess.PagesVisited = page
		r.page = page

		members, strategy, err := chain.Parse(parser.Input{Snapshot: snap})
		if err != nil && !errors.Is(err, parser.ErrNoConfidentResult) {
			r.recordError(ctx, types.SessionError{Phase: PhaseRoster, Page: page, Message: err.Error()})
		}

		fresh := 0
		for _, m := range members {
			if !seen[m.BSAMemberID] {
				seen[m.BSAMemberID] = true
				r.memberPage[m.BSAMemberID] = page
				fresh++
			}
		}
		r.res.Members = append(r.res.Members, members...)
		r.log.Debug("roster page parsed",
			zap.Int("page", page),
			zap.String("strategy", strategy),
			zap.Int("members", len(members)),
			zap.Int("new", fresh),
		)

		if page == 1 && total > 0 && len(members) > 0 {
			perPage := len(members)
			ceiling = max((total+perPage-1)/perPage+2, r.cfg.MinPageCeiling)
		}
		r.report(PhaseRoster, fmt.Sprintf("Page %d: %d members", page, len(seen)), len(seen), total)

		if fresh == 0 {
			stuck++
		} else {
			stuck = 0
		}
		if stuck >= r.cfg.StuckPageLimit {
			r.log.Warn("pagination is not advancing, stopping", zap.Int("page", page))
			break
		}
		next, ok := parser.FindNextPageRef(snap)
		if !ok {
			break
		}
		if total > 0 && len(seen) >= total {
			break
		}
		if page >= ceiling {
			r.log.Warn("page ceiling reached", zap.Int("page", page), zap.Int("ceiling", ceiling))
			break
		}

		if err := r.browser.Click(ctx, next); err != nil {
			return fmt.Errorf("turning to page %d: %w", page+1, err)
		}
		if err := r.sleep(ctx, r.cfg.RateLimitDelay); err != nil {
			return err
		}
		if snap, err = r.browser.Snapshot(ctx, false); err != nil {
			return fmt.Errorf("reading page %d: %w", page+1, err)
		}
	}

	r.sess.RecordsExtracted = len(r.res.Members)
	if r.store != nil {
		if err := r.store.UpdateSession(ctx, r.sess); err != nil {
			r.log.Warn("failed to persist session progress", zap.Error(err))
		}
	}
	r.log.Info("roster extracted",
		zap.Int("pages", r.sess.PagesVisited),
		zap.Int("members", len(r.res.Members)),
		zap.Int("total", total),
	)
	return nil
}

func (r *run) profiles(ctx context.Context) error {
	r.phase = PhaseProfiles

	var youth []types.Member
	for _, m := range r.res.Members {
		if m.Type == types.MemberYouth {
			youth = append(youth, m)
		}
	}

	for i, m := range youth {
		if err := ctx.Err(); err != nil {
			return err
		}
		r.report(PhaseProfiles, "Reading profile of "+m.Name, i, len(youth))

		p, err := r.profile(ctx, m)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			r.log.Warn("profile extraction failed", zap.String("bsa_member_id", m.BSAMemberID), zap.Error(err))
			r.recordError(ctx, types.SessionError{Phase: PhaseProfiles, Member: m.Name, Message: err.Error()})
		} else if p != nil {
			r.res.Profiles = append(r.res.Profiles, *p)
		}

		if err := r.sleep(ctx, r.cfg.RateLimitDelay); err != nil {
			return err
		}
	}
	r.report(PhaseProfiles, fmt.Sprintf("Read %d profiles", len(r.res.Profiles)), len(youth), len(youth))
	return nil
}

// showRosterPage moves the browser to roster page n. Going backwards
// reloads the roster at page 1 and pages forward from there.
func (r *run) showRosterPage(ctx context.Context, n int) error {
	if n < r.page {
		if _, err := r.browser.NavigateToRoster(ctx, r.cfg.RosterURL); err != nil {
			return fmt.Errorf("reopening roster: %w", err)
		}
		r.page = 1
		if err := r.sleep(ctx, r.cfg.RateLimitDelay); err != nil {
			return err
		}
	}
	for r.page < n {
		snap, err := r.browser.Snapshot(ctx, false)
		if err != nil {
			return fmt.Errorf("reading roster page %d: %w", r.page, err)
		}
		next, ok := parser.FindNextPageRef(snap)
		if !ok {
			return fmt.Errorf("roster page %d has no next page", r.page)
		}
		if err := r.browser.Click(ctx, next); err != nil {
			return fmt.Errorf("turning to page %d: %w", r.page+1, err)
		}
		r.page++
		if err := r.sleep(ctx, r.cfg.RateLimitDelay); err != nil {
			return err
		}
	}
	return nil
}

// profile opens the member's profile from the roster page the member was
// read on, parses it and goes back. A page that is not a profile yields no
// profile and an error.
func (r *run) profile(ctx context.Context, m types.Member) (*types.ScoutProfile, error) {
	if n, ok := r.memberPage[m.BSAMemberID]; ok && n != r.page {
		if err := r.showRosterPage(ctx, n); err != nil {
			return nil, err
		}
	}
	if err := r.browser.ClickText(ctx, m.Name); err != nil {
		return nil, fmt.Errorf("opening profile: %w", err)
	}
	snap, err := r.browser.Snapshot(ctx, false)
	if err == nil && !parser.IsProfilePage(snap.Text) {
		err = fmt.Errorf("page after clicking %q is not a profile", m.Name)
	}

	var p *types.ScoutProfile
	if err == nil {
		var ok bool
		if p, ok = r.parser.ParseProfile(snap.Text); !ok {
			err = fmt.Errorf("profile of %q could not be parsed", m.Name)
		} else if p.BSAMemberID == "" {
			p.BSAMemberID = m.BSAMemberID
		}
	}

	if backErr := r.browser.Back(ctx); backErr != nil && err == nil {
		err = fmt.Errorf("returning to roster: %w", backErr)
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}
