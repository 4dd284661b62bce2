package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/troopkit/rostersync/internal/browser"
	"github.com/troopkit/rostersync/internal/store"
	"github.com/troopkit/rostersync/internal/types"
)

var refLineRe = regexp.MustCompile(`(?m)^- (\w+) "([^"]*)".*\[ref=(\w+)\]`)

func snapshotOf(text string) *browser.Snapshot {
	s := &browser.Snapshot{Refs: map[string]browser.Ref{}, Text: text}
	for _, m := range refLineRe.FindAllStringSubmatch(text, -1) {
		s.Refs[m[3]] = browser.Ref{ID: m[3], Role: m[1], Name: m[2]}
	}
	return s
}

type row struct {
	name string
	id   string
	kind string
}

func youthRow(n int) row {
	return row{name: fmt.Sprintf("Youth%d Tester", n), id: fmt.Sprintf("1%08d", n), kind: "YOUTH"}
}

func rosterPage(total int, next bool, rows ...row) string {
	var b strings.Builder
	if total > 0 {
		fmt.Fprintf(&b, "- text: \"Total %d Items\"\n", total)
	}
	for i, r := range rows {
		fmt.Fprintf(&b, "- row \"%s %s %s 14 First Class Current 8/31/2026\" [ref=e%d]\n", r.name, r.id, r.kind, 10+i)
	}
	if next {
		b.WriteString("- listitem \"Next Page\" [ref=e99]\n")
	}
	return b.String()
}

func profilePage(name, id string) string {
	return fmt.Sprintf("- heading %q [level=1] [ref=e1]\n- text: \"BSA Member ID: %s\"\n- text: \"Status: Active\"\n- text: \"Date Joined: 3/14/2019\"\n", name, id)
}

// fakeBrowser serves scripted roster pages and profile pages.
type fakeBrowser struct {
	page       func(i int) string
	current    int
	stuck      bool
	emptyLoads int
	loads      int
	profiles   map[string]string
	inProfile  string

	loginErr  error
	onProfile func(name string)

	closes      int
	clicks      []string
	clickTexts  []string
	screenshots []string
}

func (f *fakeBrowser) Open(context.Context, string, bool) error { return nil }

func (f *fakeBrowser) Close(context.Context) error {
	f.closes++
	return nil
}

func (f *fakeBrowser) Snapshot(ctx context.Context, _ bool) (*browser.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.inProfile != "" {
		return snapshotOf(f.profiles[f.inProfile]), nil
	}
	if f.loads <= f.emptyLoads {
		return snapshotOf("- text: \"Loading\"\n"), nil
	}
	return snapshotOf(f.page(f.current)), nil
}

func (f *fakeBrowser) Click(_ context.Context, ref string) error {
	f.clicks = append(f.clicks, ref)
	if ref == "e99" && !f.stuck {
		f.current++
	}
	return nil
}

func (f *fakeBrowser) ClickText(_ context.Context, text string) error {
	if f.inProfile == "" && f.page != nil && !strings.Contains(f.page(f.current), text) {
		return fmt.Errorf("no element with text %q", text)
	}
	f.clickTexts = append(f.clickTexts, text)
	if f.onProfile != nil {
		f.onProfile(text)
	}
	if _, ok := f.profiles[text]; ok {
		f.inProfile = text
	}
	return nil
}

func (f *fakeBrowser) Back(context.Context) error {
	f.inProfile = ""
	return nil
}

func (f *fakeBrowser) Screenshot(_ context.Context, path string, _ bool) error {
	f.screenshots = append(f.screenshots, path)
	return nil
}

func (f *fakeBrowser) WaitForLogin(context.Context, time.Duration) error { return f.loginErr }

func (f *fakeBrowser) DismissTourModal(context.Context) bool { return false }

func (f *fakeBrowser) NavigateToRoster(context.Context, string) (string, error) {
	f.loads++
	f.current = 0
	return "link", nil
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.RateLimitDelay = 0
	cfg.RosterRetryDelay = 0
	return cfg
}

func newTestOrchestrator(b Browser, cfg Config, opts ...Option) *Orchestrator {
	o := New(b, nil, cfg, nil, opts...)
	o.sleep = func(ctx context.Context, _ time.Duration) error { return ctx.Err() }
	return o
}

func TestRunCompletes(t *testing.T) {
	leader := row{name: "Dana Whitfield", id: "987654321", kind: "LEADER"}
	pages := []string{
		rosterPage(5, true, youthRow(1), youthRow(2), youthRow(3)),
		rosterPage(5, false, youthRow(4), leader),
	}
	b := &fakeBrowser{
		page:     func(i int) string { return pages[i] },
		profiles: map[string]string{"Youth1 Tester": profilePage("Youth1 Tester", "100000001")},
	}

	var phases []string
	o := newTestOrchestrator(b, testConfig(), WithProgress(func(p Progress) {
		if len(phases) == 0 || phases[len(phases)-1] != p.Phase {
			phases = append(phases, p.Phase)
		}
		assert.LessOrEqual(t, p.PercentComplete, 100)
	}))

	res, err := o.Run(context.Background(), "unit-1")
	require.NoError(t, err)
	assert.True(t, res.Success())
	assert.Len(t, res.Members, 5)
	assert.Equal(t, "100000001", res.Members[0].BSAMemberID)
	require.Len(t, res.Profiles, 1)
	assert.Equal(t, "Youth1 Tester", res.Profiles[0].Name)

	assert.Equal(t, 2, res.Session.PagesVisited)
	assert.Equal(t, 5, res.Session.RecordsExtracted)
	assert.NotNil(t, res.Session.FinishedAt)
	assert.Len(t, res.Session.Errors, 3, "youth without a profile page are recorded")
	for _, e := range res.Session.Errors {
		assert.Equal(t, PhaseProfiles, e.Phase)
	}
	assert.NotContains(t, b.clickTexts, "Dana Whitfield")

	assert.Equal(t, []string{PhaseLogin, PhaseRoster, PhaseProfiles, PhaseComplete}, phases)
	assert.Equal(t, 2, b.closes, "stale session closed first, then the run's own")
}

func TestRunOpensProfilesFromTheirRosterPage(t *testing.T) {
	pages := []string{
		rosterPage(4, true, youthRow(1), youthRow(2)),
		rosterPage(4, false, youthRow(3), youthRow(4)),
	}
	profiles := map[string]string{}
	for i := 1; i <= 4; i++ {
		r := youthRow(i)
		profiles[r.name] = profilePage(r.name, r.id)
	}
	b := &fakeBrowser{page: func(i int) string { return pages[i] }, profiles: profiles}

	res, err := newTestOrchestrator(b, testConfig()).Run(context.Background(), "unit-1")
	require.NoError(t, err)
	assert.Empty(t, res.Session.Errors)
	assert.Len(t, res.Profiles, 4)
	assert.Equal(t, []string{"Youth1 Tester", "Youth2 Tester", "Youth3 Tester", "Youth4 Tester"}, b.clickTexts)
	assert.Equal(t, 2, b.loads, "roster reopened once to reach page 1")
	assert.Equal(t, []string{"e99", "e99"}, b.clicks)
}

func TestRunRosterOnly(t *testing.T) {
	b := &fakeBrowser{page: func(int) string { return rosterPage(1, false, youthRow(1)) }}
	cfg := testConfig()
	cfg.RosterOnly = true

	res, err := newTestOrchestrator(b, cfg).Run(context.Background(), "unit-1")
	require.NoError(t, err)
	assert.Len(t, res.Members, 1)
	assert.Empty(t, b.clickTexts)
}

func TestRunStopsWhenPaginationIsStuck(t *testing.T) {
	b := &fakeBrowser{
		page:  func(int) string { return rosterPage(100, true, youthRow(1), youthRow(2)) },
		stuck: true,
	}
	cfg := testConfig()
	cfg.RosterOnly = true

	res, err := newTestOrchestrator(b, cfg).Run(context.Background(), "unit-1")
	require.NoError(t, err)
	assert.Equal(t, 4, res.Session.PagesVisited)
	assert.Len(t, res.Members, 8, "members are not deduplicated across pages")
}

func TestRunStopsAtReportedTotal(t *testing.T) {
	b := &fakeBrowser{page: func(int) string { return rosterPage(2, true, youthRow(1), youthRow(2)) }}
	cfg := testConfig()
	cfg.RosterOnly = true

	res, err := newTestOrchestrator(b, cfg).Run(context.Background(), "unit-1")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Session.PagesVisited)
	assert.Empty(t, b.clicks)
}

func TestRunPageCeiling(t *testing.T) {
	b := &fakeBrowser{page: func(i int) string { return rosterPage(0, true, youthRow(i)) }}
	cfg := testConfig()
	cfg.RosterOnly = true
	cfg.RosterRetries = 0
	cfg.MinPageCeiling = 3

	res, err := newTestOrchestrator(b, cfg).Run(context.Background(), "unit-1")
	require.NoError(t, err)
	assert.Equal(t, 3, res.Session.PagesVisited)
}

func TestRunRetriesEmptyRoster(t *testing.T) {
	tests := []struct {
		name       string
		emptyLoads int
		wantLoads  int
		wantCount  int
	}{
		{name: "renders on second retry", emptyLoads: 2, wantLoads: 3, wantCount: 1},
		{name: "never renders", emptyLoads: 10, wantLoads: 3, wantCount: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := &fakeBrowser{
				page:       func(int) string { return rosterPage(1, false, youthRow(1)) },
				emptyLoads: tt.emptyLoads,
			}
			cfg := testConfig()
			cfg.RosterOnly = true

			res, err := newTestOrchestrator(b, cfg).Run(context.Background(), "unit-1")
			require.NoError(t, err)
			assert.Equal(t, tt.wantLoads, b.loads)
			assert.Len(t, res.Members, tt.wantCount)
			assert.True(t, res.Success())
		})
	}
}

func TestRunLoginFailure(t *testing.T) {
	dir := t.TempDir()
	b := &fakeBrowser{loginErr: fmt.Errorf("%w after 2m0s", browser.ErrTimeout)}
	cfg := testConfig()
	cfg.ScreenshotDir = dir

	res, err := newTestOrchestrator(b, cfg).Run(context.Background(), "unit-1")
	require.ErrorIs(t, err, browser.ErrTimeout)
	assert.False(t, res.Success())
	assert.Equal(t, types.SessionFailed, res.Session.Status)
	require.Len(t, res.Session.Errors, 1)
	assert.Equal(t, PhaseLogin, res.Session.Errors[0].Phase)
	assert.Equal(t, 2, b.closes)
	require.Len(t, b.screenshots, 1)
	assert.Equal(t, dir, filepath.Dir(b.screenshots[0]))
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	b := &fakeBrowser{
		page:      func(int) string { return rosterPage(2, false, youthRow(1), youthRow(2)) },
		onProfile: func(string) { cancel() },
	}

	res, err := newTestOrchestrator(b, testConfig()).Run(ctx, "unit-1")
	require.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, types.SessionCancelled, res.Session.Status)
	assert.Len(t, res.Members, 2)
	assert.Len(t, b.clickTexts, 1)
	assert.Equal(t, 2, b.closes)
	assert.Empty(t, b.screenshots)
}

func TestRunPersistsSession(t *testing.T) {
	ctx := context.Background()
	s, err := store.Open(ctx, store.Config{Driver: store.DriverSQLite, DSN: filepath.Join(t.TempDir(), "sync.db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.InitSchema(ctx))
	u := &types.Unit{Name: "Troop 9"}
	require.NoError(t, s.CreateUnit(ctx, u))

	b := &fakeBrowser{page: func(int) string { return rosterPage(1, false, youthRow(1)) }}
	res, err := newTestOrchestrator(b, testConfig(), WithSessionStore(s.Repository)).Run(ctx, u.ID)
	require.NoError(t, err)

	got, err := s.GetSession(ctx, u.ID, res.Session.ID)
	require.NoError(t, err)
	assert.Equal(t, types.SessionCompleted, got.Status)
	assert.Equal(t, 1, got.PagesVisited)
	assert.Equal(t, 1, got.RecordsExtracted)
	require.Len(t, got.Errors, 1)
	assert.Equal(t, PhaseProfiles, got.Errors[0].Phase)
	assert.Equal(t, "Youth1 Tester", got.Errors[0].Member)
}
