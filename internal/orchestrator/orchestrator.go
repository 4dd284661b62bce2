package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/troopkit/rostersync/internal/browser"
	"github.com/troopkit/rostersync/internal/parser"
	"github.com/troopkit/rostersync/internal/types"
)

// Phases reported in Progress and recorded on session errors.
const (
	PhaseLogin     = "login"
	PhaseRoster    = "roster"
	PhaseProfiles  = "profiles"
	PhaseComplete  = "complete"
	PhaseFailed    = "failed"
	PhaseCancelled = "cancelled"
)

// Browser is the part of the automation client the orchestrator drives.
// *browser.Client satisfies it.
type Browser interface {
	Open(ctx context.Context, url string, headed bool) error
	Close(ctx context.Context) error
	Snapshot(ctx context.Context, interactive bool) (*browser.Snapshot, error)
	Click(ctx context.Context, ref string) error
	ClickText(ctx context.Context, text string) error
	Back(ctx context.Context) error
	Screenshot(ctx context.Context, path string, full bool) error
	WaitForLogin(ctx context.Context, timeout time.Duration) error
	DismissTourModal(ctx context.Context) bool
	NavigateToRoster(ctx context.Context, rosterURL string) (string, error)
}

// SessionStore persists session state. *store.Repository satisfies it.
type SessionStore interface {
	CreateSession(ctx context.Context, s *types.SyncSession) error
	UpdateSession(ctx context.Context, s *types.SyncSession) error
	AddSessionError(ctx context.Context, sessionID string, e types.SessionError) error
}

// Config controls one run.
type Config struct {
	// LoginURL is opened first; the user signs in by hand.
	LoginURL string

	// RosterURL is loaded directly when no roster control is visible.
	RosterURL string

	// Headed shows the browser window. Required for manual login.
	Headed bool

	// LoginTimeout bounds the wait for a completed login.
	LoginTimeout time.Duration

	// RateLimitDelay is slept after every page turn and profile visit.
	RateLimitDelay time.Duration

	// RosterRetries is how many extra times the roster is loaded while its
	// total member count reads zero, RosterRetryDelay apart.
	RosterRetries    int
	RosterRetryDelay time.Duration

	// StuckPageLimit ends pagination after this many consecutive pages
	// without a member not seen before.
	StuckPageLimit int

	// MinPageCeiling is the lower bound of the page ceiling.
	MinPageCeiling int

	// RosterOnly skips the profiles phase.
	RosterOnly bool

	// ScreenshotDir, when set, receives a full-page screenshot of the
	// page a run failed on.
	ScreenshotDir string
}

// DefaultConfig returns the default run configuration.
func DefaultConfig() Config {
	return Config{
		Headed:           true,
		LoginTimeout:     120 * time.Second,
		RateLimitDelay:   time.Second,
		RosterRetries:    2,
		RosterRetryDelay: 3 * time.Second,
		StuckPageLimit:   3,
		MinPageCeiling:   20,
	}
}

// Progress is one checkpoint of a run.
type Progress struct {
	Phase           string `json:"phase"`
	Message         string `json:"message"`
	Current         int    `json:"current"`
	Total           int    `json:"total"`
	PercentComplete int    `json:"percentComplete"`
}

// ProgressFunc receives checkpoints synchronously.
type ProgressFunc func(Progress)

// Result is everything a run produced. It is returned even when the run
// failed; Session.Status tells the outcome.
type Result struct {
	Session  *types.SyncSession   `json:"session"`
	Members  []types.Member       `json:"members"`
	Profiles []types.ScoutProfile `json:"profiles"`
}

// Success reports whether the run completed.
func (r *Result) Success() bool {
	return r.Session != nil && r.Session.Status == types.SessionCompleted
}

// Orchestrator runs syncs. It is not safe for concurrent Runs: the
// browser session is shared.
type Orchestrator struct {
	browser  Browser
	parser   *parser.Parser
	cfg      Config
	logger   *zap.Logger
	store    SessionStore
	progress ProgressFunc

	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithSessionStore persists sessions and their errors.
func WithSessionStore(s SessionStore) Option {
	return func(o *Orchestrator) { o.store = s }
}

// WithProgress registers the progress callback.
func WithProgress(fn ProgressFunc) Option {
	return func(o *Orchestrator) { o.progress = fn }
}

// New creates an orchestrator. Zero durations and limits in cfg take
// their defaults.
func New(b Browser, p *parser.Parser, cfg Config, logger *zap.Logger, opts ...Option) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if p == nil {
		p = parser.New(nil)
	}
	def := DefaultConfig()
	if cfg.LoginTimeout <= 0 {
		cfg.LoginTimeout = def.LoginTimeout
	}
	if cfg.RosterRetries < 0 {
		cfg.RosterRetries = 0
	}
	if cfg.StuckPageLimit <= 0 {
		cfg.StuckPageLimit = def.StuckPageLimit
	}
	if cfg.MinPageCeiling <= 0 {
		cfg.MinPageCeiling = def.MinPageCeiling
	}

	o := &Orchestrator{
		browser: b,
		parser:  p,
		cfg:     cfg,
		logger:  logger,
		sleep:   sleepCtx,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run performs one sync for the unit. The returned Result is never nil;
// the error is the one that ended the run, if any.
func (o *Orchestrator) Run(ctx context.Context, unitID string) (*Result, error) {
	sess := &types.SyncSession{
		ID:        uuid.NewString(),
		UnitID:    unitID,
		Status:    types.SessionRunning,
		Source:    types.SourceBrowser,
		StartedAt: o.now(),
		Errors:    []types.SessionError{},
	}
	res := &Result{Session: sess, Members: []types.Member{}, Profiles: []types.ScoutProfile{}}

	if o.store != nil {
		if err := o.store.CreateSession(ctx, sess); err != nil {
			return res, fmt.Errorf("failed to create session: %w", err)
		}
	}
	log := o.logger.With(zap.String("session_id", sess.ID), zap.String("unit_id", unitID))
	log.Info("sync started")

	r := &run{Orchestrator: o, sess: sess, res: res, log: log, phase: PhaseLogin}

	// A session left over from an earlier crash would hold the profile lock.
	_ = o.browser.Close(ctx)

	err := browser.WithSession(ctx, o.browser, log, r.phases)
	o.finish(ctx, r, err)
	return res, err
}

func (o *Orchestrator) finish(ctx context.Context, r *run, err error) {
	sess := r.sess
	finished := o.now()
	sess.FinishedAt = &finished
	sess.RecordsExtracted = len(r.res.Members)

	phase := PhaseComplete
	switch {
	case err == nil:
		sess.Status = types.SessionCompleted
	case errors.Is(err, context.Canceled) || ctx.Err() != nil:
		sess.Status = types.SessionCancelled
		phase = PhaseCancelled
	default:
		sess.Status = types.SessionFailed
		phase = PhaseFailed
	}

	// Persist the outcome even after cancellation.
	ctx = context.WithoutCancel(ctx)
	if err != nil {
		r.recordError(ctx, types.SessionError{Phase: r.phase, Message: err.Error()})
	}
	if o.store != nil {
		if uerr := o.store.UpdateSession(ctx, sess); uerr != nil {
			r.log.Error("failed to persist session", zap.Error(uerr))
		}
	}

	r.report(phase, fmt.Sprintf("Sync %s: %d members, %d profiles", sess.Status, len(r.res.Members), len(r.res.Profiles)),
		len(r.res.Members), len(r.res.Members))
	r.log.Info("sync finished",
		zap.String("status", string(sess.Status)),
		zap.Int("pages", sess.PagesVisited),
		zap.Int("members", len(r.res.Members)),
		zap.Int("profiles", len(r.res.Profiles)),
		zap.Int("errors", len(sess.Errors)),
		zap.Duration("elapsed", finished.Sub(sess.StartedAt)),
	)
}

// run is the state of one Run call.
type run struct {
	*Orchestrator

	sess  *types.SyncSession
	res   *Result
	log   *zap.Logger
	phase string

	// page is the roster page the browser shows, from 1. memberPage holds
	// the page each member ID was first read on.
	page       int
	memberPage map[string]int
}

func (r *run) phases(ctx context.Context) error {
	err := r.login(ctx)
	if err == nil {
		err = r.roster(ctx)
	}
	if err == nil && !r.cfg.RosterOnly {
		err = r.profiles(ctx)
	}
	if err != nil && ctx.Err() == nil {
		r.screenshot(ctx)
	}
	return err
}

func (r *run) report(phase, msg string, current, total int) {
	if r.progress == nil {
		return
	}
	pct := 0
	if total > 0 {
		pct = min(current*100/total, 100)
	}
	r.progress(Progress{Phase: phase, Message: msg, Current: current, Total: total, PercentComplete: pct})
}

// recordError appends a page- or member-scoped error to the session.
func (r *run) recordError(ctx context.Context, e types.SessionError) {
	if e.At.IsZero() {
		e.At = r.now()
	}
	r.sess.Errors = append(r.sess.Errors, e)
	if r.store == nil {
		return
	}
	if err := r.store.AddSessionError(ctx, r.sess.ID, e); err != nil {
		r.log.Warn("failed to persist session error", zap.Error(err))
	}
}

func (r *run) screenshot(ctx context.Context) {
	if r.cfg.ScreenshotDir == "" {
		return
	}
	path := filepath.Join(r.cfg.ScreenshotDir, fmt.Sprintf("%s-%s.png", r.sess.ID, r.phase))
	if err := r.browser.Screenshot(ctx, path, true); err != nil {
		r.log.Warn("failed to capture failure screenshot", zap.Error(err))
		return
	}
	r.log.Info("failure screenshot saved", zap.String("path", path))
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
