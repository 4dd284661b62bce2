package browser

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

var (
	// skipLineRe finds a "skip" control in the snapshot text when the
	// refs map names it differently ("Skip tour", "skip-button").
	skipLineRe = regexp.MustCompile(`(?im)^[^\n]*\bskip\b[^\n]*\[ref=([a-z]*\d+)\]`)

	tourTextRe = regexp.MustCompile(`(?i)\b(?:tour|walkthrough|what's new)\b`)

	errTourNotFound = errors.New("no tour modal found")
)

// LoggedIn reports whether snap shows a signed-in page: no login form is
// visible and a known post-login navigation element is present.
func (c *Client) LoggedIn(snap *Snapshot) bool {
	if c.loginFormVisible(snap) {
		return false
	}
	_, ok := snap.FindFunc(func(r Ref) bool {
		for _, marker := range c.cfg.Vocab.PostLoginMarkers {
			if sameName(r.Name, marker) {
				return true
			}
		}
		return false
	})
	return ok
}

func (c *Client) loginFormVisible(snap *Snapshot) bool {
	_, ok := snap.FindFunc(func(r Ref) bool {
		role := strings.ToLower(r.Role)
		name := strings.ToLower(r.Name)
		switch role {
		case "textbox", "combobox":
			for _, f := range c.cfg.Vocab.LoginFieldNames {
				if strings.Contains(name, strings.ToLower(f)) {
					return true
				}
			}
		case "button":
			for _, b := range c.cfg.Vocab.LoginButtonNames {
				if sameName(r.Name, b) {
					return true
				}
			}
		}
		return false
	})
	return ok
}

// WaitForLogin polls until the user has signed in or timeout elapses.
func (c *Client) WaitForLogin(ctx context.Context, timeout time.Duration) error {
	c.logger.Info("waiting for login", zap.Duration("timeout", timeout))
	_, err := c.WaitFor(ctx, c.LoggedIn, WaitOptions{Timeout: timeout})
	if err != nil {
		return err
	}
	c.logger.Info("login detected")
	return nil
}

// DismissTourModal closes an onboarding tour if one is showing. It retries
// with exponential backoff and reports whether anything was dismissed.
// Failures are logged, never returned.
func (c *Client) DismissTourModal(ctx context.Context) bool {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.cfg.TourBackoff
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(c.cfg.TourAttempts-1)), ctx)

	dismissed := false
	op := func() error {
		ok, err := c.dismissTourOnce(ctx)
		if err != nil {
			c.logger.Debug("tour dismissal attempt failed", zap.Error(err))
			return err
		}
		if !ok {
			return errTourNotFound
		}
		dismissed = true
		return nil
	}
	if err := backoff.Retry(op, policy); err != nil && !errors.Is(err, errTourNotFound) {
		c.logger.Warn("could not dismiss tour modal", zap.Error(err))
	}
	return dismissed
}

func (c *Client) dismissTourOnce(ctx context.Context) (bool, error) {
	snap, err := c.Snapshot(ctx, true)
	if err != nil {
		return false, err
	}

	if ref, ok := snap.FindFunc(func(r Ref) bool {
		return sameName(r.Name, "skip") && (strings.EqualFold(r.Role, "button") || strings.EqualFold(r.Role, "link"))
	}); ok {
		return true, c.Click(ctx, ref.ID)
	}

	if m := skipLineRe.FindStringSubmatch(snap.Text); m != nil {
		return true, c.Click(ctx, m[1])
	}

	if snap.HasRole("dialog", "alertdialog") || tourTextRe.MatchString(snap.Text) {
		return true, c.Press(ctx, "Escape")
	}

	return false, nil
}

// NavigateToRoster clicks the first visible roster control, preferring a
// link, then a menu item, then a tab, then any element. When none is
// visible it loads rosterURL directly. The chosen strategy is returned.
func (c *Client) NavigateToRoster(ctx context.Context, rosterURL string) (string, error) {
	snap, err := c.Snapshot(ctx, true)
	if err != nil {
		return "", err
	}

	for _, role := range []string{"link", "menuitem", "tab", ""} {
		ref, ok := snap.Find(role, "Roster")
		if !ok {
			continue
		}
		strategy := role
		if strategy == "" {
			strategy = "any"
		}
		c.logger.Debug("navigating to roster", zap.String("strategy", strategy), zap.String("ref", ref.ID))
		return strategy, c.Click(ctx, ref.ID)
	}

	if rosterURL == "" {
		return "", ErrNoRosterControl
	}
	c.logger.Debug("navigating to roster", zap.String("strategy", "url"), zap.String("url", rosterURL))
	return "url", c.Navigate(ctx, rosterURL)
}
