package browser

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/troopkit/rostersync/internal/vocab"
)

// Config holds client settings.
type Config struct {
	// Session is the CLI session name shared across invocations.
	Session string

	// PollInterval is the default delay between WaitFor snapshots.
	PollInterval time.Duration

	// TourAttempts bounds DismissTourModal. TourBackoff is the first delay
	// between attempts; it doubles on each retry.
	TourAttempts int
	TourBackoff  time.Duration

	// Vocab supplies login and navigation marker text.
	Vocab *vocab.Vocabulary
}

// DefaultConfig returns the default client configuration.
func DefaultConfig() Config {
	return Config{
		Session:      "rostersync",
		PollInterval: 2 * time.Second,
		TourAttempts: 3,
		TourBackoff:  500 * time.Millisecond,
		Vocab:        vocab.Default(),
	}
}

// Client issues commands to the automation CLI.
type Client struct {
	runner Runner
	cfg    Config
	logger *zap.Logger

	open   bool
	headed bool
}

// New creates a client. A nil logger disables logging.
func New(runner Runner, cfg Config, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	def := DefaultConfig()
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = def.PollInterval
	}
	if cfg.TourAttempts <= 0 {
		cfg.TourAttempts = def.TourAttempts
	}
	if cfg.TourBackoff <= 0 {
		cfg.TourBackoff = def.TourBackoff
	}
	if cfg.Vocab == nil {
		cfg.Vocab = def.Vocab
	}
	return &Client{runner: runner, cfg: cfg, logger: logger}
}

// IsOpen reports whether Open has succeeded without a later Close.
func (c *Client) IsOpen() bool {
	return c.open
}

func (c *Client) run(ctx context.Context, args ...string) ([]byte, error) {
	if c.cfg.Session != "" {
		args = append([]string{"--session", c.cfg.Session}, args...)
	}
	c.logger.Debug("browser command", zap.String("command", commandLine(args)))
	return c.runner.Run(ctx, args...)
}

func (c *Client) runOpen(ctx context.Context, args ...string) error {
	if !c.open {
		return ErrNotOpen
	}
	_, err := c.run(ctx, args...)
	return err
}

// Open starts (or reuses) the session and navigates to url.
func (c *Client) Open(ctx context.Context, url string, headed bool) error {
	args := []string{"open", url}
	if headed {
		args = append(args, "--headed")
	}
	if _, err := c.run(ctx, args...); err != nil {
		return err
	}
	c.open = true
	c.headed = headed
	return nil
}

// Navigate loads url in the already open session.
func (c *Client) Navigate(ctx context.Context, url string) error {
	if !c.open {
		return ErrNotOpen
	}
	return c.Open(ctx, url, c.headed)
}

// Close ends the session. It is sent even when the client believes no
// session is open, so a session left over from a previous run is closed too.
func (c *Client) Close(ctx context.Context) error {
	_, err := c.run(ctx, "close")
	c.open = false
	return err
}

// Snapshot captures the accessibility tree. Interactive restricts it to
// interactive elements.
func (c *Client) Snapshot(ctx context.Context, interactive bool) (*Snapshot, error) {
	if !c.open {
		return nil, ErrNotOpen
	}
	args := []string{"snapshot"}
	if interactive {
		args = append(args, "-i")
	}
	args = append(args, "--json")

	out, err := c.run(ctx, args...)
	if err != nil {
		return nil, err
	}
	return ParseSnapshot(out)
}

// Click clicks the element with the given ref.
func (c *Client) Click(ctx context.Context, ref string) error {
	return c.runOpen(ctx, "click", atRef(ref))
}

// Fill types value into the element with the given ref.
func (c *Client) Fill(ctx context.Context, ref, value string) error {
	return c.runOpen(ctx, "fill", atRef(ref), value)
}

// Press sends a key press to the page.
func (c *Client) Press(ctx context.Context, key string) error {
	return c.runOpen(ctx, "press", key)
}

// Back navigates back in history.
func (c *Client) Back(ctx context.Context) error {
	return c.runOpen(ctx, "back")
}

// ClickText clicks the first element whose text matches.
func (c *Client) ClickText(ctx context.Context, text string) error {
	return c.runOpen(ctx, "find", "text", text, "click")
}

// Screenshot saves a screenshot to path. Full captures the whole page.
func (c *Client) Screenshot(ctx context.Context, path string, full bool) error {
	args := []string{"screenshot", path}
	if full {
		args = append(args, "--full")
	}
	if err := c.runOpen(ctx, args...); err != nil {
		return fmt.Errorf("screenshot %s: %w", path, err)
	}
	return nil
}

func atRef(ref string) string {
	if strings.HasPrefix(ref, "@") {
		return ref
	}
	return "@" + ref
}
