package browser

import (
	"context"
	"fmt"
	"time"
)

// WaitOptions controls WaitFor.
type WaitOptions struct {
	Timeout      time.Duration
	PollInterval time.Duration
}

// WaitFor polls interactive snapshots until pred accepts one. It returns
// ErrTimeout once the timeout has elapsed, and propagates snapshot errors.
func (c *Client) WaitFor(ctx context.Context, pred func(*Snapshot) bool, opts WaitOptions) (*Snapshot, error) {
	interval := opts.PollInterval
	if interval <= 0 {
		interval = c.cfg.PollInterval
	}
	deadline := time.Now().Add(opts.Timeout)

	for {
		snap, err := c.Snapshot(ctx, true)
		if err != nil {
			return nil, err
		}
		if pred(snap) {
			return snap, nil
		}
		if !time.Now().Before(deadline) {
			return nil, fmt.Errorf("%w after %s", ErrTimeout, opts.Timeout)
		}
		if err := sleep(ctx, interval); err != nil {
			return nil, err
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
