package browser

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Closer is anything holding a browser session.
type Closer interface {
	Close(ctx context.Context) error
}

const closeTimeout = 30 * time.Second

// WithSession runs fn and always closes s afterwards, even when ctx has
// been cancelled. A close failure is logged, and returned only if fn
// succeeded.
func WithSession(ctx context.Context, s Closer, logger *zap.Logger, fn func(ctx context.Context) error) (err error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), closeTimeout)
		defer cancel()
		if cerr := s.Close(closeCtx); cerr != nil {
			logger.Warn("closing browser session", zap.Error(cerr))
			if err == nil {
				err = cerr
			}
		}
	}()
	return fn(ctx)
}
