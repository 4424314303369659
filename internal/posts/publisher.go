package posts

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Publisher releases scheduled posts once their publish time passes.
type Publisher struct {
	Store    Store
	Interval time.Duration
	Logger   *zap.Logger
	Now      func() time.Time
	// OnPublish is called with the number of posts released by a tick,
	// when non-zero.
	OnPublish func(n int)
}

// Tick publishes every post that is due now.
func (p *Publisher) Tick(ctx context.Context) (int, error) {
	now := time.Now
	if p.Now != nil {
		now = p.Now
	}
	n, err := p.Store.PublishDue(ctx, now())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		if p.Logger != nil {
			p.Logger.Info("published scheduled posts", zap.Int("count", n))
		}
		if p.OnPublish != nil {
			p.OnPublish(n)
		}
	}
	return n, nil
}

// Run ticks once immediately and then every Interval until ctx is done.
// Tick errors are logged and do not stop the loop.
func (p *Publisher) Run(ctx context.Context) {
	logger := p.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	tick := func() {
		if _, err := p.Tick(ctx); err != nil && ctx.Err() == nil {
			logger.Warn("publishing scheduled posts", zap.Error(err))
		}
	}

	tick()
	ticker := time.NewTicker(p.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			tick()
		}
	}
}
