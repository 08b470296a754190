package syncer

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DefaultInterval is the pause between two cycles of the same channel.
const DefaultInterval = time.Second

// Cycler is anything the Poller can drive. *Channel satisfies it.
type Cycler interface {
	Name() string
	Cycle(ctx context.Context) error
}

// Poller refreshes a set of channels independently of each other. Each
// channel runs in its own goroutine and waits for its previous cycle to
// finish before scheduling the next one, so a slow fetch delays only its
// own channel and two fetches of the same channel never overlap.
type Poller struct {
	interval time.Duration
	channels []Cycler
	logger   *zap.Logger
}

func NewPoller(interval time.Duration, logger *zap.Logger, channels ...Cycler) *Poller {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Poller{
		interval: interval,
		channels: channels,
		logger:   logger.Named("poller"),
	}
}

// Bootstrap runs one cycle of every channel, in order, and returns once they
// have all completed. Failures are logged and do not stop the others.
func (p *Poller) Bootstrap(ctx context.Context) {
	for _, ch := range p.channels {
		if ctx.Err() != nil {
			return
		}
		p.cycle(ctx, ch)
	}
}

// Run bootstraps every channel and then polls until ctx is cancelled. A
// cycle already in flight when ctx is cancelled is allowed to finish; no new
// cycle is started afterwards. Run returns nil on cancellation.
func (p *Poller) Run(ctx context.Context) error {
	p.Bootstrap(ctx)

	g, ctx := errgroup.WithContext(ctx)
	for _, ch := range p.channels {
		g.Go(func() error {
			p.loop(ctx, ch)
			return nil
		})
	}
	return g.Wait()
}

func (p *Poller) loop(ctx context.Context, ch Cycler) {
	timer := time.NewTimer(p.interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}
		p.cycle(ctx, ch)
		timer.Reset(p.interval)
	}
}

func (p *Poller) cycle(ctx context.Context, ch Cycler) {
	if err := ch.Cycle(ctx); err != nil {
		p.logger.Debug("poll failed", zap.String("channel", ch.Name()), zap.Error(err))
	}
}
