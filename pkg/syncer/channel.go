package syncer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ryandielhenn/gossipview/internal/telemetry"
	"github.com/ryandielhenn/gossipview/pkg/collection"
)

// DefaultTimeout bounds a single fetch when a channel is built without one.
const DefaultTimeout = 5 * time.Second

// Fetcher retrieves the items following cursor and the cursor to hold once
// they have been absorbed.
type Fetcher[T any, C any] func(ctx context.Context, cursor C) (items []T, next C, err error)

// None is the cursor of channels that always fetch the full list.
type None struct{}

// ListFetcher adapts a full-list fetch to a cursorless Fetcher.
func ListFetcher[T any](fetch func(ctx context.Context) ([]T, error)) Fetcher[T, None] {
	return func(ctx context.Context, _ None) ([]T, None, error) {
		items, err := fetch(ctx)
		return items, None{}, err
	}
}

// CountFetcher adapts an offset based fetch: the cursor is the number of items
// already received and advances by the number of items returned.
func CountFetcher[T any](fetch func(ctx context.Context, offset int) ([]T, error)) Fetcher[T, int] {
	return func(ctx context.Context, offset int) ([]T, int, error) {
		items, err := fetch(ctx, offset)
		if err != nil {
			return nil, offset, err
		}
		return items, offset + len(items), nil
	}
}

// Ticket orders cycles by the time their request was issued.
type Ticket uint64

type Config[T comparable, C any] struct {
	Name  string
	Fetch Fetcher[T, C]
	// Keep filters what gets merged; nil keeps everything.
	Keep func(T) bool
	// Initial is the cursor before the first successful cycle.
	Initial C
	// Clone copies reference-typed cursors so callers never share them.
	Clone   func(C) C
	Timeout time.Duration
	Logger  *zap.Logger
}

// Channel owns one remote stream: its local collection, its cursor and the
// fetch that advances both.
type Channel[T comparable, C any] struct {
	name    string
	fetch   Fetcher[T, C]
	clone   func(C) C
	timeout time.Duration
	set     *collection.Set[T]
	logger  *zap.Logger

	// emitMu keeps delta delivery in merge order without holding mu while
	// listeners run.
	emitMu    sync.Mutex
	mu        sync.Mutex
	cursor    C
	issued    Ticket
	committed Ticket
	listeners []func([]T)
}

func NewChannel[T comparable, C any](cfg Config[T, C]) *Channel[T, C] {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Clone == nil {
		cfg.Clone = func(c C) C { return c }
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Channel[T, C]{
		name:    cfg.Name,
		fetch:   cfg.Fetch,
		clone:   cfg.Clone,
		timeout: cfg.Timeout,
		set:     collection.NewSet(cfg.Keep),
		logger:  cfg.Logger.With(zap.String("channel", cfg.Name)),
		cursor:  cfg.Clone(cfg.Initial),
	}
}

func (c *Channel[T, C]) Name() string {
	return c.name
}

// OnDelta registers fn to receive every non-empty delta in merge order.
// Deliveries are serialized, so fn may read the channel but must not Merge
// or Commit into it.
func (c *Channel[T, C]) OnDelta(fn func(delta []T)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}

// Cursor returns the cursor currently held.
func (c *Channel[T, C]) Cursor() C {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.clone(c.cursor)
}

// Items returns a snapshot of the collection in merge order.
func (c *Channel[T, C]) Items() []T {
	return c.set.Items()
}

func (c *Channel[T, C]) Len() int {
	return c.set.Len()
}

// Contains reports whether any held item satisfies match.
func (c *Channel[T, C]) Contains(match func(T) bool) bool {
	return c.set.ContainsFunc(match)
}

// Begin reserves a ticket for a request about to be issued and returns the
// cursor that request should carry.
func (c *Channel[T, C]) Begin() (Ticket, C) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.issued++
	return c.issued, c.clone(c.cursor)
}

// Commit absorbs the result of the request holding t. Items are always
// merged; next replaces the cursor only if no later-issued request has
// committed yet, so the cursor never moves back to an older answer.
func (c *Channel[T, C]) Commit(t Ticket, items []T, next C) []T {
	return c.apply(items, func() {
		if t > c.committed {
			c.committed = t
			c.cursor = c.clone(next)
		} else {
			c.logger.Debug("stale cursor ignored",
				zap.Uint64("ticket", uint64(t)),
				zap.Uint64("committed", uint64(c.committed)))
		}
	})
}

// Reset replaces the cursor and retires every ticket issued so far: a
// request still in flight merges its items but can no longer move the
// cursor. The collection is kept.
func (c *Channel[T, C]) Reset(cursor C) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.issued++
	c.committed = c.issued
	c.cursor = c.clone(cursor)
}

// Merge absorbs items that did not come from a cursor-carrying request.
// The cursor is left alone.
func (c *Channel[T, C]) Merge(items []T) []T {
	return c.apply(items, nil)
}

func (c *Channel[T, C]) apply(items []T, advance func()) []T {
	c.emitMu.Lock()
	defer c.emitMu.Unlock()

	c.mu.Lock()
	delta := c.set.Merge(items)
	if advance != nil {
		advance()
	}
	listeners := c.listeners
	c.mu.Unlock()

	telemetry.ObserveMerge(c.name, len(delta), c.set.Len())
	if len(delta) == 0 {
		return nil
	}
	for _, fn := range listeners {
		fn(delta)
	}
	return delta
}

// Cycle fetches from the current cursor and, only on success, merges the
// result and adopts the returned cursor. A failed cycle leaves the channel
// untouched.
//
// The request outlives ctx cancellation (bounded by the channel timeout) so
// a cycle that has been issued always completes.
func (c *Channel[T, C]) Cycle(ctx context.Context) error {
	return telemetry.Instrument(c.name, func() error {
		ticket, cursor := c.Begin()

		reqCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
		defer cancel()

		items, next, err := c.fetch(reqCtx, cursor)
		if err != nil {
			return fmt.Errorf("%s: %w", c.name, err)
		}
		c.Commit(ticket, items, next)
		return nil
	})
}
