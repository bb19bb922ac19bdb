package checker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/beatwatch/beatwatch/internal/beatmap"
	"github.com/beatwatch/beatwatch/internal/subscription"
	"github.com/beatwatch/beatwatch/pkg/logger"
	"github.com/beatwatch/beatwatch/pkg/metrics"
)

var (
	// ErrCheckInFlight is returned when a cycle is already running.
	ErrCheckInFlight = errors.New("check cycle already in flight")
	// ErrCycleTimeout is returned when a cycle exceeds its deadline.
	ErrCycleTimeout = errors.New("check cycle timed out")
)

// Sink delivers one queued notification. A failed delivery must not raise
// past the orchestrator.
type Sink interface {
	Deliver(ctx context.Context, userID string, items []beatmap.Beatmap, sub subscription.Subscription) error
}

// Orchestrator drives one check cycle: advance the cursor, fetch new
// beatmaps, match them against the stored subscriptions and hand the intents
// to the sink. Cycles never overlap.
type Orchestrator struct {
	cursor  Cursor
	feed    beatmap.Feed
	subs    SubscriptionSource
	sink    Sink
	timeout time.Duration
	now     func() time.Time

	mu sync.Mutex // single in-flight guard
}

func NewOrchestrator(cursor Cursor, feed beatmap.Feed, subs SubscriptionSource, sink Sink, timeout time.Duration) *Orchestrator {
	return &Orchestrator{
		cursor:  cursor,
		feed:    feed,
		subs:    subs,
		sink:    sink,
		timeout: timeout,
		now:     time.Now,
	}
}

// RunCycle runs one check cycle. It short-circuits with ErrCheckInFlight when
// a cycle is already running and bounds the whole cycle with the configured
// timeout.
//
// The cursor is advanced before the fetch, as the original service did: a
// failed fetch skips its window instead of being retried. The alternative
// (advance after a successful fetch) re-notifies every user in the window
// when the process dies mid-delivery, which is the worse failure mode for a
// notification bot.
func (o *Orchestrator) RunCycle(ctx context.Context) error {
	if !o.mu.TryLock() {
		return ErrCheckInFlight
	}
	defer o.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	metrics.CheckCycles.Inc()
	err := o.runCycle(ctx)
	if err != nil {
		metrics.CheckCyclesFailed.Inc()
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%w after %s", ErrCycleTimeout, o.timeout)
		}
	}
	return err
}

func (o *Orchestrator) runCycle(ctx context.Context) error {
	since, err := o.cursor.AdvanceAndGetPrevious(ctx, o.now().UTC())
	if err != nil {
		return fmt.Errorf("advance cursor: %w", err)
	}
	logger.Debugf("check: fetching beatmaps since %s", since.Format(time.RFC3339))

	items, err := o.feed.FetchSince(ctx, since)
	if err != nil {
		return fmt.Errorf("fetch: %w", err)
	}
	metrics.ItemsFetched.Add(float64(len(items)))

	intents, err := Match(ctx, o.subs, items)
	if err != nil {
		return fmt.Errorf("match: %w", err)
	}
	metrics.IntentsQueued.Add(float64(len(intents)))
	logger.Infof("check: %d beatmaps fetched, %d notifications queued", len(items), len(intents))

	for _, in := range intents {
		// stop issuing further intents once the cycle deadline passed;
		// already-issued deliveries are not unwound
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := o.sink.Deliver(ctx, in.UserID, in.Items, in.Sub); err != nil {
			metrics.DeliveriesFailed.Inc()
			logger.Errorf("check: delivery to %s failed: %v", in.UserID, err)
			continue
		}
		metrics.DeliveriesSent.Inc()
	}
	return nil
}

// StartSchedule runs RunCycle on the given cron spec until the returned cron
// is stopped. A tick that lands while a cycle is still in flight is dropped.
func (o *Orchestrator) StartSchedule(spec string) (*cron.Cron, error) {
	c := cron.New()
	_, err := c.AddFunc(spec, func() {
		if err := o.RunCycle(context.Background()); err != nil && !errors.Is(err, ErrCheckInFlight) {
			logger.Errorf("scheduled check failed: %v", err)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("bad check schedule %q: %w", spec, err)
	}
	c.Start()
	return c, nil
}
