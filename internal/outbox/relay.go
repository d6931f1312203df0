package outbox

import (
	"context"
	"encoding/json"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/poovendhan-mathi/yekzen-cart/internal/events"
	"go.uber.org/zap"
)

const (
	defaultTick      = time.Second
	defaultBatchSize = 100
	defaultTimeout   = 5 * time.Second
)

// Relay moves stored events to the broker. Delivery is at least once: an
// event published but not marked is sent again on the next tick.
type Relay struct {
	store     *Store
	next      events.Publisher
	clock     clock.Clock
	logger    *zap.Logger
	tick      time.Duration
	batchSize int
	timeout   time.Duration
}

func NewRelay(store *Store, next events.Publisher, c clock.Clock, logger *zap.Logger) *Relay {
	if c == nil {
		c = clock.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Relay{
		store:     store,
		next:      next,
		clock:     c,
		logger:    logger,
		tick:      defaultTick,
		batchSize: defaultBatchSize,
		timeout:   defaultTimeout,
	}
}

func (r *Relay) Run(ctx context.Context) {
	ticker := r.clock.Ticker(r.tick)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			r.processUnpublishedEvents(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// processUnpublishedEvents returns the number of events delivered.
func (r *Relay) processUnpublishedEvents(ctx context.Context) int {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	records, err := r.store.Unprocessed(ctx, r.batchSize)
	if err != nil {
		r.logger.Warn("failed to fetch outbox events", zap.Error(err))
		return 0
	}

	delivered := 0
	for _, rec := range records {
		var e events.Event
		if err := json.Unmarshal(rec.Payload, &e); err != nil {
			r.logger.Error("dropping unreadable outbox event", zap.Int64("id", rec.ID), zap.Error(err))
			_ = r.store.MarkProcessed(ctx, rec.ID)
			continue
		}

		if err := r.next.Publish(ctx, rec.Topic, e); err != nil {
			r.logger.Warn("failed to publish outbox event",
				zap.Int64("id", rec.ID),
				zap.String("type", rec.EventType),
				zap.Error(err))
			continue
		}

		if err := r.store.MarkProcessed(ctx, rec.ID); err != nil {
			r.logger.Warn("failed to mark outbox event as processed", zap.Int64("id", rec.ID), zap.Error(err))
			continue
		}
		delivered++
	}
	return delivered
}
