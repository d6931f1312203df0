package events

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Clearer empties a shopper's cart.
type Clearer interface {
	ClearCart(ctx context.Context, shopperID string) error
}

type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// Poller clears carts when checkout or session events arrive from other
// services (auth logout, session timeout, checkout on another instance).
// Checkouts published under its own origin were already cleared locally and
// are skipped.
type Poller struct {
	reader  messageReader
	clearer Clearer
	logger  *zap.Logger
	origin  string
	backoff time.Duration
}

func NewPoller(clearer Clearer, logger *zap.Logger, origin string, brokers ...string) *Poller {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     brokers,
		GroupTopics: []string{TopicCheckout, TopicSession},
		GroupID:     "yekzen-cart",
		MaxBytes:    10e6, // 10MB
	})
	return newPoller(reader, clearer, logger, origin)
}

func newPoller(reader messageReader, clearer Clearer, logger *zap.Logger, origin string) *Poller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Poller{
		reader:  reader,
		clearer: clearer,
		logger:  logger,
		origin:  origin,
		backoff: time.Second,
	}
}

func (p *Poller) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		m, err := p.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return
			}
			p.logger.Warn("error reading message", zap.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(p.backoff):
			}
			continue
		}
		p.handle(ctx, m)
	}
}

func (p *Poller) Close() {
	if err := p.reader.Close(); err != nil {
		p.logger.Warn("error closing reader", zap.Error(err))
	}
}

func (p *Poller) handle(ctx context.Context, m kafka.Message) {
	var e Event
	if err := json.Unmarshal(m.Value, &e); err != nil {
		p.logger.Warn("error parsing message", zap.String("topic", m.Topic), zap.Error(err))
		return
	}

	switch e.Type {
	case TypeCheckoutCompleted, TypeSessionExpired, TypeUserLoggedOut:
	default:
		return
	}
	if e.Type == TypeCheckoutCompleted && p.ownMessage(m) {
		p.logger.Debug("skipping own checkout event", zap.String("user_id", e.ShopperID), zap.String("checkout_id", e.CheckoutID))
		return
	}
	if e.ShopperID == "" {
		p.logger.Warn("missing user_id", zap.String("type", e.Type))
		return
	}

	if err := p.clearer.ClearCart(ctx, e.ShopperID); err != nil {
		p.logger.Error("failed to clear cart", zap.String("user_id", e.ShopperID), zap.Error(err))
		return
	}
	p.logger.Info("cart cleared", zap.String("user_id", e.ShopperID), zap.String("reason", e.Type))
}

func (p *Poller) ownMessage(m kafka.Message) bool {
	if p.origin == "" {
		return false
	}
	for _, h := range m.Headers {
		if h.Key == HeaderOrigin {
			return string(h.Value) == p.origin
		}
	}
	return false
}
