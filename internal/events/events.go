package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/poovendhan-mathi/yekzen-cart/internal/domain"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	TopicCheckout = "checkout-events"
	TopicSession  = "session-events"

	TypeCheckoutCompleted = "checkout.completed"
	TypeSessionExpired    = "session.expired"
	TypeUserLoggedOut     = "user.logged_out"

	// HeaderOrigin names the instance that published a message.
	HeaderOrigin = "origin"
)

type Event struct {
	Type       string          `json:"type"`
	ShopperID  string          `json:"user_id"`
	CheckoutID string          `json:"checkout_id,omitempty"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	OccurredAt time.Time       `json:"occurred_at"`
}

// CheckoutCompleted is the payload of a checkout.completed event.
type CheckoutCompleted struct {
	PaymentID string            `json:"payment_id"`
	Items     []domain.CartItem `json:"items"`
	Total     decimal.Decimal   `json:"total_amount"`
	Currency  string            `json:"currency"`
}

type Publisher interface {
	Publish(ctx context.Context, topic string, e Event) error
}

// LogPublisher writes events to the log instead of a broker.
type LogPublisher struct {
	Logger *zap.Logger
}

func (p LogPublisher) Publish(_ context.Context, topic string, e Event) error {
	if p.Logger != nil {
		p.Logger.Info("event published",
			zap.String("topic", topic),
			zap.String("type", e.Type),
			zap.String("user_id", e.ShopperID),
			zap.String("checkout_id", e.CheckoutID))
	}
	return nil
}
