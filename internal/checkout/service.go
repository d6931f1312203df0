package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/poovendhan-mathi/yekzen-cart/internal/cart"
	"github.com/poovendhan-mathi/yekzen-cart/internal/currency"
	"github.com/poovendhan-mathi/yekzen-cart/internal/domain"
	"github.com/poovendhan-mathi/yekzen-cart/internal/events"
	"github.com/poovendhan-mathi/yekzen-cart/internal/kv"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Cart is what checkout needs from a cart store: a snapshot of the lines and
// a way to take the paid ones out.
type Cart interface {
	Items() []domain.CartItem
	RemoveItem(id domain.ItemID)
	SetQuantity(id domain.ItemID, quantity int)
}

type Request struct {
	ShopperID       string
	IdempotencyKey  string
	Method          Method
	Card            *Card
	VPA             string
	DisplayCurrency string
}

type SnapshotItem struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"product_name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

// Snapshot is the cart as it was charged.
type Snapshot struct {
	Items      []SnapshotItem   `json:"items"`
	Subtotal   decimal.Decimal  `json:"subtotal"`
	Tax        decimal.Decimal  `json:"tax"`
	Shipping   decimal.Decimal  `json:"shipping"`
	Total      decimal.Decimal  `json:"total_amount"`
	Currency   string           `json:"currency"`
	Display    *currency.Amount `json:"display_total,omitempty"`
	CapturedAt time.Time        `json:"captured_at"`
}

type Result struct {
	CheckoutID    string   `json:"checkout_id"`
	Status        Status   `json:"status"`
	PaymentID     string   `json:"payment_id,omitempty"`
	DeclineReason string   `json:"decline_reason,omitempty"`
	Snapshot      Snapshot `json:"snapshot"`
}

func (r *Result) advance(to Status) error {
	if !CanTransitionTo(r.Status, to) {
		return fmt.Errorf("%s -> %s: %w", r.Status, to, ErrIllegalTransition)
	}
	r.Status = to
	return nil
}

type Option func(*Service)

func WithClock(c clock.Clock) Option {
	return func(s *Service) { s.clock = c }
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Service) { s.logger = l }
}

func WithChargeTimeout(d time.Duration) Option {
	return func(s *Service) { s.chargeTimeout = d }
}

type Service struct {
	gateway       PaymentGateway
	publisher     events.Publisher
	results       kv.Slot
	clock         clock.Clock
	logger        *zap.Logger
	chargeTimeout time.Duration
	sfg           singleflight.Group // coalesces retries with the same idempotency key
}

func NewService(gateway PaymentGateway, publisher events.Publisher, results kv.Slot, opts ...Option) *Service {
	s := &Service{
		gateway:       gateway,
		publisher:     publisher,
		results:       results,
		chargeTimeout: 15 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.clock == nil {
		s.clock = clock.New()
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.publisher == nil {
		s.publisher = events.LogPublisher{Logger: s.logger}
	}
	return s
}

// Checkout charges the current cart and clears it once payment succeeds.
// A declined payment returns the failed result together with
// ErrPaymentDeclined. Requests repeating an idempotency key get the
// recorded outcome of the first one.
func (s *Service) Checkout(ctx context.Context, c Cart, req Request) (*Result, error) {
	if req.IdempotencyKey == "" {
		return s.run(ctx, c, req)
	}

	if res, err, ok := s.lookup(ctx, req); ok {
		return res, err
	}
	v, err, _ := s.sfg.Do(resultKey(req), func() (interface{}, error) {
		if res, err, ok := s.lookup(ctx, req); ok {
			return res, err
		}
		return s.run(ctx, c, req)
	})
	res, _ := v.(*Result)
	return res, err
}

func (s *Service) run(ctx context.Context, c Cart, req Request) (*Result, error) {
	items := c.Items()
	if len(items) == 0 {
		return nil, ErrEmptyCart
	}
	snap, err := s.snapshot(items, req.DisplayCurrency)
	if err != nil {
		return nil, err
	}

	res := &Result{
		CheckoutID: uuid.NewString(),
		Status:     StatusInitiated,
		Snapshot:   snap,
	}
	log := s.logger.With(zap.String("checkout_id", res.CheckoutID), zap.String("user_id", req.ShopperID))
	log.Info("checkout initiated", zap.String("total", snap.Total.String()), zap.Int("items", len(snap.Items)))

	if err := res.advance(StatusPaymentPending); err != nil {
		return res, err
	}

	chargeCtx, cancel := context.WithTimeout(ctx, s.chargeTimeout)
	charge, err := s.gateway.Charge(chargeCtx, ChargeRequest{
		CheckoutID: res.CheckoutID,
		Amount:     snap.Total.Round(2),
		Currency:   snap.Currency,
		Method:     req.Method,
		Card:       req.Card,
		VPA:        req.VPA,
	})
	cancel()
	if err != nil {
		_ = res.advance(StatusFailed)
		log.Warn("payment failed", zap.Error(err))
		return res, fmt.Errorf("charge checkout %s: %w", res.CheckoutID, err)
	}

	if charge.Status != ChargeSucceeded {
		_ = res.advance(StatusFailed)
		res.DeclineReason = charge.DeclineReason
		s.remember(ctx, req, res)
		log.Info("payment declined", zap.String("reason", charge.DeclineReason))
		return res, fmt.Errorf("%s: %w", charge.DeclineReason, ErrPaymentDeclined)
	}

	res.PaymentID = charge.PaymentID
	if err := res.advance(StatusPaymentCompleted); err != nil {
		return res, err
	}

	s.publish(ctx, req, res, items, log)

	if err := res.advance(StatusCompleted); err != nil {
		return res, err
	}
	settle(c, items)
	s.remember(ctx, req, res)
	log.Info("checkout completed", zap.String("payment_id", res.PaymentID))
	return res, nil
}

// settle removes the paid quantities from the cart. Lines added or raised
// while the charge was in flight keep the unpaid part.
func settle(c Cart, paid []domain.CartItem) {
	current := make(map[domain.ItemID]int)
	for _, item := range c.Items() {
		current[item.ID] = item.Quantity
	}
	for _, item := range paid {
		qty, ok := current[item.ID]
		if !ok {
			continue
		}
		if left := qty - item.Quantity; left > 0 {
			c.SetQuantity(item.ID, left)
		} else {
			c.RemoveItem(item.ID)
		}
	}
}

func (s *Service) snapshot(items []domain.CartItem, display string) (Snapshot, error) {
	totals := cart.ComputeTotals(items)
	snap := Snapshot{
		Items:      make([]SnapshotItem, 0, len(items)),
		Subtotal:   totals.Subtotal,
		Tax:        totals.Tax,
		Shipping:   totals.Shipping,
		Total:      totals.Total,
		Currency:   currency.Base,
		CapturedAt: s.clock.Now().UTC(),
	}
	for _, item := range items {
		snap.Items = append(snap.Items, SnapshotItem{
			ProductID: item.ID.String(),
			Name:      item.Name,
			Quantity:  item.Quantity,
			UnitPrice: item.Price,
			Subtotal:  item.LineTotal(),
		})
	}

	if display != "" {
		amount, err := currency.ConvertAmount(totals.Total, display)
		if err != nil {
			return Snapshot{}, err
		}
		if amount.Code != currency.Base {
			snap.Display = &amount
		}
	}
	return snap, nil
}

// publish failures are logged only; the payment has already been taken.
func (s *Service) publish(ctx context.Context, req Request, res *Result, items []domain.CartItem, log *zap.Logger) {
	payload, err := json.Marshal(events.CheckoutCompleted{
		PaymentID: res.PaymentID,
		Items:     items,
		Total:     res.Snapshot.Total,
		Currency:  res.Snapshot.Currency,
	})
	if err != nil {
		log.Error("failed to marshal checkout payload", zap.Error(err))
		return
	}

	err = s.publisher.Publish(ctx, events.TopicCheckout, events.Event{
		Type:       events.TypeCheckoutCompleted,
		ShopperID:  req.ShopperID,
		CheckoutID: res.CheckoutID,
		Payload:    payload,
		OccurredAt: s.clock.Now().UTC(),
	})
	if err != nil {
		log.Error("failed to publish checkout event", zap.Error(err))
	}
}

func resultKey(req Request) string {
	return "checkout:" + req.ShopperID + ":" + req.IdempotencyKey
}

// remember records terminal outcomes for idempotent replays. Gateway errors
// are not recorded so the client can retry with the same key.
func (s *Service) remember(ctx context.Context, req Request, res *Result) {
	if req.IdempotencyKey == "" || s.results == nil {
		return
	}
	data, err := json.Marshal(res)
	if err != nil {
		s.logger.Error("failed to marshal checkout result", zap.Error(err))
		return
	}
	if err := s.results.Set(ctx, resultKey(req), data); err != nil {
		s.logger.Error("failed to record checkout result", zap.String("checkout_id", res.CheckoutID), zap.Error(err))
	}
}

func (s *Service) lookup(ctx context.Context, req Request) (*Result, error, bool) {
	if s.results == nil {
		return nil, nil, false
	}
	data, err := s.results.Get(ctx, resultKey(req))
	if err != nil {
		if !errors.Is(err, kv.ErrNotFound) {
			s.logger.Warn("idempotency lookup failed", zap.Error(err))
		}
		return nil, nil, false
	}

	var res Result
	if err := json.Unmarshal(data, &res); err != nil {
		s.logger.Warn("discarding unreadable checkout result", zap.Error(err))
		return nil, nil, false
	}
	s.logger.Info("duplicate checkout request",
		zap.String("idempotency_key", req.IdempotencyKey),
		zap.String("checkout_id", res.CheckoutID),
		zap.String("status", res.Status.String()))

	if res.Status == StatusFailed {
		return &res, fmt.Errorf("%s: %w", res.DeclineReason, ErrPaymentDeclined), true
	}
	return &res, nil, true
}
