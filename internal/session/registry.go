package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/poovendhan-mathi/yekzen-cart/internal/cart"
	"github.com/poovendhan-mathi/yekzen-cart/internal/currency"
	"github.com/poovendhan-mathi/yekzen-cart/internal/domain"
	"github.com/poovendhan-mathi/yekzen-cart/internal/kv"
	"github.com/poovendhan-mathi/yekzen-cart/internal/persistence"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Session is one shopper's cart and display currency.
type Session struct {
	ShopperID string
	Cart      *cart.Store
	Currency  *currency.Preferences

	adapter *persistence.Adapter

	mu      sync.Mutex
	timer   *clock.Timer
	gen     uint64
	expired bool
}

const expireFlushTimeout = 5 * time.Second

type Option func(*Registry)

func WithClock(c clock.Clock) Option {
	return func(r *Registry) { r.clock = c }
}

func WithLogger(l *zap.Logger) Option {
	return func(r *Registry) { r.logger = l }
}

func WithDebounce(d time.Duration) Option {
	return func(r *Registry) { r.debounce = d }
}

// WithIdleTimeout clears a cart that has not been touched for d and drops
// its session. Zero disables expiry.
func WithIdleTimeout(d time.Duration) Option {
	return func(r *Registry) { r.idleTimeout = d }
}

// Registry keeps one live session per shopper.
type Registry struct {
	slot        kv.Slot
	clock       clock.Clock
	logger      *zap.Logger
	debounce    time.Duration
	idleTimeout time.Duration

	mu       sync.RWMutex
	sessions map[string]*Session
	sfg      singleflight.Group
}

func NewRegistry(slot kv.Slot, opts ...Option) *Registry {
	r := &Registry{
		slot:     slot,
		debounce: persistence.DefaultDelay,
		sessions: make(map[string]*Session),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.clock == nil {
		r.clock = clock.New()
	}
	if r.logger == nil {
		r.logger = zap.NewNop()
	}
	return r
}

// CartKey is the slot key holding a shopper's cart.
func CartKey(shopperID string) string {
	if shopperID == "" {
		return "cart"
	}
	return "cart:" + shopperID
}

func currencyKey(shopperID string) string {
	if shopperID == "" {
		return currency.PreferenceKey
	}
	return currency.PreferenceKey + ":" + shopperID
}

// Open returns the shopper's session, loading the stored cart on first use.
// Concurrent first requests for the same shopper share one load. A storage
// failure during the load is returned and nothing is cached, so the next
// request retries.
func (r *Registry) Open(ctx context.Context, shopperID string) (*Session, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		s, err := r.open(ctx, shopperID)
		if err != nil {
			return nil, err
		}
		// an expired session has left the map; load a fresh one
		if r.touch(s) {
			return s, nil
		}
	}
}

func (r *Registry) open(ctx context.Context, shopperID string) (*Session, error) {
	if s, ok := r.Lookup(shopperID); ok {
		return s, nil
	}

	v, err, _ := r.sfg.Do(shopperID, func() (interface{}, error) {
		if s, ok := r.Lookup(shopperID); ok {
			return s, nil
		}
		s, err := r.hydrate(ctx, shopperID)
		if err != nil {
			return nil, err
		}

		r.mu.Lock()
		r.sessions[shopperID] = s
		r.mu.Unlock()
		return s, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Session), nil
}

// Lookup returns a live session without loading or touching it.
func (r *Registry) Lookup(shopperID string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[shopperID]
	return s, ok
}

// ClearCart empties a shopper's cart on behalf of an external signal such as
// a completed checkout or a logout. A cart that is not loaded is removed
// from storage directly.
func (r *Registry) ClearCart(ctx context.Context, shopperID string) error {
	if s, ok := r.Lookup(shopperID); ok {
		s.Cart.Clear()
		return nil
	}
	err := r.slot.Delete(ctx, CartKey(shopperID))
	if err != nil && !errors.Is(err, kv.ErrNotFound) {
		return fmt.Errorf("clear stored cart for %q: %w", shopperID, err)
	}
	return nil
}

// Close stops idle timers and flushes every pending cart write.
func (r *Registry) Close(ctx context.Context) error {
	r.mu.RLock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.mu.RUnlock()

	var errs []error
	for _, s := range sessions {
		s.mu.Lock()
		if s.timer != nil {
			s.timer.Stop()
			s.timer = nil
		}
		s.gen++
		s.mu.Unlock()

		if err := s.adapter.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("flush %s: %w", s.adapter.Key(), err))
		}
	}
	return errors.Join(errs...)
}

func (r *Registry) hydrate(ctx context.Context, shopperID string) (*Session, error) {
	log := r.logger.With(zap.String("user_id", shopperID))

	adapter := persistence.New(r.slot, CartKey(shopperID),
		persistence.WithClock(r.clock),
		persistence.WithDelay(r.debounce),
		persistence.WithLogger(r.logger))
	items, err := adapter.Load(ctx)
	if err != nil {
		log.Warn("cart load failed", zap.Error(err))
		return nil, err
	}

	store := cart.New(
		cart.WithItems(items),
		cart.WithPersister(adapter),
		cart.WithLogger(log),
		cart.WithNotifier(cart.NotifierFunc(func(item domain.CartItem) {
			log.Info("item removed from cart", zap.String("item_id", item.ID.String()), zap.String("name", item.Name))
		})),
	)

	log.Debug("session opened", zap.Int("items", store.ItemCount()))
	return &Session{
		ShopperID: shopperID,
		Cart:      store,
		Currency:  currency.LoadPreferences(ctx, r.slot, currencyKey(shopperID), currency.Base, log),
		adapter:   adapter,
	}, nil
}

// touch re-arms the idle timer. It reports false once the session has
// expired.
func (r *Registry) touch(s *Session) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.expired {
		return false
	}
	if r.idleTimeout <= 0 {
		return true
	}
	if s.timer != nil {
		s.timer.Stop()
	}
	s.gen++
	gen := s.gen
	s.timer = r.clock.AfterFunc(r.idleTimeout, func() { r.expire(s, gen) })
	return true
}

// expire clears an idle shopper's cart, writes the empty cart through and
// drops the session. A session touched while this runs stays registered.
func (r *Registry) expire(s *Session, gen uint64) {
	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return
	}
	s.timer = nil
	s.mu.Unlock()

	log := r.logger.With(zap.String("user_id", s.ShopperID))
	log.Info("session idle, clearing cart", zap.Duration("idle_timeout", r.idleTimeout))
	s.Cart.Clear()

	ctx, cancel := context.WithTimeout(context.Background(), expireFlushTimeout)
	err := s.adapter.Flush(ctx)
	cancel()
	if err != nil {
		log.Error("flush of expired cart failed, keeping session", zap.Error(err))
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen || r.sessions[s.ShopperID] != s {
		return
	}
	s.expired = true
	delete(r.sessions, s.ShopperID)
}
