package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/poovendhan-mathi/yekzen-cart/internal/domain"
	"github.com/poovendhan-mathi/yekzen-cart/internal/kv"
	"go.uber.org/zap"
)

const (
	DefaultDelay        = 300 * time.Millisecond
	defaultWriteTimeout = 5 * time.Second
)

type Option func(*Adapter)

func WithClock(c clock.Clock) Option {
	return func(a *Adapter) { a.clock = c }
}

func WithDelay(d time.Duration) Option {
	return func(a *Adapter) { a.delay = d }
}

func WithLogger(l *zap.Logger) Option {
	return func(a *Adapter) { a.logger = l }
}

func WithWriteTimeout(d time.Duration) Option {
	return func(a *Adapter) { a.writeTimeout = d }
}

// Adapter keeps one cart list in a single kv slot. Writes are debounced:
// every Schedule re-arms the timer and only the newest list is written
// once the quiet period passes.
type Adapter struct {
	slot         kv.Slot
	key          string
	delay        time.Duration
	writeTimeout time.Duration
	clock        clock.Clock
	logger       *zap.Logger

	// writeMu is taken before mu so writes land in the order their lists
	// were taken.
	writeMu sync.Mutex

	mu      sync.Mutex
	pending []domain.CartItem
	dirty   bool
	timer   *clock.Timer
	gen     uint64
}

func New(slot kv.Slot, key string, opts ...Option) *Adapter {
	a := &Adapter{
		slot:         slot,
		key:          key,
		delay:        DefaultDelay,
		writeTimeout: defaultWriteTimeout,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.clock == nil {
		a.clock = clock.New()
	}
	if a.logger == nil {
		a.logger = zap.NewNop()
	}
	a.logger = a.logger.With(zap.String("key", key))
	return a
}

func (a *Adapter) Key() string {
	return a.key
}

// Load reads the slot once. A missing or malformed blob yields an empty
// list. A storage failure is returned so the caller does not mistake it for
// an empty cart and overwrite the stored one.
func (a *Adapter) Load(ctx context.Context) ([]domain.CartItem, error) {
	data, err := a.slot.Get(ctx, a.key)
	if errors.Is(err, kv.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load cart %s: %w", a.key, err)
	}

	items, err := Decode(data)
	if err != nil {
		a.logger.Warn("discarding malformed cart blob", zap.Error(err), zap.Int("bytes", len(data)))
		return nil, nil
	}
	return items, nil
}

// Schedule implements cart.Persister.
func (a *Adapter) Schedule(items []domain.CartItem) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.pending = items
	a.dirty = true
	if a.timer != nil {
		a.timer.Stop()
	}
	a.gen++
	gen := a.gen
	a.timer = a.clock.AfterFunc(a.delay, func() { a.fire(gen) })
}

// Flush writes any pending list now.
func (a *Adapter) Flush(ctx context.Context) error {
	a.writeMu.Lock()
	defer a.writeMu.Unlock()

	a.mu.Lock()
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
	items, ok := a.takeLocked()
	a.mu.Unlock()

	if !ok {
		return nil
	}
	return a.write(ctx, items)
}

// Close cancels the timer and flushes.
func (a *Adapter) Close(ctx context.Context) error {
	return a.Flush(ctx)
}

func (a *Adapter) fire(gen uint64) {
	a.writeMu.Lock()
	defer a.writeMu.Unlock()

	a.mu.Lock()
	if gen != a.gen {
		a.mu.Unlock()
		return
	}
	a.timer = nil
	items, ok := a.takeLocked()
	a.mu.Unlock()

	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), a.writeTimeout)
	defer cancel()
	if err := a.write(ctx, items); err != nil {
		a.logger.Error("cart write failed, keeping in-memory state", zap.Error(err))
	}
}

func (a *Adapter) takeLocked() ([]domain.CartItem, bool) {
	if !a.dirty {
		return nil, false
	}
	items := a.pending
	a.pending = nil
	a.dirty = false
	return items, true
}

func (a *Adapter) write(ctx context.Context, items []domain.CartItem) error {
	data, err := Encode(items)
	if err != nil {
		return err
	}
	if err := a.slot.Set(ctx, a.key, data); err != nil {
		return fmt.Errorf("persist cart: %w", err)
	}
	a.logger.Debug("cart persisted", zap.Int("items", len(items)))
	return nil
}

// Encode renders items as the persisted JSON array. An empty cart is "[]".
func Encode(items []domain.CartItem) ([]byte, error) {
	if items == nil {
		items = []domain.CartItem{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return nil, fmt.Errorf("marshal cart failed: %w", err)
	}
	return data, nil
}

// Decode parses a persisted blob. Lines without an id or with a negative
// price are dropped; quantity and duplicate checks are left to the store.
func Decode(data []byte) ([]domain.CartItem, error) {
	var raw []domain.CartItem
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("unmarshal cart failed: %w", err)
	}

	items := raw[:0]
	for _, item := range raw {
		if item.ID == "" || item.Price.IsNegative() {
			continue
		}
		items = append(items, item)
	}
	return items, nil
}
