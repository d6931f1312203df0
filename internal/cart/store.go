package cart

import (
	"sync"

	"github.com/poovendhan-mathi/yekzen-cart/internal/domain"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Persister receives the full item list after every mutation. Implementations
// are expected to return quickly (the persistence adapter only re-arms a
// timer).
type Persister interface {
	Schedule(items []domain.CartItem)
}

// Notifier is told about lines that were actually removed.
type Notifier interface {
	ItemRemoved(item domain.CartItem)
}

type NotifierFunc func(item domain.CartItem)

func (f NotifierFunc) ItemRemoved(item domain.CartItem) { f(item) }

type Option func(*Store)

func WithPersister(p Persister) Option {
	return func(s *Store) { s.persister = p }
}

func WithNotifier(n Notifier) Option {
	return func(s *Store) { s.notifier = n }
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithItems hydrates the store. Lines are normalised: quantities below 1 are
// dropped and repeated ids are merged.
func WithItems(items []domain.CartItem) Option {
	return func(s *Store) { s.items = normalize(items) }
}

// Store owns a cart collection. All operations are total: nothing here
// returns an error.
type Store struct {
	mu    sync.RWMutex
	items []domain.CartItem

	persister Persister
	notifier  Notifier
	logger    *zap.Logger
}

func New(opts ...Option) *Store {
	s := &Store{}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s
}

// Dispatch applies op. Mutations are serialised so each one sees the fully
// applied result of the previous one, and persistence is scheduled in the
// same order.
func (s *Store) Dispatch(op Op) {
	var removed *domain.CartItem

	s.mu.Lock()
	changed := true
	switch o := op.(type) {
	case AddItem:
		s.add(o.Item, o.Quantity)
	case RemoveItem:
		removed = s.remove(o.ID)
	case SetQuantity:
		if o.Quantity <= 0 {
			removed = s.remove(o.ID)
		} else {
			changed = s.setQuantity(o.ID, o.Quantity)
		}
	case Clear:
		s.items = nil
	default:
		changed = false
	}
	if changed && s.persister != nil {
		s.persister.Schedule(s.snapshot())
	}
	s.mu.Unlock()

	if op != nil {
		s.logger.Debug("cart op applied", zap.String("op", op.opName()), zap.Bool("changed", changed))
	}
	if removed != nil && s.notifier != nil {
		s.notifier.ItemRemoved(*removed)
	}
}

func (s *Store) AddItem(item domain.CartItem, quantity int) {
	s.Dispatch(AddItem{Item: item, Quantity: quantity})
}

func (s *Store) RemoveItem(id domain.ItemID) {
	s.Dispatch(RemoveItem{ID: id})
}

func (s *Store) SetQuantity(id domain.ItemID, quantity int) {
	s.Dispatch(SetQuantity{ID: id, Quantity: quantity})
}

func (s *Store) Clear() {
	s.Dispatch(Clear{})
}

// Items returns a copy of the collection in insertion order.
func (s *Store) Items() []domain.CartItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot()
}

// ItemCount is the number of distinct lines, not the sum of quantities.
func (s *Store) ItemCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

func (s *Store) Subtotal() decimal.Decimal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return subtotal(s.items)
}

func (s *Store) Tax() decimal.Decimal {
	return tax(s.Subtotal())
}

func (s *Store) Shipping() decimal.Decimal {
	return shipping(s.Subtotal())
}

func (s *Store) Total() decimal.Decimal {
	return s.Totals().Total
}

// Totals computes every derived figure from a single read of the items.
func (s *Store) Totals() Totals {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return ComputeTotals(s.items)
}

func (s *Store) IsInCart(id domain.ItemID) bool {
	return s.QuantityOf(id) > 0
}

// QuantityOf returns 0 for ids that are not in the cart.
func (s *Store) QuantityOf(id domain.ItemID) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.indexOf(id); i >= 0 {
		return s.items[i].Quantity
	}
	return 0
}

func (s *Store) add(item domain.CartItem, quantity int) {
	if quantity < 1 {
		quantity = 1
	}
	if i := s.indexOf(item.ID); i >= 0 {
		s.items[i].Quantity += quantity
		return
	}
	item.Quantity = quantity
	item.Metadata = cloneMetadata(item.Metadata)
	s.items = append(s.items, item)
}

func (s *Store) remove(id domain.ItemID) *domain.CartItem {
	i := s.indexOf(id)
	if i < 0 {
		return nil
	}
	removed := s.items[i]
	s.items = append(s.items[:i:i], s.items[i+1:]...)
	return &removed
}

func (s *Store) setQuantity(id domain.ItemID, quantity int) bool {
	i := s.indexOf(id)
	if i < 0 {
		return false
	}
	s.items[i].Quantity = quantity
	return true
}

func (s *Store) indexOf(id domain.ItemID) int {
	for i := range s.items {
		if s.items[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) snapshot() []domain.CartItem {
	out := make([]domain.CartItem, len(s.items))
	for i, item := range s.items {
		item.Metadata = cloneMetadata(item.Metadata)
		out[i] = item
	}
	return out
}

func normalize(items []domain.CartItem) []domain.CartItem {
	var out []domain.CartItem
	seen := make(map[domain.ItemID]int, len(items))
	for _, item := range items {
		if item.Quantity < 1 {
			continue
		}
		if i, ok := seen[item.ID]; ok {
			out[i].Quantity += item.Quantity
			continue
		}
		seen[item.ID] = len(out)
		item.Metadata = cloneMetadata(item.Metadata)
		out = append(out, item)
	}
	return out
}

func cloneMetadata(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
