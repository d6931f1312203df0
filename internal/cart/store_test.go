package cart

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/poovendhan-mathi/yekzen-cart/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockPersister struct {
	m      sync.Mutex
	writes [][]domain.CartItem
}

func (p *mockPersister) Schedule(items []domain.CartItem) {
	p.m.Lock()
	defer p.m.Unlock()
	p.writes = append(p.writes, items)
}

func (p *mockPersister) count() int {
	p.m.Lock()
	defer p.m.Unlock()
	return len(p.writes)
}

func (p *mockPersister) last() []domain.CartItem {
	p.m.Lock()
	defer p.m.Unlock()
	return p.writes[len(p.writes)-1]
}

func item(id string, price string) domain.CartItem {
	return domain.CartItem{
		ID:    domain.ItemID(id),
		Name:  "product " + id,
		Price: decimal.RequireFromString(price),
		Image: "/img/" + id + ".png",
	}
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestTotals_AfterSetQuantity(t *testing.T) {
	s := New()
	s.AddItem(item("1", "100"), 1)
	s.AddItem(item("2", "50"), 1)
	s.SetQuantity("1", 2)

	assert.True(t, dec("250").Equal(s.Subtotal()), "subtotal %s", s.Subtotal())
	assert.True(t, dec("20").Equal(s.Tax()), "tax %s", s.Tax())
	assert.True(t, s.Shipping().IsZero())
	assert.True(t, dec("270").Equal(s.Total()), "total %s", s.Total())
}

func TestAddItem_SingleAddWithQuantity(t *testing.T) {
	s := New()
	s.AddItem(item("x", "1899.99"), 5)

	assert.Equal(t, 1, s.ItemCount())
	items := s.Items()
	require.Len(t, items, 1)
	assert.Equal(t, 5, items[0].Quantity)
}

func TestRemoveItem_UnknownIDKeepsCart(t *testing.T) {
	s := New()
	s.AddItem(item("1", "10"), 2)
	before := s.Items()

	assert.NotPanics(t, func() { s.RemoveItem("never-added") })
	assert.Equal(t, before, s.Items())
}

func TestAddItem_MergesByID(t *testing.T) {
	s := New()
	s.AddItem(item("1", "10"), 1)
	s.AddItem(item("1", "10"), 3)
	s.AddItem(item("2", "5"), 1)

	items := s.Items()
	require.Len(t, items, 2)
	assert.Equal(t, domain.ItemID("1"), items[0].ID)
	assert.Equal(t, 4, items[0].Quantity)
	assert.Equal(t, domain.ItemID("2"), items[1].ID)
}

func TestAddItem_NonPositiveQuantityCountsAsOne(t *testing.T) {
	s := New()
	s.AddItem(item("1", "10"), 0)
	s.AddItem(item("2", "10"), -4)

	assert.Equal(t, 1, s.QuantityOf("1"))
	assert.Equal(t, 1, s.QuantityOf("2"))
}

func TestAddItem_KeepsPriceSnapshot(t *testing.T) {
	s := New()
	s.AddItem(item("1", "10"), 1)

	repriced := item("1", "99")
	repriced.Name = "renamed"
	s.AddItem(repriced, 1)

	items := s.Items()
	require.Len(t, items, 1)
	assert.True(t, dec("10").Equal(items[0].Price))
	assert.Equal(t, "product 1", items[0].Name)
}

func TestUniqueness_ManyAdds(t *testing.T) {
	s := New()
	for i := 0; i < 50; i++ {
		s.AddItem(item(fmt.Sprint(i%7), "1"), i%3)
	}

	seen := map[domain.ItemID]bool{}
	for _, it := range s.Items() {
		assert.False(t, seen[it.ID], "duplicate id %s", it.ID)
		seen[it.ID] = true
		assert.GreaterOrEqual(t, it.Quantity, 1)
	}
	assert.Equal(t, 7, s.ItemCount())
}

func TestSetQuantity(t *testing.T) {
	tests := []struct {
		name     string
		quantity int
		wantIn   bool
		wantQty  int
	}{
		{name: "replace", quantity: 7, wantIn: true, wantQty: 7},
		{name: "zero removes", quantity: 0, wantIn: false, wantQty: 0},
		{name: "negative removes", quantity: -2, wantIn: false, wantQty: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New()
			s.AddItem(item("1", "10"), 3)
			s.SetQuantity("1", tt.quantity)

			assert.Equal(t, tt.wantIn, s.IsInCart("1"))
			assert.Equal(t, tt.wantQty, s.QuantityOf("1"))
		})
	}
}

func TestSetQuantity_UnknownIDIsIgnored(t *testing.T) {
	p := &mockPersister{}
	s := New(WithPersister(p))
	s.SetQuantity("ghost", 4)

	assert.False(t, s.IsInCart("ghost"))
	assert.Equal(t, 0, s.ItemCount())
	assert.Equal(t, 0, p.count())
}

func TestItemCount_DistinctLines(t *testing.T) {
	s := New()
	s.AddItem(item("1", "1"), 5)
	assert.Equal(t, 1, s.ItemCount())

	s = New()
	s.AddItem(item("1", "1"), 2)
	s.AddItem(item("2", "1"), 2)
	assert.Equal(t, 2, s.ItemCount())

	sum := 0
	for _, it := range s.Items() {
		sum += it.Quantity
	}
	assert.Equal(t, 4, sum)
}

func TestRemoveItem_Idempotent(t *testing.T) {
	var removed []domain.ItemID
	s := New(WithNotifier(NotifierFunc(func(it domain.CartItem) {
		removed = append(removed, it.ID)
	})))
	s.AddItem(item("1", "10"), 1)
	s.AddItem(item("2", "10"), 1)

	s.RemoveItem("1")
	once := s.Items()
	s.RemoveItem("1")

	assert.Equal(t, once, s.Items())
	assert.Equal(t, []domain.ItemID{"1"}, removed)
}

func TestSetQuantityZero_NotifiesRemoval(t *testing.T) {
	var removed []domain.ItemID
	s := New(WithNotifier(NotifierFunc(func(it domain.CartItem) {
		removed = append(removed, it.ID)
	})))
	s.AddItem(item("1", "10"), 1)
	s.SetQuantity("1", 0)
	s.SetQuantity("1", 0)

	assert.Equal(t, []domain.ItemID{"1"}, removed)
}

func TestClear(t *testing.T) {
	p := &mockPersister{}
	s := New(WithPersister(p))
	s.AddItem(item("1", "10"), 1)
	s.Clear()

	assert.Equal(t, 0, s.ItemCount())
	assert.Empty(t, p.last())

	s.Clear()
	assert.Equal(t, 3, p.count())
}

func TestShippingBoundary(t *testing.T) {
	tests := []struct {
		price    string
		shipping string
	}{
		{price: "49.99", shipping: "9.99"},
		{price: "50", shipping: "9.99"},
		{price: "50.01", shipping: "0"},
		{price: "0", shipping: "9.99"},
	}

	for _, tt := range tests {
		t.Run(tt.price, func(t *testing.T) {
			s := New()
			s.AddItem(item("1", tt.price), 1)
			assert.True(t, dec(tt.shipping).Equal(s.Shipping()), "shipping %s", s.Shipping())
		})
	}
}

func TestTotalDecomposition(t *testing.T) {
	carts := [][]domain.CartItem{
		nil,
		{item("a", "3.33")},
		{item("a", "12.50"), item("b", "40")},
		{item("a", "1899.99"), item("b", "0.01"), item("c", "7")},
	}

	for i, items := range carts {
		s := New()
		for j, it := range items {
			s.AddItem(it, j+1)
		}
		totals := s.Totals()

		assert.True(t, totals.Subtotal.Mul(TaxRate).Equal(totals.Tax), "cart %d", i)
		assert.True(t, totals.Subtotal.Add(totals.Tax).Add(totals.Shipping).Equal(totals.Total), "cart %d", i)
		if totals.Subtotal.GreaterThan(dec("50")) {
			assert.True(t, totals.Shipping.IsZero())
		} else {
			assert.True(t, totals.Shipping.Equal(ShippingFee))
		}
		assert.Equal(t, len(items), totals.ItemCount)
	}
}

func TestPersisterSeesEveryMutation(t *testing.T) {
	p := &mockPersister{}
	s := New(WithPersister(p))

	s.AddItem(item("1", "10"), 1)
	s.AddItem(item("2", "10"), 1)
	s.SetQuantity("1", 3)
	s.RemoveItem("2")

	assert.Equal(t, 4, p.count())
	last := p.last()
	require.Len(t, last, 1)
	assert.Equal(t, 3, last[0].Quantity)
}

func TestItems_ReturnsCopy(t *testing.T) {
	s := New()
	it := item("1", "10")
	it.Metadata = map[string]any{"color": "red"}
	s.AddItem(it, 1)

	items := s.Items()
	items[0].Quantity = 99
	items[0].Metadata["color"] = "blue"

	fresh := s.Items()
	assert.Equal(t, 1, fresh[0].Quantity)
	assert.Equal(t, "red", fresh[0].Metadata["color"])
}

func TestWithItems_Normalizes(t *testing.T) {
	a := item("1", "10")
	a.Quantity = 2
	b := item("1", "10")
	b.Quantity = 3
	c := item("2", "10")
	c.Quantity = 0

	s := New(WithItems([]domain.CartItem{a, b, c}))

	assert.Equal(t, 1, s.ItemCount())
	assert.Equal(t, 5, s.QuantityOf("1"))
	assert.False(t, s.IsInCart("2"))
}

func TestConcurrentAdds_SameID(t *testing.T) {
	s := New()
	const n = 100

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.AddItem(item("hot", "1"), 1)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, s.ItemCount())
	assert.Equal(t, n, s.QuantityOf("hot"))
}

func TestFromContext(t *testing.T) {
	_, ok := FromContext(context.Background())
	assert.False(t, ok)

	s := New()
	got, ok := FromContext(NewContext(context.Background(), s))
	assert.True(t, ok)
	assert.Same(t, s, got)
}
