package persistence

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/poovendhan-mathi/yekzen-cart/internal/cart"
	"github.com/poovendhan-mathi/yekzen-cart/internal/domain"
	"github.com/poovendhan-mathi/yekzen-cart/internal/kv"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type countingSlot struct {
	kv.Slot
	m      sync.Mutex
	sets   int
	err    error
	getErr error
}

func (c *countingSlot) Get(ctx context.Context, key string) ([]byte, error) {
	if c.getErr != nil {
		return nil, c.getErr
	}
	return c.Slot.Get(ctx, key)
}

func (c *countingSlot) Set(ctx context.Context, key string, value []byte) error {
	c.m.Lock()
	c.sets++
	err := c.err
	c.m.Unlock()
	if err != nil {
		return err
	}
	return c.Slot.Set(ctx, key, value)
}

func (c *countingSlot) count() int {
	c.m.Lock()
	defer c.m.Unlock()
	return c.sets
}

func newItem(id string, price string, qty int) domain.CartItem {
	return domain.CartItem{
		ID:       domain.ItemID(id),
		Name:     "item " + id,
		Price:    decimal.RequireFromString(price),
		Quantity: qty,
		Image:    "/img/" + id + ".jpg",
	}
}

func stored(t *testing.T, slot kv.Slot, key string) []domain.CartItem {
	t.Helper()
	data, err := slot.Get(context.Background(), key)
	if err != nil {
		return nil
	}
	items, err := Decode(data)
	require.NoError(t, err)
	return items
}

func TestSchedule_CoalescesRapidMutations(t *testing.T) {
	mock := clock.NewMock()
	slot := &countingSlot{Slot: kv.NewMemory()}
	a := New(slot, "cart", WithClock(mock))

	a.Schedule([]domain.CartItem{newItem("1", "10", 1)})
	mock.Add(100 * time.Millisecond)
	a.Schedule([]domain.CartItem{newItem("1", "10", 2)})
	mock.Add(100 * time.Millisecond)
	a.Schedule([]domain.CartItem{newItem("1", "10", 3)})
	mock.Add(299 * time.Millisecond)

	assert.Equal(t, 0, slot.count())

	mock.Add(time.Millisecond)
	require.Eventually(t, func() bool { return slot.count() == 1 }, time.Second, 5*time.Millisecond)
	assert.Never(t, func() bool { return slot.count() > 1 }, 50*time.Millisecond, 5*time.Millisecond)

	items := stored(t, slot, "cart")
	require.Len(t, items, 1)
	assert.Equal(t, 3, items[0].Quantity)
}

func TestSchedule_SeparateQuietPeriodsWriteTwice(t *testing.T) {
	mock := clock.NewMock()
	slot := &countingSlot{Slot: kv.NewMemory()}
	a := New(slot, "cart", WithClock(mock))

	a.Schedule([]domain.CartItem{newItem("1", "10", 1)})
	mock.Add(DefaultDelay)
	require.Eventually(t, func() bool { return slot.count() == 1 }, time.Second, 5*time.Millisecond)

	a.Schedule([]domain.CartItem{})
	mock.Add(DefaultDelay)
	require.Eventually(t, func() bool { return slot.count() == 2 }, time.Second, 5*time.Millisecond)

	data, err := slot.Get(context.Background(), "cart")
	require.NoError(t, err)
	assert.Equal(t, "[]", string(data))
}

func TestFlush_WritesPendingImmediately(t *testing.T) {
	mock := clock.NewMock()
	slot := &countingSlot{Slot: kv.NewMemory()}
	a := New(slot, "cart", WithClock(mock))

	a.Schedule([]domain.CartItem{newItem("1", "10", 4)})
	require.NoError(t, a.Flush(context.Background()))
	assert.Equal(t, 1, slot.count())

	mock.Add(time.Second)
	assert.Never(t, func() bool { return slot.count() > 1 }, 50*time.Millisecond, 5*time.Millisecond)

	require.NoError(t, a.Close(context.Background()))
	assert.Equal(t, 1, slot.count())
}

func TestWriteFailure_IsLoggedNotPropagated(t *testing.T) {
	mock := clock.NewMock()
	core, logs := observer.New(zap.ErrorLevel)
	slot := &countingSlot{Slot: kv.NewMemory(), err: kv.ErrQuotaExceeded}
	a := New(slot, "cart", WithClock(mock), WithLogger(zap.New(core)))

	store := cart.New(cart.WithPersister(a))
	store.AddItem(newItem("1", "10", 1), 1)
	mock.Add(DefaultDelay)

	require.Eventually(t, func() bool { return logs.Len() == 1 }, time.Second, 5*time.Millisecond)
	assert.Contains(t, logs.All()[0].Message, "cart write failed")
	assert.Equal(t, 1, store.ItemCount())

	err := a.Flush(context.Background())
	assert.NoError(t, err, "nothing pending after a failed write")
}

func TestFlush_ReturnsSlotError(t *testing.T) {
	slot := &countingSlot{Slot: kv.NewMemory(), err: errors.New("disk full")}
	a := New(slot, "cart", WithClock(clock.NewMock()))

	a.Schedule([]domain.CartItem{newItem("1", "1", 1)})
	assert.Error(t, a.Flush(context.Background()))
}

func TestLoad(t *testing.T) {
	ctx := context.Background()

	t.Run("missing slot", func(t *testing.T) {
		items, err := New(kv.NewMemory(), "cart").Load(ctx)
		require.NoError(t, err)
		assert.Empty(t, items)
	})

	t.Run("storage failure is returned", func(t *testing.T) {
		slot := &countingSlot{Slot: kv.NewMemory(), getErr: errors.New("i/o timeout")}
		items, err := New(slot, "cart").Load(ctx)
		require.Error(t, err)
		assert.ErrorContains(t, err, "i/o timeout")
		assert.Nil(t, items)
	})

	t.Run("malformed blob", func(t *testing.T) {
		core, logs := observer.New(zap.WarnLevel)
		slot := kv.NewMemory()
		require.NoError(t, slot.Set(ctx, "cart", []byte(`{not json`)))

		items, err := New(slot, "cart", WithLogger(zap.New(core))).Load(ctx)
		require.NoError(t, err)
		assert.Empty(t, items)
		assert.Equal(t, 1, logs.FilterMessage("discarding malformed cart blob").Len())
	})

	t.Run("wrong shape", func(t *testing.T) {
		slot := kv.NewMemory()
		require.NoError(t, slot.Set(ctx, "cart", []byte(`{"id":1}`)))
		items, err := New(slot, "cart").Load(ctx)
		require.NoError(t, err)
		assert.Empty(t, items)
	})

	t.Run("numeric ids and prices", func(t *testing.T) {
		slot := kv.NewMemory()
		blob := `[{"id":1,"name":"Phone","price":1899.99,"quantity":2,"image":"/p.png","color":"black"}]`
		require.NoError(t, slot.Set(ctx, "cart", []byte(blob)))

		items, err := New(slot, "cart").Load(ctx)
		require.NoError(t, err)
		require.Len(t, items, 1)
		assert.Equal(t, domain.ItemID("1"), items[0].ID)
		assert.Equal(t, 2, items[0].Quantity)
		assert.True(t, decimal.RequireFromString("1899.99").Equal(items[0].Price))
		assert.Equal(t, "black", items[0].Metadata["color"])
	})

	t.Run("drops invalid lines", func(t *testing.T) {
		slot := kv.NewMemory()
		blob := `[{"id":"","price":1,"quantity":1},{"id":"a","price":-1,"quantity":1},{"id":"b","price":2,"quantity":1}]`
		require.NoError(t, slot.Set(ctx, "cart", []byte(blob)))

		items, err := New(slot, "cart").Load(ctx)
		require.NoError(t, err)
		require.Len(t, items, 1)
		assert.Equal(t, domain.ItemID("b"), items[0].ID)
	})
}

func TestRoundTrip_ThroughStore(t *testing.T) {
	ctx := context.Background()
	slot := kv.NewMemory()
	mock := clock.NewMock()

	a := New(slot, "cart:u1", WithClock(mock))
	original := cart.New(cart.WithPersister(a))
	original.AddItem(newItem("1", "100", 0), 1)
	original.AddItem(newItem("2", "19.95", 0), 3)
	original.AddItem(newItem("1", "100", 0), 1)
	require.NoError(t, a.Flush(ctx))

	b := New(slot, "cart:u1", WithClock(mock))
	items, err := b.Load(ctx)
	require.NoError(t, err)
	restored := cart.New(cart.WithItems(items))

	want := original.Items()
	got := restored.Items()
	require.Len(t, got, len(want))
	for i := range want {
		assert.Equal(t, want[i].ID, got[i].ID)
		assert.Equal(t, want[i].Quantity, got[i].Quantity)
		assert.True(t, want[i].Price.Equal(got[i].Price))
		assert.Equal(t, want[i].Name, got[i].Name)
	}
	assert.True(t, original.Total().Equal(restored.Total()))
}

func TestEncode_EmptyCart(t *testing.T) {
	data, err := Encode(nil)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(data))
}
