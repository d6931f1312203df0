package currency

import (
	"context"
	"testing"

	"github.com/poovendhan-mathi/yekzen-cart/internal/kv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPreferences_DefaultWhenUnset(t *testing.T) {
	p := LoadPreferences(context.Background(), kv.NewMemory(), PreferenceKey, "USD", nil)
	assert.Equal(t, "USD", p.UserCurrency())
}

func TestPreferences_InvalidFallbackUsesBase(t *testing.T) {
	p := LoadPreferences(context.Background(), kv.NewMemory(), PreferenceKey, "ZZZ", nil)
	assert.Equal(t, Base, p.UserCurrency())
}

func TestPreferences_PersistAndReload(t *testing.T) {
	ctx := context.Background()
	slot := kv.NewMemory()

	p := LoadPreferences(ctx, slot, PreferenceKey, "USD", nil)
	require.NoError(t, p.SetUserCurrency(ctx, "inr"))
	assert.Equal(t, "INR", p.UserCurrency())

	reloaded := LoadPreferences(ctx, slot, PreferenceKey, "USD", nil)
	assert.Equal(t, "INR", reloaded.UserCurrency())
}

func TestPreferences_RejectsUnknownCode(t *testing.T) {
	ctx := context.Background()
	p := LoadPreferences(ctx, kv.NewMemory(), PreferenceKey, "EUR", nil)

	err := p.SetUserCurrency(ctx, "BTC")
	assert.ErrorIs(t, err, ErrUnsupportedCurrency)
	assert.Equal(t, "EUR", p.UserCurrency())
}

func TestPreferences_IgnoresGarbage(t *testing.T) {
	ctx := context.Background()
	slot := kv.NewMemory()
	require.NoError(t, slot.Set(ctx, PreferenceKey, []byte("???")))

	p := LoadPreferences(ctx, slot, PreferenceKey, "USD", nil)
	assert.Equal(t, "USD", p.UserCurrency())
}

func TestPreferences_WriteFailureKeepsSelection(t *testing.T) {
	ctx := context.Background()
	slot := kv.WithQuota(kv.NewMemory(), 1)

	p := LoadPreferences(ctx, slot, PreferenceKey, "USD", nil)
	require.NoError(t, p.SetUserCurrency(ctx, "GBP"))
	assert.Equal(t, "GBP", p.UserCurrency())
}
