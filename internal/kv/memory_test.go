package kv

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory_RoundTrip(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	_, err := m.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrNotFound)

	value := []byte("v1")
	require.NoError(t, m.Set(ctx, "k", value))
	value[0] = 'x'

	got, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v1", string(got))

	require.NoError(t, m.Delete(ctx, "k"))
	_, err = m.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestQuota(t *testing.T) {
	m := NewMemory()
	q := WithQuota(m, 4)
	ctx := context.Background()

	require.NoError(t, q.Set(ctx, "small", []byte("1234")))

	err := q.Set(ctx, "big", []byte("12345"))
	assert.ErrorIs(t, err, ErrQuotaExceeded)

	_, err = q.Get(ctx, "big")
	assert.ErrorIs(t, err, ErrNotFound)

	got, err := q.Get(ctx, "small")
	require.NoError(t, err)
	assert.Equal(t, "1234", string(got))
}

func TestQuota_ZeroMeansUnlimited(t *testing.T) {
	q := WithQuota(NewMemory(), 0)
	assert.NoError(t, q.Set(context.Background(), "k", make([]byte, 1<<16)))
}
