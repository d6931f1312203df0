package kv

import (
	"context"
	"fmt"
)

// Quota rejects writes larger than Limit bytes, like a browser refusing a
// localStorage write once its quota is used up.
type Quota struct {
	Slot
	Limit int
}

func WithQuota(s Slot, limit int) *Quota {
	return &Quota{Slot: s, Limit: limit}
}

func (q *Quota) Set(ctx context.Context, key string, value []byte) error {
	if q.Limit > 0 && len(value) > q.Limit {
		return fmt.Errorf("write %q (%d bytes, limit %d): %w", key, len(value), q.Limit, ErrQuotaExceeded)
	}
	return q.Slot.Set(ctx, key, value)
}
