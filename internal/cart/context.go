package cart

import "context"

type ctxKey struct{}

func NewContext(ctx context.Context, s *Store) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

// FromContext returns the store carried by ctx. A missing store is reported
// through ok rather than a panic.
func FromContext(ctx context.Context) (s *Store, ok bool) {
	s, ok = ctx.Value(ctxKey{}).(*Store)
	return s, ok && s != nil
}
