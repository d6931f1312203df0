package currency

import (
	"context"
	"errors"
	"sync"

	"github.com/poovendhan-mathi/yekzen-cart/internal/kv"
	"go.uber.org/zap"
)

const PreferenceKey = "preferred_currency"

// Preferences holds the selected display currency. It is read from the slot
// once at construction and written back on every selection.
type Preferences struct {
	slot   kv.Slot
	key    string
	logger *zap.Logger

	mu   sync.RWMutex
	code string
}

func LoadPreferences(ctx context.Context, slot kv.Slot, key, fallback string, logger *zap.Logger) *Preferences {
	if logger == nil {
		logger = zap.NewNop()
	}
	if _, err := Lookup(fallback); err != nil {
		fallback = Base
	}
	p := &Preferences{slot: slot, key: key, logger: logger, code: fallback}

	data, err := slot.Get(ctx, key)
	switch {
	case errors.Is(err, kv.ErrNotFound):
	case err != nil:
		logger.Warn("currency preference load failed", zap.String("key", key), zap.Error(err))
	default:
		if def, err := Lookup(string(data)); err == nil {
			p.code = def.Code
		} else {
			logger.Warn("ignoring stored currency preference", zap.String("key", key), zap.ByteString("value", data))
		}
	}
	return p
}

func (p *Preferences) UserCurrency() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.code
}

// SetUserCurrency rejects unknown codes. A failed write is logged; the new
// preference still applies for this process.
func (p *Preferences) SetUserCurrency(ctx context.Context, code string) error {
	def, err := Lookup(code)
	if err != nil {
		return err
	}

	p.mu.Lock()
	p.code = def.Code
	p.mu.Unlock()

	if err := p.slot.Set(ctx, p.key, []byte(def.Code)); err != nil {
		p.logger.Error("currency preference write failed", zap.String("key", p.key), zap.Error(err))
	}
	return nil
}
