package eventsvc

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/bursar/core"
)

// CacheInvalidator drops cached read models whenever the ledger changes.
type CacheInvalidator struct {
	cache core.Cache
	keys  []string
}

var _ core.EventPublisher = (*CacheInvalidator)(nil) // interface compliance check

func NewCacheInvalidator(cache core.Cache, keys ...string) *CacheInvalidator {
	return &CacheInvalidator{cache: cache, keys: keys}
}

func (ci *CacheInvalidator) Publish(ctx context.Context, events ...core.Event) error {
	if len(events) == 0 || len(ci.keys) == 0 {
		return nil
	}
	return errors.Wrap(ci.cache.Delete(ctx, ci.keys...), "invalidating cache")
}
