package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"WedgeSentinel/internal/model"
)

// Cache stores encoded windows for a short time.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
}

// CachedFetcher serves repeated requests for the same window from a cache.
// Cache errors are logged and fall through to the wrapped fetcher.
type CachedFetcher struct {
	next  Fetcher
	cache Cache
	ttl   time.Duration
	log   zerolog.Logger
}

// NewCachedFetcher wraps next with cache using the given entry lifetime.
func NewCachedFetcher(next Fetcher, cache Cache, ttl time.Duration, log zerolog.Logger) *CachedFetcher {
	return &CachedFetcher{next: next, cache: cache, ttl: ttl, log: log}
}

func (f *CachedFetcher) Name() string { return f.next.Name() + "+cache" }

func (f *CachedFetcher) key(symbol, interval string, limit int) string {
	return fmt.Sprintf("bars:%s:%s:%s:%d", f.next.Name(), symbol, interval, limit)
}

func (f *CachedFetcher) FetchBars(ctx context.Context, symbol, interval string, limit int) ([]model.OHLCV, error) {
	key := f.key(symbol, interval, limit)

	data, ok, err := f.cache.Get(ctx, key)
	switch {
	case err != nil:
		f.log.Warn().Err(err).Str("key", key).Msg("cache read failed")
	case ok:
		var bars []model.OHLCV
		if err := json.Unmarshal(data, &bars); err == nil {
			return bars, nil
		}
		f.log.Warn().Str("key", key).Msg("discarding undecodable cache entry")
	}

	bars, err := f.next.FetchBars(ctx, symbol, interval, limit)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(bars); err == nil {
		if err := f.cache.Set(ctx, key, data, f.ttl); err != nil {
			f.log.Warn().Err(err).Str("key", key).Msg("cache write failed")
		}
	}
	return bars, nil
}
