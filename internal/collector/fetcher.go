package collector

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"time"

	"WedgeSentinel/internal/model"
)

// ErrNoData is returned when a source answers without any bars.
var ErrNoData = errors.New("no bars returned")

// Fetcher defines the interface for fetching candle windows.
//
// FetchBars returns up to limit bars for symbol at interval, ascending in
// time with the most recent bar last. Fewer bars are allowed near the start
// of a symbol's history.
type Fetcher interface {
	FetchBars(ctx context.Context, symbol, interval string, limit int) ([]model.OHLCV, error)
	Name() string
}

// newHTTPClient returns a client with the given timeout and optional proxy.
func newHTTPClient(proxyURL string, timeout time.Duration) *http.Client {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}

// trimTail keeps at most the last limit bars.
func trimTail(bars []model.OHLCV, limit int) []model.OHLCV {
	if limit > 0 && len(bars) > limit {
		return bars[len(bars)-limit:]
	}
	return bars
}
