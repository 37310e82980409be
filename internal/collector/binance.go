package collector

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/adshao/go-binance/v2"

	"WedgeSentinel/internal/model"
)

// BinanceFetcher reads spot klines through the Binance SDK.
type BinanceFetcher struct {
	Client *binance.Client
}

// NewBinanceFetcher creates a fetcher for public market data. baseURL
// overrides the SDK's default endpoint when set.
func NewBinanceFetcher(baseURL, proxyURL string) *BinanceFetcher {
	client := binance.NewClient("", "")
	client.HTTPClient = newHTTPClient(proxyURL, 30*time.Second)
	if baseURL != "" {
		client.BaseURL = baseURL
	}
	return &BinanceFetcher{Client: client}
}

func (f *BinanceFetcher) Name() string { return "binance" }

func (f *BinanceFetcher) FetchBars(ctx context.Context, symbol, interval string, limit int) ([]model.OHLCV, error) {
	klines, err := f.Client.NewKlinesService().
		Symbol(symbol).
		Interval(interval).
		Limit(limit).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("binance klines %s %s: %w", symbol, interval, err)
	}
	if len(klines) == 0 {
		return nil, fmt.Errorf("binance klines %s %s: %w", symbol, interval, ErrNoData)
	}

	bars := make([]model.OHLCV, 0, len(klines))
	for _, k := range klines {
		bar, err := klineToBar(k)
		if err != nil {
			return nil, fmt.Errorf("binance klines %s %s: %w", symbol, interval, err)
		}
		bars = append(bars, bar)
	}
	return bars, nil
}

func klineToBar(k *binance.Kline) (model.OHLCV, error) {
	fields := []string{k.Open, k.High, k.Low, k.Close, k.Volume}
	vals := make([]float64, len(fields))
	for i, s := range fields {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return model.OHLCV{}, fmt.Errorf("parse kline field %q: %w", s, err)
		}
		vals[i] = v
	}
	return model.OHLCV{
		Time:   time.UnixMilli(k.OpenTime).UTC(),
		Open:   vals[0],
		High:   vals[1],
		Low:    vals[2],
		Close:  vals[3],
		Volume: vals[4],
	}, nil
}
