package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"WedgeSentinel/internal/model"
)

// RESTFetcher reads klines from any Binance-compatible REST endpoint,
// e.g. https://fapi.asterdex.com/fapi/v1 or https://api.binance.com/api/v3.
type RESTFetcher struct {
	BaseURL string
	APIKey  string
	Client  *http.Client
}

// NewRESTFetcher creates a new fetcher with optional proxy support.
func NewRESTFetcher(baseURL, apiKey, proxyURL string) *RESTFetcher {
	return &RESTFetcher{
		BaseURL: strings.TrimRight(baseURL, "/"),
		APIKey:  apiKey,
		Client:  newHTTPClient(proxyURL, 30*time.Second),
	}
}

func (f *RESTFetcher) Name() string { return "rest" }

func (f *RESTFetcher) FetchBars(ctx context.Context, symbol, interval string, limit int) ([]model.OHLCV, error) {
	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("interval", interval)
	q.Set("limit", strconv.Itoa(limit))
	endpoint := f.BaseURL + "/klines?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	if f.APIKey != "" {
		req.Header.Set("X-MBX-APIKEY", f.APIKey)
	}
	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch klines: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("fetch klines: status %d, body: %s", resp.StatusCode, string(body))
	}

	// Rows are mixed arrays: [openTime, "open", "high", "low", "close", "volume", closeTime, ...].
	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	var rows [][]json.Number
	if err := dec.Decode(&rows); err != nil {
		return nil, fmt.Errorf("decode klines: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("fetch klines %s %s: %w", symbol, interval, ErrNoData)
	}

	bars := make([]model.OHLCV, 0, len(rows))
	for _, row := range rows {
		if len(row) < 6 {
			continue
		}
		bar, err := rowToBar(row)
		if err != nil {
			return nil, fmt.Errorf("decode klines: %w", err)
		}
		bars = append(bars, bar)
	}
	sort.Slice(bars, func(i, j int) bool { return bars[i].Time.Before(bars[j].Time) })
	return trimTail(bars, limit), nil
}

func rowToBar(row []json.Number) (model.OHLCV, error) {
	ms, err := row[0].Int64()
	if err != nil {
		return model.OHLCV{}, fmt.Errorf("open time %q: %w", row[0], err)
	}
	vals := make([]float64, 5)
	for i := range vals {
		v, err := row[i+1].Float64()
		if err != nil {
			return model.OHLCV{}, fmt.Errorf("field %d %q: %w", i+1, row[i+1], err)
		}
		vals[i] = v
	}
	return model.OHLCV{
		Time:   time.UnixMilli(ms).UTC(),
		Open:   vals[0],
		High:   vals[1],
		Low:    vals[2],
		Close:  vals[3],
		Volume: vals[4],
	}, nil
}
