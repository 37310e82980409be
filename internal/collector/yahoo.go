package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"time"

	"WedgeSentinel/internal/model"
)

// YahooFetcher implements Fetcher using the Yahoo Finance chart API. It is
// meant for equity and index symbols that Binance does not list.
type YahooFetcher struct {
	BaseURL   string
	Client    *http.Client
	SymbolMap map[string]string // maps internal symbol to Yahoo ticker
}

// NewYahooFetcher creates a new Yahoo Finance fetcher.
func NewYahooFetcher(proxyURL string) *YahooFetcher {
	return &YahooFetcher{
		BaseURL: "https://query1.finance.yahoo.com",
		Client:  newHTTPClient(proxyURL, 30*time.Second),
		SymbolMap: map[string]string{
			"SPX500": "^GSPC",
			"SPX":    "^GSPC",
			"NDX":    "^NDX",
			"BTCUSD": "BTC-USD",
			"ETHUSD": "ETH-USD",
		},
	}
}

func (f *YahooFetcher) Name() string { return "yahoo" }

func (f *YahooFetcher) yahooSymbol(symbol string) string {
	if mapped, ok := f.SymbolMap[symbol]; ok {
		return mapped
	}
	return symbol
}

// yahooInterval maps an interval to the native Yahoo interval, the bucket
// width native bars are merged into (zero for none) and the bar length.
var yahooInterval = map[string]struct {
	native string
	group  time.Duration
	step   time.Duration
}{
	"15m": {"15m", 0, 15 * time.Minute},
	"30m": {"30m", 0, 30 * time.Minute},
	"1h":  {"60m", 0, time.Hour},
	"4h":  {"60m", 4 * time.Hour, 4 * time.Hour},
	"1d":  {"1d", 0, 24 * time.Hour},
	"1w":  {"1wk", 0, 7 * 24 * time.Hour},
}

// yahooRanges are the ranges the chart API accepts, shortest first.
var yahooRanges = []struct {
	name string
	span time.Duration
}{
	{"5d", 5 * 24 * time.Hour},
	{"1mo", 30 * 24 * time.Hour},
	{"3mo", 90 * 24 * time.Hour},
	{"6mo", 180 * 24 * time.Hour},
	{"1y", 365 * 24 * time.Hour},
	{"2y", 730 * 24 * time.Hour},
	{"5y", 5 * 365 * 24 * time.Hour},
}

// pickRange returns the shortest range covering limit bars of step. Markets
// trade roughly a third of wall-clock hours, so intraday spans are tripled.
func pickRange(step time.Duration, limit int) string {
	span := step * time.Duration(limit)
	if step < 24*time.Hour {
		span *= 3
	} else {
		span = span * 7 / 5
	}
	for _, r := range yahooRanges {
		if r.span >= span {
			return r.name
		}
	}
	return "max"
}

// yahooChart is the response structure from Yahoo Finance chart API.
type yahooChart struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*float64 `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

func at(vals []*float64, i int) float64 {
	if i >= len(vals) || vals[i] == nil {
		return 0
	}
	return *vals[i]
}

// present reports whether every series has a value at i.
func present(i int, series ...[]*float64) bool {
	for _, vals := range series {
		if i >= len(vals) || vals[i] == nil {
			return false
		}
	}
	return true
}

func (f *YahooFetcher) FetchBars(ctx context.Context, symbol, interval string, limit int) ([]model.OHLCV, error) {
	iv, ok := yahooInterval[interval]
	if !ok {
		return nil, fmt.Errorf("yahoo: unsupported interval %q", interval)
	}

	u := fmt.Sprintf("%s/v8/finance/chart/%s?interval=%s&range=%s",
		f.BaseURL, url.PathEscape(f.yahooSymbol(symbol)), iv.native, pickRange(iv.step, limit))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("yahoo fetch: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("yahoo read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("yahoo: status %d, body: %s", resp.StatusCode, string(body))
	}

	var chart yahooChart
	if err := json.Unmarshal(body, &chart); err != nil {
		return nil, fmt.Errorf("yahoo decode: %w", err)
	}
	if chart.Chart.Error != nil {
		return nil, fmt.Errorf("yahoo api error: %s", chart.Chart.Error.Description)
	}
	if len(chart.Chart.Result) == 0 || len(chart.Chart.Result[0].Timestamp) == 0 ||
		len(chart.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, fmt.Errorf("yahoo %s: %w", symbol, ErrNoData)
	}

	result := chart.Chart.Result[0]
	quote := result.Indicators.Quote[0]
	bars := make([]model.OHLCV, 0, len(result.Timestamp))

	for i, ts := range result.Timestamp {
		// Halts and the live bar often carry partial nulls.
		if !present(i, quote.Open, quote.High, quote.Low, quote.Close) {
			continue
		}
		bars = append(bars, model.OHLCV{
			Time:   time.Unix(ts, 0).UTC(),
			Open:   *quote.Open[i],
			High:   *quote.High[i],
			Low:    *quote.Low[i],
			Close:  *quote.Close[i],
			Volume: at(quote.Volume, i),
		})
	}

	sort.Slice(bars, func(i, j int) bool { return bars[i].Time.Before(bars[j].Time) })
	if iv.group > 0 {
		bars = aggregateBars(bars, iv.group)
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("yahoo %s: %w", symbol, ErrNoData)
	}
	return trimTail(bars, limit), nil
}

// aggregateBars merges ascending bars into buckets of the given width,
// aligned to UTC.
func aggregateBars(bars []model.OHLCV, width time.Duration) []model.OHLCV {
	var out []model.OHLCV
	var cur model.OHLCV
	var curKey time.Time
	started := false

	for _, b := range bars {
		key := b.Time.UTC().Truncate(width)
		if !started || !key.Equal(curKey) {
			if started {
				out = append(out, cur)
			}
			cur = model.OHLCV{Time: key, Open: b.Open, High: b.High, Low: b.Low, Close: b.Close, Volume: b.Volume}
			curKey = key
			started = true
			continue
		}
		if b.High > cur.High {
			cur.High = b.High
		}
		if b.Low < cur.Low {
			cur.Low = b.Low
		}
		cur.Close = b.Close
		cur.Volume += b.Volume
	}
	if started {
		out = append(out, cur)
	}
	return out
}
