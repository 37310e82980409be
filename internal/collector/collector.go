package collector

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sourcegraph/conc/pool"

	"WedgeSentinel/internal/model"
)

// MockFetcher returns controllable fixed data for development and testing.
// Windows are keyed by "SYMBOL|interval"; Errors likewise.
type MockFetcher struct {
	Price   float64
	Windows map[string][]model.OHLCV
	Errors  map[string]error

	mu    sync.Mutex
	calls []string
}

func (m *MockFetcher) Name() string { return "mock" }

// MockKey builds the lookup key used by MockFetcher.
func MockKey(symbol, interval string) string { return symbol + "|" + interval }

func (m *MockFetcher) FetchBars(ctx context.Context, symbol, interval string, limit int) ([]model.OHLCV, error) {
	key := MockKey(symbol, interval)
	m.mu.Lock()
	m.calls = append(m.calls, key)
	m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err, ok := m.Errors[key]; ok {
		return nil, err
	}
	if bars, ok := m.Windows[key]; ok {
		return trimTail(bars, limit), nil
	}
	price := m.Price
	if price == 0 {
		price = 100
	}
	return generateMockBars(price, limit), nil
}

// Calls returns the keys requested so far, in call order.
func (m *MockFetcher) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

// generateMockBars returns a gently rising channel with parallel bounds.
func generateMockBars(basePrice float64, count int) []model.OHLCV {
	bars := make([]model.OHLCV, count)
	now := time.Now().UTC().Truncate(time.Hour)
	for i := 0; i < count; i++ {
		p := basePrice * (1 + float64(i-count/2)*0.001)
		bars[i] = model.OHLCV{
			Time:   now.Add(-time.Duration(count-i) * time.Hour),
			Open:   p - basePrice*0.001,
			High:   p + basePrice*0.005,
			Low:    p - basePrice*0.005,
			Close:  p,
			Volume: 1000000,
		}
	}
	return bars
}

// Result is the outcome of fetching one unit.
type Result struct {
	Unit      model.Unit
	Bars      []model.OHLCV
	Err       error
	Duration  time.Duration
	FetchedAt time.Time
}

// Collector fetches windows for many units with bounded concurrency.
type Collector struct {
	Fetcher Fetcher
	Limit   int
	Workers int
}

// NewCollector creates a new Collector. workers below 1 means sequential.
func NewCollector(fetcher Fetcher, limit, workers int) *Collector {
	if workers < 1 {
		workers = 1
	}
	return &Collector{Fetcher: fetcher, Limit: limit, Workers: workers}
}

// Collect fetches a single unit.
func (c *Collector) Collect(ctx context.Context, u model.Unit) Result {
	start := time.Now()
	bars, err := c.Fetcher.FetchBars(ctx, u.Symbol, u.Interval, c.Limit)
	if err != nil {
		err = fmt.Errorf("fetch %s from %s: %w", u, c.Fetcher.Name(), err)
	}
	return Result{
		Unit:      u,
		Bars:      bars,
		Err:       err,
		Duration:  time.Since(start),
		FetchedAt: time.Now(),
	}
}

// CollectAll fetches every unit. Results are in the order of units and each
// carries its own error, so one failure never affects the others.
func (c *Collector) CollectAll(ctx context.Context, units []model.Unit) []Result {
	results := make([]Result, len(units))
	if c.Workers == 1 {
		for i, u := range units {
			results[i] = c.Collect(ctx, u)
		}
		return results
	}

	p := pool.New().WithMaxGoroutines(c.Workers)
	for i, u := range units {
		i, u := i, u
		p.Go(func() {
			results[i] = c.Collect(ctx, u)
		})
	}
	p.Wait()
	return results
}
