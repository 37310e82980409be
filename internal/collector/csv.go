package collector

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/gocarina/gocsv"

	"WedgeSentinel/internal/model"
)

// csvBar is one row of a bar file. open_time is unix milliseconds.
type csvBar struct {
	OpenTime int64   `csv:"open_time"`
	Open     float64 `csv:"open"`
	High     float64 `csv:"high"`
	Low      float64 `csv:"low"`
	Close    float64 `csv:"close"`
	Volume   float64 `csv:"volume"`
}

// CSVFetcher reads windows from <Dir>/<SYMBOL>_<interval>.csv files, for
// offline runs.
type CSVFetcher struct {
	Dir string
}

// NewCSVFetcher creates a fetcher rooted at dir.
func NewCSVFetcher(dir string) *CSVFetcher {
	return &CSVFetcher{Dir: dir}
}

func (f *CSVFetcher) Name() string { return "csv" }

// Path returns the file read for symbol and interval.
func (f *CSVFetcher) Path(symbol, interval string) string {
	return filepath.Join(f.Dir, fmt.Sprintf("%s_%s.csv", symbol, interval))
}

func (f *CSVFetcher) FetchBars(ctx context.Context, symbol, interval string, limit int) ([]model.OHLCV, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	file, err := os.Open(f.Path(symbol, interval))
	if err != nil {
		return nil, fmt.Errorf("open bar file: %w", err)
	}
	defer file.Close()

	var rows []*csvBar
	if err := gocsv.UnmarshalFile(file, &rows); err != nil {
		return nil, fmt.Errorf("parse bar file %s: %w", file.Name(), err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("bar file %s: %w", file.Name(), ErrNoData)
	}

	bars := make([]model.OHLCV, len(rows))
	for i, r := range rows {
		bars[i] = model.OHLCV{
			Time:   time.UnixMilli(r.OpenTime).UTC(),
			Open:   r.Open,
			High:   r.High,
			Low:    r.Low,
			Close:  r.Close,
			Volume: r.Volume,
		}
	}
	sort.Slice(bars, func(i, j int) bool { return bars[i].Time.Before(bars[j].Time) })
	return trimTail(bars, limit), nil
}

// WriteCSV stores bars in the format CSVFetcher reads.
func WriteCSV(path string, bars []model.OHLCV) error {
	rows := make([]*csvBar, len(bars))
	for i, b := range bars {
		rows[i] = &csvBar{
			OpenTime: b.Time.UnixMilli(),
			Open:     b.Open,
			High:     b.High,
			Low:      b.Low,
			Close:    b.Close,
			Volume:   b.Volume,
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()
	return gocsv.MarshalFile(&rows, file)
}
