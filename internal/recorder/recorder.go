package recorder

import (
	"errors"

	"WedgeSentinel/internal/model"
)

// ErrNoScans is returned by LatestScan before the first cycle is recorded.
var ErrNoScans = errors.New("no scans recorded")

// Recorder keeps an operational log of scan cycles: counts and timings
// only, never alert content or verdicts.
type Recorder interface {
	RecordScan(report *model.ScanReport) error
	LatestScan() (*model.ScanReport, error)
	Close() error
}
