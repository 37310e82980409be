package model

import "time"

// Failure stages for a unit of work.
const (
	StageFetch  = "fetch"
	StageGuard  = "guard"
	StageRender = "render"
	StageNotify = "notify"
)

// UnitError records a failure isolated to a single unit.
type UnitError struct {
	Unit  Unit
	Stage string
	Err   error
}

func (e *UnitError) Error() string {
	return e.Stage + " " + e.Unit.String() + ": " + e.Err.Error()
}

func (e *UnitError) Unwrap() error { return e.Err }

// ScanReport summarises one scan cycle.
type ScanReport struct {
	CycleID   string
	StartedAt time.Time
	Duration  time.Duration
	Units     int
	Failures  int
	Patterns  int
	Breakouts int
	Alerts    int
	Errors    []*UnitError
}
