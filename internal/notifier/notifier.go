// Package notifier delivers breakout alerts and scan reports.
package notifier

import (
	"context"
	"errors"
	"fmt"

	"WedgeSentinel/internal/model"
)

// Alert is one message, optionally carrying a PNG chart.
type Alert struct {
	Title     string
	Text      string
	Image     []byte
	ImageName string
}

// Notifier delivers alerts.
type Notifier interface {
	Notify(ctx context.Context, a Alert) error
}

// NewBreakoutAlert builds the alert for a detection. chart may be nil.
func NewBreakoutAlert(det *model.Detection, chart []byte) Alert {
	a := Alert{
		Title: det.Unit.String(),
		Text:  FormatBreakoutAlert(det),
		Image: chart,
	}
	if len(chart) > 0 {
		a.ImageName = fmt.Sprintf("%s_%s.png", det.Unit.Symbol, det.Unit.Interval)
	}
	return a
}

// MultiNotifier delivers to every child. One failing child does not stop
// delivery to the rest.
type MultiNotifier struct {
	children []Notifier
}

// NewMultiNotifier fans out to the given notifiers, skipping nils.
func NewMultiNotifier(children ...Notifier) *MultiNotifier {
	m := &MultiNotifier{}
	for _, c := range children {
		if c != nil {
			m.children = append(m.children, c)
		}
	}
	return m
}

// Len returns the number of children.
func (m *MultiNotifier) Len() int { return len(m.children) }

func (m *MultiNotifier) Notify(ctx context.Context, a Alert) error {
	var errs []error
	for _, c := range m.children {
		if err := c.Notify(ctx, a); err != nil {
			errs = append(errs, fmt.Errorf("%T: %w", c, err))
		}
	}
	return errors.Join(errs...)
}
