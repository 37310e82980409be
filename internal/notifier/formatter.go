package notifier

import (
	"fmt"
	"math"
	"strings"
	"time"

	"WedgeSentinel/internal/calculator"
	"WedgeSentinel/internal/model"
)

const rsiPeriod = 14

// formatPrice keeps a sensible number of digits across BTC-sized and
// sub-cent prices.
func formatPrice(v float64) string {
	switch a := math.Abs(v); {
	case a >= 1000:
		return fmt.Sprintf("%.2f", v)
	case a >= 1:
		return fmt.Sprintf("%.4f", v)
	default:
		return fmt.Sprintf("%.6g", v)
	}
}

// FormatBreakoutAlert formats the caption for a breakout detection.
func FormatBreakoutAlert(det *model.Detection) string {
	v := det.Verdict
	var b strings.Builder

	icon := "📉"
	if v.Direction == model.DirectionUp {
		icon = "📈"
	}
	b.WriteString(fmt.Sprintf("%s <b>Wedge Breakout detected!</b>\n", icon))
	b.WriteString(fmt.Sprintf("Symbol: %s\n", det.Unit.Symbol))
	b.WriteString(fmt.Sprintf("Interval: %s\n", strings.ToUpper(det.Unit.Interval)))
	b.WriteString(fmt.Sprintf("Direction: %s\n", strings.ToUpper(string(v.Direction))))
	b.WriteString(fmt.Sprintf("Breakout Price: %s\n\n", formatPrice(v.LastClose)))

	b.WriteString(fmt.Sprintf("Resistance: %s (slope %+.4g/bar)\n", formatPrice(v.ExpectedHigh), v.HighLine.Slope))
	b.WriteString(fmt.Sprintf("Support: %s (slope %+.4g/bar)\n", formatPrice(v.ExpectedLow), v.LowLine.Slope))

	if rsi, err := calculator.CalculateRSI(det.Bars, rsiPeriod); err == nil && len(det.Bars) > rsiPeriod {
		b.WriteString(fmt.Sprintf("RSI(%d): %.1f\n", rsiPeriod, rsi))
	}
	if hi, lo, err := calculator.WindowRange(det.Bars); err == nil {
		pos, _ := calculator.RangePosition(v.LastClose, hi, lo)
		b.WriteString(fmt.Sprintf("Window: %s - %s over %d bars (at %.0f%%)\n",
			formatPrice(lo), formatPrice(hi), len(det.Bars), pos*100))
	}
	if !det.FetchedAt.IsZero() {
		b.WriteString(fmt.Sprintf("\n%s UTC", det.FetchedAt.UTC().Format("2006-01-02 15:04")))
	}
	return strings.TrimRight(b.String(), "\n")
}

// maxListedFailures caps the failure list in a scan report.
const maxListedFailures = 10

// FormatScanReport formats a cycle summary for display.
func FormatScanReport(rep *model.ScanReport) string {
	if rep == nil {
		return "No scan has completed yet."
	}
	var b strings.Builder
	b.WriteString(fmt.Sprintf("🔎 <b>Scan report</b> | %s\n\n", rep.StartedAt.UTC().Format("2006-01-02 15:04")))
	b.WriteString(fmt.Sprintf("Cycle: %s\n", rep.CycleID))
	b.WriteString(fmt.Sprintf("Units: %d | Failures: %d\n", rep.Units, rep.Failures))
	b.WriteString(fmt.Sprintf("Wedges: %d | Breakouts: %d | Alerts: %d\n", rep.Patterns, rep.Breakouts, rep.Alerts))
	b.WriteString(fmt.Sprintf("Duration: %s\n", rep.Duration.Round(10*time.Millisecond)))

	if len(rep.Errors) > 0 {
		b.WriteString("\n⚠️ <b>Failures:</b>\n")
		for i, e := range rep.Errors {
			if i == maxListedFailures {
				b.WriteString(fmt.Sprintf("  ... and %d more\n", len(rep.Errors)-maxListedFailures))
				break
			}
			b.WriteString(fmt.Sprintf("  %s %s\n", e.Stage, e.Unit))
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// FormatSymbols lists the watch list and timeframes.
func FormatSymbols(symbols, timeframes []string) string {
	return fmt.Sprintf("👀 <b>Watching %d symbols</b> on %s\n\n%s",
		len(symbols), strings.Join(timeframes, ", "), strings.Join(symbols, ", "))
}

// FormatHelp returns the command list.
func FormatHelp() string {
	var b strings.Builder
	b.WriteString("🤖 <b>WedgeSentinel</b>\n\n")
	b.WriteString("/scan - run a scan now and report\n")
	b.WriteString("/status - show the last scan report\n")
	b.WriteString("/symbols - list watched symbols and timeframes\n")
	b.WriteString("/help - show this message")
	return b.String()
}
