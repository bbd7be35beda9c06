// Package units formats video-time quantities for human-facing output.
package units

import (
	"fmt"
	"math"
)

// FormatClock renders video seconds as HH:MM:SS.
func FormatClock(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	total := int(math.Floor(seconds))
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

// FormatDuration renders a duration in seconds as "Xm Ys".
func FormatDuration(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	total := int(math.Floor(seconds))
	return fmt.Sprintf("%dm %ds", total/60, total%60)
}

// Minutes converts seconds to fractional minutes for chart axes.
func Minutes(seconds float64) float64 { return seconds / 60.0 }
