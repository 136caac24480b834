// Package utils holds the small formatting helpers shared by the CLI,
// reports and the web UI.
package utils

import (
	"fmt"
	"time"
)

// Elapsed renders d in one rounded-down unit: seconds below a minute,
// minutes below two hours, hours below two days, then days. The sign is
// dropped.
func Elapsed(d time.Duration) string {
	if d < 0 {
		d = -d
	}
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int64(d/time.Second))
	case d < 2*time.Hour:
		return fmt.Sprintf("%dm", int64(d/time.Minute))
	case d < 48*time.Hour:
		return fmt.Sprintf("%dh", int64(d/time.Hour))
	default:
		return fmt.Sprintf("%dd", int64(d/(24*time.Hour)))
	}
}

// Ago renders how long before now t was. A zero t renders as "-".
func Ago(t, now time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return Elapsed(now.Sub(t)) + " ago"
}
