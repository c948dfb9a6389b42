// Package utils holds small formatting helpers shared by the CLI surfaces.
package utils

import (
	"fmt"
	"time"
)

// FormatRoundedUnit renders a second count in its largest sensible unit:
// seconds under a minute, minutes up to an hour, hours beyond.
func FormatRoundedUnit(seconds int64) string {
	if seconds < 0 {
		seconds = -seconds
	}
	switch {
	case seconds < 60:
		return fmt.Sprintf("%ds", seconds)
	case seconds <= 3600:
		return fmt.Sprintf("%dm", seconds/60)
	default:
		return fmt.Sprintf("%dh", seconds/3600)
	}
}

// FormatDuration is FormatRoundedUnit for a time.Duration.
func FormatDuration(d time.Duration) string {
	return FormatRoundedUnit(int64(d.Seconds()))
}
