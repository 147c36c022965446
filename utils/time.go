package utils

import (
	"fmt"
	"strings"
	"time"
)

// FormatDuration keeps millisecond precision below a minute and drops seconds
// above it, e.g. "250ms", "1.5s", "1h 30m", "2d 0h 5m".
func FormatDuration(duration time.Duration) string {
	if duration < time.Millisecond {
		return duration.String()
	}

	if duration < time.Minute {
		return duration.Round(time.Millisecond).String()
	}

	days := int(duration / (24 * time.Hour))
	hours := int(duration % (24 * time.Hour) / time.Hour)
	minutes := int(duration % time.Hour / time.Minute)

	var parts []string

	if days > 0 {
		parts = append(parts, fmt.Sprintf("%dd", days))
	}

	if days > 0 || hours > 0 {
		parts = append(parts, fmt.Sprintf("%dh", hours))
	}

	parts = append(parts, fmt.Sprintf("%dm", minutes))

	return strings.Join(parts, " ")
}
