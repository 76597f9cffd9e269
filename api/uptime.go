package api

import (
	"fmt"
	"strings"
	"time"
)

// humanUptime renders a duration as "1d 2h 3m 4s", omitting leading zero
// units. Seconds are always present.
func humanUptime(d time.Duration) string {
	secs := int(d.Seconds())
	if secs < 0 {
		secs = 0
	}

	days := secs / 86400
	secs %= 86400
	hours := secs / 3600
	secs %= 3600
	mins := secs / 60
	secs %= 60

	var parts []string
	if days > 0 {
		parts = append(parts, fmt.Sprintf("%dd", days))
	}
	if hours > 0 {
		parts = append(parts, fmt.Sprintf("%dh", hours))
	}
	if mins > 0 {
		parts = append(parts, fmt.Sprintf("%dm", mins))
	}
	parts = append(parts, fmt.Sprintf("%ds", secs))
	return strings.Join(parts, " ")
}
