package presenter

import (
	"fmt"
	"math"
	"time"
)

// FormatElapsed renders a gap between two events: "750ms", "4.50s", "2m 5s".
func FormatElapsed(ms int64) string {
	switch {
	case ms < 1000:
		return fmt.Sprintf("%dms", ms)
	case ms < 60000:
		return fmt.Sprintf("%.2fs", float64(ms)/1000)
	default:
		minutes := ms / 60000
		seconds := math.Round(float64(ms%60000) / 1000)
		return fmt.Sprintf("%dm %.0fs", minutes, seconds)
	}
}

// FormatTimestamp renders an epoch-millisecond time as a wall clock in loc.
func FormatTimestamp(ms int64, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	return time.UnixMilli(ms).In(loc).Format("15:04:05")
}
