package types

import (
	"fmt"
	"math"
	"time"
)

// maxSeconds is the largest whole-second count a time.Duration can hold
const maxSeconds = math.MaxInt64 / int64(time.Second)

// FormatHHMMSS renders d floored to whole seconds as HH:MM:SS. Hours are not
// wrapped at 24. Negative durations render as 00:00:00.
func FormatHHMMSS(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int64(d / time.Second)
	hours := total / 3600
	minutes := (total % 3600) / 60
	seconds := total % 60
	return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, seconds)
}

// Seconds converts a whole number of seconds to a duration. Counts outside
// the range of time.Duration saturate instead of wrapping.
func Seconds(n int64) time.Duration {
	switch {
	case n > maxSeconds:
		n = maxSeconds
	case n < -maxSeconds:
		n = -maxSeconds
	}
	return time.Duration(n) * time.Second
}

// Elapsed returns end - start, saturating at the int64 range.
func Elapsed(start, end int64) int64 {
	diff := end - start
	if (end >= 0) != (start >= 0) && (diff >= 0) != (end >= 0) {
		if end >= 0 {
			return math.MaxInt64
		}
		return math.MinInt64
	}
	return diff
}
