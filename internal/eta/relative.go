package eta

import (
	"fmt"
	"time"
)

// UnknownTime is returned for zero or unparseable timestamps.
const UnknownTime = "unknown time"

const (
	day   = 24 * time.Hour
	month = 30 * day
)

// FormatRelativeTime returns a bucketed human string for how long ago ts was,
// relative to now: "Ns ago" under a minute, then "Nm ago", "Nh ago", "Nd ago"
// and "Nmo ago". Future timestamps clamp to "0s ago".
func FormatRelativeTime(ts, now time.Time) string {
	if ts.IsZero() {
		return UnknownTime
	}

	elapsed := now.Sub(ts)
	if elapsed < 0 {
		elapsed = 0
	}

	switch {
	case elapsed < time.Minute:
		return fmt.Sprintf("%ds ago", int(elapsed.Seconds()))
	case elapsed < time.Hour:
		return fmt.Sprintf("%dm ago", int(elapsed.Minutes()))
	case elapsed < day:
		return fmt.Sprintf("%dh ago", int(elapsed.Hours()))
	case elapsed < month:
		return fmt.Sprintf("%dd ago", int(elapsed/day))
	default:
		return fmt.Sprintf("%dmo ago", int(elapsed/month))
	}
}

// FormatRelativeTimestamp parses an RFC 3339 timestamp string and formats it
// relative to now. Unparseable input yields UnknownTime rather than an error.
func FormatRelativeTimestamp(value string, now time.Time) string {
	ts, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return UnknownTime
	}
	return FormatRelativeTime(ts, now)
}
