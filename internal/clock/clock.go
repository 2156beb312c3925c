// Package clock provides the wall-clock abstraction the demo harness uses
// for its status line ("reparsed 5m ago"), separate from the engine's own
// Host.Now, which drives scheduling rather than display.
package clock

import (
	"fmt"
	"time"
)

// Clock provides the current time. Use RealClock for the demo binary and
// a fixed-time stub in tests.
type Clock interface {
	Now() time.Time
}

// RealClock returns the actual current time.
type RealClock struct{}

// Now returns the current time.
func (RealClock) Now() time.Time { return time.Now() }

// FormatRelativeTimeFrom returns a human-friendly relative timestamp
// relative to the given reference time. Examples: "now", "5m ago", "3h
// ago", "2d ago".
func FormatRelativeTimeFrom(t, now time.Time) string {
	d := now.Sub(t)
	if d < 0 {
		return "now"
	}

	switch {
	case d < time.Minute:
		return "now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	case d < 7*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	default:
		return fmt.Sprintf("%dw ago", int(d.Hours()/(24*7)))
	}
}
