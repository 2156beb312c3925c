package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFormatRelativeTimeFrom(t *testing.T) {
	now := time.Date(2025, 12, 13, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		input    time.Time
		expected string
	}{
		{"now - exact", now, "now"},
		{"now - 30 seconds ago", now.Add(-30 * time.Second), "now"},
		{"1m ago - boundary", now.Add(-1 * time.Minute), "1m ago"},
		{"5m ago", now.Add(-5 * time.Minute), "5m ago"},
		{"1h ago - boundary", now.Add(-1 * time.Hour), "1h ago"},
		{"3h ago", now.Add(-3 * time.Hour), "3h ago"},
		{"1d ago - boundary", now.Add(-24 * time.Hour), "1d ago"},
		{"2d ago", now.Add(-48 * time.Hour), "2d ago"},
		{"1w ago - boundary", now.Add(-7 * 24 * time.Hour), "1w ago"},
		{"2w ago", now.Add(-14 * 24 * time.Hour), "2w ago"},
		{"future - 1h from now", now.Add(1 * time.Hour), "now"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FormatRelativeTimeFrom(tt.input, now)
			require.Equal(t, tt.expected, got)
		})
	}
}

func TestRealClock_NowIsCurrent(t *testing.T) {
	before := time.Now()
	got := RealClock{}.Now()
	after := time.Now()

	require.False(t, got.Before(before))
	require.False(t, got.After(after))
}
