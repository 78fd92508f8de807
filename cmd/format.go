package cmd

import (
	"time"
)

// formatTimestamp formats a time in UK format in UTC: "25 Jul 2024 14:03:00 UTC"
func formatTimestamp(t time.Time) string {
	return t.UTC().Format("2 Jan 2006 15:04:05 MST")
}
