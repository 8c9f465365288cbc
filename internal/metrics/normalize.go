// Package metrics converts the compact engagement counts X renders in the UI
// ("1.2K", "3M", "12,345") into plain integers.
package metrics

import (
	"strconv"
	"strings"
)

// Normalize converts an abbreviated metric string to an integer.
// Thousands separators are stripped, a trailing K or M suffix scales the
// value, and fractional results are truncated toward zero ("1.2K" -> 1200).
// Empty or unparseable input yields 0; Normalize never fails.
func Normalize(s string) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	s = strings.ReplaceAll(s, ",", "")

	multiplier := 1.0
	switch {
	case strings.HasSuffix(strings.ToUpper(s), "K"):
		multiplier = 1_000
		s = s[:len(s)-1]
	case strings.HasSuffix(strings.ToUpper(s), "M"):
		multiplier = 1_000_000
		s = s[:len(s)-1]
	}

	value, err := strconv.ParseFloat(s, 64)
	if err != nil || value < 0 {
		return 0
	}

	return int(value * multiplier)
}
