package analysis

import (
	"fmt"
	"math"
)

// TimeFormat selects how FormatTime renders offsets
type TimeFormat string

const (
	TimeFormatMinSec  TimeFormat = "min_sec"
	TimeFormatSeconds TimeFormat = "seconds"
)

// ParseTimeFormat accepts "min_sec" and "seconds"
func ParseTimeFormat(s string) (TimeFormat, error) {
	switch TimeFormat(s) {
	case TimeFormatMinSec, TimeFormatSeconds:
		return TimeFormat(s), nil
	default:
		return TimeFormatMinSec, fmt.Errorf("unknown time format %q (want %q or %q)", s, TimeFormatMinSec, TimeFormatSeconds)
	}
}

// FormatTime renders a time offset as "12.34s" or "m:ss.ss"
func FormatTime(seconds float64, format TimeFormat) string {
	if format == TimeFormatSeconds {
		return fmt.Sprintf("%.2fs", seconds)
	}

	mins := math.Floor(seconds / 60)
	secs := math.Mod(seconds, 60)
	pad := ""
	if secs < 10 {
		pad = "0"
	}
	return fmt.Sprintf("%.0f:%s%.2f", mins, pad, secs)
}

// Alignment is a coarse rating of a proximity score
type Alignment string

const (
	AlignmentStrong   Alignment = "strong"
	AlignmentModerate Alignment = "moderate"
	AlignmentWeak     Alignment = "weak"
)

// RateAlignment buckets a proximity score: below 5 is strong, below 15 moderate
func RateAlignment(score float64) Alignment {
	switch {
	case score < 5:
		return AlignmentStrong
	case score < 15:
		return AlignmentModerate
	default:
		return AlignmentWeak
	}
}
