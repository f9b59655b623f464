package episode

import (
	"fmt"
	"math"
	"time"
)

// ProgressPosition maps a last-seen label to a 1-based position for progress
// display, clamped to total. Catalog position wins when the label is listed;
// otherwise the label's numeric ceiling is used. Zero totals and non-numeric
// unlisted labels have no position.
func ProgressPosition(last string, total int, list []string) (int, bool) {
	if total <= 0 {
		return 0, false
	}
	if ord, ok := Ordinal(last, list); ok {
		if ord > total {
			ord = total
		}
		return ord, true
	}
	v, ok := parseNumber(last)
	if !ok || v < 0 {
		return 0, false
	}
	pos := int(math.Ceil(v))
	if pos > total {
		pos = total
	}
	return pos, true
}

// GaugeRatio returns the filled fraction of a progress gauge for the show.
func GaugeRatio(last string, total int, list []string) (float64, bool) {
	pos, ok := ProgressPosition(last, total, list)
	if !ok {
		return 0, false
	}
	return float64(pos) / float64(total), true
}

// ProgressText renders a short human progress summary.
func ProgressText(last string, total int, list []string) string {
	if pos, ok := ProgressPosition(last, total, list); ok {
		return fmt.Sprintf("%d/%d", pos, total)
	}
	return "episode " + last
}

// TotalDisplay renders a total-episode count, "?" when unknown.
func TotalDisplay(total int) string {
	if total <= 0 {
		return "?"
	}
	return fmt.Sprintf("%d", total)
}

// Truncate shortens s to at most max runes, marking the cut with "...".
func Truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	if max <= 3 {
		return string(r[:max])
	}
	return string(r[:max-3]) + "..."
}

// FormatLastSeen renders an RFC3339 timestamp in local time as
// "2006-01-02 15:04", passing unparseable values through unchanged.
func FormatLastSeen(raw string) string {
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return raw
	}
	return t.Local().Format("2006-01-02 15:04")
}
