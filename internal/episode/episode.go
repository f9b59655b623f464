// Package episode holds the label math for ani-cli episode lists: comparing
// and ordering opaque episode labels, deriving previous/replay targets from a
// last-seen label, and choosing between per-mode label variants. Labels are
// strings that may or may not parse as numbers ("1", "13.5", "OVA"), so every
// operation carries a numeric fast path and a string fallback.
package episode

import (
	"errors"
	"math"
	"sort"
	"strconv"
	"strings"
)

// ErrNoPrevious reports that a show's stored episode has nothing before it:
// stepping back is impossible, not broken.
var ErrNoPrevious = errors.New("no previous episode available")

// labels closer than this are the same episode ("1" vs "1.0").
const numericTolerance = 1e-6

// parseNumber parses a label as a float, trimming surrounding whitespace.
func parseNumber(label string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(label), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// parseWhole parses a label as a non-negative integer.
func parseWhole(label string) (int, bool) {
	n, err := strconv.ParseInt(strings.TrimSpace(label), 10, 32)
	if err != nil || n < 0 {
		return 0, false
	}
	return int(n), true
}

func isWholeValued(v float64) bool {
	return math.Abs(v-math.Round(v)) < numericTolerance
}

// integerLabel renders a non-negative float as an integer label.
func integerLabel(v float64) (string, bool) {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return "", false
	}
	return strconv.FormatInt(int64(math.Round(v)), 10), true
}

// LabelsEqual reports whether two labels denote the same episode: identical
// after trimming, or both numeric and within tolerance.
func LabelsEqual(a, b string) bool {
	if strings.TrimSpace(a) == strings.TrimSpace(b) {
		return true
	}
	av, aok := parseNumber(a)
	bv, bok := parseNumber(b)
	return aok && bok && math.Abs(av-bv) < numericTolerance
}

// Compare orders labels for catalog sorting: numeric labels sort before
// non-numeric ones and among themselves numerically; two non-numeric labels
// fall back to lexical order.
func Compare(a, b string) int {
	av, aok := parseNumber(a)
	bv, bok := parseNumber(b)
	switch {
	case aok && bok:
		switch {
		case av < bv:
			return -1
		case av > bv:
			return 1
		}
		return 0
	case aok:
		return -1
	case bok:
		return 1
	}
	return strings.Compare(a, b)
}

// SortedUnique returns labels sorted with Compare and collapsed so that
// adjacent equal labels (per LabelsEqual) keep only their first occurrence.
func SortedUnique(labels []string) []string {
	if len(labels) == 0 {
		return nil
	}
	out := make([]string, len(labels))
	copy(out, labels)
	sort.SliceStable(out, func(i, j int) bool { return Compare(out[i], out[j]) < 0 })
	kept := out[:1]
	for _, l := range out[1:] {
		if !LabelsEqual(kept[len(kept)-1], l) {
			kept = append(kept, l)
		}
	}
	return kept
}

// indexOf finds the first catalog position equal to the label.
func indexOf(list []string, label string) (int, bool) {
	for i, l := range list {
		if LabelsEqual(l, label) {
			return i, true
		}
	}
	return 0, false
}

// Ordinal returns the 1-based position of the first catalog entry equal to
// the label.
func Ordinal(label string, list []string) (int, bool) {
	i, ok := indexOf(list, label)
	if !ok {
		return 0, false
	}
	return i + 1, true
}

// HasNext reports whether an episode after last is believed to exist. With a
// catalog the answer is positional; without one it compares an integer label
// against the total-episode hint, assuming true when the hint is unknown.
func HasNext(last string, total int, list []string) bool {
	if len(list) > 0 {
		if i, ok := indexOf(list, last); ok {
			return i+1 < len(list)
		}
	}
	if n, ok := parseWhole(last); ok && total > 0 {
		return n < total
	}
	return true
}

// HasPrevious reports whether a previous episode target exists for last.
func HasPrevious(last string, list []string) bool {
	_, ok := PreviousTarget(last, list)
	return ok
}

// PreviousTarget returns the episode label to play for a "previous" action.
// With a catalog it is the entry before last's position. Without one the
// label must be numeric and positive: integer-valued labels step down by one,
// fractional labels floor to the episode they interrupt ("13.5" -> "13").
func PreviousTarget(last string, list []string) (string, bool) {
	if len(list) > 0 {
		i, ok := indexOf(list, last)
		if !ok || i == 0 {
			return "", false
		}
		return list[i-1], true
	}
	v, ok := parseNumber(last)
	if !ok || v <= 0 {
		return "", false
	}
	if isWholeValued(v) {
		return integerLabel(v - 1)
	}
	return integerLabel(math.Floor(v))
}

// PreviousSeed returns the label to seed a continue-mode run so the external
// program plays the previous episode, i.e. the entry two positions back.
func PreviousSeed(last string, list []string) (string, bool) {
	if len(list) > 0 {
		i, ok := indexOf(list, last)
		if !ok || i < 2 {
			return "", false
		}
		return list[i-2], true
	}
	target, ok := PreviousTarget(last, nil)
	if !ok {
		return "", false
	}
	v, ok := parseNumber(target)
	if !ok || v <= 1 {
		return "", false
	}
	return integerLabel(v - 1)
}

// ReplaySeed returns the label to seed a continue-mode run so the external
// program replays last, i.e. the entry immediately before it. Without a
// catalog the label must be an integer above 1; "0", "1" and decimals force
// the caller onto an explicit-episode plan.
func ReplaySeed(last string, list []string) (string, bool) {
	if len(list) > 0 {
		i, ok := indexOf(list, last)
		if !ok || i == 0 {
			return "", false
		}
		return list[i-1], true
	}
	n, ok := parseWhole(last)
	if !ok || n <= 1 {
		return "", false
	}
	return strconv.Itoa(n - 1), true
}

// ChooseVariant picks one episode-label list among per-mode variants. A
// variant whose length matches the total-episode hint exactly wins; otherwise
// the longest non-empty variant does, later variants winning length ties.
// Returns nil when every variant is empty.
func ChooseVariant(variants [][]string, total int) []string {
	if total > 0 {
		for _, v := range variants {
			if len(v) > 0 && len(v) == total {
				return v
			}
		}
	}
	var best []string
	for _, v := range variants {
		if len(v) > 0 && len(v) >= len(best) {
			best = v
		}
	}
	return best
}

// splitTotalAnnotation splits a stored title into its display part and the
// count from a trailing "(N episodes)" annotation. Only an exactly-formed
// numeric annotation is recognized; anything else leaves the title whole with
// a zero count. Zero also stands for "no usable hint" throughout.
func splitTotalAnnotation(title string) (string, int) {
	t := strings.TrimSpace(title)
	open := strings.LastIndex(t, "(")
	if open < 0 || !strings.HasSuffix(t, ")") {
		return t, 0
	}
	inner := strings.TrimSpace(t[open+1 : len(t)-1])
	count, found := strings.CutSuffix(inner, " episodes")
	if !found {
		return t, 0
	}
	n, err := strconv.ParseUint(strings.TrimSpace(count), 10, 32)
	if err != nil {
		return t, 0
	}
	return strings.TrimSpace(t[:open]), int(n)
}

// DisplayTitle returns the title without its "(N episodes)" annotation.
func DisplayTitle(title string) string {
	t, _ := splitTotalAnnotation(title)
	return t
}

// TotalHint extracts the episode count from a trailing "(N episodes)" title
// annotation. Zero means no usable hint.
func TotalHint(title string) int {
	_, n := splitTotalAnnotation(title)
	return n
}

// SanitizeTitle strips a trailing parenthesized annotation mentioning
// "episodes" for use as a search query. Looser than DisplayTitle on purpose:
// a mangled count would otherwise leak into the query and match nothing.
func SanitizeTitle(title string) string {
	t := strings.TrimSpace(title)
	open := strings.LastIndex(t, "(")
	if open >= 0 && strings.HasSuffix(t, ")") && strings.Contains(t[open:], "episodes") {
		return strings.TrimSpace(t[:open])
	}
	return t
}
