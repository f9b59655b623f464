package history

import (
	"strconv"
	"strings"
	"time"
)

// journalLine is one parsed short-unix journal record.
type journalLine struct {
	ts  int64 // unix nanoseconds
	msg string
}

// parseJournalOutput parses short-unix journalctl output and keeps messages
// whose timestamp falls inside [startNS, endNS].
func parseJournalOutput(out string, startNS, endNS int64) []journalLine {
	var lines []journalLine
	for _, raw := range strings.Split(out, "\n") {
		l, ok := parseJournalLine(raw)
		if !ok {
			continue
		}
		if l.ts < startNS || l.ts > endNS {
			continue
		}
		lines = append(lines, l)
	}
	return lines
}

// parseJournalLine splits "<seconds>[.fractional] <host> <tag>[pid]: <msg>".
func parseJournalLine(raw string) (journalLine, bool) {
	line := strings.TrimSpace(raw)
	tsPart, rest, ok := strings.Cut(line, " ")
	if !ok {
		return journalLine{}, false
	}
	ns, ok := parseShortUnixNS(tsPart)
	if !ok {
		return journalLine{}, false
	}
	_, msg, ok := strings.Cut(rest, ": ")
	if !ok {
		return journalLine{}, false
	}
	msg = strings.TrimSpace(msg)
	if msg == "" {
		return journalLine{}, false
	}
	return journalLine{ts: ns, msg: msg}, true
}

// parseShortUnixNS parses a short-unix timestamp ("1723473920.123456") into
// unix nanoseconds.
func parseShortUnixNS(s string) (int64, bool) {
	secPart, fracPart, hasFrac := strings.Cut(s, ".")
	secs, err := strconv.ParseInt(secPart, 10, 64)
	if err != nil || secs < 0 {
		return 0, false
	}
	ns := secs * int64(time.Second)
	if !hasFrac {
		return ns, true
	}
	if fracPart == "" {
		return 0, false
	}
	if len(fracPart) > 9 {
		fracPart = fracPart[:9]
	}
	frac, err := strconv.ParseUint(fracPart, 10, 64)
	if err != nil {
		return 0, false
	}
	for i := len(fracPart); i < 9; i++ {
		frac *= 10
	}
	return ns + int64(frac), true
}

// matchJournalMessages scans messages newest-first and returns the first
// after-entry whose log key matches one.
func matchJournalMessages(lines []journalLine, after []Entry) *Entry {
	for i := len(lines) - 1; i >= 0; i-- {
		key := normalizeLogKey(lines[i].msg)
		if key == "" {
			continue
		}
		for j := len(after) - 1; j >= 0; j-- {
			if logKey(after[j].Title, after[j].Episode) == key {
				e := after[j]
				return &e
			}
		}
	}
	return nil
}

// logKey builds the key ani-cli logs for a watch event: the title up to its
// first parenthesis, a space, and the episode label.
func logKey(title, episode string) string {
	prefix := title
	if i := strings.Index(title, "("); i >= 0 {
		prefix = title[:i]
	}
	return normalizeLogKey(prefix + " " + episode)
}

// normalizeLogKey strips ASCII punctuation and collapses whitespace.
// Case-sensitive on purpose: ani-cli logs titles verbatim.
func normalizeLogKey(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if isASCIIPunct(r) {
			continue
		}
		b.WriteRune(r)
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

func isASCIIPunct(r rune) bool {
	return (r >= '!' && r <= '/') || (r >= ':' && r <= '@') ||
		(r >= '[' && r <= '`') || (r >= '{' && r <= '~')
}
