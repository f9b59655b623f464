// Package history reads and diffs the ani-cli watch-history ledger. ani-cli
// appends one line per watched episode to a shared state file and offers no
// other exit protocol, so everything anitrack knows about a playback run is
// reconstructed from snapshots of that file taken around the run, with a
// best-effort systemd-journal correlation as a last resort.
package history

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Entry is one ledger line: the episode label last played for a show.
type Entry struct {
	Episode string
	ShowID  string
	Title   string
}

// Sig is a cheap file identity (byte length, mtime in nanoseconds) used to
// tell "the file changed at all" apart from "nothing happened" when no entry
// can be parsed out of it.
type Sig struct {
	Len   int64
	ModNS int64
}

// Snapshot is one point-in-time read of the ledger. Entries preserve file
// order, oldest first; Latest maps each show id to its last occurrence in
// that order. Warnings carry recovered read/parse problems; they never abort
// a run.
type Snapshot struct {
	Entries  []Entry
	Latest   map[string]Entry
	Warnings []string
	Sig      *Sig
}

// DefaultPath resolves the ledger location the way ani-cli does: the
// ANI_CLI_HIST_DIR override, else XDG_STATE_HOME, else ~/.local/state.
func DefaultPath() string {
	if dir := os.Getenv("ANI_CLI_HIST_DIR"); dir != "" {
		return filepath.Join(dir, "ani-hsts")
	}
	state := os.Getenv("XDG_STATE_HOME")
	if state == "" {
		state = filepath.Join(os.Getenv("HOME"), ".local", "state")
	}
	return filepath.Join(state, "ani-cli", "ani-hsts")
}

// ReadSnapshot reads the ledger at path. A missing file is an empty snapshot
// with no warning; an unreadable one is an empty snapshot with an I/O
// warning. The ledger is owned by ani-cli and never locked here.
func ReadSnapshot(path string) Snapshot {
	snap := Snapshot{Latest: make(map[string]Entry)}
	snap.Sig = ReadSig(path)

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			snap.Warnings = append(snap.Warnings, fmt.Sprintf("failed to read ani-cli history at %s: %v", path, err))
		}
		return snap
	}

	entries, latest, skipped := ParseLedger(string(data))
	snap.Entries = entries
	snap.Latest = latest
	if skipped > 0 {
		snap.Warnings = append(snap.Warnings, fmt.Sprintf("ignored %d malformed line(s) in %s", skipped, path))
	}
	return snap
}

// ReadSig stats the ledger, returning nil when it does not exist.
func ReadSig(path string) *Sig {
	info, err := os.Stat(path)
	if err != nil {
		return nil
	}
	return &Sig{Len: info.Size(), ModNS: info.ModTime().UnixNano()}
}

// Touched reports whether two signatures indicate the file changed at all,
// including appearing or disappearing.
func Touched(before, after *Sig) bool {
	if before == nil || after == nil {
		return before != nil || after != nil
	}
	return *before != *after
}

// ParseLedger parses raw ledger text into ordered entries, the latest entry
// per show id, and the count of malformed non-blank lines.
func ParseLedger(raw string) ([]Entry, map[string]Entry, int) {
	var entries []Entry
	latest := make(map[string]Entry)
	skipped := 0
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		e, ok := parseLine(line)
		if !ok {
			skipped++
			continue
		}
		entries = append(entries, e)
		latest[e.ShowID] = e
	}
	return entries, latest, skipped
}

// parseLine parses one ledger line. Tab-separated lines split into exactly
// three fields; lines without a tab fall back to whitespace splitting with
// the title tokens rejoined. All three fields must be non-empty.
func parseLine(line string) (Entry, bool) {
	if strings.Contains(line, "\t") {
		parts := strings.SplitN(line, "\t", 3)
		if len(parts) != 3 {
			return Entry{}, false
		}
		ep := strings.TrimSpace(parts[0])
		id := strings.TrimSpace(parts[1])
		title := strings.TrimSpace(parts[2])
		if ep == "" || id == "" || title == "" {
			return Entry{}, false
		}
		return Entry{Episode: ep, ShowID: id, Title: title}, true
	}

	fields := strings.Fields(line)
	if len(fields) < 3 {
		return Entry{}, false
	}
	return Entry{
		Episode: fields[0],
		ShowID:  fields[1],
		Title:   strings.Join(fields[2:], " "),
	}, true
}

// SameEntries reports whether two ordered entry sequences are identical.
func SameEntries(a, b []Entry) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
