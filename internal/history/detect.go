package history

import (
	"fmt"
	"time"

	"github.com/natsukawa/anitrack/internal/utils"
)

// journalSlack extends the log window past the child's exit; ani-cli flushes
// its journal line slightly after the player returns.
const journalSlack = 5 * time.Second

// LogWindow bounds the system-log correlation to one supervised run.
type LogWindow struct {
	Start time.Time
	End   time.Time
}

// JournalRunner returns raw short-unix journal output for the tag filter over
// [sinceSecs, untilSecs]. Injected so tests can stub the system log; the zero
// Detector shells out to journalctl on Linux and reads nothing elsewhere.
type JournalRunner func(sinceSecs, untilSecs int64) (string, error)

// Detector finds the single most likely "just watched" entry between two
// ledger snapshots.
type Detector struct {
	Journal JournalRunner
}

// Detect diffs two snapshots taken around a playback run. Appended entries
// win first (newest meaningful addition, tolerating exact duplicates), then a
// rewritten-in-place latest entry, then a journal correlation within the run
// window. Returns nil when nothing attributable was found; warnings carry
// recovered journal-query problems.
func (d Detector) Detect(before, after Snapshot, window LogWindow) (*Entry, []string) {
	if added := addedEntries(before.Entries, after.Entries); len(added) > 0 {
		e := latestAdded(before.Latest, added)
		utils.Log.Debugf("detect: %d added entries, picked %s ep %s", len(added), e.ShowID, e.Episode)
		return e, nil
	}
	if e := changedLatest(before.Latest, after.Entries); e != nil {
		utils.Log.Debugf("detect: in-place change for %s ep %s", e.ShowID, e.Episode)
		return e, nil
	}
	return d.detectFromJournal(window, after.Entries)
}

// addedEntries returns the after-entries not accounted for by the before
// multiset, in after order. Exact duplicate lines consume counts one by one,
// so re-appending an already-present line still registers as an addition.
func addedEntries(before, after []Entry) []Entry {
	counts := make(map[Entry]int, len(before))
	for _, e := range before {
		counts[e]++
	}
	var added []Entry
	for _, e := range after {
		if counts[e] > 0 {
			counts[e]--
			continue
		}
		added = append(added, e)
	}
	return added
}

// latestAdded scans added entries newest-first for one that is new or changed
// relative to the before state. When every addition duplicates prior state
// (a rewatch re-appended the same line) the last addition still counts.
func latestAdded(beforeLatest map[string]Entry, added []Entry) *Entry {
	for i := len(added) - 1; i >= 0; i-- {
		e := added[i]
		prev, seen := beforeLatest[e.ShowID]
		if !seen || prev.Episode != e.Episode || prev.Title != e.Title {
			return &e
		}
	}
	last := added[len(added)-1]
	return &last
}

// changedLatest handles ledgers rewritten in place: scan after entries
// newest-first, one look per show id, for a latest state that differs from
// before.
func changedLatest(beforeLatest map[string]Entry, after []Entry) *Entry {
	visited := make(map[string]bool, len(after))
	for i := len(after) - 1; i >= 0; i-- {
		e := after[i]
		if visited[e.ShowID] {
			continue
		}
		visited[e.ShowID] = true
		prev, seen := beforeLatest[e.ShowID]
		if !seen || prev.Episode != e.Episode || prev.Title != e.Title {
			return &e
		}
	}
	return nil
}

// detectFromJournal queries the system log for ani-cli messages inside the
// run window and matches them against after-entries by normalized key.
func (d Detector) detectFromJournal(window LogWindow, after []Entry) (*Entry, []string) {
	if len(after) == 0 || window.Start.IsZero() || window.End.IsZero() {
		return nil, nil
	}
	runner := d.Journal
	if runner == nil {
		runner = runJournalctl
	}

	sinceSecs := window.Start.Unix()
	untilSecs := window.End.Add(journalSlack).Unix()
	out, err := runner(sinceSecs, untilSecs)
	if err != nil {
		return nil, []string{fmt.Sprintf("system log query failed: %v", err)}
	}
	if out == "" {
		return nil, nil
	}

	lines := parseJournalOutput(out, window.Start.UnixNano(), window.End.Add(journalSlack).UnixNano())
	if e := matchJournalMessages(lines, after); e != nil {
		utils.Log.Debugf("detect: journal correlation matched %s ep %s", e.ShowID, e.Episode)
		return e, nil
	}
	return nil, nil
}
