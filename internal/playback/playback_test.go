package playback

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/natsukawa/anitrack/internal/episode"
	"github.com/natsukawa/anitrack/internal/history"
	"github.com/natsukawa/anitrack/internal/progress"
)

// scriptedLaunch stands in for the real ani-cli binary: it records every
// invocation, optionally mutates ledgers the way a run would, and returns a
// scripted exit.
type scriptedLaunch struct {
	invocations []Invocation
	status      ExitStatus
	err         error
	onLaunch    func(inv Invocation)
}

func (s *scriptedLaunch) launcher() Launcher {
	return func(inv Invocation) (ExitStatus, error) {
		s.invocations = append(s.invocations, inv)
		if s.onLaunch != nil {
			s.onLaunch(inv)
		}
		return s.status, s.err
	}
}

type fakeCatalog struct {
	labels       []string
	labelCalls   int
	rank         int
	rankWarnings []string
}

func (f *fakeCatalog) Catalog(ctx context.Context, showID string, totalHint int) ([]string, []string) {
	f.labelCalls++
	return f.labels, nil
}

func (f *fakeCatalog) ResolveRank(ctx context.Context, showID, title, preferredMode string) (int, []string) {
	return f.rank, f.rankWarnings
}

type recordingStore struct {
	upserts [][3]string
	err     error
}

func (r *recordingStore) Upsert(showID, title, episodeLabel string) error {
	r.upserts = append(r.upserts, [3]string{showID, title, episodeLabel})
	return r.err
}

// quietJournal keeps tests off the real system log.
func quietJournal(sinceSecs, untilSecs int64) (string, error) {
	return "", nil
}

func testController(t *testing.T, launch *scriptedLaunch) (*Controller, string) {
	t.Helper()
	histPath := filepath.Join(t.TempDir(), "ani-hsts")
	c := &Controller{
		Bin:      "ani-cli",
		HistPath: histPath,
		Mode:     "sub",
		Detector: history.Detector{Journal: quietJournal},
		Launch:   launch.launcher(),
	}
	return c, histPath
}

func writeLedger(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func envValue(env []string, key string) string {
	for _, kv := range env {
		if v, ok := strings.CutPrefix(kv, key+"="); ok {
			return v
		}
	}
	return ""
}

var testShow = progress.Show{
	ShowID:      "id-1",
	Title:       "Frieren (28 episodes)",
	LastEpisode: "5",
}

func TestRunSearchRecordsWatchedEntry(t *testing.T) {
	launch := &scriptedLaunch{}
	c, histPath := testController(t, launch)
	writeLedger(t, histPath, "1\tid-1\tFrieren\n")
	launch.onLaunch = func(inv Invocation) {
		if !inv.Interactive {
			t.Error("search run should be interactive")
		}
		if len(inv.Args) != 0 {
			t.Errorf("search args = %v, want none", inv.Args)
		}
		writeLedger(t, histPath, "1\tid-1\tFrieren\n2\tid-1\tFrieren\n")
	}

	store := &recordingStore{}
	message, showID, err := c.RunSearch(store)
	if err != nil {
		t.Fatal(err)
	}
	if showID != "id-1" {
		t.Errorf("showID = %q", showID)
	}
	if message != "Recorded last seen: Frieren | episode 2" {
		t.Errorf("message = %q", message)
	}
	want := [3]string{"id-1", "Frieren", "2"}
	if len(store.upserts) != 1 || store.upserts[0] != want {
		t.Errorf("upserts = %v", store.upserts)
	}
}

func TestRunSearchNoChange(t *testing.T) {
	launch := &scriptedLaunch{}
	c, histPath := testController(t, launch)
	writeLedger(t, histPath, "1\tid-1\tFrieren\n")

	store := &recordingStore{}
	message, showID, err := c.RunSearch(store)
	if err != nil {
		t.Fatal(err)
	}
	if showID != "" || len(store.upserts) != 0 {
		t.Errorf("recorded something from a no-op run: id=%q upserts=%v", showID, store.upserts)
	}
	if message != "No new history entry detected from this run." {
		t.Errorf("message = %q", message)
	}
}

func TestRunSearchOpaqueChangeAndExitStatus(t *testing.T) {
	launch := &scriptedLaunch{status: ExitStatus{Code: 1}}
	c, histPath := testController(t, launch)
	writeLedger(t, histPath, "1\tid-1\tFrieren\n")
	launch.onLaunch = func(Invocation) {
		writeLedger(t, histPath, "scrambled\n")
	}

	message, showID, err := c.RunSearch(&recordingStore{})
	if err != nil {
		t.Fatal(err)
	}
	if showID != "" {
		t.Errorf("showID = %q", showID)
	}
	if !strings.HasPrefix(message, "History changed but no parseable watch entry was detected from this run.") {
		t.Errorf("message = %q", message)
	}
	if !strings.Contains(message, "ani-cli exited with status: exit status: 1") {
		t.Errorf("message missing exit status: %q", message)
	}
	if !strings.Contains(message, "Warning: ignored 1 malformed line(s) in") {
		t.Errorf("message missing ledger warning: %q", message)
	}
}

func TestRunSearchLaunchFailure(t *testing.T) {
	launch := &scriptedLaunch{err: errors.New("boom")}
	c, histPath := testController(t, launch)
	writeLedger(t, histPath, "one malformed\n")

	store := &recordingStore{}
	message, showID, err := c.RunSearch(store)
	if err != nil {
		t.Fatal(err)
	}
	if showID != "" || len(store.upserts) != 0 {
		t.Error("launch failure must not record progress")
	}
	if !strings.HasPrefix(message, "ani-cli failed to start: boom. Progress unchanged.") {
		t.Errorf("message = %q", message)
	}
	if !strings.Contains(message, "Warning: ignored 1 malformed line(s) in") {
		t.Errorf("message missing ledger warning: %q", message)
	}
}

func TestRunSearchUpsertError(t *testing.T) {
	launch := &scriptedLaunch{}
	c, histPath := testController(t, launch)
	launch.onLaunch = func(Invocation) {
		writeLedger(t, histPath, "1\tid-1\tFrieren\n")
	}

	_, _, err := c.RunSearch(&recordingStore{err: errors.New("disk full")})
	if err == nil || !strings.Contains(err.Error(), "disk full") {
		t.Fatalf("err = %v", err)
	}
}

func TestRunContinue(t *testing.T) {
	t.Run("seeds a throwaway ledger and reads it back", func(t *testing.T) {
		launch := &scriptedLaunch{}
		c, _ := testController(t, launch)

		var tempDir string
		launch.onLaunch = func(inv Invocation) {
			if len(inv.Args) != 1 || inv.Args[0] != "-c" {
				t.Errorf("args = %v, want [-c]", inv.Args)
			}
			tempDir = envValue(inv.ExtraEnv, "ANI_CLI_HIST_DIR")
			if tempDir == "" {
				t.Fatal("ANI_CLI_HIST_DIR not set")
			}
			seeded, err := os.ReadFile(filepath.Join(tempDir, "ani-hsts"))
			if err != nil {
				t.Fatal(err)
			}
			if string(seeded) != "5\tid-1\tFrieren (28 episodes)\n" {
				t.Errorf("seed = %q", seeded)
			}
			writeLedger(t, filepath.Join(tempDir, "ani-hsts"), "6\tid-1\tFrieren (28 episodes)\n")
		}

		out, err := c.RunContinue(testShow, testShow.LastEpisode)
		if err != nil {
			t.Fatal(err)
		}
		if !out.Success || out.FinalEpisode != "6" {
			t.Errorf("outcome = %+v", out)
		}
		if _, err := os.Stat(tempDir); !os.IsNotExist(err) {
			t.Errorf("temp dir %s not cleaned up", tempDir)
		}
	})

	t.Run("failed run reports no episode", func(t *testing.T) {
		launch := &scriptedLaunch{status: ExitStatus{Code: 1}}
		c, _ := testController(t, launch)

		out, err := c.RunContinue(testShow, "5")
		if err != nil {
			t.Fatal(err)
		}
		if out.Success || out.FinalEpisode != "" {
			t.Errorf("outcome = %+v", out)
		}
		if out.FailureDetail != "exit status: 1" {
			t.Errorf("detail = %q", out.FailureDetail)
		}
	})
}

func TestRunEpisodeTracked(t *testing.T) {
	t.Run("ledger entry wins over requested episode", func(t *testing.T) {
		launch := &scriptedLaunch{}
		c, histPath := testController(t, launch)
		writeLedger(t, histPath, "5\tid-1\tFrieren\n")
		launch.onLaunch = func(inv Invocation) {
			want := []string{"-S", "2", "Frieren", "-e", "7"}
			if strings.Join(inv.Args, " ") != strings.Join(want, " ") {
				t.Errorf("args = %v, want %v", inv.Args, want)
			}
			writeLedger(t, histPath, "5\tid-1\tFrieren\n8\tid-1\tFrieren\n")
		}

		out, err := c.RunEpisodeTracked(testShow, "7", 2)
		if err != nil {
			t.Fatal(err)
		}
		if !out.Success || out.FinalEpisode != "8" {
			t.Errorf("outcome = %+v", out)
		}
	})

	t.Run("falls back to requested episode when the ledger never saw the show", func(t *testing.T) {
		launch := &scriptedLaunch{}
		c, _ := testController(t, launch)

		out, err := c.RunEpisodeTracked(testShow, "7", 0)
		if err != nil {
			t.Fatal(err)
		}
		if !out.Success || out.FinalEpisode != "7" {
			t.Errorf("outcome = %+v", out)
		}
		if len(launch.invocations) != 1 || launch.invocations[0].Args[0] != "Frieren" {
			t.Errorf("invocations = %+v", launch.invocations)
		}
	})
}

func TestRunSelect(t *testing.T) {
	t.Run("pins the resolved rank", func(t *testing.T) {
		launch := &scriptedLaunch{}
		c, histPath := testController(t, launch)
		c.Catalog = &fakeCatalog{rank: 3}
		launch.onLaunch = func(inv Invocation) {
			want := []string{"-S", "3", "Frieren"}
			if strings.Join(inv.Args, " ") != strings.Join(want, " ") {
				t.Errorf("args = %v, want %v", inv.Args, want)
			}
			writeLedger(t, histPath, "4\tid-1\tFrieren\n")
		}

		out, err := c.RunSelect(context.Background(), testShow)
		if err != nil {
			t.Fatal(err)
		}
		if !out.Success || out.FinalEpisode != "4" {
			t.Errorf("outcome = %+v", out)
		}
	})

	t.Run("unresolvable rank is a hard error", func(t *testing.T) {
		launch := &scriptedLaunch{}
		c, _ := testController(t, launch)
		c.Catalog = &fakeCatalog{rank: 0, rankWarnings: []string{"shows query failed: timeout"}}

		_, err := c.RunSelect(context.Background(), testShow)
		if err == nil {
			t.Fatal("want error")
		}
		if !strings.Contains(err.Error(), "failed to resolve current show for episode selection") {
			t.Errorf("err = %v", err)
		}
		if !strings.Contains(err.Error(), "Warning: shows query failed: timeout") {
			t.Errorf("err missing warning trail: %v", err)
		}
		if len(launch.invocations) != 0 {
			t.Errorf("launched anyway: %+v", launch.invocations)
		}
	})
}

func TestRunReplay(t *testing.T) {
	t.Run("numeric seed skips the catalog fetch", func(t *testing.T) {
		launch := &scriptedLaunch{}
		c, _ := testController(t, launch)
		catalog := &fakeCatalog{}
		c.Catalog = catalog

		var seeded string
		launch.onLaunch = func(inv Invocation) {
			dir := envValue(inv.ExtraEnv, "ANI_CLI_HIST_DIR")
			raw, err := os.ReadFile(filepath.Join(dir, "ani-hsts"))
			if err != nil {
				t.Fatal(err)
			}
			seeded = string(raw)
		}

		if _, err := c.RunReplay(context.Background(), testShow, nil); err != nil {
			t.Fatal(err)
		}
		if catalog.labelCalls != 0 {
			t.Errorf("catalog fetched %d times, want 0", catalog.labelCalls)
		}
		if !strings.HasPrefix(seeded, "4\tid-1\t") {
			t.Errorf("seeded = %q, want episode 4", seeded)
		}
	})

	t.Run("catalog seed replays specials", func(t *testing.T) {
		launch := &scriptedLaunch{}
		c, _ := testController(t, launch)
		catalog := &fakeCatalog{}
		c.Catalog = catalog

		var seeded string
		launch.onLaunch = func(inv Invocation) {
			dir := envValue(inv.ExtraEnv, "ANI_CLI_HIST_DIR")
			raw, err := os.ReadFile(filepath.Join(dir, "ani-hsts"))
			if err != nil {
				t.Fatal(err)
			}
			seeded = string(raw)
		}

		show := testShow
		show.LastEpisode = "13.5"
		if _, err := c.RunReplay(context.Background(), show, []string{"12", "13", "13.5", "14"}); err != nil {
			t.Fatal(err)
		}
		if catalog.labelCalls != 0 {
			t.Errorf("catalog fetched %d times despite being supplied", catalog.labelCalls)
		}
		if !strings.HasPrefix(seeded, "13\tid-1\t") {
			t.Errorf("seeded = %q, want episode 13", seeded)
		}
	})

	t.Run("first entry replays as an explicit pinned episode", func(t *testing.T) {
		launch := &scriptedLaunch{}
		c, _ := testController(t, launch)
		c.Catalog = &fakeCatalog{rank: 2}

		show := testShow
		show.LastEpisode = "0"
		if _, err := c.RunReplay(context.Background(), show, nil); err != nil {
			t.Fatal(err)
		}
		if len(launch.invocations) != 1 {
			t.Fatalf("invocations = %+v", launch.invocations)
		}
		want := []string{"-S", "2", "Frieren", "-e", "0"}
		if strings.Join(launch.invocations[0].Args, " ") != strings.Join(want, " ") {
			t.Errorf("args = %v, want %v", launch.invocations[0].Args, want)
		}
	})

	t.Run("first entry with no resolvable rank is a hard error", func(t *testing.T) {
		launch := &scriptedLaunch{}
		c, _ := testController(t, launch)
		c.Catalog = &fakeCatalog{rank: 0}

		show := testShow
		show.LastEpisode = "0"
		_, err := c.RunReplay(context.Background(), show, nil)
		if err == nil || !strings.Contains(err.Error(), "failed to resolve current show for replay") {
			t.Fatalf("err = %v", err)
		}
		if len(launch.invocations) != 0 {
			t.Errorf("launched anyway: %+v", launch.invocations)
		}
	})
}

func TestRunPrevious(t *testing.T) {
	t.Run("nothing before the first episode", func(t *testing.T) {
		launch := &scriptedLaunch{}
		c, _ := testController(t, launch)
		c.Catalog = &fakeCatalog{}

		show := testShow
		show.LastEpisode = "0"
		_, err := c.RunPrevious(context.Background(), show, nil)
		if !errors.Is(err, episode.ErrNoPrevious) {
			t.Fatalf("err = %v, want ErrNoPrevious", err)
		}
	})

	t.Run("seeds a continue run two steps back", func(t *testing.T) {
		launch := &scriptedLaunch{}
		c, _ := testController(t, launch)
		c.Catalog = &fakeCatalog{}

		var seeded string
		launch.onLaunch = func(inv Invocation) {
			dir := envValue(inv.ExtraEnv, "ANI_CLI_HIST_DIR")
			raw, err := os.ReadFile(filepath.Join(dir, "ani-hsts"))
			if err != nil {
				t.Fatal(err)
			}
			seeded = string(raw)
		}

		if _, err := c.RunPrevious(context.Background(), testShow, nil); err != nil {
			t.Fatal(err)
		}
		if !strings.HasPrefix(seeded, "3\tid-1\t") {
			t.Errorf("seeded = %q, want episode 3", seeded)
		}
	})

	t.Run("falls back to an explicit pinned episode near the start", func(t *testing.T) {
		launch := &scriptedLaunch{}
		c, _ := testController(t, launch)
		c.Catalog = &fakeCatalog{rank: 1}

		show := testShow
		show.LastEpisode = "2"
		if _, err := c.RunPrevious(context.Background(), show, nil); err != nil {
			t.Fatal(err)
		}
		if len(launch.invocations) != 1 {
			t.Fatalf("invocations = %+v", launch.invocations)
		}
		want := []string{"-S", "1", "Frieren", "-e", "1"}
		if strings.Join(launch.invocations[0].Args, " ") != strings.Join(want, " ") {
			t.Errorf("args = %v, want %v", launch.invocations[0].Args, want)
		}
	})

	t.Run("unresolvable rank is a hard error", func(t *testing.T) {
		launch := &scriptedLaunch{}
		c, _ := testController(t, launch)
		c.Catalog = &fakeCatalog{rank: 0}

		show := testShow
		show.LastEpisode = "2"
		_, err := c.RunPrevious(context.Background(), show, nil)
		if err == nil || !strings.Contains(err.Error(), "failed to resolve current show for previous action") {
			t.Fatalf("err = %v", err)
		}
	})
}

func TestExitStatus(t *testing.T) {
	cases := []struct {
		status  ExitStatus
		success bool
		text    string
	}{
		{ExitStatus{Code: 0}, true, "exit status: 0"},
		{ExitStatus{Code: 130}, false, "exit status: 130"},
		{ExitStatus{Code: -1, Signal: "interrupt"}, false, "signal: interrupt"},
	}
	for _, tc := range cases {
		if got := tc.status.Success(); got != tc.success {
			t.Errorf("%+v Success() = %t", tc.status, got)
		}
		if got := tc.status.String(); got != tc.text {
			t.Errorf("%+v String() = %q", tc.status, got)
		}
	}
}

func TestFailureMessage(t *testing.T) {
	withDetail := FailureMessage(Outcome{FailureDetail: "exit status: 1"})
	if withDetail != "Playback failed/interrupted: exit status: 1. Progress not updated." {
		t.Errorf("message = %q", withDetail)
	}
	bare := FailureMessage(Outcome{})
	if bare != "Playback failed/interrupted. Progress not updated." {
		t.Errorf("message = %q", bare)
	}
}
