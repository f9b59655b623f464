package cmd

import (
	"strings"
	"testing"

	"github.com/natsukawa/anitrack/internal/progress"
)

func TestListWithoutEntries(t *testing.T) {
	isolateEnv(t)

	out, err := executeCommand(rootCmd, "list")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "No tracked entries yet.") {
		t.Errorf("unexpected output: %q", out)
	}
}

func TestListRendersTable(t *testing.T) {
	isolateEnv(t)
	longTitle := "The Adventures of an Unreasonably Long Anime Title Spanning Seasons"
	seedStore(t,
		progress.Show{ShowID: "id-frieren", Title: "Frieren (28 episodes)", LastEpisode: "12"},
		progress.Show{ShowID: "id-long", Title: longTitle, LastEpisode: "3"},
	)

	out, err := executeCommand(rootCmd, "list")
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"ANI ID", "TITLE", "EP", "LAST SEEN"} {
		if !strings.Contains(out, want) {
			t.Errorf("header missing %q: %q", want, out)
		}
	}
	if !strings.Contains(out, "Frieren (28 episodes)") {
		t.Errorf("missing row: %q", out)
	}
	if strings.Contains(out, longTitle) {
		t.Errorf("long title should be truncated: %q", out)
	}
	if !strings.Contains(out, "...") {
		t.Errorf("expected truncation marker: %q", out)
	}
}
