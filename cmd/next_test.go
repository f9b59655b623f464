package cmd

import (
	"strings"
	"testing"
)

func TestNextWithoutHistory(t *testing.T) {
	isolateEnv(t)

	out, err := executeCommand(rootCmd, "next")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "No last seen entry yet.") {
		t.Errorf("unexpected output: %q", out)
	}
}

func TestReplayWithoutHistory(t *testing.T) {
	isolateEnv(t)

	out, err := executeCommand(rootCmd, "replay")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "No last seen entry yet.") {
		t.Errorf("unexpected output: %q", out)
	}
}
