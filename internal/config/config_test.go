package config

import (
	"os"
	"path/filepath"
	"testing"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// isolate points the home-dir search at a throwaway directory and resets the
// global viper/homedir state around the test.
func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	homedir.Reset()
	viper.Reset()
	t.Cleanup(func() {
		viper.Reset()
		homedir.Reset()
	})
}

func TestInitDefaults(t *testing.T) {
	isolate(t)
	if err := Init(""); err != nil {
		t.Fatal(err)
	}

	if got := Mode(); got != "sub" {
		t.Errorf("Mode() = %q", got)
	}
	if got := AniCliBin(); got != "ani-cli" {
		t.Errorf("AniCliBin() = %q", got)
	}
	if got := APIEndpoint(); got != "https://api.allanime.day/api" {
		t.Errorf("APIEndpoint() = %q", got)
	}
	if got := APIReferer(); got != "https://allmanga.to" {
		t.Errorf("APIReferer() = %q", got)
	}
}

func TestInitEnvOverrides(t *testing.T) {
	isolate(t)
	t.Setenv("ANI_CLI_MODE", "dub")
	t.Setenv("ANI_TRACK_ANI_CLI_BIN", "/opt/ani-cli/ani-cli")

	if err := Init(""); err != nil {
		t.Fatal(err)
	}
	if got := Mode(); got != "dub" {
		t.Errorf("Mode() = %q", got)
	}
	if got := AniCliBin(); got != "/opt/ani-cli/ani-cli" {
		t.Errorf("AniCliBin() = %q", got)
	}
}

func TestInitConfigFile(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "anitrack.yaml")
	content := "mode: dub\nani_cli_bin: /usr/local/bin/ani-cli\napi:\n  endpoint: http://127.0.0.1:9\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := Init(path); err != nil {
		t.Fatal(err)
	}
	if got := Mode(); got != "dub" {
		t.Errorf("Mode() = %q", got)
	}
	if got := AniCliBin(); got != "/usr/local/bin/ani-cli" {
		t.Errorf("AniCliBin() = %q", got)
	}
	if got := APIEndpoint(); got != "http://127.0.0.1:9" {
		t.Errorf("APIEndpoint() = %q", got)
	}
	// Untouched keys keep their defaults.
	if got := APIReferer(); got != "https://allmanga.to" {
		t.Errorf("APIReferer() = %q", got)
	}
}

func TestInitEnvBeatsConfigFile(t *testing.T) {
	isolate(t)
	t.Setenv("ANI_CLI_MODE", "dub")
	path := filepath.Join(t.TempDir(), "anitrack.yaml")
	if err := os.WriteFile(path, []byte("mode: sub\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := Init(path); err != nil {
		t.Fatal(err)
	}
	if got := Mode(); got != "dub" {
		t.Errorf("Mode() = %q, want the environment to win", got)
	}
}

func TestInitRejectsMalformedFile(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "anitrack.yaml")
	if err := os.WriteFile(path, []byte("mode: [unclosed\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := Init(path); err == nil {
		t.Fatal("want error for malformed config")
	}
}
