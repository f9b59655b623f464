// Package config wires the viper-backed settings: an optional
// $HOME/.anitrack.yaml file, environment overrides, and defaults for
// everything, so callers never see a missing value.
package config

import (
	"errors"
	"fmt"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// Keys understood by the config file and the environment.
const (
	KeyMode        = "mode"
	KeyAniCliBin   = "ani_cli_bin"
	KeyAPIEndpoint = "api.endpoint"
	KeyAPIReferer  = "api.referer"
)

// Init loads cfgFile (or searches $HOME/.anitrack.yaml when empty), binds
// environment overrides and installs defaults. Call once, before reading any
// values. A missing config file is fine; an unreadable one is not.
//
// The history ledger path is deliberately not a config key: its resolution
// (ANI_CLI_HIST_DIR and the XDG fallbacks) is ani-cli's contract and is read
// straight from the environment where it is needed.
func Init(cfgFile string) error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := homedir.Dir()
		if err != nil {
			return fmt.Errorf("resolve home directory: %w", err)
		}
		viper.AddConfigPath(home)
		viper.SetConfigName(".anitrack")
		viper.SetConfigType("yaml")
	}

	viper.AutomaticEnv()
	// ANI_CLI_MODE is ani-cli's own variable; honoring it keeps both tools
	// on the same translation mode.
	_ = viper.BindEnv(KeyMode, "ANI_CLI_MODE")
	_ = viper.BindEnv(KeyAniCliBin, "ANI_TRACK_ANI_CLI_BIN")

	viper.SetDefault(KeyMode, "sub")
	viper.SetDefault(KeyAniCliBin, "ani-cli")
	viper.SetDefault(KeyAPIEndpoint, "https://api.allanime.day/api")
	viper.SetDefault(KeyAPIReferer, "https://allmanga.to")

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("read config: %w", err)
		}
	}
	return nil
}

// Mode returns the preferred translation mode, "sub" or "dub".
func Mode() string { return viper.GetString(KeyMode) }

// AniCliBin returns the playback binary to launch.
func AniCliBin() string { return viper.GetString(KeyAniCliBin) }

// APIEndpoint returns the catalog service URL.
func APIEndpoint() string { return viper.GetString(KeyAPIEndpoint) }

// APIReferer returns the Referer header the catalog service expects.
func APIReferer() string { return viper.GetString(KeyAPIReferer) }
