package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/charmbracelet/x/term"
	"github.com/spf13/cobra"

	"github.com/natsukawa/anitrack/internal/allanime"
	"github.com/natsukawa/anitrack/internal/config"
	"github.com/natsukawa/anitrack/internal/playback"
	"github.com/natsukawa/anitrack/internal/progress"
	"github.com/natsukawa/anitrack/internal/tui"
	"github.com/natsukawa/anitrack/internal/utils"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "anitrack",
	Short: "Launch ani-cli and track last seen show/episode",
	Long: `anitrack wraps the ani-cli playback program with watch-progress
bookkeeping: it launches ani-cli, works out from ani-cli's own history file
what got watched, and keeps a local library you can continue, replay and
browse.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		// Bare invocation opens the dashboard when a human is attached.
		if term.IsTerminal(os.Stdin.Fd()) {
			return runDashboard(cmd.Context())
		}
		return cmd.Help()
	},
	CompletionOptions: cobra.CompletionOptions{
		DisableDefaultCmd: true,
	},
}

// Execute runs the root command. Exits with code 1 on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.anitrack.yaml)")
	rootCmd.PersistentFlags().StringP("loglevel", "l", "info", "Set log level. Available: debug, info, warn, error")
}

// initConfig loads configuration and applies the log level before any
// command runs.
func initConfig() {
	if err := config.Init(cfgFile); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	levelString, _ := rootCmd.PersistentFlags().GetString("loglevel")
	utils.SetLogLevel(levelString)
}

// openStore opens the progress database at its default location.
func openStore() (*progress.Store, error) {
	path, err := progress.DefaultPath()
	if err != nil {
		return nil, err
	}
	return progress.Open(path)
}

// newClient builds the catalog client from configuration.
func newClient() *allanime.Client {
	return allanime.New(config.APIEndpoint(), config.APIReferer())
}

// newController assembles the playback controller from configuration.
func newController() *playback.Controller {
	return &playback.Controller{
		Bin:     config.AniCliBin(),
		Mode:    config.Mode(),
		Catalog: newClient(),
	}
}

func runDashboard(ctx context.Context) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()
	return tui.Run(ctx, store, newController(), newClient())
}
