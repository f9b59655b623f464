package cmd

import (
	"github.com/spf13/cobra"

	"github.com/natsukawa/anitrack/internal/episode"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Print the tracked shows",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		shows, err := store.List()
		if err != nil {
			return err
		}
		if len(shows) == 0 {
			cmd.Println("No tracked entries yet. Run `anitrack start` first.")
			return nil
		}

		cmd.Printf("%-20s %-40s %-10s %-28s\n", "ANI ID", "TITLE", "EP", "LAST SEEN")
		for _, s := range shows {
			cmd.Printf("%-20s %-40s %-10s %-28s\n",
				episode.Truncate(s.ShowID, 20),
				episode.Truncate(s.Title, 40),
				s.LastEpisode,
				episode.FormatLastSeen(s.LastSeenAt))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
}
